package cli

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/affinity/internal/harness"
	"github.com/roach88/affinity/internal/journal"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Filter    string // glob on the scenario file name
	Database  string // journal path; overrides config
	GoldenDir string // overrides config
	Update    bool   // rewrite golden files
}

// ScenarioResult is the outcome of one scenario file.
type ScenarioResult struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Pass   bool     `json:"pass"`
	RunID  string   `json:"run_id,omitempty"`
	Digest string   `json:"digest,omitempty"` // of the trace
	Source string   `json:"source,omitempty"` // digest of the scenario's steps
	Golden string   `json:"golden,omitempty"` // "match", "mismatch", "updated", "missing"
	Errors []string `json:"errors,omitempty"`
}

// RunSummary is the run command's payload.
type RunSummary struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run [scenarios-dir]",
		Short: "Run scenarios against their fixtures",
		Long: `Run every scenario file in a directory. Each scenario starts a fresh
owner thread, builds its fixture there and marshals each step onto the
owner's loop.

The directory defaults to scenarios_dir from the configuration.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (missing directory, unreadable journal, ...)

Examples:
  affinity run testdata/scenarios
  affinity run --filter "verifier_*"
  affinity run --db runs.db
  affinity run --golden-dir testdata/golden --update`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := ""
			if len(args) == 1 {
				dir = args[0]
			}
			return runScenarios(cmd.Context(), opts, dir, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Filter, "filter", "", "filter scenarios by glob pattern")
	cmd.Flags().StringVar(&opts.Database, "db", "", "journal runs to this SQLite database")
	cmd.Flags().StringVar(&opts.GoldenDir, "golden-dir", "", "compare traces with golden files in this directory")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "regenerate golden files")

	return cmd
}

func runScenarios(ctx context.Context, opts *RunOptions, dir string, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if dir == "" && opts.Config != nil {
		dir = opts.Config.ScenariosDir
	}
	if dir == "" {
		return NewExitError(ExitCommandError, "no scenarios directory given")
	}
	if _, err := os.Stat(dir); err != nil {
		return WrapExitError(ExitCommandError, fmt.Sprintf("scenarios directory not found: %s", dir), err)
	}

	goldenDir := opts.GoldenDir
	dbPath := opts.Database
	if opts.Config != nil {
		if goldenDir == "" {
			goldenDir = opts.Config.GoldenDir
		}
		if dbPath == "" {
			dbPath = opts.Config.Journal
		}
	}
	if opts.Update && goldenDir == "" {
		return NewExitError(ExitCommandError, "--update needs a golden directory (--golden-dir or golden_dir)")
	}

	files, err := harness.FindScenarioFiles(dir, opts.Filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to find scenarios", err)
	}

	var j *journal.Journal
	if dbPath != "" {
		j, err = journal.Open(dbPath, journal.WithLogger(opts.logger()))
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer j.Close()
	}

	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())
	summary := RunSummary{Scenarios: make([]ScenarioResult, 0, len(files)), Total: len(files)}

	for _, file := range files {
		sr := runOne(ctx, opts, j, goldenDir, file)
		summary.Scenarios = append(summary.Scenarios, sr)
		if sr.Pass {
			summary.Passed++
		} else {
			summary.Failed++
		}
		if f.Format != "json" {
			printScenarioResult(f, sr)
		}
		if ctx.Err() != nil {
			break
		}
	}

	return outputRunSummary(f, summary)
}

func runOne(ctx context.Context, opts *RunOptions, j *journal.Journal, goldenDir, file string) ScenarioResult {
	logger := opts.logger()
	sr := ScenarioResult{Name: filepath.Base(file), File: file}

	scenario, err := harness.LoadScenario(file)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("failed to load scenario: %v", err)}
		return sr
	}
	sr.Name = scenario.Name
	if sr.Source, err = harness.ScenarioDigest(scenario); err != nil {
		logger.Warn("failed to digest scenario", "scenario", scenario.Name, "error", err)
	}

	runOpts := []harness.RunOption{harness.WithRunLogger(logger.With("scenario", scenario.Name))}
	if opts.Config != nil {
		runOpts = append(runOpts, harness.WithTimeouts(opts.Config.StartupTimeout, opts.Config.ReadyTimeout))
	}

	var rec *journal.Recorder
	if j != nil {
		rec, err = j.BeginRun(ctx, scenario.Name, scenario.Fixture)
		if err != nil {
			logger.Warn("journal unavailable for scenario", "scenario", scenario.Name, "error", err)
		} else {
			sr.RunID = rec.RunID()
			runOpts = append(runOpts, harness.WithRunObserver(rec))
		}
	}

	result, err := harness.Run(ctx, scenario, runOpts...)
	if err != nil {
		sr.Errors = []string{fmt.Sprintf("execution failed: %v", err)}
		finishRecord(ctx, logger, rec, false, "")
		return sr
	}

	sr.Pass = result.Pass
	sr.Errors = append(sr.Errors, result.Errors...)
	if sr.Digest, err = harness.Digest(result); err != nil {
		sr.Pass = false
		sr.Errors = append(sr.Errors, fmt.Sprintf("digest: %v", err))
	}

	if goldenDir != "" {
		status, err := checkGolden(goldenDir, scenario.Name, result, opts.Update)
		sr.Golden = status
		switch {
		case err != nil:
			sr.Pass = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("golden: %v", err))
		case status == "mismatch":
			sr.Pass = false
			sr.Errors = append(sr.Errors, "trace does not match golden file (run with --update to regenerate)")
		}
	}

	finishRecord(ctx, logger, rec, sr.Pass, sr.Digest)
	return sr
}

func finishRecord(ctx context.Context, logger *slog.Logger, rec *journal.Recorder, pass bool, digest string) {
	if rec == nil {
		return
	}
	// the run may have been cancelled; still write what was seen
	if err := rec.Finish(context.WithoutCancel(ctx), pass, digest); err != nil {
		logger.Warn("failed to finish journal run", "run", rec.RunID(), "error", err)
	}
}

// GoldenPath returns the golden file for a scenario, the same layout the
// harness package's goldie tests use.
func GoldenPath(dir, scenario string) string {
	return filepath.Join(dir, scenario+".golden")
}

// checkGolden compares (or with update, rewrites) the golden file.
// A missing golden file is reported but does not fail the scenario.
func checkGolden(dir, scenario string, result *harness.Result, update bool) (string, error) {
	current, err := harness.Snapshot(result)
	if err != nil {
		return "", err
	}
	path := GoldenPath(dir, scenario)

	if update {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create golden directory: %w", err)
		}
		if err := os.WriteFile(path, current, 0644); err != nil {
			return "", fmt.Errorf("failed to write golden file: %w", err)
		}
		return "updated", nil
	}

	golden, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return "missing", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read golden file: %w", err)
	}
	if !bytes.Equal(golden, current) {
		return "mismatch", nil
	}
	return "match", nil
}

func printScenarioResult(f *OutputFormatter, sr ScenarioResult) {
	line := fmt.Sprintf("%s %s", statusMark(sr.Pass), sr.Name)
	if sr.Golden != "" && sr.Golden != "match" {
		line += dim(fmt.Sprintf(" (golden %s)", sr.Golden))
	}
	fmt.Fprintln(f.Writer, line)
	for _, e := range sr.Errors {
		fmt.Fprintf(f.Writer, "  %s\n", e)
	}
	if sr.RunID != "" {
		f.VerboseLog("  run %s digest %s", sr.RunID, sr.Digest)
	}
}

func outputRunSummary(f *OutputFormatter, summary RunSummary) error {
	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: summary}
		if summary.Failed > 0 {
			resp.Status = "error"
			resp.Error = &CLIError{
				Code:    "E_SCENARIO_FAILED",
				Message: fmt.Sprintf("%d scenario(s) failed", summary.Failed),
			}
		}
		if err := f.JSON(resp); err != nil {
			return err
		}
	} else {
		if summary.Total == 0 {
			fmt.Fprintln(f.Writer, "No scenarios found.")
			return nil
		}
		fmt.Fprintln(f.Writer)
		fmt.Fprintf(f.Writer, "Summary: %d passed, %d failed, %d total\n", summary.Passed, summary.Failed, summary.Total)
	}

	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d scenario(s) failed", summary.Failed))
	}
	return nil
}
