package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/roach88/affinity/internal/failure"
	"github.com/roach88/affinity/internal/journal"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Database string
	RunID    string
	Limit    int
}

// TraceResult is the trace command's payload for a single run.
type TraceResult struct {
	Run   journal.Run        `json:"run"`
	Items []journal.WorkItem `json:"work_items"`
	Stats TraceStats         `json:"stats"`
}

// TraceStats summarises a run's work items.
type TraceStats struct {
	WorkItems int   `json:"work_items"`
	Failed    int   `json:"failed"`
	Panics    int   `json:"panics"`
	TotalNs   int64 `json:"total_ns"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "Show journalled runs and their work items",
		Long: `Read the journal written by "affinity run --db".

Without --run, lists runs oldest first. With --run, shows every loop work
item the run executed, in seq order.

Examples:
  affinity trace --db runs.db
  affinity trace --db runs.db --limit 5
  affinity trace --db runs.db --run 0192f0c4-... --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(cmd.Context(), opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "journal database (defaults to journal from config)")
	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to show")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "list only the most recent N runs")

	return cmd
}

func runTrace(ctx context.Context, opts *TraceOptions, cmd *cobra.Command) error {
	if ctx == nil {
		ctx = context.Background()
	}
	dbPath := opts.Database
	if dbPath == "" && opts.Config != nil {
		dbPath = opts.Config.Journal
	}
	if dbPath == "" {
		return NewExitError(ExitCommandError, "no journal given (--db or journal in config)")
	}

	j, err := journal.Open(dbPath, journal.WithLogger(opts.logger()))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open journal", err)
	}
	defer j.Close()

	f := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	if opts.RunID == "" {
		runs, err := j.ListRuns(ctx, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		return outputRuns(f, runs)
	}

	run, err := j.ReadRun(ctx, opts.RunID)
	if errors.Is(err, journal.ErrRunNotFound) {
		return WrapExitError(ExitFailure, "run not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	items, err := j.ReadWorkItems(ctx, run.ID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read work items", err)
	}

	return outputTrace(f, TraceResult{Run: run, Items: items, Stats: traceStats(items)})
}

func traceStats(items []journal.WorkItem) TraceStats {
	stats := TraceStats{WorkItems: len(items)}
	for _, it := range items {
		stats.TotalNs += it.Duration.Nanoseconds()
		if it.Error != "" {
			stats.Failed++
		}
		if it.ErrorCode == string(failure.CodePanic) {
			stats.Panics++
		}
	}
	return stats
}

func runOutcome(r journal.Run) string {
	if r.Pass == nil {
		return "RUNNING"
	}
	return statusMark(*r.Pass)
}

func outputRuns(f *OutputFormatter, runs []journal.Run) error {
	if f.Format == "json" {
		return f.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(f.Writer, "No runs recorded.")
		return nil
	}

	tw := tabwriter.NewWriter(f.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSCENARIO\tFIXTURE\tSTARTED\tRESULT")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Scenario, r.Fixture, r.StartedAt.Format("2006-01-02 15:04:05"), runOutcome(r))
	}
	return tw.Flush()
}

func outputTrace(f *OutputFormatter, tr TraceResult) error {
	if f.Format == "json" {
		return f.Success(tr)
	}

	w := f.Writer
	fmt.Fprintf(w, "Run %s  %s (%s)  %s\n", tr.Run.ID, tr.Run.Scenario, tr.Run.Fixture, runOutcome(tr.Run))
	if tr.Run.Digest != "" {
		fmt.Fprintf(w, "Digest %s\n", tr.Run.Digest)
	}
	fmt.Fprintln(w)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tLABEL\tDURATION\tERROR")
	for _, it := range tr.Items {
		errText := ""
		if it.Error != "" {
			errText = it.Error
			if it.ErrorCode != "" {
				errText = "[" + it.ErrorCode + "] " + errText
			}
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", it.Seq, it.Label, it.Duration, errText)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(w, "\n%d work item(s), %d failed, %d panicked\n", tr.Stats.WorkItems, tr.Stats.Failed, tr.Stats.Panics)
	return nil
}
