package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/affinity/internal/harness"
)

// FileValidation is the validation outcome of one scenario file.
type FileValidation struct {
	File   string                    `json:"file"`
	Valid  bool                      `json:"valid"`
	Errors []harness.ValidationError `json:"errors,omitempty"`
}

// ValidationResult is the validate command's payload.
type ValidationResult struct {
	Valid bool             `json:"valid"`
	Files []FileValidation `json:"files"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <scenario-file>...",
		Short: "Validate scenario files without running them",
		Long: `Check scenario files against the scenario schema and the runner's
requirements (known fixture, per-action fields, assertion shapes).

Error codes:
  E201 - not valid YAML
  E202 - violates the scenario schema
  E203 - schema-valid but not runnable`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args, cmd)
		},
	}
}

func runValidate(opts *RootOptions, files []string, cmd *cobra.Command) error {
	f := newFormatter(opts, cmd.OutOrStdout(), cmd.ErrOrStderr())
	result := ValidationResult{Valid: true, Files: make([]FileValidation, 0, len(files))}

	for _, file := range files {
		fv := FileValidation{File: file, Valid: true}

		data, err := os.ReadFile(file)
		if err != nil {
			return WrapExitError(ExitCommandError, fmt.Sprintf("failed to read %s", file), err)
		}
		f.VerboseLog("validating %s", file)

		if errs := harness.ValidateScenario(data); len(errs) > 0 {
			fv.Valid = false
			fv.Errors = errs
			result.Valid = false
		}
		result.Files = append(result.Files, fv)
	}

	if f.Format == "json" {
		resp := CLIResponse{Status: "ok", Data: result}
		if !result.Valid {
			resp.Status = "error"
			resp.Error = &CLIError{Code: "E_VALIDATION_FAILED", Message: "one or more scenario files are invalid"}
		}
		if err := f.JSON(resp); err != nil {
			return err
		}
	} else {
		for _, fv := range result.Files {
			fmt.Fprintf(f.Writer, "%s %s\n", statusMark(fv.Valid), fv.File)
			for _, e := range fv.Errors {
				fmt.Fprintf(f.Writer, "  %s\n", e.Error())
			}
		}
	}

	if !result.Valid {
		return NewExitError(ExitFailure, "validation failed")
	}
	return nil
}
