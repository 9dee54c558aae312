package cli

import (
	"bufio"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/donizo-labs/truthengine/internal/engineerr"
	validatepkg "github.com/donizo-labs/truthengine/internal/validate"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	EventsPath string
	All        bool
}

// LineError reports a single INVALID_EVENT failure for JSON output.
type LineError struct {
	Line    int    `json:"line"`
	Message string `json:"message"`
}

// ValidateResult is the JSON payload for a validate run.
type ValidateResult struct {
	Valid  bool        `json:"valid"`
	Lines  int         `json:"lines"`
	Errors []LineError `json:"errors,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Check an event log for INVALID_EVENT failures without running the pipeline",
		Long: `Run the Event Validator over every line of an event log, without
touching any state or audit file.

By default, reports only the first invalid line found. With --all, every
invalid line is reported. Exit 0 iff every line is valid.

Example:
  truthengine validate --events events.jsonl
  truthengine validate --events events.jsonl --all --format json`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidateEvents(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.EventsPath, "events", "", "path to newline-delimited JSON event log (required)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "report every invalid line, not just the first")
	_ = cmd.MarkFlagRequired("events")

	return cmd
}

func runValidateEvents(opts *ValidateOptions, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
		TraceID:   uuid.NewString(),
	}

	f, err := os.Open(opts.EventsPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open events file", err)
	}
	defer f.Close()
	formatter.VerboseLog("validating %q (all=%t)", opts.EventsPath, opts.All)

	var lineErrors []LineError
	lineNum := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	for scanner.Scan() {
		lineNum++
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		if _, err := validatepkg.Line(raw, lineNum); err != nil {
			if !engineerr.HasCode(err, engineerr.CodeInvalidEvent) {
				return WrapExitError(ExitCommandError, "validator failed", err)
			}
			formatter.VerboseLog("line %d invalid: %s", lineNum, err.Error())
			lineErrors = append(lineErrors, LineError{Line: lineNum, Message: err.Error()})
			if !opts.All {
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return WrapExitError(ExitCommandError, "failed to scan events file", err)
	}

	result := ValidateResult{
		Valid:  len(lineErrors) == 0,
		Lines:  lineNum,
		Errors: lineErrors,
	}
	formatter.VerboseLog("scanned %d line(s), %d invalid", result.Lines, len(result.Errors))

	if opts.Format == "json" {
		if err := outputValidateJSON(formatter, result); err != nil {
			return err
		}
	} else {
		outputValidateText(formatter, result)
	}

	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("validation failed with %d error(s)", len(result.Errors)))
	}
	return nil
}

func outputValidateJSON(formatter *OutputFormatter, result ValidateResult) error {
	if !result.Valid {
		return formatter.Error(string(engineerr.CodeInvalidEvent), "one or more events failed validation", result)
	}
	return formatter.Success(result)
}

func outputValidateText(formatter *OutputFormatter, result ValidateResult) {
	w := formatter.Writer
	if result.Valid {
		fmt.Fprintf(w, "All %d line(s) valid.\n", result.Lines)
		return
	}
	fmt.Fprintln(w, "Validation failed:")
	for _, le := range result.Errors {
		fmt.Fprintf(w, "  line %d: %s\n", le.Line, le.Message)
	}
}
