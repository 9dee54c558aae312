package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/donizo-labs/truthengine/internal/config"
	"github.com/donizo-labs/truthengine/internal/pipeline"
	"github.com/donizo-labs/truthengine/internal/statestore"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	EventsPath string
	StatePath  string
	AuditPath  string
	ConfigPath string
}

// RunResult is the JSON payload for a successful run.
type RunResult struct {
	EventsRead int    `json:"events_read"`
	Duplicate  int    `json:"duplicate"`
	Invalid    int    `json:"invalid"`
	Processed  int    `json:"processed"`
	StateHash  string `json:"state_hash"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process an event log through the pricing pipeline",
		Long: `Run the Event Pipeline over a newline-delimited JSON event log.

Loads persisted state (or starts fresh if none exists), processes every
event in (timestamp, event_id) order through the Per-Item Cache and Rule
Evaluator, writes one canonical audit line per non-duplicate event, and
persists the updated state atomically.

Example:
  truthengine run --events events.jsonl --state state.json --audit audit.jsonl
  truthengine run --events events.jsonl --state state.json --audit audit.jsonl --config override.yaml`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.EventsPath, "events", "", "path to newline-delimited JSON event log (required)")
	cmd.Flags().StringVar(&opts.StatePath, "state", "", "path to the persisted state file (required)")
	cmd.Flags().StringVar(&opts.AuditPath, "audit", "", "path to write the audit log to (required)")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to an optional engine config override file")
	_ = cmd.MarkFlagRequired("events")
	_ = cmd.MarkFlagRequired("state")
	_ = cmd.MarkFlagRequired("audit")

	return cmd
}

func runPipeline(opts *RunOptions, cmd *cobra.Command) error {
	configureLogging(opts.Verbose)

	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
		TraceID:   uuid.NewString(),
	}

	params, err := config.Load(opts.ConfigPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config override", err)
	}
	formatter.VerboseLog("loaded config override from %q", opts.ConfigPath)

	slog.Info("loading state", "path", opts.StatePath)
	state, err := statestore.Load(opts.StatePath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load state", err)
	}
	formatter.VerboseLog("loaded state from %q (%d item(s) known)", opts.StatePath, len(state.Items))

	eventsFile, err := os.Open(opts.EventsPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open events file", err)
	}
	defer eventsFile.Close()

	auditFile, err := os.Create(opts.AuditPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create audit file", err)
	}
	defer auditFile.Close()

	slog.Info("running pipeline", "events", opts.EventsPath, "state", opts.StatePath, "audit", opts.AuditPath)
	formatter.VerboseLog("running pipeline over %q, writing audit to %q", opts.EventsPath, opts.AuditPath)
	stats, err := pipeline.Run(eventsFile, auditFile, state, params)
	if err != nil {
		return WrapExitError(ExitFailure, "pipeline run failed", err)
	}
	formatter.VerboseLog("pipeline finished: %d read, %d duplicate, %d invalid, %d processed", stats.Read, stats.Duplicate, stats.Invalid, stats.Processed)

	if err := auditFile.Sync(); err != nil {
		return WrapExitError(ExitCommandError, "failed to sync audit file", err)
	}

	slog.Info("saving state", "path", opts.StatePath)
	if err := statestore.Save(opts.StatePath, state); err != nil {
		return WrapExitError(ExitCommandError, "failed to save state", err)
	}
	formatter.VerboseLog("saved state to %q (hash %s)", opts.StatePath, state.StateHash)

	result := RunResult{
		EventsRead: stats.Read,
		Duplicate:  stats.Duplicate,
		Invalid:    stats.Invalid,
		Processed:  stats.Processed,
		StateHash:  state.StateHash,
	}

	if opts.Format == "json" {
		return formatter.Success(result)
	}
	fmt.Fprintf(formatter.Writer, "Processed %d event(s) (%d duplicate, %d invalid).\n", result.Processed, result.Duplicate, result.Invalid)
	fmt.Fprintf(formatter.Writer, "State hash: %s\n", result.StateHash)
	return nil
}

// configureLogging sets the default slog handler, gated by verbose.
func configureLogging(verbose bool) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	slog.SetDefault(slog.New(handler))
}
