package cli

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/donizo-labs/truthengine/internal/config"
	"github.com/donizo-labs/truthengine/internal/engineerr"
	"github.com/donizo-labs/truthengine/internal/replay"
	"github.com/donizo-labs/truthengine/internal/statestore"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	EventsPath string
	StatePath  string
	AuditPath  string
	VerifyPath string
	ConfigPath string
}

// ReplayResult is the JSON payload for a replay run.
type ReplayResult struct {
	EventsRead   int    `json:"events_read"`
	Processed    int    `json:"processed"`
	ExpectedHash string `json:"expected_hash"`
	ActualHash   string `json:"actual_hash"`
	Match        bool   `json:"match"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Replay an event log from empty state and verify its fingerprint",
		Long: `Re-run the Event Pipeline from an empty state over an event log and
verify that the resulting state fingerprint matches an expected value.

The expected hash is read from --verify (a file containing the hex digest,
surrounding whitespace stripped). Exit 0 iff the fingerprints agree; exit
non-zero with REPLAY_MISMATCH otherwise.

Example:
  truthengine replay --events events.jsonl --state state.json --audit audit.jsonl --verify expected.hash`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.EventsPath, "events", "", "path to newline-delimited JSON event log (required)")
	cmd.Flags().StringVar(&opts.StatePath, "state", "", "path to write the resulting state file (required)")
	cmd.Flags().StringVar(&opts.AuditPath, "audit", "", "path to write the audit log to (required)")
	cmd.Flags().StringVar(&opts.VerifyPath, "verify", "", "path to a file containing the expected state hash (required)")
	cmd.Flags().StringVar(&opts.ConfigPath, "config", "", "path to an optional engine config override file")
	_ = cmd.MarkFlagRequired("events")
	_ = cmd.MarkFlagRequired("state")
	_ = cmd.MarkFlagRequired("audit")
	_ = cmd.MarkFlagRequired("verify")

	return cmd
}

func runReplay(opts *ReplayOptions, cmd *cobra.Command) error {
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

	expectedRaw, err := os.ReadFile(opts.VerifyPath)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read expected hash file", err)
	}
	expectedHash := strings.TrimSpace(string(expectedRaw))
	formatter.VerboseLog("expecting state hash %s from %q", expectedHash, opts.VerifyPath)

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

	slog.Info("replaying from empty state", "events", opts.EventsPath, "verify", opts.VerifyPath)
	formatter.VerboseLog("replaying %q from empty state, writing audit to %q", opts.EventsPath, opts.AuditPath)
	verifyResult, verifyErr := replay.Verify(eventsFile, auditFile, expectedHash, params)

	if err := auditFile.Sync(); err != nil {
		return WrapExitError(ExitCommandError, "failed to sync audit file", err)
	}

	result := ReplayResult{
		EventsRead:   verifyResult.Stats.Read,
		Processed:    verifyResult.Stats.Processed,
		ExpectedHash: verifyResult.ExpectedHash,
		ActualHash:   verifyResult.ActualHash,
		Match:        verifyResult.Match,
	}

	if verifyErr != nil && !engineerr.HasCode(verifyErr, engineerr.CodeReplayMismatch) {
		return WrapExitError(ExitCommandError, "replay run failed", verifyErr)
	}

	// Persist the resulting state regardless of match, so a mismatch can be
	// inspected the same way a successful run's state can.
	if verifyResult.State != nil {
		if err := statestore.Save(opts.StatePath, verifyResult.State); err != nil {
			return WrapExitError(ExitCommandError, "failed to save replayed state", err)
		}
		formatter.VerboseLog("saved replayed state to %q (hash %s)", opts.StatePath, verifyResult.State.StateHash)
	}

	if opts.Format == "json" {
		if err := outputReplayJSON(formatter, result); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, result)
	}

	if !result.Match {
		return NewExitError(ExitFailure, fmt.Sprintf("replay mismatch: expected %s, got %s", result.ExpectedHash, result.ActualHash))
	}
	return nil
}

func outputReplayJSON(formatter *OutputFormatter, result ReplayResult) error {
	if !result.Match {
		return formatter.Error(string(engineerr.CodeReplayMismatch), "replay mismatch", result)
	}
	return formatter.Success(result)
}

func outputReplayText(formatter *OutputFormatter, result ReplayResult) {
	w := formatter.Writer
	fmt.Fprintf(w, "Replayed %d event(s), %d processed.\n", result.EventsRead, result.Processed)
	fmt.Fprintf(w, "Expected hash: %s\n", result.ExpectedHash)
	fmt.Fprintf(w, "Actual hash:   %s\n", result.ActualHash)
	if result.Match {
		fmt.Fprintln(w, "Replay verified: state hash matches.")
		return
	}
	fmt.Fprintln(w, "Replay mismatch: state hash does not match.")
}
