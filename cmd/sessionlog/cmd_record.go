package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/sessionlog/internal/state"
)

func init() {
	rootCmd.AddCommand(recordCmd)
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Queue a finished session (SessionEnd hook)",
	Long: `Read a SessionEnd hook payload from stdin and write a pending session
record for the next run. Payloads without a transcript, with a transcript
outside the allowed directory or with a missing transcript are skipped.

Hook configuration:

  "hooks": {"SessionEnd": [{"hooks": [{"type": "command", "command": "sessionlog record"}]}]}`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		setupLogging(cfg)

		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read hook input: %w", err)
		}
		var in state.HookInput
		if err := json.Unmarshal(data, &in); err != nil {
			return fmt.Errorf("parse hook input: %w", err)
		}

		cwd, _ := os.Getwd()
		rec, err := state.NewRecordFromHook(in, os.Getenv("HOME"), cfg.AllowedTranscriptRoot, cwd, time.Now())
		switch {
		case errors.Is(err, state.ErrNoTranscriptPath),
			errors.Is(err, state.ErrOutsideAllowedRoot),
			errors.Is(err, state.ErrTranscriptMissing):
			slog.Info("session not recorded", "session_id", in.SessionID, "reason", err)
			return nil
		case err != nil:
			return err
		}

		records, _ := newStores(cfg)
		name, err := records.Save(context.Background(), rec)
		if err != nil {
			return fmt.Errorf("save session record: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Session saved: %s\n", name)
		return nil
	},
}
