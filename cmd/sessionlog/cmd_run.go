package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/sessionlog/internal/batch"
)

func init() {
	rootCmd.AddCommand(runCmd, backfillCmd)
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process the sessions of the current window",
	Long: `Process the pending sessions that ended inside the current window.
The window for a day runs from 21:01 of the previous day to 21:00; before
21:00 the current window is yesterday's.`,
	Args: cobra.NoArgs,
	RunE: runCurrent,
}

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Process every pending session, one calendar date at a time",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runBatch(func(ctx context.Context, a *app) (*batch.Report, error) {
			return a.processor.Backfill(ctx)
		})
	},
}

func runCurrent(cmd *cobra.Command, args []string) error {
	return runBatch(func(ctx context.Context, a *app) (*batch.Report, error) {
		return a.processor.RunCurrent(ctx, time.Now())
	})
}

// runBatch wires the app, runs fn until it returns or the process is
// interrupted, and prints the report. A report with a failed day is an error.
func runBatch(fn func(ctx context.Context, a *app) (*batch.Report, error)) error {
	cfg := loadConfig()
	setupLogging(cfg)

	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	report, err := fn(ctx, a)
	if report != nil {
		fmt.Fprintln(os.Stdout, report.String())
	}
	if err != nil {
		return err
	}
	if report.Failed() {
		return errors.New("one or more days failed")
	}
	return nil
}
