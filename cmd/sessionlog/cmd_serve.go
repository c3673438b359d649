package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/user/sessionlog/internal/scheduler"
	"github.com/user/sessionlog/internal/webhook"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the daily batch on a schedule",
	Long: `Start the sessionlog daemon. The batch for the current window runs on
the configured cron schedule. With http.enabled a small HTTP API is served,
and with a Telegram token the bot answers /status, /run and /backfill.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func pidPath(dataDir string) string {
	return filepath.Join(dataDir, "sessionlog.pid")
}

func writePIDFile(dataDir string) (string, error) {
	path := pidPath(dataDir)
	pid := os.Getpid()
	if err := os.WriteFile(path, []byte(strconv.Itoa(pid)+"\n"), 0644); err != nil {
		return "", fmt.Errorf("write PID file: %w", err)
	}
	return path, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()
	setupLogging(cfg)

	if err := scheduler.Validate(cfg.Schedule); err != nil {
		return err
	}

	a, err := newApp(cfg)
	if err != nil {
		return err
	}

	pidFile, err := writePIDFile(cfg.DataDir)
	if err != nil {
		return err
	}
	defer os.Remove(pidFile)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sched := scheduler.New(cfg.Schedule, func() {
		report, err := a.processor.RunCurrent(ctx, time.Now())
		if err != nil {
			slog.Error("scheduled run failed", "error", err)
			return
		}
		if report.Failed() {
			slog.Warn("scheduled run finished with failures", "failed", report.FailedCount())
		}
	})
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	slog.Info("sessionlog started",
		"data_dir", cfg.DataDir,
		"queue_dir", cfg.QueueDir,
		"schedule", cfg.Schedule,
		"next_run", sched.Next(),
		"llm_provider", cfg.LLM.Provider,
		"llm_model", cfg.LLM.Model,
		"pid_file", pidFile,
	)

	if a.telegram != nil {
		go a.telegram.Start(ctx)
		slog.Info("telegram adapter started")
	} else {
		slog.Info("telegram adapter disabled (no token)")
	}

	if cfg.HTTP.Enabled {
		httpServer := &http.Server{
			Addr:    cfg.HTTP.Listen,
			Handler: webhook.NewServer(a.processor, a.ledger),
		}
		go func() {
			slog.Info("webhook server started", "listen", cfg.HTTP.Listen)
			if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("webhook server error", "error", err)
			}
		}()
		go func() {
			<-ctx.Done()
			httpServer.Close()
		}()
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP)

	for {
		sig := <-sigChan
		if sig == syscall.SIGHUP {
			slog.Info("received SIGHUP, restarting")
			execPath, err := os.Executable()
			if err != nil {
				slog.Error("failed to get executable path", "error", err)
				continue
			}
			os.Remove(pidFile)
			if err := syscall.Exec(execPath, os.Args, os.Environ()); err != nil {
				slog.Error("failed to re-exec", "error", err)
				if _, writeErr := writePIDFile(cfg.DataDir); writeErr != nil {
					slog.Error("failed to re-write PID file", "error", writeErr)
				}
				continue
			}
		}
		slog.Info("shutting down", "signal", sig)
		cancel()
		return nil
	}
}
