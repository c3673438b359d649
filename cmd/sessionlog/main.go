package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/sessionlog/internal/config"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:   "sessionlog",
	Short: "Summarize the day's Claude sessions into an Obsidian daily note",
	Long: `sessionlog collects the session records left by the SessionEnd hook,
asks a language model for a summary of each day and merges it into the
daily note of an Obsidian vault through the Local REST API.

Without a subcommand it runs the batch for the current window.`,
	SilenceUsage: true,
	Args:         cobra.NoArgs,
	RunE:         runCurrent,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config",
		filepath.Join(os.Getenv("HOME"), ".sessionlog", "config.json"), "config file path")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the config named by --config and exits on failure.
func loadConfig() *config.Config {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

// readConfig is loadConfig for commands that must not write anything.
func readConfig() *config.Config {
	cfg, err := config.Read(cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read config: %v\n", err)
		os.Exit(1)
	}
	return cfg
}

func setupLogging(cfg *config.Config) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}
