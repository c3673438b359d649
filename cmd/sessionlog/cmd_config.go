package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/user/sessionlog/internal/config"
	"github.com/user/sessionlog/internal/scheduler"
)

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configListCmd, configGetCmd, configSetCmd, configPathCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all configuration values (secrets masked)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		values, err := config.ListValues(cfg, true)
		if err != nil {
			return fmt.Errorf("list config: %w", err)
		}

		for _, k := range config.SortedKeys(values) {
			fmt.Fprintf(os.Stdout, "%s = %v\n", k, values[k])
		}
		return nil
	},
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Get a configuration value",
	Example: `  sessionlog config get paths.daily_note
  sessionlog config get llm.model`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		val, err := config.GetValue(cfgPath, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(os.Stdout, val)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a configuration value",
	Example: `  sessionlog config set daily_note.section "Session Talk"
  sessionlog config set schedule "5 21 * * *"
  sessionlog config set retry.max_attempts 3`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if key == "schedule" {
			if err := scheduler.Validate(value); err != nil {
				return err
			}
		}
		if err := config.SetValue(cfgPath, key, value); err != nil {
			return err
		}
		display := value
		if config.IsSecretKey(key) {
			display = "***"
		}
		fmt.Fprintf(os.Stdout, "Set %s = %s\n", key, display)
		return nil
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file and queue locations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		fmt.Fprintf(os.Stdout, "config     %s\n", cfgPath)
		fmt.Fprintf(os.Stdout, "pending    %s\n", cfg.PendingDir())
		fmt.Fprintf(os.Stdout, "processed  %s\n", cfg.ProcessedDir())
		fmt.Fprintf(os.Stdout, "ledger     %s\n", cfg.LedgerPath())
		return nil
	},
}
