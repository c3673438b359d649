package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/user/sessionlog/internal/config"
	"github.com/user/sessionlog/internal/scheduler"
)

func init() {
	rootCmd.AddCommand(setupCmd)
}

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactive setup wizard",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		scanner := bufio.NewScanner(os.Stdin)

		fmt.Println("sessionlog setup")
		fmt.Println("Press Enter to accept the default value shown in brackets.")
		fmt.Println()

		cfg.LLM.Provider = prompt(scanner, "LLM provider (ollama/openai)", cfg.LLM.Provider)
		cfg.LLM.BaseURL = prompt(scanner, "LLM base URL", cfg.LLM.BaseURL)
		if cfg.LLM.Provider == "openai" {
			cfg.LLM.APIKey = prompt(scanner, "LLM API key", cfg.LLM.APIKey)
		}
		cfg.LLM.Model = prompt(scanner, "LLM model name", cfg.LLM.Model)
		cfg.Summary.Language = prompt(scanner, "Summary language", cfg.Summary.Language)

		cfg.Obsidian.BaseURL = prompt(scanner, "Obsidian Local REST API URL", cfg.Obsidian.BaseURL)
		cfg.Obsidian.APIKey = prompt(scanner, "Obsidian API key", cfg.Obsidian.APIKey)
		cfg.Paths.DailyNote = prompt(scanner, "Daily note path ({year}, {month}, {date})", cfg.Paths.DailyNote)
		cfg.Paths.DailyTemplate = prompt(scanner, "Daily note template", cfg.Paths.DailyTemplate)
		cfg.DailyNote.Section = prompt(scanner, "Daily note section heading", cfg.DailyNote.Section)

		cfg.Schedule = prompt(scanner, "Schedule for serve (cron)", cfg.Schedule)
		if err := scheduler.Validate(cfg.Schedule); err != nil {
			return err
		}
		cfg.Telegram.Token = prompt(scanner, "Telegram bot token (optional)", cfg.Telegram.Token)
		cfg.Notify.SessionKey = prompt(scanner, "Notify target, e.g. telegram:<chat id> (optional)", cfg.Notify.SessionKey)

		if err := config.Save(cfgPath, cfg); err != nil {
			return fmt.Errorf("save config: %w", err)
		}

		fmt.Println()
		fmt.Println("Configuration saved to", cfgPath)
		return nil
	},
}

// prompt displays a labeled prompt with a default value and reads user input.
// If the user enters nothing, the default is returned.
func prompt(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	if scanner.Scan() {
		input := strings.TrimSpace(scanner.Text())
		if input != "" {
			return input
		}
	}
	return defaultVal
}
