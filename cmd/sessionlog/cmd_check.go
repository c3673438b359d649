package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"github.com/user/sessionlog/internal/batch"
	"github.com/user/sessionlog/internal/config"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("39"))

	keyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("252"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("242"))

	countStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("214"))
)

func init() {
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Show config, the current window and what a run would process",
	Long: `Print the resolved configuration (secrets masked), the current window,
how many pending sessions fall inside it and which dates a backfill would
process. Nothing is summarized, written or moved.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := readConfig()
		setupLogging(cfg)

		ctx := context.Background()
		records, _ := newStores(cfg)
		plan, err := batch.NewProcessor(records, nil, nil).Plan(ctx, time.Now())
		if err != nil {
			return err
		}
		processed, err := records.CountProcessed(ctx)
		if err != nil {
			return fmt.Errorf("count processed records: %w", err)
		}

		values, err := config.ListValues(cfg, true)
		if err != nil {
			return fmt.Errorf("list config: %w", err)
		}

		out := os.Stdout
		fmt.Fprintln(out, titleStyle.Render("Configuration"))
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			fmt.Fprintln(out, dimStyle.Render(cfgPath+" (not found, showing defaults)"))
		} else {
			fmt.Fprintln(out, dimStyle.Render(cfgPath))
		}
		for _, k := range config.SortedKeys(values) {
			fmt.Fprintf(out, "  %s = %v\n", keyStyle.Render(k), values[k])
		}

		fmt.Fprintln(out)
		fmt.Fprintln(out, titleStyle.Render("Current window"))
		fmt.Fprintf(out, "  target  %s\n", plan.Target)
		fmt.Fprintf(out, "  start   %s\n", plan.Start.Format(time.DateTime))
		fmt.Fprintf(out, "  end     %s\n", plan.End.Format(time.DateTime))
		fmt.Fprintf(out, "  in range %s of %d pending\n", countStyle.Render(fmt.Sprint(plan.InWindow)), plan.Pending)
		fmt.Fprintf(out, "  %s\n", dimStyle.Render(fmt.Sprintf("%d already processed", processed)))

		fmt.Fprintln(out)
		fmt.Fprintln(out, titleStyle.Render("Backfill targets"))
		if len(plan.Backfill) == 0 {
			fmt.Fprintln(out, dimStyle.Render("  none"))
		}
		for _, dc := range plan.Backfill {
			fmt.Fprintf(out, "  %s  %s sessions\n", dc.Date, countStyle.Render(fmt.Sprint(dc.Sessions)))
		}
		return nil
	},
}
