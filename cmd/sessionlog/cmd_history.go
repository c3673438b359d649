package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/user/sessionlog/internal/types"
)

var historyLimit int

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of entries to show (0 for all)")
	rootCmd.AddCommand(historyCmd)
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently processed days",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		_, ledger := newStores(cfg)

		entries, err := ledger.Tail(context.Background(), historyLimit)
		if err != nil {
			return fmt.Errorf("read run ledger: %w", err)
		}
		if len(entries) == 0 {
			fmt.Println("No runs recorded.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tAT\tMODE\tDATE\tSESSIONS\tRESULT\tSTEPS")
		for _, e := range entries {
			result := "ok"
			if !e.Success {
				result = "FAILED"
			}
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%d\t%s\t%s\n",
				e.Seq,
				e.At.Local().Format("2006-01-02 15:04:05"),
				e.Mode,
				e.Date,
				e.Sessions,
				result,
				formatSteps(e.Steps),
			)
		}
		return w.Flush()
	},
}

func formatSteps(steps []types.StepResult) string {
	parts := make([]string, 0, len(steps))
	for _, s := range steps {
		parts = append(parts, s.Step+"="+string(s.Status))
	}
	return strings.Join(parts, ",")
}
