// internal/state/ledger_test.go
package state

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/sessionlog/internal/types"
)

func TestLedger(t *testing.T) {
	ledger := NewLedger(filepath.Join(t.TempDir(), "data", "runs.jsonl"))
	ctx := context.Background()

	// Empty ledger
	entries, err := ledger.Tail(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty ledger, got %d", len(entries))
	}

	runID := types.NewRunID()
	for _, date := range []string{"2025-01-13", "2025-01-14", "2025-01-15"} {
		entry := &types.LedgerEntry{
			RunID:    runID,
			Mode:     "backfill",
			Date:     date,
			Sessions: 2,
			Success:  true,
			Steps:    []types.StepResult{{Step: "summary", Status: types.StepOK}},
			At:       time.Now(),
		}
		if err := ledger.Append(ctx, entry); err != nil {
			t.Fatal(err)
		}
	}

	entries, err = ledger.Tail(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Seq != 2 || entries[1].Seq != 3 {
		t.Errorf("expected seqs 2,3, got %d,%d", entries[0].Seq, entries[1].Seq)
	}
	if entries[1].Date != "2025-01-15" || entries[1].RunID != runID {
		t.Errorf("unexpected last entry: %+v", entries[1])
	}
	if len(entries[1].Steps) != 1 || entries[1].Steps[0].Status != types.StepOK {
		t.Errorf("expected steps to round-trip, got %+v", entries[1].Steps)
	}

	all, err := ledger.Tail(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 3 {
		t.Errorf("expected all 3 entries with limit 0, got %d", len(all))
	}
}
