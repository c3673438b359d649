package batch

import (
	"fmt"
	"strings"
	"time"

	"github.com/user/sessionlog/internal/types"
)

const (
	StepSummary       = "summary"
	StepDailyNote     = "daily_note"
	StepKnowledgeNote = "knowledge_note"
	StepMove          = "move"
)

const (
	ModeRun      = "run"
	ModeBackfill = "backfill"
)

// DayResult is the outcome of processing one target date. A day succeeds
// when its summary was produced; later steps may still have failed and are
// reported individually.
type DayResult struct {
	Date     string
	Sessions int
	Steps    []types.StepResult
	Success  bool
	Err      error
}

func (d *DayResult) add(step string, status types.StepStatus, detail string) {
	d.Steps = append(d.Steps, types.StepResult{Step: step, Status: status, Detail: detail})
}

// Step returns the result recorded for step, if any.
func (d *DayResult) Step(step string) (types.StepResult, bool) {
	for _, s := range d.Steps {
		if s.Step == step {
			return s, true
		}
	}
	return types.StepResult{}, false
}

func (d *DayResult) ledgerEntry(runID types.RunID, mode string, at time.Time) *types.LedgerEntry {
	return &types.LedgerEntry{
		RunID:    runID,
		Mode:     mode,
		Date:     d.Date,
		Sessions: d.Sessions,
		Success:  d.Success,
		Steps:    d.Steps,
		At:       at,
	}
}

// Report collects the day results of one invocation.
type Report struct {
	RunID types.RunID
	Mode  string
	Days  []*DayResult
}

// Failed reports whether any processed day failed.
func (r *Report) Failed() bool {
	return r.FailedCount() > 0
}

func (r *Report) FailedCount() int {
	n := 0
	for _, d := range r.Days {
		if !d.Success {
			n++
		}
	}
	return n
}

func (r *Report) SucceededCount() int {
	return len(r.Days) - r.FailedCount()
}

// String renders a short human-readable summary, used for notifications.
func (r *Report) String() string {
	var b strings.Builder
	if len(r.Days) == 0 {
		b.WriteString("sessionlog " + r.Mode + ": no sessions to process")
		return b.String()
	}
	fmt.Fprintf(&b, "sessionlog %s: %d succeeded, %d failed", r.Mode, r.SucceededCount(), r.FailedCount())
	for _, d := range r.Days {
		status := "ok"
		if !d.Success {
			status = "FAILED"
		}
		fmt.Fprintf(&b, "\n%s (%d sessions): %s", d.Date, d.Sessions, status)
		for _, s := range d.Steps {
			if s.Status == types.StepFailed {
				fmt.Fprintf(&b, "\n  %s failed: %s", s.Step, s.Detail)
			}
		}
	}
	return b.String()
}
