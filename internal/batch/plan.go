package batch

import (
	"context"
	"fmt"
	"time"

	"github.com/user/sessionlog/internal/window"
)

// DateCount is the number of pending records on one calendar date.
type DateCount struct {
	Date     string `json:"date"`
	Sessions int    `json:"sessions"`
}

// Plan describes what a run and a backfill would process, without
// processing anything.
type Plan struct {
	Window   window.Window `json:"-"`
	Start    time.Time     `json:"start"`
	End      time.Time     `json:"end"`
	Target   string        `json:"target"`
	Pending  int           `json:"pending"`
	InWindow int           `json:"in_window"`
	Backfill []DateCount   `json:"backfill"`
}

// Plan reports the current window and the backfill targets at now.
func (p *Processor) Plan(ctx context.Context, now time.Time) (*Plan, error) {
	pending, err := p.records.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending records: %w", err)
	}

	w := window.Current(now.In(p.loc))
	plan := &Plan{
		Window:   w,
		Start:    w.Start,
		End:      w.End,
		Target:   w.Key(),
		Pending:  len(pending),
		InWindow: len(window.Select(pending, w)),
		Backfill: []DateCount{},
	}

	groups := window.GroupByCalendarDate(pending, p.loc)
	for _, key := range window.SortedKeys(groups) {
		plan.Backfill = append(plan.Backfill, DateCount{Date: key, Sessions: len(groups[key])})
	}
	return plan, nil
}
