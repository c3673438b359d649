// Package batch drives the daily pipeline: select pending session records,
// summarize each target date, merge the result into the vault and retire
// the records.
package batch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/user/sessionlog/internal/note"
	"github.com/user/sessionlog/internal/summary"
	"github.com/user/sessionlog/internal/types"
	"github.com/user/sessionlog/internal/window"
)

// Summarizer produces a structured summary for one day's records.
type Summarizer interface {
	Summarize(ctx context.Context, date time.Time, records []*types.SessionRecord) (*summary.Summary, error)
}

// NoteWriter merges a summary into the vault.
type NoteWriter interface {
	AppendDailyLog(ctx context.Context, s *summary.Summary, date time.Time) (note.Outcome, error)
	CreateKnowledgeNote(ctx context.Context, s *summary.Summary, date time.Time) (string, error)
}

// Deliverer sends a message to a destination named by sessionKey.
type Deliverer interface {
	Deliver(sessionKey, message string) error
}

// Processor runs batches. Only one batch runs at a time.
type Processor struct {
	records    types.RecordStore
	summarizer Summarizer
	notes      NoteWriter
	ledger     types.Ledger
	deliverer  Deliverer
	notifyKey  string
	loc        *time.Location
	now        func() time.Time

	mu sync.Mutex
}

// Option configures a Processor.
type Option func(*Processor)

// WithLedger records every processed day in ledger.
func WithLedger(ledger types.Ledger) Option {
	return func(p *Processor) { p.ledger = ledger }
}

// WithNotifier delivers each non-empty report to sessionKey.
func WithNotifier(d Deliverer, sessionKey string) Option {
	return func(p *Processor) {
		p.deliverer = d
		p.notifyKey = sessionKey
	}
}

// WithLocation sets the time zone used for windows and date keys.
func WithLocation(loc *time.Location) Option {
	return func(p *Processor) { p.loc = loc }
}

// NewProcessor creates a Processor.
func NewProcessor(records types.RecordStore, s Summarizer, notes NoteWriter, opts ...Option) *Processor {
	p := &Processor{
		records:    records,
		summarizer: s,
		notes:      notes,
		loc:        time.Local,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// RunCurrent processes the records inside the window that is current at
// now. With nothing in the window it returns an empty report.
func (p *Processor) RunCurrent(ctx context.Context, now time.Time) (*Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	report := &Report{RunID: types.NewRunID(), Mode: ModeRun}
	logger := slog.With("run_id", report.RunID, "mode", report.Mode)

	pending, err := p.records.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending records: %w", err)
	}

	w := window.Current(now.In(p.loc))
	selected := window.Select(pending, w)
	logger.Info("selected sessions", "start", w.Start, "end", w.End, "date", w.Key(), "sessions", len(selected))
	if len(selected) == 0 {
		logger.Info("no sessions to process")
		return report, nil
	}

	day := window.Day{Key: w.Key(), Date: w.Target, Records: selected}
	p.record(ctx, logger, report, p.processDay(ctx, logger, day))
	p.notify(logger, report)
	return report, nil
}

// Backfill processes every pending record grouped by calendar date, oldest
// date first. A failed day does not stop later days. Cancellation stops
// before the next day and returns the partial report with ctx's error.
func (p *Processor) Backfill(ctx context.Context) (*Report, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	report := &Report{RunID: types.NewRunID(), Mode: ModeBackfill}
	logger := slog.With("run_id", report.RunID, "mode", report.Mode)

	pending, err := p.records.ListPending(ctx)
	if err != nil {
		return nil, fmt.Errorf("list pending records: %w", err)
	}

	groups := window.GroupByCalendarDate(pending, p.loc)
	keys := window.SortedKeys(groups)
	if len(keys) == 0 {
		logger.Info("no pending sessions to process")
		return report, nil
	}
	logger.Info("backfill started", "dates", len(keys))

	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			p.notify(logger, report)
			return report, err
		}
		date, err := window.DayFromKey(key, p.loc)
		if err != nil {
			return report, fmt.Errorf("parse date key %s: %w", key, err)
		}
		day := window.Day{Key: key, Date: date, Records: groups[key]}
		p.record(ctx, logger, report, p.processDay(ctx, logger, day))
	}

	logger.Info("backfill complete", "succeeded", report.SucceededCount(), "failed", report.FailedCount())
	p.notify(logger, report)
	return report, nil
}

// ProcessDay runs the pipeline for a single day outside of a batch.
func (p *Processor) ProcessDay(ctx context.Context, day window.Day) *DayResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.processDay(ctx, slog.Default(), day)
}

// processDay runs summary, daily note, knowledge note and move in order.
// A summary failure ends the day with its records left pending. Failures of
// the note steps are recorded and the records are still moved, so a note
// write can be lost but a session is never summarized twice.
func (p *Processor) processDay(ctx context.Context, logger *slog.Logger, day window.Day) *DayResult {
	res := &DayResult{Date: day.Key, Sessions: len(day.Records)}
	logger = logger.With("date", day.Key)
	logger.Info("processing day", "sessions", len(day.Records))

	s, err := p.summarizer.Summarize(ctx, day.Date, day.Records)
	if err != nil {
		detail := err.Error()
		if errors.Is(err, summary.ErrNoSessions) {
			detail = "no sessions with usable transcripts"
		}
		logger.Error("summary failed, records stay pending", "error", err)
		res.add(StepSummary, types.StepFailed, detail)
		res.Err = err
		return res
	}
	res.add(StepSummary, types.StepOK, "")
	res.Success = true

	outcome, err := p.notes.AppendDailyLog(ctx, s, day.Date)
	switch {
	case errors.Is(err, note.ErrTemplateMissing):
		logger.Warn("daily note template not found, skipping daily note")
		res.add(StepDailyNote, types.StepSkipped, err.Error())
	case err != nil:
		logger.Error("failed to update daily note", "error", err)
		res.add(StepDailyNote, types.StepFailed, err.Error())
	default:
		res.add(StepDailyNote, types.StepOK, outcome.String())
	}

	path, err := p.notes.CreateKnowledgeNote(ctx, s, day.Date)
	switch {
	case err != nil:
		logger.Error("failed to create knowledge note", "error", err)
		res.add(StepKnowledgeNote, types.StepFailed, err.Error())
	case path == "":
		res.add(StepKnowledgeNote, types.StepSkipped, "not requested")
	default:
		res.add(StepKnowledgeNote, types.StepOK, path)
	}

	if errs := p.records.MoveToProcessed(ctx, day.Records); len(errs) > 0 {
		res.add(StepMove, types.StepFailed, fmt.Sprintf("%d of %d records not moved: %v", len(errs), len(day.Records), errors.Join(errs...)))
	} else {
		res.add(StepMove, types.StepOK, "")
	}

	logger.Info("day completed")
	return res
}

func (p *Processor) record(ctx context.Context, logger *slog.Logger, report *Report, res *DayResult) {
	report.Days = append(report.Days, res)
	if p.ledger == nil {
		return
	}
	if err := p.ledger.Append(ctx, res.ledgerEntry(report.RunID, report.Mode, p.now())); err != nil {
		logger.Warn("failed to append run ledger", "date", res.Date, "error", err)
	}
}

func (p *Processor) notify(logger *slog.Logger, report *Report) {
	if p.deliverer == nil || p.notifyKey == "" || len(report.Days) == 0 {
		return
	}
	if err := p.deliverer.Deliver(p.notifyKey, report.String()); err != nil {
		logger.Warn("failed to deliver report", "session_key", p.notifyKey, "error", err)
	}
}
