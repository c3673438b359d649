package batch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/user/sessionlog/internal/note"
	"github.com/user/sessionlog/internal/state"
	"github.com/user/sessionlog/internal/summary"
	"github.com/user/sessionlog/internal/types"
	"github.com/user/sessionlog/internal/window"
)

type fakeSummarizer struct {
	mu    sync.Mutex
	dates []string
	fail  map[string]error
}

func (f *fakeSummarizer) Summarize(_ context.Context, day time.Time, records []*types.SessionRecord) (*summary.Summary, error) {
	date := day.Format(window.DateLayout)
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dates = append(f.dates, date)
	if err := f.fail[date]; err != nil {
		return nil, err
	}
	entries := make([]summary.Entry, len(records))
	for i, r := range records {
		entries[i] = summary.Entry{Time: r.EndedAt.Format("15:04"), Project: r.ProjectName, Summary: "did things"}
	}
	return &summary.Summary{
		DailyLog:  &summary.DailyLog{Entries: entries},
		Knowledge: &summary.Knowledge{ShouldCreate: true, Title: "T " + date, Content: "C"},
	}, nil
}

type fakeNotes struct {
	dailyErr     error
	knowledgeErr error
	daily        []time.Time
}

func (f *fakeNotes) AppendDailyLog(_ context.Context, _ *summary.Summary, date time.Time) (note.Outcome, error) {
	f.daily = append(f.daily, date)
	if f.dailyErr != nil {
		return note.SectionMissing, f.dailyErr
	}
	return note.Placeholder, nil
}

func (f *fakeNotes) CreateKnowledgeNote(_ context.Context, s *summary.Summary, date time.Time) (string, error) {
	if f.knowledgeErr != nil {
		return "", f.knowledgeErr
	}
	return "Knowledge/" + s.Knowledge.Title + ".md", nil
}

type fakeDeliverer struct {
	key, msg string
	calls    int
}

func (f *fakeDeliverer) Deliver(sessionKey, message string) error {
	f.calls++
	f.key, f.msg = sessionKey, message
	return nil
}

func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	if err != nil {
		panic(err)
	}
	return t
}

type fixture struct {
	store  *state.RecordStore
	ledger *state.Ledger
	sum    *fakeSummarizer
	notes  *fakeNotes
	deliv  *fakeDeliverer
	proc   *Processor
}

func newFixture(t *testing.T, ended ...string) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		store:  state.NewRecordStore(filepath.Join(dir, "pending"), filepath.Join(dir, "processed")),
		ledger: state.NewLedger(filepath.Join(dir, "runs.jsonl")),
		sum:    &fakeSummarizer{fail: map[string]error{}},
		notes:  &fakeNotes{},
		deliv:  &fakeDeliverer{},
	}
	for i, e := range ended {
		rec := &types.SessionRecord{
			SessionID:   fmt.Sprintf("s%d", i),
			ProjectName: fmt.Sprintf("p%d", i),
			EndedAt:     at(e),
		}
		_, err := f.store.Save(context.Background(), rec)
		require.NoError(t, err)
	}
	f.proc = NewProcessor(f.store, f.sum, f.notes,
		WithLedger(f.ledger),
		WithNotifier(f.deliv, "log:report"),
		WithLocation(time.Local),
	)
	return f
}

func (f *fixture) pending(t *testing.T) int {
	t.Helper()
	recs, err := f.store.ListPending(context.Background())
	require.NoError(t, err)
	return len(recs)
}

func TestRunCurrentEmpty(t *testing.T) {
	f := newFixture(t)
	report, err := f.proc.RunCurrent(context.Background(), at("2025-01-15 21:05"))
	require.NoError(t, err)
	assert.Empty(t, report.Days)
	assert.False(t, report.Failed())
	assert.Empty(t, f.sum.dates)
	assert.Equal(t, 0, f.deliv.calls)
}

func TestRunCurrentProcessesWindow(t *testing.T) {
	f := newFixture(t, "2025-01-14 22:00", "2025-01-15 20:59", "2025-01-15 21:30", "2025-01-13 10:00")

	report, err := f.proc.RunCurrent(context.Background(), at("2025-01-15 21:05"))
	require.NoError(t, err)
	require.Len(t, report.Days, 1)

	day := report.Days[0]
	assert.Equal(t, "2025-01-15", day.Date)
	assert.Equal(t, 2, day.Sessions)
	assert.True(t, day.Success)
	assert.Equal(t, []string{"2025-01-15"}, f.sum.dates)
	require.Len(t, f.notes.daily, 1)
	assert.Equal(t, at("2025-01-15 12:00"), f.notes.daily[0])

	// Out-of-window records stay pending.
	assert.Equal(t, 2, f.pending(t))

	for _, step := range []string{StepSummary, StepDailyNote, StepKnowledgeNote, StepMove} {
		s, ok := day.Step(step)
		require.True(t, ok, step)
		assert.Equal(t, types.StepOK, s.Status, step)
	}

	entries, err := f.ledger.Tail(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, report.RunID, entries[0].RunID)
	assert.Equal(t, ModeRun, entries[0].Mode)

	assert.Equal(t, "log:report", f.deliv.key)
	assert.Contains(t, f.deliv.msg, "1 succeeded, 0 failed")
}

func TestRunCurrentBeforeCutoffUsesYesterday(t *testing.T) {
	f := newFixture(t, "2025-01-15 20:59")
	report, err := f.proc.RunCurrent(context.Background(), at("2025-01-15 20:00"))
	require.NoError(t, err)
	assert.Empty(t, report.Days)
	assert.Equal(t, 1, f.pending(t))
}

func TestSummaryFailureKeepsRecordsPending(t *testing.T) {
	f := newFixture(t, "2025-01-15 10:00")
	f.sum.fail["2025-01-15"] = summary.ErrUnrepairable

	report, err := f.proc.RunCurrent(context.Background(), at("2025-01-15 21:05"))
	require.NoError(t, err)
	require.True(t, report.Failed())
	assert.ErrorIs(t, report.Days[0].Err, summary.ErrUnrepairable)
	assert.Len(t, report.Days[0].Steps, 1)
	assert.Equal(t, 1, f.pending(t))
	assert.Empty(t, f.notes.daily)
	assert.Contains(t, f.deliv.msg, "FAILED")
}

func TestNoteFailuresStillMoveRecords(t *testing.T) {
	f := newFixture(t, "2025-01-15 10:00")
	f.notes.dailyErr = errors.New("vault API error (status 500): down")
	f.notes.knowledgeErr = errors.New("vault API error (status 500): down")

	report, err := f.proc.RunCurrent(context.Background(), at("2025-01-15 21:05"))
	require.NoError(t, err)
	assert.False(t, report.Failed())

	day := report.Days[0]
	s, _ := day.Step(StepDailyNote)
	assert.Equal(t, types.StepFailed, s.Status)
	s, _ = day.Step(StepKnowledgeNote)
	assert.Equal(t, types.StepFailed, s.Status)
	s, _ = day.Step(StepMove)
	assert.Equal(t, types.StepOK, s.Status)
	assert.Equal(t, 0, f.pending(t))
}

func TestTemplateMissingIsSkipped(t *testing.T) {
	f := newFixture(t, "2025-01-15 10:00")
	f.notes.dailyErr = note.ErrTemplateMissing

	report, err := f.proc.RunCurrent(context.Background(), at("2025-01-15 21:05"))
	require.NoError(t, err)
	s, _ := report.Days[0].Step(StepDailyNote)
	assert.Equal(t, types.StepSkipped, s.Status)
	assert.Equal(t, 0, f.pending(t))
}

func TestBackfill(t *testing.T) {
	f := newFixture(t, "2025-01-15 22:00", "2025-01-13 09:00", "2025-01-14 10:00", "2025-01-15 08:00")
	f.sum.fail["2025-01-14"] = summary.ErrNoSessions

	report, err := f.proc.Backfill(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"2025-01-13", "2025-01-14", "2025-01-15"}, f.sum.dates)
	require.Len(t, report.Days, 3)
	assert.True(t, report.Failed())
	assert.Equal(t, 1, report.FailedCount())
	assert.Equal(t, 2, report.Days[2].Sessions)

	s, _ := report.Days[1].Step(StepSummary)
	assert.Equal(t, "no sessions with usable transcripts", s.Detail)

	// Only the failed day's record remains.
	recs, err := f.store.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "s2", recs[0].SessionID)

	entries, err := f.ledger.Tail(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
	assert.Equal(t, 1, f.deliv.calls)
	assert.True(t, strings.HasPrefix(f.deliv.msg, "sessionlog backfill: 2 succeeded, 1 failed"))
}

func TestBackfillCancelled(t *testing.T) {
	f := newFixture(t, "2025-01-13 09:00", "2025-01-14 10:00")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	report, err := f.proc.Backfill(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, report.Days)
	assert.Equal(t, 2, f.pending(t))
}

func TestProcessDay(t *testing.T) {
	f := newFixture(t, "2025-01-15 10:00")
	recs, err := f.store.ListPending(context.Background())
	require.NoError(t, err)

	res := f.proc.ProcessDay(context.Background(), window.Day{Key: "2025-01-15", Date: at("2025-01-15 12:00"), Records: recs})
	assert.True(t, res.Success)
	assert.Len(t, res.Steps, 4)
	assert.Equal(t, 0, f.pending(t))
}

func TestPlan(t *testing.T) {
	f := newFixture(t, "2025-01-14 22:00", "2025-01-15 20:59", "2025-01-13 10:00")

	plan, err := f.proc.Plan(context.Background(), at("2025-01-15 21:05"))
	require.NoError(t, err)
	assert.Equal(t, "2025-01-15", plan.Target)
	assert.Equal(t, 3, plan.Pending)
	assert.Equal(t, 2, plan.InWindow)
	assert.Equal(t, []DateCount{
		{Date: "2025-01-13", Sessions: 1},
		{Date: "2025-01-14", Sessions: 1},
		{Date: "2025-01-15", Sessions: 1},
	}, plan.Backfill)

	// Planning never mutates the queue.
	assert.Equal(t, 3, f.pending(t))
}

func TestReportString(t *testing.T) {
	r := &Report{Mode: ModeRun}
	assert.Equal(t, "sessionlog run: no sessions to process", r.String())

	r.Days = []*DayResult{{
		Date:     "2025-01-15",
		Sessions: 2,
		Success:  true,
		Steps:    []types.StepResult{{Step: StepDailyNote, Status: types.StepFailed, Detail: "boom"}},
	}}
	assert.Equal(t, "sessionlog run: 1 succeeded, 0 failed\n2025-01-15 (2 sessions): ok\n  daily_note failed: boom", r.String())
}
