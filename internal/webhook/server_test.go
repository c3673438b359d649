package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/user/sessionlog/internal/batch"
	"github.com/user/sessionlog/internal/state"
	"github.com/user/sessionlog/internal/types"
)

type mockRunner struct {
	plan     *batch.Plan
	report   *batch.Report
	err      error
	runs     int
	backfill int
}

func (m *mockRunner) Plan(ctx context.Context, now time.Time) (*batch.Plan, error) {
	return m.plan, m.err
}

func (m *mockRunner) RunCurrent(ctx context.Context, now time.Time) (*batch.Report, error) {
	m.runs++
	return m.report, m.err
}

func (m *mockRunner) Backfill(ctx context.Context) (*batch.Report, error) {
	m.backfill++
	return m.report, m.err
}

func serve(t *testing.T, srv http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	srv.ServeHTTP(w, req)
	return w
}

func TestHealthEndpoint(t *testing.T) {
	srv := NewServer(&mockRunner{}, nil)
	w := serve(t, srv, http.MethodGet, "/health")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status ok, got %s", resp["status"])
	}
}

func TestPendingEndpoint(t *testing.T) {
	runner := &mockRunner{plan: &batch.Plan{
		Target:   "2025-01-15",
		Pending:  3,
		InWindow: 2,
		Backfill: []batch.DateCount{{Date: "2025-01-14", Sessions: 1}},
	}}
	w := serve(t, NewServer(runner, nil), http.MethodGet, "/api/pending")

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var resp map[string]any
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["target"] != "2025-01-15" || resp["in_window"] != float64(2) {
		t.Errorf("unexpected plan response: %v", resp)
	}
}

func TestRunEndpoint(t *testing.T) {
	runner := &mockRunner{report: &batch.Report{
		RunID: "r1",
		Mode:  batch.ModeRun,
		Days:  []*batch.DayResult{{Date: "2025-01-15", Sessions: 2, Success: true}},
	}}
	srv := NewServer(runner, nil)

	w := serve(t, srv, http.MethodPost, "/run")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	if runner.runs != 1 {
		t.Errorf("expected 1 run, got %d", runner.runs)
	}
	var resp reportResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.RunID != "r1" || len(resp.Days) != 1 || resp.Failed {
		t.Errorf("unexpected report response: %+v", resp)
	}

	// GET is not routed to the trigger.
	if w := serve(t, srv, http.MethodGet, "/run"); w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected 405 for GET /run, got %d", w.Code)
	}
}

func TestBackfillEndpointFailedDay(t *testing.T) {
	runner := &mockRunner{report: &batch.Report{
		Mode: batch.ModeBackfill,
		Days: []*batch.DayResult{{Date: "2025-01-14", Success: false}, {Date: "2025-01-15", Success: true}},
	}}
	w := serve(t, NewServer(runner, nil), http.MethodPost, "/backfill")

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500 for failed day, got %d", w.Code)
	}
	if runner.backfill != 1 {
		t.Errorf("expected 1 backfill, got %d", runner.backfill)
	}
	var resp reportResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if !resp.Failed || len(resp.Days) != 2 {
		t.Errorf("unexpected report response: %+v", resp)
	}
}

func TestRunEndpointError(t *testing.T) {
	runner := &mockRunner{err: errors.New("read pending dir: permission denied")}
	w := serve(t, NewServer(runner, nil), http.MethodPost, "/run")
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected status 500, got %d", w.Code)
	}
}

func TestRunsEndpoint(t *testing.T) {
	srv := NewServer(&mockRunner{}, nil)
	if w := serve(t, srv, http.MethodGet, "/api/runs"); w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without ledger, got %d", w.Code)
	}

	ledger := state.NewLedger(filepath.Join(t.TempDir(), "runs.jsonl"))
	for _, date := range []string{"2025-01-14", "2025-01-15"} {
		if err := ledger.Append(context.Background(), &types.LedgerEntry{Date: date, Success: true}); err != nil {
			t.Fatal(err)
		}
	}
	srv = NewServer(&mockRunner{}, ledger)

	w := serve(t, srv, http.MethodGet, "/api/runs?limit=1")
	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", w.Code)
	}
	var entries []types.LedgerEntry
	if err := json.NewDecoder(w.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Date != "2025-01-15" {
		t.Errorf("unexpected entries: %+v", entries)
	}
}
