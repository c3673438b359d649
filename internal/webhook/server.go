// internal/webhook/server.go
package webhook

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/user/sessionlog/internal/batch"
	"github.com/user/sessionlog/internal/types"
)

// Runner is the batch processor as seen by the HTTP surface.
type Runner interface {
	Plan(ctx context.Context, now time.Time) (*batch.Plan, error)
	RunCurrent(ctx context.Context, now time.Time) (*batch.Report, error)
	Backfill(ctx context.Context) (*batch.Report, error)
}

// Server is a lightweight HTTP handler for triggering and inspecting batches.
type Server struct {
	runner Runner
	ledger types.Ledger
	now    func() time.Time
	mux    *http.ServeMux
}

// NewServer creates a Server. ledger may be nil, in which case /api/runs is
// unavailable.
func NewServer(runner Runner, ledger types.Ledger) *Server {
	s := &Server{
		runner: runner,
		ledger: ledger,
		now:    time.Now,
		mux:    http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/pending", s.handlePending)
	s.mux.HandleFunc("GET /api/runs", s.handleRuns)
	s.mux.HandleFunc("POST /run", s.handleRun)
	s.mux.HandleFunc("POST /backfill", s.handleBackfill)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handlePending(w http.ResponseWriter, r *http.Request) {
	plan, err := s.runner.Plan(r.Context(), s.now())
	if err != nil {
		slog.Error("plan failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if s.ledger == nil {
		http.Error(w, `{"error":"run ledger not configured"}`, http.StatusServiceUnavailable)
		return
	}

	limit := 50
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.ledger.Tail(r.Context(), limit)
	if err != nil {
		slog.Error("tail ledger failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*types.LedgerEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	report, err := s.runner.RunCurrent(r.Context(), s.now())
	s.writeReport(w, report, err)
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	report, err := s.runner.Backfill(r.Context())
	s.writeReport(w, report, err)
}

type dayResponse struct {
	Date     string             `json:"date"`
	Sessions int                `json:"sessions"`
	Success  bool               `json:"success"`
	Steps    []types.StepResult `json:"steps"`
}

type reportResponse struct {
	RunID  types.RunID   `json:"run_id"`
	Mode   string        `json:"mode"`
	Failed bool          `json:"failed"`
	Days   []dayResponse `json:"days"`
}

func (s *Server) writeReport(w http.ResponseWriter, report *batch.Report, err error) {
	if err != nil && report == nil {
		slog.Error("batch failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	resp := reportResponse{RunID: report.RunID, Mode: report.Mode, Failed: report.Failed(), Days: []dayResponse{}}
	for _, d := range report.Days {
		resp.Days = append(resp.Days, dayResponse{Date: d.Date, Sessions: d.Sessions, Success: d.Success, Steps: d.Steps})
	}

	status := http.StatusOK
	if err != nil || report.Failed() {
		status = http.StatusInternalServerError
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
