//go:build integration

package test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/user/sessionlog/internal/batch"
	"github.com/user/sessionlog/internal/note"
	"github.com/user/sessionlog/internal/state"
	"github.com/user/sessionlog/internal/summary"
	"github.com/user/sessionlog/internal/types"
	"github.com/user/sessionlog/pkg/llm"
	"github.com/user/sessionlog/pkg/llm/ollama"
	"github.com/user/sessionlog/pkg/vault"
)

const template = "# {{DATE:YYYY-MM-DD}}\n\n## Session Talk\n-\n\n## Notes\n"

const modelAnswer = "Here you go:\n```json\n" + `{
  "dailyLog": {"entries": [{"time": "10:00", "project": "api", "summary": "fixed the login bug", "tags": ["go"]}]},
  "knowledge": {"shouldCreate": true/false, "title": "", "content": ""},
}` + "\n```"

// memVault serves the subset of the Obsidian Local REST API the client uses.
type memVault struct {
	mu   sync.Mutex
	docs map[string]string
}

func (v *memVault) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/vault/")
	v.mu.Lock()
	defer v.mu.Unlock()
	switch r.Method {
	case http.MethodGet:
		doc, ok := v.docs[path]
		if !ok {
			http.Error(w, `{"errorCode":40400}`, http.StatusNotFound)
			return
		}
		io.WriteString(w, doc)
	case http.MethodPut:
		data, _ := io.ReadAll(r.Body)
		v.docs[path] = string(data)
		w.WriteHeader(http.StatusNoContent)
	default:
		w.WriteHeader(http.StatusMethodNotAllowed)
	}
}

func (v *memVault) doc(path string) (string, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	doc, ok := v.docs[path]
	return doc, ok
}

func writeTranscript(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	lines := `{"type":"user","message":{"content":"login fails with 500"}}` + "\n" +
		`{"type":"assistant","message":{"content":[{"type":"text","text":"The session cookie was not set."}]}}` + "\n"
	if err := os.WriteFile(path, []byte(lines), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBackfillEndToEnd(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	var llmCalls int
	llmSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		llmCalls++
		json.NewEncoder(w).Encode(map[string]any{
			"message": map[string]string{"role": "assistant", "content": modelAnswer},
		})
	}))
	defer llmSrv.Close()

	mv := &memVault{docs: map[string]string{"Templates/Daily.md": template}}
	vaultSrv := httptest.NewServer(mv)
	defer vaultSrv.Close()

	records := state.NewRecordStore(filepath.Join(dir, "pending"), filepath.Join(dir, "processed"))
	ledger := state.NewLedger(filepath.Join(dir, "runs.jsonl"))

	// One usable day and one day whose transcript is gone.
	good := &types.SessionRecord{
		SessionID:      "s1",
		Cwd:            "/src/api",
		TranscriptPath: writeTranscript(t, dir, "s1.jsonl"),
		EndedAt:        time.Date(2026, 10, 15, 10, 0, 0, 0, time.Local),
		ProjectName:    "api",
	}
	lost := &types.SessionRecord{
		SessionID:      "s2",
		Cwd:            "/src/web",
		TranscriptPath: filepath.Join(dir, "gone.jsonl"),
		EndedAt:        time.Date(2026, 10, 16, 10, 0, 0, 0, time.Local),
		ProjectName:    "web",
	}
	for _, rec := range []*types.SessionRecord{good, lost} {
		if _, err := records.Save(ctx, rec); err != nil {
			t.Fatal(err)
		}
	}

	provider := ollama.New(&llm.Config{BaseURL: llmSrv.URL, Model: "test"})
	merger := note.NewMerger(vault.New(vault.Config{BaseURL: vaultSrv.URL, APIKey: "k"}), note.Options{
		DailyNotePattern: "Daily/{year}/{month}/{date}.md",
		TemplatePath:     "Templates/Daily.md",
		KnowledgeBase:    "Knowledge",
		Section:          "Session Talk",
	})
	proc := batch.NewProcessor(records, summary.NewSynthesizer(provider, "English"), merger, batch.WithLedger(ledger))

	report, err := proc.Backfill(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(report.Days) != 2 {
		t.Fatalf("expected 2 days, got %d", len(report.Days))
	}
	if !report.Days[0].Success || report.Days[1].Success {
		t.Fatalf("unexpected day results:\n%s", report)
	}
	if llmCalls != 1 {
		t.Errorf("expected 1 model call, got %d", llmCalls)
	}

	doc, ok := mv.doc("Daily/2026/10/2026-10-15.md")
	if !ok {
		t.Fatal("daily note not written")
	}
	want := "# 2026-10-15\n\n## Session Talk\n- 🤖 [10:00] **api**: fixed the login bug #go\n\n## Notes\n"
	if doc != want {
		t.Errorf("daily note = %q, want %q", doc, want)
	}
	if _, ok := mv.doc("Daily/2026/10/2026-10-16.md"); ok {
		t.Error("failed day should not write a note")
	}

	pending, err := records.ListPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 1 || pending[0].SessionID != "s2" {
		t.Errorf("expected only s2 pending, got %d records", len(pending))
	}
	processed, err := records.CountProcessed(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if processed != 1 {
		t.Errorf("expected 1 processed record, got %d", processed)
	}

	entries, err := ledger.Tail(ctx, 0)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(entries))
	}
	if entries[0].RunID != report.RunID || entries[1].Seq != 2 {
		t.Errorf("unexpected ledger entries: %+v %+v", entries[0], entries[1])
	}
}
