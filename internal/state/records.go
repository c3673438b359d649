// internal/state/records.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/user/sessionlog/internal/types"
)

// RecordStore is a two-stage file queue of session records. Each record is
// one JSON file; it lives in the pending directory until its day has been
// processed and is then renamed into the processed directory.
type RecordStore struct {
	pendingDir   string
	processedDir string
}

// NewRecordStore creates a RecordStore over the given directories.
func NewRecordStore(pendingDir, processedDir string) *RecordStore {
	return &RecordStore{pendingDir: pendingDir, processedDir: processedDir}
}

func (s *RecordStore) PendingDir() string   { return s.pendingDir }
func (s *RecordStore) ProcessedDir() string { return s.processedDir }

// ListPending returns every parseable record in the pending directory,
// ordered by filename. A missing directory yields an empty list. Files that
// cannot be read or decoded are logged and skipped.
func (s *RecordStore) ListPending(_ context.Context) ([]*types.SessionRecord, error) {
	entries, err := os.ReadDir(s.pendingDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pending dir: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".json") {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	var records []*types.SessionRecord
	for _, name := range names {
		rec, err := s.readRecord(name)
		if err != nil {
			slog.Warn("skipping unreadable session record", "file", name, "error", err)
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *RecordStore) readRecord(name string) (*types.SessionRecord, error) {
	data, err := os.ReadFile(filepath.Join(s.pendingDir, name))
	if err != nil {
		return nil, fmt.Errorf("read record: %w", err)
	}
	var rec types.SessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	rec.Filename = name
	return &rec, nil
}

// MoveToProcessed renames each record's file from pending to processed.
// Failures are logged and returned but never stop the remaining moves.
func (s *RecordStore) MoveToProcessed(_ context.Context, records []*types.SessionRecord) []error {
	if err := os.MkdirAll(s.processedDir, 0o755); err != nil {
		return []error{fmt.Errorf("create processed dir: %w", err)}
	}

	var errs []error
	for _, rec := range records {
		src := filepath.Join(s.pendingDir, rec.Filename)
		dst := filepath.Join(s.processedDir, rec.Filename)
		if err := os.Rename(src, dst); err != nil {
			slog.Error("failed to move session record", "file", rec.Filename, "error", err)
			errs = append(errs, fmt.Errorf("move %s: %w", rec.Filename, err))
		}
	}
	return errs
}

// Save writes a new pending record and returns its filename. The name is
// derived from EndedAt and the session id so that lexical order follows
// completion time.
func (s *RecordStore) Save(_ context.Context, rec *types.SessionRecord) (string, error) {
	if err := os.MkdirAll(s.pendingDir, 0o755); err != nil {
		return "", fmt.Errorf("create pending dir: %w", err)
	}

	stamp := rec.EndedAt.UTC().Format("2006-01-02T15:04:05.000Z")
	stamp = strings.NewReplacer(":", "-", ".", "-").Replace(stamp)
	name := stamp + "_" + rec.SessionID + ".json"

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal record: %w", err)
	}

	// Atomic write: write to temp file then rename
	target := filepath.Join(s.pendingDir, name)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write temp record: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("rename temp record: %w", err)
	}
	rec.Filename = name
	return name, nil
}

// CountProcessed returns the number of records already consumed.
func (s *RecordStore) CountProcessed(_ context.Context) (int, error) {
	entries, err := os.ReadDir(s.processedDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("read processed dir: %w", err)
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".json") {
			n++
		}
	}
	return n, nil
}
