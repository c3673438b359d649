// internal/state/ledger.go
package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/sessionlog/internal/types"
)

// Ledger is a JSONL-backed append-only log of per-day batch outcomes.
type Ledger struct {
	path string
	mu   sync.Mutex
}

// NewLedger creates a Ledger writing to the given file.
func NewLedger(path string) *Ledger {
	return &Ledger{path: path}
}

// count reads the ledger file and counts lines. Caller must hold the lock.
func (l *Ledger) count() (int64, error) {
	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	var count int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan ledger: %w", err)
	}
	return count, nil
}

// Append adds an entry with an auto-incremented sequence number.
func (l *Ledger) Append(_ context.Context, entry *types.LedgerEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	existing, err := l.count()
	if err != nil {
		return err
	}
	entry.Seq = existing + 1

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal ledger entry: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write ledger entry: %w", err)
	}
	return nil
}

// Tail returns the last limit entries, oldest first.
func (l *Ledger) Tail(_ context.Context, limit int) ([]*types.LedgerEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	var entries []*types.LedgerEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry types.LedgerEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal ledger entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan ledger: %w", err)
	}

	if limit > 0 && len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	return entries, nil
}
