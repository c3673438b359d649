package note

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/user/sessionlog/internal/summary"
	"github.com/user/sessionlog/pkg/vault"
)

var (
	ErrTemplateMissing = errors.New("daily note template not found")
	ErrNoDailyLog      = errors.New("summary has no daily log")
)

// Store reads and writes whole documents. Get returns vault.ErrNotFound
// for absent documents.
type Store interface {
	Get(ctx context.Context, path string) (string, error)
	Put(ctx context.Context, path, content string) error
}

// Options configure where and how a Merger writes.
type Options struct {
	DailyNotePattern string
	TemplatePath     string
	KnowledgeBase    string
	Section          string
	Tag              string
}

// Merger writes summaries into the vault.
type Merger struct {
	store   Store
	opts    Options
	heading *regexp.Regexp
}

// NewMerger creates a Merger over store.
func NewMerger(store Store, opts Options) *Merger {
	return &Merger{
		store:   store,
		opts:    opts,
		heading: HeadingPattern(opts.Section),
	}
}

// AppendDailyLog inserts the rendered daily-log entries into the daily note
// for date, creating the note from the template when it does not exist. A
// missing or empty template returns ErrTemplateMissing without writing. When
// the note has no matching section it is written back unchanged.
func (m *Merger) AppendDailyLog(ctx context.Context, s *summary.Summary, date time.Time) (Outcome, error) {
	if s == nil || s.DailyLog == nil {
		return SectionMissing, ErrNoDailyLog
	}

	path := DailyNotePath(m.opts.DailyNotePattern, date)
	doc, err := m.store.Get(ctx, path)
	switch {
	case errors.Is(err, vault.ErrNotFound):
		slog.Info("creating daily note from template", "path", path, "template", m.opts.TemplatePath)
		tpl, err := m.store.Get(ctx, m.opts.TemplatePath)
		if errors.Is(err, vault.ErrNotFound) || (err == nil && tpl == "") {
			return SectionMissing, ErrTemplateMissing
		}
		if err != nil {
			return SectionMissing, fmt.Errorf("get template %s: %w", m.opts.TemplatePath, err)
		}
		doc = InstantiateTemplate(tpl, date)
	case err != nil:
		return SectionMissing, fmt.Errorf("get daily note %s: %w", path, err)
	}

	updated, outcome := Insert(doc, RenderEntries(s.DailyLog.Entries), m.heading)
	if !outcome.Inserted() {
		slog.Warn("daily note has no matching section, writing unchanged", "path", path, "section", m.opts.Section)
	}

	if err := m.store.Put(ctx, path, updated); err != nil {
		return outcome, fmt.Errorf("put daily note %s: %w", path, err)
	}
	slog.Info("daily note updated", "path", path, "outcome", outcome.String(), "entries", len(s.DailyLog.Entries))
	return outcome, nil
}

// CreateKnowledgeNote writes a standalone note when the summary asks for
// one, overwriting any note at the same path. It returns the written path,
// or "" when no note was requested.
func (m *Merger) CreateKnowledgeNote(ctx context.Context, s *summary.Summary, date time.Time) (string, error) {
	if s == nil || s.Knowledge == nil || !s.Knowledge.ShouldCreate {
		return "", nil
	}

	path := KnowledgePath(m.opts.KnowledgeBase, s.Knowledge.Title, date)
	doc, err := KnowledgeDocument(s.Knowledge.Content, m.opts.Tag, date)
	if err != nil {
		return "", err
	}
	if err := m.store.Put(ctx, path, doc); err != nil {
		return "", fmt.Errorf("put knowledge note %s: %w", path, err)
	}
	slog.Info("knowledge note created", "path", path)
	return path, nil
}
