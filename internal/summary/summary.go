// Package summary turns a day's session records into a structured summary
// by prompting a language model once and decoding its answer.
package summary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/user/sessionlog/internal/transcript"
	"github.com/user/sessionlog/internal/types"
	"github.com/user/sessionlog/pkg/llm"
)

// ErrNoSessions means no record had a usable transcript. The model is not
// called in that case.
var ErrNoSessions = errors.New("no sessions with usable transcripts")

const (
	defaultLoadConcurrency = 4
	dateLayout             = "2006-01-02"
)

// Synthesizer builds the prompt for a day and asks the provider for a summary.
type Synthesizer struct {
	provider  llm.Provider
	language  string
	counter   TokenCounter
	maxTokens int
	limit     int
}

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithTokenBudget logs the prompt size with counter and warns above budget.
func WithTokenBudget(counter TokenCounter, budget int) Option {
	return func(s *Synthesizer) {
		s.counter = counter
		s.maxTokens = budget
	}
}

// WithLoadConcurrency bounds how many transcripts are read at once.
func WithLoadConcurrency(n int) Option {
	return func(s *Synthesizer) { s.limit = n }
}

// NewSynthesizer creates a Synthesizer that writes summaries in language.
func NewSynthesizer(provider llm.Provider, language string, opts ...Option) *Synthesizer {
	s := &Synthesizer{
		provider: provider,
		language: language,
		limit:    defaultLoadConcurrency,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Summarize compacts records, sends a single prompt and parses the reply.
// records should already be in ascending EndedAt order. Session times in the
// prompt are shown in day's location.
func (s *Synthesizer) Summarize(ctx context.Context, day time.Time, records []*types.SessionRecord) (*Summary, error) {
	date := day.Format(dateLayout)
	sessions, err := transcript.CompactAll(ctx, records, day.Location(), s.limit, func(rec *types.SessionRecord, err error) {
		slog.Warn("skipping unreadable transcript", "session", rec.SessionID, "path", rec.TranscriptPath, "error", err)
	})
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, ErrNoSessions
	}

	prompt, err := BuildPrompt(date, s.language, sessions)
	if err != nil {
		return nil, err
	}

	if s.counter != nil {
		tokens := s.counter.Count(prompt)
		slog.Debug("summary prompt built", "date", date, "sessions", len(sessions), "tokens", tokens)
		if s.maxTokens > 0 && tokens > s.maxTokens {
			slog.Warn("summary prompt exceeds token budget", "date", date, "tokens", tokens, "budget", s.maxTokens)
		}
	}

	resp, err := s.provider.Complete(ctx, []llm.Message{{Role: "user", Content: prompt}})
	if err != nil {
		return nil, fmt.Errorf("llm request: %w", err)
	}

	summary, err := Parse(resp.Content)
	if err != nil {
		slog.Error("failed to parse model output", "date", date, "error", err)
		return nil, err
	}
	return summary, nil
}
