// Package transcript reduces a session's JSONL transcript to a bounded,
// role-labelled excerpt suitable for an LLM prompt.
package transcript

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/user/sessionlog/internal/types"
)

const (
	MaxMessageRunes = 1500
	MaxMessages     = 15
	KeepHead        = 4
	KeepTail        = 8
	MinMessages     = 2
	ElisionMarker   = "\n[... omitted ...]\n"

	// MaxLineBytes caps a single transcript line; longer lines, typically
	// huge tool outputs, are skipped.
	MaxLineBytes = 10 * 1024 * 1024
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one user or assistant turn. Text may be empty when the turn
// carried only non-text blocks such as tool calls.
type Message struct {
	Role Role
	Text string
}

type line struct {
	Type    string `json:"type"`
	Message struct {
		Content json.RawMessage `json:"content"`
	} `json:"message"`
}

type block struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Load reads every user and assistant entry from the transcript at path.
// A missing file yields no messages; malformed lines are skipped.
func Load(path string) ([]Message, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open transcript: %w", err)
	}
	defer f.Close()

	r := bufio.NewReaderSize(f, 256*1024)
	var messages []Message
	for {
		buf, tooLong, err := readLine(r, MaxLineBytes)
		if tooLong {
			slog.Warn("skipping oversized transcript line", "path", path, "limit", MaxLineBytes)
		} else if raw := bytes.TrimSpace(buf); len(raw) > 0 {
			var l line
			if json.Unmarshal(raw, &l) == nil {
				if role := Role(l.Type); role == RoleUser || role == RoleAssistant {
					messages = append(messages, Message{Role: role, Text: contentText(l.Message.Content)})
				}
			}
		}
		if err == io.EOF {
			return messages, nil
		}
		if err != nil {
			return messages, fmt.Errorf("read transcript: %w", err)
		}
	}
}

// readLine returns the next line without its terminator. Lines longer than
// limit are consumed and reported as tooLong with no content.
func readLine(r *bufio.Reader, limit int) (buf []byte, tooLong bool, err error) {
	for {
		var (
			chunk    []byte
			isPrefix bool
		)
		chunk, isPrefix, err = r.ReadLine()
		if !tooLong {
			if len(buf)+len(chunk) > limit {
				tooLong, buf = true, nil
			} else {
				buf = append(buf, chunk...)
			}
		}
		if err != nil || !isPrefix {
			return buf, tooLong, err
		}
	}
}

// contentText accepts either a plain string or an array of content blocks,
// in which case the text blocks are joined by newlines.
func contentText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var str string
	if err := json.Unmarshal(raw, &str); err == nil {
		return str
	}
	var blocks []block
	if err := json.Unmarshal(raw, &blocks); err != nil {
		return ""
	}
	var parts []string
	for _, b := range blocks {
		if b.Type == "text" {
			parts = append(parts, b.Text)
		}
	}
	return strings.Join(parts, "\n")
}

// Format renders messages as labelled units, dropping empty ones and
// truncating long texts. Long conversations keep only their head and tail
// around an elision marker.
func Format(messages []Message) string {
	var units []string
	for _, m := range messages {
		if m.Text == "" {
			continue
		}
		label := "User"
		if m.Role == RoleAssistant {
			label = "Assistant"
		}
		units = append(units, "["+label+"]\n"+truncate(m.Text, MaxMessageRunes))
	}

	if len(units) > MaxMessages {
		kept := make([]string, 0, KeepHead+1+KeepTail)
		kept = append(kept, units[:KeepHead]...)
		kept = append(kept, ElisionMarker)
		kept = append(kept, units[len(units)-KeepTail:]...)
		units = kept
	}
	return strings.Join(units, "\n\n")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Compacted is the prompt-ready form of one session.
type Compacted struct {
	ProjectName string
	DisplayTime string
	Excerpt     string
}

// Compact loads and formats rec's transcript, showing the end time in loc
// (time.Local when nil). ok is false when the transcript holds fewer than
// MinMessages user or assistant entries, in which case the session
// contributes nothing to the summary.
func Compact(rec *types.SessionRecord, loc *time.Location) (*Compacted, bool, error) {
	if loc == nil {
		loc = time.Local
	}
	messages, err := Load(rec.TranscriptPath)
	if err != nil {
		return nil, false, err
	}
	if len(messages) < MinMessages {
		return nil, false, nil
	}
	return &Compacted{
		ProjectName: rec.ProjectName,
		DisplayTime: rec.EndedAt.In(loc).Format("15:04"),
		Excerpt:     Format(messages),
	}, true, nil
}

// CompactAll compacts records concurrently with at most limit transcripts
// open at once. The result keeps input order and omits excluded sessions.
// A transcript that cannot be read excludes that session only.
func CompactAll(ctx context.Context, records []*types.SessionRecord, loc *time.Location, limit int, onError func(*types.SessionRecord, error)) ([]*Compacted, error) {
	results := make([]*Compacted, len(records))

	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, rec := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			c, ok, err := Compact(rec, loc)
			if err != nil {
				if onError != nil {
					onError(rec, err)
				}
				return nil
			}
			if ok {
				results[i] = c
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*Compacted, 0, len(results))
	for _, c := range results {
		if c != nil {
			out = append(out, c)
		}
	}
	return out, nil
}
