// internal/state/hook_test.go
package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNewRecordFromHook(t *testing.T) {
	home := t.TempDir()
	root := filepath.Join(home, ".claude", "projects")
	transcript := filepath.Join(root, "proj", "abc.jsonl")
	if err := os.MkdirAll(filepath.Dir(transcript), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(transcript, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	outside := filepath.Join(home, "elsewhere.jsonl")
	if err := os.WriteFile(outside, []byte("{}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	now := time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)

	t.Run("tilde expansion", func(t *testing.T) {
		in := HookInput{SessionID: "abc", TranscriptPath: "~/.claude/projects/proj/abc.jsonl", Cwd: "/work/myproj"}
		rec, err := NewRecordFromHook(in, home, root, "/fallback", now)
		if err != nil {
			t.Fatal(err)
		}
		if rec.TranscriptPath != transcript {
			t.Errorf("expected %s, got %s", transcript, rec.TranscriptPath)
		}
		if rec.ProjectName != "myproj" || rec.SessionID != "abc" || !rec.EndedAt.Equal(now) {
			t.Errorf("unexpected record: %+v", rec)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		rec, err := NewRecordFromHook(HookInput{TranscriptPath: transcript}, home, root, "/fallback/dir", now)
		if err != nil {
			t.Fatal(err)
		}
		if rec.Cwd != "/fallback/dir" || rec.ProjectName != "dir" {
			t.Errorf("expected fallback cwd, got %+v", rec)
		}
		if len(rec.SessionID) != 36 {
			t.Errorf("expected generated session id, got %q", rec.SessionID)
		}
	})

	t.Run("errors", func(t *testing.T) {
		cases := []struct {
			name string
			path string
			want error
		}{
			{"empty", "", ErrNoTranscriptPath},
			{"outside root", outside, ErrOutsideAllowedRoot},
			{"traversal", filepath.Join(root, "..", "..", "elsewhere.jsonl"), ErrOutsideAllowedRoot},
			{"missing", filepath.Join(root, "proj", "nope.jsonl"), ErrTranscriptMissing},
		}
		for _, tc := range cases {
			_, err := NewRecordFromHook(HookInput{TranscriptPath: tc.path}, home, root, "/", now)
			if !errors.Is(err, tc.want) {
				t.Errorf("%s: expected %v, got %v", tc.name, tc.want, err)
			}
		}
	})
}
