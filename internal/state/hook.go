// internal/state/hook.go
package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/user/sessionlog/internal/types"
)

var (
	ErrNoTranscriptPath   = errors.New("no transcript path provided")
	ErrOutsideAllowedRoot = errors.New("transcript path outside allowed directory")
	ErrTranscriptMissing  = errors.New("transcript file not found")
)

// HookInput is the payload a SessionEnd hook receives on stdin.
type HookInput struct {
	SessionID      string `json:"session_id"`
	TranscriptPath string `json:"transcript_path"`
	Cwd            string `json:"cwd"`
}

// NewRecordFromHook validates a hook payload and builds the record to queue.
// The transcript must exist and resolve under allowedRoot; a leading "~/" is
// expanded against home.
func NewRecordFromHook(in HookInput, home, allowedRoot, fallbackCwd string, now time.Time) (*types.SessionRecord, error) {
	if in.TranscriptPath == "" {
		return nil, ErrNoTranscriptPath
	}

	p := in.TranscriptPath
	if strings.HasPrefix(p, "~/") {
		p = filepath.Join(home, p[2:])
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return nil, fmt.Errorf("resolve transcript path: %w", err)
	}

	root := filepath.Clean(allowedRoot)
	if abs != root && !strings.HasPrefix(abs, root+string(filepath.Separator)) {
		return nil, fmt.Errorf("%w: %s", ErrOutsideAllowedRoot, abs)
	}
	if _, err := os.Stat(abs); err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrTranscriptMissing, abs)
		}
		return nil, fmt.Errorf("stat transcript: %w", err)
	}

	cwd := in.Cwd
	if cwd == "" {
		cwd = fallbackCwd
	}
	sessionID := in.SessionID
	if sessionID == "" {
		sessionID = types.NewSessionID()
	}

	return &types.SessionRecord{
		SessionID:      sessionID,
		Cwd:            cwd,
		TranscriptPath: abs,
		EndedAt:        now,
		ProjectName:    filepath.Base(cwd),
	}, nil
}
