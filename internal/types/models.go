// internal/types/models.go
package types

import (
	"time"
)

// SessionRecord is the stored fact that one interactive session ended.
// Filename is the record's name in the queue and is not serialized.
type SessionRecord struct {
	SessionID      string    `json:"session_id"`
	Cwd            string    `json:"cwd"`
	TranscriptPath string    `json:"transcript_path"`
	EndedAt        time.Time `json:"ended_at"`
	ProjectName    string    `json:"project_name"`
	Filename       string    `json:"-"`
}

// StepStatus is the outcome of one step of a day's batch.
type StepStatus string

const (
	StepOK      StepStatus = "ok"
	StepSkipped StepStatus = "skipped"
	StepFailed  StepStatus = "failed"
)

// StepResult records what happened to one step of a day's batch.
type StepResult struct {
	Step   string     `json:"step"`
	Status StepStatus `json:"status"`
	Detail string     `json:"detail,omitempty"`
}

// LedgerEntry is one line of the run ledger: the outcome of processing a day.
type LedgerEntry struct {
	Seq      int64        `json:"seq"`
	RunID    RunID        `json:"run_id"`
	Mode     string       `json:"mode"`
	Date     string       `json:"date"`
	Sessions int          `json:"sessions"`
	Success  bool         `json:"success"`
	Steps    []StepResult `json:"steps"`
	At       time.Time    `json:"at"`
}
