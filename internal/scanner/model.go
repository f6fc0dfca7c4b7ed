package scanner

import (
	"time"

	"github.com/sydlexius/modcheck/internal/compat"
)

// Scan states.
const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusInterrupted = "interrupted"
	StatusFailed      = "failed"
)

// ScanResult summarizes one pass over a mods directory.
type ScanResult struct {
	ID          string     `json:"id" yaml:"id"`
	Status      string     `json:"status" yaml:"status"` // "running", "completed", "interrupted", "failed"
	Directory   string     `json:"directory" yaml:"directory"`
	StartedAt   time.Time  `json:"started_at" yaml:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty" yaml:"completed_at,omitempty"`

	Strategy compat.Strategy `json:"strategy" yaml:"strategy"`
	Target   compat.Target   `json:"target" yaml:"target"`

	// TotalFiles counts the mod files found; len(Verdicts) may be smaller
	// when the scan was interrupted.
	TotalFiles int                   `json:"total_files" yaml:"total_files"`
	Counts     map[compat.Status]int `json:"counts" yaml:"counts"`
	Verdicts   []compat.Verdict      `json:"verdicts" yaml:"verdicts"`
	Error      string                `json:"error,omitempty" yaml:"error,omitempty"`
}

// Count returns the number of verdicts with status st.
func (r *ScanResult) Count(st compat.Status) int {
	return r.Counts[st]
}

// Duration is the wall time of a finished scan, or zero while running.
func (r *ScanResult) Duration() time.Duration {
	if r.CompletedAt == nil {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

func countStatuses(verdicts []compat.Verdict) map[compat.Status]int {
	counts := make(map[compat.Status]int, 3)
	for _, st := range compat.AllStatuses() {
		counts[st] = 0
	}
	for _, v := range verdicts {
		counts[v.Status]++
	}
	return counts
}
