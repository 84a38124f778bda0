package models

import (
	"strconv"
	"strings"
	"sync"
	"time"
)

// OperationType identifies what a long-running operation is doing.
type OperationType string

const (
	OperationBackup  OperationType = "backup"
	OperationRestore OperationType = "restore"
)

// OperationStatus tracks the lifecycle of an operation.
type OperationStatus string

const (
	OperationRunning   OperationStatus = "running"
	OperationCompleted OperationStatus = "completed"
	OperationFailed    OperationStatus = "failed"
)

// IndexResult records the outcome of one index within an operation.
// Per-index failure does not roll back other indexes.
type IndexResult struct {
	UID       string `json:"uid"`
	Documents int64  `json:"documents"`
	Succeeded bool   `json:"succeeded"`
	Error     string `json:"error,omitempty"`
}

// OperationReport accumulates ordered log lines and per-index results for a
// backup or restore run. Safe for concurrent appends from the operation
// goroutine while handlers read snapshots.
type OperationReport struct {
	mu sync.Mutex

	ID        string          `json:"id"`
	Type      OperationType   `json:"type"`
	Status    OperationStatus `json:"status"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   time.Time       `json:"ended_at,omitempty"`
	Lines     []string        `json:"lines"`
	Results   []IndexResult   `json:"results"`
	Error     string          `json:"error,omitempty"`
}

// NewOperationReport starts a report for an operation in the running state.
func NewOperationReport(id string, opType OperationType) *OperationReport {
	return &OperationReport{
		ID:        id,
		Type:      opType,
		Status:    OperationRunning,
		StartedAt: time.Now().UTC(),
	}
}

// Log appends a line to the report and returns it so callers can forward the
// same line to the event bus.
func (r *OperationReport) Log(line string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Lines = append(r.Lines, line)
	return line
}

// AddResult records an index outcome.
func (r *OperationReport) AddResult(result IndexResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Results = append(r.Results, result)
}

// Finish marks the operation complete. A non-nil err marks it failed.
func (r *OperationReport) Finish(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.EndedAt = time.Now().UTC()
	if err != nil {
		r.Status = OperationFailed
		r.Error = err.Error()
		return
	}
	r.Status = OperationCompleted
}

// Snapshot returns a copy safe to serialize while the operation is running.
func (r *OperationReport) Snapshot() OperationReport {
	r.mu.Lock()
	defer r.mu.Unlock()
	snap := OperationReport{
		ID:        r.ID,
		Type:      r.Type,
		Status:    r.Status,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
		Error:     r.Error,
		Lines:     make([]string, len(r.Lines)),
		Results:   make([]IndexResult, len(r.Results)),
	}
	copy(snap.Lines, r.Lines)
	copy(snap.Results, r.Results)
	return snap
}

// Text renders the report as the plain log the UI displays.
func (r *OperationReport) Text() string {
	snap := r.Snapshot()
	return strings.Join(snap.Lines, "\n")
}

// Markdown renders the report for PDF export.
func (r *OperationReport) Markdown() string {
	snap := r.Snapshot()

	title := string(snap.Type)
	if title != "" {
		title = strings.ToUpper(title[:1]) + title[1:]
	}

	var b strings.Builder
	b.WriteString("# ")
	b.WriteString(title)
	b.WriteString(" Report\n\n")
	b.WriteString("**Operation:** ")
	b.WriteString(snap.ID)
	b.WriteString("\n\n**Status:** ")
	b.WriteString(string(snap.Status))
	b.WriteString("\n\n## Indexes\n\n")
	b.WriteString("| Index | Documents | Result |\n|-------|-----------|--------|\n")
	for _, res := range snap.Results {
		outcome := "ok"
		if !res.Succeeded {
			outcome = res.Error
		}
		b.WriteString("| ")
		b.WriteString(res.UID)
		b.WriteString(" | ")
		b.WriteString(strconv.FormatInt(res.Documents, 10))
		b.WriteString(" | ")
		b.WriteString(outcome)
		b.WriteString(" |\n")
	}
	b.WriteString("\n## Log\n\n")
	for _, line := range snap.Lines {
		b.WriteString("- ")
		b.WriteString(line)
		b.WriteString("\n")
	}
	return b.String()
}
