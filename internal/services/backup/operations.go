package backup

import (
	"sort"
	"sync"

	"github.com/searchops/meilivault/internal/models"
)

// OperationRegistry tracks reports for running and finished operations so the
// UI can poll them and download the final report. In-memory only; reports do
// not survive a restart.
type OperationRegistry struct {
	mu      sync.RWMutex
	reports map[string]*models.OperationReport
}

// NewOperationRegistry creates an empty registry.
func NewOperationRegistry() *OperationRegistry {
	return &OperationRegistry{
		reports: make(map[string]*models.OperationReport),
	}
}

// Register stores a report under its operation ID.
func (r *OperationRegistry) Register(report *models.OperationReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.reports[report.ID] = report
}

// Get returns the report for an operation ID, or nil when unknown.
func (r *OperationRegistry) Get(id string) *models.OperationReport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.reports[id]
}

// List returns snapshots of all known operations, newest first.
func (r *OperationRegistry) List() []models.OperationReport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snaps := make([]models.OperationReport, 0, len(r.reports))
	for _, report := range r.reports {
		snaps = append(snaps, report.Snapshot())
	}
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].StartedAt.After(snaps[j].StartedAt)
	})
	return snaps
}
