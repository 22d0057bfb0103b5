// Package memory provides an in-memory dataset for development/testing.
package memory

import (
	"context"
	"sync"

	"github.com/linkaudit/linkaudit/internal/crawl"
)

// Dataset keeps append-only audit records partitioned by job ID.
type Dataset struct {
	mu      sync.RWMutex
	records map[string][]crawl.PageLog
}

// New constructs a Dataset.
func New() *Dataset {
	return &Dataset{records: make(map[string][]crawl.PageLog)}
}

// Append adds one record to the job's partition.
func (d *Dataset) Append(_ context.Context, jobID string, record crawl.PageLog) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.records[jobID] = append(d.records[jobID], record)
	return nil
}

// List returns a copy of all records appended for a job so far. An unknown
// job yields an empty slice, not an error; partial reads are expected while
// a crawl is still running.
func (d *Dataset) List(_ context.Context, jobID string) ([]crawl.PageLog, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	records := d.records[jobID]
	out := make([]crawl.PageLog, len(records))
	copy(out, records)
	return out, nil
}
