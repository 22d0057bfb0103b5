// Package session manages the job-scoped session pool reused by workers.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/linkaudit/linkaudit/internal/crawl"
)

// stateKey is the key-value entry the pool state persists under.
const stateKey = "SDK_SESSION_POOL_STATE"

// Session is one reusable crawl identity. Sessions never cross jobs, so a
// later crawl cannot inherit another site's fingerprint.
type Session struct {
	ID       string    `json:"id"`
	Created  time.Time `json:"created_at"`
	UseCount int       `json:"use_count"`
}

// Pool hands out sessions to workers and persists its state under the
// job's key-value store.
type Pool struct {
	jobID     string
	artifacts crawl.ArtifactStore
	clock     crawl.Clock

	mu   sync.Mutex
	idle []*Session
	all  []*Session
}

// NewPool creates a session pool bound to one job.
func NewPool(jobID string, artifacts crawl.ArtifactStore, clock crawl.Clock) *Pool {
	return &Pool{
		jobID:     jobID,
		artifacts: artifacts,
		clock:     clock,
	}
}

// Acquire returns an idle session or creates a new one.
func (p *Pool) Acquire() *Session {
	p.mu.Lock()
	defer p.mu.Unlock()
	var s *Session
	if n := len(p.idle); n > 0 {
		s = p.idle[n-1]
		p.idle = p.idle[:n-1]
	} else {
		s = &Session{ID: uuid.NewString(), Created: p.clock.Now()}
		p.all = append(p.all, s)
	}
	s.UseCount++
	return s
}

// Release returns a session to the idle set.
func (p *Pool) Release(s *Session) {
	if s == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.idle = append(p.idle, s)
}

// Persist writes the pool state under the job's key-value store.
func (p *Pool) Persist(ctx context.Context) error {
	p.mu.Lock()
	state := struct {
		JobID    string     `json:"job_id"`
		Sessions []*Session `json:"sessions"`
	}{
		JobID:    p.jobID,
		Sessions: append([]*Session(nil), p.all...),
	}
	p.mu.Unlock()

	if err := p.artifacts.SetValue(ctx, p.jobID, stateKey, state); err != nil {
		return fmt.Errorf("persist session pool: %w", err)
	}
	return nil
}

// Size returns the number of sessions ever created by this pool.
func (p *Pool) Size() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.all)
}
