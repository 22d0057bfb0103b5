// Package controller owns the crawl job lifecycle. It enforces the
// single-flight rule, seeds the frontier, runs the worker pool to
// exhaustion, and finalizes the job's artifacts.
package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/linkaudit/linkaudit/internal/crawl"
	"github.com/linkaudit/linkaudit/internal/domain"
	"github.com/linkaudit/linkaudit/internal/export"
	"github.com/linkaudit/linkaudit/internal/fallback"
	"github.com/linkaudit/linkaudit/internal/metrics"
	"github.com/linkaudit/linkaudit/internal/pagelog"
	"github.com/linkaudit/linkaudit/internal/pool"
	"github.com/linkaudit/linkaudit/internal/queue"
	"github.com/linkaudit/linkaudit/internal/router"
	"github.com/linkaudit/linkaudit/internal/session"
)

// Config tunes job execution.
type Config struct {
	Pool            pool.Config
	Recursive       bool
	FallbackTimeout time.Duration
	CompletionTopic string
}

// Controller accepts crawl jobs and runs them one at a time.
type Controller struct {
	cfg       Config
	resolver  *domain.Validator
	dataset   crawl.Dataset
	artifacts crawl.ArtifactStore
	renderer  crawl.Renderer
	fetcher   crawl.FetchClient
	publisher crawl.Publisher
	clock     crawl.Clock
	logger    *zap.Logger

	mu      sync.Mutex
	current *crawl.Job
	jobs    map[string]*crawl.Job

	wg sync.WaitGroup
}

// New constructs a Controller. publisher may be nil when completion
// events are disabled.
func New(
	cfg Config,
	resolver *domain.Validator,
	dataset crawl.Dataset,
	artifacts crawl.ArtifactStore,
	renderer crawl.Renderer,
	fetcher crawl.FetchClient,
	publisher crawl.Publisher,
	clock crawl.Clock,
	logger *zap.Logger,
) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Controller{
		cfg:       cfg,
		resolver:  resolver,
		dataset:   dataset,
		artifacts: artifacts,
		renderer:  renderer,
		fetcher:   fetcher,
		publisher: publisher,
		clock:     clock,
		logger:    logger,
		jobs:      make(map[string]*crawl.Job),
	}
}

// Start validates the seed URL, claims the single job slot, and launches
// the crawl in the background. It returns the job ID immediately.
//
// ErrInvalidDomain means the URL has no registrable domain; ErrJobConflict
// means another job holds the slot.
func (c *Controller) Start(ctx context.Context, seedURL string) (string, error) {
	registrable, ok := c.resolver.Resolve(seedURL)
	if !ok {
		return "", fmt.Errorf("%w: %s", crawl.ErrInvalidDomain, seedURL)
	}

	job := &crawl.Job{
		SeedURL:   seedURL,
		Domain:    registrable,
		Recursive: c.cfg.Recursive,
		Status:    crawl.JobStatusRunning,
		Created:   c.clock.Now(),
	}
	job.ID = fmt.Sprintf("%s-%d", registrable, job.Created.UnixMilli())

	c.mu.Lock()
	if c.current != nil {
		running := c.current.ID
		c.mu.Unlock()
		return "", fmt.Errorf("%w: %s", crawl.ErrJobConflict, running)
	}
	c.current = job
	c.jobs[job.ID] = job
	c.mu.Unlock()

	c.logger.Info("job accepted",
		zap.String("job_id", job.ID),
		zap.String("seed_url", seedURL),
		zap.String("domain", registrable),
		zap.Bool("recursive", job.Recursive),
	)

	// Any leftover frontier state from an aborted run is stale, clear it
	// before seeding. Failure is logged, not fatal.
	if err := c.artifacts.PurgeQueueState(ctx); err != nil {
		c.logger.Warn("queue state purge failed", zap.Error(err))
	}

	c.wg.Add(1)
	go c.runJob(job)

	return job.ID, nil
}

// Job returns the job with the given ID.
func (c *Controller) Job(id string) (*crawl.Job, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	job, ok := c.jobs[id]
	if !ok {
		return nil, false
	}
	copied := *job
	return &copied, true
}

// Wait blocks until the running job, if any, has finished. Used for
// graceful shutdown.
func (c *Controller) Wait() {
	c.wg.Wait()
}

func (c *Controller) runJob(job *crawl.Job) {
	defer c.wg.Done()
	defer c.release(job)
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("job panicked", zap.String("job_id", job.ID), zap.Any("panic", r))
		}
	}()

	ctx := context.Background()
	start := c.clock.Now()

	q := queue.New(c.resolver.SameRegistrable)
	q.Seed(crawl.FetchRequest{
		URL:   job.SeedURL,
		Label: crawl.LabelAHref,
		Context: crawl.RequestContext{
			JobID:             job.ID,
			FirstSourceDomain: job.Domain,
			FirstSourceURL:    job.SeedURL,
			Recursive:         job.Recursive,
			LinkType:          crawl.LinkTypeStartURL,
		},
	})

	builder := pagelog.New(c.resolver, c.logger)
	failures := fallback.New(c.dataset, builder, c.fetcher, c.cfg.FallbackTimeout, c.logger)
	dispatcher := router.New(c.dataset, q, builder, c.resolver, failures, c.logger)
	sessions := session.NewPool(job.ID, c.artifacts, c.clock)

	workers := pool.New(c.cfg.Pool, q, c.renderer, dispatcher, sessions, c.logger)
	workers.Run(ctx)

	if err := sessions.Persist(ctx); err != nil {
		c.logger.Warn("session state persist failed", zap.String("job_id", job.ID), zap.Error(err))
	}

	exporter := export.New(c.dataset, c.artifacts, c.logger)
	if err := exporter.Export(ctx, job.ID); err != nil {
		c.logger.Error("artifact export failed", zap.String("job_id", job.ID), zap.Error(err))
	}

	c.publishCompletion(ctx, job)

	c.mu.Lock()
	job.Status = crawl.JobStatusCompleted
	c.mu.Unlock()
	metrics.ObserveJob(string(crawl.JobStatusCompleted))

	c.logger.Info("job finished",
		zap.String("job_id", job.ID),
		zap.Duration("elapsed", c.clock.Now().Sub(start)),
	)
}

func (c *Controller) release(job *crawl.Job) {
	c.mu.Lock()
	if c.current != nil && c.current.ID == job.ID {
		c.current = nil
	}
	c.mu.Unlock()
}

func (c *Controller) publishCompletion(ctx context.Context, job *crawl.Job) {
	if c.publisher == nil || c.cfg.CompletionTopic == "" {
		return
	}
	recordCount := 0
	if records, err := c.dataset.List(ctx, job.ID); err == nil {
		recordCount = len(records)
	} else {
		c.logger.Warn("record count for completion event failed",
			zap.String("job_id", job.ID),
			zap.Error(err),
		)
	}

	id, err := c.publisher.Publish(ctx, c.cfg.CompletionTopic, map[string]any{
		"job_id":  job.ID,
		"domain":  job.Domain,
		"records": recordCount,
		"status":  string(crawl.JobStatusCompleted),
	})
	if err != nil {
		c.logger.Warn("completion publish failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	c.logger.Info("completion event published",
		zap.String("job_id", job.ID),
		zap.String("message_id", id),
	)
}
