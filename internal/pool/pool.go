// Package pool runs the bounded set of crawl workers that drain the
// frontier queue.
package pool

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/linkaudit/linkaudit/internal/crawl"
	"github.com/linkaudit/linkaudit/internal/metrics"
	"github.com/linkaudit/linkaudit/internal/queue"
	"github.com/linkaudit/linkaudit/internal/session"
)

// Concurrency and throughput bounds applied when the config leaves them
// unset.
const (
	DefaultMinConcurrency = 10
	DefaultMaxConcurrency = 15
	DefaultRatePerMinute  = 200
)

// Dispatcher routes one completed render. Implemented by the router
// package.
type Dispatcher interface {
	Dispatch(ctx context.Context, req crawl.FetchRequest, res *crawl.RenderResult, renderErr error)
}

// Config bounds the worker pool.
type Config struct {
	MinConcurrency int
	MaxConcurrency int
	RatePerMinute  int
}

func (c Config) normalized() Config {
	if c.MinConcurrency <= 0 {
		c.MinConcurrency = DefaultMinConcurrency
	}
	if c.MaxConcurrency <= 0 {
		c.MaxConcurrency = DefaultMaxConcurrency
	}
	if c.MaxConcurrency < c.MinConcurrency {
		c.MaxConcurrency = c.MinConcurrency
	}
	if c.RatePerMinute <= 0 {
		c.RatePerMinute = DefaultRatePerMinute
	}
	return c
}

// Pool owns the worker goroutines for a single job. The dispatch rate
// cap is shared across all workers.
type Pool struct {
	cfg        Config
	queue      *queue.Queue
	renderer   crawl.Renderer
	dispatcher Dispatcher
	sessions   *session.Pool
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// New constructs a Pool.
func New(cfg Config, q *queue.Queue, renderer crawl.Renderer, dispatcher Dispatcher, sessions *session.Pool, logger *zap.Logger) *Pool {
	cfg = cfg.normalized()
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pool{
		cfg:        cfg,
		queue:      q,
		renderer:   renderer,
		dispatcher: dispatcher,
		sessions:   sessions,
		limiter:    rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RatePerMinute)), 1),
		logger:     logger,
	}
}

// Run starts the workers and blocks until the queue is exhausted: no
// pending items and no request still in flight. Every admitted request
// is dispatched exactly once before Run returns.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.MaxConcurrency; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.worker(ctx, id)
		}(i)
	}
	wg.Wait()
}

func (p *Pool) worker(ctx context.Context, id int) {
	logger := p.logger.With(zap.Int("worker", id))
	for {
		req, ok := p.queue.Dequeue()
		if !ok {
			logger.Debug("queue exhausted, worker exiting")
			return
		}
		p.process(ctx, req, logger)
		p.queue.Done()
	}
}

func (p *Pool) process(ctx context.Context, req crawl.FetchRequest, logger *zap.Logger) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("request processing panicked",
				zap.String("url", req.URL),
				zap.Any("panic", r),
			)
			// The request is still terminal: give the failure path a
			// chance to write its record so the worker survives.
			p.failureDispatch(ctx, req, fmt.Errorf("request panic: %v", r))
		}
	}()

	waitStart := time.Now()
	if err := p.limiter.Wait(ctx); err != nil {
		// Shutdown mid-wait: the request is still terminal, route it
		// through the failure path so its record is written.
		p.dispatcher.Dispatch(ctx, req, nil, err)
		return
	}
	metrics.ObserveDispatchDelay(time.Since(waitStart))

	var sess *session.Session
	if p.sessions != nil {
		sess = p.sessions.Acquire()
		defer p.sessions.Release(sess)
	}

	logger.Debug("dispatching request",
		zap.String("url", req.URL),
		zap.String("label", string(req.Label)),
	)

	res, err := p.renderer.Render(ctx, req.URL)
	if err == nil && res != nil {
		metrics.ObserveRenderDuration(res.Duration)
	}
	p.dispatcher.Dispatch(ctx, req, res, err)
}

// failureDispatch routes a request to the failure path after a panic. The
// dispatcher may be what panicked, so a second panic is swallowed rather
// than taking down the worker.
func (p *Pool) failureDispatch(ctx context.Context, req crawl.FetchRequest, err error) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("failure dispatch panicked",
				zap.String("url", req.URL),
				zap.Any("panic", r),
			)
		}
	}()
	p.dispatcher.Dispatch(ctx, req, nil, err)
}
