// Package render drives a headless browser so crawled pages arrive with
// their scripts executed.
package render

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"

	"github.com/linkaudit/linkaudit/internal/crawl"
)

// Config controls browser behavior.
type Config struct {
	MaxParallel       int
	UserAgent         string
	NavigationTimeout time.Duration
}

// Engine implements crawl.Renderer on top of chromedp. One allocator is
// shared across renders; each Render opens its own tab.
type Engine struct {
	cfg         Config
	slots       chan struct{}
	allocator   context.Context
	allocCancel context.CancelFunc
}

// New creates a rendering engine backed by headless Chrome.
func New(cfg Config) (*Engine, error) {
	if cfg.MaxParallel < 0 {
		return nil, fmt.Errorf("max parallel must be >= 0")
	}
	if cfg.NavigationTimeout <= 0 {
		cfg.NavigationTimeout = 45 * time.Second
	}
	var slots chan struct{}
	if cfg.MaxParallel > 0 {
		slots = make(chan struct{}, cfg.MaxParallel)
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", "new"),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("hide-scrollbars", true),
		chromedp.Flag("enable-automation", false),
	)
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), opts...)

	return &Engine{
		cfg:         cfg,
		slots:       slots,
		allocator:   allocCtx,
		allocCancel: allocCancel,
	}, nil
}

// Close cancels the allocator context.
func (e *Engine) Close() {
	e.allocCancel()
}

// Render navigates to the URL in a fresh tab and returns the rendered
// document together with the main-document response metadata.
func (e *Engine) Render(ctx context.Context, url string) (*crawl.RenderResult, error) {
	if err := e.acquire(ctx); err != nil {
		return nil, err
	}
	defer e.release()

	tabCtx, tabCancel := chromedp.NewContext(e.allocator)
	defer tabCancel()

	tabCtx, cancel := context.WithTimeout(tabCtx, e.cfg.NavigationTimeout)
	defer cancel()

	meta := newDocumentMeta()
	chromedp.ListenTarget(tabCtx, meta.captureEvent)

	start := time.Now()

	var (
		html     string
		location string
	)
	actions := []chromedp.Action{
		e.sessionSetup(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Sleep(500 * time.Millisecond),
		chromedp.Location(&location),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	}
	if err := chromedp.Run(tabCtx, actions...); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", url, err)
	}

	status, headers, finalURL := meta.resolve(url, location)

	return &crawl.RenderResult{
		FinalURL:   finalURL,
		StatusCode: status,
		Headers:    headers,
		HTML:       html,
		Duration:   time.Since(start),
	}, nil
}

func (e *Engine) sessionSetup() chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		if err := network.Enable().Do(ctx); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if e.cfg.UserAgent != "" {
			if err := emulation.SetUserAgentOverride(e.cfg.UserAgent).Do(ctx); err != nil {
				return fmt.Errorf("set user-agent: %w", err)
			}
		}
		return nil
	})
}

func (e *Engine) acquire(ctx context.Context) error {
	if e.slots == nil {
		return nil
	}
	select {
	case e.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("render slot wait canceled: %w", ctx.Err())
	}
}

func (e *Engine) release() {
	if e.slots == nil {
		return
	}
	select {
	case <-e.slots:
	default:
	}
}

// documentMeta captures the main-document network response for a tab.
type documentMeta struct {
	mu      sync.RWMutex
	status  int
	headers http.Header
	url     string
}

func newDocumentMeta() *documentMeta {
	return &documentMeta{headers: http.Header{}}
}

func (m *documentMeta) captureEvent(ev any) {
	resp, ok := ev.(*network.EventResponseReceived)
	if !ok || resp.Type != network.ResourceTypeDocument || resp.Response == nil {
		return
	}
	headers := http.Header{}
	for key, value := range resp.Response.Headers {
		switch v := value.(type) {
		case string:
			headers.Add(key, v)
		case []string:
			for _, entry := range v {
				headers.Add(key, entry)
			}
		case []interface{}:
			for _, entry := range v {
				headers.Add(key, fmt.Sprint(entry))
			}
		default:
			headers.Add(key, fmt.Sprint(v))
		}
	}
	m.mu.Lock()
	m.status = int(resp.Response.Status)
	m.headers = headers
	m.url = resp.Response.URL
	m.mu.Unlock()
}

// resolve returns the captured metadata, falling back to the browser's
// final location and then the request URL when no document event fired
// (cached or about: navigations).
func (m *documentMeta) resolve(requestURL, location string) (int, http.Header, string) {
	m.mu.RLock()
	status, headers, url := m.status, m.headers.Clone(), m.url
	m.mu.RUnlock()

	switch {
	case url != "":
	case location != "":
		url = location
	default:
		url = requestURL
	}
	if status == 0 {
		status = http.StatusOK
	}
	if headers == nil {
		headers = http.Header{}
	}
	return status, headers, url
}
