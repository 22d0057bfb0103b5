// Package fetch issues direct HTTP requests without rendering. The
// fallback path uses it to recover the real status of a resource the
// browser could not navigate.
package fetch

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/linkaudit/linkaudit/internal/crawl"
)

// Config controls collector behavior.
type Config struct {
	UserAgent string
	Timeout   time.Duration
}

// Client implements crawl.FetchClient using the Colly collector.
type Client struct {
	cfg  Config
	base *colly.Collector
}

// New builds a Client.
func New(cfg Config) *Client {
	c := colly.NewCollector(colly.Async(false))
	c.IgnoreRobotsTxt = true
	// Non-2xx statuses must reach OnResponse; a 404 is data here, not a
	// transport failure.
	c.ParseHTTPErrorResponse = true
	c.WithTransport(newHTTPTransport())
	return &Client{cfg: cfg, base: c}
}

// Fetch executes a single GET and reports the response status and
// headers. Only transport-level failures return an error.
func (c *Client) Fetch(ctx context.Context, url string, headers http.Header) (*crawl.FetchResult, error) {
	var (
		result   *crawl.FetchResult
		fetchErr error
	)

	collector := c.base.Clone()
	collector.IgnoreRobotsTxt = true
	collector.ParseHTTPErrorResponse = true
	if c.cfg.UserAgent != "" {
		collector.UserAgent = c.cfg.UserAgent
	}
	timeout := c.cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	collector.SetRequestTimeout(timeout)

	collector.OnRequest(func(r *colly.Request) {
		for key, values := range headers {
			for _, v := range values {
				r.Headers.Add(key, v)
			}
		}
	})
	collector.OnResponse(func(r *colly.Response) {
		result = &crawl.FetchResult{
			StatusCode: r.StatusCode,
			Headers:    r.Headers.Clone(),
		}
	})
	collector.OnError(func(r *colly.Response, err error) {
		if r != nil && r.StatusCode > 0 {
			result = &crawl.FetchResult{
				StatusCode: r.StatusCode,
				Headers:    r.Headers.Clone(),
			}
			return
		}
		fetchErr = err
	})

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("fetch canceled: %w", ctx.Err())
	case err := <-done:
		if result != nil {
			return result, nil
		}
		if fetchErr != nil {
			return nil, fmt.Errorf("fetching %s: %w", url, fetchErr)
		}
		if err != nil {
			return nil, fmt.Errorf("fetching %s: %w", url, err)
		}
		return nil, fmt.Errorf("fetching %s: no response", url)
	}
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
