// Package fallback is the terminal path for requests whose render
// failed. It records the failure, then attempts one plain HTTP fetch to
// recover the real status before the record is written. There are no
// retries beyond that single attempt.
package fallback

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/linkaudit/linkaudit/internal/crawl"
	"github.com/linkaudit/linkaudit/internal/metrics"
	"github.com/linkaudit/linkaudit/internal/pagelog"
)

// DefaultTimeout bounds the recovery fetch.
const DefaultTimeout = 5 * time.Second

// Handler builds a failure record and tries to upgrade it with a direct
// fetch before appending it to the dataset.
type Handler struct {
	dataset crawl.Dataset
	builder *pagelog.Builder
	client  crawl.FetchClient
	timeout time.Duration
	logger  *zap.Logger
}

// New constructs a Handler. A zero timeout falls back to DefaultTimeout.
func New(dataset crawl.Dataset, builder *pagelog.Builder, client crawl.FetchClient, timeout time.Duration, logger *zap.Logger) *Handler {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		dataset: dataset,
		builder: builder,
		client:  client,
		timeout: timeout,
		logger:  logger,
	}
}

// Handle records the failed request. When the recovery fetch reaches the
// resource with a 2xx status, the record is rewritten as healthy; any
// other outcome leaves the broken record as built.
func (h *Handler) Handle(ctx context.Context, req crawl.FetchRequest, renderErr error) {
	h.logger.Warn("render failed, using fallback fetch",
		zap.String("url", req.URL),
		zap.String("label", string(req.Label)),
		zap.Error(renderErr),
	)

	record := h.builder.Build(req, nil, nil)

	fetchCtx, cancel := context.WithTimeout(ctx, h.timeout)
	defer cancel()

	headers := http.Header{}
	if req.Context.FirstSourceDomain != "" {
		headers.Set("Referer", req.Context.FirstSourceDomain)
	}

	res, err := h.client.Fetch(fetchCtx, req.URL, headers)
	switch {
	case err != nil:
		metrics.ObserveFallback("error")
		h.logger.Warn("fallback fetch failed", zap.String("url", req.URL), zap.Error(err))
	case res.StatusCode >= 200 && res.StatusCode < 300:
		metrics.ObserveFallback("recovered")
		record.Status = res.StatusCode
		record.BrokenCheck = crawl.LinkStatusOK
		record.Title = req.URL
		if ct := res.Headers.Get("Content-Type"); ct != "" {
			record.ContentType = ct
		}
	default:
		// Non-2xx: the broken record stands exactly as built.
		metrics.ObserveFallback("broken")
		h.logger.Warn("fallback fetch returned error status",
			zap.String("url", req.URL),
			zap.Int("status", res.StatusCode),
		)
	}

	jobID := req.Context.JobID
	if jobID == "" {
		// Requests that arrive outside a job are filed under their own
		// registrable domain so nothing is silently dropped.
		if pageDomain, ok := h.builder.PageDomain(record); ok {
			jobID = pageDomain
		} else {
			jobID = "unknown"
		}
	}

	if err := h.dataset.Append(ctx, jobID, record); err != nil {
		h.logger.Error("dataset append failed",
			zap.String("job_id", jobID),
			zap.String("url", record.URL),
			zap.Error(err),
		)
	}
}
