// Package router dispatches rendered fetch requests by label.
package router

import (
	"context"
	"regexp"

	"go.uber.org/zap"

	"github.com/linkaudit/linkaudit/internal/crawl"
	"github.com/linkaudit/linkaudit/internal/domain"
	"github.com/linkaudit/linkaudit/internal/extract"
	"github.com/linkaudit/linkaudit/internal/metrics"
	"github.com/linkaudit/linkaudit/internal/pagelog"
	"github.com/linkaudit/linkaudit/internal/queue"
)

var (
	documentPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\.docx$`),
		regexp.MustCompile(`(?i)\.pdf$`),
	}
	anchorExcludePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\.docx$`),
		regexp.MustCompile(`(?i)\.pdf$`),
		regexp.MustCompile(`(?i)\.zip$`),
	}
)

// FailureHandler receives requests whose render failed. Implemented by the
// fallback package.
type FailureHandler interface {
	Handle(ctx context.Context, req crawl.FetchRequest, renderErr error)
}

// Router decides expand-vs-leaf behavior per request label. Expand
// requests log the page and enqueue discovered children; leaf requests
// only log.
type Router struct {
	dataset  crawl.Dataset
	queue    *queue.Queue
	builder  *pagelog.Builder
	resolver *domain.Validator
	failures FailureHandler
	logger   *zap.Logger
}

// New constructs a Router.
func New(
	dataset crawl.Dataset,
	q *queue.Queue,
	builder *pagelog.Builder,
	resolver *domain.Validator,
	failures FailureHandler,
	logger *zap.Logger,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		dataset:  dataset,
		queue:    q,
		builder:  builder,
		resolver: resolver,
		failures: failures,
		logger:   logger,
	}
}

// Dispatch routes one completed render. A render failure goes to the
// fallback path exactly once and is then terminal.
func (r *Router) Dispatch(ctx context.Context, req crawl.FetchRequest, res *crawl.RenderResult, renderErr error) {
	if renderErr != nil {
		r.failures.Handle(ctx, req, renderErr)
		return
	}

	switch req.Label {
	case crawl.LabelAHref:
		r.expand(ctx, req, res)
	case crawl.LabelAHrefOnce,
		crawl.LabelImgSrc,
		crawl.LabelStylesheet,
		crawl.LabelScriptSrc,
		crawl.LabelDocument,
		crawl.LabelMetaTag:
		r.leaf(ctx, req, res)
	default:
		r.logger.Warn("unknown request label, logging as leaf", zap.String("label", string(req.Label)))
		r.leaf(ctx, req, res)
	}
}

func (r *Router) expand(ctx context.Context, req crawl.FetchRequest, res *crawl.RenderResult) {
	page := r.parse(req, res)
	record := r.builder.Build(req, res, page)
	r.append(ctx, req.Context.JobID, record)

	// Only pages on the seed's registrable domain are expanded; outbound
	// pages are logged and left alone.
	pageDomain, ok := r.resolver.Resolve(record.URL)
	if !ok || pageDomain != req.Context.FirstSourceDomain || page == nil {
		return
	}

	childCtx := crawl.RequestContext{
		JobID:             req.Context.JobID,
		FirstSourceDomain: req.Context.FirstSourceDomain,
		FirstSourceURL:    record.URL,
		Recursive:         req.Context.Recursive,
	}

	imgCtx := childCtx
	imgCtx.LinkType = crawl.LinkTypeImage
	r.queue.Enqueue(page.ImageSources(), crawl.LabelImgSrc, imgCtx, queue.StrategySameDomain, nil)

	metaCtx := childCtx
	metaCtx.LinkType = crawl.LinkTypeMeta
	r.queue.Enqueue(r.validMetaURLs(page), crawl.LabelMetaTag, metaCtx, queue.StrategyAll, nil)

	cssCtx := childCtx
	cssCtx.LinkType = crawl.LinkTypeStylesheet
	r.queue.Enqueue(page.StylesheetLinks(), crawl.LabelStylesheet, cssCtx, queue.StrategySameDomain, nil)

	scriptCtx := childCtx
	scriptCtx.LinkType = crawl.LinkTypeScript
	r.queue.Enqueue(page.ScriptSources(), crawl.LabelScriptSrc, scriptCtx, queue.StrategySameDomain, nil)

	anchors := page.AnchorLinks()

	docCtx := childCtx
	docCtx.LinkType = crawl.LinkTypeLink
	r.queue.Enqueue(filterMatching(anchors, documentPatterns), crawl.LabelDocument, docCtx, queue.StrategyAll, nil)

	anchorLabel := crawl.LabelAHref
	if !req.Context.Recursive {
		anchorLabel = crawl.LabelAHrefOnce
	}
	anchorCtx := childCtx
	anchorCtx.LinkType = crawl.LinkTypeLink
	r.queue.Enqueue(anchors, anchorLabel, anchorCtx, queue.StrategyAll, anchorExcludePatterns)
}

func (r *Router) leaf(ctx context.Context, req crawl.FetchRequest, res *crawl.RenderResult) {
	record := r.builder.Build(req, res, r.parse(req, res))
	r.append(ctx, req.Context.JobID, record)
}

func (r *Router) parse(req crawl.FetchRequest, res *crawl.RenderResult) *extract.Page {
	if res == nil || res.HTML == "" {
		return nil
	}
	base := res.FinalURL
	if base == "" {
		base = req.URL
	}
	page, err := extract.Parse(res.HTML, base)
	if err != nil {
		r.logger.Warn("page parse failed", zap.String("url", req.URL), zap.Error(err))
		return nil
	}
	return page
}

func (r *Router) append(ctx context.Context, jobID string, record crawl.PageLog) {
	metrics.ObservePage(string(record.LinkType), string(record.BrokenCheck), string(record.Direction))
	if err := r.dataset.Append(ctx, jobID, record); err != nil {
		r.logger.Error("dataset append failed",
			zap.String("job_id", jobID),
			zap.String("url", record.URL),
			zap.Error(err),
		)
	}
}

func (r *Router) validMetaURLs(page *extract.Page) []string {
	var out []string
	for _, content := range page.MetaContents() {
		if _, ok := r.resolver.Resolve(content); ok {
			out = append(out, content)
		}
	}
	return out
}

func filterMatching(urls []string, patterns []*regexp.Regexp) []string {
	var out []string
	for _, u := range urls {
		for _, p := range patterns {
			if p.MatchString(u) {
				out = append(out, u)
				break
			}
		}
	}
	return out
}
