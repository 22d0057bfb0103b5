// Package pagelog synthesizes audit records from visited pages.
package pagelog

import (
	"go.uber.org/zap"

	"github.com/linkaudit/linkaudit/internal/crawl"
	"github.com/linkaudit/linkaudit/internal/domain"
	"github.com/linkaudit/linkaudit/internal/extract"
)

// Builder turns a fetch request plus its render outcome into a PageLog.
type Builder struct {
	resolver *domain.Validator
	logger   *zap.Logger
}

// New constructs a Builder.
func New(resolver *domain.Validator, logger *zap.Logger) *Builder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Builder{resolver: resolver, logger: logger}
}

// Build creates the audit record for a visited resource. res and page may
// be nil when navigation failed; every missing value gets the documented
// default (title = request URL, contentType = "Unknown", status = 500).
func (b *Builder) Build(req crawl.FetchRequest, res *crawl.RenderResult, page *extract.Page) crawl.PageLog {
	record := crawl.PageLog{
		URL:            req.URL,
		DestinationURL: req.URL,
		Title:          req.URL,
		Status:         500,
		ContentType:    "Unknown",
		LinkType:       req.Context.LinkType,
		FirstSourceURL: req.Context.FirstSourceURL,
		Direction:      crawl.DirectionInternal,
	}
	if record.LinkType == "" {
		record.LinkType = crawl.LinkTypeLink
	}

	if res != nil {
		if res.FinalURL != "" {
			record.DestinationURL = res.FinalURL
		}
		if res.StatusCode > 0 {
			record.Status = res.StatusCode
		}
		if ct := res.Headers.Get("Content-Type"); ct != "" {
			record.ContentType = ct
		}
	}
	if page != nil {
		if title, ok := page.Title(); ok {
			record.Title = title
		}
	}

	record.BrokenCheck = crawl.BrokenCheck(record.Status)

	pageDomain, ok := b.resolver.Resolve(record.URL)
	if !ok || pageDomain != req.Context.FirstSourceDomain {
		record.Direction = crawl.DirectionOutbound
	}

	b.logger.Info("page logged",
		zap.String("url", record.URL),
		zap.String("title", record.Title),
		zap.String("link_type", string(record.LinkType)),
		zap.Int("status", record.Status),
	)
	return record
}

// PageDomain resolves the registrable domain of the record's URL. The
// second value is false when the URL has none.
func (b *Builder) PageDomain(record crawl.PageLog) (string, bool) {
	return b.resolver.Resolve(record.URL)
}
