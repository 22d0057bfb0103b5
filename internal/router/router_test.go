package router

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/linkaudit/linkaudit/internal/crawl"
	"github.com/linkaudit/linkaudit/internal/dataset/memory"
	"github.com/linkaudit/linkaudit/internal/domain"
	"github.com/linkaudit/linkaudit/internal/pagelog"
	"github.com/linkaudit/linkaudit/internal/queue"
)

const examplePage = `<!DOCTYPE html>
<html>
<head>
<title>Example Home</title>
<meta property="og:url" content="https://example.com/canonical">
<meta name="description" content="not a url">
<link rel="stylesheet" href="/css/site.css">
<script src="/js/app.js"></script>
</head>
<body>
<a href="/about">About</a>
<a href="https://other.org/page">Elsewhere</a>
<a href="/files/report.pdf">Report</a>
<a href="/files/archive.zip">Archive</a>
<img src="/img/logo.png">
</body>
</html>`

type recordedFailure struct {
	req crawl.FetchRequest
	err error
}

type fakeFailures struct {
	calls []recordedFailure
}

func (f *fakeFailures) Handle(_ context.Context, req crawl.FetchRequest, renderErr error) {
	f.calls = append(f.calls, recordedFailure{req: req, err: renderErr})
}

func newTestRouter(t *testing.T) (*Router, *memory.Dataset, *queue.Queue, *fakeFailures) {
	t.Helper()
	resolver := domain.New()
	ds := memory.New()
	q := queue.New(resolver.SameRegistrable)
	failures := &fakeFailures{}
	r := New(ds, q, pagelog.New(resolver, zap.NewNop()), resolver, failures, zap.NewNop())
	return r, ds, q, failures
}

func renderOK(url, html string) *crawl.RenderResult {
	return &crawl.RenderResult{
		FinalURL:   url,
		StatusCode: 200,
		Headers:    http.Header{"Content-Type": []string{"text/html; charset=utf-8"}},
		HTML:       html,
	}
}

// The seed request travels on the anchor label; only its link type marks
// it as the start of the crawl.
func startRequest(url string, recursive bool) crawl.FetchRequest {
	return crawl.FetchRequest{
		URL:   url,
		Label: crawl.LabelAHref,
		Context: crawl.RequestContext{
			JobID:             "example.com-1700000000000",
			FirstSourceDomain: "example.com",
			FirstSourceURL:    url,
			Recursive:         recursive,
			LinkType:          crawl.LinkTypeStartURL,
		},
	}
}

func drain(q *queue.Queue) []crawl.FetchRequest {
	var out []crawl.FetchRequest
	for q.Pending() > 0 {
		req, ok := q.Dequeue()
		if !ok {
			break
		}
		out = append(out, req)
		q.Done()
	}
	return out
}

func TestDispatchExpandEnqueuesDiscoveredResources(t *testing.T) {
	r, ds, q, _ := newTestRouter(t)
	req := startRequest("https://example.com/", false)

	r.Dispatch(context.Background(), req, renderOK("https://example.com/", examplePage), nil)

	records, err := ds.List(context.Background(), req.Context.JobID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "Example Home", records[0].Title)
	assert.Equal(t, crawl.LinkStatusOK, records[0].BrokenCheck)
	assert.Equal(t, crawl.DirectionInternal, records[0].Direction)

	byLabel := map[crawl.Label][]string{}
	for _, child := range drain(q) {
		byLabel[child.Label] = append(byLabel[child.Label], child.URL)
		assert.Equal(t, "https://example.com/", child.Context.FirstSourceURL)
		assert.Equal(t, "example.com", child.Context.FirstSourceDomain)
	}

	assert.Equal(t, []string{"https://example.com/img/logo.png"}, byLabel[crawl.LabelImgSrc])
	assert.Equal(t, []string{"https://example.com/canonical"}, byLabel[crawl.LabelMetaTag])
	assert.Equal(t, []string{"https://example.com/css/site.css"}, byLabel[crawl.LabelStylesheet])
	assert.Equal(t, []string{"https://example.com/js/app.js"}, byLabel[crawl.LabelScriptSrc])
	assert.Equal(t, []string{"https://example.com/files/report.pdf"}, byLabel[crawl.LabelDocument])

	// Non-recursive jobs expand anchors exactly one level deep.
	assert.ElementsMatch(t,
		[]string{"https://example.com/about", "https://other.org/page"},
		byLabel[crawl.LabelAHrefOnce],
	)
	assert.Empty(t, byLabel[crawl.LabelAHref])
}

func TestDispatchRecursiveKeepsExpandingAnchors(t *testing.T) {
	r, _, q, _ := newTestRouter(t)
	req := startRequest("https://example.com/", true)

	r.Dispatch(context.Background(), req, renderOK("https://example.com/", examplePage), nil)

	var anchorLabels []crawl.Label
	for _, child := range drain(q) {
		if child.URL == "https://example.com/about" {
			anchorLabels = append(anchorLabels, child.Label)
		}
	}
	assert.Equal(t, []crawl.Label{crawl.LabelAHref}, anchorLabels)
}

func TestDispatchExpandExcludesArchivesFromAnchors(t *testing.T) {
	r, _, q, _ := newTestRouter(t)
	req := startRequest("https://example.com/", false)

	r.Dispatch(context.Background(), req, renderOK("https://example.com/", examplePage), nil)

	for _, child := range drain(q) {
		if child.Label == crawl.LabelAHrefOnce || child.Label == crawl.LabelAHref {
			assert.NotContains(t, child.URL, ".zip")
			assert.NotContains(t, child.URL, ".pdf")
		}
	}
}

func TestDispatchOutboundPageIsNotExpanded(t *testing.T) {
	r, ds, q, _ := newTestRouter(t)
	req := crawl.FetchRequest{
		URL:   "https://other.org/page",
		Label: crawl.LabelAHref,
		Context: crawl.RequestContext{
			JobID:             "example.com-1700000000000",
			FirstSourceDomain: "example.com",
			FirstSourceURL:    "https://example.com/",
			LinkType:          crawl.LinkTypeLink,
		},
	}

	r.Dispatch(context.Background(), req, renderOK("https://other.org/page", examplePage), nil)

	records, err := ds.List(context.Background(), req.Context.JobID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, crawl.DirectionOutbound, records[0].Direction)
	assert.Zero(t, q.Pending())
}

func TestDispatchLeafLabelsOnlyLog(t *testing.T) {
	r, ds, q, _ := newTestRouter(t)
	req := crawl.FetchRequest{
		URL:   "https://example.com/img/logo.png",
		Label: crawl.LabelImgSrc,
		Context: crawl.RequestContext{
			JobID:             "example.com-1700000000000",
			FirstSourceDomain: "example.com",
			FirstSourceURL:    "https://example.com/",
			LinkType:          crawl.LinkTypeImage,
		},
	}
	res := &crawl.RenderResult{
		FinalURL:   req.URL,
		StatusCode: 200,
		Headers:    http.Header{"Content-Type": []string{"image/png"}},
	}

	r.Dispatch(context.Background(), req, res, nil)

	records, err := ds.List(context.Background(), req.Context.JobID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, crawl.LinkTypeImage, records[0].LinkType)
	assert.Equal(t, "image/png", records[0].ContentType)
	assert.Zero(t, q.Pending())
}

func TestDispatchRenderErrorGoesToFailurePath(t *testing.T) {
	r, ds, _, failures := newTestRouter(t)
	req := startRequest("https://example.com/", false)
	renderErr := errors.New("net::ERR_CONNECTION_REFUSED")

	r.Dispatch(context.Background(), req, nil, renderErr)

	require.Len(t, failures.calls, 1)
	assert.Equal(t, req.URL, failures.calls[0].req.URL)
	assert.ErrorIs(t, failures.calls[0].err, renderErr)

	records, err := ds.List(context.Background(), req.Context.JobID)
	require.NoError(t, err)
	assert.Empty(t, records)
}
