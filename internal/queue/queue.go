// Package queue implements the per-job request queue with admission
// control and exhaustion detection.
package queue

import (
	"net/url"
	"regexp"
	"sync"

	"github.com/linkaudit/linkaudit/internal/crawl"
	"github.com/linkaudit/linkaudit/internal/metrics"
)

// Strategy selects the domain filter applied before admission.
type Strategy string

// Admission strategies.
const (
	// StrategySameDomain admits a candidate only when its host belongs to
	// the request context's first-source domain.
	StrategySameDomain Strategy = "same-domain"
	// StrategyAll applies no domain filter.
	StrategyAll Strategy = "all"
)

// SameDomainFunc reports whether hostname belongs to the registrable
// domain the crawl started from.
type SameDomainFunc func(hostname, registrable string) bool

// Queue is a thread-safe FIFO of fetch requests. URLs are de-duplicated
// globally across labels for the lifetime of the queue (one job), and the
// queue tracks outstanding work so workers can detect exhaustion: a
// request counts as outstanding from admission until the worker that
// consumed it calls Done.
type Queue struct {
	mu          sync.Mutex
	cond        *sync.Cond
	items       []crawl.FetchRequest
	seen        map[string]struct{}
	outstanding int
	sameDomain  SameDomainFunc
}

// New creates an empty queue. sameDomain decides same-domain admission;
// a nil func falls back to exact hostname equality.
func New(sameDomain SameDomainFunc) *Queue {
	if sameDomain == nil {
		sameDomain = func(hostname, registrable string) bool {
			return hostname == registrable
		}
	}
	q := &Queue{
		seen:       make(map[string]struct{}),
		sameDomain: sameDomain,
	}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Seed admits the initial request, bypassing strategy filters but still
// registering its URL in the dedup set.
func (q *Queue) Seed(req crawl.FetchRequest) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.admit(req)
}

// Enqueue filters candidates by strategy, exclusion patterns, and the
// global dedup set, then admits the survivors with the given label and
// context. It returns the number admitted.
func (q *Queue) Enqueue(
	urls []string,
	label crawl.Label,
	reqCtx crawl.RequestContext,
	strategy Strategy,
	exclude []*regexp.Regexp,
) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	admitted := 0
	for _, raw := range urls {
		if !q.passesFilters(raw, reqCtx, strategy, exclude, label) {
			continue
		}
		if q.admit(crawl.FetchRequest{URL: raw, Label: label, Context: reqCtx}) {
			admitted++
			metrics.ObserveEnqueue(string(label), "admitted")
		} else {
			metrics.ObserveEnqueue(string(label), "duplicate")
		}
	}
	return admitted
}

func (q *Queue) passesFilters(
	raw string,
	reqCtx crawl.RequestContext,
	strategy Strategy,
	exclude []*regexp.Regexp,
	label crawl.Label,
) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		metrics.ObserveEnqueue(string(label), "unparseable")
		return false
	}
	if strategy == StrategySameDomain && !q.sameDomain(u.Hostname(), reqCtx.FirstSourceDomain) {
		metrics.ObserveEnqueue(string(label), "off-domain")
		return false
	}
	for _, pattern := range exclude {
		if pattern.MatchString(raw) {
			metrics.ObserveEnqueue(string(label), "excluded")
			return false
		}
	}
	return true
}

// admit registers the request URL and appends it. Caller holds q.mu.
func (q *Queue) admit(req crawl.FetchRequest) bool {
	key, err := crawl.NormalizeURL(req.URL)
	if err != nil {
		key = req.URL
	}
	if _, dup := q.seen[key]; dup {
		return false
	}
	q.seen[key] = struct{}{}
	q.items = append(q.items, req)
	q.outstanding++
	q.cond.Signal()
	return true
}

// Dequeue pops the next request, blocking while the queue is empty but
// work is still in flight. It returns false once the queue is exhausted:
// no queued items and no outstanding requests.
func (q *Queue) Dequeue() (crawl.FetchRequest, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if len(q.items) > 0 {
			req := q.items[0]
			q.items = q.items[1:]
			return req, true
		}
		if q.outstanding == 0 {
			return crawl.FetchRequest{}, false
		}
		q.cond.Wait()
	}
}

// Done marks one dequeued request as fully processed (including any child
// enqueues it performed). The final Done wakes every blocked worker.
func (q *Queue) Done() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.outstanding > 0 {
		q.outstanding--
	}
	if q.outstanding == 0 {
		q.cond.Broadcast()
	}
}

// Pending returns the number of queued, not-yet-dequeued requests.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
