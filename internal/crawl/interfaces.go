package crawl

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

// Errors surfaced synchronously by the controller. Everything else is
// contained at the worker level and never aborts a job.
var (
	ErrInvalidDomain = errors.New("invalid domain")
	ErrJobConflict   = errors.New("a crawl job is already running")
)

// Dataset is the append-only, job-partitioned audit record store.
type Dataset interface {
	Append(ctx context.Context, jobID string, record PageLog) error
	List(ctx context.Context, jobID string) ([]PageLog, error)
}

// ArtifactStore persists per-job key-value artifacts and files.
type ArtifactStore interface {
	SetValue(ctx context.Context, jobID string, key string, value any) error
	WriteFile(ctx context.Context, jobID string, name string, data []byte) (string, error)
	Open(ctx context.Context, jobID string, name string) (io.ReadCloser, error)
	PurgeQueueState(ctx context.Context) error
}

// Renderer navigates a URL through the external rendering engine and
// returns the fully rendered document. It returns an error on navigation
// failure; callers route that to the fallback path, never retry.
type Renderer interface {
	Render(ctx context.Context, url string) (*RenderResult, error)
}

// FetchClient issues a direct HTTP fetch without rendering.
type FetchClient interface {
	Fetch(ctx context.Context, url string, headers http.Header) (*FetchResult, error)
}

// Publisher pushes job-completion events to a topic.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
