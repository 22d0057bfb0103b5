// Package crawl defines core types shared across subsystems.
package crawl

import (
	"net/http"
	"time"
)

// Label routes a fetch request to its handler.
type Label string

// Request labels. The wire values mirror the dataset files produced by
// earlier versions of this tool, so exports stay comparable.
const (
	LabelAHref      Label = "ahref-src"
	LabelAHrefOnce  Label = "ahref-src-once"
	LabelImgSrc     Label = "img-src"
	LabelStylesheet Label = "stylesheets-src"
	LabelScriptSrc  Label = "script-src"
	LabelDocument   Label = "documents-src"
	LabelMetaTag    Label = "meta-src"
)

// LinkType classifies how a resource was discovered.
type LinkType string

// Link type values recorded in the audit log.
const (
	LinkTypeLink       LinkType = "AHref"
	LinkTypeImage      LinkType = "ImgSrc"
	LinkTypeStylesheet LinkType = "Stylesheet"
	LinkTypeScript     LinkType = "ScriptSrc"
	LinkTypeCSS        LinkType = "CSSSrc"
	LinkTypeMeta       LinkType = "MetaTag"
	LinkTypeStartURL   LinkType = "StartUrl"
	LinkTypeOther      LinkType = "Other"
)

// Direction marks whether a resource stayed on the audited domain.
type Direction string

// Direction values.
const (
	DirectionInternal Direction = "Internal"
	DirectionOutbound Direction = "Outbound"
)

// LinkStatus is the broken-link verdict for a record.
type LinkStatus string

// Broken check values.
const (
	LinkStatusOK    LinkStatus = "OK"
	LinkStatusError LinkStatus = "Error"
)

// BrokenCheck derives the link verdict from an HTTP status code.
func BrokenCheck(status int) LinkStatus {
	if status >= 200 && status < 300 {
		return LinkStatusOK
	}
	return LinkStatusError
}

// JobStatus represents the lifecycle state of a crawl job.
type JobStatus string

// Job status values. A job slot holds at most one running job.
const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
)

// Job represents the single active crawl owned by the controller.
type Job struct {
	ID        string    `json:"id"`
	SeedURL   string    `json:"seed_url"`
	Domain    string    `json:"domain"`
	Recursive bool      `json:"recursive"`
	Status    JobStatus `json:"status"`
	Created   time.Time `json:"created_at"`
}

// RequestContext travels with every fetch request. It is fixed at enqueue
// time and never mutated afterwards.
type RequestContext struct {
	JobID             string   `json:"job_id"`
	FirstSourceDomain string   `json:"first_source_domain"`
	FirstSourceURL    string   `json:"first_source_url"`
	Recursive         bool     `json:"recursive"`
	LinkType          LinkType `json:"link_type"`
}

// FetchRequest is one unit of work for the pool. Consumed exactly once.
type FetchRequest struct {
	URL     string         `json:"url"`
	Label   Label          `json:"label"`
	Context RequestContext `json:"context"`
}

// PageLog is one immutable audit record for a visited resource.
type PageLog struct {
	URL            string     `json:"url"`
	DestinationURL string     `json:"destinationUrl"`
	Title          string     `json:"title"`
	Status         int        `json:"status"`
	BrokenCheck    LinkStatus `json:"brokenCheck"`
	LinkType       LinkType   `json:"linkType"`
	ContentType    string     `json:"contentType"`
	FirstSourceURL string     `json:"firstSourceUrl"`
	Direction      Direction  `json:"direction"`
}

// RenderResult is what the rendering engine returns for a navigated page.
type RenderResult struct {
	FinalURL   string
	StatusCode int
	Headers    http.Header
	HTML       string
	Duration   time.Duration
}

// FetchResult is the outcome of a direct (non-rendering) fetch.
type FetchResult struct {
	StatusCode int
	Headers    http.Header
}
