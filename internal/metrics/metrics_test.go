package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveBeforeInitIsNoOp(t *testing.T) {
	// Helpers must tolerate being called before Init (unit tests of other
	// packages never register collectors).
	ObservePage("AHref", "OK", "Internal")
	ObserveEnqueue("ahref-src", "admitted")
	ObserveFallback("recovered")
	ObserveJob("completed")
	IncActiveWorkers()
	DecActiveWorkers()
	ObserveDispatchDelay(time.Millisecond)
	ObserveRenderDuration(time.Millisecond)
}

func TestInitExposesCollectors(t *testing.T) {
	Init()
	Init() // idempotent

	ObservePage("AHref", "Error", "Outbound")
	ObserveEnqueue("img-src", "duplicate")

	req := httptest.NewRequest("GET", "/metrics", nil)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, req)

	require.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "linkaudit_pages_total"))
	assert.True(t, strings.Contains(body, "linkaudit_enqueue_total"))
}
