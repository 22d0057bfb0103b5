package export

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/linkaudit/linkaudit/internal/artifact/local"
	"github.com/linkaudit/linkaudit/internal/crawl"
	"github.com/linkaudit/linkaudit/internal/dataset/memory"
)

func sampleRecords() []crawl.PageLog {
	return []crawl.PageLog{
		{
			URL:            "https://example.com/",
			DestinationURL: "https://example.com/",
			Title:          "Example Home",
			Status:         200,
			BrokenCheck:    crawl.LinkStatusOK,
			LinkType:       crawl.LinkTypeStartURL,
			ContentType:    "text/html",
			FirstSourceURL: "https://example.com/",
			Direction:      crawl.DirectionInternal,
		},
		{
			URL:            "https://other.org/missing",
			DestinationURL: "https://other.org/missing",
			Title:          "https://other.org/missing",
			Status:         404,
			BrokenCheck:    crawl.LinkStatusError,
			LinkType:       crawl.LinkTypeLink,
			ContentType:    "Unknown",
			FirstSourceURL: "https://example.com/",
			Direction:      crawl.DirectionOutbound,
		},
	}
}

func TestExportWritesOutputAndCSV(t *testing.T) {
	const jobID = "example.com-1700000000000"
	baseDir := t.TempDir()

	store, err := local.New(local.Config{BaseDir: baseDir})
	require.NoError(t, err)

	ds := memory.New()
	for _, record := range sampleRecords() {
		require.NoError(t, ds.Append(context.Background(), jobID, record))
	}

	exporter := New(ds, store, zap.NewNop())
	require.NoError(t, exporter.Export(context.Background(), jobID))

	outputPath := filepath.Join(baseDir, "key_value_stores", jobID, "OUTPUT.json")
	data, err := os.ReadFile(outputPath)
	require.NoError(t, err)

	var decoded []crawl.PageLog
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, sampleRecords(), decoded)

	rc, err := store.Open(context.Background(), jobID, jobID+".csv")
	require.NoError(t, err)
	defer func() { require.NoError(t, rc.Close()) }()
	csvData, err := io.ReadAll(rc)
	require.NoError(t, err)

	lines := string(csvData)
	assert.Contains(t, lines, "url,destinationUrl,title,status,brokenCheck,linkType,contentType,firstSourceUrl,direction")
	assert.Contains(t, lines, "https://example.com/,https://example.com/,Example Home,200,OK,StartUrl,text/html,https://example.com/,Internal")
	assert.Contains(t, lines, "https://other.org/missing,https://other.org/missing,https://other.org/missing,404,Error,AHref,Unknown,https://example.com/,Outbound")
}

func TestExportSkipsEmptyJob(t *testing.T) {
	baseDir := t.TempDir()
	store, err := local.New(local.Config{BaseDir: baseDir})
	require.NoError(t, err)

	exporter := New(memory.New(), store, zap.NewNop())
	require.NoError(t, exporter.Export(context.Background(), "example.com-1"))

	_, err = store.Open(context.Background(), "example.com-1", "OUTPUT.json")
	assert.Error(t, err)
}

func TestMarshalCSVQuotesCommas(t *testing.T) {
	records := []crawl.PageLog{{
		URL:         "https://example.com/a",
		Title:       "Hello, World",
		Status:      200,
		BrokenCheck: crawl.LinkStatusOK,
		LinkType:    crawl.LinkTypeLink,
		ContentType: "text/html",
		Direction:   crawl.DirectionInternal,
	}}
	data, err := MarshalCSV(records)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"Hello, World"`)
}
