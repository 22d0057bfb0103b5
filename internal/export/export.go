// Package export materializes a finished job's dataset as the OUTPUT
// artifact and a CSV file.
package export

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/linkaudit/linkaudit/internal/crawl"
)

// csvHeader is the column order of the exported file. It must stay in
// lockstep with the JSON field order of the OUTPUT artifact.
var csvHeader = []string{
	"url",
	"destinationUrl",
	"title",
	"status",
	"brokenCheck",
	"linkType",
	"contentType",
	"firstSourceUrl",
	"direction",
}

// Exporter writes end-of-job artifacts.
type Exporter struct {
	dataset   crawl.Dataset
	artifacts crawl.ArtifactStore
	logger    *zap.Logger
}

// New constructs an Exporter.
func New(dataset crawl.Dataset, artifacts crawl.ArtifactStore, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{dataset: dataset, artifacts: artifacts, logger: logger}
}

// Export writes the OUTPUT artifact and the {jobID}.csv file for the
// job's accumulated records. A job with no records is a no-op, not an
// error.
func (e *Exporter) Export(ctx context.Context, jobID string) error {
	records, err := e.dataset.List(ctx, jobID)
	if err != nil {
		return fmt.Errorf("listing records for %s: %w", jobID, err)
	}
	if len(records) == 0 {
		e.logger.Info("no records to export", zap.String("job_id", jobID))
		return nil
	}

	if err := e.artifacts.SetValue(ctx, jobID, "OUTPUT", records); err != nil {
		return fmt.Errorf("writing OUTPUT artifact: %w", err)
	}

	data, err := MarshalCSV(records)
	if err != nil {
		return fmt.Errorf("encoding csv: %w", err)
	}
	path, err := e.artifacts.WriteFile(ctx, jobID, jobID+".csv", data)
	if err != nil {
		return fmt.Errorf("writing csv file: %w", err)
	}

	e.logger.Info("job artifacts exported",
		zap.String("job_id", jobID),
		zap.Int("records", len(records)),
		zap.String("csv", path),
	)
	return nil
}

// MarshalCSV renders records as CSV with the canonical header row.
func MarshalCSV(records []crawl.PageLog) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, r := range records {
		row := []string{
			r.URL,
			r.DestinationURL,
			r.Title,
			strconv.Itoa(r.Status),
			string(r.BrokenCheck),
			string(r.LinkType),
			r.ContentType,
			r.FirstSourceURL,
			string(r.Direction),
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
