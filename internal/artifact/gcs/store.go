// Package gcs provides an artifact store backed by Google Cloud Storage.
package gcs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/iterator"
)

const (
	keyValueStoresPrefix = "key_value_stores"
	requestQueuesPrefix  = "request_queues/default"
)

// Config captures the parameters required to connect to GCS.
type Config struct {
	Bucket string
	Prefix string
}

// Store keeps job artifacts in a GCS bucket using the same
// key_value_stores/{jobID}/{name} layout as the local store.
type Store struct {
	client *storage.Client
	bucket string
	prefix string
}

// New creates a GCS-backed artifact store. Authentication uses Application
// Default Credentials; the bucket is probed up front to fail fast on
// misconfiguration.
func New(ctx context.Context, client *storage.Client, cfg Config) (*Store, error) {
	if client == nil {
		return nil, fmt.Errorf("storage client is required")
	}
	if cfg.Bucket == "" {
		return nil, fmt.Errorf("bucket name is required")
	}
	if _, err := client.Bucket(cfg.Bucket).Attrs(ctx); err != nil {
		return nil, fmt.Errorf("probe bucket %q: %w", cfg.Bucket, err)
	}
	return &Store{
		client: client,
		bucket: cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
	}, nil
}

// SetValue marshals value as JSON and uploads it as {key}.json.
func (s *Store) SetValue(ctx context.Context, jobID, key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal %s value: %w", key, err)
	}
	if _, err := s.put(ctx, s.objectName(jobID, key+".json"), "application/json", data); err != nil {
		return err
	}
	return nil
}

// WriteFile uploads raw bytes and returns the gs:// URI.
func (s *Store) WriteFile(ctx context.Context, jobID, name string, data []byte) (string, error) {
	contentType := ""
	if strings.HasSuffix(name, ".csv") {
		contentType = "text/csv; charset=utf-8"
	}
	return s.put(ctx, s.objectName(jobID, name), contentType, data)
}

// Open returns a reader over a stored artifact.
func (s *Store) Open(ctx context.Context, jobID, name string) (io.ReadCloser, error) {
	r, err := s.client.Bucket(s.bucket).Object(s.objectName(jobID, name)).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("open object: %w", err)
	}
	return r, nil
}

// PurgeQueueState deletes any objects under the default request-queue
// prefix.
func (s *Store) PurgeQueueState(ctx context.Context) error {
	prefix := s.withPrefix(requestQueuesPrefix)
	it := s.client.Bucket(s.bucket).Objects(ctx, &storage.Query{Prefix: prefix})
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			return nil
		}
		if err != nil {
			return fmt.Errorf("list queue objects: %w", err)
		}
		if err := s.client.Bucket(s.bucket).Object(attrs.Name).Delete(ctx); err != nil {
			return fmt.Errorf("delete queue object %q: %w", attrs.Name, err)
		}
	}
}

func (s *Store) put(ctx context.Context, object, contentType string, data []byte) (string, error) {
	w := s.client.Bucket(s.bucket).Object(object).NewWriter(ctx)
	if contentType != "" {
		w.ContentType = contentType
	}
	if _, err := w.Write(data); err != nil {
		closeErr := w.Close()
		if closeErr != nil {
			return "", fmt.Errorf("write object: %w (close writer: %v)", err, closeErr)
		}
		return "", fmt.Errorf("write object: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("close writer: %w", err)
	}
	return fmt.Sprintf("gs://%s/%s", s.bucket, object), nil
}

func (s *Store) objectName(jobID, name string) string {
	return s.withPrefix(fmt.Sprintf("%s/%s/%s", keyValueStoresPrefix, jobID, name))
}

func (s *Store) withPrefix(path string) string {
	if s.prefix == "" {
		return path
	}
	return s.prefix + "/" + path
}
