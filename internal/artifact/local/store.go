// Package local implements a local filesystem artifact store.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const (
	keyValueStoresDir = "key_value_stores"
	requestQueuesDir  = "request_queues"
	defaultQueueName  = "default"
)

// Config captures the parameters for the local filesystem artifact store.
type Config struct {
	// BaseDir is the root directory for per-job artifacts.
	BaseDir string `mapstructure:"base_dir"`
}

// Store persists job artifacts under
// {base}/key_value_stores/{jobID}/{name} and owns the request-queue
// scratch directory purged between jobs.
type Store struct {
	baseDir string
}

// New creates a local filesystem-backed artifact store.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, fmt.Errorf("base directory is required")
	}
	info, err := os.Stat(cfg.BaseDir)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("stat base directory: %w", err)
		}
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	} else if !info.IsDir() {
		return nil, fmt.Errorf("base directory path is not a directory")
	}
	return &Store{baseDir: cfg.BaseDir}, nil
}

// SetValue marshals value as JSON and writes it under the job's key-value
// store as {key}.json.
func (s *Store) SetValue(_ context.Context, jobID, key string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s value: %w", key, err)
	}
	if _, err := s.writeFile(jobID, key+".json", data); err != nil {
		return err
	}
	return nil
}

// WriteFile stores raw bytes under the job's key-value store and returns
// the absolute path of the written file.
func (s *Store) WriteFile(_ context.Context, jobID, name string, data []byte) (string, error) {
	return s.writeFile(jobID, name, data)
}

// Open returns a reader for a previously written job artifact.
func (s *Store) Open(_ context.Context, jobID, name string) (io.ReadCloser, error) {
	path, err := s.artifactPath(jobID, name)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	return f, nil
}

// PurgeQueueState removes the default request-queue directory left behind
// by a previous job.
func (s *Store) PurgeQueueState(_ context.Context) error {
	if err := os.RemoveAll(filepath.Join(s.baseDir, requestQueuesDir, defaultQueueName)); err != nil {
		return fmt.Errorf("purge request queue state: %w", err)
	}
	return nil
}

func (s *Store) writeFile(jobID, name string, data []byte) (string, error) {
	path, err := s.artifactPath(jobID, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return "", fmt.Errorf("create artifact directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return path, nil
}

func (s *Store) artifactPath(jobID, name string) (string, error) {
	if strings.TrimSpace(jobID) == "" {
		return "", fmt.Errorf("job id is required")
	}
	if strings.TrimSpace(name) == "" {
		return "", fmt.Errorf("artifact name is required")
	}
	full := filepath.Join(s.baseDir, keyValueStoresDir, jobID, name)

	// Reject job IDs or names that would escape the base directory.
	cleanBase := filepath.Clean(s.baseDir)
	if !strings.HasPrefix(filepath.Clean(full), cleanBase+string(filepath.Separator)) {
		return "", fmt.Errorf("path traversal detected")
	}
	return full, nil
}
