// Package postgres provides a Postgres-backed dataset implementation.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/linkaudit/linkaudit/internal/crawl"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the Postgres connection pool used for audit records.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Close()
}

// Dataset appends and lists audit records in Postgres. Append order is
// preserved by a serial key; rows are never updated or deleted.
type Dataset struct {
	pool  pgxPool
	table string
}

// New creates a Postgres-backed Dataset using the provided config.
func New(ctx context.Context, cfg Config) (*Dataset, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("dataset.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return newWithPool(pool, cfg.Table)
}

// NewWithPool constructs a Dataset from an existing pool (primarily for
// testing).
func NewWithPool(pool pgxPool, table string) (*Dataset, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return newWithPool(pool, table)
}

func newWithPool(pool pgxPool, table string) (*Dataset, error) {
	if table == "" {
		table = "page_logs"
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &Dataset{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (d *Dataset) Close() {
	if d == nil || d.pool == nil {
		return
	}
	d.pool.Close()
}

// Append inserts one audit record for a job.
func (d *Dataset) Append(ctx context.Context, jobID string, record crawl.PageLog) error {
	if jobID == "" {
		return fmt.Errorf("job id is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (
	job_id,
	url,
	destination_url,
	title,
	status,
	broken_check,
	link_type,
	content_type,
	first_source_url,
	direction
) VALUES (
	$1,$2,$3,$4,$5,$6,$7,$8,$9,$10
)`, d.table)

	args := []any{
		jobID,
		record.URL,
		record.DestinationURL,
		record.Title,
		record.Status,
		string(record.BrokenCheck),
		string(record.LinkType),
		record.ContentType,
		record.FirstSourceURL,
		string(record.Direction),
	}
	if _, err := d.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert page log: %w", err)
	}
	return nil
}

// List returns every record appended for a job, in append order.
func (d *Dataset) List(ctx context.Context, jobID string) ([]crawl.PageLog, error) {
	query := fmt.Sprintf(`
SELECT
	url,
	destination_url,
	title,
	status,
	broken_check,
	link_type,
	content_type,
	first_source_url,
	direction
FROM %s
WHERE job_id = $1
ORDER BY id`, d.table)

	rows, err := d.pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, fmt.Errorf("query page logs: %w", err)
	}
	defer rows.Close()

	var records []crawl.PageLog
	for rows.Next() {
		var (
			rec         crawl.PageLog
			brokenCheck string
			linkType    string
			direction   string
		)
		if err := rows.Scan(
			&rec.URL,
			&rec.DestinationURL,
			&rec.Title,
			&rec.Status,
			&brokenCheck,
			&linkType,
			&rec.ContentType,
			&rec.FirstSourceURL,
			&direction,
		); err != nil {
			return nil, fmt.Errorf("scan page log: %w", err)
		}
		rec.BrokenCheck = crawl.LinkStatus(brokenCheck)
		rec.LinkType = crawl.LinkType(linkType)
		rec.Direction = crawl.Direction(direction)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate page logs: %w", err)
	}
	return records, nil
}
