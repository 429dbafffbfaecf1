// Package usage is the append-only record of every completed gateway
// request: which provider and model served it, at what cost and latency,
// and under whose tenant/user scope. Writes are buffered through an async
// queue so SQLite contention never adds to client-visible latency.
package usage

import (
	"context"
	"database/sql"
	"fmt"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// Record is one completed request, successful or not.
type Record struct {
	Timestamp    time.Time
	RequestID    string
	TenantID     string
	UserID       string
	ProviderKey  string
	ModelID      string // canonical model id
	ModelPath    string // provider-specific path actually invoked
	Tier         string // fallback tier the winning attempt came from
	InputTokens  int
	OutputTokens int
	CostUSD      float64
	LatencyMs    int64
	Success      bool
	ErrorKind    string
}

const queueDepth = 4096

// Recorder buffers Records through a bounded async queue and persists them
// to SQLite. When the queue is full the oldest queued write is dropped to
// make room for the newest, and Dropped is incremented.
type Recorder struct {
	db      *sql.DB
	queue   chan Record
	done    chan struct{}
	Dropped atomic.Int64
}

// Open creates or opens a usage database at dsn and migrates its schema.
func Open(dsn string) (*Recorder, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("usage: open sqlite: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA busy_timeout=5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("usage: sqlite pragmas: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("usage: migrate: %w", err)
	}

	r := &Recorder{
		db:    db,
		queue: make(chan Record, queueDepth),
		done:  make(chan struct{}),
	}
	go r.drain()
	return r, nil
}

const schema = `CREATE TABLE IF NOT EXISTS usage_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	timestamp DATETIME NOT NULL,
	request_id TEXT NOT NULL DEFAULT '',
	tenant_id TEXT NOT NULL DEFAULT '',
	user_id TEXT NOT NULL DEFAULT '',
	provider_key TEXT NOT NULL DEFAULT '',
	model_id TEXT NOT NULL DEFAULT '',
	model_path TEXT NOT NULL DEFAULT '',
	tier TEXT NOT NULL DEFAULT '',
	input_tokens INTEGER NOT NULL DEFAULT 0,
	output_tokens INTEGER NOT NULL DEFAULT 0,
	cost_usd REAL NOT NULL DEFAULT 0,
	latency_ms INTEGER NOT NULL DEFAULT 0,
	success BOOLEAN NOT NULL DEFAULT 1,
	error_kind TEXT NOT NULL DEFAULT ''
);
CREATE INDEX IF NOT EXISTS idx_usage_records_timestamp ON usage_records(timestamp);
CREATE INDEX IF NOT EXISTS idx_usage_records_tenant ON usage_records(tenant_id);`

// Record enqueues rec for async persistence. It never blocks: if the queue
// is full, the oldest pending record is discarded to make room.
func (r *Recorder) Record(rec Record) {
	select {
	case r.queue <- rec:
		return
	default:
	}
	select {
	case <-r.queue:
		r.Dropped.Add(1)
	default:
	}
	select {
	case r.queue <- rec:
	default:
		r.Dropped.Add(1)
	}
}

func (r *Recorder) drain() {
	defer close(r.done)
	for rec := range r.queue {
		r.write(rec)
	}
}

func (r *Recorder) write(rec Record) {
	_, err := r.db.Exec(
		`INSERT INTO usage_records (timestamp, request_id, tenant_id, user_id, provider_key, model_id, model_path, tier, input_tokens, output_tokens, cost_usd, latency_ms, success, error_kind)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.Timestamp, rec.RequestID, rec.TenantID, rec.UserID, rec.ProviderKey,
		rec.ModelID, rec.ModelPath, rec.Tier, rec.InputTokens, rec.OutputTokens,
		rec.CostUSD, rec.LatencyMs, rec.Success, rec.ErrorKind)
	if err != nil {
		r.Dropped.Add(1)
	}
}

// Prune deletes every record older than retention, returning the count
// removed. Intended to run on a periodic background loop (90 days by
// default, matching the retention the rest of the gateway's logs use).
func (r *Recorder) Prune(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res, err := r.db.ExecContext(ctx, `DELETE FROM usage_records WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("usage: prune: %w", err)
	}
	return res.RowsAffected()
}

// Close flushes the queue and closes the underlying database. In-flight
// writes complete; no new writes are accepted after Close is called.
func (r *Recorder) Close() error {
	close(r.queue)
	<-r.done
	return r.db.Close()
}
