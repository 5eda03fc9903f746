// Package database owns the primary/replica connection pools used by the
// notification engine.  Writes always target the primary; reads are spread
// across replicas by a local least-connections balancer.  The package also
// provides the transactional wrapper every engine mutation runs under.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog"
)

// Cluster bundles one write-capable pool and zero or more read-only
// replica pools.  Each replica carries a live in-flight counter used to
// route reads to the least busy pool.  The counters are atomics because
// acquisitions race across request goroutines.
type Cluster struct {
	primary  *sql.DB
	replicas []*replica
	log      zerolog.Logger
}

type replica struct {
	host     string
	db       *sql.DB
	inflight atomic.Int64
}

// Open connects to the primary and every replica host and verifies each
// connection with a short ping.  Replica hosts are "host:port" pairs; an
// empty list is allowed, in which case reads fall back to the primary.
func Open(user, pass, host, port, name string, replicaHosts []string, logger zerolog.Logger) (*Cluster, error) {
	primary, err := openPool(user, pass, host+":"+port, name)
	if err != nil {
		return nil, fmt.Errorf("open primary: %w", err)
	}
	c := &Cluster{primary: primary, log: logger}
	for _, rh := range replicaHosts {
		db, err := openPool(user, pass, rh, name)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("open replica %s: %w", rh, err)
		}
		c.replicas = append(c.replicas, &replica{host: rh, db: db})
	}
	return c, nil
}

// openPool builds a DSN, opens the pool and verifies the connection.
func openPool(user, pass, addr, name string) (*sql.DB, error) {
	auth := user
	if pass != "" {
		auth = fmt.Sprintf("%s:%s", user, pass)
	}
	// parseTime=true -> DATETIME -> time.Time | loc=UTC keeps times consistent
	dsn := fmt.Sprintf("%s@tcp(%s)/%s?charset=utf8mb4&parseTime=true&loc=UTC", auth, addr, name)

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, err
	}

	// Pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(30 * time.Minute)

	// Ping with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Primary exposes the write pool for callers that need raw access, e.g.
// health checks.  Mutations should go through RunInTransaction instead.
func (c *Cluster) Primary() *sql.DB { return c.primary }

// pickReplica returns the replica with the minimum in-flight counter.
// Ties resolve to the first match.  Returns nil when no replicas are
// configured.
func (c *Cluster) pickReplica() *replica {
	var best *replica
	var bestN int64
	for _, r := range c.replicas {
		n := r.inflight.Load()
		if best == nil || n < bestN {
			best, bestN = r, n
		}
	}
	return best
}

// Acquire hands out a dedicated connection.  Write acquisitions always
// target the primary.  Read acquisitions go to the least-loaded replica,
// incrementing its in-flight counter until the returned release func runs.
// The release func is idempotent; acquisition failures propagate
// immediately with no internal retry.
func (c *Cluster) Acquire(ctx context.Context, write bool) (*sql.Conn, func(), error) {
	if write || len(c.replicas) == 0 {
		conn, err := c.primary.Conn(ctx)
		if err != nil {
			return nil, nil, err
		}
		var once sync.Once
		return conn, func() { once.Do(func() { _ = conn.Close() }) }, nil
	}
	r := c.pickReplica()
	r.inflight.Add(1)
	conn, err := r.db.Conn(ctx)
	if err != nil {
		r.inflight.Add(-1)
		return nil, nil, err
	}
	var once sync.Once
	release := func() {
		once.Do(func() {
			_ = conn.Close()
			r.inflight.Add(-1)
		})
	}
	return conn, release, nil
}

// Rows wraps sql.Rows so that closing the result set also releases the
// replica connection it was read from.
type Rows struct {
	*sql.Rows
	release func()
}

// Close closes the underlying rows and releases the connection.  Safe to
// call more than once.
func (r *Rows) Close() error {
	err := r.Rows.Close()
	r.release()
	return err
}

// Query runs a read-only statement against the least-loaded replica.  The
// caller must Close the returned Rows to hand the connection back.
func (c *Cluster) Query(ctx context.Context, query string, args ...any) (*Rows, error) {
	conn, release, err := c.Acquire(ctx, false)
	if err != nil {
		return nil, err
	}
	rows, err := conn.QueryContext(ctx, query, args...)
	if err != nil {
		release()
		return nil, err
	}
	return &Rows{Rows: rows, release: release}, nil
}

// Row defers both error reporting and connection release to Scan, matching
// the sql.QueryRow contract.
type Row struct {
	row     *sql.Row
	release func()
	err     error
}

// Scan copies the single result row into dest and releases the connection.
func (r *Row) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	defer r.release()
	return r.row.Scan(dest...)
}

// QueryRow runs a single-row read against the least-loaded replica.
func (c *Cluster) QueryRow(ctx context.Context, query string, args ...any) *Row {
	conn, release, err := c.Acquire(ctx, false)
	if err != nil {
		return &Row{err: err}
	}
	return &Row{row: conn.QueryRowContext(ctx, query, args...), release: release}
}

// RunInTransaction acquires a primary connection, begins a transaction at
// the requested isolation level and invokes fn with it.  A nil return from
// fn commits; any error rolls back and is returned unchanged.  Rollback
// failures are logged but never replace the original error.  The
// connection is released exactly once on every exit path.
func (c *Cluster) RunInTransaction(ctx context.Context, isolation sql.IsolationLevel, fn func(ctx context.Context, tx *sql.Tx) error) error {
	conn, err := c.primary.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquire primary connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	tx, err := conn.BeginTx(ctx, &sql.TxOptions{Isolation: isolation})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(ctx, tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			c.log.Error().Err(rbErr).Msg("transaction rollback failed")
		}
		return err
	}
	return tx.Commit()
}

// Ping verifies connectivity to the primary and all replicas.
func (c *Cluster) Ping(ctx context.Context) error {
	if err := c.primary.PingContext(ctx); err != nil {
		return fmt.Errorf("primary: %w", err)
	}
	for _, r := range c.replicas {
		if err := r.db.PingContext(ctx); err != nil {
			return fmt.Errorf("replica %s: %w", r.host, err)
		}
	}
	return nil
}

// Close closes every pool.  The first error encountered is returned.
func (c *Cluster) Close() error {
	var first error
	if c.primary != nil {
		if err := c.primary.Close(); err != nil {
			first = err
		}
	}
	for _, r := range c.replicas {
		if err := r.db.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
