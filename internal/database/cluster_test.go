package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/rs/zerolog"
)

// ---------- stub driver ----------

// stubRecorder counts transaction lifecycle calls made through the stub
// driver so tests can assert commit/rollback discipline without a real
// database.
type stubRecorder struct {
	mu         sync.Mutex
	begins     int
	commits    int
	rollbacks  int
	failCommit bool
}

func (r *stubRecorder) snapshot() (begins, commits, rollbacks int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.begins, r.commits, r.rollbacks
}

type stubDriver struct{}

var (
	stubMu   sync.Mutex
	stubRecs = map[string]*stubRecorder{}
)

func init() { sql.Register("stub", stubDriver{}) }

func (stubDriver) Open(name string) (driver.Conn, error) {
	stubMu.Lock()
	rec := stubRecs[name]
	stubMu.Unlock()
	return &stubConn{rec: rec}, nil
}

type stubConn struct{ rec *stubRecorder }

func (c *stubConn) Prepare(string) (driver.Stmt, error) { return nil, errors.New("not implemented") }
func (c *stubConn) Close() error                        { return nil }

func (c *stubConn) Begin() (driver.Tx, error) {
	return c.BeginTx(context.Background(), driver.TxOptions{})
}

func (c *stubConn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) {
	c.rec.mu.Lock()
	c.rec.begins++
	c.rec.mu.Unlock()
	return &stubTx{rec: c.rec}, nil
}

// QueryContext lets read-path tests run statements without preparing.
func (c *stubConn) QueryContext(ctx context.Context, query string, args []driver.NamedValue) (driver.Rows, error) {
	return &stubRows{}, nil
}

type stubRows struct{ done bool }

func (r *stubRows) Columns() []string { return []string{"n"} }
func (r *stubRows) Close() error      { return nil }

func (r *stubRows) Next(dest []driver.Value) error {
	if r.done {
		return io.EOF
	}
	r.done = true
	dest[0] = int64(1)
	return nil
}

type stubTx struct{ rec *stubRecorder }

func (t *stubTx) Commit() error {
	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()
	t.rec.commits++
	if t.rec.failCommit {
		return errors.New("commit failed")
	}
	return nil
}

func (t *stubTx) Rollback() error {
	t.rec.mu.Lock()
	defer t.rec.mu.Unlock()
	t.rec.rollbacks++
	return nil
}

// newStubDB opens a pool backed by the stub driver under a unique name.
func newStubDB(t *testing.T, name string) (*sql.DB, *stubRecorder) {
	t.Helper()
	rec := &stubRecorder{}
	stubMu.Lock()
	stubRecs[name] = rec
	stubMu.Unlock()
	db, err := sql.Open("stub", name)
	if err != nil {
		t.Fatalf("open stub db: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, rec
}

func newStubCluster(t *testing.T, name string, replicaCount int) (*Cluster, *stubRecorder) {
	t.Helper()
	primary, rec := newStubDB(t, name+"-primary")
	c := &Cluster{primary: primary, log: zerolog.Nop()}
	for i := 0; i < replicaCount; i++ {
		db, _ := newStubDB(t, name+"-replica-"+string(rune('a'+i)))
		c.replicas = append(c.replicas, &replica{host: "replica", db: db})
	}
	return c, rec
}

// ---------- least-connections routing ----------

func TestPickReplicaLeastConnections(t *testing.T) {
	c, _ := newStubCluster(t, t.Name(), 3)
	c.replicas[0].inflight.Store(5)
	c.replicas[1].inflight.Store(2)
	c.replicas[2].inflight.Store(4)

	if got := c.pickReplica(); got != c.replicas[1] {
		t.Fatalf("expected replica[1] with lowest counter, got %+v", got)
	}
}

func TestPickReplicaTieBreaksToFirst(t *testing.T) {
	c, _ := newStubCluster(t, t.Name(), 3)
	c.replicas[0].inflight.Store(1)
	c.replicas[1].inflight.Store(1)
	c.replicas[2].inflight.Store(3)

	if got := c.pickReplica(); got != c.replicas[0] {
		t.Fatalf("expected first replica on tie, got %+v", got)
	}
}

func TestAcquireReadTracksInflight(t *testing.T) {
	c, _ := newStubCluster(t, t.Name(), 2)
	ctx := context.Background()

	_, release1, err := c.Acquire(ctx, false)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if got := c.replicas[0].inflight.Load(); got != 1 {
		t.Fatalf("replica[0] inflight = %d, want 1", got)
	}

	// Second read must land on the idle replica.
	_, release2, err := c.Acquire(ctx, false)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if got := c.replicas[1].inflight.Load(); got != 1 {
		t.Fatalf("replica[1] inflight = %d, want 1", got)
	}

	release1()
	release1() // idempotent: must not decrement twice
	release2()
	if a, b := c.replicas[0].inflight.Load(), c.replicas[1].inflight.Load(); a != 0 || b != 0 {
		t.Fatalf("counters after release = %d,%d, want 0,0", a, b)
	}
}

func TestAcquireWriteTargetsPrimary(t *testing.T) {
	c, _ := newStubCluster(t, t.Name(), 2)

	conn, release, err := c.Acquire(context.Background(), true)
	if err != nil {
		t.Fatalf("acquire write: %v", err)
	}
	if conn == nil {
		t.Fatal("expected a primary connection")
	}
	for i, r := range c.replicas {
		if n := r.inflight.Load(); n != 0 {
			t.Fatalf("replica[%d] inflight = %d, want 0 for write acquisition", i, n)
		}
	}
	release()
}

func TestQueryReleasesOnClose(t *testing.T) {
	c, _ := newStubCluster(t, t.Name(), 1)

	rows, err := c.Query(context.Background(), "SELECT 1")
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if got := c.replicas[0].inflight.Load(); got != 1 {
		t.Fatalf("inflight during read = %d, want 1", got)
	}
	if err := rows.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if got := c.replicas[0].inflight.Load(); got != 0 {
		t.Fatalf("inflight after close = %d, want 0", got)
	}
	_ = rows.Close() // second close must not decrement again
	if got := c.replicas[0].inflight.Load(); got != 0 {
		t.Fatalf("inflight after double close = %d, want 0", got)
	}
}

func TestQueryRowReleasesOnScan(t *testing.T) {
	c, _ := newStubCluster(t, t.Name(), 1)

	var n int64
	if err := c.QueryRow(context.Background(), "SELECT 1").Scan(&n); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if n != 1 {
		t.Fatalf("n = %d, want 1", n)
	}
	if got := c.replicas[0].inflight.Load(); got != 0 {
		t.Fatalf("inflight after scan = %d, want 0", got)
	}
}

// ---------- transaction discipline ----------

func TestRunInTransactionCommits(t *testing.T) {
	c, rec := newStubCluster(t, t.Name(), 0)

	called := false
	err := c.RunInTransaction(context.Background(), sql.LevelReadCommitted, func(ctx context.Context, tx *sql.Tx) error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("RunInTransaction: %v", err)
	}
	if !called {
		t.Fatal("unit of work was not invoked")
	}
	begins, commits, rollbacks := rec.snapshot()
	if begins != 1 || commits != 1 || rollbacks != 0 {
		t.Fatalf("begins/commits/rollbacks = %d/%d/%d, want 1/1/0", begins, commits, rollbacks)
	}
}

func TestRunInTransactionRollsBackAndPreservesError(t *testing.T) {
	c, rec := newStubCluster(t, t.Name(), 0)

	boom := errors.New("unit of work failed")
	err := c.RunInTransaction(context.Background(), sql.LevelReadCommitted, func(ctx context.Context, tx *sql.Tx) error {
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected original error back, got %v", err)
	}
	_, commits, rollbacks := rec.snapshot()
	if commits != 0 || rollbacks != 1 {
		t.Fatalf("commits/rollbacks = %d/%d, want 0/1", commits, rollbacks)
	}
}

func TestRunInTransactionCommitErrorPropagates(t *testing.T) {
	c, rec := newStubCluster(t, t.Name(), 0)
	rec.failCommit = true

	err := c.RunInTransaction(context.Background(), sql.LevelReadCommitted, func(ctx context.Context, tx *sql.Tx) error {
		return nil
	})
	if err == nil {
		t.Fatal("expected commit failure to propagate")
	}
}
