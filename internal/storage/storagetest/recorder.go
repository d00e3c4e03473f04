// Package storagetest provides a database/sql driver that records the
// statements a backend executes, for tests that have no server.
package storagetest

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
)

// ErrNoTx is returned by every transaction start on a recorder connection.
var ErrNoTx = errors.New("storagetest: transactions unsupported")

// Recorder captures executed statements. When Fail is set, every Exec
// returns it instead.
type Recorder struct {
	mu    sync.Mutex
	execs []string
	Fail  error
}

// Statements returns a copy of the executed statements in order.
func (r *Recorder) Statements() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.execs...)
}

var seq atomic.Int64

// Open registers a fresh recorder driver and opens it. The pool is closed on
// test cleanup.
func Open(t testing.TB) (*sql.DB, *Recorder) {
	t.Helper()
	rec := &Recorder{}
	name := fmt.Sprintf("storagetest_%d", seq.Add(1))
	sql.Register(name, recDriver{rec})
	db, err := sql.Open(name, "")
	if err != nil {
		t.Fatalf("storagetest: open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, rec
}

type recDriver struct{ rec *Recorder }

func (d recDriver) Open(string) (driver.Conn, error) { return conn(d), nil }

type conn struct{ rec *Recorder }

func (c conn) Prepare(string) (driver.Stmt, error) {
	return nil, errors.New("storagetest: prepare unsupported")
}

func (c conn) Close() error { return nil }

func (c conn) Begin() (driver.Tx, error) { return nil, ErrNoTx }

func (c conn) BeginTx(context.Context, driver.TxOptions) (driver.Tx, error) { return nil, ErrNoTx }

func (c conn) ExecContext(_ context.Context, query string, _ []driver.NamedValue) (driver.Result, error) {
	c.rec.mu.Lock()
	defer c.rec.mu.Unlock()
	if c.rec.Fail != nil {
		return nil, c.rec.Fail
	}
	c.rec.execs = append(c.rec.execs, query)
	return driver.RowsAffected(0), nil
}
