package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Table is the write side of one target table.
type Table interface {
	// CopyFrom bulk-inserts rows, each with len(columns) values.
	CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error)
	// Exec runs a raw statement, typically DDL.
	Exec(ctx context.Context, sql string) error
	// Truncate removes every row. A publish replaces the table content.
	Truncate(ctx context.Context) error
}

// Repository is a Table bound to a connection pool.
type Repository interface {
	Table
	Close()
}

// Config selects and configures a backend.
type Config struct {
	Kind    string   // postgres | mssql | mysql | sqlite
	DSN     string   // driver-specific connection string
	Table   string   // target table, optionally schema-qualified
	Columns []string // ordered insert columns
}

// Factory opens a Repository for cfg.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

// Opener is the constructor a backend provides: its Table plus the function
// releasing the pool behind it.
type Opener func(ctx context.Context, cfg Config) (Table, func(), error)

var (
	mu        sync.RWMutex
	factories = map[string]Factory{}
)

// Register makes a backend available under kind, replacing any previous
// registration.
func Register(kind string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	factories[kind] = f
}

// RegisterBackend registers open as the Factory of kind and render as its DDL
// bootstrapper. Backends call it from init.
func RegisterBackend(kind string, open Opener, mapType func(string) string, render Renderer) {
	Register(kind, func(ctx context.Context, cfg Config) (Repository, error) {
		t, closeFn, err := open(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", kind, err)
		}
		return WithClose(t, closeFn), nil
	})
	RegisterDDL(kind, RenderedDDL(mapType, render))
}

// New opens the Repository registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	mu.RLock()
	f, ok := factories[cfg.Kind]
	mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns the registered kinds, sorted. The slice is a copy.
func ListKinds() []string {
	mu.RLock()
	defer mu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

type pooled struct {
	Table
	closeFn func()
}

func (p *pooled) Close() {
	if p.closeFn != nil {
		p.closeFn()
		p.closeFn = nil
	}
}

// WithClose makes t a Repository whose first Close calls closeFn.
func WithClose(t Table, closeFn func()) Repository {
	return &pooled{Table: t, closeFn: closeFn}
}
