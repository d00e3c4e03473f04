package storage

import (
	"context"
	"fmt"
	"sync"

	"dividapgfn/internal/ddl"
)

// DDLBootstrapper creates table on t from fields.
type DDLBootstrapper func(ctx context.Context, t Table, table string, fields []ddl.Field) error

// Renderer turns a table definition into a backend's CREATE TABLE script.
// Scripts must be idempotent.
type Renderer func(ddl.TableDef) (string, error)

var (
	ddlMu  sync.RWMutex
	ddlFns = map[string]DDLBootstrapper{}
)

// RegisterDDL registers (or replaces) the DDLBootstrapper for kind.
func RegisterDDL(kind string, fn DDLBootstrapper) {
	ddlMu.Lock()
	defer ddlMu.Unlock()
	ddlFns[kind] = fn
}

// RenderedDDL maps field kinds with mapType, renders the definition and runs
// the script through t.Exec.
func RenderedDDL(mapType func(string) string, render Renderer) DDLBootstrapper {
	return func(ctx context.Context, t Table, table string, fields []ddl.Field) error {
		q, err := render(ddl.FromFields(table, fields, mapType))
		if err != nil {
			return err
		}
		return t.Exec(ctx, q)
	}
}

// EnsureTable creates table with the bootstrapper registered for kind.
func EnsureTable(ctx context.Context, kind string, t Table, table string, fields []ddl.Field) error {
	ddlMu.RLock()
	fn, ok := ddlFns[kind]
	ddlMu.RUnlock()
	if !ok {
		return fmt.Errorf("no DDL bootstrapper registered for storage.kind=%q", kind)
	}
	if err := fn(ctx, t, table, fields); err != nil {
		return fmt.Errorf("%s: create %s: %w", kind, table, err)
	}
	return nil
}
