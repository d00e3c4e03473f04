// Package all wires every built-in storage backend into the storage factory.
//
// Importing it for side effects runs each backend's init, which registers
// its Repository factory and DDL bootstrapper:
//
//   - "postgres" (pgx COPY)
//   - "mssql"    (go-mssqldb bulk copy)
//   - "mysql"    (go-sql-driver multi-row INSERT)
//   - "sqlite"   (modernc.org/sqlite)
//
// The publish command imports it so callers only deal with storage.New.
package all

import (
	_ "dividapgfn/internal/storage/mssql"
	_ "dividapgfn/internal/storage/mysql"
	_ "dividapgfn/internal/storage/postgres"
	_ "dividapgfn/internal/storage/sqlite"
)
