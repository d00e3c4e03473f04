// Command dividapgfn consolidates the PGFN open-data debt files into a SQLite
// store, filters them against a CNPJ registry and exports the result.
//
// Usage:
//
//	dividapgfn base    -d <dir> [-s <batchsize>]
//	dividapgfn filtra  -d <dir> -b <registry.sqlite> -c <query.sql> [-s ';'] [--xlsx]
//	dividapgfn publica -d <dir> --kind postgres --dsn <dsn> [--table t] [--create-table]
//
// Exit status is 0 on success, 2 on invalid arguments or missing inputs and 1
// on any other failure.
package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"dividapgfn/internal/config"
)

// Exit codes.
const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

// Deps carries the process environment so run can be driven from tests.
type Deps struct {
	Getenv func(string) string
	Stdout io.Writer
	Stderr io.Writer
}

func main() {
	os.Exit(run(os.Args[1:], Deps{Getenv: os.Getenv, Stdout: os.Stdout, Stderr: os.Stderr}))
}

func run(args []string, deps Deps) int {
	log.SetOutput(deps.Stderr)

	app := newApp(deps)
	defer app.flushMetrics()

	root := app.rootCmd()
	root.SetArgs(args)
	err := root.Execute()
	if err == nil {
		return exitOK
	}
	if !app.started {
		// cobra rejected the command line before any step ran
		err = &usageError{err: err}
	}
	fmt.Fprintf(deps.Stderr, "dividapgfn: %v\n", err)
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, config.ErrUsage), errors.Is(err, config.ErrMissingInput):
		return exitUsage
	default:
		return exitError
	}
}

type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }

func (e *usageError) Is(target error) bool { return target == config.ErrUsage }

func (e *usageError) Unwrap() error { return e.err }
