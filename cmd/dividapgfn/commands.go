package main

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"dividapgfn/internal/config"
	"dividapgfn/internal/datasource/file"
	"dividapgfn/internal/export"
	"dividapgfn/internal/filter"
	"dividapgfn/internal/ingest"
	"dividapgfn/internal/metrics"
	"dividapgfn/internal/metrics/datadog"
	"dividapgfn/internal/metrics/prompush"
	"dividapgfn/internal/publish"
	"dividapgfn/internal/storage"
	_ "dividapgfn/internal/storage/all"
	"dividapgfn/internal/storage/sqlite"
)

type app struct {
	deps    Deps
	common  *config.Common
	binder  *config.Binder
	started bool
	flush   func()
}

func newApp(deps Deps) *app {
	return &app{deps: deps, flush: func() {}}
}

func (a *app) flushMetrics() { a.flush() }

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "dividapgfn",
		Short:         "Consolidate, filter and export the PGFN debt registry",
		SilenceUsage:  true,
		SilenceErrors: true,
		// Every step resolves its own flags; the root only sets up the
		// environment they read from.
		PersistentPreRunE: a.setup,
	}
	root.SetOut(a.deps.Stdout)
	root.SetErr(a.deps.Stderr)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	a.binder = config.NewBinder(root.PersistentFlags(), a.deps.Getenv)
	a.common = config.BindCommon(a.binder)

	root.AddCommand(a.baseCmd(), a.filterCmd(), a.publishCmd())
	return root
}

// setup loads the dotenv file, layers env and YAML onto the persistent flags
// and installs the metrics backend.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.started = true
	if err := config.LoadEnvFile(a.common.EnvFile); err != nil {
		return err
	}
	if err := a.binder.Resolve(a.common.ConfigFile); err != nil {
		return &usageError{err: err}
	}
	if err := config.Check(a.common.Validate()); err != nil {
		return err
	}
	a.setupMetrics()
	return nil
}

func (a *app) setupMetrics() {
	c := a.common
	switch c.MetricsBackend {
	case "pushgateway":
		b, err := prompush.NewBackend(c.Job, c.PushgatewayURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", c.PushgatewayURL, c.MetricsBackend, c.Job)
		metrics.SetBackend(b)
	case "datadog":
		b, err := datadog.NewBackend(datadog.Config{
			Addr:       c.StatsdAddr,
			Namespace:  "pgfn.",
			GlobalTags: []string{"service:" + c.Job},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return
		}
		log.Printf("metrics: addr=%v, backend=%v, job_name=%v", c.StatsdAddr, c.MetricsBackend, c.Job)
		metrics.SetBackend(b)
	default:
		if c.Verbose {
			log.Printf("metrics: disabled (backend=%q)", c.MetricsBackend)
		}
		return
	}
	a.flush = func() {
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

// resolve layers env and YAML onto the flags of a step and validates them.
func (a *app) resolve(b *config.Binder, issues func() []config.Issue) error {
	if err := b.Resolve(a.common.ConfigFile); err != nil {
		return &usageError{err: err}
	}
	return config.Check(issues())
}

func (a *app) baseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "base",
		Aliases: []string{"base_pgfn"},
		Short:   "Consolidate the files under <dir>/entrada into pgfn.sqlite",
		Args:    cobra.NoArgs,
	}
	b := config.NewBinder(cmd.Flags(), a.deps.Getenv)
	cfg := config.BindBase(b)

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if err := a.resolve(b, cfg.Validate); err != nil {
			return err
		}
		res, err := ingest.Build(cmd.Context(), ingest.Options{
			Dir:       cfg.Dir,
			BatchSize: cfg.BatchSize,
			Workers:   cfg.Workers,
			Job:       a.common.Job,
			Verbose:   a.common.Verbose,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d files, %d records\n", res.StorePath, len(res.Files), res.Records)
		return nil
	}
	return cmd
}

func (a *app) filterCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "filtra",
		Aliases: []string{"filtra_divida", "filtro"},
		Short:   "Filter the consolidated debts against the CNPJ registry and export them",
		Args:    cobra.NoArgs,
	}
	b := config.NewBinder(cmd.Flags(), a.deps.Getenv)
	cfg := config.BindFilter(b)

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if err := a.resolve(b, cfg.Validate); err != nil {
			return err
		}
		res, err := runFilter(cmd.Context(), *cfg, a.common.Job)
		if err != nil {
			return err
		}
		for _, p := range export.Projections() {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows\n", p.Name, res.Rows[p.Name])
		}
		return nil
	}
	return cmd
}

func runFilter(ctx context.Context, cfg config.Filter, job string) (export.Result, error) {
	if err := config.RequireFile(cfg.QueryFile, "query file"); err != nil {
		return export.Result{}, err
	}
	query, err := file.ReadText(ctx, cfg.QueryFile)
	if err != nil {
		return export.Result{}, err
	}

	e, err := filter.Open(ctx, cfg.Registry, ingest.StorePath(cfg.Dir), filter.WithRootColumn(cfg.RootColumn))
	if err != nil {
		return export.Result{}, err
	}
	defer e.Close()

	start := time.Now()
	s, err := e.Run(ctx, query)
	metrics.RecordStep(job, "filtra", err, time.Since(start))
	if err != nil {
		return export.Result{}, err
	}
	metrics.RecordRow(job, metrics.KindFiltered, s.Debts)

	nf := export.DefaultNumberFormat()
	nf.Grouping = cfg.Grouping
	return export.Run(ctx, e.Querier(), export.Projections(), export.Options{
		Dir:       filepath.Join(cfg.Dir, export.OutputDir),
		Separator: []rune(cfg.Separator)[0],
		Format:    nf,
		XLSX:      cfg.XLSX,
		Job:       job,
	})
}

func (a *app) publishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publica",
		Short: "Copy the consolidated debts into an operational database",
		Args:  cobra.NoArgs,
	}
	b := config.NewBinder(cmd.Flags(), a.deps.Getenv)
	cfg := config.BindPublish(b)

	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		if err := a.resolve(b, func() []config.Issue { return cfg.Validate(storage.ListKinds()) }); err != nil {
			return err
		}
		ctx := cmd.Context()
		path := ingest.StorePath(cfg.Dir)
		if err := config.RequireFile(path, "consolidated store"); err != nil {
			return err
		}
		store, err := sqlite.OpenStore(ctx, path)
		if err != nil {
			return err
		}
		defer store.Close()

		n, err := publish.Run(ctx, store, publish.Options{
			Kind:        cfg.Kind,
			DSN:         cfg.DSN,
			Table:       cfg.Table,
			BatchSize:   cfg.BatchSize,
			CreateTable: cfg.CreateTable,
			Job:         a.common.Job,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rows\n", cfg.Table, n)
		return nil
	}
	return cmd
}
