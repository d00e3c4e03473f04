// Package config centralizes the tunables of the dividapgfn commands. Every
// setting is a command-line flag whose default is seeded from an environment
// variable, so `--help` shows all knobs and a 12-factor deployment can drive
// the tool from its environment alone.
//
// Typical usage, inside a cobra command constructor:
//
//	b := config.NewBinder(cmd.Flags(), os.Getenv)
//	cfg := config.BindBase(b)
//	...
//	// after cobra parsed the arguments:
//	err := b.Resolve(common.ConfigFile)
//
// For tests, pass a private FlagSet and a map-backed getenv to keep them
// hermetic.
//
// Precedence, highest first: explicit flag, environment, YAML file, default.
package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
)

// Default values shared by the commands.
const (
	DefaultBatchSize  = 1000
	DefaultWorkers    = 1
	DefaultSeparator  = ";"
	DefaultRootColumn = "cnpj_matriz"
	DefaultJob        = "dividapgfn"
)

// Common holds the settings every command understands.
type Common struct {
	ConfigFile     string // YAML file keyed by flag name
	EnvFile        string // dotenv file loaded before env lookups
	Verbose        bool
	MetricsBackend string // none | pushgateway | datadog
	PushgatewayURL string
	StatsdAddr     string
	Job            string
}

// Base configures the consolidation step.
type Base struct {
	Dir       string
	BatchSize int
	Workers   int // files parsed ahead of the writer
}

// Filter configures the filter and export step.
type Filter struct {
	Dir        string
	Registry   string // CNPJ registry SQLite file
	QueryFile  string // candidate query, ISO-8859-1
	Separator  string
	RootColumn string
	XLSX       bool
	Grouping   bool
}

// Publish configures the copy of the consolidated table into an operational
// database.
type Publish struct {
	Dir         string
	Kind        string
	DSN         string
	Table       string
	BatchSize   int
	CreateTable bool
}

// Binder defines flags on a FlagSet and remembers the environment variable
// behind each one so that Resolve can layer env and YAML values after
// parsing.
type Binder struct {
	fs     *pflag.FlagSet
	getenv func(string) string
	env    map[string]string // flag name -> env key
	order  []string
}

// NewBinder returns a Binder defining flags on fs and reading the
// environment through getenv.
func NewBinder(fs *pflag.FlagSet, getenv func(string) string) *Binder {
	return &Binder{fs: fs, getenv: getenv, env: map[string]string{}}
}

// FlagSet returns the bound FlagSet.
func (b *Binder) FlagSet() *pflag.FlagSet { return b.fs }

func (b *Binder) track(name, envKey string) {
	b.env[name] = envKey
	b.order = append(b.order, name)
}

func (b *Binder) envOrDefault(k, d string) string {
	if v := b.getenv(k); v != "" {
		return v
	}
	return d
}

func (b *Binder) intEnvOrDefault(k string, d int) int {
	if v := b.getenv(k); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return d
}

func (b *Binder) boolEnvOrDefault(k string, d bool) bool {
	if v, ok := parseBool(b.getenv(k)); ok {
		return v
	}
	return d
}

// String defines a string flag seeded from envKey.
func (b *Binder) String(p *string, name, short, envKey, def, usage string) {
	b.fs.StringVarP(p, name, short, b.envOrDefault(envKey, def), usage+envHint(envKey))
	b.track(name, envKey)
}

// Int defines an int flag seeded from envKey.
func (b *Binder) Int(p *int, name, short, envKey string, def int, usage string) {
	b.fs.IntVarP(p, name, short, b.intEnvOrDefault(envKey, def), usage+envHint(envKey))
	b.track(name, envKey)
}

// Bool defines a bool flag seeded from envKey.
func (b *Binder) Bool(p *bool, name, short, envKey string, def bool, usage string) {
	b.fs.BoolVarP(p, name, short, b.boolEnvOrDefault(envKey, def), usage+envHint(envKey))
	b.track(name, envKey)
}

// Resolve layers the environment and then the YAML file at path (if any)
// onto every flag not set on the command line. Env is read again here so
// variables loaded from a dotenv file after binding still apply.
func (b *Binder) Resolve(path string) error {
	var file map[string]string
	if path != "" {
		var err error
		if file, err = ReadFile(path); err != nil {
			return err
		}
	}
	for _, name := range b.order {
		if b.fs.Changed(name) {
			continue
		}
		if v := b.getenv(b.env[name]); v != "" {
			if err := b.fs.Set(name, b.normalize(name, v)); err != nil {
				return fmt.Errorf("config: env %s: %w", b.env[name], err)
			}
			continue
		}
		if v, ok := file[name]; ok {
			if err := b.fs.Set(name, b.normalize(name, v)); err != nil {
				return fmt.Errorf("config: %s: key %s: %w", path, name, err)
			}
		}
	}
	return nil
}

// BindCommon defines the persistent flags.
func BindCommon(b *Binder) *Common {
	c := &Common{}
	b.String(&c.ConfigFile, "config", "", "PGFN_CONFIG", "", "YAML file with flag values keyed by flag name")
	b.String(&c.EnvFile, "env-file", "", "PGFN_ENV_FILE", "", "dotenv file loaded before reading the environment")
	b.Bool(&c.Verbose, "verbose", "v", "PGFN_VERBOSE", false, "log every pipeline step")
	b.String(&c.MetricsBackend, "metrics-backend", "", "PGFN_METRICS_BACKEND", "none", "metrics backend: none, pushgateway or datadog")
	b.String(&c.PushgatewayURL, "pushgateway-url", "", "PUSHGATEWAY_URL", "", "Prometheus Pushgateway URL")
	b.String(&c.StatsdAddr, "statsd-addr", "", "DD_DOGSTATSD_URL", "127.0.0.1:8125", "DogStatsD address")
	b.String(&c.Job, "job", "", "PGFN_JOB", DefaultJob, "job label attached to metrics")
	return c
}

// BindBase defines the flags of the consolidation step.
func BindBase(b *Binder) *Base {
	c := &Base{}
	b.String(&c.Dir, "dir", "d", "PGFN_DIR", "", "working directory holding entrada/")
	b.Int(&c.BatchSize, "batchsize", "s", "PGFN_BATCH_SIZE", DefaultBatchSize, "rows per insert batch")
	b.Int(&c.Workers, "workers", "w", "PGFN_WORKERS", DefaultWorkers, "extract files parsed ahead of the writer; 1 parses inline")
	return c
}

// BindFilter defines the flags of the filter step.
func BindFilter(b *Binder) *Filter {
	c := &Filter{}
	b.String(&c.Dir, "dir", "d", "PGFN_DIR", "", "working directory holding entrada/pgfn.sqlite")
	b.String(&c.Registry, "basecnpj", "b", "PGFN_BASE_CNPJ", "", "CNPJ registry SQLite database")
	b.String(&c.QueryFile, "consulta", "c", "PGFN_CONSULTA", "", "SQL file selecting the candidate taxpayers")
	b.String(&c.Separator, "separador", "s", "PGFN_SEPARADOR", DefaultSeparator, "CSV field separator")
	b.String(&c.RootColumn, "root-column", "", "PGFN_ROOT_COLUMN", DefaultRootColumn, "root id column exposed by the candidate query")
	b.Bool(&c.XLSX, "xlsx", "", "PGFN_XLSX", false, "also write .xlsx exports")
	b.Bool(&c.Grouping, "grouping", "", "PGFN_GROUPING", false, "group thousands in numeric CSV fields")
	return c
}

// BindPublish defines the flags of the publish step.
func BindPublish(b *Binder) *Publish {
	c := &Publish{}
	b.String(&c.Dir, "dir", "d", "PGFN_DIR", "", "working directory holding entrada/pgfn.sqlite")
	b.String(&c.Kind, "kind", "", "PGFN_PUBLISH_KIND", "postgres", "target backend")
	b.String(&c.DSN, "dsn", "", "PGFN_DSN", "", "target connection string")
	b.String(&c.Table, "table", "", "PGFN_TABLE", "pgfn_devedores", "target table, optionally schema-qualified")
	b.Int(&c.BatchSize, "batchsize", "s", "PGFN_BATCH_SIZE", DefaultBatchSize, "rows per bulk copy")
	b.Bool(&c.CreateTable, "create-table", "", "PGFN_CREATE_TABLE", false, "create the target table when missing")
	return c
}

// normalize maps the yes/on/1 spellings accepted for booleans onto the
// values pflag parses.
func (b *Binder) normalize(name, v string) string {
	if f := b.fs.Lookup(name); f != nil && f.Value.Type() == "bool" {
		if bv, ok := parseBool(v); ok {
			return strconv.FormatBool(bv)
		}
	}
	return v
}

func envHint(k string) string {
	if k == "" {
		return ""
	}
	return " (env " + k + ")"
}

func parseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, true
	case "0", "false", "no", "off":
		return false, true
	}
	return false, false
}
