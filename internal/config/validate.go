package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"regexp"
	"strings"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError blocks execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is logged and execution continues.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding. Path is the flag name.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

var (
	// ErrUsage marks errors caused by how the command was invoked.
	ErrUsage = errors.New("usage error")
	// ErrMissingInput marks a required input file or directory that does not
	// exist.
	ErrMissingInput = errors.New("missing input")
)

// UsageError carries the blocking issues of a validation.
type UsageError struct {
	Issues []Issue
}

func (e *UsageError) Error() string {
	parts := make([]string, 0, len(e.Issues))
	for _, iss := range e.Issues {
		parts = append(parts, "--"+iss.Path+": "+iss.Message)
	}
	return "invalid arguments: " + strings.Join(parts, "; ")
}

func (e *UsageError) Unwrap() error { return ErrUsage }

// MissingInputError names the missing path.
type MissingInputError struct {
	Path string
	What string // e.g. "directory", "registry database"
}

func (e *MissingInputError) Error() string {
	what := e.What
	if what == "" {
		what = "input"
	}
	return fmt.Sprintf("%s not found: %s", what, e.Path)
}

func (e *MissingInputError) Unwrap() error { return ErrMissingInput }

// RequireDir returns a *MissingInputError unless path is an existing
// directory.
func RequireDir(path, what string) error {
	fi, err := os.Stat(path)
	if err != nil || !fi.IsDir() {
		return &MissingInputError{Path: path, What: what}
	}
	return nil
}

// RequireFile returns a *MissingInputError unless path is an existing
// regular file.
func RequireFile(path, what string) error {
	fi, err := os.Stat(path)
	if err != nil || !fi.Mode().IsRegular() {
		return &MissingInputError{Path: path, What: what}
	}
	return nil
}

// Check logs warnings and returns a *UsageError when any issue is an error.
func Check(issues []Issue) error {
	var errs []Issue
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			errs = append(errs, iss)
			continue
		}
		log.Printf("config: %s", iss.Error())
	}
	if len(errs) == 0 {
		return nil
	}
	return &UsageError{Issues: errs}
}

func required(path, v string) []Issue {
	if strings.TrimSpace(v) != "" {
		return nil
	}
	return []Issue{{Severity: SeverityError, Path: path, Message: "must not be empty"}}
}

func positive(path string, v int) []Issue {
	if v > 0 {
		return nil
	}
	return []Issue{{Severity: SeverityError, Path: path, Message: fmt.Sprintf("must be > 0, got %d", v)}}
}

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Validate checks the common flags.
func (c Common) Validate() []Issue {
	var issues []Issue
	switch c.MetricsBackend {
	case "", "none":
	case "pushgateway":
		issues = append(issues, required("pushgateway-url", c.PushgatewayURL)...)
	case "datadog":
		issues = append(issues, required("statsd-addr", c.StatsdAddr)...)
	default:
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metrics-backend",
			Message:  fmt.Sprintf("unknown backend %q; want none, pushgateway or datadog", c.MetricsBackend),
		})
	}
	if c.MetricsBackend != "" && c.MetricsBackend != "none" && strings.TrimSpace(c.Job) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "job",
			Message:  "empty job label; metrics from different runs will be merged",
		})
	}
	return issues
}

// Validate checks the consolidation flags.
func (c Base) Validate() []Issue {
	var issues []Issue
	issues = append(issues, required("dir", c.Dir)...)
	issues = append(issues, positive("batchsize", c.BatchSize)...)
	issues = append(issues, positive("workers", c.Workers)...)
	return issues
}

// Validate checks the filter flags.
func (c Filter) Validate() []Issue {
	var issues []Issue
	issues = append(issues, required("dir", c.Dir)...)
	issues = append(issues, required("basecnpj", c.Registry)...)
	issues = append(issues, required("consulta", c.QueryFile)...)
	if len([]rune(c.Separator)) != 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "separador",
			Message:  fmt.Sprintf("must be a single character, got %q", c.Separator),
		})
	} else if c.Separator == "," || (c.Separator == "." && c.Grouping) {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "separador",
			Message:  fmt.Sprintf("%q also appears in numbers (decimal separator ',', grouping '.'); numeric fields holding it are quoted", c.Separator),
		})
	}
	if !identRe.MatchString(c.RootColumn) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "root-column",
			Message:  fmt.Sprintf("%q is not a plain SQL identifier", c.RootColumn),
		})
	}
	return issues
}

// Validate checks the publish flags against the registered backend kinds.
func (c Publish) Validate(kinds []string) []Issue {
	var issues []Issue
	issues = append(issues, required("dir", c.Dir)...)
	issues = append(issues, required("dsn", c.DSN)...)
	issues = append(issues, required("table", c.Table)...)
	issues = append(issues, positive("batchsize", c.BatchSize)...)
	known := false
	for _, k := range kinds {
		if k == c.Kind {
			known = true
			break
		}
	}
	if !known {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "kind",
			Message:  fmt.Sprintf("unsupported kind %q; want one of %s", c.Kind, strings.Join(kinds, ", ")),
		})
	}
	return issues
}
