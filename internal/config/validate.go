package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/ddl"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning is surfaced to users but does not block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation finding.
//
// Path is a dotted path into the config (e.g. "destination.kind",
// "copy.tables[1].source").
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

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// Validate performs static checks over c without touching any database.
func Validate(c Config) []Issue {
	var issues []Issue
	issues = append(issues, validateDatabase("destination", c.Destination)...)
	issues = append(issues, validateDatabase("source", c.Source)...)
	issues = append(issues, validateCopy(c.Copy)...)
	issues = append(issues, validateLoad(c.Load)...)
	issues = append(issues, validateMetabase(c.Metabase)...)
	issues = append(issues, validateSchedule(c.Schedule)...)
	issues = append(issues, validateObservability(c.Log, c.Metrics)...)
	return issues
}

func validateDatabase(path string, d DatabaseConfig) []Issue {
	var issues []Issue

	if strings.TrimSpace(d.Kind) == "" {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".kind",
			Message:  path + ".kind must not be empty",
		})
	}
	dialect, err := ddl.ForKind(d.Kind)
	if err != nil {
		return append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".kind",
			Message:  fmt.Sprintf("unknown storage kind %q; want postgres, sqlite, mysql or mssql", d.Kind),
		})
	}

	if d.DSN == "" {
		switch dialect.Name() {
		case "sqlite":
			if d.Name == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path + ".dsn",
					Message:  "sqlite requires dsn or name (the database file)",
				})
			}
		default:
			if d.Host == "" {
				issues = append(issues, Issue{
					Severity: SeverityError,
					Path:     path + ".host",
					Message:  "host must not be empty when no dsn is given",
				})
			}
			if d.Name == "" {
				issues = append(issues, Issue{
					Severity: SeverityWarning,
					Path:     path + ".name",
					Message:  "no database name; the server default database will be used",
				})
			}
		}
	}
	if d.Port < 0 || d.Port > 65535 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".port",
			Message:  fmt.Sprintf("port %d out of range", d.Port),
		})
	}
	if d.ConnectTimeout < 0 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     path + ".connect_timeout",
			Message:  "connect_timeout must not be negative",
		})
	}
	return issues
}

func validateChunkSize(path string, n int) []Issue {
	if n < 0 {
		return []Issue{{
			Severity: SeverityError,
			Path:     path,
			Message:  fmt.Sprintf("chunk_size=%d; use 0 for the default or a positive size", n),
		}}
	}
	return nil
}

func validateCopy(c CopyConfig) []Issue {
	issues := validateChunkSize("copy.chunk_size", c.ChunkSize)

	if strings.TrimSpace(c.TargetSchema) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "copy.target_schema",
			Message:  "no target schema; tables go to the default schema \"raw\"",
		})
	}
	if len(c.Tables) == 0 {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "copy.tables",
			Message:  "no tables configured; the copy job will do nothing",
		})
	}

	seen := make(map[string]int, len(c.Tables))
	for i, t := range c.Tables {
		p := fmt.Sprintf("copy.tables[%d]", i)
		if strings.TrimSpace(t.Name) == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: p + ".name", Message: "table name must not be empty"})
		} else if j, dup := seen[t.Name]; dup {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     p + ".name",
				Message:  fmt.Sprintf("duplicate table name %q (also copy.tables[%d])", t.Name, j),
			})
		} else {
			seen[t.Name] = i
		}

		switch {
		case strings.TrimSpace(t.Source) == "":
			issues = append(issues, Issue{Severity: SeverityError, Path: p + ".source", Message: "source locator must not be empty"})
		case !strings.Contains(t.Source, "."):
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     p + ".source",
				Message:  fmt.Sprintf("source %q has no schema; the connection's default schema is used", t.Source),
			})
		}
	}
	return issues
}

func validateLoad(l LoadConfig) []Issue {
	issues := validateChunkSize("load.chunk_size", l.ChunkSize)

	if l.Delimiter != "" && utf8.RuneCountInString(l.Delimiter) != 1 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "load.delimiter",
			Message:  fmt.Sprintf("delimiter %q must be a single character", l.Delimiter),
		})
	}
	if l.Download.Enabled && strings.TrimSpace(l.Dir) == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "load.dir",
			Message:  "download is enabled but no directory is configured",
		})
	}

	seen := make(map[string]int, len(l.Files))
	for i, f := range l.Files {
		p := fmt.Sprintf("load.files[%d]", i)
		if strings.TrimSpace(f.File) == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: p + ".file", Message: "file must not be empty"})
		}
		if strings.TrimSpace(f.Table) == "" {
			issues = append(issues, Issue{Severity: SeverityError, Path: p + ".table", Message: "table must not be empty"})
			continue
		}
		if j, dup := seen[f.Table]; dup {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     p + ".table",
				Message:  fmt.Sprintf("table %q is also loaded by load.files[%d]; the later file would replace it", f.Table, j),
			})
			continue
		}
		seen[f.Table] = i
	}
	return issues
}

func validateMetabase(m MetabaseConfig) []Issue {
	var issues []Issue
	if len(m.DashboardIDs) > 0 && m.URL == "" {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "metabase.url",
			Message:  "dashboards are configured but metabase.url is empty",
		})
	}
	if m.URL != "" && (m.Username == "" || m.Password == "") {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metabase.username",
			Message:  "metabase credentials are incomplete; session login will fail",
		})
	}
	for i, id := range m.DashboardIDs {
		if id <= 0 {
			issues = append(issues, Issue{
				Severity: SeverityError,
				Path:     fmt.Sprintf("metabase.dashboard_ids[%d]", i),
				Message:  fmt.Sprintf("dashboard id %d must be positive", id),
			})
		}
	}
	if m.RetryCount < 0 {
		issues = append(issues, Issue{Severity: SeverityError, Path: "metabase.retry_count", Message: "retry_count must not be negative"})
	}
	return issues
}

func validateSchedule(s ScheduleConfig) []Issue {
	if strings.TrimSpace(s.Cron) == "" {
		return []Issue{{Severity: SeverityWarning, Path: "schedule.cron", Message: "no cron expression; the schedule command cannot run"}}
	}
	if _, err := cron.ParseStandard(s.Cron); err != nil {
		return []Issue{{Severity: SeverityError, Path: "schedule.cron", Message: fmt.Sprintf("invalid cron expression %q: %v", s.Cron, err)}}
	}
	return nil
}

func validateObservability(l LogConfig, m MetricsConfig) []Issue {
	var issues []Issue
	if _, err := logrus.ParseLevel(l.Level); err != nil {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "log.level",
			Message:  fmt.Sprintf("unknown log level %q; info is used", l.Level),
		})
	}
	switch l.Format {
	case "", "text", "json":
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "log.format",
			Message:  fmt.Sprintf("unknown log format %q; text is used", l.Format),
		})
	}
	switch m.Backend {
	case "", "none", "pushgateway", "datadog":
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "metrics.backend",
			Message:  fmt.Sprintf("unknown metrics backend %q; metrics disabled", m.Backend),
		})
	}
	return issues
}
