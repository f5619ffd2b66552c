package config

import (
	"strings"
	"testing"
	"time"
)

// hasIssue reports whether issues contains an Issue with the given severity,
// path, and a Message containing msgSubstr.
func hasIssue(t *testing.T, issues []Issue, sev IssueSeverity, path, msgSubstr string) bool {
	t.Helper()
	for _, iss := range issues {
		if iss.Severity == sev && iss.Path == path && strings.Contains(iss.Message, msgSubstr) {
			return true
		}
	}
	return false
}

func validConfig() Config {
	db := DatabaseConfig{Kind: "postgres", Host: "localhost", Port: 5432, Name: "db", ConnectTimeout: 10 * time.Second}
	return Config{
		Log:         LogConfig{Level: "info", Format: "json"},
		Metrics:     MetricsConfig{Backend: "none"},
		Source:      db,
		Destination: db,
		Copy:        CopyConfig{TargetSchema: "raw", ChunkSize: 1000, Tables: DefaultTables},
		Load:        LoadConfig{Dir: "data/raw", Schema: "raw", Delimiter: ",", Files: DefaultFiles},
		Schedule:    ScheduleConfig{Cron: "0 5 * * *"},
	}
}

func TestValidate_ValidConfigHasNoIssues(t *testing.T) {
	t.Parallel()

	if issues := Validate(validConfig()); len(issues) != 0 {
		t.Fatalf("expected no issues, got %+v", issues)
	}
}

func TestValidate_Findings(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(c *Config)
		sev    IssueSeverity
		path   string
		msg    string
	}{
		{"missing kind", func(c *Config) { c.Destination.Kind = "" }, SeverityError, "destination.kind", "must not be empty"},
		{"unknown kind", func(c *Config) { c.Source.Kind = "oracle" }, SeverityError, "source.kind", "unknown storage kind"},
		{"no host", func(c *Config) { c.Destination.Host = "" }, SeverityError, "destination.host", "host must not be empty"},
		{"sqlite without file", func(c *Config) { c.Destination = DatabaseConfig{Kind: "sqlite"} }, SeverityError, "destination.dsn", "sqlite requires"},
		{"bad port", func(c *Config) { c.Source.Port = 70000 }, SeverityError, "source.port", "out of range"},
		{"negative chunk", func(c *Config) { c.Copy.ChunkSize = -1 }, SeverityError, "copy.chunk_size", "chunk_size=-1"},
		{"duplicate table", func(c *Config) {
			c.Copy.Tables = []TableUnit{{Name: "orders", Source: "olist.orders"}, {Name: "orders", Source: "olist.o2"}}
		}, SeverityError, "copy.tables[1].name", "duplicate"},
		{"no schema in source", func(c *Config) { c.Copy.Tables = []TableUnit{{Name: "orders", Source: "orders"}} }, SeverityWarning, "copy.tables[0].source", "no schema"},
		{"no tables", func(c *Config) { c.Copy.Tables = nil }, SeverityWarning, "copy.tables", "do nothing"},
		{"long delimiter", func(c *Config) { c.Load.Delimiter = ";;" }, SeverityError, "load.delimiter", "single character"},
		{"duplicate load table", func(c *Config) {
			c.Load.Files = []FileUnit{{File: "a.csv", Table: "t"}, {File: "b.csv", Table: "t"}}
		}, SeverityError, "load.files[1].table", "replace"},
		{"dashboards without url", func(c *Config) { c.Metabase.DashboardIDs = []int{1} }, SeverityError, "metabase.url", "metabase.url is empty"},
		{"bad dashboard id", func(c *Config) {
			c.Metabase = MetabaseConfig{URL: "http://mb", Username: "u", Password: "p", DashboardIDs: []int{0}}
		}, SeverityError, "metabase.dashboard_ids[0]", "positive"},
		{"bad cron", func(c *Config) { c.Schedule.Cron = "every day" }, SeverityError, "schedule.cron", "invalid cron"},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }, SeverityWarning, "log.level", "unknown log level"},
		{"bad metrics backend", func(c *Config) { c.Metrics.Backend = "statsd" }, SeverityWarning, "metrics.backend", "unknown metrics backend"},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			c := validConfig()
			tc.mutate(&c)
			issues := Validate(c)
			if !hasIssue(t, issues, tc.sev, tc.path, tc.msg) {
				t.Fatalf("expected %s at %s containing %q; got %+v", tc.sev, tc.path, tc.msg, issues)
			}
		})
	}
}

func TestHasErrors(t *testing.T) {
	t.Parallel()

	if HasErrors([]Issue{{Severity: SeverityWarning}}) {
		t.Fatal("warnings only must not count as errors")
	}
	if !HasErrors([]Issue{{Severity: SeverityWarning}, {Severity: SeverityError}}) {
		t.Fatal("expected an error")
	}
}

func TestIssueError(t *testing.T) {
	t.Parallel()

	got := Issue{Severity: SeverityError, Path: "load.delimiter", Message: "bad"}.Error()
	if got != "error at load.delimiter: bad" {
		t.Fatalf("Error() = %q", got)
	}
}
