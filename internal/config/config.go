// Package config loads the loader's configuration from an optional YAML
// file, .env files and the environment, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/copyjob"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/fileload"
	"github.com/dasdatasensei/supabase-ecommerce-analytics/internal/storage"
)

// EnvFiles are loaded, in order, before the environment is read. Variables
// already set in the process win.
var EnvFiles = []string{".env.dev", ".env"}

type Config struct {
	Log         LogConfig      `mapstructure:"log"`
	Metrics     MetricsConfig  `mapstructure:"metrics"`
	Source      DatabaseConfig `mapstructure:"source"`
	Destination DatabaseConfig `mapstructure:"destination"`
	Copy        CopyConfig     `mapstructure:"copy"`
	Load        LoadConfig     `mapstructure:"load"`
	Metabase    MetabaseConfig `mapstructure:"metabase"`
	DBT         DBTConfig      `mapstructure:"dbt"`
	Schedule    ScheduleConfig `mapstructure:"schedule"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

type MetricsConfig struct {
	// Backend is one of none, pushgateway or datadog.
	Backend        string `mapstructure:"backend"`
	Job            string `mapstructure:"job"`
	PushgatewayURL string `mapstructure:"pushgateway_url"`
	DatadogAddr    string `mapstructure:"datadog_addr"`
	Namespace      string `mapstructure:"namespace"`
}

// DatabaseConfig describes one connection. DSN, when set, wins over the
// discrete fields.
type DatabaseConfig struct {
	Kind           string        `mapstructure:"kind"`
	DSN            string        `mapstructure:"dsn"`
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	Name           string        `mapstructure:"name"`
	User           string        `mapstructure:"user"`
	Password       string        `mapstructure:"password"`
	SSLMode        string        `mapstructure:"sslmode"`
	ConnectTimeout time.Duration `mapstructure:"connect_timeout"`
	MaxConns       int           `mapstructure:"max_conns"`
}

// Storage converts d into a storage.Config.
func (d DatabaseConfig) Storage() storage.Config {
	return storage.Config{
		Kind:           d.Kind,
		DSN:            d.DSN,
		Host:           d.Host,
		Port:           d.Port,
		Database:       d.Name,
		User:           d.User,
		Password:       d.Password,
		SSLMode:        d.SSLMode,
		ConnectTimeout: d.ConnectTimeout,
		MaxConns:       d.MaxConns,
	}
}

// inherit fills the empty fields of d from base.
func (d DatabaseConfig) inherit(base DatabaseConfig) DatabaseConfig {
	if d.Kind == "" {
		d.Kind = base.Kind
	}
	if d.DSN == "" && d.Host == "" {
		d.DSN = base.DSN
	}
	if d.Host == "" {
		d.Host = base.Host
	}
	if d.Port == 0 {
		d.Port = base.Port
	}
	if d.Name == "" {
		d.Name = base.Name
	}
	if d.User == "" {
		d.User = base.User
	}
	if d.Password == "" {
		d.Password = base.Password
	}
	if d.SSLMode == "" {
		d.SSLMode = base.SSLMode
	}
	if d.ConnectTimeout == 0 {
		d.ConnectTimeout = base.ConnectTimeout
	}
	if d.MaxConns == 0 {
		d.MaxConns = base.MaxConns
	}
	return d
}

type TableUnit struct {
	Name   string `mapstructure:"name"`
	Source string `mapstructure:"source"`
}

type CopyConfig struct {
	TargetSchema string      `mapstructure:"target_schema"`
	TablePrefix  string      `mapstructure:"table_prefix"`
	ChunkSize    int         `mapstructure:"chunk_size"`
	Tables       []TableUnit `mapstructure:"tables"`
}

type FileUnit struct {
	File  string `mapstructure:"file"`
	Table string `mapstructure:"table"`
}

type DownloadConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Dataset string `mapstructure:"dataset"`
	Binary  string `mapstructure:"binary"`
}

type LoadConfig struct {
	Dir        string         `mapstructure:"dir"`
	Schema     string         `mapstructure:"schema"`
	ChunkSize  int            `mapstructure:"chunk_size"`
	GrantTo    string         `mapstructure:"grant_to"`
	Delimiter  string         `mapstructure:"delimiter"`
	LazyQuotes bool           `mapstructure:"lazy_quotes"`
	Download   DownloadConfig `mapstructure:"download"`
	Files      []FileUnit     `mapstructure:"files"`
}

// Comma returns the delimiter rune, or 0 for the CSV default.
func (l LoadConfig) Comma() rune {
	for _, r := range l.Delimiter {
		return r
	}
	return 0
}

type MetabaseConfig struct {
	URL            string        `mapstructure:"url"`
	Username       string        `mapstructure:"username"`
	Password       string        `mapstructure:"password"`
	DashboardIDs   []int         `mapstructure:"dashboard_ids"`
	RetryCount     int           `mapstructure:"retry_count"`
	SessionTimeout time.Duration `mapstructure:"session_timeout"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
}

// Enabled reports whether dashboard refresh is configured.
func (m MetabaseConfig) Enabled() bool { return m.URL != "" && len(m.DashboardIDs) > 0 }

type DBTConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	Binary      string `mapstructure:"binary"`
	ProjectDir  string `mapstructure:"project_dir"`
	ProfilesDir string `mapstructure:"profiles_dir"`
}

type ScheduleConfig struct {
	Cron       string `mapstructure:"cron"`
	RunOnStart bool   `mapstructure:"run_on_start"`
}

// DefaultTables are the olist tables copied into the raw schema.
var DefaultTables = []TableUnit{
	{Name: "orders", Source: "olist.orders"},
	{Name: "order_items", Source: "olist.order_items"},
	{Name: "products", Source: "olist.products"},
	{Name: "customers", Source: "olist.customers"},
	{Name: "sellers", Source: "olist.sellers"},
	{Name: "reviews", Source: "olist.reviews"},
}

// DefaultFiles are the olist dataset files and their tables.
var DefaultFiles = []FileUnit{
	{File: "olist_customers_dataset.csv", Table: "customers"},
	{File: "olist_geolocation_dataset.csv", Table: "geolocation"},
	{File: "olist_order_items_dataset.csv", Table: "order_items"},
	{File: "olist_order_payments_dataset.csv", Table: "order_payments"},
	{File: "olist_order_reviews_dataset.csv", Table: "order_reviews"},
	{File: "olist_orders_dataset.csv", Table: "orders"},
	{File: "olist_products_dataset.csv", Table: "products"},
	{File: "olist_sellers_dataset.csv", Table: "sellers"},
	{File: "product_category_name_translation.csv", Table: "product_categories"},
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("log.max_size_mb", 100)
	v.SetDefault("log.max_backups", 7)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("metrics.backend", "none")
	v.SetDefault("metrics.job", "elt")
	v.SetDefault("metrics.pushgateway_url", "http://localhost:9091")
	v.SetDefault("metrics.datadog_addr", "127.0.0.1:8125")
	v.SetDefault("metrics.namespace", "elt.")

	v.SetDefault("destination.kind", "postgres")
	v.SetDefault("destination.host", "localhost")
	v.SetDefault("destination.port", 5432)
	v.SetDefault("destination.sslmode", "prefer")
	v.SetDefault("destination.connect_timeout", 10*time.Second)

	v.SetDefault("copy.target_schema", copyjob.DefaultTargetSchema)
	v.SetDefault("copy.table_prefix", copyjob.DefaultTablePrefix)
	v.SetDefault("copy.chunk_size", storage.DefaultChunkSize)
	v.SetDefault("copy.tables", toMaps(DefaultTables))

	v.SetDefault("load.dir", "data/raw")
	v.SetDefault("load.schema", fileload.DefaultSchema)
	v.SetDefault("load.chunk_size", storage.DefaultChunkSize)
	v.SetDefault("load.delimiter", ",")
	v.SetDefault("load.download.dataset", fileload.DefaultDataset)
	v.SetDefault("load.download.binary", "kaggle")
	v.SetDefault("load.files", toMaps(DefaultFiles))

	v.SetDefault("metabase.retry_count", 2)
	v.SetDefault("metabase.session_timeout", 30*time.Second)
	v.SetDefault("metabase.query_timeout", 60*time.Second)

	v.SetDefault("dbt.enabled", true)
	v.SetDefault("dbt.binary", "dbt")
	v.SetDefault("dbt.project_dir", "dbt_project")
	v.SetDefault("dbt.profiles_dir", "./profiles")

	v.SetDefault("schedule.cron", "0 5 * * *")
}

// envBindings maps config keys to the variable names used by deployments.
var envBindings = map[string][]string{
	"destination.kind":            {"DB_KIND"},
	"destination.dsn":             {"DB_DSN", "DATABASE_URL"},
	"destination.host":            {"DB_HOST"},
	"destination.port":            {"DB_PORT"},
	"destination.name":            {"DB_NAME"},
	"destination.user":            {"DB_USER"},
	"destination.password":        {"DB_PASSWORD"},
	"destination.sslmode":         {"DB_SSLMODE"},
	"source.kind":                 {"SOURCE_DB_KIND"},
	"source.dsn":                  {"SOURCE_DB_DSN"},
	"source.host":                 {"SOURCE_DB_HOST"},
	"source.port":                 {"SOURCE_DB_PORT"},
	"source.name":                 {"SOURCE_DB_NAME"},
	"source.user":                 {"SOURCE_DB_USER"},
	"source.password":             {"SOURCE_DB_PASSWORD"},
	"copy.target_schema":          {"DB_SCHEMA"},
	"load.schema":                 {"DB_SCHEMA"},
	"load.dir":                    {"DATA_DIR"},
	"metabase.url":                {"METABASE_URL"},
	"metabase.username":           {"METABASE_USERNAME"},
	"metabase.password":           {"METABASE_PASSWORD"},
	"metabase.dashboard_ids":      {"METABASE_DASHBOARD_IDS"},
	"dbt.project_dir":             {"DBT_PROJECT_DIR"},
	"log.level":                   {"LOG_LEVEL"},
	"log.format":                  {"LOG_FORMAT"},
	"log.file":                    {"LOG_FILE"},
	"metrics.backend":             {"METRICS_BACKEND"},
	"metrics.pushgateway_url":     {"PUSHGATEWAY_URL"},
	"metrics.datadog_addr":        {"DD_DOGSTATSD_ADDR"},
	"schedule.cron":               {"SCHEDULE_CRON"},
	"load.download.enabled":       {"DOWNLOAD_ENABLED"},
	"destination.connect_timeout": {"DB_CONNECT_TIMEOUT"},
}

// Load reads the configuration. An empty path searches ./configs and . for
// elt.yaml and tolerates its absence; an explicit path must be readable.
func Load(path string) (*Config, error) {
	for _, f := range EnvFiles {
		_ = godotenv.Load(f)
	}

	v := viper.New()
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("elt")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	for key, names := range envBindings {
		_ = v.BindEnv(append([]string{key}, names...)...)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.Source = cfg.Source.inherit(cfg.Destination)
	return &cfg, nil
}

func toMaps[T TableUnit | FileUnit](units []T) []map[string]any {
	out := make([]map[string]any, 0, len(units))
	for _, u := range units {
		switch x := any(u).(type) {
		case TableUnit:
			out = append(out, map[string]any{"name": x.Name, "source": x.Source})
		case FileUnit:
			out = append(out, map[string]any{"file": x.File, "table": x.Table})
		}
	}
	return out
}
