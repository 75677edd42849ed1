package config

// ConfigSource represents where a configuration value came from.
type ConfigSource string

const (
	SourceDefault  ConfigSource = "default"
	SourceUserFile ConfigSource = "user file"
	SourceProjFile ConfigSource = "project file"
	SourceEnv      ConfigSource = "environment"
	SourceFlag     ConfigSource = "flag"
)

// ConfigWithSources holds configuration along with source information for each field.
type ConfigWithSources struct {
	Config  *Config
	Sources map[string]ConfigSource
	// Files lists the config files that were read, lowest precedence first.
	Files []string
}

// Backend kinds.
const (
	BackendJSON   = "json"
	BackendSQLite = "sqlite"
	BackendMemory = "memory"
)

// Default values.
const (
	DefaultBackend       = BackendJSON
	DefaultDataDir       = "~/.taskhub"
	DefaultLogDir        = "~/.taskhub"
	DefaultSortGap       = 100
	DefaultFilter        = "active"
	DefaultLogLevel      = "info"
	DefaultLogFormat     = "text"
	DefaultJSONDataFile  = "tasks.json"
	DefaultSQLiteDBFile  = "tasks.db"
	DefaultRefreshPeriod = 0
)

// Config holds the full configuration for taskhub.
type Config struct {
	// Storage
	Backend  string `toml:"backend"`
	DataFile string `toml:"data_file"`

	// Ordering
	SortGap int `toml:"sort_gap"`

	// Views
	DefaultFilter  string `toml:"default_filter"`
	RefreshSeconds int    `toml:"refresh_seconds"`

	// Journal of applied changes, written under LogDir
	LogDir  string `toml:"log_dir"`
	Journal bool   `toml:"journal"`

	// Console logging
	LogLevel      string `toml:"log_level"`
	LogFormat     string `toml:"log_format"`
	LogTimestamps bool   `toml:"log_timestamps"`
	LogCaller     bool   `toml:"log_caller"`

	// MetricsFile receives Prometheus text-format metrics when set
	MetricsFile string `toml:"metrics_file"`

	// Filters are named composite filters added to the catalog.
	Filters map[string]FilterConfig `toml:"filters"`

	// Computed at load time
	ProjectRoot string `toml:"-"`
}

// FilterConfig is a composite filter as written in a config file. Each list
// is OR-ed internally; non-empty lists are AND-ed together.
type FilterConfig struct {
	Statuses   []string `toml:"statuses"`
	Priorities []string `toml:"priorities"`
	Projects   []string `toml:"projects"`
	Buckets    []string `toml:"buckets"`
	Tags       []string `toml:"tags"`
	Text       string   `toml:"text"`
}
