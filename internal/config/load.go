package config

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load loads configuration from multiple sources in priority order:
// 1. Defaults
// 2. User config file (~/.taskhub/taskhub.toml or OS-specific config dir)
// 3. Project config file (taskhub.toml or .taskhub.toml in current directory)
// 4. Environment variables
// 5. CLI flags
func Load(fs *flag.FlagSet, args []string) (*Config, error) {
	cws, err := LoadWithSources(fs, args)
	if err != nil {
		return nil, err
	}
	return cws.Config, nil
}

// LoadWithSources loads configuration and tracks the source of each value.
// Flags are parsed from args with fs; the remaining arguments are left in
// fs.Args().
func LoadWithSources(fs *flag.FlagSet, args []string) (*ConfigWithSources, error) {
	sources := make(map[string]ConfigSource)
	cfg := &Config{}

	// 1. Set defaults (all fields start with default source)
	setDefaults(cfg)
	for _, field := range configFields() {
		sources[field] = SourceDefault
	}

	var files []string

	// 2. Try to load from user config file
	if userConfigFile := findUserConfigFile(); userConfigFile != "" {
		if err := loadConfigFile(cfg, userConfigFile, sources, SourceUserFile); err != nil {
			return nil, fmt.Errorf("loading user config file %s: %w", userConfigFile, err)
		}
		files = append(files, userConfigFile)
	}

	// 3. Try to load from project config file (overrides user config)
	if projectConfigFile := findProjectConfigFile(); projectConfigFile != "" {
		if err := loadConfigFile(cfg, projectConfigFile, sources, SourceProjFile); err != nil {
			return nil, fmt.Errorf("loading project config file %s: %w", projectConfigFile, err)
		}
		files = append(files, projectConfigFile)
	}

	// 4. Override from environment
	if err := loadFromEnv(cfg, sources); err != nil {
		return nil, fmt.Errorf("reading environment: %w", err)
	}

	// 5. Parse CLI flags (they override everything)
	if err := parseFlags(cfg, fs, args, sources); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	// 6. Compute derived values
	if err := finalizeConfig(cfg); err != nil {
		return nil, fmt.Errorf("finalizing config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &ConfigWithSources{
		Config:  cfg,
		Sources: sources,
		Files:   files,
	}, nil
}

// configFields returns the list of configurable field names for source tracking.
func configFields() []string {
	return []string{
		"backend",
		"data_file",
		"sort_gap",
		"default_filter",
		"refresh_seconds",
		"log_dir",
		"journal",
		"log_level",
		"log_format",
		"log_timestamps",
		"log_caller",
		"metrics_file",
	}
}

// setDefaults applies default values to the config.
func setDefaults(cfg *Config) {
	cfg.Backend = DefaultBackend
	cfg.DataFile = ""
	cfg.SortGap = DefaultSortGap
	cfg.DefaultFilter = DefaultFilter
	cfg.RefreshSeconds = DefaultRefreshPeriod
	cfg.LogDir = DefaultLogDir
	cfg.Journal = false
	cfg.LogLevel = DefaultLogLevel
	cfg.LogFormat = DefaultLogFormat
	cfg.LogTimestamps = false
	cfg.LogCaller = false
	cfg.MetricsFile = ""
}

// loadConfigFile decodes the TOML file at path over cfg. Keys present in the
// file are credited to source; unknown keys are an error.
func loadConfigFile(cfg *Config, path string, sources map[string]ConfigSource, source ConfigSource) error {
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return err
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return fmt.Errorf("unknown keys: %s", strings.Join(keys, ", "))
	}
	if sources != nil {
		for _, field := range configFields() {
			if md.IsDefined(field) {
				sources[field] = source
			}
		}
	}
	return nil
}

// finalizeConfig computes derived values and resolves paths.
func finalizeConfig(cfg *Config) error {
	cfg.Backend = strings.ToLower(strings.TrimSpace(cfg.Backend))
	cfg.LogDir = expandPath(cfg.LogDir)

	// Determine project root
	if cfg.ProjectRoot == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("getting working directory: %w", err)
		}
		cfg.ProjectRoot = wd
	}

	if cfg.DataFile == "" {
		name := DefaultJSONDataFile
		if cfg.Backend == BackendSQLite {
			name = DefaultSQLiteDBFile
		}
		cfg.DataFile = filepath.Join(expandPath(DefaultDataDir), name)
	}
	cfg.DataFile = expandPath(cfg.DataFile)
	if !filepath.IsAbs(cfg.DataFile) {
		cfg.DataFile = filepath.Join(cfg.ProjectRoot, cfg.DataFile)
	}
	if cfg.MetricsFile != "" {
		cfg.MetricsFile = expandPath(cfg.MetricsFile)
		if !filepath.IsAbs(cfg.MetricsFile) {
			cfg.MetricsFile = filepath.Join(cfg.ProjectRoot, cfg.MetricsFile)
		}
	}

	return nil
}

// Validate checks values that cannot be fixed up silently.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendJSON, BackendSQLite, BackendMemory:
	default:
		return fmt.Errorf("invalid backend %q, must be one of: json, sqlite, memory", c.Backend)
	}
	if c.SortGap < 2 {
		return fmt.Errorf("invalid sort_gap %d, must be at least 2", c.SortGap)
	}
	if c.RefreshSeconds < 0 {
		return fmt.Errorf("invalid refresh_seconds %d, must not be negative", c.RefreshSeconds)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log_level %q, must be one of: debug, info, warn, error", c.LogLevel)
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json", "logfmt":
	default:
		return fmt.Errorf("invalid log_format %q, must be one of: text, json, logfmt", c.LogFormat)
	}
	for _, name := range c.FilterNames() {
		if _, err := c.Filters[name].Composite(); err != nil {
			return fmt.Errorf("filter %q: %w", name, err)
		}
	}
	return nil
}
