package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// loadFromEnv overrides config from TASKHUB_* environment variables. If
// sources is non-nil, it records the environment as the source of each
// value set.
func loadFromEnv(cfg *Config, sources map[string]ConfigSource) error {
	mark := func(field string) {
		if sources != nil {
			sources[field] = SourceEnv
		}
	}
	str := func(key, field string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
			mark(field)
		}
	}
	boolean := func(key, field string, dst *bool) {
		if v := os.Getenv(key); v != "" {
			*dst = boolFromString(v)
			mark(field)
		}
	}
	integer := func(key, field string, dst *int) error {
		v := os.Getenv(key)
		if v == "" {
			return nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", key, v)
		}
		*dst = n
		mark(field)
		return nil
	}

	str("TASKHUB_BACKEND", "backend", &cfg.Backend)
	str("TASKHUB_DATA_FILE", "data_file", &cfg.DataFile)
	str("TASKHUB_DEFAULT_FILTER", "default_filter", &cfg.DefaultFilter)
	str("TASKHUB_LOG_DIR", "log_dir", &cfg.LogDir)
	str("TASKHUB_LOG_LEVEL", "log_level", &cfg.LogLevel)
	str("TASKHUB_LOG_FORMAT", "log_format", &cfg.LogFormat)
	str("TASKHUB_METRICS_FILE", "metrics_file", &cfg.MetricsFile)
	boolean("TASKHUB_JOURNAL", "journal", &cfg.Journal)
	boolean("TASKHUB_LOG_TIMESTAMPS", "log_timestamps", &cfg.LogTimestamps)
	boolean("TASKHUB_LOG_CALLER", "log_caller", &cfg.LogCaller)

	if err := integer("TASKHUB_SORT_GAP", "sort_gap", &cfg.SortGap); err != nil {
		return err
	}
	if err := integer("TASKHUB_REFRESH_SECONDS", "refresh_seconds", &cfg.RefreshSeconds); err != nil {
		return err
	}
	return nil
}

func boolFromString(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	return s == "1" || s == "true" || s == "yes" || s == "on"
}
