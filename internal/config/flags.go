package config

import (
	"flag"
)

// flagFields maps global flag names to the config field they set.
var flagFields = map[string]string{
	"backend":        "backend",
	"data":           "data_file",
	"sort-gap":       "sort_gap",
	"filter":         "default_filter",
	"refresh":        "refresh_seconds",
	"log-dir":        "log_dir",
	"journal":        "journal",
	"log-level":      "log_level",
	"log-format":     "log_format",
	"log-timestamps": "log_timestamps",
	"log-caller":     "log_caller",
	"metrics-file":   "metrics_file",
}

// RegisterFlags defines the global flags on fs, bound to cfg. The current
// values of cfg are the flag defaults.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "Storage backend: json, sqlite or memory")
	fs.StringVar(&cfg.DataFile, "data", cfg.DataFile, "Path to the task data file")
	fs.IntVar(&cfg.SortGap, "sort-gap", cfg.SortGap, "Spacing between manual sort keys")
	fs.StringVar(&cfg.DefaultFilter, "filter", cfg.DefaultFilter, "Named filter used by list when none is given")
	fs.IntVar(&cfg.RefreshSeconds, "refresh", cfg.RefreshSeconds, "Agenda refresh interval in seconds (0 disables)")
	fs.StringVar(&cfg.LogDir, "log-dir", cfg.LogDir, "Directory for the change journal")
	fs.BoolVar(&cfg.Journal, "journal", cfg.Journal, "Append applied changes to a JSONL journal")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "Log level: debug, info, warn, error")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "Log format: text, json, logfmt")
	fs.BoolVar(&cfg.LogTimestamps, "log-timestamps", cfg.LogTimestamps, "Include timestamps in log output")
	fs.BoolVar(&cfg.LogCaller, "log-caller", cfg.LogCaller, "Include caller location in log output")
	fs.StringVar(&cfg.MetricsFile, "metrics-file", cfg.MetricsFile, "Write Prometheus metrics to this file on exit")
}

// parseFlags defines the global flags on fs and parses args. Flags that were
// set explicitly are credited to SourceFlag.
func parseFlags(cfg *Config, fs *flag.FlagSet, args []string, sources map[string]ConfigSource) error {
	if fs == nil {
		fs = flag.NewFlagSet("taskhub", flag.ContinueOnError)
	}
	RegisterFlags(fs, cfg)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if sources != nil {
		fs.Visit(func(f *flag.Flag) {
			if field, ok := flagFields[f.Name]; ok {
				sources[field] = SourceFlag
			}
		})
	}
	return nil
}
