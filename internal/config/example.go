package config

// ExampleConfig returns an example configuration showing all available options.
func ExampleConfig() string {
	return `# taskhub configuration file
# Values can be overridden by TASKHUB_* environment variables or CLI flags

# Storage backend: json, sqlite or memory
backend = "json"

# Task data file (defaults to ~/.taskhub/tasks.json, or tasks.db for sqlite)
# data_file = "~/.taskhub/tasks.json"

# Spacing between manual sort keys
sort_gap = 100

# Named filter used by "taskhub list" when none is given
default_filter = "active"

# Agenda refresh interval in seconds (0 disables watching)
refresh_seconds = 0

# Change journal (JSONL) under log_dir
log_dir = "~/.taskhub"
journal = false

# Console logging
log_level = "info"      # debug, info, warn, error
log_format = "text"     # text, json, logfmt
log_timestamps = false
log_caller = false

# Prometheus text-format metrics written on exit (node_exporter textfile collector)
# metrics_file = "~/.taskhub/taskhub.prom"

# Named filters. Lists are OR-ed, non-empty lists are AND-ed.
# Buckets: no-due-date, overdue, today, tomorrow, this-week, later
[filters.urgent-work]
priorities = ["high", "today"]
statuses = ["pending", "in_progress"]
tags = ["work"]

# [filters.errands]
# buckets = ["today", "tomorrow"]
# text = "buy"
`
}
