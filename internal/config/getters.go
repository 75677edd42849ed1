package config

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/nibzard/taskhub/internal/duedate"
	"github.com/nibzard/taskhub/internal/filter"
	"github.com/nibzard/taskhub/internal/task"
)

// RefreshInterval returns the agenda refresh period, or zero when disabled.
func (c *Config) RefreshInterval() time.Duration {
	if c.RefreshSeconds <= 0 {
		return 0
	}
	return time.Duration(c.RefreshSeconds) * time.Second
}

// FilterNames returns the configured filter names in sorted order.
func (c *Config) FilterNames() []string {
	names := make([]string, 0, len(c.Filters))
	for name := range c.Filters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// RegisterFilters adds every configured filter to catalog.
func (c *Config) RegisterFilters(catalog *filter.Catalog) error {
	for _, name := range c.FilterNames() {
		comp, err := c.Filters[name].Composite()
		if err != nil {
			return fmt.Errorf("filter %q: %w", name, err)
		}
		if err := catalog.RegisterComposite(name, comp); err != nil {
			return err
		}
	}
	return nil
}

// Composite parses the configured values into a composite filter.
func (f FilterConfig) Composite() (filter.Composite, error) {
	comp := filter.Composite{
		Projects: append([]string(nil), f.Projects...),
		Tags:     append([]string(nil), f.Tags...),
		Text:     f.Text,
	}
	for _, s := range f.Statuses {
		status, err := task.ParseStatus(s)
		if err != nil {
			return filter.Composite{}, err
		}
		comp.Statuses = append(comp.Statuses, status)
	}
	for _, p := range f.Priorities {
		priority, err := task.ParsePriority(p)
		if err != nil {
			return filter.Composite{}, err
		}
		comp.Priorities = append(comp.Priorities, priority)
	}
	for _, b := range f.Buckets {
		bucket, err := duedate.ParseBucket(b)
		if err != nil {
			return filter.Composite{}, err
		}
		comp.Buckets = append(comp.Buckets, bucket)
	}
	return comp, nil
}

// Values returns the displayable value of every tracked field, keyed like
// configFields.
func (c *Config) Values() map[string]string {
	return map[string]string{
		"backend":         c.Backend,
		"data_file":       c.DataFile,
		"sort_gap":        strconv.Itoa(c.SortGap),
		"default_filter":  c.DefaultFilter,
		"refresh_seconds": strconv.Itoa(c.RefreshSeconds),
		"log_dir":         c.LogDir,
		"journal":         strconv.FormatBool(c.Journal),
		"log_level":       c.LogLevel,
		"log_format":      c.LogFormat,
		"log_timestamps":  strconv.FormatBool(c.LogTimestamps),
		"log_caller":      strconv.FormatBool(c.LogCaller),
		"metrics_file":    c.MetricsFile,
	}
}

// Fields returns the tracked field names in display order.
func Fields() []string {
	return configFields()
}
