package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/nibzard/taskhub/internal/backend/jsonfile"
	"github.com/nibzard/taskhub/internal/backend/sqlite"
	"github.com/nibzard/taskhub/internal/config"
	"github.com/nibzard/taskhub/internal/filter"
	"github.com/nibzard/taskhub/internal/logging"
	"github.com/nibzard/taskhub/internal/metrics"
	"github.com/nibzard/taskhub/internal/notify"
	"github.com/nibzard/taskhub/internal/store"
	"github.com/nibzard/taskhub/internal/task"
)

// shortIDLen is how many id characters the CLI prints.
const shortIDLen = 8

// app is an open store with everything wired around it.
type app struct {
	cfg     *config.Config
	store   *store.Store
	catalog *filter.Catalog
	logger  *log.Logger
	metrics *metrics.Metrics
	closers []func() error
}

// openApp opens the configured backend, loads the store and attaches the
// event logger and, when enabled, the journal and metrics.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	logger := logging.NewConsoleFromConfig(os.Stderr, cfg.LogLevel, cfg.LogFormat, cfg.LogTimestamps, cfg.LogCaller)
	a := &app{cfg: cfg, logger: logger}

	backend, closeBackend, err := openBackend(cfg)
	if err != nil {
		return nil, err
	}
	if closeBackend != nil {
		a.closers = append(a.closers, closeBackend)
	}

	logFailure := logging.SubscriberErrors(logger)
	notifier := notify.New(notify.WithErrorHandler(func(ev notify.Event, err error) {
		logFailure(ev, err)
		a.metrics.ObserveSubscriberError(ev, err)
	}))
	s, err := store.Open(ctx,
		store.WithBackend(backend),
		store.WithSortGap(cfg.SortGap),
		store.WithNotifier(notifier),
		store.WithContext(ctx),
	)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("opening task store: %w", err)
	}
	a.store = s
	logger.Debug("Store opened", "backend", cfg.Backend, "data_file", cfg.DataFile, "tasks", s.GetTaskCount(nil))

	s.Subscribe(logging.NewEventLogger(logger).Handle)
	if cfg.Journal {
		j, err := logging.OpenJournal(cfg.LogDir, journalKey(cfg))
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("opening journal: %w", err)
		}
		s.Subscribe(j.Handle)
		a.closers = append(a.closers, j.Close)
	}
	if cfg.MetricsFile != "" {
		m, err := metrics.New(nil, s)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.metrics = m
		s.Subscribe(m.Handle)
		a.closers = append(a.closers, func() error { return m.WriteTextfile(cfg.MetricsFile) })
	}

	a.catalog = filter.NewCatalog(nil)
	if err := cfg.RegisterFilters(a.catalog); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// openBackend returns the configured backing store and its close function.
func openBackend(cfg *config.Config) (store.Backend, func() error, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return store.NewMemoryBackend(), nil, nil
	case config.BackendSQLite:
		b, err := sqlite.Open(cfg.DataFile)
		if err != nil {
			return nil, nil, fmt.Errorf("opening sqlite backend: %w", err)
		}
		return b, b.Close, nil
	case config.BackendJSON, "":
		b, err := jsonfile.New(cfg.DataFile)
		if err != nil {
			return nil, nil, fmt.Errorf("opening json backend: %w", err)
		}
		return b, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}
}

// journalKey is the data file the journal is keyed on. The memory backend
// has none.
func journalKey(cfg *config.Config) string {
	if cfg.Backend == config.BackendMemory {
		return ""
	}
	return cfg.DataFile
}

// Close writes the metrics file and releases the journal and backend.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// predicate resolves a named filter from the catalog.
func (a *app) predicate(name string) (filter.Predicate, error) {
	if name == "" {
		name = a.cfg.DefaultFilter
	}
	pred, ok := a.catalog.Lookup(name)
	if !ok {
		return nil, usagef("unknown filter %q (available: %s)", name, strings.Join(a.catalog.Names(), ", "))
	}
	return pred, nil
}

// resolve finds the visible task ref names, by full id or unique prefix.
func (a *app) resolve(ref string) (task.Task, error) {
	if t, ok := a.store.GetTask(ref); ok {
		return t, nil
	}
	return resolveRef(a.store.GetAllTasks(), ref)
}

// resolveDeleted finds the deleted task ref names.
func (a *app) resolveDeleted(ref string) (task.Task, error) {
	return resolveRef(a.store.GetDeletedTasks(), ref)
}

func resolveRef(tasks []task.Task, ref string) (task.Task, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return task.Task{}, usagef("task id is empty")
	}
	var matches []task.Task
	for _, t := range tasks {
		if t.ID == ref {
			return t, nil
		}
		if strings.HasPrefix(t.ID, ref) {
			matches = append(matches, t)
		}
	}
	switch len(matches) {
	case 0:
		return task.Task{}, &task.NotFoundError{ID: ref}
	case 1:
		return matches[0], nil
	}
	ids := make([]string, len(matches))
	for i, t := range matches {
		ids[i] = t.ID
	}
	sort.Strings(ids)
	return task.Task{}, usagef("task id %q is ambiguous: %s", ref, strings.Join(ids, ", "))
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}
	return id[:shortIDLen]
}
