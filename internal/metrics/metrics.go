// Package metrics exposes Prometheus collectors that report task store
// activity.
package metrics

import (
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nibzard/taskhub/internal/filter"
	"github.com/nibzard/taskhub/internal/notify"
	"github.com/nibzard/taskhub/internal/task"
)

const namespace = "taskhub"

// Counter reports how many visible tasks match a predicate. *store.Store
// satisfies it.
type Counter interface {
	GetTaskCount(pred filter.Predicate) int
}

// Metrics counts change events and tracks task totals per status.
type Metrics struct {
	gatherer         prometheus.Gatherer
	src              Counter
	events           *prometheus.CounterVec
	subscriberErrors *prometheus.CounterVec
	tasks            *prometheus.GaugeVec
}

// New registers the collectors with reg and takes an initial reading from
// src. A nil reg gets a fresh registry.
func New(reg *prometheus.Registry, src Counter) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		gatherer: reg,
		src:      src,
		events: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "events_total",
				Help:      "Change notifications published by the task store.",
			},
			[]string{"kind"},
		),
		subscriberErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "subscriber_errors_total",
				Help:      "Subscriber calls that returned an error or panicked.",
			},
			[]string{"kind"},
		),
		tasks: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Subsystem: "store",
				Name:      "tasks",
				Help:      "Visible tasks by status.",
			},
			[]string{"status"},
		),
	}
	for _, c := range []prometheus.Collector{m.events, m.subscriberErrors, m.tasks} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("registering metrics: %w", err)
		}
	}
	m.Refresh()
	return m, nil
}

// Handle is a notify.Handler. It counts the event and rereads the status
// gauges.
func (m *Metrics) Handle(ev notify.Event) error {
	if m == nil {
		return nil
	}
	m.events.WithLabelValues(ev.Kind.String()).Inc()
	m.Refresh()
	return nil
}

// ObserveSubscriberError counts a failed subscriber call. It has the
// notify.ErrorHandler signature.
func (m *Metrics) ObserveSubscriberError(ev notify.Event, _ error) {
	if m == nil {
		return
	}
	m.subscriberErrors.WithLabelValues(ev.Kind.String()).Inc()
}

// Refresh sets every status gauge from the source.
func (m *Metrics) Refresh() {
	if m == nil || m.src == nil {
		return
	}
	for _, st := range task.Statuses() {
		m.tasks.WithLabelValues(string(st)).Set(float64(m.src.GetTaskCount(filter.StatusIn(st))))
	}
}

// WriteTextfile writes every registered metric to path in the Prometheus
// text format, replacing the file atomically.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return errors.New("metrics not initialized")
	}
	if err := prometheus.WriteToTextfile(path, m.gatherer); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
