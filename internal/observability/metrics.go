package observability

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is the full metric set a simulator process exports: the tick
// engine's RunCollector and the control surface's ControlCollector,
// registered against one registry and served from one handler.
type Metrics struct {
	Run     *RunCollector
	Control *ControlCollector

	gatherer prometheus.Gatherer
}

// NewMetrics registers both collectors against reg. A nil reg means the
// global Prometheus registry.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	reg, gatherer := resolveRegistry(reg)

	runMetrics, err := NewRunCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("run metrics: %w", err)
	}
	control, err := NewControlCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("control metrics: %w", err)
	}
	return &Metrics{Run: runMetrics, Control: control, gatherer: gatherer}, nil
}

// Handler serves every registered series in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	var g prometheus.Gatherer
	if m != nil {
		g = m.gatherer
	}
	if g == nil {
		g = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// resolveRegistry pairs a registerer with the gatherer that reads it back.
// Registerers that cannot gather (e.g. prometheus.WrapRegistererWith) fall
// back to the default gatherer.
func resolveRegistry(reg prometheus.Registerer) (prometheus.Registerer, prometheus.Gatherer) {
	if reg == nil {
		return prometheus.DefaultRegisterer, prometheus.DefaultGatherer
	}
	if g, ok := reg.(prometheus.Gatherer); ok {
		return reg, g
	}
	return reg, prometheus.DefaultGatherer
}

// register adds c to reg. When an identical collector is already registered
// the existing one is returned so several collectors in one process share
// series instead of failing.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	err := reg.Register(c)
	if err == nil {
		return c, nil
	}
	var are prometheus.AlreadyRegisteredError
	if !errors.As(err, &are) {
		return c, err
	}
	existing, ok := are.ExistingCollector.(C)
	if !ok {
		return c, fmt.Errorf("metric already registered as %T, want %T", are.ExistingCollector, c)
	}
	return existing, nil
}
