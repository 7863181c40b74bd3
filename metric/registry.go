// Package metric wraps a Prometheus registry with the core instrumentation
// for nodes, wait sets and action endpoints, plus an HTTP exposition
// endpoint.
package metric

import (
	stderrors "errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/XiandiShan/rclgo/errors"
)

// Registry manages metric registration and lifecycle
type Registry struct {
	prometheusRegistry *prometheus.Registry
	core               *Metrics

	mu         sync.RWMutex
	registered map[string]prometheus.Collector
}

// NewRegistry creates a registry preloaded with the core metrics and Go
// runtime collectors
func NewRegistry() *Registry {
	r := &Registry{
		prometheusRegistry: prometheus.NewRegistry(),
		core:               NewMetrics(),
		registered:         make(map[string]prometheus.Collector),
	}

	for _, c := range r.core.collectors() {
		r.prometheusRegistry.MustRegister(c)
	}
	r.prometheusRegistry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// PrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) PrometheusRegistry() *prometheus.Registry {
	return r.prometheusRegistry
}

// Core returns the preregistered core metrics
func (r *Registry) Core() *Metrics {
	return r.core
}

// Register adds a caller-owned collector under owner.name. Duplicate keys
// and Prometheus conflicts are rejected.
func (r *Registry) Register(owner, name string, collector prometheus.Collector) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", owner, name)
	if _, exists := r.registered[key]; exists {
		return errors.Newf(errors.KindValidationError, "metric", "register",
			"metric %s already registered", key)
	}

	if err := r.prometheusRegistry.Register(collector); err != nil {
		var already prometheus.AlreadyRegisteredError
		if stderrors.As(err, &already) {
			return errors.Wrap(errors.KindValidationError, err, "metric", "register",
				"prometheus conflict for "+key)
		}
		return errors.Wrap(errors.KindTransport, err, "metric", "register",
			"register "+key)
	}

	r.registered[key] = collector
	return nil
}

// Unregister removes a collector previously added with Register
func (r *Registry) Unregister(owner, name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := fmt.Sprintf("%s.%s", owner, name)
	collector, exists := r.registered[key]
	if !exists {
		return false
	}
	delete(r.registered, key)
	return r.prometheusRegistry.Unregister(collector)
}
