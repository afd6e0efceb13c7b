// Package metrics counts graveyard operations with Prometheus collectors.
//
// rip is a short-lived CLI, so nothing is served over HTTP. When a textfile
// path is configured the registry is written in the node_exporter textfile
// format on Close, where a collector can pick it up.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// DurationBuckets cover a fast rename up to a multi-minute cross-device copy.
var DurationBuckets = []float64{0.001, 0.01, 0.1, 0.5, 1, 5, 30, 120, 600}

// Registry holds rip's collectors on a private prometheus.Registry.
type Registry struct {
	reg *prometheus.Registry

	buried      *prometheus.CounterVec
	restored    prometheus.Counter
	purged      prometheus.Counter
	errors      *prometheus.CounterVec
	copiedBytes prometheus.Counter
	duration    *prometheus.HistogramVec
}

// NewRegistry creates and registers all collectors.
func NewRegistry() *Registry {
	r := &Registry{
		reg: prometheus.NewRegistry(),
		buried: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rip_buried_total",
			Help: "Items moved into the graveyard.",
		}, []string{"kind", "method"}),
		restored: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rip_restored_total",
			Help: "Items restored from the graveyard.",
		}),
		purged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rip_purged_total",
			Help: "Graves permanently deleted.",
		}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rip_errors_total",
			Help: "Failed operations by error class.",
		}, []string{"op", "code"}),
		copiedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rip_copied_bytes_total",
			Help: "Bytes copied by cross-device moves.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rip_operation_duration_seconds",
			Help:    "Wall time of graveyard operations.",
			Buckets: DurationBuckets,
		}, []string{"op"}),
	}
	r.reg.MustRegister(r.buried, r.restored, r.purged, r.errors, r.copiedBytes, r.duration)
	return r
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the process-wide registry.
func Default() *Registry {
	defaultOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// RecordBury counts one buried item. copied is the byte count of a
// cross-device copy, 0 for a rename.
func (r *Registry) RecordBury(kind, method string, copied int64, d time.Duration) {
	r.buried.WithLabelValues(kind, method).Inc()
	if copied > 0 {
		r.copiedBytes.Add(float64(copied))
	}
	r.duration.WithLabelValues("bury").Observe(d.Seconds())
}

// RecordRestore counts one restored item. copied is as in RecordBury.
func (r *Registry) RecordRestore(copied int64, d time.Duration) {
	r.restored.Inc()
	if copied > 0 {
		r.copiedBytes.Add(float64(copied))
	}
	r.duration.WithLabelValues("unbury").Observe(d.Seconds())
}

// RecordPurge counts n purged graves.
func (r *Registry) RecordPurge(n int, d time.Duration) {
	r.purged.Add(float64(n))
	r.duration.WithLabelValues("purge").Observe(d.Seconds())
}

// RecordError counts a failed operation by its error class code.
func (r *Registry) RecordError(op, code string) {
	r.errors.WithLabelValues(op, code).Inc()
}

// Gatherer exposes the underlying registry.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// WriteTextfile writes all collectors to path in the text exposition format.
// The parent directory is created if needed.
func (r *Registry) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("metrics textfile dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
