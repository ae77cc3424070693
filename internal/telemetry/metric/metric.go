// Package metric provides Prometheus metrics for the Granary
// persistence engine.
//
// All Registry methods tolerate a nil receiver so callers can wire
// metrics optionally without sprinkling nil checks.
package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all persistence-engine metrics.
type Registry struct {
	savesTotal      *prometheus.CounterVec
	loadsTotal      *prometheus.CounterVec
	recoveriesTotal *prometheus.CounterVec
	errorsTotal     *prometheus.CounterVec

	quotaUsedBytes     prometheus.Gauge
	quotaCapacityBytes prometheus.Gauge
	cleanupEvictions   prometheus.Counter

	gatherer prometheus.Gatherer
}

// NewRegistry creates the metrics registry. When reg is nil a private
// Prometheus registry is used, which keeps tests isolated.
func NewRegistry(reg *prometheus.Registry) *Registry {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)

	return &Registry{
		savesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "granary_saves_total",
			Help: "Save operations by result (ok, recovered, failed).",
		}, []string{"result"}),
		loadsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "granary_loads_total",
			Help: "Load operations by result (ok, recovered, failed).",
		}, []string{"result"}),
		recoveriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "granary_recoveries_total",
			Help: "Recovery attempts by strategy.",
		}, []string{"strategy"}),
		errorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "granary_errors_total",
			Help: "Classified failures by taxonomy kind.",
		}, []string{"kind"}),
		quotaUsedBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "granary_quota_used_bytes",
			Help: "Bytes currently used in the storage backend.",
		}),
		quotaCapacityBytes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "granary_quota_capacity_bytes",
			Help: "Storage backend byte capacity (0 = unlimited).",
		}),
		cleanupEvictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "granary_cleanup_evictions_total",
			Help: "Entries evicted by quota cleanup passes.",
		}),
		gatherer: reg,
	}
}

// ObserveSave records a save result ("ok", "recovered", "failed").
func (r *Registry) ObserveSave(result string) {
	if r == nil {
		return
	}
	r.savesTotal.WithLabelValues(result).Inc()
}

// ObserveLoad records a load result ("ok", "recovered", "failed").
func (r *Registry) ObserveLoad(result string) {
	if r == nil {
		return
	}
	r.loadsTotal.WithLabelValues(result).Inc()
}

// ObserveRecovery records a recovery attempt by strategy name.
func (r *Registry) ObserveRecovery(strategy string) {
	if r == nil {
		return
	}
	r.recoveriesTotal.WithLabelValues(strategy).Inc()
}

// ObserveError records a classified failure by taxonomy kind.
func (r *Registry) ObserveError(kind string) {
	if r == nil {
		return
	}
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// SetQuota publishes the backend's quota state.
func (r *Registry) SetQuota(used, capacity float64) {
	if r == nil {
		return
	}
	r.quotaUsedBytes.Set(used)
	r.quotaCapacityBytes.Set(capacity)
}

// AddCleanupEvictions counts entries removed by cleanup.
func (r *Registry) AddCleanupEvictions(n int) {
	if r == nil {
		return
	}
	r.cleanupEvictions.Add(float64(n))
}

// Handler returns an HTTP handler serving this registry in Prometheus
// exposition format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}
