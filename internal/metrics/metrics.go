package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg              *prometheus.Registry
	Merges           *prometheus.CounterVec
	StockRejections  prometheus.Counter
	Resyncs          *prometheus.CounterVec
	RemoteLatencySec *prometheus.HistogramVec
	Sessions         prometheus.Gauge
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	merges := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_merges_total",
		Help: "Guest cart reconciliations by result (merged, skipped, failed).",
	}, []string{"result"})
	rejections := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "cart_stock_rejections_total",
		Help: "Add-to-cart requests blocked by the local stock check.",
	})
	resyncs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_resyncs_total",
		Help: "View resynchronizations after a failed optimistic update.",
	}, []string{"store"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cart_remote_request_seconds",
		Help:    "Latency of bookstore backend calls.",
		Buckets: prometheus.DefBuckets,
	}, []string{"op", "outcome"})
	sessions := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cart_sessions_active",
		Help: "Cart sessions currently held in memory.",
	})

	r.MustRegister(merges, rejections, resyncs, latency, sessions)
	return &Registry{
		reg:              r,
		Merges:           merges,
		StockRejections:  rejections,
		Resyncs:          resyncs,
		RemoteLatencySec: latency,
		Sessions:         sessions,
	}
}

// ObserveRemote records one backend call. A nil registry is a no-op.
func (r *Registry) ObserveRemote(op string, start time.Time, err error) {
	if r == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.RemoteLatencySec.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
}

func (r *Registry) Merge(result string) {
	if r == nil {
		return
	}
	r.Merges.WithLabelValues(result).Inc()
}

func (r *Registry) StockRejected() {
	if r == nil {
		return
	}
	r.StockRejections.Inc()
}

func (r *Registry) Resynced(store string) {
	if r == nil {
		return
	}
	r.Resyncs.WithLabelValues(store).Inc()
}

func (r *Registry) Gatherer() prometheus.Gatherer { return r.reg }

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
