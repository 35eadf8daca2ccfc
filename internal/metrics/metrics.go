// Package metrics exposes bot activity as Prometheus metrics. Every method
// is safe on a nil *Collector, so components can run without metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gamenewsbot"

type Collector struct {
	reg *prometheus.Registry

	cycles        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	entries       *prometheus.CounterVec
	feedFetches   *prometheus.CounterVec
	fetchLatency  prometheus.Histogram
	dispatches    *prometheus.CounterVec
	translations  *prometheus.CounterVec
	promo         *prometheus.CounterVec
	pruned        prometheus.Counter
	taskRuns      *prometheus.CounterVec
}

// New creates a collector on its own registry, with Go and process
// collectors attached.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return NewWithRegistry(reg)
}

func NewWithRegistry(reg *prometheus.Registry) *Collector {
	c := &Collector{
		reg: reg,
		cycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "news_cycles_total",
			Help: "News cycles by result (ok, store_error, canceled).",
		}, []string{"result"}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "news_cycle_duration_seconds",
			Help:    "Wall time of one news cycle.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1800},
		}),
		entries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "news_entries_total",
			Help: "Feed entries by outcome (sent, skipped, failed, record_error).",
		}, []string{"outcome"}),
		feedFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "feed_fetch_total",
			Help: "Feed fetches by result.",
		}, []string{"result"}),
		fetchLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "feed_fetch_duration_seconds",
			Help:    "Feed fetch and parse latency.",
			Buckets: prometheus.DefBuckets,
		}),
		dispatches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "dispatch_total",
			Help: "Dispatch attempts by kind (news, promo) and result reason.",
		}, []string{"kind", "reason"}),
		translations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "translate_total",
			Help: "Translations by result (translated, fallback, skipped).",
		}, []string{"result"}),
		promo: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "promo_ticks_total",
			Help: "Promo ticks by outcome.",
		}, []string{"outcome"}),
		pruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "posted_pruned_total",
			Help: "Posted records removed by retention.",
		}),
		taskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "task_runs_total",
			Help: "Scheduled task runs by task and status.",
		}, []string{"task", "status"}),
	}
	reg.MustRegister(c.cycles, c.cycleDuration, c.entries, c.feedFetches, c.fetchLatency,
		c.dispatches, c.translations, c.promo, c.pruned, c.taskRuns)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	if c == nil {
		return nil
	}
	return c.reg
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func (c *Collector) CycleFinished(result string, d time.Duration) {
	if c == nil {
		return
	}
	c.cycles.WithLabelValues(result).Inc()
	c.cycleDuration.Observe(d.Seconds())
}

func (c *Collector) Entry(outcome string) {
	if c == nil {
		return
	}
	c.entries.WithLabelValues(outcome).Inc()
}

func (c *Collector) FeedFetched(ok bool, d time.Duration) {
	if c == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	c.feedFetches.WithLabelValues(result).Inc()
	c.fetchLatency.Observe(d.Seconds())
}

// Dispatched records a dispatch result; an empty reason means success.
func (c *Collector) Dispatched(kind, reason string) {
	if c == nil {
		return
	}
	if reason == "" {
		reason = "ok"
	}
	c.dispatches.WithLabelValues(kind, reason).Inc()
}

func (c *Collector) Translated(result string) {
	if c == nil {
		return
	}
	c.translations.WithLabelValues(result).Inc()
}

func (c *Collector) PromoTick(outcome string) {
	if c == nil {
		return
	}
	c.promo.WithLabelValues(outcome).Inc()
}

func (c *Collector) Pruned(n int64) {
	if c == nil || n <= 0 {
		return
	}
	c.pruned.Add(float64(n))
}

func (c *Collector) TaskRun(task, status string) {
	if c == nil {
		return
	}
	c.taskRuns.WithLabelValues(task, status).Inc()
}
