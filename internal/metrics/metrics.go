// Package metrics exports feed engine counters to prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "frayfeed"

// Recorder implements feed.Metrics on a private registry.
type Recorder struct {
	registry *prometheus.Registry

	dropped       *prometheus.CounterVec
	inserted      *prometheus.CounterVec
	removed       *prometheus.CounterVec
	historyPages  *prometheus.CounterVec
	historyItems  *prometheus.HistogramVec
	restores      *prometheus.CounterVec
	restoreTries  prometheus.Histogram
	sends         *prometheus.CounterVec
	threadUpdates *prometheus.CounterVec
	reads         *prometheus.CounterVec
	healed        *prometheus.CounterVec
}

// New builds a Recorder with process and Go runtime collectors attached.
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_dropped_total",
			Help:      "Push events and results discarded, by reason.",
		}, []string{"reason"}),
		inserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_inserted_total",
			Help:      "Messages added to the timeline, by source.",
		}, []string{"source"}),
		removed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_removed_total",
			Help:      "Messages removed from the timeline, by source.",
		}, []string{"source"}),
		historyPages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "history_pages_total",
			Help:      "History pages applied, by direction.",
		}, []string{"direction"}),
		historyItems: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "history_page_items",
			Help:      "Items inserted per history page.",
			Buckets:   []float64{0, 1, 5, 10, 20, 30, 50, 100},
		}, []string{"direction"}),
		restores: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scroll_restores_total",
			Help:      "Scroll restorations, by method used.",
		}, []string{"method"}),
		restoreTries: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scroll_restore_attempts",
			Help:      "Attempts needed per scroll restoration.",
			Buckets:   []float64{1, 2, 3, 4, 5},
		}),
		sends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sends_total",
			Help:      "Completed sends, by outcome.",
		}, []string{"outcome"}),
		threadUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "thread_updates_total",
			Help:      "Thread summary updates, by result.",
		}, []string{"result"}),
		reads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "read_transitions_total",
			Help:      "Read status transitions, by target status.",
		}, []string{"to"}),
		healed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sweep_healed_total",
			Help:      "Inconsistencies repaired by the periodic sweep, by kind.",
		}, []string{"kind"}),
	}
	r.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		r.dropped, r.inserted, r.removed, r.historyPages, r.historyItems,
		r.restores, r.restoreTries, r.sends, r.threadUpdates, r.reads, r.healed,
	)
	return r
}

// Registry exposes the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry { return r.registry }

// Handler serves the registry in the prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) EventDropped(reason string)    { r.dropped.WithLabelValues(reason).Inc() }
func (r *Recorder) MessageInserted(source string) { r.inserted.WithLabelValues(source).Inc() }
func (r *Recorder) MessageRemoved(source string)  { r.removed.WithLabelValues(source).Inc() }

func (r *Recorder) HistoryLoaded(direction string, count int) {
	r.historyPages.WithLabelValues(direction).Inc()
	r.historyItems.WithLabelValues(direction).Observe(float64(count))
}

func (r *Recorder) ScrollRestored(method string, attempts int) {
	r.restores.WithLabelValues(method).Inc()
	r.restoreTries.Observe(float64(attempts))
}

func (r *Recorder) SendCompleted(outcome string) { r.sends.WithLabelValues(outcome).Inc() }
func (r *Recorder) ThreadUpdate(result string)   { r.threadUpdates.WithLabelValues(result).Inc() }
func (r *Recorder) ReadTransition(to string)     { r.reads.WithLabelValues(to).Inc() }

func (r *Recorder) SweepHealed(kind string, count int) {
	if count > 0 {
		r.healed.WithLabelValues(kind).Add(float64(count))
	}
}
