package bibdb

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "relaton"

var (
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "cache_hits_total",
		Help:      "Lookups answered from a cache tier.",
	}, []string{"tier"})

	cacheMisses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "cache_misses_total",
		Help:      "Lookups that required a provider fetch.",
	}, []string{"provider"})

	providerFetches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "provider_fetches_total",
		Help:      "Fetch attempts made against providers.",
	}, []string{"provider"})

	providerRetries = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "provider_retries_total",
		Help:      "Fetch attempts repeated after a transient failure.",
	}, []string{"provider"})

	tombstonesWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "tombstones_total",
		Help:      "Lookups recorded as not found.",
	}, []string{"provider"})

	redirectsWritten = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: metricsNamespace,
		Name:      "redirects_total",
		Help:      "Lookups recorded as a redirect to a canonical identifier.",
	}, []string{"provider"})

	queueSize = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "async_queue_size",
		Help:      "Asynchronous lookups waiting for a worker.",
	}, []string{"provider"})

	inProgress = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: metricsNamespace,
		Name:      "async_in_progress",
		Help:      "Asynchronous lookups being resolved.",
	}, []string{"provider"})
)
