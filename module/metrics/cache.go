package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// CacheCollector implements module.CacheMetrics for the secret manager caches.
type CacheCollector struct {
	entries  *prometheus.GaugeVec
	hits     *prometheus.CounterVec
	notFound *prometheus.CounterVec
	misses   *prometheus.CounterVec
}

func NewCacheCollector(registerer prometheus.Registerer) *CacheCollector {
	cc := &CacheCollector{
		entries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespaceSecrets,
			Subsystem: subsystemCache,
			Name:      "entries_total",
			Help:      "the number of entries in the storage cache",
		}, []string{LabelResource}),
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceSecrets,
			Subsystem: subsystemCache,
			Name:      "hits_total",
			Help:      "the number of hits for the storage cache",
		}, []string{LabelResource}),
		notFound: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceSecrets,
			Subsystem: subsystemCache,
			Name:      "notfound_total",
			Help:      "the number of times the queried item was not found in either cache or backend",
		}, []string{LabelResource}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceSecrets,
			Subsystem: subsystemCache,
			Name:      "misses_total",
			Help:      "the number of times the queried item was not in the cache but found in the backend",
		}, []string{LabelResource}),
	}
	registerer.MustRegister(cc.entries, cc.hits, cc.notFound, cc.misses)
	return cc
}

func (cc *CacheCollector) CacheEntries(resource string, entries uint) {
	cc.entries.With(prometheus.Labels{LabelResource: resource}).Set(float64(entries))
}

func (cc *CacheCollector) CacheHit(resource string) {
	cc.hits.With(prometheus.Labels{LabelResource: resource}).Inc()
}

func (cc *CacheCollector) CacheNotFound(resource string) {
	cc.notFound.With(prometheus.Labels{LabelResource: resource}).Inc()
}

func (cc *CacheCollector) CacheMiss(resource string) {
	cc.misses.With(prometheus.Labels{LabelResource: resource}).Inc()
}
