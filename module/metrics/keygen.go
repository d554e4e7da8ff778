package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type KeyGenCollector struct {
	polledBlock prometheus.Gauge
	started     prometheus.Counter
	committed   prometheus.Counter
	aborted     prometheus.Counter
	announced   prometheus.Counter
	duration    prometheus.Histogram
}

func NewKeyGenCollector(registerer prometheus.Registerer) *KeyGenCollector {
	kc := &KeyGenCollector{
		polledBlock: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceKeyGen,
			Subsystem: subsystemWatcher,
			Name:      "processed_block",
			Help:      "the block up to which key events have been handled",
		}),
		started: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceKeyGen,
			Name:      "started_total",
			Help:      "the number of key generation instances started",
		}),
		committed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceKeyGen,
			Name:      "committed_total",
			Help:      "the number of key generation instances whose share was committed",
		}),
		aborted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceKeyGen,
			Name:      "aborted_total",
			Help:      "the number of aborted key generation instances",
		}),
		announced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespaceKeyGen,
			Name:      "announced_total",
			Help:      "the number of public keys announced to the registry",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespaceKeyGen,
			Name:      "duration_seconds",
			Help:      "duration of successful key generation instances",
			Buckets:   []float64{.5, 1, 5, 10, 30, 60, 120},
		}),
	}
	registerer.MustRegister(kc.polledBlock, kc.started, kc.committed, kc.aborted, kc.announced, kc.duration)
	return kc
}

func (kc *KeyGenCollector) KeyEventsPolled(block uint64) {
	kc.polledBlock.Set(float64(block))
}

func (kc *KeyGenCollector) KeyGenStarted() {
	kc.started.Inc()
}

func (kc *KeyGenCollector) KeyGenCommitted(duration time.Duration) {
	kc.committed.Inc()
	kc.duration.Observe(duration.Seconds())
}

func (kc *KeyGenCollector) KeyGenAborted() {
	kc.aborted.Inc()
}

func (kc *KeyGenCollector) PublicKeyAnnounced() {
	kc.announced.Inc()
}
