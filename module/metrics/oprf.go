package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type OPRFCollector struct {
	partialEvaluation prometheus.Histogram
	proofShare        prometheus.Histogram
	rejected          *prometheus.CounterVec
	openSessions      prometheus.Gauge
}

func NewOPRFCollector(registerer prometheus.Registerer) *OPRFCollector {
	oc := &OPRFCollector{
		partialEvaluation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespaceOPRF,
			Subsystem: subsystemSessions,
			Name:      "partial_evaluation_seconds",
			Help:      "time spent authenticating a request and computing the partial evaluation",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
		}),
		proofShare: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespaceOPRF,
			Subsystem: subsystemSessions,
			Name:      "proof_share_seconds",
			Help:      "time spent answering the challenge of a session",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespaceOPRF,
			Subsystem: subsystemSessions,
			Name:      "rejected_total",
			Help:      "the number of rejected sessions by error code",
		}, []string{LabelCode}),
		openSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespaceOPRF,
			Subsystem: subsystemSessions,
			Name:      "open",
			Help:      "the number of sessions waiting for their challenge",
		}),
	}
	registerer.MustRegister(oc.partialEvaluation, oc.proofShare, oc.rejected, oc.openSessions)
	return oc
}

func (oc *OPRFCollector) PartialEvaluation(duration time.Duration) {
	oc.partialEvaluation.Observe(duration.Seconds())
}

func (oc *OPRFCollector) ProofShare(duration time.Duration) {
	oc.proofShare.Observe(duration.Seconds())
}

func (oc *OPRFCollector) SessionRejected(code string) {
	oc.rejected.With(prometheus.Labels{LabelCode: code}).Inc()
}

func (oc *OPRFCollector) OpenSessions(sessions uint) {
	oc.openSessions.Set(float64(sessions))
}
