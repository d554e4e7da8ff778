package metrics

import "github.com/prometheus/client_golang/prometheus"

// WalletCollector implements metric collection for the node's wallet.
type WalletCollector struct {
	reservedNonce prometheus.Gauge
	resyncs       prometheus.Counter
	submitted     prometheus.Counter
	failed        prometheus.Counter
}

func NewWalletCollector(registerer prometheus.Registerer) *WalletCollector {
	reservedNonce := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceWallet,
		Name:      "reserved_nonce",
		Help:      "the last transaction nonce reserved by this node's wallet",
	})
	resyncs := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespaceWallet,
		Name:      "nonce_resyncs_total",
		Help:      "the number of times the nonce store was resynced from the chain; frequent resyncs indicate failing transactions",
	})
	submitted := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespaceWallet,
		Name:      "transactions_submitted_total",
		Help:      "the number of transactions submitted from this node's wallet",
	})
	failed := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespaceWallet,
		Name:      "transactions_failed_total",
		Help:      "the number of transactions that could not be submitted; check logs for further details",
	})
	registerer.MustRegister(reservedNonce, resyncs, submitted, failed)

	collector := &WalletCollector{
		reservedNonce: reservedNonce,
		resyncs:       resyncs,
		submitted:     submitted,
		failed:        failed,
	}
	return collector
}

func (m WalletCollector) NonceReserved(nonce uint64) {
	m.reservedNonce.Set(float64(nonce))
}

func (m WalletCollector) NonceResynced() {
	m.resyncs.Inc()
}

func (m WalletCollector) TransactionSubmitted() {
	m.submitted.Inc()
}

func (m WalletCollector) TransactionFailed() {
	m.failed.Inc()
}
