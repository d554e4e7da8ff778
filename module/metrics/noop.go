package metrics

import (
	"time"

	"github.com/oprf-network/oprf-node/module"
)

type NoopCollector struct{}

func NewNoopCollector() *NoopCollector {
	nc := &NoopCollector{}
	return nc
}

var _ module.CacheMetrics = (*NoopCollector)(nil)
var _ module.OPRFMetrics = (*NoopCollector)(nil)
var _ module.KeyGenMetrics = (*NoopCollector)(nil)
var _ module.WalletMetrics = (*NoopCollector)(nil)

func (nc *NoopCollector) CacheEntries(resource string, entries uint) {}
func (nc *NoopCollector) CacheHit(resource string)                   {}
func (nc *NoopCollector) CacheNotFound(resource string)              {}
func (nc *NoopCollector) CacheMiss(resource string)                  {}
func (nc *NoopCollector) PartialEvaluation(duration time.Duration)   {}
func (nc *NoopCollector) ProofShare(duration time.Duration)          {}
func (nc *NoopCollector) SessionRejected(code string)                {}
func (nc *NoopCollector) OpenSessions(sessions uint)                 {}
func (nc *NoopCollector) KeyEventsPolled(block uint64)               {}
func (nc *NoopCollector) KeyGenStarted()                             {}
func (nc *NoopCollector) KeyGenCommitted(duration time.Duration)     {}
func (nc *NoopCollector) KeyGenAborted()                             {}
func (nc *NoopCollector) PublicKeyAnnounced()                        {}
func (nc *NoopCollector) NonceReserved(nonce uint64)                 {}
func (nc *NoopCollector) NonceResynced()                             {}
func (nc *NoopCollector) TransactionSubmitted()                      {}
func (nc *NoopCollector) TransactionFailed()                         {}
