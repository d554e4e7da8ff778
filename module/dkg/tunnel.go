package dkg

import (
	"sync"

	"github.com/rs/zerolog"

	"github.com/oprf-network/oprf-node/model/messages"
)

const (
	// DefaultPendingInstances bounds the number of instances buffered before they start.
	DefaultPendingInstances = 64
	// DefaultPendingMessages bounds the number of messages buffered per instance.
	DefaultPendingMessages = 256
)

// BrokerTunnel routes inbound key generation messages from the transport to the
// broker of their instance. Nodes do not start an instance at exactly the same time,
// so messages for instances that are not registered yet are buffered and replayed
// once the instance registers. The same BrokerTunnel is reused across instances.
type BrokerTunnel struct {
	log     zerolog.Logger
	mu      sync.Mutex
	routes  map[string]chan messages.DKGMessage
	pending map[string][]messages.DKGMessage
	order   []string // pending instances, oldest first
	// finished holds instances that were unregistered, their late messages are dropped
	finished map[string]struct{}
}

// NewBrokerTunnel instantiates a new BrokerTunnel.
func NewBrokerTunnel(log zerolog.Logger) *BrokerTunnel {
	return &BrokerTunnel{
		log:      log.With().Str("component", "dkg_tunnel").Logger(),
		routes:   make(map[string]chan messages.DKGMessage),
		pending:  make(map[string][]messages.DKGMessage),
		finished: make(map[string]struct{}),
	}
}

// Register creates the inbound channel of an instance and replays the messages that
// arrived before registration.
func (t *BrokerTunnel) Register(instanceID string) <-chan messages.DKGMessage {
	t.mu.Lock()
	defer t.mu.Unlock()

	buffered := t.pending[instanceID]
	delete(t.pending, instanceID)
	t.removeFromOrder(instanceID)
	delete(t.finished, instanceID)

	ch := make(chan messages.DKGMessage, len(buffered)+DefaultPendingMessages)
	for _, msg := range buffered {
		ch <- msg
	}
	t.routes[instanceID] = ch
	return ch
}

// Unregister stops routing messages to the instance.
func (t *BrokerTunnel) Unregister(instanceID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.routes, instanceID)
	t.finished[instanceID] = struct{}{}
}

// SendIn routes an inbound message to its instance. It never blocks: messages for a
// congested or unknown instance beyond the buffer bounds are dropped, which the
// protocol observes as a missing participant.
func (t *BrokerTunnel) SendIn(msg messages.DKGMessage) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if ch, ok := t.routes[msg.DKGInstanceID]; ok {
		select {
		case ch <- msg:
		default:
			t.log.Warn().Str("dkg_instance_id", msg.DKGInstanceID).Uint16("orig", msg.Orig).
				Msg("dropping message for congested instance")
		}
		return
	}
	if _, ok := t.finished[msg.DKGInstanceID]; ok {
		t.log.Debug().Str("dkg_instance_id", msg.DKGInstanceID).Msg("dropping message for finished instance")
		return
	}

	buffered, known := t.pending[msg.DKGInstanceID]
	if !known {
		if len(t.order) >= DefaultPendingInstances {
			oldest := t.order[0]
			t.order = t.order[1:]
			delete(t.pending, oldest)
			t.log.Warn().Str("dkg_instance_id", oldest).Msg("evicting buffered messages of instance that never started")
		}
		t.order = append(t.order, msg.DKGInstanceID)
	}
	if len(buffered) >= DefaultPendingMessages {
		t.log.Warn().Str("dkg_instance_id", msg.DKGInstanceID).Msg("dropping message, buffer of pending instance is full")
		return
	}
	t.pending[msg.DKGInstanceID] = append(buffered, msg)
}

func (t *BrokerTunnel) removeFromOrder(instanceID string) {
	for i, id := range t.order {
		if id == instanceID {
			t.order = append(t.order[:i], t.order[i+1:]...)
			return
		}
	}
}
