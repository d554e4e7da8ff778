package dkg

import (
	"context"
	"fmt"
	"sync"

	"github.com/oprf-network/oprf-node/model/messages"
	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module"
)

// Hub connects the tunnels of co-located committee members. It backs local
// development setups and tests, where all nodes run in one process.
type Hub struct {
	mu      sync.RWMutex
	tunnels map[oprf.PartyID]*BrokerTunnel
}

// NewHub returns an empty hub.
func NewHub() *Hub {
	return &Hub{tunnels: make(map[oprf.PartyID]*BrokerTunnel)}
}

// Attach connects the tunnel of a party and returns the transport the party sends with.
func (h *Hub) Attach(party oprf.PartyID, tunnel *BrokerTunnel) module.DKGTransport {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tunnels[party] = tunnel
	return &hubTransport{hub: h}
}

// Detach disconnects a party, further messages to it fail.
func (h *Hub) Detach(party oprf.PartyID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.tunnels, party)
}

type hubTransport struct {
	hub *Hub
}

func (t *hubTransport) Send(ctx context.Context, dest oprf.PartyID, msg *messages.DKGMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	t.hub.mu.RLock()
	tunnel, ok := t.hub.tunnels[dest]
	t.hub.mu.RUnlock()
	if !ok {
		return fmt.Errorf("participant %d is not attached", dest)
	}
	tunnel.SendIn(*msg)
	return nil
}
