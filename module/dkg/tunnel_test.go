package dkg

import (
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oprf-network/oprf-node/model/messages"
)

func tunnelMessage(instanceID string, orig uint16) messages.DKGMessage {
	return messages.NewDKGMessage(instanceID, orig, 0, messages.DKGDeal, []byte{byte(orig)})
}

func TestBrokerTunnel_ReplaysBufferedMessages(t *testing.T) {
	tunnel := NewBrokerTunnel(zerolog.Nop())
	tunnel.SendIn(tunnelMessage("a", 1))
	tunnel.SendIn(tunnelMessage("a", 2))
	tunnel.SendIn(tunnelMessage("b", 3))

	ch := tunnel.Register("a")
	require.Len(t, ch, 2)
	assert.Equal(t, uint16(1), (<-ch).Orig)
	assert.Equal(t, uint16(2), (<-ch).Orig)

	tunnel.SendIn(tunnelMessage("a", 4))
	assert.Equal(t, uint16(4), (<-ch).Orig)

	// messages of other instances stay buffered
	other := tunnel.Register("b")
	require.Len(t, other, 1)
}

func TestBrokerTunnel_DropsAfterUnregister(t *testing.T) {
	tunnel := NewBrokerTunnel(zerolog.Nop())
	ch := tunnel.Register("a")
	tunnel.Unregister("a")
	tunnel.SendIn(tunnelMessage("a", 1))
	assert.Len(t, ch, 0)

	// re-registering resumes routing
	ch = tunnel.Register("a")
	assert.Len(t, ch, 0)
	tunnel.SendIn(tunnelMessage("a", 2))
	assert.Len(t, ch, 1)
}

func TestBrokerTunnel_BoundsPendingInstances(t *testing.T) {
	tunnel := NewBrokerTunnel(zerolog.Nop())
	for i := 0; i <= DefaultPendingInstances; i++ {
		tunnel.SendIn(tunnelMessage(fmt.Sprintf("instance-%d", i), 1))
	}
	// the oldest instance was evicted
	assert.Len(t, tunnel.Register("instance-0"), 0)
	assert.Len(t, tunnel.Register(fmt.Sprintf("instance-%d", DefaultPendingInstances)), 1)
}

func TestBrokerTunnel_BoundsPendingMessages(t *testing.T) {
	tunnel := NewBrokerTunnel(zerolog.Nop())
	for i := 0; i < DefaultPendingMessages+10; i++ {
		tunnel.SendIn(tunnelMessage("a", 1))
	}
	assert.Len(t, tunnel.Register("a"), DefaultPendingMessages)
}
