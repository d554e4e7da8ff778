package module

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/oprf-network/oprf-node/model/dkg"
	"github.com/oprf-network/oprf-node/model/messages"
	"github.com/oprf-network/oprf-node/model/oprf"
)

// DKGParticipant is a member of the key generation committee. Party ids are 1-based
// positions in the committee list.
type DKGParticipant struct {
	PartyID oprf.PartyID
	Address common.Address // wallet address, used to verify message signatures
	URL     string         // base url of the node's API
}

// DKGTransport delivers key generation messages to other committee members.
type DKGTransport interface {
	// Send delivers the message to the participant with the given party id. It returns
	// once the recipient accepted the message.
	Send(ctx context.Context, dest oprf.PartyID, msg *messages.DKGMessage) error
}

// DKGController controls the execution of one key generation instance for a
// (key id, epoch) pair. A new Controller must be instantiated for every instance.
type DKGController interface {

	// Run executes the protocol and blocks until it finished or aborted. On success it
	// returns this node's key material, which is not yet persisted: the caller commits
	// it and then calls End.
	// Error returns: *dkg.AbortError if the instance aborted.
	Run(ctx context.Context) (*oprf.KeyMaterial, error)

	// End records that the material returned by Run has been committed.
	End() error

	// GetState returns the current state of the instance.
	GetState() dkg.State

	// GetIndex returns the party id of this node in the committee.
	GetIndex() oprf.PartyID

	// Shutdown releases the resources of the instance regardless of its state.
	Shutdown()
}

// DKGControllerFactory is a factory to create instances of DKGController.
type DKGControllerFactory interface {

	// Create instantiates a new DKGController for the requested (key id, epoch).
	Create(request oprf.KeyGenRequest) (DKGController, error)
}

// DKGBroker signs and sends the messages of one key generation instance and forwards
// the authenticated inbound messages of that instance.
type DKGBroker interface {

	// GetIndex returns the party id of this node in the committee.
	GetIndex() oprf.PartyID

	// PrivateSend encrypts the payload to a single participant, signs it and sends it.
	PrivateSend(ctx context.Context, dest oprf.PartyID, msgType messages.DKGMessageType, data []byte) error

	// Broadcast signs the payload and sends it to every other participant.
	Broadcast(ctx context.Context, msgType messages.DKGMessageType, data []byte) error

	// GetMsgCh returns the channel of inbound messages whose origin signature and
	// instance id have been verified.
	GetMsgCh() <-chan messages.DKGMessage

	// Shutdown causes the broker to stop listening and forwarding messages.
	Shutdown()
}
