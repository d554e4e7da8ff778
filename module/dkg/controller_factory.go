package dkg

import (
	"crypto/ecdsa"
	"crypto/rand"
	"fmt"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"

	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module"
)

// ControllerFactory is a factory object that creates new Controllers with the
// same underlying tunnel and transport to communicate with the other committee
// members.
type ControllerFactory struct {
	log       zerolog.Logger
	committee []module.DKGParticipant
	myIndex   oprf.PartyID
	signer    *ecdsa.PrivateKey
	transport module.DKGTransport
	tunnel    *BrokerTunnel
	config    ControllerConfig
}

var _ module.DKGControllerFactory = (*ControllerFactory)(nil)

// NewControllerFactory creates a new factory that generates Controllers with
// the specified committee, tunnel and transport.
// The committee must list party i at position i-1, and this node's entry must carry
// the address of the signing key.
func NewControllerFactory(
	log zerolog.Logger,
	committee []module.DKGParticipant,
	myIndex oprf.PartyID,
	signer *ecdsa.PrivateKey,
	transport module.DKGTransport,
	tunnel *BrokerTunnel,
	config ControllerConfig,
) (*ControllerFactory, error) {

	if len(committee) == 0 || len(committee) > int(^uint16(0)) {
		return nil, fmt.Errorf("invalid committee size %d", len(committee))
	}
	for i, participant := range committee {
		if participant.PartyID != oprf.PartyID(i+1) {
			return nil, fmt.Errorf("committee position %d holds party %d", i, participant.PartyID)
		}
	}
	if myIndex == 0 || int(myIndex) > len(committee) {
		return nil, fmt.Errorf("party id %d out of range [1, %d]", myIndex, len(committee))
	}
	if address := ethcrypto.PubkeyToAddress(signer.PublicKey); address != committee[myIndex-1].Address {
		return nil, fmt.Errorf("wallet address %s does not match committee entry %s of party %d",
			address.Hex(), committee[myIndex-1].Address.Hex(), myIndex)
	}
	if config.RoundTimeout <= 0 {
		config.RoundTimeout = DefaultRoundTimeout
	}

	return &ControllerFactory{
		log:       log,
		committee: committee,
		myIndex:   myIndex,
		signer:    signer,
		transport: transport,
		tunnel:    tunnel,
		config:    config,
	}, nil
}

// Create creates a new instance-specific Controller equipped with a broker which
// is capable of communicating with other nodes.
func (f *ControllerFactory) Create(request oprf.KeyGenRequest) (module.DKGController, error) {
	size := uint16(len(f.committee))
	if request.Threshold == 0 || request.Threshold > size {
		return nil, fmt.Errorf("invalid threshold %d for committee of %d", request.Threshold, size)
	}

	instanceID := CanonicalInstanceID(request.KeyID, request.Epoch)
	broker := NewBroker(
		f.log,
		instanceID,
		f.committee,
		f.myIndex,
		f.signer,
		f.transport,
		f.tunnel,
	)

	controller := NewController(
		f.log,
		instanceID,
		request,
		size,
		broker,
		rand.Reader,
		f.config,
	)

	return controller, nil
}

// CanonicalInstanceID returns the instance id of the key generation of a key id and
// epoch. All committee members derive the same id from the registry event.
func CanonicalInstanceID(keyID oprf.KeyID, epoch oprf.ShareEpoch) string {
	return fmt.Sprintf("oprf-keygen-%s-%d", keyID, epoch)
}
