package dkg

import (
	"context"
	"crypto/ecdsa"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/crypto/ecies"
	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/oprf-network/oprf-node/model/messages"
	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module"
)

// retryMax is the maximum number of times the broker will attempt to deliver a message
const retryMax = 8

// retryBaseDelay is the initial delay between delivery attempts
const retryBaseDelay = 200 * time.Millisecond

// retryMaxDelay caps the delay between delivery attempts
const retryMaxDelay = 5 * time.Second

// errUnknownRecipient is returned by PrivateSend before the broker saw a signed message
// of the recipient.
var errUnknownRecipient = errors.New("public key of recipient is unknown")

// Broker is an implementation of the DKGBroker interface. Outbound messages are
// signed with the node's wallet key and delivered through the transport, inbound
// messages arrive through the tunnel and are only forwarded if their signature
// matches the wallet address of the claimed origin.
//
// Private payloads are encrypted with ECIES to the wallet key of the recipient. That
// key is recovered from the signature of the first authenticated message the recipient
// sent in this instance, so a participant can only be written to privately after one of
// its broadcasts arrived.
type Broker struct {
	log        zerolog.Logger
	instanceID string                  // unique identifier of the current instance (prevents replay across instances)
	committee  []module.DKGParticipant // DKG members, position i holds party i+1
	myIndex    oprf.PartyID            // party id of this node
	signer     *ecdsa.PrivateKey       // wallet key used to sign outbound messages
	transport  module.DKGTransport     // delivers outbound messages
	tunnel     *BrokerTunnel           // routes inbound messages to this broker
	inbound    <-chan messages.DKGMessage
	keysMu     sync.RWMutex
	// wallet keys recovered from verified messages
	keys       map[oprf.PartyID]*ecdsa.PublicKey
	msgCh      chan messages.DKGMessage // channel to forward verified messages to the controller
	shutdownCh chan struct{}
	once       sync.Once
}

var _ module.DKGBroker = (*Broker)(nil)

// NewBroker instantiates a new instance-specific broker and registers it with the
// tunnel.
func NewBroker(
	log zerolog.Logger,
	instanceID string,
	committee []module.DKGParticipant,
	myIndex oprf.PartyID,
	signer *ecdsa.PrivateKey,
	transport module.DKGTransport,
	tunnel *BrokerTunnel,
) *Broker {

	b := &Broker{
		log:        log.With().Str("component", "dkg_broker").Str("dkg_instance_id", instanceID).Logger(),
		instanceID: instanceID,
		committee:  committee,
		myIndex:    myIndex,
		signer:     signer,
		transport:  transport,
		tunnel:     tunnel,
		inbound:    tunnel.Register(instanceID),
		keys:       make(map[oprf.PartyID]*ecdsa.PublicKey, len(committee)),
		msgCh:      make(chan messages.DKGMessage, len(committee)*4),
		shutdownCh: make(chan struct{}),
	}

	go b.listen()

	return b
}

/*~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~
Implement DKGBroker
~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~*/

// GetIndex returns the party id of this node.
func (b *Broker) GetIndex() oprf.PartyID {
	return b.myIndex
}

// PrivateSend encrypts the payload to the wallet key of a single participant, signs
// the ciphertext and sends it.
func (b *Broker) PrivateSend(ctx context.Context, dest oprf.PartyID, msgType messages.DKGMessageType, data []byte) error {
	if dest == 0 || int(dest) > len(b.committee) || dest == b.myIndex {
		return fmt.Errorf("invalid destination %d", dest)
	}
	b.keysMu.RLock()
	pub, ok := b.keys[dest]
	b.keysMu.RUnlock()
	if !ok {
		return fmt.Errorf("could not send %s message to participant %d: %w", msgType, dest, errUnknownRecipient)
	}
	ciphertext, err := ecies.Encrypt(rand.Reader, ecies.ImportECDSAPublic(pub), data, nil, []byte(b.instanceID))
	if err != nil {
		return fmt.Errorf("could not encrypt %s message to participant %d: %w", msgType, dest, err)
	}
	msg, err := b.prepareMessage(dest, msgType, ciphertext)
	if err != nil {
		return err
	}
	return b.send(ctx, dest, msg)
}

// Broadcast signs the payload once and sends it to every other participant
// concurrently. It fails if any participant could not be reached.
func (b *Broker) Broadcast(ctx context.Context, msgType messages.DKGMessageType, data []byte) error {
	msg, err := b.prepareMessage(0, msgType, data)
	if err != nil {
		return err
	}
	b.log.Debug().Str("type", msgType.String()).Msg("broadcasting dkg message")

	group, ctx := errgroup.WithContext(ctx)
	for _, participant := range b.committee {
		dest := participant.PartyID
		if dest == b.myIndex {
			continue
		}
		group.Go(func() error {
			return b.send(ctx, dest, msg)
		})
	}
	return group.Wait()
}

// GetMsgCh returns the channel through which the controller receives verified
// inbound messages.
func (b *Broker) GetMsgCh() <-chan messages.DKGMessage {
	return b.msgCh
}

// Shutdown stops the goroutine that listens to incoming messages and unregisters
// the instance from the tunnel.
func (b *Broker) Shutdown() {
	b.once.Do(func() {
		b.tunnel.Unregister(b.instanceID)
		close(b.shutdownCh)
	})
}

/*~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~~*/

func (b *Broker) send(ctx context.Context, dest oprf.PartyID, msg *messages.DKGMessage) error {
	backoff := retry.NewExponential(retryBaseDelay)
	backoff = retry.WithCappedDuration(retryMaxDelay, backoff)
	backoff = retry.WithMaxRetries(retryMax, backoff)

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := b.transport.Send(ctx, dest, msg)
		if err != nil {
			b.log.Warn().Err(err).Uint16("dest", uint16(dest)).Msg("error sending dkg message, retrying")
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("could not send %s message to participant %d: %w", msg.Type, dest, err)
	}
	return nil
}

// listen is a blocking call that processes incoming messages from the tunnel.
func (b *Broker) listen() {
	for {
		select {
		case msg := <-b.inbound:
			b.onMessage(msg)
		case <-b.shutdownCh:
			return
		}
	}
}

// onMessage verifies the integrity of an incoming message, decrypts private payloads
// and forwards it to the controller. A private payload that does not decrypt is
// forwarded empty, the signature already binds it to its origin.
func (b *Broker) onMessage(msg messages.DKGMessage) {
	err := b.verifyMessage(&msg)
	if err != nil {
		b.log.Warn().Err(err).Uint16("orig", msg.Orig).Msg("dropping invalid dkg message")
		return
	}
	if msg.Dest != 0 {
		plaintext, err := ecies.ImportECDSA(b.signer).Decrypt(msg.Data, nil, []byte(b.instanceID))
		if err != nil {
			b.log.Warn().Err(err).Uint16("orig", msg.Orig).Msg("could not decrypt private dkg message")
			plaintext = nil
		}
		msg.Data = plaintext
	}
	select {
	case b.msgCh <- msg:
	case <-b.shutdownCh:
	}
}

// prepareMessage creates a DKGMessage signed with the node's wallet key.
func (b *Broker) prepareMessage(dest oprf.PartyID, msgType messages.DKGMessageType, data []byte) (*messages.DKGMessage, error) {
	msg := messages.NewDKGMessage(b.instanceID, uint16(b.myIndex), uint16(dest), msgType, data)
	payload, err := msg.SigningPayload()
	if err != nil {
		return nil, fmt.Errorf("could not encode signing payload: %w", err)
	}
	msg.Signature, err = ethcrypto.Sign(ethcrypto.Keccak256(payload), b.signer)
	if err != nil {
		return nil, fmt.Errorf("could not sign dkg message: %w", err)
	}
	return &msg, nil
}

// verifyMessage checks the instance, origin and destination of a message, as well as
// the signature against the wallet address of the sender.
func (b *Broker) verifyMessage(msg *messages.DKGMessage) error {
	if msg.DKGInstanceID != b.instanceID {
		return fmt.Errorf("wrong dkg instance: got %s, want %s", msg.DKGInstanceID, b.instanceID)
	}
	if msg.Orig == 0 || int(msg.Orig) > len(b.committee) || oprf.PartyID(msg.Orig) == b.myIndex {
		return fmt.Errorf("origin out of range: %d", msg.Orig)
	}
	if msg.Dest != 0 && oprf.PartyID(msg.Dest) != b.myIndex {
		return fmt.Errorf("message addressed to participant %d", msg.Dest)
	}
	payload, err := msg.SigningPayload()
	if err != nil {
		return fmt.Errorf("could not encode signing payload: %w", err)
	}
	pub, err := ethcrypto.SigToPub(ethcrypto.Keccak256(payload), msg.Signature)
	if err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}
	origin := b.committee[msg.Orig-1]
	if ethcrypto.PubkeyToAddress(*pub) != origin.Address {
		return fmt.Errorf("signature does not match wallet address %s of participant %d", origin.Address.Hex(), msg.Orig)
	}
	b.keysMu.Lock()
	if _, ok := b.keys[origin.PartyID]; !ok {
		b.keys[origin.PartyID] = pub
	}
	b.keysMu.Unlock()
	return nil
}
