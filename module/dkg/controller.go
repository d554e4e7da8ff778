package dkg

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/zeebo/blake3"
	"golang.org/x/sync/errgroup"

	"github.com/oprf-network/oprf-node/crypto"
	"github.com/oprf-network/oprf-node/model/dkg"
	"github.com/oprf-network/oprf-node/model/messages"
	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module"
)

// DefaultRoundTimeout is the default time to wait for the messages of one round.
// The first round also absorbs the start-up skew between nodes.
const DefaultRoundTimeout = time.Minute

const transcriptContext = "OPRF-NODE-V1 keygen transcript"

// ControllerConfig defines configuration for the DKG Controller.
type ControllerConfig struct {
	// RoundTimeout is the time to wait for all participants' messages of a round.
	RoundTimeout time.Duration
}

func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{RoundTimeout: DefaultRoundTimeout}
}

var errRoundTimeout = errors.New("round timed out")

// Controller implements the DKGController interface. It runs a joint Feldman key
// generation among all committee members:
//
//   - round 1: every participant deals a random polynomial of degree t-1 and broadcasts
//     its Feldman commitments;
//   - round 2: once all deals arrived, every participant sends each other participant
//     its share, encrypted to the wallet key recovered from the recipient's deal;
//   - round 3: every participant broadcasts a verdict, acknowledging the transcript of
//     all commitments or complaining about the dealers whose shares did not verify;
//   - finalizing: shares, public key and public key shares are summed over all dealers.
//
// All participants must take part. A missing participant, a complaint, an inconsistent
// transcript or a timeout aborts the instance on every honest node.
type Controller struct {
	// The embedded state Manager is used to manage the controller's underlying
	// state.
	Manager

	log        zerolog.Logger
	instanceID string
	request    oprf.KeyGenRequest
	size       uint16
	broker     module.DKGBroker
	rng        io.Reader
	config     ControllerConfig

	poly       crypto.Polynomial
	deals      map[oprf.PartyID][]*crypto.Element
	shares     map[oprf.PartyID]*crypto.Scalar
	verdicts   map[oprf.PartyID]*messages.VerdictPayload
	complaints map[oprf.PartyID]string
	// first raw payload per (origin, type), to detect equivocating senders
	received map[receivedKey][]byte
}

type receivedKey struct {
	orig    oprf.PartyID
	msgType messages.DKGMessageType
}

var _ module.DKGController = (*Controller)(nil)

// NewController instantiates a new key generation controller.
func NewController(
	log zerolog.Logger,
	instanceID string,
	request oprf.KeyGenRequest,
	size uint16,
	broker module.DKGBroker,
	rng io.Reader,
	config ControllerConfig,
) *Controller {

	logger := log.With().
		Str("component", "dkg_controller").
		Str("dkg_instance_id", instanceID).
		Str("key_id", request.KeyID.String()).
		Uint64("epoch", uint64(request.Epoch)).
		Uint16("party", uint16(broker.GetIndex())).
		Logger()

	return &Controller{
		log:        logger,
		instanceID: instanceID,
		request:    request,
		size:       size,
		broker:     broker,
		rng:        rng,
		config:     config,
		deals:      make(map[oprf.PartyID][]*crypto.Element),
		shares:     make(map[oprf.PartyID]*crypto.Scalar),
		verdicts:   make(map[oprf.PartyID]*messages.VerdictPayload),
		complaints: make(map[oprf.PartyID]string),
		received:   make(map[receivedKey][]byte),
	}
}

/*******************************************************************************
Implement DKGController
*******************************************************************************/

// Run executes the state machine until the instance reached Finalizing or aborted.
func (c *Controller) Run(ctx context.Context) (*oprf.KeyMaterial, error) {
	defer c.wipe()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// round 1: deal
	if err := c.SetState(dkg.RoundExchange); err != nil {
		return nil, err
	}
	c.log.Info().Msg("starting key generation")
	if err := c.deal(ctx); err != nil {
		return nil, c.abort("could not broadcast deal", nil, err)
	}
	if err := c.collect(ctx, c.dealsComplete); err != nil {
		return nil, c.abort("did not receive all deals", c.missingDeals(), err)
	}

	// round 2: shares
	if err := c.SetState(dkg.RoundExchange); err != nil {
		return nil, err
	}
	if err := c.sendShares(ctx); err != nil {
		return nil, c.abort("could not send shares", nil, err)
	}
	if err := c.collect(ctx, c.sharesComplete); err != nil {
		return nil, c.abort("did not receive all shares", c.missingShares(), err)
	}
	c.verifyDeals()

	// round 3: verdicts
	if err := c.SetState(dkg.RoundExchange); err != nil {
		return nil, err
	}
	transcript := c.transcript()
	if err := c.sendVerdict(ctx, transcript); err != nil {
		return nil, c.abort("could not broadcast verdict", nil, err)
	}
	if len(c.complaints) > 0 {
		return nil, c.abort("received invalid deals", c.accused(), nil)
	}
	if err := c.collect(ctx, c.verdictsComplete); err != nil {
		return nil, c.abort("did not receive all verdicts", c.missingVerdicts(), err)
	}
	if err := c.checkVerdicts(transcript); err != nil {
		return nil, err
	}

	// finalizing
	if err := c.SetState(dkg.Finalizing); err != nil {
		return nil, err
	}
	material, err := c.finalize()
	if err != nil {
		return nil, c.abort("could not finalize key material", nil, err)
	}
	c.log.Info().Str("public_key", material.PublicKey.String()).Msg("key generation finished")
	return material, nil
}

// End records that the key material was committed.
func (c *Controller) End() error {
	return c.SetState(dkg.Committed)
}

// GetIndex returns the party id of this node.
func (c *Controller) GetIndex() oprf.PartyID {
	return c.broker.GetIndex()
}

// Shutdown stops the controller regardless of the current state.
func (c *Controller) Shutdown() {
	c.broker.Shutdown()
}

/*******************************************************************************
ROUNDS
*******************************************************************************/

func (c *Controller) deal(ctx context.Context) error {
	me := c.GetIndex()
	poly, err := crypto.RandomPolynomial(int(c.request.Threshold)-1, c.rng)
	if err != nil {
		return err
	}
	c.poly = poly
	commitments := poly.Commit()
	c.deals[me] = commitments
	c.shares[me] = poly.EvaluateAt(uint16(me))

	encoded := make([][]byte, len(commitments))
	for i, commitment := range commitments {
		encoded[i] = commitment.Encode()
	}
	data, err := messages.EncodePayload(&messages.DealPayload{Commitments: encoded})
	if err != nil {
		return fmt.Errorf("could not encode deal: %w", err)
	}
	return c.broker.Broadcast(ctx, messages.DKGDeal, data)
}

// sendShares sends every other participant its evaluation of our polynomial. The
// broker encrypts each share to its recipient.
func (c *Controller) sendShares(ctx context.Context) error {
	me := c.GetIndex()
	group, ctx := errgroup.WithContext(ctx)
	for p := oprf.PartyID(1); p <= oprf.PartyID(c.size); p++ {
		if p == me {
			continue
		}
		share := c.poly.EvaluateAt(uint16(p))
		data, err := messages.EncodePayload(&messages.SharePayload{Share: share.Encode()})
		share.Zeroize()
		if err != nil {
			return fmt.Errorf("could not encode share: %w", err)
		}
		dest := p
		group.Go(func() error {
			defer wipeBytes(data)
			return c.broker.PrivateSend(ctx, dest, messages.DKGShare, data)
		})
	}
	return group.Wait()
}

func (c *Controller) sendVerdict(ctx context.Context, transcript []byte) error {
	verdict := &messages.VerdictPayload{
		Ack:        len(c.complaints) == 0,
		Transcript: transcript,
	}
	for _, p := range c.accused() {
		verdict.Complaint = append(verdict.Complaint, uint16(p))
		verdict.Reason += fmt.Sprintf("participant %d: %s; ", p, c.complaints[p])
	}
	data, err := messages.EncodePayload(verdict)
	if err != nil {
		return fmt.Errorf("could not encode verdict: %w", err)
	}
	return c.broker.Broadcast(ctx, messages.DKGVerdict, data)
}

// collect processes inbound messages until complete returns true.
func (c *Controller) collect(ctx context.Context, complete func() bool) error {
	timeout := time.NewTimer(c.config.RoundTimeout)
	defer timeout.Stop()

	msgCh := c.broker.GetMsgCh()
	for !complete() {
		select {
		case msg := <-msgCh:
			c.handle(msg)
		case <-timeout.C:
			return errRoundTimeout
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// handle records an authenticated message. Messages of later rounds are kept until
// their round is processed.
func (c *Controller) handle(msg messages.DKGMessage) {
	orig := oprf.PartyID(msg.Orig)
	key := receivedKey{orig: orig, msgType: msg.Type}
	if previous, ok := c.received[key]; ok {
		if !bytes.Equal(previous, msg.Data) {
			c.complain(orig, fmt.Sprintf("sent conflicting %s messages", msg.Type))
		}
		return
	}
	c.received[key] = msg.Data

	log := c.log.With().Uint16("orig", msg.Orig).Str("type", msg.Type.String()).Logger()
	switch msg.Type {
	case messages.DKGDeal:
		var payload messages.DealPayload
		if err := messages.DecodePayload(msg.Data, &payload); err != nil {
			c.complain(orig, "malformed deal")
			return
		}
		if len(payload.Commitments) != int(c.request.Threshold) {
			c.complain(orig, fmt.Sprintf("deal has %d commitments, expected %d", len(payload.Commitments), c.request.Threshold))
			return
		}
		commitments := make([]*crypto.Element, len(payload.Commitments))
		for i, b := range payload.Commitments {
			commitment, err := crypto.DecodeElement(b)
			if err != nil {
				c.complain(orig, fmt.Sprintf("invalid commitment %d", i))
				return
			}
			commitments[i] = commitment
		}
		c.deals[orig] = commitments
	case messages.DKGShare:
		var payload messages.SharePayload
		if err := messages.DecodePayload(msg.Data, &payload); err != nil {
			c.complain(orig, "malformed share")
			return
		}
		share, err := crypto.DecodeScalar(payload.Share)
		wipeBytes(payload.Share)
		if err != nil {
			c.complain(orig, "invalid share encoding")
			return
		}
		c.shares[orig] = share
	case messages.DKGVerdict:
		var payload messages.VerdictPayload
		if err := messages.DecodePayload(msg.Data, &payload); err != nil {
			c.complain(orig, "malformed verdict")
			return
		}
		c.verdicts[orig] = &payload
	default:
		log.Warn().Msg("ignoring message of unknown type")
		return
	}
	log.Debug().Msg("received dkg message")
}

func (c *Controller) complain(orig oprf.PartyID, reason string) {
	c.log.Warn().Uint16("accused", uint16(orig)).Str("reason", reason).Msg("flagging misbehaving participant")
	if _, ok := c.complaints[orig]; !ok {
		c.complaints[orig] = reason
	}
}

func (c *Controller) dealsComplete() bool {
	return len(c.missingDeals()) == 0
}

func (c *Controller) missingDeals() []oprf.PartyID {
	var missing []oprf.PartyID
	for p := oprf.PartyID(1); p <= oprf.PartyID(c.size); p++ {
		if p == c.GetIndex() {
			continue
		}
		if _, ok := c.received[receivedKey{orig: p, msgType: messages.DKGDeal}]; !ok {
			missing = append(missing, p)
		}
	}
	return missing
}

func (c *Controller) sharesComplete() bool {
	return len(c.missingShares()) == 0
}

func (c *Controller) missingShares() []oprf.PartyID {
	var missing []oprf.PartyID
	for p := oprf.PartyID(1); p <= oprf.PartyID(c.size); p++ {
		if p == c.GetIndex() {
			continue
		}
		if _, ok := c.received[receivedKey{orig: p, msgType: messages.DKGShare}]; !ok {
			missing = append(missing, p)
		}
	}
	return missing
}

func (c *Controller) verdictsComplete() bool {
	return len(c.missingVerdicts()) == 0
}

func (c *Controller) missingVerdicts() []oprf.PartyID {
	var missing []oprf.PartyID
	for p := oprf.PartyID(1); p <= oprf.PartyID(c.size); p++ {
		if p == c.GetIndex() {
			continue
		}
		if _, ok := c.verdicts[p]; !ok {
			missing = append(missing, p)
		}
	}
	return missing
}

// verifyDeals checks every received share against its dealer's commitments.
func (c *Controller) verifyDeals() {
	me := c.GetIndex()
	for p := oprf.PartyID(1); p <= oprf.PartyID(c.size); p++ {
		if p == me {
			continue
		}
		if _, accused := c.complaints[p]; accused {
			continue
		}
		if !crypto.VerifyShare(c.deals[p], uint16(me), c.shares[p]) {
			c.complain(p, "share does not match commitments")
		}
	}
}

// transcript hashes the commitments of all dealers in party order. Honest participants
// that saw the same broadcasts compute the same transcript.
func (c *Controller) transcript() []byte {
	h := blake3.NewDeriveKey(transcriptContext)
	_, _ = h.Write([]byte(c.instanceID))
	var buf [2]byte
	for p := oprf.PartyID(1); p <= oprf.PartyID(c.size); p++ {
		binary.BigEndian.PutUint16(buf[:], uint16(p))
		_, _ = h.Write(buf[:])
		for _, commitment := range c.deals[p] {
			_, _ = h.Write(commitment.Encode())
		}
	}
	return h.Sum(nil)
}

func (c *Controller) checkVerdicts(transcript []byte) error {
	for p := oprf.PartyID(1); p <= oprf.PartyID(c.size); p++ {
		verdict, ok := c.verdicts[p]
		if !ok {
			continue
		}
		if !verdict.Ack {
			accused := make([]oprf.PartyID, len(verdict.Complaint))
			for i, a := range verdict.Complaint {
				accused[i] = oprf.PartyID(a)
			}
			return c.abort(fmt.Sprintf("participant %d complained: %s", p, verdict.Reason), accused, nil)
		}
		if !bytes.Equal(verdict.Transcript, transcript) {
			return c.abort(fmt.Sprintf("participant %d saw a different transcript", p), nil, nil)
		}
	}
	if len(c.complaints) > 0 {
		return c.abort("participants sent conflicting messages", c.accused(), nil)
	}
	return nil
}

func (c *Controller) finalize() (*oprf.KeyMaterial, error) {
	me := c.GetIndex()
	share := crypto.NewScalar()
	publicKey := crypto.Identity()
	publicKeyShares := make([]*crypto.Element, c.size)
	for j := range publicKeyShares {
		publicKeyShares[j] = crypto.Identity()
	}

	for p := oprf.PartyID(1); p <= oprf.PartyID(c.size); p++ {
		share = share.Add(c.shares[p])
		publicKey = publicKey.Add(c.deals[p][0])
		for j := range publicKeyShares {
			publicKeyShares[j] = publicKeyShares[j].Add(crypto.EvaluateCommitments(c.deals[p], uint16(j+1)))
		}
	}

	material := &oprf.KeyMaterial{
		KeyID:           c.request.KeyID,
		Epoch:           c.request.Epoch,
		PartyID:         me,
		Threshold:       c.request.Threshold,
		Participants:    c.size,
		Share:           share,
		PublicKey:       publicKey,
		PublicKeyShares: publicKeyShares,
	}
	if err := material.Validate(); err != nil {
		material.Zeroize()
		return nil, err
	}
	return material, nil
}

// abort moves the instance to Aborted and returns the corresponding error.
func (c *Controller) abort(reason string, culprits []oprf.PartyID, err error) error {
	state, round := c.GetState(), c.GetRound()
	if setErr := c.SetState(dkg.Aborted); setErr != nil {
		c.log.Error().Err(setErr).Msg("could not record abort")
	}
	abortErr := &AbortError{
		InstanceID: c.instanceID,
		State:      state,
		Round:      round,
		Reason:     reason,
		Culprits:   culprits,
		Err:        err,
	}
	c.log.Warn().Err(abortErr).Msg("key generation aborted")
	return abortErr
}

func (c *Controller) accused() []oprf.PartyID {
	accused := make([]oprf.PartyID, 0, len(c.complaints))
	for p := range c.complaints {
		accused = append(accused, p)
	}
	sort.Slice(accused, func(i, j int) bool { return accused[i] < accused[j] })
	return accused
}

func (c *Controller) wipe() {
	if c.poly != nil {
		c.poly.Zeroize()
	}
	for _, share := range c.shares {
		share.Zeroize()
	}
	for key, data := range c.received {
		if key.msgType == messages.DKGShare {
			wipeBytes(data)
		}
	}
}

func wipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
