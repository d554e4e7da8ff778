package toprf

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/oprf-network/oprf-node/crypto"
	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module"
)

// Request describes one distributed evaluation.
type Request struct {
	// Services lists the node addresses. The node at position i holds the share of
	// party i+1.
	Services  []string
	Module    string
	Threshold int
	KeyID     oprf.KeyID
	Epoch     oprf.ShareEpoch
	Query     *crypto.Scalar
	Auth      json.RawMessage
	// ExpectedPublicKey pins the public key of the share set. Responses for any other
	// key are dropped. If nil, the key is taken from the responses.
	ExpectedPublicKey *crypto.Element
}

// DistributedOPRF evaluates the query under the threshold-shared key (KeyID, Epoch)
// held by services. It blinds the query, sends it to all services concurrently,
// combines the first threshold valid responses and verifies the combined DLEQ proof
// before unblinding. Nodes that fail the challenge round are excluded and the
// evaluation is retried with fresh sessions while threshold other nodes remain. The
// blinding factor is wiped on every exit path.
//
// Expected errors during normal operations:
//   - InvalidInputError if the arguments are inconsistent
//   - ErrThresholdNotMet if fewer than threshold nodes returned a valid response
//   - ErrProofVerification if the combined proof does not verify
func DistributedOPRF(
	ctx context.Context,
	log zerolog.Logger,
	services []string,
	moduleName string,
	threshold int,
	keyID oprf.KeyID,
	epoch oprf.ShareEpoch,
	query *crypto.Scalar,
	auth json.RawMessage,
	rng io.Reader,
	connector module.Connector,
) (*oprf.VerifiableOutput, error) {
	return Evaluate(ctx, log, &Request{
		Services:  services,
		Module:    moduleName,
		Threshold: threshold,
		KeyID:     keyID,
		Epoch:     epoch,
		Query:     query,
		Auth:      auth,
	}, rng, connector)
}

// Evaluate runs a distributed evaluation described by request. See DistributedOPRF.
func Evaluate(ctx context.Context, log zerolog.Logger, request *Request, rng io.Reader, connector module.Connector) (*oprf.VerifiableOutput, error) {
	if err := validate(request); err != nil {
		return nil, err
	}

	blinding, err := crypto.NewBlindingFactor(rng)
	if err != nil {
		return nil, fmt.Errorf("could not sample blinding factor: %w", err)
	}
	defer blinding.Zeroize()

	blinded, err := blinding.Blind(request.Query)
	if err != nil {
		return nil, fmt.Errorf("could not blind query: %w", err)
	}

	excluded := make(map[oprf.PartyID]struct{})
	var challengeFailures *multierror.Error
	for {
		requestID := uuid.New()
		attemptLog := log.With().
			Str("request_id", requestID.String()).
			Str("key_id", request.KeyID.String()).
			Uint64("epoch", uint64(request.Epoch)).
			Logger()
		e := &dispatcher{
			log:       attemptLog,
			request:   request,
			requestID: requestID,
			blinded:   blinded,
			connector: connector,
			excluded:  excluded,
		}
		selected, err := e.collect(ctx)
		if err != nil {
			var notMet *thresholdNotMetError
			if challengeFailures != nil && errors.As(err, &notMet) {
				notMet.failures = multierror.Append(challengeFailures, notMet.failures).ErrorOrNil()
			}
			return nil, err
		}

		combined, proof, failed, err := e.prove(ctx, selected)
		closeAll(selected)
		if len(failed) > 0 {
			challengeFailures = multierror.Append(challengeFailures, err)
			for _, party := range failed {
				excluded[party] = struct{}{}
			}
			e.log.Warn().Err(err).Uints16("failed_parties", oprf.PartyIDs(failed)).Msg("challenge round failed, retrying without the failed nodes")
			continue
		}
		if err != nil {
			return nil, err
		}

		unblinded, err := blinding.Unblind(combined)
		if err != nil {
			return nil, fmt.Errorf("could not unblind evaluation: %w", err)
		}
		return &oprf.VerifiableOutput{
			Output:          crypto.Finalize(request.Query, unblinded),
			Proof:           proof,
			BlindedResponse: combined,
			BlindedRequest:  blinded,
			PublicKey:       selected[0].publicKey,
		}, nil
	}
}

func validate(request *Request) error {
	n := len(request.Services)
	if n == 0 {
		return invalidInputErrorf("no services")
	}
	if n > math.MaxUint16 {
		return invalidInputErrorf("too many services: %d", n)
	}
	if request.Threshold < 1 || request.Threshold > n {
		return invalidInputErrorf("threshold %d out of range [1, %d]", request.Threshold, n)
	}
	if request.Query == nil {
		return invalidInputErrorf("missing query")
	}
	return nil
}

// partial is a validated first round response of one node.
type partial struct {
	party       oprf.PartyID
	service     string
	session     module.OprfSession
	response    *oprf.PartialResponse
	evaluation  *crypto.Element
	commitmentG *crypto.Element
	commitmentB *crypto.Element
	publicKey   *crypto.Element
}

type result struct {
	partial *partial
	err     error
}

type dispatcher struct {
	log       zerolog.Logger
	request   *Request
	requestID uuid.UUID
	blinded   *crypto.Element
	connector module.Connector
	// parties that failed the challenge round of an earlier attempt
	excluded map[oprf.PartyID]struct{}
}

// collect sends the blinded query to every service that is not excluded and returns
// the first threshold valid responses that agree on the public key, ordered by arrival.
// Outstanding requests are cancelled once the threshold is met.
func (e *dispatcher) collect(ctx context.Context) ([]*partial, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan result, len(e.request.Services))
	n := 0
	for i, service := range e.request.Services {
		party := oprf.PartyID(i + 1)
		if _, ok := e.excluded[party]; ok {
			continue
		}
		n++
		go func(party oprf.PartyID, service string) {
			p, err := e.init(ctx, party, service)
			results <- result{partial: p, err: err}
		}(party, service)
	}

	var failures *multierror.Error
	// valid responses grouped by the public key they claim
	groups := make(map[string][]*partial)
	var selected []*partial
	var selectedKey string
	received := 0
	for received < n && selected == nil {
		var res result
		select {
		case res = <-results:
		case <-ctx.Done():
			for _, group := range groups {
				closeAll(group)
			}
			go drain(results, n-received)
			return nil, ctx.Err()
		}
		received++
		if res.err != nil {
			failures = multierror.Append(failures, res.err)
			continue
		}
		key := string(res.partial.response.PublicKey)
		groups[key] = append(groups[key], res.partial)
		if len(groups[key]) == e.request.Threshold {
			selected, selectedKey = groups[key], key
		}
	}

	// release the sessions that are not part of the combination
	for key, group := range groups {
		if selected == nil || key != selectedKey {
			closeAll(group)
		}
	}
	go drain(results, n-received)

	if selected == nil {
		valid := 0
		for _, group := range groups {
			if len(group) > valid {
				valid = len(group)
			}
		}
		if len(groups) > 1 {
			failures = multierror.Append(failures, fmt.Errorf("nodes disagree on the public key (%d distinct keys)", len(groups)))
		}
		err := &thresholdNotMetError{threshold: e.request.Threshold, valid: valid, failures: failures.ErrorOrNil()}
		e.log.Warn().Err(err).Msg("distributed evaluation failed")
		return nil, err
	}
	return selected, nil
}

// init opens a session to one service and validates its partial response.
func (e *dispatcher) init(ctx context.Context, party oprf.PartyID, service string) (*partial, error) {
	session, err := e.connector.Connect(ctx, service, e.request.Module)
	if err != nil {
		return nil, fmt.Errorf("could not connect to %s: %w", service, err)
	}
	p, err := e.initSession(ctx, party, service, session)
	if err != nil {
		_ = session.Close()
		return nil, err
	}
	return p, nil
}

func (e *dispatcher) initSession(ctx context.Context, party oprf.PartyID, service string, session module.OprfSession) (*partial, error) {
	response, err := session.Init(ctx, &oprf.OprfRequest{
		RequestID:    e.requestID,
		Module:       e.request.Module,
		KeyID:        e.request.KeyID,
		Epoch:        e.request.Epoch,
		BlindedQuery: e.blinded.Encode(),
		Auth:         e.request.Auth,
	})
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", service, err)
	}
	if response.RequestID != e.requestID {
		return nil, fmt.Errorf("node %s answered request %s", service, response.RequestID)
	}
	// the share index of a node is its position in the service list, a node claiming
	// another index is dropped
	if response.PartyID != party {
		return nil, fmt.Errorf("node %s claims party %d, expected %d", service, response.PartyID, party)
	}

	p := &partial{
		party:    party,
		service:  service,
		session:  session,
		response: response,
	}
	if p.evaluation, err = crypto.DecodeNonIdentityElement(response.Evaluation); err != nil {
		return nil, fmt.Errorf("node %s: invalid evaluation: %w", service, err)
	}
	if p.commitmentG, err = crypto.DecodeNonIdentityElement(response.CommitmentG); err != nil {
		return nil, fmt.Errorf("node %s: invalid commitment: %w", service, err)
	}
	if p.commitmentB, err = crypto.DecodeNonIdentityElement(response.CommitmentB); err != nil {
		return nil, fmt.Errorf("node %s: invalid commitment: %w", service, err)
	}
	if p.publicKey, err = crypto.DecodeNonIdentityElement(response.PublicKey); err != nil {
		return nil, fmt.Errorf("node %s: invalid public key: %w", service, err)
	}
	if expected := e.request.ExpectedPublicKey; expected != nil && !expected.Equal(p.publicKey) {
		return nil, fmt.Errorf("node %s evaluates under unexpected public key %s", service, p.publicKey)
	}
	return p, nil
}

// prove runs the challenge round with the selected nodes and returns the combined
// evaluation together with its verified proof. If nodes fail to answer the challenge
// their parties are returned with the error. Every session answers at most one
// challenge, so a retry needs fresh sessions.
func (e *dispatcher) prove(ctx context.Context, selected []*partial) (*crypto.Element, *crypto.DLEQProof, []oprf.PartyID, error) {
	parties := make([]oprf.PartyID, len(selected))
	evaluations := make([]*crypto.Element, len(selected))
	commitmentsG := make([]*crypto.Element, len(selected))
	commitmentsB := make([]*crypto.Element, len(selected))
	contributions := make([]oprf.Contribution, len(selected))
	for i, p := range selected {
		parties[i] = p.party
		evaluations[i] = p.evaluation
		commitmentsG[i] = p.commitmentG
		commitmentsB[i] = p.commitmentB
		contributions[i] = p.response.Contribution()
	}

	coefficients, err := crypto.LagrangeCoefficients(oprf.PartyIDs(parties))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("could not compute lagrange coefficients: %w", err)
	}
	combined, err := crypto.CombineElements(evaluations, coefficients)
	if err != nil {
		return nil, nil, nil, err
	}
	commitmentG, err := crypto.CombineElements(commitmentsG, coefficients)
	if err != nil {
		return nil, nil, nil, err
	}
	commitmentB, err := crypto.CombineElements(commitmentsB, coefficients)
	if err != nil {
		return nil, nil, nil, err
	}
	publicKey := selected[0].publicKey
	challenge := crypto.DLEQChallenge(publicKey, e.blinded, combined, commitmentG, commitmentB)

	// no shared context: one failing node must not cancel the others, so that every
	// failure is attributed to its node
	proofShares := make([]*crypto.Scalar, len(selected))
	errs := make([]error, len(selected))
	var group errgroup.Group
	for i, p := range selected {
		i, p := i, p
		group.Go(func() error {
			proofShares[i], errs[i] = e.challenge(ctx, p, contributions)
			return nil
		})
	}
	_ = group.Wait()

	var failed []oprf.PartyID
	var failures *multierror.Error
	for i, err := range errs {
		if err != nil {
			failed = append(failed, selected[i].party)
			failures = multierror.Append(failures, err)
		}
	}
	if failures != nil {
		if ctx.Err() != nil {
			return nil, nil, nil, ctx.Err()
		}
		return nil, nil, failed, fmt.Errorf("challenge round failed: %w", failures)
	}

	proof, err := crypto.CombineDLEQProof(challenge, proofShares, coefficients)
	if err != nil {
		return nil, nil, nil, err
	}
	if !proof.Verify(publicKey, e.blinded, combined) {
		e.log.Error().
			Uints16("parties", oprf.PartyIDs(parties)).
			Strs("services", serviceNames(selected)).
			Str("public_key", publicKey.String()).
			Msg("combined dlog proof does not verify, discarding output")
		return nil, nil, nil, ErrProofVerification
	}
	return combined, proof, nil, nil
}

func (e *dispatcher) challenge(ctx context.Context, p *partial, contributions []oprf.Contribution) (*crypto.Scalar, error) {
	response, err := p.session.Challenge(ctx, &oprf.ChallengeRequest{
		RequestID:     e.requestID,
		Contributions: contributions,
	})
	if err != nil {
		return nil, fmt.Errorf("node %s: %w", p.service, err)
	}
	if response.RequestID != e.requestID || response.PartyID != p.party {
		return nil, fmt.Errorf("node %s answered for request %s, party %d", p.service, response.RequestID, response.PartyID)
	}
	share, err := crypto.DecodeScalar(response.ProofShare)
	if err != nil {
		return nil, fmt.Errorf("node %s: invalid proof share: %w", p.service, err)
	}
	return share, nil
}

// drain closes the sessions of responses that arrive after the selection.
func drain(results <-chan result, remaining int) {
	for i := 0; i < remaining; i++ {
		res := <-results
		if res.partial != nil {
			_ = res.partial.session.Close()
		}
	}
}

func closeAll(partials []*partial) {
	for _, p := range partials {
		_ = p.session.Close()
	}
}

func serviceNames(partials []*partial) []string {
	out := make([]string, len(partials))
	for i, p := range partials {
		out[i] = p.service
	}
	return out
}
