package oprf

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/rs/zerolog"

	"github.com/oprf-network/oprf-node/crypto"
	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module"
	"github.com/oprf-network/oprf-node/storage"
)

const (
	// DefaultSessionTTL is the time a client has to send the challenge of a session.
	DefaultSessionTTL = 30 * time.Second
	// DefaultMaxSessions bounds the number of sessions waiting for their challenge.
	DefaultMaxSessions = 10_000
)

// Config defines configuration for the Evaluator.
type Config struct {
	SessionTTL  time.Duration
	MaxSessions int
}

func DefaultConfig() Config {
	return Config{
		SessionTTL:  DefaultSessionTTL,
		MaxSessions: DefaultMaxSessions,
	}
}

// session is the state kept by a node between the two steps of an evaluation.
type session struct {
	material   *oprf.KeyMaterial
	blinded    *crypto.Element
	evaluation *crypto.Element
	commitment *crypto.DLEQCommitment
	taken      bool
}

// Evaluator computes this node's part of distributed evaluations. An evaluation is a
// two step session: Init evaluates the share on the blinded query and commits to a
// DLEQ nonce, Challenge answers the challenge derived from the contributions the
// client selected. Sessions are single-use and expire.
type Evaluator struct {
	log      zerolog.Logger
	secrets  storage.SecretManager
	auth     module.RequestAuthenticator
	metrics  module.OPRFMetrics
	rng      io.Reader
	mu       sync.Mutex // serializes opening and taking sessions
	sessions *expirable.LRU[uuid.UUID, *session]
}

// NewEvaluator creates an evaluator reading key material from secrets, which is
// expected to be cached.
func NewEvaluator(
	log zerolog.Logger,
	secrets storage.SecretManager,
	auth module.RequestAuthenticator,
	metrics module.OPRFMetrics,
	rng io.Reader,
	config Config,
) *Evaluator {
	if config.SessionTTL <= 0 {
		config.SessionTTL = DefaultSessionTTL
	}
	if config.MaxSessions <= 0 {
		config.MaxSessions = DefaultMaxSessions
	}

	onEvict := func(_ uuid.UUID, s *session) {
		// expired or dropped sessions never use their nonce
		if !s.taken {
			s.commitment.Zeroize()
		}
	}
	return &Evaluator{
		log:      log.With().Str("engine", "oprf_evaluator").Logger(),
		secrets:  secrets,
		auth:     auth,
		metrics:  metrics,
		rng:      rng,
		sessions: expirable.NewLRU[uuid.UUID, *session](config.MaxSessions, onEvict, config.SessionTTL),
	}
}

// Init authenticates the request and returns this node's partial response. The
// returned error is an *oprf.ErrorMessage suitable for the client.
func (e *Evaluator) Init(ctx context.Context, request *oprf.OprfRequest) (*oprf.PartialResponse, error) {
	start := time.Now()
	log := e.log.With().
		Str("request_id", request.RequestID.String()).
		Str("key_id", request.KeyID.String()).
		Uint64("epoch", uint64(request.Epoch)).
		Logger()

	keyID, err := e.auth.Authenticate(ctx, request)
	if err != nil {
		log.Debug().Err(err).Msg("rejecting unauthorized request")
		return nil, e.reject(oprf.ErrCodeUnauthorized, "request not authorized")
	}
	if keyID != request.KeyID {
		log.Debug().Str("authorized_key_id", keyID.String()).Msg("rejecting request for another key id")
		return nil, e.reject(oprf.ErrCodeUnauthorized, "request not authorized for key id %s", request.KeyID)
	}

	material, err := e.secrets.GetKeyMaterial(ctx, request.KeyID, request.Epoch)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, e.reject(oprf.ErrCodeNotFound, "no key material for key id %s epoch %d", request.KeyID, request.Epoch)
	}
	if err != nil {
		log.Error().Err(err).Msg("could not load key material")
		return nil, e.reject(oprf.ErrCodeInternal, "could not load key material")
	}

	blinded, err := crypto.DecodeNonIdentityElement(request.BlindedQuery)
	if err != nil {
		return nil, e.reject(oprf.ErrCodeInvalidRequest, "invalid blinded query: %v", err)
	}
	commitment, err := crypto.NewDLEQCommitment(blinded, e.rng)
	if err != nil {
		log.Error().Err(err).Msg("could not sample dleq nonce")
		return nil, e.reject(oprf.ErrCodeInternal, "could not evaluate")
	}

	s := &session{
		material:   material,
		blinded:    blinded,
		evaluation: blinded.Mul(material.Share),
		commitment: commitment,
	}
	if !e.open(request.RequestID, s) {
		commitment.Zeroize()
		return nil, e.reject(oprf.ErrCodeInvalidRequest, "duplicate request id %s", request.RequestID)
	}
	e.metrics.PartialEvaluation(time.Since(start))

	return &oprf.PartialResponse{
		RequestID:   request.RequestID,
		PartyID:     material.PartyID,
		Evaluation:  s.evaluation.Encode(),
		CommitmentG: commitment.CommitmentG.Encode(),
		CommitmentB: commitment.CommitmentB.Encode(),
		PublicKey:   material.PublicKey.Encode(),
	}, nil
}

// Challenge answers the challenge round of a session and closes it. The returned
// error is an *oprf.ErrorMessage suitable for the client.
func (e *Evaluator) Challenge(ctx context.Context, request *oprf.ChallengeRequest) (*oprf.ChallengeResponse, error) {
	start := time.Now()
	s, ok := e.take(request.RequestID)
	if !ok {
		return nil, e.reject(oprf.ErrCodeInvalidRequest, "unknown or expired session %s", request.RequestID)
	}
	defer s.commitment.Zeroize()

	challenge, err := s.challenge(request.Contributions)
	if err != nil {
		return nil, e.reject(oprf.ErrCodeInvalidRequest, "invalid contributions: %v", err)
	}
	proofShare := crypto.DLEQProofShare(s.commitment.Nonce, s.material.Share, challenge)
	e.metrics.ProofShare(time.Since(start))

	return &oprf.ChallengeResponse{
		RequestID:  request.RequestID,
		PartyID:    s.material.PartyID,
		ProofShare: proofShare.Encode(),
	}, nil
}

// Discard drops a session whose client went away.
func (e *Evaluator) Discard(requestID uuid.UUID) {
	e.sessions.Remove(requestID)
	e.metrics.OpenSessions(uint(e.sessions.Len()))
}

func (e *Evaluator) open(requestID uuid.UUID, s *session) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sessions.Contains(requestID) {
		return false
	}
	e.sessions.Add(requestID, s)
	e.metrics.OpenSessions(uint(e.sessions.Len()))
	return true
}

func (e *Evaluator) take(requestID uuid.UUID) (*session, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions.Peek(requestID)
	if !ok || s.taken {
		return nil, false
	}
	s.taken = true
	e.sessions.Remove(requestID)
	e.metrics.OpenSessions(uint(e.sessions.Len()))
	return s, true
}

func (e *Evaluator) reject(code string, format string, args ...interface{}) error {
	e.metrics.SessionRejected(code)
	return oprf.NewErrorMessage(code, format, args...)
}

// challenge recomputes the challenge of the combined proof from the contributions the
// client selected. The contributions must come from threshold distinct parties and
// include this node's unmodified contribution.
func (s *session) challenge(contributions []oprf.Contribution) (*crypto.Scalar, error) {
	material := s.material
	if len(contributions) != int(material.Threshold) {
		return nil, fmt.Errorf("expected %d contributions, got %d", material.Threshold, len(contributions))
	}

	parties := make([]uint16, len(contributions))
	evaluations := make([]*crypto.Element, len(contributions))
	commitmentsG := make([]*crypto.Element, len(contributions))
	commitmentsB := make([]*crypto.Element, len(contributions))
	own := false
	for i, contribution := range contributions {
		if contribution.PartyID == 0 || uint16(contribution.PartyID) > material.Participants {
			return nil, fmt.Errorf("party %d out of range", contribution.PartyID)
		}
		parties[i] = uint16(contribution.PartyID)

		var err error
		if evaluations[i], err = crypto.DecodeNonIdentityElement(contribution.Evaluation); err != nil {
			return nil, fmt.Errorf("evaluation of party %d: %w", contribution.PartyID, err)
		}
		if commitmentsG[i], err = crypto.DecodeNonIdentityElement(contribution.CommitmentG); err != nil {
			return nil, fmt.Errorf("commitment of party %d: %w", contribution.PartyID, err)
		}
		if commitmentsB[i], err = crypto.DecodeNonIdentityElement(contribution.CommitmentB); err != nil {
			return nil, fmt.Errorf("commitment of party %d: %w", contribution.PartyID, err)
		}

		if contribution.PartyID == material.PartyID {
			if !evaluations[i].Equal(s.evaluation) ||
				!commitmentsG[i].Equal(s.commitment.CommitmentG) ||
				!commitmentsB[i].Equal(s.commitment.CommitmentB) {
				return nil, fmt.Errorf("own contribution was modified")
			}
			own = true
		}
	}
	if !own {
		return nil, fmt.Errorf("own contribution is missing")
	}

	// rejects duplicate parties
	coefficients, err := crypto.LagrangeCoefficients(parties)
	if err != nil {
		return nil, err
	}
	combined, err := crypto.CombineElements(evaluations, coefficients)
	if err != nil {
		return nil, err
	}
	commitmentG, err := crypto.CombineElements(commitmentsG, coefficients)
	if err != nil {
		return nil, err
	}
	commitmentB, err := crypto.CombineElements(commitmentsB, coefficients)
	if err != nil {
		return nil, err
	}
	return crypto.DLEQChallenge(material.PublicKey, s.blinded, combined, commitmentG, commitmentB), nil
}
