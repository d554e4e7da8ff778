package oprf

import (
	"context"
	"crypto/rand"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/oprf-network/oprf-node/crypto"
	"github.com/oprf-network/oprf-node/engine/oprf/auth"
	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module/metrics"
	"github.com/oprf-network/oprf-node/storage"
	storagemock "github.com/oprf-network/oprf-node/storage/mock"
	"github.com/oprf-network/oprf-node/utils/unittest"
)

type EvaluatorSuite struct {
	suite.Suite

	materials []*oprf.KeyMaterial
	secrets   *storagemock.SecretManager
	evaluator *Evaluator
	blinding  *crypto.BlindingFactor
	blinded   *crypto.Element
}

func TestEvaluator(t *testing.T) {
	suite.Run(t, new(EvaluatorSuite))
}

func (s *EvaluatorSuite) SetupTest() {
	s.materials, _ = unittest.KeyMaterialFixtures(s.T(), unittest.KeyIDFixture(), 1, 2, 3)
	s.secrets = storagemock.NewSecretManager(s.T())
	s.evaluator = NewEvaluator(zerolog.Nop(), s.secrets, auth.NewPassThrough(), metrics.NewNoopCollector(), rand.Reader, DefaultConfig())

	var err error
	s.blinding, err = crypto.NewBlindingFactor(rand.Reader)
	s.Require().NoError(err)
	s.blinded, err = s.blinding.Blind(unittest.QueryFixture())
	s.Require().NoError(err)
}

func (s *EvaluatorSuite) request() *oprf.OprfRequest {
	return &oprf.OprfRequest{
		RequestID:    unittest.RequestIDFixture(),
		Module:       "test",
		KeyID:        s.materials[0].KeyID,
		Epoch:        1,
		BlindedQuery: s.blinded.Encode(),
	}
}

func (s *EvaluatorSuite) expectMaterial(material *oprf.KeyMaterial) {
	s.secrets.On("GetKeyMaterial", mock.Anything, material.KeyID, material.Epoch).Return(material, nil)
}

func requireCode(t *testing.T, err error, code string) {
	var msg *oprf.ErrorMessage
	require.ErrorAs(t, err, &msg)
	require.Equal(t, code, msg.Code)
}

// TestTwoNodeProof runs sessions on nodes 1 and 3 and checks that the combined proof
// verifies.
func (s *EvaluatorSuite) TestTwoNodeProof() {
	otherSecrets := storagemock.NewSecretManager(s.T())
	otherSecrets.On("GetKeyMaterial", mock.Anything, s.materials[2].KeyID, s.materials[2].Epoch).Return(s.materials[2], nil)
	other := NewEvaluator(zerolog.Nop(), otherSecrets, auth.NewPassThrough(), metrics.NewNoopCollector(), rand.Reader, DefaultConfig())
	s.expectMaterial(s.materials[0])

	request := s.request()
	first, err := s.evaluator.Init(context.Background(), request)
	s.Require().NoError(err)
	third, err := other.Init(context.Background(), request)
	s.Require().NoError(err)
	s.Equal(oprf.PartyID(1), first.PartyID)
	s.Equal(oprf.PartyID(3), third.PartyID)

	challenge := &oprf.ChallengeRequest{
		RequestID:     request.RequestID,
		Contributions: []oprf.Contribution{first.Contribution(), third.Contribution()},
	}
	share1, err := s.evaluator.Challenge(context.Background(), challenge)
	s.Require().NoError(err)
	share3, err := other.Challenge(context.Background(), challenge)
	s.Require().NoError(err)

	coefficients, err := crypto.LagrangeCoefficients([]uint16{1, 3})
	s.Require().NoError(err)
	evaluations := []*crypto.Element{decodeElement(s.T(), first.Evaluation), decodeElement(s.T(), third.Evaluation)}
	combined, err := crypto.CombineElements(evaluations, coefficients)
	s.Require().NoError(err)
	commitmentG, _ := crypto.CombineElements([]*crypto.Element{decodeElement(s.T(), first.CommitmentG), decodeElement(s.T(), third.CommitmentG)}, coefficients)
	commitmentB, _ := crypto.CombineElements([]*crypto.Element{decodeElement(s.T(), first.CommitmentB), decodeElement(s.T(), third.CommitmentB)}, coefficients)
	c := crypto.DLEQChallenge(s.materials[0].PublicKey, s.blinded, combined, commitmentG, commitmentB)

	proof, err := crypto.CombineDLEQProof(c, []*crypto.Scalar{decodeScalar(s.T(), share1.ProofShare), decodeScalar(s.T(), share3.ProofShare)}, coefficients)
	s.Require().NoError(err)
	s.True(proof.Verify(s.materials[0].PublicKey, s.blinded, combined))

	// sessions are single-use
	_, err = s.evaluator.Challenge(context.Background(), challenge)
	requireCode(s.T(), err, oprf.ErrCodeInvalidRequest)
}

func (s *EvaluatorSuite) TestNotFound() {
	request := s.request()
	s.secrets.On("GetKeyMaterial", mock.Anything, request.KeyID, request.Epoch).Return(nil, storage.ErrNotFound)
	_, err := s.evaluator.Init(context.Background(), request)
	requireCode(s.T(), err, oprf.ErrCodeNotFound)
}

func (s *EvaluatorSuite) TestBackendFailure() {
	request := s.request()
	s.secrets.On("GetKeyMaterial", mock.Anything, request.KeyID, request.Epoch).Return(nil, errors.New("connection reset"))
	_, err := s.evaluator.Init(context.Background(), request)
	requireCode(s.T(), err, oprf.ErrCodeInternal)
}

func (s *EvaluatorSuite) TestUnauthorized() {
	signed := NewEvaluator(zerolog.Nop(), s.secrets, auth.NewSigned(nil), metrics.NewNoopCollector(), rand.Reader, DefaultConfig())
	_, err := signed.Init(context.Background(), s.request())
	requireCode(s.T(), err, oprf.ErrCodeUnauthorized)
}

func (s *EvaluatorSuite) TestAuthorizedForAnotherKey() {
	other := unittest.KeyIDFixture()
	evaluator := NewEvaluator(zerolog.Nop(), s.secrets, fixedKey(other), metrics.NewNoopCollector(), rand.Reader, DefaultConfig())
	_, err := evaluator.Init(context.Background(), s.request())
	requireCode(s.T(), err, oprf.ErrCodeUnauthorized)
}

func (s *EvaluatorSuite) TestInvalidBlindedQuery() {
	s.expectMaterial(s.materials[0])

	request := s.request()
	request.BlindedQuery = crypto.Identity().Encode()
	_, err := s.evaluator.Init(context.Background(), request)
	requireCode(s.T(), err, oprf.ErrCodeInvalidRequest)

	request.BlindedQuery = []byte{1, 2, 3}
	_, err = s.evaluator.Init(context.Background(), request)
	requireCode(s.T(), err, oprf.ErrCodeInvalidRequest)
}

func (s *EvaluatorSuite) TestDuplicateRequestID() {
	s.expectMaterial(s.materials[0])
	request := s.request()
	_, err := s.evaluator.Init(context.Background(), request)
	s.Require().NoError(err)
	_, err = s.evaluator.Init(context.Background(), request)
	requireCode(s.T(), err, oprf.ErrCodeInvalidRequest)
}

func (s *EvaluatorSuite) TestInvalidContributions() {
	s.expectMaterial(s.materials[0])
	s.expectMaterial(s.materials[1])
	second := NewEvaluator(zerolog.Nop(), s.secrets, auth.NewPassThrough(), metrics.NewNoopCollector(), rand.Reader, DefaultConfig())

	cases := map[string]func(own, peer oprf.Contribution) []oprf.Contribution{
		"missing own contribution": func(own, peer oprf.Contribution) []oprf.Contribution {
			peer2 := peer
			peer2.PartyID = 3
			return []oprf.Contribution{peer, peer2}
		},
		"modified own contribution": func(own, peer oprf.Contribution) []oprf.Contribution {
			own.Evaluation = peer.Evaluation
			return []oprf.Contribution{own, peer}
		},
		"duplicate party": func(own, peer oprf.Contribution) []oprf.Contribution {
			peer.PartyID = own.PartyID
			return []oprf.Contribution{own, peer}
		},
		"too few contributions": func(own, peer oprf.Contribution) []oprf.Contribution {
			return []oprf.Contribution{own}
		},
		"party out of range": func(own, peer oprf.Contribution) []oprf.Contribution {
			peer.PartyID = 4
			return []oprf.Contribution{own, peer}
		},
		"identity evaluation": func(own, peer oprf.Contribution) []oprf.Contribution {
			peer.Evaluation = crypto.Identity().Encode()
			return []oprf.Contribution{own, peer}
		},
	}
	for name, contributions := range cases {
		s.Run(name, func() {
			request := s.request()
			own, err := s.evaluator.Init(context.Background(), request)
			s.Require().NoError(err)
			peer, err := second.Init(context.Background(), request)
			s.Require().NoError(err)

			_, err = s.evaluator.Challenge(context.Background(), &oprf.ChallengeRequest{
				RequestID:     request.RequestID,
				Contributions: contributions(own.Contribution(), peer.Contribution()),
			})
			requireCode(s.T(), err, oprf.ErrCodeInvalidRequest)
			second.Discard(request.RequestID)
		})
	}
}

func (s *EvaluatorSuite) TestSessionExpiry() {
	s.expectMaterial(s.materials[0])
	evaluator := NewEvaluator(zerolog.Nop(), s.secrets, auth.NewPassThrough(), metrics.NewNoopCollector(), rand.Reader, Config{SessionTTL: 50 * time.Millisecond, MaxSessions: 10})

	request := s.request()
	partial, err := evaluator.Init(context.Background(), request)
	s.Require().NoError(err)
	time.Sleep(200 * time.Millisecond)

	_, err = evaluator.Challenge(context.Background(), &oprf.ChallengeRequest{
		RequestID:     request.RequestID,
		Contributions: []oprf.Contribution{partial.Contribution()},
	})
	requireCode(s.T(), err, oprf.ErrCodeInvalidRequest)
}

func (s *EvaluatorSuite) TestUnknownSession() {
	_, err := s.evaluator.Challenge(context.Background(), &oprf.ChallengeRequest{RequestID: uuid.New()})
	requireCode(s.T(), err, oprf.ErrCodeInvalidRequest)
}

type fixedKey oprf.KeyID

func (k fixedKey) Authenticate(context.Context, *oprf.OprfRequest) (oprf.KeyID, error) {
	return oprf.KeyID(k), nil
}

func decodeElement(t *testing.T, b []byte) *crypto.Element {
	e, err := crypto.DecodeElement(b)
	require.NoError(t, err)
	return e
}

func decodeScalar(t *testing.T, b []byte) *crypto.Scalar {
	sc, err := crypto.DecodeScalar(b)
	require.NoError(t, err)
	return sc
}
