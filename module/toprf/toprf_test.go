package toprf

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oprf-network/oprf-node/crypto"
	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module"
	"github.com/oprf-network/oprf-node/utils/unittest"
)

const testModule = "test"

// fakeNode evaluates with a share of a trusted-dealer share set.
type fakeNode struct {
	material *oprf.KeyMaterial
	disabled bool
	reject   bool
	// claimParty overrides the party id in responses
	claimParty oprf.PartyID
	// tamper adds the generator to the partial evaluation
	tamper bool
	// failChallenge drops the connection instead of answering the challenge
	failChallenge bool
	initDelay     time.Duration
}

type fakeConnector struct {
	mu         sync.Mutex
	nodes      map[string]*fakeNode
	opened     int
	closed     int
	challenged map[oprf.PartyID]int
}

func (c *fakeConnector) Connect(ctx context.Context, service string, moduleName string) (module.OprfSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	node, ok := c.nodes[service]
	if !ok || node.disabled {
		return nil, fmt.Errorf("connection refused")
	}
	c.opened++
	// sessions see the node configuration at connect time
	snapshot := *node
	return &fakeSession{connector: c, node: &snapshot}, nil
}

type fakeSession struct {
	connector  *fakeConnector
	node       *fakeNode
	blinded    *crypto.Element
	commitment *crypto.DLEQCommitment
	closeOnce  sync.Once
}

func (s *fakeSession) Init(ctx context.Context, request *oprf.OprfRequest) (*oprf.PartialResponse, error) {
	if s.node.initDelay > 0 {
		select {
		case <-time.After(s.node.initDelay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	material := s.node.material
	if s.node.reject || request.KeyID != material.KeyID || request.Epoch != material.Epoch {
		return nil, oprf.NewErrorMessage(oprf.ErrCodeUnauthorized, "rejected")
	}
	blinded, err := crypto.DecodeNonIdentityElement(request.BlindedQuery)
	if err != nil {
		return nil, oprf.NewErrorMessage(oprf.ErrCodeInvalidRequest, "invalid query")
	}
	commitment, err := crypto.NewDLEQCommitment(blinded, rand.Reader)
	if err != nil {
		return nil, err
	}
	s.blinded, s.commitment = blinded, commitment

	evaluation := blinded.Mul(material.Share)
	if s.node.tamper {
		evaluation = evaluation.Add(crypto.Generator())
	}
	party := material.PartyID
	if s.node.claimParty != 0 {
		party = s.node.claimParty
	}
	return &oprf.PartialResponse{
		RequestID:   request.RequestID,
		PartyID:     party,
		Evaluation:  evaluation.Encode(),
		CommitmentG: commitment.CommitmentG.Encode(),
		CommitmentB: commitment.CommitmentB.Encode(),
		PublicKey:   material.PublicKey.Encode(),
	}, nil
}

func (s *fakeSession) Challenge(ctx context.Context, request *oprf.ChallengeRequest) (*oprf.ChallengeResponse, error) {
	s.connector.mu.Lock()
	s.connector.challenged[s.node.material.PartyID]++
	s.connector.mu.Unlock()
	if s.node.failChallenge {
		return nil, errors.New("connection reset")
	}
	parties := make([]uint16, len(request.Contributions))
	evaluations := make([]*crypto.Element, len(request.Contributions))
	commitmentsG := make([]*crypto.Element, len(request.Contributions))
	commitmentsB := make([]*crypto.Element, len(request.Contributions))
	for i, contribution := range request.Contributions {
		parties[i] = uint16(contribution.PartyID)
		var err error
		if evaluations[i], err = crypto.DecodeElement(contribution.Evaluation); err != nil {
			return nil, err
		}
		if commitmentsG[i], err = crypto.DecodeElement(contribution.CommitmentG); err != nil {
			return nil, err
		}
		if commitmentsB[i], err = crypto.DecodeElement(contribution.CommitmentB); err != nil {
			return nil, err
		}
	}
	coefficients, err := crypto.LagrangeCoefficients(parties)
	if err != nil {
		return nil, err
	}
	combined, _ := crypto.CombineElements(evaluations, coefficients)
	commitmentG, _ := crypto.CombineElements(commitmentsG, coefficients)
	commitmentB, _ := crypto.CombineElements(commitmentsB, coefficients)
	challenge := crypto.DLEQChallenge(s.node.material.PublicKey, s.blinded, combined, commitmentG, commitmentB)
	share := crypto.DLEQProofShare(s.commitment.Nonce, s.node.material.Share, challenge)
	s.commitment.Zeroize()

	return &oprf.ChallengeResponse{
		RequestID:  request.RequestID,
		PartyID:    s.node.material.PartyID,
		ProofShare: share.Encode(),
	}, nil
}

func (s *fakeSession) Close() error {
	s.closeOnce.Do(func() {
		s.connector.mu.Lock()
		s.connector.closed++
		s.connector.mu.Unlock()
	})
	return nil
}

type testDeployment struct {
	services  []string
	nodes     []*fakeNode
	connector *fakeConnector
	keyID     oprf.KeyID
	secret    *crypto.Scalar
	publicKey *crypto.Element
}

func newDeployment(t *testing.T, threshold, size int) *testDeployment {
	keyID := unittest.KeyIDFixture()
	materials, secret := unittest.KeyMaterialFixtures(t, keyID, 1, threshold, size)
	d := &testDeployment{
		connector: &fakeConnector{nodes: make(map[string]*fakeNode), challenged: make(map[oprf.PartyID]int)},
		keyID:     keyID,
		secret:    secret,
		publicKey: materials[0].PublicKey,
	}
	for i, material := range materials {
		service := fmt.Sprintf("node-%d.test:8080", i+1)
		node := &fakeNode{material: material}
		d.services = append(d.services, service)
		d.nodes = append(d.nodes, node)
		d.connector.nodes[service] = node
	}
	return d
}

// update changes the configuration of the nodes. Sessions of earlier evaluations may
// still be running.
func (d *testDeployment) update(f func(nodes []*fakeNode)) {
	d.connector.mu.Lock()
	defer d.connector.mu.Unlock()
	f(d.nodes)
}

func (d *testDeployment) evaluate(t *testing.T, query *crypto.Scalar) (*oprf.VerifiableOutput, error) {
	return DistributedOPRF(context.Background(), zerolog.Nop(), d.services, testModule, 3, d.keyID, 1, query, nil, rand.Reader, d.connector)
}

func TestDistributedOPRF_MatchesKeyEvaluation(t *testing.T) {
	d := newDeployment(t, 3, 5)
	query := crypto.QueryFromBytes([]byte("hello"))

	output, err := d.evaluate(t, query)
	require.NoError(t, err)

	expected := crypto.Finalize(query, crypto.Evaluate(d.secret, query))
	assert.True(t, expected.Equal(output.Output))
	assert.True(t, d.publicKey.Equal(output.PublicKey))
	assert.True(t, output.Verify())

	assert.Eventually(t, func() bool {
		d.connector.mu.Lock()
		defer d.connector.mu.Unlock()
		return d.connector.closed == d.connector.opened
	}, unittest.DefaultTimeout, 10*time.Millisecond, "sessions were not closed")
}

func TestDistributedOPRF_SubsetIndependence(t *testing.T) {
	d := newDeployment(t, 3, 5)
	query := crypto.QueryFromBytes([]byte("hello"))

	reference, err := d.evaluate(t, query)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		for j := i + 1; j < 5; j++ {
			d.update(func(nodes []*fakeNode) { nodes[i].disabled, nodes[j].disabled = true, true })
			output, err := d.evaluate(t, query)
			require.NoError(t, err, "nodes %d and %d disabled", i+1, j+1)
			assert.True(t, reference.Output.Equal(output.Output), "nodes %d and %d disabled", i+1, j+1)
			d.update(func(nodes []*fakeNode) { nodes[i].disabled, nodes[j].disabled = false, false })
		}
	}
}

func TestDistributedOPRF_ThresholdNotMet(t *testing.T) {
	d := newDeployment(t, 3, 5)
	d.nodes[0].disabled = true
	d.nodes[2].disabled = true
	d.nodes[4].reject = true

	_, err := d.evaluate(t, unittest.QueryFixture())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrThresholdNotMet)

	var rejection *oprf.ErrorMessage
	require.ErrorAs(t, err, &rejection)
	assert.Equal(t, oprf.ErrCodeUnauthorized, rejection.Code)
}

func TestDistributedOPRF_RejectionIsNotFatal(t *testing.T) {
	d := newDeployment(t, 3, 5)
	d.nodes[1].reject = true
	d.nodes[3].reject = true

	query := unittest.QueryFixture()
	output, err := d.evaluate(t, query)
	require.NoError(t, err)
	assert.True(t, crypto.Finalize(query, crypto.Evaluate(d.secret, query)).Equal(output.Output))
}

// TestDistributedOPRF_ChallengeFailureRetried checks that a fast node dropping out of
// the challenge round is replaced by the remaining nodes.
func TestDistributedOPRF_ChallengeFailureRetried(t *testing.T) {
	d := newDeployment(t, 3, 5)
	d.nodes[0].failChallenge = true
	d.nodes[3].initDelay = 100 * time.Millisecond
	d.nodes[4].initDelay = 100 * time.Millisecond

	query := unittest.QueryFixture()
	output, err := d.evaluate(t, query)
	require.NoError(t, err)
	assert.True(t, crypto.Finalize(query, crypto.Evaluate(d.secret, query)).Equal(output.Output))
	assert.True(t, output.Verify())

	d.connector.mu.Lock()
	defer d.connector.mu.Unlock()
	assert.Equal(t, 1, d.connector.challenged[1], "failing node is challenged once and then excluded")
}

func TestDistributedOPRF_ChallengeFailureWithoutSpares(t *testing.T) {
	d := newDeployment(t, 3, 5)
	d.nodes[0].failChallenge = true
	d.nodes[3].disabled = true
	d.nodes[4].disabled = true

	_, err := d.evaluate(t, unittest.QueryFixture())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrThresholdNotMet)
	assert.Contains(t, err.Error(), "node-1.test:8080: connection reset")
}

func TestDistributedOPRF_Determinism(t *testing.T) {
	d := newDeployment(t, 3, 5)
	query := unittest.QueryFixture()

	first, err := d.evaluate(t, query)
	require.NoError(t, err)
	second, err := d.evaluate(t, query)
	require.NoError(t, err)

	assert.True(t, first.Output.Equal(second.Output))
	// fresh blinding factors
	assert.False(t, first.BlindedRequest.Equal(second.BlindedRequest))
}

func TestDistributedOPRF_DistinctQueries(t *testing.T) {
	d := newDeployment(t, 3, 5)
	seen := make(map[string]struct{})
	for i := 0; i < 10; i++ {
		output, err := d.evaluate(t, crypto.QueryFromBytes([]byte(fmt.Sprintf("query-%d", i))))
		require.NoError(t, err)
		key := string(output.Output.Encode())
		_, duplicate := seen[key]
		require.False(t, duplicate)
		seen[key] = struct{}{}
	}
}

func TestDistributedOPRF_TamperedEvaluation(t *testing.T) {
	d := newDeployment(t, 3, 5)
	// only three nodes are up, so the tampering node is always selected
	d.nodes[0].disabled = true
	d.nodes[1].disabled = true
	d.nodes[3].tamper = true

	output, err := d.evaluate(t, unittest.QueryFixture())
	assert.Nil(t, output)
	assert.ErrorIs(t, err, ErrProofVerification)
}

func TestVerifiableOutput_TamperedResponse(t *testing.T) {
	d := newDeployment(t, 3, 5)
	output, err := d.evaluate(t, unittest.QueryFixture())
	require.NoError(t, err)
	require.True(t, output.Verify())

	encoded := output.BlindedResponse.Encode()
	for bit := 0; bit < 8*len(encoded); bit += 37 {
		tampered := append([]byte(nil), encoded...)
		tampered[bit/8] ^= 1 << (bit % 8)
		element, err := crypto.DecodeElement(tampered)
		if err != nil {
			// not a valid encoding, rejected before verification
			continue
		}
		altered := *output
		altered.BlindedResponse = element
		assert.False(t, altered.Verify(), "bit %d", bit)
	}
}

func TestDistributedOPRF_FalsePartyClaim(t *testing.T) {
	d := newDeployment(t, 3, 5)
	d.nodes[0].disabled = true
	d.nodes[1].disabled = true
	// node 3 claims to hold the share of party 1
	d.nodes[2].claimParty = 1

	_, err := d.evaluate(t, unittest.QueryFixture())
	assert.ErrorIs(t, err, ErrThresholdNotMet)
}

func TestDistributedOPRF_UnknownKey(t *testing.T) {
	d := newDeployment(t, 3, 5)
	_, err := DistributedOPRF(context.Background(), zerolog.Nop(), d.services, testModule, 3, unittest.KeyIDFixture(), 1, unittest.QueryFixture(), nil, rand.Reader, d.connector)
	assert.ErrorIs(t, err, ErrThresholdNotMet)
}

func TestDistributedOPRF_InvalidInput(t *testing.T) {
	d := newDeployment(t, 3, 5)
	ctx := context.Background()

	_, err := DistributedOPRF(ctx, zerolog.Nop(), d.services, testModule, 0, d.keyID, 1, unittest.QueryFixture(), nil, rand.Reader, d.connector)
	assert.True(t, IsInvalidInputError(err))
	_, err = DistributedOPRF(ctx, zerolog.Nop(), d.services, testModule, 6, d.keyID, 1, unittest.QueryFixture(), nil, rand.Reader, d.connector)
	assert.True(t, IsInvalidInputError(err))
	_, err = DistributedOPRF(ctx, zerolog.Nop(), nil, testModule, 1, d.keyID, 1, unittest.QueryFixture(), nil, rand.Reader, d.connector)
	assert.True(t, IsInvalidInputError(err))
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("entropy exhausted")
}

func TestDistributedOPRF_RandomnessFailure(t *testing.T) {
	d := newDeployment(t, 3, 5)
	_, err := DistributedOPRF(context.Background(), zerolog.Nop(), d.services, testModule, 3, d.keyID, 1, unittest.QueryFixture(), nil, failingReader{}, d.connector)
	require.Error(t, err)
	assert.Equal(t, 0, d.connector.opened)
}

func TestClient(t *testing.T) {
	d := newDeployment(t, 3, 5)

	client, err := NewClient(zerolog.Nop(), d.services, testModule, 3, d.connector, WithExpectedPublicKey(d.publicKey))
	require.NoError(t, err)
	output, err := client.Evaluate(context.Background(), d.keyID, 1, []byte("hello"), nil)
	require.NoError(t, err)
	query := crypto.QueryFromBytes([]byte("hello"))
	assert.True(t, crypto.Finalize(query, crypto.Evaluate(d.secret, query)).Equal(output))

	t.Run("unexpected public key", func(t *testing.T) {
		client, err := NewClient(zerolog.Nop(), d.services, testModule, 3, d.connector, WithExpectedPublicKey(crypto.MulGen(unittest.ScalarFixture(t))))
		require.NoError(t, err)
		_, err = client.Evaluate(context.Background(), d.keyID, 1, []byte("hello"), nil)
		assert.ErrorIs(t, err, ErrThresholdNotMet)
	})

	t.Run("invalid threshold", func(t *testing.T) {
		_, err := NewClient(zerolog.Nop(), d.services, testModule, 7, d.connector)
		assert.True(t, IsInvalidInputError(err))
	})
}
