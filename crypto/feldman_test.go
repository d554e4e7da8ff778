package crypto

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeldman_VerifyShare(t *testing.T) {
	p, err := RandomPolynomial(2, rand.Reader)
	require.NoError(t, err)
	commitments := p.Commit()

	for i := uint16(1); i <= 5; i++ {
		share := p.EvaluateAt(i)
		assert.True(t, VerifyShare(commitments, i, share))
		assert.True(t, EvaluateCommitments(commitments, i).Equal(MulGen(share)))

		// a share for another index does not verify
		assert.False(t, VerifyShare(commitments, i+1, share))
		// a tampered share does not verify
		assert.False(t, VerifyShare(commitments, i, share.Add(ScalarFromUint64(1))))
	}

	assert.False(t, VerifyShare(nil, 1, p.EvaluateAt(1)))
	assert.False(t, VerifyShare(commitments, 0, p.Evaluate(NewScalar())))
}

func TestSplitSecret_InvalidThreshold(t *testing.T) {
	secret := ScalarFromUint64(42)
	_, _, err := SplitSecret(secret, 0, 3, rand.Reader)
	assert.True(t, IsInvalidInputsError(err))
	_, _, err = SplitSecret(secret, 4, 3, rand.Reader)
	assert.True(t, IsInvalidInputsError(err))
}
