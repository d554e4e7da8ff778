package crypto

import (
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlinding_RoundTrip(t *testing.T) {
	key, err := RandomNonZeroScalar(rand.Reader)
	require.NoError(t, err)
	query := QueryFromBytes([]byte("hello"))
	expected := Finalize(query, Evaluate(key, query))

	// fresh blinding factors yield the same output
	for i := 0; i < 3; i++ {
		beta, err := NewBlindingFactor(rand.Reader)
		require.NoError(t, err)

		blinded, err := beta.Blind(query)
		require.NoError(t, err)
		unblinded, err := beta.Unblind(blinded.Mul(key))
		require.NoError(t, err)
		assert.True(t, Finalize(query, unblinded).Equal(expected))

		beta.Zeroize()
		_, err = beta.Blind(query)
		require.ErrorIs(t, err, ErrZeroScalar)
	}
}

func TestFinalize_DistinctQueries(t *testing.T) {
	key, err := RandomNonZeroScalar(rand.Reader)
	require.NoError(t, err)

	seen := make(map[string]struct{})
	for _, in := range []string{"a", "b", "hello", "hello!", ""} {
		q := QueryFromBytes([]byte(in))
		out := string(Finalize(q, Evaluate(key, q)).Encode())
		_, dup := seen[out]
		require.False(t, dup, "collision for input %q", in)
		seen[out] = struct{}{}
	}
}
