package unittest

import (
	"crypto/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/oprf-network/oprf-node/crypto"
	"github.com/oprf-network/oprf-node/model/oprf"
)

func RandomBytes(n int) []byte {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		panic("failed to read random bytes")
	}
	return b
}

func KeyIDFixture() oprf.KeyID {
	var id oprf.KeyID
	copy(id[:], RandomBytes(len(id)))
	return id
}

func RequestIDFixture() uuid.UUID {
	return uuid.New()
}

func ScalarFixture(t testing.TB) *crypto.Scalar {
	s, err := crypto.RandomNonZeroScalar(rand.Reader)
	require.NoError(t, err)
	return s
}

func QueryFixture() *crypto.Scalar {
	return crypto.QueryFromBytes(RandomBytes(32))
}

// KeyMaterialFixtures returns the material of every party of a share set with the given
// threshold, split by a trusted dealer, together with the shared secret key.
func KeyMaterialFixtures(t testing.TB, keyID oprf.KeyID, epoch oprf.ShareEpoch, threshold, size int) ([]*oprf.KeyMaterial, *crypto.Scalar) {
	secret := ScalarFixture(t)
	shares, commitments, err := crypto.SplitSecret(secret, threshold, size, rand.Reader)
	require.NoError(t, err)

	pkShares := make([]*crypto.Element, size)
	for i, share := range shares {
		pkShares[i] = crypto.MulGen(share)
	}

	materials := make([]*oprf.KeyMaterial, size)
	for i, share := range shares {
		materials[i] = &oprf.KeyMaterial{
			KeyID:           keyID,
			Epoch:           epoch,
			PartyID:         oprf.PartyID(i + 1),
			Threshold:       uint16(threshold),
			Participants:    uint16(size),
			Share:           share,
			PublicKey:       commitments[0],
			PublicKeyShares: pkShares,
		}
		require.NoError(t, materials[i].Validate())
	}
	return materials, secret
}

// KeyMaterialFixture returns the material of a single party of a fresh share set.
func KeyMaterialFixture(t testing.TB) *oprf.KeyMaterial {
	materials, _ := KeyMaterialFixtures(t, KeyIDFixture(), 1, 2, 3)
	return materials[0]
}
