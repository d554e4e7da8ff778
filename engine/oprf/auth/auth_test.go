package auth

import (
	"context"
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/utils/unittest"
)

func TestPassThrough(t *testing.T) {
	request := &oprf.OprfRequest{KeyID: unittest.KeyIDFixture()}
	keyID, err := NewPassThrough().Authenticate(context.Background(), request)
	require.NoError(t, err)
	assert.Equal(t, request.KeyID, keyID)
}

func TestSigned(t *testing.T) {
	key, err := ethcrypto.GenerateKey()
	require.NoError(t, err)
	other, err := ethcrypto.GenerateKey()
	require.NoError(t, err)

	keyID := unittest.KeyIDFixture()
	authenticator := NewSigned(map[common.Address]oprf.KeyID{
		ethcrypto.PubkeyToAddress(key.PublicKey): keyID,
	})
	now := time.Unix(1_700_000_000, 0)
	authenticator.now = func() time.Time { return now }

	request := func(signer *ecdsa.PrivateKey, expiry time.Time) *oprf.OprfRequest {
		token, err := SignToken(signer, "auth", keyID, 2, expiry)
		require.NoError(t, err)
		return &oprf.OprfRequest{Module: "auth", KeyID: keyID, Epoch: 2, Auth: token}
	}

	t.Run("valid token", func(t *testing.T) {
		resolved, err := authenticator.Authenticate(context.Background(), request(key, now.Add(time.Minute)))
		require.NoError(t, err)
		assert.Equal(t, keyID, resolved)
	})

	t.Run("expired token", func(t *testing.T) {
		_, err := authenticator.Authenticate(context.Background(), request(key, now.Add(-time.Second)))
		assert.ErrorIs(t, err, oprf.ErrUnauthorized)
	})

	t.Run("unknown signer", func(t *testing.T) {
		_, err := authenticator.Authenticate(context.Background(), request(other, now.Add(time.Minute)))
		assert.ErrorIs(t, err, oprf.ErrUnauthorized)
	})

	t.Run("token for another epoch", func(t *testing.T) {
		r := request(key, now.Add(time.Minute))
		r.Epoch = 3
		_, err := authenticator.Authenticate(context.Background(), r)
		assert.ErrorIs(t, err, oprf.ErrUnauthorized)
	})

	t.Run("token for another module", func(t *testing.T) {
		r := request(key, now.Add(time.Minute))
		r.Module = "other"
		_, err := authenticator.Authenticate(context.Background(), r)
		assert.ErrorIs(t, err, oprf.ErrUnauthorized)
	})

	t.Run("missing or malformed token", func(t *testing.T) {
		_, err := authenticator.Authenticate(context.Background(), &oprf.OprfRequest{KeyID: keyID})
		assert.ErrorIs(t, err, oprf.ErrUnauthorized)
		_, err = authenticator.Authenticate(context.Background(), &oprf.OprfRequest{KeyID: keyID, Auth: []byte(`{"expiry":"soon"}`)})
		assert.ErrorIs(t, err, oprf.ErrUnauthorized)
	})
}
