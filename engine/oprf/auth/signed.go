package auth

import (
	"context"
	"crypto/ecdsa"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/oprf-network/oprf-node/model/oprf"
	"github.com/oprf-network/oprf-node/module"
)

const signedTokenTag = "OPRF-NODE-V1 request token"

// SignedToken is the auth payload of the Signed authenticator: a secp256k1 signature
// of an allowed signer over the module, key id, epoch and expiry of the request.
type SignedToken struct {
	Expiry    int64         `json:"expiry"`
	Signature hexutil.Bytes `json:"signature"`
}

// Signed authorizes requests carrying a SignedToken of an allowed signer. Each signer
// is allowed to request exactly one key id.
type Signed struct {
	signers map[common.Address]oprf.KeyID
	now     func() time.Time
}

var _ module.RequestAuthenticator = (*Signed)(nil)

// NewSigned returns an authenticator for the given signer allow-list.
func NewSigned(signers map[common.Address]oprf.KeyID) *Signed {
	return &Signed{
		signers: signers,
		now:     time.Now,
	}
}

// Authenticate returns the key id of the request's signer.
// Error returns: oprf.ErrUnauthorized (wrapped) if the token is missing, malformed,
// expired, or signed by a signer outside the allow-list.
func (s *Signed) Authenticate(_ context.Context, request *oprf.OprfRequest) (oprf.KeyID, error) {
	if len(request.Auth) == 0 {
		return oprf.ZeroKeyID, fmt.Errorf("%w: missing token", oprf.ErrUnauthorized)
	}
	var token SignedToken
	if err := json.Unmarshal(request.Auth, &token); err != nil {
		return oprf.ZeroKeyID, fmt.Errorf("%w: malformed token: %v", oprf.ErrUnauthorized, err)
	}
	if s.now().Unix() > token.Expiry {
		return oprf.ZeroKeyID, fmt.Errorf("%w: token expired", oprf.ErrUnauthorized)
	}

	digest := TokenDigest(request.Module, request.KeyID, request.Epoch, token.Expiry)
	pub, err := ethcrypto.SigToPub(digest, token.Signature)
	if err != nil {
		return oprf.ZeroKeyID, fmt.Errorf("%w: invalid signature: %v", oprf.ErrUnauthorized, err)
	}
	signer := ethcrypto.PubkeyToAddress(*pub)
	keyID, ok := s.signers[signer]
	if !ok {
		return oprf.ZeroKeyID, fmt.Errorf("%w: unknown signer %s", oprf.ErrUnauthorized, signer.Hex())
	}
	return keyID, nil
}

// TokenDigest returns the digest signed by a SignedToken.
func TokenDigest(moduleName string, keyID oprf.KeyID, epoch oprf.ShareEpoch, expiry int64) []byte {
	var buf [16]byte
	binary.BigEndian.PutUint64(buf[:8], uint64(epoch))
	binary.BigEndian.PutUint64(buf[8:], uint64(expiry))
	return ethcrypto.Keccak256(
		[]byte(signedTokenTag),
		[]byte(moduleName),
		keyID[:],
		buf[:],
	)
}

// SignToken creates the auth payload for a request of the given module, key id and
// epoch, valid until expiry.
func SignToken(key *ecdsa.PrivateKey, moduleName string, keyID oprf.KeyID, epoch oprf.ShareEpoch, expiry time.Time) (json.RawMessage, error) {
	signature, err := ethcrypto.Sign(TokenDigest(moduleName, keyID, epoch, expiry.Unix()), key)
	if err != nil {
		return nil, fmt.Errorf("could not sign token: %w", err)
	}
	return json.Marshal(SignedToken{
		Expiry:    expiry.Unix(),
		Signature: signature,
	})
}
