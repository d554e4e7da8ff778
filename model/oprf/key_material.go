package oprf

import (
	"fmt"

	"github.com/oprf-network/oprf-node/crypto"
)

// KeyMaterial is one node's view of the threshold share set of a (KeyID, ShareEpoch)
// pair. The share never leaves the node; only evaluations under it do.
type KeyMaterial struct {
	KeyID        KeyID
	Epoch        ShareEpoch
	PartyID      PartyID
	Threshold    uint16
	Participants uint16

	// Share is this node's secret Shamir share of the OPRF key.
	Share *crypto.Scalar
	// PublicKey is the public key of the full share set.
	PublicKey *crypto.Element
	// PublicKeyShares holds share_j·G for every participant j, indexed by j-1.
	PublicKeyShares []*crypto.Element
}

// Validate checks the internal consistency of the material, including that the
// share matches this node's public key share.
func (m *KeyMaterial) Validate() error {
	if m.Threshold == 0 || m.Threshold > m.Participants {
		return fmt.Errorf("invalid threshold %d for %d participants", m.Threshold, m.Participants)
	}
	if m.PartyID == 0 || uint16(m.PartyID) > m.Participants {
		return fmt.Errorf("party id %d out of range [1, %d]", m.PartyID, m.Participants)
	}
	if m.Share == nil || m.Share.IsZero() {
		return fmt.Errorf("missing key share")
	}
	if m.PublicKey == nil || m.PublicKey.IsIdentity() {
		return fmt.Errorf("missing public key")
	}
	if len(m.PublicKeyShares) != int(m.Participants) {
		return fmt.Errorf("expected %d public key shares, got %d", m.Participants, len(m.PublicKeyShares))
	}
	if !crypto.MulGen(m.Share).Equal(m.PublicKeyShares[m.PartyID-1]) {
		return fmt.Errorf("key share does not match public key share of party %d", m.PartyID)
	}
	return nil
}

// Equal reports whether both materials describe the same share set and share.
func (m *KeyMaterial) Equal(other *KeyMaterial) bool {
	if m == nil || other == nil {
		return m == other
	}
	if m.KeyID != other.KeyID || m.Epoch != other.Epoch || m.PartyID != other.PartyID ||
		m.Threshold != other.Threshold || m.Participants != other.Participants {
		return false
	}
	if !m.Share.Equal(other.Share) || !m.PublicKey.Equal(other.PublicKey) {
		return false
	}
	if len(m.PublicKeyShares) != len(other.PublicKeyShares) {
		return false
	}
	for i := range m.PublicKeyShares {
		if !m.PublicKeyShares[i].Equal(other.PublicKeyShares[i]) {
			return false
		}
	}
	return true
}

// Zeroize wipes the secret share.
func (m *KeyMaterial) Zeroize() {
	if m == nil {
		return
	}
	m.Share.Zeroize()
}

// EncodableKeyMaterial is the persisted form of KeyMaterial. It carries the raw share
// and must only be handled by secret manager backends.
type EncodableKeyMaterial struct {
	KeyID           []byte
	Epoch           uint64
	PartyID         uint16
	Threshold       uint16
	Participants    uint16
	Share           []byte
	PublicKey       []byte
	PublicKeyShares [][]byte
}

// Encodable converts the material into its persisted form.
func (m *KeyMaterial) Encodable() *EncodableKeyMaterial {
	shares := make([][]byte, len(m.PublicKeyShares))
	for i, pk := range m.PublicKeyShares {
		shares[i] = pk.Encode()
	}
	return &EncodableKeyMaterial{
		KeyID:           append([]byte(nil), m.KeyID[:]...),
		Epoch:           uint64(m.Epoch),
		PartyID:         uint16(m.PartyID),
		Threshold:       m.Threshold,
		Participants:    m.Participants,
		Share:           m.Share.Encode(),
		PublicKey:       m.PublicKey.Encode(),
		PublicKeyShares: shares,
	}
}

// Decode converts the persisted form back into validated key material.
func (e *EncodableKeyMaterial) Decode() (*KeyMaterial, error) {
	keyID, err := KeyIDFromBytes(e.KeyID)
	if err != nil {
		return nil, err
	}
	share, err := crypto.DecodeScalar(e.Share)
	if err != nil {
		return nil, fmt.Errorf("could not decode key share: %w", err)
	}
	publicKey, err := crypto.DecodeNonIdentityElement(e.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("could not decode public key: %w", err)
	}
	shares := make([]*crypto.Element, len(e.PublicKeyShares))
	for i, b := range e.PublicKeyShares {
		shares[i], err = crypto.DecodeElement(b)
		if err != nil {
			return nil, fmt.Errorf("could not decode public key share %d: %w", i+1, err)
		}
	}
	m := &KeyMaterial{
		KeyID:           keyID,
		Epoch:           ShareEpoch(e.Epoch),
		PartyID:         PartyID(e.PartyID),
		Threshold:       e.Threshold,
		Participants:    e.Participants,
		Share:           share,
		PublicKey:       publicKey,
		PublicKeyShares: shares,
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("invalid key material for key %s epoch %d: %w", keyID, e.Epoch, err)
	}
	return m, nil
}

// Zeroize wipes the raw share bytes.
func (e *EncodableKeyMaterial) Zeroize() {
	for i := range e.Share {
		e.Share[i] = 0
	}
}

// VerifiableOutput is the result of one distributed evaluation, including everything
// needed to re-check the DLEQ proof. Callers normally keep only Output.
type VerifiableOutput struct {
	Output          *crypto.Scalar
	Proof           *crypto.DLEQProof
	BlindedResponse *crypto.Element
	BlindedRequest  *crypto.Element
	PublicKey       *crypto.Element
}

// Verify re-checks the DLEQ proof of the output.
func (o *VerifiableOutput) Verify() bool {
	return o.Proof.Verify(o.PublicKey, o.BlindedRequest, o.BlindedResponse)
}

// KeyGenRequest is a request of the key registry to generate the share set of a new
// epoch for a key id.
type KeyGenRequest struct {
	KeyID       KeyID
	Epoch       ShareEpoch
	Threshold   uint16
	BlockNumber uint64
}
