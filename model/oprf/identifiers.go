package oprf

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
)

// KeyID identifies one logical OPRF key, for example the key of one relying party.
// It is immutable once issued and matches the bytes32 key id of the key registry.
type KeyID [32]byte

// ZeroKeyID is the unset key id.
var ZeroKeyID KeyID

// KeyIDFromLabel derives a key id from a human readable label as keccak256(label),
// which is how the registry contract derives ids from names.
func KeyIDFromLabel(label string) KeyID {
	return KeyID(crypto.Keccak256Hash([]byte(label)))
}

// HexToKeyID parses a hex encoded key id, with or without 0x prefix. Shorter inputs
// are left-padded with zeros.
func HexToKeyID(s string) (KeyID, error) {
	var id KeyID
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if len(s)%2 == 1 {
		s = "0" + s
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return id, fmt.Errorf("could not decode key id %q: %w", s, err)
	}
	if len(b) > len(id) {
		return id, fmt.Errorf("key id too long: %d bytes", len(b))
	}
	copy(id[len(id)-len(b):], b)
	return id, nil
}

// KeyIDFromBytes converts a 32 byte slice into a key id.
func KeyIDFromBytes(b []byte) (KeyID, error) {
	var id KeyID
	if len(b) != len(id) {
		return id, fmt.Errorf("key id must be %d bytes, got %d", len(id), len(b))
	}
	copy(id[:], b)
	return id, nil
}

func (id KeyID) String() string {
	return hex.EncodeToString(id[:])
}

func (id KeyID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

func (id *KeyID) UnmarshalText(text []byte) error {
	parsed, err := HexToKeyID(string(text))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// ShareEpoch versions the threshold share set of a key id. A new epoch is only
// minted by the key generation, older epochs stay queryable.
type ShareEpoch uint64

// Next returns the epoch following e.
func (e ShareEpoch) Next() ShareEpoch {
	return e + 1
}

// PartyID is the 1-based share index of a node in the fixed node set. It is the
// x-coordinate of the node's Shamir share.
type PartyID uint16

// PartyIDs converts a list of party ids to the raw share indices used by the crypto package.
func PartyIDs(ids []PartyID) []uint16 {
	out := make([]uint16, len(ids))
	for i, id := range ids {
		out[i] = uint16(id)
	}
	return out
}
