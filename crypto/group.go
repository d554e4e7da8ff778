package crypto

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"

	circl "github.com/cloudflare/circl/group"
)

// Scalar is an element of the scalar field of the group.
// Scalars are treated as immutable by the arithmetic methods, which always
// return a new value.
type Scalar struct {
	s circl.Scalar
}

// Element is a point of the prime-order group.
type Element struct {
	e circl.Element
}

// NewScalar returns the zero scalar.
func NewScalar() *Scalar {
	return &Scalar{s: group.NewScalar()}
}

// ScalarFromUint64 returns the scalar with integer value v.
func ScalarFromUint64(v uint64) *Scalar {
	return &Scalar{s: group.NewScalar().SetUint64(v)}
}

// RandomScalar samples a uniformly random scalar from rng.
// The returned error is non-nil only if rng fails to produce enough bytes.
func RandomScalar(rng io.Reader) (*Scalar, error) {
	buf := make([]byte, randomScalarBytes)
	defer wipe(buf)
	if _, err := io.ReadFull(rng, buf); err != nil {
		return nil, fmt.Errorf("could not read randomness: %w", err)
	}
	x := new(big.Int).SetBytes(buf)
	x.Mod(x, groupOrder)
	s := &Scalar{s: group.NewScalar().SetBigInt(x)}
	x.SetUint64(0)
	return s, nil
}

// RandomNonZeroScalar samples a uniformly random non-zero scalar from rng.
func RandomNonZeroScalar(rng io.Reader) (*Scalar, error) {
	for {
		s, err := RandomScalar(rng)
		if err != nil {
			return nil, err
		}
		if !s.IsZero() {
			return s, nil
		}
	}
}

// QueryFromBytes maps an arbitrary client input into the scalar domain.
func QueryFromBytes(msg []byte) *Scalar {
	return &Scalar{s: group.HashToScalar(msg, []byte(queryTag))}
}

// DecodeScalar decodes a canonically encoded scalar.
func DecodeScalar(b []byte) (*Scalar, error) {
	if len(b) != ScalarLen {
		return nil, invalidInputsErrorf("scalar must be %d bytes, got %d", ScalarLen, len(b))
	}
	s := group.NewScalar()
	if err := s.UnmarshalBinary(b); err != nil {
		return nil, invalidInputsErrorf("invalid scalar encoding: %w", err)
	}
	// reject non-reduced encodings so that every scalar has exactly one wire form
	enc, err := s.MarshalBinary()
	if err != nil || !bytes.Equal(enc, b) {
		return nil, invalidInputsErrorf("non-canonical scalar encoding")
	}
	return &Scalar{s: s}, nil
}

// Encode returns the canonical encoding of the scalar.
func (a *Scalar) Encode() []byte {
	b, err := a.s.MarshalBinary()
	if err != nil {
		// scalar marshalling cannot fail for Ristretto255
		return make([]byte, ScalarLen)
	}
	return b
}

func (a *Scalar) Add(b *Scalar) *Scalar {
	return &Scalar{s: group.NewScalar().Add(a.s, b.s)}
}

func (a *Scalar) Sub(b *Scalar) *Scalar {
	return &Scalar{s: group.NewScalar().Sub(a.s, b.s)}
}

func (a *Scalar) Mul(b *Scalar) *Scalar {
	return &Scalar{s: group.NewScalar().Mul(a.s, b.s)}
}

func (a *Scalar) Neg() *Scalar {
	return &Scalar{s: group.NewScalar().Neg(a.s)}
}

// Inverse returns the multiplicative inverse of the scalar, or ErrZeroScalar.
func (a *Scalar) Inverse() (*Scalar, error) {
	if a.IsZero() {
		return nil, ErrZeroScalar
	}
	return &Scalar{s: group.NewScalar().Inv(a.s)}, nil
}

func (a *Scalar) Equal(b *Scalar) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.s.IsEqual(b.s)
}

func (a *Scalar) IsZero() bool {
	return a.s.IsEqual(group.NewScalar())
}

func (a *Scalar) Copy() *Scalar {
	return &Scalar{s: a.s.Copy()}
}

// Zeroize overwrites the scalar with zero. It is safe to call on a nil scalar.
func (a *Scalar) Zeroize() {
	if a == nil || a.s == nil {
		return
	}
	a.s.SetUint64(0)
}

// Generator returns the fixed generator of the group.
func Generator() *Element {
	return &Element{e: group.Generator()}
}

// Identity returns the identity element of the group.
func Identity() *Element {
	return &Element{e: group.Identity()}
}

// MulGen returns s·G for the fixed generator G.
func MulGen(s *Scalar) *Element {
	return &Element{e: group.NewElement().MulGen(s.s)}
}

// hashToElement hashes msg to a group element under the given domain tag.
func hashToElement(msg []byte, dst string) *Element {
	return &Element{e: group.HashToElement(msg, []byte(dst))}
}

// DecodeElement decodes a canonically encoded group element. Invalid encodings are
// rejected, the identity is accepted (see DecodeNonIdentityElement).
func DecodeElement(b []byte) (*Element, error) {
	if len(b) != ElementLen {
		return nil, invalidInputsErrorf("element must be %d bytes, got %d", ElementLen, len(b))
	}
	e := group.NewElement()
	if err := e.UnmarshalBinary(b); err != nil {
		return nil, invalidInputsErrorf("invalid element encoding: %w", err)
	}
	return &Element{e: e}, nil
}

// DecodeNonIdentityElement decodes an element and rejects the identity.
func DecodeNonIdentityElement(b []byte) (*Element, error) {
	e, err := DecodeElement(b)
	if err != nil {
		return nil, err
	}
	if e.IsIdentity() {
		return nil, ErrIdentityElement
	}
	return e, nil
}

// Encode returns the canonical encoding of the element.
func (a *Element) Encode() []byte {
	b, err := a.e.MarshalBinary()
	if err != nil {
		// element marshalling cannot fail for Ristretto255
		return make([]byte, ElementLen)
	}
	return b
}

func (a *Element) String() string {
	return hex.EncodeToString(a.Encode())
}

func (a *Element) Add(b *Element) *Element {
	return &Element{e: group.NewElement().Add(a.e, b.e)}
}

func (a *Element) Sub(b *Element) *Element {
	neg := group.NewElement().Neg(b.e)
	return &Element{e: group.NewElement().Add(a.e, neg)}
}

// Mul returns s·a.
func (a *Element) Mul(s *Scalar) *Element {
	return &Element{e: group.NewElement().Mul(a.e, s.s)}
}

func (a *Element) Equal(b *Element) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.e.IsEqual(b.e)
}

func (a *Element) IsIdentity() bool {
	return a.e.IsEqual(group.Identity())
}

func (a *Element) Copy() *Element {
	return &Element{e: a.e.Copy()}
}

func wipe(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
