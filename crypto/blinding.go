package crypto

import (
	"io"
)

// BlindingFactor is the client-side random scalar masking a query. It must be used for
// a single query, is never transmitted and must be wiped once the output is produced.
type BlindingFactor struct {
	beta *Scalar
}

// NewBlindingFactor samples a fresh non-zero blinding factor.
func NewBlindingFactor(rng io.Reader) (*BlindingFactor, error) {
	beta, err := RandomNonZeroScalar(rng)
	if err != nil {
		return nil, err
	}
	return &BlindingFactor{beta: beta}, nil
}

// Blind maps the query to the group and masks it: B = β·H(query).
func (b *BlindingFactor) Blind(query *Scalar) (*Element, error) {
	if b.beta.IsZero() {
		return nil, ErrZeroScalar
	}
	blinded := HashQuery(query).Mul(b.beta)
	if blinded.IsIdentity() {
		return nil, ErrIdentityElement
	}
	return blinded, nil
}

// Unblind removes the blinding factor from an evaluation: β⁻¹·R.
func (b *BlindingFactor) Unblind(evaluation *Element) (*Element, error) {
	inv, err := b.beta.Inverse()
	if err != nil {
		return nil, err
	}
	defer inv.Zeroize()
	return evaluation.Mul(inv), nil
}

// Zeroize wipes the blinding factor. It is safe to call more than once.
func (b *BlindingFactor) Zeroize() {
	if b == nil {
		return
	}
	b.beta.Zeroize()
}

// HashQuery maps a query to the group element that is evaluated under the key.
func HashQuery(query *Scalar) *Element {
	return hashToElement(query.Encode(), hashToGroupTag)
}

// Evaluate computes the unblinded evaluation k·H(query) directly. It is the
// reference used by tests and by holders of a full key.
func Evaluate(key *Scalar, query *Scalar) *Element {
	return HashQuery(query).Mul(key)
}

// Finalize derives the OPRF output from the query and its unblinded evaluation.
func Finalize(query *Scalar, unblinded *Element) *Scalar {
	msg := make([]byte, 0, ScalarLen+ElementLen)
	msg = append(msg, query.Encode()...)
	msg = append(msg, unblinded.Encode()...)
	return &Scalar{s: group.HashToScalar(msg, []byte(finalizeTag))}
}
