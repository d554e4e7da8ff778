package crypto

import (
	"io"
)

// Polynomial is a polynomial over the scalar field, lowest degree coefficient first.
// The constant term is the dealt secret.
type Polynomial []*Scalar

// RandomPolynomial samples a polynomial of the given degree with uniformly random coefficients.
func RandomPolynomial(degree int, rng io.Reader) (Polynomial, error) {
	if degree < 0 {
		return nil, invalidInputsErrorf("polynomial degree must be non-negative, got %d", degree)
	}
	p := make(Polynomial, degree+1)
	for k := range p {
		c, err := RandomScalar(rng)
		if err != nil {
			p.Zeroize()
			return nil, err
		}
		p[k] = c
	}
	return p, nil
}

// Evaluate evaluates the polynomial at x using Horner's rule.
func (p Polynomial) Evaluate(x *Scalar) *Scalar {
	result := NewScalar()
	for k := len(p) - 1; k >= 0; k-- {
		result = result.Mul(x).Add(p[k])
	}
	return result
}

// EvaluateAt evaluates the polynomial at the share index of a participant.
func (p Polynomial) EvaluateAt(index uint16) *Scalar {
	return p.Evaluate(ScalarFromUint64(uint64(index)))
}

// Commit returns the Feldman commitments a_k·G of all coefficients.
func (p Polynomial) Commit() []*Element {
	commitments := make([]*Element, len(p))
	for k, c := range p {
		commitments[k] = MulGen(c)
	}
	return commitments
}

// Zeroize wipes all coefficients.
func (p Polynomial) Zeroize() {
	for _, c := range p {
		c.Zeroize()
	}
}

// EvaluateCommitments computes Σ_k C_k·index^k, which is the public key of the share
// dealt to the participant with the given index.
func EvaluateCommitments(commitments []*Element, index uint16) *Element {
	x := ScalarFromUint64(uint64(index))
	result := Identity()
	for k := len(commitments) - 1; k >= 0; k-- {
		result = result.Mul(x).Add(commitments[k])
	}
	return result
}

// VerifyShare checks a dealt share against the dealer's Feldman commitments.
func VerifyShare(commitments []*Element, index uint16, share *Scalar) bool {
	if len(commitments) == 0 || index == 0 || share == nil {
		return false
	}
	return MulGen(share).Equal(EvaluateCommitments(commitments, index))
}

// SplitSecret deals a secret into n Shamir shares with reconstruction threshold t,
// using a single trusted dealer. Share i (0-based) belongs to participant index i+1.
// It is meant for tests and local development networks, production key material
// is produced by the distributed key generation.
func SplitSecret(secret *Scalar, threshold, size int, rng io.Reader) ([]*Scalar, []*Element, error) {
	if threshold < 1 || threshold > size {
		return nil, nil, invalidInputsErrorf("invalid threshold %d for %d participants", threshold, size)
	}
	if size > 0xffff {
		return nil, nil, invalidInputsErrorf("too many participants: %d", size)
	}
	p, err := RandomPolynomial(threshold-1, rng)
	if err != nil {
		return nil, nil, err
	}
	defer p.Zeroize()
	p[0].Zeroize()
	p[0] = secret.Copy()

	commitments := p.Commit()
	shares := make([]*Scalar, size)
	for i := range shares {
		shares[i] = p.EvaluateAt(uint16(i + 1))
	}
	return shares, commitments, nil
}
