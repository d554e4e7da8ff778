package crypto

import "io"

// DLEQProof is a non-interactive Chaum-Pedersen proof that the same secret scalar k
// relates the generator to the public key and the blinded request to the blinded
// response:
//
//	log_G(PK) == log_B(R)
//
// The proof is the challenge c and the response s = r + c·k.
type DLEQProof struct {
	C *Scalar
	S *Scalar
}

// DLEQProofLen is the length of an encoded DLEQ proof.
const DLEQProofLen = 2 * ScalarLen

// DLEQChallenge derives the Fiat-Shamir challenge for the statement (PK, B, R) and
// the prover commitments r·G and r·B. The transcript is hashed to a scalar under
// DomainSeparator.
func DLEQChallenge(publicKey, blinded, evaluation, commitmentG, commitmentB *Element) *Scalar {
	transcript := make([]byte, 0, 6*ElementLen)
	for _, e := range []*Element{Generator(), publicKey, blinded, evaluation, commitmentG, commitmentB} {
		transcript = append(transcript, e.Encode()...)
	}
	return &Scalar{s: group.HashToScalar(transcript, []byte(DomainSeparator))}
}

// ProveDLEQ proves knowledge of k such that publicKey = k·G and evaluation = k·blinded.
func ProveDLEQ(k *Scalar, blinded *Element, rng io.Reader) (*DLEQProof, error) {
	commitment, err := NewDLEQCommitment(blinded, rng)
	if err != nil {
		return nil, err
	}
	defer commitment.Zeroize()

	c := DLEQChallenge(MulGen(k), blinded, blinded.Mul(k), commitment.CommitmentG, commitment.CommitmentB)
	return &DLEQProof{
		C: c,
		S: DLEQProofShare(commitment.Nonce, k, c),
	}, nil
}

// Verify checks the proof for the statement log_G(publicKey) == log_blinded(evaluation).
// Statements involving the identity element are rejected.
func (p *DLEQProof) Verify(publicKey, blinded, evaluation *Element) bool {
	if p == nil || p.C == nil || p.S == nil {
		return false
	}
	if publicKey.IsIdentity() || blinded.IsIdentity() || evaluation.IsIdentity() {
		return false
	}
	// r·G = s·G - c·PK and r·B = s·B - c·R
	commitmentG := MulGen(p.S).Sub(publicKey.Mul(p.C))
	commitmentB := blinded.Mul(p.S).Sub(evaluation.Mul(p.C))
	return DLEQChallenge(publicKey, blinded, evaluation, commitmentG, commitmentB).Equal(p.C)
}

// Encode returns c || s.
func (p *DLEQProof) Encode() []byte {
	out := make([]byte, 0, DLEQProofLen)
	out = append(out, p.C.Encode()...)
	return append(out, p.S.Encode()...)
}

// DecodeDLEQProof decodes a proof produced by Encode.
func DecodeDLEQProof(b []byte) (*DLEQProof, error) {
	if len(b) != DLEQProofLen {
		return nil, invalidInputsErrorf("proof must be %d bytes, got %d", DLEQProofLen, len(b))
	}
	c, err := DecodeScalar(b[:ScalarLen])
	if err != nil {
		return nil, err
	}
	s, err := DecodeScalar(b[ScalarLen:])
	if err != nil {
		return nil, err
	}
	return &DLEQProof{C: c, S: s}, nil
}

// DLEQCommitment is the first message of one participant in a threshold DLEQ proof.
// The nonce is secret and must be used for a single proof share only.
type DLEQCommitment struct {
	Nonce       *Scalar
	CommitmentG *Element // r·G
	CommitmentB *Element // r·B
}

// NewDLEQCommitment samples a fresh nonce r and commits to it against the generator
// and the blinded request.
func NewDLEQCommitment(blinded *Element, rng io.Reader) (*DLEQCommitment, error) {
	r, err := RandomNonZeroScalar(rng)
	if err != nil {
		return nil, err
	}
	return &DLEQCommitment{
		Nonce:       r,
		CommitmentG: MulGen(r),
		CommitmentB: blinded.Mul(r),
	}, nil
}

// Zeroize wipes the nonce.
func (c *DLEQCommitment) Zeroize() {
	if c == nil {
		return
	}
	c.Nonce.Zeroize()
}

// DLEQProofShare computes a participant's response r_i + c·k_i.
func DLEQProofShare(nonce, share, challenge *Scalar) *Scalar {
	return nonce.Add(challenge.Mul(share))
}

// CombineElements computes Σ λ_i·e_i.
func CombineElements(elements []*Element, coefficients []*Scalar) (*Element, error) {
	if len(elements) != len(coefficients) || len(elements) == 0 {
		return nil, invalidInputsErrorf("mismatching number of elements (%d) and coefficients (%d)", len(elements), len(coefficients))
	}
	result := Identity()
	for i, e := range elements {
		result = result.Add(e.Mul(coefficients[i]))
	}
	return result, nil
}

// CombineScalars computes Σ λ_i·s_i.
func CombineScalars(scalars []*Scalar, coefficients []*Scalar) (*Scalar, error) {
	if len(scalars) != len(coefficients) || len(scalars) == 0 {
		return nil, invalidInputsErrorf("mismatching number of scalars (%d) and coefficients (%d)", len(scalars), len(coefficients))
	}
	result := NewScalar()
	for i, s := range scalars {
		result = result.Add(s.Mul(coefficients[i]))
	}
	return result, nil
}

// CombineDLEQProof combines the proof shares of a threshold subset into a single proof
// for the challenge c. With s_i = r_i + c·k_i and Lagrange coefficients λ_i, the
// combined response Σ λ_i·s_i equals r + c·k for the shared key k.
func CombineDLEQProof(challenge *Scalar, proofShares []*Scalar, coefficients []*Scalar) (*DLEQProof, error) {
	s, err := CombineScalars(proofShares, coefficients)
	if err != nil {
		return nil, err
	}
	return &DLEQProof{C: challenge.Copy(), S: s}, nil
}
