package crypto

// LagrangeCoefficient computes the Lagrange coefficient at zero of participant i
// within the set of participants, which are identified by their non-zero share index:
//
//	λ_i = Π_{j ≠ i} x_j / (x_j - x_i)
//
// Combining the evaluations of any threshold subset with these coefficients
// reconstructs the evaluation under the shared secret, without reconstructing
// the secret itself.
func LagrangeCoefficient(participants []uint16, i uint16) (*Scalar, error) {
	if i == 0 {
		return nil, invalidInputsErrorf("participant index must be non-zero")
	}
	seen := make(map[uint16]struct{}, len(participants))
	found := false
	for _, p := range participants {
		if p == 0 {
			return nil, invalidInputsErrorf("participant index must be non-zero")
		}
		if _, dup := seen[p]; dup {
			return nil, invalidInputsErrorf("duplicate participant index %d", p)
		}
		seen[p] = struct{}{}
		if p == i {
			found = true
		}
	}
	if !found {
		return nil, invalidInputsErrorf("participant %d is not part of the set", i)
	}

	xi := ScalarFromUint64(uint64(i))
	num := ScalarFromUint64(1)
	den := ScalarFromUint64(1)
	for _, p := range participants {
		if p == i {
			continue
		}
		xj := ScalarFromUint64(uint64(p))
		num = num.Mul(xj)
		den = den.Mul(xj.Sub(xi))
	}
	inv, err := den.Inverse()
	if err != nil {
		// cannot happen for distinct indices smaller than the group order
		return nil, invalidInputsErrorf("degenerate participant set: %w", err)
	}
	return num.Mul(inv), nil
}

// LagrangeCoefficients computes the coefficients of all participants of the set,
// in the order of the input.
func LagrangeCoefficients(participants []uint16) ([]*Scalar, error) {
	coefficients := make([]*Scalar, 0, len(participants))
	for _, p := range participants {
		l, err := LagrangeCoefficient(participants, p)
		if err != nil {
			return nil, err
		}
		coefficients = append(coefficients, l)
	}
	return coefficients, nil
}
