package crypto

import (
	"math/big"

	circl "github.com/cloudflare/circl/group"
)

// group is the prime-order group all OPRF and key-generation arithmetic runs in.
var group = circl.Ristretto255

const (
	// ScalarLen is the length of a canonically encoded scalar.
	ScalarLen = 32
	// ElementLen is the length of a canonically encoded group element.
	ElementLen = 32

	// randomScalarBytes is the number of random bytes reduced modulo the group order
	// when sampling a scalar. Sampling twice the order length keeps the bias negligible.
	randomScalarBytes = 64
)

const (
	// DomainSeparator binds DLEQ proofs to this protocol instance.
	DomainSeparator = "OPRF-NODE-V1-ristretto255-DLEQ"

	// queryTag is used to map client inputs into the scalar domain.
	queryTag = "OPRF-NODE-V1-ristretto255-Query"

	// hashToGroupTag is used to map queries to group elements before blinding.
	hashToGroupTag = "OPRF-NODE-V1-ristretto255-HashToGroup"

	// finalizeTag is used to derive the output from the unblinded evaluation.
	finalizeTag = "OPRF-NODE-V1-ristretto255-Finalize"
)

// groupOrder is the order of the Ristretto255 group,
// l = 2^252 + 27742317777372353535851937790883648493.
var groupOrder, _ = new(big.Int).SetString("7237005577332262213973186563042994240857116359379907606001950938285454250989", 10)
