package oprf

import (
	"encoding/json"

	"github.com/google/uuid"
)

// OprfRequest is the first message of a client session: the blinded query together
// with the deployment specific authentication payload.
type OprfRequest struct {
	RequestID    uuid.UUID       `json:"request_id"`
	Module       string          `json:"module"`
	KeyID        KeyID           `json:"key_id"`
	Epoch        ShareEpoch      `json:"epoch"`
	BlindedQuery []byte          `json:"blinded_query"`
	Auth         json.RawMessage `json:"auth,omitempty"`
}

// PartialResponse is one node's evaluation of its share against the blinded query,
// along with its commitment for the threshold DLEQ proof.
type PartialResponse struct {
	RequestID   uuid.UUID `json:"request_id"`
	PartyID     PartyID   `json:"party_id"`
	Evaluation  []byte    `json:"evaluation"`
	CommitmentG []byte    `json:"commitment_g"`
	CommitmentB []byte    `json:"commitment_b"`
	PublicKey   []byte    `json:"public_key"`
}

// Contribution returns the part of the response that is echoed in the challenge round.
func (r *PartialResponse) Contribution() Contribution {
	return Contribution{
		PartyID:     r.PartyID,
		Evaluation:  r.Evaluation,
		CommitmentG: r.CommitmentG,
		CommitmentB: r.CommitmentB,
	}
}

// Contribution is a partial response selected by the client for combination.
type Contribution struct {
	PartyID     PartyID `json:"party_id"`
	Evaluation  []byte  `json:"evaluation"`
	CommitmentG []byte  `json:"commitment_g"`
	CommitmentB []byte  `json:"commitment_b"`
}

// ChallengeRequest is the second message of a client session. It lists the
// contributions of all selected parties, so every party can recompute the challenge.
type ChallengeRequest struct {
	RequestID     uuid.UUID      `json:"request_id"`
	Contributions []Contribution `json:"contributions"`
}

// ChallengeResponse carries one party's share of the DLEQ proof response.
type ChallengeResponse struct {
	RequestID  uuid.UUID `json:"request_id"`
	PartyID    PartyID   `json:"party_id"`
	ProofShare []byte    `json:"proof_share"`
}

// Error codes carried by ErrorMessage.
const (
	ErrCodeUnauthorized   = "unauthorized"
	ErrCodeNotFound       = "not_found"
	ErrCodeInvalidRequest = "invalid_request"
	ErrCodeInternal       = "internal"
)

// ErrorMessage is returned by a node instead of a response when it rejects a request.
type ErrorMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ServerMessage is the envelope of every node to client message. Exactly one field is set.
type ServerMessage struct {
	Partial *PartialResponse   `json:"partial,omitempty"`
	Proof   *ChallengeResponse `json:"proof,omitempty"`
	Error   *ErrorMessage      `json:"error,omitempty"`
}
