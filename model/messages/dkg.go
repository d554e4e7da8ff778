package messages

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// DKGMessageType tags the payload of a DKGMessage.
type DKGMessageType uint8

const (
	// DKGDeal is broadcast in round 1 and carries the dealer's Feldman commitments.
	DKGDeal DKGMessageType = iota + 1
	// DKGShare is sent privately in round 2 and carries the share dealt to the recipient.
	DKGShare
	// DKGVerdict is broadcast in round 3 and carries the sender's acknowledgment of
	// the commitments transcript, or a complaint.
	DKGVerdict
)

func (t DKGMessageType) String() string {
	switch t {
	case DKGDeal:
		return "deal"
	case DKGShare:
		return "share"
	case DKGVerdict:
		return "verdict"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(t))
	}
}

// DKGMessage is the type of message exchanged between key generation participants.
// Orig is the 1-based party id of the sender; the signature is produced with the
// sender's wallet key over SigningPayload.
type DKGMessage struct {
	DKGInstanceID string
	Orig          uint16
	Dest          uint16 // zero for broadcast messages
	Type          DKGMessageType
	Data          []byte
	Signature     []byte
}

// NewDKGMessage creates a new unsigned DKGMessage.
func NewDKGMessage(dkgInstanceID string, orig, dest uint16, msgType DKGMessageType, data []byte) DKGMessage {
	return DKGMessage{
		DKGInstanceID: dkgInstanceID,
		Orig:          orig,
		Dest:          dest,
		Type:          msgType,
		Data:          data,
	}
}

var encMode, _ = cbor.CoreDetEncOptions().EncMode()

// SigningPayload returns the deterministic encoding of every field but the signature.
func (m *DKGMessage) SigningPayload() ([]byte, error) {
	unsigned := *m
	unsigned.Signature = nil
	return encMode.Marshal(&unsigned)
}

// Encode returns the CBOR encoding of the message.
func (m *DKGMessage) Encode() ([]byte, error) {
	return encMode.Marshal(m)
}

// DecodeDKGMessage decodes a CBOR encoded DKGMessage.
func DecodeDKGMessage(b []byte) (*DKGMessage, error) {
	var msg DKGMessage
	if err := cbor.Unmarshal(b, &msg); err != nil {
		return nil, fmt.Errorf("could not decode dkg message: %w", err)
	}
	return &msg, nil
}

// DealPayload carries the Feldman commitments of a dealer's polynomial.
type DealPayload struct {
	Commitments [][]byte
}

// SharePayload carries the share dealt to the recipient.
type SharePayload struct {
	Share []byte
}

// VerdictPayload carries the sender's view of round 1. Transcript is the hash over all
// deals the sender accepted; Complaint names the accused dealers when Ack is false.
type VerdictPayload struct {
	Ack        bool
	Transcript []byte
	Complaint  []uint16
	Reason     string
}

// EncodePayload CBOR-encodes a message payload.
func EncodePayload(payload interface{}) ([]byte, error) {
	return encMode.Marshal(payload)
}

// DecodePayload decodes a CBOR-encoded payload into v.
func DecodePayload(data []byte, v interface{}) error {
	return cbor.Unmarshal(data, v)
}
