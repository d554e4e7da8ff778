package dkg

import (
	"fmt"
)

// State is the state of one key generation instance for a (key id, epoch) pair.
//
//	NotStarted → RoundExchange(k) → Finalizing → Committed
//	     └────────────┴──────────────────┴──────→ Aborted
type State int

const (
	NotStarted State = iota
	RoundExchange
	Finalizing
	Committed
	Aborted
)

func (s State) String() string {
	switch s {
	case NotStarted:
		return "NotStarted"
	case RoundExchange:
		return "RoundExchange"
	case Finalizing:
		return "Finalizing"
	case Committed:
		return "Committed"
	case Aborted:
		return "Aborted"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// IsTerminal returns true for states no transition leaves.
func (s State) IsTerminal() bool {
	return s == Committed || s == Aborted
}

// CanTransition reports whether the state machine may move from one state to another.
// RoundExchange may transition to itself, moving to the next round.
func CanTransition(from, to State) bool {
	switch from {
	case NotStarted:
		return to == RoundExchange || to == Aborted
	case RoundExchange:
		return to == RoundExchange || to == Finalizing || to == Aborted
	case Finalizing:
		return to == Committed || to == Aborted
	default:
		return false
	}
}

// Record is the durable record of a key generation instance. It is only written at the
// terminal boundaries: once the share is committed to the secret manager, once the
// public key has been announced, or once the instance aborted.
type Record struct {
	State     State
	Announced bool
	PublicKey []byte
	Reason    string
}
