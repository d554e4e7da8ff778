package dkg

import (
	"sync"

	"github.com/oprf-network/oprf-node/model/dkg"
)

// Manager wraps the state of a key generation instance and enforces the transitions
// of the state machine.
type Manager struct {
	sync.Mutex
	state dkg.State
	round int
}

// GetState returns the current state.
func (m *Manager) GetState() dkg.State {
	m.Lock()
	defer m.Unlock()
	return m.state
}

// GetRound returns the current round, zero outside of RoundExchange.
func (m *Manager) GetRound() int {
	m.Lock()
	defer m.Unlock()
	return m.round
}

// SetState moves to the given state. Entering RoundExchange advances the round.
func (m *Manager) SetState(to dkg.State) error {
	m.Lock()
	defer m.Unlock()
	if !dkg.CanTransition(m.state, to) {
		return NewInvalidStateTransitionError(m.state, to)
	}
	if to == dkg.RoundExchange {
		m.round++
	}
	m.state = to
	return nil
}
