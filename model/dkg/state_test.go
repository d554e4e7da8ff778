package dkg

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	allowed := map[State][]State{
		NotStarted:    {RoundExchange, Aborted},
		RoundExchange: {RoundExchange, Finalizing, Aborted},
		Finalizing:    {Committed, Aborted},
		Committed:     nil,
		Aborted:       nil,
	}
	states := []State{NotStarted, RoundExchange, Finalizing, Committed, Aborted}
	for from, targets := range allowed {
		for _, to := range states {
			expected := false
			for _, target := range targets {
				if target == to {
					expected = true
				}
			}
			assert.Equal(t, expected, CanTransition(from, to), "%s -> %s", from, to)
		}
	}
}

func TestState_IsTerminal(t *testing.T) {
	assert.True(t, Committed.IsTerminal())
	assert.True(t, Aborted.IsTerminal())
	assert.False(t, RoundExchange.IsTerminal())
	assert.Equal(t, "State(9)", State(9).String())
}
