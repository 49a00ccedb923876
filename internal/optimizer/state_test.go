package optimizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable(t *testing.T) {
	tests := []struct {
		from        State
		event       Event
		retriesLeft int
		want        State
	}{
		{StatePending, EventSubmit, 0, StateAwaitingOracle},
		{StateAwaitingOracle, EventOracleReturned, 0, StateVerifying},
		{StateAwaitingOracle, EventOracleFailed, 1, StateRejected},
		{StateAwaitingOracle, EventOracleMalformed, 1, StateRejected},
		{StateVerifying, EventVerified, 0, StateAccepted},
		{StateVerifying, EventViolationsFound, 1, StateRetrying},
		{StateVerifying, EventViolationsFound, 0, StateRejected},
		{StateRetrying, EventResubmit, 0, StateAwaitingOracle},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"/"+tt.event.String(), func(t *testing.T) {
			got, err := Transition(tt.from, tt.event, tt.retriesLeft)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTransitionRejectsUndefinedPairs(t *testing.T) {
	valid := map[State][]Event{
		StatePending:        {EventSubmit},
		StateAwaitingOracle: {EventOracleReturned, EventOracleFailed, EventOracleMalformed},
		StateVerifying:      {EventVerified, EventViolationsFound},
		StateRetrying:       {EventResubmit},
	}

	states := []State{StatePending, StateAwaitingOracle, StateVerifying, StateRetrying, StateAccepted, StateRejected}
	events := []Event{EventSubmit, EventOracleReturned, EventOracleFailed, EventOracleMalformed, EventVerified, EventViolationsFound, EventResubmit}

	for _, s := range states {
		for _, e := range events {
			allowed := false
			for _, v := range valid[s] {
				if v == e {
					allowed = true
				}
			}
			got, err := Transition(s, e, 1)
			if allowed {
				assert.NoError(t, err, "%s on %s", e, s)
				continue
			}
			assert.ErrorIs(t, err, ErrInvalidTransition, "%s on %s", e, s)
			assert.Equal(t, s, got)
		}
	}
}

func TestTerminalStates(t *testing.T) {
	assert.True(t, StateAccepted.Terminal())
	assert.True(t, StateRejected.Terminal())
	assert.False(t, StateRetrying.Terminal())
	assert.False(t, StatePending.Terminal())
}

func TestMachineConsumesRetryBudget(t *testing.T) {
	m := NewMachine(1)
	assert.Equal(t, 1, m.RetriesLeft())

	for _, e := range []Event{EventSubmit, EventOracleReturned, EventViolationsFound, EventResubmit, EventOracleReturned} {
		_, err := m.Fire(e)
		require.NoError(t, err)
	}
	assert.Equal(t, 0, m.RetriesLeft())
	assert.Equal(t, 1, m.Retries())

	state, err := m.Fire(EventViolationsFound)
	require.NoError(t, err)
	assert.Equal(t, StateRejected, state)

	_, err = m.Fire(EventResubmit)
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, StateRejected, m.State())
	assert.Len(t, m.History(), 6)
}

func TestMachineZeroBudget(t *testing.T) {
	m := NewMachine(-3)
	_, _ = m.Fire(EventSubmit)
	_, _ = m.Fire(EventOracleReturned)
	state, err := m.Fire(EventViolationsFound)
	require.NoError(t, err)
	assert.Equal(t, StateRejected, state)
}

func TestStateText(t *testing.T) {
	b, err := StateAwaitingOracle.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "AwaitingOracle", string(b))
	assert.Equal(t, "State(42)", State(42).String())
}

func TestStateUnmarshalText(t *testing.T) {
	var s State
	require.NoError(t, s.UnmarshalText([]byte("Rejected")))
	assert.Equal(t, StateRejected, s)
	assert.Error(t, s.UnmarshalText([]byte("Done")))
}
