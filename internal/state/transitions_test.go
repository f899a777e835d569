package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitionTable_Lookup(t *testing.T) {
	table := NewTransitionTable(4)
	require.NoError(t, table.Add(0, Press(0), 1))
	require.NoError(t, table.Add(1, Press(0), 2))
	require.NoError(t, table.Add(1, Release(0), 3))
	require.NoError(t, table.Add(2, Timeout(), 0))
	require.NoError(t, table.Add(3, Press(1), 3))

	testCases := []struct {
		name   string
		from   State
		event  Event
		to     State
		exists bool
	}{
		{name: "press moves 0 to 1", from: 0, event: Press(0), to: 1, exists: true},
		{name: "same event other state", from: 1, event: Press(0), to: 2, exists: true},
		{name: "release distinct from press", from: 1, event: Release(0), to: 3, exists: true},
		{name: "timeout", from: 2, event: Timeout(), to: 0, exists: true},
		{name: "self transition", from: 3, event: Press(1), to: 3, exists: true},
		{name: "input index matters", from: 0, event: Press(1), exists: false},
		{name: "kind matters", from: 0, event: Release(0), exists: false},
		{name: "no implicit transitions", from: 2, event: Press(0), exists: false},
		{name: "none never matches", from: 0, event: NoEvent, exists: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			to, ok := table.Lookup(tc.from, tc.event)
			assert.Equal(t, tc.exists, ok)
			if tc.exists {
				assert.Equal(t, tc.to, to)
			}
		})
	}
}

func TestTransitionTable_AddErrors(t *testing.T) {
	table := NewTransitionTable(2)
	require.NoError(t, table.Add(0, Press(0), 1))

	testCases := []struct {
		name    string
		from    State
		event   Event
		to      State
		wantErr error
	}{
		{name: "from out of range", from: 2, event: Press(0), to: 0, wantErr: ErrStateOutOfRange},
		{name: "negative to", from: 0, event: Press(1), to: -1, wantErr: ErrStateOutOfRange},
		{name: "none event", from: 0, event: NoEvent, to: 1, wantErr: ErrInvalidEvent},
		{name: "input index too high", from: 0, event: Press(MaxInputs), to: 1, wantErr: ErrInvalidEvent},
		{name: "negative input index", from: 0, event: Release(-1), to: 1, wantErr: ErrInvalidEvent},
		{name: "duplicate", from: 0, event: Press(0), to: 0, wantErr: ErrDuplicateTransition},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := table.Add(tc.from, tc.event, tc.to)
			assert.ErrorIs(t, err, tc.wantErr)
		})
	}

	// the first registration survives a rejected duplicate
	to, ok := table.Lookup(0, Press(0))
	require.True(t, ok)
	assert.Equal(t, State(1), to)
	assert.Equal(t, 1, table.Len())
}

func TestTransitionTable_TransitionsSorted(t *testing.T) {
	table := NewTransitionTable(3)
	require.NoError(t, table.Add(2, Press(0), 0))
	require.NoError(t, table.Add(0, Timeout(), 1))
	require.NoError(t, table.Add(0, Press(1), 2))
	require.NoError(t, table.Add(0, Press(0), 1))

	assert.Equal(t, []Transition{
		{From: 0, Event: Press(0), To: 1},
		{From: 0, Event: Press(1), To: 2},
		{From: 0, Event: Timeout(), To: 1},
		{From: 2, Event: Press(0), To: 0},
	}, table.Transitions())
}

func TestEvent_StringAndParse(t *testing.T) {
	testCases := []struct {
		event Event
		name  string
	}{
		{event: Press(0), name: "BTN1_PRESS"},
		{event: Release(0), name: "BTN1_RELEASE"},
		{event: Press(3), name: "BTN4_PRESS"},
		{event: Release(2), name: "BTN3_RELEASE"},
		{event: Timeout(), name: "TIMEOUT"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.name, tc.event.String())

			parsed, err := ParseEvent(tc.name)
			require.NoError(t, err)
			assert.Equal(t, tc.event, parsed)
		})
	}

	assert.Equal(t, "NONE", NoEvent.String())

	for _, bad := range []string{"NONE", "BTN0_PRESS", "BTN5_PRESS", "BTN1_HOLD", "press"} {
		_, err := ParseEvent(bad)
		assert.ErrorIs(t, err, ErrInvalidEvent, bad)
	}
}
