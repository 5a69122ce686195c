package statemachine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func always() bool { return true }

func never() bool { return false }

// buildSwitch builds the debounced switch: Off -> WaitOn -> On, forced back
// to Off whenever the input drops.
func buildSwitch(t *testing.T, input *bool, clock Clock) *Machine[string] {
	t.Helper()

	var m *Machine[string]

	m, err := NewBuilder("Off", WithName("switch"), WithClock(clock)).
		AddForceState("Off", func() bool { return !*input }, nil).
		AddTransition("Off", "WaitOn", func() bool { return *input }, nil).
		AddTransition("WaitOn", "On", func() bool {
			return *input && m.TimeInState() > 50*time.Millisecond
		}, nil).
		DisableValidationForStates("On").
		Build()
	require.NoError(t, err)

	return m
}

func TestMachineDebouncedSwitch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("input low stays off", func(t *testing.T) {
		t.Parallel()

		input := false
		m := buildSwitch(t, &input, newManualClock())

		require.NoError(t, m.Tick(ctx))
		assert.Equal(t, "Off", m.CurrentState())
	})

	t.Run("input high waits then switches on", func(t *testing.T) {
		t.Parallel()

		input := true
		clock := newManualClock()
		m := buildSwitch(t, &input, clock)

		require.NoError(t, m.Tick(ctx))
		assert.Equal(t, "WaitOn", m.CurrentState())

		require.NoError(t, m.Tick(ctx))
		assert.Equal(t, "WaitOn", m.CurrentState())

		clock.Advance(60 * time.Millisecond)

		require.NoError(t, m.Tick(ctx))
		assert.Equal(t, "On", m.CurrentState())

		input = false

		require.NoError(t, m.Tick(ctx))
		assert.Equal(t, "Off", m.CurrentState())
	})
}

func TestMachineFixedPointIsStable(t *testing.T) {
	t.Parallel()

	m, err := New("Idle", func(b *Builder[string]) {
		b.AddTransition("Idle", "Busy", never, nil)
		b.AddTransition("Busy", "Idle", never, nil)
	})
	require.NoError(t, err)

	for range 10 {
		require.NoError(t, m.Tick(context.Background()))
		assert.Equal(t, "Idle", m.CurrentState())
	}
}

func TestMachineDeclarationOrder(t *testing.T) {
	t.Parallel()

	var fired []string

	record := func(name string) Action {
		return Do(func() { fired = append(fired, name) })
	}

	m, err := NewBuilder("A").
		AddTransition("A", "B", always, record("first")).Resume(false).
		AddTransition("A", "C", always, record("second")).
		AddTransition("B", "A", never, nil).
		AddTransition("C", "A", never, nil).
		Build()
	require.NoError(t, err)

	require.NoError(t, m.Tick(context.Background()))
	assert.Equal(t, "B", m.CurrentState())
	assert.Equal(t, []string{"first"}, fired)
}

func TestMachineRulesSeeEarlierWrites(t *testing.T) {
	t.Parallel()

	m, err := NewBuilder("A").
		AddTransition("A", "B", always, nil).
		AddTransition("B", "C", always, nil).
		AddTransition("C", "A", never, nil).
		Build()
	require.NoError(t, err)

	require.NoError(t, m.Tick(context.Background()))
	assert.Equal(t, "C", m.CurrentState())
}

func TestMachineForceStatePriority(t *testing.T) {
	t.Parallel()

	otherFired := false

	m, err := NewBuilder("Running").
		AddForceState("Halted", always, nil).
		AddTransition("Running", "Done", always, Do(func() { otherFired = true })).
		AddTransition("Halted", "Running", never, nil).
		AddTransition("Done", "Running", never, nil).
		Build()
	require.NoError(t, err)

	require.NoError(t, m.Tick(context.Background()))
	assert.Equal(t, "Halted", m.CurrentState())
	assert.False(t, otherFired)

	// Already there: the force state does not fire and the tick resumes.
	require.NoError(t, m.Tick(context.Background()))
	assert.Equal(t, "Halted", m.CurrentState())
}

func TestMachineStateToggle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("dominant condition suppresses reset", func(t *testing.T) {
		t.Parallel()

		m, err := NewBuilder("Low").
			AddStateToggle("Low", "High", always, always, nil, nil).
			Build()
		require.NoError(t, err)

		require.True(t, m.SetState(ctx, "High"))
		require.NoError(t, m.Tick(ctx))
		assert.Equal(t, "High", m.CurrentState())
	})

	t.Run("set then reset", func(t *testing.T) {
		t.Parallel()

		set, reset := true, false
		sets, resets := 0, 0

		m, err := NewBuilder("Low").
			AddStateToggle("Low", "High",
				func() bool { return set },
				func() bool { return reset },
				Do(func() { sets++ }),
				Do(func() { resets++ }),
			).
			Build()
		require.NoError(t, err)

		require.NoError(t, m.Tick(ctx))
		assert.Equal(t, "High", m.CurrentState())

		set, reset = false, true

		require.NoError(t, m.Tick(ctx))
		assert.Equal(t, "Low", m.CurrentState())
		assert.Equal(t, 1, sets)
		assert.Equal(t, 1, resets)
	})

	t.Run("conditions are not evaluated in other states", func(t *testing.T) {
		t.Parallel()

		dominantCalls, resetCalls := 0, 0

		m, err := NewBuilder("X").
			AddStateToggle("Low", "High",
				func() bool {
					dominantCalls++

					return true
				},
				func() bool {
					resetCalls++

					return false
				},
				nil, nil,
			).
			AddTransition("X", "Low", never, nil).
			DisableValidation().
			Build()
		require.NoError(t, err)

		for range 3 {
			require.NoError(t, m.Tick(ctx))
		}

		assert.Equal(t, "X", m.CurrentState())
		assert.Zero(t, dominantCalls)
		assert.Zero(t, resetCalls)

		require.True(t, m.SetState(ctx, "Low"))
		require.NoError(t, m.Tick(ctx))
		assert.Equal(t, "High", m.CurrentState())
		assert.Equal(t, 1, dominantCalls)
	})

	t.Run("no bounce within a tick", func(t *testing.T) {
		t.Parallel()

		m, err := NewBuilder("Low").
			AddStateToggle("Low", "High", always, never, nil, nil).
			Build()
		require.NoError(t, err)

		require.NoError(t, m.Tick(ctx))
		require.NoError(t, m.Tick(ctx))
		assert.Equal(t, "High", m.CurrentState())
	})
}

func TestMachineAnyAndContainsTransitions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	m, err := NewBuilder("Door.Closed").
		AddTransition("Door.Closed", "Door.Open", always, nil).Resume(false).
		AddContainsTransition("Door", "Alarm", func() bool { return true }, nil).
		AddAnyTransition([]string{"Alarm", "Door.Closed"}, "Reset", always, nil).
		AddTransition("Reset", "Door.Closed", never, nil).
		Build()
	require.NoError(t, err)

	require.NoError(t, m.Tick(ctx))
	assert.Equal(t, "Door.Open", m.CurrentState())

	require.NoError(t, m.Tick(ctx))
	assert.Equal(t, "Reset", m.CurrentState())

	// Reset contains no "Door" and is no member of the any-set.
	require.NoError(t, m.Tick(ctx))
	assert.Equal(t, "Reset", m.CurrentState())
}

func TestMachineStateAction(t *testing.T) {
	t.Parallel()

	runs := 0

	m, err := NewBuilder("Heating").
		AddStateAction("Heating", Do(func() { runs++ })).
		AddTransition("Heating", "Idle", never, nil).
		AddTransition("Idle", "Heating", never, nil).
		Build()
	require.NoError(t, err)

	for range 3 {
		require.NoError(t, m.Tick(context.Background()))
	}

	assert.Equal(t, 3, runs)
	assert.Equal(t, "Heating", m.CurrentState())
}

func TestMachineActionErrorKeepsStateChange(t *testing.T) {
	t.Parallel()

	errBoom := errors.New("boom")
	laterRan := false

	m, err := NewBuilder("A").
		AddTransition("A", "B", always, func(context.Context) error { return errBoom }).
		AddStateAction("B", Do(func() { laterRan = true })).
		AddTransition("B", "A", never, nil).
		Build()
	require.NoError(t, err)

	err = m.Tick(context.Background())
	require.ErrorIs(t, err, errBoom)

	var ruleErr *RuleError
	require.ErrorAs(t, err, &ruleErr)
	assert.Equal(t, 0, ruleErr.RuleIndex)
	assert.Equal(t, KindStateTransition, ruleErr.Kind)

	assert.Equal(t, "B", m.CurrentState())
	assert.False(t, laterRan)
}

func TestMachinePanicsPropagate(t *testing.T) {
	t.Parallel()

	m, err := NewBuilder("A").
		AddTransition("A", "B", func() bool { panic("condition exploded") }, nil).
		AddTransition("B", "A", never, nil).
		Build()
	require.NoError(t, err)

	assert.PanicsWithValue(t, "condition exploded", func() {
		_ = m.Tick(context.Background())
	})
}

func TestMachineTickAsync(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("same semantics as tick", func(t *testing.T) {
		t.Parallel()

		m, err := NewBuilder("A").
			AddTransition("A", "B", always, nil).
			AddTransition("B", "A", never, nil).
			Build()
		require.NoError(t, err)

		require.NoError(t, <-m.TickAsync(ctx))
		assert.Equal(t, "B", m.CurrentState())
	})

	t.Run("panic is reported", func(t *testing.T) {
		t.Parallel()

		m, err := NewBuilder("A").
			AddTransition("A", "B", always, Do(func() { panic("action exploded") })).
			AddTransition("B", "A", never, nil).
			Build()
		require.NoError(t, err)

		err = <-m.TickAsync(ctx)
		require.ErrorIs(t, err, ErrTickPanicked)
		assert.Contains(t, err.Error(), "action exploded")
	})
}

func TestMachineSetState(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	m, err := NewBuilder("A").
		AddTransition("A", "B", never, nil).
		AddTransition("B", "A", never, nil).
		Build()
	require.NoError(t, err)

	assert.False(t, m.SetState(ctx, "Nowhere"))
	assert.Equal(t, "A", m.CurrentState())

	assert.True(t, m.SetState(ctx, "B"))
	assert.Equal(t, "B", m.CurrentState())

	assert.False(t, m.SetStateIf(ctx, "A", never))
	assert.Equal(t, "B", m.CurrentState())

	assert.True(t, m.SetStateIf(ctx, "A", always))
	assert.Equal(t, "A", m.CurrentState())
}

func TestMachineInspection(t *testing.T) {
	t.Parallel()

	m, err := NewBuilder("state10", WithName("inspect")).
		AddTransition("state10", "state2", never, nil).
		AddAnyTransition([]string{"state2"}, "state10", never, nil).
		AddContainsTransition("state", "state1", never, nil).
		AddTransition("state1", "state10", never, nil).
		Build()
	require.NoError(t, err)

	assert.Equal(t, "inspect", m.Name())
	assert.NotEmpty(t, m.ID())
	assert.True(t, m.HasCurrentState("state10"))
	assert.False(t, m.HasCurrentState("state2"))
	assert.True(t, m.HasAnyCurrentState("state2", "state10"))
	assert.False(t, m.HasAnyCurrentState())
	assert.True(t, m.IsRegisteredState("state"))
	assert.False(t, m.IsRegisteredState("state3"))
	assert.Equal(t, []string{"state", "state1", "state2", "state10"}, m.States())
	assert.Len(t, m.Config().Rules(), 4)
}

func TestMachineTiming(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clock := newManualClock()

	m, err := NewBuilder("A", WithClock(clock)).
		AddTransition("A", "B", never, nil).
		AddTransition("B", "A", never, nil).
		Build()
	require.NoError(t, err)

	clock.Advance(time.Second)
	assert.Equal(t, time.Second, m.Elapsed())
	assert.Equal(t, time.Second, m.TimeInState())

	require.True(t, m.SetState(ctx, "B"))
	clock.Advance(time.Second)

	assert.Equal(t, 2*time.Second, m.Elapsed())
	assert.Equal(t, time.Second, m.TimeInState())

	// Setting the current state again is not a change.
	require.True(t, m.SetState(ctx, "B"))
	assert.Equal(t, time.Second, m.TimeInState())
}

type door string

const (
	doorClosed door = "Closed"
	doorOpen   door = "Open"
)

func TestMachineTypedLabels(t *testing.T) {
	t.Parallel()

	open := false

	m, err := NewBuilder(doorClosed).
		AddTransition(doorClosed, doorOpen, func() bool { return open }, nil).
		AddTransition(doorOpen, doorClosed, func() bool { return !open }, nil).
		Build()
	require.NoError(t, err)

	open = true

	require.NoError(t, m.Tick(context.Background()))
	assert.Equal(t, doorOpen, m.CurrentState())
}
