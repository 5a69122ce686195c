// Package testing provides testing utilities for tick-driven state machines.
//
//nolint:varnamelen // Short names idiomatic
package testing

import (
	"context"
	"testing"
	"time"

	"github.com/amp-labs/sequence/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestMachine wraps Machine with a fake clock, a recorder and assertions.
type TestMachine[S statemachine.Label] struct {
	*statemachine.Machine[S]

	t        *testing.T
	clock    *FakeClock
	recorder *Recorder
}

// NewTestMachine builds b with a FakeClock and a Recorder installed. The
// build must succeed.
func NewTestMachine[S statemachine.Label](t *testing.T, b *statemachine.Builder[S]) *TestMachine[S] {
	t.Helper()

	clock := NewFakeClock(time.Time{})
	recorder := NewRecorder()

	m, err := b.Apply(statemachine.WithClock(clock), statemachine.WithLogger(recorder)).Build()
	require.NoError(t, err, "failed to build machine")

	return &TestMachine[S]{
		Machine:  m,
		t:        t,
		clock:    clock,
		recorder: recorder,
	}
}

func (tm *TestMachine[S]) Clock() *FakeClock {
	return tm.clock
}

func (tm *TestMachine[S]) Recorder() *Recorder {
	return tm.recorder
}

// Step ticks once and requires the tick to succeed.
func (tm *TestMachine[S]) Step() {
	tm.t.Helper()

	require.NoError(tm.t, tm.Tick(context.Background()), "tick failed")
}

// AdvanceAndStep moves the clock forward, then ticks once.
func (tm *TestMachine[S]) AdvanceAndStep(d time.Duration) {
	tm.t.Helper()

	tm.clock.Advance(d)
	tm.Step()
}

// StepUntil ticks until the machine reaches state, advancing the clock by
// interval before each tick. It fails the test after maxTicks ticks.
func (tm *TestMachine[S]) StepUntil(state S, interval time.Duration, maxTicks int) {
	tm.t.Helper()

	for range maxTicks {
		if tm.HasCurrentState(state) {
			return
		}

		tm.AdvanceAndStep(interval)
	}

	require.Truef(tm.t, tm.HasCurrentState(state),
		"state %q not reached after %d ticks, current state %q", state, maxTicks, tm.CurrentState())
}

// AssertState checks the current state.
func (tm *TestMachine[S]) AssertState(expected S) {
	tm.t.Helper()

	assert.Equal(tm.t, expected, tm.CurrentState(), "unexpected current state")
}

// AssertStateVisited checks that a state change entered state.
func (tm *TestMachine[S]) AssertStateVisited(state S) {
	tm.t.Helper()

	tm.AssertMatches(StateWasVisited(string(state)))
}

// AssertTransitionTaken checks that the machine changed from one state
// directly to another.
func (tm *TestMachine[S]) AssertTransitionTaken(from, to S) {
	tm.t.Helper()

	tm.AssertMatches(TransitionWasTaken(string(from), string(to)))
}

// AssertPath checks the full sequence of states the machine went through.
func (tm *TestMachine[S]) AssertPath(states ...S) {
	tm.t.Helper()

	want := make([]string, 0, len(states))
	for _, s := range states {
		want = append(want, string(s))
	}

	assert.Equal(tm.t, want, tm.recorder.Path(), "unexpected state path")
}

// AssertMatches runs matchers against the recorded trace.
func (tm *TestMachine[S]) AssertMatches(matchers ...Matcher) {
	tm.t.Helper()

	for _, m := range matchers {
		ok, err := m.Match(tm.recorder)
		assert.Truef(tm.t, ok, "%s: %v", m.Description(), err)
	}
}
