package testing

import (
	"testing"
	"time"

	"github.com/amp-labs/sequence/statemachine"
)

// Step is one tick of a scenario.
type Step[S statemachine.Label] struct {
	// Before runs ahead of the tick, typically to change inputs.
	Before func()
	// Advance moves the clock before the tick.
	Advance time.Duration
	// Expect is the state required after the tick.
	Expect S
}

// TestScenario drives a machine tick by tick and checks the state after each.
type TestScenario[S statemachine.Label] struct {
	Name string
	// Builder creates a fresh builder for the scenario.
	Builder  func() *statemachine.Builder[S]
	Steps    []Step[S]
	Matchers []Matcher
}

// RunScenario executes a scenario as a subtest.
func RunScenario[S statemachine.Label](t *testing.T, scenario TestScenario[S]) {
	t.Helper()
	t.Run(scenario.Name, func(t *testing.T) {
		tm := NewTestMachine(t, scenario.Builder())

		for i, step := range scenario.Steps {
			if step.Before != nil {
				step.Before()
			}

			tm.AdvanceAndStep(step.Advance)

			if !tm.HasCurrentState(step.Expect) {
				t.Fatalf("step %d: expected state %q, got %q", i, step.Expect, tm.CurrentState())
			}
		}

		tm.AssertMatches(scenario.Matchers...)
	})
}
