// Package statemachine provides a declarative, tick-driven finite state machine.
//
// Callers declare ordered rules (transitions, force states, state actions,
// toggles) on a Builder. Build validates that the declared graph has no
// unexempted dead ends and returns a Machine, which the embedding application
// advances by calling Tick.
package statemachine

import (
	"context"
)

// Do adapts a plain function into an Action that never fails.
func Do(fn func()) Action {
	if fn == nil {
		return nil
	}

	return func(context.Context) error {
		fn()

		return nil
	}
}

// Sequence runs actions in order and stops at the first error.
func Sequence(actions ...Action) Action {
	return func(ctx context.Context) error {
		for _, action := range actions {
			if action == nil {
				continue
			}

			if err := action(ctx); err != nil {
				return err
			}
		}

		return nil
	}
}
