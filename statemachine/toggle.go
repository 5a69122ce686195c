package statemachine

import (
	"context"
	"fmt"
)

// StateToggle flips between two states. The set direction (from -> to) fires
// when the dominant condition holds; the reset direction (to -> from) fires
// when the reset condition holds and the dominant condition does not, so
// "set" wins over "reset".
type StateToggle[S Label] struct {
	// ruleBase carries the dominant condition and the set action.
	ruleBase

	from S
	to   S

	resetCondition Condition
	resetAction    Action
}

// NewStateToggle creates a toggle between from and to.
func NewStateToggle[S Label](
	from, to S,
	dominant, reset Condition,
	setAction, resetAction Action,
) *StateToggle[S] {
	return &StateToggle[S]{
		ruleBase:       newRuleBase(dominant, setAction, true),
		from:           from,
		to:             to,
		resetCondition: reset,
		resetAction:    resetAction,
	}
}

func (t *StateToggle[S]) From() S {
	return t.from
}

func (t *StateToggle[S]) To() S {
	return t.to
}

func (t *StateToggle[S]) Kind() Kind {
	return KindStateToggle
}

func (t *StateToggle[S]) Description() string {
	return t.describe(t.defaultDescription())
}

func (t *StateToggle[S]) defaultDescription() string {
	return fmt.Sprintf("%s: %s <-> %s", KindStateToggle, t.from, t.to)
}

func (t *StateToggle[S]) actionSlots() []*Action {
	return []*Action{&t.action, &t.resetAction}
}

func (t *StateToggle[S]) TryFire(ctx context.Context, m *Machine[S]) (bool, error) {
	if m.current != t.from && m.current != t.to {
		return false, nil
	}

	// The dominant condition is evaluated once per tick: it is both the set
	// condition and the guard suppressing the reset.
	dominant := t.condition.holds()

	if m.current == t.from && dominant {
		m.moveTo(ctx, t.to)

		return true, t.run(ctx)
	}

	if dominant || m.current != t.to || !t.resetCondition.holds() {
		return false, nil
	}

	m.moveTo(ctx, t.from)

	if t.resetAction == nil {
		return true, nil
	}

	return true, t.resetAction(ctx)
}

func (t *StateToggle[S]) clone() Rule[S] {
	c := *t

	return &c
}
