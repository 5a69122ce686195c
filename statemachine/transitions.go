package statemachine

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// StateTransition moves the machine from one state to another.
type StateTransition[S Label] struct {
	ruleBase

	from S
	to   S
}

// NewStateTransition creates a rule that fires when the current state is from
// and cond holds.
func NewStateTransition[S Label](from, to S, cond Condition, action Action) *StateTransition[S] {
	return &StateTransition[S]{
		ruleBase: newRuleBase(cond, action, true),
		from:     from,
		to:       to,
	}
}

func (t *StateTransition[S]) From() S {
	return t.from
}

func (t *StateTransition[S]) To() S {
	return t.to
}

func (t *StateTransition[S]) Kind() Kind {
	return KindStateTransition
}

func (t *StateTransition[S]) Description() string {
	return t.describe(t.defaultDescription())
}

func (t *StateTransition[S]) defaultDescription() string {
	return fmt.Sprintf("%s: %s -> %s", KindStateTransition, t.from, t.to)
}

func (t *StateTransition[S]) TryFire(ctx context.Context, m *Machine[S]) (bool, error) {
	if m.current != t.from || !t.condition.holds() {
		return false, nil
	}

	m.moveTo(ctx, t.to)

	return true, t.run(ctx)
}

func (t *StateTransition[S]) clone() Rule[S] {
	c := *t

	return &c
}

// AnyStateTransition moves the machine to a target state from any state of a set.
type AnyStateTransition[S Label] struct {
	ruleBase

	from []S
	to   S
}

// NewAnyStateTransition creates a rule that fires when the current state is one
// of from, differs from to, and cond holds.
func NewAnyStateTransition[S Label](from []S, to S, cond Condition, action Action) *AnyStateTransition[S] {
	return &AnyStateTransition[S]{
		ruleBase: newRuleBase(cond, action, true),
		from:     slices.Clone(from),
		to:       to,
	}
}

// From returns a copy of the source set.
func (t *AnyStateTransition[S]) From() []S {
	return slices.Clone(t.from)
}

func (t *AnyStateTransition[S]) To() S {
	return t.to
}

func (t *AnyStateTransition[S]) Kind() Kind {
	return KindAnyStateTransition
}

func (t *AnyStateTransition[S]) Description() string {
	return t.describe(t.defaultDescription())
}

func (t *AnyStateTransition[S]) defaultDescription() string {
	names := make([]string, len(t.from))
	for i, s := range t.from {
		names[i] = string(s)
	}

	return fmt.Sprintf("%s: [%s] -> %s", KindAnyStateTransition, strings.Join(names, ", "), t.to)
}

func (t *AnyStateTransition[S]) TryFire(ctx context.Context, m *Machine[S]) (bool, error) {
	if m.current == t.to || !slices.Contains(t.from, m.current) || !t.condition.holds() {
		return false, nil
	}

	m.moveTo(ctx, t.to)

	return true, t.run(ctx)
}

func (t *AnyStateTransition[S]) clone() Rule[S] {
	c := *t
	c.from = slices.Clone(t.from)

	return &c
}

// ContainsStateTransition moves the machine to a target state from every state
// whose label contains a substring.
type ContainsStateTransition[S Label] struct {
	ruleBase

	contains S
	to       S
}

// NewContainsStateTransition creates a rule that fires when the current state
// contains the substring, differs from to, and cond holds.
func NewContainsStateTransition[S Label](contains, to S, cond Condition, action Action) *ContainsStateTransition[S] {
	return &ContainsStateTransition[S]{
		ruleBase: newRuleBase(cond, action, true),
		contains: contains,
		to:       to,
	}
}

// Contains returns the substring matched against the current state.
func (t *ContainsStateTransition[S]) Contains() S {
	return t.contains
}

func (t *ContainsStateTransition[S]) To() S {
	return t.to
}

// Matches reports whether a state is a source of this rule.
func (t *ContainsStateTransition[S]) Matches(state S) bool {
	return strings.Contains(string(state), string(t.contains))
}

func (t *ContainsStateTransition[S]) Kind() Kind {
	return KindContainsStateTransition
}

func (t *ContainsStateTransition[S]) Description() string {
	return t.describe(t.defaultDescription())
}

func (t *ContainsStateTransition[S]) defaultDescription() string {
	return fmt.Sprintf("%s: *%s* -> %s", KindContainsStateTransition, t.contains, t.to)
}

func (t *ContainsStateTransition[S]) TryFire(ctx context.Context, m *Machine[S]) (bool, error) {
	if m.current == t.to || !t.Matches(m.current) || !t.condition.holds() {
		return false, nil
	}

	m.moveTo(ctx, t.to)

	return true, t.run(ctx)
}

func (t *ContainsStateTransition[S]) clone() Rule[S] {
	c := *t

	return &c
}

// ForceState moves the machine to a fixed state regardless of the current one.
// It stops the tick after firing unless told otherwise, which makes it a
// circuit breaker when declared first.
type ForceState[S Label] struct {
	ruleBase

	to S
}

// NewForceState creates a rule that fires when the current state differs from
// to and cond holds.
func NewForceState[S Label](to S, cond Condition, action Action) *ForceState[S] {
	return &ForceState[S]{
		ruleBase: newRuleBase(cond, action, false),
		to:       to,
	}
}

func (f *ForceState[S]) To() S {
	return f.to
}

func (f *ForceState[S]) Kind() Kind {
	return KindForceState
}

func (f *ForceState[S]) Description() string {
	return f.describe(f.defaultDescription())
}

func (f *ForceState[S]) defaultDescription() string {
	return fmt.Sprintf("%s: -> %s", KindForceState, f.to)
}

func (f *ForceState[S]) TryFire(ctx context.Context, m *Machine[S]) (bool, error) {
	if m.current == f.to || !f.condition.holds() {
		return false, nil
	}

	m.moveTo(ctx, f.to)

	return true, f.run(ctx)
}

func (f *ForceState[S]) clone() Rule[S] {
	c := *f

	return &c
}

// StateAction runs an action on every tick spent in a state. It never changes state.
type StateAction[S Label] struct {
	ruleBase

	at S
}

// NewStateAction creates a rule that runs action whenever the current state is
// at and cond holds.
func NewStateAction[S Label](at S, cond Condition, action Action) *StateAction[S] {
	return &StateAction[S]{
		ruleBase: newRuleBase(cond, action, true),
		at:       at,
	}
}

func (a *StateAction[S]) At() S {
	return a.at
}

func (a *StateAction[S]) Kind() Kind {
	return KindStateAction
}

func (a *StateAction[S]) Description() string {
	return a.describe(a.defaultDescription())
}

func (a *StateAction[S]) defaultDescription() string {
	return fmt.Sprintf("%s: @ %s", KindStateAction, a.at)
}

func (a *StateAction[S]) TryFire(ctx context.Context, m *Machine[S]) (bool, error) {
	if m.current != a.at || !a.condition.holds() {
		return false, nil
	}

	return true, a.run(ctx)
}

func (a *StateAction[S]) clone() Rule[S] {
	c := *a

	return &c
}
