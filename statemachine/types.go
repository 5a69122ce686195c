package statemachine

import (
	"context"
	"time"
)

// Label is the type of a state value. Enum-backed states are typed string
// constants, for example:
//
//	type Door string
//
//	const (
//		Closed Door = "Closed"
//		Open   Door = "Open"
//	)
type Label interface {
	~string
}

// Condition reports whether a rule may fire. A nil Condition always holds.
type Condition func() bool

// Action is the side effect of a rule firing. A nil Action does nothing.
type Action func(ctx context.Context) error

func (c Condition) holds() bool {
	return c == nil || c()
}

// Not negates a condition. Not(nil) never holds.
func Not(c Condition) Condition {
	return func() bool {
		return !c.holds()
	}
}

// And holds when every condition holds.
func And(conds ...Condition) Condition {
	return func() bool {
		for _, c := range conds {
			if !c.holds() {
				return false
			}
		}

		return true
	}
}

// Kind identifies a rule variant.
type Kind int

const (
	KindStateTransition Kind = iota + 1
	KindAnyStateTransition
	KindContainsStateTransition
	KindForceState
	KindStateAction
	KindStateToggle
)

func (k Kind) String() string {
	switch k {
	case KindStateTransition:
		return "StateTransition"
	case KindAnyStateTransition:
		return "AnyStateTransition"
	case KindContainsStateTransition:
		return "ContainsStateTransition"
	case KindForceState:
		return "ForceState"
	case KindStateAction:
		return "StateAction"
	case KindStateToggle:
		return "StateToggle"
	default:
		return "Unknown"
	}
}

// Rule is a condition, action and state change evaluated once per tick.
//
// The set of implementations is closed: *StateTransition, *AnyStateTransition,
// *ContainsStateTransition, *ForceState, *StateAction and *StateToggle.
type Rule[S Label] interface {
	Kind() Kind
	Description() string
	Resumes() bool

	// TryFire fires the rule if it applies to the machine's current state.
	// It reports whether the rule fired. A returned error comes from the
	// rule's action; the state change, if any, has already been applied.
	TryFire(ctx context.Context, m *Machine[S]) (bool, error)

	common() *ruleBase
	defaultDescription() string
	actionSlots() []*Action
	clone() Rule[S]
}

// ruleBase holds the fields shared by every rule kind.
type ruleBase struct {
	condition   Condition
	action      Action
	resumes     bool
	description string
	throttle    time.Duration
}

func newRuleBase(cond Condition, action Action, resumes bool) ruleBase {
	return ruleBase{
		condition: cond,
		action:    action,
		resumes:   resumes,
	}
}

func (b *ruleBase) common() *ruleBase {
	return b
}

// Resumes reports whether the tick continues with the next rule after this one fires.
func (b *ruleBase) Resumes() bool {
	return b.resumes
}

func (b *ruleBase) actionSlots() []*Action {
	return []*Action{&b.action}
}

func (b *ruleBase) describe(fallback string) string {
	if b.description == "" {
		return fallback
	}

	return b.description
}

func (b *ruleBase) run(ctx context.Context) error {
	if b.action == nil {
		return nil
	}

	return b.action(ctx)
}

// HasDescription reports whether the rule carries a human description
// other than the generated one.
func HasDescription[S Label](rule Rule[S]) bool {
	desc := rule.common().description

	return desc != "" && desc != rule.defaultDescription()
}
