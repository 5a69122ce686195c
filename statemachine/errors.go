package statemachine

import (
	"errors"
	"fmt"
	"strings"
)

// Predefined error types.
var (
	// ErrValidationFailed is matched by every error returned from a failed Build.
	ErrValidationFailed = errors.New("state machine validation failed")

	// ErrEmptyInitialState indicates that no initial state was configured.
	ErrEmptyInitialState = errors.New("initial state is empty")
	// ErrInsufficientRules indicates that a non-empty machine has no rules.
	ErrInsufficientRules = errors.New("at least one rule is required")
	// ErrInitialStateOrphaned indicates that no rule leaves the initial state.
	ErrInitialStateOrphaned = errors.New("initial state is not the source of any rule")
	// ErrUnreachableTarget indicates a target state that no rule leaves.
	ErrUnreachableTarget = errors.New("target state is a dead end")
	// ErrUnreachableSource indicates a source state that no rule enters.
	ErrUnreachableSource = errors.New("source state is unreachable")
	// ErrDanglingForceState indicates a force state with no transition out of it.
	ErrDanglingForceState = errors.New("force state has no transition leaving it")
	// ErrMissingDescription indicates a rule without a human description in verbose mode.
	ErrMissingDescription = errors.New("rule has no description")
	// ErrNilRule indicates that a nil rule was added to the builder.
	ErrNilRule = errors.New("rule is nil")

	// ErrTickPanicked is returned by TickAsync when a condition or action panics.
	ErrTickPanicked = errors.New("tick panicked")
)

// Validation categories, used to tag violations.
const (
	CategoryInitialState = "Initial State"
	CategoryDescription  = "Description"
	CategoryBuilder      = "Builder"
)

// Violation is a single problem found by a validator.
type Violation struct {
	// Category is the validator or rule kind that reported the problem,
	// such as "ForceState", "StateTransition" or "Initial State".
	Category string
	Message  string
	// RuleIndex is the declaration index of the offending rule, or -1.
	RuleIndex int
	// Rule is the offending rule rendered through its description.
	Rule string
	Err  error
}

func (v Violation) Error() string {
	if v.Rule == "" {
		return fmt.Sprintf("[%s] %s", v.Category, v.Message)
	}

	return fmt.Sprintf("[%s] %s (rule #%d %q)", v.Category, v.Message, v.RuleIndex, v.Rule)
}

func (v Violation) Unwrap() error {
	return v.Err
}

// ValidationError aggregates every violation found while building a machine.
type ValidationError struct {
	Machine    string
	Violations []Violation
}

func (e *ValidationError) Error() string {
	var sb strings.Builder

	name := e.Machine
	if name == "" {
		name = "state machine"
	}

	sb.WriteString(fmt.Sprintf("%s: %d violation(s)", name, len(e.Violations)))

	for _, v := range e.Violations {
		sb.WriteString("\n  ")
		sb.WriteString(v.Error())
	}

	return sb.String()
}

// Unwrap exposes ErrValidationFailed and every violation to errors.Is and errors.As.
func (e *ValidationError) Unwrap() []error {
	errs := make([]error, 0, len(e.Violations)+1)
	errs = append(errs, ErrValidationFailed)

	for _, v := range e.Violations {
		errs = append(errs, v)
	}

	return errs
}

// RuleError wraps an error returned by a rule's action.
type RuleError struct {
	RuleIndex   int
	Kind        Kind
	Description string
	Err         error
}

func (e *RuleError) Error() string {
	return fmt.Sprintf("rule #%d %s (%s): %v", e.RuleIndex, e.Kind, e.Description, e.Err)
}

func (e *RuleError) Unwrap() error {
	return e.Err
}

// WrapRuleError wraps an error with rule context.
func WrapRuleError[S Label](index int, rule Rule[S], err error) error {
	if err == nil {
		return nil
	}

	return &RuleError{
		RuleIndex:   index,
		Kind:        rule.Kind(),
		Description: rule.Description(),
		Err:         err,
	}
}
