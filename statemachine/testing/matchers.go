package testing

import (
	"errors"
	"fmt"
	"strings"
)

// Matcher errors.
var (
	ErrNoMatchersPassed   = errors.New("no matchers passed")
	ErrStateNotVisited    = errors.New("state was not visited")
	ErrTransitionNotTaken = errors.New("transition was not taken")
	ErrRuleNotFired       = errors.New("rule did not fire")
	ErrActionFailed       = errors.New("an action failed")
	ErrNoActionFailed     = errors.New("no action failed")
)

// Matcher defines an assertion over a recorded trace.
type Matcher interface {
	Match(recorder *Recorder) (bool, error)
	Description() string
}

// StateWasVisited creates a matcher that checks a state change entered name.
func StateWasVisited(name string) Matcher {
	return &stateVisitedMatcher{stateName: name}
}

type stateVisitedMatcher struct {
	stateName string
}

func (m *stateVisitedMatcher) Match(recorder *Recorder) (bool, error) {
	for _, entry := range recorder.Trace() {
		if entry.Type == EventStateChanged && entry.To == m.stateName {
			return true, nil
		}
	}

	return false, fmt.Errorf("%w: '%s'", ErrStateNotVisited, m.stateName)
}

func (m *stateVisitedMatcher) Description() string {
	return fmt.Sprintf("state '%s' should be visited", m.stateName)
}

// TransitionWasTaken creates a matcher that checks for a direct state change.
func TransitionWasTaken(from, to string) Matcher {
	return &transitionTakenMatcher{from: from, to: to}
}

type transitionTakenMatcher struct {
	from string
	to   string
}

func (m *transitionTakenMatcher) Match(recorder *Recorder) (bool, error) {
	for _, entry := range recorder.Trace() {
		if entry.Type == EventStateChanged && entry.From == m.from && entry.To == m.to {
			return true, nil
		}
	}

	return false, fmt.Errorf("%w: '%s' -> '%s'", ErrTransitionNotTaken, m.from, m.to)
}

func (m *transitionTakenMatcher) Description() string {
	return fmt.Sprintf("transition '%s' -> '%s' should be taken", m.from, m.to)
}

// RuleFired creates a matcher that checks a rule whose description contains
// substr fired.
func RuleFired(substr string) Matcher {
	return &ruleFiredMatcher{substr: substr}
}

type ruleFiredMatcher struct {
	substr string
}

func (m *ruleFiredMatcher) Match(recorder *Recorder) (bool, error) {
	for _, record := range recorder.Firings() {
		if strings.Contains(record.Description, m.substr) {
			return true, nil
		}
	}

	return false, fmt.Errorf("%w: '%s'", ErrRuleNotFired, m.substr)
}

func (m *ruleFiredMatcher) Description() string {
	return fmt.Sprintf("rule '%s' should fire", m.substr)
}

// NoActionFailed creates a matcher that checks every action succeeded.
func NoActionFailed() Matcher {
	return &noActionFailedMatcher{}
}

type noActionFailedMatcher struct{}

func (m *noActionFailedMatcher) Match(recorder *Recorder) (bool, error) {
	for _, entry := range recorder.Trace() {
		if entry.Type == EventActionFailed {
			return false, fmt.Errorf("%w: rule %d: %w", ErrActionFailed, entry.Record.RuleIndex, entry.Error)
		}
	}

	return true, nil
}

func (m *noActionFailedMatcher) Description() string {
	return "no action should fail"
}

// SomeActionFailed creates a matcher that checks at least one action failed.
func SomeActionFailed() Matcher {
	return &someActionFailedMatcher{}
}

type someActionFailedMatcher struct{}

func (m *someActionFailedMatcher) Match(recorder *Recorder) (bool, error) {
	for _, entry := range recorder.Trace() {
		if entry.Type == EventActionFailed {
			return true, nil
		}
	}

	return false, ErrNoActionFailed
}

func (m *someActionFailedMatcher) Description() string {
	return "an action should fail"
}

// All creates a matcher that requires all matchers to pass.
func All(matchers ...Matcher) Matcher {
	return &allMatcher{matchers: matchers}
}

type allMatcher struct {
	matchers []Matcher
}

func (m *allMatcher) Match(recorder *Recorder) (bool, error) {
	for _, matcher := range m.matchers {
		ok, err := matcher.Match(recorder)
		if !ok {
			return false, err
		}
	}

	return true, nil
}

func (m *allMatcher) Description() string {
	return "all matchers should pass"
}

// Any creates a matcher that requires at least one matcher to pass.
func Any(matchers ...Matcher) Matcher {
	return &anyMatcher{matchers: matchers}
}

type anyMatcher struct {
	matchers []Matcher
}

func (m *anyMatcher) Match(recorder *Recorder) (bool, error) {
	for _, matcher := range m.matchers {
		ok, _ := matcher.Match(recorder)
		if ok {
			return true, nil
		}
	}

	return false, ErrNoMatchersPassed
}

func (m *anyMatcher) Description() string {
	return "at least one matcher should pass"
}
