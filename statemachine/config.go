package statemachine

import (
	"maps"
	"slices"
	"strings"
)

const (
	// DefaultIgnoreTag marks a state as an intentional dead end.
	DefaultIgnoreTag = '!'
	// DefaultInitialStateTag marks a state as the initial state when it is
	// passed to one of the Builder's Add methods.
	DefaultInitialStateTag = '>'
)

// Config is the finished, immutable description of a machine: its ordered
// rules plus machine-wide settings. Rule order is both execution order and
// tie-break order.
type Config[S Label] struct {
	name               string
	rules              []Rule[S]
	initialState       S
	ignoreTag          rune
	initialStateTag    rune
	excluded           map[S]struct{}
	empty              bool
	validationDisabled bool
	verbose            bool
}

func newConfig[S Label](name string, initial S) *Config[S] {
	return &Config[S]{
		name:            name,
		rules:           []Rule[S]{},
		initialState:    initial,
		ignoreTag:       DefaultIgnoreTag,
		initialStateTag: DefaultInitialStateTag,
		excluded:        make(map[S]struct{}),
	}
}

// Name returns the machine name used in logs, metrics and rate-limit keys.
func (c *Config[S]) Name() string {
	return c.name
}

// Rules returns the rules in declaration order.
func (c *Config[S]) Rules() []Rule[S] {
	return slices.Clone(c.rules)
}

func (c *Config[S]) InitialState() S {
	return c.initialState
}

func (c *Config[S]) IgnoreTag() rune {
	return c.ignoreTag
}

func (c *Config[S]) InitialStateTag() rune {
	return c.initialStateTag
}

// Excluded returns the states exempted from validation, sorted.
func (c *Config[S]) Excluded() []S {
	return slices.Sorted(maps.Keys(c.excluded))
}

// IsEmpty reports whether the machine was explicitly allowed to have no rules.
func (c *Config[S]) IsEmpty() bool {
	return c.empty
}

// Verbose reports whether every rule must carry a human description.
func (c *Config[S]) Verbose() bool {
	return c.verbose
}

// ValidationDisabled reports whether Build skips the validator pipeline.
func (c *Config[S]) ValidationDisabled() bool {
	return c.validationDisabled
}

// IsIgnored reports whether a state carries the ignore tag.
func (c *Config[S]) IsIgnored(state S) bool {
	return strings.HasPrefix(string(state), string(c.ignoreTag))
}

// IsExempt reports whether a state is exempt from dead-end checks, either by
// the ignore tag or by explicit exclusion.
func (c *Config[S]) IsExempt(state S) bool {
	if c.IsIgnored(state) {
		return true
	}

	_, ok := c.excluded[state]

	return ok
}

// States returns every state referenced by a rule, in first-reference order.
func (c *Config[S]) States() []S {
	seen := make(map[S]struct{})

	var states []S

	add := func(s S) {
		if _, ok := seen[s]; ok {
			return
		}

		seen[s] = struct{}{}
		states = append(states, s)
	}

	for _, rule := range c.rules {
		for _, s := range referencedStates(rule) {
			add(s)
		}
	}

	return states
}

// clone returns a deep copy, cloning every rule so that later builder changes
// cannot reach a built machine.
func (c *Config[S]) clone() *Config[S] {
	out := *c
	out.rules = make([]Rule[S], len(c.rules))

	for i, rule := range c.rules {
		out.rules[i] = rule.clone()
	}

	out.excluded = maps.Clone(c.excluded)

	return &out
}

// referencedStates lists the states a rule names as from, to, contains or
// any-set member.
func referencedStates[S Label](rule Rule[S]) []S {
	switch r := rule.(type) {
	case *StateTransition[S]:
		return []S{r.from, r.to}
	case *AnyStateTransition[S]:
		return append(slices.Clone(r.from), r.to)
	case *ContainsStateTransition[S]:
		return []S{r.contains, r.to}
	case *ForceState[S]:
		return []S{r.to}
	case *StateAction[S]:
		return []S{r.at}
	case *StateToggle[S]:
		return []S{r.from, r.to}
	default:
		return nil
	}
}
