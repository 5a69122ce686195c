package statemachine

import (
	"fmt"
	"strings"
)

// Check is a structural validator. It inspects a configuration and returns
// the violations it finds, in rule declaration order.
type Check[S Label] func(cfg *Config[S]) []Violation

// DefaultChecks returns the validator pipeline run by Build.
func DefaultChecks[S Label]() []Check[S] {
	return []Check[S]{
		CheckInitialState[S],
		CheckTargets[S],
		CheckSources[S],
		CheckForceStates[S],
		CheckDescriptions[S],
	}
}

// Validate runs every check and concatenates the violations. It never stops
// at the first failing check.
func Validate[S Label](cfg *Config[S], checks ...Check[S]) []Violation {
	var violations []Violation

	for _, check := range checks {
		violations = append(violations, check(cfg)...)
	}

	return violations
}

// graph indexes the sources and targets declared by a configuration. Edges
// are rules, nodes are state labels.
type graph[S Label] struct {
	// transitionSources holds the exact sources of StateTransition and StateToggle rules.
	transitionSources map[S]bool
	// anySources holds every member of every AnyStateTransition source set.
	anySources map[S]bool
	// contains holds the substrings of ContainsStateTransition rules.
	contains []S
	// targets holds every state some rule can move the machine into.
	targets map[S]bool
}

func newGraph[S Label](cfg *Config[S]) *graph[S] {
	g := &graph[S]{
		transitionSources: make(map[S]bool),
		anySources:        make(map[S]bool),
		targets:           make(map[S]bool),
	}

	for _, rule := range cfg.rules {
		switch r := rule.(type) {
		case *StateTransition[S]:
			g.transitionSources[r.from] = true
			g.targets[r.to] = true
		case *AnyStateTransition[S]:
			for _, s := range r.from {
				g.anySources[s] = true
			}

			g.targets[r.to] = true
		case *ContainsStateTransition[S]:
			g.contains = append(g.contains, r.contains)
			g.targets[r.to] = true
		case *ForceState[S]:
			g.targets[r.to] = true
		case *StateAction[S]:
		case *StateToggle[S]:
			g.transitionSources[r.from] = true
			g.transitionSources[r.to] = true
			g.targets[r.from] = true
			g.targets[r.to] = true
		}
	}

	return g
}

// isSource reports whether some rule can move the machine out of state,
// directly, by set membership or by substring containment.
func (g *graph[S]) isSource(state S) bool {
	if g.transitionSources[state] || g.anySources[state] {
		return true
	}

	for _, sub := range g.contains {
		if strings.Contains(string(state), string(sub)) {
			return true
		}
	}

	return false
}

// isReachable reports whether the machine can be in state: it is the initial
// state or the target of some rule, including force states.
func (g *graph[S]) isReachable(cfg *Config[S], state S) bool {
	return state == cfg.initialState || g.targets[state]
}

// isReachableContaining reports whether some reachable state contains sub.
func (g *graph[S]) isReachableContaining(cfg *Config[S], sub S) bool {
	if strings.Contains(string(cfg.initialState), string(sub)) {
		return true
	}

	for target := range g.targets {
		if strings.Contains(string(target), string(sub)) {
			return true
		}
	}

	return false
}

func violation[S Label](category string, index int, rule Rule[S], err error, format string, args ...any) Violation {
	return Violation{
		Category:  category,
		Message:   fmt.Sprintf(format, args...),
		RuleIndex: index,
		Rule:      rule.Description(),
		Err:       err,
	}
}

// CheckInitialState requires a non-empty initial state that some rule leaves,
// unless the machine was explicitly marked empty.
func CheckInitialState[S Label](cfg *Config[S]) []Violation {
	if cfg.empty {
		return nil
	}

	var violations []Violation

	if cfg.initialState == "" {
		violations = append(violations, Violation{
			Category:  CategoryInitialState,
			Message:   "no initial state configured",
			RuleIndex: -1,
			Err:       ErrEmptyInitialState,
		})
	}

	if len(cfg.rules) == 0 {
		return append(violations, Violation{
			Category:  CategoryInitialState,
			Message:   "machine has no rules; declare at least one or mark it empty",
			RuleIndex: -1,
			Err:       ErrInsufficientRules,
		})
	}

	if cfg.initialState != "" && !newGraph(cfg).isSource(cfg.initialState) {
		violations = append(violations, Violation{
			Category:  CategoryInitialState,
			Message:   fmt.Sprintf("initial state %q is not the source of any rule", cfg.initialState),
			RuleIndex: -1,
			Err:       ErrInitialStateOrphaned,
		})
	}

	return violations
}

// CheckTargets requires every transition target to be the source of some
// rule, unless the target is exempt.
func CheckTargets[S Label](cfg *Config[S]) []Violation {
	g := newGraph(cfg)

	var violations []Violation

	for i, rule := range cfg.rules {
		var target S

		switch r := rule.(type) {
		case *StateTransition[S]:
			target = r.to
		case *AnyStateTransition[S]:
			target = r.to
		case *ContainsStateTransition[S]:
			target = r.to
		case *ForceState[S], *StateAction[S], *StateToggle[S]:
			// Force states have their own check; actions have no target;
			// both ends of a toggle are sources of the toggle itself.
			continue
		default:
			continue
		}

		if cfg.IsExempt(target) || g.isSource(target) {
			continue
		}

		violations = append(violations, violation(rule.Kind().String(), i, rule, ErrUnreachableTarget,
			"ToState %q is a dead end: no rule leaves it", target))
	}

	return violations
}

// CheckSources requires every source state to be reachable: the initial state,
// the target of some rule, or a force state. Exempt states are skipped.
func CheckSources[S Label](cfg *Config[S]) []Violation {
	g := newGraph(cfg)

	var violations []Violation

	report := func(i int, rule Rule[S], state S) {
		if cfg.IsExempt(state) || g.isReachable(cfg, state) {
			return
		}

		violations = append(violations, violation(rule.Kind().String(), i, rule, ErrUnreachableSource,
			"FromState %q is unreachable: no rule enters it and it is not the initial state", state))
	}

	for i, rule := range cfg.rules {
		switch r := rule.(type) {
		case *StateTransition[S]:
			report(i, rule, r.from)
		case *AnyStateTransition[S]:
			for _, s := range r.from {
				report(i, rule, s)
			}
		case *ContainsStateTransition[S]:
			if cfg.IsExempt(r.contains) || g.isReachableContaining(cfg, r.contains) {
				continue
			}

			violations = append(violations, violation(rule.Kind().String(), i, rule, ErrUnreachableSource,
				"FromState containing %q is unreachable: no reachable state contains it", r.contains))
		case *StateAction[S]:
			report(i, rule, r.at)
		case *ForceState[S], *StateToggle[S]:
		}
	}

	return violations
}

// CheckForceStates requires a StateTransition (or toggle) leaving every force
// state; otherwise forcing the machine there is a guaranteed dead end.
func CheckForceStates[S Label](cfg *Config[S]) []Violation {
	g := newGraph(cfg)

	var violations []Violation

	for i, rule := range cfg.rules {
		force, ok := rule.(*ForceState[S])
		if !ok {
			continue
		}

		if cfg.IsExempt(force.to) || g.transitionSources[force.to] {
			continue
		}

		violations = append(violations, violation(KindForceState.String(), i, rule, ErrDanglingForceState,
			"ForceState target %q has no StateTransition leaving it", force.to))
	}

	return violations
}

// CheckDescriptions requires a human description on every rule. It only
// reports anything when the configuration is verbose.
func CheckDescriptions[S Label](cfg *Config[S]) []Violation {
	if !cfg.verbose {
		return nil
	}

	var violations []Violation

	for i, rule := range cfg.rules {
		if HasDescription(rule) {
			continue
		}

		violations = append(violations, violation(CategoryDescription, i, rule, ErrMissingDescription,
			"%s rule has no description", rule.Kind()))
	}

	return violations
}
