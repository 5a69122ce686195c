package statemachine

import (
	"strings"
	"time"

	"github.com/amp-labs/sequence/ratelimit"
)

// options holds the collaborators a built machine uses.
type options struct {
	name   string
	logger Logger
	clock  Clock
	store  ratelimit.Store
}

// Option configures a Builder.
type Option func(*options)

// WithName names the machine in logs, metrics and rate-limit keys.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithLogger sets the observability hook notified of every rule firing.
func WithLogger(logger Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithClock sets the machine's time source.
func WithClock(clock Clock) Option {
	return func(o *options) {
		o.clock = clock
	}
}

// WithThrottleStore sets the store backing rate-limited actions. Without it
// each built machine gets its own in-memory store.
func WithThrottleStore(store ratelimit.Store) Option {
	return func(o *options) {
		o.store = store
	}
}

// Builder provides a fluent API for declaring rules and building a machine.
// A Builder is not safe for concurrent use.
type Builder[S Label] struct {
	config  *Config[S]
	opts    options
	checks  []Check[S]
	invalid []Violation
}

// NewBuilder creates a builder. initial may be empty when the initial state is
// marked with the initial-state tag in one of the Add calls.
func NewBuilder[S Label](initial S, opts ...Option) *Builder[S] {
	b := &Builder[S]{
		opts: options{
			logger: NoopLogger{},
			clock:  systemClock{},
		},
		checks: DefaultChecks[S](),
	}

	b.Apply(opts...)
	b.config = newConfig(b.opts.name, initial)

	return b
}

// New builds a machine in the callback style:
//
//	m, err := statemachine.New("Off", func(b *statemachine.Builder[string]) {
//		b.AddTransition("Off", "On", isPressed, nil)
//		b.AddTransition("On", "Off", isReleased, nil)
//	})
func New[S Label](initial S, configure func(b *Builder[S]), opts ...Option) (*Machine[S], error) {
	b := NewBuilder(initial, opts...)

	if configure != nil {
		configure(b)
	}

	return b.Build()
}

// Apply sets options after construction.
func (b *Builder[S]) Apply(opts ...Option) *Builder[S] {
	for _, opt := range opts {
		opt(&b.opts)
	}

	if b.config != nil {
		b.config.name = b.opts.name
	}

	return b
}

// SetInitialState sets the state a built machine starts in.
func (b *Builder[S]) SetInitialState(state S) *Builder[S] {
	b.config.initialState = state

	return b
}

// SetIgnoreTag changes the prefix marking states as intentional dead ends.
func (b *Builder[S]) SetIgnoreTag(tag rune) *Builder[S] {
	b.config.ignoreTag = tag

	return b
}

// SetInitialStateTag changes the prefix marking the initial state. It only
// affects rules added afterwards.
func (b *Builder[S]) SetInitialStateTag(tag rune) *Builder[S] {
	b.config.initialStateTag = tag

	return b
}

// DisableValidation skips the validator pipeline entirely.
func (b *Builder[S]) DisableValidation() *Builder[S] {
	b.config.validationDisabled = true

	return b
}

// DisableValidationForStates exempts states from dead-end checks.
func (b *Builder[S]) DisableValidationForStates(states ...S) *Builder[S] {
	for _, s := range states {
		b.config.excluded[s] = struct{}{}
	}

	return b
}

// AllowEmpty marks the machine as intentionally having no rules or initial state.
func (b *Builder[S]) AllowEmpty() *Builder[S] {
	b.config.empty = true

	return b
}

// Verbose requires every rule to carry a human description.
func (b *Builder[S]) Verbose() *Builder[S] {
	b.config.verbose = true

	return b
}

// AddCheck appends a custom validator to the pipeline.
func (b *Builder[S]) AddCheck(check Check[S]) *Builder[S] {
	if check != nil {
		b.checks = append(b.checks, check)
	}

	return b
}

// Config returns a snapshot of the configuration declared so far.
func (b *Builder[S]) Config() *Config[S] {
	return b.config.clone()
}

// AddRule appends a rule. Rules fire in the order they are added.
func (b *Builder[S]) AddRule(rule Rule[S]) *RuleRef[S] {
	if rule == nil {
		b.invalid = append(b.invalid, Violation{
			Category:  CategoryBuilder,
			Message:   "nil rule added",
			RuleIndex: len(b.config.rules),
			Err:       ErrNilRule,
		})

		return &RuleRef[S]{Builder: b}
	}

	b.config.rules = append(b.config.rules, rule)

	return &RuleRef[S]{Builder: b, rule: rule}
}

// AddTransition adds a StateTransition from -> to.
func (b *Builder[S]) AddTransition(from, to S, cond Condition, action Action) *RuleRef[S] {
	b.detectInitial(from, to)

	return b.AddRule(NewStateTransition(from, to, cond, action))
}

// AddAnyTransition adds an AnyStateTransition from any of from -> to.
func (b *Builder[S]) AddAnyTransition(from []S, to S, cond Condition, action Action) *RuleRef[S] {
	b.detectInitial(append(from[:len(from):len(from)], to)...)

	return b.AddRule(NewAnyStateTransition(from, to, cond, action))
}

// AddContainsTransition adds a ContainsStateTransition from every state
// containing contains -> to.
func (b *Builder[S]) AddContainsTransition(contains, to S, cond Condition, action Action) *RuleRef[S] {
	b.detectInitial(contains, to)

	return b.AddRule(NewContainsStateTransition(contains, to, cond, action))
}

// AddForceState adds a ForceState to to. It stops the tick after firing.
func (b *Builder[S]) AddForceState(to S, cond Condition, action Action) *RuleRef[S] {
	b.detectInitial(to)

	return b.AddRule(NewForceState(to, cond, action))
}

// AddStateAction adds a StateAction running action while the machine is in at.
func (b *Builder[S]) AddStateAction(at S, action Action) *RuleRef[S] {
	b.detectInitial(at)

	return b.AddRule(NewStateAction(at, nil, action))
}

// AddStateToggle adds a StateToggle between from and to. dominant sets the
// toggle and wins over reset.
func (b *Builder[S]) AddStateToggle(
	from, to S,
	dominant, reset Condition,
	setAction, resetAction Action,
) *RuleRef[S] {
	b.detectInitial(from, to)

	return b.AddRule(NewStateToggle(from, to, dominant, reset, setAction, resetAction))
}

// detectInitial adopts a state carrying the initial-state tag as the initial
// state. The tag stays part of the label.
func (b *Builder[S]) detectInitial(states ...S) {
	tag := string(b.config.initialStateTag)

	for _, s := range states {
		if strings.HasPrefix(string(s), tag) {
			b.SetInitialState(s)
		}
	}
}

// Build validates the configuration and returns a machine bound to a copy of
// it. On failure it returns a *ValidationError listing every violation and no
// machine. The builder can be changed and built again.
func (b *Builder[S]) Build() (*Machine[S], error) {
	cfg := b.config.clone()

	violations := append([]Violation(nil), b.invalid...)
	if !cfg.validationDisabled {
		violations = append(violations, Validate(cfg, b.checks...)...)
	}

	if len(violations) > 0 {
		recordValidationFailures(violations)

		return nil, &ValidationError{
			Machine:    cfg.name,
			Violations: violations,
		}
	}

	store := b.opts.store
	if store == nil {
		store = ratelimit.NewMemoryStore(ratelimit.WithNow(b.opts.clock.Now))
	}

	applyThrottles(cfg, store)

	return newMachine(cfg, b.opts), nil
}

// RuleRef refers to the rule just added. It embeds the builder so that
// declarations keep chaining:
//
//	b.AddTransition("Idle", "Alarm", tripped, notify).
//		Describe("raise the alarm").
//		RateLimited(time.Hour).
//		AddTransition("Alarm", "Idle", cleared, nil)
type RuleRef[S Label] struct {
	*Builder[S]

	rule Rule[S]
}

// Rule returns the referenced rule, or nil after a nil AddRule.
func (r *RuleRef[S]) Rule() Rule[S] { //nolint:ireturn
	return r.rule
}

// Describe sets the human description used in logs and validation messages.
func (r *RuleRef[S]) Describe(description string) *RuleRef[S] {
	if r.rule != nil {
		r.rule.common().description = description
	}

	return r
}

// When replaces the rule's condition. For a toggle this is the dominant condition.
func (r *RuleRef[S]) When(cond Condition) *RuleRef[S] {
	if r.rule != nil {
		r.rule.common().condition = cond
	}

	return r
}

// Then replaces the rule's action. For a toggle this is the set action.
func (r *RuleRef[S]) Then(action Action) *RuleRef[S] {
	if r.rule != nil {
		r.rule.common().action = action
	}

	return r
}

// Resume sets whether the tick continues with the next rule after this one fires.
func (r *RuleRef[S]) Resume(resume bool) *RuleRef[S] {
	if r.rule != nil {
		r.rule.common().resumes = resume
	}

	return r
}

// RateLimited lets the rule's action run at most once per window. Throttled
// firings still change state; only the action is skipped.
func (r *RuleRef[S]) RateLimited(window time.Duration) *RuleRef[S] {
	if r.rule != nil {
		r.rule.common().throttle = window
	}

	return r
}
