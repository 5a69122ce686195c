package definition

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/amp-labs/sequence/statemachine"
)

type compileOptions struct {
	factory        *ActionFactory
	logger         *slog.Logger
	machineOptions []statemachine.Option
}

// Option configures Compile.
type Option func(*compileOptions)

// WithActionFactory sets the factory used to create actions. The default
// factory only knows the built-in action types.
func WithActionFactory(factory *ActionFactory) Option {
	return func(o *compileOptions) {
		o.factory = factory
	}
}

// WithLogger sets the logger used by log actions.
func WithLogger(logger *slog.Logger) Option {
	return func(o *compileOptions) {
		o.logger = logger
	}
}

// WithMachineOptions passes options through to the statemachine builder.
// They are applied after the definition's name, so WithName overrides it.
func WithMachineOptions(opts ...statemachine.Option) Option {
	return func(o *compileOptions) {
		o.machineOptions = append(o.machineOptions, opts...)
	}
}

// Program is a compiled definition: a configured builder whose conditions
// read the inputs it was compiled with.
type Program struct {
	builder *statemachine.Builder[string]
	machine *statemachine.Machine[string]
}

// Compile turns the definition into a Program. Expressions and actions are
// checked here; graph validation happens in Build.
func (f *File) Compile(inputs *Inputs, opts ...Option) (*Program, error) {
	options := compileOptions{
		factory: NewActionFactory(),
	}

	for _, opt := range opts {
		opt(&options)
	}

	if inputs == nil {
		inputs = NewInputs(nil)
	}

	machineOptions := append([]statemachine.Option{statemachine.WithName(f.Name)}, options.machineOptions...)

	program := &Program{
		builder: statemachine.NewBuilder(f.InitialState, machineOptions...),
	}

	f.configure(program.builder)

	e := &env{inputs: inputs, elapsed: program.elapsed}
	actionEnv := ActionEnv{Machine: f.Name, Inputs: inputs, Logger: options.logger}

	for i := range f.Rules {
		err := f.Rules[i].add(program.builder, e, options.factory, actionEnv)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
	}

	return program, nil
}

func (f *File) configure(b *statemachine.Builder[string]) {
	if f.IgnoreTag != "" {
		b.SetIgnoreTag([]rune(f.IgnoreTag)[0])
	}

	if f.InitialStateTag != "" {
		b.SetInitialStateTag([]rune(f.InitialStateTag)[0])
	}

	b.DisableValidationForStates(f.Exempt...)

	if f.Verbose {
		b.Verbose()
	}

	if f.AllowEmpty {
		b.AllowEmpty()
	}

	if f.SkipValidation {
		b.DisableValidation()
	}
}

func (r *Rule) add(b *statemachine.Builder[string], e *env, factory *ActionFactory, actionEnv ActionEnv) error {
	when, err := r.condition(r.When, e, true)
	if err != nil {
		return err
	}

	action, err := factory.CreateAll(actionEnv, r.Actions)
	if err != nil {
		return err
	}

	var ref *statemachine.RuleRef[string]

	switch r.Kind {
	case KindTransition:
		ref = b.AddTransition(r.From, r.To, when, action)
	case KindAny:
		ref = b.AddAnyTransition(r.FromAny, r.To, when, action)
	case KindContains:
		ref = b.AddContainsTransition(r.Contains, r.To, when, action)
	case KindForce:
		ref = b.AddForceState(r.To, when, action)
	case KindAction:
		ref = b.AddStateAction(r.At, action).When(when)
	case KindToggle:
		// An empty reset expression resets whenever the dominant condition drops.
		reset, err := r.condition(r.Reset, e, false)
		if err != nil {
			return fmt.Errorf("reset: %w", err)
		}

		resetAction, err := factory.CreateAll(actionEnv, r.ResetActions)
		if err != nil {
			return fmt.Errorf("reset: %w", err)
		}

		ref = b.AddStateToggle(r.From, r.To, when, reset, action, resetAction)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, r.Kind)
	}

	if r.Description != "" {
		ref.Describe(r.Description)
	}

	if r.Resumes != nil {
		ref.Resume(*r.Resumes)
	}

	window, err := r.rateLimit()
	if err != nil {
		return err
	}

	ref.RateLimited(window)

	return nil
}

// condition compiles expr. When applyUnless is set the rule's unless
// expression suppresses it.
func (r *Rule) condition(expr string, e *env, applyUnless bool) (statemachine.Condition, error) {
	when, err := compileExpression(expr)
	if err != nil {
		return nil, err
	}

	if !applyUnless || r.Unless == "" {
		return func() bool { return when(e) }, nil
	}

	unless, err := compileExpression(r.Unless)
	if err != nil {
		return nil, fmt.Errorf("unless: %w", err)
	}

	return func() bool { return when(e) && !unless(e) }, nil
}

// Config returns the configuration compiled so far.
func (p *Program) Config() *statemachine.Config[string] {
	return p.builder.Config()
}

// Builder exposes the underlying builder for additional rules or settings.
func (p *Program) Builder() *statemachine.Builder[string] {
	return p.builder
}

// Build validates the program and returns its machine. Elapsed-time
// expressions observe that machine, so a Program builds at most one.
func (p *Program) Build() (*statemachine.Machine[string], error) {
	if p.machine != nil {
		return nil, ErrAlreadyBuilt
	}

	m, err := p.builder.Build()
	if err != nil {
		return nil, err
	}

	p.machine = m

	return m, nil
}

func (p *Program) elapsed() time.Duration {
	if p.machine == nil {
		return 0
	}

	return p.machine.TimeInState()
}
