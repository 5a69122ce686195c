package statemachine

import (
	"context"
	"fmt"
	"time"

	"facette.io/natsort"
	"github.com/google/uuid"
)

// Machine is a built state machine. It holds the current state and is advanced
// by Tick. A Machine is not safe for concurrent use; callers that tick from
// several goroutines must serialize the calls.
type Machine[S Label] struct {
	id         uuid.UUID
	config     *Config[S]
	current    S
	clock      Clock
	logger     Logger
	startedAt  time.Time
	enteredAt  time.Time
	registered map[S]struct{}
}

func newMachine[S Label](cfg *Config[S], opts options) *Machine[S] {
	now := opts.clock.Now()

	registered := make(map[S]struct{})
	for _, s := range cfg.States() {
		registered[s] = struct{}{}
	}

	return &Machine[S]{
		id:         uuid.New(),
		config:     cfg,
		current:    cfg.initialState,
		clock:      opts.clock,
		logger:     opts.logger,
		startedAt:  now,
		enteredAt:  now,
		registered: registered,
	}
}

// ID returns the machine's instance identifier.
func (m *Machine[S]) ID() string {
	return m.id.String()
}

func (m *Machine[S]) Name() string {
	return m.config.name
}

// Config returns a copy of the machine's configuration.
func (m *Machine[S]) Config() *Config[S] {
	return m.config.clone()
}

func (m *Machine[S]) CurrentState() S {
	return m.current
}

func (m *Machine[S]) HasCurrentState(state S) bool {
	return m.current == state
}

// HasAnyCurrentState reports whether the current state is one of states.
func (m *Machine[S]) HasAnyCurrentState(states ...S) bool {
	for _, s := range states {
		if m.current == s {
			return true
		}
	}

	return false
}

// IsRegisteredState reports whether some rule references state as a source,
// target, substring or set member.
func (m *Machine[S]) IsRegisteredState(state S) bool {
	_, ok := m.registered[state]

	return ok
}

// States returns every registered state in natural order.
func (m *Machine[S]) States() []S {
	names := make([]string, 0, len(m.registered))
	for s := range m.registered {
		names = append(names, string(s))
	}

	natsort.Sort(names)

	states := make([]S, len(names))
	for i, name := range names {
		states[i] = S(name)
	}

	return states
}

// Elapsed returns the time since the machine was built.
func (m *Machine[S]) Elapsed() time.Duration {
	return m.clock.Now().Sub(m.startedAt)
}

// TimeInState returns the time since the last state change.
func (m *Machine[S]) TimeInState() time.Duration {
	return m.clock.Now().Sub(m.enteredAt)
}

// SetState moves the machine to state without evaluating any rule. An
// unregistered state is ignored and SetState reports false.
func (m *Machine[S]) SetState(ctx context.Context, state S) bool {
	if !m.IsRegisteredState(state) {
		return false
	}

	m.moveTo(ctx, state)

	return true
}

// SetStateIf calls SetState when cond holds.
func (m *Machine[S]) SetStateIf(ctx context.Context, state S, cond Condition) bool {
	if !cond.holds() {
		return false
	}

	return m.SetState(ctx, state)
}

// Tick evaluates every rule once, in declaration order. Each rule sees the
// state written by the rules before it. A firing rule that does not resume
// ends the tick. An action error ends the tick and is returned as a
// *RuleError; the state change already made by that rule stays. Panics from
// conditions or actions propagate to the caller.
func (m *Machine[S]) Tick(ctx context.Context) (err error) {
	ctx, span := startTickSpan(ctx, m.config.name, m.ID(), string(m.current))
	start := time.Now()

	defer func() {
		endTickSpan(span, string(m.current), err)
		recordTick(m.config.name, time.Since(start))
	}()

	for i, rule := range m.config.rules {
		from := m.current

		fired, actionErr := rule.TryFire(ctx, m)
		if !fired {
			continue
		}

		record := m.firingRecord(i, rule, from)

		m.logger.RuleFired(ctx, record)
		recordFiring(m.config.name, rule.Kind())
		addFiringEvent(span, record)

		if actionErr != nil {
			m.logger.ActionFailed(ctx, record, actionErr)

			return WrapRuleError(i, rule, actionErr)
		}

		if !rule.Resumes() {
			break
		}
	}

	return nil
}

// TickAsync runs one tick on its own goroutine and delivers the result on
// the returned channel. The caller must not use the machine until the result
// arrives. A panic during the tick is reported as ErrTickPanicked.
func (m *Machine[S]) TickAsync(ctx context.Context) <-chan error {
	done := make(chan error, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("%w: %v", ErrTickPanicked, r)
			}

			close(done)
		}()

		done <- m.Tick(ctx)
	}()

	return done
}

// moveTo sets the current state. TimeInState restarts only on a real change.
func (m *Machine[S]) moveTo(ctx context.Context, to S) {
	from := m.current
	m.current = to

	if from == to {
		return
	}

	m.enteredAt = m.clock.Now()

	m.logger.StateChanged(ctx, m.config.name, string(from), string(to))
	recordStateChange(m.config.name, string(to))
}

func (m *Machine[S]) firingRecord(index int, rule Rule[S], from S) FiringRecord {
	return FiringRecord{
		Machine:     m.config.name,
		MachineID:   m.ID(),
		RuleIndex:   index,
		Kind:        rule.Kind(),
		Description: rule.Description(),
		From:        string(from),
		To:          string(m.current),
		Elapsed:     m.Elapsed(),
		Method:      MethodExecuteAction,
	}
}
