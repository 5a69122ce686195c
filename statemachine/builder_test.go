package statemachine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilderInitialStateTag(t *testing.T) {
	t.Parallel()

	t.Run("default tag", func(t *testing.T) {
		t.Parallel()

		m, err := NewBuilder[string]("").
			AddTransition(">Idle", "Running", never, nil).
			AddTransition("Running", ">Idle", never, nil).
			Build()
		require.NoError(t, err)
		assert.Equal(t, ">Idle", m.CurrentState())
	})

	t.Run("custom tag", func(t *testing.T) {
		t.Parallel()

		b := NewBuilder[string]("").SetInitialStateTag('^')
		b.AddTransition("Idle", "^Running", never, nil)
		b.AddTransition("^Running", "Idle", never, nil)

		assert.Equal(t, "^Running", b.Config().InitialState())
	})

	t.Run("tag inside any set", func(t *testing.T) {
		t.Parallel()

		b := NewBuilder[string]("")
		b.AddAnyTransition([]string{"A", ">B"}, "C", never, nil)

		assert.Equal(t, ">B", b.Config().InitialState())
	})

	t.Run("tag on contains substring", func(t *testing.T) {
		t.Parallel()

		b := NewBuilder[string]("")
		b.AddContainsTransition(">Err", "Idle", never, nil)

		assert.Equal(t, ">Err", b.Config().InitialState())
	})
}

func TestBuilderNilRule(t *testing.T) {
	t.Parallel()

	_, err := NewBuilder("A").
		AddRule(nil).
		AddTransition("A", "B", never, nil).
		AddTransition("B", "A", never, nil).
		DisableValidation().
		Build()
	require.ErrorIs(t, err, ErrNilRule)
	require.ErrorIs(t, err, ErrValidationFailed)
}

func TestBuilderIsReusable(t *testing.T) {
	t.Parallel()

	b := NewBuilder("A")
	b.AddTransition("A", "B", always, nil)

	_, err := b.Build()
	require.ErrorIs(t, err, ErrUnreachableTarget)

	b.AddTransition("B", "A", never, nil)

	m, err := b.Build()
	require.NoError(t, err)

	// Later changes do not reach the built machine.
	b.AddTransition("B", "C", always, nil).Resume(false)
	b.DisableValidationForStates("C")

	require.NoError(t, m.Tick(context.Background()))
	assert.Equal(t, "B", m.CurrentState())
	assert.Len(t, m.Config().Rules(), 2)
	assert.False(t, m.IsRegisteredState("C"))
}

func TestBuilderCallbackStyle(t *testing.T) {
	t.Parallel()

	m, err := New("Off", func(b *Builder[string]) {
		b.AddTransition("Off", "On", always, nil)
		b.AddTransition("On", "Off", never, nil)
	}, WithName("callback"))
	require.NoError(t, err)
	assert.Equal(t, "callback", m.Name())

	_, err = New[string]("Off", nil)
	require.ErrorIs(t, err, ErrInsufficientRules)
}

func TestRuleRefRefinements(t *testing.T) {
	t.Parallel()

	ran := false
	open := false

	ref := NewBuilder("Closed").
		AddTransition("Closed", "Open", never, nil).
		Describe("open the door").
		When(func() bool { return open }).
		Then(Do(func() { ran = true })).
		Resume(false)

	rule := ref.Rule()
	require.NotNil(t, rule)
	assert.Equal(t, "open the door", rule.Description())
	assert.False(t, rule.Resumes())

	m, err := ref.AddTransition("Open", "Closed", never, nil).Build()
	require.NoError(t, err)

	require.NoError(t, m.Tick(context.Background()))
	assert.Equal(t, "Closed", m.CurrentState())

	open = true

	require.NoError(t, m.Tick(context.Background()))
	assert.Equal(t, "Open", m.CurrentState())
	assert.True(t, ran)
}

func TestRuleRefAfterNilRule(t *testing.T) {
	t.Parallel()

	ref := NewBuilder("A").AddRule(nil)

	assert.Nil(t, ref.Rule())
	assert.NotPanics(t, func() {
		ref.Describe("x").When(always).Then(nil).Resume(true).RateLimited(0)
	})
}

func TestBuilderSettings(t *testing.T) {
	t.Parallel()

	cfg := NewBuilder("A").
		Apply(WithName("settings")).
		SetIgnoreTag('~').
		DisableValidationForStates("Z", "Y").
		Verbose().
		AllowEmpty().
		DisableValidation().
		Config()

	assert.Equal(t, "settings", cfg.Name())
	assert.Equal(t, '~', cfg.IgnoreTag())
	assert.Equal(t, DefaultInitialStateTag, cfg.InitialStateTag())
	assert.Equal(t, []string{"Y", "Z"}, cfg.Excluded())
	assert.True(t, cfg.Verbose())
	assert.True(t, cfg.IsEmpty())
	assert.True(t, cfg.ValidationDisabled())
	assert.True(t, cfg.IsIgnored("~Done"))
	assert.False(t, cfg.IsIgnored("!Done"))
	assert.True(t, cfg.IsExempt("Z"))
}

func TestBuilderAllowEmpty(t *testing.T) {
	t.Parallel()

	m, err := NewBuilder[string]("").AllowEmpty().Build()
	require.NoError(t, err)

	require.NoError(t, m.Tick(context.Background()))
	assert.Empty(t, m.CurrentState())
	assert.Empty(t, m.States())
}

func TestBuilderCustomCheck(t *testing.T) {
	t.Parallel()

	noSelfLoops := func(cfg *Config[string]) []Violation {
		var violations []Violation

		for i, rule := range cfg.Rules() {
			if tr, ok := rule.(*StateTransition[string]); ok && tr.From() == tr.To() {
				violations = append(violations, Violation{
					Category:  "SelfLoop",
					Message:   "transition loops on " + tr.From(),
					RuleIndex: i,
					Rule:      rule.Description(),
				})
			}
		}

		return violations
	}

	_, err := NewBuilder("A").
		AddCheck(noSelfLoops).
		AddCheck(nil).
		AddTransition("A", "A", always, nil).
		Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "[SelfLoop] transition loops on A")
}

func TestConfigStatesInReferenceOrder(t *testing.T) {
	t.Parallel()

	cfg := NewBuilder("B").
		AddTransition("B", "A", never, nil).
		AddForceState("C", never, nil).
		AddStateToggle("A", "B", never, never, nil, nil).
		AddContainsTransition("x", "A", never, nil).
		Config()

	assert.Equal(t, []string{"B", "A", "C", "x"}, cfg.States())
}
