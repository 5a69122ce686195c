package definition

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"

	"github.com/amp-labs/sequence/statemachine"
)

// ActionEnv is what an action built from a definition can reach.
type ActionEnv struct {
	Machine string
	Inputs  *Inputs
	Logger  *slog.Logger
}

// ActionBuilder creates an action from configuration.
// The factory parameter allows reusing custom builders for nested actions.
type ActionBuilder func(factory *ActionFactory, env ActionEnv, config ActionConfig) (statemachine.Action, error)

// ActionFactory creates actions from configuration.
// Applications can register custom action builders to extend the built-in set.
type ActionFactory struct {
	builders map[string]ActionBuilder
}

// NewActionFactory creates a factory with the built-in builders:
// noop, log, set, fail and sequence.
func NewActionFactory() *ActionFactory {
	factory := &ActionFactory{
		builders: make(map[string]ActionBuilder),
	}

	factory.Register("noop", noopActionBuilder)
	factory.Register("log", logActionBuilder)
	factory.Register("set", setActionBuilder)
	factory.Register("fail", failActionBuilder)
	factory.Register("sequence", sequenceActionBuilder)

	return factory
}

// Register registers a custom action builder, replacing any builder of the same type.
func (f *ActionFactory) Register(actionType string, builder ActionBuilder) {
	f.builders[actionType] = builder
}

// Types lists the registered action types, sorted.
func (f *ActionFactory) Types() []string {
	return slices.Sorted(maps.Keys(f.builders))
}

// Create creates an action from configuration.
func (f *ActionFactory) Create(env ActionEnv, config ActionConfig) (statemachine.Action, error) {
	builder, ok := f.builders[config.Type]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownActionType, config.Type)
	}

	return builder(f, env, config)
}

// CreateAll creates every action and chains them into one.
func (f *ActionFactory) CreateAll(env ActionEnv, configs []ActionConfig) (statemachine.Action, error) {
	if len(configs) == 0 {
		return nil, nil //nolint:nilnil // A nil Action does nothing
	}

	actions := make([]statemachine.Action, 0, len(configs))

	for i, config := range configs {
		action, err := f.Create(env, config)
		if err != nil {
			return nil, fmt.Errorf("action %d: %w", i, err)
		}

		actions = append(actions, action)
	}

	if len(actions) == 1 {
		return actions[0], nil
	}

	return statemachine.Sequence(actions...), nil
}

func noopActionBuilder(*ActionFactory, ActionEnv, ActionConfig) (statemachine.Action, error) {
	return func(context.Context) error { return nil }, nil
}

// logActionBuilder logs parameters.message at parameters.level (default info).
func logActionBuilder(_ *ActionFactory, env ActionEnv, config ActionConfig) (statemachine.Action, error) {
	message, ok := config.Parameters["message"].(string)
	if !ok || message == "" {
		return nil, fmt.Errorf("%w: log requires a message", ErrInvalidAction)
	}

	level := slog.LevelInfo

	if raw, ok := config.Parameters["level"].(string); ok {
		err := level.UnmarshalText([]byte(strings.ToUpper(raw)))
		if err != nil {
			return nil, fmt.Errorf("%w: log level %q", ErrInvalidAction, raw)
		}
	}

	logger := env.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context) error {
		logger.Log(ctx, level, message, "machine", env.Machine, "action", config.Name)

		return nil
	}, nil
}

// setActionBuilder merges the parameters into the inputs.
func setActionBuilder(_ *ActionFactory, env ActionEnv, config ActionConfig) (statemachine.Action, error) {
	if len(config.Parameters) == 0 {
		return nil, fmt.Errorf("%w: set requires parameters", ErrInvalidAction)
	}

	values := maps.Clone(config.Parameters)

	return func(context.Context) error {
		env.Inputs.Merge(values)

		return nil
	}, nil
}

// failActionBuilder returns an error carrying parameters.message.
func failActionBuilder(_ *ActionFactory, _ ActionEnv, config ActionConfig) (statemachine.Action, error) {
	message, _ := config.Parameters["message"].(string)
	if message == "" {
		message = config.Name
	}

	return func(context.Context) error {
		return fmt.Errorf("%w: %s", ErrActionFailed, message)
	}, nil
}

// sequenceActionBuilder chains the nested parameters.actions.
func sequenceActionBuilder(factory *ActionFactory, env ActionEnv, config ActionConfig) (statemachine.Action, error) {
	nested, ok := config.Parameters["actions"].([]any)
	if !ok || len(nested) == 0 {
		return nil, fmt.Errorf("%w: sequence requires actions", ErrInvalidAction)
	}

	configs := make([]ActionConfig, 0, len(nested))

	for i, raw := range nested {
		actionMap, ok := raw.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("%w: sequence action %d is not a map", ErrInvalidAction, i)
		}

		actionType, _ := actionMap["type"].(string)
		actionName, _ := actionMap["name"].(string)
		actionParams, _ := actionMap["parameters"].(map[string]any)

		configs = append(configs, ActionConfig{
			Type:       actionType,
			Name:       actionName,
			Parameters: actionParams,
		})
	}

	action, err := factory.CreateAll(env, configs)
	if err != nil {
		return nil, fmt.Errorf("sequence %q: %w", config.Name, err)
	}

	return action, nil
}
