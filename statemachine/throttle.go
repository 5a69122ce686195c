package statemachine

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/amp-labs/sequence/ratelimit"
)

// throttleKey identifies one action slot of one rule. It is stable across
// restarts as long as the machine name and rule declarations do not change.
func throttleKey[S Label](machine string, index, slot int, rule Rule[S]) string {
	return ratelimit.Key(machine, strconv.Itoa(index), rule.Kind().String(), rule.Description(), strconv.Itoa(slot))
}

// throttled wraps action so it runs at most once per window. Throttled calls
// are silent no-ops; the rule's transition is not affected.
func throttled(action Action, store ratelimit.Store, key string, window time.Duration, machine string) Action {
	if action == nil {
		return nil
	}

	return func(ctx context.Context) error {
		ok, err := store.Acquire(ctx, key, window)
		if err != nil {
			return fmt.Errorf("rate limit: %w", err)
		}

		if !ok {
			throttledActionsTotal.WithLabelValues(sanitizeMachine(machine)).Inc()

			return nil
		}

		return action(ctx)
	}
}

// applyThrottles wraps the actions of every rate-limited rule of cfg.
func applyThrottles[S Label](cfg *Config[S], store ratelimit.Store) {
	for i, rule := range cfg.rules {
		window := rule.common().throttle
		if window <= 0 {
			continue
		}

		for slot, action := range rule.actionSlots() {
			*action = throttled(*action, store, throttleKey(cfg.name, i, slot, rule), window, cfg.name)
		}
	}
}
