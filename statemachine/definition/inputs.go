package definition

import (
	"fmt"
	"maps"
	"strconv"
	"sync"
)

// Inputs is a thread-safe map of values read by conditions and written by
// actions. The embedding application updates it between ticks.
type Inputs struct {
	mu   sync.RWMutex
	data map[string]any
}

// NewInputs creates inputs seeded with a copy of initial.
func NewInputs(initial map[string]any) *Inputs {
	data := make(map[string]any, len(initial))
	maps.Copy(data, initial)

	return &Inputs{data: data}
}

// Get retrieves a value.
func (in *Inputs) Get(key string) (any, bool) {
	in.mu.RLock()
	defer in.mu.RUnlock()

	val, ok := in.data[key]

	return val, ok
}

// Set stores a value.
func (in *Inputs) Set(key string, value any) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.data[key] = value
}

// GetBool retrieves a boolean value.
func (in *Inputs) GetBool(key string) (bool, bool) {
	val, ok := in.Get(key)
	if !ok {
		return false, false
	}

	b, ok := val.(bool)

	return b, ok
}

// GetString retrieves a value rendered as a string.
func (in *Inputs) GetString(key string) (string, bool) {
	val, ok := in.Get(key)
	if !ok {
		return "", false
	}

	return fmt.Sprintf("%v", val), true
}

// Merge copies data into the inputs.
func (in *Inputs) Merge(data map[string]any) {
	in.mu.Lock()
	defer in.mu.Unlock()

	maps.Copy(in.data, data)
}

// Snapshot returns a copy of the current values.
func (in *Inputs) Snapshot() map[string]any {
	in.mu.RLock()
	defer in.mu.RUnlock()

	return maps.Clone(in.data)
}

// ParseValue converts a command-line value into a bool, an int, a float or,
// failing those, the string itself.
func ParseValue(raw string) any {
	switch raw {
	case "true":
		return true
	case "false":
		return false
	}

	if i, err := strconv.Atoi(raw); err == nil {
		return i
	}

	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}

	return raw
}
