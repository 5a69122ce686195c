package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/amp-labs/sequence/cli"
	"github.com/amp-labs/sequence/statemachine"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testdata = "../../statemachine/definition/testdata/"

var testConfig = Config{
	Environment: "test",
	Direction:   "TB",
	Ticks:       10,
	Interval:    100 * time.Millisecond,
}

func execute(t *testing.T, cfg Config, args ...string) (string, string, error) {
	t.Helper()

	var stdout, stderr bytes.Buffer

	root := newRootCmd(cfg)
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.Execute()

	return stdout.String(), stderr.String(), err
}

func writeDefinition(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "machine.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestValidate(t *testing.T) {
	t.Parallel()

	out, _, err := execute(t, testConfig, "validate", testdata+"switch.yaml", testdata+"door.yaml")
	require.NoError(t, err)

	assert.Contains(t, out, "switch.yaml: valid (3 rules, 3 states)\n")
	assert.Contains(t, out, "door.yaml: valid (7 rules,")
}

func TestValidateReportsViolations(t *testing.T) {
	t.Parallel()

	out, _, err := execute(t, testConfig, "validate", testdata+"dead_end.yaml", testdata+"switch.yaml")
	require.ErrorIs(t, err, statemachine.ErrValidationFailed)
	require.ErrorIs(t, err, statemachine.ErrUnreachableTarget)
	assert.Contains(t, err.Error(), "dead-end: ")
	assert.Contains(t, out, "switch.yaml: valid", "later files are still checked")
}

func TestValidateErrors(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, testConfig, "validate")
	require.Error(t, err)

	_, _, err = execute(t, testConfig, "validate", testdata+"missing.yaml")
	require.Error(t, err)

	path := writeDefinition(t, "rules:\n  - kind: force\n    to: A\n    when: data.\n")

	_, _, err = execute(t, testConfig, "validate", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule 0")
}

func TestGraph(t *testing.T) {
	t.Parallel()

	out, _, err := execute(t, testConfig, "graph", testdata+"switch.yaml", "--direction", "LR", "--highlight", "On")
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(out, "```mermaid\n"))
	assert.Contains(t, out, "direction LR")
	assert.Contains(t, out, ": input went high")
	assert.Contains(t, out, "highlighted\n")

	out, _, err = execute(t, Config{Direction: "RL"}, "graph", testdata+"switch.yaml", "--no-descriptions")
	require.NoError(t, err)
	assert.Contains(t, out, "direction RL")
	assert.NotContains(t, out, "input went high")

	_, _, err = execute(t, testConfig, "graph", testdata+"switch.yaml", "--direction", "up")
	require.Error(t, err)
}

func TestStates(t *testing.T) {
	t.Parallel()

	out, _, err := execute(t, testConfig, "states", testdata+"door.yaml")
	require.NoError(t, err)

	assert.Contains(t, out, "* ^Closed\n")
	assert.Contains(t, out, "  Held\n")
	assert.Contains(t, out, "  ~Jammed (terminal)\n")

	out, _, err = execute(t, testConfig, "states", testdata+"switch.yaml")
	require.NoError(t, err)
	assert.Equal(t, "* Off\n  On (exempt)\n  WaitOn\n", out)
}

func TestSimulate(t *testing.T) {
	t.Parallel()

	out, stderr, err := execute(t, testConfig,
		"simulate", testdata+"switch.yaml",
		"--ticks", "3", "--interval", "30ms", "--set", "input=true",
	)
	require.NoError(t, err)

	assert.Equal(t, strings.Join([]string{
		"switch: Off",
		"tick 1 +30ms: Off -> WaitOn",
		"tick 2 +60ms: WaitOn",
		"tick 3 +90ms: WaitOn -> On",
		"final state: On",
		"  input = true",
		"  lamp = lit",
		"",
	}, "\n"), out)
	assert.Contains(t, stderr, "switched on")
}

func TestSimulateVerbose(t *testing.T) {
	t.Parallel()

	_, stderr, err := execute(t, testConfig,
		"simulate", testdata+"switch.yaml", "-n", "1", "--set", "input=true", "-v",
	)
	require.NoError(t, err)
	assert.Contains(t, stderr, "Rule fired")
	assert.Contains(t, stderr, "input went high")
}

func TestSimulateErrors(t *testing.T) {
	t.Parallel()

	_, _, err := execute(t, testConfig, "simulate", testdata+"switch.yaml", "--set", "input")
	require.ErrorIs(t, err, cli.ErrInvalidAssignment)

	_, _, err = execute(t, testConfig, "simulate", testdata+"dead_end.yaml")
	require.ErrorIs(t, err, statemachine.ErrValidationFailed)

	_, _, err = execute(t, testConfig, "simulate", testdata+"switch.yaml", "--redis-url", "mysql://nope")
	require.Error(t, err)

	path := writeDefinition(t, `
name: broken
initialState: A
rules:
  - kind: transition
    from: A
    to: B
    when: always
    actions:
      - type: fail
        parameters:
          message: jammed
  - kind: transition
    from: B
    to: A
    when: always
`)

	out, _, err := execute(t, testConfig, "simulate", path, "-n", "5")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tick 1")
	assert.Contains(t, err.Error(), "jammed")
	assert.Contains(t, out, "tick 1 +100ms: A -> B\n")
}

func TestSimulateRedisRateLimit(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)

	path := writeDefinition(t, `
name: beeper
initialState: Idle
rules:
  - kind: action
    at: Idle
    rateLimit: 1m
    actions:
      - type: log
        parameters:
          message: beep
  - kind: transition
    from: Idle
    to: Done
    when: data.done
  - kind: transition
    from: Done
    to: Idle
    when: never
`)

	cfg := testConfig
	cfg.RedisURL = "redis://" + mr.Addr()

	_, stderr, err := execute(t, cfg, "simulate", path, "-n", "3", "-i", "1s")
	require.NoError(t, err)

	assert.Equal(t, 1, strings.Count(stderr, "msg=beep"), "the window holds across ticks")
	assert.Len(t, mr.Keys(), 1)
	assert.True(t, strings.HasPrefix(mr.Keys()[0], "sequence:ratelimit:"))

	_, stderr, err = execute(t, cfg, "simulate", path, "-n", "1")
	require.NoError(t, err)
	assert.NotContains(t, stderr, "msg=beep", "a new process sees the same window")
}

func TestSimulateStoresShareTheMachineClock(t *testing.T) {
	t.Parallel()

	path := writeDefinition(t, `
name: beeper
initialState: Idle
rules:
  - kind: action
    at: Idle
    rateLimit: 1s
    actions:
      - type: log
        parameters:
          message: beep
  - kind: transition
    from: Idle
    to: Done
    when: data.done
  - kind: transition
    from: Done
    to: Idle
    when: never
`)

	tests := []struct {
		name      string
		args      []string
		wantBeeps int
	}{
		{name: "interval longer than window", args: []string{"-n", "3", "-i", "2s"}, wantBeeps: 3},
		{name: "interval shorter than window", args: []string{"-n", "5", "-i", "400ms"}, wantBeeps: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			args := append([]string{"simulate", path}, tt.args...)

			_, memoryLogs, err := execute(t, testConfig, args...)
			require.NoError(t, err)

			cfg := testConfig
			cfg.RedisURL = "redis://" + miniredis.RunT(t).Addr()

			_, redisLogs, err := execute(t, cfg, args...)
			require.NoError(t, err)

			assert.Equal(t, tt.wantBeeps, strings.Count(memoryLogs, "msg=beep"))
			assert.Equal(t, tt.wantBeeps, strings.Count(redisLogs, "msg=beep"))
		})
	}
}

//nolint:paralleltest // Uses t.Setenv
func TestLoadConfig(t *testing.T) {
	t.Setenv("SEQLINT_LOG_LEVEL", "debug")
	t.Setenv("SEQLINT_TICKS", "25")
	t.Setenv("SEQLINT_REDIS_URL", "redis://localhost:6379/1")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, -4, int(cfg.LogLevel))
	assert.Equal(t, 25, cfg.Ticks)
	assert.Equal(t, "redis://localhost:6379/1", cfg.RedisURL)
	assert.Equal(t, 100*time.Millisecond, cfg.Interval)

	t.Setenv("SEQLINT_INTERVAL", "never")

	_, err = LoadConfig()
	require.Error(t, err)
}
