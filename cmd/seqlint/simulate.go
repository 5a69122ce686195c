package main

import (
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/amp-labs/sequence/cli"
	"github.com/amp-labs/sequence/driver"
	"github.com/amp-labs/sequence/ratelimit"
	"github.com/amp-labs/sequence/statemachine"
	"github.com/amp-labs/sequence/statemachine/definition"
	smtesting "github.com/amp-labs/sequence/statemachine/testing"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

type simulateFlags struct {
	ticks       int
	interval    time.Duration
	set         []string
	interactive bool
	verbose     bool
	redisURL    string
}

func (a *app) simulateCmd() *cobra.Command {
	flags := simulateFlags{}

	cmd := &cobra.Command{
		Use:   "simulate FILE",
		Short: "Run a definition tick by tick on a virtual clock",
		Long: `Builds the machine and ticks it --ticks times, advancing a virtual clock by
--interval before each tick. Inputs start from --set key=value pairs; with
--interactive the simulator asks for more assignments before every tick.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSimulate(cmd, args[0], flags)
		},
	}

	cmd.Flags().IntVarP(&flags.ticks, "ticks", "n", a.cfg.Ticks, "number of ticks to run")
	cmd.Flags().DurationVarP(&flags.interval, "interval", "i", a.cfg.Interval, "virtual time between ticks")
	cmd.Flags().StringArrayVar(&flags.set, "set", nil, "initial input as key=value (repeatable)")
	cmd.Flags().BoolVar(&flags.interactive, "interactive", false, "prompt for inputs before each tick")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "log every rule firing")
	cmd.Flags().StringVar(&flags.redisURL, "redis-url", a.cfg.RedisURL, "keep rate-limit windows in Redis")

	return cmd
}

//nolint:funlen // Setup and loop read best together
func (a *app) runSimulate(cmd *cobra.Command, path string, flags simulateFlags) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	inputs := definition.NewInputs(nil)

	for _, assignment := range flags.set {
		key, value, err := cli.ParseAssignment(assignment)
		if err != nil {
			return err
		}

		inputs.Set(key, definition.ParseValue(value))
	}

	clock := smtesting.NewFakeClock(time.Time{})
	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))

	machineOptions := []statemachine.Option{statemachine.WithClock(clock)}

	if flags.verbose {
		machineOptions = append(machineOptions, statemachine.WithLogger(statemachine.NewDefaultLogger(logger)))
	}

	if flags.redisURL != "" {
		store, closeStore, err := redisStore(flags.redisURL, clock.Now)
		if err != nil {
			return err
		}

		defer closeStore()

		machineOptions = append(machineOptions, statemachine.WithThrottleStore(store))
	}

	_, program, err := compile(path, inputs,
		definition.WithLogger(logger),
		definition.WithMachineOptions(machineOptions...),
	)
	if err != nil {
		return err
	}

	m, err := program.Build()
	if err != nil {
		return err
	}

	d := driver.New(driver.WithWorkers(1))
	defer d.Stop()

	d.Add(m)

	fmt.Fprintf(out, "%s: %s\n", m.Name(), m.CurrentState())

	for tick := 1; tick <= flags.ticks; tick++ {
		if flags.interactive {
			if err := a.promptInputs(inputs); err != nil {
				return err
			}
		}

		clock.Advance(flags.interval)

		from := m.CurrentState()
		err := d.Round(ctx)

		printTick(out, tick, m.Elapsed(), from, m.CurrentState())

		if err != nil {
			return fmt.Errorf("tick %d: %w", tick, err)
		}
	}

	fmt.Fprintf(out, "final state: %s\n", m.CurrentState())
	printInputs(out, inputs)

	return nil
}

func (a *app) promptInputs(inputs *definition.Inputs) error {
	for {
		key, value, ok, err := a.prompter.Assignment("set key=value (empty to tick)")
		if err != nil {
			return err
		}

		if !ok {
			return nil
		}

		inputs.Set(key, definition.ParseValue(value))
	}
}

// redisStore connects to url and measures windows on now, the machine's clock.
func redisStore(url string, now func() time.Time) (ratelimit.Store, func(), error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	return ratelimit.NewRedisStore(client, ratelimit.WithRedisNow(now)), func() { _ = client.Close() }, nil
}

func printTick(out io.Writer, tick int, elapsed time.Duration, from, to string) {
	if from == to {
		fmt.Fprintf(out, "tick %d +%s: %s\n", tick, elapsed, to)

		return
	}

	fmt.Fprintf(out, "tick %d +%s: %s -> %s\n", tick, elapsed, from, to)
}

func printInputs(out io.Writer, inputs *definition.Inputs) {
	snapshot := inputs.Snapshot()

	for _, key := range slices.Sorted(maps.Keys(snapshot)) {
		fmt.Fprintf(out, "  %s = %v\n", key, snapshot[key])
	}
}
