// Package driver ticks state machines on a schedule. A machine never ticks
// itself; the driver is the external loop that advances it.
package driver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/alitto/pond/v2"
	"github.com/caarlos0/env/v11"
)

const (
	defaultInterval    = 100 * time.Millisecond
	defaultWorkerCount = 10
)

// Tickable is anything advanced by ticks, typically a *statemachine.Machine.
type Tickable interface {
	Tick(ctx context.Context) error
}

// Config is the driver configuration read from the environment.
type Config struct {
	Interval time.Duration `env:"SEQUENCE_TICK_INTERVAL" envDefault:"100ms"`
	Workers  int           `env:"SEQUENCE_DRIVER_WORKERS" envDefault:"10"`
}

// LoadConfig reads Config from the environment.
func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse driver config: %w", err)
	}

	return cfg, nil
}

type options struct {
	interval time.Duration
	workers  int
	logger   *slog.Logger
}

// Option configures a Driver.
type Option func(*options)

// WithConfig applies an environment configuration.
func WithConfig(cfg Config) Option {
	return func(o *options) {
		if cfg.Interval > 0 {
			o.interval = cfg.Interval
		}

		if cfg.Workers > 0 {
			o.workers = cfg.Workers
		}
	}
}

// WithInterval sets the time between rounds in Run.
func WithInterval(interval time.Duration) Option {
	return func(o *options) {
		if interval > 0 {
			o.interval = interval
		}
	}
}

// WithWorkers sets how many machines tick concurrently.
func WithWorkers(workers int) Option {
	return func(o *options) {
		if workers > 0 {
			o.workers = workers
		}
	}
}

// WithLogger sets the logger for round failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// Driver ticks every added machine once per round. Rounds never overlap, so a
// machine is never ticked concurrently with itself.
type Driver struct {
	opts options
	pool pond.Pool

	mu       sync.Mutex
	machines []Tickable

	roundMu sync.Mutex
}

// New creates a driver with its own worker pool. Call Stop to release it.
func New(opts ...Option) *Driver {
	o := options{
		interval: defaultInterval,
		workers:  defaultWorkerCount,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		opt(&o)
	}

	slog.Debug("Initializing tick driver", "workers", o.workers, "interval", o.interval)

	return &Driver{
		opts: o,
		pool: pond.NewPool(o.workers),
	}
}

// Add registers machines. Machines added during a round join the next one.
func (d *Driver) Add(machines ...Tickable) {
	d.mu.Lock()
	defer d.mu.Unlock()

	for _, m := range machines {
		if m != nil {
			d.machines = append(d.machines, m)
		}
	}
}

// Len returns the number of registered machines.
func (d *Driver) Len() int {
	d.mu.Lock()
	defer d.mu.Unlock()

	return len(d.machines)
}

// Round ticks every machine once and waits for all of them. A failing
// machine does not stop the others; their errors are joined.
func (d *Driver) Round(ctx context.Context) error {
	d.roundMu.Lock()
	defer d.roundMu.Unlock()

	d.mu.Lock()
	machines := make([]Tickable, len(d.machines))
	copy(machines, d.machines)
	d.mu.Unlock()

	tasks := make([]pond.Task, len(machines))

	for i, m := range machines {
		tasks[i] = d.pool.SubmitErr(func() error {
			return m.Tick(ctx)
		})
	}

	errs := make([]error, 0, len(tasks))

	for i, task := range tasks {
		if err := task.Wait(); err != nil {
			errs = append(errs, fmt.Errorf("machine %d: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

// Run executes a round every interval until ctx is done or a round fails.
// It returns the failing round's error, or nil when ctx ends the loop.
func (d *Driver) Run(ctx context.Context) error {
	ticker := time.NewTicker(d.opts.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := d.Round(ctx); err != nil {
				d.opts.logger.ErrorContext(ctx, "Tick round failed", "error", err)

				return err
			}
		}
	}
}

// Stop waits for running ticks and releases the worker pool.
func (d *Driver) Stop() {
	slog.Debug("Stopping tick driver")
	d.pool.StopAndWait()
}
