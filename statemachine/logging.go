package statemachine

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
)

// MethodExecuteAction is the method name reported for every rule firing.
const MethodExecuteAction = "ExecuteAction"

// FiringRecord describes one rule firing.
type FiringRecord struct {
	Machine     string
	MachineID   string
	RuleIndex   int
	Kind        Kind
	Description string
	// From and To are the current state before and after the rule fired.
	From string
	To   string
	// Elapsed is the machine time at the firing.
	Elapsed time.Duration
	Method  string
}

// Logger provides observability hooks for machine execution.
type Logger interface {
	RuleFired(ctx context.Context, record FiringRecord)
	StateChanged(ctx context.Context, machine string, from, to string)
	ActionFailed(ctx context.Context, record FiringRecord, err error)
}

// NoopLogger discards everything. It is the default.
type NoopLogger struct{}

func (NoopLogger) RuleFired(context.Context, FiringRecord) {}

func (NoopLogger) StateChanged(context.Context, string, string, string) {}

func (NoopLogger) ActionFailed(context.Context, FiringRecord, error) {}

// DefaultLogger implements Logger using slog.
type DefaultLogger struct {
	logger *slog.Logger
}

// NewDefaultLogger creates a logger writing to logger, or to slog.Default()
// when logger is nil.
func NewDefaultLogger(logger *slog.Logger) *DefaultLogger {
	if logger == nil {
		logger = slog.Default()
	}

	return &DefaultLogger{
		logger: logger,
	}
}

// NewOTelLogger creates a logger whose records go through the OpenTelemetry
// log pipeline installed by the telemetry package.
func NewOTelLogger(name string) *DefaultLogger {
	return NewDefaultLogger(otelslog.NewLogger(name))
}

func (l *DefaultLogger) RuleFired(ctx context.Context, record FiringRecord) {
	l.logger.InfoContext(ctx, "Rule fired", record.attrs()...)
}

func (l *DefaultLogger) StateChanged(ctx context.Context, machine string, from, to string) {
	l.logger.DebugContext(ctx, "State changed",
		"machine", machine,
		"from", from,
		"to", to,
	)
}

func (l *DefaultLogger) ActionFailed(ctx context.Context, record FiringRecord, err error) {
	l.logger.ErrorContext(ctx, "Action failed", append(record.attrs(), "error", err)...)
}

func (r FiringRecord) attrs() []any {
	return []any{
		"machine", r.Machine,
		"machine_id", r.MachineID,
		"method", r.Method,
		"rule", r.RuleIndex,
		"kind", r.Kind.String(),
		"description", r.Description,
		"from", r.From,
		"to", r.To,
		"elapsed_ms", r.Elapsed.Milliseconds(),
	}
}
