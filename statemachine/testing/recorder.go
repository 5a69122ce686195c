package testing

import (
	"context"
	"slices"
	"sync"

	"github.com/amp-labs/sequence/statemachine"
)

// EventType identifies what a TraceEntry recorded.
type EventType string

const (
	EventRuleFired    EventType = "rule_fired"
	EventStateChanged EventType = "state_changed"
	EventActionFailed EventType = "action_failed"
)

// TraceEntry records a single logger callback.
type TraceEntry struct {
	Type EventType
	// Record is set for rule firings and action failures.
	Record statemachine.FiringRecord
	From   string
	To     string
	Error  error
}

// Recorder is a statemachine.Logger that keeps every callback in order.
type Recorder struct {
	mu    sync.Mutex
	trace []TraceEntry
}

var _ statemachine.Logger = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) RuleFired(_ context.Context, record statemachine.FiringRecord) {
	r.append(TraceEntry{
		Type:   EventRuleFired,
		Record: record,
		From:   record.From,
		To:     record.To,
	})
}

func (r *Recorder) StateChanged(_ context.Context, _ string, from, to string) {
	r.append(TraceEntry{
		Type: EventStateChanged,
		From: from,
		To:   to,
	})
}

func (r *Recorder) ActionFailed(_ context.Context, record statemachine.FiringRecord, err error) {
	r.append(TraceEntry{
		Type:   EventActionFailed,
		Record: record,
		From:   record.From,
		To:     record.To,
		Error:  err,
	})
}

func (r *Recorder) append(entry TraceEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.trace = append(r.trace, entry)
}

// Trace returns a copy of everything recorded so far.
func (r *Recorder) Trace() []TraceEntry {
	r.mu.Lock()
	defer r.mu.Unlock()

	return slices.Clone(r.trace)
}

// Firings returns the recorded rule firings.
func (r *Recorder) Firings() []statemachine.FiringRecord {
	var firings []statemachine.FiringRecord

	for _, entry := range r.Trace() {
		if entry.Type == EventRuleFired {
			firings = append(firings, entry.Record)
		}
	}

	return firings
}

// Path returns the sequence of states entered, starting with the state the
// first change left.
func (r *Recorder) Path() []string {
	var path []string

	for _, entry := range r.Trace() {
		if entry.Type != EventStateChanged {
			continue
		}

		if len(path) == 0 {
			path = append(path, entry.From)
		}

		path = append(path, entry.To)
	}

	return path
}

// Reset forgets everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.trace = nil
}
