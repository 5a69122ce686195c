// Package visualizer generates Mermaid state diagrams from state machine
// configurations.
//
//nolint:varnamelen // Short names idiomatic
package visualizer

import (
	"errors"
	"fmt"
	"strings"

	"facette.io/natsort"
	"github.com/amp-labs/sequence/statemachine"
	"github.com/amp-labs/sequence/statemachine/definition"
)

// Visualizer errors.
var (
	ErrConfigNil        = errors.New("config cannot be nil")
	ErrNoInitialState   = errors.New("config must have an initial state")
	ErrInvalidDirection = errors.New("invalid diagram direction")
)

// GenerateMermaid converts a Config to a Mermaid state diagram.
func GenerateMermaid[S statemachine.Label](config *statemachine.Config[S]) (string, error) {
	return GenerateMermaidWithOptions(config, DefaultOptions())
}

// GenerateMermaidFromFile loads a definition file and generates a Mermaid diagram.
// The definition does not have to pass graph validation.
func GenerateMermaidFromFile(path string, opts Options) (string, error) {
	file, err := definition.Load(path)
	if err != nil {
		return "", fmt.Errorf("failed to load definition: %w", err)
	}

	program, err := file.Compile(nil)
	if err != nil {
		return "", fmt.Errorf("failed to compile definition: %w", err)
	}

	return GenerateMermaidWithOptions(program.Config(), opts)
}

// GenerateMermaidWithOptions generates a Mermaid diagram with custom options.
//
// Every state becomes a node with a generated id, so labels may hold any
// character. Force states are drawn from [*], ignore-tagged states lead to [*],
// a contains rule gets an edge from every known state matching its substring
// and a toggle gets an edge in each direction.
func GenerateMermaidWithOptions[S statemachine.Label](config *statemachine.Config[S], opts Options) (string, error) {
	if config == nil {
		return "", ErrConfigNil
	}

	if config.InitialState() == "" {
		return "", ErrNoInitialState
	}

	direction, err := normalizeDirection(opts.Direction)
	if err != nil {
		return "", err
	}

	d := newDiagram(config, opts)

	var sb strings.Builder

	sb.WriteString("```mermaid\n")

	if opts.Theme != "" && opts.Theme != "default" {
		fmt.Fprintf(&sb, "%%%%{init: {'theme': '%s'}}%%%%\n", opts.Theme)
	}

	sb.WriteString("stateDiagram-v2\n")
	fmt.Fprintf(&sb, "    direction %s\n", direction)

	for _, state := range d.states {
		fmt.Fprintf(&sb, "    state \"%s\" as %s\n", escape(state), d.ids[state])
	}

	fmt.Fprintf(&sb, "    [*] --> %s\n", d.ids[string(config.InitialState())])

	for i, rule := range config.Rules() {
		d.writeRule(&sb, i, rule)
	}

	for _, state := range d.states {
		if config.IsIgnored(S(state)) {
			fmt.Fprintf(&sb, "    %s --> [*]\n", d.ids[state])
		}
	}

	highlighted := make(map[string]bool)
	for _, state := range opts.HighlightPath {
		highlighted[state] = true
	}

	for _, state := range d.states {
		switch {
		case highlighted[state]:
			fmt.Fprintf(&sb, "    class %s highlighted\n", d.ids[state])
		case config.IsIgnored(S(state)):
			fmt.Fprintf(&sb, "    class %s terminal\n", d.ids[state])
		case d.forced[state]:
			fmt.Fprintf(&sb, "    class %s forced\n", d.ids[state])
		}
	}

	sb.WriteString("\n")
	sb.WriteString("    classDef forced fill:#ffebee,stroke:#c62828,stroke-width:2px\n")
	sb.WriteString("    classDef terminal fill:#c8e6c9,stroke:#2e7d32,stroke-width:2px\n")
	sb.WriteString("    classDef highlighted fill:#fff9c4,stroke:#f57f17,stroke-width:3px\n")

	sb.WriteString("```\n")

	return sb.String(), nil
}

type diagram[S statemachine.Label] struct {
	opts   Options
	states []string
	ids    map[string]string
	forced map[string]bool
}

func newDiagram[S statemachine.Label](config *statemachine.Config[S], opts Options) *diagram[S] {
	d := &diagram[S]{
		opts:   opts,
		ids:    make(map[string]string),
		forced: make(map[string]bool),
	}

	add := func(states ...S) {
		for _, s := range states {
			if _, ok := d.ids[string(s)]; !ok {
				d.ids[string(s)] = ""
				d.states = append(d.states, string(s))
			}
		}
	}

	add(config.InitialState())

	for _, rule := range config.Rules() {
		switch r := rule.(type) {
		case *statemachine.StateTransition[S]:
			add(r.From(), r.To())
		case *statemachine.AnyStateTransition[S]:
			add(r.From()...)
			add(r.To())
		case *statemachine.ContainsStateTransition[S]:
			add(r.To())
		case *statemachine.ForceState[S]:
			add(r.To())

			d.forced[string(r.To())] = true
		case *statemachine.StateAction[S]:
			add(r.At())
		case *statemachine.StateToggle[S]:
			add(r.From(), r.To())
		}
	}

	natsort.Sort(d.states)

	for i, state := range d.states {
		d.ids[state] = fmt.Sprintf("s%d", i+1)
	}

	return d
}

func (d *diagram[S]) writeRule(sb *strings.Builder, index int, rule statemachine.Rule[S]) {
	label := d.label(rule)

	switch r := rule.(type) {
	case *statemachine.StateTransition[S]:
		d.edge(sb, d.ids[string(r.From())], r.To(), label)
	case *statemachine.AnyStateTransition[S]:
		for _, from := range r.From() {
			d.edge(sb, d.ids[string(from)], r.To(), label)
		}
	case *statemachine.ContainsStateTransition[S]:
		matched := false

		for _, state := range d.states {
			if state != string(r.To()) && r.Matches(S(state)) {
				d.edge(sb, d.ids[state], r.To(), label)

				matched = true
			}
		}

		if !matched {
			id := fmt.Sprintf("c%d", index)
			fmt.Fprintf(sb, "    state \"*%s*\" as %s\n", escape(string(r.Contains())), id)
			d.edge(sb, id, r.To(), label)
		}
	case *statemachine.ForceState[S]:
		d.edge(sb, "[*]", r.To(), label)
	case *statemachine.StateAction[S]:
		if d.opts.ShowActions {
			note := "action"
			if statemachine.HasDescription(rule) {
				note = rule.Description()
			}

			fmt.Fprintf(sb, "    note right of %s : %s\n", d.ids[string(r.At())], escape(note))
		}
	case *statemachine.StateToggle[S]:
		set, reset := "set", "reset"
		if label != "" {
			set, reset = label+" (set)", label+" (reset)"
		}

		d.edge(sb, d.ids[string(r.From())], r.To(), set)
		d.edge(sb, d.ids[string(r.To())], r.From(), reset)
	}
}

func (d *diagram[S]) edge(sb *strings.Builder, fromID string, to S, label string) {
	if label == "" {
		fmt.Fprintf(sb, "    %s --> %s\n", fromID, d.ids[string(to)])

		return
	}

	fmt.Fprintf(sb, "    %s --> %s : %s\n", fromID, d.ids[string(to)], escape(label))
}

func (d *diagram[S]) label(rule statemachine.Rule[S]) string {
	if !d.opts.ShowDescriptions || !statemachine.HasDescription(rule) {
		return ""
	}

	return rule.Description()
}

func normalizeDirection(direction string) (string, error) {
	switch strings.ToUpper(direction) {
	case "", "TB", "TD":
		return "TB", nil
	case "BT", "LR", "RL":
		return strings.ToUpper(direction), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDirection, direction)
	}
}

// escape keeps labels on one line and away from Mermaid's delimiters.
func escape(s string) string {
	return strings.NewReplacer(
		"\n", " ",
		"\"", "'",
		":", "#58;",
		";", "#59;",
	).Replace(s)
}
