// Package definition declares state machines as data. A definition is a YAML
// document listing rules in firing order; conditions are small expressions
// evaluated against an input map, and actions come from an ActionFactory.
//
//	name: switch
//	initialState: Off
//	exempt: [On]
//	rules:
//	  - kind: force
//	    to: Off
//	    when: "!data.input"
//	  - kind: transition
//	    from: Off
//	    to: WaitOn
//	    when: data.input
//	  - kind: transition
//	    from: WaitOn
//	    to: On
//	    when: data.input && elapsed > 50ms
package definition

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"
	"unicode/utf8"

	"gopkg.in/yaml.v3"
)

// Rule kinds accepted in a definition.
const (
	KindTransition = "transition"
	KindAny        = "any"
	KindContains   = "contains"
	KindForce      = "force"
	KindAction     = "action"
	KindToggle     = "toggle"
)

// File is a machine definition.
type File struct {
	Name            string   `json:"name"              yaml:"name"`
	InitialState    string   `json:"initialState"      yaml:"initialState"`
	IgnoreTag       string   `json:"ignoreTag"         yaml:"ignoreTag"`
	InitialStateTag string   `json:"initialStateTag"   yaml:"initialStateTag"`
	Exempt          []string `json:"exempt"            yaml:"exempt"`
	Verbose         bool     `json:"verbose"           yaml:"verbose"`
	AllowEmpty      bool     `json:"allowEmpty"        yaml:"allowEmpty"`
	SkipValidation  bool     `json:"disableValidation" yaml:"disableValidation"`
	Rules           []Rule   `json:"rules"             yaml:"rules"`
}

// Rule declares one rule. Which state fields apply depends on Kind.
type Rule struct {
	Kind        string `json:"kind"        yaml:"kind"`
	Description string `json:"description" yaml:"description"`

	From     string   `json:"from"     yaml:"from"`
	FromAny  []string `json:"fromAny"  yaml:"fromAny"`
	Contains string   `json:"contains" yaml:"contains"`
	To       string   `json:"to"       yaml:"to"`
	At       string   `json:"at"       yaml:"at"`

	// When is the firing condition; for a toggle it is the dominant condition.
	When string `json:"when" yaml:"when"`
	// Unless suppresses the rule while it holds.
	Unless string `json:"unless" yaml:"unless"`
	// Reset is the toggle's reset condition.
	Reset string `json:"reset" yaml:"reset"`

	Resumes   *bool  `json:"resumes"   yaml:"resumes"`
	RateLimit string `json:"rateLimit" yaml:"rateLimit"`

	Actions      []ActionConfig `json:"actions"      yaml:"actions"`
	ResetActions []ActionConfig `json:"resetActions" yaml:"resetActions"`
}

// ActionConfig defines the configuration for an action.
type ActionConfig struct {
	Type       string         `json:"type"       yaml:"type"`
	Name       string         `json:"name"       yaml:"name"`
	Parameters map[string]any `json:"parameters" yaml:"parameters"`
}

// Load reads and parses a definition file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Intentional path-based loading
	if err != nil {
		return nil, fmt.Errorf("failed to read definition %q: %w", path, err)
	}

	return Parse(data)
}

// LoadFS reads and parses a definition from a filesystem such as an embed.FS.
func LoadFS(fsys fs.FS, path string) (*File, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read definition from FS: %w", err)
	}

	return Parse(data)
}

// Parse decodes a YAML definition and checks its structure.
func Parse(data []byte) (*File, error) {
	var file File

	err := yaml.Unmarshal(data, &file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	err = file.Validate()
	if err != nil {
		return nil, err
	}

	return &file, nil
}

// Validate checks that every rule is well formed. Graph checks such as dead
// ends are left to the builder.
func (f *File) Validate() error {
	var errs []error

	for _, tag := range [][2]string{{"ignoreTag", f.IgnoreTag}, {"initialStateTag", f.InitialStateTag}} {
		if tag[1] != "" && utf8.RuneCountInString(tag[1]) != 1 {
			errs = append(errs, fmt.Errorf("%w: %s must be a single character, got %q", ErrInvalidTag, tag[0], tag[1]))
		}
	}

	for i, rule := range f.Rules {
		err := rule.validate()
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %d: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

func (r *Rule) validate() error {
	var required map[string]bool

	switch r.Kind {
	case KindTransition, KindToggle:
		required = map[string]bool{"from": r.From != "", "to": r.To != ""}
	case KindAny:
		required = map[string]bool{"fromAny": len(r.FromAny) > 0, "to": r.To != ""}
	case KindContains:
		required = map[string]bool{"contains": r.Contains != "", "to": r.To != ""}
	case KindForce:
		required = map[string]bool{"to": r.To != ""}
	case KindAction:
		required = map[string]bool{"at": r.At != ""}
	case "":
		return ErrKindRequired
	default:
		return fmt.Errorf("%w: %s", ErrUnknownKind, r.Kind)
	}

	for _, field := range []string{"from", "fromAny", "contains", "to", "at"} {
		present, ok := required[field]
		if ok && !present {
			return fmt.Errorf("%s: %w: %s", r.Kind, ErrFieldRequired, field)
		}
	}

	if r.Kind != KindToggle && (r.Reset != "" || len(r.ResetActions) > 0) {
		return fmt.Errorf("%s: %w", r.Kind, ErrResetOnlyForToggle)
	}

	_, err := r.rateLimit()

	return err
}

func (r *Rule) rateLimit() (time.Duration, error) {
	if r.RateLimit == "" {
		return 0, nil
	}

	window, err := time.ParseDuration(r.RateLimit)
	if err != nil || window < 0 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRateLimit, r.RateLimit)
	}

	return window, nil
}

// Definition errors.
var (
	ErrKindRequired       = errors.New("rule kind is required")
	ErrUnknownKind        = errors.New("unknown rule kind")
	ErrFieldRequired      = errors.New("field is required")
	ErrResetOnlyForToggle = errors.New("reset and resetActions are only valid on toggles")
	ErrInvalidRateLimit   = errors.New("invalid rate limit")
	ErrInvalidTag         = errors.New("invalid tag")
	ErrInvalidExpression  = errors.New("invalid expression")
	ErrUnsupportedExpr    = errors.New("unsupported expression")
	ErrUnknownActionType  = errors.New("unknown action type")
	ErrInvalidAction      = errors.New("invalid action parameters")
	ErrActionFailed       = errors.New("action failed")
	ErrAlreadyBuilt       = errors.New("program already built a machine")
)
