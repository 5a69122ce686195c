package definition

import (
	"fmt"
	"strings"
	"time"
	"unicode"
)

// env is what an expression can observe.
type env struct {
	inputs *Inputs
	// elapsed returns the time spent in the current state.
	elapsed func() time.Duration
}

type predicate func(e *env) bool

// compileExpression turns an expression into a predicate. Supported terms,
// joined with &&:
//
//	always | true | never | false
//	data.key            boolean input is true
//	!data.key           boolean input is false or missing
//	data.key == 'v'     input renders as v
//	data.key != 'v'     input is missing or does not render as v
//	elapsed > 50ms      time in state compared with a duration (>, >=, <, <=)
//
// Quoted values may contain any character except their own quote. An empty
// expression always holds.
func compileExpression(expr string) (predicate, error) {
	if strings.TrimSpace(expr) == "" {
		return func(*env) bool { return true }, nil
	}

	if indexUnquoted(expr, "||") >= 0 {
		return nil, fmt.Errorf("%w: %s: only && is supported", ErrUnsupportedExpr, expr)
	}

	parts := splitUnquoted(expr, "&&")
	terms := make([]predicate, 0, len(parts))

	for _, part := range parts {
		term, err := compileTerm(strings.TrimSpace(part))
		if err != nil {
			return nil, err
		}

		terms = append(terms, term)
	}

	return func(e *env) bool {
		for _, term := range terms {
			if !term(e) {
				return false
			}
		}

		return true
	}, nil
}

//nolint:cyclop // One branch per term form
func compileTerm(term string) (predicate, error) {
	switch term {
	case "":
		return nil, fmt.Errorf("%w: empty term", ErrInvalidExpression)
	case "always", "true":
		return func(*env) bool { return true }, nil
	case "never", "false":
		return func(*env) bool { return false }, nil
	}

	if after, ok := strings.CutPrefix(term, "elapsed"); ok {
		return compileElapsed(term, strings.TrimSpace(after))
	}

	// Handle comparisons: "data.key == 'value'" and "data.key != 'value'"
	if left, op, right, ok := cutComparison(term); ok {
		key, want, err := comparison(term, left, right)
		if err != nil {
			return nil, err
		}

		if op == "!=" {
			return func(e *env) bool {
				value, exists := e.inputs.GetString(key)

				return !exists || value != want
			}, nil
		}

		return func(e *env) bool {
			value, exists := e.inputs.GetString(key)

			return exists && value == want
		}, nil
	}

	// Handle negation: "!data.key"
	if after, ok := strings.CutPrefix(term, "!data."); ok {
		if !validKey(after) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidExpression, term)
		}

		return func(e *env) bool {
			value, _ := e.inputs.GetBool(after)

			return !value
		}, nil
	}

	// Handle boolean checks: "data.key"
	if after, ok := strings.CutPrefix(term, "data."); ok {
		if !validKey(after) {
			return nil, fmt.Errorf("%w: %s", ErrInvalidExpression, term)
		}

		return func(e *env) bool {
			value, _ := e.inputs.GetBool(after)

			return value
		}, nil
	}

	return nil, fmt.Errorf("%w: %s", ErrUnsupportedExpr, term)
}

// cutComparison splits term around its first == or != outside quotes.
func cutComparison(term string) (string, string, string, bool) {
	eq := indexUnquoted(term, "==")
	ne := indexUnquoted(term, "!=")

	switch {
	case eq < 0 && ne < 0:
		return "", "", "", false
	case ne < 0 || (eq >= 0 && eq < ne):
		return term[:eq], "==", term[eq+2:], true
	default:
		return term[:ne], "!=", term[ne+2:], true
	}
}

func comparison(term, left, right string) (string, string, error) {
	key, ok := strings.CutPrefix(strings.TrimSpace(left), "data.")
	if !ok || !validKey(key) {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidExpression, term)
	}

	want, ok := literal(right)
	if !ok {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidExpression, term)
	}

	return key, want, nil
}

// literal parses the right side of a comparison: a '...' or "..." string or
// a bare word without operators or quotes.
func literal(raw string) (string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", false
	}

	if quote := raw[0]; quote == '\'' || quote == '"' {
		if len(raw) < 2 || raw[len(raw)-1] != quote {
			return "", false
		}

		inner := raw[1 : len(raw)-1]

		return inner, !strings.ContainsRune(inner, rune(quote))
	}

	return raw, !strings.ContainsAny(raw, `=!'"`)
}

// indexUnquoted returns the index of the first sep in s outside a quoted
// literal, or -1.
func indexUnquoted(s, sep string) int {
	var quote rune

	for i, r := range s {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case strings.HasPrefix(s[i:], sep):
			return i
		}
	}

	return -1
}

// splitUnquoted splits s around every sep outside a quoted literal.
func splitUnquoted(s, sep string) []string {
	var parts []string

	for {
		i := indexUnquoted(s, sep)
		if i < 0 {
			return append(parts, s)
		}

		parts = append(parts, s[:i])
		s = s[i+len(sep):]
	}
}

func compileElapsed(term, rest string) (predicate, error) {
	var op string

	for _, candidate := range []string{">=", "<=", ">", "<"} {
		if after, ok := strings.CutPrefix(rest, candidate); ok {
			op, rest = candidate, strings.TrimSpace(after)

			break
		}
	}

	if op == "" {
		return nil, fmt.Errorf("%w: %s", ErrInvalidExpression, term)
	}

	limit, err := time.ParseDuration(rest)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidExpression, term, err)
	}

	return func(e *env) bool {
		elapsed := e.elapsed()

		switch op {
		case ">=":
			return elapsed >= limit
		case "<=":
			return elapsed <= limit
		case ">":
			return elapsed > limit
		default:
			return elapsed < limit
		}
	}, nil
}

// validKey reports whether key is a non-empty run of letters, digits, '_',
// '-' and '.'.
func validKey(key string) bool {
	if key == "" {
		return false
	}

	for _, r := range key {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !strings.ContainsRune("_-.", r) {
			return false
		}
	}

	return true
}
