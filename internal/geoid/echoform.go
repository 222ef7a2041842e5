package geoid

import (
	"fmt"
	"strings"
)

// Echoform is the parsed form of a one-level s-expression such as
// "(assert (implies consciousness awareness))". The verb is the head symbol;
// arguments keep nested groups as single tokens.
type Echoform struct {
	Verb string   `json:"verb"`
	Args []string `json:"args"`
	Raw  string   `json:"raw"`
}

// ParseEchoform parses a single s-expression. Nested parentheses are kept
// verbatim as argument tokens; only the outer level is structured.
func ParseEchoform(text string) (*Echoform, error) {
	trimmed := strings.TrimSpace(text)
	if len(trimmed) < 2 || trimmed[0] != '(' || trimmed[len(trimmed)-1] != ')' {
		return nil, fmt.Errorf("echoform must be a parenthesized expression, got %q", text)
	}

	inner := trimmed[1 : len(trimmed)-1]
	tokens, err := tokenize(inner)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty echoform %q", text)
	}
	return &Echoform{Verb: tokens[0], Args: tokens[1:], Raw: trimmed}, nil
}

// tokenize splits on whitespace at depth zero, keeping parenthesized groups
// whole.
func tokenize(s string) ([]string, error) {
	var tokens []string
	var current strings.Builder
	depth := 0

	flush := func() {
		if current.Len() > 0 {
			tokens = append(tokens, current.String())
			current.Reset()
		}
	}

	for _, r := range s {
		switch {
		case r == '(':
			depth++
			current.WriteRune(r)
		case r == ')':
			depth--
			if depth < 0 {
				return nil, fmt.Errorf("unbalanced parentheses in %q", s)
			}
			current.WriteRune(r)
		case depth == 0 && (r == ' ' || r == '\t' || r == '\n'):
			flush()
		default:
			current.WriteRune(r)
		}
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced parentheses in %q", s)
	}
	flush()
	return tokens, nil
}

// FromEchoform builds a geoid from echoform text. Each argument symbol
// becomes a uniformly activated semantic feature; the verb and raw form land
// in the symbolic state.
func FromEchoform(text string) (*State, error) {
	form, err := ParseEchoform(text)
	if err != nil {
		return nil, err
	}

	features := make(map[string]float64)
	for _, arg := range form.Args {
		for _, sym := range symbolsIn(arg) {
			features[sym] = 1.0
		}
	}
	// Verb-only forms still carry one feature so entropy is defined.
	if len(features) == 0 {
		features[form.Verb] = 1.0
	}

	state := NewState("", features)
	state.SymbolicState["echoform"] = form.Raw
	state.SymbolicState["verb"] = form.Verb
	state.Metadata["source"] = "echoform"
	return state, nil
}

// symbolsIn extracts bare symbols from a token, descending into nested groups.
func symbolsIn(token string) []string {
	cleaned := strings.Map(func(r rune) rune {
		if r == '(' || r == ')' {
			return ' '
		}
		return r
	}, token)
	return strings.Fields(cleaned)
}
