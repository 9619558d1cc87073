package cql

import (
	"fmt"
	"strings"

	"github.com/cqldesk/cqldesk/pkg/token"
)

// UnresolvedVariableError reports a {{name}} placeholder with no value in
// the variable set.
type UnresolvedVariableError struct {
	Name string
}

func (e *UnresolvedVariableError) Error() string {
	return fmt.Sprintf("unresolved variable: no value for {{%s}}", e.Name)
}

// PlaceholderNames returns the distinct variable names referenced by
// {{name}} placeholders, in order of first appearance. Names are trimmed
// of surrounding whitespace.
func PlaceholderNames(text string) []string {
	var names []string
	seen := make(map[string]struct{})
	for _, tok := range Tokenize(text) {
		if tok.Kind != token.VariablePlaceholder {
			continue
		}
		name := placeholderName(tok.Text)
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		names = append(names, name)
	}
	return names
}

// Substitute replaces every {{name}} placeholder with its value from vars.
// A placeholder whose name is absent from vars yields an
// UnresolvedVariableError and no partial result. Placeholders inside
// string literals and comments are left untouched, matching how the
// tokenizer classifies them.
func Substitute(text string, vars map[string]string) (string, error) {
	tokens := Tokenize(text)

	var out strings.Builder
	out.Grow(len(text))
	for _, tok := range tokens {
		if tok.Kind != token.VariablePlaceholder {
			out.WriteString(tok.Text)
			continue
		}
		name := placeholderName(tok.Text)
		value, ok := vars[name]
		if !ok {
			return "", &UnresolvedVariableError{Name: name}
		}
		out.WriteString(value)
	}
	return out.String(), nil
}

// placeholderName strips the {{ }} delimiters and surrounding whitespace.
// Unterminated placeholders may lack the closing braces.
func placeholderName(text string) string {
	name := strings.TrimPrefix(text, "{{")
	name = strings.TrimSuffix(name, "}}")
	return strings.TrimSpace(name)
}
