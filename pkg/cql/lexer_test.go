package cql

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cqldesk/cqldesk/pkg/token"
)

func kinds(tokens []token.Token) []token.Kind {
	out := make([]token.Kind, len(tokens))
	for i, t := range tokens {
		out[i] = t.Kind
	}
	return out
}

// nonSpace filters out whitespace tokens for assertions about structure.
func nonSpace(tokens []token.Token) []token.Token {
	var out []token.Token
	for _, t := range tokens {
		if t.Kind != token.Whitespace {
			out = append(out, t)
		}
	}
	return out
}

func TestTokenize_Select(t *testing.T) {
	tokens := nonSpace(Tokenize("SELECT * FROM users WHERE id = {{uid}}"))

	require.Len(t, tokens, 8)
	assert.Equal(t, []token.Kind{
		token.Keyword,             // SELECT
		token.Operator,            // *
		token.Keyword,             // FROM
		token.Identifier,          // users
		token.Keyword,             // WHERE
		token.Identifier,          // id
		token.Operator,            // =
		token.VariablePlaceholder, // {{uid}}
	}, kinds(tokens))
	assert.Equal(t, "{{uid}}", tokens[7].Text)
}

func TestTokenize_Reconstruction(t *testing.T) {
	inputs := []string{
		"",
		"SELECT * FROM ks.table1 WHERE id = 'hello'",
		"-- comment\nSELECT 1;",
		"// dialect comment\nSELECT 1;",
		"/* block\ncomment */ INSERT INTO t (a) VALUES (1.5)",
		"SELECT * FROM {{table}} WHERE x != 3 AND y <= 'it''s'",
		"'unterminated string",
		"/* unterminated block",
		"{{unterminated",
		"weird \x01 bytes \xff here",
		"SELECT \x00 FROM t",
		"'nul \x00 inside string' AND 1",
		"\x00\x00",
		"CREATE TABLE t (id uuid PRIMARY KEY, name text)",
	}

	for _, input := range inputs {
		tokens := Tokenize(input)
		var sb strings.Builder
		prevEnd := 0
		for _, tok := range tokens {
			assert.Equal(t, prevEnd, tok.Start, "tokens must be contiguous in %q", input)
			assert.Equal(t, input[tok.Start:tok.End], tok.Text)
			prevEnd = tok.End
			sb.WriteString(tok.Text)
		}
		assert.Equal(t, input, sb.String(), "concatenated spans must reconstruct %q", input)
	}
}

func TestTokenize_Classification(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  token.Kind
		text  string
	}{
		{"string literal", "SELECT 'hello'", token.String, "'hello'"},
		{"escaped quote stays inside string", "'it''s'", token.String, "'it''s'"},
		{"line comment", "-- note", token.Comment, "-- note"},
		{"slash comment", "// note", token.Comment, "// note"},
		{"placeholder single token", "{{ table_name }}", token.VariablePlaceholder, "{{ table_name }}"},
		{"type", "id uuid", token.Type, "uuid"},
		{"function", "now()", token.Function, "now"},
		{"number decimal", "LIMIT 10.5", token.Number, "10.5"},
		{"two-char operator", "a >= b", token.Operator, ">="},
		{"punctuation", "f(x)", token.Punctuation, "("},
		{"quoted identifier", `"Weird""Name"`, token.Identifier, `"Weird""Name"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := Tokenize(tt.input)
			found := false
			for _, tok := range tokens {
				if tok.Kind == tt.want && tok.Text == tt.text {
					found = true
					break
				}
			}
			assert.True(t, found, "expected %s token %q in %v", tt.want, tt.text, tokens)
		})
	}
}

func TestTokenize_KeywordsCaseInsensitive(t *testing.T) {
	for _, input := range []string{"select", "SELECT", "Select"} {
		tokens := Tokenize(input)
		require.Len(t, tokens, 1)
		assert.Equal(t, token.Keyword, tokens[0].Kind)
		assert.Equal(t, input, tokens[0].Text, "token text preserves original case")
	}
}

func TestTokenize_NulByteIsUnknownNotEOF(t *testing.T) {
	tokens := nonSpace(Tokenize("SELECT \x00 FROM t"))

	require.Len(t, tokens, 4)
	assert.Equal(t, token.Keyword, tokens[0].Kind)
	assert.Equal(t, token.Unknown, tokens[1].Kind)
	assert.Equal(t, "\x00", tokens[1].Text)
	assert.Equal(t, token.Keyword, tokens[2].Kind)
	assert.Equal(t, "FROM", tokens[2].Text)
	assert.Equal(t, "t", tokens[3].Text)
}

func TestTokenize_CommentStopsAtNewline(t *testing.T) {
	tokens := Tokenize("-- c\nSELECT")
	require.Len(t, tokens, 3)
	assert.Equal(t, token.Comment, tokens[0].Kind)
	assert.Equal(t, "-- c", tokens[0].Text)
	assert.Equal(t, token.Whitespace, tokens[1].Kind)
	assert.Equal(t, token.Keyword, tokens[2].Kind)
}

func TestSubstitute(t *testing.T) {
	vars := map[string]string{"uid": "42", "tbl": "users"}

	got, err := Substitute("SELECT * FROM {{tbl}} WHERE id = {{uid}} AND x = {{uid}}", vars)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM users WHERE id = 42 AND x = 42", got)
}

func TestSubstitute_Unresolved(t *testing.T) {
	_, err := Substitute("SELECT * FROM {{missing}}", map[string]string{})

	var uerr *UnresolvedVariableError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "missing", uerr.Name)
}

func TestSubstitute_IgnoresPlaceholdersInStrings(t *testing.T) {
	got, err := Substitute("SELECT '{{not_a_var}}' FROM t", map[string]string{})
	require.NoError(t, err)
	assert.Equal(t, "SELECT '{{not_a_var}}' FROM t", got)
}

func TestPlaceholderNames(t *testing.T) {
	names := PlaceholderNames("SELECT {{a}}, {{ b }} FROM t WHERE x = {{a}}")
	assert.Equal(t, []string{"a", "b"}, names)

	assert.Empty(t, PlaceholderNames("SELECT 1"))
}
