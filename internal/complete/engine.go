// Package complete produces ranked autocomplete candidates for a CQL
// editor. It is a heuristic over the token stream, not a parser: on
// syntactically broken input it degrades to an empty or generic list,
// never an error, since it runs on every keystroke.
package complete

import (
	"sort"
	"strings"

	"github.com/cqldesk/cqldesk/internal/schema"
	"github.com/cqldesk/cqldesk/pkg/token"
)

// MaxCandidates bounds the suggestion list so the UI stays responsive.
const MaxCandidates = 32

// Category tells the UI what kind of object a candidate names.
type Category string

// Candidate categories.
const (
	CategoryKeyword  Category = "keyword"
	CategoryType     Category = "type"
	CategoryFunction Category = "function"
	CategoryTable    Category = "table"
	CategoryKeyspace Category = "keyspace"
	CategoryColumn   Category = "column"
)

// Candidate is one ranked completion suggestion.
type Candidate struct {
	Text     string
	Category Category
}

// Engine resolves suggestions against a schema index and the active
// connection's default keyspace.
type Engine struct {
	index *schema.Index
}

// NewEngine creates an engine reading from the given index.
func NewEngine(index *schema.Index) *Engine {
	return &Engine{index: index}
}

// context describes what the cursor position calls for.
type contextKind int

const (
	contextGeneric contextKind = iota
	contextTable
	contextKeyspace
	contextColumn
)

// tableScopeKeywords establish table-name context when they are the
// nearest preceding scope keyword.
var tableScopeKeywords = map[string]struct{}{
	"FROM": {}, "INTO": {}, "UPDATE": {}, "TABLE": {}, "TRUNCATE": {}, "JOIN": {},
}

// keyspaceScopeKeywords establish keyspace-name context.
var keyspaceScopeKeywords = map[string]struct{}{
	"USE": {}, "KEYSPACE": {},
}

// columnScopeKeywords establish column-name context, resolved against
// the statement's table when one is identifiable.
var columnScopeKeywords = map[string]struct{}{
	"WHERE": {}, "AND": {}, "OR": {}, "SET": {}, "BY": {},
}

// Suggest returns ranked candidates for the cursor position. keyspace is
// the active connection's default keyspace ("" when none). tokens must
// come from tokenizing the same text the cursor offset refers to.
func (e *Engine) Suggest(tokens []token.Token, cursor int, keyspace string) []Candidate {
	prefix, prefixIdx := prefixAt(tokens, cursor)

	ctx, tableName := detectContext(tokens, prefixIdx, cursor)

	var out []Candidate
	switch ctx {
	case contextTable:
		out = e.tableCandidates(keyspace, prefix)
	case contextKeyspace:
		out = e.keyspaceCandidates(prefix)
	case contextColumn:
		out = e.columnCandidates(keyspace, tableName, prefix)
	default:
		out = vocabularyCandidates(prefix)
	}

	if len(out) > MaxCandidates {
		out = out[:MaxCandidates]
	}
	return out
}

// prefixAt finds the partial word being typed: the word token whose span
// contains or ends at the cursor. Returns the prefix text up to the
// cursor and the token's index, or ("", -1) when the cursor does not
// touch a word.
func prefixAt(tokens []token.Token, cursor int) (string, int) {
	for i, tok := range tokens {
		if tok.Start >= cursor {
			break
		}
		if tok.End < cursor {
			continue
		}
		switch tok.Kind {
		case token.Identifier, token.Keyword, token.Type, token.Function:
			end := cursor - tok.Start
			if end > len(tok.Text) {
				end = len(tok.Text)
			}
			return tok.Text[:end], i
		}
	}
	return "", -1
}

// detectContext scans backward from the cursor for the nearest keyword
// that establishes scope. For column context it additionally looks for
// the statement's table name after a FROM/UPDATE/INTO keyword.
func detectContext(tokens []token.Token, prefixIdx, cursor int) (contextKind, string) {
	// Start scanning before the token being typed, or before the cursor.
	start := prefixIdx - 1
	if prefixIdx < 0 {
		start = len(tokens) - 1
		for start >= 0 && tokens[start].Start >= cursor {
			start--
		}
	}

	for i := start; i >= 0; i-- {
		tok := tokens[i]
		if tok.Kind != token.Keyword {
			continue
		}
		upper := strings.ToUpper(tok.Text)
		if _, ok := tableScopeKeywords[upper]; ok {
			return contextTable, ""
		}
		if _, ok := keyspaceScopeKeywords[upper]; ok {
			return contextKeyspace, ""
		}
		if _, ok := columnScopeKeywords[upper]; ok {
			return contextColumn, statementTable(tokens, i)
		}
		// Any other keyword (SELECT, CREATE, ...) ends the scan: we are
		// in generic keyword/function territory.
		return contextGeneric, ""
	}
	return contextGeneric, ""
}

// statementTable finds the identifier following the nearest FROM, UPDATE
// or INTO before position idx. Returns "" when none is identifiable.
func statementTable(tokens []token.Token, idx int) string {
	for i := idx - 1; i >= 0; i-- {
		if tokens[i].Kind != token.Keyword {
			continue
		}
		switch strings.ToUpper(tokens[i].Text) {
		case "FROM", "UPDATE", "INTO":
			for j := i + 1; j < idx; j++ {
				if tokens[j].Kind == token.Identifier {
					return tokens[j].Text
				}
			}
			return ""
		}
	}
	return ""
}

// tableCandidates lists tables of the active keyspace filtered by
// prefix, then matching keyspace names so a qualified name can be typed.
func (e *Engine) tableCandidates(keyspace, prefix string) []Candidate {
	var out []Candidate
	if keyspace != "" {
		for _, name := range rankNames(e.index.TablesWithPrefix(keyspace, prefix), prefix) {
			out = append(out, Candidate{Text: name, Category: CategoryTable})
		}
	}
	out = append(out, e.keyspaceCandidates(prefix)...)
	return out
}

func (e *Engine) keyspaceCandidates(prefix string) []Candidate {
	var names []string
	lower := strings.ToLower(prefix)
	for _, ks := range e.index.Keyspaces() {
		if strings.HasPrefix(strings.ToLower(ks), lower) {
			names = append(names, ks)
		}
	}
	var out []Candidate
	for _, name := range rankNames(names, prefix) {
		out = append(out, Candidate{Text: name, Category: CategoryKeyspace})
	}
	return out
}

func (e *Engine) columnCandidates(keyspace, table, prefix string) []Candidate {
	if keyspace == "" || table == "" {
		return vocabularyCandidates(prefix)
	}
	lower := strings.ToLower(prefix)
	var names []string
	for _, col := range e.index.Columns(keyspace, table) {
		if strings.HasPrefix(strings.ToLower(col.Name), lower) {
			names = append(names, col.Name)
		}
	}
	var out []Candidate
	for _, name := range rankNames(names, prefix) {
		out = append(out, Candidate{Text: name, Category: CategoryColumn})
	}
	// Columns come first; keywords like AND/IN remain reachable below.
	return append(out, vocabularyCandidates(prefix)...)
}

// vocabularyCandidates filters the static keyword/type/function
// vocabulary by prefix. An empty prefix yields nothing: suggesting the
// whole vocabulary on every keystroke is noise.
func vocabularyCandidates(prefix string) []Candidate {
	if prefix == "" {
		return nil
	}
	upper := strings.ToUpper(prefix)
	var out []Candidate
	collect := func(words []string, cat Category) {
		for _, w := range words {
			if strings.HasPrefix(w, upper) {
				out = append(out, Candidate{Text: w, Category: cat})
			}
		}
	}
	collect(token.Keywords, CategoryKeyword)
	collect(token.Types, CategoryType)
	collect(token.Functions, CategoryFunction)

	sort.SliceStable(out, func(i, j int) bool {
		return lessRanked(out[i].Text, out[j].Text, prefix)
	})
	return out
}

// rankNames orders candidates by exact-case prefix match, then length,
// then alphabetically.
func rankNames(names []string, prefix string) []string {
	sorted := append([]string(nil), names...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return lessRanked(sorted[i], sorted[j], prefix)
	})
	return sorted
}

func lessRanked(a, b, prefix string) bool {
	if prefix != "" {
		ae := strings.HasPrefix(a, prefix)
		be := strings.HasPrefix(b, prefix)
		if ae != be {
			return ae
		}
	}
	if len(a) != len(b) {
		return len(a) < len(b)
	}
	return a < b
}
