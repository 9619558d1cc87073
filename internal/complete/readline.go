package complete

import "github.com/cqldesk/cqldesk/pkg/cql"

// Line tokenizes a line of input and returns the ranked candidate texts
// together with the length of the prefix they complete. The prefix
// length lets line editors replace the partial word rather than
// appending to it.
func (e *Engine) Line(line string, cursor int, keyspace string) ([]string, int) {
	tokens := cql.Tokenize(line)
	prefix, _ := prefixAt(tokens, cursor)

	candidates := e.Suggest(tokens, cursor, keyspace)
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}
	return texts, len(prefix)
}
