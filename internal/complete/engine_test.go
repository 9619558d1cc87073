package complete

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cqldesk/cqldesk/internal/schema"
	"github.com/cqldesk/cqldesk/pkg/cql"
)

// staticLister feeds the index a fixed schema.
type staticLister struct {
	tables  map[string][]string
	columns map[string][]schema.Column
}

func (s *staticLister) ListKeyspaces(context.Context) ([]string, error) {
	keyspaces := make([]string, 0, len(s.tables))
	for ks := range s.tables {
		keyspaces = append(keyspaces, ks)
	}
	return keyspaces, nil
}

func (s *staticLister) ListTables(_ context.Context, ks string) ([]string, error) {
	return s.tables[ks], nil
}

func (s *staticLister) ListColumns(_ context.Context, ks, tbl string) ([]schema.Column, error) {
	return s.columns[ks+"."+tbl], nil
}

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	idx := schema.NewIndex()
	lister := &staticLister{
		tables: map[string][]string{
			"app": {"users", "user_sessions", "orders"},
		},
		columns: map[string][]schema.Column{
			"app.users": {
				{Name: "id", DataType: "uuid", Role: schema.RolePartitionKey},
				{Name: "email", DataType: "text", Role: schema.RoleRegular},
				{Name: "enabled", DataType: "boolean", Role: schema.RoleRegular},
			},
		},
	}
	require.NoError(t, idx.Refresh(context.Background(), lister))
	return NewEngine(idx)
}

func texts(cands []Candidate) []string {
	out := make([]string, len(cands))
	for i, c := range cands {
		out[i] = c.Text
	}
	return out
}

func suggestFor(e *Engine, text, keyspace string) []Candidate {
	return e.Suggest(cql.Tokenize(text), len(text), keyspace)
}

func TestSuggest_TableContext(t *testing.T) {
	e := newTestEngine(t)

	cands := suggestFor(e, "SELECT * FROM us", "app")
	got := texts(cands)

	require.Contains(t, got, "users")
	require.Contains(t, got, "user_sessions")
	// Shorter candidate ranks no worse under the prefix-length tie-break.
	assert.Less(t, indexOf(got, "users"), indexOf(got, "user_sessions"))
	assert.NotContains(t, got, "orders")
}

func TestSuggest_TableContextEmptyPrefix(t *testing.T) {
	e := newTestEngine(t)

	got := texts(suggestFor(e, "SELECT * FROM ", "app"))
	assert.Contains(t, got, "users")
	assert.Contains(t, got, "orders")
}

func TestSuggest_KeywordContext(t *testing.T) {
	e := newTestEngine(t)

	got := texts(suggestFor(e, "SEL", ""))
	require.NotEmpty(t, got)
	assert.Equal(t, "SELECT", got[0])
}

func TestSuggest_ExactCaseRanksFirst(t *testing.T) {
	e := newTestEngine(t)

	// Lowercase prefix: all vocabulary entries are uppercase, so none is
	// an exact-case match; ranking falls back to length then alphabetical.
	got := texts(suggestFor(e, "sel", ""))
	require.NotEmpty(t, got)
	assert.Equal(t, "SELECT", got[0])
}

func TestSuggest_ColumnContext(t *testing.T) {
	e := newTestEngine(t)

	got := texts(suggestFor(e, "SELECT * FROM users WHERE e", "app"))
	require.Contains(t, got, "email")
	require.Contains(t, got, "enabled")
	// Schema columns rank ahead of vocabulary words.
	assert.Less(t, indexOf(got, "email"), indexOf(got, "EXISTS"))
}

func TestSuggest_KeyspaceContext(t *testing.T) {
	e := newTestEngine(t)

	got := texts(suggestFor(e, "USE a", ""))
	assert.Contains(t, got, "app")
}

func TestSuggest_InvalidInputDegrades(t *testing.T) {
	e := newTestEngine(t)

	for _, text := range []string{"", ";;;", "SELECT * FROM 'broken", "{{"} {
		assert.NotPanics(t, func() {
			suggestFor(e, text, "app")
		})
	}
}

func TestSuggest_Capped(t *testing.T) {
	e := newTestEngine(t)

	// Single-letter prefix matches many vocabulary entries.
	got := suggestFor(e, "SELECT * FROM users WHERE x = 1 AND s", "")
	assert.LessOrEqual(t, len(got), MaxCandidates)
}

func indexOf(list []string, want string) int {
	for i, s := range list {
		if s == want {
			return i
		}
	}
	return -1
}
