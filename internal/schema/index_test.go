package schema

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeLister serves canned metadata for index tests.
type fakeLister struct {
	keyspaces []string
	tables    map[string][]string
	columns   map[string][]Column
	tablesErr map[string]error
}

func (f *fakeLister) ListKeyspaces(context.Context) ([]string, error) {
	return f.keyspaces, nil
}

func (f *fakeLister) ListTables(_ context.Context, ks string) ([]string, error) {
	if err := f.tablesErr[ks]; err != nil {
		return nil, err
	}
	return f.tables[ks], nil
}

func (f *fakeLister) ListColumns(_ context.Context, ks, tbl string) ([]Column, error) {
	return f.columns[ks+"."+tbl], nil
}

func TestIndex_Refresh(t *testing.T) {
	lister := &fakeLister{
		keyspaces: []string{"system", "app"},
		tables:    map[string][]string{"app": {"users", "events"}},
		columns: map[string][]Column{
			"app.users": {
				{Name: "email", DataType: "text", Role: RoleRegular},
				{Name: "created", DataType: "timeuuid", Role: RoleClusteringKey, Position: 0, ClusteringOrder: "desc"},
				{Name: "id", DataType: "uuid", Role: RolePartitionKey, Position: 0},
			},
		},
	}

	idx := NewIndex()
	require.NoError(t, idx.Refresh(context.Background(), lister))

	assert.Equal(t, []string{"app", "system"}, idx.Keyspaces())
	assert.Equal(t, []string{"events", "users"}, idx.Tables("app"))

	cols := idx.Columns("app", "users")
	require.Len(t, cols, 3)
	// Partition key first, then clustering, then regular.
	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, "created", cols[1].Name)
	assert.Equal(t, "desc", cols[1].ClusteringOrder)
	assert.Equal(t, "email", cols[2].Name)
}

func TestIndex_MissingObjectsAreNotErrors(t *testing.T) {
	idx := NewIndex()

	assert.Empty(t, idx.Keyspaces())
	assert.Empty(t, idx.Tables("nope"))
	assert.Empty(t, idx.Columns("nope", "missing"))
}

func TestIndex_RefreshToleratesPartialFailures(t *testing.T) {
	lister := &fakeLister{
		keyspaces: []string{"bad", "good"},
		tables:    map[string][]string{"good": {"t1"}},
		columns:   map[string][]Column{"good.t1": {{Name: "a", DataType: "int", Role: RoleRegular}}},
		tablesErr: map[string]error{"bad": errors.New("unavailable")},
	}

	idx := NewIndex()
	require.NoError(t, idx.Refresh(context.Background(), lister))

	assert.Empty(t, idx.Tables("bad"))
	assert.Equal(t, []string{"t1"}, idx.Tables("good"))
}

func TestIndex_TablesWithPrefix(t *testing.T) {
	lister := &fakeLister{
		keyspaces: []string{"app"},
		tables:    map[string][]string{"app": {"user_sessions", "users", "orders"}},
	}

	idx := NewIndex()
	require.NoError(t, idx.Refresh(context.Background(), lister))

	assert.Equal(t, []string{"user_sessions", "users"}, idx.TablesWithPrefix("app", "US"))
	assert.Empty(t, idx.TablesWithPrefix("app", "zz"))
}
