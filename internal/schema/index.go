// Package schema maintains an in-memory snapshot of cluster metadata
// (keyspaces, tables, columns) used by autocomplete and the schema views.
//
// The index is rebuilt wholesale on refresh. Metadata fetches are
// infrequent and cheap relative to query execution, so no incremental
// patching is attempted. Lookups against missing keyspaces or tables
// return empty results rather than errors: a query can legitimately
// reference objects the snapshot has not seen yet.
package schema

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// ColumnRole describes how a column participates in the table's
// primary key.
type ColumnRole string

// Column roles as reported by system_schema.columns.
const (
	RolePartitionKey  ColumnRole = "partition_key"
	RoleClusteringKey ColumnRole = "clustering"
	RoleStatic        ColumnRole = "static"
	RoleRegular       ColumnRole = "regular"
)

// rank orders roles for column sorting: partition keys first, then
// clustering keys, then static, then regular columns.
func (r ColumnRole) rank() int {
	switch r {
	case RolePartitionKey:
		return 0
	case RoleClusteringKey:
		return 1
	case RoleStatic:
		return 2
	default:
		return 3
	}
}

// Column describes one column of a table.
type Column struct {
	Name            string
	DataType        string
	Role            ColumnRole
	Position        int    // position within the partition or clustering key
	ClusteringOrder string // "asc"/"desc" for clustering keys, "none" otherwise
}

// Lister is the metadata collaborator interface. The live implementation
// is the session's system_schema queries; tests supply fakes.
type Lister interface {
	ListKeyspaces(ctx context.Context) ([]string, error)
	ListTables(ctx context.Context, keyspace string) ([]string, error)
	ListColumns(ctx context.Context, keyspace, table string) ([]Column, error)
}

// Index is a refreshable snapshot of keyspace/table/column metadata.
// Reads are safe from any goroutine; Refresh swaps the snapshot in one
// write under the lock.
type Index struct {
	mu        sync.RWMutex
	keyspaces []string
	tables    map[string][]string
	columns   map[string]map[string][]Column
}

// NewIndex creates an empty index.
func NewIndex() *Index {
	return &Index{
		tables:  make(map[string][]string),
		columns: make(map[string]map[string][]Column),
	}
}

// Refresh rebuilds the snapshot from the metadata collaborator. The
// previous snapshot stays visible until the rebuild completes, so
// readers never observe a half-built index. Tables or columns that fail
// to list are skipped; suggestions simply omit them.
func (idx *Index) Refresh(ctx context.Context, lister Lister) error {
	keyspaces, err := lister.ListKeyspaces(ctx)
	if err != nil {
		return err
	}
	sort.Strings(keyspaces)

	tables := make(map[string][]string, len(keyspaces))
	columns := make(map[string]map[string][]Column, len(keyspaces))

	for _, ks := range keyspaces {
		names, err := lister.ListTables(ctx, ks)
		if err != nil {
			continue
		}
		sort.Strings(names)
		tables[ks] = names

		cols := make(map[string][]Column, len(names))
		for _, tbl := range names {
			list, err := lister.ListColumns(ctx, ks, tbl)
			if err != nil {
				continue
			}
			sortColumns(list)
			cols[tbl] = list
		}
		columns[ks] = cols
	}

	idx.mu.Lock()
	idx.keyspaces = keyspaces
	idx.tables = tables
	idx.columns = columns
	idx.mu.Unlock()
	return nil
}

// sortColumns orders columns by role, then key position, then name,
// matching the declaration/clustering order of the table.
func sortColumns(cols []Column) {
	sort.SliceStable(cols, func(i, j int) bool {
		if a, b := cols[i].Role.rank(), cols[j].Role.rank(); a != b {
			return a < b
		}
		if cols[i].Position != cols[j].Position {
			return cols[i].Position < cols[j].Position
		}
		return cols[i].Name < cols[j].Name
	})
}

// Keyspaces returns the keyspace names in the snapshot, sorted.
func (idx *Index) Keyspaces() []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]string(nil), idx.keyspaces...)
}

// Tables returns the table names of a keyspace, sorted. Unknown
// keyspaces yield an empty list.
func (idx *Index) Tables(keyspace string) []string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return append([]string(nil), idx.tables[keyspace]...)
}

// Columns returns the column descriptors of a table in declaration
// order. Unknown keyspaces or tables yield an empty list.
func (idx *Index) Columns(keyspace, table string) []Column {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	tables, ok := idx.columns[keyspace]
	if !ok {
		return nil
	}
	return append([]Column(nil), tables[table]...)
}

// TablesWithPrefix returns table names of a keyspace matching the
// case-insensitive prefix, sorted.
func (idx *Index) TablesWithPrefix(keyspace, prefix string) []string {
	lower := strings.ToLower(prefix)
	var out []string
	for _, name := range idx.Tables(keyspace) {
		if strings.HasPrefix(strings.ToLower(name), lower) {
			out = append(out, name)
		}
	}
	return out
}
