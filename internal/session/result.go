package session

import "time"

// Column names one result column together with its wire-level type name.
type Column struct {
	Name     string
	TypeName string
}

// Result is a materialized page of query output. Values are the generic
// display representation produced by Convert: nil marks a database null,
// distinct from an empty string or zero.
type Result struct {
	Columns  []Column
	Rows     [][]any
	RowCount int
	Duration time.Duration

	// PageState is the opaque continuation token for the next page.
	// Nil or empty means there are no more pages.
	PageState []byte
}

// HasMorePages reports whether another page can be fetched.
func (r *Result) HasMorePages() bool {
	return len(r.PageState) > 0
}
