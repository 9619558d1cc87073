// Package export renders result pages to interchange formats.
package export

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/cqldesk/cqldesk/internal/session"
)

// WriteCSV writes a result as CSV: a header row of column names
// followed by one row per result row. A null cell is written as a bare
// empty field while an empty string is written quoted, so the two stay
// distinguishable in the output.
func WriteCSV(w io.Writer, res *session.Result) error {
	bw := bufio.NewWriter(w)

	header := make([]string, len(res.Columns))
	for i, col := range res.Columns {
		header[i] = encodeField(col.Name)
	}
	if _, err := bw.WriteString(strings.Join(header, ",") + "\r\n"); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}

	for _, row := range res.Rows {
		fields := make([]string, len(row))
		for i, cell := range row {
			if cell == nil {
				fields[i] = ""
				continue
			}
			fields[i] = encodeField(session.Format(cell, ""))
		}
		if _, err := bw.WriteString(strings.Join(fields, ",") + "\r\n"); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}

	return bw.Flush()
}

// encodeField quotes a value when it contains a delimiter, a quote or a
// line break. The empty string is always quoted to keep it distinct
// from null's bare empty field.
func encodeField(value string) string {
	if value == "" {
		return `""`
	}
	if strings.ContainsAny(value, ",\"\r\n") {
		return `"` + strings.ReplaceAll(value, `"`, `""`) + `"`
	}
	return value
}
