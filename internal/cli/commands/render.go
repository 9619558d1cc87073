package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/cqldesk/cqldesk/internal/export"
	"github.com/cqldesk/cqldesk/internal/session"
)

const timeRounding = time.Millisecond

// renderResult writes one result page in the requested format.
func renderResult(w io.Writer, res *session.Result, format string) error {
	switch format {
	case "json":
		return renderJSON(w, res)
	case "csv":
		return export.WriteCSV(w, res)
	case "md", "markdown":
		return renderMarkdown(w, res)
	default:
		return renderTable(w, res)
	}
}

func renderTable(w io.Writer, res *session.Result) error {
	if len(res.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	headerRow := make(table.Row, len(res.Columns))
	for i, col := range res.Columns {
		headerRow[i] = col.Name
	}
	t.AppendHeader(headerRow)

	for _, row := range res.Rows {
		out := make(table.Row, len(row))
		for i, cell := range row {
			out[i] = session.Format(cell, "NULL")
		}
		t.AppendRow(out)
	}

	t.Render()
	_, _ = fmt.Fprintf(w, "(%d rows in %s)\n", res.RowCount, res.Duration.Round(timeRounding))
	return nil
}

func renderJSON(w io.Writer, res *session.Result) error {
	out := make([]map[string]any, 0, len(res.Rows))
	for _, row := range res.Rows {
		obj := make(map[string]any, len(res.Columns))
		for i, col := range res.Columns {
			if i < len(row) {
				obj[col.Name] = row[i]
			}
		}
		out = append(out, obj)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// markdownCell keeps pipes and line breaks inside cell values from
// breaking the table grid.
var markdownCell = strings.NewReplacer("|", `\|`, "\r\n", " ", "\n", " ", "\r", " ")

func renderMarkdown(w io.Writer, res *session.Result) error {
	if len(res.Rows) == 0 {
		_, _ = fmt.Fprintln(w, "(0 rows)")
		return nil
	}

	names := make([]string, len(res.Columns))
	seps := make([]string, len(res.Columns))
	for i, col := range res.Columns {
		names[i] = markdownCell.Replace(col.Name)
		seps[i] = "---"
	}
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(names, " | "))
	_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(seps, " | "))

	for _, row := range res.Rows {
		values := make([]string, len(row))
		for i, cell := range row {
			values[i] = markdownCell.Replace(session.Format(cell, "NULL"))
		}
		_, _ = fmt.Fprintf(w, "| %s |\n", strings.Join(values, " | "))
	}
	return nil
}

// renderNames prints a single-column listing.
func renderNames(w io.Writer, header string, names []string) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{header})
	for _, name := range names {
		t.AppendRow(table.Row{name})
	}
	t.Render()
}
