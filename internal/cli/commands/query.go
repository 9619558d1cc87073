package commands

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cqldesk/cqldesk/internal/export"
	"github.com/cqldesk/cqldesk/internal/pipeline"
	"github.com/cqldesk/cqldesk/internal/session"
)

// NewQueryCommand creates the query command.
func NewQueryCommand(app *App) *cobra.Command {
	var (
		connection string
		format     string
		outputPath string
		allPages   bool
		varFlags   []string
	)

	cmd := &cobra.Command{
		Use:   "query <statement>",
		Short: "Run a CQL statement",
		Long: `Run a CQL statement on a configured connection.

{{name}} placeholders in the statement are substituted from stored
variables; --var overrides them for this invocation. Results are paged
by the connection's page size, use --all-pages to drain every page.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			overrides, err := parseVarFlags(varFlags)
			if err != nil {
				return err
			}

			sess, err := app.connectByName(cmd.Context(), connection)
			if err != nil {
				return err
			}
			defer sess.Disconnect()

			query := strings.Join(args, " ")

			out := cmd.OutOrStdout()
			var file *os.File
			if outputPath != "" {
				file, err = os.Create(outputPath)
				if err != nil {
					return fmt.Errorf("creating output file: %w", err)
				}
				defer file.Close()
				out = file
				if format == "" || format == "table" {
					format = "csv"
				}
			}

			if err := runPaged(cmd, app, out, query, overrides, format, allPages); err != nil {
				return err
			}
			if file != nil {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Results written to %s\n", outputPath)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&connection, "connection", "c", "", "Connection name (defaults to the only configured connection)")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table|csv|json|markdown)")
	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Write results to a file (defaults the format to csv)")
	cmd.Flags().BoolVar(&allPages, "all-pages", false, "Fetch every page instead of only the first")
	cmd.Flags().StringArrayVar(&varFlags, "var", nil, "Variable override as name=value (repeatable)")

	return cmd
}

// runPaged executes the query and renders pages until pagination is
// exhausted or a single page was requested.
func runPaged(cmd *cobra.Command, app *App, out io.Writer, query string, overrides map[string]string, format string, allPages bool) error {
	var pageState []byte
	for {
		resp, err := app.Pipeline.Run(cmd.Context(), pipeline.Request{
			Query:     query,
			PageState: pageState,
			Overrides: overrides,
		})
		if err != nil {
			return err
		}

		if err := renderResult(out, resp.Result, format); err != nil {
			return err
		}

		if !allPages || !resp.Result.HasMorePages() {
			if resp.Result.HasMorePages() {
				_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "More pages available; rerun with --all-pages to drain them.")
			}
			return nil
		}
		pageState = resp.Result.PageState
	}
}

// parseVarFlags splits repeated name=value flags into a map.
func parseVarFlags(flags []string) (map[string]string, error) {
	if len(flags) == 0 {
		return nil, nil
	}
	vars := make(map[string]string, len(flags))
	for _, raw := range flags {
		name, value, ok := strings.Cut(raw, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --var %q, expected name=value", raw)
		}
		vars[name] = value
	}
	return vars, nil
}

// exportResult writes a result to a file as CSV.
func exportResult(path string, res *session.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating export file: %w", err)
	}
	defer file.Close()

	if err := export.WriteCSV(file, res); err != nil {
		return err
	}
	return file.Sync()
}
