package commands

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewSavedCommand creates the saved queries command group.
func NewSavedCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Manage saved queries",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List saved queries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			saved := app.Manager.SavedQueries()
			if len(saved) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No saved queries.")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Name", "Query"})
			for _, q := range saved {
				t.AppendRow(table.Row{q.Name, q.Query})
			}
			t.Render()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "add <name> <statement>",
		Short: "Save a query under a name",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			query := strings.Join(args[1:], " ")
			if err := app.Manager.SaveQuery(name, query); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Saved query %q\n", name)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a saved query",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Manager.DeleteQuery(args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Deleted saved query %q\n", args[0])
			return nil
		},
	})

	run := &cobra.Command{
		Use:   "run <name>",
		Short: "Run a saved query",
		Args:  cobra.ExactArgs(1),
	}
	var connection, format string
	var allPages bool
	run.RunE = func(cmd *cobra.Command, args []string) error {
		var query string
		for _, q := range app.Manager.SavedQueries() {
			if q.Name == args[0] {
				query = q.Query
				break
			}
		}
		if query == "" {
			return fmt.Errorf("saved query %q not found", args[0])
		}

		sess, err := app.connectByName(cmd.Context(), connection)
		if err != nil {
			return err
		}
		defer sess.Disconnect()

		return runPaged(cmd, app, cmd.OutOrStdout(), query, nil, format, allPages)
	}
	run.Flags().StringVarP(&connection, "connection", "c", "", "Connection name")
	run.Flags().StringVarP(&format, "format", "f", "table", "Output format (table|csv|json|markdown)")
	run.Flags().BoolVar(&allPages, "all-pages", false, "Fetch every page instead of only the first")
	cmd.AddCommand(run)

	return cmd
}
