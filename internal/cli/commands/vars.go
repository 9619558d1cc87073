package commands

import (
	"fmt"
	"sort"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewVarsCommand creates the variables command group.
func NewVarsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "vars",
		Short: "Manage query variables",
		Long: `Manage the variables substituted into {{name}} placeholders.

Variables are stored in the configuration file and apply to every
query run through cqldesk.`,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List variables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			vars := app.Manager.Variables()
			if len(vars) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No variables defined.")
				return nil
			}

			names := make([]string, 0, len(vars))
			for name := range vars {
				names = append(names, name)
			}
			sort.Strings(names)

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Name", "Value"})
			for _, name := range names {
				t.AppendRow(table.Row{name, vars[name]})
			}
			t.Render()
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <name> <value>",
		Short: "Set a variable",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Manager.SetVariable(args[0], args[1]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Set {{%s}}\n", args[0])
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:     "unset <name>",
		Aliases: []string{"rm"},
		Short:   "Delete a variable",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Manager.DeleteVariable(args[0]); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Unset {{%s}}\n", args[0])
			return nil
		},
	})

	return cmd
}
