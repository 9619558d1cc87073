package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewKeyspacesCommand creates the keyspaces listing command.
func NewKeyspacesCommand(app *App) *cobra.Command {
	var connection string

	cmd := &cobra.Command{
		Use:   "keyspaces",
		Short: "List keyspaces",
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := app.connectByName(cmd.Context(), connection)
			if err != nil {
				return err
			}
			defer sess.Disconnect()

			names, err := sess.ListKeyspaces(cmd.Context())
			if err != nil {
				return err
			}
			renderNames(cmd.OutOrStdout(), "Keyspace", names)
			return nil
		},
	}

	cmd.Flags().StringVarP(&connection, "connection", "c", "", "Connection name")
	return cmd
}

// NewTablesCommand creates the tables listing command.
func NewTablesCommand(app *App) *cobra.Command {
	var connection string

	cmd := &cobra.Command{
		Use:   "tables <keyspace>",
		Short: "List tables of a keyspace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.connectByName(cmd.Context(), connection)
			if err != nil {
				return err
			}
			defer sess.Disconnect()

			names, err := sess.ListTables(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			renderNames(cmd.OutOrStdout(), "Table", names)
			return nil
		},
	}

	cmd.Flags().StringVarP(&connection, "connection", "c", "", "Connection name")
	return cmd
}

// NewDescribeCommand creates the table description command.
func NewDescribeCommand(app *App) *cobra.Command {
	var connection string

	cmd := &cobra.Command{
		Use:     "describe <keyspace> <table>",
		Aliases: []string{"desc"},
		Short:   "Show the columns of a table",
		Args:    cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := app.connectByName(cmd.Context(), connection)
			if err != nil {
				return err
			}
			defer sess.Disconnect()

			cols, err := sess.ListColumns(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			if len(cols) == 0 {
				return fmt.Errorf("table %s.%s not found", args[0], args[1])
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Column", "Type", "Kind", "Clustering Order"})
			for _, col := range cols {
				order := col.ClusteringOrder
				if order == "none" {
					order = ""
				}
				t.AppendRow(table.Row{col.Name, col.DataType, string(col.Role), order})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().StringVarP(&connection, "connection", "c", "", "Connection name")
	return cmd
}
