package commands

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

// NewHistoryCommand creates the history command group.
func NewHistoryCommand(app *App) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recently executed queries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			entries, err := app.History.List(limit)
			if err != nil {
				return err
			}
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "History is empty.")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Executed", "Status", "Rows", "Duration", "Query"})
			for _, e := range entries {
				detail := e.Query
				if e.Status != "ok" && e.Error != "" {
					detail = fmt.Sprintf("%s  (%s)", e.Query, e.Error)
				}
				t.AppendRow(table.Row{
					e.ExecutedAt.Format("2006-01-02 15:04:05"),
					e.Status,
					e.RowCount,
					fmt.Sprintf("%dms", e.DurationMS),
					detail,
				})
			}
			t.Render()
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Number of entries to show (0 for all retained)")

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete all retained history",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := app.History.Clear(); err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "History cleared.")
			return nil
		},
	})

	return cmd
}
