package commands

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/cqldesk/cqldesk/internal/config"
)

// NewConnectionsCommand creates the connections command group.
func NewConnectionsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "connections",
		Aliases: []string{"conn"},
		Short:   "Manage configured connections",
	}

	cmd.AddCommand(newConnectionsListCommand(app))
	cmd.AddCommand(newConnectionsAddCommand(app))
	cmd.AddCommand(newConnectionsRemoveCommand(app))
	cmd.AddCommand(newConnectionsTestCommand(app))
	return cmd
}

func newConnectionsListCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured connections",
		RunE: func(cmd *cobra.Command, _ []string) error {
			list := app.Manager.List()
			if len(list) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No connections configured. Add one with 'cqldesk connections add'.")
				return nil
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.SetStyle(table.StyleLight)
			t.AppendHeader(table.Row{"Name", "Host", "Port", "Keyspace", "State"})
			for _, c := range list {
				t.AppendRow(table.Row{c.Name, c.Host, c.Port, c.Keyspace, c.State.String()})
			}
			t.Render()
			return nil
		},
	}
}

func newConnectionsAddCommand(app *App) *cobra.Command {
	var cfg config.ConnectionConfig
	var promptPassword bool

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Add a connection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg.Name = args[0]

			if promptPassword {
				password, err := readPassword(cmd)
				if err != nil {
					return err
				}
				cfg.Password = password
			}

			added, err := app.Manager.Add(cfg)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Added connection %q (%s:%d)\n", added.Name, added.Host, added.Port)
			return nil
		},
	}

	cmd.Flags().StringVar(&cfg.Host, "host", "", "Contact point hostname or address")
	cmd.Flags().IntVar(&cfg.Port, "port", config.DefaultPort, "Native protocol port")
	cmd.Flags().StringVarP(&cfg.Username, "username", "u", "", "Username for password authentication")
	cmd.Flags().StringVar(&cfg.Password, "password", "", "Password (prefer --prompt-password)")
	cmd.Flags().BoolVar(&promptPassword, "prompt-password", false, "Prompt for the password instead of passing it as a flag")
	cmd.Flags().StringVarP(&cfg.Keyspace, "keyspace", "k", "", "Default keyspace")
	cmd.Flags().BoolVar(&cfg.TLS, "tls", false, "Encrypt the connection with TLS")
	cmd.Flags().IntVar(&cfg.ConnectTimeoutMS, "connect-timeout-ms", config.DefaultConnectTimeoutMS, "Connect timeout in milliseconds")
	cmd.Flags().IntVar(&cfg.RequestTimeoutMS, "request-timeout-ms", config.DefaultRequestTimeoutMS, "Request timeout in milliseconds")
	cmd.Flags().IntVar(&cfg.PageSize, "page-size", 0, "Rows fetched per result page (0 uses the settings default)")
	_ = cmd.MarkFlagRequired("host")

	return cmd
}

func newConnectionsRemoveCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:     "remove <name>",
		Aliases: []string{"rm"},
		Short:   "Remove a connection",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.Manager.Resolve(args[0])
			if err != nil {
				return err
			}
			if err := app.Manager.Remove(id); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Removed connection %q\n", args[0])
			return nil
		},
	}
}

func newConnectionsTestCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "test <name>",
		Short: "Connect, run a liveness probe and disconnect",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := app.Manager.Resolve(args[0])
			if err != nil {
				return err
			}
			cfg, err := app.Manager.Get(id)
			if err != nil {
				return err
			}
			if err := app.Manager.Test(cmd.Context(), cfg); err != nil {
				return fmt.Errorf("connection test failed: %w", err)
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Connection %q is reachable\n", cfg.Name)
			return nil
		},
	}
}

// readPassword reads a password without echo when stdin is a terminal,
// falling back to a plain line read otherwise.
func readPassword(cmd *cobra.Command) (string, error) {
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		_, _ = fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
		raw, err := term.ReadPassword(fd)
		_, _ = fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("reading password: %w", err)
		}
		return string(raw), nil
	}

	var password string
	if _, err := fmt.Fscanln(cmd.InOrStdin(), &password); err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return password, nil
}
