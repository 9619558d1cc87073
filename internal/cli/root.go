// Package cli provides the command-line interface for cqldesk.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cqldesk/cqldesk/internal/cli/commands"
	"github.com/cqldesk/cqldesk/internal/config"
)

var (
	cfgFile string
	verbose bool
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	app := &commands.App{}

	rootCmd := &cobra.Command{
		Use:   "cqldesk",
		Short: "cqldesk - Terminal CQL client",
		Long: `cqldesk is a terminal client for column-family databases speaking CQL.

It manages a set of named connections, runs queries with variable
substitution and pagination, keeps a bounded query history, and offers
an interactive shell with schema-aware completion.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip wiring for commands that never touch configuration
			switch cmd.Name() {
			case "help", "completion", "__complete", "version":
				return nil
			}
			return app.Init(cfgFile, verbose, cmd.Root().PersistentFlags())
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			app.Close()
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
`)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: platform config dir)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().Int("history-limit", config.DefaultHistoryLimit, "Number of history entries to retain")
	rootCmd.PersistentFlags().Int("page-size", config.DefaultPageSize, "Default rows fetched per result page")

	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(commands.NewConnectionsCommand(app))
	rootCmd.AddCommand(commands.NewQueryCommand(app))
	rootCmd.AddCommand(commands.NewREPLCommand(app))
	rootCmd.AddCommand(commands.NewKeyspacesCommand(app))
	rootCmd.AddCommand(commands.NewTablesCommand(app))
	rootCmd.AddCommand(commands.NewDescribeCommand(app))
	rootCmd.AddCommand(commands.NewHistoryCommand(app))
	rootCmd.AddCommand(commands.NewSavedCommand(app))
	rootCmd.AddCommand(commands.NewVarsCommand(app))

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}
