package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/cqldesk/cqldesk/internal/complete"
	"github.com/cqldesk/cqldesk/internal/pipeline"
	"github.com/cqldesk/cqldesk/internal/session"
)

const replPrompt = "cqldesk> "

// NewREPLCommand creates the interactive shell command.
func NewREPLCommand(app *App) *cobra.Command {
	var connection, format string

	cmd := &cobra.Command{
		Use:   "repl",
		Short: "Start an interactive CQL shell",
		Long: `Start an interactive shell with schema-aware completion.

Statements end with a semicolon and may span multiple lines. Dot
commands control the shell itself, type .help for the list.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sess, err := app.connectByName(cmd.Context(), connection)
			if err != nil {
				return err
			}
			defer sess.Disconnect()

			if err := app.refreshSchema(cmd.Context(), sess); err != nil {
				_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Warning: schema refresh failed: %v\n", err)
			}

			// Pick up external edits to variables and saved queries
			// while the shell is open.
			watchCtx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			go func() {
				err := app.Store.Watch(watchCtx, func() {
					if err := app.Manager.Reload(); err != nil {
						app.Logger.Warn("config reload failed", "error", err)
					}
				})
				if err != nil {
					app.Logger.Warn("config watch unavailable", "error", err)
				}
			}()

			r := &repl{
				app:      app,
				sess:     sess,
				format:   format,
				keyspace: sess.Config().Keyspace,
				engine:   complete.NewEngine(app.Index),
			}
			return r.run(cmd)
		},
	}

	cmd.Flags().StringVarP(&connection, "connection", "c", "", "Connection name")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table|csv|json|markdown)")
	return cmd
}

// repl holds the shell's state across statements.
type repl struct {
	app      *App
	sess     *session.Session
	engine   *complete.Engine
	format   string
	keyspace string

	lastQuery  string
	lastResult *session.Result
}

// Do implements readline.AutoCompleter over the completion engine.
// readline speaks rune indices, the engine byte offsets, so the cursor
// converts on the way in and the prefix length on the way out.
func (r *repl) Do(line []rune, pos int) ([][]rune, int) {
	if pos < 0 || pos > len(line) {
		return nil, 0
	}
	typed := string(line[:pos])
	texts, prefixLen := r.engine.Line(string(line), len(typed), r.keyspace)

	out := make([][]rune, 0, len(texts))
	for _, text := range texts {
		if len(text) < prefixLen {
			continue
		}
		out = append(out, []rune(text[prefixLen:]))
	}
	return out, utf8.RuneCountInString(typed[len(typed)-prefixLen:])
}

func (r *repl) run(cmd *cobra.Command) error {
	historyFile := filepath.Join(filepath.Dir(r.app.Store.Path()), "repl_history")

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          replPrompt,
		HistoryFile:     historyFile,
		AutoComplete:    r,
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize shell: %w", err)
	}
	defer func() { _ = rl.Close() }()

	cfg := r.sess.Config()
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Connected to %s (%s:%d)\n", cfg.Name, cfg.Host, cfg.Port)
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Type .help for commands, .quit to exit")
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	var buffer strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			buffer.Reset()
			rl.SetPrompt(replPrompt)
			continue
		}
		if errors.Is(err, io.EOF) {
			break
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if buffer.Len() == 0 && strings.HasPrefix(line, ".") {
			if quit := r.dotCommand(cmd, line); quit {
				break
			}
			continue
		}

		buffer.WriteString(line)
		if !strings.HasSuffix(line, ";") {
			buffer.WriteString(" ")
			rl.SetPrompt("    ...> ")
			continue
		}
		rl.SetPrompt(replPrompt)

		query := strings.TrimSuffix(buffer.String(), ";")
		buffer.Reset()

		if err := r.execute(cmd, query, nil); err != nil {
			_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "Error: %v\n", err)
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout())
	}

	return nil
}

// execute runs one statement and renders the page. The result is kept
// for .next and .export.
func (r *repl) execute(cmd *cobra.Command, query string, pageState []byte) error {
	resp, err := r.app.Pipeline.Run(cmd.Context(), pipeline.Request{Query: query, PageState: pageState})
	if err != nil {
		return err
	}

	r.lastQuery = query
	r.lastResult = resp.Result

	if err := renderResult(cmd.OutOrStdout(), resp.Result, r.format); err != nil {
		return err
	}
	if resp.Result.HasMorePages() {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "More pages available, type .next to continue.")
	}
	return nil
}

// dotCommand handles shell control commands. It reports whether the
// shell should exit.
func (r *repl) dotCommand(cmd *cobra.Command, line string) bool {
	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	parts := strings.Fields(line)
	command := strings.ToLower(parts[0])

	report := func(err error) {
		if err != nil {
			_, _ = fmt.Fprintf(errOut, "Error: %v\n", err)
		}
	}

	switch command {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(out)

	case ".keyspaces":
		names, err := r.sess.ListKeyspaces(cmd.Context())
		if err != nil {
			report(err)
			return false
		}
		renderNames(out, "Keyspace", names)

	case ".tables":
		keyspace := r.keyspace
		if len(parts) > 1 {
			keyspace = parts[1]
		}
		if keyspace == "" {
			_, _ = fmt.Fprintln(errOut, "Usage: .tables <keyspace> (no active keyspace)")
			return false
		}
		names, err := r.sess.ListTables(cmd.Context(), keyspace)
		if err != nil {
			report(err)
			return false
		}
		renderNames(out, "Table", names)

	case ".use":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .use <keyspace>")
			return false
		}
		r.keyspace = parts[1]
		_, _ = fmt.Fprintf(out, "Completing against keyspace %q\n", r.keyspace)

	case ".refresh":
		report(r.app.refreshSchema(cmd.Context(), r.sess))

	case ".next":
		if r.lastResult == nil || !r.lastResult.HasMorePages() {
			_, _ = fmt.Fprintln(errOut, "No further pages.")
			return false
		}
		report(r.execute(cmd, r.lastQuery, r.lastResult.PageState))

	case ".export":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .export <file>")
			return false
		}
		if r.lastResult == nil {
			_, _ = fmt.Fprintln(errOut, "No result to export, run a query first.")
			return false
		}
		if err := exportResult(parts[1], r.lastResult); err != nil {
			report(err)
			return false
		}
		_, _ = fmt.Fprintf(out, "Exported %d rows to %s\n", r.lastResult.RowCount, parts[1])

	case ".vars":
		vars := r.app.Manager.Variables()
		if len(vars) == 0 {
			_, _ = fmt.Fprintln(out, "No variables defined.")
			return false
		}
		for name, value := range vars {
			_, _ = fmt.Fprintf(out, "  {{%s}} = %s\n", name, value)
		}

	case ".set":
		if len(parts) < 3 {
			_, _ = fmt.Fprintln(errOut, "Usage: .set <name> <value>")
			return false
		}
		report(r.app.Manager.SetVariable(parts[1], strings.Join(parts[2:], " ")))

	case ".unset":
		if len(parts) < 2 {
			_, _ = fmt.Fprintln(errOut, "Usage: .unset <name>")
			return false
		}
		report(r.app.Manager.DeleteVariable(parts[1]))

	case ".clear":
		fmt.Print("\033[H\033[2J")

	default:
		_, _ = fmt.Fprintf(errOut, "Unknown command: %s (type .help for commands)\n", command)
	}
	return false
}

func printREPLHelp(w io.Writer) {
	help := `
Commands:
  .help              Show this help message
  .keyspaces         List keyspaces
  .tables [ks]       List tables of a keyspace
  .use <keyspace>    Set the keyspace used for completion
  .refresh           Re-read cluster metadata for completion
  .next              Fetch the next page of the last result
  .export <file>     Write the last result page to a CSV file
  .vars              List variables
  .set <name> <v>    Set a variable
  .unset <name>      Delete a variable
  .clear             Clear the screen
  .quit / .exit      Exit the shell

Tips:
  - Statements must end with a semicolon (;)
  - Use arrow keys to navigate history
  - Tab completion covers keywords, tables and columns
`
	_, _ = fmt.Fprintln(w, help)
}
