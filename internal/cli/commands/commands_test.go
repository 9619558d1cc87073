package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cqldesk/cqldesk/internal/complete"
	"github.com/cqldesk/cqldesk/internal/config"
	"github.com/cqldesk/cqldesk/internal/schema"
	"github.com/cqldesk/cqldesk/internal/session"
)

func testApp(t *testing.T) *App {
	t.Helper()
	app := &App{}
	path := filepath.Join(t.TempDir(), config.FileName)
	require.NoError(t, app.Init(path, false, nil))
	t.Cleanup(app.Close)
	return app
}

func runCommand(t *testing.T, cmd *cobra.Command, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{}, args...))
	require.NoError(t, cmd.Execute())
	return out.String()
}

func TestConnectionsAddAndList(t *testing.T) {
	app := testApp(t)

	out := runCommand(t, NewConnectionsCommand(app), "add", "local", "--host", "127.0.0.1", "--keyspace", "app")
	assert.Contains(t, out, `Added connection "local"`)
	assert.Contains(t, out, "127.0.0.1:9042")

	out = runCommand(t, NewConnectionsCommand(app), "list")
	assert.Contains(t, out, "local")
	assert.Contains(t, out, "app")
	assert.Contains(t, out, "disconnected")
}

func TestConnectionsAddRejectsDuplicate(t *testing.T) {
	app := testApp(t)

	runCommand(t, NewConnectionsCommand(app), "add", "local", "--host", "127.0.0.1")

	cmd := NewConnectionsCommand(app)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"add", "local", "--host", "10.0.0.1"})
	assert.Error(t, cmd.Execute())
}

func TestConnectionsRemove(t *testing.T) {
	app := testApp(t)

	runCommand(t, NewConnectionsCommand(app), "add", "local", "--host", "127.0.0.1")
	out := runCommand(t, NewConnectionsCommand(app), "remove", "local")
	assert.Contains(t, out, `Removed connection "local"`)
	assert.Empty(t, app.Manager.List())
}

func TestVarsSetListUnset(t *testing.T) {
	app := testApp(t)

	runCommand(t, NewVarsCommand(app), "set", "env", "dev")

	out := runCommand(t, NewVarsCommand(app), "list")
	assert.Contains(t, out, "env")
	assert.Contains(t, out, "dev")

	runCommand(t, NewVarsCommand(app), "unset", "env")
	out = runCommand(t, NewVarsCommand(app), "list")
	assert.Contains(t, out, "No variables defined.")
}

func TestSavedAddListRemove(t *testing.T) {
	app := testApp(t)

	runCommand(t, NewSavedCommand(app), "add", "all-users", "SELECT * FROM users")

	out := runCommand(t, NewSavedCommand(app), "list")
	assert.Contains(t, out, "all-users")
	assert.Contains(t, out, "SELECT * FROM users")

	runCommand(t, NewSavedCommand(app), "remove", "all-users")
	out = runCommand(t, NewSavedCommand(app), "list")
	assert.Contains(t, out, "No saved queries.")
}

func TestHistoryEmpty(t *testing.T) {
	app := testApp(t)

	out := runCommand(t, NewHistoryCommand(app))
	assert.Contains(t, out, "History is empty.")
}

func TestVersionCommand(t *testing.T) {
	out := runCommand(t, NewVersionCommand("1.2.3"))
	assert.Contains(t, out, "cqldesk v1.2.3")
}

func TestParseVarFlags(t *testing.T) {
	vars, err := parseVarFlags([]string{"a=1", "b=x=y"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "x=y"}, vars)

	_, err = parseVarFlags([]string{"novalue"})
	assert.Error(t, err)

	vars, err = parseVarFlags(nil)
	require.NoError(t, err)
	assert.Nil(t, vars)
}

type fixedLister struct {
	tables map[string][]string
}

func (f *fixedLister) ListKeyspaces(context.Context) ([]string, error) {
	keyspaces := make([]string, 0, len(f.tables))
	for ks := range f.tables {
		keyspaces = append(keyspaces, ks)
	}
	return keyspaces, nil
}

func (f *fixedLister) ListTables(_ context.Context, ks string) ([]string, error) {
	return f.tables[ks], nil
}

func (f *fixedLister) ListColumns(context.Context, string, string) ([]schema.Column, error) {
	return nil, nil
}

func TestREPLCompleterHandlesMultibyteLines(t *testing.T) {
	idx := schema.NewIndex()
	require.NoError(t, idx.Refresh(context.Background(), &fixedLister{
		tables: map[string][]string{"app": {"users", "user_sessions"}},
	}))
	r := &repl{engine: complete.NewEngine(idx), keyspace: "app"}

	// The string literal before the cursor holds a two-byte rune, so
	// rune and byte offsets diverge.
	line := []rune("SELECT 'é' FROM us")
	candidates, length := r.Do(line, len(line))

	require.NotEmpty(t, candidates)
	suffixes := make([]string, len(candidates))
	for i, c := range candidates {
		suffixes[i] = string(c)
	}
	assert.Contains(t, suffixes, "ers")
	assert.Contains(t, suffixes, "er_sessions")
	assert.Equal(t, 2, length)
}

func TestRenderMarkdownEscapesCells(t *testing.T) {
	res := &session.Result{
		Columns: []session.Column{{Name: "note"}},
		Rows: [][]any{
			{"a|b"},
			{"line one\nline two"},
		},
		RowCount: 2,
	}

	var out bytes.Buffer
	require.NoError(t, renderMarkdown(&out, res))

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, `| a\|b |`, lines[2])
	assert.Equal(t, "| line one line two |", lines[3])
}
