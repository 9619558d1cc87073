package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tempStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), FileName), nil)
}

func TestStore_LoadMissingFile(t *testing.T) {
	store := tempStore(t)

	doc, err := store.Load()
	require.NoError(t, err)
	assert.Empty(t, doc.Connections)
	assert.Equal(t, DefaultHistoryLimit, doc.Settings.HistoryLimit)
	assert.Equal(t, DefaultPageSize, doc.Settings.PageSize)
}

func TestStore_SaveLoadRoundTrip(t *testing.T) {
	store := tempStore(t)

	doc := &Document{
		Connections: []ConnectionConfig{{
			ID:   "c1",
			Name: "local",
			Host: "127.0.0.1",
			Port: 9042,
		}},
		Variables:    []Variable{{Name: "uid", Value: "42"}},
		SavedQueries: []SavedQuery{{ID: "q1", Name: "all users", Query: "SELECT * FROM users"}},
	}
	require.NoError(t, store.Save(doc))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.Len(t, loaded.Connections, 1)
	assert.Equal(t, "local", loaded.Connections[0].Name)
	// Optional fields absent from the file take defaults on load.
	assert.Equal(t, DefaultConnectTimeoutMS, loaded.Connections[0].ConnectTimeoutMS)
	assert.Equal(t, map[string]string{"uid": "42"}, loaded.VariableMap())
	require.Len(t, loaded.SavedQueries, 1)
	assert.Equal(t, "all users", loaded.SavedQueries[0].Name)
}

func TestStore_LoadToleratesUnknownFields(t *testing.T) {
	store := tempStore(t)
	content := []byte("connections:\n  - id: c1\n    name: local\n    host: h\n    some_future_field: true\n")
	require.NoError(t, os.WriteFile(store.Path(), content, 0o600))

	doc, err := store.Load()
	require.NoError(t, err)
	require.Len(t, doc.Connections, 1)
	assert.Equal(t, "local", doc.Connections[0].Name)
	assert.Equal(t, DefaultPort, doc.Connections[0].Port)
}

func TestConnectionConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ConnectionConfig)
		wantErr string
	}{
		{"valid", func(*ConnectionConfig) {}, ""},
		{"empty name", func(c *ConnectionConfig) { c.Name = "" }, "name"},
		{"empty host", func(c *ConnectionConfig) { c.Host = "" }, "host"},
		{"port too small", func(c *ConnectionConfig) { c.Port = 0 }, "port"},
		{"port too large", func(c *ConnectionConfig) { c.Port = 70000 }, "port"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := ConnectionConfig{Name: "n", Host: "h", Port: 9042}
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantErr, verr.Field)
		})
	}
}

func TestStore_SettingsLayering(t *testing.T) {
	store := tempStore(t)
	content := []byte("settings:\n  history_limit: 200\n  page_size: 500\n")
	require.NoError(t, os.WriteFile(store.Path(), content, 0o600))

	t.Setenv("CQLDESK_SETTINGS__PAGE_SIZE", "250")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	fs.Int("history-limit", DefaultHistoryLimit, "")
	fs.Int("page-size", DefaultPageSize, "")
	require.NoError(t, fs.Set("history-limit", "7"))
	store.BindFlags(fs)

	doc, err := store.Load()
	require.NoError(t, err)
	// Explicit flag beats file and environment.
	assert.Equal(t, 7, doc.Settings.HistoryLimit)
	// Environment beats the file; the unset page-size flag default
	// does not clobber it.
	assert.Equal(t, 250, doc.Settings.PageSize)
}
