package config

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	kyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// FileName is the name of the config file inside the config directory.
const FileName = "cqldesk.yaml"

// envPrefix maps CQLDESK_SETTINGS__HISTORY_LIMIT style variables onto
// document keys, with "__" separating nesting levels.
const envPrefix = "CQLDESK_"

// DefaultPath returns the per-user config file path.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("determine config directory: %w", err)
	}
	return filepath.Join(dir, "cqldesk", FileName), nil
}

// Store loads and persists the configuration document.
type Store struct {
	path   string
	logger *slog.Logger
	flags  *pflag.FlagSet
}

// settingsFlags maps command-line flag names onto document keys.
var settingsFlags = map[string]string{
	"history-limit": "settings.history_limit",
	"page-size":     "settings.page_size",
}

// BindFlags layers command-line flags on top of file and environment
// values in subsequent Loads. Only flags named in settingsFlags apply.
func (s *Store) BindFlags(fs *pflag.FlagSet) {
	s.flags = fs
}

// NewStore creates a store rooted at path. A nil logger discards logs.
func NewStore(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Store{path: path, logger: logger}
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the document from disk. A missing file is not an error: it
// yields an empty document with defaults applied, matching first-run
// startup. Environment variables override file values.
func (s *Store) Load() (*Document, error) {
	k := koanf.New(".")

	// Defaults first so the file and environment can override them.
	defaults := map[string]interface{}{
		"settings.history_limit": DefaultHistoryLimit,
		"settings.page_size":     DefaultPageSize,
	}
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if _, err := os.Stat(s.path); err == nil {
		if err := k.Load(file.Provider(s.path), kyaml.Parser()); err != nil {
			return nil, fmt.Errorf("parse %s: %w", s.path, err)
		}
	}

	// Transform: CQLDESK_SETTINGS__HISTORY_LIMIT -> settings.history_limit
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.ReplaceAll(key, "__", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if s.flags != nil {
		p := posflag.ProviderWithValue(s.flags, ".", k, func(name, value string) (string, interface{}) {
			key, ok := settingsFlags[name]
			if !ok {
				return "", nil
			}
			return key, value
		})
		if err := k.Load(p, nil); err != nil {
			return nil, fmt.Errorf("load flags: %w", err)
		}
	}

	var doc Document
	if err := k.Unmarshal("", &doc); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	doc.Settings.ApplyDefaults()
	for i := range doc.Connections {
		doc.Connections[i].ApplyDefaults()
	}

	s.logger.Debug("loaded config", "path", s.path, "connections", len(doc.Connections))
	return &doc, nil
}

// Save writes the document to disk, creating the directory if needed.
// The write goes through a temp file and rename so a crash mid-write
// never truncates the previous document.
func (s *Store) Save(doc *Document) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	content, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("serialize config: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}

	s.logger.Debug("saved config", "path", s.path)
	return nil
}

// Watch invokes onChange whenever the backing file is written by an
// external editor. It blocks until ctx is cancelled.
func (s *Store) Watch(ctx context.Context, onChange func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Watch the directory: editors often replace the file via rename,
	// which drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(s.path)); err != nil {
		return fmt.Errorf("watch config directory: %w", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ev.Name != s.path {
				continue
			}
			if ev.Op.Has(fsnotify.Write) || ev.Op.Has(fsnotify.Create) || ev.Op.Has(fsnotify.Rename) {
				s.logger.Debug("config changed on disk", "op", ev.Op.String())
				onChange()
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("config watcher error", "error", err)
		}
	}
}
