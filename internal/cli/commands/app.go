// Package commands implements the cqldesk subcommands.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/cqldesk/cqldesk/internal/config"
	"github.com/cqldesk/cqldesk/internal/conn"
	"github.com/cqldesk/cqldesk/internal/history"
	"github.com/cqldesk/cqldesk/internal/notifier"
	"github.com/cqldesk/cqldesk/internal/pipeline"
	"github.com/cqldesk/cqldesk/internal/schema"
	"github.com/cqldesk/cqldesk/internal/session"
)

// App holds the wired components shared by all subcommands. It is
// populated once by the root command before any subcommand runs.
type App struct {
	Store    *config.Store
	Manager  *conn.Manager
	History  *history.Store
	Pipeline *pipeline.Pipeline
	Index    *schema.Index
	Notifier *notifier.Notifier
	Logger   *slog.Logger
}

// Init loads configuration and wires the component graph. configPath
// may be empty, in which case the platform default location is used.
// flags, when non-nil, layer command-line settings overrides on top of
// the file and environment.
func (a *App) Init(configPath string, verbose bool, flags *pflag.FlagSet) error {
	if verbose {
		a.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	} else {
		a.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if configPath == "" {
		var err error
		configPath, err = config.DefaultPath()
		if err != nil {
			return fmt.Errorf("resolving config path: %w", err)
		}
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	a.Store = config.NewStore(configPath, a.Logger)
	if flags != nil {
		a.Store.BindFlags(flags)
	}
	a.Notifier = notifier.New()

	manager, err := conn.NewManager(a.Store, session.GocqlDialer{}, a.Notifier, a.Logger)
	if err != nil {
		return err
	}
	a.Manager = manager

	settings := manager.Settings()
	historyPath := settings.HistoryPath
	if historyPath == "" {
		historyPath = filepath.Join(filepath.Dir(configPath), "history.db")
	}
	a.History = history.NewStore(settings.HistoryLimit)
	if err := a.History.Open(historyPath); err != nil {
		return err
	}

	a.Pipeline = pipeline.New(manager, a.History, a.Notifier, a.Logger)
	a.Index = schema.NewIndex()
	return nil
}

// Close releases held resources.
func (a *App) Close() {
	if a.History != nil {
		_ = a.History.Close()
	}
}

// connectByName resolves a connection by name or id, connects it and
// selects it as active. An empty name picks the sole configured
// connection when there is exactly one.
func (a *App) connectByName(ctx context.Context, name string) (*session.Session, error) {
	id, err := a.resolveConnection(name)
	if err != nil {
		return nil, err
	}
	if err := a.Manager.Connect(ctx, id); err != nil {
		return nil, err
	}
	return a.Manager.Active()
}

func (a *App) resolveConnection(name string) (string, error) {
	if name != "" {
		return a.Manager.Resolve(name)
	}
	list := a.Manager.List()
	switch len(list) {
	case 0:
		return "", fmt.Errorf("no connections configured; add one with 'cqldesk connections add'")
	case 1:
		return list[0].ID, nil
	default:
		return "", fmt.Errorf("multiple connections configured; pick one with --connection")
	}
}

// refreshSchema rebuilds the autocomplete index from the session's
// cluster metadata.
func (a *App) refreshSchema(ctx context.Context, sess *session.Session) error {
	if err := a.Index.Refresh(ctx, sess); err != nil {
		return err
	}
	a.Notifier.Broadcast(notifier.EventSchema)
	return nil
}
