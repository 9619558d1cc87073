// Package conn owns the table of configured connections: add, update,
// remove, connect, disconnect and the notion of the single active
// connection. All mutations persist through the config store and are
// announced on the notifier.
package conn

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/cqldesk/cqldesk/internal/config"
	"github.com/cqldesk/cqldesk/internal/notifier"
	"github.com/cqldesk/cqldesk/internal/session"
)

var (
	// ErrNoActiveConnection is returned when an operation needs a live
	// connection but none is selected.
	ErrNoActiveConnection = errors.New("no active connection")

	// ErrNotFound is returned when a connection id or name does not
	// resolve to a configured connection.
	ErrNotFound = errors.New("connection not found")

	// ErrDuplicateName is returned when adding or renaming a connection
	// would collide with an existing name.
	ErrDuplicateName = errors.New("connection name already in use")
)

// Status is one row of the connection listing.
type Status struct {
	ID       string
	Name     string
	Host     string
	Port     int
	Keyspace string
	State    session.State
	Active   bool
}

// entry pairs a configuration with its session. The entry mutex
// serializes lifecycle mutation per connection; reads go through the
// manager's RWMutex.
type entry struct {
	mu   sync.Mutex
	cfg  config.ConnectionConfig
	sess *session.Session
}

// Manager holds the connection table and the persisted document the
// table lives in (variables, saved queries and settings included).
type Manager struct {
	store    *config.Store
	dialer   session.Dialer
	notifier *notifier.Notifier
	logger   *slog.Logger

	mu       sync.RWMutex
	entries  map[string]*entry
	active   string
	document config.Document

	connects singleflight.Group
}

// NewManager loads the persisted document and builds the table. Every
// connection starts disconnected; nothing dials at load time.
func NewManager(store *config.Store, dialer session.Dialer, n *notifier.Notifier, logger *slog.Logger) (*Manager, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if n == nil {
		n = notifier.New()
	}

	doc, err := store.Load()
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}

	m := &Manager{
		store:    store,
		dialer:   dialer,
		notifier: n,
		logger:   logger,
		entries:  make(map[string]*entry, len(doc.Connections)),
		document: *doc,
	}
	changed := false
	for i := range doc.Connections {
		cfg := doc.Connections[i]
		if cfg.ID == "" {
			cfg.ID = uuid.NewString()
			doc.Connections[i].ID = cfg.ID
			changed = true
		}
		m.entries[cfg.ID] = &entry{
			cfg:  cfg,
			sess: session.New(cfg, dialer, logger),
		}
	}
	if changed {
		m.document = *doc
		if err := store.Save(doc); err != nil {
			return nil, fmt.Errorf("persisting generated connection ids: %w", err)
		}
	}
	return m, nil
}

// Reload re-reads the persisted document and applies changes to
// variables, saved queries and settings. Connection entries are left
// alone so live sessions survive external file edits; new or changed
// connections take effect on the next start.
func (m *Manager) Reload() error {
	doc, err := m.store.Load()
	if err != nil {
		return fmt.Errorf("reloading configuration: %w", err)
	}

	m.mu.Lock()
	m.document.Variables = doc.Variables
	m.document.SavedQueries = doc.SavedQueries
	m.document.Settings = doc.Settings
	m.mu.Unlock()

	m.notifier.Broadcast(notifier.EventConfig)
	return nil
}

// Notifier exposes the broadcast channel for listeners.
func (m *Manager) Notifier() *notifier.Notifier {
	return m.notifier
}

// Settings returns the persisted application settings.
func (m *Manager) Settings() config.Settings {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.document.Settings
}

// List returns all connections sorted by name, with their live state.
func (m *Manager) List() []Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Status, 0, len(m.entries))
	for id, e := range m.entries {
		out = append(out, Status{
			ID:       e.cfg.ID,
			Name:     e.cfg.Name,
			Host:     e.cfg.Host,
			Port:     e.cfg.Port,
			Keyspace: e.cfg.Keyspace,
			State:    e.sess.State(),
			Active:   id == m.active,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Resolve maps a connection name or id to its id.
func (m *Manager) Resolve(nameOrID string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.entries[nameOrID]; ok {
		return nameOrID, nil
	}
	for id, e := range m.entries {
		if e.cfg.Name == nameOrID {
			return id, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrNotFound, nameOrID)
}

// Get returns the configuration of a connection.
func (m *Manager) Get(id string) (config.ConnectionConfig, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.entries[id]
	if !ok {
		return config.ConnectionConfig{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return e.cfg, nil
}

// Add validates and stores a new connection. Names are unique across
// the table; the assigned id is returned in the stored configuration.
func (m *Manager) Add(cfg config.ConnectionConfig) (config.ConnectionConfig, error) {
	if cfg.PageSize == 0 {
		cfg.PageSize = m.Settings().PageSize
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return config.ConnectionConfig{}, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range m.entries {
		if e.cfg.Name == cfg.Name {
			return config.ConnectionConfig{}, fmt.Errorf("%w: %q", ErrDuplicateName, cfg.Name)
		}
	}

	cfg.ID = uuid.NewString()
	m.entries[cfg.ID] = &entry{
		cfg:  cfg,
		sess: session.New(cfg, m.dialer, m.logger),
	}
	if err := m.persistLocked(); err != nil {
		delete(m.entries, cfg.ID)
		return config.ConnectionConfig{}, err
	}

	m.notifier.Broadcast(notifier.EventConnections)
	m.logger.Info("connection added", "name", cfg.Name, "id", cfg.ID)
	return cfg, nil
}

// Update replaces a connection's configuration. A connected session is
// torn down; the caller reconnects explicitly with the new settings.
func (m *Manager) Update(cfg config.ConnectionConfig) error {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}

	m.mu.Lock()
	old, ok := m.entries[cfg.ID]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, cfg.ID)
	}
	for id, other := range m.entries {
		if id != cfg.ID && other.cfg.Name == cfg.Name {
			m.mu.Unlock()
			return fmt.Errorf("%w: %q", ErrDuplicateName, cfg.Name)
		}
	}
	m.entries[cfg.ID] = &entry{
		cfg:  cfg,
		sess: session.New(cfg, m.dialer, m.logger),
	}
	err := m.persistLocked()
	m.mu.Unlock()

	old.mu.Lock()
	old.sess.Disconnect()
	old.mu.Unlock()

	if err != nil {
		return err
	}

	m.notifier.Broadcast(notifier.EventConnections)
	m.logger.Info("connection updated", "name", cfg.Name, "id", cfg.ID)
	return nil
}

// Remove disconnects a connection, then deletes its configuration.
// Removing the active connection clears the active selection. A failed
// persist restores the entry so the table keeps matching the file on
// disk.
func (m *Manager) Remove(id string) error {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	e.mu.Lock()
	e.sess.Disconnect()
	e.mu.Unlock()

	m.mu.Lock()
	if _, ok := m.entries[id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	delete(m.entries, id)
	wasActive := m.active == id
	if wasActive {
		m.active = ""
	}
	if err := m.persistLocked(); err != nil {
		m.entries[id] = e
		if wasActive {
			m.active = id
		}
		m.mu.Unlock()
		return err
	}
	m.mu.Unlock()

	m.notifier.Broadcast(notifier.EventConnections)
	m.logger.Info("connection removed", "name", e.cfg.Name, "id", id)
	return nil
}

// Connect establishes the connection and selects it as active.
// Concurrent connects for the same id share one attempt.
func (m *Manager) Connect(ctx context.Context, id string) error {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	_, err, _ := m.connects.Do(id, func() (any, error) {
		e.mu.Lock()
		defer e.mu.Unlock()
		return nil, e.sess.Connect(ctx)
	})
	if err != nil {
		m.notifier.Broadcast(notifier.EventConnections)
		return err
	}

	m.mu.Lock()
	m.active = id
	m.mu.Unlock()

	m.notifier.Broadcast(notifier.EventConnections)
	return nil
}

// Disconnect tears the connection down. The active selection is
// cleared when it pointed at this connection.
func (m *Manager) Disconnect(id string) error {
	m.mu.RLock()
	e, ok := m.entries[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}

	e.mu.Lock()
	e.sess.Disconnect()
	e.mu.Unlock()

	m.mu.Lock()
	if m.active == id {
		m.active = ""
	}
	m.mu.Unlock()

	m.notifier.Broadcast(notifier.EventConnections)
	return nil
}

// Test dials a configuration, runs a liveness probe and disconnects,
// without touching the table.
func (m *Manager) Test(ctx context.Context, cfg config.ConnectionConfig) error {
	cfg.ApplyDefaults()
	return session.Test(ctx, cfg, m.dialer)
}

// SetActive selects a connection without dialing it.
func (m *Manager) SetActive(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.entries[id]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	m.active = id
	return nil
}

// Active returns the currently selected session.
func (m *Manager) Active() (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.active == "" {
		return nil, ErrNoActiveConnection
	}
	e, ok := m.entries[m.active]
	if !ok {
		return nil, ErrNoActiveConnection
	}
	return e.sess, nil
}

// Session returns the session of a specific connection.
func (m *Manager) Session(id string) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return e.sess, nil
}

// Variables returns a copy of the persisted variable map.
func (m *Manager) Variables() map[string]string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.document.VariableMap()
}

// SetVariable stores or replaces a variable and persists the document.
func (m *Manager) SetVariable(name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.document.Variables {
		if m.document.Variables[i].Name == name {
			m.document.Variables[i].Value = value
			return m.persistLocked()
		}
	}
	m.document.Variables = append(m.document.Variables, config.Variable{Name: name, Value: value})
	return m.persistLocked()
}

// DeleteVariable removes a variable. Deleting an unknown name is a
// no-op.
func (m *Manager) DeleteVariable(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.document.Variables {
		if m.document.Variables[i].Name == name {
			m.document.Variables = append(m.document.Variables[:i], m.document.Variables[i+1:]...)
			return m.persistLocked()
		}
	}
	return nil
}

// SavedQueries returns the persisted saved queries.
func (m *Manager) SavedQueries() []config.SavedQuery {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]config.SavedQuery, len(m.document.SavedQueries))
	copy(out, m.document.SavedQueries)
	return out
}

// SaveQuery stores a named query, replacing one with the same name.
func (m *Manager) SaveQuery(name, query string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.document.SavedQueries {
		if m.document.SavedQueries[i].Name == name {
			m.document.SavedQueries[i].Query = query
			return m.persistLocked()
		}
	}
	m.document.SavedQueries = append(m.document.SavedQueries, config.SavedQuery{
		ID:    uuid.NewString(),
		Name:  name,
		Query: query,
	})
	return m.persistLocked()
}

// DeleteQuery removes a saved query by name.
func (m *Manager) DeleteQuery(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.document.SavedQueries {
		if m.document.SavedQueries[i].Name == name {
			m.document.SavedQueries = append(m.document.SavedQueries[:i], m.document.SavedQueries[i+1:]...)
			return m.persistLocked()
		}
	}
	return fmt.Errorf("saved query %q not found", name)
}

// persistLocked writes the document. Connections are rebuilt from the
// table so the file reflects live edits; callers hold m.mu.
func (m *Manager) persistLocked() error {
	conns := make([]config.ConnectionConfig, 0, len(m.entries))
	for _, e := range m.entries {
		conns = append(conns, e.cfg)
	}
	sort.Slice(conns, func(i, j int) bool { return conns[i].Name < conns[j].Name })
	m.document.Connections = conns

	if err := m.store.Save(&m.document); err != nil {
		return fmt.Errorf("persisting configuration: %w", err)
	}
	m.notifier.Broadcast(notifier.EventConfig)
	return nil
}
