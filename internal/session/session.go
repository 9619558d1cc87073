// Package session manages one live connection to a cluster: the
// connect/disconnect state machine, query execution with pagination,
// metadata listing for the schema index, and the conversion of
// wire-level typed values into a generic display representation.
package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/cqldesk/cqldesk/internal/config"
	"github.com/cqldesk/cqldesk/internal/schema"
	"github.com/cqldesk/cqldesk/pkg/cql"
)

// State is the connection lifecycle state.
type State int32

// Session states. Transitions: Disconnected→Connecting on connect,
// Connecting→Connected on handshake, Connecting→Failed on error or
// timeout, Connected→Disconnected on disconnect or broken connection,
// Failed→Connecting on retry. Retries are always caller-initiated.
const (
	StateDisconnected State = iota
	StateConnecting
	StateConnected
	StateFailed
)

// String returns the state name for status displays.
func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", s)
	}
}

// Conn is one established wire connection. The live implementation
// wraps the driver; tests substitute fakes.
type Conn interface {
	// Execute runs a statement and materializes one page of results.
	Execute(ctx context.Context, stmt string, pageSize int, pageState []byte) (*Result, error)

	// Liveness runs a trivial system query to verify the connection.
	Liveness(ctx context.Context) error

	// Close tears the connection down. Safe to call more than once.
	Close()
}

// Dialer establishes connections for a configuration.
type Dialer interface {
	DialContext(ctx context.Context, cfg config.ConnectionConfig) (Conn, error)
}

// Session wraps one connection to one cluster. It is owned by the
// connection manager and must not be shared for concurrent mutation;
// accessor methods are safe from any goroutine.
type Session struct {
	cfg    config.ConnectionConfig
	dialer Dialer
	logger *slog.Logger

	mu      sync.Mutex
	state   State
	conn    Conn
	failure error
	// epoch invalidates in-flight attempts: results belonging to an
	// older epoch are discarded instead of applied.
	epoch uint64
}

// New creates a session in the Disconnected state. A nil logger
// discards logs.
func New(cfg config.ConnectionConfig, dialer Dialer, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Session{cfg: cfg, dialer: dialer, logger: logger}
}

// Config returns the configuration the session was built from.
func (s *Session) Config() config.ConnectionConfig {
	return s.cfg
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Failure returns the retained reason of the last failed connect, or
// nil when the session is not in the Failed state.
func (s *Session) Failure() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failure
}

// Connect establishes the connection. The attempt is bounded by the
// configured connect timeout, so a Connecting session always resolves
// to Connected or Failed. Connecting while already connected is a
// no-op; a concurrent attempt in flight is reported as an error rather
// than racing it.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateConnected:
		s.mu.Unlock()
		return nil
	case StateConnecting:
		s.mu.Unlock()
		return &ConnectError{Reason: ReasonConnBusy, Err: fmt.Errorf("session %q", s.cfg.Name)}
	}
	s.state = StateConnecting
	s.failure = nil
	s.epoch++
	attempt := s.epoch
	s.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout())
	defer cancel()

	s.logger.Info("connecting", "connection", s.cfg.Name, "host", s.cfg.Host, "port", s.cfg.Port)
	conn, err := s.dialer.DialContext(dialCtx, s.cfg)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.epoch != attempt || s.state != StateConnecting {
		// The attempt was abandoned (disconnect or a newer connect).
		// Discard the outcome rather than applying it to the new state.
		if conn != nil {
			conn.Close()
		}
		return &ConnectError{Reason: ReasonUnreachable, Err: fmt.Errorf("connect attempt abandoned")}
	}

	if err != nil {
		cerr := asConnectError(err)
		s.state = StateFailed
		s.failure = cerr
		s.logger.Warn("connect failed", "connection", s.cfg.Name, "reason", string(cerr.Reason), "error", err)
		return cerr
	}

	s.state = StateConnected
	s.conn = conn
	s.logger.Info("connected", "connection", s.cfg.Name)
	return nil
}

// asConnectError wraps err as a *ConnectError, classifying it when it
// is not already one.
func asConnectError(err error) *ConnectError {
	if cerr, ok := err.(*ConnectError); ok {
		return cerr
	}
	return &ConnectError{Reason: ReasonUnreachable, Err: err}
}

// Disconnect closes the connection and moves to Disconnected. Any
// in-flight connect attempt is abandoned.
func (s *Session) Disconnect() {
	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.state = StateDisconnected
	s.failure = nil
	s.epoch++
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
		s.logger.Info("disconnected", "connection", s.cfg.Name)
	}
}

// current returns the live connection, or a QueryError when the session
// is not connected.
func (s *Session) current() (Conn, uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateConnected || s.conn == nil {
		return nil, 0, &QueryError{Reason: ReasonConnDropped, Err: fmt.Errorf("session %q is %s", s.cfg.Name, s.state)}
	}
	return s.conn, s.epoch, nil
}

// Execute runs a statement through the live connection. pageState
// continues a previous result's pagination; nil starts from the first
// page. The call is bounded by the configured request timeout. A
// dropped connection moves the session to Disconnected.
func (s *Session) Execute(ctx context.Context, stmt string, pageState []byte) (*Result, error) {
	conn, epoch, err := s.current()
	if err != nil {
		return nil, err
	}

	execCtx, cancel := context.WithTimeout(ctx, s.cfg.RequestTimeout())
	defer cancel()

	res, err := conn.Execute(execCtx, stmt, s.cfg.PageSize, pageState)
	if err != nil {
		qerr := asQueryError(err)
		if qerr.Reason == ReasonConnDropped {
			s.markBroken(epoch)
		}
		return nil, qerr
	}
	return res, nil
}

func asQueryError(err error) *QueryError {
	if qerr, ok := err.(*QueryError); ok {
		return qerr
	}
	return &QueryError{Reason: ReasonBadQuery, Err: err}
}

// markBroken transitions Connected→Disconnected after an operation
// detected a dead connection, unless the session already moved on.
func (s *Session) markBroken(epoch uint64) {
	s.mu.Lock()
	if s.epoch != epoch || s.state != StateConnected {
		s.mu.Unlock()
		return
	}
	conn := s.conn
	s.conn = nil
	s.state = StateDisconnected
	s.epoch++
	s.mu.Unlock()

	if conn != nil {
		conn.Close()
	}
	s.logger.Warn("connection dropped", "connection", s.cfg.Name)
}

// ListKeyspaces returns keyspace names from the cluster's schema tables.
func (s *Session) ListKeyspaces(ctx context.Context) ([]string, error) {
	res, err := s.Execute(ctx, "SELECT keyspace_name FROM system_schema.keyspaces", nil)
	if err != nil {
		return nil, err
	}
	return firstColumnStrings(res), nil
}

// ListTables returns table names of a keyspace.
func (s *Session) ListTables(ctx context.Context, keyspace string) ([]string, error) {
	if err := cql.ValidateIdentifier(keyspace); err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf("SELECT table_name FROM system_schema.tables WHERE keyspace_name = '%s'", keyspace)
	res, err := s.Execute(ctx, stmt, nil)
	if err != nil {
		return nil, err
	}
	return firstColumnStrings(res), nil
}

// ListColumns returns column descriptors of a table, feeding the schema
// index.
func (s *Session) ListColumns(ctx context.Context, keyspace, table string) ([]schema.Column, error) {
	if err := cql.ValidateIdentifier(keyspace); err != nil {
		return nil, err
	}
	if err := cql.ValidateIdentifier(table); err != nil {
		return nil, err
	}
	stmt := fmt.Sprintf(
		"SELECT column_name, type, kind, position, clustering_order FROM system_schema.columns WHERE keyspace_name = '%s' AND table_name = '%s'",
		keyspace, table,
	)
	res, err := s.Execute(ctx, stmt, nil)
	if err != nil {
		return nil, err
	}

	columns := make([]schema.Column, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) < 5 {
			continue
		}
		columns = append(columns, schema.Column{
			Name:            stringAt(row, 0),
			DataType:        stringAt(row, 1),
			Role:            schema.ColumnRole(stringAt(row, 2)),
			Position:        intAt(row, 3),
			ClusteringOrder: stringAt(row, 4),
		})
	}
	return columns, nil
}

// Test connects with the given configuration, runs a trivial liveness
// check and disconnects. Used to validate a configuration without
// committing to a long-lived session.
func Test(ctx context.Context, cfg config.ConnectionConfig, dialer Dialer) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	dialCtx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout())
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, cfg)
	if err != nil {
		return asConnectError(err)
	}
	defer conn.Close()

	if err := conn.Liveness(dialCtx); err != nil {
		return asConnectError(err)
	}
	return nil
}

// firstColumnStrings extracts column 0 of every row as a string.
func firstColumnStrings(res *Result) []string {
	out := make([]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		if len(row) > 0 {
			out = append(out, stringAt(row, 0))
		}
	}
	return out
}

func stringAt(row []any, i int) string {
	if s, ok := row[i].(string); ok {
		return s
	}
	if row[i] == nil {
		return ""
	}
	return fmt.Sprintf("%v", row[i])
}

func intAt(row []any, i int) int {
	switch v := row[i].(type) {
	case int64:
		return int(v)
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}
