package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cqldesk/cqldesk/internal/config"
)

type fakeConn struct {
	mu       sync.Mutex
	closed   bool
	execErr  error
	results  map[string]*Result
	executed []string
}

func (f *fakeConn) Execute(ctx context.Context, stmt string, pageSize int, pageState []byte) (*Result, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.executed = append(f.executed, stmt)
	if f.execErr != nil {
		return nil, f.execErr
	}
	if res, ok := f.results[stmt]; ok {
		return res, nil
	}
	return &Result{}, nil
}

func (f *fakeConn) Liveness(ctx context.Context) error { return f.execErr }

func (f *fakeConn) Close() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
}

func (f *fakeConn) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

type fakeDialer struct {
	mu      sync.Mutex
	conn    *fakeConn
	err     error
	delay   time.Duration
	dials   int
	blockCh chan struct{}
}

func (f *fakeDialer) DialContext(ctx context.Context, cfg config.ConnectionConfig) (Conn, error) {
	f.mu.Lock()
	f.dials++
	delay, blockCh, err, conn := f.delay, f.blockCh, f.err, f.conn
	f.mu.Unlock()

	if blockCh != nil {
		<-blockCh
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, &ConnectError{Reason: ReasonConnTimeout, Err: ctx.Err()}
		}
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

func testConfig() config.ConnectionConfig {
	cfg := config.ConnectionConfig{Name: "local", Host: "127.0.0.1"}
	cfg.ApplyDefaults()
	return cfg
}

func TestSession_ConnectTransitionsToConnected(t *testing.T) {
	conn := &fakeConn{}
	s := New(testConfig(), &fakeDialer{conn: conn}, nil)

	assert.Equal(t, StateDisconnected, s.State())
	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, StateConnected, s.State())

	// Connecting again while connected is a no-op.
	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, StateConnected, s.State())
}

func TestSession_ConnectFailureRetainsReason(t *testing.T) {
	dialErr := &ConnectError{Reason: ReasonAuth, Err: errors.New("bad credentials")}
	s := New(testConfig(), &fakeDialer{err: dialErr}, nil)

	err := s.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, StateFailed, s.State())

	var cerr *ConnectError
	require.ErrorAs(t, s.Failure(), &cerr)
	assert.Equal(t, ReasonAuth, cerr.Reason)
}

func TestSession_RetryAfterFailure(t *testing.T) {
	conn := &fakeConn{}
	dialer := &fakeDialer{err: errors.New("refused")}
	s := New(testConfig(), dialer, nil)

	require.Error(t, s.Connect(context.Background()))
	assert.Equal(t, StateFailed, s.State())

	dialer.mu.Lock()
	dialer.err = nil
	dialer.conn = conn
	dialer.mu.Unlock()

	require.NoError(t, s.Connect(context.Background()))
	assert.Equal(t, StateConnected, s.State())
	assert.Nil(t, s.Failure())
}

func TestSession_CancelledConnectDiscardsLateResult(t *testing.T) {
	conn := &fakeConn{}
	blockCh := make(chan struct{})
	dialer := &fakeDialer{conn: conn, blockCh: blockCh}
	s := New(testConfig(), dialer, nil)

	done := make(chan error, 1)
	go func() { done <- s.Connect(context.Background()) }()

	require.Eventually(t, func() bool {
		return s.State() == StateConnecting
	}, time.Second, time.Millisecond)

	// Abandon the attempt, then let the dial finish.
	s.Disconnect()
	close(blockCh)

	require.Error(t, <-done)
	assert.Equal(t, StateDisconnected, s.State())
	assert.Eventually(t, conn.isClosed, time.Second, time.Millisecond,
		"late connection must be closed, not adopted")
}

func TestSession_ExecuteRequiresConnection(t *testing.T) {
	s := New(testConfig(), &fakeDialer{}, nil)

	_, err := s.Execute(context.Background(), "SELECT * FROM t", nil)
	var qerr *QueryError
	require.ErrorAs(t, err, &qerr)
	assert.Equal(t, ReasonConnDropped, qerr.Reason)
}

func TestSession_DroppedConnectionMovesToDisconnected(t *testing.T) {
	conn := &fakeConn{execErr: &QueryError{Reason: ReasonConnDropped, Err: errors.New("gone")}}
	s := New(testConfig(), &fakeDialer{conn: conn}, nil)
	require.NoError(t, s.Connect(context.Background()))

	_, err := s.Execute(context.Background(), "SELECT * FROM t", nil)
	require.Error(t, err)
	assert.Equal(t, StateDisconnected, s.State())
	assert.True(t, conn.isClosed())
}

func TestSession_BadQueryKeepsConnection(t *testing.T) {
	conn := &fakeConn{execErr: &QueryError{Reason: ReasonBadQuery, Err: errors.New("syntax error")}}
	s := New(testConfig(), &fakeDialer{conn: conn}, nil)
	require.NoError(t, s.Connect(context.Background()))

	_, err := s.Execute(context.Background(), "SELEC", nil)
	require.Error(t, err)
	assert.Equal(t, StateConnected, s.State())
}

func TestSession_ListTablesValidatesIdentifier(t *testing.T) {
	conn := &fakeConn{}
	s := New(testConfig(), &fakeDialer{conn: conn}, nil)
	require.NoError(t, s.Connect(context.Background()))

	_, err := s.ListTables(context.Background(), "ks; DROP TABLE users")
	require.Error(t, err)
	assert.Empty(t, conn.executed, "invalid identifier must not reach the wire")
}

func TestSession_ListKeyspaces(t *testing.T) {
	conn := &fakeConn{results: map[string]*Result{
		"SELECT keyspace_name FROM system_schema.keyspaces": {
			Columns: []Column{{Name: "keyspace_name", TypeName: "text"}},
			Rows:    [][]any{{"app"}, {"system"}},
		},
	}}
	s := New(testConfig(), &fakeDialer{conn: conn}, nil)
	require.NoError(t, s.Connect(context.Background()))

	names, err := s.ListKeyspaces(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"app", "system"}, names)
}

func TestSession_ListColumns(t *testing.T) {
	stmt := fmt.Sprintf(
		"SELECT column_name, type, kind, position, clustering_order FROM system_schema.columns WHERE keyspace_name = '%s' AND table_name = '%s'",
		"app", "users",
	)
	conn := &fakeConn{results: map[string]*Result{
		stmt: {
			Rows: [][]any{
				{"id", "uuid", "partition_key", int64(0), "none"},
				{"email", "text", "regular", int64(-1), "none"},
			},
		},
	}}
	s := New(testConfig(), &fakeDialer{conn: conn}, nil)
	require.NoError(t, s.Connect(context.Background()))

	cols, err := s.ListColumns(context.Background(), "app", "users")
	require.NoError(t, err)
	require.Len(t, cols, 2)
	assert.Equal(t, "id", cols[0].Name)
	assert.Equal(t, "uuid", cols[0].DataType)
}

func TestTest_ValidatesBeforeDialing(t *testing.T) {
	dialer := &fakeDialer{conn: &fakeConn{}}
	err := Test(context.Background(), config.ConnectionConfig{Name: "x"}, dialer)
	require.Error(t, err)
	assert.Zero(t, dialer.dials)
}

func TestTest_RunsLivenessAndCloses(t *testing.T) {
	conn := &fakeConn{}
	require.NoError(t, Test(context.Background(), testConfig(), &fakeDialer{conn: conn}))
	assert.True(t, conn.isClosed())
}

func TestSession_ConcurrentConnectReportsBusy(t *testing.T) {
	block := make(chan struct{})
	s := New(testConfig(), &fakeDialer{conn: &fakeConn{}, blockCh: block}, nil)

	done := make(chan error, 1)
	go func() { done <- s.Connect(context.Background()) }()
	require.Eventually(t, func() bool { return s.State() == StateConnecting },
		time.Second, time.Millisecond)

	err := s.Connect(context.Background())
	var cerr *ConnectError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, ReasonConnBusy, cerr.Reason)

	close(block)
	require.NoError(t, <-done)
	assert.Equal(t, StateConnected, s.State())
}
