package session

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/gocql/gocql"

	"github.com/cqldesk/cqldesk/internal/config"
)

// livenessStatement is a cheap single-row query against the local node.
const livenessStatement = "SELECT release_version FROM system.local"

// GocqlDialer dials clusters over the native protocol.
type GocqlDialer struct{}

// DialContext builds a single-host cluster configuration and creates a
// session. gocql has no context-aware constructor, so the dial runs in
// a goroutine and the result is discarded when ctx expires first.
func (GocqlDialer) DialContext(ctx context.Context, cfg config.ConnectionConfig) (Conn, error) {
	cluster := gocql.NewCluster(cfg.Host)
	cluster.Port = cfg.Port
	cluster.ConnectTimeout = cfg.ConnectTimeout()
	cluster.Timeout = cfg.RequestTimeout()
	cluster.Consistency = gocql.LocalQuorum
	cluster.DisableInitialHostLookup = true
	if cfg.Keyspace != "" {
		cluster.Keyspace = cfg.Keyspace
	}
	if cfg.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: cfg.Username,
			Password: cfg.Password,
		}
	}
	if cfg.TLS {
		cluster.SslOpts = &gocql.SslOptions{}
	}

	type dialResult struct {
		session *gocql.Session
		err     error
	}
	ch := make(chan dialResult, 1)
	go func() {
		session, err := cluster.CreateSession()
		ch <- dialResult{session: session, err: err}
	}()

	select {
	case <-ctx.Done():
		go func() {
			if res := <-ch; res.session != nil {
				res.session.Close()
			}
		}()
		return nil, &ConnectError{Reason: ReasonConnTimeout, Err: ctx.Err()}
	case res := <-ch:
		if res.err != nil {
			return nil, classifyDialError(res.err)
		}
		return &gocqlConn{session: res.session}, nil
	}
}

// classifyDialError maps driver connect failures onto connect reasons.
func classifyDialError(err error) *ConnectError {
	msg := strings.ToLower(err.Error())
	switch {
	case errors.Is(err, context.DeadlineExceeded) || strings.Contains(msg, "timeout") || strings.Contains(msg, "timed out"):
		return &ConnectError{Reason: ReasonConnTimeout, Err: err}
	case strings.Contains(msg, "authentication") || strings.Contains(msg, "credentials") || strings.Contains(msg, "password"):
		return &ConnectError{Reason: ReasonAuth, Err: err}
	case strings.Contains(msg, "tls") || strings.Contains(msg, "x509") || strings.Contains(msg, "certificate"):
		return &ConnectError{Reason: ReasonTLS, Err: err}
	default:
		return &ConnectError{Reason: ReasonUnreachable, Err: err}
	}
}

type gocqlConn struct {
	session *gocql.Session
}

// Execute runs one statement and materializes exactly one page. The
// page state of the iterator is returned opaquely so the caller can
// resume where this page ended.
func (c *gocqlConn) Execute(ctx context.Context, stmt string, pageSize int, pageState []byte) (*Result, error) {
	start := time.Now()

	// PageState also turns off the driver's auto paging, so the
	// iterator covers exactly one page even when the server returns a
	// short frame. A nil state starts from the first page.
	q := c.session.Query(stmt).WithContext(ctx).PageSize(pageSize).PageState(pageState)

	iter := q.Iter()
	cols := iter.Columns()

	result := &Result{
		Columns: make([]Column, len(cols)),
	}
	for i, col := range cols {
		result.Columns[i] = Column{Name: col.Name, TypeName: col.TypeInfo.Type().String()}
	}

	rowData, err := iter.RowData()
	if err != nil {
		iter.Close()
		return nil, classifyQueryError(err)
	}

	// Scan into pointers-to-pointers so a NULL cell comes back as a
	// nil inner pointer instead of the type's zero value.
	for {
		dest := make([]any, len(rowData.Values))
		for i, v := range rowData.Values {
			dest[i] = reflect.New(reflect.TypeOf(v)).Interface()
		}
		if !iter.Scan(dest...) {
			break
		}
		row := make([]any, len(dest))
		for i, d := range dest {
			inner := reflect.ValueOf(d).Elem()
			if inner.IsNil() {
				row[i] = nil
				continue
			}
			row[i] = Convert(inner.Elem().Interface())
		}
		result.Rows = append(result.Rows, row)
	}

	result.PageState = iter.PageState()
	if err := iter.Close(); err != nil {
		return nil, classifyQueryError(err)
	}

	result.RowCount = len(result.Rows)
	result.Duration = time.Since(start)
	return result, nil
}

// Liveness queries the local node's release version.
func (c *gocqlConn) Liveness(ctx context.Context) error {
	var version string
	if err := c.session.Query(livenessStatement).WithContext(ctx).Scan(&version); err != nil {
		return classifyQueryError(err)
	}
	if version == "" {
		return &QueryError{Reason: ReasonConnDropped, Err: fmt.Errorf("empty release_version from %s", livenessStatement)}
	}
	return nil
}

func (c *gocqlConn) Close() {
	c.session.Close()
}

// classifyQueryError maps driver execution failures onto query reasons.
func classifyQueryError(err error) *QueryError {
	var reqErr gocql.RequestError
	if errors.As(err, &reqErr) {
		switch reqErr.Code() {
		case gocql.ErrCodeSyntax, gocql.ErrCodeInvalid, gocql.ErrCodeUnauthorized:
			return &QueryError{Reason: ReasonBadQuery, Err: err}
		case gocql.ErrCodeReadTimeout, gocql.ErrCodeWriteTimeout:
			return &QueryError{Reason: ReasonQueryTimeout, Err: err}
		}
	}
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, gocql.ErrTimeoutNoResponse):
		return &QueryError{Reason: ReasonQueryTimeout, Err: err}
	case errors.Is(err, gocql.ErrNoConnections) || errors.Is(err, gocql.ErrConnectionClosed):
		return &QueryError{Reason: ReasonConnDropped, Err: err}
	default:
		return &QueryError{Reason: ReasonBadQuery, Err: err}
	}
}
