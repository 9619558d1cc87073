// Package pipeline runs queries end to end: variable substitution,
// execution on the active connection, history recording and
// pagination.
package pipeline

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/cqldesk/cqldesk/internal/history"
	"github.com/cqldesk/cqldesk/internal/notifier"
	"github.com/cqldesk/cqldesk/internal/session"
	"github.com/cqldesk/cqldesk/pkg/cql"
)

// ConnectionSource resolves the active session and the variable map.
// *conn.Manager is the live implementation.
type ConnectionSource interface {
	Active() (*session.Session, error)
	Variables() map[string]string
}

// Request is one query to run. PageState continues a previous
// response's pagination; nil starts from the first page.
type Request struct {
	Query     string
	PageState []byte
	Overrides map[string]string
}

// Response carries the result page together with the statement that
// actually ran after substitution.
type Response struct {
	Result    *session.Result
	Statement string
}

// Pipeline wires the source, the history store and the notifier. The
// history store and notifier are optional.
type Pipeline struct {
	source   ConnectionSource
	history  *history.Store
	notifier *notifier.Notifier
	logger   *slog.Logger
}

// New creates a pipeline. A nil logger discards logs.
func New(source ConnectionSource, hist *history.Store, n *notifier.Notifier, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Pipeline{source: source, history: hist, notifier: n, logger: logger}
}

// Run substitutes variables, executes on the active connection and
// records the outcome. The recorded query is the pre-substitution text
// so variable values never land in history. Substitution failures are
// returned without touching the wire or the history.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Response, error) {
	vars := p.source.Variables()
	if vars == nil {
		vars = make(map[string]string, len(req.Overrides))
	}
	for name, value := range req.Overrides {
		vars[name] = value
	}

	stmt, err := cql.Substitute(req.Query, vars)
	if err != nil {
		return nil, err
	}

	sess, err := p.source.Active()
	if err != nil {
		return nil, err
	}

	start := time.Now()
	res, execErr := sess.Execute(ctx, stmt, req.PageState)
	elapsed := time.Since(start)

	p.record(sess, req.Query, res, execErr, elapsed)

	if execErr != nil {
		return nil, execErr
	}
	p.logger.Debug("query executed", "rows", res.RowCount, "duration", res.Duration)
	return &Response{Result: res, Statement: stmt}, nil
}

// record appends the execution to history. Recording failures are
// logged, not surfaced; a broken history file must not fail queries.
func (p *Pipeline) record(sess *session.Session, query string, res *session.Result, execErr error, elapsed time.Duration) {
	if p.history == nil {
		return
	}

	entry := history.Entry{
		ConnectionID: sess.Config().ID,
		Query:        query,
		Status:       history.StatusOK,
		DurationMS:   elapsed.Milliseconds(),
	}
	if execErr != nil {
		entry.Status = history.StatusError
		entry.Error = execErr.Error()
	} else {
		entry.RowCount = res.RowCount
	}

	if _, err := p.history.Append(entry); err != nil {
		p.logger.Warn("failed to record history entry", "error", err)
		return
	}
	if p.notifier != nil {
		p.notifier.Broadcast(notifier.EventHistory)
	}
}
