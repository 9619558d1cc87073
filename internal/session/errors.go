package session

import "fmt"

// ConnectReason categorizes why a connection attempt failed.
type ConnectReason string

// Connection failure categories, surfaced separately so the UI can tell
// "host unreachable" from "authentication rejected".
const (
	ReasonUnreachable ConnectReason = "host unreachable"
	ReasonAuth        ConnectReason = "authentication rejected"
	ReasonTLS         ConnectReason = "TLS handshake failed"
	ReasonConnTimeout ConnectReason = "connection timed out"
	ReasonConnBusy    ConnectReason = "connect already in progress"
)

// ConnectError reports a failed connection attempt with a category and
// the underlying detail.
type ConnectError struct {
	Reason ConnectReason
	Err    error
}

func (e *ConnectError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *ConnectError) Unwrap() error { return e.Err }

// QueryReason categorizes why a query failed.
type QueryReason string

// Query failure categories.
const (
	ReasonBadQuery     QueryReason = "query rejected by server"
	ReasonQueryTimeout QueryReason = "query timed out"
	ReasonConnDropped  QueryReason = "connection dropped"
)

// QueryError reports a failed execution with a category and detail.
type QueryError struct {
	Reason QueryReason
	Err    error
}

func (e *QueryError) Error() string {
	if e.Err == nil {
		return string(e.Reason)
	}
	return fmt.Sprintf("%s: %v", e.Reason, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }
