package query

import (
	"errors"
	"net/http"
	"strings"
)

// QueryError is a store failure the client can act on, with the HTTP status
// it maps to.
type QueryError struct {
	msg    string
	status int
	err    error
}

func NewQueryError(status int, msg string) *QueryError {
	return &QueryError{msg: msg, status: status}
}

func (e QueryError) Error() string { return e.msg }
func (e QueryError) Status() int   { return e.status }
func (e QueryError) Unwrap() error { return e.err }

// AsQueryError reports whether err is (or wraps) a QueryError.
func AsQueryError(err error) (*QueryError, bool) {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe, true
	}
	return nil, false
}

// storeError turns constraint violations reported by the driver into
// QueryErrors. Both drivers use SQLite's own messages.
func storeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return &QueryError{msg: "Primary key already exists", status: http.StatusConflict, err: err}
	case strings.Contains(msg, "NOT NULL constraint failed"):
		return &QueryError{msg: "Value required", status: http.StatusBadRequest, err: err}
	case strings.Contains(msg, "no such table"):
		return &QueryError{msg: "Table not found", status: http.StatusNotFound, err: err}
	}
	return err
}
