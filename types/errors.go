package types

import (
	"errors"
	"fmt"
)

var (
	ErrConfiguration = errors.New("invalid configuration")
	ErrEmbedding     = errors.New("embedding failed")
	ErrIndexConfig   = errors.New("vector index configuration mismatch")
	ErrIndexWrite    = errors.New("vector index write failed")
	ErrIndexQuery    = errors.New("vector index query failed")
	ErrQueryFailed   = errors.New("query failed")
	ErrHistoryWrite  = errors.New("history write failed")
)

// opError is the shared shape of the typed errors below: the operation that
// failed, the sentinel it matches and the underlying cause.
type opError struct {
	Op       string
	Err      error
	sentinel error
}

func (e *opError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.sentinel)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.sentinel, e.Err)
}

func (e *opError) Unwrap() error { return e.Err }

func (e *opError) Is(target error) bool { return target == e.sentinel }

type ConfigurationError struct{ opError }

func NewConfigurationError(op string, err error) *ConfigurationError {
	return &ConfigurationError{opError{Op: op, Err: err, sentinel: ErrConfiguration}}
}

type EmbeddingError struct{ opError }

func NewEmbeddingError(op string, err error) *EmbeddingError {
	return &EmbeddingError{opError{Op: op, Err: err, sentinel: ErrEmbedding}}
}

type IndexConfigError struct{ opError }

func NewIndexConfigError(op string, err error) *IndexConfigError {
	return &IndexConfigError{opError{Op: op, Err: err, sentinel: ErrIndexConfig}}
}

type IndexWriteError struct{ opError }

func NewIndexWriteError(op string, err error) *IndexWriteError {
	return &IndexWriteError{opError{Op: op, Err: err, sentinel: ErrIndexWrite}}
}

type IndexQueryError struct{ opError }

func NewIndexQueryError(op string, err error) *IndexQueryError {
	return &IndexQueryError{opError{Op: op, Err: err, sentinel: ErrIndexQuery}}
}

// QueryError is returned by the query engine for any failure before the
// reply exists.
type QueryError struct{ opError }

func NewQueryError(op string, err error) *QueryError {
	return &QueryError{opError{Op: op, Err: err, sentinel: ErrQueryFailed}}
}

// HistoryWriteError is logged by the query engine, never returned to a chat
// client.
type HistoryWriteError struct {
	opError
	SessionID string
}

func NewHistoryWriteError(sessionID string, err error) *HistoryWriteError {
	return &HistoryWriteError{opError: opError{Op: "history append", Err: err, sentinel: ErrHistoryWrite}, SessionID: sessionID}
}
