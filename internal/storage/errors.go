package storage

import (
	"errors"
	"fmt"
)

// Storage error types for categorizing storage failures.
var (
	// ErrConnectionFailed indicates a failure to connect to the database.
	ErrConnectionFailed = errors.New("storage: connection failed")

	// ErrQueryFailed indicates a query execution failure.
	ErrQueryFailed = errors.New("storage: query failed")

	// ErrBatchInsertFailed indicates a batch insert failure.
	ErrBatchInsertFailed = errors.New("storage: batch insert failed")

	// ErrWriterClosed indicates a write after Close.
	ErrWriterClosed = errors.New("storage: writer closed")
)

// StorageError wraps storage errors with additional context.
type StorageError struct {
	Op      string // Operation that failed (e.g., "Insert", "Migrate", "Ping")
	Table   string // Table involved, if applicable
	Err     error  // Underlying error
	Retries int    // Number of retries attempted, if applicable
}

// Error returns the error message.
func (e *StorageError) Error() string {
	if e.Table != "" {
		return fmt.Sprintf("storage.%s(%s): %v", e.Op, e.Table, e.Err)
	}
	return fmt.Sprintf("storage.%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *StorageError) Unwrap() error {
	return e.Err
}

// IsConnectionError checks if the error is a connection error.
func IsConnectionError(err error) bool {
	return errors.Is(err, ErrConnectionFailed)
}

// IsQueryError checks if the error is a query error.
func IsQueryError(err error) bool {
	return errors.Is(err, ErrQueryFailed)
}

// WrapConnectionError wraps an error as a connection error.
func WrapConnectionError(op string, err error) error {
	return &StorageError{
		Op:  op,
		Err: fmt.Errorf("%w: %v", ErrConnectionFailed, err),
	}
}

// WrapQueryError wraps an error as a query error.
func WrapQueryError(op, table string, err error) error {
	return &StorageError{
		Op:    op,
		Table: table,
		Err:   fmt.Errorf("%w: %v", ErrQueryFailed, err),
	}
}

// WrapBatchError wraps a failed batch insert with its retry count.
func WrapBatchError(table string, err error, retries int) error {
	return &StorageError{
		Op:      "InsertBatch",
		Table:   table,
		Err:     fmt.Errorf("%w: %w", ErrBatchInsertFailed, err),
		Retries: retries,
	}
}
