package receipt

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidAmount is returned when an amount is unparseable or not strictly positive
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrNotFound is returned when a bill, vendor or stored file does not exist
	ErrNotFound = errors.New("not found")
)

// ValidationError collects every rule a record violates
type ValidationError struct {
	Problems []error
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Problems))
	for _, p := range e.Problems {
		msgs = append(msgs, p.Error())
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() []error {
	return e.Problems
}

// StorageError wraps a failure of the backing store
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// UploadError is returned when an upload violates the upload limits
type UploadError struct {
	Message string
}

func (e *UploadError) Error() string {
	return e.Message
}
