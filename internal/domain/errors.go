package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound indicates the requested entity was not found.
	ErrNotFound = errors.New("not found")
	// ErrNotImplemented is returned when an operation depends on an extension
	// point that has no usable implementation, e.g. item creation.
	ErrNotImplemented = errors.New("not implemented")
	// ErrConfiguration indicates the active options cannot serve the requested mode.
	ErrConfiguration = errors.New("invalid configuration")
	// ErrEmptyInput is returned by folds that received nothing to fold.
	ErrEmptyInput = errors.New("empty input")
	// ErrInvalidInput marks malformed caller input.
	ErrInvalidInput = errors.New("invalid input")
)

// StorageError wraps a persistence failure with the operation that caused it.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage: %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}
