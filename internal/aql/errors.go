package aql

import (
	"errors"
	"fmt"
)

// CompileError represents a construct the compiler cannot translate.
//
// Compile errors are raised at the point of encounter and abort the whole
// compilation; no partial query is ever returned. Compilation is pure, so
// the same input fails the same way until the pipeline changes.
type CompileError struct {
	// Code identifies the error category.
	Code ErrorCode

	// Node describes the offending input or term node.
	Node string

	// Message is a human-readable description.
	Message string
}

// ErrorCode categorizes compile errors.
type ErrorCode string

const (
	// ErrCodeUnhandledConstruct indicates a stage, method or operator kind
	// with no translation rule.
	ErrCodeUnhandledConstruct ErrorCode = "UNHANDLED_CONSTRUCT"

	// ErrCodeUnconvertibleTerm indicates a sub-expression that yields no
	// term in a context that requires one.
	ErrCodeUnconvertibleTerm ErrorCode = "UNCONVERTIBLE_TERM"
)

// Sentinels for errors.Is matching against a CompileError's code.
var (
	ErrUnhandledConstruct = errors.New("unhandled construct")
	ErrUnconvertibleTerm  = errors.New("unconvertible term")
)

// Error implements the error interface.
func (e *CompileError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("%s: %s: %s", e.Code, e.Message, e.Node)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches the sentinel for the error's code.
func (e *CompileError) Is(target error) bool {
	switch target {
	case ErrUnhandledConstruct:
		return e.Code == ErrCodeUnhandledConstruct
	case ErrUnconvertibleTerm:
		return e.Code == ErrCodeUnconvertibleTerm
	}
	return false
}

// Unhandled builds an ErrCodeUnhandledConstruct error.
func Unhandled(node, format string, args ...any) *CompileError {
	return &CompileError{Code: ErrCodeUnhandledConstruct, Node: node, Message: fmt.Sprintf(format, args...)}
}

// Unconvertible builds an ErrCodeUnconvertibleTerm error.
func Unconvertible(node, format string, args ...any) *CompileError {
	return &CompileError{Code: ErrCodeUnconvertibleTerm, Node: node, Message: fmt.Sprintf(format, args...)}
}

// IsUnhandled reports whether err is an unhandled construct error.
// Uses errors.Is to handle wrapped errors.
func IsUnhandled(err error) bool {
	return errors.Is(err, ErrUnhandledConstruct)
}

// IsUnconvertible reports whether err is an unconvertible term error.
func IsUnconvertible(err error) bool {
	return errors.Is(err, ErrUnconvertibleTerm)
}
