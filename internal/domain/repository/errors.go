package repository

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrUnsupported means the adapter does not implement an operation;
	// the router treats it as a soft failure and moves on without touching
	// the adapter's health counters.
	ErrUnsupported = errors.New("source: operation not supported")

	// ErrExhausted means every ranked adapter failed or had an open circuit.
	ErrExhausted = errors.New("source: all adapters exhausted")

	// ErrInsufficientHistory excludes a symbol from classification for the
	// current run; the run itself continues.
	ErrInsufficientHistory = errors.New("indicator: insufficient history")

	// ErrPersistence marks a failed final write. The run result is still
	// returned to callers.
	ErrPersistence = errors.New("persistence failure")

	// ErrNotFound is returned by record stores for missing keys.
	ErrNotFound = errors.New("record not found")
)

// SourceError is a transient per-adapter failure; it triggers failover.
type SourceError struct {
	SourceID string
	Op       string
	Err      error
}

func (e *SourceError) Error() string {
	return fmt.Sprintf("source %s: %s: %v", e.SourceID, e.Op, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// ExhaustedError carries the last underlying error per adapter for
// diagnostics when the whole failover chain came up empty.
type ExhaustedError struct {
	Op   string
	Last map[string]error
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Last))
	for id, err := range e.Last {
		parts = append(parts, fmt.Sprintf("%s: %v", id, err))
	}
	return fmt.Sprintf("%s: %v [%s]", e.Op, ErrExhausted, strings.Join(parts, "; "))
}

func (e *ExhaustedError) Unwrap() error { return ErrExhausted }
