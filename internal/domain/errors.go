package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrUpstreamTimeout marks an upstream call that exceeded its deadline.
	ErrUpstreamTimeout = errors.New("upstream request timed out")

	// ErrNoRivers is returned when river selection resolves nothing to sync.
	ErrNoRivers = errors.New("no rivers to sync")
)

// UpstreamError is a non-success HTTP response from the directory or
// observation service.
type UpstreamError struct {
	Service    string
	URL        string
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: %s returned status %d", e.Service, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s: %s returned status %d: %s", e.Service, e.URL, e.StatusCode, e.Body)
}

// Temporary reports whether retrying the request may succeed.
func (e *UpstreamError) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == 429
}

// ParseError is upstream data that could not be decoded or lacks required fields.
type ParseError struct {
	Source string
	Err    error
}

func (e *ParseError) Error() string { return fmt.Sprintf("parse %s: %v", e.Source, e.Err) }

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError is a failure while writing to the relational store.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string { return fmt.Sprintf("storage %s: %v", e.Op, e.Err) }

func (e *StorageError) Unwrap() error { return e.Err }

// StatusCode extracts the HTTP status from an upstream error chain, or 0.
func StatusCode(err error) int {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.StatusCode
	}
	return 0
}
