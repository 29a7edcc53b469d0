package models

import (
	"errors"
	"fmt"
	"strings"
)

// FetchKind classifies fetch failures.
type FetchKind string

const (
	FetchTransient FetchKind = "transient"
	FetchPermanent FetchKind = "permanent"
)

// FetchError is returned by source adapters.
type FetchError struct {
	Kind       FetchKind
	Provider   Provider
	SeriesID   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s/%s (%s)", e.Provider, e.SeriesID, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" status %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// IsTransient reports whether err wraps a transient FetchError.
func IsTransient(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == FetchTransient
}

// SchemaMismatchError means a required source column is absent.
type SchemaMismatchError struct {
	SeriesID string
	Missing  []string
	Reason   string
}

func (e *SchemaMismatchError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("schema mismatch for %s: missing columns %s", e.SeriesID, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("schema mismatch for %s: %s", e.SeriesID, e.Reason)
}

// DateParseError means a date cell could not be parsed.
type DateParseError struct {
	SeriesID string
	Row      int
	Value    string
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("unparseable date %q in %s at row %d", e.Value, e.SeriesID, e.Row)
}

// StorageWriteError wraps artifact persistence failures.
type StorageWriteError struct {
	Path string
	Err  error
}

func (e *StorageWriteError) Error() string {
	return fmt.Sprintf("write artifact %s: %v", e.Path, e.Err)
}

func (e *StorageWriteError) Unwrap() error { return e.Err }

// CatalogWriteError wraps catalog persistence failures.
type CatalogWriteError struct {
	Path string
	Err  error
}

func (e *CatalogWriteError) Error() string {
	return fmt.Sprintf("write catalog %s: %v", e.Path, e.Err)
}

func (e *CatalogWriteError) Unwrap() error { return e.Err }

// StageError attaches the failing pipeline stage to an error.
type StageError struct {
	Stage PipelineStage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", strings.ToLower(string(e.Stage)), e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// FailedStage extracts the stage from a StageError chain, or "" when absent.
func FailedStage(err error) PipelineStage {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage
	}
	return ""
}
