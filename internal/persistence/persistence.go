// Package persistence defines the pluggable token-cache storage contract
// and the backends that satisfy it. The blob is opaque: backends store and
// retrieve it atomically as a unit and never interpret its contents.
package persistence

import (
	"context"
	"fmt"
)

// Persistence is the storage contract for the serialized token cache.
//
// Load returns an empty blob on first run; "not found" is never an error.
// Save has atomic-replace semantics: a concurrent reader sees either the
// fully-old or the fully-new blob, never a partial write. Backends sharing
// one locator across processes serialize saves.
type Persistence interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, blob []byte) error
}

// CreationError indicates a backend could not be set up, for example a
// required service being unreachable. Callers select another backend.
type CreationError struct {
	Backend string
	Err     error
}

func (e *CreationError) Error() string {
	return fmt.Sprintf("creating %s persistence: %v", e.Backend, e.Err)
}

func (e *CreationError) Unwrap() error { return e.Err }

// ReadError indicates a load failed for a reason other than absent state.
type ReadError struct {
	Backend string
	Err     error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("loading cache from %s persistence: %v", e.Backend, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// WriteError indicates a save failed, for example on access-denied or
// storage-full conditions.
type WriteError struct {
	Backend string
	Err     error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("saving cache to %s persistence: %v", e.Backend, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }
