// Package store implements the local persistent record store: named
// collections of JSON records keyed by a primary field, with optional
// secondary indexes and a versioned, additive migration scheme.
//
// Two implementations share the Store interface: a SQL-backed store
// (sqlite or postgres, see sql.go) and an in-memory store (memory.go)
// used as the graceful-degradation fallback when the durable medium
// cannot be opened.
package store

import (
	"context"
	"errors"
	"fmt"
)

// Record is a schemaless JSON document. The collection's key field must be
// present and hold a string.
type Record = map[string]any

// IndexSpec declares a secondary index over a record field.
type IndexSpec struct {
	Name   string
	Field  string
	Unique bool
}

// CollectionSpec declares a named collection and its primary key field.
type CollectionSpec struct {
	Name     string
	KeyField string
	Indexes  []IndexSpec
}

// Migration is one additive schema step. Opening a store with a higher
// version than previously recorded applies all pending migrations in
// version order; collections and indexes are only ever created, never
// dropped or altered destructively.
type Migration struct {
	Version     int
	Collections []CollectionSpec
}

// ErrNotFound is returned by Get and GetByIndex when no record matches.
var ErrNotFound = errors.New("store: record not found")

// OpenError reports that the store could not be opened: the medium is
// unavailable, or a newer schema version is already recorded. Callers are
// expected to treat it as recoverable and fall back to an in-memory store.
type OpenError struct {
	Name string
	Err  error
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("store %q: open: %v", e.Name, e.Err)
}

func (e *OpenError) Unwrap() error { return e.Err }

// ConflictError reports an insert-only Add that collided with an existing
// primary key or unique index entry.
type ConflictError struct {
	Collection string
	Key        string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("store: conflict in collection %q for key %q", e.Collection, e.Key)
}

// Store is the record store surface consumed by the assessment engine.
//
// Every operation executes inside its own transaction: reads run in
// read-only transactions that may proceed concurrently, writes run in
// read-write transactions serialized per store. The store enforces this
// itself; callers never lock.
type Store interface {
	// Get returns the record with the given primary key, or ErrNotFound.
	Get(ctx context.Context, collection, key string) (Record, error)
	// GetAll returns every record in the collection, ordered by key.
	GetAll(ctx context.Context, collection string) ([]Record, error)
	// GetByIndex returns the first record whose indexed field equals
	// value, or ErrNotFound.
	GetByIndex(ctx context.Context, collection, index, value string) (Record, error)
	// Put inserts or replaces the record identified by its key field.
	Put(ctx context.Context, collection string, rec Record) error
	// Add inserts the record, failing with *ConflictError when the primary
	// key or a unique index entry already exists.
	Add(ctx context.Context, collection string, rec Record) error
	// Delete removes the record with the given primary key. Deleting an
	// absent key is not an error.
	Delete(ctx context.Context, collection, key string) error

	Close() error
}

// schema is the resolved collection set after applying migrations.
type schema map[string]*CollectionSpec

// buildSchema folds migrations up to and including targetVersion into the
// effective collection specs. Later migrations may add collections or
// append indexes to collections declared earlier.
func buildSchema(migrations []Migration, targetVersion int) (schema, error) {
	s := make(schema)
	for _, m := range migrations {
		if m.Version > targetVersion {
			continue
		}
		for _, c := range m.Collections {
			existing, ok := s[c.Name]
			if !ok {
				cp := c
				s[c.Name] = &cp
				continue
			}
			if existing.KeyField != c.KeyField {
				return nil, fmt.Errorf("store: migration %d changes key field of collection %q", m.Version, c.Name)
			}
			for _, idx := range c.Indexes {
				if !hasIndex(existing, idx.Name) {
					existing.Indexes = append(existing.Indexes, idx)
				}
			}
		}
	}
	return s, nil
}

func hasIndex(c *CollectionSpec, name string) bool {
	for _, idx := range c.Indexes {
		if idx.Name == name {
			return true
		}
	}
	return false
}

// recordKey extracts the primary key value from a record.
func recordKey(spec *CollectionSpec, rec Record) (string, error) {
	v, ok := rec[spec.KeyField]
	if !ok {
		return "", fmt.Errorf("store: record missing key field %q", spec.KeyField)
	}
	key, ok := v.(string)
	if !ok || key == "" {
		return "", fmt.Errorf("store: key field %q must be a non-empty string", spec.KeyField)
	}
	return key, nil
}

// indexValue extracts the value of an indexed field as a string. Absent or
// non-string fields are indexed by their fmt representation; nil stays nil
// so the row is excluded from lookups.
func indexValue(rec Record, field string) *string {
	v, ok := rec[field]
	if !ok || v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return &s
	}
	s := fmt.Sprint(v)
	return &s
}
