package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// MemStore is the in-memory fallback used when the durable medium cannot
// be opened. It honors the same schema and conflict semantics; reads take
// a shared lock, writes an exclusive one. Records are deep-copied on both
// paths so callers never alias store-owned state.
type MemStore struct {
	mu          sync.RWMutex
	name        string
	schema      schema
	collections map[string]map[string]Record
}

// NewMemory builds an in-memory store from the same migration list a
// durable store would be opened with.
func NewMemory(name string, version int, migrations []Migration) (*MemStore, error) {
	resolved, err := buildSchema(migrations, version)
	if err != nil {
		return nil, &OpenError{Name: name, Err: err}
	}
	collections := make(map[string]map[string]Record, len(resolved))
	for cname := range resolved {
		collections[cname] = make(map[string]Record)
	}
	return &MemStore{
		name:        name,
		schema:      resolved,
		collections: collections,
	}, nil
}

func (m *MemStore) spec(collection string) (*CollectionSpec, error) {
	spec, ok := m.schema[collection]
	if !ok {
		return nil, fmt.Errorf("store: unknown collection %q", collection)
	}
	return spec, nil
}

// Get returns the record with the given primary key, or ErrNotFound.
func (m *MemStore) Get(ctx context.Context, collection, key string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, err := m.spec(collection); err != nil {
		return nil, err
	}
	rec, ok := m.collections[collection][key]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneRecord(rec), nil
}

// GetAll returns every record in the collection, ordered by key.
func (m *MemStore) GetAll(ctx context.Context, collection string) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, err := m.spec(collection); err != nil {
		return nil, err
	}
	recs := m.collections[collection]
	keys := make([]string, 0, len(recs))
	for k := range recs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]Record, 0, len(keys))
	for _, k := range keys {
		out = append(out, cloneRecord(recs[k]))
	}
	return out, nil
}

// GetByIndex returns the first record whose indexed field equals value.
func (m *MemStore) GetByIndex(ctx context.Context, collection, index, value string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	spec, err := m.spec(collection)
	if err != nil {
		return nil, err
	}
	field, err := indexField(spec, collection, index)
	if err != nil {
		return nil, err
	}
	for _, rec := range m.collections[collection] {
		if v := indexValue(rec, field); v != nil && *v == value {
			return cloneRecord(rec), nil
		}
	}
	return nil, ErrNotFound
}

// Put inserts or replaces the record identified by its key field.
func (m *MemStore) Put(ctx context.Context, collection string, rec Record) error {
	return m.write(collection, rec, true)
}

// Add inserts the record, failing with *ConflictError on key or unique
// index collision.
func (m *MemStore) Add(ctx context.Context, collection string, rec Record) error {
	return m.write(collection, rec, false)
}

func (m *MemStore) write(collection string, rec Record, upsert bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	spec, err := m.spec(collection)
	if err != nil {
		return err
	}
	key, err := recordKey(spec, rec)
	if err != nil {
		return err
	}

	recs := m.collections[collection]
	if _, exists := recs[key]; exists && !upsert {
		return &ConflictError{Collection: collection, Key: key}
	}

	for _, idx := range spec.Indexes {
		if !idx.Unique {
			continue
		}
		val := indexValue(rec, idx.Field)
		if val == nil {
			continue
		}
		for other, existing := range recs {
			if other == key {
				continue
			}
			if v := indexValue(existing, idx.Field); v != nil && *v == *val {
				return &ConflictError{Collection: collection, Key: key}
			}
		}
	}

	recs[key] = cloneRecord(rec)
	return nil
}

// Delete removes the record with the given primary key.
func (m *MemStore) Delete(ctx context.Context, collection, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := m.spec(collection); err != nil {
		return err
	}
	delete(m.collections[collection], key)
	return nil
}

// Close is a no-op for the in-memory store.
func (m *MemStore) Close() error { return nil }

func indexField(spec *CollectionSpec, collection, index string) (string, error) {
	for _, idx := range spec.Indexes {
		if idx.Name == index {
			return idx.Field, nil
		}
	}
	return "", fmt.Errorf("store: unknown index %q on collection %q", index, collection)
}

// cloneRecord deep-copies the JSON-shaped value tree of a record.
func cloneRecord(rec Record) Record {
	return cloneValue(rec).(Record)
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[k] = cloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, val := range t {
			out[i] = cloneValue(val)
		}
		return out
	default:
		return v
	}
}
