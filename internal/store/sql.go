package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/rs/zerolog"
)

// SQLStore persists collections in a relational database. Each collection
// is a table holding the primary key and the record JSON, plus one
// extracted column per secondary index. Works against sqlite
// (modernc.org/sqlite) and postgres (pgx stdlib); both accept the $N
// placeholder syntax and ON CONFLICT upserts.
type SQLStore struct {
	db     *sql.DB
	name   string
	schema schema
	log    zerolog.Logger
}

var identPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// NewSQL opens (and if needed migrates) a named store on db.
//
// The recorded schema version is compared against the requested one:
// a lower request fails with *OpenError (a newer schema is already
// active), a higher request applies the pending migrations inside a
// single transaction before any operation proceeds.
func NewSQL(ctx context.Context, db *sql.DB, name string, version int, migrations []Migration, log zerolog.Logger) (*SQLStore, error) {
	if !identPattern.MatchString(name) {
		return nil, &OpenError{Name: name, Err: fmt.Errorf("invalid store name")}
	}

	resolved, err := buildSchema(migrations, version)
	if err != nil {
		return nil, &OpenError{Name: name, Err: err}
	}
	for cname, spec := range resolved {
		if !identPattern.MatchString(cname) || !identPattern.MatchString(spec.KeyField) {
			return nil, &OpenError{Name: name, Err: fmt.Errorf("invalid collection spec %q", cname)}
		}
		for _, idx := range spec.Indexes {
			if !identPattern.MatchString(idx.Name) {
				return nil, &OpenError{Name: name, Err: fmt.Errorf("invalid index name %q", idx.Name)}
			}
		}
	}

	s := &SQLStore{
		db:     db,
		name:   name,
		schema: resolved,
		log:    log.With().Str("component", "store").Str("store", name).Logger(),
	}

	if err := s.migrate(ctx, version, migrations); err != nil {
		return nil, &OpenError{Name: name, Err: err}
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context, version int, migrations []Migration) error {
	if _, err := s.db.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS store_meta (name TEXT PRIMARY KEY, version INTEGER NOT NULL)`); err != nil {
		return fmt.Errorf("create meta table: %w", err)
	}

	var current int
	err := s.db.QueryRowContext(ctx,
		`SELECT version FROM store_meta WHERE name = $1`, s.name).Scan(&current)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("read schema version: %w", err)
	}

	if version < current {
		return fmt.Errorf("schema version %d already active, refusing to open at %d", current, version)
	}
	if version == current {
		return nil
	}

	pending := make([]Migration, 0, len(migrations))
	for _, m := range migrations {
		if m.Version > current && m.Version <= version {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].Version < pending[j].Version })

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin migration tx: %w", err)
	}
	defer tx.Rollback()

	for _, m := range pending {
		for _, c := range m.Collections {
			if err := s.applyCollection(ctx, tx, c); err != nil {
				return fmt.Errorf("migration %d, collection %q: %w", m.Version, c.Name, err)
			}
		}
		s.log.Info().Int("version", m.Version).Msg("Applied store migration")
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO store_meta (name, version) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE SET version = excluded.version`,
		s.name, version); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}

	return tx.Commit()
}

// applyCollection creates the collection table and any declared index
// columns that are still missing. Adding an index to an existing
// collection backfills the extracted column from the stored documents.
func (s *SQLStore) applyCollection(ctx context.Context, tx *sql.Tx, c CollectionSpec) error {
	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %q (k TEXT PRIMARY KEY, doc TEXT NOT NULL)`, c.Name)); err != nil {
		return err
	}

	for _, idx := range c.Indexes {
		col := "idx_" + idx.Name
		added := true
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`ALTER TABLE %q ADD COLUMN %q TEXT`, c.Name, col)); err != nil {
			if !isDuplicateColumn(err) {
				return err
			}
			added = false
		}
		if added {
			if err := s.backfillIndex(ctx, tx, c, idx); err != nil {
				return err
			}
		}

		unique := ""
		if idx.Unique {
			unique = "UNIQUE "
		}
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`CREATE %sINDEX IF NOT EXISTS %q ON %q (%q)`,
			unique, c.Name+"_"+idx.Name, c.Name, col)); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) backfillIndex(ctx context.Context, tx *sql.Tx, c CollectionSpec, idx IndexSpec) error {
	rows, err := tx.QueryContext(ctx, fmt.Sprintf(`SELECT k, doc FROM %q`, c.Name))
	if err != nil {
		return err
	}
	type pair struct {
		key string
		val *string
	}
	var updates []pair
	for rows.Next() {
		var key, doc string
		if err := rows.Scan(&key, &doc); err != nil {
			rows.Close()
			return err
		}
		var rec Record
		if err := json.Unmarshal([]byte(doc), &rec); err != nil {
			rows.Close()
			return fmt.Errorf("corrupt document %q: %w", key, err)
		}
		updates = append(updates, pair{key, indexValue(rec, idx.Field)})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, u := range updates {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(
			`UPDATE %q SET %q = $1 WHERE k = $2`, c.Name, "idx_"+idx.Name), u.val, u.key); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLStore) spec(collection string) (*CollectionSpec, error) {
	spec, ok := s.schema[collection]
	if !ok {
		return nil, fmt.Errorf("store: unknown collection %q", collection)
	}
	return spec, nil
}

// Get returns the record with the given primary key, or ErrNotFound.
func (s *SQLStore) Get(ctx context.Context, collection, key string) (Record, error) {
	if _, err := s.spec(collection); err != nil {
		return nil, err
	}
	var doc string
	err := s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT doc FROM %q WHERE k = $1`, collection), key).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s/%s: %w", collection, key, err)
	}
	return decodeDoc(doc)
}

// GetAll returns every record in the collection, ordered by key.
func (s *SQLStore) GetAll(ctx context.Context, collection string) ([]Record, error) {
	if _, err := s.spec(collection); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT doc FROM %q ORDER BY k`, collection))
	if err != nil {
		return nil, fmt.Errorf("store: get all %s: %w", collection, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, err
		}
		rec, err := decodeDoc(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetByIndex returns the first record whose indexed field equals value.
func (s *SQLStore) GetByIndex(ctx context.Context, collection, index, value string) (Record, error) {
	spec, err := s.spec(collection)
	if err != nil {
		return nil, err
	}
	if !hasIndex(spec, index) {
		return nil, fmt.Errorf("store: unknown index %q on collection %q", index, collection)
	}
	var doc string
	err = s.db.QueryRowContext(ctx, fmt.Sprintf(
		`SELECT doc FROM %q WHERE %q = $1 ORDER BY k LIMIT 1`, collection, "idx_"+index), value).Scan(&doc)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: get by index %s/%s: %w", collection, index, err)
	}
	return decodeDoc(doc)
}

// Put inserts or replaces the record identified by its key field.
func (s *SQLStore) Put(ctx context.Context, collection string, rec Record) error {
	return s.write(ctx, collection, rec, true)
}

// Add inserts the record, failing with *ConflictError if the primary key
// or a unique index entry already exists.
func (s *SQLStore) Add(ctx context.Context, collection string, rec Record) error {
	return s.write(ctx, collection, rec, false)
}

func (s *SQLStore) write(ctx context.Context, collection string, rec Record, upsert bool) error {
	spec, err := s.spec(collection)
	if err != nil {
		return err
	}
	key, err := recordKey(spec, rec)
	if err != nil {
		return err
	}
	doc, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("store: encode record: %w", err)
	}

	cols := []string{"k", "doc"}
	args := []any{key, string(doc)}
	for _, idx := range spec.Indexes {
		cols = append(cols, "idx_"+idx.Name)
		args = append(args, indexValue(rec, idx.Field))
	}

	placeholders := make([]string, len(cols))
	quoted := make([]string, len(cols))
	for i, c := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
		quoted[i] = fmt.Sprintf("%q", c)
	}

	query := fmt.Sprintf(`INSERT INTO %q (%s) VALUES (%s)`,
		collection, strings.Join(quoted, ", "), strings.Join(placeholders, ", "))
	if upsert {
		sets := make([]string, 0, len(cols)-1)
		for _, c := range cols[1:] {
			sets = append(sets, fmt.Sprintf("%q = excluded.%q", c, c))
		}
		query += fmt.Sprintf(` ON CONFLICT (k) DO UPDATE SET %s`, strings.Join(sets, ", "))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin write tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{Collection: collection, Key: key}
		}
		return fmt.Errorf("store: write %s/%s: %w", collection, key, err)
	}
	return tx.Commit()
}

// Delete removes the record with the given primary key.
func (s *SQLStore) Delete(ctx context.Context, collection, key string) error {
	if _, err := s.spec(collection); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin write tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(
		`DELETE FROM %q WHERE k = $1`, collection), key); err != nil {
		return fmt.Errorf("store: delete %s/%s: %w", collection, key, err)
	}
	return tx.Commit()
}

// Close closes the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func decodeDoc(doc string) (Record, error) {
	var rec Record
	if err := json.Unmarshal([]byte(doc), &rec); err != nil {
		return nil, fmt.Errorf("store: corrupt document: %w", err)
	}
	return rec, nil
}

func isDuplicateColumn(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "already exists")
}

// isUniqueViolation matches the constraint error text of both supported
// drivers (sqlite: "UNIQUE constraint failed", postgres: "duplicate key
// value violates unique constraint").
func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
