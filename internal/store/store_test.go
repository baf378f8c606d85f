package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	_ "modernc.org/sqlite"
)

func testMigrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Collections: []CollectionSpec{
				{
					Name:     "profiles",
					KeyField: "id",
					Indexes: []IndexSpec{
						{Name: "email", Field: "email", Unique: true},
					},
				},
			},
		},
		{
			Version: 2,
			Collections: []CollectionSpec{
				{
					Name:     "profiles",
					KeyField: "id",
					Indexes: []IndexSpec{
						{Name: "team", Field: "team"},
					},
				},
				{Name: "notes", KeyField: "id"},
			},
		},
	}
}

func openTestDB(t *testing.T, path string) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func profile(id, email, team string) Record {
	return Record{"id": id, "email": email, "team": team}
}

// Both implementations must satisfy the same contract; run the shared
// suite against each.
func TestStoreContract(t *testing.T) {
	impls := []struct {
		name string
		open func(t *testing.T) Store
	}{
		{
			name: "memory",
			open: func(t *testing.T) Store {
				st, err := NewMemory("test", 2, testMigrations())
				if err != nil {
					t.Fatalf("open memory store: %v", err)
				}
				return st
			},
		},
		{
			name: "sqlite",
			open: func(t *testing.T) Store {
				db := openTestDB(t, filepath.Join(t.TempDir(), "store.db"))
				st, err := NewSQL(context.Background(), db, "test", 2, testMigrations(), zerolog.Nop())
				if err != nil {
					t.Fatalf("open sql store: %v", err)
				}
				return st
			},
		},
	}

	for _, impl := range impls {
		t.Run(impl.name, func(t *testing.T) {
			ctx := context.Background()

			t.Run("get and put", func(t *testing.T) {
				st := impl.open(t)

				if _, err := st.Get(ctx, "profiles", "u1"); !errors.Is(err, ErrNotFound) {
					t.Errorf("absent key: err = %v, want ErrNotFound", err)
				}

				if err := st.Put(ctx, "profiles", profile("u1", "ana@example.com", "core")); err != nil {
					t.Fatalf("put: %v", err)
				}
				rec, err := st.Get(ctx, "profiles", "u1")
				if err != nil {
					t.Fatalf("get: %v", err)
				}
				if rec["email"] != "ana@example.com" {
					t.Errorf("email = %v, want ana@example.com", rec["email"])
				}

				// Put replaces the whole record.
				if err := st.Put(ctx, "profiles", profile("u1", "ana@other.com", "infra")); err != nil {
					t.Fatalf("upsert: %v", err)
				}
				rec, err = st.Get(ctx, "profiles", "u1")
				if err != nil {
					t.Fatalf("get after upsert: %v", err)
				}
				if rec["email"] != "ana@other.com" || rec["team"] != "infra" {
					t.Errorf("record after upsert = %v", rec)
				}
			})

			t.Run("add conflicts", func(t *testing.T) {
				st := impl.open(t)

				if err := st.Add(ctx, "profiles", profile("u1", "ana@example.com", "core")); err != nil {
					t.Fatalf("add: %v", err)
				}

				var conflict *ConflictError
				err := st.Add(ctx, "profiles", profile("u1", "someone@else.com", "core"))
				if !errors.As(err, &conflict) {
					t.Fatalf("duplicate key: err = %v, want *ConflictError", err)
				}
				if conflict.Collection != "profiles" || conflict.Key != "u1" {
					t.Errorf("conflict = %v", conflict)
				}

				// A unique index collision is a conflict too.
				err = st.Add(ctx, "profiles", profile("u2", "ana@example.com", "core"))
				if !errors.As(err, &conflict) {
					t.Errorf("duplicate email: err = %v, want *ConflictError", err)
				}

				// Put past a unique entry on the same key is fine.
				if err := st.Put(ctx, "profiles", profile("u1", "ana@example.com", "infra")); err != nil {
					t.Errorf("put same key: %v", err)
				}
			})

			t.Run("get by index", func(t *testing.T) {
				st := impl.open(t)

				if err := st.Put(ctx, "profiles", profile("u1", "ana@example.com", "core")); err != nil {
					t.Fatalf("put: %v", err)
				}
				if err := st.Put(ctx, "profiles", profile("u2", "bo@example.com", "infra")); err != nil {
					t.Fatalf("put: %v", err)
				}

				rec, err := st.GetByIndex(ctx, "profiles", "team", "infra")
				if err != nil {
					t.Fatalf("get by index: %v", err)
				}
				if rec["id"] != "u2" {
					t.Errorf("id = %v, want u2", rec["id"])
				}

				if _, err := st.GetByIndex(ctx, "profiles", "team", "nobody"); !errors.Is(err, ErrNotFound) {
					t.Errorf("no match: err = %v, want ErrNotFound", err)
				}
				if _, err := st.GetByIndex(ctx, "profiles", "nope", "x"); err == nil {
					t.Error("unknown index accepted")
				}
			})

			t.Run("get all", func(t *testing.T) {
				st := impl.open(t)

				recs, err := st.GetAll(ctx, "profiles")
				if err != nil {
					t.Fatalf("get all empty: %v", err)
				}
				if len(recs) != 0 {
					t.Errorf("got %d records, want 0", len(recs))
				}

				// Inserted out of key order on purpose.
				for _, p := range []Record{
					profile("u2", "bo@example.com", "infra"),
					profile("u3", "cy@example.com", "core"),
					profile("u1", "ana@example.com", "core"),
				} {
					if err := st.Put(ctx, "profiles", p); err != nil {
						t.Fatalf("put: %v", err)
					}
				}
				recs, err = st.GetAll(ctx, "profiles")
				if err != nil {
					t.Fatalf("get all: %v", err)
				}
				if len(recs) != 3 {
					t.Fatalf("got %d records, want 3", len(recs))
				}
				for i, want := range []string{"u1", "u2", "u3"} {
					if got := recs[i]["id"]; got != want {
						t.Errorf("record %d key = %v, want %s", i, got, want)
					}
				}
			})

			t.Run("delete", func(t *testing.T) {
				st := impl.open(t)

				// Deleting an absent key is not an error.
				if err := st.Delete(ctx, "profiles", "ghost"); err != nil {
					t.Errorf("delete absent: %v", err)
				}

				if err := st.Put(ctx, "profiles", profile("u1", "ana@example.com", "core")); err != nil {
					t.Fatalf("put: %v", err)
				}
				if err := st.Delete(ctx, "profiles", "u1"); err != nil {
					t.Fatalf("delete: %v", err)
				}
				if _, err := st.Get(ctx, "profiles", "u1"); !errors.Is(err, ErrNotFound) {
					t.Errorf("after delete: err = %v, want ErrNotFound", err)
				}
			})

			t.Run("invalid records", func(t *testing.T) {
				st := impl.open(t)

				if err := st.Put(ctx, "profiles", Record{"email": "nokey@example.com"}); err == nil {
					t.Error("record without key field accepted")
				}
				if err := st.Put(ctx, "profiles", Record{"id": 7}); err == nil {
					t.Error("non-string key accepted")
				}
				if err := st.Put(ctx, "nothing", profile("u1", "a@b.c", "core")); err == nil {
					t.Error("unknown collection accepted")
				}
			})
		})
	}
}

func TestSQLVersioning(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.db")

	// Open at v1 and store a record that predates the team index.
	db := openTestDB(t, path)
	st, err := NewSQL(ctx, db, "test", 1, testMigrations(), zerolog.Nop())
	if err != nil {
		t.Fatalf("open v1: %v", err)
	}
	if err := st.Put(ctx, "profiles", profile("u1", "ana@example.com", "core")); err != nil {
		t.Fatalf("put: %v", err)
	}
	// v2 collections do not exist yet.
	if _, err := st.GetAll(ctx, "notes"); err == nil {
		t.Error("notes collection visible at v1")
	}
	if _, err := st.GetByIndex(ctx, "profiles", "team", "core"); err == nil {
		t.Error("team index visible at v1")
	}

	// Reopen at v2: the pending migration adds the notes collection and
	// backfills the team index from the stored documents.
	db2 := openTestDB(t, path)
	st2, err := NewSQL(ctx, db2, "test", 2, testMigrations(), zerolog.Nop())
	if err != nil {
		t.Fatalf("open v2: %v", err)
	}
	rec, err := st2.GetByIndex(ctx, "profiles", "team", "core")
	if err != nil {
		t.Fatalf("backfilled index lookup: %v", err)
	}
	if rec["id"] != "u1" {
		t.Errorf("id = %v, want u1", rec["id"])
	}
	if err := st2.Put(ctx, "notes", Record{"id": "n1", "body": "hello"}); err != nil {
		t.Fatalf("put into new collection: %v", err)
	}

	// Reopening at the recorded version is a no-op; the data survives.
	db3 := openTestDB(t, path)
	st3, err := NewSQL(ctx, db3, "test", 2, testMigrations(), zerolog.Nop())
	if err != nil {
		t.Fatalf("reopen v2: %v", err)
	}
	if _, err := st3.Get(ctx, "profiles", "u1"); err != nil {
		t.Errorf("record lost across reopen: %v", err)
	}

	// A request below the recorded version must refuse to open.
	db4 := openTestDB(t, path)
	_, err = NewSQL(ctx, db4, "test", 1, testMigrations(), zerolog.Nop())
	var openErr *OpenError
	if !errors.As(err, &openErr) {
		t.Fatalf("downgrade: err = %v, want *OpenError", err)
	}

	// Stores on the same database are versioned independently by name.
	db5 := openTestDB(t, path)
	if _, err := NewSQL(ctx, db5, "other", 1, testMigrations(), zerolog.Nop()); err != nil {
		t.Errorf("sibling store at v1: %v", err)
	}
}

func TestSQLRejectsInvalidIdentifiers(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t, filepath.Join(t.TempDir(), "store.db"))

	var openErr *OpenError
	if _, err := NewSQL(ctx, db, "Bad Name", 1, testMigrations(), zerolog.Nop()); !errors.As(err, &openErr) {
		t.Errorf("store name: err = %v, want *OpenError", err)
	}

	bad := []Migration{{Version: 1, Collections: []CollectionSpec{{Name: "x; DROP TABLE y", KeyField: "id"}}}}
	if _, err := NewSQL(ctx, db, "test", 1, bad, zerolog.Nop()); !errors.As(err, &openErr) {
		t.Errorf("collection name: err = %v, want *OpenError", err)
	}
}

func TestMemoryIsolation(t *testing.T) {
	ctx := context.Background()
	st, err := NewMemory("test", 2, testMigrations())
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	orig := Record{"id": "u1", "email": "ana@example.com", "team": "core", "tags": []any{"a"}}
	if err := st.Put(ctx, "profiles", orig); err != nil {
		t.Fatalf("put: %v", err)
	}

	// Mutating the caller's record after Put must not affect the store.
	orig["email"] = "changed@example.com"
	rec, err := st.Get(ctx, "profiles", "u1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec["email"] != "ana@example.com" {
		t.Error("store aliased the caller's record")
	}

	// Mutating a returned record must not affect the store either.
	rec["team"] = "infra"
	rec["tags"].([]any)[0] = "b"
	again, _ := st.Get(ctx, "profiles", "u1")
	if again["team"] != "core" || again["tags"].([]any)[0] != "a" {
		t.Error("store returned an aliased record")
	}
}

func TestBuildSchemaRejectsKeyChange(t *testing.T) {
	bad := []Migration{
		{Version: 1, Collections: []CollectionSpec{{Name: "c", KeyField: "id"}}},
		{Version: 2, Collections: []CollectionSpec{{Name: "c", KeyField: "uuid"}}},
	}
	if _, err := buildSchema(bad, 2); err == nil {
		t.Error("key field change accepted")
	}
	// Below the offending version the schema is still valid.
	if _, err := buildSchema(bad, 1); err != nil {
		t.Errorf("v1 schema: %v", err)
	}
}
