package engine

import "github.com/campushub/assess-backend/internal/store"

// AttemptCollection is the record store collection holding graded attempts,
// keyed by exam id (new submissions overwrite the prior attempt).
const AttemptCollection = "attempts"

// SchemaVersion is the store schema version the engine requires.
const SchemaVersion = 2

// StoreMigrations returns the additive migration list for the engine's
// store. Version 1 introduced the attempts collection; version 2 added the
// course index used for per-course attempt lookups.
func StoreMigrations() []store.Migration {
	return []store.Migration{
		{
			Version: 1,
			Collections: []store.CollectionSpec{
				{Name: AttemptCollection, KeyField: "exam_id"},
			},
		},
		{
			Version: 2,
			Collections: []store.CollectionSpec{
				{
					Name:     AttemptCollection,
					KeyField: "exam_id",
					Indexes: []store.IndexSpec{
						{Name: "course", Field: "course"},
					},
				},
			},
		},
	}
}
