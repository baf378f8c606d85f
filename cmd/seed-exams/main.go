package main

import (
	"encoding/json"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/campushub/assess-backend/internal/config"
	"github.com/campushub/assess-backend/internal/logger"
	"github.com/campushub/assess-backend/internal/model"
)

// Writes a starter exam catalog to the configured catalog path so a fresh
// install has something to serve. Refuses to overwrite an existing file
// unless -force is given.
func main() {
	force := flag.Bool("force", false, "overwrite an existing catalog file")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)

	if _, err := os.Stat(cfg.CatalogPath); err == nil && !*force {
		log.Fatal().Str("path", cfg.CatalogPath).Msg("Catalog already exists, use -force to overwrite")
	}

	data, err := json.MarshalIndent(sampleExams(), "", "  ")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to encode catalog")
	}

	if err := os.WriteFile(cfg.CatalogPath, data, 0o644); err != nil {
		log.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("Failed to write catalog")
	}

	log.Info().
		Str("path", cfg.CatalogPath).
		Int("exams", len(sampleExams())).
		Msg("Catalog seeded")
}

func sampleExams() []model.Exam {
	return []model.Exam{
		{
			ID:              "go-fundamentals-midterm",
			Title:           "Go Fundamentals Midterm",
			Course:          "CS201",
			DurationSeconds: 600,
			PassingScore:    70,
			Instructions:    "Answer every question. The exam auto-submits when the timer reaches zero.",
			Description:     "Covers types, slices, maps, and error handling.",
			Questions: []model.Question{
				{
					ID:            "q1",
					Text:          "What is the zero value of a slice?",
					Options:       []string{"nil", "an empty slice", "a slice of length 1", "undefined"},
					CorrectAnswer: "nil",
				},
				{
					ID:            "q2",
					Text:          "Which builtin appends elements to a slice?",
					Options:       []string{"push", "append", "add", "insert"},
					CorrectAnswer: "append",
				},
				{
					ID:            "q3",
					Text:          "What does a function return alongside its result to signal failure?",
					Options:       []string{"an exception", "a panic", "an error value", "a status code"},
					CorrectAnswer: "an error value",
				},
				{
					ID:            "q4",
					Text:          "Which keyword starts a new goroutine?",
					Options:       []string{"go", "spawn", "async", "thread"},
					CorrectAnswer: "go",
				},
			},
		},
		{
			ID:              "db-systems-quiz-1",
			Title:           "Database Systems Quiz 1",
			Course:          "CS305",
			DurationSeconds: 300,
			PassingScore:    60,
			Description:     "Short quiz on relational basics.",
			Questions: []model.Question{
				{
					ID:            "q1",
					Text:          "Which SQL clause filters rows after grouping?",
					Options:       []string{"WHERE", "HAVING", "GROUP BY", "ORDER BY"},
					CorrectAnswer: "HAVING",
				},
				{
					ID:            "q2",
					Text:          "A primary key must be...",
					Options:       []string{"unique and non-null", "numeric", "indexed manually", "a single column"},
					CorrectAnswer: "unique and non-null",
				},
				{
					ID:            "q3",
					Text:          "Which isolation level allows dirty reads?",
					Options:       []string{"READ UNCOMMITTED", "READ COMMITTED", "REPEATABLE READ", "SERIALIZABLE"},
					CorrectAnswer: "READ UNCOMMITTED",
				},
			},
		},
	}
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339
}
