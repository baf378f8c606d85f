// Package catalog loads and validates the exam catalog. The catalog is
// external, immutable content: the engine reads it, never mutates it.
package catalog

import (
	"encoding/json"
	"fmt"
	"os"

	govalidator "github.com/go-playground/validator/v10"

	"github.com/campushub/assess-backend/internal/model"
)

var validate = govalidator.New()

// Catalog is an immutable set of exam definitions keyed by id.
type Catalog struct {
	exams []model.Exam
	byID  map[string]*model.Exam
}

// Load reads a catalog JSON file (an array of exams) and validates every
// definition. Invariants are checked here, at load time, so the engine
// can trust any exam it is handed.
func Load(path string) (*Catalog, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	var exams []model.Exam
	if err := json.Unmarshal(raw, &exams); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}
	return New(exams)
}

// New builds a validated catalog from exam definitions. An empty slice is
// a valid (empty) catalog.
func New(exams []model.Exam) (*Catalog, error) {
	byID := make(map[string]*model.Exam, len(exams))
	for i := range exams {
		e := &exams[i]
		if err := validateExam(e); err != nil {
			return nil, fmt.Errorf("exam %q: %w", e.ID, err)
		}
		if _, dup := byID[e.ID]; dup {
			return nil, fmt.Errorf("exam %q: duplicate exam id", e.ID)
		}
		byID[e.ID] = e
	}
	return &Catalog{exams: exams, byID: byID}, nil
}

// Empty returns a catalog with no exams.
func Empty() *Catalog {
	return &Catalog{byID: map[string]*model.Exam{}}
}

func validateExam(e *model.Exam) error {
	if err := validate.Struct(e); err != nil {
		return err
	}
	seen := make(map[string]bool, len(e.Questions))
	for _, q := range e.Questions {
		if seen[q.ID] {
			return fmt.Errorf("question %q: duplicate question id", q.ID)
		}
		seen[q.ID] = true
		if !q.HasOption(q.CorrectAnswer) {
			return fmt.Errorf("question %q: correct answer %q is not among the options", q.ID, q.CorrectAnswer)
		}
	}
	return nil
}

// Get returns the exam with the given id.
func (c *Catalog) Get(id string) (*model.Exam, bool) {
	e, ok := c.byID[id]
	return e, ok
}

// Summaries lists all exams without question content, in catalog order.
func (c *Catalog) Summaries() []model.ExamSummary {
	out := make([]model.ExamSummary, len(c.exams))
	for i := range c.exams {
		out[i] = c.exams[i].Summary()
	}
	return out
}

// Len returns the number of exams in the catalog.
func (c *Catalog) Len() int {
	return len(c.exams)
}
