package model

// Exam is an immutable timed multiple-choice assessment definition,
// supplied by the catalog and never mutated by the engine.
type Exam struct {
	ID              string     `json:"id" validate:"required"`
	Title           string     `json:"title" validate:"required"`
	Course          string     `json:"course" validate:"required"`
	DurationSeconds int        `json:"duration_seconds" validate:"required,min=1"`
	PassingScore    int        `json:"passing_score" validate:"min=0,max=100"`
	Instructions    string     `json:"instructions,omitempty"`
	Description     string     `json:"description,omitempty"`
	Questions       []Question `json:"questions" validate:"required,min=1,dive"`
}

// Question is a single multiple-choice question. CorrectAnswer must equal
// one of Options; the catalog loader enforces this at load time.
type Question struct {
	ID            string   `json:"id" validate:"required"`
	Text          string   `json:"text" validate:"required"`
	Options       []string `json:"options" validate:"required,min=1,unique"`
	CorrectAnswer string   `json:"correct_answer" validate:"required"`
}

// HasOption reports whether opt is one of the question's options.
func (q *Question) HasOption(opt string) bool {
	for _, o := range q.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// ExamSummary is a catalog listing entry without question content.
type ExamSummary struct {
	ID              string `json:"id"`
	Title           string `json:"title"`
	Course          string `json:"course"`
	DurationSeconds int    `json:"duration_seconds"`
	PassingScore    int    `json:"passing_score"`
	QuestionCount   int    `json:"question_count"`
	Description     string `json:"description,omitempty"`
}

// QuestionForStudent is a question without the correct answer, as served
// to the UI while a session is open.
type QuestionForStudent struct {
	ID      string   `json:"id"`
	Text    string   `json:"text"`
	Options []string `json:"options"`
}

// ExamForStudent is an exam stripped of answer keys.
type ExamForStudent struct {
	ID              string               `json:"id"`
	Title           string               `json:"title"`
	Course          string               `json:"course"`
	DurationSeconds int                  `json:"duration_seconds"`
	PassingScore    int                  `json:"passing_score"`
	Instructions    string               `json:"instructions,omitempty"`
	Description     string               `json:"description,omitempty"`
	Questions       []QuestionForStudent `json:"questions"`
}

// Summary builds the listing view of an exam.
func (e *Exam) Summary() ExamSummary {
	return ExamSummary{
		ID:              e.ID,
		Title:           e.Title,
		Course:          e.Course,
		DurationSeconds: e.DurationSeconds,
		PassingScore:    e.PassingScore,
		QuestionCount:   len(e.Questions),
		Description:     e.Description,
	}
}

// ForStudent builds the answer-key-free view of an exam.
func (e *Exam) ForStudent() ExamForStudent {
	qs := make([]QuestionForStudent, len(e.Questions))
	for i, q := range e.Questions {
		qs[i] = QuestionForStudent{ID: q.ID, Text: q.Text, Options: q.Options}
	}
	return ExamForStudent{
		ID:              e.ID,
		Title:           e.Title,
		Course:          e.Course,
		DurationSeconds: e.DurationSeconds,
		PassingScore:    e.PassingScore,
		Instructions:    e.Instructions,
		Description:     e.Description,
		Questions:       qs,
	}
}
