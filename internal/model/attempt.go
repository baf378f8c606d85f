package model

import "time"

// Attempt is the durable graded record of a submitted session. One record
// per exam id: a new submission overwrites the previous attempt.
type Attempt struct {
	ExamID         string    `json:"exam_id"`
	UserID         string    `json:"user_id"`
	Title          string    `json:"title"`
	Course         string    `json:"course"`
	CompletedDate  time.Time `json:"completed_date"`
	Score          int       `json:"score"`
	CorrectAnswers int       `json:"correct_answers"`
	TotalQuestions int       `json:"total_questions"`
	Passed         bool      `json:"passed"`
}
