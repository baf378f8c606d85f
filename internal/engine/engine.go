// Package engine implements the assessment session state machine: one live
// session per engine instance, a host-driven 1 Hz countdown, scoring at
// submission, and asynchronous attempt persistence with graceful
// degradation when the record store is unavailable.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/campushub/assess-backend/internal/catalog"
	"github.com/campushub/assess-backend/internal/model"
	"github.com/campushub/assess-backend/internal/store"
)

// Engine owns every session mutation. Methods are safe for concurrent use;
// each call completes atomically with respect to the others, so a tick and
// an answer dispatched together never interleave.
//
// At most one session is InProgress at a time. That subsumes the per-exam
// uniqueness invariant and keeps the single host countdown unambiguous:
// Tick only ever advances the active session.
type Engine struct {
	mu       sync.Mutex
	catalog  *catalog.Catalog
	store    store.Store
	sink     EventSink
	log      zerolog.Logger
	userID   string
	sessions map[string]*model.Session
	active   *model.Session

	// writes tracks in-flight attempt persistence goroutines so shutdown
	// and tests can wait for them without coupling to their timing.
	writes sync.WaitGroup
}

// New creates an engine over a validated catalog and an opened record
// store. userID is the fallback identity for sessions started without
// one; single-user deployments pass "local". A nil sink discards events.
func New(cat *catalog.Catalog, st store.Store, sink EventSink, userID string, log zerolog.Logger) *Engine {
	if sink == nil {
		sink = NopSink{}
	}
	if userID == "" {
		userID = "local"
	}
	return &Engine{
		catalog:  cat,
		store:    st,
		sink:     sink,
		log:      log.With().Str("component", "engine").Logger(),
		userID:   userID,
		sessions: make(map[string]*model.Session),
	}
}

// Catalog returns the engine's exam catalog.
func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// StartSession begins a new InProgress session for the exam, owned by
// userID (empty falls back to the engine's default identity). It fails
// with ErrExamNotFound for an unknown id, ErrNoQuestions for an empty
// exam, and ErrSessionActive while any session is still InProgress.
func (e *Engine) StartSession(examID, userID string) (model.SessionSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startLocked(examID, userID)
}

// Retake discards the terminal session for the exam and starts a brand-new
// one: all answers nil, full duration, independent of any stored attempt.
func (e *Engine) Retake(examID, userID string) (model.SessionSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.startLocked(examID, userID)
}

func (e *Engine) startLocked(examID, userID string) (model.SessionSnapshot, error) {
	exam, ok := e.catalog.Get(examID)
	if !ok {
		return model.SessionSnapshot{}, fmt.Errorf("%w: %q", ErrExamNotFound, examID)
	}
	if len(exam.Questions) == 0 {
		return model.SessionSnapshot{}, fmt.Errorf("%w: %q", ErrNoQuestions, examID)
	}
	if e.active != nil && e.active.Status == model.SessionStatusInProgress {
		return model.SessionSnapshot{}, ErrSessionActive
	}

	if userID == "" {
		userID = e.userID
	}
	sess := model.NewSession(exam, userID)
	e.sessions[examID] = sess
	e.active = sess

	e.log.Info().
		Str("exam_id", examID).
		Str("session_id", sess.ID.String()).
		Int("duration_seconds", exam.DurationSeconds).
		Msg("Session started")

	return snapshotOf(sess, len(exam.Questions)), nil
}

// RecordAnswer sets (or, with a nil option, clears) the answer for one
// question of the active session. Reassigning an answered question simply
// replaces the previous selection.
func (e *Engine) RecordAnswer(questionID string, option *string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess := e.active
	if sess == nil || sess.Status != model.SessionStatusInProgress {
		return ErrNoActiveSession
	}
	exam, _ := e.catalog.Get(sess.ExamID)
	question := findQuestion(exam, questionID)
	if question == nil {
		return fmt.Errorf("%w: %q", ErrUnknownQuestion, questionID)
	}
	if option != nil && !question.HasOption(*option) {
		return fmt.Errorf("%w: %q", ErrInvalidOption, *option)
	}

	if option == nil {
		sess.Answers[questionID] = nil
		return nil
	}
	v := *option
	sess.Answers[questionID] = &v
	return nil
}

// Tick advances the active session's countdown by one second. Without an
// InProgress session it is a no-op, so a host ticker that fires after a
// session ended cannot corrupt terminal state. Reaching zero forces a
// submission with unanswered questions counted incorrect.
func (e *Engine) Tick() {
	e.mu.Lock()

	sess := e.active
	if sess == nil || sess.Status != model.SessionStatusInProgress {
		e.mu.Unlock()
		return
	}

	sess.TimeRemainingSeconds--
	if sess.TimeRemainingSeconds > 0 {
		e.mu.Unlock()
		return
	}
	sess.TimeRemainingSeconds = 0

	outcome := e.completeLocked(sess, true)
	e.mu.Unlock()

	e.sink.TimeExpired(sess.ExamID)
	e.sink.ExamSubmitted(outcome)
}

// Submit grades and completes the active session. A manual submit
// (force=false) is rejected with ErrIncompleteSubmission while any
// question is unanswered, leaving the session InProgress. A forced submit
// always completes, scoring unanswered questions as incorrect.
func (e *Engine) Submit(force bool) (OutcomeEvent, error) {
	e.mu.Lock()

	sess := e.active
	if sess == nil || sess.Status != model.SessionStatusInProgress {
		e.mu.Unlock()
		return OutcomeEvent{}, ErrNoActiveSession
	}
	if !force {
		if unanswered := len(sess.Answers) - sess.Answered(); unanswered > 0 {
			e.mu.Unlock()
			return OutcomeEvent{}, fmt.Errorf("%w: %d left", ErrIncompleteSubmission, unanswered)
		}
	}

	outcome := e.completeLocked(sess, force)
	e.mu.Unlock()

	e.sink.ExamSubmitted(outcome)
	return outcome, nil
}

// completeLocked runs the one-shot InProgress → Completed transition:
// score, freeze, and schedule the attempt write. Called with e.mu held;
// event emission is left to the caller so sinks run unlocked.
func (e *Engine) completeLocked(sess *model.Session, forced bool) OutcomeEvent {
	exam, _ := e.catalog.Get(sess.ExamID)

	correct := 0
	for _, q := range exam.Questions {
		if a := sess.Answers[q.ID]; a != nil && *a == q.CorrectAnswer {
			correct++
		}
	}
	total := len(exam.Questions)
	score := int(math.Round(float64(correct) / float64(total) * 100))

	now := time.Now()
	sess.Status = model.SessionStatusCompleted
	sess.FinishedAt = &now
	sess.Score = score
	sess.CorrectAnswers = correct
	e.active = nil

	outcome := OutcomeEvent{
		ExamID:         exam.ID,
		Outcome:        OutcomeFailed,
		Score:          score,
		CorrectAnswers: correct,
		TotalQuestions: total,
		Forced:         forced,
	}
	if score >= exam.PassingScore {
		outcome.Outcome = OutcomePassed
	}

	attempt := model.Attempt{
		ExamID:         exam.ID,
		UserID:         sess.UserID,
		Title:          exam.Title,
		Course:         exam.Course,
		CompletedDate:  now,
		Score:          score,
		CorrectAnswers: correct,
		TotalQuestions: total,
		Passed:         outcome.Outcome == OutcomePassed,
	}

	e.log.Info().
		Str("exam_id", exam.ID).
		Int("score", score).
		Int("correct", correct).
		Int("total", total).
		Bool("forced", forced).
		Str("outcome", string(outcome.Outcome)).
		Msg("Session completed")

	e.writes.Add(1)
	go e.persistAttempt(attempt)

	return outcome
}

// persistAttempt writes the attempt on its own schedule. It only ever
// touches the attempts collection, so a slow write resolving after a
// retake cannot corrupt the new session. Failure is reported, never
// retried, and never rolls back the completed in-memory result.
func (e *Engine) persistAttempt(attempt model.Attempt) {
	defer e.writes.Done()

	rec, err := attemptToRecord(attempt)
	if err == nil {
		err = e.store.Put(context.Background(), AttemptCollection, rec)
	}
	if err != nil {
		e.log.Error().
			Err(err).
			Str("exam_id", attempt.ExamID).
			Msg("Attempt write failed; result kept in memory only")
		e.sink.PersistenceFailure(attempt.ExamID, err)
		return
	}

	e.log.Debug().Str("exam_id", attempt.ExamID).Msg("Attempt persisted")
}

// Abandon marks the active session Abandoned without grading or
// persistence. Confirmation is the caller's concern; the engine trusts
// the call once made.
func (e *Engine) Abandon() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	sess := e.active
	if sess == nil || sess.Status != model.SessionStatusInProgress {
		return ErrNoActiveSession
	}

	now := time.Now()
	sess.Status = model.SessionStatusAbandoned
	sess.FinishedAt = &now
	e.active = nil

	e.log.Info().
		Str("exam_id", sess.ExamID).
		Int("answered", sess.Answered()).
		Msg("Session abandoned")
	return nil
}

// ActiveSnapshot returns the snapshot of the session currently in
// progress, if any.
func (e *Engine) ActiveSnapshot() (model.SessionSnapshot, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active == nil {
		return model.SessionSnapshot{}, false
	}
	exam, _ := e.catalog.Get(e.active.ExamID)
	return snapshotOf(e.active, len(exam.Questions)), true
}

// Snapshot returns the read-only view of the exam's session. An exam
// without a session reports NotStarted.
func (e *Engine) Snapshot(examID string) (model.SessionSnapshot, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	exam, ok := e.catalog.Get(examID)
	if !ok {
		return model.SessionSnapshot{}, fmt.Errorf("%w: %q", ErrExamNotFound, examID)
	}
	sess, ok := e.sessions[examID]
	if !ok {
		return model.SessionSnapshot{
			ExamID:               examID,
			Status:               model.SessionStatusNotStarted,
			TimeRemainingSeconds: exam.DurationSeconds,
			TotalQuestions:       len(exam.Questions),
		}, nil
	}
	return snapshotOf(sess, len(exam.Questions)), nil
}

// LatestAttempt reads the stored attempt for the exam, or store.ErrNotFound.
func (e *Engine) LatestAttempt(ctx context.Context, examID string) (model.Attempt, error) {
	rec, err := e.store.Get(ctx, AttemptCollection, examID)
	if err != nil {
		return model.Attempt{}, err
	}
	return recordToAttempt(rec)
}

// AllAttempts lists every stored attempt (at most one per exam id).
func (e *Engine) AllAttempts(ctx context.Context) ([]model.Attempt, error) {
	recs, err := e.store.GetAll(ctx, AttemptCollection)
	if err != nil {
		return nil, err
	}
	out := make([]model.Attempt, 0, len(recs))
	for _, rec := range recs {
		a, err := recordToAttempt(rec)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// AttemptByCourse looks one attempt up through the course index.
func (e *Engine) AttemptByCourse(ctx context.Context, course string) (model.Attempt, error) {
	rec, err := e.store.GetByIndex(ctx, AttemptCollection, "course", course)
	if err != nil {
		return model.Attempt{}, err
	}
	return recordToAttempt(rec)
}

// Drain blocks until all in-flight attempt writes have resolved. Used on
// shutdown and in tests.
func (e *Engine) Drain() {
	e.writes.Wait()
}

func findQuestion(exam *model.Exam, questionID string) *model.Question {
	for i := range exam.Questions {
		if exam.Questions[i].ID == questionID {
			return &exam.Questions[i]
		}
	}
	return nil
}

func snapshotOf(sess *model.Session, totalQuestions int) model.SessionSnapshot {
	answers := make(map[string]*string, len(sess.Answers))
	for qid, a := range sess.Answers {
		if a == nil {
			answers[qid] = nil
			continue
		}
		v := *a
		answers[qid] = &v
	}
	started := sess.StartedAt
	snap := model.SessionSnapshot{
		SessionID:            sess.ID,
		ExamID:               sess.ExamID,
		Status:               sess.Status,
		Answers:              answers,
		TimeRemainingSeconds: sess.TimeRemainingSeconds,
		StartedAt:            &started,
		FinishedAt:           sess.FinishedAt,
		Answered:             sess.Answered(),
		TotalQuestions:       totalQuestions,
	}
	if sess.Status == model.SessionStatusCompleted {
		score, correct := sess.Score, sess.CorrectAnswers
		snap.Score = &score
		snap.CorrectAnswers = &correct
	}
	return snap
}

func attemptToRecord(a model.Attempt) (store.Record, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("encode attempt: %w", err)
	}
	var rec store.Record
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("encode attempt: %w", err)
	}
	return rec, nil
}

func recordToAttempt(rec store.Record) (model.Attempt, error) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return model.Attempt{}, fmt.Errorf("decode attempt: %w", err)
	}
	var a model.Attempt
	if err := json.Unmarshal(raw, &a); err != nil {
		return model.Attempt{}, fmt.Errorf("decode attempt: %w", err)
	}
	return a, nil
}
