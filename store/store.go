package store

import (
	"context"
	"errors"
	"time"

	"mocktest-server/models"
)

// ErrNotFound is returned when a referenced session or question does not exist.
var ErrNotFound = errors.New("not found")

// ErrDuplicateResult is returned when a second result is written for a
// session that already has one.
var ErrDuplicateResult = errors.New("result already exists for session")

// Store is the persistence boundary for questions, sessions, answers and
// results. Records are partitioned by test_id, so concurrent access to
// different sessions needs no coordination beyond what the
// implementation provides.
type Store interface {
	// UpsertQuestion deduplicates by (text, source_name): an existing
	// row keeps its identity and the caller's struct receives its ID,
	// otherwise a new row is inserted.
	UpsertQuestion(ctx context.Context, q *models.Question) error
	GetQuestion(ctx context.Context, id int) (models.Question, error)

	// CreateSession persists a session together with its ordering links,
	// atomically: either the session exists with a dense 0..N-1 link
	// sequence over orderedQuestionIDs, or nothing is visible.
	CreateSession(ctx context.Context, durationMinutes *int, orderedQuestionIDs []int) (models.TestSession, error)
	GetSession(ctx context.Context, id int) (models.TestSession, error)

	// StartSession stamps started_at and duration_minutes, only if the
	// session has not been started yet. Starting an already-started
	// session is a no-op.
	StartSession(ctx context.Context, id int, startedAt time.Time, durationMinutes int) error

	// SessionQuestions returns the session's questions ordered by
	// order_index ascending: the canonical presentation and grading order.
	SessionQuestions(ctx context.Context, testID int) ([]models.Question, error)
	SessionLinks(ctx context.Context, testID int) ([]models.TestQuestion, error)
	SetBookmark(ctx context.Context, testID, questionID int, bookmarked bool) error
	CountAnswers(ctx context.Context, testID int) (int, error)

	// SaveEvaluation commits the answers, the result and the session's
	// submitted_at stamp together. Returns ErrDuplicateResult if the
	// session already has a result.
	SaveEvaluation(ctx context.Context, result *models.Result, answers []models.Answer, submittedAt time.Time) error
	GetResult(ctx context.Context, testID int) (models.Result, error)

	// Counts reports totals for the admin dashboard.
	Counts(ctx context.Context) (sessions, submitted, questions int, err error)
}
