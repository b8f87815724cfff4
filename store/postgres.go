package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"mocktest-server/models"
)

const pgUniqueViolation = "23505"

// Postgres is the pgx-backed Store implementation.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres wraps a connection pool in a Store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) UpsertQuestion(ctx context.Context, q *models.Question) error {
	optionsJSON, err := json.Marshal(q.Options)
	if err != nil {
		return fmt.Errorf("failed to marshal options: %w", err)
	}
	err = s.pool.QueryRow(ctx, `
		INSERT INTO questions (number, text, options, source_name)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (text, source_name) DO UPDATE SET options = EXCLUDED.options
		RETURNING id
	`, q.Number, q.Text, optionsJSON, q.SourceName).Scan(&q.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert question: %w", err)
	}
	return nil
}

func (s *Postgres) GetQuestion(ctx context.Context, id int) (models.Question, error) {
	var q models.Question
	var optionsJSON []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, number, text, options, COALESCE(source_name, '')
		FROM questions WHERE id = $1
	`, id).Scan(&q.ID, &q.Number, &q.Text, &optionsJSON, &q.SourceName)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Question{}, ErrNotFound
	}
	if err != nil {
		return models.Question{}, fmt.Errorf("failed to fetch question %d: %w", id, err)
	}
	q.Options, err = decodeOptions(optionsJSON)
	if err != nil {
		return models.Question{}, fmt.Errorf("question %d: %w", id, err)
	}
	return q, nil
}

// decodeOptions reads the JSONB options column. Rows written before the
// options format change hold a JSON array of "A) text" strings; those
// are normalized into the letter map on read.
func decodeOptions(raw []byte) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var options map[string]string
	if err := json.Unmarshal(raw, &options); err == nil {
		return options, nil
	}
	var legacy []string
	if err := json.Unmarshal(raw, &legacy); err != nil {
		return nil, fmt.Errorf("unrecognized options payload: %w", err)
	}
	return models.NormalizeOptions(legacy), nil
}

func (s *Postgres) CreateSession(ctx context.Context, durationMinutes *int, orderedQuestionIDs []int) (models.TestSession, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return models.TestSession{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var session models.TestSession
	err = tx.QueryRow(ctx, `
		INSERT INTO test_sessions (total_questions, duration_minutes)
		VALUES ($1, $2)
		RETURNING id, total_questions, duration_minutes, created_at
	`, len(orderedQuestionIDs), durationMinutes).Scan(
		&session.ID, &session.TotalQuestions, &session.DurationMinutes, &session.CreatedAt,
	)
	if err != nil {
		return models.TestSession{}, fmt.Errorf("failed to insert test session: %w", err)
	}

	for idx, questionID := range orderedQuestionIDs {
		_, err := tx.Exec(ctx, `
			INSERT INTO test_questions (test_id, question_id, order_index)
			VALUES ($1, $2, $3)
		`, session.ID, questionID, idx)
		if err != nil {
			return models.TestSession{}, fmt.Errorf("failed to insert link for question %d: %w", questionID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return models.TestSession{}, fmt.Errorf("failed to commit session: %w", err)
	}
	return session, nil
}

func (s *Postgres) GetSession(ctx context.Context, id int) (models.TestSession, error) {
	var session models.TestSession
	err := s.pool.QueryRow(ctx, `
		SELECT id, total_questions, duration_minutes, created_at, started_at, submitted_at
		FROM test_sessions WHERE id = $1
	`, id).Scan(
		&session.ID, &session.TotalQuestions, &session.DurationMinutes,
		&session.CreatedAt, &session.StartedAt, &session.SubmittedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.TestSession{}, ErrNotFound
	}
	if err != nil {
		return models.TestSession{}, fmt.Errorf("failed to fetch session %d: %w", id, err)
	}
	return session, nil
}

func (s *Postgres) StartSession(ctx context.Context, id int, startedAt time.Time, durationMinutes int) error {
	// The WHERE guard makes repeated starts no-ops without a read-modify-write race.
	_, err := s.pool.Exec(ctx, `
		UPDATE test_sessions
		SET started_at = $2, duration_minutes = $3
		WHERE id = $1 AND started_at IS NULL
	`, id, startedAt, durationMinutes)
	if err != nil {
		return fmt.Errorf("failed to start session %d: %w", id, err)
	}
	return nil
}

func (s *Postgres) SessionQuestions(ctx context.Context, testID int) ([]models.Question, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT q.id, q.number, q.text, q.options, COALESCE(q.source_name, '')
		FROM test_questions tq
		JOIN questions q ON tq.question_id = q.id
		WHERE tq.test_id = $1
		ORDER BY tq.order_index
	`, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session questions: %w", err)
	}
	defer rows.Close()

	var questions []models.Question
	for rows.Next() {
		var q models.Question
		var optionsJSON []byte
		if err := rows.Scan(&q.ID, &q.Number, &q.Text, &optionsJSON, &q.SourceName); err != nil {
			return nil, fmt.Errorf("failed to scan session question: %w", err)
		}
		q.Options, err = decodeOptions(optionsJSON)
		if err != nil {
			return nil, fmt.Errorf("question %d: %w", q.ID, err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}

func (s *Postgres) SessionLinks(ctx context.Context, testID int) ([]models.TestQuestion, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, test_id, question_id, order_index, bookmarked
		FROM test_questions
		WHERE test_id = $1
		ORDER BY order_index
	`, testID)
	if err != nil {
		return nil, fmt.Errorf("failed to query session links: %w", err)
	}
	defer rows.Close()

	var links []models.TestQuestion
	for rows.Next() {
		var link models.TestQuestion
		if err := rows.Scan(&link.ID, &link.TestID, &link.QuestionID, &link.OrderIndex, &link.Bookmarked); err != nil {
			return nil, fmt.Errorf("failed to scan session link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

func (s *Postgres) SetBookmark(ctx context.Context, testID, questionID int, bookmarked bool) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE test_questions SET bookmarked = $3
		WHERE test_id = $1 AND question_id = $2
	`, testID, questionID, bookmarked)
	if err != nil {
		return fmt.Errorf("failed to set bookmark: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Postgres) CountAnswers(ctx context.Context, testID int) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(id) FROM answers WHERE test_id = $1
	`, testID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count answers: %w", err)
	}
	return count, nil
}

func (s *Postgres) SaveEvaluation(ctx context.Context, result *models.Result, answers []models.Answer, submittedAt time.Time) error {
	detailsJSON, err := json.Marshal(result.Details)
	if err != nil {
		return fmt.Errorf("failed to marshal result details: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, answer := range answers {
		_, err := tx.Exec(ctx, `
			INSERT INTO answers (test_id, question_id, selected_option)
			VALUES ($1, $2, $3)
			ON CONFLICT (test_id, question_id) DO UPDATE SET selected_option = EXCLUDED.selected_option
		`, answer.TestID, answer.QuestionID, answer.SelectedOption)
		if err != nil {
			return fmt.Errorf("failed to insert answer for question %d: %w", answer.QuestionID, err)
		}
	}

	err = tx.QueryRow(ctx, `
		INSERT INTO results (test_id, score, correct_count, wrong_count, accuracy, details, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`, result.TestID, result.Score, result.CorrectCount, result.WrongCount, result.Accuracy, detailsJSON, result.CreatedAt).Scan(&result.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
			return ErrDuplicateResult
		}
		return fmt.Errorf("failed to insert result: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE test_sessions SET submitted_at = $2 WHERE id = $1
	`, result.TestID, submittedAt)
	if err != nil {
		return fmt.Errorf("failed to stamp submitted_at: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit evaluation: %w", err)
	}
	return nil
}

func (s *Postgres) GetResult(ctx context.Context, testID int) (models.Result, error) {
	var result models.Result
	var detailsJSON []byte
	err := s.pool.QueryRow(ctx, `
		SELECT id, test_id, score, correct_count, wrong_count, accuracy, details, created_at
		FROM results WHERE test_id = $1
	`, testID).Scan(
		&result.ID, &result.TestID, &result.Score, &result.CorrectCount,
		&result.WrongCount, &result.Accuracy, &detailsJSON, &result.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Result{}, ErrNotFound
	}
	if err != nil {
		return models.Result{}, fmt.Errorf("failed to fetch result for session %d: %w", testID, err)
	}
	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &result.Details); err != nil {
			return models.Result{}, fmt.Errorf("failed to unmarshal result details: %w", err)
		}
	}
	return result, nil
}

func (s *Postgres) Counts(ctx context.Context) (sessions, submitted, questions int, err error) {
	err = s.pool.QueryRow(ctx, `
		SELECT
			(SELECT COUNT(id) FROM test_sessions),
			(SELECT COUNT(id) FROM test_sessions WHERE submitted_at IS NOT NULL),
			(SELECT COUNT(id) FROM questions)
	`).Scan(&sessions, &submitted, &questions)
	if err != nil {
		err = fmt.Errorf("failed to query dashboard counts: %w", err)
	}
	return sessions, submitted, questions, err
}
