// Package session assembles question sets into ordered, timed test
// sessions and drives the created -> started -> submitted lifecycle.
package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"mocktest-server/models"
	"mocktest-server/store"
)

// MaxDurationMinutes caps the countdown a session can be started with.
const MaxDurationMinutes = 240

// ErrInvalidDuration is returned when a start request carries a
// duration outside [1, MaxDurationMinutes].
var ErrInvalidDuration = errors.New("duration_minutes out of range")

// Service builds sessions and enforces lifecycle transitions.
type Service struct {
	store store.Store
}

func NewService(st store.Store) *Service {
	return &Service{store: st}
}

// Build creates a session over questions with a fresh uniform shuffle;
// order_index 0..N-1 is assigned in shuffled order. Questions sharing
// an ID collapse to a single link, since the question bank dedupes on
// (text, source_name) and link rows are unique per question. The
// session and all of its links are persisted atomically.
func (s *Service) Build(ctx context.Context, questions []models.Question) (models.TestSession, error) {
	return s.buildWithDuration(ctx, questions, nil)
}

// BuildWithDuration is Build with a preset countdown, used by generated
// company assessments which carry their own time limit.
func (s *Service) BuildWithDuration(ctx context.Context, questions []models.Question, durationMinutes int) (models.TestSession, error) {
	return s.buildWithDuration(ctx, questions, &durationMinutes)
}

func (s *Service) buildWithDuration(ctx context.Context, questions []models.Question, durationMinutes *int) (models.TestSession, error) {
	seen := make(map[int]struct{}, len(questions))
	ids := make([]int, 0, len(questions))
	for _, q := range questions {
		if _, dup := seen[q.ID]; dup {
			continue
		}
		seen[q.ID] = struct{}{}
		ids = append(ids, q.ID)
	}
	rand.Shuffle(len(ids), func(i, j int) {
		ids[i], ids[j] = ids[j], ids[i]
	})

	session, err := s.store.CreateSession(ctx, durationMinutes, ids)
	if err != nil {
		return models.TestSession{}, fmt.Errorf("failed to create session: %w", err)
	}
	return session, nil
}

// Start stamps started_at and duration_minutes on the first call. A
// session that is already started keeps both its original started_at
// and its original duration; repeated starts are no-ops.
func (s *Service) Start(ctx context.Context, id, durationMinutes int) (models.TestSession, error) {
	if durationMinutes < 1 || durationMinutes > MaxDurationMinutes {
		return models.TestSession{}, ErrInvalidDuration
	}

	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return models.TestSession{}, err
	}
	if session.StartedAt == nil {
		if err := s.store.StartSession(ctx, id, time.Now().UTC(), durationMinutes); err != nil {
			return models.TestSession{}, err
		}
	}
	return s.store.GetSession(ctx, id)
}

// Retry builds a fresh, re-shuffled session over an existing session's
// question pool. The original session and its result are untouched.
func (s *Service) Retry(ctx context.Context, id int) (models.TestSession, error) {
	if _, err := s.store.GetSession(ctx, id); err != nil {
		return models.TestSession{}, err
	}
	questions, err := s.store.SessionQuestions(ctx, id)
	if err != nil {
		return models.TestSession{}, err
	}
	return s.Build(ctx, questions)
}

// Questions returns the session's questions in canonical order_index
// order: the presentation and answer-submission order.
func (s *Service) Questions(ctx context.Context, id int) ([]models.Question, error) {
	return s.store.SessionQuestions(ctx, id)
}

// Bookmark toggles the bookmarked flag on one session link.
func (s *Service) Bookmark(ctx context.Context, testID, questionID int, bookmarked bool) error {
	return s.store.SetBookmark(ctx, testID, questionID, bookmarked)
}

// Status reports progress and the remaining countdown for a session.
func (s *Service) Status(ctx context.Context, id int) (models.TestStatusResponse, error) {
	session, err := s.store.GetSession(ctx, id)
	if err != nil {
		return models.TestStatusResponse{}, err
	}

	answered, err := s.store.CountAnswers(ctx, id)
	if err != nil {
		return models.TestStatusResponse{}, err
	}

	status := models.TestStatusResponse{
		Submitted:      session.SubmittedAt != nil,
		AnsweredCount:  answered,
		RemainingCount: session.TotalQuestions - answered,
		TimeRemaining:  "00:00:00",
	}

	if !status.Submitted && session.StartedAt != nil && session.DurationMinutes != nil {
		elapsed := time.Since(*session.StartedAt)
		remaining := time.Duration(*session.DurationMinutes)*time.Minute - elapsed
		if remaining < 0 {
			remaining = 0
		}
		status.TimeRemaining = fmt.Sprintf("%02d:%02d:%02d",
			int(remaining.Hours()), int(remaining.Minutes())%60, int(remaining.Seconds())%60)
	}
	return status, nil
}
