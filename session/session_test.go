package session

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mocktest-server/models"
	"mocktest-server/store"
)

// fakeStore is an in-memory Store sufficient for session lifecycle tests.
type fakeStore struct {
	sessions map[int]*models.TestSession
	links    map[int][]models.TestQuestion
	bank     map[int]models.Question
	answers  map[int]int
	nextID   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		sessions: map[int]*models.TestSession{},
		links:    map[int][]models.TestQuestion{},
		bank:     map[int]models.Question{},
		answers:  map[int]int{},
		nextID:   1,
	}
}

func (f *fakeStore) UpsertQuestion(ctx context.Context, q *models.Question) error {
	if q.ID == 0 {
		q.ID = f.nextID
		f.nextID++
	}
	f.bank[q.ID] = *q
	return nil
}

func (f *fakeStore) GetQuestion(ctx context.Context, id int) (models.Question, error) {
	q, ok := f.bank[id]
	if !ok {
		return models.Question{}, store.ErrNotFound
	}
	return q, nil
}

func (f *fakeStore) CreateSession(ctx context.Context, durationMinutes *int, orderedQuestionIDs []int) (models.TestSession, error) {
	// Mirrors the UNIQUE (test_id, question_id) constraint on link rows.
	seen := map[int]bool{}
	for _, qid := range orderedQuestionIDs {
		if seen[qid] {
			return models.TestSession{}, errors.New("duplicate question link")
		}
		seen[qid] = true
	}
	id := f.nextID
	f.nextID++
	sess := &models.TestSession{
		ID:              id,
		TotalQuestions:  len(orderedQuestionIDs),
		DurationMinutes: durationMinutes,
		CreatedAt:       time.Now().UTC(),
	}
	f.sessions[id] = sess
	for idx, qid := range orderedQuestionIDs {
		f.links[id] = append(f.links[id], models.TestQuestion{
			TestID:     id,
			QuestionID: qid,
			OrderIndex: idx,
		})
	}
	return *sess, nil
}

func (f *fakeStore) GetSession(ctx context.Context, id int) (models.TestSession, error) {
	sess, ok := f.sessions[id]
	if !ok {
		return models.TestSession{}, store.ErrNotFound
	}
	return *sess, nil
}

func (f *fakeStore) StartSession(ctx context.Context, id int, startedAt time.Time, durationMinutes int) error {
	sess, ok := f.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	if sess.StartedAt != nil {
		return nil
	}
	sess.StartedAt = &startedAt
	sess.DurationMinutes = &durationMinutes
	return nil
}

func (f *fakeStore) SessionQuestions(ctx context.Context, testID int) ([]models.Question, error) {
	links, ok := f.links[testID]
	if !ok {
		return nil, store.ErrNotFound
	}
	questions := make([]models.Question, len(links))
	for i, link := range links {
		questions[i] = f.bank[link.QuestionID]
	}
	return questions, nil
}

func (f *fakeStore) SessionLinks(ctx context.Context, testID int) ([]models.TestQuestion, error) {
	return f.links[testID], nil
}

func (f *fakeStore) SetBookmark(ctx context.Context, testID, questionID int, bookmarked bool) error {
	for i, link := range f.links[testID] {
		if link.QuestionID == questionID {
			f.links[testID][i].Bookmarked = bookmarked
			return nil
		}
	}
	return store.ErrNotFound
}

func (f *fakeStore) CountAnswers(ctx context.Context, testID int) (int, error) {
	return f.answers[testID], nil
}

func (f *fakeStore) SaveEvaluation(ctx context.Context, result *models.Result, answers []models.Answer, submittedAt time.Time) error {
	sess := f.sessions[result.TestID]
	sess.SubmittedAt = &submittedAt
	return nil
}

func (f *fakeStore) GetResult(ctx context.Context, testID int) (models.Result, error) {
	return models.Result{}, store.ErrNotFound
}

func (f *fakeStore) Counts(ctx context.Context) (int, int, int, error) {
	return len(f.sessions), 0, len(f.bank), nil
}

func seedQuestions(t *testing.T, f *fakeStore, n int) []models.Question {
	t.Helper()
	questions := make([]models.Question, n)
	for i := range questions {
		q := models.Question{Number: i + 1, Text: "q", Options: map[string]string{"A": "x"}}
		require.NoError(t, f.UpsertQuestion(context.Background(), &q))
		questions[i] = q
	}
	return questions
}

func TestBuildAssignsDenseOrderIndexes(t *testing.T) {
	f := newFakeStore()
	svc := NewService(f)
	questions := seedQuestions(t, f, 10)

	sess, err := svc.Build(context.Background(), questions)

	require.NoError(t, err)
	assert.Equal(t, 10, sess.TotalQuestions)
	assert.Nil(t, sess.DurationMinutes)

	links, err := f.SessionLinks(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, links, 10)

	indexes := make([]int, len(links))
	seen := map[int]bool{}
	for i, link := range links {
		indexes[i] = link.OrderIndex
		assert.False(t, seen[link.QuestionID], "question %d linked twice", link.QuestionID)
		seen[link.QuestionID] = true
	}
	sort.Ints(indexes)
	for i, idx := range indexes {
		assert.Equal(t, i, idx)
	}
}

func TestBuildCollapsesDuplicateQuestionIDs(t *testing.T) {
	f := newFakeStore()
	svc := NewService(f)
	questions := seedQuestions(t, f, 3)
	// Upserted question sets can repeat an ID when two inputs share the
	// same (text, source_name); the session must still build.
	questions = append(questions, questions[0], questions[2])

	sess, err := svc.Build(context.Background(), questions)

	require.NoError(t, err)
	assert.Equal(t, 3, sess.TotalQuestions)

	links, err := f.SessionLinks(context.Background(), sess.ID)
	require.NoError(t, err)
	require.Len(t, links, 3)
	assert.ElementsMatch(t,
		[]int{questions[0].ID, questions[1].ID, questions[2].ID},
		linkedIDs(t, f, sess.ID))
}

func TestBuildEmptyQuestionSet(t *testing.T) {
	f := newFakeStore()
	svc := NewService(f)

	sess, err := svc.Build(context.Background(), nil)

	require.NoError(t, err)
	assert.Zero(t, sess.TotalQuestions)
}

func TestBuildWithDurationPresetsCountdown(t *testing.T) {
	f := newFakeStore()
	svc := NewService(f)
	questions := seedQuestions(t, f, 3)

	sess, err := svc.BuildWithDuration(context.Background(), questions, 90)

	require.NoError(t, err)
	require.NotNil(t, sess.DurationMinutes)
	assert.Equal(t, 90, *sess.DurationMinutes)
}

func TestStartIsIdempotent(t *testing.T) {
	f := newFakeStore()
	svc := NewService(f)
	questions := seedQuestions(t, f, 3)
	sess, err := svc.Build(context.Background(), questions)
	require.NoError(t, err)

	first, err := svc.Start(context.Background(), sess.ID, 60)
	require.NoError(t, err)
	require.NotNil(t, first.StartedAt)
	require.NotNil(t, first.DurationMinutes)
	assert.Equal(t, 60, *first.DurationMinutes)

	second, err := svc.Start(context.Background(), sess.ID, 120)
	require.NoError(t, err)
	assert.Equal(t, *first.StartedAt, *second.StartedAt)
	assert.Equal(t, 60, *second.DurationMinutes, "repeated start must not change the original duration")
}

func TestStartRejectsOutOfRangeDuration(t *testing.T) {
	f := newFakeStore()
	svc := NewService(f)
	questions := seedQuestions(t, f, 1)
	sess, err := svc.Build(context.Background(), questions)
	require.NoError(t, err)

	_, err = svc.Start(context.Background(), sess.ID, 0)
	assert.ErrorIs(t, err, ErrInvalidDuration)

	_, err = svc.Start(context.Background(), sess.ID, MaxDurationMinutes+1)
	assert.ErrorIs(t, err, ErrInvalidDuration)
}

func TestStartUnknownSession(t *testing.T) {
	svc := NewService(newFakeStore())

	_, err := svc.Start(context.Background(), 999, 60)

	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestRetryBuildsIndependentSession(t *testing.T) {
	f := newFakeStore()
	svc := NewService(f)
	questions := seedQuestions(t, f, 5)
	original, err := svc.Build(context.Background(), questions)
	require.NoError(t, err)
	_, err = svc.Start(context.Background(), original.ID, 30)
	require.NoError(t, err)

	retried, err := svc.Retry(context.Background(), original.ID)
	require.NoError(t, err)

	assert.NotEqual(t, original.ID, retried.ID)
	assert.Equal(t, original.TotalQuestions, retried.TotalQuestions)
	assert.Nil(t, retried.StartedAt, "retried session starts fresh")

	// The original session's state is untouched.
	kept, err := f.GetSession(context.Background(), original.ID)
	require.NoError(t, err)
	assert.NotNil(t, kept.StartedAt)

	// Same question pool, possibly different order.
	originalIDs := linkedIDs(t, f, original.ID)
	retriedIDs := linkedIDs(t, f, retried.ID)
	assert.ElementsMatch(t, originalIDs, retriedIDs)
}

func TestRetryUnknownSession(t *testing.T) {
	svc := NewService(newFakeStore())

	_, err := svc.Retry(context.Background(), 42)

	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestStatusBeforeStart(t *testing.T) {
	f := newFakeStore()
	svc := NewService(f)
	questions := seedQuestions(t, f, 4)
	sess, err := svc.Build(context.Background(), questions)
	require.NoError(t, err)

	status, err := svc.Status(context.Background(), sess.ID)

	require.NoError(t, err)
	assert.False(t, status.Submitted)
	assert.Equal(t, 0, status.AnsweredCount)
	assert.Equal(t, 4, status.RemainingCount)
	assert.Equal(t, "00:00:00", status.TimeRemaining)
}

func TestStatusCountsDownAfterStart(t *testing.T) {
	f := newFakeStore()
	svc := NewService(f)
	questions := seedQuestions(t, f, 2)
	sess, err := svc.Build(context.Background(), questions)
	require.NoError(t, err)
	_, err = svc.Start(context.Background(), sess.ID, 60)
	require.NoError(t, err)
	f.answers[sess.ID] = 1

	status, err := svc.Status(context.Background(), sess.ID)

	require.NoError(t, err)
	assert.Equal(t, 1, status.AnsweredCount)
	assert.Equal(t, 1, status.RemainingCount)
	assert.NotEqual(t, "00:00:00", status.TimeRemaining)
	assert.Regexp(t, `^\d{2}:\d{2}:\d{2}$`, status.TimeRemaining)
}

func TestBookmarkUnknownQuestion(t *testing.T) {
	f := newFakeStore()
	svc := NewService(f)
	questions := seedQuestions(t, f, 1)
	sess, err := svc.Build(context.Background(), questions)
	require.NoError(t, err)

	err = svc.Bookmark(context.Background(), sess.ID, 999, true)

	assert.ErrorIs(t, err, store.ErrNotFound)
}

func linkedIDs(t *testing.T, f *fakeStore, testID int) []int {
	t.Helper()
	links, err := f.SessionLinks(context.Background(), testID)
	require.NoError(t, err)
	ids := make([]int, len(links))
	for i, link := range links {
		ids[i] = link.QuestionID
	}
	return ids
}
