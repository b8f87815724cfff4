package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-contrib/multitemplate"
	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mocktest-server/config"
	"mocktest-server/evaluate"
	"mocktest-server/generator"
	"mocktest-server/judge"
	"mocktest-server/middleware"
	"mocktest-server/models"
	"mocktest-server/research"
	"mocktest-server/session"
	"mocktest-server/store"
)

// memStore is an in-memory Store for routing tests.
type memStore struct {
	sessions map[int]*models.TestSession
	links    map[int][]models.TestQuestion
	bank     map[int]models.Question
	results  map[int]models.Result
	nextID   int
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[int]*models.TestSession{},
		links:    map[int][]models.TestQuestion{},
		bank:     map[int]models.Question{},
		results:  map[int]models.Result{},
		nextID:   1,
	}
}

func (m *memStore) UpsertQuestion(ctx context.Context, q *models.Question) error {
	for id, existing := range m.bank {
		if existing.Text == q.Text && existing.SourceName == q.SourceName {
			q.ID = id
			m.bank[id] = *q
			return nil
		}
	}
	q.ID = m.nextID
	m.nextID++
	m.bank[q.ID] = *q
	return nil
}

func (m *memStore) GetQuestion(ctx context.Context, id int) (models.Question, error) {
	q, ok := m.bank[id]
	if !ok {
		return models.Question{}, store.ErrNotFound
	}
	return q, nil
}

func (m *memStore) CreateSession(ctx context.Context, durationMinutes *int, orderedQuestionIDs []int) (models.TestSession, error) {
	// Mirrors the UNIQUE (test_id, question_id) constraint on link rows.
	seen := map[int]bool{}
	for _, qid := range orderedQuestionIDs {
		if seen[qid] {
			return models.TestSession{}, errors.New("duplicate question link")
		}
		seen[qid] = true
	}
	id := m.nextID
	m.nextID++
	sess := &models.TestSession{
		ID:              id,
		TotalQuestions:  len(orderedQuestionIDs),
		DurationMinutes: durationMinutes,
		CreatedAt:       time.Now().UTC(),
	}
	m.sessions[id] = sess
	for idx, qid := range orderedQuestionIDs {
		m.links[id] = append(m.links[id], models.TestQuestion{TestID: id, QuestionID: qid, OrderIndex: idx})
	}
	return *sess, nil
}

func (m *memStore) GetSession(ctx context.Context, id int) (models.TestSession, error) {
	sess, ok := m.sessions[id]
	if !ok {
		return models.TestSession{}, store.ErrNotFound
	}
	return *sess, nil
}

func (m *memStore) StartSession(ctx context.Context, id int, startedAt time.Time, durationMinutes int) error {
	sess, ok := m.sessions[id]
	if !ok {
		return store.ErrNotFound
	}
	if sess.StartedAt == nil {
		sess.StartedAt = &startedAt
		sess.DurationMinutes = &durationMinutes
	}
	return nil
}

func (m *memStore) SessionQuestions(ctx context.Context, testID int) ([]models.Question, error) {
	links, ok := m.links[testID]
	if !ok {
		return nil, store.ErrNotFound
	}
	questions := make([]models.Question, len(links))
	for i, link := range links {
		questions[i] = m.bank[link.QuestionID]
	}
	return questions, nil
}

func (m *memStore) SessionLinks(ctx context.Context, testID int) ([]models.TestQuestion, error) {
	return m.links[testID], nil
}

func (m *memStore) SetBookmark(ctx context.Context, testID, questionID int, bookmarked bool) error {
	for i, link := range m.links[testID] {
		if link.QuestionID == questionID {
			m.links[testID][i].Bookmarked = bookmarked
			return nil
		}
	}
	return store.ErrNotFound
}

func (m *memStore) CountAnswers(ctx context.Context, testID int) (int, error) { return 0, nil }

func (m *memStore) SaveEvaluation(ctx context.Context, result *models.Result, answers []models.Answer, submittedAt time.Time) error {
	if _, exists := m.results[result.TestID]; exists {
		return store.ErrDuplicateResult
	}
	result.ID = m.nextID
	m.nextID++
	m.results[result.TestID] = *result
	m.sessions[result.TestID].SubmittedAt = &submittedAt
	return nil
}

func (m *memStore) GetResult(ctx context.Context, testID int) (models.Result, error) {
	r, ok := m.results[testID]
	if !ok {
		return models.Result{}, store.ErrNotFound
	}
	return r, nil
}

func (m *memStore) Counts(ctx context.Context) (int, int, int, error) {
	return len(m.sessions), len(m.results), len(m.bank), nil
}

// keyJudge answers from a fixed key of question text to correct letter.
type keyJudge struct {
	keys map[string]string
}

func (k *keyJudge) Evaluate(ctx context.Context, question string, options map[string]string, userAnswer string) (judge.Verdict, error) {
	key := k.keys[question]
	if key == "" {
		key = "A"
	}
	return judge.Verdict{CorrectAnswer: key, IsCorrect: userAnswer == key, Explanation: "keyed"}, nil
}

const (
	testSigningKey = "test-signing-key"
	testIssuer     = "test-issuer"
)

type sinkEvent struct {
	source, target, message string
}

type testEnv struct {
	router *gin.Engine
	store  *memStore
	cache  *research.Cache
	events []sinkEvent

	// Upstream behavior is swappable per test before the request fires.
	researchHandler http.HandlerFunc
	generateHandler http.HandlerFunc
}

func newTestEnv(t *testing.T, keys map[string]string) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{
		store:           newMemStore(),
		cache:           research.NewCache(t.TempDir()),
		researchHandler: upstreamDown,
		generateHandler: upstreamDown,
	}

	researchSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.researchHandler(w, r)
	}))
	t.Cleanup(researchSrv.Close)
	generateSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		env.generateHandler(w, r)
	}))
	t.Cleanup(generateSrv.Close)

	st := env.store
	sink := func(source, target, message string) {
		env.events = append(env.events, sinkEvent{source, target, message})
	}
	sessions := session.NewService(st)
	evaluator := evaluate.New(st, &keyJudge{keys: keys}, sink)
	extractor := judge.NewExtractor(config.JudgeConfig{})
	explainer := judge.NewExplainer(config.JudgeConfig{})
	researcher := research.NewResearcher(config.ResearchConfig{
		PerplexityAPIKey: "test-key",
		PerplexityModel:  "sonar-pro",
		APIURL:           researchSrv.URL,
	})
	gen := generator.New(config.GeneratorConfig{
		GroqAPIKey: "test-key",
		GroqModel:  "llama-test",
		APIURL:     generateSrv.URL,
	})
	recentEvents := func(limit int) ([]models.AdapterEvent, error) {
		events := make([]models.AdapterEvent, 0, len(env.events))
		for i, ev := range env.events {
			events = append(events, models.AdapterEvent{ID: i + 1, Source: ev.source, Target: ev.target, Message: ev.message})
		}
		return events, nil
	}

	router := gin.New()
	renderer := multitemplate.NewRenderer()
	renderer.AddFromFiles("admin_dashboard", "../templates/layout.html", "../templates/admin_dashboard.html")
	router.HTMLRender = renderer

	router.GET("/health", HealthCheck())
	api := router.Group("/api")
	api.POST("/upload", UploadText(st, sessions, extractor))
	api.POST("/upload/bank", UploadBank(st, sessions))
	api.POST("/tests/:test_id/start", StartTest(sessions))
	api.POST("/tests/:test_id/retry", RetryTest(sessions))
	api.POST("/tests/:test_id/submit", SubmitTest(evaluator))
	api.GET("/tests/:test_id/status", TestStatus(sessions))
	api.GET("/tests/:test_id/result", GetTestResult(st))
	api.POST("/tests/:test_id/questions/:question_id/bookmark", BookmarkQuestion(sessions))
	api.POST("/explanations", ExplainAnswer(st, explainer))
	api.POST("/company-tests", CreateCompanyTest(st, sessions, researcher, env.cache, gen, sink))
	api.GET("/companies", ListCompanies(env.cache))
	api.GET("/companies/:name/profile", GetCompanyProfile(env.cache))
	api.DELETE("/companies/:name", DeleteCompanyProfile(env.cache))

	admin := router.Group("/admin")
	admin.Use(middleware.AuthMiddleware(testSigningKey, testIssuer))
	admin.Use(middleware.RoleCheckMiddleware([]string{"admin"}))
	admin.GET("/dashboard", AdminDashboard(st, recentEvents))

	env.router = router
	return env
}

func upstreamDown(w http.ResponseWriter, r *http.Request) {
	http.Error(w, "upstream unavailable", http.StatusServiceUnavailable)
}

// chatContent responds like a chat-completions endpoint whose assistant
// message is content.
func chatContent(content string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"content": content}},
			},
		}
		_ = json.NewEncoder(w).Encode(resp)
	}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return e.doAuth(t, method, path, body, "")
}

func (e *testEnv) doAuth(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func signedToken(t *testing.T, roles ...string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   "ops@example.com",
		"roles": roles,
		"iss":   testIssuer,
		"exp":   time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSigningKey))
	require.NoError(t, err)
	return signed
}

func decodeBody[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

const uploadDocument = `1. Which structure is FIFO?
A) Stack
B) Queue

2. Which traversal visits root first?
A) Preorder
B) Inorder
`

func TestHealth(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/health", nil)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestUploadCreatesTest(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/upload", models.UploadRequest{Text: uploadDocument, SourceName: "set-3"})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[models.UploadResponse](t, w)
	assert.NotZero(t, resp.TestID)
	assert.Len(t, resp.Questions, 2)
}

func TestUploadUnparsableDocument(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/upload", models.UploadRequest{Text: "no questions here"})

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestUploadMissingBody(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/upload", map[string]string{})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadBank(t *testing.T) {
	env := newTestEnv(t, nil)
	bank := `
source_name: unit-bank
questions:
  - number: 1
    text: Pick A
    options:
      A: right
      B: wrong
`
	req := httptest.NewRequest(http.MethodPost, "/api/upload/bank", strings.NewReader(bank))
	w := httptest.NewRecorder()
	env.router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[models.UploadResponse](t, w)
	assert.Len(t, resp.Questions, 1)
	assert.Equal(t, "unit-bank", resp.Questions[0].SourceName)
}

func uploadTest(t *testing.T, env *testEnv) models.UploadResponse {
	t.Helper()
	w := env.do(t, http.MethodPost, "/api/upload", models.UploadRequest{Text: uploadDocument})
	require.Equal(t, http.StatusOK, w.Code)
	return decodeBody[models.UploadResponse](t, w)
}

func TestStartLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)
	test := uploadTest(t, env)

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/tests/%d/start", test.TestID), models.StartTestRequest{DurationMinutes: 60})
	require.Equal(t, http.StatusOK, w.Code)
	started := decodeBody[models.StartTestResponse](t, w)
	assert.Equal(t, 60, started.DurationMinutes)
	assert.Len(t, started.Questions, 2)

	// Repeated start keeps the original duration.
	w = env.do(t, http.MethodPost, fmt.Sprintf("/api/tests/%d/start", test.TestID), models.StartTestRequest{DurationMinutes: 120})
	require.Equal(t, http.StatusOK, w.Code)
	again := decodeBody[models.StartTestResponse](t, w)
	assert.Equal(t, 60, again.DurationMinutes)
}

func TestStartValidation(t *testing.T) {
	env := newTestEnv(t, nil)
	test := uploadTest(t, env)

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/tests/%d/start", test.TestID), models.StartTestRequest{DurationMinutes: 500})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = env.do(t, http.MethodPost, "/api/tests/9999/start", models.StartTestRequest{DurationMinutes: 60})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodPost, "/api/tests/abc/start", models.StartTestRequest{DurationMinutes: 60})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitAndConflict(t *testing.T) {
	keys := map[string]string{
		"Which structure is FIFO?":           "B",
		"Which traversal visits root first?": "A",
	}
	env := newTestEnv(t, keys)
	test := uploadTest(t, env)

	submission := map[int]*string{}
	for _, q := range test.Questions {
		letter := keys[q.Text]
		submission[q.ID] = &letter
	}
	answers := map[string]any{"answers": submission}

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/tests/%d/submit", test.TestID), answers)
	require.Equal(t, http.StatusOK, w.Code)
	result := decodeBody[models.SubmitResponse](t, w)
	assert.Equal(t, 2, result.CorrectCount)
	assert.Equal(t, 0, result.WrongCount)
	assert.InDelta(t, 100.0, result.Accuracy, 0.01)
	assert.Len(t, result.Details, 2)

	// Second submit of the same session is rejected.
	w = env.do(t, http.MethodPost, fmt.Sprintf("/api/tests/%d/submit", test.TestID), answers)
	assert.Equal(t, http.StatusConflict, w.Code)

	// The persisted result stays retrievable.
	w = env.do(t, http.MethodGet, fmt.Sprintf("/api/tests/%d/result", test.TestID), nil)
	require.Equal(t, http.StatusOK, w.Code)
	fetched := decodeBody[models.SubmitResponse](t, w)
	assert.Equal(t, result.ResultID, fetched.ResultID)
	assert.Equal(t, 2, fetched.CorrectCount)
}

func TestResultNotFoundBeforeSubmit(t *testing.T) {
	env := newTestEnv(t, nil)
	test := uploadTest(t, env)

	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/tests/%d/result", test.TestID), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSubmitUnknownTest(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/tests/424242/submit", map[string]any{"answers": map[int]*string{}})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRetryEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	test := uploadTest(t, env)

	w := env.do(t, http.MethodPost, fmt.Sprintf("/api/tests/%d/retry", test.TestID), nil)

	require.Equal(t, http.StatusOK, w.Code)
	retried := decodeBody[models.RetryResponse](t, w)
	assert.NotEqual(t, test.TestID, retried.TestID)
	assert.Len(t, retried.Questions, 2)
}

func TestStatusEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	test := uploadTest(t, env)

	w := env.do(t, http.MethodGet, fmt.Sprintf("/api/tests/%d/status", test.TestID), nil)

	require.Equal(t, http.StatusOK, w.Code)
	status := decodeBody[models.TestStatusResponse](t, w)
	assert.False(t, status.Submitted)
	assert.Equal(t, 2, status.RemainingCount)
}

func TestBookmarkEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	test := uploadTest(t, env)
	questionID := test.Questions[0].ID

	w := env.do(t, http.MethodPost,
		fmt.Sprintf("/api/tests/%d/questions/%d/bookmark", test.TestID, questionID),
		models.BookmarkRequest{Bookmarked: true})
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodPost,
		fmt.Sprintf("/api/tests/%d/questions/%d/bookmark", test.TestID, 9999),
		models.BookmarkRequest{Bookmarked: true})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestExplanationFallsBackWhenUnconfigured(t *testing.T) {
	env := newTestEnv(t, nil)
	test := uploadTest(t, env)

	w := env.do(t, http.MethodPost, "/api/explanations", models.ExplanationRequest{
		QuestionID:    test.Questions[0].ID,
		CorrectAnswer: "B",
	})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[models.ExplanationResponse](t, w)
	assert.Contains(t, resp.Explanation, "Explanation unavailable")
}

func TestExplanationUnknownQuestion(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/explanations", models.ExplanationRequest{
		QuestionID:    9999,
		CorrectAnswer: "A",
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCompaniesEmpty(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/api/companies", nil)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[models.CachedCompaniesResponse](t, w)
	assert.Zero(t, resp.Count)
}

func TestCompanyProfileEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.cache.Put("Acme", research.ClassifyResearch("Acme", "hard graphs")))

	w := env.do(t, http.MethodGet, "/api/companies/Acme/profile", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/companies/Unknown/profile", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUploadDuplicateQuestionText(t *testing.T) {
	env := newTestEnv(t, nil)
	// Two blocks carrying the same question text dedupe to one bank row;
	// the session must build over the collapsed set instead of failing.
	doc := `1. Which structure is FIFO?
A) Stack
B) Queue

2. Which structure is FIFO?
A) Stack
B) Queue
`

	w := env.do(t, http.MethodPost, "/api/upload", models.UploadRequest{Text: doc, SourceName: "dup-set"})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[models.UploadResponse](t, w)
	assert.Len(t, resp.Questions, 1)
}

const companyAssessmentPayload = `{
  "questions": [
    {
      "id": 1,
      "section": "aptitude",
      "type": "mcq",
      "difficulty": "Medium",
      "question": "If 3x = 12, what is x?",
      "options": ["A) 3", "B) 4", "C) 6", "D) 12"],
      "correct_answer": "B",
      "explanation": "Divide both sides by 3.",
      "topic": "Algebra",
      "time_estimate": 1
    },
    {
      "id": 2,
      "question": "Which traversal visits root first?",
      "options": ["A) Preorder", "B) Inorder", "C) Postorder", "D) Level order"],
      "correct_answer": "A"
    },
    {
      "id": 3,
      "question": "Which traversal visits root first?",
      "options": ["A) Preorder", "B) Inorder", "C) Postorder", "D) Level order"],
      "correct_answer": "A"
    }
  ]
}`

func TestCreateCompanyTest(t *testing.T) {
	env := newTestEnv(t, nil)
	env.researchHandler = chatContent("Acme interviews are hard, covering graphs and dynamic programming")
	env.generateHandler = chatContent(companyAssessmentPayload)

	w := env.do(t, http.MethodPost, "/api/company-tests", models.CompanyTestRequest{Company: "Acme"})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[models.CompanyTestResponse](t, w)
	assert.NotZero(t, resp.TestID)
	assert.Equal(t, "Acme", resp.CompanyName)
	assert.Equal(t, "Hard", resp.Difficulty)
	assert.Equal(t, 90, resp.DurationMinutes)

	// The generated set repeats one question text; the session collapses
	// it to a single link instead of failing the request.
	questions, err := env.store.SessionQuestions(context.Background(), resp.TestID)
	require.NoError(t, err)
	assert.Len(t, questions, 2)

	// The fresh research result was cached for the next run.
	_, ok := env.cache.Get("Acme")
	assert.True(t, ok)
	assert.Empty(t, env.events)
}

func TestCreateCompanyTestUsesCachedProfile(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.cache.Put("Acme", research.ClassifyResearch("Acme", "easy arrays")))
	// Research stays down; only generation is reachable.
	env.generateHandler = chatContent(companyAssessmentPayload)

	w := env.do(t, http.MethodPost, "/api/company-tests", models.CompanyTestRequest{Company: "Acme", UseCache: true})

	require.Equal(t, http.StatusOK, w.Code)
	resp := decodeBody[models.CompanyTestResponse](t, w)
	assert.Equal(t, "Easy", resp.Difficulty)
}

func TestCreateCompanyTestResearchFailure(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/company-tests", models.CompanyTestRequest{Company: "Acme"})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	require.Len(t, env.events, 1)
	assert.Equal(t, "research", env.events[0].source)
	assert.Contains(t, env.events[0].message, "Acme")
}

func TestCreateCompanyTestGenerationFailure(t *testing.T) {
	env := newTestEnv(t, nil)
	env.researchHandler = chatContent("Acme interviews are hard")

	w := env.do(t, http.MethodPost, "/api/company-tests", models.CompanyTestRequest{Company: "Acme"})

	assert.Equal(t, http.StatusBadGateway, w.Code)
	require.Len(t, env.events, 1)
	assert.Equal(t, "generator", env.events[0].source)
}

func TestCreateCompanyTestRequiresCompany(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodPost, "/api/company-tests", models.CompanyTestRequest{Company: "   "})

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAdminDashboardRequiresAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	w := env.do(t, http.MethodGet, "/admin/dashboard", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = env.doAuth(t, http.MethodGet, "/admin/dashboard", nil, signedToken(t, "viewer"))
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestAdminDashboardRenders(t *testing.T) {
	env := newTestEnv(t, nil)
	uploadTest(t, env)
	env.events = append(env.events, sinkEvent{"judge", "question 1", "backend down"})

	w := env.doAuth(t, http.MethodGet, "/admin/dashboard", nil, signedToken(t, "admin"))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "MockTest Admin Dashboard")
	assert.Contains(t, body, "backend down")
	assert.Contains(t, body, "ops@example.com")
}

func TestDeleteCompanyProfile(t *testing.T) {
	env := newTestEnv(t, nil)
	require.NoError(t, env.cache.Put("Acme", research.ClassifyResearch("Acme", "hard graphs")))

	w := env.do(t, http.MethodDelete, "/api/companies/Acme", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(t, http.MethodGet, "/api/companies/Acme/profile", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = env.do(t, http.MethodDelete, "/api/companies/Acme", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
