package handlers

import (
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"mocktest-server/evaluate"
	"mocktest-server/generator"
	"mocktest-server/ingestion"
	"mocktest-server/judge"
	"mocktest-server/models"
	"mocktest-server/research"
	"mocktest-server/session"
	"mocktest-server/store"
)

// HealthCheck reports service liveness.
// GET /health
func HealthCheck() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

// UploadText ingests extracted document text, parses MCQs out of it and
// builds a shuffled session over them.
// POST /api/upload
func UploadText(st store.Store, svc *session.Service, extractor *judge.Extractor) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.UploadRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		questions := ingestion.ParseQuestionsFromText(req.Text)
		if len(questions) == 0 {
			// Regex parsing found nothing; fall back to LLM extraction.
			extracted, err := extractor.Extract(c.Request.Context(), req.Text)
			if err != nil {
				log.Printf("LLM extraction failed: %v", err)
			}
			questions = extracted
		}
		if len(questions) == 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "No questions could be extracted from the document"})
			return
		}

		for i := range questions {
			questions[i].SourceName = req.SourceName
			if err := st.UpsertQuestion(c.Request.Context(), &questions[i]); err != nil {
				log.Printf("Error saving question: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save questions"})
				return
			}
		}

		sess, err := svc.Build(c.Request.Context(), questions)
		if err != nil {
			log.Printf("Error building session: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create test"})
			return
		}
		ordered, err := svc.Questions(c.Request.Context(), sess.ID)
		if err != nil {
			log.Printf("Error loading session questions: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load test questions"})
			return
		}
		c.JSON(http.StatusOK, models.UploadResponse{TestID: sess.ID, Questions: ordered})
	}
}

// UploadBank ingests a YAML question bank and builds a session from it.
// POST /api/upload/bank
func UploadBank(st store.Store, svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		data, err := c.GetRawData()
		if err != nil || len(data) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Request body required"})
			return
		}

		sourceName, questions, err := ingestion.ParseYAMLBank(data)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid question bank: %v", err)})
			return
		}
		if len(questions) == 0 {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Question bank contains no questions"})
			return
		}

		for i := range questions {
			if questions[i].SourceName == "" {
				questions[i].SourceName = sourceName
			}
			if err := st.UpsertQuestion(c.Request.Context(), &questions[i]); err != nil {
				log.Printf("Error saving bank question: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save questions"})
				return
			}
		}

		sess, err := svc.Build(c.Request.Context(), questions)
		if err != nil {
			log.Printf("Error building session from bank: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create test"})
			return
		}
		ordered, err := svc.Questions(c.Request.Context(), sess.ID)
		if err != nil {
			log.Printf("Error loading session questions: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load test questions"})
			return
		}
		c.JSON(http.StatusOK, models.UploadResponse{TestID: sess.ID, Questions: ordered})
	}
}

// StartTest starts the countdown for a session. Calling it again on an
// already-started session returns the original start state unchanged.
// POST /api/tests/:test_id/start
func StartTest(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		testID, ok := parseIDParam(c, "test_id")
		if !ok {
			return
		}
		var req models.StartTestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "duration_minutes must be between 1 and 240"})
			return
		}

		sess, err := svc.Start(c.Request.Context(), testID, req.DurationMinutes)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Test not found"})
			case errors.Is(err, session.ErrInvalidDuration):
				c.JSON(http.StatusBadRequest, gin.H{"error": "duration_minutes must be between 1 and 240"})
			default:
				log.Printf("Error starting test %d: %v", testID, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to start test"})
			}
			return
		}

		questions, err := svc.Questions(c.Request.Context(), testID)
		if err != nil {
			log.Printf("Error loading questions for test %d: %v", testID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load test questions"})
			return
		}
		duration := 0
		if sess.DurationMinutes != nil {
			duration = *sess.DurationMinutes
		}
		c.JSON(http.StatusOK, models.StartTestResponse{
			TestID:          sess.ID,
			DurationMinutes: duration,
			Questions:       questions,
		})
	}
}

// RetryTest builds a fresh independently-shuffled session over the same
// questions. The original session and its result are untouched.
// POST /api/tests/:test_id/retry
func RetryTest(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		testID, ok := parseIDParam(c, "test_id")
		if !ok {
			return
		}
		sess, err := svc.Retry(c.Request.Context(), testID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Test not found"})
				return
			}
			log.Printf("Error retrying test %d: %v", testID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retry test"})
			return
		}
		questions, err := svc.Questions(c.Request.Context(), sess.ID)
		if err != nil {
			log.Printf("Error loading questions for retry of test %d: %v", testID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load test questions"})
			return
		}
		c.JSON(http.StatusOK, models.RetryResponse{TestID: sess.ID, Questions: questions})
	}
}

// SubmitTest grades a session and persists the result. A session can be
// submitted exactly once.
// POST /api/tests/:test_id/submit
func SubmitTest(ev *evaluate.Evaluator) gin.HandlerFunc {
	return func(c *gin.Context) {
		testID, ok := parseIDParam(c, "test_id")
		if !ok {
			return
		}
		var req models.SubmitRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}

		result, err := ev.Evaluate(c.Request.Context(), testID, req.Answers)
		if err != nil {
			switch {
			case errors.Is(err, store.ErrNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "Test not found"})
			case errors.Is(err, evaluate.ErrAlreadySubmitted):
				c.JSON(http.StatusConflict, gin.H{"error": "Test has already been submitted"})
			default:
				log.Printf("Error evaluating test %d: %v", testID, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to evaluate test"})
			}
			return
		}

		c.JSON(http.StatusOK, models.SubmitResponse{
			ResultID:     result.ID,
			TestID:       result.TestID,
			Score:        result.Score,
			Accuracy:     result.Accuracy,
			CorrectCount: result.CorrectCount,
			WrongCount:   result.WrongCount,
			Details:      result.Details,
		})
	}
}

// GetTestResult returns the persisted result of a submitted session.
// GET /api/tests/:test_id/result
func GetTestResult(st store.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		testID, ok := parseIDParam(c, "test_id")
		if !ok {
			return
		}
		result, err := st.GetResult(c.Request.Context(), testID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "No result for test"})
				return
			}
			log.Printf("Error loading result for test %d: %v", testID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load result"})
			return
		}
		c.JSON(http.StatusOK, models.SubmitResponse{
			ResultID:     result.ID,
			TestID:       result.TestID,
			Score:        result.Score,
			Accuracy:     result.Accuracy,
			CorrectCount: result.CorrectCount,
			WrongCount:   result.WrongCount,
			Details:      result.Details,
		})
	}
}

// TestStatus reports answered/remaining counts and time left.
// GET /api/tests/:test_id/status
func TestStatus(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		testID, ok := parseIDParam(c, "test_id")
		if !ok {
			return
		}
		status, err := svc.Status(c.Request.Context(), testID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Test not found"})
				return
			}
			log.Printf("Error fetching status for test %d: %v", testID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch test status"})
			return
		}
		c.JSON(http.StatusOK, status)
	}
}

// BookmarkQuestion flags or unflags a question within a session.
// POST /api/tests/:test_id/questions/:question_id/bookmark
func BookmarkQuestion(svc *session.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		testID, ok := parseIDParam(c, "test_id")
		if !ok {
			return
		}
		questionID, ok := parseIDParam(c, "question_id")
		if !ok {
			return
		}
		req := models.BookmarkRequest{Bookmarked: true}
		if c.Request.ContentLength > 0 {
			if err := c.ShouldBindJSON(&req); err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
				return
			}
		}

		if err := svc.Bookmark(c.Request.Context(), testID, questionID, req.Bookmarked); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Question not found in test"})
				return
			}
			log.Printf("Error bookmarking question %d in test %d: %v", questionID, testID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update bookmark"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"test_id": testID, "question_id": questionID, "bookmarked": req.Bookmarked})
	}
}

// ExplainAnswer generates a short explanation for a graded question.
// POST /api/explanations
func ExplainAnswer(st store.Store, explainer *judge.Explainer) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ExplanationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		question, err := st.GetQuestion(c.Request.Context(), req.QuestionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "Question not found"})
				return
			}
			log.Printf("Error loading question %d: %v", req.QuestionID, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load question"})
			return
		}
		explanation := explainer.Explain(c.Request.Context(), question.Text, question.Options, req.CorrectAnswer)
		c.JSON(http.StatusOK, models.ExplanationResponse{
			QuestionID:  req.QuestionID,
			Explanation: explanation,
		})
	}
}

// CreateCompanyTest researches a company's hiring profile, synthesizes a
// matching assessment and builds a timed session over it. Upstream
// adapter failures are reported through sink and mapped to 502.
// POST /api/company-tests
func CreateCompanyTest(st store.Store, svc *session.Service, researcher *research.Researcher, cache *research.Cache, gen *generator.Generator, sink judge.EventSink) gin.HandlerFunc {
	if sink == nil {
		sink = func(source, target, message string) {}
	}
	return func(c *gin.Context) {
		var req models.CompanyTestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		companyName := strings.TrimSpace(req.Company)
		if companyName == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "company is required"})
			return
		}

		var profile research.Profile
		var err error
		if req.UseCache {
			profile, err = cache.GetOrFetch(c.Request.Context(), companyName, researcher.Research)
		} else {
			profile, err = researcher.Research(c.Request.Context(), companyName)
			if err == nil {
				if cacheErr := cache.Put(companyName, profile); cacheErr != nil {
					log.Printf("Failed to cache profile for %s: %v", companyName, cacheErr)
				}
			}
		}
		if err != nil {
			log.Printf("Research failed for %s: %v", companyName, err)
			sink("research", "perplexity", fmt.Sprintf("research failed for %s: %v", companyName, err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "Company research failed"})
			return
		}

		assessment, err := gen.Generate(c.Request.Context(), profile)
		if err != nil {
			log.Printf("Assessment generation failed for %s: %v", companyName, err)
			sink("generator", "groq", fmt.Sprintf("generation failed for %s: %v", companyName, err))
			c.JSON(http.StatusBadGateway, gin.H{"error": "Assessment generation failed"})
			return
		}

		questions := make([]models.Question, 0, len(assessment.Questions))
		for _, gq := range assessment.Questions {
			q := models.Question{
				Number:     gq.ID,
				Text:       gq.Question,
				Options:    models.NormalizeOptions(gq.Options),
				SourceName: "company:" + companyName,
			}
			if err := st.UpsertQuestion(c.Request.Context(), &q); err != nil {
				log.Printf("Error saving generated question: %v", err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save generated questions"})
				return
			}
			questions = append(questions, q)
		}

		sess, err := svc.BuildWithDuration(c.Request.Context(), questions, assessment.TimeLimitMinutes)
		if err != nil {
			log.Printf("Error building company test session: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create test"})
			return
		}

		c.JSON(http.StatusOK, models.CompanyTestResponse{
			TestID:          sess.ID,
			CompanyName:     assessment.CompanyName,
			TotalQuestions:  assessment.TotalQuestions,
			Difficulty:      assessment.Difficulty,
			DurationMinutes: assessment.TimeLimitMinutes,
		})
	}
}

// ListCompanies enumerates companies with cached research profiles.
// GET /api/companies
func ListCompanies(cache *research.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		companies := cache.List()
		c.JSON(http.StatusOK, models.CachedCompaniesResponse{
			Companies: companies,
			Count:     len(companies),
		})
	}
}

// GetCompanyProfile returns one cached research profile.
// GET /api/companies/:name/profile
func GetCompanyProfile(cache *research.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		profile, ok := cache.Get(name)
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"error": "No cached profile for company"})
			return
		}
		c.JSON(http.StatusOK, profile)
	}
}

// DeleteCompanyProfile evicts one cached research profile, forcing a
// re-research on the next company test.
// DELETE /api/companies/:name
func DeleteCompanyProfile(cache *research.Cache) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		deleted, err := cache.Delete(name)
		if err != nil {
			log.Printf("Error deleting cached profile for %s: %v", name, err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete cached profile"})
			return
		}
		if !deleted {
			c.JSON(http.StatusNotFound, gin.H{"error": "No cached profile for company"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"deleted": name})
	}
}

// parseIDParam reads a positive integer path parameter, responding with
// 400 itself when the value is malformed.
func parseIDParam(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid %s", name)})
		return 0, false
	}
	return id, true
}
