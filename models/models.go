package models

import (
	"strings"
	"time"
)

// Question is an MCQ record. Immutable once stored, except for a one-time
// normalization of legacy list-form options into the letter map.
type Question struct {
	ID         int               `json:"id"`
	Number     int               `json:"number"`
	Text       string            `json:"text"`
	Options    map[string]string `json:"options,omitempty"`
	SourceName string            `json:"source_name,omitempty"`
}

// TestSession is one presentation of a question set to a candidate.
type TestSession struct {
	ID              int        `json:"test_id"`
	TotalQuestions  int        `json:"total_questions"`
	DurationMinutes *int       `json:"duration_minutes,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	StartedAt       *time.Time `json:"started_at,omitempty"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
}

// TestQuestion links a question into a session at a fixed position.
// OrderIndex values form a dense 0..N-1 sequence within a session.
type TestQuestion struct {
	ID         int  `json:"id"`
	TestID     int  `json:"test_id"`
	QuestionID int  `json:"question_id"`
	OrderIndex int  `json:"order_index"`
	Bookmarked bool `json:"bookmarked"`
}

// Answer is the candidate's submitted choice for one question in one
// session. SelectedOption is nil when the question was left unanswered.
type Answer struct {
	ID             int     `json:"id"`
	TestID         int     `json:"test_id"`
	QuestionID     int     `json:"question_id"`
	SelectedOption *string `json:"selected_option"`
}

// ResultDetail is the per-question outcome inside a Result, in the
// session's order_index order.
type ResultDetail struct {
	QuestionID    int     `json:"question_id"`
	UserAnswer    *string `json:"user_answer"`
	CorrectAnswer string  `json:"correct_answer"`
	IsCorrect     bool    `json:"is_correct"`
	Explanation   string  `json:"explanation"`
}

// Result is the graded outcome of a session. At most one per session.
type Result struct {
	ID           int            `json:"result_id"`
	TestID       int            `json:"test_id"`
	Score        float64        `json:"score"`
	CorrectCount int            `json:"correct_count"`
	WrongCount   int            `json:"wrong_count"`
	Accuracy     float64        `json:"accuracy"`
	Details      []ResultDetail `json:"details"`
	CreatedAt    time.Time      `json:"created_at"`
}

// NormalizeOptions converts the legacy list-of-strings option form
// ("A) text") into the canonical letter map. Entries without a
// recognizable letter prefix are skipped.
func NormalizeOptions(raw []string) map[string]string {
	options := make(map[string]string, len(raw))
	for _, entry := range raw {
		letter, text, ok := strings.Cut(entry, ")")
		if !ok {
			continue
		}
		letter = strings.TrimSpace(letter)
		if letter == "" {
			continue
		}
		options[letter] = strings.TrimSpace(text)
	}
	return options
}

// UploadRequest carries extracted document text. PDF/OCR extraction
// happens upstream; this service receives plain text.
type UploadRequest struct {
	Text       string `json:"text" binding:"required"`
	SourceName string `json:"source_name"`
}

// UploadResponse returns the created session and its questions in
// presentation order.
type UploadResponse struct {
	TestID    int        `json:"test_id"`
	Questions []Question `json:"questions"`
}

// StartTestRequest starts the countdown for a session.
type StartTestRequest struct {
	DurationMinutes int `json:"duration_minutes" binding:"required,gte=1,lte=240"`
}

// StartTestResponse echoes the session after the start transition.
type StartTestResponse struct {
	TestID          int        `json:"test_id"`
	DurationMinutes int        `json:"duration_minutes"`
	Questions       []Question `json:"questions"`
}

// SubmitRequest maps question IDs to the candidate's selected option.
// A nil value means the question was left unanswered.
type SubmitRequest struct {
	Answers map[int]*string `json:"answers" binding:"required"`
}

// SubmitResponse is the graded result for a submitted session.
type SubmitResponse struct {
	ResultID     int            `json:"result_id"`
	TestID       int            `json:"test_id"`
	Score        float64        `json:"score"`
	Accuracy     float64        `json:"accuracy"`
	CorrectCount int            `json:"correct_count"`
	WrongCount   int            `json:"wrong_count"`
	Details      []ResultDetail `json:"details"`
}

// RetryResponse returns the fresh session built from an existing
// session's question pool.
type RetryResponse struct {
	TestID    int        `json:"test_id"`
	Questions []Question `json:"questions"`
}

// TestStatusResponse reports session progress for polling clients.
type TestStatusResponse struct {
	Submitted      bool   `json:"submitted"`
	AnsweredCount  int    `json:"answered_count"`
	RemainingCount int    `json:"remaining_count"`
	TimeRemaining  string `json:"time_remaining"`
}

// BookmarkRequest flags a question for later review within a session.
type BookmarkRequest struct {
	Bookmarked bool `json:"bookmarked"`
}

// ExplanationRequest asks for a post-hoc explanation of a correct answer.
type ExplanationRequest struct {
	QuestionID    int    `json:"question_id" binding:"required"`
	CorrectAnswer string `json:"correct_answer" binding:"required"`
}

// ExplanationResponse carries the generated explanation text.
type ExplanationResponse struct {
	QuestionID  int    `json:"question_id"`
	Explanation string `json:"explanation"`
}

// CompanyTestRequest asks for a synthesized assessment mimicking a
// company's hiring-test pattern.
type CompanyTestRequest struct {
	Company  string `json:"company" binding:"required"`
	UseCache bool   `json:"use_cache"`
}

// CompanyTestResponse summarizes the generated assessment session.
type CompanyTestResponse struct {
	TestID          int    `json:"test_id"`
	CompanyName     string `json:"company_name"`
	TotalQuestions  int    `json:"total_questions"`
	Difficulty      string `json:"difficulty"`
	DurationMinutes int    `json:"duration_minutes"`
}

// CachedCompaniesResponse lists companies with cached research profiles.
type CachedCompaniesResponse struct {
	Companies []string `json:"companies"`
	Count     int      `json:"count"`
}

// AdapterEvent records a judge/research/generation backend failure for
// the admin dashboard.
type AdapterEvent struct {
	ID        int       `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Source    string    `json:"source"`
	Target    string    `json:"target"`
	Message   string    `json:"message"`
}
