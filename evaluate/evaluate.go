// Package evaluate grades a submitted answer set by delegating
// per-question correctness to the judge adapter and persisting the
// aggregated result.
package evaluate

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"mocktest-server/judge"
	"mocktest-server/models"
	"mocktest-server/store"
)

// ErrAlreadySubmitted is returned when a session that already has a
// result is submitted again.
var ErrAlreadySubmitted = errors.New("session already submitted")

// fallbackExplanation is the deterministic text recorded when a judge
// call fails outright.
const fallbackExplanation = "Evaluation failed. Please check judge configuration."

// Evaluator grades submissions. Safe for concurrent use across
// different sessions; concurrent submission of the same session is a
// caller error and is rejected via the duplicate-result guard.
type Evaluator struct {
	store store.Store
	judge judge.Judge
	sink  judge.EventSink
}

// New builds an Evaluator. Judge failures during grading are reported
// through sink, tagged with the evaluation's job ID for correlation.
func New(st store.Store, j judge.Judge, sink judge.EventSink) *Evaluator {
	if sink == nil {
		sink = func(source, target, message string) {}
	}
	return &Evaluator{store: st, judge: j, sink: sink}
}

// Evaluate grades the session's questions in order_index order, one
// judge call per question. A failed judge call records an adapter event
// and produces the fallback outcome for that question; it never aborts
// the session. Answers, the result and the submitted_at stamp are
// committed together.
func (e *Evaluator) Evaluate(ctx context.Context, testID int, answers map[int]*string) (models.Result, error) {
	session, err := e.store.GetSession(ctx, testID)
	if err != nil {
		return models.Result{}, err
	}
	if session.SubmittedAt != nil {
		return models.Result{}, ErrAlreadySubmitted
	}

	questions, err := e.store.SessionQuestions(ctx, testID)
	if err != nil {
		return models.Result{}, err
	}

	jobID := uuid.NewString()
	log.Printf("Evaluating session %d (%d questions, job %s)", testID, len(questions), jobID)

	details := make([]models.ResultDetail, 0, len(questions))
	answerRows := make([]models.Answer, 0, len(questions))
	correctCount := 0

	for _, question := range questions {
		userAnswer := answers[question.ID]
		submitted := ""
		if userAnswer != nil {
			submitted = *userAnswer
		}

		options := question.Options
		if options == nil {
			options = map[string]string{}
		}

		verdict, err := e.judge.Evaluate(ctx, question.Text, options, submitted)
		if err != nil {
			log.Printf("Judge failed for question %d (job %s): %v", question.ID, jobID, err)
			e.sink("evaluator", fmt.Sprintf("question %d", question.ID), fmt.Sprintf("job %s: %v", jobID, err))
			verdict = judge.Verdict{
				CorrectAnswer: "A",
				IsCorrect:     false,
				Explanation:   fallbackExplanation,
			}
		}

		if verdict.IsCorrect {
			correctCount++
		}

		details = append(details, models.ResultDetail{
			QuestionID:    question.ID,
			UserAnswer:    userAnswer,
			CorrectAnswer: verdict.CorrectAnswer,
			IsCorrect:     verdict.IsCorrect,
			Explanation:   verdict.Explanation,
		})
		answerRows = append(answerRows, models.Answer{
			TestID:         testID,
			QuestionID:     question.ID,
			SelectedOption: userAnswer,
		})
	}

	total := len(questions)
	accuracy := 0.0
	if total > 0 {
		accuracy = float64(correctCount) / float64(total) * 100
	}

	now := time.Now().UTC()
	result := models.Result{
		TestID:       testID,
		Score:        float64(correctCount),
		CorrectCount: correctCount,
		WrongCount:   total - correctCount,
		Accuracy:     accuracy,
		Details:      details,
		CreatedAt:    now,
	}

	if err := e.store.SaveEvaluation(ctx, &result, answerRows, now); err != nil {
		if errors.Is(err, store.ErrDuplicateResult) {
			return models.Result{}, ErrAlreadySubmitted
		}
		return models.Result{}, err
	}

	log.Printf("Session %d graded: %d/%d correct, accuracy %.1f%% (job %s)",
		testID, correctCount, total, accuracy, jobID)
	return result, nil
}
