// Package judge adjudicates answer correctness by delegating to a
// language-model backend, with layered fallback: primary backend,
// then a secondary backend of the same family, then a deterministic
// placeholder when nothing is configured or reachable.
package judge

import (
	"context"
	"log"
	"strings"

	"mocktest-server/config"
)

// Verdict is the adjudication outcome for one question/answer pair.
type Verdict struct {
	CorrectAnswer string `json:"correct_answer"`
	IsCorrect     bool   `json:"is_correct"`
	Explanation   string `json:"explanation"`
}

// Judge decides correctness for a candidate answer. Implementations are
// network-bound; calls carry the caller's context and an internal
// per-call timeout.
type Judge interface {
	Evaluate(ctx context.Context, question string, options map[string]string, userAnswer string) (Verdict, error)
}

// EventSink receives adapter failure notices. The db package's
// adapter_events logger satisfies it via a small closure in main.
type EventSink func(source, target, message string)

// New builds the configured Judge with its fallback chain. The provider
// is chosen once here; no string dispatch happens per call.
func New(cfg config.JudgeConfig, sink EventSink) Judge {
	gate := newGate(cfg.MaxConcurrent)
	var backends []Judge

	switch strings.ToLower(cfg.Provider) {
	case "groq":
		if cfg.GroqAPIKey != "" {
			backends = append(backends,
				newChatJudge("groq", groqAPIURL, cfg.GroqAPIKey, cfg.GroqModel, cfg.Timeout, gate),
				newChatJudge("groq", groqAPIURL, cfg.GroqAPIKey, groqFallbackModel, cfg.Timeout, gate),
			)
		}
	case "perplexity":
		if cfg.PerplexityAPIKey != "" {
			backends = append(backends,
				newChatJudge("perplexity", perplexityAPIURL, cfg.PerplexityAPIKey, cfg.PerplexityModel, cfg.Timeout, gate),
				newChatJudge("perplexity", perplexityAPIURL, cfg.PerplexityAPIKey, perplexityFallbackModel, cfg.Timeout, gate),
			)
		}
	default: // gemini
		if cfg.GeminiAPIKey != "" {
			backends = append(backends,
				newGeminiJudge(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Timeout, gate),
				newGeminiJudge(cfg.GeminiAPIKey, geminiFallbackModel, cfg.Timeout, gate),
			)
		}
	}

	if sink == nil {
		sink = func(source, target, message string) {}
	}
	return &layered{backends: backends, sink: sink}
}

// layered tries each backend in order and degrades to the deterministic
// placeholder rather than surfacing backend errors.
type layered struct {
	backends []Judge
	sink     EventSink
}

func (l *layered) Evaluate(ctx context.Context, question string, options map[string]string, userAnswer string) (Verdict, error) {
	if len(l.backends) == 0 {
		return placeholderVerdict(userAnswer, "API key not configured. Using placeholder evaluation."), nil
	}
	var lastErr error
	for _, backend := range l.backends {
		verdict, err := backend.Evaluate(ctx, question, options, userAnswer)
		if err == nil {
			return verdict, nil
		}
		lastErr = err
	}
	log.Printf("All judge backends failed, using placeholder: %v", lastErr)
	l.sink("judge", truncate(question, 120), lastErr.Error())
	return placeholderVerdict(userAnswer, "Evaluation unavailable"), nil
}

// placeholderVerdict is the deterministic outcome used when no backend
// can adjudicate. Option A is declared correct, so the verdict stays
// internally consistent with the candidate's answer.
func placeholderVerdict(userAnswer, explanation string) Verdict {
	return Verdict{
		CorrectAnswer: "A",
		IsCorrect:     strings.TrimSpace(userAnswer) == "A",
		Explanation:   explanation,
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
