package judge

import (
	"context"
	"fmt"
	"log"
	"strings"

	"mocktest-server/config"
	"mocktest-server/models"
)

// Explainer produces post-hoc answer explanations, outside the main
// evaluation flow.
type Explainer struct {
	client *chatClient
}

// NewExplainer builds the explanation capability on the Groq backend.
func NewExplainer(cfg config.JudgeConfig) *Explainer {
	gate := newGate(cfg.MaxConcurrent)
	return &Explainer{
		client: newChatClient(groqAPIURL, cfg.GroqAPIKey, cfg.GroqModel, cfg.Timeout, gate),
	}
}

const explainerSystemPrompt = "You are a concise exam explanation expert. Answer in 2-3 sentences."

// Explain returns a short explanation of why correctAnswer is right.
// Degrades to a fixed text when the backend is unconfigured or fails.
func (e *Explainer) Explain(ctx context.Context, question string, options map[string]string, correctAnswer string) string {
	prompt := fmt.Sprintf(
		"Explain why this answer is correct. Max 3 sentences, simple language.\nQuestion: %s\nOptions: %s\nCorrect Answer: %s\n",
		question, formatOptions(options), correctAnswer,
	)
	text, err := e.client.Chat(ctx, explainerSystemPrompt, prompt, 0.3, 300)
	if err != nil {
		log.Printf("Explanation backend failed: %v", err)
		return "Explanation unavailable. Please review the question and options."
	}
	return strings.TrimSpace(text)
}

// Extractor pulls MCQs out of free text when the regex parser finds
// nothing. It shares the judge's provider configuration.
type Extractor struct {
	gemini *geminiJudge
	chat   *chatClient
}

// NewExtractor builds the LLM extraction capability. Gemini is used
// when configured, otherwise the Groq chat endpoint.
func NewExtractor(cfg config.JudgeConfig) *Extractor {
	gate := newGate(cfg.MaxConcurrent)
	ex := &Extractor{}
	if cfg.GeminiAPIKey != "" {
		ex.gemini = newGeminiJudge(cfg.GeminiAPIKey, cfg.GeminiModel, cfg.Timeout, gate)
	} else if cfg.GroqAPIKey != "" {
		ex.chat = newChatClient(groqAPIURL, cfg.GroqAPIKey, cfg.GroqModel, cfg.Timeout, gate)
	}
	return ex
}

// extractionPromptLimit bounds how much document text is sent upstream.
const extractionPromptLimit = 12000

type extractedQuestion struct {
	Number  int               `json:"number"`
	Text    string            `json:"text"`
	Options map[string]string `json:"options"`
}

// Extract asks the model for all MCQs in the text. Returns an empty
// slice (no error) when no backend is configured.
func (e *Extractor) Extract(ctx context.Context, text string) ([]models.Question, error) {
	if e.gemini == nil && e.chat == nil {
		return nil, nil
	}

	prompt := fmt.Sprintf(
		"Extract all multiple-choice questions from the given text.\n"+
			"Return ONLY JSON as a list of objects with keys: number, text, options.\n"+
			"options must be an object with keys A, B, C, D.\n"+
			"Text: %s", truncate(text, extractionPromptLimit),
	)

	var raw string
	var err error
	if e.gemini != nil {
		raw, err = e.gemini.generate(ctx, prompt)
	} else {
		raw, err = e.chat.Chat(ctx, "You extract exam questions from documents.", prompt, 0.2, 0)
	}
	if err != nil {
		return nil, fmt.Errorf("extraction backend failed: %w", err)
	}

	var extracted []extractedQuestion
	if err := RecoverJSON(raw, &extracted); err != nil {
		return nil, fmt.Errorf("extraction response: %w", err)
	}

	questions := make([]models.Question, 0, len(extracted))
	for i, item := range extracted {
		number := item.Number
		if number == 0 {
			number = i + 1
		}
		questions = append(questions, models.Question{
			Number:  number,
			Text:    strings.TrimSpace(item.Text),
			Options: item.Options,
		})
	}
	return questions, nil
}
