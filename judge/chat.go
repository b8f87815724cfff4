package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"
)

const (
	groqAPIURL       = "https://api.groq.com/openai/v1/chat/completions"
	perplexityAPIURL = "https://api.perplexity.ai/chat/completions"

	groqFallbackModel       = "llama-3.1-8b-instant"
	perplexityFallbackModel = "sonar"
	geminiFallbackModel     = "gemini-1.5-flash"
)

// gate bounds concurrent upstream calls so one stalled backend cannot
// absorb unbounded goroutines.
type gate chan struct{}

func newGate(n int) gate {
	if n <= 0 {
		n = 8
	}
	return make(gate, n)
}

func (g gate) acquire(ctx context.Context) error {
	select {
	case g <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (g gate) release() { <-g }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// chatClient talks to an OpenAI-compatible chat-completions endpoint
// (Groq, Perplexity).
type chatClient struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	model      string
	timeout    time.Duration
	gate       gate
}

func newChatClient(apiURL, apiKey, model string, timeout time.Duration, g gate) *chatClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &chatClient{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     apiURL,
		apiKey:     apiKey,
		model:      model,
		timeout:    timeout,
		gate:       g,
	}
}

// Chat sends a system+user prompt pair and returns the assistant content.
func (c *chatClient) Chat(ctx context.Context, system, user string, temperature float64, maxTokens int) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("API key not configured for %s", c.apiURL)
	}
	if err := c.gate.acquire(ctx); err != nil {
		return "", err
	}
	defer c.gate.release()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("chat API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read chat response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat API returned status %d: %s", resp.StatusCode, truncate(string(respBody), 300))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return "", fmt.Errorf("failed to parse chat response: %w", err)
	}
	if chatResp.Error != nil {
		return "", fmt.Errorf("chat API error: %s", chatResp.Error.Message)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from chat API")
	}
	return chatResp.Choices[0].Message.Content, nil
}

// chatJudge adjudicates through an OpenAI-compatible endpoint.
type chatJudge struct {
	name   string
	client *chatClient
}

func newChatJudge(name, apiURL, apiKey, model string, timeout time.Duration, g gate) *chatJudge {
	return &chatJudge{name: name, client: newChatClient(apiURL, apiKey, model, timeout, g)}
}

const evaluatorSystemPrompt = "You are a precise exam evaluator."

func (j *chatJudge) Evaluate(ctx context.Context, question string, options map[string]string, userAnswer string) (Verdict, error) {
	raw, err := j.client.Chat(ctx, evaluatorSystemPrompt, evaluationPrompt(question, options, userAnswer), 0.2, 300)
	if err != nil {
		return Verdict{}, fmt.Errorf("%s: %w", j.name, err)
	}
	verdict, err := decodeVerdict(raw)
	if err != nil {
		return Verdict{}, fmt.Errorf("%s: %w", j.name, err)
	}
	return verdict, nil
}

// evaluationPrompt asks for a bare JSON verdict. The response often
// arrives wrapped in code fences anyway; decodeVerdict recovers it.
func evaluationPrompt(question string, options map[string]string, userAnswer string) string {
	var b strings.Builder
	b.WriteString("You are an exam evaluator.\n")
	b.WriteString("Given the question, options, and a user answer, return ONLY JSON in this format:")
	b.WriteString(`{"correct_answer":"A","is_correct":true,"explanation":"..."}.` + "\n")
	b.WriteString("Choose the correct option letter. Keep explanation to 3-4 lines.\n\n")
	fmt.Fprintf(&b, "Question: %s\n", question)
	fmt.Fprintf(&b, "Options: %s\n", formatOptions(options))
	fmt.Fprintf(&b, "User Answer: %s\n", userAnswer)
	return b.String()
}

// formatOptions renders the option map in letter order so prompts are
// stable across calls.
func formatOptions(options map[string]string) string {
	if len(options) == 0 {
		return "(none)"
	}
	letters := make([]string, 0, len(options))
	for letter := range options {
		letters = append(letters, letter)
	}
	sort.Strings(letters)

	parts := make([]string, 0, len(letters))
	for _, letter := range letters {
		parts = append(parts, fmt.Sprintf("%s) %s", letter, options[letter]))
	}
	return strings.Join(parts, " | ")
}
