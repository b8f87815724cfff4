package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const geminiAPIBase = "https://generativelanguage.googleapis.com/v1beta/models"

type geminiRequest struct {
	Contents         []geminiContent        `json:"contents"`
	GenerationConfig geminiGenerationConfig `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// geminiJudge adjudicates through the Gemini generateContent REST API.
type geminiJudge struct {
	httpClient *http.Client
	apiKey     string
	model      string
	timeout    time.Duration
	gate       gate
}

func newGeminiJudge(apiKey, model string, timeout time.Duration, g gate) *geminiJudge {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &geminiJudge{
		httpClient: &http.Client{Timeout: timeout},
		apiKey:     apiKey,
		model:      model,
		timeout:    timeout,
		gate:       g,
	}
}

func (j *geminiJudge) Evaluate(ctx context.Context, question string, options map[string]string, userAnswer string) (Verdict, error) {
	raw, err := j.generate(ctx, evaluationPrompt(question, options, userAnswer))
	if err != nil {
		return Verdict{}, fmt.Errorf("gemini: %w", err)
	}
	verdict, err := decodeVerdict(raw)
	if err != nil {
		return Verdict{}, fmt.Errorf("gemini: %w", err)
	}
	return verdict, nil
}

func (j *geminiJudge) generate(ctx context.Context, prompt string) (string, error) {
	if j.apiKey == "" {
		return "", fmt.Errorf("API key not configured")
	}
	if err := j.gate.acquire(ctx); err != nil {
		return "", err
	}
	defer j.gate.release()

	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Parts: []geminiPart{{Text: prompt}}}},
		GenerationConfig: geminiGenerationConfig{
			Temperature:      0.2,
			ResponseMimeType: "application/json",
		},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/%s:generateContent?key=%s", geminiAPIBase, j.model, j.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := j.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, truncate(string(respBody), 300))
	}

	var geminiResp geminiResponse
	if err := json.Unmarshal(respBody, &geminiResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}
	if geminiResp.Error != nil {
		return "", fmt.Errorf("API error: %s", geminiResp.Error.Message)
	}
	if len(geminiResp.Candidates) == 0 || len(geminiResp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("empty response from Gemini")
	}
	return geminiResp.Candidates[0].Content.Parts[0].Text, nil
}
