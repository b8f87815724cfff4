// Package generator synthesizes company-style MCQ assessments with a
// language model, following a researched hiring profile.
package generator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"mocktest-server/config"
	"mocktest-server/judge"
	"mocktest-server/research"
)

const groqAPIURL = "https://api.groq.com/openai/v1/chat/completions"

// GeneratedQuestion is one synthesized MCQ. Options arrive in the legacy
// list form ("A) text"); callers normalize before storage.
type GeneratedQuestion struct {
	ID            int      `json:"id"`
	Section       string   `json:"section"`
	Type          string   `json:"type"`
	Difficulty    string   `json:"difficulty"`
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer string   `json:"correct_answer"`
	Explanation   string   `json:"explanation"`
	Topic         string   `json:"topic"`
	TimeEstimate  int      `json:"time_estimate"`
}

// Assessment is a complete synthesized test.
type Assessment struct {
	CompanyName      string              `json:"company_name"`
	Difficulty       string              `json:"difficulty"`
	TotalQuestions   int                 `json:"total_questions"`
	TimeLimitMinutes int                 `json:"time_limit_minutes"`
	Questions        []GeneratedQuestion `json:"questions"`
	Sections         map[string]int      `json:"sections"`
}

// Generator calls the Groq chat API. Assessment generation has no safe
// fallback content, so failures surface to the caller.
type Generator struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	model      string
}

func New(cfg config.GeneratorConfig) *Generator {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = groqAPIURL
	}
	return &Generator{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     apiURL,
		apiKey:     cfg.GroqAPIKey,
		model:      cfg.GroqModel,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Generate synthesizes a full assessment following the profile.
func (g *Generator) Generate(ctx context.Context, profile research.Profile) (Assessment, error) {
	if g.apiKey == "" {
		return Assessment{}, fmt.Errorf("groq API key not configured")
	}

	log.Printf("Generating assessment for %s (model %s)", profile.CompanyName, g.model)

	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: "You are an expert at creating realistic campus online assessments. You MUST respond with ONLY valid JSON, no other text. Generate exactly what is requested. Keep explanations concise (max 2 sentences)."},
			{Role: "user", Content: buildAssessmentPrompt(profile)},
		},
		Temperature: 0.7,
		MaxTokens:   32000,
	})
	if err != nil {
		return Assessment{}, fmt.Errorf("failed to marshal generation request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewReader(body))
	if err != nil {
		return Assessment{}, fmt.Errorf("failed to create generation request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Assessment{}, fmt.Errorf("generation request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Assessment{}, fmt.Errorf("failed to read generation response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Assessment{}, fmt.Errorf("generation API returned status %d: %s", resp.StatusCode, string(respBody[:min(len(respBody), 300)]))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Assessment{}, fmt.Errorf("failed to parse generation response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Assessment{}, fmt.Errorf("empty generation response")
	}

	content := parsed.Choices[0].Message.Content
	if len(content) < 100 {
		return Assessment{}, fmt.Errorf("generation response too short (%d chars)", len(content))
	}

	var raw Assessment
	if err := judge.RecoverJSON(content, &raw); err != nil {
		return Assessment{}, fmt.Errorf("generation payload: %w", err)
	}
	return StructureAssessment(raw, profile)
}

// StructureAssessment validates generated output and fills defaults for
// missing per-question fields.
func StructureAssessment(raw Assessment, profile research.Profile) (Assessment, error) {
	if len(raw.Questions) == 0 {
		return Assessment{}, fmt.Errorf("invalid assessment: no questions generated")
	}
	if len(raw.Questions) < 40 {
		log.Printf("Only %d questions generated, expected 50", len(raw.Questions))
	}

	sections := map[string]int{}
	questions := make([]GeneratedQuestion, 0, len(raw.Questions))
	for i, q := range raw.Questions {
		q.ID = i + 1
		if q.Section == "" {
			q.Section = "dsa_coding"
		}
		if q.Type == "" {
			q.Type = "mcq"
		}
		if q.Difficulty == "" {
			q.Difficulty = "Medium"
		}
		if strings.TrimSpace(q.Question) == "" {
			q.Question = fmt.Sprintf("Question %d", i+1)
		}
		if len(q.Options) == 0 {
			q.Options = []string{"A) Option 1", "B) Option 2", "C) Option 3", "D) Option 4"}
		}
		if q.CorrectAnswer == "" {
			q.CorrectAnswer = "A"
		}
		if q.Explanation == "" {
			q.Explanation = "No explanation provided"
		}
		if q.Topic == "" {
			q.Topic = "General"
		}
		if q.TimeEstimate == 0 {
			q.TimeEstimate = 2
		}
		sections[q.Section]++
		questions = append(questions, q)
	}

	return Assessment{
		CompanyName:      profile.CompanyName,
		Difficulty:       profile.DifficultyLevel,
		TotalQuestions:   len(questions),
		TimeLimitMinutes: 90,
		Questions:        questions,
		Sections:         sections,
	}, nil
}

// buildAssessmentPrompt renders the generation prompt from the profile.
func buildAssessmentPrompt(profile research.Profile) string {
	aptitude := profile.Sections["aptitude"].Count
	coreCS := profile.Sections["core_cs"].Count
	dsa := profile.Sections["dsa"].Count + profile.Sections["coding"].Count
	if aptitude == 0 {
		aptitude = 15
	}
	if coreCS == 0 {
		coreCS = 15
	}
	if dsa == 0 {
		dsa = 20
	}

	topics := profile.DSATopics
	if len(topics) > 10 {
		topics = topics[:10]
	}
	var topicLines strings.Builder
	for _, topic := range topics {
		fmt.Fprintf(&topicLines, "- %s\n", topic)
	}

	return fmt.Sprintf(`Generate a complete online assessment test similar to %[1]s's actual campus hiring process.

**CRITICAL REQUIREMENT: ALL 50 QUESTIONS MUST BE MULTIPLE CHOICE QUESTIONS (MCQ) ONLY**

**Requirements:**

1. **Total Questions:** 50 MCQ questions exactly
2. **Question Type:** Multiple Choice ONLY (4 options: A, B, C, D)
3. **Overall Difficulty:** %[2]s

**Section Distribution:**

**Aptitude Section** (%[3]d MCQs):
- Logical Reasoning, Quantitative Aptitude, Verbal Ability
- Mix of Easy/Medium difficulty, campus interview style

**Core CS Fundamentals Section** (%[4]d MCQs):
- Operating Systems, DBMS, Computer Networks, OOP, Data Structures concepts
- Medium difficulty, concept-based questions

**DSA & Problem Solving Section** (%[5]d MCQs):
Focus on these topics:
%[6]s- Time & Space Complexity analysis, algorithm output questions
- Problem-solving patterns, %[2]s difficulty
- Coding style: %[7]s

**OUTPUT FORMAT (STRICT JSON - ALL MCQ):**

You MUST respond with ONLY this exact JSON structure, no extra text:

{
  "company_name": "%[1]s",
  "difficulty": "%[2]s",
  "total_questions": 50,
  "questions": [
    {
      "id": 1,
      "section": "aptitude",
      "type": "mcq",
      "difficulty": "Medium",
      "question": "Full question text here",
      "options": ["A) Option 1", "B) Option 2", "C) Option 3", "D) Option 4"],
      "correct_answer": "A",
      "explanation": "Brief explanation in 1-2 sentences",
      "topic": "Specific topic",
      "time_estimate": 2
    }
  ]
}

**IMPORTANT RULES:**
1. Generate EXACTLY 50 MCQ questions, MCQ ONLY
2. ALL questions MUST have exactly 4 options (A, B, C, D)
3. Distribute questions as specified in sections
4. Keep explanations concise (max 2 sentences each)
5. Ensure valid JSON syntax and escape special characters in strings
6. DO NOT include any text outside the JSON structure`,
		profile.CompanyName, profile.DifficultyLevel, aptitude, coreCS, dsa,
		topicLines.String(), profile.CodingStyle)
}
