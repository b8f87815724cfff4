// Package research builds company hiring-pattern profiles: a remote
// research call, a best-effort heuristic classifier over the returned
// prose, and an on-disk profile cache.
package research

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"mocktest-server/config"
)

const perplexityAPIURL = "https://api.perplexity.ai/chat/completions"

// Section describes one part of a company's assessment.
type Section struct {
	Count      int      `json:"count"`
	Types      []string `json:"types,omitempty"`
	Topics     []string `json:"topics,omitempty"`
	Difficulty string   `json:"difficulty,omitempty"`
	Style      string   `json:"style,omitempty"`
}

// Profile is a structured company hiring profile.
type Profile struct {
	CompanyName          string             `json:"company_name"`
	DifficultyLevel      string             `json:"difficulty_level"`
	QuestionDistribution map[string]int     `json:"question_distribution"`
	DSATopics            []string           `json:"dsa_topics"`
	AptitudeRatio        float64            `json:"aptitude_ratio"`
	CodingStyle          string             `json:"coding_style"`
	HiringFocus          []string           `json:"hiring_focus"`
	TestDurationMinutes  int                `json:"test_duration_minutes"`
	TotalQuestions       int                `json:"total_questions"`
	ResearchSummary      string             `json:"research_summary,omitempty"`
	Sections             map[string]Section `json:"sections"`
	CachedAt             string             `json:"cached_at,omitempty"`
	CacheVersion         string             `json:"cache_version,omitempty"`
}

// Researcher fetches hiring-pattern prose from the Perplexity API and
// classifies it into a Profile.
type Researcher struct {
	httpClient *http.Client
	apiURL     string
	apiKey     string
	model      string
}

func NewResearcher(cfg config.ResearchConfig) *Researcher {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = perplexityAPIURL
	}
	return &Researcher{
		httpClient: &http.Client{Timeout: timeout},
		apiURL:     apiURL,
		apiKey:     cfg.PerplexityAPIKey,
		model:      cfg.PerplexityModel,
	}
}

type perplexityRequest struct {
	Model       string          `json:"model"`
	Messages    []perplexityMsg `json:"messages"`
	Temperature float64         `json:"temperature"`
	MaxTokens   int             `json:"max_tokens"`
}

type perplexityMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type perplexityResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

// Research queries the backend and classifies the answer. Research has
// no safe fallback content, so adapter failures surface to the caller.
func (r *Researcher) Research(ctx context.Context, companyName string) (Profile, error) {
	if r.apiKey == "" {
		return Profile{}, fmt.Errorf("perplexity API key not configured")
	}

	prompt := fmt.Sprintf(`Research %s's campus recruitment and online assessment pattern.

Provide detailed information about:
1. Overall difficulty level (Easy/Medium/Hard)
2. Question distribution across sections (Aptitude, Core CS, DSA, Coding)
3. Common Data Structures & Algorithms topics they focus on
4. Aptitude questions ratio and type
5. Coding problem style (implementation, optimization, problem-solving)
6. Key hiring focus areas
7. Time constraints and test structure
8. Recent patterns from campus placements

Return the information in a structured format covering all aspects of their technical assessment.`, companyName)

	body, err := json.Marshal(perplexityRequest{
		Model: r.model,
		Messages: []perplexityMsg{
			{Role: "system", Content: "You are an expert at analyzing company hiring patterns and technical assessments. Provide detailed, accurate information about campus recruitment processes."},
			{Role: "user", Content: prompt},
		},
		Temperature: 0.3,
		MaxTokens:   2000,
	})
	if err != nil {
		return Profile{}, fmt.Errorf("failed to marshal research request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.apiURL, bytes.NewReader(body))
	if err != nil {
		return Profile{}, fmt.Errorf("failed to create research request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.apiKey)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return Profile{}, fmt.Errorf("research request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Profile{}, fmt.Errorf("failed to read research response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return Profile{}, fmt.Errorf("research API returned status %d", resp.StatusCode)
	}

	var parsed perplexityResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return Profile{}, fmt.Errorf("failed to parse research response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return Profile{}, fmt.Errorf("empty research response")
	}

	return ClassifyResearch(companyName, parsed.Choices[0].Message.Content), nil
}

// ClassifyResearch turns research prose into a Profile using keyword
// heuristics. It is best-effort by nature: when the text carries no
// recognizable signal, every field falls back to a sensible default.
func ClassifyResearch(companyName, content string) Profile {
	lower := strings.ToLower(content)

	difficulty := "Medium"
	switch {
	case strings.Contains(lower, "hard") || strings.Contains(lower, "difficult") || strings.Contains(lower, "challenging"):
		difficulty = "Hard"
	case strings.Contains(lower, "easy") || strings.Contains(lower, "beginner"):
		difficulty = "Easy"
	}

	commonTopics := []string{
		"arrays", "strings", "linked lists", "trees", "graphs", "dynamic programming",
		"greedy", "backtracking", "searching", "sorting", "hashing", "stack", "queue",
		"heap", "recursion", "binary search", "sliding window", "two pointers",
	}
	var dsaTopics []string
	for _, topic := range commonTopics {
		if strings.Contains(lower, topic) {
			dsaTopics = append(dsaTopics, titleCase(topic))
		}
	}
	if len(dsaTopics) == 0 {
		dsaTopics = []string{"Arrays", "Strings", "Dynamic Programming", "Trees", "Graphs"}
	}
	if len(dsaTopics) > 8 {
		dsaTopics = dsaTopics[:8]
	}

	aptitudeRatio := 0.3
	if strings.Contains(lower, "aptitude") && (strings.Contains(lower, "high") || strings.Contains(lower, "significant")) {
		aptitudeRatio = 0.4
	} else if strings.Contains(lower, "less aptitude") || strings.Contains(lower, "minimal aptitude") {
		aptitudeRatio = 0.2
	}

	codingStyle := "Problem-solving focused"
	if strings.Contains(lower, "optimization") {
		codingStyle = "Optimization and efficiency focused"
	} else if strings.Contains(lower, "implementation") {
		codingStyle = "Implementation heavy"
	}

	distribution := map[string]int{"aptitude": 15, "core_cs": 15, "dsa": 10, "coding": 10}

	summary := content
	if len(summary) > 500 {
		summary = summary[:500]
	}

	sectionTopics := dsaTopics
	if len(sectionTopics) > 5 {
		sectionTopics = sectionTopics[:5]
	}

	return Profile{
		CompanyName:          companyName,
		DifficultyLevel:      difficulty,
		QuestionDistribution: distribution,
		DSATopics:            dsaTopics,
		AptitudeRatio:        aptitudeRatio,
		CodingStyle:          codingStyle,
		HiringFocus: []string{
			"Problem Solving",
			"Data Structures & Algorithms",
			"Coding Proficiency",
			"Analytical Thinking",
		},
		TestDurationMinutes: 90,
		TotalQuestions:      50,
		ResearchSummary:     summary,
		Sections: map[string]Section{
			"aptitude": {
				Count: distribution["aptitude"],
				Types: []string{"Logical Reasoning", "Quantitative Aptitude", "Verbal Ability"},
			},
			"core_cs": {
				Count:  distribution["core_cs"],
				Topics: []string{"Operating Systems", "DBMS", "Networks", "OOP"},
			},
			"dsa": {
				Count:  distribution["dsa"],
				Topics: sectionTopics,
			},
			"coding": {
				Count:      distribution["coding"],
				Difficulty: difficulty,
				Style:      codingStyle,
			},
		},
	}
}

func titleCase(s string) string {
	words := strings.Fields(s)
	for i, word := range words {
		words[i] = strings.ToUpper(word[:1]) + word[1:]
	}
	return strings.Join(words, " ")
}
