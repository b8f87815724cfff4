// Package ingestion turns uploaded document text or YAML question banks
// into question records. It does not validate option completeness; that
// is the producer's responsibility.
package ingestion

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"mocktest-server/models"
)

var (
	optionPattern   = regexp.MustCompile(`(?m)^([A-D])[\).:]\s*(.*)$`)
	questionLead    = regexp.MustCompile(`(?s)^(\d+)\.\s*(.*)$`)
	questionDivider = regexp.MustCompile(`\n(\d+\.)`)
)

// ParseQuestionsFromText extracts numbered MCQs from plain document
// text. A block qualifies when it has a leading "<n>." marker and at
// least two "A) / A. / A:" option lines.
func ParseQuestionsFromText(text string) []models.Question {
	cleaned := strings.ReplaceAll(text, "\r", "")
	var questions []models.Question

	for _, block := range splitQuestionBlocks(cleaned) {
		match := questionLead.FindStringSubmatch(block)
		if match == nil {
			continue
		}
		number, err := strconv.Atoi(match[1])
		if err != nil {
			continue
		}
		body := strings.TrimSpace(match[2])

		options := make(map[string]string)
		for _, option := range optionPattern.FindAllStringSubmatch(body, -1) {
			options[strings.TrimSpace(option[1])] = strings.TrimSpace(option[2])
		}

		questionText := body
		if len(options) > 0 {
			questionText = strings.TrimSpace(optionPattern.ReplaceAllString(body, ""))
		}

		if questionText != "" && len(options) >= 2 {
			questions = append(questions, models.Question{
				Number:  number,
				Text:    questionText,
				Options: options,
			})
		}
	}
	return questions
}

// splitQuestionBlocks cuts text before every "\n<digits>." marker,
// keeping the marker with its block.
func splitQuestionBlocks(text string) []string {
	indexes := questionDivider.FindAllStringIndex(text, -1)
	var blocks []string
	prev := 0
	for _, idx := range indexes {
		block := strings.TrimSpace(text[prev:idx[0]])
		if block != "" {
			blocks = append(blocks, block)
		}
		prev = idx[0] + 1 // keep the number with the next block
	}
	tail := strings.TrimSpace(text[prev:])
	if tail != "" {
		blocks = append(blocks, tail)
	}
	return blocks
}

// bankFile is the YAML question-bank upload format.
type bankFile struct {
	SourceName string         `yaml:"source_name"`
	Questions  []bankQuestion `yaml:"questions"`
}

type bankQuestion struct {
	Number  int               `yaml:"number"`
	Text    string            `yaml:"text"`
	Options map[string]string `yaml:"options"`
}

// ParseYAMLBank reads a YAML question bank. Returns the declared source
// name (may be empty) and the parsed questions.
func ParseYAMLBank(data []byte) (string, []models.Question, error) {
	var bank bankFile
	if err := yaml.Unmarshal(data, &bank); err != nil {
		return "", nil, fmt.Errorf("failed to parse question bank YAML: %w", err)
	}

	questions := make([]models.Question, 0, len(bank.Questions))
	for i, item := range bank.Questions {
		text := strings.TrimSpace(item.Text)
		if text == "" {
			continue
		}
		number := item.Number
		if number == 0 {
			number = i + 1
		}
		questions = append(questions, models.Question{
			Number:  number,
			Text:    text,
			Options: item.Options,
		})
	}
	return bank.SourceName, questions, nil
}
