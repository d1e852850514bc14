package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/zacharias1219/gradeflow/internal/grading"
	"github.com/zacharias1219/gradeflow/internal/model"
)

// Compile-time assurance the client satisfies the grading engine's port
var _ grading.Analyzer = (*Client)(nil)

const (
	defaultBaseURL = "https://api.openai.com/v1"
	defaultModel   = "gpt-4o-mini"
	defaultTimeout = 30 * time.Second

	extractMaxTokens  = 2000
	analysisMaxTokens = 3000

	defaultOCRPrompt = "Extract all text from this image accurately. Preserve formatting and structure."
)

// Config defines connection settings for the vision model API
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// Client calls a vision-capable chat completions API for OCR text
// extraction and step-level answer analysis.
type Client struct {
	logger *zap.Logger
	cfg    Config
	client *http.Client
}

// NewClient creates a vision model client
func NewClient(cfg Config, logger *zap.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("vision api key empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	return &Client{
		logger: logger.Named("ai"),
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// ExtractText runs OCR over one page image
func (c *Client) ExtractText(ctx context.Context, image []byte, prompt string) (string, error) {
	if prompt == "" {
		prompt = defaultOCRPrompt
	}

	encoded := base64.StdEncoding.EncodeToString(image)
	messages := []message{{
		Role: "user",
		Content: []contentPart{
			{Type: "text", Text: prompt},
			{Type: "image_url", ImageURL: &imageURL{URL: "data:image/jpeg;base64," + encoded}},
		},
	}}

	text, err := c.chat(ctx, messages, extractMaxTokens)
	if err != nil {
		return "", fmt.Errorf("extract text: %w", err)
	}
	return text, nil
}

// AnalyzeAnswer asks the model for a structured step-by-step breakdown of
// an answer and parses the JSON response.
func (c *Client) AnalyzeAnswer(ctx context.Context, question, answer string, rubric model.Rubric) (*grading.AnswerAnalysis, error) {
	prompt := buildAnalysisPrompt(question, answer, rubric)
	messages := []message{{
		Role:    "user",
		Content: []contentPart{{Type: "text", Text: prompt}},
	}}

	raw, err := c.chat(ctx, messages, analysisMaxTokens)
	if err != nil {
		return nil, fmt.Errorf("analyze answer: %w", err)
	}

	analysis, err := ParseAnalysis(raw)
	if err != nil {
		return nil, fmt.Errorf("analyze answer: %w", err)
	}
	return analysis, nil
}

// chat sends one chat completion request and returns the first non-empty
// choice content.
func (c *Client) chat(ctx context.Context, messages []message, maxTokens int) (string, error) {
	reqBody := struct {
		Model     string    `json:"model"`
		Messages  []message `json:"messages"`
		MaxTokens int       `json:"max_tokens,omitempty"`
	}{Model: c.cfg.Model, Messages: messages, MaxTokens: maxTokens}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("vision api http %d", resp.StatusCode)
	}

	var payload struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", err
	}

	for _, choice := range payload.Choices {
		if choice.Message.Content != "" {
			return choice.Message.Content, nil
		}
	}
	return "", errors.New("no choice content")
}

// ParseAnalysis extracts the analysis JSON from a model response, tolerating
// code fences and surrounding prose.
func ParseAnalysis(raw string) (*grading.AnswerAnalysis, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start < 0 || end <= start {
		return nil, errors.New("no JSON object in model response")
	}

	var analysis grading.AnswerAnalysis
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &analysis); err != nil {
		return nil, fmt.Errorf("malformed analysis JSON: %w", err)
	}
	return &analysis, nil
}

func buildAnalysisPrompt(question, answer string, rubric model.Rubric) string {
	rubricJSON, err := json.MarshalIndent(rubric, "", "  ")
	if err != nil {
		rubricJSON = []byte("{}")
	}

	var b strings.Builder
	b.WriteString("Analyze this student's answer step-by-step.\n\n")
	b.WriteString("Question: " + question + "\n")
	b.WriteString("Student Answer: " + answer + "\n\n")
	b.WriteString("Rubric Criteria: " + string(rubricJSON) + "\n\n")
	b.WriteString(`Provide a step-by-step evaluation of the solution with partial credit
for each step (0.0 to 1.0), a mathematical reasoning assessment, a
conceptual understanding evaluation, presentation quality, overall
strengths and weaknesses, and specific suggestions for improvement.

Respond with JSON of this shape:
{
  "steps": [
    {
      "step_number": 1,
      "description": "Step description",
      "is_correct": true,
      "partial_credit": 0.8,
      "feedback": "Step-specific feedback",
      "reasoning": "Why this step is correct or incorrect",
      "confidence": 0.9
    }
  ],
  "strengths": ["..."],
  "weaknesses": ["..."],
  "suggestions": ["..."],
  "feedback": "Overall feedback",
  "mathematical_reasoning": 0.8,
  "conceptual_understanding": 0.7,
  "presentation": 0.6
}`)
	return b.String()
}

type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}
