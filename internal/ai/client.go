package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"careercraft/internal/config"
)

// Result is the structured feedback the model returns for one analysis run.
type Result struct {
	OverallScore float64  `json:"overall_score"`
	Strengths    []string `json:"strengths"`
	Weaknesses   []string `json:"weaknesses"`
	Suggestions  []string `json:"suggestions"`
	Keywords     []string `json:"keywords"`
}

// Usage reports per-call metadata persisted alongside the result.
type Usage struct {
	TokensUsed int
}

// Client calls the Gemini API to analyze resume text.
type Client struct {
	client *genai.Client
	model  string
}

// NewClient builds a Gemini client from the AI configuration.
func NewClient(ctx context.Context, cfg config.AIConfig) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &Client{client: client, model: cfg.Model}, nil
}

// Analyze runs one analysis over the resume text and parses the model's
// JSON reply.
func (c *Client) Analyze(ctx context.Context, analysisType, resumeText string) (Result, Usage, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model,
		genai.Text(Prompt(analysisType, resumeText)),
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return Result{}, Usage{}, fmt.Errorf("generate content: %w", err)
	}

	usage := Usage{}
	if resp.UsageMetadata != nil {
		usage.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}

	result, err := ParseResult(resp.Text())
	if err != nil {
		return Result{}, usage, err
	}
	return result, usage, nil
}

// ParseResult decodes a model reply, tolerating markdown code fences and
// clamping the score into [0,100].
func ParseResult(raw string) (Result, error) {
	cleaned := CleanJSON(raw)
	if cleaned == "" {
		return Result{}, errors.New("empty response from model")
	}

	var result Result
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return Result{}, fmt.Errorf("unmarshal model response: %w", err)
	}

	if result.OverallScore < 0 {
		result.OverallScore = 0
	}
	if result.OverallScore > 100 {
		result.OverallScore = 100
	}
	return result, nil
}

// CleanJSON strips the ```json fences some models wrap around replies.
func CleanJSON(input string) string {
	clean := strings.TrimSpace(input)

	if strings.HasPrefix(clean, "```json") {
		clean = strings.TrimPrefix(clean, "```json")
	} else if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```")
	}
	clean = strings.TrimLeft(clean, "\r\n")
	clean = strings.TrimSuffix(clean, "```")

	return strings.TrimSpace(clean)
}
