package llm

import (
	"context"
	"net/http"
	"strings"

	"ai-fitness-planner/internal/config"
	"ai-fitness-planner/internal/shared"
)

const (
	claudeAPIURL     = "https://api.anthropic.com/v1/messages"
	anthropicVersion = "2023-06-01"
)

type claudeClient struct {
	url        string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClaudeClient creates a client for the Anthropic messages API.
func NewClaudeClient(cfg config.ProviderConfig) TextGenerator {
	return &claudeClient{
		url:        firstNonEmpty(cfg.BaseURL, claudeAPIURL),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: newHTTPClient(),
	}
}

type claudeResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// GenerateContent sends the prompt as a single user message. top_p is not
// sent since the messages API expects either temperature or top_p.
func (c *claudeClient) GenerateContent(ctx context.Context, req Request) (ContentResponse, error) {
	model := firstNonEmpty(req.Model, c.model)
	reqBody := map[string]interface{}{
		"model":       model,
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
		"messages": []map[string]string{
			{"role": "user", "content": req.Prompt},
		},
	}
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}

	var out claudeResponse
	if err := postJSON(ctx, c.httpClient, Claude, c.url, headers, reqBody, &out); err != nil {
		return ContentResponse{}, err
	}

	var sb strings.Builder
	for _, block := range out.Content {
		if block.Type == "" || block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}

	return ContentResponse{
		Content: sb.String(),
		Usage: shared.TokenUsage{
			PromptTokens:     out.Usage.InputTokens,
			CompletionTokens: out.Usage.OutputTokens,
			TotalTokens:      out.Usage.InputTokens + out.Usage.OutputTokens,
			Model:            firstNonEmpty(out.Model, model),
		},
	}, nil
}
