package llm

import (
	"context"
	"net/http"

	"ai-fitness-planner/internal/config"
	"ai-fitness-planner/internal/shared"
)

const (
	groqAPIURL       = "https://api.groq.com/openai/v1/chat/completions"
	openAIAPIURL     = "https://api.openai.com/v1/chat/completions"
	openRouterAPIURL = "https://openrouter.ai/api/v1/chat/completions"
)

// chatCompletionClient talks to any OpenAI-compatible chat completions API.
type chatCompletionClient struct {
	provider   ProviderName
	url        string
	model      string
	headers    map[string]string
	httpClient *http.Client
}

// NewGroqClient creates a new Groq API client.
func NewGroqClient(cfg config.ProviderConfig) TextGenerator {
	return newChatCompletionClient(Groq, firstNonEmpty(cfg.BaseURL, groqAPIURL), cfg, nil)
}

// NewOpenAIClient creates a new OpenAI API client.
func NewOpenAIClient(cfg config.ProviderConfig) TextGenerator {
	return newChatCompletionClient(OpenAI, firstNonEmpty(cfg.BaseURL, openAIAPIURL), cfg, nil)
}

// NewOpenRouterClient creates a new OpenRouter client. OpenRouter asks callers
// to identify themselves with the referer and title headers.
func NewOpenRouterClient(cfg config.ProviderConfig) TextGenerator {
	return newChatCompletionClient(OpenRouter, firstNonEmpty(cfg.BaseURL, openRouterAPIURL), cfg, map[string]string{
		"HTTP-Referer": "https://github.com/ai-fitness-planner",
		"X-Title":      "AI Fitness Planner",
	})
}

func newChatCompletionClient(provider ProviderName, url string, cfg config.ProviderConfig, headers map[string]string) *chatCompletionClient {
	h := map[string]string{"Authorization": "Bearer " + cfg.APIKey}
	for k, v := range headers {
		h[k] = v
	}
	return &chatCompletionClient{
		provider:   provider,
		url:        url,
		model:      cfg.Model,
		headers:    h,
		httpClient: newHTTPClient(),
	}
}

type chatCompletionResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// GenerateContent sends a prompt to the chat model and returns the generated text.
func (c *chatCompletionClient) GenerateContent(ctx context.Context, req Request) (ContentResponse, error) {
	model := firstNonEmpty(req.Model, c.model)
	reqBody := map[string]interface{}{
		"model": model,
		"messages": []map[string]string{
			{
				"role":    "user",
				"content": req.Prompt,
			},
		},
		"max_tokens":  req.MaxTokens,
		"temperature": req.Temperature,
		"top_p":       req.TopP,
	}

	var out chatCompletionResponse
	if err := postJSON(ctx, c.httpClient, c.provider, c.url, c.headers, reqBody, &out); err != nil {
		return ContentResponse{}, err
	}

	if len(out.Choices) == 0 {
		return ContentResponse{}, &ProviderError{Provider: c.provider, Reason: ReasonEmpty}
	}

	return ContentResponse{
		Content: out.Choices[0].Message.Content,
		Usage: shared.TokenUsage{
			PromptTokens:     out.Usage.PromptTokens,
			CompletionTokens: out.Usage.CompletionTokens,
			TotalTokens:      out.Usage.TotalTokens,
			Model:            firstNonEmpty(out.Model, model),
		},
	}, nil
}
