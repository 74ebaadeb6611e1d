package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"ai-fitness-planner/internal/config"
	"ai-fitness-planner/internal/shared"
)

const huggingFaceAPIURL = "https://api-inference.huggingface.co/models"

type huggingFaceClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewHuggingFaceClient creates a client for the HF text-generation inference API.
func NewHuggingFaceClient(cfg config.ProviderConfig) TextGenerator {
	return &huggingFaceClient{
		baseURL:    strings.TrimRight(firstNonEmpty(cfg.BaseURL, huggingFaceAPIURL), "/"),
		apiKey:     cfg.APIKey,
		model:      cfg.Model,
		httpClient: newHTTPClient(),
	}
}

type hfGeneration struct {
	GeneratedText string `json:"generated_text"`
	Error         string `json:"error"`
}

func (c *huggingFaceClient) GenerateContent(ctx context.Context, req Request) (ContentResponse, error) {
	model := firstNonEmpty(req.Model, c.model)
	reqBody := map[string]interface{}{
		"inputs": req.Prompt,
		"parameters": map[string]interface{}{
			"max_new_tokens":   req.MaxTokens,
			"temperature":      req.Temperature,
			"top_p":            req.TopP,
			"return_full_text": false,
		},
	}
	headers := map[string]string{"Authorization": "Bearer " + c.apiKey}

	var raw json.RawMessage
	if err := postJSON(ctx, c.httpClient, HuggingFace, c.baseURL+"/"+model, headers, reqBody, &raw); err != nil {
		return ContentResponse{}, err
	}

	gen, err := decodeHFGeneration(raw)
	if err != nil {
		return ContentResponse{}, &ProviderError{Provider: HuggingFace, Reason: ReasonDecode, Err: err}
	}

	return ContentResponse{
		Content: gen,
		Usage:   shared.TokenUsage{Model: model},
	}, nil
}

// decodeHFGeneration accepts both the list and the single-object response
// shapes returned by different HF deployments.
func decodeHFGeneration(raw json.RawMessage) (string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return "", fmt.Errorf("empty response body")
	}

	var items []hfGeneration
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return "", err
		}
	} else {
		var one hfGeneration
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return "", err
		}
		items = append(items, one)
	}

	if len(items) == 0 {
		return "", nil
	}
	if items[0].Error != "" {
		return "", fmt.Errorf("huggingface error: %s", items[0].Error)
	}
	return items[0].GeneratedText, nil
}
