package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIConfig configures the production reasoning backend client.
type OpenAIConfig struct {
	BaseURL     string
	APIKey      string
	Model       string
	Temperature float64
	MaxTokens   int
}

// OpenAIGenerator talks to an OpenAI-compatible chat completions API.
type OpenAIGenerator struct {
	config OpenAIConfig
	client *http.Client
}

// NewOpenAIGenerator creates the production reasoning backend client.
// Timeouts are owned by the caller's context, not the HTTP client.
func NewOpenAIGenerator(config OpenAIConfig) *OpenAIGenerator {
	if config.BaseURL == "" {
		config.BaseURL = defaultOpenAIBaseURL
	}
	if config.Model == "" {
		config.Model = "gpt-4"
	}
	return &OpenAIGenerator{
		config: config,
		client: &http.Client{},
	}
}

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
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Generate sends the prompt and structured context as a single chat
// completion request and returns the model's text response.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string, structured map[string]interface{}) (string, error) {
	const op = "reasoning.generate"

	content := prompt
	if len(structured) > 0 {
		ctxJSON, err := json.MarshalIndent(structured, "", "  ")
		if err != nil {
			return "", failf(op, TagInvalidInput, "marshal structured context: %v", err)
		}
		content = fmt.Sprintf("%s\n\nStructured context:\n%s", prompt, ctxJSON)
	}

	reqBody := chatRequest{
		Model: g.config.Model,
		Messages: []chatMessage{
			{
				Role: "system",
				Content: "You are an observability assistant for a Prometheus-monitored system. " +
					"Follow the instructions in each request exactly. When asked for JSON, respond with JSON only.",
			},
			{Role: "user", Content: content},
		},
		Temperature: g.config.Temperature,
		MaxTokens:   g.config.MaxTokens,
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", failf(op, TagInvalidInput, "marshal request: %v", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.config.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", failf(op, TagBackendUnavailable, "build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.config.APIKey)

	resp, err := g.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", failf(op, TagTimeout, "reasoning call exceeded deadline: %v", err)
		}
		return "", failf(op, TagBackendUnavailable, "reasoning call failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		// Provider rate limiting is treated the same as any other outage.
		return "", failf(op, TagBackendUnavailable, "reasoning backend returned status %d: %s", resp.StatusCode, body)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", failf(op, TagMalformedResponse, "decode response: %v", err)
	}
	if len(parsed.Choices) == 0 {
		return "", failf(op, TagMalformedResponse, "response contains no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}
