package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/rivalis-ai/rivalis/pkg/models"
)

const anthropicBaseURL = "https://api.anthropic.com/v1"

// AnthropicClient talks to Anthropic's messages API.
type AnthropicClient struct {
	opts Options
}

// NewAnthropic creates an Anthropic client.
func NewAnthropic(opts Options) Client {
	opts.applyDefaults(anthropicBaseURL)
	return &AnthropicClient{opts: opts}
}

// Provider implements Client.
func (c *AnthropicClient) Provider() string { return ProviderAnthropic }

// Complete implements Client.
func (c *AnthropicClient) Complete(ctx context.Context, prompt, system string) (*models.Response, error) {
	body := map[string]any{
		"model":       c.opts.Model,
		"max_tokens":  c.opts.MaxTokens,
		"temperature": c.opts.Temperature,
		"messages": []map[string]any{
			{"role": "user", "content": prompt},
		},
	}
	// System prompt is a top-level field in the messages API.
	if system != "" {
		body["system"] = system
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/messages", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.opts.APIKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.opts.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, parseAnthropicError(resp.StatusCode, respBody)
	}

	var parsed struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		StopReason string `json:"stop_reason"`
		Usage      struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	var content string
	if len(parsed.Content) > 0 {
		content = parsed.Content[0].Text
	}

	return &models.Response{
		Content:      content,
		Model:        c.opts.Model,
		Provider:     ProviderAnthropic,
		InputTokens:  parsed.Usage.InputTokens,
		OutputTokens: parsed.Usage.OutputTokens,
		TotalTokens:  parsed.Usage.InputTokens + parsed.Usage.OutputTokens,
		CostUSD:      estimateCost(ProviderAnthropic, c.opts.Model, parsed.Usage.InputTokens, parsed.Usage.OutputTokens),
		FinishReason: parsed.StopReason,
	}, nil
}

// CompleteStructured implements Client.
func (c *AnthropicClient) CompleteStructured(ctx context.Context, prompt, system string, schema map[string]any) (*models.Response, error) {
	return c.Complete(ctx, prompt, structuredSystem(system, schema))
}

func parseAnthropicError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Type    string `json:"type"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return &ProviderError{Provider: ProviderAnthropic, StatusCode: statusCode, Message: errResp.Error.Message}
	}
	return &ProviderError{Provider: ProviderAnthropic, StatusCode: statusCode, Message: string(body)}
}
