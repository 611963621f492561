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

const openAIBaseURL = "https://api.openai.com/v1"

// openAICompatible implements the chat-completions wire format shared by
// OpenAI and xAI.
type openAICompatible struct {
	provider string
	opts     Options
}

// NewOpenAI creates an OpenAI client.
func NewOpenAI(opts Options) Client {
	opts.applyDefaults(openAIBaseURL)
	return &openAICompatible{provider: ProviderOpenAI, opts: opts}
}

// Provider implements Client.
func (c *openAICompatible) Provider() string { return c.provider }

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Complete implements Client.
func (c *openAICompatible) Complete(ctx context.Context, prompt, system string) (*models.Response, error) {
	return c.complete(ctx, prompt, system, false)
}

// CompleteStructured implements Client. OpenAI-compatible APIs support a
// json_object response format in addition to the prompt instruction.
func (c *openAICompatible) CompleteStructured(ctx context.Context, prompt, system string, schema map[string]any) (*models.Response, error) {
	return c.complete(ctx, prompt, structuredSystem(system, schema), true)
}

func (c *openAICompatible) complete(ctx context.Context, prompt, system string, jsonMode bool) (*models.Response, error) {
	var messages []chatMessage
	if system != "" {
		messages = append(messages, chatMessage{Role: "system", Content: system})
	}
	messages = append(messages, chatMessage{Role: "user", Content: prompt})

	body := map[string]any{
		"model":       c.opts.Model,
		"messages":    messages,
		"max_tokens":  c.opts.MaxTokens,
		"temperature": c.opts.Temperature,
	}
	if jsonMode {
		body["response_format"] = map[string]string{"type": "json_object"}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.BaseURL+"/chat/completions", bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.opts.APIKey)

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
		return nil, parseOpenAIError(c.provider, resp.StatusCode, respBody)
	}

	var parsed struct {
		Choices []struct {
			Message      chatMessage `json:"message"`
			FinishReason string      `json:"finish_reason"`
		} `json:"choices"`
		Usage struct {
			PromptTokens     int `json:"prompt_tokens"`
			CompletionTokens int `json:"completion_tokens"`
		} `json:"usage"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	var content, finishReason string
	if len(parsed.Choices) > 0 {
		content = parsed.Choices[0].Message.Content
		finishReason = parsed.Choices[0].FinishReason
	}

	return &models.Response{
		Content:      content,
		Model:        c.opts.Model,
		Provider:     c.provider,
		InputTokens:  parsed.Usage.PromptTokens,
		OutputTokens: parsed.Usage.CompletionTokens,
		TotalTokens:  parsed.Usage.PromptTokens + parsed.Usage.CompletionTokens,
		CostUSD:      estimateCost(c.provider, c.opts.Model, parsed.Usage.PromptTokens, parsed.Usage.CompletionTokens),
		FinishReason: finishReason,
	}, nil
}

func parseOpenAIError(provider string, statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return &ProviderError{Provider: provider, StatusCode: statusCode, Message: errResp.Error.Message}
	}
	return &ProviderError{Provider: provider, StatusCode: statusCode, Message: string(body)}
}
