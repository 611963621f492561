package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/rivalis-ai/rivalis/pkg/models"
)

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// GeminiClient talks to Google's generateContent API.
type GeminiClient struct {
	opts Options
}

// NewGemini creates a Google Gemini client.
func NewGemini(opts Options) Client {
	opts.applyDefaults(geminiBaseURL)
	return &GeminiClient{opts: opts}
}

// Provider implements Client.
func (c *GeminiClient) Provider() string { return ProviderGemini }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
}

// Complete implements Client.
func (c *GeminiClient) Complete(ctx context.Context, prompt, system string) (*models.Response, error) {
	body := map[string]any{
		"contents": []geminiContent{
			{Parts: []geminiPart{{Text: prompt}}},
		},
		"generationConfig": map[string]any{
			"temperature":     c.opts.Temperature,
			"maxOutputTokens": c.opts.MaxTokens,
		},
	}
	if system != "" {
		body["systemInstruction"] = geminiContent{Parts: []geminiPart{{Text: system}}}
	}

	jsonBody, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	// API key travels as a query parameter, not a header.
	endpoint := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.opts.BaseURL, c.opts.Model, c.opts.APIKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

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
		return nil, parseGeminiError(resp.StatusCode, respBody)
	}

	var parsed struct {
		Candidates []struct {
			Content      geminiContent `json:"content"`
			FinishReason string        `json:"finishReason"`
		} `json:"candidates"`
		UsageMetadata struct {
			PromptTokenCount     int `json:"promptTokenCount"`
			CandidatesTokenCount int `json:"candidatesTokenCount"`
		} `json:"usageMetadata"`
	}
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	var content, finishReason string
	if len(parsed.Candidates) > 0 {
		var sb strings.Builder
		for _, part := range parsed.Candidates[0].Content.Parts {
			sb.WriteString(part.Text)
		}
		content = sb.String()
		finishReason = parsed.Candidates[0].FinishReason
	}

	inTok := parsed.UsageMetadata.PromptTokenCount
	outTok := parsed.UsageMetadata.CandidatesTokenCount

	return &models.Response{
		Content:      content,
		Model:        c.opts.Model,
		Provider:     ProviderGemini,
		InputTokens:  inTok,
		OutputTokens: outTok,
		TotalTokens:  inTok + outTok,
		CostUSD:      estimateCost(ProviderGemini, c.opts.Model, inTok, outTok),
		FinishReason: finishReason,
	}, nil
}

// CompleteStructured implements Client.
func (c *GeminiClient) CompleteStructured(ctx context.Context, prompt, system string, schema map[string]any) (*models.Response, error) {
	return c.Complete(ctx, prompt, structuredSystem(system, schema))
}

func parseGeminiError(statusCode int, body []byte) error {
	var errResp struct {
		Error struct {
			Message string `json:"message"`
			Status  string `json:"status"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		return &ProviderError{Provider: ProviderGemini, StatusCode: statusCode, Message: errResp.Error.Message}
	}
	return &ProviderError{Provider: ProviderGemini, StatusCode: statusCode, Message: string(body)}
}
