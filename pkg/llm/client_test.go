package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewResolvesAliases(t *testing.T) {
	tests := []struct {
		name     string
		provider string
	}{
		{"anthropic", ProviderAnthropic},
		{"claude", ProviderAnthropic},
		{"openai", ProviderOpenAI},
		{"gpt", ProviderOpenAI},
		{"gemini", ProviderGemini},
		{"google", ProviderGemini},
		{"grok", ProviderGrok},
		{"xai", ProviderGrok},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := New(tt.name, Options{APIKey: "k", Model: "m"})
			require.NoError(t, err)
			assert.Equal(t, tt.provider, client.Provider())
		})
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := New("watson", Options{})
	assert.ErrorIs(t, err, ErrUnknownProvider)
	assert.False(t, Supported("watson"))
	assert.True(t, Supported("anthropic"))
}

func TestEstimateCost(t *testing.T) {
	// 1M input + 1M output at the listed sonnet rate.
	got := estimateCost(ProviderAnthropic, "claude-sonnet-4-20250514", 1_000_000, 1_000_000)
	assert.InDelta(t, 18.0, got, 1e-9)

	got = estimateCost(ProviderOpenAI, "gpt-4o-mini", 100_000, 50_000)
	assert.InDelta(t, 0.045, got, 1e-9)

	// Unknown model falls back to the provider default rate.
	got = estimateCost(ProviderOpenAI, "gpt-99-experimental", 1_000_000, 0)
	assert.InDelta(t, 2.50, got, 1e-9)

	assert.Zero(t, estimateCost(ProviderGemini, "gemini-2.0-flash", 0, 0))
}

func TestStructuredSystem(t *testing.T) {
	out := structuredSystem("", nil)
	assert.Contains(t, out, "valid JSON only")

	out = structuredSystem("You are an analyst.", map[string]any{"type": "object"})
	assert.Contains(t, out, "You are an analyst.")
	assert.Contains(t, out, "valid JSON only")
	assert.Contains(t, out, `"type": "object"`)
}
