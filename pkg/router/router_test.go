package router

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivalis-ai/rivalis/pkg/config"
	"github.com/rivalis-ai/rivalis/pkg/ledger"
	"github.com/rivalis-ai/rivalis/pkg/llm"
	"github.com/rivalis-ai/rivalis/pkg/models"
)

type stubClient struct {
	provider string
	model    string
	cost     float64
	calls    atomic.Int32
}

func (s *stubClient) Complete(ctx context.Context, prompt, system string) (*models.Response, error) {
	s.calls.Add(1)
	return &models.Response{
		Content:      "ok",
		Provider:     s.provider,
		Model:        s.model,
		InputTokens:  100,
		OutputTokens: 50,
		TotalTokens:  150,
		CostUSD:      s.cost,
	}, nil
}

func (s *stubClient) CompleteStructured(ctx context.Context, prompt, system string, schema map[string]any) (*models.Response, error) {
	return s.Complete(ctx, prompt, system)
}

func (s *stubClient) Provider() string { return s.provider }

func testTasks() map[string]config.TaskConfig {
	return map[string]config.TaskConfig{
		"research": {Provider: "anthropic", Model: "claude-sonnet-4", APIKeyEnv: "TEST_ANTHROPIC_KEY"},
		"scoring":  {Provider: "openai", Model: "gpt-4o", APIKeyEnv: "TEST_OPENAI_KEY"},
	}
}

func TestCallRoutesAndAccounts(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "sk-test")

	led := ledger.New(10.0, nil)
	stub := &stubClient{provider: "anthropic", model: "claude-sonnet-4", cost: 0.25}
	rt := New(testTasks(), led, WithClientFactory(func(provider string, opts llm.Options) (llm.Client, error) {
		assert.Equal(t, "sk-test", opts.APIKey)
		assert.Equal(t, "claude-sonnet-4", opts.Model)
		return stub, nil
	}))

	resp, err := rt.Call(context.Background(), "research", "tell me about globex", "be brief")
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)

	// Every completed call lands in the ledger.
	entries := led.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "research", entries[0].Task)
	assert.Equal(t, "anthropic", entries[0].Provider)
	assert.InDelta(t, 0.25, entries[0].CostUSD, 1e-9)
}

func TestUnknownTask(t *testing.T) {
	rt := New(testTasks(), ledger.New(10.0, nil))

	_, err := rt.Call(context.Background(), "drafting", "p", "")
	assert.ErrorIs(t, err, ErrUnknownTask)
	assert.Contains(t, err.Error(), "drafting")
}

func TestMissingAPIKey(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "")

	rt := New(testTasks(), ledger.New(10.0, nil))

	_, err := rt.Call(context.Background(), "research", "p", "")
	assert.ErrorIs(t, err, ErrMissingAPIKey)
	assert.Contains(t, err.Error(), "TEST_ANTHROPIC_KEY")
}

func TestClientsAreCached(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "sk-test")

	var constructed atomic.Int32
	rt := New(testTasks(), ledger.New(10.0, nil),
		WithClientFactory(func(provider string, opts llm.Options) (llm.Client, error) {
			constructed.Add(1)
			return &stubClient{provider: provider, model: opts.Model}, nil
		}))

	for i := 0; i < 3; i++ {
		_, err := rt.Call(context.Background(), "research", "p", "")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), constructed.Load())
}

func TestBudgetErrorPropagates(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "sk-test")

	led := ledger.New(1.0, nil)
	stub := &stubClient{provider: "anthropic", model: "m", cost: 2.0}
	rt := New(testTasks(), led, WithClientFactory(func(string, llm.Options) (llm.Client, error) {
		return stub, nil
	}))

	_, err := rt.Call(context.Background(), "research", "p", "")
	assert.ErrorIs(t, err, ledger.ErrBudgetExceeded)

	// The violating call is still recorded.
	assert.Len(t, led.Entries(), 1)
}

func TestCallStructured(t *testing.T) {
	t.Setenv("TEST_OPENAI_KEY", "sk-test")

	led := ledger.New(10.0, nil)
	stub := &stubClient{provider: "openai", model: "gpt-4o", cost: 0.1}
	rt := New(testTasks(), led, WithClientFactory(func(string, llm.Options) (llm.Client, error) {
		return stub, nil
	}))

	schema := map[string]any{"type": "object"}
	resp, err := rt.CallStructured(context.Background(), "scoring", "score globex", "", schema)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Len(t, led.Entries(), 1)
	assert.Equal(t, "scoring", led.Entries()[0].Task)
}
