package pipeline

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rivalis-ai/rivalis/pkg/checkpoint"
	"github.com/rivalis-ai/rivalis/pkg/config"
	"github.com/rivalis-ai/rivalis/pkg/ledger"
	"github.com/rivalis-ai/rivalis/pkg/llm"
	"github.com/rivalis-ai/rivalis/pkg/models"
	"github.com/rivalis-ai/rivalis/pkg/pipelog"
	"github.com/rivalis-ai/rivalis/pkg/router"
)

type cannedClient struct {
	provider string
	cost     *float64
}

func (c *cannedClient) Complete(ctx context.Context, prompt, system string) (*models.Response, error) {
	return &models.Response{
		Content:      "analysis of " + prompt,
		Provider:     c.provider,
		Model:        "test-model",
		InputTokens:  1000,
		OutputTokens: 500,
		TotalTokens:  1500,
		CostUSD:      *c.cost,
		FinishReason: "stop",
	}, nil
}

func (c *cannedClient) CompleteStructured(ctx context.Context, prompt, system string, schema map[string]any) (*models.Response, error) {
	return c.Complete(ctx, prompt, system)
}

func (c *cannedClient) Provider() string { return c.provider }

// The full stack wired together: a run that exceeds its budget mid-pipeline
// stops at the violating stage with the budget error reachable through the
// stage failure, and completed stages stay checkpointed.
func TestBudgetStopsPipeline(t *testing.T) {
	t.Setenv("TEST_ANTHROPIC_KEY", "sk-test")

	store, err := checkpoint.NewFileStore(t.TempDir())
	require.NoError(t, err)

	log := pipelog.New("acme", pipelog.WithSlog(slog.New(slog.NewTextHandler(io.Discard, nil))))
	led := ledger.New(5.0, []int{50}, ledger.WithEventLog(log))

	cost := 3.0
	rt := router.New(map[string]config.TaskConfig{
		"research": {Provider: "anthropic", Model: "claude-sonnet-4", APIKeyEnv: "TEST_ANTHROPIC_KEY"},
	}, led, router.WithClientFactory(func(provider string, opts llm.Options) (llm.Client, error) {
		return &cannedClient{provider: provider, cost: &cost}, nil
	}))

	ex := NewExecutor(store, log, "acme", WithSleep(func(time.Duration) {}))

	researchOp := func(competitor string) func(context.Context) (string, error) {
		return func(ctx context.Context) (string, error) {
			resp, err := rt.Call(ctx, "research", competitor, "")
			if err != nil {
				return "", err
			}
			return resp.Content, nil
		}
	}

	// First competitor: $3.00 of $5.00 — succeeds and fires the 50% alert.
	got, err := Run(ex, context.Background(), "research", "globex", researchOp("globex"))
	require.NoError(t, err)
	assert.Equal(t, "analysis of globex", got)

	alerts := 0
	for _, e := range log.Events() {
		if e.Action == "budget_alert" {
			alerts++
		}
	}
	assert.Equal(t, 1, alerts)

	// Second competitor: $2.50 crosses the budget. The stage aborts on the
	// first attempt and the sentinel is reachable through the wrapper.
	cost = 2.5
	attempts := 0
	_, err = Run(ex, context.Background(), "research", "initech", func(ctx context.Context) (string, error) {
		attempts++
		return researchOp("initech")(ctx)
	})

	assert.Equal(t, 1, attempts, "budget violations must not be retried")
	require.Error(t, err)

	var exhausted *ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.ErrorIs(t, err, ledger.ErrBudgetExceeded)

	// The violating call is still in the ledger; the first stage's
	// checkpoint survives for a later resume.
	assert.Len(t, led.Entries(), 2)
	ok, err := store.Exists("acme", "research_globex")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.Exists("acme", "research_initech")
	require.NoError(t, err)
	assert.False(t, ok)
}
