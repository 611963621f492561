// Package router resolves logical task names to configured LLM providers and
// feeds every call into the cost ledger.
package router

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/rivalis-ai/rivalis/pkg/config"
	"github.com/rivalis-ai/rivalis/pkg/ledger"
	"github.com/rivalis-ai/rivalis/pkg/llm"
	"github.com/rivalis-ai/rivalis/pkg/models"
	"github.com/rivalis-ai/rivalis/pkg/observability"
)

// ErrUnknownTask is returned when a task name has no routing entry. It is a
// configuration error and is never retried.
var ErrUnknownTask = errors.New("no provider mapping for task")

// ErrMissingAPIKey is returned when a task's API key environment variable is
// unset or empty.
var ErrMissingAPIKey = errors.New("missing api key environment variable")

// Router dispatches task calls to provider clients. Clients are created
// lazily, keyed by provider:model, and cached for the router's lifetime so
// repeated calls reuse one connection pool.
type Router struct {
	tasks   map[string]config.TaskConfig
	ledger  *ledger.Ledger
	metrics observability.MetricsRecorder

	newClient func(provider string, opts llm.Options) (llm.Client, error)

	mu      sync.Mutex
	clients map[string]llm.Client
}

// Option configures a Router.
type Option func(*Router)

// WithClientFactory replaces the client constructor. Used in tests.
func WithClientFactory(fn func(provider string, opts llm.Options) (llm.Client, error)) Option {
	return func(r *Router) { r.newClient = fn }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(r *Router) { r.metrics = m }
}

// New creates a Router over a fixed task routing table. Every completed call
// is logged to led before it is returned to the caller.
func New(tasks map[string]config.TaskConfig, led *ledger.Ledger, opts ...Option) *Router {
	r := &Router{
		tasks:     tasks,
		ledger:    led,
		metrics:   observability.NoopMetrics{},
		newClient: llm.New,
		clients:   make(map[string]llm.Client),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Call routes a task to its configured provider and returns the standardised
// response. The call is logged to the cost ledger before returning; a budget
// violation surfaces as the call's error.
func (r *Router) Call(ctx context.Context, task, prompt, system string) (*models.Response, error) {
	client, err := r.clientFor(task)
	if err != nil {
		return nil, err
	}
	resp, err := client.Complete(ctx, prompt, system)
	if err != nil {
		return nil, err
	}
	return r.account(ctx, task, resp)
}

// CallStructured routes a task expecting structured JSON output. The schema
// hint is passed through to the provider client; the router does not parse
// or validate the response body.
func (r *Router) CallStructured(ctx context.Context, task, prompt, system string, schema map[string]any) (*models.Response, error) {
	client, err := r.clientFor(task)
	if err != nil {
		return nil, err
	}
	resp, err := client.CompleteStructured(ctx, prompt, system, schema)
	if err != nil {
		return nil, err
	}
	return r.account(ctx, task, resp)
}

// account logs the call to the ledger unconditionally, so cost accounting
// cannot be skipped by a forgetful caller.
func (r *Router) account(ctx context.Context, task string, resp *models.Response) (*models.Response, error) {
	r.metrics.RecordCall(ctx, task, resp.Provider, resp.Model, resp.CostUSD, resp.TotalTokens)
	if _, err := r.ledger.LogCall(task, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// clientFor resolves a task name through the routing table to a cached
// provider client.
func (r *Router) clientFor(task string) (llm.Client, error) {
	tc, ok := r.tasks[task]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownTask, task)
	}

	key := tc.Provider + ":" + tc.Model

	r.mu.Lock()
	defer r.mu.Unlock()

	if client, ok := r.clients[key]; ok {
		return client, nil
	}

	apiKey := os.Getenv(tc.APIKeyEnv)
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s (task %s)", ErrMissingAPIKey, tc.APIKeyEnv, task)
	}

	client, err := r.newClient(tc.Provider, llm.Options{
		APIKey:      apiKey,
		Model:       tc.Model,
		MaxTokens:   tc.MaxTokens,
		Temperature: tc.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("task %s: %w", task, err)
	}
	r.clients[key] = client
	return client, nil
}
