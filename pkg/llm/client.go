package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rivalis-ai/rivalis/pkg/models"
)

// ErrUnknownProvider is returned when no client factory is registered for a
// provider name. It is a configuration error, never retried.
var ErrUnknownProvider = errors.New("unknown llm provider")

// Client is the capability interface every provider implements. The router
// dispatches to any of them interchangeably.
type Client interface {
	// Complete sends a completion request and returns a standardised response.
	Complete(ctx context.Context, prompt, system string) (*models.Response, error)
	// CompleteStructured requests structured (JSON) output from the model.
	// The schema hint, if any, is passed to the model as an instruction; the
	// client does not validate or parse the response body against it.
	CompleteStructured(ctx context.Context, prompt, system string, schema map[string]any) (*models.Response, error)
	// Provider returns the canonical provider name.
	Provider() string
}

// Options configures a provider client.
type Options struct {
	APIKey      string
	Model       string
	MaxTokens   int
	Temperature float64

	// BaseURL overrides the provider's default endpoint. Used in tests.
	BaseURL string
	// HTTPClient overrides the default HTTP client. Used in tests.
	HTTPClient *http.Client
}

// Factory constructs a client from options.
type Factory func(Options) Client

// Canonical provider names. Aliases in the registry map onto these.
const (
	ProviderAnthropic = "anthropic"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderGrok      = "grok"
)

// factories maps provider names (and their common aliases) to constructors.
// Built once; no dynamic dispatch beyond this table.
var factories = map[string]Factory{
	ProviderAnthropic: NewAnthropic,
	"claude":          NewAnthropic,
	ProviderOpenAI:    NewOpenAI,
	"gpt":             NewOpenAI,
	ProviderGemini:    NewGemini,
	"google":          NewGemini,
	ProviderGrok:      NewGrok,
	"xai":             NewGrok,
}

// New creates a client for the named provider.
func New(provider string, opts Options) (Client, error) {
	factory, ok := factories[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	return factory(opts), nil
}

// Supported reports whether a provider name resolves to a client factory.
func Supported(provider string) bool {
	_, ok := factories[provider]
	return ok
}

// ProviderError is a distinguishable transport or API error from a provider.
// Status code drives retry classification upstream.
type ProviderError struct {
	Provider   string
	StatusCode int
	Message    string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s: HTTP %d: %s", e.Provider, e.StatusCode, e.Message)
}

const defaultMaxTokens = 4096

func (o *Options) applyDefaults(defaultBaseURL string) {
	if o.MaxTokens == 0 {
		o.MaxTokens = defaultMaxTokens
	}
	if o.BaseURL == "" {
		o.BaseURL = defaultBaseURL
	}
	if o.HTTPClient == nil {
		o.HTTPClient = &http.Client{Timeout: 60 * time.Second}
	}
}

// structuredSystem merges the caller's system prompt with the JSON-only
// instruction and optional schema hint.
func structuredSystem(system string, schema map[string]any) string {
	instruction := "Respond with valid JSON only. No markdown fences, no explanation."
	if schema != nil {
		if b, err := json.MarshalIndent(schema, "", "  "); err == nil {
			instruction += "\n\nExpected JSON schema:\n" + string(b)
		}
	}
	if system == "" {
		return instruction
	}
	return system + "\n\n" + instruction
}
