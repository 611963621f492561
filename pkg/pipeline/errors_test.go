package pipeline

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rivalis-ai/rivalis/pkg/ledger"
	"github.com/rivalis-ai/rivalis/pkg/llm"
	"github.com/rivalis-ai/rivalis/pkg/router"
)

type fakeTimeout struct{}

func (fakeTimeout) Error() string   { return "i/o timeout" }
func (fakeTimeout) Timeout() bool   { return true }
func (fakeTimeout) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Class
	}{
		{"nil", nil, ClassTerminal},
		{"explicit transient", Transient(errors.New("boom"), "stage"), ClassTransient},
		{"explicit terminal", Terminal(errors.New("boom"), "stage"), ClassTerminal},
		{"explicit fatal", Fatal(errors.New("boom"), "stage"), ClassFatal},
		{"budget exceeded", fmt.Errorf("call: %w", ledger.ErrBudgetExceeded), ClassFatal},
		{"unknown task", fmt.Errorf("%w: drafting", router.ErrUnknownTask), ClassTerminal},
		{"missing api key", fmt.Errorf("%w: OPENAI_API_KEY", router.ErrMissingAPIKey), ClassTerminal},
		{"unknown provider", fmt.Errorf("%w: watson", llm.ErrUnknownProvider), ClassTerminal},
		{"provider 429", &llm.ProviderError{Provider: "anthropic", StatusCode: 429}, ClassTransient},
		{"provider 408", &llm.ProviderError{Provider: "anthropic", StatusCode: 408}, ClassTransient},
		{"provider 500", &llm.ProviderError{Provider: "openai", StatusCode: 500}, ClassTransient},
		{"provider 503", &llm.ProviderError{Provider: "openai", StatusCode: 503}, ClassTransient},
		{"provider 401", &llm.ProviderError{Provider: "gemini", StatusCode: 401}, ClassTerminal},
		{"provider 403", &llm.ProviderError{Provider: "gemini", StatusCode: 403}, ClassTerminal},
		{"provider 400", &llm.ProviderError{Provider: "grok", StatusCode: 400}, ClassTerminal},
		{"wrapped provider error", fmt.Errorf("call: %w", &llm.ProviderError{StatusCode: 502}), ClassTransient},
		{"context canceled", context.Canceled, ClassTerminal},
		{"deadline exceeded", context.DeadlineExceeded, ClassTerminal},
		{"net timeout", fakeTimeout{}, ClassTransient},
		{"unclassified", errors.New("something odd"), ClassTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassString(t *testing.T) {
	assert.Equal(t, "transient", ClassTransient.String())
	assert.Equal(t, "terminal", ClassTerminal.String())
	assert.Equal(t, "fatal", ClassFatal.String())
}

func TestExhaustedErrorUnwraps(t *testing.T) {
	cause := &llm.ProviderError{Provider: "anthropic", StatusCode: 500, Message: "overloaded"}
	err := &ExhaustedError{Stage: "research_globex", Attempts: 3, Err: cause}

	assert.Contains(t, err.Error(), "research_globex")
	assert.Contains(t, err.Error(), "3 attempt")

	var provErr *llm.ProviderError
	assert.ErrorAs(t, err, &provErr)
	assert.Equal(t, 500, provErr.StatusCode)
}
