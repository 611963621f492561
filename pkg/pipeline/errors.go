package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/rivalis-ai/rivalis/pkg/ledger"
	"github.com/rivalis-ai/rivalis/pkg/llm"
	"github.com/rivalis-ai/rivalis/pkg/router"
)

// Class determines how the executor reacts to a failure.
type Class int

const (
	// ClassTransient failures are consumed by the bounded retry loop.
	// Examples: timeouts, connection failures, provider 5xx.
	ClassTransient Class = iota

	// ClassTerminal failures abort on first occurrence; retrying cannot
	// help. Examples: unknown task names, malformed configuration, 4xx.
	ClassTerminal

	// ClassFatal failures abort the whole run. The only member today is a
	// budget violation, which must propagate uncaught through every layer.
	ClassFatal
)

// String returns the class name.
func (c Class) String() string {
	switch c {
	case ClassTransient:
		return "transient"
	case ClassTerminal:
		return "terminal"
	case ClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ClassifiedError carries an explicit retry classification, letting stage
// operations override the default classification of their failures.
type ClassifiedError struct {
	Err     error
	Class   Class
	Context string
}

// Error implements the error interface.
func (e *ClassifiedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Context, e.Err, e.Class)
	}
	return fmt.Sprintf("%s (%s)", e.Err, e.Class)
}

// Unwrap returns the underlying error.
func (e *ClassifiedError) Unwrap() error { return e.Err }

// Transient marks an error as retryable.
func Transient(err error, context string) *ClassifiedError {
	return &ClassifiedError{Err: err, Class: ClassTransient, Context: context}
}

// Terminal marks an error as non-retryable.
func Terminal(err error, context string) *ClassifiedError {
	return &ClassifiedError{Err: err, Class: ClassTerminal, Context: context}
}

// Fatal marks an error as run-aborting.
func Fatal(err error, context string) *ClassifiedError {
	return &ClassifiedError{Err: err, Class: ClassFatal, Context: context}
}

// Classify determines how a failure should be handled. An unclassified
// failure defaults to transient, since a failing stage invocation is exactly
// what the retry loop exists for.
func Classify(err error) Class {
	if err == nil {
		return ClassTerminal
	}

	var classified *ClassifiedError
	if errors.As(err, &classified) {
		return classified.Class
	}

	if errors.Is(err, ledger.ErrBudgetExceeded) {
		return ClassFatal
	}

	if errors.Is(err, router.ErrUnknownTask) || errors.Is(err, router.ErrMissingAPIKey) || errors.Is(err, llm.ErrUnknownProvider) {
		return ClassTerminal
	}

	var provErr *llm.ProviderError
	if errors.As(err, &provErr) {
		switch provErr.StatusCode {
		case http.StatusRequestTimeout, http.StatusTooManyRequests:
			return ClassTransient
		case http.StatusUnauthorized, http.StatusForbidden:
			return ClassTerminal
		default:
			if provErr.StatusCode >= 500 {
				return ClassTransient
			}
			return ClassTerminal
		}
	}

	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ClassTerminal
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ClassTransient
	}

	return ClassTransient
}

// ExhaustedError is the executor's terminal failure: the retry budget is
// spent (or the failure was not retryable) and the last underlying error is
// surfaced with the operation's identity and attempt count.
type ExhaustedError struct {
	Stage    string
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("stage %q failed after %d attempt(s): %v", e.Stage, e.Attempts, e.Err)
}

// Unwrap returns the last underlying error.
func (e *ExhaustedError) Unwrap() error { return e.Err }
