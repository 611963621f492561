// Package pipeline provides the resilient execution contract every stage
// runs through: checkpoint-aware short-circuiting plus bounded
// exponential-backoff retry.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/rivalis-ai/rivalis/pkg/checkpoint"
	"github.com/rivalis-ai/rivalis/pkg/observability"
	"github.com/rivalis-ai/rivalis/pkg/pipelog"
)

// Executor wraps stage operations with checkpointing and retry. It is the
// single path through which pipeline work executes, so every stage gets the
// same idempotence and failure semantics.
type Executor struct {
	store   checkpoint.Store
	log     *pipelog.Logger
	metrics observability.MetricsRecorder
	project string

	maxAttempts int
	backoffBase float64
	sleep       func(time.Duration)
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxAttempts sets the retry budget, including the first attempt.
func WithMaxAttempts(n int) Option {
	return func(e *Executor) { e.maxAttempts = n }
}

// WithBackoffBase sets the exponential backoff base. The wait before attempt
// n is base^(n-1) seconds; no jitter, no cap.
func WithBackoffBase(base float64) Option {
	return func(e *Executor) { e.backoffBase = base }
}

// WithSleep replaces the sleep function. Used in tests.
func WithSleep(fn func(time.Duration)) Option {
	return func(e *Executor) { e.sleep = fn }
}

// WithMetrics attaches a metrics recorder.
func WithMetrics(m observability.MetricsRecorder) Option {
	return func(e *Executor) { e.metrics = m }
}

// NewExecutor creates an Executor for one project run.
func NewExecutor(store checkpoint.Store, log *pipelog.Logger, project string, opts ...Option) *Executor {
	e := &Executor{
		store:       store,
		log:         log,
		metrics:     observability.NoopMetrics{},
		project:     project,
		maxAttempts: 3,
		backoffBase: 2.0,
		sleep:       time.Sleep,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Key joins a stage name and optional sub-key into the composite checkpoint
// key. Distinct sub-keys yield distinct keys, so per-competitor invocations
// of the same stage never collide.
func Key(stage, subKey string) string {
	if subKey == "" {
		return stage
	}
	return stage + "_" + subKey
}

// Run executes op under the stage's composite key. A stored checkpoint
// short-circuits the call entirely; otherwise op runs up to the configured
// attempt budget with exponential backoff, and its result is checkpointed
// before being returned. Transient failures are retried; terminal and fatal
// ones abort immediately. Operation failures surface as an *ExhaustedError
// wrapping the last underlying error.
func Run[T any](ex *Executor, ctx context.Context, stage, subKey string, op func(context.Context) (T, error)) (T, error) {
	var zero T
	key := Key(stage, subKey)

	raw, loadErr := ex.store.Load(ex.project, key)
	if loadErr == nil {
		var cached T
		if uerr := json.Unmarshal(raw, &cached); uerr == nil {
			ex.log.Event(key, "checkpoint_hit", "loaded cached result")
			ex.metrics.RecordCheckpointHit(ctx, key)
			return cached, nil
		}
		// An undecodable checkpoint is treated as a miss; the stage re-runs
		// and overwrites it.
		ex.log.Warn(key, "checkpoint_corrupt", "stored payload undecodable, re-executing")
	} else if !errors.Is(loadErr, checkpoint.ErrNotFound) {
		ex.log.Warn(key, "checkpoint_error", loadErr.Error())
	}

	var lastErr error
	for attempt := 1; attempt <= ex.maxAttempts; attempt++ {
		ex.log.Event(key, "start", fmt.Sprintf("attempt %d/%d", attempt, ex.maxAttempts))

		result, err := op(ctx)
		ex.metrics.RecordStageAttempt(ctx, key, attempt, err)
		if err == nil {
			ex.log.Event(key, "complete", fmt.Sprintf("succeeded on attempt %d", attempt))
			loc, serr := ex.store.Save(ex.project, key, result)
			if serr != nil {
				ex.log.Error(key, "checkpoint_save_failed", serr.Error())
				return zero, fmt.Errorf("save checkpoint for %s: %w", key, serr)
			}
			ex.log.Event(key, "checkpoint_saved", loc)
			return result, nil
		}

		lastErr = err
		class := Classify(err)
		ex.log.Error(key, "error", fmt.Sprintf("attempt %d failed (%s): %v", attempt, class, err))

		if class != ClassTransient {
			ex.log.Error(key, "aborted", fmt.Sprintf("%s failure, not retrying", class))
			return zero, &ExhaustedError{Stage: key, Attempts: attempt, Err: err}
		}

		if attempt < ex.maxAttempts {
			wait := backoff(ex.backoffBase, attempt)
			ex.log.Event(key, "retry", fmt.Sprintf("waiting %s before retry", wait))
			ex.sleep(wait)
		}
	}

	ex.log.Error(key, "failed", fmt.Sprintf("all %d attempts exhausted", ex.maxAttempts))
	return zero, &ExhaustedError{Stage: key, Attempts: ex.maxAttempts, Err: lastErr}
}

// backoff returns base^(attempt-1) seconds.
func backoff(base float64, attempt int) time.Duration {
	return time.Duration(math.Pow(base, float64(attempt-1)) * float64(time.Second))
}
