// Package ledger records per-call LLM costs and enforces the project budget.
package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rivalis-ai/rivalis/pkg/models"
	"github.com/rivalis-ai/rivalis/pkg/pipelog"
)

// ErrBudgetExceeded is returned by LogCall once cumulative cost reaches the
// budget. It is fatal: no retry can make a budget violation succeed.
var ErrBudgetExceeded = errors.New("llm budget exceeded")

// Ledger accrues one CostEntry per completed LLM call against a fixed budget.
// Threshold alerts fire exactly once per run; the mutex serialises accrual
// for callers that introduce concurrency later.
type Ledger struct {
	mu        sync.Mutex
	budgetUSD float64
	alertPcts []int
	alerted   map[int]bool
	entries   []models.CostEntry
	log       *pipelog.Logger
	path      string
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithEventLog attaches the event sink used for threshold alerts.
func WithEventLog(log *pipelog.Logger) Option {
	return func(l *Ledger) { l.log = log }
}

// WithPersistence makes the ledger rewrite its cost log file after every
// entry, so a crash loses at most the in-flight call.
func WithPersistence(path string) Option {
	return func(l *Ledger) { l.path = path }
}

// New creates a Ledger with the given budget and alert thresholds
// (percentages, e.g. 50 and 75).
func New(budgetUSD float64, alertPcts []int, opts ...Option) *Ledger {
	pcts := make([]int, len(alertPcts))
	copy(pcts, alertPcts)
	sort.Ints(pcts)

	l := &Ledger{
		budgetUSD: budgetUSD,
		alertPcts: pcts,
		alerted:   make(map[int]bool),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// LogCall appends one cost entry for a completed call, fires any newly
// crossed alert thresholds, and returns ErrBudgetExceeded once cumulative
// usage reaches 100% of the budget. The entry is recorded and persisted even
// when the budget error is returned, so the cost log reflects the violating
// call.
func (l *Ledger) LogCall(task string, resp *models.Response) (models.CostEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entry := models.CostEntry{
		Timestamp:    time.Now().UTC(),
		Task:         task,
		Provider:     resp.Provider,
		Model:        resp.Model,
		InputTokens:  resp.InputTokens,
		OutputTokens: resp.OutputTokens,
		CostUSD:      resp.CostUSD,
	}
	l.entries = append(l.entries, entry)

	budgetErr := l.checkBudget(task)

	if l.path != "" {
		if err := l.saveLocked(l.path); err != nil {
			if budgetErr != nil {
				return entry, budgetErr
			}
			return entry, fmt.Errorf("persist cost log: %w", err)
		}
	}
	return entry, budgetErr
}

// checkBudget fires pending threshold alerts in ascending order and returns
// ErrBudgetExceeded at or past 100%. Caller holds the mutex.
func (l *Ledger) checkBudget(task string) error {
	total := l.totalLocked()
	pct := l.pctUsedLocked(total)

	for _, threshold := range l.alertPcts {
		if pct >= float64(threshold) && !l.alerted[threshold] {
			l.alerted[threshold] = true
			l.log.Warn(task, "budget_alert",
				fmt.Sprintf("budget %.1f%% used ($%.4f / $%.2f)", pct, total, l.budgetUSD))
		}
	}

	if pct >= 100 {
		l.log.Error(task, "budget_exceeded",
			fmt.Sprintf("$%.4f >= $%.2f", total, l.budgetUSD))
		return fmt.Errorf("%w: $%.4f >= $%.2f", ErrBudgetExceeded, total, l.budgetUSD)
	}
	return nil
}

func (l *Ledger) totalLocked() float64 {
	var total float64
	for _, e := range l.entries {
		total += e.CostUSD
	}
	return total
}

func (l *Ledger) pctUsedLocked(total float64) float64 {
	if l.budgetUSD <= 0 {
		return 100
	}
	return total / l.budgetUSD * 100
}

// TotalCost returns the cumulative cost of all logged calls.
func (l *Ledger) TotalCost() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.totalLocked()
}

// Remaining returns the unspent budget, never negative.
func (l *Ledger) Remaining() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return math.Max(0, l.budgetUSD-l.totalLocked())
}

// PctUsed returns cumulative usage as a percentage of the budget.
func (l *Ledger) PctUsed() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pctUsedLocked(l.totalLocked())
}

// Entries returns a copy of all logged entries in order.
func (l *Ledger) Entries() []models.CostEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.CostEntry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Summary aggregates cost by provider and by task plus token totals. It can
// be computed at any point and is stable for identical inputs.
func (l *Ledger) Summary() models.CostSummary {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.summaryLocked()
}

func (l *Ledger) summaryLocked() models.CostSummary {
	s := models.CostSummary{
		BudgetUSD:  l.budgetUSD,
		TotalCalls: len(l.entries),
		ByProvider: make(map[string]float64),
		ByTask:     make(map[string]float64),
	}
	for _, e := range l.entries {
		s.TotalCostUSD += e.CostUSD
		s.TotalInputTokens += e.InputTokens
		s.TotalOutputTokens += e.OutputTokens
		s.ByProvider[e.Provider] += e.CostUSD
		s.ByTask[e.Task] += e.CostUSD
	}
	s.BudgetPctUsed = math.Round(l.pctUsedLocked(s.TotalCostUSD)*10) / 10
	s.TotalCostUSD = math.Round(s.TotalCostUSD*1e6) / 1e6
	return s
}

// Save writes the cost log (summary plus entries) as JSON to path.
func (l *Ledger) Save(path string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.saveLocked(path)
}

func (l *Ledger) saveLocked(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create cost log dir: %w", err)
		}
	}
	out := models.CostLog{
		Summary: l.summaryLocked(),
		Entries: l.entries,
	}
	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal cost log: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write cost log: %w", err)
	}
	return nil
}

// Load reads entries from a previously saved cost log, appending them to the
// ledger so accrual resumes across process restarts. A missing file is not
// an error.
func (l *Ledger) Load(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read cost log: %w", err)
	}

	var in models.CostLog
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("parse cost log: %w", err)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, in.Entries...)
	return nil
}
