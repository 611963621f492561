package models

import "time"

// CostEntry is one completed LLM call. Entries are append-only and owned
// exclusively by the cost ledger.
type CostEntry struct {
	Timestamp    time.Time `json:"timestamp"`
	Task         string    `json:"task"`
	Provider     string    `json:"provider"`
	Model        string    `json:"model"`
	InputTokens  int       `json:"input_tokens"`
	OutputTokens int       `json:"output_tokens"`
	CostUSD      float64   `json:"cost_usd"`
}

// CostSummary aggregates ledger entries for reporting.
type CostSummary struct {
	TotalCostUSD      float64            `json:"total_cost_usd"`
	BudgetUSD         float64            `json:"budget_usd"`
	BudgetPctUsed     float64            `json:"budget_pct_used"`
	TotalCalls        int                `json:"total_calls"`
	TotalInputTokens  int                `json:"total_input_tokens"`
	TotalOutputTokens int                `json:"total_output_tokens"`
	ByProvider        map[string]float64 `json:"by_provider"`
	ByTask            map[string]float64 `json:"by_task"`
}

// CostLog is the on-disk cost log format.
type CostLog struct {
	Summary CostSummary `json:"summary"`
	Entries []CostEntry `json:"entries"`
}
