package models

// Response is the standardised response shape every LLM provider client
// must produce, regardless of the upstream API's native format.
type Response struct {
	Content      string  `json:"content"`
	Model        string  `json:"model"`
	Provider     string  `json:"provider"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	TotalTokens  int     `json:"total_tokens"`
	CostUSD      float64 `json:"cost_usd"`
	FinishReason string  `json:"finish_reason,omitempty"`
}
