package llm

// rate is USD per 1M tokens.
type rate struct {
	input  float64
	output float64
}

// Static price tables per provider. Unknown models fall back to the
// provider's default rate so cost accounting never silently drops a call.
var pricing = map[string]map[string]rate{
	ProviderAnthropic: {
		"claude-sonnet-4-20250514": {input: 3.0, output: 15.0},
		"claude-opus-4-20250514":   {input: 15.0, output: 75.0},
		"claude-haiku-3-20250414":  {input: 0.25, output: 1.25},
	},
	ProviderOpenAI: {
		"gpt-4o":      {input: 2.50, output: 10.0},
		"gpt-4o-mini": {input: 0.15, output: 0.60},
		"gpt-4-turbo": {input: 10.0, output: 30.0},
	},
	ProviderGemini: {
		"gemini-2.0-flash": {input: 0.10, output: 0.40},
		"gemini-1.5-pro":   {input: 1.25, output: 5.00},
		"gemini-1.5-flash": {input: 0.075, output: 0.30},
	},
	ProviderGrok: {
		"grok-2":      {input: 2.0, output: 10.0},
		"grok-2-mini": {input: 0.30, output: 0.50},
	},
}

var defaultRates = map[string]rate{
	ProviderAnthropic: {input: 3.0, output: 15.0},
	ProviderOpenAI:    {input: 2.50, output: 10.0},
	ProviderGemini:    {input: 0.10, output: 0.40},
	ProviderGrok:      {input: 2.0, output: 10.0},
}

// estimateCost computes the USD cost of a call from token counts.
func estimateCost(provider, model string, inputTokens, outputTokens int) float64 {
	r, ok := pricing[provider][model]
	if !ok {
		r = defaultRates[provider]
	}
	return (float64(inputTokens)*r.input + float64(outputTokens)*r.output) / 1_000_000
}
