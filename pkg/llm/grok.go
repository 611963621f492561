package llm

const grokBaseURL = "https://api.x.ai/v1"

// NewGrok creates an xAI Grok client. xAI exposes an OpenAI-compatible
// chat-completions API, so only the endpoint and pricing differ.
func NewGrok(opts Options) Client {
	opts.applyDefaults(grokBaseURL)
	return &openAICompatible{provider: ProviderGrok, opts: opts}
}
