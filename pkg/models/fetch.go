package models

// FetchResult is a best-effort snapshot of one URL fetch. Fetch failures are
// represented as data in Error rather than returned errors, so callers can
// process a batch of URLs without aborting on the first bad one.
type FetchResult struct {
	URL        string `json:"url"`
	StatusCode int    `json:"status_code,omitempty"`
	RawContent string `json:"raw_content,omitempty"`
	Text       string `json:"text,omitempty"`
	Title      string `json:"title,omitempty"`
	Error      string `json:"error,omitempty"`
}
