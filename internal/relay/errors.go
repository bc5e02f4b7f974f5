package relay

import "fmt"

// UpstreamError reports a non-200 upstream status. Body is the raw upstream
// response text, forwarded to callers unmodified.
type UpstreamError struct {
	StatusCode int
	Body       string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned %d: %s", e.StatusCode, e.Body)
}

// ExtractionError reports a 200 upstream response whose answer could not be read.
type ExtractionError struct {
	Err error
}

func (e *ExtractionError) Error() string {
	return "Failed to parse response: " + e.Err.Error()
}

func (e *ExtractionError) Unwrap() error { return e.Err }
