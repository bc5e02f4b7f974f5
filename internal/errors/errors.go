package errors

import (
	"encoding/json"
	"errors"
	"net/http"
)

var (
	ErrMalformedBody   = errors.New("malformed request body")
	ErrMissingQuestion = errors.New("field required: question")
	ErrUpstreamTimeout = errors.New("upstream request timed out")
	ErrCORSRejected    = errors.New("disallowed CORS preflight")
)

type jsonError struct {
	Error  string `json:"error"`
	Detail string `json:"detail"`
}

// WriteJSONError writes {"error": <status text>, "detail": detail} with statusCode.
// detail is written without HTML escaping so upstream bodies pass through intact.
func WriteJSONError(w http.ResponseWriter, statusCode int, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	body := jsonError{
		Error:  http.StatusText(statusCode),
		Detail: detail,
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(body)
}
