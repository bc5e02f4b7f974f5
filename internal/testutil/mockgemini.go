package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
)

// MockGemini is an httptest.Server that simulates the Gemini
// models/{model}:generateContent endpoint.
type MockGemini struct {
	Server *httptest.Server

	mu sync.Mutex
	// Configurable response
	status int
	body   string

	// Captured from the most recent request
	lastPath        string
	lastKey         string
	lastContentType string
	lastBody        []byte
}

// NewMockGemini starts a mock that answers every request with a single
// candidate whose only part carries answer.
func NewMockGemini(answer string) *MockGemini {
	m := &MockGemini{}
	m.SetAnswer(answer)
	m.Server = httptest.NewServer(http.HandlerFunc(m.handle))
	return m
}

// Close shuts down the mock server.
func (m *MockGemini) Close() {
	m.Server.Close()
}

// URL returns the base URL of the mock server.
func (m *MockGemini) URL() string {
	return m.Server.URL
}

// SetAnswer makes the mock return a well-formed 200 response carrying answer.
func (m *MockGemini) SetAnswer(answer string) {
	resp := map[string]any{
		"candidates": []any{
			map[string]any{
				"content": map[string]any{
					"role":  "model",
					"parts": []any{map[string]any{"text": answer}},
				},
				"finishReason": "STOP",
			},
		},
		"modelVersion": "gemini-2.0-flash",
	}
	raw, _ := json.Marshal(resp)
	m.SetResponse(http.StatusOK, string(raw))
}

// SetResponse makes the mock return status and body verbatim.
func (m *MockGemini) SetResponse(status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
	m.body = body
}

// LastPath returns the request path of the most recent call.
func (m *MockGemini) LastPath() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPath
}

// LastKey returns the key query parameter of the most recent call.
func (m *MockGemini) LastKey() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastKey
}

// LastContentType returns the Content-Type header of the most recent call.
func (m *MockGemini) LastContentType() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastContentType
}

// LastBody returns the raw request body of the most recent call.
func (m *MockGemini) LastBody() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastBody
}

// LastQuestion decodes the most recent request body and returns
// contents[0].parts[0].text, or "" when the body does not have that shape.
func (m *MockGemini) LastQuestion() string {
	var req struct {
		Contents []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"contents"`
	}
	if err := json.Unmarshal(m.LastBody(), &req); err != nil {
		return ""
	}
	if len(req.Contents) == 0 || len(req.Contents[0].Parts) == 0 {
		return ""
	}
	return req.Contents[0].Parts[0].Text
}

func (m *MockGemini) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || !strings.HasSuffix(r.URL.Path, ":generateContent") {
		http.NotFound(w, r)
		return
	}
	raw, _ := io.ReadAll(r.Body)

	m.mu.Lock()
	m.lastPath = r.URL.Path
	m.lastKey = r.URL.Query().Get("key")
	m.lastContentType = r.Header.Get("Content-Type")
	m.lastBody = raw
	status, body := m.status, m.body
	m.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}
