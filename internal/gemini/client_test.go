package gemini

import (
	"context"
	"net"
	"net/http"
	"strings"
	"testing"

	"github.com/zhengjr9/gemini-relay/internal/testutil"
)

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		name string
		in   Endpoint
		want string
	}{
		{"defaults", Endpoint{}, "https://generativelanguage.googleapis.com/v1beta/models/gemini-2.0-flash:generateContent"},
		{"trailing slash", Endpoint{BaseURL: "http://x/", APIVersion: "v1", Model: "m"}, "http://x/v1/models/m:generateContent"},
		{"full method URL", Endpoint{BaseURL: "http://x/custom/models/m:generateContent", Model: "ignored"}, "http://x/custom/models/m:generateContent"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.in.URL(); got != tt.want {
				t.Errorf("URL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestClient_Send(t *testing.T) {
	mock := testutil.NewMockGemini("4")
	defer mock.Close()

	c, err := NewClient(Endpoint{BaseURL: mock.URL()}, "secret-key", 0, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	resp, err := c.Send(context.Background(), NewQuestionRequest("2+2?"))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
	if answer, err := ExtractAnswer(resp.Body, PartFirst); err != nil || answer != "4" {
		t.Errorf("answer = %q, %v; want \"4\"", answer, err)
	}

	if got := mock.LastPath(); got != "/v1beta/models/gemini-2.0-flash:generateContent" {
		t.Errorf("path = %q", got)
	}
	if got := mock.LastKey(); got != "secret-key" {
		t.Errorf("key = %q, want secret-key", got)
	}
	if got := mock.LastContentType(); got != "application/json" {
		t.Errorf("content-type = %q", got)
	}
	if got := string(mock.LastBody()); got != `{"contents":[{"parts":[{"text":"2+2?"}]}]}` {
		t.Errorf("body = %s", got)
	}
}

func TestClient_SendReturnsNon200Verbatim(t *testing.T) {
	mock := testutil.NewMockGemini("")
	defer mock.Close()
	mock.SetResponse(http.StatusServiceUnavailable, `"quota exceeded"`)

	c, err := NewClient(Endpoint{BaseURL: mock.URL()}, "k", 0, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	resp, err := c.Send(context.Background(), NewQuestionRequest("x"))
	if err != nil {
		t.Fatalf("Send: %v", err)
	}
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	if string(resp.Body) != `"quota exceeded"` {
		t.Errorf("body = %q", resp.Body)
	}
}

func TestClient_TransportErrorRedactsKey(t *testing.T) {
	// Reserve a port and close it so the dial is refused.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().String()
	ln.Close()

	c, err := NewClient(Endpoint{BaseURL: "http://" + addr}, "super-secret", 0, "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	_, err = c.Send(context.Background(), NewQuestionRequest("x"))
	if err == nil {
		t.Fatal("expected transport error")
	}
	if strings.Contains(err.Error(), "super-secret") {
		t.Errorf("error leaks key: %v", err)
	}
	if !strings.Contains(err.Error(), "REDACTED") {
		t.Errorf("error should carry redacted URL: %v", err)
	}
}

func TestRedactKey(t *testing.T) {
	got := RedactKey("https://h/v1beta/models/m:generateContent?key=abc")
	if strings.Contains(got, "abc") || !strings.Contains(got, "key=REDACTED") {
		t.Errorf("RedactKey = %q", got)
	}
	if got := RedactKey("https://h/no-key"); got != "https://h/no-key" {
		t.Errorf("RedactKey without key = %q", got)
	}
}

func TestNewClient_InvalidProxyURL(t *testing.T) {
	for _, proxy := range []string{"http://[::1", "proxy-without-scheme"} {
		if _, err := NewClient(Endpoint{}, "k", 0, proxy); err == nil {
			t.Errorf("NewClient(proxy %q): expected error", proxy)
		}
		if _, err := NewSDKClient(context.Background(), Endpoint{}, "k", 0, proxy); err == nil {
			t.Errorf("NewSDKClient(proxy %q): expected error", proxy)
		}
	}
}

func TestNewClient_ValidProxyURL(t *testing.T) {
	if _, err := NewClient(Endpoint{}, "k", 0, "http://127.0.0.1:3128"); err != nil {
		t.Fatalf("NewClient: %v", err)
	}
}
