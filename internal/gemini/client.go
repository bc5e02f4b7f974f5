package gemini

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	DefaultBaseURL    = "https://generativelanguage.googleapis.com"
	DefaultAPIVersion = "v1beta"
	DefaultModel      = "gemini-2.0-flash"
)

// Endpoint identifies the generateContent method to call.
type Endpoint struct {
	// BaseURL is either the API host (e.g. "https://generativelanguage.googleapis.com")
	// or a full ".../models/<model>:generateContent" URL, in which case APIVersion
	// and Model are ignored.
	BaseURL    string
	APIVersion string
	Model      string
}

// URL returns the generateContent URL without the key parameter.
func (e Endpoint) URL() string {
	base := strings.TrimRight(e.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if strings.HasSuffix(base, ":generateContent") {
		return base
	}
	version := e.APIVersion
	if version == "" {
		version = DefaultAPIVersion
	}
	model := e.Model
	if model == "" {
		model = DefaultModel
	}
	return base + "/" + version + "/models/" + model + ":generateContent"
}

// Client sends generateContent requests over plain HTTP.
type Client struct {
	// generateURL already carries the key query parameter.
	generateURL string
	httpClient  *http.Client
}

// NewClient constructs a Client. timeout may be zero to rely on transport
// defaults only. proxyURL may be empty to use the default environment proxy.
func NewClient(endpoint Endpoint, apiKey string, timeout time.Duration, proxyURL string) (*Client, error) {
	u, err := url.Parse(endpoint.URL())
	if err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	q := u.Query()
	q.Set("key", apiKey)
	u.RawQuery = q.Encode()

	transport, err := newTransport(proxyURL)
	if err != nil {
		return nil, err
	}
	return &Client{
		generateURL: u.String(),
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
	}, nil
}

func newTransport(proxyURL string) (*http.Transport, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if proxyURL == "" {
		transport.Proxy = http.ProxyFromEnvironment
		return transport, nil
	}
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("parse proxy url: %q has no scheme or host", proxyURL)
	}
	transport.Proxy = http.ProxyURL(parsed)
	return transport, nil
}

// Send posts the request and returns the upstream status and body unmodified.
// A non-2xx status is not an error at this layer.
func (c *Client) Send(ctx context.Context, req *GenerateContentRequest) (*RawResponse, error) {
	body, err := MarshalRequest(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.generateURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", c.redact(err))
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("gemini request: %w", c.redact(err))
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return &RawResponse{StatusCode: resp.StatusCode, Body: raw}, nil
}

// redact strips the key from errors that embed the request URL.
func (c *Client) redact(err error) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = RedactKey(urlErr.URL)
	}
	return err
}

// RedactKey replaces the value of the key query parameter in rawURL.
func RedactKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	if q.Get("key") == "" {
		return rawURL
	}
	q.Set("key", "REDACTED")
	u.RawQuery = q.Encode()
	return u.String()
}
