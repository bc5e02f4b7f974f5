package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"
)

// SDKClient sends generateContent requests through the genai SDK. Its results are
// folded back into a RawResponse so callers extract answers the same way for
// both transports.
type SDKClient struct {
	client *genai.Client
	model  string
}

// NewSDKClient constructs an SDKClient against the Gemini API backend.
func NewSDKClient(ctx context.Context, endpoint Endpoint, apiKey string, timeout time.Duration, proxyURL string) (*SDKClient, error) {
	model := endpoint.Model
	if model == "" {
		model = DefaultModel
	}
	base := strings.TrimRight(endpoint.BaseURL, "/")
	if base == "" {
		base = DefaultBaseURL
	}
	if strings.HasSuffix(base, ":generateContent") {
		return nil, fmt.Errorf("sdk transport needs a base URL, got full method URL %q", base)
	}

	transport, err := newTransport(proxyURL)
	if err != nil {
		return nil, err
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
		HTTPClient: &http.Client{
			Timeout:   timeout,
			Transport: transport,
		},
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    base + "/",
			APIVersion: endpoint.APIVersion,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &SDKClient{client: client, model: model}, nil
}

// Send issues the call. genai.APIError values become a RawResponse carrying the
// API error's code and a {"error": ...} body; other failures are returned as errors.
func (c *SDKClient) Send(ctx context.Context, req *GenerateContentRequest) (*RawResponse, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.model, toGenaiContents(req), nil)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return apiErrorResponse(apiErr), nil
		}
		return nil, fmt.Errorf("gemini request: %w", err)
	}

	body, err := json.Marshal(fromGenaiResponse(resp))
	if err != nil {
		return nil, fmt.Errorf("encode response: %w", err)
	}
	return &RawResponse{StatusCode: http.StatusOK, Body: body}, nil
}

func toGenaiContents(req *GenerateContentRequest) []*genai.Content {
	contents := make([]*genai.Content, 0, len(req.Contents))
	for _, c := range req.Contents {
		role := c.Role
		if role == "" {
			role = genai.RoleUser
		}
		parts := make([]*genai.Part, 0, len(c.Parts))
		for _, p := range c.Parts {
			parts = append(parts, genai.NewPartFromText(p.Text))
		}
		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}
	return contents
}

// fromGenaiResponse copies candidate text into the relay's response shape.
// genai drops empty Text on encoding, so parts are converted field by field.
func fromGenaiResponse(resp *genai.GenerateContentResponse) *GenerateContentResponse {
	out := &GenerateContentResponse{Candidates: []Candidate{}}
	if resp == nil {
		return out
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			out.Candidates = append(out.Candidates, Candidate{})
			continue
		}
		content := &CandidateContent{Parts: make([]CandidatePart, 0, len(cand.Content.Parts))}
		for _, p := range cand.Content.Parts {
			var part CandidatePart
			if isTextPart(p) {
				text := p.Text
				part.Text = &text
			}
			content.Parts = append(content.Parts, part)
		}
		out.Candidates = append(out.Candidates, Candidate{Content: content})
	}
	return out
}

// isTextPart reports whether p carries text, including an empty answer.
func isTextPart(p *genai.Part) bool {
	if p == nil {
		return false
	}
	if p.Text != "" {
		return true
	}
	return p.InlineData == nil && p.FileData == nil &&
		p.FunctionCall == nil && p.FunctionResponse == nil &&
		p.ExecutableCode == nil && p.CodeExecutionResult == nil
}

func apiErrorResponse(apiErr genai.APIError) *RawResponse {
	code := apiErr.Code
	if code == 0 {
		code = http.StatusBadGateway
	}
	body, err := json.Marshal(map[string]genai.APIError{"error": apiErr})
	if err != nil {
		body = []byte(apiErr.Message)
	}
	return &RawResponse{StatusCode: code, Body: body}
}
