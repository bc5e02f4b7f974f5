package gemini

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// PartPolicy decides how the answer text is taken from the first candidate.
type PartPolicy string

const (
	// PartFirst reads candidates[0].content.parts[0].text and nothing else.
	PartFirst PartPolicy = "first"
	// PartJoin concatenates the text of every part of the first candidate.
	PartJoin PartPolicy = "join"
)

// ParsePartPolicy validates a policy name. An empty name selects PartFirst.
func ParsePartPolicy(s string) (PartPolicy, error) {
	switch PartPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", PartFirst:
		return PartFirst, nil
	case PartJoin:
		return PartJoin, nil
	}
	return "", fmt.Errorf("unknown part policy %q (want %q or %q)", s, PartFirst, PartJoin)
}

var (
	errNoCandidates = errors.New("response has no candidates")
	errNoContent    = errors.New("candidates[0] has no content")
	errNoParts      = errors.New("candidates[0].content has no parts")
	errNoText       = errors.New("candidates[0].content.parts[0] has no text")
)

// NewQuestionRequest wraps question verbatim as the single text part of a single
// content block.
func NewQuestionRequest(question string) *GenerateContentRequest {
	return &GenerateContentRequest{
		Contents: []Content{
			{Parts: []Part{{Text: question}}},
		},
	}
}

// Question returns the text of the first part of the first content block, or ""
// when the request carries none.
func (r *GenerateContentRequest) Question() string {
	if r == nil || len(r.Contents) == 0 || len(r.Contents[0].Parts) == 0 {
		return ""
	}
	return r.Contents[0].Parts[0].Text
}

// MarshalRequest encodes the request body. HTML characters are left unescaped so
// the question reaches the upstream exactly as typed.
func MarshalRequest(req *GenerateContentRequest) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(req); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// ExtractAnswer parses an upstream body and returns the answer text according to
// policy. Any decoding failure or missing path is returned as an error.
func ExtractAnswer(body []byte, policy PartPolicy) (string, error) {
	var resp GenerateContentResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", errNoCandidates
	}
	content := resp.Candidates[0].Content
	if content == nil {
		return "", errNoContent
	}
	if len(content.Parts) == 0 {
		return "", errNoParts
	}

	if policy != PartJoin {
		if content.Parts[0].Text == nil {
			return "", errNoText
		}
		return *content.Parts[0].Text, nil
	}

	var sb strings.Builder
	found := false
	for _, p := range content.Parts {
		if p.Text == nil {
			continue
		}
		found = true
		sb.WriteString(*p.Text)
	}
	if !found {
		return "", errors.New("candidates[0].content has no text parts")
	}
	return sb.String(), nil
}
