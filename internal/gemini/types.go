package gemini

// GenerateContentRequest mirrors the Gemini generateContent request body.
type GenerateContentRequest struct {
	Contents []Content `json:"contents"`
}

// Content is a single turn in a Gemini conversation.
type Content struct {
	Role  string `json:"role,omitempty"` // "user" | "model"
	Parts []Part `json:"parts"`
}

// Part carries text content.
type Part struct {
	Text string `json:"text"`
}

// GenerateContentResponse is the subset of the Gemini response the relay reads.
// Text is a pointer so an absent field can be told apart from an empty answer.
type GenerateContentResponse struct {
	Candidates []Candidate `json:"candidates"`
}

// Candidate is one response candidate.
type Candidate struct {
	Content *CandidateContent `json:"content"`
}

// CandidateContent holds the generated parts of a candidate.
type CandidateContent struct {
	Parts []CandidatePart `json:"parts"`
}

// CandidatePart is one generated part. Non-text parts leave Text nil.
type CandidatePart struct {
	Text *string `json:"text"`
}

// RawResponse is the upstream status and body exactly as received.
type RawResponse struct {
	StatusCode int
	Body       []byte
}
