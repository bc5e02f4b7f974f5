// Package relay forwards a question to the Gemini generateContent API and
// unwraps the first candidate's answer text.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/zhengjr9/gemini-relay/internal/gemini"
)

// Outcome labels one finished Ask call.
type Outcome string

const (
	OutcomeSucceeded        Outcome = "succeeded"
	OutcomeUpstreamFailed   Outcome = "upstream_failed"
	OutcomeExtractionFailed Outcome = "extraction_failed"
	OutcomeTransportFailed  Outcome = "transport_failed"
)

// Sender performs the single outbound generateContent call.
type Sender interface {
	Send(ctx context.Context, req *gemini.GenerateContentRequest) (*gemini.RawResponse, error)
}

// Recorder observes finished calls. The metrics package provides one.
type Recorder interface {
	ObserveAsk(outcome Outcome, duration time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ObserveAsk(Outcome, time.Duration) {}

// Option configures a Relay.
type Option func(*Relay)

// WithPartPolicy selects how answer text is read from the first candidate.
func WithPartPolicy(p gemini.PartPolicy) Option {
	return func(r *Relay) {
		if p != "" {
			r.policy = p
		}
	}
}

// WithRecorder installs an outcome recorder.
func WithRecorder(rec Recorder) Option {
	return func(r *Relay) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithLogger replaces the default slog logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Relay) {
		if l != nil {
			r.logger = l
		}
	}
}

// Relay is safe for concurrent use; it holds no per-call state.
type Relay struct {
	sender   Sender
	policy   gemini.PartPolicy
	recorder Recorder
	logger   *slog.Logger
}

// New constructs a Relay around sender.
func New(sender Sender, opts ...Option) *Relay {
	r := &Relay{
		sender:   sender,
		policy:   gemini.PartFirst,
		recorder: nopRecorder{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Ask sends question upstream and returns the extracted answer.
//
// Errors are *UpstreamError for a non-200 status, *ExtractionError when a 200
// body does not contain the answer path, and a wrapped transport error when no
// upstream response was received.
func (r *Relay) Ask(ctx context.Context, question string) (string, error) {
	start := time.Now()
	r.logger.DebugContext(ctx, "ask received", "question", question)

	answer, outcome, err := r.ask(ctx, question)
	r.recorder.ObserveAsk(outcome, time.Since(start))
	if err != nil {
		r.logger.WarnContext(ctx, "ask failed", "outcome", string(outcome), "error", err)
		return "", err
	}
	return answer, nil
}

func (r *Relay) ask(ctx context.Context, question string) (string, Outcome, error) {
	resp, err := r.sender.Send(ctx, gemini.NewQuestionRequest(question))
	if err != nil {
		return "", OutcomeTransportFailed, err
	}
	if resp.StatusCode != http.StatusOK {
		return "", OutcomeUpstreamFailed, &UpstreamError{StatusCode: resp.StatusCode, Body: string(resp.Body)}
	}

	answer, err := gemini.ExtractAnswer(resp.Body, r.policy)
	if err != nil {
		return "", OutcomeExtractionFailed, &ExtractionError{Err: err}
	}
	return answer, OutcomeSucceeded, nil
}

// IsTimeout reports whether err is a transport failure caused by a deadline.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
