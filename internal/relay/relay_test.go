package relay

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhengjr9/gemini-relay/internal/gemini"
)

type stubSender struct {
	resp  *gemini.RawResponse
	err   error
	calls int
	last  *gemini.GenerateContentRequest
}

func (s *stubSender) Send(_ context.Context, req *gemini.GenerateContentRequest) (*gemini.RawResponse, error) {
	s.calls++
	s.last = req
	return s.resp, s.err
}

type recordedAsk struct {
	outcome  Outcome
	duration time.Duration
}

type stubRecorder struct {
	asks []recordedAsk
}

func (r *stubRecorder) ObserveAsk(o Outcome, d time.Duration) {
	r.asks = append(r.asks, recordedAsk{outcome: o, duration: d})
}

func ok(body string) *gemini.RawResponse {
	return &gemini.RawResponse{StatusCode: http.StatusOK, Body: []byte(body)}
}

func TestAsk_Succeeds(t *testing.T) {
	sender := &stubSender{resp: ok(`{"candidates":[{"content":{"parts":[{"text":"4"}]}}]}`)}
	rec := &stubRecorder{}
	r := New(sender, WithRecorder(rec))

	answer, err := r.Ask(context.Background(), "2+2?")
	require.NoError(t, err)
	assert.Equal(t, "4", answer)
	assert.Equal(t, 1, sender.calls)
	assert.Equal(t, "2+2?", sender.last.Question())
	require.Len(t, rec.asks, 1)
	assert.Equal(t, OutcomeSucceeded, rec.asks[0].outcome)
}

func TestAsk_PassesQuestionThroughUnchanged(t *testing.T) {
	for _, q := range []string{"", "  spaced  ", "a\nb", "<script>&amp;</script>"} {
		sender := &stubSender{resp: ok(`{"candidates":[{"content":{"parts":[{"text":"x"}]}}]}`)}
		_, err := New(sender).Ask(context.Background(), q)
		require.NoError(t, err)
		require.Len(t, sender.last.Contents, 1)
		require.Len(t, sender.last.Contents[0].Parts, 1)
		assert.Equal(t, q, sender.last.Contents[0].Parts[0].Text)
	}
}

func TestAsk_UpstreamError(t *testing.T) {
	for _, status := range []int{http.StatusBadRequest, http.StatusForbidden, http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusCreated} {
		sender := &stubSender{resp: &gemini.RawResponse{StatusCode: status, Body: []byte(`"quota exceeded"`)}}
		rec := &stubRecorder{}

		_, err := New(sender, WithRecorder(rec)).Ask(context.Background(), "x")

		var upErr *UpstreamError
		require.ErrorAs(t, err, &upErr)
		assert.Equal(t, status, upErr.StatusCode)
		assert.Equal(t, `"quota exceeded"`, upErr.Body)
		assert.Equal(t, OutcomeUpstreamFailed, rec.asks[0].outcome)
	}
}

func TestAsk_ExtractionError(t *testing.T) {
	tests := map[string]string{
		"no candidates": `{"error":"nope"}`,
		"not json":      `<html>oops</html>`,
		"empty parts":   `{"candidates":[{"content":{"parts":[]}}]}`,
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			rec := &stubRecorder{}
			_, err := New(&stubSender{resp: ok(body)}, WithRecorder(rec)).Ask(context.Background(), "x")

			var exErr *ExtractionError
			require.ErrorAs(t, err, &exErr)
			assert.Contains(t, err.Error(), "Failed to parse response")
			assert.NotNil(t, errors.Unwrap(err))
			assert.Equal(t, OutcomeExtractionFailed, rec.asks[0].outcome)
		})
	}
}

func TestAsk_TransportError(t *testing.T) {
	boom := errors.New("connection refused")
	rec := &stubRecorder{}
	_, err := New(&stubSender{err: boom}, WithRecorder(rec)).Ask(context.Background(), "x")

	require.ErrorIs(t, err, boom)
	var upErr *UpstreamError
	var exErr *ExtractionError
	assert.False(t, errors.As(err, &upErr))
	assert.False(t, errors.As(err, &exErr))
	assert.Equal(t, OutcomeTransportFailed, rec.asks[0].outcome)
	assert.False(t, IsTimeout(err))
}

func TestAsk_JoinPolicy(t *testing.T) {
	sender := &stubSender{resp: ok(`{"candidates":[{"content":{"parts":[{"text":"Hello, "},{"text":"world"}]}}]}`)}

	answer, err := New(sender, WithPartPolicy(gemini.PartJoin)).Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello, world", answer)

	answer, err = New(sender).Ask(context.Background(), "hi")
	require.NoError(t, err)
	assert.Equal(t, "Hello, ", answer)
}

func TestIsTimeout(t *testing.T) {
	assert.True(t, IsTimeout(context.DeadlineExceeded))
	assert.True(t, IsTimeout(errors.Join(errors.New("gemini request"), context.DeadlineExceeded)))
	assert.False(t, IsTimeout(context.Canceled))
	assert.False(t, IsTimeout(errors.New("eof")))
}
