package proxy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	apierrors "github.com/zhengjr9/gemini-relay/internal/errors"
	"github.com/zhengjr9/gemini-relay/internal/relay"
)

// Asker answers one question. *relay.Relay implements it.
type Asker interface {
	Ask(ctx context.Context, question string) (string, error)
}

// QuestionRequest is the POST /ask body. Question is a pointer so a missing
// field is rejected instead of being read as an empty question.
type QuestionRequest struct {
	Question *string `json:"question"`
}

// AnswerResponse is the POST /ask success body.
type AnswerResponse struct {
	Answer string `json:"answer"`
}

// askHandler serves POST /ask.
type askHandler struct {
	asker Asker
}

func (h *askHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req QuestionRequest
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(&req); err != nil {
		apierrors.WriteJSONError(w, http.StatusUnprocessableEntity, fmt.Sprintf("%v: %v", apierrors.ErrMalformedBody, err))
		return
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		apierrors.WriteJSONError(w, http.StatusUnprocessableEntity, apierrors.ErrMalformedBody.Error()+": trailing data after JSON value")
		return
	}
	if req.Question == nil {
		apierrors.WriteJSONError(w, http.StatusUnprocessableEntity, apierrors.ErrMissingQuestion.Error())
		return
	}

	answer, err := h.asker.Ask(r.Context(), *req.Question)
	if err != nil {
		writeRelayError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, AnswerResponse{Answer: answer})
}

// preflight serves OPTIONS /ask. CORS headers are set by the cors middleware,
// which passes preflight requests through to here; a cross-origin preflight it
// left without Access-Control-Allow-Origin was rejected and gets a 400.
func preflight(w http.ResponseWriter, r *http.Request) {
	origin := r.Header.Get("Origin")
	slog.Info("preflight", "path", r.URL.Path, "origin", origin,
		"request_method", r.Header.Get("Access-Control-Request-Method"))
	if origin != "" && w.Header().Get("Access-Control-Allow-Origin") == "" {
		apierrors.WriteJSONError(w, http.StatusBadRequest, apierrors.ErrCORSRejected.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
}

// liveness serves GET /.
func liveness(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeRelayError(w http.ResponseWriter, err error) {
	var upErr *relay.UpstreamError
	var exErr *relay.ExtractionError
	switch {
	case errors.As(err, &upErr):
		apierrors.WriteJSONError(w, upErr.StatusCode, upErr.Body)
	case errors.As(err, &exErr):
		apierrors.WriteJSONError(w, http.StatusInternalServerError, exErr.Error())
	case relay.IsTimeout(err):
		apierrors.WriteJSONError(w, http.StatusGatewayTimeout, apierrors.ErrUpstreamTimeout.Error())
	default:
		apierrors.WriteJSONError(w, http.StatusBadGateway, "upstream error: "+err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		slog.Error("write response", "error", err)
	}
}
