package server

import (
	"encoding/json"
	stdliberrors "errors"
	"fmt"
	"net/http"

	apperrors "github.com/samanhappy/selectly/pkg/errors"
	"github.com/samanhappy/selectly/pkg/logging"
	"github.com/samanhappy/selectly/pkg/model"
)

type chatRequest struct {
	Prompt   string          `json:"prompt,omitempty"`
	Messages []model.Message `json:"messages,omitempty"`
	Model    string          `json:"model,omitempty"`
}

func (req *chatRequest) messages() []model.Message {
	if len(req.Messages) > 0 {
		return req.Messages
	}
	return []model.Message{{Role: "user", Content: req.Prompt}}
}

func (req *chatRequest) validate() error {
	if req.Prompt == "" && len(req.Messages) == 0 {
		return apperrors.New(apperrors.ErrCodeInvalidInput, "prompt or messages required")
	}
	return nil
}

func decodeChatRequest(w http.ResponseWriter, r *http.Request) (*chatRequest, bool) {
	var req chatRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 4<<20)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, apperrors.Wrap(err, apperrors.ErrCodeInvalidInput, "parsing chat request"))
		return nil, false
	}
	if err := req.validate(); err != nil {
		respondError(w, http.StatusBadRequest, err)
		return nil, false
	}
	return &req, true
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	content, err := s.router.ChatMessages(r.Context(), req.messages(), req.Model)
	if err != nil {
		metricChatRequests.WithLabelValues("error").Inc()
		s.appLogger.Error(logging.CategoryModel, "chat_failed", err.Error(),
			map[string]any{"model": req.Model})
		respondError(w, statusForError(err), err)
		return
	}

	metricChatRequests.WithLabelValues("ok").Inc()
	respondJSON(w, map[string]any{"content": content})
}

// handleChatStream relays model deltas as server-sent events. Each delta is
// one "data:" frame; the stream ends with either a "done" or "error" event.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeChatRequest(w, r)
	if !ok {
		return
	}

	flusher, canFlush := w.(http.Flusher)
	if !canFlush {
		respondError(w, http.StatusInternalServerError, apperrors.New(apperrors.ErrCodeInternal, "streaming unsupported"))
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")

	writeEvent := func(event string, payload any) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		if event != "" {
			fmt.Fprintf(w, "event: %s\n", event)
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	err := s.router.ChatStream(r.Context(), req.messages(), func(delta, usedModel string) {
		writeEvent("", map[string]string{"delta": delta, "model": usedModel})
	}, req.Model)

	if err != nil {
		metricChatRequests.WithLabelValues("error").Inc()
		s.appLogger.Error(logging.CategoryModel, "chat_stream_failed", err.Error(),
			map[string]any{"model": req.Model})
		writeEvent("error", errorPayload(err))
		return
	}

	metricChatRequests.WithLabelValues("ok").Inc()
	writeEvent("done", map[string]string{})
}

func errorPayload(err error) map[string]any {
	payload := map[string]any{"message": err.Error()}
	if code := apperrors.GetCode(err); code != "" {
		payload["code"] = string(code)
	}
	var appErr *apperrors.Error
	if stdliberrors.As(err, &appErr) {
		if appErr.UserMessage != "" {
			payload["message"] = appErr.UserMessage
		}
		payload["retryable"] = appErr.Retryable
	}
	return payload
}
