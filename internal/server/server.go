// Package server exposes the conversational agent over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/jmylchreest/homescout/internal/agent"
	"github.com/jmylchreest/homescout/internal/conversation"
	"github.com/jmylchreest/homescout/internal/listing"
	"github.com/jmylchreest/homescout/internal/logger"
)

const maxBodyBytes = 64 << 10

// Responder answers a user message within a conversation.
type Responder interface {
	Respond(ctx context.Context, conv *conversation.Conversation, text string) (agent.Reply, error)
}

// ChatRequest is the body of POST /chat.
type ChatRequest struct {
	Message        string `json:"message" validate:"required"`
	ConversationID string `json:"conversation_id,omitempty" validate:"omitempty,max=128"`
}

// ChatResponse is the reply to POST /chat. Listings holds the listings of
// the conversation's latest search and is null until one has run.
type ChatResponse struct {
	ConversationID string           `json:"conversation_id"`
	Reply          string           `json:"reply"`
	Listings       []listing.Record `json:"listings"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Handler serves the chat API.
type Handler struct {
	responder Responder
	convs     *conversation.Store
	validate  *validator.Validate
	timeout   time.Duration
}

// Option configures a Handler.
type Option func(*Handler)

// WithTurnTimeout bounds a single chat turn. Zero means no bound beyond the
// request's own context.
func WithTurnTimeout(d time.Duration) Option {
	return func(h *Handler) { h.timeout = d }
}

// New creates a Handler.
func New(r Responder, convs *conversation.Store, opts ...Option) *Handler {
	h := &Handler{
		responder: r,
		convs:     convs,
		validate:  validator.New(validator.WithRequiredStructEnabled()),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Routes returns the API mux wrapped in the CORS middleware.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/chat", h.HandleChat)
	mux.HandleFunc("/chat/", h.HandleConversation)
	mux.HandleFunc("/healthcheck", h.HandleHealth)
	return CORS(mux)
}

// HandleChat handles POST /chat.
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		h.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			h.writeError(w, "request body is empty", http.StatusBadRequest)
			return
		}
		h.writeError(w, "invalid JSON: "+err.Error(), http.StatusBadRequest)
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if err := h.validate.Struct(req); err != nil {
		h.writeError(w, validationMessage(err), http.StatusUnprocessableEntity)
		return
	}

	conv, created := h.convs.GetOrCreate(req.ConversationID)
	log := logger.ForSession("conversation", conv.ID)
	if created {
		log.Info("new conversation", "remote", r.RemoteAddr)
	}

	ctx := r.Context()
	if h.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.timeout)
		defer cancel()
	}

	reply, err := h.responder.Respond(ctx, conv, req.Message)
	if err != nil {
		log.Error("chat turn failed", "error", err)
		status := http.StatusBadGateway
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		h.writeError(w, "agent failed to respond", status)
		return
	}

	h.writeJSON(w, http.StatusOK, ChatResponse{
		ConversationID: conv.ID,
		Reply:          reply.Text,
		Listings:       reply.Listings,
	})
}

// HandleConversation handles DELETE /chat/{id}.
func (h *Handler) HandleConversation(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/chat/")
	if id == "" || strings.Contains(id, "/") {
		h.writeError(w, "not found", http.StatusNotFound)
		return
	}
	if r.Method != http.MethodDelete {
		w.Header().Set("Allow", http.MethodDelete)
		h.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if !h.convs.Delete(id) {
		h.writeError(w, "conversation not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleHealth handles GET /healthcheck.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		h.writeError(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"conversations": h.convs.Len(),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("unable to encode JSON response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, message string, status int) {
	if status >= http.StatusInternalServerError {
		logger.Error(message, "status", status)
	} else {
		logger.Debug(message, "status", status)
	}
	h.writeJSON(w, status, errorResponse{Error: message})
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		if fe.Field() == "ConversationID" {
			field = "conversation_id"
		}
		msgs = append(msgs, field+" failed "+fe.Tag())
	}
	return strings.Join(msgs, "; ")
}
