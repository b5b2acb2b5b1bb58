package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/crewquery/engine/pkg/logging"
	"github.com/crewquery/engine/pkg/models"
	"github.com/crewquery/engine/pkg/services"
)

const (
	maxMessageLength         = 4000
	defaultConversationLimit = 50
	defaultHistoryLimit      = 50
)

// ChatRequest is the POST /api/chat/message payload.
type ChatRequest struct {
	Message        string  `json:"message"`
	ConversationID *string `json:"conversation_id,omitempty"`
}

// ChatResponse is the chat endpoint's reply shape.
type ChatResponse struct {
	Success          bool                    `json:"success"`
	Response         string                  `json:"response"`
	Intent           string                  `json:"intent"`
	ConversationID   string                  `json:"conversation_id"`
	SQLQuery         *string                 `json:"sql_query,omitempty"`
	SQLResults       *models.ExecutionResult `json:"sql_results,omitempty"`
	Clarification    *string                 `json:"clarification,omitempty"`
	Suggestions      []string                `json:"suggestions,omitempty"`
	ProcessingTimeMs int64                   `json:"processing_time_ms"`
	Error            *string                 `json:"error,omitempty"`
}

// ChatHandler serves the conversational endpoints.
type ChatHandler struct {
	chat          *services.ChatService
	conversations *services.ConversationService
	logger        *zap.Logger
}

// NewChatHandler creates a ChatHandler.
func NewChatHandler(chat *services.ChatService, conversations *services.ConversationService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		chat:          chat,
		conversations: conversations,
		logger:        logger.Named("http"),
	}
}

// RegisterRoutes registers the chat routes on the given mux.
func (h *ChatHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/chat/message", h.Message)
	mux.HandleFunc("GET /api/chat/conversations", h.Conversations)
	mux.HandleFunc("GET /api/chat/history/{id}", h.History)
}

// Message handles POST /api/chat/message.
func (h *ChatHandler) Message(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "request body must be valid JSON")
		return
	}

	message := strings.TrimSpace(req.Message)
	if message == "" {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "message is required")
		return
	}
	if len(message) > maxMessageLength {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "message is too long")
		return
	}

	var conversationID *uuid.UUID
	if req.ConversationID != nil && *req.ConversationID != "" {
		parsed, err := uuid.Parse(*req.ConversationID)
		if err != nil {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "conversation_id must be a UUID")
			return
		}
		conversationID = &parsed
	}

	result, err := h.chat.HandleMessage(r.Context(), message, conversationID)
	if err != nil {
		h.logger.Error("chat turn failed", zap.String("error", logging.SanitizeError(err)))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to process message")
		return
	}

	_ = WriteJSON(w, http.StatusOK, toChatResponse(result))
}

func toChatResponse(result *services.ChatResult) ChatResponse {
	return ChatResponse{
		Success:          result.Success,
		Response:         result.Response,
		Intent:           result.Intent,
		ConversationID:   result.ConversationID.String(),
		SQLQuery:         result.SQLQuery,
		SQLResults:       result.SQLResults,
		Clarification:    result.Clarification,
		Suggestions:      result.Suggestions,
		ProcessingTimeMs: result.ProcessingTimeMs,
		Error:            result.Error,
	}
}

// ConversationSummary is one row of GET /api/chat/conversations.
type ConversationSummary struct {
	ID            string `json:"id"`
	CreatedAt     string `json:"created_at"`
	LastMessageAt string `json:"last_message_at"`
	TurnCount     int    `json:"turn_count"`
}

// Conversations handles GET /api/chat/conversations.
func (h *ChatHandler) Conversations(w http.ResponseWriter, r *http.Request) {
	limit := defaultConversationLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	conversations, err := h.conversations.List(r.Context(), limit)
	if err != nil {
		h.logger.Error("failed to list conversations", zap.String("error", logging.SanitizeError(err)))
		_ = ErrorResponse(w, http.StatusInternalServerError, "internal_error", "failed to list conversations")
		return
	}

	out := make([]ConversationSummary, 0, len(conversations))
	for _, c := range conversations {
		out = append(out, ConversationSummary{
			ID:            c.ID.String(),
			CreatedAt:     c.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
			LastMessageAt: c.LastMessageAt.UTC().Format("2006-01-02T15:04:05Z"),
			TurnCount:     c.TurnCount,
		})
	}
	_ = WriteJSON(w, http.StatusOK, map[string]any{"conversations": out})
}

// TurnView is one turn of GET /api/chat/history/{id}.
type TurnView struct {
	Utterance     string  `json:"utterance"`
	Rewritten     *string `json:"rewritten,omitempty"`
	Intent        string  `json:"intent"`
	SQLQuery      *string `json:"sql_query,omitempty"`
	ResultSummary *string `json:"result_summary,omitempty"`
	CreatedAt     string  `json:"created_at"`
}

// History handles GET /api/chat/history/{id}.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		_ = ErrorResponse(w, http.StatusBadRequest, "invalid_request", "conversation id must be a UUID")
		return
	}

	turns, err := h.conversations.History(r.Context(), id, defaultHistoryLimit)
	if err != nil {
		_ = ErrorResponse(w, http.StatusNotFound, "not_found", "conversation not found")
		return
	}

	out := make([]TurnView, 0, len(turns))
	for _, t := range turns {
		out = append(out, TurnView{
			Utterance:     t.Utterance,
			Rewritten:     t.Rewritten,
			Intent:        t.Intent,
			SQLQuery:      t.SQLQuery,
			ResultSummary: t.ResultSummary,
			CreatedAt:     t.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	_ = WriteJSON(w, http.StatusOK, map[string]any{
		"conversation_id": id.String(),
		"turns":           out,
	})
}
