package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/AnshRaj112/converse-backend/internal/models"
	"github.com/AnshRaj112/converse-backend/internal/services"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// SendMessageRequest is the POST /api/conversations/{id}/messages body.
// metadata.client_message_id makes retries of the same send idempotent.
type SendMessageRequest struct {
	Content  string                  `json:"content"`
	Type     string                  `json:"type,omitempty"`
	Metadata *models.MessageMetadata `json:"metadata,omitempty"`
}

// SendMessage persists a message and broadcasts it. Returns 201 with the new
// message, or 200 with the original when the idempotency key deduplicated.
func SendMessage(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, duplicated, err := services.CreateMessage(r.Context(), conversationID, userID, req.Content, req.Type, req.Metadata)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	// Duplicates were already broadcast when first created.
	if !duplicated {
		services.BroadcastMessageCreated(r.Context(), msg)
	}

	status := http.StatusCreated
	if duplicated {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": true,
		"message": msg,
	})
}

// GetMessagesResponse is the history page envelope. next_cursor is null once
// history is exhausted.
type GetMessagesResponse struct {
	Success    bool             `json:"success"`
	Messages   []models.Message `json:"messages"`
	NextCursor *string          `json:"next_cursor"`
}

// GetMessages serves keyset-paginated history for a conversation.
// Query params:
//
//	cursor (optional, opaque token from a previous page)
//	limit  (optional, default 50, max 100)
func GetMessages(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	conversationID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conversation id")
		return
	}

	limit := 0
	if lStr := r.URL.Query().Get("limit"); lStr != "" {
		if parsed, err := strconv.Atoi(lStr); err == nil {
			limit = parsed
		}
	}

	msgs, nextCursor, err := services.GetMessages(r.Context(), conversationID, userID, r.URL.Query().Get("cursor"), limit)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	resp := GetMessagesResponse{
		Success:  true,
		Messages: msgs,
	}
	if resp.Messages == nil {
		resp.Messages = []models.Message{}
	}
	if nextCursor != "" {
		resp.NextCursor = &nextCursor
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}
