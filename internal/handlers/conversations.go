package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/AnshRaj112/converse-backend/internal/models"
	"github.com/AnshRaj112/converse-backend/internal/services"
	"github.com/google/uuid"
)

// CreateConversationRequest is the POST /api/conversations body.
type CreateConversationRequest struct {
	Type           string   `json:"type"`
	ParticipantIDs []string `json:"participant_ids"`
	Title          *string  `json:"title,omitempty"`
	Avatar         *string  `json:"avatar,omitempty"`
}

// CreateConversation creates a group conversation or finds-or-creates a DM.
// Returns 201 for a new conversation, 200 when an existing DM was reused.
func CreateConversation(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req CreateConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	participantIDs := make([]uuid.UUID, 0, len(req.ParticipantIDs))
	for _, raw := range req.ParticipantIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid participant id: "+raw)
			return
		}
		participantIDs = append(participantIDs, id)
	}

	conv, existing, err := services.CreateConversation(
		r.Context(),
		models.ConversationType(strings.TrimSpace(req.Type)),
		participantIDs,
		userID,
		req.Title,
		req.Avatar,
	)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	status := http.StatusCreated
	if existing {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success":      true,
		"conversation": conv,
	})
}

// GetConversations returns the caller's inbox. mode=search filters by group
// title or DM peer name via q=.
func GetConversations(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	mode := r.URL.Query().Get("mode")
	query := strings.TrimSpace(r.URL.Query().Get("q"))

	var (
		conversations []models.ConversationSummary
		err           error
	)
	if mode == "search" && query != "" {
		conversations, err = services.SearchConversations(r.Context(), query, userID)
	} else {
		conversations, err = services.ListConversations(r.Context(), userID)
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if conversations == nil {
		conversations = []models.ConversationSummary{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success":       true,
		"conversations": conversations,
	})
}
