package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/AnshRaj112/converse-backend/internal/services"
	"github.com/google/uuid"
)

// extractBearerToken returns the token from "Authorization: Bearer <token>".
func extractBearerToken(header string) string {
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	}
	return ""
}

// requireUser resolves the request's bearer credential to a user id, writing
// a 401 response and returning false when it cannot.
func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	token := extractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		token = r.URL.Query().Get("token")
	}

	userID, ok, err := services.ResolveUser(r.Context(), token)
	if err != nil || !ok {
		writeError(w, http.StatusUnauthorized, "invalid or missing credentials")
		return uuid.Nil, false
	}
	return userID, true
}

// writeError emits the standard failure envelope.
func writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"success": false,
		"message": message,
	})
}

// writeServiceError maps service failure classes to HTTP statuses. The
// authorization message is deliberately generic so membership probing leaks
// nothing about the conversation.
func writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, services.ErrValidation):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, services.ErrNotParticipant):
		writeError(w, http.StatusForbidden, "not a participant of this conversation")
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
