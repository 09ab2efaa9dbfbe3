package routes

import (
	"github.com/AnshRaj112/converse-backend/internal/handlers"
	"github.com/go-chi/chi/v5"
)

func SetupRoutes(r *chi.Mux) {
	// Conversation directory
	r.Post("/api/conversations", handlers.CreateConversation)
	r.Get("/api/conversations", handlers.GetConversations)

	// Messages (idempotent send + keyset-paginated history)
	r.Post("/api/conversations/{id}/messages", handlers.SendMessage)
	r.Get("/api/conversations/{id}/messages", handlers.GetMessages)

	// WebSocket gateway for realtime chat (rooms, receipts, presence, typing)
	r.Get("/ws/chat", handlers.ChatWebSocket)
}
