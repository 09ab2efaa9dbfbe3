package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/AnshRaj112/converse-backend/internal/models"
	"github.com/AnshRaj112/converse-backend/internal/services"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var chatUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS for WebSocket is handled at the HTTP layer already.
		return true
	},
}

// ChatClientMessage represents messages coming from the frontend over WebSocket.
type ChatClientMessage struct {
	Type           string                  `json:"type"` // "join_conversation", "leave_conversation", "send_message", "message_ack", "typing", "ping"
	ConversationID string                  `json:"conversation_id,omitempty"`
	Content        string                  `json:"content,omitempty"`
	MessageType    string                  `json:"message_type,omitempty"`
	Metadata       *models.MessageMetadata `json:"metadata,omitempty"`
	MessageID      string                  `json:"message_id,omitempty"`
	Status         string                  `json:"status,omitempty"`
	IsTyping       bool                    `json:"is_typing,omitempty"`
	Ref            string                  `json:"ref,omitempty"` // echoed in the send acknowledgement
}

// ChatWebSocket is the realtime gateway endpoint. A connection authenticates
// once, then joins conversation rooms it is a participant of; events reach it
// through the instance-local hub fed by the shared Redis subscriber. All
// writes go through a single writer goroutine, so hub fan-out and direct
// acknowledgements share the events channel.
func ChatWebSocket(w http.ResponseWriter, r *http.Request) {
	token := extractBearerToken(r.Header.Get("Authorization"))
	if token == "" {
		// Browser WebSocket clients cannot set headers; allow query param.
		token = r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing credentials", http.StatusUnauthorized)
			return
		}
	}

	userID, ok, err := services.ResolveUser(r.Context(), token)
	if err != nil || !ok {
		http.Error(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	conn, err := chatUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	connID := uuid.New().String()
	events := make(chan services.ChatEvent, 32)

	services.RegisterConnection(connID, userID, events)
	defer services.UnregisterConnection(connID)

	if err := services.PresenceConnect(ctx, userID, connID); err != nil {
		log.Printf("presence connect failed for %s: %v", userID, err)
	}
	defer func() {
		// Fresh context: the reader context is already cancelled on the way out.
		dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer dcancel()
		if err := services.PresenceDisconnect(dctx, userID, connID); err != nil {
			log.Printf("presence disconnect failed for %s: %v", userID, err)
		}
	}()

	// Writer goroutine: the only writer on this connection.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case evt := <-events:
				if err := conn.WriteJSON(evt); err != nil {
					return
				}
			}
		}
	}()

	// reply queues an event for the local connection without going through
	// Redis. Same non-blocking policy as hub fan-out.
	reply := func(evt services.ChatEvent) {
		select {
		case events <- evt:
		default:
		}
	}

	conn.SetReadLimit(64 * 1024)
	_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
	conn.SetPongHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))
		return nil
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(90 * time.Second))

		var msg ChatClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		switch msg.Type {
		case "join_conversation":
			handleJoinConversation(ctx, reply, connID, userID, msg)
		case "leave_conversation":
			if cid, err := uuid.Parse(msg.ConversationID); err == nil {
				services.LeaveTopic(connID, services.ConversationTopic(cid))
				reply(services.ChatEvent{
					Type:           services.EventTypeLeft,
					ConversationID: cid.String(),
					Ref:            msg.Ref,
				})
			}
		case "send_message":
			handleSendMessage(ctx, reply, userID, msg)
		case "message_ack":
			handleMessageAck(ctx, reply, userID, msg)
		case "typing":
			handleTyping(ctx, userID, msg)
		case "ping":
			services.RefreshPresence(ctx, userID)
		default:
			// Ignore unknown types
		}
	}
}

// handleJoinConversation re-validates membership against current participant
// rows before subscribing, so a removed participant cannot rejoin on a stale
// prior check.
func handleJoinConversation(ctx context.Context, reply func(services.ChatEvent), connID string, userID uuid.UUID, msg ChatClientMessage) {
	conversationID, err := uuid.Parse(strings.TrimSpace(msg.ConversationID))
	if err != nil {
		replyError(reply, msg.Ref, "invalid conversation id")
		return
	}

	isMember, err := services.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		replyError(reply, msg.Ref, "failed to verify membership")
		return
	}
	if !isMember {
		replyError(reply, msg.Ref, "not a participant of this conversation")
		return
	}

	services.JoinTopic(connID, services.ConversationTopic(conversationID))
	reply(services.ChatEvent{
		Type:           services.EventTypeJoined,
		ConversationID: conversationID.String(),
		Ref:            msg.Ref,
	})
}

// handleSendMessage persists the message and acknowledges to the sender with
// the persisted (or deduplicated) row. Retrying after a missed ack with the
// same client_message_id is safe.
func handleSendMessage(ctx context.Context, reply func(services.ChatEvent), userID uuid.UUID, msg ChatClientMessage) {
	conversationID, err := uuid.Parse(strings.TrimSpace(msg.ConversationID))
	if err != nil {
		replyError(reply, msg.Ref, "invalid conversation id")
		return
	}

	saved, duplicated, err := services.CreateMessage(ctx, conversationID, userID, msg.Content, msg.MessageType, msg.Metadata)
	if err != nil {
		replyError(reply, msg.Ref, sendErrorMessage(err))
		return
	}

	if !duplicated {
		services.BroadcastMessageCreated(ctx, saved)
	}

	reply(services.ChatEvent{
		Type:           services.EventTypeMessageSent,
		ConversationID: conversationID.String(),
		Message:        saved,
		Ref:            msg.Ref,
	})
}

func handleMessageAck(ctx context.Context, reply func(services.ChatEvent), userID uuid.UUID, msg ChatClientMessage) {
	messageID, err := uuid.Parse(strings.TrimSpace(msg.MessageID))
	if err != nil {
		replyError(reply, msg.Ref, "invalid message id")
		return
	}

	err = services.AcknowledgeMessage(ctx, messageID, userID, models.ReceiptStatus(msg.Status))
	if err != nil {
		replyError(reply, msg.Ref, sendErrorMessage(err))
	}
}

// handleTyping relays a fire-and-forget typing indicator to the room. The
// sender must actually hold a participant row; the event is best-effort.
func handleTyping(ctx context.Context, userID uuid.UUID, msg ChatClientMessage) {
	conversationID, err := uuid.Parse(strings.TrimSpace(msg.ConversationID))
	if err != nil {
		return
	}
	isMember, err := services.IsParticipant(ctx, conversationID, userID)
	if err != nil || !isMember {
		return
	}

	_ = services.PublishChatEvent(ctx, services.ConversationTopic(conversationID), services.ChatEvent{
		Type:           services.EventTypeTyping,
		ConversationID: conversationID.String(),
		UserID:         userID.String(),
		IsTyping:       msg.IsTyping,
	})
}

func replyError(reply func(services.ChatEvent), ref, message string) {
	reply(services.ChatEvent{
		Type:  services.EventTypeError,
		Error: message,
		Ref:   ref,
	})
}

// sendErrorMessage maps service errors to client-facing text without leaking
// internals past the authorization boundary.
func sendErrorMessage(err error) string {
	switch {
	case errors.Is(err, services.ErrValidation):
		return err.Error()
	case errors.Is(err, services.ErrNotParticipant):
		return "not a participant of this conversation"
	case errors.Is(err, services.ErrNotFound):
		return "not found"
	default:
		return "internal error"
	}
}
