package services

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/AnshRaj112/converse-backend/internal/database"
	"github.com/AnshRaj112/converse-backend/internal/models"
	"github.com/google/uuid"
)

// Event types pushed to clients.
const (
	EventTypeMessageCreated    = "message_created"
	EventTypeNewMessagePreview = "conversation_new_message"
	EventTypeMessageStatus     = "message_status_update"
	EventTypePresence          = "presence"
	EventTypeTyping            = "typing"
	EventTypeMessageSent       = "message_sent"
	EventTypeJoined            = "joined"
	EventTypeLeft              = "left"
	EventTypeError             = "error"
)

const chatChannelPrefix = "chat:"

// ConversationTopic is the pub/sub channel for a conversation room.
func ConversationTopic(conversationID uuid.UUID) string {
	return chatChannelPrefix + "conversation:" + conversationID.String()
}

// UserTopic is the pub/sub channel for a user's personal events (inbox
// previews, presence of DM peers).
func UserTopic(userID uuid.UUID) string {
	return chatChannelPrefix + "user:" + userID.String()
}

// ChatEvent represents the payload broadcast over Redis and WebSocket.
type ChatEvent struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversation_id,omitempty"`
	UserID         string          `json:"user_id,omitempty"`
	Message        *models.Message `json:"message,omitempty"`
	Preview        string          `json:"preview,omitempty"`
	MessageID      string          `json:"message_id,omitempty"`
	Status         string          `json:"status,omitempty"`
	Presence       string          `json:"presence,omitempty"`
	IsTyping       bool            `json:"is_typing,omitempty"`
	Ref            string          `json:"ref,omitempty"`
	Error          string          `json:"error,omitempty"`
	Timestamp      time.Time       `json:"timestamp,omitempty"`
}

// clientSub is one registered gateway connection: an outbound event channel
// plus the set of topics it currently listens to.
type clientSub struct {
	events chan<- ChatEvent
	topics map[string]struct{}
	mu     sync.RWMutex
}

// ChatHub is the per-instance registry of connections. It is a disposable
// cache: room authority lives in conversation_participants, cross-instance
// routing in Redis pub/sub.
type ChatHub struct {
	mu   sync.RWMutex
	subs map[string]*clientSub // connection id -> subscription
}

var (
	chatHub      = &ChatHub{subs: make(map[string]*clientSub)}
	redisStarted sync.Once
)

// RegisterConnection registers a connection's event channel. Every
// connection implicitly listens on its own user topic.
func RegisterConnection(connID string, userID uuid.UUID, events chan<- ChatEvent) {
	sub := &clientSub{
		events: events,
		topics: map[string]struct{}{UserTopic(userID): {}},
	}
	chatHub.mu.Lock()
	chatHub.subs[connID] = sub
	chatHub.mu.Unlock()
}

// UnregisterConnection removes a connection from the hub.
func UnregisterConnection(connID string) {
	chatHub.mu.Lock()
	delete(chatHub.subs, connID)
	chatHub.mu.Unlock()
}

// JoinTopic subscribes a registered connection to a topic. Callers must have
// re-validated room membership against conversation_participants first.
func JoinTopic(connID, topic string) {
	chatHub.mu.RLock()
	sub, ok := chatHub.subs[connID]
	chatHub.mu.RUnlock()
	if !ok {
		return
	}
	sub.mu.Lock()
	sub.topics[topic] = struct{}{}
	sub.mu.Unlock()
}

// LeaveTopic removes a topic subscription.
func LeaveTopic(connID, topic string) {
	chatHub.mu.RLock()
	sub, ok := chatHub.subs[connID]
	chatHub.mu.RUnlock()
	if !ok {
		return
	}
	sub.mu.Lock()
	delete(sub.topics, topic)
	sub.mu.Unlock()
}

// FanOutChatEvent delivers an event to every local connection subscribed to
// the topic. Sends are non-blocking: a slow consumer drops events rather than
// stalling the hub (clients recover via history on reconnect).
func FanOutChatEvent(topic string, event ChatEvent) {
	chatHub.mu.RLock()
	defer chatHub.mu.RUnlock()

	for connID, sub := range chatHub.subs {
		sub.mu.RLock()
		_, subscribed := sub.topics[topic]
		sub.mu.RUnlock()
		if !subscribed {
			continue
		}

		select {
		case sub.events <- event:
		default:
			log.Printf("chat hub: dropping %s event for slow connection %s", event.Type, connID)
		}
	}
}

// StartRedisChatSubscriber ensures a single shared Redis listener per instance.
func StartRedisChatSubscriber(ctx context.Context) {
	redisStarted.Do(func() {
		go runRedisSubscriber(ctx)
	})
}

func runRedisSubscriber(ctx context.Context) {
	client := database.RedisClient
	if client == nil {
		log.Println("Redis client not initialized; chat subscriber not started")
		return
	}

	backoff := time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		func() {
			pubsub := client.PSubscribe(ctx, chatChannelPrefix+"*")
			defer pubsub.Close()

			log.Println("✅ Chat Redis subscriber started (pattern: chat:*)")

			for {
				msg, err := pubsub.ReceiveMessage(ctx)
				if err != nil {
					log.Printf("Redis subscriber error: %v", err)
					time.Sleep(backoff)
					backoff *= 2
					if backoff > 30*time.Second {
						backoff = 30 * time.Second
					}
					return
				}

				backoff = time.Second

				var event ChatEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					log.Printf("failed to unmarshal chat event: %v", err)
					continue
				}

				// Fan out to local connections on the concrete channel.
				FanOutChatEvent(msg.Channel, event)
			}
		}()
	}
}

// PublishChatEvent publishes an event to a topic. Errors are returned so
// callers can log them; a failed publish never rolls back the state change
// that triggered it.
func PublishChatEvent(ctx context.Context, topic string, event ChatEvent) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return database.RedisClient.Publish(ctx, topic, data).Err()
}

// BroadcastMessageCreated pushes a committed message to its conversation room
// and a truncated preview to every participant's user topic so inbox badges
// update without a room join. Publish failures are logged and swallowed.
func BroadcastMessageCreated(ctx context.Context, msg *models.Message) {
	event := ChatEvent{
		Type:           EventTypeMessageCreated,
		ConversationID: msg.ConversationID.String(),
		UserID:         msg.SenderID.String(),
		Message:        msg,
	}
	if err := PublishChatEvent(ctx, ConversationTopic(msg.ConversationID), event); err != nil {
		log.Printf("failed to publish message_created for %s: %v", msg.ID, err)
	}

	participantIDs, err := ParticipantIDs(ctx, msg.ConversationID)
	if err != nil {
		log.Printf("failed to load participants for preview fan-out: %v", err)
		return
	}

	preview := ChatEvent{
		Type:           EventTypeNewMessagePreview,
		ConversationID: msg.ConversationID.String(),
		UserID:         msg.SenderID.String(),
		MessageID:      msg.ID.String(),
		Preview:        truncatePreview(msg.Content, 120),
	}
	for _, pid := range participantIDs {
		if pid == msg.SenderID {
			continue
		}
		if err := PublishChatEvent(ctx, UserTopic(pid), preview); err != nil {
			log.Printf("failed to publish preview to user %s: %v", pid, err)
		}
	}
}

// truncatePreview clips content for inbox badges without splitting a rune.
func truncatePreview(content string, max int) string {
	content = strings.TrimSpace(content)
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "…"
}
