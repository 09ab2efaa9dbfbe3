package models

import (
	"time"

	"github.com/google/uuid"
)

// ConversationType distinguishes two-person threads from group rooms.
type ConversationType string

const (
	ConversationTypeDM    ConversationType = "dm"
	ConversationTypeGroup ConversationType = "group"
)

// ParticipantRole controls room administration rights.
type ParticipantRole string

const (
	RoleMember ParticipantRole = "member"
	RoleAdmin  ParticipantRole = "admin"
)

// ReceiptStatus is the acknowledgement kind a recipient reports for a message.
type ReceiptStatus string

const (
	ReceiptDelivered ReceiptStatus = "delivered"
	ReceiptRead      ReceiptStatus = "read"
)

// Conversation is a DM or group thread. For DMs, title/avatar are usually
// empty and the client renders the other participant's profile instead.
type Conversation struct {
	ID        uuid.UUID        `json:"id"`
	Type      ConversationType `json:"type"`
	Title     *string          `json:"title,omitempty"`
	Avatar    *string          `json:"avatar,omitempty"`
	CreatedBy uuid.UUID        `json:"created_by"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// Participant is a membership row. LastReadMessageID is the read watermark:
// everything at or before it (under the message order) has been seen.
type Participant struct {
	ConversationID    uuid.UUID       `json:"conversation_id"`
	UserID            uuid.UUID       `json:"user_id"`
	Role              ParticipantRole `json:"role"`
	JoinedAt          time.Time       `json:"joined_at"`
	LastReadMessageID *uuid.UUID      `json:"last_read_message_id,omitempty"`
}

// MessageMetadata is the structured optional payload attached to a message.
// ClientMessageID is the caller-supplied idempotency key: retrying a send with
// the same value returns the originally persisted message.
type MessageMetadata struct {
	ClientMessageID string `json:"client_message_id,omitempty"`
	AttachmentURL   string `json:"attachment_url,omitempty"`
	ReplyToID       string `json:"reply_to_id,omitempty"`
}

// Message is one append-only log entry. IDs are UUIDv7 so they sort by
// creation time; ordering within a conversation is (created_at, id) desc.
type Message struct {
	ID             uuid.UUID        `json:"id"`
	ConversationID uuid.UUID        `json:"conversation_id"`
	SenderID       uuid.UUID        `json:"sender_id"`
	Content        string           `json:"content"`
	Type           string           `json:"type"`
	Metadata       *MessageMetadata `json:"metadata,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	Sender         *UserSummary     `json:"sender,omitempty"`
}

// MessageStatus tracks per-recipient delivery state. Rows exist only for
// conversations at or below the eager fan-out threshold.
type MessageStatus struct {
	MessageID   uuid.UUID  `json:"message_id"`
	UserID      uuid.UUID  `json:"user_id"`
	DeliveredAt *time.Time `json:"delivered_at,omitempty"`
	ReadAt      *time.Time `json:"read_at,omitempty"`
}

// UserSummary is the minimal sender projection sourced from the user
// directory (id, display name, handle, avatar).
type UserSummary struct {
	ID          uuid.UUID `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name"`
	Avatar      *string   `json:"avatar,omitempty"`
}

// ConversationSummary is the inbox projection: the conversation plus its
// latest message, the viewer's unseen count, and (for DMs) the peer whose
// profile supplies the displayed title/avatar.
type ConversationSummary struct {
	Conversation
	Peer        *UserSummary `json:"peer,omitempty"`
	PeerOnline  bool         `json:"peer_online,omitempty"`
	LastMessage *Message     `json:"last_message,omitempty"`
	UnseenCount int          `json:"unseen_count"`
}
