package services

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// messageCursor is the decoded form of the opaque pagination token: the
// (created_at, id) ordering tuple of the last message the client has seen.
// Timestamps travel as Unix microseconds to match Postgres timestamp
// resolution, so encode/decode round-trips exactly.
type messageCursor struct {
	CreatedAtMicro int64     `json:"t"`
	MessageID      uuid.UUID `json:"id"`
}

// EncodeMessageCursor builds an opaque token from a message's ordering tuple.
func EncodeMessageCursor(createdAt time.Time, messageID uuid.UUID) string {
	data, _ := json.Marshal(messageCursor{
		CreatedAtMicro: createdAt.UTC().UnixMicro(),
		MessageID:      messageID,
	})
	return base64.RawURLEncoding.EncodeToString(data)
}

// DecodeMessageCursor parses a token back into its ordering tuple. A bad
// token is a validation error, never treated as "no cursor".
func DecodeMessageCursor(token string) (time.Time, uuid.UUID, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("malformed cursor: %w", ErrValidation)
	}

	var c messageCursor
	if err := json.Unmarshal(raw, &c); err != nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("malformed cursor: %w", ErrValidation)
	}
	if c.CreatedAtMicro == 0 || c.MessageID == uuid.Nil {
		return time.Time{}, uuid.Nil, fmt.Errorf("cursor missing required fields: %w", ErrValidation)
	}

	return time.UnixMicro(c.CreatedAtMicro).UTC(), c.MessageID, nil
}
