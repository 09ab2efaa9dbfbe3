package services

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/AnshRaj112/converse-backend/internal/database"
	"github.com/AnshRaj112/converse-backend/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

var allowedMessageTypes = map[string]struct{}{
	"text": {}, "image": {}, "audio": {}, "video": {}, "file": {},
}

// CreateMessage validates and persists a message inside one transaction:
// membership check, idempotency lookup, message insert, and eager status rows
// all commit or roll back together. The second return value is true when the
// message was deduplicated via (sender_id, client_message_id); no new row is
// written on that path.
func CreateMessage(
	ctx context.Context,
	conversationID, senderID uuid.UUID,
	content, msgType string,
	metadata *models.MessageMetadata,
) (*models.Message, bool, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, false, fmt.Errorf("message content is required: %w", ErrValidation)
	}
	if msgType == "" {
		msgType = "text"
	}
	if _, ok := allowedMessageTypes[msgType]; !ok {
		return nil, false, fmt.Errorf("unknown message type %q: %w", msgType, ErrValidation)
	}

	clientMessageID := ""
	if metadata != nil {
		clientMessageID = strings.TrimSpace(metadata.ClientMessageID)
	}

	tx, err := database.PostgresDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	var convType models.ConversationType
	err = tx.QueryRowContext(ctx, `
		SELECT type FROM conversations WHERE id = $1
	`, conversationID).Scan(&convType)
	if err == sql.ErrNoRows {
		return nil, false, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	if err != nil {
		return nil, false, err
	}

	var isMember bool
	err = tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2)
	`, conversationID, senderID).Scan(&isMember)
	if err != nil {
		return nil, false, err
	}
	if !isMember {
		return nil, false, ErrNotParticipant
	}

	// Retried send: return the original row, no side effects.
	if clientMessageID != "" {
		existing, err := findMessageByClientID(ctx, tx, senderID, clientMessageID)
		if err != nil {
			return nil, false, err
		}
		if existing != nil {
			return annotateSender(ctx, existing), true, nil
		}
	}

	msgID, err := uuid.NewV7()
	if err != nil {
		return nil, false, err
	}

	// Truncate to Postgres timestamp resolution so the stored value matches
	// the one baked into cursors.
	now := time.Now().UTC().Truncate(time.Microsecond)

	msg := &models.Message{
		ID:             msgID,
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           msgType,
		Metadata:       metadata,
		CreatedAt:      now,
	}

	// JSONB wants text, not bytea; NULL when absent.
	var metadataArg sql.NullString
	if metadata != nil {
		metadataJSON, err := json.Marshal(metadata)
		if err != nil {
			return nil, false, err
		}
		metadataArg = sql.NullString{String: string(metadataJSON), Valid: true}
	}

	var clientIDArg sql.NullString
	if clientMessageID != "" {
		clientIDArg = sql.NullString{String: clientMessageID, Valid: true}
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, content, type, client_message_id, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, msg.ID, msg.ConversationID, msg.SenderID, msg.Content, msg.Type, clientIDArg, metadataArg, msg.CreatedAt)
	if err != nil {
		// A concurrent retry with the same idempotency key won; surface theirs.
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == pqUniqueViolation && clientMessageID != "" {
			tx.Rollback()
			existing, ferr := findMessageByClientID(ctx, nil, senderID, clientMessageID)
			if ferr == nil && existing != nil {
				return annotateSender(ctx, existing), true, nil
			}
		}
		return nil, false, err
	}

	var participantCount int
	err = tx.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM conversation_participants WHERE conversation_id = $1
	`, conversationID).Scan(&participantCount)
	if err != nil {
		return nil, false, err
	}

	// Eager per-recipient status rows, skipped entirely for large rooms.
	// The sender's row is pre-marked delivered and read.
	if participantCount <= statusFanoutLimit {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO message_statuses (message_id, user_id, delivered_at, read_at)
			SELECT $1, user_id,
				CASE WHEN user_id = $2 THEN $3::timestamp END,
				CASE WHEN user_id = $2 THEN $3::timestamp END
			FROM conversation_participants WHERE conversation_id = $4
		`, msg.ID, senderID, now, conversationID)
		if err != nil {
			return nil, false, err
		}
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE conversations SET updated_at = $1 WHERE id = $2
	`, now, conversationID)
	if err != nil {
		return nil, false, err
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}

	return annotateSender(ctx, msg), false, nil
}

// findMessageByClientID looks up a prior send by its idempotency key. Runs
// inside the caller's transaction when tx is non-nil.
func findMessageByClientID(ctx context.Context, tx *sql.Tx, senderID uuid.UUID, clientMessageID string) (*models.Message, error) {
	query := `
		SELECT id, conversation_id, sender_id, content, type, metadata, created_at
		FROM messages WHERE sender_id = $1 AND client_message_id = $2
	`
	var row *sql.Row
	if tx != nil {
		row = tx.QueryRowContext(ctx, query, senderID, clientMessageID)
	} else {
		row = database.PostgresDB.QueryRowContext(ctx, query, senderID, clientMessageID)
	}

	msg := &models.Message{}
	var metadataJSON []byte
	err := row.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Type, &metadataJSON, &msg.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(metadataJSON) > 0 {
		var meta models.MessageMetadata
		if json.Unmarshal(metadataJSON, &meta) == nil {
			msg.Metadata = &meta
		}
	}
	return msg, nil
}

// GetMessage loads a message by id.
func GetMessage(ctx context.Context, messageID uuid.UUID) (*models.Message, error) {
	msg := &models.Message{}
	var metadataJSON []byte
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT id, conversation_id, sender_id, content, type, metadata, created_at
		FROM messages WHERE id = $1
	`, messageID).Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Type, &metadataJSON, &msg.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("message %s: %w", messageID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	if len(metadataJSON) > 0 {
		var meta models.MessageMetadata
		if json.Unmarshal(metadataJSON, &meta) == nil {
			msg.Metadata = &meta
		}
	}
	return msg, nil
}

// GetMessages returns one history page for a participant. Ordering is the
// (created_at, id) descending keyset; nextCursor is non-empty only when the
// page is full, and the returned slice is resequenced oldest-first.
func GetMessages(
	ctx context.Context,
	conversationID, requesterID uuid.UUID,
	cursorToken string,
	limit int,
) ([]models.Message, string, error) {
	if _, err := GetConversation(ctx, conversationID); err != nil {
		return nil, "", err
	}
	isMember, err := IsParticipant(ctx, conversationID, requesterID)
	if err != nil {
		return nil, "", err
	}
	if !isMember {
		return nil, "", ErrNotParticipant
	}

	if limit <= 0 {
		limit = 50
	}
	if limit > pageSizeLimit {
		limit = pageSizeLimit
	}

	query := `
		SELECT id, conversation_id, sender_id, content, type, metadata, created_at
		FROM messages
		WHERE conversation_id = $1
	`
	args := []interface{}{conversationID}

	if cursorToken != "" {
		cursorAt, cursorID, err := DecodeMessageCursor(cursorToken)
		if err != nil {
			return nil, "", err
		}
		query += ` AND (created_at, id) < ($2, $3)`
		args = append(args, cursorAt, cursorID)
	}

	query += fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT %d`, limit)

	rows, err := database.PostgresDB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()

	var msgs []models.Message
	for rows.Next() {
		var msg models.Message
		var metadataJSON []byte
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &msg.SenderID, &msg.Content, &msg.Type, &metadataJSON, &msg.CreatedAt); err != nil {
			return nil, "", err
		}
		if len(metadataJSON) > 0 {
			var meta models.MessageMetadata
			if json.Unmarshal(metadataJSON, &meta) == nil {
				msg.Metadata = &meta
			}
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	// A full page means there may be older history; the cursor points at the
	// oldest row returned. A short page ends pagination.
	nextCursor := ""
	if len(msgs) == limit {
		oldest := msgs[len(msgs)-1]
		nextCursor = EncodeMessageCursor(oldest.CreatedAt, oldest.ID)
	}

	// Reverse to oldest-first for display.
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}

	if err := annotateSenders(ctx, msgs); err != nil {
		return nil, "", err
	}

	return msgs, nextCursor, nil
}

// MessageOrderBefore reports whether tuple (aAt, aID) sorts strictly before
// (bAt, bID) under the conversation total order (older first).
func MessageOrderBefore(aAt time.Time, aID uuid.UUID, bAt time.Time, bID uuid.UUID) bool {
	if !aAt.Equal(bAt) {
		return aAt.Before(bAt)
	}
	return aID.String() < bID.String()
}

func annotateSender(ctx context.Context, msg *models.Message) *models.Message {
	sender, err := GetUserSummary(ctx, msg.SenderID)
	if err == nil {
		msg.Sender = sender
	}
	return msg
}

func annotateSenders(ctx context.Context, msgs []models.Message) error {
	if len(msgs) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(msgs))
	seen := make(map[uuid.UUID]struct{})
	for _, m := range msgs {
		if _, ok := seen[m.SenderID]; ok {
			continue
		}
		seen[m.SenderID] = struct{}{}
		ids = append(ids, m.SenderID)
	}

	summaries, err := GetUserSummaries(ctx, ids)
	if err != nil {
		return err
	}
	for i := range msgs {
		if s, ok := summaries[msgs[i].SenderID]; ok {
			sender := s
			msgs[i].Sender = &sender
		}
	}
	return nil
}
