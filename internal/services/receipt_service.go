package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/AnshRaj112/converse-backend/internal/database"
	"github.com/AnshRaj112/converse-backend/internal/models"
	"github.com/google/uuid"
)

// AcknowledgeMessage records a delivered/read receipt for (messageID, userID),
// advances the reader's watermark on read, and broadcasts the update to the
// conversation room. The upsert keeps the earliest timestamp, so a replayed
// ack never regresses Delivered → Read state.
func AcknowledgeMessage(ctx context.Context, messageID, userID uuid.UUID, status models.ReceiptStatus) error {
	if status != models.ReceiptDelivered && status != models.ReceiptRead {
		return fmt.Errorf("unknown receipt status %q: %w", status, ErrValidation)
	}

	msg, err := GetMessage(ctx, messageID)
	if err != nil {
		return err
	}

	isMember, err := IsParticipant(ctx, msg.ConversationID, userID)
	if err != nil {
		return err
	}
	if !isMember {
		return ErrNotParticipant
	}

	now := time.Now().UTC().Truncate(time.Microsecond)

	tx, err := database.PostgresDB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// read does not backfill delivered_at; the read state implies delivery
	// semantically without the store inventing a delivery time.
	if status == models.ReceiptDelivered {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO message_statuses (message_id, user_id, delivered_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (message_id, user_id)
			DO UPDATE SET delivered_at = COALESCE(message_statuses.delivered_at, EXCLUDED.delivered_at)
		`, messageID, userID, now)
	} else {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO message_statuses (message_id, user_id, read_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (message_id, user_id)
			DO UPDATE SET read_at = COALESCE(message_statuses.read_at, EXCLUDED.read_at)
		`, messageID, userID, now)
	}
	if err != nil {
		return err
	}

	// Forward-only watermark: a late-arriving ack for an older message must
	// not move last_read_message_id backwards under the (created_at, id) order.
	if status == models.ReceiptRead {
		_, err = tx.ExecContext(ctx, `
			UPDATE conversation_participants cp
			SET last_read_message_id = $1
			WHERE cp.conversation_id = $2 AND cp.user_id = $3
				AND (
					cp.last_read_message_id IS NULL
					OR EXISTS (
						SELECT 1 FROM messages cur
						WHERE cur.id = cp.last_read_message_id
							AND (cur.created_at, cur.id) < ($4, $1)
					)
				)
		`, messageID, msg.ConversationID, userID, msg.CreatedAt)
		if err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	// Broadcast after commit; a lost publish costs a missed indicator, never
	// the durable receipt.
	event := ChatEvent{
		Type:           EventTypeMessageStatus,
		ConversationID: msg.ConversationID.String(),
		UserID:         userID.String(),
		MessageID:      messageID.String(),
		Status:         string(status),
	}
	if err := PublishChatEvent(ctx, ConversationTopic(msg.ConversationID), event); err != nil {
		log.Printf("failed to publish status update for message %s: %v", messageID, err)
	}

	return nil
}
