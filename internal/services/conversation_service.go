package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/AnshRaj112/converse-backend/internal/database"
	"github.com/AnshRaj112/converse-backend/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// pqUniqueViolation is the Postgres error code for unique constraint failures.
const pqUniqueViolation = "23505"

// NormalizeParticipants returns the participant set including the creator
// exactly once, deduplicated and sorted for deterministic storage order.
func NormalizeParticipants(participantIDs []uuid.UUID, creatorID uuid.UUID) []uuid.UUID {
	seen := map[uuid.UUID]struct{}{creatorID: {}}
	out := []uuid.UUID{creatorID}
	for _, id := range participantIDs {
		if id == uuid.Nil {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// DMPairKey derives the canonical key for an unordered DM pair. The unique
// index on conversations.dm_key makes concurrent duplicate creation a
// constraint violation instead of a silent second thread.
func DMPairKey(a, b uuid.UUID) string {
	if a.String() > b.String() {
		a, b = b, a
	}
	return a.String() + ":" + b.String()
}

// CreateConversation creates a DM or group conversation with its participant
// rows in one transaction. For DMs an existing conversation for the same pair
// is returned unchanged; the second return value reports that case.
func CreateConversation(
	ctx context.Context,
	convType models.ConversationType,
	participantIDs []uuid.UUID,
	creatorID uuid.UUID,
	title, avatar *string,
) (*models.Conversation, bool, error) {
	if convType != models.ConversationTypeDM && convType != models.ConversationTypeGroup {
		return nil, false, fmt.Errorf("unknown conversation type %q: %w", convType, ErrValidation)
	}

	members := NormalizeParticipants(participantIDs, creatorID)

	var dmKey sql.NullString
	if convType == models.ConversationTypeDM {
		if len(members) != 2 {
			return nil, false, fmt.Errorf("dm conversations require exactly two distinct participants: %w", ErrValidation)
		}
		dmKey = sql.NullString{String: DMPairKey(members[0], members[1]), Valid: true}

		if existing, err := findConversationByDMKey(ctx, dmKey.String); err != nil {
			return nil, false, err
		} else if existing != nil {
			return existing, true, nil
		}
	}

	tx, err := database.PostgresDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback()

	conv := &models.Conversation{
		ID:        uuid.New(),
		Type:      convType,
		Title:     title,
		Avatar:    avatar,
		CreatedBy: creatorID,
		CreatedAt: time.Now().UTC(),
	}
	conv.UpdatedAt = conv.CreatedAt

	_, err = tx.ExecContext(ctx, `
		INSERT INTO conversations (id, type, title, avatar, dm_key, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, conv.ID, conv.Type, conv.Title, conv.Avatar, dmKey, conv.CreatedBy, conv.CreatedAt)
	if err != nil {
		// A concurrent creator won the dm_key race; return their conversation.
		if pqErr, ok := err.(*pq.Error); ok && string(pqErr.Code) == pqUniqueViolation && dmKey.Valid {
			if existing, ferr := findConversationByDMKey(ctx, dmKey.String); ferr == nil && existing != nil {
				return existing, true, nil
			}
		}
		return nil, false, err
	}

	for _, member := range members {
		role := models.RoleMember
		if member == creatorID {
			role = models.RoleAdmin
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id, role, joined_at)
			VALUES ($1, $2, $3, $4)
		`, conv.ID, member, role, conv.CreatedAt)
		if err != nil {
			return nil, false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, false, err
	}
	return conv, false, nil
}

func findConversationByDMKey(ctx context.Context, dmKey string) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT id, type, title, avatar, created_by, created_at, updated_at
		FROM conversations WHERE dm_key = $1
	`, dmKey).Scan(&conv.ID, &conv.Type, &conv.Title, &conv.Avatar, &conv.CreatedBy, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// GetConversation loads a conversation by id.
func GetConversation(ctx context.Context, conversationID uuid.UUID) (*models.Conversation, error) {
	conv := &models.Conversation{}
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT id, type, title, avatar, created_by, created_at, updated_at
		FROM conversations WHERE id = $1
	`, conversationID).Scan(&conv.ID, &conv.Type, &conv.Title, &conv.Avatar, &conv.CreatedBy, &conv.CreatedAt, &conv.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// IsParticipant checks current membership against the authoritative rows.
func IsParticipant(ctx context.Context, conversationID, userID uuid.UUID) (bool, error) {
	var exists bool
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2)
	`, conversationID, userID).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ParticipantIDs returns the current member ids of a conversation.
func ParticipantIDs(ctx context.Context, conversationID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := database.PostgresDB.QueryContext(ctx, `
		SELECT user_id FROM conversation_participants WHERE conversation_id = $1
	`, conversationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ConversationIDsForUser returns every conversation the user belongs to.
// Used for presence fan-out to the user's rooms.
func ConversationIDsForUser(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error) {
	rows, err := database.PostgresDB.QueryContext(ctx, `
		SELECT conversation_id FROM conversation_participants WHERE user_id = $1
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListConversations returns the user's inbox: conversations ordered by recent
// activity, each with latest message, unseen count, and DM peer projection.
func ListConversations(ctx context.Context, userID uuid.UUID) ([]models.ConversationSummary, error) {
	return queryConversationSummaries(ctx, userID, "")
}

// SearchConversations filters the user's inbox by group title or DM peer
// name. Matching is case-insensitive substring.
func SearchConversations(ctx context.Context, query string, userID uuid.UUID) ([]models.ConversationSummary, error) {
	return queryConversationSummaries(ctx, userID, query)
}

// likePatternEscaper neutralizes LIKE metacharacters in user-supplied search
// terms so "%" or "_" match literally instead of everything.
var likePatternEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func queryConversationSummaries(ctx context.Context, userID uuid.UUID, search string) ([]models.ConversationSummary, error) {
	args := []interface{}{userID}
	filter := ""
	if search != "" {
		args = append(args, "%"+likePatternEscaper.Replace(search)+"%")
		filter = `
		AND (
			(c.type = 'group' AND c.title ILIKE $2)
			OR (c.type = 'dm' AND EXISTS (
				SELECT 1 FROM conversation_participants pp
				JOIN users pu ON pu.id = pp.user_id
				WHERE pp.conversation_id = c.id AND pp.user_id <> $1
					AND (pu.username ILIKE $2 OR pu.display_name ILIKE $2)
			))
		)`
	}

	rows, err := database.PostgresDB.QueryContext(ctx, `
		SELECT c.id, c.type, c.title, c.avatar, c.created_by, c.created_at, c.updated_at,
			m.id, m.sender_id, m.content, m.type, m.created_at,
			COALESCE(un.unseen, 0)
		FROM conversation_participants cp
		JOIN conversations c ON c.id = cp.conversation_id
		LEFT JOIN LATERAL (
			SELECT id, sender_id, content, type, created_at
			FROM messages
			WHERE conversation_id = c.id
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		) m ON TRUE
		LEFT JOIN LATERAL (
			SELECT COUNT(*) AS unseen
			FROM message_statuses ms
			JOIN messages mm ON mm.id = ms.message_id
			WHERE mm.conversation_id = c.id AND ms.user_id = cp.user_id AND ms.read_at IS NULL
		) un ON TRUE
		WHERE cp.user_id = $1`+filter+`
		ORDER BY c.updated_at DESC
	`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var summaries []models.ConversationSummary
	for rows.Next() {
		var s models.ConversationSummary
		var msgID, msgSender sql.NullString
		var msgContent, msgType sql.NullString
		var msgCreated sql.NullTime

		err := rows.Scan(
			&s.ID, &s.Type, &s.Title, &s.Avatar, &s.CreatedBy, &s.CreatedAt, &s.UpdatedAt,
			&msgID, &msgSender, &msgContent, &msgType, &msgCreated,
			&s.UnseenCount,
		)
		if err != nil {
			return nil, err
		}

		if msgID.Valid {
			s.LastMessage = &models.Message{
				ID:             uuid.MustParse(msgID.String),
				ConversationID: s.ID,
				SenderID:       uuid.MustParse(msgSender.String),
				Content:        msgContent.String,
				Type:           msgType.String,
				CreatedAt:      msgCreated.Time,
			}
		}
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// DMs display the other participant's profile, not stored fields.
	for i := range summaries {
		if summaries[i].Type != models.ConversationTypeDM {
			continue
		}
		peer, err := getDMPeer(ctx, summaries[i].ID, userID)
		if err != nil {
			return nil, err
		}
		summaries[i].Peer = peer
		if peer != nil {
			// Presence is advisory; a Redis hiccup renders the peer offline.
			online, _ := IsOnline(ctx, peer.ID)
			summaries[i].PeerOnline = online
		}
	}

	return summaries, nil
}

func getDMPeer(ctx context.Context, conversationID, userID uuid.UUID) (*models.UserSummary, error) {
	peer := &models.UserSummary{}
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT u.id, u.username, u.display_name, u.avatar
		FROM conversation_participants cp
		JOIN users u ON u.id = cp.user_id
		WHERE cp.conversation_id = $1 AND cp.user_id <> $2
		LIMIT 1
	`, conversationID, userID).Scan(&peer.ID, &peer.Username, &peer.DisplayName, &peer.Avatar)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return peer, nil
}
