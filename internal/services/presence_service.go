package services

import (
	"context"
	"log"

	"github.com/AnshRaj112/converse-backend/internal/database"
	"github.com/google/uuid"
)

const presenceKeyPrefix = "presence:user:"

func presenceKey(userID uuid.UUID) string {
	return presenceKeyPrefix + userID.String()
}

// PresenceConnect records a live connection id for the user. Presence is a
// Redis set shared by all gateway instances; an "online" event is broadcast
// only when the set goes from empty to non-empty, so a second tab or device
// is silent.
func PresenceConnect(ctx context.Context, userID uuid.UUID, connectionID string) error {
	wentOnline, err := presenceJoin(ctx, presenceKey(userID), connectionID)
	if err != nil {
		return err
	}
	if wentOnline {
		broadcastPresence(ctx, userID, "online")
	}
	return nil
}

// PresenceDisconnect removes a connection id and broadcasts "offline" only on
// the last-connection 1→0 transition.
func PresenceDisconnect(ctx context.Context, userID uuid.UUID, connectionID string) error {
	wentOffline, err := presenceLeave(ctx, presenceKey(userID), connectionID)
	if err != nil {
		return err
	}
	if wentOffline {
		broadcastPresence(ctx, userID, "offline")
	}
	return nil
}

// presenceJoin adds the connection to the user's presence set and reports
// whether this was the offline→online transition. SADD and SCARD run inside
// one MULTI/EXEC so the cardinality each gateway observes is the one its own
// add produced; concurrent connects on different instances cannot both (or
// neither) see the set go 0→1.
func presenceJoin(ctx context.Context, key, connectionID string) (bool, error) {
	pipe := database.RedisClient.TxPipeline()
	added := pipe.SAdd(ctx, key, connectionID)
	card := pipe.SCard(ctx, key)
	// TTL guards against instances that died without cleaning up;
	// client pings refresh it.
	pipe.Expire(ctx, key, presenceTTL)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return added.Val() == 1 && card.Val() == 1, nil
}

// presenceLeave removes the connection and reports whether this was the
// online→offline transition, under the same MULTI/EXEC atomicity as
// presenceJoin.
func presenceLeave(ctx context.Context, key, connectionID string) (bool, error) {
	pipe := database.RedisClient.TxPipeline()
	removed := pipe.SRem(ctx, key, connectionID)
	card := pipe.SCard(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, err
	}
	return removed.Val() == 1 && card.Val() == 0, nil
}

// RefreshPresence extends the presence TTL; called on client pings.
func RefreshPresence(ctx context.Context, userID uuid.UUID) {
	database.RedisClient.Expire(ctx, presenceKey(userID), presenceTTL)
}

// IsOnline reports whether the user has at least one live connection on any
// gateway instance.
func IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	count, err := database.RedisClient.SCard(ctx, presenceKey(userID)).Result()
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// broadcastPresence pushes the transition to every room the user belongs to.
// Failures are logged; presence is advisory state.
func broadcastPresence(ctx context.Context, userID uuid.UUID, state string) {
	conversationIDs, err := ConversationIDsForUser(ctx, userID)
	if err != nil {
		log.Printf("presence: failed to load rooms for %s: %v", userID, err)
		return
	}

	event := ChatEvent{
		Type:     EventTypePresence,
		UserID:   userID.String(),
		Presence: state,
	}
	for _, cid := range conversationIDs {
		event.ConversationID = cid.String()
		if err := PublishChatEvent(ctx, ConversationTopic(cid), event); err != nil {
			log.Printf("presence: failed to publish %s for %s: %v", state, userID, err)
		}
	}
}
