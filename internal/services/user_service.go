package services

import (
	"context"
	"database/sql"

	"github.com/AnshRaj112/converse-backend/internal/database"
	"github.com/AnshRaj112/converse-backend/internal/models"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// GetUserSummary retrieves the minimal profile projection used to annotate
// senders and DM peers.
func GetUserSummary(ctx context.Context, userID uuid.UUID) (*models.UserSummary, error) {
	u := &models.UserSummary{}
	err := database.PostgresDB.QueryRowContext(ctx, `
		SELECT id, username, display_name, avatar FROM users WHERE id = $1 AND is_active = TRUE
	`, userID).Scan(&u.ID, &u.Username, &u.DisplayName, &u.Avatar)
	if err == sql.ErrNoRows {
		return nil, nil // User not found or inactive
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

// GetUserSummaries batch-loads profile projections for a set of user ids.
func GetUserSummaries(ctx context.Context, userIDs []uuid.UUID) (map[uuid.UUID]models.UserSummary, error) {
	out := make(map[uuid.UUID]models.UserSummary, len(userIDs))
	if len(userIDs) == 0 {
		return out, nil
	}

	ids := make([]string, len(userIDs))
	for i, id := range userIDs {
		ids[i] = id.String()
	}

	rows, err := database.PostgresDB.QueryContext(ctx, `
		SELECT id, username, display_name, avatar FROM users WHERE id = ANY($1::uuid[]) AND is_active = TRUE
	`, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var u models.UserSummary
		if err := rows.Scan(&u.ID, &u.Username, &u.DisplayName, &u.Avatar); err != nil {
			return nil, err
		}
		out[u.ID] = u
	}
	return out, rows.Err()
}
