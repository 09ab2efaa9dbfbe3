package services

import (
	"context"
	"fmt"

	"github.com/AnshRaj112/converse-backend/internal/database"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// SessionKeyPrefix is the Redis key prefix for sessions minted by the auth
// service; the value is the user id.
const SessionKeyPrefix = "session:"

// ResolveUser maps a bearer credential to a user identity. Opaque session
// tokens are looked up in Redis first; anything else is verified as an HS256
// JWT whose sub claim carries the user id. Credential issuance happens in the
// external auth service, never here.
func ResolveUser(ctx context.Context, token string) (uuid.UUID, bool, error) {
	if token == "" {
		return uuid.Nil, false, nil
	}

	userIDStr, err := database.RedisClient.Get(ctx, SessionKeyPrefix+token).Result()
	if err == nil && userIDStr != "" {
		userID, err := uuid.Parse(userIDStr)
		if err != nil {
			return uuid.Nil, false, err
		}
		return userID, true, nil
	}

	return resolveJWT(token)
}

func resolveJWT(token string) (uuid.UUID, bool, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return jwtSecret, nil
	})
	if err != nil || !parsed.Valid {
		return uuid.Nil, false, nil
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return uuid.Nil, false, nil
	}

	userID, err := uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, false, nil
	}
	return userID, true, nil
}
