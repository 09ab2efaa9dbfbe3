package services

import "errors"

// Failure classes the handlers map to HTTP statuses. Services wrap these with
// fmt.Errorf("...: %w", Err...) so callers can errors.Is while keeping the
// human-readable reason.
var (
	// ErrValidation covers malformed input: empty content, bad cursor,
	// unknown conversation type, wrong DM participant count.
	ErrValidation = errors.New("validation failed")

	// ErrNotFound covers unknown conversation or message ids.
	ErrNotFound = errors.New("not found")

	// ErrNotParticipant is the authorization boundary. It is deliberately
	// uniform so non-members cannot distinguish "no such conversation" details.
	ErrNotParticipant = errors.New("not a participant of this conversation")
)
