package services

import (
	"encoding/base64"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMessageCursorRoundTrip(t *testing.T) {
	id, err := uuid.NewV7()
	if err != nil {
		t.Fatalf("NewV7: %v", err)
	}
	createdAt := time.Date(2025, 6, 14, 9, 30, 15, 123456000, time.UTC)

	token := EncodeMessageCursor(createdAt, id)
	gotAt, gotID, err := DecodeMessageCursor(token)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !gotAt.Equal(createdAt) {
		t.Fatalf("createdAt mismatch:\n got=%v\nwant=%v", gotAt, createdAt)
	}
	if gotID != id {
		t.Fatalf("messageID mismatch:\n got=%v\nwant=%v", gotID, id)
	}
}

func TestMessageCursorRoundTripTruncatesToMicros(t *testing.T) {
	// Nanosecond precision beyond Postgres timestamp resolution is not
	// preserved; stored timestamps are already micro-truncated.
	id := uuid.New()
	createdAt := time.Date(2025, 1, 2, 3, 4, 5, 123456789, time.UTC)

	gotAt, _, err := DecodeMessageCursor(EncodeMessageCursor(createdAt, id))
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	want := createdAt.Truncate(time.Microsecond)
	if !gotAt.Equal(want) {
		t.Fatalf("createdAt mismatch:\n got=%v\nwant=%v", gotAt, want)
	}
}

func TestDecodeMessageCursorRejectsGarbage(t *testing.T) {
	for _, token := range []string{
		"not-base64!!!",
		base64.RawURLEncoding.EncodeToString([]byte("not json")),
		base64.RawURLEncoding.EncodeToString([]byte(`{"t":0,"id":"00000000-0000-0000-0000-000000000000"}`)),
		base64.RawURLEncoding.EncodeToString([]byte(`{"t":1718357415123456}`)),
	} {
		_, _, err := DecodeMessageCursor(token)
		if err == nil {
			t.Fatalf("expected error for token %q", token)
		}
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("expected validation error for %q, got %v", token, err)
		}
	}
}
