package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestCreateMessageRejectsEmptyContent(t *testing.T) {
	for _, content := range []string{"", "   ", "\n\t"} {
		_, _, err := CreateMessage(context.Background(), uuid.New(), uuid.New(), content, "text", nil)
		if !errors.Is(err, ErrValidation) {
			t.Fatalf("content %q: expected validation error, got %v", content, err)
		}
	}
}

func TestCreateMessageRejectsUnknownType(t *testing.T) {
	_, _, err := CreateMessage(context.Background(), uuid.New(), uuid.New(), "hi", "carrier-pigeon", nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestMessageOrderBefore(t *testing.T) {
	earlier := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	later := earlier.Add(time.Millisecond)
	idLow := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	idHigh := uuid.MustParse("00000000-0000-0000-0000-000000000002")

	if !MessageOrderBefore(earlier, idHigh, later, idLow) {
		t.Fatalf("earlier timestamp should sort before regardless of id")
	}
	if MessageOrderBefore(later, idLow, earlier, idHigh) {
		t.Fatalf("later timestamp should not sort before")
	}

	// Clock-resolution collision: id breaks the tie.
	if !MessageOrderBefore(earlier, idLow, earlier, idHigh) {
		t.Fatalf("equal timestamps: lower id should sort before")
	}
	if MessageOrderBefore(earlier, idHigh, earlier, idLow) {
		t.Fatalf("equal timestamps: higher id should not sort before")
	}
	if MessageOrderBefore(earlier, idLow, earlier, idLow) {
		t.Fatalf("identical tuples are not strictly before each other")
	}
}

func TestUUIDv7SortsByCreationTime(t *testing.T) {
	// Message ids rely on V7's time-ordered layout for stable tie-breaking.
	a, err := uuid.NewV7()
	if err != nil {
		t.Fatalf("NewV7: %v", err)
	}
	time.Sleep(2 * time.Millisecond)
	b, err := uuid.NewV7()
	if err != nil {
		t.Fatalf("NewV7: %v", err)
	}
	if a.String() >= b.String() {
		t.Fatalf("v7 ids not time-ordered: %s >= %s", a, b)
	}
}
