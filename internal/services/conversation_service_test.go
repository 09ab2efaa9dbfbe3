package services

import (
	"context"
	"errors"
	"testing"

	"github.com/AnshRaj112/converse-backend/internal/models"
	"github.com/google/uuid"
)

func TestNormalizeParticipantsIncludesCreatorOnce(t *testing.T) {
	creator := uuid.New()
	other := uuid.New()

	got := NormalizeParticipants([]uuid.UUID{other, creator, other, uuid.Nil}, creator)
	if len(got) != 2 {
		t.Fatalf("expected 2 members, got %d: %v", len(got), got)
	}

	seen := map[uuid.UUID]bool{}
	for _, id := range got {
		if seen[id] {
			t.Fatalf("duplicate member %s", id)
		}
		seen[id] = true
	}
	if !seen[creator] || !seen[other] {
		t.Fatalf("missing members: got=%v", got)
	}
}

func TestNormalizeParticipantsDeterministicOrder(t *testing.T) {
	a := uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000")
	b := uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000")

	got1 := NormalizeParticipants([]uuid.UUID{b}, a)
	got2 := NormalizeParticipants([]uuid.UUID{a}, b)
	if got1[0] != got2[0] || got1[1] != got2[1] {
		t.Fatalf("order not deterministic:\n got1=%v\n got2=%v", got1, got2)
	}
}

func TestDMPairKeySymmetric(t *testing.T) {
	a := uuid.New()
	b := uuid.New()

	if DMPairKey(a, b) != DMPairKey(b, a) {
		t.Fatalf("DMPairKey not symmetric: %q vs %q", DMPairKey(a, b), DMPairKey(b, a))
	}
	if DMPairKey(a, b) == DMPairKey(a, uuid.New()) {
		t.Fatalf("distinct pairs collided")
	}
}

func TestCreateConversationRejectsUnknownType(t *testing.T) {
	_, _, err := CreateConversation(context.Background(), "broadcast", nil, uuid.New(), nil, nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestCreateConversationRejectsBadDMCount(t *testing.T) {
	creator := uuid.New()

	// Creator alone: normalized set has one member.
	_, _, err := CreateConversation(context.Background(), models.ConversationTypeDM, nil, creator, nil, nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for solo dm, got %v", err)
	}

	// Three distinct members.
	_, _, err = CreateConversation(context.Background(), models.ConversationTypeDM,
		[]uuid.UUID{uuid.New(), uuid.New()}, creator, nil, nil)
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for three-way dm, got %v", err)
	}
}

func TestLikePatternEscaperNeutralizesWildcards(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"alice", "alice"},
		{"%", `\%`},
		{"_", `\_`},
		{`100%_done`, `100\%\_done`},
		{`back\slash`, `back\\slash`},
	}
	for _, tc := range cases {
		if got := likePatternEscaper.Replace(tc.in); got != tc.want {
			t.Fatalf("escape(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
