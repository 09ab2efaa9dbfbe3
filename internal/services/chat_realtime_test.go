package services

import (
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestTopicNames(t *testing.T) {
	cid := uuid.MustParse("11111111-2222-3333-4444-555555555555")

	got := ConversationTopic(cid)
	want := "chat:conversation:11111111-2222-3333-4444-555555555555"
	if got != want {
		t.Fatalf("ConversationTopic mismatch:\n got=%q\nwant=%q", got, want)
	}

	got = UserTopic(cid)
	want = "chat:user:11111111-2222-3333-4444-555555555555"
	if got != want {
		t.Fatalf("UserTopic mismatch:\n got=%q\nwant=%q", got, want)
	}
}

func TestHubFanOutToJoinedTopic(t *testing.T) {
	userID := uuid.New()
	connID := uuid.New().String()
	events := make(chan ChatEvent, 4)

	RegisterConnection(connID, userID, events)
	defer UnregisterConnection(connID)

	topic := ConversationTopic(uuid.New())
	JoinTopic(connID, topic)

	FanOutChatEvent(topic, ChatEvent{Type: EventTypeMessageCreated})

	select {
	case evt := <-events:
		if evt.Type != EventTypeMessageCreated {
			t.Fatalf("event type mismatch: got=%q want=%q", evt.Type, EventTypeMessageCreated)
		}
	default:
		t.Fatalf("expected event on joined topic")
	}
}

func TestHubFanOutSkipsOtherTopics(t *testing.T) {
	userID := uuid.New()
	connID := uuid.New().String()
	events := make(chan ChatEvent, 4)

	RegisterConnection(connID, userID, events)
	defer UnregisterConnection(connID)

	FanOutChatEvent(ConversationTopic(uuid.New()), ChatEvent{Type: EventTypeMessageCreated})

	select {
	case evt := <-events:
		t.Fatalf("unexpected event %q on unjoined topic", evt.Type)
	default:
	}
}

func TestHubFanOutToOwnUserTopic(t *testing.T) {
	userID := uuid.New()
	connID := uuid.New().String()
	events := make(chan ChatEvent, 4)

	// Registration implies a subscription to the connection's user topic.
	RegisterConnection(connID, userID, events)
	defer UnregisterConnection(connID)

	FanOutChatEvent(UserTopic(userID), ChatEvent{Type: EventTypeNewMessagePreview})

	select {
	case evt := <-events:
		if evt.Type != EventTypeNewMessagePreview {
			t.Fatalf("event type mismatch: got=%q want=%q", evt.Type, EventTypeNewMessagePreview)
		}
	default:
		t.Fatalf("expected preview event on user topic")
	}
}

func TestHubLeaveTopicStopsDelivery(t *testing.T) {
	userID := uuid.New()
	connID := uuid.New().String()
	events := make(chan ChatEvent, 4)

	RegisterConnection(connID, userID, events)
	defer UnregisterConnection(connID)

	topic := ConversationTopic(uuid.New())
	JoinTopic(connID, topic)
	LeaveTopic(connID, topic)

	FanOutChatEvent(topic, ChatEvent{Type: EventTypeMessageCreated})

	select {
	case evt := <-events:
		t.Fatalf("unexpected event %q after leave", evt.Type)
	default:
	}
}

func TestHubFanOutDropsForSlowConsumer(t *testing.T) {
	userID := uuid.New()
	connID := uuid.New().String()
	events := make(chan ChatEvent, 1)

	RegisterConnection(connID, userID, events)
	defer UnregisterConnection(connID)

	topic := ConversationTopic(uuid.New())
	JoinTopic(connID, topic)

	// Second send must not block once the buffer is full.
	FanOutChatEvent(topic, ChatEvent{Type: EventTypeMessageCreated, MessageID: "first"})
	FanOutChatEvent(topic, ChatEvent{Type: EventTypeMessageCreated, MessageID: "second"})

	evt := <-events
	if evt.MessageID != "first" {
		t.Fatalf("expected first event retained, got %q", evt.MessageID)
	}
	select {
	case evt := <-events:
		t.Fatalf("expected second event dropped, got %q", evt.MessageID)
	default:
	}
}

func TestTruncatePreview(t *testing.T) {
	if got := truncatePreview("  hello  ", 120); got != "hello" {
		t.Fatalf("short content mismatch: got=%q", got)
	}

	long := strings.Repeat("a", 200)
	got := truncatePreview(long, 120)
	if len([]rune(got)) != 121 { // 120 runes + ellipsis
		t.Fatalf("truncated length mismatch: got=%d runes", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "…") {
		t.Fatalf("expected ellipsis suffix, got=%q", got[len(got)-8:])
	}

	// Multibyte content must not be split mid-rune.
	got = truncatePreview(strings.Repeat("é", 130), 120)
	if !strings.HasPrefix(got, "é") || !strings.HasSuffix(got, "…") {
		t.Fatalf("multibyte truncation broken: got=%q", got[:12])
	}
}
