package services

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"github.com/AnshRaj112/converse-backend/internal/database"
)

func startTestRedis(t *testing.T) {
	t.Helper()
	mr := miniredis.RunT(t)
	prev := database.RedisClient
	database.RedisClient = redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		database.RedisClient.Close()
		database.RedisClient = prev
	})
}

func TestPresenceJoinLeaveEdgeTransitions(t *testing.T) {
	startTestRedis(t)
	ctx := context.Background()
	key := presenceKeyPrefix + "edge-test"

	online, err := presenceJoin(ctx, key, "conn-a")
	if err != nil {
		t.Fatalf("presenceJoin conn-a: %v", err)
	}
	if !online {
		t.Fatal("first connection should report the online transition")
	}

	online, err = presenceJoin(ctx, key, "conn-b")
	if err != nil {
		t.Fatalf("presenceJoin conn-b: %v", err)
	}
	if online {
		t.Fatal("second connection must not report a transition")
	}

	// Re-adding an existing connection id is a no-op.
	online, err = presenceJoin(ctx, key, "conn-a")
	if err != nil {
		t.Fatalf("presenceJoin conn-a again: %v", err)
	}
	if online {
		t.Fatal("re-adding a live connection must not report a transition")
	}

	offline, err := presenceLeave(ctx, key, "conn-a")
	if err != nil {
		t.Fatalf("presenceLeave conn-a: %v", err)
	}
	if offline {
		t.Fatal("leaving with another connection live must not report a transition")
	}

	offline, err = presenceLeave(ctx, key, "conn-b")
	if err != nil {
		t.Fatalf("presenceLeave conn-b: %v", err)
	}
	if !offline {
		t.Fatal("last connection leaving should report the offline transition")
	}

	offline, err = presenceLeave(ctx, key, "conn-b")
	if err != nil {
		t.Fatalf("presenceLeave conn-b again: %v", err)
	}
	if offline {
		t.Fatal("removing an already-gone connection must not report a transition")
	}
}

// Simultaneous connects (and later disconnects) from several gateway
// instances must yield exactly one transition each way, never zero or two.
func TestPresenceConcurrentTransitionsReportedOnce(t *testing.T) {
	startTestRedis(t)
	ctx := context.Background()
	key := presenceKeyPrefix + "concurrent-test"
	const conns = 8

	var wg sync.WaitGroup
	transitions := make(chan bool, conns)
	for i := 0; i < conns; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			online, err := presenceJoin(ctx, key, id)
			if err != nil {
				t.Errorf("presenceJoin %s: %v", id, err)
				return
			}
			transitions <- online
		}(fmt.Sprintf("conn-%d", i))
	}
	wg.Wait()
	close(transitions)

	onlineCount := 0
	for tr := range transitions {
		if tr {
			onlineCount++
		}
	}
	if onlineCount != 1 {
		t.Fatalf("got %d online transitions for %d concurrent connects, want exactly 1", onlineCount, conns)
	}

	transitions = make(chan bool, conns)
	for i := 0; i < conns; i++ {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			offline, err := presenceLeave(ctx, key, id)
			if err != nil {
				t.Errorf("presenceLeave %s: %v", id, err)
				return
			}
			transitions <- offline
		}(fmt.Sprintf("conn-%d", i))
	}
	wg.Wait()
	close(transitions)

	offlineCount := 0
	for tr := range transitions {
		if tr {
			offlineCount++
		}
	}
	if offlineCount != 1 {
		t.Fatalf("got %d offline transitions for %d concurrent disconnects, want exactly 1", offlineCount, conns)
	}
}
