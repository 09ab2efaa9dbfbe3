package middleware

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AnshRaj112/converse-backend/pkg/clientip"
	"golang.org/x/time/rate"
)

// History/inbox rate limit: per-IP, different limits for auth vs anonymous.
// Auth: 60 req/min, burst 30. Anonymous: 10 req/min, burst 5.
// Prevents 429 from rapid conversation switching while blocking abuse.

const (
	historyAuthRPS    = 1.0 // 60/min
	historyAuthBurst  = 30
	historyAnonRPS    = 0.17 // ~10/min
	historyAnonBurst  = 5
	historyCleanupMin = 5 * time.Minute
	historyLimiterTTL = 30 * time.Minute
)

type limiterEntry struct {
	limiter *rate.Limiter
	lastUse time.Time
}

var (
	historyEntries   = make(map[string]*limiterEntry)
	historyEntriesMu sync.Mutex
	historyCleanup   bool
)

func getHistoryLimiter(ip string, authenticated bool) *rate.Limiter {
	key := "anon:" + ip
	if authenticated {
		key = "auth:" + ip
	}

	historyEntriesMu.Lock()
	defer historyEntriesMu.Unlock()
	startHistoryCleanupOnce()

	e, ok := historyEntries[key]
	if !ok {
		if authenticated {
			e = &limiterEntry{
				limiter: rate.NewLimiter(rate.Limit(historyAuthRPS), historyAuthBurst),
				lastUse: time.Now(),
			}
		} else {
			e = &limiterEntry{
				limiter: rate.NewLimiter(rate.Limit(historyAnonRPS), historyAnonBurst),
				lastUse: time.Now(),
			}
		}
		historyEntries[key] = e
	}
	e.lastUse = time.Now()
	return e.limiter
}

func startHistoryCleanupOnce() {
	if historyCleanup {
		return
	}
	historyCleanup = true
	go func() {
		ticker := time.NewTicker(historyCleanupMin)
		defer ticker.Stop()
		for range ticker.C {
			historyEntriesMu.Lock()
			now := time.Now()
			for k, e := range historyEntries {
				if now.Sub(e.lastUse) > historyLimiterTTL {
					delete(historyEntries, k)
				}
			}
			historyEntriesMu.Unlock()
		}
	}()
}

func hasBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && len(strings.TrimPrefix(auth, "Bearer ")) > 0
}

// HistoryRateLimit applies rate limiting to GET requests under
// /api/conversations (inbox list and message history). Returns 429 with
// headers when exceeded.
func HistoryRateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || !strings.HasPrefix(r.URL.Path, "/api/conversations") {
			next.ServeHTTP(w, r)
			return
		}

		ip := clientip.FromRequest(r)
		auth := hasBearerToken(r)
		limiter := getHistoryLimiter(ip, auth)

		limit := historyAnonBurst
		if auth {
			limit = historyAuthBurst
		}

		if !limiter.Allow() {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
			w.Header().Set("X-RateLimit-Remaining", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write([]byte(`{"success":false,"message":"Too many requests. Please slow down."}`))
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limit-1)) // Best-effort for debugging
		next.ServeHTTP(w, r)
	})
}
