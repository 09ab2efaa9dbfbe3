package database

import (
	"context"
	"log"
	"runtime"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the shared client behind presence sets, session lookups,
// and the chat pub/sub channels. The gateway's subscriber holds its own
// dedicated connection, so the pool here serves command traffic only.
var RedisClient *redis.Client

// ConnectRedis opens the shared Redis client and verifies connectivity.
func ConnectRedis(redisURI string) error {
	opt, err := redis.ParseURL(redisURI)
	if err != nil {
		return err
	}

	// Presence and receipt fan-out issue short bursts of small commands,
	// so scale the pool with available CPUs and keep timeouts tight.
	procs := runtime.GOMAXPROCS(0)
	opt.PoolSize = 8 * procs
	opt.MinIdleConns = procs
	opt.MaxRetries = 3
	opt.DialTimeout = 5 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second
	opt.PoolTimeout = 4 * time.Second
	opt.ConnMaxIdleTime = 5 * time.Minute

	RedisClient = redis.NewClient(opt)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := RedisClient.Ping(ctx).Err(); err != nil {
		return err
	}

	log.Println("✅ Connected to Redis")
	return nil
}

// DisconnectRedis closes the Redis connection
func DisconnectRedis() error {
	if RedisClient != nil {
		return RedisClient.Close()
	}
	return nil
}
