// Package ratelimit backs the RATE_LIMITED error kind with a token-bucket
// limiter per player. When configured with a reachable Redis instance it
// shares bucket state there (so a restart doesn't hand every player a full
// bucket); otherwise it falls back to an in-process bucket map.
package ratelimit

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config parameterizes the limiter. Rate and Burst are shared by every
// player; Redis fields select the optional shared backend.
type Config struct {
	Rate  float64 // tokens added per second
	Burst int     // bucket capacity

	RedisEnabled bool
	RedisHost    string
	RedisPort    int
	RedisDB      int
}

// Limiter is a per-key token bucket limiter, usable with or without Redis.
type Limiter struct {
	cfg    Config
	client *redis.Client
	log    *log.Logger

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// New builds a Limiter. If cfg.RedisEnabled, it dials Redis but does not
// fail construction if the dial cannot be verified yet; Allow degrades to
// the in-process path on any Redis error.
func New(cfg Config, logger *log.Logger) *Limiter {
	l := &Limiter{cfg: cfg, log: logger, buckets: make(map[string]*bucket)}
	if cfg.RedisEnabled {
		l.client = redis.NewClient(&redis.Options{
			Addr: fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort),
			DB:   cfg.RedisDB,
		})
	}
	return l
}

// Close releases the Redis client, if any.
func (l *Limiter) Close() error {
	if l.client != nil {
		return l.client.Close()
	}
	return nil
}

// redisScript atomically refills and debits a bucket stored as a Redis
// hash, returning 1 if a token was available, 0 otherwise.
var redisScript = redis.NewScript(`
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call("HMGET", key, "tokens", "ts")
local tokens = tonumber(data[1])
local ts = tonumber(data[2])
if tokens == nil then
  tokens = burst
  ts = now
end

local elapsed = now - ts
if elapsed > 0 then
  tokens = math.min(burst, tokens + elapsed * rate)
  ts = now
end

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call("HMSET", key, "tokens", tokens, "ts", ts)
redis.call("EXPIRE", key, 3600)
return allowed
`)

// Allow reports whether a message from key (typically a playerId) may
// proceed, debiting one token if so.
func (l *Limiter) Allow(key string) bool {
	now := time.Now()
	if l.client != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		res, err := redisScript.Run(ctx, l.client, []string{"ratelimit:" + key},
			l.cfg.Rate, l.cfg.Burst, float64(now.UnixNano())/1e9).Int()
		if err == nil {
			return res == 1
		}
		if l.log != nil {
			l.log.Printf("ratelimit: redis unavailable, falling back to in-process: %v", err)
		}
	}
	return l.allowLocal(key, now)
}

func (l *Limiter) allowLocal(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.cfg.Burst), lastFill: now}
		l.buckets[key] = b
	}
	elapsed := now.Sub(b.lastFill).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * l.cfg.Rate
		if b.tokens > float64(l.cfg.Burst) {
			b.tokens = float64(l.cfg.Burst)
		}
		b.lastFill = now
	}
	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
