package joysky

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

const mailRateKeyPrefix = "email_rate:"

// mailRateLimiter gates outbound reset codes per recipient. Presence of a
// live key is the "rate limited" signal; the key's TTL equals the cooldown
// window.
//
// Limited and RecordIssuance are two separate round trips and are not atomic
// together: two concurrent requests for the same recipient inside the race
// window can both pass the check. That window is accepted; do not tighten
// it here without flagging the change to callers.
type mailRateLimiter struct {
	redis    *redis.Client
	cooldown time.Duration
}

func newMailRateLimiter(redisClient *redis.Client, cooldown time.Duration) *mailRateLimiter {
	return &mailRateLimiter{
		redis:    redisClient,
		cooldown: cooldown,
	}
}

// Limited reports whether a code was issued to recipient within the cooldown
// window. A Redis failure reads as not limited: the limiter protects the
// mail channel, it must not take the flow down with it.
func (l *mailRateLimiter) Limited(ctx context.Context, recipient string) bool {
	n, err := l.redis.Exists(ctx, mailRateKeyPrefix+recipient).Result()
	if err != nil {
		return false
	}
	return n > 0
}

// RecordIssuance inserts or refreshes the cooldown entry for recipient.
func (l *mailRateLimiter) RecordIssuance(ctx context.Context, recipient string) {
	l.redis.Set(ctx, mailRateKeyPrefix+recipient, time.Now().UnixMilli(), l.cooldown)
}

// Cooldown returns the configured cooldown window.
func (l *mailRateLimiter) Cooldown() time.Duration {
	return l.cooldown
}
