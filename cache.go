package joysky

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

const (
	userKeyPrefix   = "user:login:"
	existsKeyPrefix = "exists:"
	codeKeyPrefix   = "email_code:"
)

// resultCache is the cache-aside layer in front of the user directory. Three
// independent stores share one Redis client but nothing else: user records,
// existence checks, and reset codes each carry their own TTL and their own
// invalidation rules.
//
// Gets never consult the directory; the caller populates on miss. A Redis
// failure on any operation degrades to a miss (or a no-op for writes) so
// that cache trouble can never fail a primary flow. Every Get is recorded
// against the performance monitor as a hit or a miss.
type resultCache struct {
	redis   *redis.Client
	config  CacheConfig
	metrics *Metrics
}

func newResultCache(redisClient *redis.Client, cfg CacheConfig, metrics *Metrics) *resultCache {
	return &resultCache{
		redis:   redisClient,
		config:  cfg,
		metrics: metrics,
	}
}

func userCacheKey(identifier string) string {
	return userKeyPrefix + identifier
}

func existsCacheKey(field Field, value string) string {
	return existsKeyPrefix + string(field) + ":" + value
}

func codeCacheKey(email string) string {
	return codeKeyPrefix + email
}

func (c *resultCache) observe(hit bool) {
	if hit {
		c.metrics.Inc(MetricCacheHit)
		return
	}
	c.metrics.Inc(MetricCacheMiss)
}

// cachedUser is the wire form of a login cache entry. User's public JSON
// shape omits the password digest; the cache entry must carry it so that a
// hit can still verify credentials without a directory read.
type cachedUser struct {
	User
	PasswordHash string `json:"password_hash"`
}

// GetUser returns the cached user for identifier, if any.
func (c *resultCache) GetUser(ctx context.Context, identifier string) (*User, bool) {
	data, err := c.redis.Get(ctx, userCacheKey(identifier)).Bytes()
	if err != nil {
		c.observe(false)
		return nil, false
	}

	var entry cachedUser
	if err := json.Unmarshal(data, &entry); err != nil {
		// Corrupt entry: drop it and treat as a miss.
		c.redis.Del(ctx, userCacheKey(identifier))
		c.observe(false)
		return nil, false
	}

	user := entry.User
	user.PasswordHash = entry.PasswordHash

	c.observe(true)
	return &user, true
}

// PutUser caches user under identifier, overwriting unconditionally.
func (c *resultCache) PutUser(ctx context.Context, identifier string, user *User) {
	if user == nil {
		return
	}
	data, err := json.Marshal(cachedUser{User: *user, PasswordHash: user.PasswordHash})
	if err != nil {
		return
	}
	c.redis.Set(ctx, userCacheKey(identifier), data, c.config.UserTTL)
}

// InvalidateUser evicts the login cache entry for identifier. Idempotent.
func (c *resultCache) InvalidateUser(ctx context.Context, identifier string) {
	c.redis.Del(ctx, userCacheKey(identifier))
}

// GetExists returns a cached existence check for field=value.
func (c *resultCache) GetExists(ctx context.Context, field Field, value string) (exists, ok bool) {
	v, err := c.redis.Get(ctx, existsCacheKey(field, value)).Result()
	if err != nil {
		// redis.Nil and an unavailable backend both read as a miss.
		c.observe(false)
		return false, false
	}

	c.observe(true)
	return v == "1", true
}

// PutExists caches an existence check result.
func (c *resultCache) PutExists(ctx context.Context, field Field, value string, exists bool) {
	v := "0"
	if exists {
		v = "1"
	}
	c.redis.Set(ctx, existsCacheKey(field, value), v, c.config.ExistsTTL)
}

// InvalidateExists evicts a cached existence check. Idempotent.
func (c *resultCache) InvalidateExists(ctx context.Context, field Field, value string) {
	c.redis.Del(ctx, existsCacheKey(field, value))
}

// GetCode returns the live reset code for email, if any. Expired codes are
// unreachable regardless of eviction.
func (c *resultCache) GetCode(ctx context.Context, email string) (string, bool) {
	code, err := c.redis.Get(ctx, codeCacheKey(email)).Result()
	if err != nil {
		c.observe(false)
		return "", false
	}
	c.observe(true)
	return code, true
}

// PutCode caches a reset code for email, overwriting any prior code.
func (c *resultCache) PutCode(ctx context.Context, email, code string) {
	c.redis.Set(ctx, codeCacheKey(email), code, c.config.CodeTTL)
}

// InvalidateCode consumes the reset code for email. Idempotent.
func (c *resultCache) InvalidateCode(ctx context.Context, email string) {
	c.redis.Del(ctx, codeCacheKey(email))
}

// clearUserCaches evicts every cache entry tied to one identity: the login
// record, the email existence check, and any outstanding reset code.
func (c *resultCache) clearUserCaches(ctx context.Context, email string) {
	c.InvalidateUser(ctx, email)
	c.InvalidateExists(ctx, FieldEmail, email)
	c.InvalidateCode(ctx, email)
}
