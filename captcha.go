package joysky

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const captchaKeyPrefix = "img_code:"

// redisCaptchaService is the built-in [CaptchaService]: numeric codes bound
// to a random correlation ID, stored with a short TTL. Rendering the code
// into an image (or any other presentation) is the transport layer's
// problem; the engine only cares about the generate/validate contract.
type redisCaptchaService struct {
	redis   *redis.Client
	config  CaptchaConfig
	metrics *Metrics
}

// NewRedisCaptchaService returns the default captcha collaborator backed by
// the given Redis client.
func NewRedisCaptchaService(redisClient *redis.Client, cfg CaptchaConfig) CaptchaService {
	return &redisCaptchaService{
		redis:  redisClient,
		config: cfg,
	}
}

// Generate issues a fresh challenge. The correlation ID is the cache key;
// issuing a new challenge never disturbs outstanding ones.
func (s *redisCaptchaService) Generate(ctx context.Context) (Captcha, error) {
	code, err := randomDigits(s.config.CodeLength)
	if err != nil {
		return Captcha{}, err
	}

	id := uuid.NewString()
	if err := s.redis.Set(ctx, captchaKeyPrefix+id, code, s.config.TTL).Err(); err != nil {
		return Captcha{}, err
	}

	s.metrics.Inc(MetricCaptchaIssued)
	return Captcha{Code: code, ID: id}, nil
}

// Validate checks code against the challenge bound to id and consumes the
// challenge on every attempt, success or failure. Comparison ignores case.
func (s *redisCaptchaService) Validate(ctx context.Context, code, id string) bool {
	if code == "" || id == "" {
		return false
	}

	key := captchaKeyPrefix + id
	cached, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}

	// One attempt per challenge, regardless of outcome.
	s.redis.Del(ctx, key)

	return strings.EqualFold(code, cached)
}

// randomDigits generates n decimal digits from crypto/rand.
func randomDigits(n int) (string, error) {
	var b strings.Builder
	b.Grow(n)
	for i := 0; i < n; i++ {
		d, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + d.Int64()))
	}
	return b.String(), nil
}

// captchaRequired reports whether the engine demands captcha validation for
// the flow entry points.
func (e *Engine) captchaRequired() bool {
	return e.config.Captcha.Enabled && e.captcha != nil
}

// checkCaptcha validates and consumes a challenge when captchas are enabled.
func (e *Engine) checkCaptcha(ctx context.Context, code, id string) error {
	if !e.captchaRequired() {
		return nil
	}
	if !e.captcha.Validate(ctx, code, id) {
		e.metrics.Inc(MetricCaptchaFailure)
		return ErrCaptchaInvalid
	}
	return nil
}
