package joysky

import (
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/carterbrother/joysky/pii"
)

// Builder assembles an [Engine]. Zero-value collaborators get sensible
// defaults at Build time; Redis and a user directory are mandatory.
type Builder struct {
	config Config
	redis  *redis.Client

	directory UserDirectory
	mailer    Mailer
	captcha   CaptchaService
	screener  UsernameScreener
	codes     RegistrationCodeVerifier
	sink      AuditSink
	cipher    *pii.Cipher

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the builder's configuration wholesale.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithRedis sets the Redis client backing the caches, the captcha store and
// the mail rate limiter.
func (b *Builder) WithRedis(client *redis.Client) *Builder {
	b.redis = client
	return b
}

// WithDirectory sets the authoritative user store.
func (b *Builder) WithDirectory(d UserDirectory) *Builder {
	b.directory = d
	return b
}

// WithMailer sets the outbound mail transport for password reset codes.
// Without one the engine uses [NoOpMailer], which is only appropriate in
// tests.
func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

// WithCaptcha overrides the built-in Redis captcha service.
func (b *Builder) WithCaptcha(c CaptchaService) *Builder {
	b.captcha = c
	return b
}

// WithUsernameScreener sets the username acceptability check used during
// registration.
func (b *Builder) WithUsernameScreener(s UsernameScreener) *Builder {
	b.screener = s
	return b
}

// WithCodeVerifier sets the SMS/email registration code verifier.
func (b *Builder) WithCodeVerifier(v RegistrationCodeVerifier) *Builder {
	b.codes = v
	return b
}

// WithAuditSink sets the destination for audit events.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.sink = sink
	return b
}

// WithPIICipher injects a pre-loaded keypair, bypassing the file
// load-or-generate step Build would otherwise perform.
func (b *Builder) WithPIICipher(c *pii.Cipher) *Builder {
	b.cipher = c
	return b
}

// WithMetricsEnabled toggles counter collection.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// WithLatencyHistograms toggles per-flow latency histograms.
func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration, loads or generates the PII keypair and
// wires the engine. A builder can be used once.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if b.redis == nil {
		return nil, errors.New("redis client required")
	}
	if b.directory == nil {
		return nil, errors.New("user directory required")
	}

	cfg := b.config
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	cipher := b.cipher
	if cipher == nil {
		var err error
		cipher, err = pii.LoadOrGenerate(cfg.PII.PrivateKeyPath, cfg.PII.PublicKeyPath, cfg.PII.KeyBits)
		if err != nil {
			return nil, err
		}
	}

	metrics := NewMetrics(cfg.Metrics)

	captcha := b.captcha
	if captcha == nil && cfg.Captcha.Enabled {
		captcha = &redisCaptchaService{
			redis:   b.redis,
			config:  cfg.Captcha,
			metrics: metrics,
		}
	}

	mailer := b.mailer
	if mailer == nil {
		mailer = NoOpMailer{}
	}

	screener := b.screener
	if screener == nil {
		screener = AcceptAllUsernames{}
	}

	codes := b.codes
	if codes == nil {
		codes = AcceptAllCodes{}
	}

	sink := b.sink
	if sink == nil {
		sink = NoOpSink{}
	}

	e := &Engine{
		config:      cfg,
		directory:   b.directory,
		mailer:      mailer,
		captcha:     captcha,
		screener:    screener,
		codes:       codes,
		cache:       newResultCache(b.redis, cfg.Cache, metrics),
		mailLimiter: newMailRateLimiter(b.redis, cfg.Reset.MailCooldown),
		cipher:      cipher,
		async:       newDispatcher(cfg.Async, metrics),
		sink:        sink,
		metrics:     metrics,
	}

	b.built = true
	return e, nil
}
