package joysky

import (
	"errors"
	"time"
)

// Config defines the engine's tuning parameters. Instances are configured
// during initialization and treated as immutable afterwards.
type Config struct {
	Cache   CacheConfig   `yaml:"cache"`
	Reset   ResetConfig   `yaml:"reset"`
	Captcha CaptchaConfig `yaml:"captcha"`
	PII     PIIConfig     `yaml:"pii"`
	Async   AsyncConfig   `yaml:"async"`
	Audit   AuditConfig   `yaml:"audit"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// CacheConfig holds the TTLs of the three result-cache stores. Each store is
// independent: user records, existence checks, and reset codes expire on
// their own clocks.
type CacheConfig struct {
	UserTTL   time.Duration `yaml:"user_ttl"`
	ExistsTTL time.Duration `yaml:"exists_ttl"`
	CodeTTL   time.Duration `yaml:"code_ttl"`
}

// ResetConfig tunes password-reset code issuance.
type ResetConfig struct {
	CodeLength   int           `yaml:"code_length"`
	MailCooldown time.Duration `yaml:"mail_cooldown"`
	MailSubject  string        `yaml:"mail_subject"`
	SenderName   string        `yaml:"sender_name"`
}

// CaptchaConfig tunes the built-in captcha store. Enabled controls whether
// flows demand a captcha at all; deployments that verify humans upstream
// can turn it off.
type CaptchaConfig struct {
	Enabled    bool          `yaml:"enabled"`
	CodeLength int           `yaml:"code_length"`
	TTL        time.Duration `yaml:"ttl"`
}

// PIIConfig locates the RSA keypair protecting phone/email at rest. When the
// files are absent a fresh keypair of KeyBits is generated and persisted at
// Build, once, before the engine serves any request.
type PIIConfig struct {
	PublicKeyPath  string `yaml:"public_key_path"`
	PrivateKeyPath string `yaml:"private_key_path"`
	KeyBits        int    `yaml:"key_bits"`
}

// AsyncConfig bounds the side-effect dispatcher. When the queue is full,
// Dispatch degrades to running the task on the caller instead of dropping it
// or blocking.
type AsyncConfig struct {
	Workers   int `yaml:"workers"`
	QueueSize int `yaml:"queue_size"`
}

// AuditConfig controls audit event emission. The sink itself is supplied via
// [Builder.WithAuditSink].
type AuditConfig struct {
	Enabled bool `yaml:"enabled"`
}

// MetricsConfig controls the in-process performance monitor.
type MetricsConfig struct {
	Enabled                 bool `yaml:"enabled"`
	EnableLatencyHistograms bool `yaml:"enable_latency_histograms"`
}

// DefaultConfig returns the stock policy: 5m user cache, 1m existence
// cache, 15m reset codes, 5s mail cooldown, 6-digit reset codes, 4-digit
// captchas with 30s TTL, 2048-bit PII keys.
func DefaultConfig() Config {
	return Config{
		Cache: CacheConfig{
			UserTTL:   5 * time.Minute,
			ExistsTTL: time.Minute,
			CodeTTL:   15 * time.Minute,
		},
		Reset: ResetConfig{
			CodeLength:   6,
			MailCooldown: 5 * time.Second,
			MailSubject:  "Password reset code",
			SenderName:   "joysky",
		},
		Captcha: CaptchaConfig{
			Enabled:    true,
			CodeLength: 4,
			TTL:        30 * time.Second,
		},
		PII: PIIConfig{
			PublicKeyPath:  "keys/rsa_public.pem",
			PrivateKeyPath: "keys/rsa_private.pem",
			KeyBits:        2048,
		},
		Async: AsyncConfig{
			Workers:   4,
			QueueSize: 256,
		},
		Audit:   AuditConfig{Enabled: true},
		Metrics: MetricsConfig{Enabled: true, EnableLatencyHistograms: true},
	}
}

func validateConfig(cfg Config) error {
	if cfg.Cache.UserTTL <= 0 || cfg.Cache.ExistsTTL <= 0 || cfg.Cache.CodeTTL <= 0 {
		return errors.New("cache TTLs must be positive")
	}
	if cfg.Reset.CodeLength < 4 {
		return errors.New("reset code length must be at least 4")
	}
	if cfg.Reset.MailCooldown <= 0 {
		return errors.New("mail cooldown must be positive")
	}
	if cfg.Captcha.Enabled {
		if cfg.Captcha.CodeLength < 4 {
			return errors.New("captcha code length must be at least 4")
		}
		if cfg.Captcha.TTL <= 0 {
			return errors.New("captcha TTL must be positive")
		}
	}
	if cfg.PII.KeyBits != 0 && cfg.PII.KeyBits < 2048 {
		return errors.New("pii key size below 2048 bits")
	}
	if cfg.Async.Workers <= 0 {
		return errors.New("async workers must be positive")
	}
	if cfg.Async.QueueSize <= 0 {
		return errors.New("async queue size must be positive")
	}
	return nil
}
