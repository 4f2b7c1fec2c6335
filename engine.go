package joysky

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/carterbrother/joysky/pii"
)

// Engine is the account subsystem: login, registration, logout and password
// reset, backed by Redis read caches and a pluggable user directory.
//
// Engines are configured through [Builder] during initialization and treated
// as immutable afterwards. All exported methods are safe for concurrent use.
type Engine struct {
	config      Config
	directory   UserDirectory
	mailer      Mailer
	captcha     CaptchaService
	screener    UsernameScreener
	codes       RegistrationCodeVerifier
	cache       *resultCache
	mailLimiter *mailRateLimiter
	cipher      *pii.Cipher
	async       *dispatcher
	sink        AuditSink
	metrics     *Metrics
}

// Close drains the async side-effect queue and stops its workers. Pending
// tasks run to completion; new dispatches after Close execute on the caller.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.async != nil {
		e.async.Close()
	}
}

// MetricsSnapshot returns a point-in-time copy of all counters and latency
// histograms. Safe to call while requests are in flight.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Metrics exposes the live metrics registry for exporters.
func (e *Engine) Metrics() *Metrics {
	if e == nil {
		return nil
	}
	return e.metrics
}

// InlineAsyncRuns reports how many side-effect tasks ran on the caller's
// goroutine because the async queue was saturated or closed.
func (e *Engine) InlineAsyncRuns() uint64 {
	if e == nil || e.async == nil {
		return 0
	}
	return e.async.InlineRuns()
}

// PublicKeyPEM returns the PII public key in PEM form, for clients that
// encrypt credentials in transit.
func (e *Engine) PublicKeyPEM() ([]byte, error) {
	if e == nil || e.cipher == nil {
		return nil, ErrEngineNotReady
	}
	return e.cipher.PublicPEM()
}

// DecryptPII decrypts a stored ciphertext field, for display and audit
// paths that are allowed to see plaintext.
func (e *Engine) DecryptPII(ciphertext string) (string, error) {
	if e == nil || e.cipher == nil {
		return "", ErrEngineNotReady
	}
	plain, err := e.cipher.Decrypt(ciphertext)
	if err != nil {
		return "", ErrCryptoFailure
	}
	return plain, nil
}

// directoryError records a durable-store failure server-side, with its
// cause, and returns [ErrDirectoryUnavailable] wrapping that cause so
// callers can still classify the error with [Kind].
func (e *Engine) directoryError(op string, err error) error {
	log.Printf("user directory %s failed: %v", op, err)
	return fmt.Errorf("%w: %w", ErrDirectoryUnavailable, err)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observeLatency(id MetricID, start time.Time) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

// emitAudit hands the event to the sink off the hot path. The foreground
// flow never waits for audit delivery.
func (e *Engine) emitAudit(event AuditEvent) {
	if e == nil || e.sink == nil || !e.config.Audit.Enabled {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	e.async.Dispatch("audit:"+event.EventType, func(ctx context.Context) error {
		e.sink.Emit(ctx, event)
		return nil
	})
}
