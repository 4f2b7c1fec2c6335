package joysky

import (
	"context"
	"time"

	"github.com/carterbrother/joysky/password"
)

// Login authenticates an account by username, phone number or email
// address. The identifier is classified once and resolved with a single
// indexed directory lookup; resolved accounts are cached so repeated
// attempts against the same identity skip the directory.
//
// Every failure mode that depends on the credential pair collapses into
// [ErrInvalidCredentials]. Callers cannot distinguish an unknown identifier
// from a wrong password.
func (e *Engine) Login(ctx context.Context, identifier, plaintext, captchaCode, captchaID string) (*User, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	e.metricInc(MetricLoginRequest)
	defer e.observeLatency(MetricLoginLatency, start)

	if err := e.checkCaptcha(ctx, captchaCode, captchaID); err != nil {
		e.metricInc(MetricLoginFailure)
		return nil, err
	}

	if identifier == "" || plaintext == "" {
		e.metricInc(MetricLoginFailure)
		return nil, ErrInvalidCredentials
	}

	user, err := e.resolveUser(ctx, identifier)
	if err != nil {
		e.metricInc(MetricLoginFailure)
		return nil, err
	}
	if user == nil {
		e.metricInc(MetricLoginFailure)
		e.auditLogin(ctx, identifier, nil, false, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	if !password.Verify(plaintext, user.PasswordHash) {
		e.metricInc(MetricLoginFailure)
		e.auditLogin(ctx, identifier, user, false, ErrInvalidCredentials)
		return nil, ErrInvalidCredentials
	}

	e.metricInc(MetricLoginSuccess)
	e.auditLogin(ctx, identifier, user, true, nil)
	e.dispatchStatisticsUpdate(user.ID)

	return user, nil
}

// Logout acknowledges a sign-out for the given identifier and evicts its
// login cache entry, so the next login re-reads the directory. Logging out
// an identifier with no account is still an ack; there is nothing to leak.
func (e *Engine) Logout(ctx context.Context, identifier string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	start := time.Now()
	e.metricInc(MetricLogoutRequest)
	defer e.observeLatency(MetricLogoutLatency, start)

	if identifier == "" {
		return ErrInvalidCredentials
	}

	e.cache.InvalidateUser(ctx, identifier)

	// Fresh directory read, bypassing the just-evicted entry, so the audit
	// trail names the durable account if one exists.
	var user *User
	kind := ClassifyIdentifier(identifier)
	found, err := e.directory.FindExact(ctx, directoryField(kind), identifier)
	if err == nil {
		user = found
	}

	e.metricInc(MetricLogoutSuccess)

	ip := clientIPFromContext(ctx)
	event := AuditEvent{
		EventType: AuditLogout,
		IP:        ip,
		Success:   true,
		Metadata:  map[string]string{"identifier": identifier},
	}
	if user != nil {
		event.UserID = user.ID
		event.Username = user.Username
	}
	e.emitAudit(event)
	e.emitAudit(AuditEvent{
		EventType: AuditLoginCacheEvicted,
		IP:        ip,
		Success:   true,
		Metadata:  map[string]string{"identifier": identifier},
	})

	return nil
}

// resolveUser is the cache-aside read behind Login: cache hit wins, a miss
// classifies the identifier and performs one indexed lookup, and a resolved
// account back-fills the cache. A nil, nil return means no account matched.
func (e *Engine) resolveUser(ctx context.Context, identifier string) (*User, error) {
	if user, ok := e.cache.GetUser(ctx, identifier); ok {
		return user, nil
	}

	kind := ClassifyIdentifier(identifier)
	user, err := e.directory.FindExact(ctx, directoryField(kind), identifier)
	if err != nil {
		return nil, e.directoryError("lookup", err)
	}
	if user == nil {
		return nil, nil
	}

	e.cache.PutUser(ctx, identifier, user)
	return user, nil
}

func (e *Engine) auditLogin(ctx context.Context, identifier string, user *User, success bool, cause error) {
	event := AuditEvent{
		EventType: AuditLogin,
		IP:        clientIPFromContext(ctx),
		Success:   success,
		Metadata:  map[string]string{"identifier": identifier},
	}
	if user != nil {
		event.UserID = user.ID
		event.Username = user.Username
	}
	if cause != nil {
		event.Error = cause.Error()
	}
	e.emitAudit(event)
}

// dispatchStatisticsUpdate records a successful login against usage
// statistics, off the hot path. Failures are swallowed by the dispatcher.
func (e *Engine) dispatchStatisticsUpdate(userID int64) {
	e.emitAudit(AuditEvent{
		EventType: AuditStatisticsUpdate,
		UserID:    userID,
		Success:   true,
	})
}
