package joysky

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"github.com/carterbrother/joysky/password"
)

// RequestPasswordReset issues a one-time reset code to a registered email
// address. Unregistered addresses fail with the same generic error as other
// ineligibility causes, so the endpoint cannot be used to probe which
// emails hold accounts.
//
// The issuance timestamp is recorded before the mail transport is invoked:
// a failed send still starts the cooldown window, and the caller sees
// [ErrMailUnavailable].
func (e *Engine) RequestPasswordReset(ctx context.Context, email, captchaCode, captchaID string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	e.metricInc(MetricResetRequest)

	if err := e.checkCaptcha(ctx, captchaCode, captchaID); err != nil {
		return err
	}

	if !emailPattern.MatchString(email) {
		return ErrResetNotEligible
	}

	registered, err := e.identityRegistered(ctx, FieldEmail, email)
	if err != nil {
		return err
	}
	if !registered {
		return ErrResetNotEligible
	}

	if e.mailLimiter.Limited(ctx, email) {
		e.metricInc(MetricResetRateLimited)
		return ErrResetRateLimited
	}

	code, err := randomDigits(e.config.Reset.CodeLength)
	if err != nil {
		return ErrCryptoFailure
	}

	e.cache.PutCode(ctx, email, code)
	e.mailLimiter.RecordIssuance(ctx, email)
	e.emitAudit(AuditEvent{
		EventType: AuditResetCodeIssued,
		IP:        clientIPFromContext(ctx),
		Success:   true,
		Metadata:  map[string]string{"email": email},
	})

	if err := e.mailer.Send(ctx, email, e.config.Reset.MailSubject, resetMailBody(e.config.Reset, code)); err != nil {
		e.metricInc(MetricMailFailure)
		e.emitAudit(AuditEvent{
			EventType: AuditMailSendFailed,
			IP:        clientIPFromContext(ctx),
			Success:   false,
			Error:     err.Error(),
			Metadata:  map[string]string{"email": email},
		})
		return ErrMailUnavailable
	}

	return nil
}

// ResetPassword completes the reset: the supplied code must match the
// cached one exactly, case-sensitively, and only a matching code is
// consumed. A wrong code leaves the cached code in place until its TTL,
// so a typo does not force the user to request a fresh mail.
func (e *Engine) ResetPassword(ctx context.Context, email, code, newPassword, confirmation string) error {
	if e == nil {
		return ErrEngineNotReady
	}

	if newPassword != confirmation {
		return ErrPasswordConfirmMismatch
	}

	cached, ok := e.cache.GetCode(ctx, email)
	if !ok || subtle.ConstantTimeCompare([]byte(code), []byte(cached)) != 1 {
		e.metricInc(MetricResetConfirmFailure)
		e.emitAudit(AuditEvent{
			EventType: AuditResetCodeRejected,
			IP:        clientIPFromContext(ctx),
			Success:   false,
			Metadata:  map[string]string{"email": email},
		})
		return ErrResetCodeInvalid
	}

	user, err := e.directory.FindExact(ctx, FieldEmail, email)
	if err != nil {
		return e.directoryError("lookup", err)
	}
	if user == nil {
		return ErrResetNotEligible
	}

	user.PasswordHash = password.Digest(newPassword)
	user.UpdatedAt = time.Now()
	if _, err := e.directory.Save(ctx, user); err != nil {
		return e.directoryError("save", err)
	}

	// The code is spent and every cached view of this identity is stale.
	e.cache.clearUserCaches(ctx, email)
	e.cache.InvalidateUser(ctx, user.Username)
	e.cache.InvalidateUser(ctx, user.Phone)

	e.metricInc(MetricResetConfirmSuccess)
	e.emitAudit(AuditEvent{
		EventType: AuditPasswordReset,
		UserID:    user.ID,
		Username:  user.Username,
		IP:        clientIPFromContext(ctx),
		Success:   true,
	})

	return nil
}

// resetMailBody renders the HTML mail carrying a reset code.
func resetMailBody(cfg ResetConfig, code string) string {
	return fmt.Sprintf(
		`<html><body><p>Hello,</p><p>Your password reset code is <b>%s</b>.</p><p>The code expires shortly. If you did not request a reset, ignore this mail.</p><p>%s</p></body></html>`,
		code, cfg.SenderName,
	)
}
