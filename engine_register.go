package joysky

import (
	"context"
	"time"

	"github.com/carterbrother/joysky/password"
)

// Register creates a new account. Identity fields are validated and checked
// for duplicates before the durable write; phone and email duplicate checks
// read through the short-lived exists cache so registration storms do not
// hammer the directory. Plaintext phone and email are stored alongside
// their encrypted and masked derivations, all populated atomically with the
// record itself.
func (e *Engine) Register(ctx context.Context, req RegisterRequest) (*User, error) {
	if e == nil {
		return nil, ErrEngineNotReady
	}

	start := time.Now()
	e.metricInc(MetricRegisterRequest)
	defer e.observeLatency(MetricRegisterLatency, start)

	if err := e.checkCaptcha(ctx, req.CaptchaCode, req.CaptchaID); err != nil {
		return nil, err
	}

	if err := e.validateRegistration(ctx, req); err != nil {
		return nil, err
	}

	user, err := e.buildUser(req)
	if err != nil {
		return nil, err
	}

	saved, err := e.directory.Save(ctx, user)
	if err != nil {
		return nil, e.directoryError("save", err)
	}

	// The identity now exists; refresh the duplicate-check caches so a
	// racing registration sees the conflict without a directory read.
	e.cache.PutExists(ctx, FieldPhone, saved.Phone, true)
	e.cache.PutExists(ctx, FieldEmail, saved.Email, true)

	e.metricInc(MetricRegisterSuccess)
	e.emitAudit(AuditEvent{
		EventType: AuditRegister,
		UserID:    saved.ID,
		Username:  saved.Username,
		IP:        clientIPFromContext(ctx),
		Success:   true,
	})
	e.dispatchRegistrationNotification(saved)

	return saved, nil
}

func (e *Engine) validateRegistration(ctx context.Context, req RegisterRequest) error {
	if req.Username == "" || req.Password == "" {
		return ErrInvalidCredentials
	}
	if e.screener.Rejected(req.Username) {
		return ErrUsernameRejected
	}
	if !phonePattern.MatchString(req.Phone) {
		return ErrPhoneInvalid
	}
	if !emailPattern.MatchString(req.Email) {
		return ErrEmailInvalid
	}

	registered, err := e.identityRegistered(ctx, FieldPhone, req.Phone)
	if err != nil {
		return err
	}
	if registered {
		e.metricInc(MetricRegisterConflict)
		return ErrPhoneRegistered
	}

	registered, err = e.identityRegistered(ctx, FieldEmail, req.Email)
	if err != nil {
		return err
	}
	if registered {
		e.metricInc(MetricRegisterConflict)
		return ErrEmailRegistered
	}

	if !e.codes.VerifySMSCode(ctx, req.Phone, req.SMSCode) {
		return ErrSMSCodeInvalid
	}
	if !e.codes.VerifyEmailCode(ctx, req.Email, req.EmailCode) {
		return ErrEmailCodeInvalid
	}

	return nil
}

// identityRegistered answers "is this phone/email already taken" through
// the exists cache, falling back to the directory on a miss.
func (e *Engine) identityRegistered(ctx context.Context, field Field, value string) (bool, error) {
	if exists, ok := e.cache.GetExists(ctx, field, value); ok {
		return exists, nil
	}

	exists, err := e.directory.Exists(ctx, field, value)
	if err != nil {
		return false, e.directoryError("existence check", err)
	}

	e.cache.PutExists(ctx, field, value, exists)
	return exists, nil
}

// buildUser derives the at-rest form of the account: digest of the
// password, ciphertext and masked variants of phone and email, and both
// timestamps, all in one shot so the stored record is internally
// consistent from its first write.
func (e *Engine) buildUser(req RegisterRequest) (*User, error) {
	phoneEncrypted, err := e.cipher.Encrypt(req.Phone)
	if err != nil {
		return nil, ErrCryptoFailure
	}
	emailEncrypted, err := e.cipher.Encrypt(req.Email)
	if err != nil {
		return nil, ErrCryptoFailure
	}
	phoneMasked, err := MaskPhone(req.Phone)
	if err != nil {
		return nil, ErrPhoneInvalid
	}
	emailMasked, err := MaskEmail(req.Email)
	if err != nil {
		return nil, ErrEmailInvalid
	}

	now := time.Now()
	return &User{
		Username:       req.Username,
		PasswordHash:   password.Digest(req.Password),
		Phone:          req.Phone,
		Email:          req.Email,
		PhoneEncrypted: phoneEncrypted,
		EmailEncrypted: emailEncrypted,
		PhoneMasked:    phoneMasked,
		EmailMasked:    emailMasked,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// dispatchRegistrationNotification emits the welcome/registration side
// effect without blocking the response.
func (e *Engine) dispatchRegistrationNotification(user *User) {
	e.emitAudit(AuditEvent{
		EventType: AuditRegisterNotified,
		UserID:    user.ID,
		Username:  user.Username,
		Success:   true,
		Metadata:  map[string]string{"email": user.EmailMasked},
	})
}
