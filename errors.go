package joysky

import "errors"

var (
	// ErrEngineNotReady is returned when a method is called on an engine
	// that was not produced by [Builder.Build].
	ErrEngineNotReady = errors.New("engine not initialized")
	// ErrInvalidCredentials covers both unknown identity and wrong password
	// at login. The two cases are deliberately indistinguishable to prevent
	// identifier enumeration.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrCaptchaInvalid is returned when the supplied captcha code is wrong,
	// expired, or already consumed.
	ErrCaptchaInvalid = errors.New("captcha invalid or expired")
	// ErrUsernameRejected is returned when the username screener refuses a
	// registration username.
	ErrUsernameRejected = errors.New("username rejected")
	// ErrSMSCodeInvalid is returned when the registration sms code fails
	// verification.
	ErrSMSCodeInvalid = errors.New("sms code invalid")
	// ErrEmailCodeInvalid is returned when the registration email code fails
	// verification.
	ErrEmailCodeInvalid = errors.New("email code invalid")
	// ErrPhoneInvalid is returned when a registration phone number is not a
	// well-formed CN mobile number.
	ErrPhoneInvalid = errors.New("phone number malformed")
	// ErrEmailInvalid is returned when a registration email address is not
	// well formed.
	ErrEmailInvalid = errors.New("email address malformed")
	// ErrPhoneRegistered is returned when the phone number is already bound
	// to an account.
	ErrPhoneRegistered = errors.New("phone already registered")
	// ErrEmailRegistered is returned when the email address is already bound
	// to an account.
	ErrEmailRegistered = errors.New("email already registered")
	// ErrPasswordConfirmMismatch is returned when the reset confirmation
	// does not match the new password.
	ErrPasswordConfirmMismatch = errors.New("password confirmation mismatch")
	// ErrResetCodeInvalid is returned when a password-reset code is wrong or
	// expired. A mismatching code is not consumed; only the matching code is.
	ErrResetCodeInvalid = errors.New("reset code invalid or expired")
	// ErrResetNotEligible is returned when a reset cannot be issued for the
	// supplied email. It does not reveal whether the email is registered.
	ErrResetNotEligible = errors.New("reset not available for this email")
	// ErrResetRateLimited is returned when a reset code was issued to the
	// same recipient within the cooldown window.
	ErrResetRateLimited = errors.New("reset code recently issued, retry later")
	// ErrMailUnavailable wraps mail-transport failures. The issuance
	// timestamp is still recorded, so retrying immediately is rate-limited.
	ErrMailUnavailable = errors.New("mail transport unavailable")
	// ErrDirectoryUnavailable wraps durable-store failures.
	ErrDirectoryUnavailable = errors.New("user directory unavailable")
	// ErrCryptoFailure wraps keypair-loading and payload errors from the PII
	// cipher. It is fatal to the request and carries no internal detail.
	ErrCryptoFailure = errors.New("pii encryption failure")
)

// ErrorKind partitions engine errors for transport layers: each kind maps to
// one user-facing treatment.
type ErrorKind uint8

const (
	// KindInternal covers crypto/key-loading failures and unknown errors.
	KindInternal ErrorKind = iota
	// KindValidation covers malformed input, mismatched confirmations, and
	// wrong or expired codes.
	KindValidation
	// KindConflict covers duplicate phone/email/username at registration.
	KindConflict
	// KindAuth covers bad credentials and unknown identities, kept generic.
	KindAuth
	// KindUpstream covers mail-transport and durable-store failures.
	KindUpstream
)

// Kind classifies err into an [ErrorKind]. Unrecognized errors classify as
// KindInternal so transport layers never leak internal detail by default.
func Kind(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrCaptchaInvalid),
		errors.Is(err, ErrPhoneInvalid),
		errors.Is(err, ErrEmailInvalid),
		errors.Is(err, ErrUsernameRejected),
		errors.Is(err, ErrSMSCodeInvalid),
		errors.Is(err, ErrEmailCodeInvalid),
		errors.Is(err, ErrPasswordConfirmMismatch),
		errors.Is(err, ErrResetCodeInvalid),
		errors.Is(err, ErrResetRateLimited):
		return KindValidation
	case errors.Is(err, ErrPhoneRegistered),
		errors.Is(err, ErrEmailRegistered):
		return KindConflict
	case errors.Is(err, ErrInvalidCredentials),
		errors.Is(err, ErrResetNotEligible):
		return KindAuth
	case errors.Is(err, ErrMailUnavailable),
		errors.Is(err, ErrDirectoryUnavailable):
		return KindUpstream
	default:
		return KindInternal
	}
}
