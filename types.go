package joysky

import (
	"context"
	"time"
)

// Field names one of the independently indexed exact-match columns of the
// user directory.
type Field string

const (
	// FieldUsername selects the username index.
	FieldUsername Field = "username"
	// FieldPhone selects the phone index.
	FieldPhone Field = "phone"
	// FieldEmail selects the email index.
	FieldEmail Field = "email"
)

// User is the durable account record. The encrypted and masked variants are
// derived from the plaintext phone/email at creation and never diverge from
// them; UpdatedAt is refreshed on every mutation. Accounts are never
// hard-deleted by this engine.
type User struct {
	ID             int64     `json:"id"`
	Username       string    `json:"username"`
	PasswordHash   string    `json:"-"`
	Phone          string    `json:"phone"`
	Email          string    `json:"email"`
	PhoneEncrypted string    `json:"phone_encrypted"`
	EmailEncrypted string    `json:"email_encrypted"`
	PhoneMasked    string    `json:"phone_masked"`
	EmailMasked    string    `json:"email_masked"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// UserDirectory is the durable-store collaborator. Implementations must back
// Exists and FindExact with independent exact-match indexes on username,
// phone, and email; Save is an upsert that assigns ID when absent. FindExact
// returns (nil, nil) when no account matches; a non-nil error means the
// store itself failed.
//
// The engine never spans a transaction across a directory call and a cache
// operation: cached values are idempotent re-derivations of durable state
// and a racing double-populate resolves as last-write-wins.
type UserDirectory interface {
	Exists(ctx context.Context, field Field, value string) (bool, error)
	FindExact(ctx context.Context, field Field, value string) (*User, error)
	Save(ctx context.Context, user *User) (*User, error)
}

// Mailer is the outbound mail collaborator. Failure reasons are opaque to
// the engine; a non-nil error is surfaced to callers as [ErrMailUnavailable].
type Mailer interface {
	Send(ctx context.Context, to, subject, htmlBody string) error
}

// NoOpMailer discards all outbound mail. Useful in tests and in deployments
// that wire a real transport later.
type NoOpMailer struct{}

// Send implements [Mailer].
func (NoOpMailer) Send(context.Context, string, string, string) error { return nil }

// Captcha is an issued challenge: the code the caller must echo back and the
// opaque correlation ID it is bound to.
type Captcha struct {
	Code string `json:"img_code"`
	ID   string `json:"img_uuid"`
}

// CaptchaService issues and validates human-verification challenges.
//
// Validate consumes the challenge on every attempt, success or failure; a
// second validation of the same ID always fails. This differs deliberately
// from password-reset mail codes, which are consumed only by a successful
// match.
type CaptchaService interface {
	Generate(ctx context.Context) (Captcha, error)
	Validate(ctx context.Context, code, id string) bool
}

// UsernameScreener rejects usernames before registration. The default
// accepts everything; word filtering is a pluggable concern.
type UsernameScreener interface {
	Rejected(username string) bool
}

// AcceptAllUsernames is the default [UsernameScreener].
type AcceptAllUsernames struct{}

// Rejected implements [UsernameScreener].
func (AcceptAllUsernames) Rejected(string) bool { return false }

// RegistrationCodeVerifier checks the sms/email codes supplied at
// registration. The default accepts everything, matching deployments where
// the channels are verified upstream.
type RegistrationCodeVerifier interface {
	VerifySMSCode(ctx context.Context, phone, code string) bool
	VerifyEmailCode(ctx context.Context, email, code string) bool
}

// AcceptAllCodes is the default [RegistrationCodeVerifier].
type AcceptAllCodes struct{}

// VerifySMSCode implements [RegistrationCodeVerifier].
func (AcceptAllCodes) VerifySMSCode(context.Context, string, string) bool { return true }

// VerifyEmailCode implements [RegistrationCodeVerifier].
func (AcceptAllCodes) VerifyEmailCode(context.Context, string, string) bool { return true }

// RegisterRequest carries the inputs of [Engine.Register]. All identity
// fields are required; Phone must be an 11-digit CN mobile number and Email
// a well-formed address.
type RegisterRequest struct {
	Username    string
	Password    string
	Phone       string
	SMSCode     string
	Email       string
	EmailCode   string
	CaptchaCode string
	CaptchaID   string
}
