package joysky

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func newResetTestEngine(t *testing.T) (*Engine, *recordingMailer, func()) {
	t.Helper()
	mr, rdb := newTestRedis(t)

	mailer := &recordingMailer{}
	engine := newTestEngine(t, rdb, newMockDirectory())
	engine.mailer = mailer
	seedTestAccount(t, engine)

	cleanup := func() {
		engine.Close()
		mr.Close()
	}
	return engine, mailer, cleanup
}

func issuedResetCode(t *testing.T, e *Engine, email string) string {
	t.Helper()
	code, ok := e.cache.GetCode(context.Background(), email)
	if !ok {
		t.Fatal("no reset code cached")
	}
	return code
}

func TestPasswordResetFullFlow(t *testing.T) {
	engine, mailer, cleanup := newResetTestEngine(t)
	defer cleanup()
	ctx := context.Background()

	if err := engine.RequestPasswordReset(ctx, "alice@example.com", "", ""); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	if len(mailer.sent) != 1 || mailer.sent[0] != "alice@example.com" {
		t.Fatalf("mail went to %v", mailer.sent)
	}

	code := issuedResetCode(t, engine, "alice@example.com")
	if len(code) != 6 || strings.Trim(code, "0123456789") != "" {
		t.Fatalf("code %q, want 6 digits", code)
	}
	if !strings.Contains(mailer.body, code) {
		t.Fatal("mail body should carry the code")
	}

	if err := engine.ResetPassword(ctx, "alice@example.com", code, "new-horse", "new-horse"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	// Old password dead, new one live.
	if _, err := engine.Login(ctx, "alice", "correct-horse", "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("old password: got %v", err)
	}
	if _, err := engine.Login(ctx, "alice", "new-horse", "", ""); err != nil {
		t.Fatalf("new password: got %v", err)
	}
}

func TestResetCodeIsSingleUse(t *testing.T) {
	engine, _, cleanup := newResetTestEngine(t)
	defer cleanup()
	ctx := context.Background()

	if err := engine.RequestPasswordReset(ctx, "alice@example.com", "", ""); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	code := issuedResetCode(t, engine, "alice@example.com")

	if err := engine.ResetPassword(ctx, "alice@example.com", code, "pw-1", "pw-1"); err != nil {
		t.Fatalf("first reset failed: %v", err)
	}
	if err := engine.ResetPassword(ctx, "alice@example.com", code, "pw-2", "pw-2"); !errors.Is(err, ErrResetCodeInvalid) {
		t.Fatalf("replay: got %v, want ErrResetCodeInvalid", err)
	}
}

func TestResetWrongCodeIsNotConsumed(t *testing.T) {
	engine, _, cleanup := newResetTestEngine(t)
	defer cleanup()
	ctx := context.Background()

	if err := engine.RequestPasswordReset(ctx, "alice@example.com", "", ""); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	code := issuedResetCode(t, engine, "alice@example.com")

	wrong := "000000"
	if wrong == code {
		wrong = "000001"
	}
	if err := engine.ResetPassword(ctx, "alice@example.com", wrong, "pw", "pw"); !errors.Is(err, ErrResetCodeInvalid) {
		t.Fatalf("wrong code: got %v", err)
	}

	// The typo did not burn the real code.
	if err := engine.ResetPassword(ctx, "alice@example.com", code, "pw", "pw"); err != nil {
		t.Fatalf("correct code after typo failed: %v", err)
	}
}

func TestResetCodeComparisonIsCaseSensitive(t *testing.T) {
	engine, _, cleanup := newResetTestEngine(t)
	defer cleanup()
	ctx := context.Background()

	// Seed a non-numeric code directly to expose the comparison rule.
	engine.cache.PutCode(ctx, "alice@example.com", "AbCdEf")

	if err := engine.ResetPassword(ctx, "alice@example.com", "abcdef", "pw", "pw"); !errors.Is(err, ErrResetCodeInvalid) {
		t.Fatalf("case-folded code: got %v", err)
	}
	if err := engine.ResetPassword(ctx, "alice@example.com", "AbCdEf", "pw", "pw"); err != nil {
		t.Fatalf("exact code failed: %v", err)
	}
}

func TestResetCodeExpires(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, newMockDirectory())
	defer engine.Close()
	seedTestAccount(t, engine)
	ctx := context.Background()

	if err := engine.RequestPasswordReset(ctx, "alice@example.com", "", ""); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	code := issuedResetCode(t, engine, "alice@example.com")

	mr.FastForward(16 * time.Minute)

	if err := engine.ResetPassword(ctx, "alice@example.com", code, "pw", "pw"); !errors.Is(err, ErrResetCodeInvalid) {
		t.Fatalf("expired code: got %v", err)
	}
}

func TestResetRequestRateLimited(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, newMockDirectory())
	defer engine.Close()
	seedTestAccount(t, engine)
	ctx := context.Background()

	if err := engine.RequestPasswordReset(ctx, "alice@example.com", "", ""); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	if err := engine.RequestPasswordReset(ctx, "alice@example.com", "", ""); !errors.Is(err, ErrResetRateLimited) {
		t.Fatalf("second request: got %v, want ErrResetRateLimited", err)
	}

	mr.FastForward(6 * time.Second)
	if err := engine.RequestPasswordReset(ctx, "alice@example.com", "", ""); err != nil {
		t.Fatalf("request after cooldown failed: %v", err)
	}
}

func TestResetRequestUnknownEmailDoesNotLeak(t *testing.T) {
	engine, mailer, cleanup := newResetTestEngine(t)
	defer cleanup()

	err := engine.RequestPasswordReset(context.Background(), "stranger@example.com", "", "")
	if !errors.Is(err, ErrResetNotEligible) {
		t.Fatalf("got %v, want ErrResetNotEligible", err)
	}
	if mailer.calls != 0 {
		t.Fatal("no mail may be sent for unknown recipients")
	}
}

func TestResetRequestMailFailureStillStartsCooldown(t *testing.T) {
	engine, mailer, cleanup := newResetTestEngine(t)
	defer cleanup()
	ctx := context.Background()

	mailer.fail = errors.New("smtp down")
	if err := engine.RequestPasswordReset(ctx, "alice@example.com", "", ""); !errors.Is(err, ErrMailUnavailable) {
		t.Fatalf("got %v, want ErrMailUnavailable", err)
	}

	// Issuance was recorded despite the transport failure.
	if err := engine.RequestPasswordReset(ctx, "alice@example.com", "", ""); !errors.Is(err, ErrResetRateLimited) {
		t.Fatalf("retry: got %v, want ErrResetRateLimited", err)
	}
	if got := engine.metrics.Value(MetricMailFailure); got != 1 {
		t.Fatalf("mail failures = %d, want 1", got)
	}
}

func TestResetRejectsConfirmationMismatch(t *testing.T) {
	engine, _, cleanup := newResetTestEngine(t)
	defer cleanup()

	err := engine.ResetPassword(context.Background(), "alice@example.com", "123456", "pw-a", "pw-b")
	if !errors.Is(err, ErrPasswordConfirmMismatch) {
		t.Fatalf("got %v, want ErrPasswordConfirmMismatch", err)
	}
}

func TestResetInvalidatesLoginCache(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, newMockDirectory())
	defer engine.Close()
	seedTestAccount(t, engine)
	ctx := context.Background()

	// Warm the login cache under every identifier shape.
	for _, id := range []string{"alice", "13812345678", "alice@example.com"} {
		if _, err := engine.Login(ctx, id, "correct-horse", "", ""); err != nil {
			t.Fatalf("warm Login(%q) failed: %v", id, err)
		}
	}

	if err := engine.RequestPasswordReset(ctx, "alice@example.com", "", ""); err != nil {
		t.Fatalf("RequestPasswordReset failed: %v", err)
	}
	code := issuedResetCode(t, engine, "alice@example.com")
	if err := engine.ResetPassword(ctx, "alice@example.com", code, "new-horse", "new-horse"); err != nil {
		t.Fatalf("ResetPassword failed: %v", err)
	}

	// A stale cached record would still verify the old digest; the reset
	// must have evicted all of them.
	for _, id := range []string{"alice", "13812345678", "alice@example.com"} {
		if _, err := engine.Login(ctx, id, "correct-horse", "", ""); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("old password via %q: got %v", id, err)
		}
	}
}
