package joysky

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestCaptcha(t *testing.T) (*miniredis.Miniredis, CaptchaService) {
	t.Helper()
	mr, rdb := newTestRedis(t)
	t.Cleanup(mr.Close)

	cfg := DefaultConfig().Captcha
	svc := NewRedisCaptchaService(rdb, cfg)
	return mr, svc
}

func TestCaptchaGenerateIssuesNumericCode(t *testing.T) {
	_, svc := newTestCaptcha(t)

	challenge, err := svc.Generate(context.Background())
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if len(challenge.Code) != 4 {
		t.Fatalf("code %q, want 4 digits", challenge.Code)
	}
	if strings.Trim(challenge.Code, "0123456789") != "" {
		t.Fatalf("code %q contains non-digits", challenge.Code)
	}
	if challenge.ID == "" {
		t.Fatal("expected a correlation id")
	}
}

func TestCaptchaValidateConsumesOnSuccess(t *testing.T) {
	_, svc := newTestCaptcha(t)
	ctx := context.Background()

	challenge, err := svc.Generate(ctx)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if !svc.Validate(ctx, challenge.Code, challenge.ID) {
		t.Fatal("correct code should validate")
	}
	if svc.Validate(ctx, challenge.Code, challenge.ID) {
		t.Fatal("challenge must be single-use")
	}
}

func TestCaptchaValidateConsumesOnFailure(t *testing.T) {
	_, svc := newTestCaptcha(t)
	ctx := context.Background()

	challenge, err := svc.Generate(ctx)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	if svc.Validate(ctx, "wrong", challenge.ID) {
		t.Fatal("wrong code should fail")
	}
	// A failed attempt spent the challenge too.
	if svc.Validate(ctx, challenge.Code, challenge.ID) {
		t.Fatal("challenge must be consumed even by a failed attempt")
	}
}

func TestCaptchaValidateIgnoresCase(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	cfg := DefaultConfig().Captcha
	svc := NewRedisCaptchaService(rdb, cfg)
	ctx := context.Background()

	if err := mr.Set(captchaKeyPrefix+"id-1", "AbCd"); err != nil {
		t.Fatalf("seed challenge: %v", err)
	}

	if !svc.Validate(ctx, "aBcD", "id-1") {
		t.Fatal("comparison should ignore case")
	}
}

func TestCaptchaExpiresAfterTTL(t *testing.T) {
	mr, svc := newTestCaptcha(t)
	ctx := context.Background()

	challenge, err := svc.Generate(ctx)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}

	mr.FastForward(31 * time.Second)

	if svc.Validate(ctx, challenge.Code, challenge.ID) {
		t.Fatal("expired challenge should fail")
	}
}

func TestCaptchaValidateRejectsEmptyInputs(t *testing.T) {
	_, svc := newTestCaptcha(t)
	ctx := context.Background()

	if svc.Validate(ctx, "", "some-id") {
		t.Fatal("empty code should fail")
	}
	if svc.Validate(ctx, "1234", "") {
		t.Fatal("empty id should fail")
	}
}
