package joysky

import (
	"bytes"
	"context"
	"errors"
	"log"
	"os"
	"strings"
	"testing"
)

func seedTestAccount(t *testing.T, e *Engine) *User {
	t.Helper()
	user, err := e.Register(context.Background(), testRegisterRequest())
	if err != nil {
		t.Fatalf("seed Register failed: %v", err)
	}
	return user
}

func TestLoginByEachIdentifierShape(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	dir := newMockDirectory()
	engine := newTestEngine(t, rdb, dir)
	defer engine.Close()
	seedTestAccount(t, engine)

	ctx := context.Background()
	for _, identifier := range []string{"alice", "13812345678", "alice@example.com"} {
		user, err := engine.Login(ctx, identifier, "correct-horse", "", "")
		if err != nil {
			t.Fatalf("Login(%q) failed: %v", identifier, err)
		}
		if user.Username != "alice" {
			t.Fatalf("Login(%q) returned %q", identifier, user.Username)
		}
	}
}

func TestLoginUsesCacheOnRepeat(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	dir := newMockDirectory()
	engine := newTestEngine(t, rdb, dir)
	defer engine.Close()
	seedTestAccount(t, engine)

	ctx := context.Background()
	if _, err := engine.Login(ctx, "alice", "correct-horse", "", ""); err != nil {
		t.Fatalf("first Login failed: %v", err)
	}
	calls := dir.FindCalls()

	if _, err := engine.Login(ctx, "alice", "correct-horse", "", ""); err != nil {
		t.Fatalf("second Login failed: %v", err)
	}
	if dir.FindCalls() != calls {
		t.Fatal("cached login must not reach the directory")
	}
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, newMockDirectory())
	defer engine.Close()
	seedTestAccount(t, engine)

	ctx := context.Background()

	_, unknownErr := engine.Login(ctx, "nobody", "whatever", "", "")
	_, wrongPwErr := engine.Login(ctx, "alice", "wrong-password", "", "")

	if !errors.Is(unknownErr, ErrInvalidCredentials) {
		t.Fatalf("unknown identifier: got %v", unknownErr)
	}
	if !errors.Is(wrongPwErr, ErrInvalidCredentials) {
		t.Fatalf("wrong password: got %v", wrongPwErr)
	}
	if unknownErr.Error() != wrongPwErr.Error() {
		t.Fatal("the two failures must be textually identical")
	}
}

func TestLoginRejectsEmptyInput(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, newMockDirectory())
	defer engine.Close()

	ctx := context.Background()
	if _, err := engine.Login(ctx, "", "pw", "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty identifier: got %v", err)
	}
	if _, err := engine.Login(ctx, "alice", "", "", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("empty password: got %v", err)
	}
}

func TestLoginSurfacesDirectoryFailure(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	dir := newMockDirectory()
	dir.findErr = errors.New("connection refused")
	engine := newTestEngine(t, rdb, dir)
	defer engine.Close()

	if _, err := engine.Login(context.Background(), "alice", "pw", "", ""); !errors.Is(err, ErrDirectoryUnavailable) {
		t.Fatalf("got %v, want ErrDirectoryUnavailable", err)
	}
}

func TestDirectoryFailureKeepsCauseInErrorAndLog(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	dir := newMockDirectory()
	dir.findErr = errors.New("connection refused to db-7")
	engine := newTestEngine(t, rdb, dir)
	defer engine.Close()

	var logged bytes.Buffer
	log.SetOutput(&logged)
	defer log.SetOutput(os.Stderr)

	_, err := engine.Login(context.Background(), "alice", "pw", "", "")
	if !errors.Is(err, ErrDirectoryUnavailable) {
		t.Fatalf("got %v, want ErrDirectoryUnavailable", err)
	}
	if !strings.Contains(err.Error(), "connection refused to db-7") {
		t.Fatalf("returned error %q must carry the cause", err)
	}
	if !errors.Is(err, dir.findErr) {
		t.Fatal("the cause must stay reachable through errors.Is")
	}
	if !strings.Contains(logged.String(), "connection refused to db-7") {
		t.Fatalf("server log %q must carry the cause", logged.String())
	}
}

func TestLoginDemandsCaptchaWhenEnabled(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, newMockDirectory())
	defer engine.Close()
	seedTestAccount(t, engine)

	engine.config.Captcha.Enabled = true
	engine.captcha = NewRedisCaptchaService(rdb, engine.config.Captcha)

	ctx := context.Background()
	if _, err := engine.Login(ctx, "alice", "correct-horse", "", ""); !errors.Is(err, ErrCaptchaInvalid) {
		t.Fatalf("missing captcha: got %v", err)
	}

	challenge, err := engine.captcha.Generate(ctx)
	if err != nil {
		t.Fatalf("Generate failed: %v", err)
	}
	if _, err := engine.Login(ctx, "alice", "correct-horse", challenge.Code, challenge.ID); err != nil {
		t.Fatalf("Login with valid captcha failed: %v", err)
	}
}

func TestLogoutEvictsLoginCache(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	dir := newMockDirectory()
	engine := newTestEngine(t, rdb, dir)
	defer engine.Close()
	seedTestAccount(t, engine)

	ctx := context.Background()
	if _, err := engine.Login(ctx, "alice", "correct-horse", "", ""); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !mr.Exists(userCacheKey("alice")) {
		t.Fatal("login should have populated the cache")
	}

	if err := engine.Logout(ctx, "alice"); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if mr.Exists(userCacheKey("alice")) {
		t.Fatal("logout should have evicted the cache entry")
	}
}

func TestLogoutUnknownIdentifierStillAcks(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, newMockDirectory())
	defer engine.Close()

	if err := engine.Logout(context.Background(), "nobody"); err != nil {
		t.Fatalf("Logout of unknown identifier should ack, got %v", err)
	}
}

func TestLoginCountsMetrics(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, newMockDirectory())
	defer engine.Close()
	seedTestAccount(t, engine)

	ctx := context.Background()
	_, _ = engine.Login(ctx, "alice", "correct-horse", "", "")
	_, _ = engine.Login(ctx, "alice", "wrong", "", "")

	if got := engine.metrics.Value(MetricLoginRequest); got != 2 {
		t.Errorf("requests = %d, want 2", got)
	}
	if got := engine.metrics.Value(MetricLoginSuccess); got != 1 {
		t.Errorf("successes = %d, want 1", got)
	}
	if got := engine.metrics.Value(MetricLoginFailure); got != 1 {
		t.Errorf("failures = %d, want 1", got)
	}
}

func TestLoginEmitsAuditEvents(t *testing.T) {
	mr, rdb := newTestRedis(t)
	defer mr.Close()

	engine := newTestEngine(t, rdb, newMockDirectory())
	sink := NewChannelSink(16)
	engine.sink = sink
	seedTestAccount(t, engine)

	ctx := WithClientIP(context.Background(), "10.0.0.9")
	if _, err := engine.Login(ctx, "alice", "correct-horse", "", ""); err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	engine.Close() // drain the dispatcher so events are delivered

	seen := map[string]AuditEvent{}
	for len(sink.Events()) > 0 {
		ev := <-sink.Events()
		seen[ev.EventType] = ev
	}

	login, ok := seen[AuditLogin]
	if !ok {
		t.Fatal("expected a login audit event")
	}
	if !login.Success || login.Username != "alice" || login.IP != "10.0.0.9" {
		t.Fatalf("unexpected login event: %+v", login)
	}
	if _, ok := seen[AuditStatisticsUpdate]; !ok {
		t.Fatal("expected a statistics update event")
	}
}
