package internaldefs

import (
	joysky "github.com/carterbrother/joysky"
)

// CounterDef binds a core counter ID to its stable exported name.
type CounterDef struct {
	ID   joysky.MetricID
	Name string
	Help string
}

// HistogramDef binds a core latency histogram ID to its stable exported name.
type HistogramDef struct {
	ID   joysky.MetricID
	Name string
	Help string
}

// CounterDefs enumerates every exported counter in export order.
var CounterDefs = []CounterDef{
	{ID: joysky.MetricLoginRequest, Name: "joysky_login_request_total", Help: "Login attempts received."},
	{ID: joysky.MetricLoginSuccess, Name: "joysky_login_success_total", Help: "Successful login attempts."},
	{ID: joysky.MetricLoginFailure, Name: "joysky_login_failure_total", Help: "Failed login attempts."},
	{ID: joysky.MetricRegisterRequest, Name: "joysky_register_request_total", Help: "Registration attempts received."},
	{ID: joysky.MetricRegisterSuccess, Name: "joysky_register_success_total", Help: "Successful registrations."},
	{ID: joysky.MetricRegisterConflict, Name: "joysky_register_conflict_total", Help: "Registrations rejected as duplicate identity."},
	{ID: joysky.MetricLogoutRequest, Name: "joysky_logout_request_total", Help: "Logout requests received."},
	{ID: joysky.MetricLogoutSuccess, Name: "joysky_logout_success_total", Help: "Acknowledged logouts."},
	{ID: joysky.MetricCacheHit, Name: "joysky_cache_hit_total", Help: "Read-cache hits across all stores."},
	{ID: joysky.MetricCacheMiss, Name: "joysky_cache_miss_total", Help: "Read-cache misses across all stores."},
	{ID: joysky.MetricResetRequest, Name: "joysky_reset_request_total", Help: "Password reset code requests."},
	{ID: joysky.MetricResetRateLimited, Name: "joysky_reset_rate_limited_total", Help: "Reset requests denied by the mail cooldown."},
	{ID: joysky.MetricResetConfirmSuccess, Name: "joysky_reset_confirm_success_total", Help: "Successful password reset confirmations."},
	{ID: joysky.MetricResetConfirmFailure, Name: "joysky_reset_confirm_failure_total", Help: "Failed password reset confirmations."},
	{ID: joysky.MetricMailFailure, Name: "joysky_mail_failure_total", Help: "Outbound mail transport failures."},
	{ID: joysky.MetricCaptchaIssued, Name: "joysky_captcha_issued_total", Help: "Captcha challenges issued."},
	{ID: joysky.MetricCaptchaFailure, Name: "joysky_captcha_failure_total", Help: "Captcha validations that failed."},
	{ID: joysky.MetricAsyncTaskFailure, Name: "joysky_async_task_failure_total", Help: "Async side-effect tasks that panicked or returned an error."},
}

// HistogramDefs enumerates every exported latency histogram in export order.
var HistogramDefs = []HistogramDef{
	{ID: joysky.MetricLoginLatency, Name: "joysky_login_latency_seconds", Help: "Login flow latency histogram."},
	{ID: joysky.MetricRegisterLatency, Name: "joysky_register_latency_seconds", Help: "Registration flow latency histogram."},
	{ID: joysky.MetricLogoutLatency, Name: "joysky_logout_latency_seconds", Help: "Logout flow latency histogram."},
}

// HistogramBounds are the upper bucket bounds, in seconds, matching the
// core histogram layout.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix mirrors HistogramBounds with characters legal in
// instrument names.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates a raw snapshot slice to the fixed
// bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets converts per-bucket counts into the cumulative form
// exporters expose.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
