package internaldefs

import (
	"github.com/MrEthical07/pairauth"
)

// CounterDef names one engine counter for every exporter.
type CounterDef struct {
	ID   pairauth.MetricID
	Name string
	Help string
}

// HistogramDef names one engine latency histogram.
type HistogramDef struct {
	ID   pairauth.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported from Engine.AuditDropped.
const AuditDroppedName = "pairauth_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: pairauth.MetricLoginSuccess, Name: "pairauth_login_success_total", Help: "Successful logins."},
	{ID: pairauth.MetricLoginFailure, Name: "pairauth_login_failure_total", Help: "Failed logins of any kind."},
	{ID: pairauth.MetricLoginInvalidCredentials, Name: "pairauth_login_invalid_credentials_total", Help: "Logins rejected for an unknown identifier or wrong password."},
	{ID: pairauth.MetricRefreshSuccess, Name: "pairauth_refresh_success_total", Help: "Successful refresh rotations."},
	{ID: pairauth.MetricRefreshFailure, Name: "pairauth_refresh_failure_total", Help: "Failed refreshes of any kind."},
	{ID: pairauth.MetricRefreshTokenRejected, Name: "pairauth_refresh_token_rejected_total", Help: "Refresh tokens rejected by the codec."},
	{ID: pairauth.MetricRefreshUnknownSubject, Name: "pairauth_refresh_unknown_subject_total", Help: "Refresh tokens whose subject no longer exists."},
	{ID: pairauth.MetricRefreshNoSession, Name: "pairauth_refresh_no_session_total", Help: "Refreshes for subjects without a live session."},
	{ID: pairauth.MetricRefreshReuseDetected, Name: "pairauth_refresh_reuse_detected_total", Help: "Refresh tokens presented after being superseded."},
	{ID: pairauth.MetricRefreshRaceLost, Name: "pairauth_refresh_race_lost_total", Help: "Refreshes that lost a concurrent rotation."},
	{ID: pairauth.MetricSessionCreated, Name: "pairauth_session_created_total", Help: "Sessions installed by login."},
	{ID: pairauth.MetricSessionReplaced, Name: "pairauth_session_replaced_total", Help: "Logins that replaced a live session."},
	{ID: pairauth.MetricSessionRevoked, Name: "pairauth_session_revoked_total", Help: "Sessions cleared by reuse detection."},
	{ID: pairauth.MetricLogout, Name: "pairauth_logout_total", Help: "Logouts that cleared a session."},
	{ID: pairauth.MetricLogoutNoSession, Name: "pairauth_logout_no_session_total", Help: "Logouts for subjects without a session."},
	{ID: pairauth.MetricAccessValidated, Name: "pairauth_access_validated_total", Help: "Access tokens accepted."},
	{ID: pairauth.MetricAccessRejected, Name: "pairauth_access_rejected_total", Help: "Access tokens rejected."},
	{ID: pairauth.MetricInternalError, Name: "pairauth_internal_error_total", Help: "Operations failed by infrastructure errors."},
}

var HistogramDefs = []HistogramDef{
	{ID: pairauth.MetricLoginLatency, Name: "pairauth_login_latency_seconds", Help: "Login latency."},
	{ID: pairauth.MetricRefreshLatency, Name: "pairauth_refresh_latency_seconds", Help: "Refresh latency."},
}

// HistogramUpperBounds are the finite bucket bounds in seconds. The eighth
// bucket is +Inf.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket in instrument names.
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

// NormalizeBuckets pads or truncates raw to eight buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
