package internaldefs

import (
	goAccess "github.com/MrEthical07/goAccess"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   goAccess.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   goAccess.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in output order.
var CounterDefs = []CounterDef{
	{ID: goAccess.MetricRegisterSuccess, Name: "goaccess_register_success_total", Help: "Successful registrations."},
	{ID: goAccess.MetricRegisterFailure, Name: "goaccess_register_failure_total", Help: "Rejected registrations."},
	{ID: goAccess.MetricEmailVerificationSuccess, Name: "goaccess_email_verification_success_total", Help: "Successful email verifications."},
	{ID: goAccess.MetricEmailVerificationFailure, Name: "goaccess_email_verification_failure_total", Help: "Failed email verifications."},
	{ID: goAccess.MetricLoginPasswordSuccess, Name: "goaccess_login_password_success_total", Help: "Password steps that issued a 2FA code."},
	{ID: goAccess.MetricLoginFailure, Name: "goaccess_login_failure_total", Help: "Failed password steps."},
	{ID: goAccess.MetricLoginRateLimited, Name: "goaccess_login_rate_limited_total", Help: "Password steps refused by the attempt limiter."},
	{ID: goAccess.MetricTwoFactorSuccess, Name: "goaccess_two_factor_success_total", Help: "Successful 2FA verifications."},
	{ID: goAccess.MetricTwoFactorFailure, Name: "goaccess_two_factor_failure_total", Help: "Failed 2FA verifications."},
	{ID: goAccess.MetricLogout, Name: "goaccess_logout_total", Help: "Logout operations."},
	{ID: goAccess.MetricSessionCreated, Name: "goaccess_session_created_total", Help: "Created sessions."},
	{ID: goAccess.MetricSessionInvalidated, Name: "goaccess_session_invalidated_total", Help: "Sessions closed before expiry."},
	{ID: goAccess.MetricUserBlocked, Name: "goaccess_user_blocked_total", Help: "Block operations."},
	{ID: goAccess.MetricRoleAssigned, Name: "goaccess_role_assigned_total", Help: "Role assignments."},
	{ID: goAccess.MetricRoleRevoked, Name: "goaccess_role_revoked_total", Help: "Role revocations."},
	{ID: goAccess.MetricAccessRequested, Name: "goaccess_access_requested_total", Help: "Filed JIT access requests."},
	{ID: goAccess.MetricAccessApproved, Name: "goaccess_access_approved_total", Help: "Approved JIT access requests."},
	{ID: goAccess.MetricAccessRejected, Name: "goaccess_access_rejected_total", Help: "Rejected JIT access requests."},
	{ID: goAccess.MetricAccessRevoked, Name: "goaccess_access_revoked_total", Help: "Explicitly revoked JIT grants."},
	{ID: goAccess.MetricAccessSwept, Name: "goaccess_access_swept_total", Help: "Expired JIT grants revoked by the sweeper."},
	{ID: goAccess.MetricAccessAllowed, Name: "goaccess_access_allowed_total", Help: "Allowed access decisions."},
	{ID: goAccess.MetricAccessDenied, Name: "goaccess_access_denied_total", Help: "Denied access decisions."},
	{ID: goAccess.MetricNotifyFailure, Name: "goaccess_notify_failure_total", Help: "Codes the notifier failed to deliver."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: goAccess.MetricAccessLatency, Name: "goaccess_access_decision_latency_seconds", Help: "Access decision latency histogram."},
}

// AuditDroppedName is the counter of audit events dropped under backpressure.
const AuditDroppedName = "goaccess_audit_dropped_total"

// HistogramBounds are the upper bounds, in seconds, of the engine's latency
// buckets. The last engine bucket is the +Inf overflow and has no entry.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets copies raw into a fixed array, padding with zeros.
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
