package internaldefs

import (
	goReset "github.com/MrEthical07/goReset"
)

// CounterDef binds an engine counter to its exported name.
type CounterDef struct {
	ID   goReset.MetricID
	Name string
	Help string
}

// HistogramDef binds an engine histogram to its exported name.
type HistogramDef struct {
	ID   goReset.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: goReset.MetricResetRequest, Name: "goreset_password_reset_request_total", Help: "Password reset requests, including rate-limited and unknown identifiers."},
	{ID: goReset.MetricResetIssued, Name: "goreset_password_reset_issued_total", Help: "Reset codes issued for known identifiers."},
	{ID: goReset.MetricResetUnknown, Name: "goreset_password_reset_unknown_total", Help: "Reset requests for identifiers without a credential."},
	{ID: goReset.MetricResetRateLimited, Name: "goreset_password_reset_rate_limited_total", Help: "Reset requests denied by the limiter."},
	{ID: goReset.MetricResetValidateSuccess, Name: "goreset_password_reset_validate_success_total", Help: "Reset codes that validated."},
	{ID: goReset.MetricResetValidateFailure, Name: "goreset_password_reset_validate_failure_total", Help: "Reset codes that failed validation."},
	{ID: goReset.MetricResetFinalizeSuccess, Name: "goreset_password_reset_finalize_success_total", Help: "Completed password resets."},
	{ID: goReset.MetricResetFinalizeFailure, Name: "goreset_password_reset_finalize_failure_total", Help: "Rejected password reset finalizations."},
	{ID: goReset.MetricDeliverySuccess, Name: "goreset_delivery_success_total", Help: "Reset codes accepted by the delivery adapter."},
	{ID: goReset.MetricDeliveryFailure, Name: "goreset_delivery_failure_total", Help: "Delivery adapter errors and timeouts."},
	{ID: goReset.MetricDeliveryDropped, Name: "goreset_delivery_dropped_total", Help: "Deliveries rejected by a full or closed queue."},
	{ID: goReset.MetricRegisterSuccess, Name: "goreset_register_success_total", Help: "Created credentials."},
	{ID: goReset.MetricRegisterDuplicate, Name: "goreset_register_duplicate_total", Help: "Registrations rejected as duplicate."},
	{ID: goReset.MetricRegisterRateLimited, Name: "goreset_register_rate_limited_total", Help: "Rate-limited registrations."},
	{ID: goReset.MetricLoginSuccess, Name: "goreset_login_success_total", Help: "Successful logins."},
	{ID: goReset.MetricLoginFailure, Name: "goreset_login_failure_total", Help: "Failed logins."},
	{ID: goReset.MetricLoginLocked, Name: "goreset_login_locked_total", Help: "Logins rejected by the lockout."},
}

var HistogramDefs = []HistogramDef{
	{ID: goReset.MetricResetLatency, Name: "goreset_password_reset_latency_seconds", Help: "Password reset work time before the response floor."},
}

const (
	AuditDroppedName = "goreset_audit_dropped_total"
	AuditDroppedHelp = "Audit events dropped due to dispatcher backpressure."

	DeliveryQueueDroppedName = "goreset_delivery_queue_dropped_total"
	DeliveryQueueDroppedHelp = "Reset codes dropped by the delivery queue since start."
)

// HistogramUpperBounds are the finite bucket bounds in seconds. The last
// engine bucket is +Inf and has no entry here.
var HistogramUpperBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// NormalizeBuckets pads or truncates raw to the eight engine buckets.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
