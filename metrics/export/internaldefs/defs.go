package internaldefs

import (
	"github.com/MrEthical07/carebook"
)

// CounterDef names one carebook counter.
type CounterDef struct {
	ID   carebook.MetricID
	Name string
	Help string
}

// HistogramDef names one carebook histogram. Samples are recorded in the eight
// buckets described by [HistogramBounds].
type HistogramDef struct {
	ID   carebook.MetricID
	Name string
	Help string
}

// AuditDroppedName is the counter exported for [carebook.Portal.AuditDropped].
const AuditDroppedName = "carebook_audit_dropped_total"

var CounterDefs = []CounterDef{
	{ID: carebook.MetricPageOpened, Name: "carebook_pages_opened_total", Help: "Per-request session pages opened."},
	{ID: carebook.MetricSessionLogin, Name: "carebook_session_login_total", Help: "Successful session logins."},
	{ID: carebook.MetricSessionLogout, Name: "carebook_session_logout_total", Help: "Session logouts, explicit or forced by the API."},
	{ID: carebook.MetricSessionHydrated, Name: "carebook_session_hydrated_total", Help: "Page loads that restored an authenticated session."},
	{ID: carebook.MetricSessionCleared, Name: "carebook_session_cleared_total", Help: "Page loads that found no usable session."},
	{ID: carebook.MetricSessionPurged, Name: "carebook_session_purged_total", Help: "Page loads that purged corrupt or partial entries."},
	{ID: carebook.MetricSessionPersistFailed, Name: "carebook_session_persist_failed_total", Help: "Failed durable session writes or deletes."},
	{ID: carebook.MetricSessionStorageUnavailable, Name: "carebook_session_storage_unavailable_total", Help: "Hydrations that could not read durable storage."},
	{ID: carebook.MetricSessionRotated, Name: "carebook_session_rotated_total", Help: "Redis session ids replaced on login or logout."},
	{ID: carebook.MetricGuardAuthorized, Name: "carebook_guard_authorized_total", Help: "Protected views rendered."},
	{ID: carebook.MetricGuardPending, Name: "carebook_guard_pending_total", Help: "Guard decisions taken before hydration finished."},
	{ID: carebook.MetricGuardRedirect, Name: "carebook_guard_redirect_total", Help: "Guard redirects issued."},
	{ID: carebook.MetricGuardSuppressed, Name: "carebook_guard_suppressed_total", Help: "Guard redirects withheld for internal fetches."},
	{ID: carebook.MetricShellForward, Name: "carebook_shell_forward_total", Help: "Authenticated visits to login or register sent home."},
	{ID: carebook.MetricAPICall, Name: "carebook_api_calls_total", Help: "Finished remote API calls."},
	{ID: carebook.MetricAPIFailure, Name: "carebook_api_failures_total", Help: "Remote API calls that returned an error."},
	{ID: carebook.MetricAPIRetry, Name: "carebook_api_retries_total", Help: "Remote API attempts beyond the first."},
	{ID: carebook.MetricAPIUnauthorized, Name: "carebook_api_unauthorized_total", Help: "Remote API calls that ended the session."},
}

var HistogramDefs = []HistogramDef{
	{ID: carebook.MetricAPILatency, Name: "carebook_api_latency_seconds", Help: "Remote API call latency, retries included."},
}

// HistogramBounds are the Prometheus le labels of the eight buckets.
var HistogramBounds = []string{
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"1",
	"2.5",
	"5",
	"+Inf",
}

// HistogramUpperBounds are the finite upper bounds, in seconds, of the first seven buckets.
var HistogramUpperBounds = []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5}

// HistogramBoundSuffix is used where a bound must appear inside an instrument name.
var HistogramBoundSuffix = []string{
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"1",
	"2_5",
	"5",
	"inf",
}

// NormalizeBuckets copies raw into a fixed-size array, padding or truncating to eight.
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
