package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRoute      = "route"
	KeyPath       = "path"
	KeyURL        = "url"
	KeyKind       = "kind"
	KeyOutcome    = "outcome"
	KeyStatus     = "status"
	KeyRequestID  = "request_id"
	KeySessionID  = "session_id"
	KeyGeneration = "generation"
	KeyCache      = "cache"
	KeyJob        = "job"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Route(r string) slog.Attr        { return slog.String(KeyRoute, r) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func URL(u string) slog.Attr          { return slog.String(KeyURL, u) }
func Kind(k string) slog.Attr         { return slog.String(KeyKind, k) }
func Outcome(o string) slog.Attr      { return slog.String(KeyOutcome, o) }
func Status(code int) slog.Attr       { return slog.Int(KeyStatus, code) }
func RequestID(id string) slog.Attr   { return slog.String(KeyRequestID, id) }
func SessionID(id string) slog.Attr   { return slog.String(KeySessionID, id) }
func Generation(g uint64) slog.Attr   { return slog.Uint64(KeyGeneration, g) }
func Cache(backend string) slog.Attr  { return slog.String(KeyCache, backend) }
func Job(name string) slog.Attr       { return slog.String(KeyJob, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
