package logger

import (
	"log/slog"
)

// Standard field keys for structured logging, shared by the Name Node and
// every Storage Node so logs from either can be correlated and queried
// with one schema.
const (
	// Tracing & correlation
	KeyTraceID = "trace_id"
	KeyNodeID  = "node_id" // "nn" or numeric SN id

	// Wire protocol
	KeyVerb      = "verb"       // READ, WRITE, CREATE, HEARTBEAT, ...
	KeyErrorCode = "error_code" // cluster ErrorCode string

	// File / sentence addressing
	KeyPath        = "path"
	KeySentenceIdx = "sentence_idx"
	KeySize        = "size"
	KeySentences   = "sentence_count"

	// Identity & session
	KeyHolder   = "holder"
	KeyUsername = "username"
	KeyClientIP = "client_ip"

	// SN registry
	KeySNID       = "sn_id"
	KeySNAddr     = "sn_address"
	KeyHeartbeats = "heartbeat_age_s"

	// Operation metadata
	KeyDurationMs = "duration_ms"
	KeyError      = "error"
)

// TraceID returns a slog.Attr for the cross-node correlation id.
func TraceID(id string) slog.Attr { return slog.String(KeyTraceID, id) }

// NodeID returns a slog.Attr identifying which node emitted the log.
func NodeID(id string) slog.Attr { return slog.String(KeyNodeID, id) }

// Verb returns a slog.Attr for the wire protocol verb.
func Verb(v string) slog.Attr { return slog.String(KeyVerb, v) }

// ErrorCode returns a slog.Attr for the cluster error code.
func ErrorCode(code string) slog.Attr { return slog.String(KeyErrorCode, code) }

// Path returns a slog.Attr for a logical file path.
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }

// SentenceIdx returns a slog.Attr for a 0-based sentence index.
func SentenceIdx(idx int) slog.Attr { return slog.Int(KeySentenceIdx, idx) }

// Size returns a slog.Attr for a file size in bytes.
func Size(n int64) slog.Attr { return slog.Int64(KeySize, n) }

// SentenceCount returns a slog.Attr for a cached sentence count.
func SentenceCount(n int) slog.Attr { return slog.Int(KeySentences, n) }

// Holder returns a slog.Attr for a lock/session holder token.
func Holder(h string) slog.Attr { return slog.String(KeyHolder, h) }

// Username returns a slog.Attr for an asserted client username.
func Username(name string) slog.Attr { return slog.String(KeyUsername, name) }

// ClientIP returns a slog.Attr for the peer address of a connection.
func ClientIP(addr string) slog.Attr { return slog.String(KeyClientIP, addr) }

// SNID returns a slog.Attr for a Storage Node numeric id.
func SNID(id int) slog.Attr { return slog.Int(KeySNID, id) }

// SNAddr returns a slog.Attr for a Storage Node address.
func SNAddr(addr string) slog.Attr { return slog.String(KeySNAddr, addr) }

// HeartbeatAge returns a slog.Attr for seconds since the last heartbeat.
func HeartbeatAge(seconds float64) slog.Attr { return slog.Float64(KeyHeartbeats, seconds) }

// DurationMs returns a slog.Attr for an operation duration in milliseconds.
func DurationMs(ms float64) slog.Attr { return slog.Float64(KeyDurationMs, ms) }

// Err returns a slog.Attr for an error value.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
