package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context
var logContextKey = contextKey{}

// LogContext holds request-scoped logging context threaded through a single
// control or data connection, from accept to response.
type LogContext struct {
	TraceID     string    // correlates a client request across NN and SN logs
	NodeID      string    // "nn" or the numeric SN id handling the request
	Verb        string    // wire verb: READ, WRITE, CREATE, HEARTBEAT, ...
	Path        string    // logical path the operation targets
	SentenceIdx int       // sentence index, -1 when not applicable
	Holder      string    // session holder token (a uuid string)
	ClientIP    string    // peer address of the connection
	StartTime   time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for a freshly accepted connection.
func NewLogContext(clientIP string) *LogContext {
	return &LogContext{
		ClientIP:    clientIP,
		SentenceIdx: -1,
		StartTime:   time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithVerb returns a copy with the verb set
func (lc *LogContext) WithVerb(verb string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Verb = verb
	}
	return clone
}

// WithPath returns a copy with the logical path set
func (lc *LogContext) WithPath(path string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Path = path
	}
	return clone
}

// WithSentence returns a copy with the sentence index set
func (lc *LogContext) WithSentence(idx int) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.SentenceIdx = idx
	}
	return clone
}

// WithHolder returns a copy with the holder token set
func (lc *LogContext) WithHolder(holder string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Holder = holder
	}
	return clone
}

// WithNode returns a copy with the serving node id set
func (lc *LogContext) WithNode(nodeID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.NodeID = nodeID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
