package types

import "context"

// contextKey is used for storing values in context.Context.
type contextKey string

const (
	keyRequestID contextKey = "request_id"
	keyCallID    contextKey = "call_id"
	keyStreamSID contextKey = "stream_sid"
	keyCaller    contextKey = "caller"
)

// WithRequestID adds the HTTP request ID to context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, keyRequestID, requestID)
}

// RequestID extracts the HTTP request ID from context.
func RequestID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyRequestID).(string)
	return v, ok && v != ""
}

// WithCallID adds the session ID of a call to context.
func WithCallID(ctx context.Context, callID string) context.Context {
	return context.WithValue(ctx, keyCallID, callID)
}

// CallID extracts the call session ID from context.
func CallID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyCallID).(string)
	return v, ok && v != ""
}

// WithStreamSID adds the media stream identifier to context.
func WithStreamSID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, keyStreamSID, sid)
}

// StreamSID extracts the media stream identifier from context.
func StreamSID(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyStreamSID).(string)
	return v, ok && v != ""
}

// WithCaller adds the normalized caller number to context.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, keyCaller, caller)
}

// Caller extracts the normalized caller number from context.
func Caller(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyCaller).(string)
	return v, ok && v != ""
}
