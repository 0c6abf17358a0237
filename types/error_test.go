package types

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_Format(t *testing.T) {
	plain := NewError(ErrAckTimeout, "mark not received")
	assert.Equal(t, "[ACK_TIMEOUT] mark not received", plain.Error())

	caused := NewError(ErrUpstreamError, "speech backend failed").WithCause(errors.New("root"))
	assert.Equal(t, "[UPSTREAM_ERROR] speech backend failed: root", caused.Error())
}

func TestError_LookupThroughWrapping(t *testing.T) {
	root := errors.New("connection reset")
	inner := NewError(ErrUpstreamError, "tts").WithCause(root).WithRetryable(true).WithProvider("sarvam")
	wrapped := fmt.Errorf("outbound loop: %w", inner)

	assert.True(t, IsErrorCode(wrapped, ErrUpstreamError))
	assert.True(t, IsRetryable(wrapped))
	assert.ErrorIs(t, wrapped, root)

	e, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, "sarvam", e.Provider)

	assert.Empty(t, GetErrorCode(errors.New("plain")))
	assert.False(t, IsRetryable(errors.New("plain")))
	_, ok = AsError(nil)
	assert.False(t, ok)
}

func TestWrap_InheritsUpstreamFlags(t *testing.T) {
	upstream := NewError(ErrRateLimited, "429").WithRetryable(true).WithProvider("sarvam")

	e := Wrap(ErrPipeline, "stt", upstream)
	assert.Equal(t, ErrPipeline, e.Code)
	assert.Equal(t, "stt", e.Op)
	assert.Equal(t, "stt failed", e.Message)
	assert.True(t, e.Retryable)
	assert.Equal(t, "sarvam", e.Provider)
	assert.ErrorIs(t, e, upstream)

	bare := Wrap(ErrDecode, "decode", errors.New("bad base64"))
	assert.False(t, bare.Retryable)
	assert.Empty(t, bare.Provider)
}

func TestError_Status(t *testing.T) {
	cases := map[ErrorCode]int{
		ErrInvalidRequest:     http.StatusBadRequest,
		ErrNotFound:           http.StatusNotFound,
		ErrSessionConflict:    http.StatusConflict,
		ErrRateLimited:        http.StatusTooManyRequests,
		ErrUpstreamTimeout:    http.StatusGatewayTimeout,
		ErrServiceUnavailable: http.StatusServiceUnavailable,
		ErrPipeline:           http.StatusBadGateway,
		ErrTransport:          http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, NewError(code, "x").Status(), code)
	}

	override := NewError(ErrPipeline, "x").WithHTTPStatus(http.StatusTeapot)
	assert.Equal(t, http.StatusTeapot, override.Status())
}
