package types

import (
	"errors"
	"net/http"
	"strings"
)

// ErrorCode 通话引擎统一错误码
type ErrorCode string

// 请求与上游错误码
const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"
	ErrRateLimited        ErrorCode = "RATE_LIMITED"
	ErrNotFound           ErrorCode = "NOT_FOUND"
	ErrTimeout            ErrorCode = "TIMEOUT"
	ErrUpstreamTimeout    ErrorCode = "UPSTREAM_TIMEOUT"
	ErrUpstreamError      ErrorCode = "UPSTREAM_ERROR"
	ErrInternalError      ErrorCode = "INTERNAL_ERROR"
	ErrServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
)

// 通话错误码
const (
	ErrTransport         ErrorCode = "TRANSPORT_ERROR"
	ErrMalformedEvent    ErrorCode = "MALFORMED_EVENT"
	ErrDecode            ErrorCode = "DECODE_ERROR"
	ErrConditioning      ErrorCode = "CONDITIONING_ERROR"
	ErrPipeline          ErrorCode = "PIPELINE_ERROR"
	ErrAckTimeout        ErrorCode = "ACK_TIMEOUT"
	ErrInvalidTransition ErrorCode = "INVALID_TRANSITION"
	ErrSessionConflict   ErrorCode = "SESSION_CONFLICT"
)

// codeStatus 错误码对应的默认 HTTP 状态，未列出的视为 500
var codeStatus = map[ErrorCode]int{
	ErrInvalidRequest:     http.StatusBadRequest,
	ErrMalformedEvent:     http.StatusBadRequest,
	ErrNotFound:           http.StatusNotFound,
	ErrSessionConflict:    http.StatusConflict,
	ErrRateLimited:        http.StatusTooManyRequests,
	ErrTimeout:            http.StatusGatewayTimeout,
	ErrUpstreamTimeout:    http.StatusGatewayTimeout,
	ErrServiceUnavailable: http.StatusServiceUnavailable,
	ErrUpstreamError:      http.StatusBadGateway,
	ErrPipeline:           http.StatusBadGateway,
}

// HTTPStatus 返回错误码的默认 HTTP 状态
func (c ErrorCode) HTTPStatus() int {
	if s, ok := codeStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Error 带错误码的结构化错误。
// Op 记录出错的环节（如 "stt"、"tts"），Provider 记录上游后端名。
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	Op         string    `json:"op,omitempty"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// NewError 创建错误
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap 用错误码包装 cause，并继承 cause 链上已有的重试标记与后端名
func Wrap(code ErrorCode, op string, cause error) *Error {
	e := &Error{Code: code, Message: op + " failed", Op: op, Cause: cause}
	if inner, ok := AsError(cause); ok {
		e.Retryable = inner.Retryable
		e.Provider = inner.Provider
	}
	return e
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteByte('[')
	b.WriteString(string(e.Code))
	b.WriteString("] ")
	b.WriteString(e.Message)
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Cause }

// Status 返回响应状态，显式设置的优先
func (e *Error) Status() int {
	if e.HTTPStatus != 0 {
		return e.HTTPStatus
	}
	return e.Code.HTTPStatus()
}

// WithCause 设置底层错误
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus 覆盖默认 HTTP 状态
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable 标记是否可重试
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider 设置语音或模型后端名
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// AsError 取出错误链上第一个 *Error
func AsError(err error) (*Error, bool) {
	var e *Error
	ok := errors.As(err, &e)
	return e, ok
}

// IsRetryable 错误链上的 *Error 是否可重试
func IsRetryable(err error) bool {
	e, ok := AsError(err)
	return ok && e.Retryable
}

// GetErrorCode 返回错误码，普通错误返回空串
func GetErrorCode(err error) ErrorCode {
	if e, ok := AsError(err); ok {
		return e.Code
	}
	return ""
}

// IsErrorCode 错误链上是否带有指定错误码
func IsErrorCode(err error, code ErrorCode) bool {
	return GetErrorCode(err) == code
}
