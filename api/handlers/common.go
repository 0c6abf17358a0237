package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/callflow/types"
)

// Response 接口统一返回体
type Response struct {
	Success   bool       `json:"success"`
	Data      any        `json:"data,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
	RequestID string     `json:"request_id,omitempty"`
}

// ErrorInfo 返回给调用方的错误摘要，不含底层原因
type ErrorInfo struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable,omitempty"`
}

func envelope(r *http.Request) Response {
	resp := Response{Timestamp: time.Now().UTC()}
	if r != nil {
		resp.RequestID, _ = types.RequestID(r.Context())
	}
	return resp
}

// WriteJSON 以指定状态码写出 JSON
func WriteJSON(w http.ResponseWriter, status int, body any) {
	h := w.Header()
	h.Set("Content-Type", "application/json; charset=utf-8")
	h.Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// WriteSuccess 写出 200 与数据
func WriteSuccess(w http.ResponseWriter, r *http.Request, data any) {
	resp := envelope(r)
	resp.Success = true
	resp.Data = data
	WriteJSON(w, http.StatusOK, resp)
}

// WriteError 写出错误返回体。非 *types.Error 一律按内部错误处理，5xx 记 Error 级日志。
func WriteError(w http.ResponseWriter, r *http.Request, err error, logger *zap.Logger) {
	e, ok := types.AsError(err)
	if !ok {
		e = types.NewError(types.ErrInternalError, "internal error").WithCause(err)
	}
	status := e.Status()
	logAPIError(logger, e, status)

	resp := envelope(r)
	resp.Error = &ErrorInfo{
		Code:      string(e.Code),
		Message:   e.Message,
		Retryable: e.Retryable,
	}
	WriteJSON(w, status, resp)
}

func logAPIError(logger *zap.Logger, e *types.Error, status int) {
	if logger == nil {
		return
	}
	fields := []zap.Field{
		zap.String("code", string(e.Code)),
		zap.String("message", e.Message),
		zap.Int("status", status),
	}
	if e.Cause != nil {
		fields = append(fields, zap.Error(e.Cause))
	}
	if status >= http.StatusInternalServerError {
		logger.Error("API error", fields...)
		return
	}
	logger.Warn("API error", fields...)
}

// ResponseWriter 记录状态码与写出字节数。
// 实现 Unwrap，http.ResponseController 与 WebSocket 升级可以拿到底层连接。
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode   int
	Written      bool
	BytesWritten int64
}

// NewResponseWriter 包装 w，默认状态 200
func NewResponseWriter(w http.ResponseWriter) *ResponseWriter {
	return &ResponseWriter{ResponseWriter: w, StatusCode: http.StatusOK}
}

// WriteHeader 只接受第一次调用
func (rw *ResponseWriter) WriteHeader(code int) {
	if rw.Written {
		return
	}
	rw.StatusCode, rw.Written = code, true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if !rw.Written {
		rw.WriteHeader(http.StatusOK)
	}
	n, err := rw.ResponseWriter.Write(b)
	rw.BytesWritten += int64(n)
	return n, err
}

// Unwrap 返回被包装的 ResponseWriter
func (rw *ResponseWriter) Unwrap() http.ResponseWriter { return rw.ResponseWriter }
