// Package upstream 提供访问语音与模型后端的 HTTP 客户端，统一处理
// 鉴权头、错误映射、重试、熔断与指标。
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/callflow/internal/pool"
	"github.com/BaSui01/callflow/internal/resilience"
	"github.com/BaSui01/callflow/internal/tlsutil"
	"github.com/BaSui01/callflow/types"
)

// maxErrorBody 错误响应体最多读取的字节数
const maxErrorBody = 4 << 10

// Observer 记录上游请求指标
type Observer interface {
	RecordUpstreamRequest(provider, operation, status string, duration time.Duration)
}

// Config 上游客户端配置
type Config struct {
	Provider            string
	BaseURL             string
	Headers             map[string]string
	Timeout             time.Duration
	Attempts            int // 总尝试次数
	RetryDelay          time.Duration
	BreakerThreshold    int
	BreakerResetTimeout time.Duration
}

// Client 带重试与熔断的 HTTP 客户端
type Client struct {
	cfg      Config
	http     *http.Client
	retryer  *resilience.Retryer
	breaker  *resilience.Breaker
	observer Observer
	logger   *zap.Logger
}

// Option 配置 Client
type Option func(*Client)

// WithHTTPClient 替换底层 http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithObserver 设置指标观察者
func WithObserver(obs Observer) Option {
	return func(c *Client) { c.observer = obs }
}

// New 创建上游客户端
func New(cfg Config, logger *zap.Logger, opts ...Option) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 1
	}
	if !strings.HasSuffix(cfg.BaseURL, "/") {
		cfg.BaseURL += "/"
	}
	logger = logger.With(zap.String("component", "upstream"), zap.String("provider", cfg.Provider))

	policy := resilience.DefaultRetryPolicy()
	policy.MaxRetries = cfg.Attempts - 1
	if cfg.RetryDelay > 0 {
		policy.InitialDelay = cfg.RetryDelay
		policy.MaxDelay = 8 * cfg.RetryDelay
	}

	breakerCfg := resilience.DefaultBreakerConfig(cfg.Provider)
	breakerCfg.Threshold = cfg.BreakerThreshold
	breakerCfg.ResetTimeout = cfg.BreakerResetTimeout

	c := &Client{
		cfg:     cfg,
		http:    tlsutil.HTTPClient(cfg.Timeout),
		retryer: resilience.NewRetryer(policy, logger),
		breaker: resilience.NewBreaker(breakerCfg, logger),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Breaker 返回熔断器
func (c *Client) Breaker() *resilience.Breaker { return c.breaker }

// PostJSON 发送 JSON 请求并解析 JSON 响应
func (c *Client) PostJSON(ctx context.Context, operation, endpoint string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return types.NewError(types.ErrInvalidRequest, "encode request").WithCause(err)
	}
	return c.do(ctx, operation, endpoint, "application/json", body, out)
}

// FilePart 是 multipart 上传的文件
type FilePart struct {
	Field       string
	FileName    string
	ContentType string
	Data        []byte
}

// PostMultipart 以 multipart/form-data 上传文件
func (c *Client) PostMultipart(ctx context.Context, operation, endpoint string, fields map[string]string, file FilePart, out any) error {
	buf := pool.UploadBuffers.Get()
	defer pool.UploadBuffers.Put(buf)

	w := multipart.NewWriter(buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return types.NewError(types.ErrInvalidRequest, "write form field").WithCause(err)
		}
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.FileName))
	h.Set("Content-Type", file.ContentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return types.NewError(types.ErrInvalidRequest, "create form file").WithCause(err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return types.NewError(types.ErrInvalidRequest, "write form file").WithCause(err)
	}
	if err := w.Close(); err != nil {
		return types.NewError(types.ErrInvalidRequest, "close multipart").WithCause(err)
	}
	return c.do(ctx, operation, endpoint, w.FormDataContentType(), buf.Bytes(), out)
}

func (c *Client) do(ctx context.Context, operation, endpoint, contentType string, body []byte, out any) error {
	url := c.cfg.BaseURL + strings.TrimPrefix(endpoint, "/")
	return c.retryer.Do(ctx, func(ctx context.Context) error {
		return c.breaker.Call(ctx, func(ctx context.Context) error {
			start := time.Now()
			err := c.once(ctx, url, contentType, body, out)
			status := "success"
			if err != nil {
				status = string(types.GetErrorCode(err))
				c.logger.Warn("upstream request failed",
					zap.String("operation", operation),
					zap.Duration("duration", time.Since(start)),
					zap.Error(err),
				)
			}
			if c.observer != nil {
				c.observer.RecordUpstreamRequest(c.cfg.Provider, operation, status, time.Since(start))
			}
			return err
		})
	})
}

func (c *Client) once(ctx context.Context, url, contentType string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return types.NewError(types.ErrInvalidRequest, "build request").WithCause(err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	for k, v := range c.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return err
		}
		var netErr interface{ Timeout() bool }
		if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
			return types.NewError(types.ErrUpstreamTimeout, "request timed out").
				WithCause(err).WithRetryable(true).WithProvider(c.cfg.Provider)
		}
		return types.NewError(types.ErrUpstreamError, "request failed").
			WithCause(err).WithRetryable(true).WithProvider(c.cfg.Provider)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return MapHTTPError(resp.StatusCode, strings.TrimSpace(string(msg)), c.cfg.Provider)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return types.NewError(types.ErrUpstreamError, "decode response").
			WithCause(err).WithProvider(c.cfg.Provider)
	}
	return nil
}

// MapHTTPError 把非 2xx 状态码映射为 types.Error
func MapHTTPError(status int, msg, provider string) *types.Error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	e := types.NewError(types.ErrUpstreamError, msg).WithHTTPStatus(status).WithProvider(provider)
	switch {
	case status == http.StatusTooManyRequests:
		e.Code = types.ErrRateLimited
		e.Retryable = true
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e.Code = types.ErrUpstreamTimeout
		e.Retryable = true
	case status == http.StatusNotFound:
		e.Code = types.ErrNotFound
	case status >= 400 && status < 500:
		e.Code = types.ErrInvalidRequest
	case status >= 500:
		e.Retryable = true
	}
	return e
}
