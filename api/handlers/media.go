package handlers

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/callflow/call"
	"github.com/BaSui01/callflow/transport"
	"github.com/BaSui01/callflow/types"
)

// CallRunner 运行一通电话，由 call.Orchestrator 实现
type CallRunner interface {
	Run(ctx context.Context, tr call.Transport, callerKey string) error
}

// MediaStreamHandler 处理 /media-stream/{caller}
type MediaStreamHandler struct {
	runner CallRunner
	opts   transport.Options
	logger *zap.Logger

	root   context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	draining bool
	wg       sync.WaitGroup
}

// NewMediaStreamHandler 创建媒体流处理器
func NewMediaStreamHandler(runner CallRunner, opts transport.Options, logger *zap.Logger) *MediaStreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	root, cancel := context.WithCancel(context.Background())
	return &MediaStreamHandler{
		runner: runner,
		opts:   opts,
		logger: logger.With(zap.String("component", "media_stream")),
		root:   root,
		cancel: cancel,
	}
}

// ServeHTTP 升级连接并阻塞运行通话。
// 升级后的连接不受 http.Server.Shutdown 管理，停机由 Drain 负责。
func (h *MediaStreamHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.track() {
		WriteError(w, r, types.NewError(types.ErrServiceUnavailable, "server is shutting down"), h.logger)
		return
	}
	defer h.wg.Done()
	caller := r.PathValue("caller")

	tr, err := transport.Accept(w, r, h.opts, h.logger)
	if err != nil {
		h.logger.Warn("media stream upgrade failed", zap.String("caller", caller), zap.Error(err))
		return
	}
	h.logger.Info("media stream connected", zap.String("caller", caller))

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(h.root, cancel)
	defer stop()

	if err := h.runner.Run(ctx, tr, caller); err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Warn("call finished with error", zap.String("caller", caller), zap.Error(err))
	}
}

func (h *MediaStreamHandler) track() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.draining {
		return false
	}
	h.wg.Add(1)
	return true
}

// Drain 拒绝新连接，取消进行中的通话并等待其结束，或直到 ctx 超时
func (h *MediaStreamHandler) Drain(ctx context.Context) error {
	h.mu.Lock()
	h.draining = true
	h.mu.Unlock()
	h.cancel()
	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
