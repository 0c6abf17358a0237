package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/BaSui01/callflow/config"
)

// =============================================================================
// 🌐 HTTP 监听管理器
// =============================================================================

// ErrAlreadyListening 重复调用 Listen
var ErrAlreadyListening = errors.New("server: already listening")

// Endpoint 单个 HTTP 监听
type Endpoint struct {
	Name    string
	Addr    string
	Handler http.Handler

	ReadHeaderTimeout time.Duration
	ReadTimeout       time.Duration
	WriteTimeout      time.Duration
	IdleTimeout       time.Duration
	MaxHeaderBytes    int
}

// Hook 停机回调
type Hook func(ctx context.Context) error

// MediaEndpoint 由服务配置生成媒体服务监听。
// WebSocket 升级时会清除连接截止时间，这里的读写超时只约束普通请求。
func MediaEndpoint(cfg config.ServerConfig, handler http.Handler) Endpoint {
	return Endpoint{
		Name:              "media",
		Addr:              fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

// MetricsEndpoint 由服务配置生成指标服务监听
func MetricsEndpoint(cfg config.ServerConfig, handler http.Handler) Endpoint {
	return Endpoint{
		Name:              "metrics",
		Addr:              fmt.Sprintf(":%d", cfg.MetricsPort),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
	}
}

type managed struct {
	ep       Endpoint
	server   *http.Server
	listener net.Listener
}

// Manager 管理多个 HTTP 监听
type Manager struct {
	shutdownTimeout time.Duration
	logger          *zap.Logger

	mu        sync.Mutex
	servers   []*managed
	hooks     []Hook
	listening bool
}

// NewManager 创建监听管理器
func NewManager(shutdownTimeout time.Duration, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if shutdownTimeout <= 0 {
		shutdownTimeout = 15 * time.Second
	}
	return &Manager{
		shutdownTimeout: shutdownTimeout,
		logger:          logger.With(zap.String("component", "http_server")),
	}
}

// Add 注册监听，须在 Listen 之前调用
func (m *Manager) Add(ep Endpoint) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.servers = append(m.servers, &managed{
		ep: ep,
		server: &http.Server{
			Addr:              ep.Addr,
			Handler:           ep.Handler,
			ReadHeaderTimeout: ep.ReadHeaderTimeout,
			ReadTimeout:       ep.ReadTimeout,
			WriteTimeout:      ep.WriteTimeout,
			IdleTimeout:       ep.IdleTimeout,
			MaxHeaderBytes:    ep.MaxHeaderBytes,
		},
	})
}

// OnShutdown 注册停机回调，按注册顺序执行
func (m *Manager) OnShutdown(h Hook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = append(m.hooks, h)
}

// Listen 绑定全部监听端口，任一失败时释放已绑定的端口
func (m *Manager) Listen() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listening {
		return ErrAlreadyListening
	}
	for i, s := range m.servers {
		ln, err := net.Listen("tcp", s.ep.Addr)
		if err != nil {
			for _, prev := range m.servers[:i] {
				_ = prev.listener.Close()
				prev.listener = nil
			}
			return fmt.Errorf("listen %s on %s: %w", s.ep.Name, s.ep.Addr, err)
		}
		s.listener = ln
	}
	m.listening = true
	return nil
}

// Addr 返回某个监听实际绑定的地址，未绑定时返回空串
func (m *Manager) Addr(name string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, s := range m.servers {
		if s.ep.Name == name && s.listener != nil {
			return s.listener.Addr().String()
		}
	}
	return ""
}

// Serve 运行全部监听直到 ctx 取消或任一服务失败，随后优雅停机。
// 未调用 Listen 时会先绑定端口。
func (m *Manager) Serve(ctx context.Context) error {
	m.mu.Lock()
	listening := m.listening
	m.mu.Unlock()
	if !listening {
		if err := m.Listen(); err != nil {
			return err
		}
	}

	m.mu.Lock()
	servers := append([]*managed(nil), m.servers...)
	m.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range servers {
		s := s
		m.logger.Info("starting HTTP server",
			zap.String("name", s.ep.Name),
			zap.String("addr", s.listener.Addr().String()),
		)
		g.Go(func() error {
			if err := s.server.Serve(s.listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
				m.logger.Error("HTTP server failed", zap.String("name", s.ep.Name), zap.Error(err))
				return fmt.Errorf("%s server: %w", s.ep.Name, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return m.shutdown(servers)
	})

	err := g.Wait()
	m.logger.Info("HTTP servers stopped")
	return err
}

func (m *Manager) shutdown(servers []*managed) error {
	ctx, cancel := context.WithTimeout(context.Background(), m.shutdownTimeout)
	defer cancel()

	m.mu.Lock()
	hooks := append([]Hook(nil), m.hooks...)
	m.mu.Unlock()

	var errs []error
	for _, h := range hooks {
		if err := h(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	for _, s := range servers {
		m.logger.Info("shutting down HTTP server", zap.String("name", s.ep.Name))
		if err := s.server.Shutdown(ctx); err != nil {
			m.logger.Error("HTTP server shutdown failed", zap.String("name", s.ep.Name), zap.Error(err))
			errs = append(errs, fmt.Errorf("shutdown %s: %w", s.ep.Name, err))
		}
	}
	return errors.Join(errs...)
}
