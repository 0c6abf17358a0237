package handlers

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// 🏥 存活与就绪探针
// =============================================================================

// HealthCheck 就绪检查项
type HealthCheck interface {
	Name() string
	Check(ctx context.Context) error
}

// 探针状态
const (
	StatusHealthy   = "healthy"
	StatusUnhealthy = "unhealthy"
	StatusDraining  = "draining"
)

// HealthStatus 探针返回体
type HealthStatus struct {
	Status      string                 `json:"status"`
	Timestamp   time.Time              `json:"timestamp"`
	ActiveCalls *int                   `json:"active_calls,omitempty"`
	Checks      map[string]CheckResult `json:"checks,omitempty"`
}

// CheckResult 单项检查结果，Status 为 pass 或 fail
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Latency string `json:"latency,omitempty"`
}

// BuildInfo 版本信息
type BuildInfo struct {
	Version   string `json:"version"`
	BuildTime string `json:"build_time"`
	GitCommit string `json:"git_commit"`
}

// HealthHandler 探针处理器。
// 停机开始后就绪探针返回 503，负载均衡不再把新来电导到本实例，进行中的通话不受影响。
type HealthHandler struct {
	logger   *zap.Logger
	timeout  time.Duration
	draining atomic.Bool

	mu          sync.RWMutex
	checks      []HealthCheck
	activeCalls func() int
}

// NewHealthHandler 创建探针处理器，单次就绪检查最长 5 秒
func NewHealthHandler(logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{
		logger:  logger.With(zap.String("component", "health")),
		timeout: 5 * time.Second,
	}
}

// RegisterCheck 追加就绪检查项
func (h *HealthHandler) RegisterCheck(check HealthCheck) {
	h.mu.Lock()
	h.checks = append(h.checks, check)
	h.mu.Unlock()
}

// SetActiveCalls 设置进行中通话数的来源，结果附在两个探针的返回体里
func (h *HealthHandler) SetActiveCalls(fn func() int) {
	h.mu.Lock()
	h.activeCalls = fn
	h.mu.Unlock()
}

// StartDraining 标记实例进入停机，可作为停机回调注册
func (h *HealthHandler) StartDraining(context.Context) error {
	if !h.draining.Swap(true) {
		h.logger.Info("readiness switched to draining")
	}
	return nil
}

// Draining 是否已进入停机
func (h *HealthHandler) Draining() bool { return h.draining.Load() }

func (h *HealthHandler) snapshot() ([]HealthCheck, func() int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return append([]HealthCheck(nil), h.checks...), h.activeCalls
}

func newStatus(state string, active func() int) HealthStatus {
	st := HealthStatus{Status: state, Timestamp: time.Now().UTC()}
	if active != nil {
		n := active()
		st.ActiveCalls = &n
	}
	return st
}

// HandleHealth 存活探针，进程能响应即返回 200
func (h *HealthHandler) HandleHealth(w http.ResponseWriter, _ *http.Request) {
	_, active := h.snapshot()
	WriteJSON(w, http.StatusOK, newStatus(StatusHealthy, active))
}

// HandleReady 就绪探针，并发运行全部检查项
func (h *HealthHandler) HandleReady(w http.ResponseWriter, r *http.Request) {
	checks, active := h.snapshot()
	if h.Draining() {
		WriteJSON(w, http.StatusServiceUnavailable, newStatus(StatusDraining, active))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()
	results := h.runChecks(ctx, checks)

	st := newStatus(StatusHealthy, active)
	st.Checks = make(map[string]CheckResult, len(checks))
	code := http.StatusOK
	for i, c := range checks {
		st.Checks[c.Name()] = results[i]
		if results[i].Status == "fail" {
			st.Status = StatusUnhealthy
			code = http.StatusServiceUnavailable
		}
	}
	WriteJSON(w, code, st)
}

func (h *HealthHandler) runChecks(ctx context.Context, checks []HealthCheck) []CheckResult {
	results := make([]CheckResult, len(checks))
	var g errgroup.Group
	for i, c := range checks {
		g.Go(func() error {
			start := time.Now()
			err := c.Check(ctx)
			elapsed := time.Since(start)
			results[i] = CheckResult{Status: "pass", Latency: elapsed.String()}
			if err != nil {
				results[i].Status = "fail"
				results[i].Message = err.Error()
				h.logger.Warn("readiness check failed",
					zap.String("check", c.Name()),
					zap.Duration("latency", elapsed),
					zap.Error(err),
				)
			}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// CheckNames 已注册检查项名称，按字典序
func (h *HealthHandler) CheckNames() []string {
	checks, _ := h.snapshot()
	names := make([]string, 0, len(checks))
	for _, c := range checks {
		names = append(names, c.Name())
	}
	sort.Strings(names)
	return names
}

// HandleVersion 返回 /version 处理器
func (h *HealthHandler) HandleVersion(info BuildInfo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, r, info)
	}
}

// =============================================================================
// 🔧 依赖检查
// =============================================================================

// PingFunc 依赖连通性探测
type PingFunc func(ctx context.Context) error

type pingCheck struct {
	name string
	ping PingFunc
}

func (c pingCheck) Name() string                    { return c.name }
func (c pingCheck) Check(ctx context.Context) error { return c.ping(ctx) }

// NewPingCheck 以名称与探测函数构造检查项
func NewPingCheck(name string, ping PingFunc) HealthCheck {
	return pingCheck{name: name, ping: ping}
}

// NewDatabaseHealthCheck 通话记录库
func NewDatabaseHealthCheck(ping PingFunc) HealthCheck { return NewPingCheck("database", ping) }

// NewRedisHealthCheck 提示音缓存
func NewRedisHealthCheck(ping PingFunc) HealthCheck { return NewPingCheck("redis", ping) }
