package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/callflow/types"
)

// BreakerState 熔断器状态
type BreakerState int

const (
	BreakerClosed BreakerState = iota
	BreakerOpen
	BreakerHalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case BreakerClosed:
		return "closed"
	case BreakerOpen:
		return "open"
	case BreakerHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// 熔断错误
var (
	ErrCircuitOpen  = errors.New("resilience: circuit open")
	ErrHalfOpenBusy = errors.New("resilience: too many calls in half-open state")
)

// BreakerConfig 熔断器配置
type BreakerConfig struct {
	Name             string
	Threshold        int           // 连续失败阈值
	ResetTimeout     time.Duration // Open -> HalfOpen 等待时间
	HalfOpenMaxCalls int
	OnStateChange    func(name string, from, to BreakerState)
}

// DefaultBreakerConfig 返回默认配置
func DefaultBreakerConfig(name string) BreakerConfig {
	return BreakerConfig{
		Name:             name,
		Threshold:        5,
		ResetTimeout:     30 * time.Second,
		HalfOpenMaxCalls: 1,
	}
}

// Breaker 连续失败计数熔断器
type Breaker struct {
	cfg    BreakerConfig
	logger *zap.Logger
	now    func() time.Time

	mu           sync.Mutex
	state        BreakerState
	failures     int
	openedAt     time.Time
	halfOpenCall int
}

// NewBreaker 创建熔断器
func NewBreaker(cfg BreakerConfig, logger *zap.Logger) *Breaker {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = 5
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = 30 * time.Second
	}
	if cfg.HalfOpenMaxCalls <= 0 {
		cfg.HalfOpenMaxCalls = 1
	}
	return &Breaker{
		cfg:    cfg,
		logger: logger.With(zap.String("breaker", cfg.Name)),
		now:    time.Now,
	}
}

// Call 在熔断保护下执行 fn
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	if err := b.before(); err != nil {
		return err
	}
	err := fn(ctx)
	b.after(err == nil || isClientError(err))
	return err
}

// isClientError 客户端错误不计入熔断失败
func isClientError(err error) bool {
	switch types.GetErrorCode(err) {
	case types.ErrInvalidRequest, types.ErrNotFound, types.ErrRateLimited:
		return true
	}
	return errors.Is(err, context.Canceled)
}

func (b *Breaker) before() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case BreakerOpen:
		if b.now().Sub(b.openedAt) < b.cfg.ResetTimeout {
			return types.NewError(types.ErrServiceUnavailable, b.cfg.Name+" circuit open").WithCause(ErrCircuitOpen)
		}
		b.setState(BreakerHalfOpen)
		b.halfOpenCall = 1
		return nil
	case BreakerHalfOpen:
		if b.halfOpenCall >= b.cfg.HalfOpenMaxCalls {
			return types.NewError(types.ErrServiceUnavailable, b.cfg.Name+" circuit probing").WithCause(ErrHalfOpenBusy)
		}
		b.halfOpenCall++
		return nil
	default:
		return nil
	}
}

func (b *Breaker) after(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if success {
		if b.state == BreakerHalfOpen {
			b.logger.Info("circuit recovered")
		}
		b.failures = 0
		b.halfOpenCall = 0
		b.setState(BreakerClosed)
		return
	}

	b.failures++
	switch b.state {
	case BreakerClosed:
		if b.failures >= b.cfg.Threshold {
			b.logger.Warn("circuit opened",
				zap.Int("failures", b.failures),
				zap.Int("threshold", b.cfg.Threshold),
			)
			b.openedAt = b.now()
			b.setState(BreakerOpen)
		}
	case BreakerHalfOpen:
		b.logger.Warn("half-open probe failed, reopening circuit")
		b.openedAt = b.now()
		b.halfOpenCall = 0
		b.setState(BreakerOpen)
	}
}

func (b *Breaker) setState(to BreakerState) {
	from := b.state
	if from == to {
		return
	}
	b.state = to
	if b.cfg.OnStateChange != nil {
		b.cfg.OnStateChange(b.cfg.Name, from, to)
	}
}

// State 返回当前状态
func (b *Breaker) State() BreakerState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset 手动恢复为关闭状态
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures = 0
	b.halfOpenCall = 0
	b.setState(BreakerClosed)
}
