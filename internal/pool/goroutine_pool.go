package pool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

var (
	// ErrPoolClosed 池已关闭
	ErrPoolClosed = errors.New("pool: closed")
	// ErrPoolFull 队列已满
	ErrPoolFull = errors.New("pool: queue full")
)

// Task 后台任务，ctx 在任务超时或池被强制关闭时取消
type Task func(ctx context.Context) error

// GoroutinePoolConfig 协程池配置
type GoroutinePoolConfig struct {
	Workers     int           `json:"workers"`
	QueueSize   int           `json:"queue_size"`
	TaskTimeout time.Duration `json:"task_timeout"`
	// OnError 接收任务错误与恢复的 panic
	OnError func(error) `json:"-"`
}

// DefaultGoroutinePoolConfig 返回默认配置
func DefaultGoroutinePoolConfig() GoroutinePoolConfig {
	return GoroutinePoolConfig{
		Workers:     4,
		QueueSize:   256,
		TaskTimeout: 10 * time.Second,
	}
}

// GoroutinePool 固定数量 worker 消费有界队列，Submit 不阻塞，队列满时拒绝
type GoroutinePool struct {
	cfg    GoroutinePoolConfig
	queue  chan Task
	base   context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	rejected  atomic.Int64
	active    atomic.Int32
}

// NewGoroutinePool 创建协程池并启动 worker
func NewGoroutinePool(cfg GoroutinePoolConfig) *GoroutinePool {
	cfg.Workers = max(cfg.Workers, 1)
	cfg.QueueSize = max(cfg.QueueSize, 0)

	base, cancel := context.WithCancel(context.Background())
	p := &GoroutinePool{
		cfg:    cfg,
		queue:  make(chan Task, cfg.QueueSize),
		base:   base,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	var wg sync.WaitGroup
	wg.Add(cfg.Workers)
	for range cfg.Workers {
		go func() {
			defer wg.Done()
			for task := range p.queue {
				p.execute(task)
			}
		}()
	}
	go func() {
		wg.Wait()
		cancel()
		close(p.done)
	}()
	return p
}

// Submit 非阻塞入队
func (p *GoroutinePool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- task:
		p.submitted.Add(1)
		return nil
	default:
		p.rejected.Add(1)
		return ErrPoolFull
	}
}

func (p *GoroutinePool) execute(task Task) {
	p.active.Add(1)
	defer p.active.Add(-1)

	if err := p.call(task); err != nil {
		p.failed.Add(1)
		if p.cfg.OnError != nil {
			p.cfg.OnError(err)
		}
		return
	}
	p.completed.Add(1)
}

func (p *GoroutinePool) call(task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pool: task panicked: %v", r)
		}
	}()
	ctx := p.base
	if p.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.cfg.TaskTimeout)
		defer cancel()
	}
	return task(ctx)
}

// Close 停止接收任务并等待队列清空；ctx 到期时取消剩余任务的上下文并返回 ctx.Err()。
// 可重复调用。
func (p *GoroutinePool) Close(ctx context.Context) error {
	p.mu.Lock()
	if !p.closed {
		p.closed = true
		close(p.queue)
	}
	p.mu.Unlock()

	select {
	case <-p.done:
		return nil
	case <-ctx.Done():
		p.cancel()
		return ctx.Err()
	}
}

// Stats 返回运行统计
func (p *GoroutinePool) Stats() GoroutinePoolStats {
	return GoroutinePoolStats{
		Active:    int(p.active.Load()),
		Queued:    len(p.queue),
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Rejected:  p.rejected.Load(),
	}
}

// GoroutinePoolStats 协程池统计
type GoroutinePoolStats struct {
	Active    int   `json:"active"`
	Queued    int   `json:"queued"`
	Submitted int64 `json:"submitted"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Rejected  int64 `json:"rejected"`
}
