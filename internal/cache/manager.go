package cache

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/BaSui01/callflow/internal/tlsutil"
)

// =============================================================================
// 💾 Redis 共享缓存
// =============================================================================

// 缓存错误
var (
	ErrCacheMiss = errors.New("cache: miss")
	ErrClosed    = errors.New("cache: closed")
)

// IsCacheMiss 是否为未命中
func IsCacheMiss(err error) bool { return errors.Is(err, ErrCacheMiss) }

// Observer 记录命中率，metrics.Collector 满足该接口
type Observer interface {
	RecordCacheHit(cacheType string)
	RecordCacheMiss(cacheType string)
}

const cacheType = "redis"

// Config Redis 连接与键空间设置
type Config struct {
	Addr         string        `yaml:"addr" json:"addr"`
	Password     string        `yaml:"password" json:"password"`
	DB           int           `yaml:"db" json:"db"`
	KeyPrefix    string        `yaml:"key_prefix" json:"key_prefix"`
	DefaultTTL   time.Duration `yaml:"default_ttl" json:"default_ttl"`
	MaxRetries   int           `yaml:"max_retries" json:"max_retries"`
	PoolSize     int           `yaml:"pool_size" json:"pool_size"`
	MinIdleConns int           `yaml:"min_idle_conns" json:"min_idle_conns"`
	DialTimeout  time.Duration `yaml:"dial_timeout" json:"dial_timeout"`
	TLS          bool          `yaml:"tls" json:"tls"`
	// HealthCheckInterval 为 0 时不做后台探活
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`
}

// DefaultConfig 默认配置，提示音保留 24 小时
func DefaultConfig() Config {
	return Config{
		Addr:                "localhost:6379",
		KeyPrefix:           "callflow:",
		DefaultTTL:          24 * time.Hour,
		MaxRetries:          3,
		PoolSize:            10,
		MinIdleConns:        2,
		DialTimeout:         5 * time.Second,
		HealthCheckInterval: 30 * time.Second,
	}
}

func (c Config) redisOptions() *redis.Options {
	opts := &redis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		MaxRetries:   c.MaxRetries,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		DialTimeout:  c.DialTimeout,
	}
	if c.TLS {
		host, _, err := net.SplitHostPort(c.Addr)
		if err != nil {
			host = c.Addr
		}
		opts.TLSConfig = tlsutil.ClientConfig(host)
	}
	return opts
}

// Manager 带键前缀与默认 TTL 的 Redis 缓存，跨实例共享合成好的提示音
type Manager struct {
	client   *redis.Client
	config   Config
	logger   *zap.Logger
	observer atomic.Pointer[Observer]
	closed   atomic.Bool

	cancel context.CancelFunc
	loop   sync.WaitGroup
}

// NewManager 连接 Redis，首次 PING 失败时返回错误
func NewManager(cfg Config, logger *zap.Logger) (*Manager, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(cfg.redisOptions())

	pingCtx, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping %s: %w", cfg.Addr, err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	m := &Manager{
		client: client,
		config: cfg,
		logger: logger.With(zap.String("component", "cache")),
		cancel: cancel,
	}
	if cfg.HealthCheckInterval > 0 {
		m.loop.Add(1)
		go m.probe(ctx)
	}

	m.logger.Info("redis cache connected",
		zap.String("addr", cfg.Addr),
		zap.Int("pool_size", cfg.PoolSize),
		zap.Bool("tls", cfg.TLS),
	)
	return m, nil
}

// SetObserver 设置命中率观察者
func (m *Manager) SetObserver(obs Observer) {
	if obs == nil {
		m.observer.Store(nil)
		return
	}
	m.observer.Store(&obs)
}

func (m *Manager) record(hit bool) {
	p := m.observer.Load()
	if p == nil {
		return
	}
	if hit {
		(*p).RecordCacheHit(cacheType)
	} else {
		(*p).RecordCacheMiss(cacheType)
	}
}

func (m *Manager) key(k string) string { return m.config.KeyPrefix + k }

// Get 读取键值，不存在时返回 ErrCacheMiss
func (m *Manager) Get(ctx context.Context, key string) ([]byte, error) {
	if m.closed.Load() {
		return nil, ErrClosed
	}
	val, err := m.client.Get(ctx, m.key(key)).Bytes()
	switch {
	case errors.Is(err, redis.Nil):
		m.record(false)
		return nil, ErrCacheMiss
	case err != nil:
		m.logger.Error("cache get failed", zap.String("key", key), zap.Error(err))
		return nil, fmt.Errorf("cache: get %s: %w", key, err)
	}
	m.record(true)
	return val, nil
}

// Set 写入键值，ttl 为 0 时使用默认 TTL
func (m *Manager) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if ttl == 0 {
		ttl = m.config.DefaultTTL
	}
	if err := m.client.Set(ctx, m.key(key), value, ttl).Err(); err != nil {
		m.logger.Error("cache set failed", zap.String("key", key), zap.Error(err))
		return fmt.Errorf("cache: set %s: %w", key, err)
	}
	return nil
}

// Delete 删除键，空参数直接返回
func (m *Manager) Delete(ctx context.Context, keys ...string) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, 0, len(keys))
	for _, k := range keys {
		full = append(full, m.key(k))
	}
	if err := m.client.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("cache: delete: %w", err)
	}
	return nil
}

// Ping 探测 Redis 连通性
func (m *Manager) Ping(ctx context.Context) error {
	if m.closed.Load() {
		return ErrClosed
	}
	return m.client.Ping(ctx).Err()
}

// Close 停止探活并断开连接，可重复调用
func (m *Manager) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	m.cancel()
	m.loop.Wait()
	m.logger.Info("closing redis cache")
	return m.client.Close()
}

func (m *Manager) probe(ctx context.Context) {
	defer m.loop.Done()
	ticker := time.NewTicker(m.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := m.Ping(pctx)
		cancel()
		if err != nil && !errors.Is(err, ErrClosed) && ctx.Err() == nil {
			m.logger.Error("redis probe failed", zap.Error(err))
		}
	}
}

// Stats 连接池统计
type Stats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
}

// GetStats 返回 go-redis 连接池统计，Hits/Misses 指连接复用而非键命中
func (m *Manager) GetStats() Stats {
	ps := m.client.PoolStats()
	return Stats{
		Hits:       ps.Hits,
		Misses:     ps.Misses,
		Timeouts:   ps.Timeouts,
		TotalConns: ps.TotalConns,
		IdleConns:  ps.IdleConns,
	}
}
