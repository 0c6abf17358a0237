package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/callflow/config"
	"github.com/BaSui01/callflow/internal/resilience"
)

// =============================================================================
// 🗄️ 通话记录库连接池
// =============================================================================

// ErrPoolClosed 连接池已关闭
var ErrPoolClosed = errors.New("database: pool is closed")

// Observer 接收连接池与事务指标，metrics.Collector 满足该接口
type Observer interface {
	RecordDBConnections(database string, open, idle int)
	RecordDBQuery(database, operation string, duration time.Duration)
}

// PoolConfig 连接池配置
type PoolConfig struct {
	Name                string        `yaml:"name" json:"name"`
	MaxIdleConns        int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	MaxOpenConns        int           `yaml:"max_open_conns" json:"max_open_conns"`
	ConnMaxLifetime     time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime     time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
	HealthCheckInterval time.Duration `yaml:"health_check_interval" json:"health_check_interval"`
}

// PoolConfigFrom 由全局配置生成连接池配置，库名作为指标标签
func PoolConfigFrom(cfg config.DatabaseConfig) PoolConfig {
	return PoolConfig{
		Name:                cfg.Name,
		MaxIdleConns:        cfg.MaxIdleConns,
		MaxOpenConns:        cfg.MaxOpenConns,
		ConnMaxLifetime:     cfg.ConnMaxLifetime,
		ConnMaxIdleTime:     10 * time.Minute,
		HealthCheckInterval: 30 * time.Second,
	}
}

// Validate 校验连接数
func (c PoolConfig) Validate() error {
	if c.MaxOpenConns <= 0 {
		return errors.New("max_open_conns must be positive")
	}
	if c.MaxIdleConns <= 0 || c.MaxIdleConns > c.MaxOpenConns {
		return fmt.Errorf("max_idle_conns must be in [1, %d]", c.MaxOpenConns)
	}
	return nil
}

func (c PoolConfig) apply(db *sql.DB) {
	db.SetMaxOpenConns(c.MaxOpenConns)
	db.SetMaxIdleConns(c.MaxIdleConns)
	db.SetConnMaxLifetime(c.ConnMaxLifetime)
	db.SetConnMaxIdleTime(c.ConnMaxIdleTime)
}

// PoolManager 持有 GORM 实例与底层 *sql.DB，负责探活、指标与事务重试
type PoolManager struct {
	db       *gorm.DB
	sqlDB    *sql.DB
	config   PoolConfig
	observer Observer
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
	cancel context.CancelFunc
	loop   sync.WaitGroup
}

// NewPoolManager 校验配置并接管 db，observer 可为空
func NewPoolManager(db *gorm.DB, cfg PoolConfig, observer Observer, logger *zap.Logger) (*PoolManager, error) {
	if db == nil {
		return nil, errors.New("database: gorm db is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("database: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database: underlying sql.DB: %w", err)
	}
	cfg.apply(sqlDB)

	ctx, cancel := context.WithCancel(context.Background())
	pm := &PoolManager{
		db:       db,
		sqlDB:    sqlDB,
		config:   cfg,
		observer: observer,
		logger:   logger.With(zap.String("component", "db_pool"), zap.String("database", cfg.Name)),
		cancel:   cancel,
	}
	if cfg.HealthCheckInterval > 0 {
		pm.loop.Add(1)
		go pm.probe(ctx)
	}

	pm.logger.Info("database pool ready",
		zap.Int("max_open_conns", cfg.MaxOpenConns),
		zap.Int("max_idle_conns", cfg.MaxIdleConns),
		zap.Duration("conn_max_lifetime", cfg.ConnMaxLifetime),
	)
	return pm, nil
}

// DB 返回 GORM 实例
func (pm *PoolManager) DB() *gorm.DB { return pm.db }

// Ping 探测数据库连通性
func (pm *PoolManager) Ping(ctx context.Context) error {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	if pm.closed {
		return ErrPoolClosed
	}
	return pm.sqlDB.PingContext(ctx)
}

// Close 停止探活并关闭连接，可重复调用
func (pm *PoolManager) Close() error {
	pm.mu.Lock()
	if pm.closed {
		pm.mu.Unlock()
		return nil
	}
	pm.closed = true
	pm.mu.Unlock()

	pm.cancel()
	pm.loop.Wait()
	pm.logger.Info("closing database pool")
	return pm.sqlDB.Close()
}

// probe 定时探活，成功后上报连接数
func (pm *PoolManager) probe(ctx context.Context) {
	defer pm.loop.Done()
	ticker := time.NewTicker(pm.config.HealthCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := pm.Ping(pctx)
		cancel()
		switch {
		case err == nil:
			pm.reportConnections()
		case errors.Is(err, ErrPoolClosed), ctx.Err() != nil:
			return
		default:
			pm.logger.Error("database probe failed", zap.Error(err))
		}
	}
}

func (pm *PoolManager) reportConnections() {
	if pm.observer == nil {
		return
	}
	s := pm.sqlDB.Stats()
	pm.observer.RecordDBConnections(pm.config.Name, s.OpenConnections, s.Idle)
}

// PoolStats 连接池快照
type PoolStats struct {
	MaxOpenConnections int           `json:"max_open_connections"`
	OpenConnections    int           `json:"open_connections"`
	InUse              int           `json:"in_use"`
	Idle               int           `json:"idle"`
	WaitCount          int64         `json:"wait_count"`
	WaitDuration       time.Duration `json:"wait_duration"`
}

// GetStats 返回连接池快照
func (pm *PoolManager) GetStats() PoolStats {
	s := pm.sqlDB.Stats()
	return PoolStats{
		MaxOpenConnections: s.MaxOpenConnections,
		OpenConnections:    s.OpenConnections,
		InUse:              s.InUse,
		Idle:               s.Idle,
		WaitCount:          s.WaitCount,
		WaitDuration:       s.WaitDuration,
	}
}

// =============================================================================
// 🔄 事务
// =============================================================================

// TransactionFunc 事务体
type TransactionFunc func(tx *gorm.DB) error

// WithTransaction 在单个事务中执行 fn，耗时按 "transaction" 操作上报
func (pm *PoolManager) WithTransaction(ctx context.Context, fn TransactionFunc) error {
	pm.mu.RLock()
	closed := pm.closed
	pm.mu.RUnlock()
	if closed {
		return ErrPoolClosed
	}

	start := time.Now()
	err := pm.db.WithContext(ctx).Transaction(fn)
	if pm.observer != nil {
		pm.observer.RecordDBQuery(pm.config.Name, "transaction", time.Since(start))
	}
	return err
}

// WithTransactionRetry 最多执行 attempts 次事务，只有瞬时错误才重试
func (pm *PoolManager) WithTransactionRetry(ctx context.Context, attempts int, fn TransactionFunc) error {
	if attempts < 1 {
		attempts = 1
	}
	r := resilience.NewRetryer(resilience.RetryPolicy{
		MaxRetries:   attempts - 1,
		InitialDelay: 50 * time.Millisecond,
		MaxDelay:     time.Second,
		Multiplier:   2,
		Retryable:    isTransient,
		OnRetry: func(attempt int, err error, delay time.Duration) {
			pm.logger.Warn("transaction failed, retrying",
				zap.Int("attempt", attempt),
				zap.Int("attempts", attempts),
				zap.Duration("delay", delay),
				zap.Error(err),
			)
		},
	}, pm.logger)
	return r.Do(ctx, func(ctx context.Context) error {
		return pm.WithTransaction(ctx, fn)
	})
}

// 锁冲突与序列化失败的 SQLSTATE / MySQL 错误号
var transientCodes = []string{"40001", "40p01", "55p03", "error 1205", "error 1213"}

var transientFragments = []string{
	"deadlock",
	"serialization failure",
	"lock timeout",
	"lock wait timeout",
	"database is locked",
	"connection reset",
	"connection refused",
	"broken pipe",
	"bad connection",
}

// isTransient 判断错误是否为锁冲突或断连
func isTransient(err error) bool {
	if err == nil || errors.Is(err, ErrPoolClosed) {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, set := range [][]string{transientCodes, transientFragments} {
		for _, s := range set {
			if strings.Contains(msg, s) {
				return true
			}
		}
	}
	return false
}
