package calllog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/BaSui01/callflow/call"
	"github.com/BaSui01/callflow/internal/database"
	"github.com/BaSui01/callflow/internal/pool"
)

// =============================================================================
// 📒 通话记录存储
// =============================================================================

const (
	defaultWorkers   = 2
	defaultQueueSize = 128
	defaultAttempts  = 3
	defaultTimeout   = 10 * time.Second
	maxListLimit     = 500
)

// Store 基于 GORM 的通话记录存储，实现 call.Recorder
type Store struct {
	db       *database.PoolManager
	workers  *pool.GoroutinePool
	attempts int
	logger   *zap.Logger
}

// Option 配置 Store
type Option func(*storeOptions)

type storeOptions struct {
	workers   int
	queueSize int
	attempts  int
	timeout   time.Duration

	autoMigrate bool
}

// WithWorkers 设置异步写入的 worker 数与队列长度
func WithWorkers(workers, queueSize int) Option {
	return func(o *storeOptions) {
		o.workers = workers
		o.queueSize = queueSize
	}
}

// WithAutoMigrate 由 GORM 自动建表，用于开发与测试；生产环境使用 internal/migration
func WithAutoMigrate() Option {
	return func(o *storeOptions) { o.autoMigrate = true }
}

// WithAttempts 设置事务最大尝试次数
func WithAttempts(n int) Option {
	return func(o *storeOptions) { o.attempts = n }
}

// Migrate 创建或更新通话记录表
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&CallRecord{}); err != nil {
		return fmt.Errorf("calllog: migrate: %w", err)
	}
	return nil
}

// NewStore 创建通话记录存储
func NewStore(db *database.PoolManager, logger *zap.Logger, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, errors.New("calllog: database pool is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := storeOptions{
		workers:   defaultWorkers,
		queueSize: defaultQueueSize,
		attempts:  defaultAttempts,
		timeout:   defaultTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.attempts < 1 {
		o.attempts = 1
	}

	if o.autoMigrate {
		if err := Migrate(db.DB()); err != nil {
			return nil, err
		}
	} else if !db.DB().Migrator().HasTable(&CallRecord{}) {
		return nil, fmt.Errorf("calllog: table %s missing, run migrations first", CallRecord{}.TableName())
	}

	s := &Store{
		db:       db,
		attempts: o.attempts,
		logger:   logger.With(zap.String("component", "calllog")),
	}
	s.workers = pool.NewGoroutinePool(pool.GoroutinePoolConfig{
		Workers:     o.workers,
		QueueSize:   o.queueSize,
		TaskTimeout: o.timeout,
		OnError: func(err error) {
			s.logger.Error("call record write failed", zap.Error(err))
		},
	})
	return s, nil
}

// Record 异步写入通话摘要，队列已满或已关闭时丢弃并记录日志
func (s *Store) Record(_ context.Context, sum call.Summary) {
	err := s.workers.Submit(func(ctx context.Context) error {
		return s.Save(ctx, sum)
	})
	if err != nil {
		s.logger.Warn("call record dropped",
			zap.String("session_id", sum.SessionID),
			zap.Error(err),
		)
	}
}

// Save 同步写入通话摘要，同一会话重复写入时更新原记录
func (s *Store) Save(ctx context.Context, sum call.Summary) error {
	if sum.SessionID == "" {
		return errors.New("calllog: session id is required")
	}
	rec := recordFrom(sum)
	return s.db.WithTransactionRetry(ctx, s.attempts, func(tx *gorm.DB) error {
		var existing CallRecord
		err := tx.Where("session_id = ?", rec.SessionID).Take(&existing).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			return tx.Create(&rec).Error
		case err != nil:
			return err
		}
		rec.ID = existing.ID
		rec.CreatedAt = existing.CreatedAt
		return tx.Save(&rec).Error
	})
}

// List 按开始时间倒序返回最近的通话记录
func (s *Store) List(ctx context.Context, limit int) ([]CallRecord, error) {
	return s.query(ctx, "", limit)
}

// ByCaller 返回某个来电号码最近的通话记录
func (s *Store) ByCaller(ctx context.Context, callerKey string, limit int) ([]CallRecord, error) {
	if callerKey == "" {
		return nil, errors.New("calllog: caller key is required")
	}
	return s.query(ctx, callerKey, limit)
}

func (s *Store) query(ctx context.Context, callerKey string, limit int) ([]CallRecord, error) {
	if limit <= 0 || limit > maxListLimit {
		limit = maxListLimit
	}
	q := s.db.DB().WithContext(ctx).Order("started_at DESC").Limit(limit)
	if callerKey != "" {
		q = q.Where("caller_key = ?", callerKey)
	}
	var out []CallRecord
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("calllog: list: %w", err)
	}
	return out, nil
}

// Stats 返回异步写入队列统计
func (s *Store) Stats() pool.GoroutinePoolStats {
	return s.workers.Stats()
}

// Close 等待排队中的记录写完，ctx 到期时放弃剩余写入
func (s *Store) Close(ctx context.Context) error {
	if err := s.workers.Close(ctx); err != nil {
		return fmt.Errorf("calllog: flush: %w", err)
	}
	return nil
}

var _ call.Recorder = (*Store)(nil)
