package calllog

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/BaSui01/callflow/call"
	"github.com/BaSui01/callflow/internal/database"
)

func setupStore(t *testing.T, opts ...Option) *Store {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)

	// 内存库每个连接独立，固定为单连接
	pm, err := database.NewPoolManager(db, database.PoolConfig{Name: "test", MaxOpenConns: 1, MaxIdleConns: 1}, nil, zaptest.NewLogger(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = pm.Close() })

	s, err := NewStore(pm, zaptest.NewLogger(t), append([]Option{WithAutoMigrate()}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func summary(id, caller string, started time.Time) call.Summary {
	return call.Summary{
		SessionID: id,
		StreamSID: "MZ" + id,
		CallerKey: caller,
		Stage:     "profile_pending",
		StartedAt: started,
		EndedAt:   started.Add(90 * time.Second),
		EndReason: "stop",
		Turns:     4,
	}
}

func TestStore_SaveAndList(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Save(ctx, summary(fmt.Sprintf("s%d", i), "9876543210", base.Add(time.Duration(i)*time.Minute))))
	}

	recs, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "s2", recs[0].SessionID)
	assert.Equal(t, int64(90000), recs[0].DurationMS)
	assert.Equal(t, 4, recs[0].Turns)

	recs, err = s.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
}

func TestStore_SaveUpdatesExistingSession(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	sum := summary("dup", "111", time.Now().UTC())

	require.NoError(t, s.Save(ctx, sum))
	sum.Turns = 9
	sum.EndReason = "hangup"
	require.NoError(t, s.Save(ctx, sum))

	recs, err := s.List(ctx, 0)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, 9, recs[0].Turns)
	assert.Equal(t, "hangup", recs[0].EndReason)
}

func TestStore_SaveRequiresSessionID(t *testing.T) {
	s := setupStore(t)
	assert.Error(t, s.Save(context.Background(), call.Summary{}))
}

func TestStore_ByCaller(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	require.NoError(t, s.Save(ctx, summary("a", "111", now)))
	require.NoError(t, s.Save(ctx, summary("b", "222", now)))
	require.NoError(t, s.Save(ctx, summary("c", "111", now.Add(time.Second))))

	recs, err := s.ByCaller(ctx, "111", 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "c", recs[0].SessionID)

	_, err = s.ByCaller(ctx, "", 10)
	assert.Error(t, err)
}

func TestStore_RecordIsFlushedOnClose(t *testing.T) {
	s := setupStore(t, WithWorkers(1, 16))
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		s.Record(ctx, summary(fmt.Sprintf("r%d", i), "333", time.Now().UTC()))
	}
	require.NoError(t, s.Close(ctx))

	recs, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 5)
	assert.Equal(t, int64(5), s.Stats().Completed)

	// 关闭后的写入被丢弃
	s.Record(ctx, summary("late", "333", time.Now().UTC()))
	assert.Equal(t, int64(5), s.Stats().Submitted)
}

func TestRecordFrom_ClampsNegativeDuration(t *testing.T) {
	now := time.Now()
	rec := recordFrom(call.Summary{SessionID: "x", StartedAt: now, EndedAt: now.Add(-time.Second)})
	assert.Zero(t, rec.DurationMS)
}

func TestNewStore_RequiresTable(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	pm, err := database.NewPoolManager(db, database.PoolConfig{Name: "test", MaxOpenConns: 1, MaxIdleConns: 1}, nil, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pm.Close() })

	_, err = NewStore(pm, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cf_call_records")
}

func TestNewStore_RequiresDB(t *testing.T) {
	_, err := NewStore(nil, nil)
	assert.Error(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))
	assert.True(t, db.Migrator().HasTable(&CallRecord{}))
}
