package migration

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/BaSui01/callflow/config"
	appdb "github.com/BaSui01/callflow/internal/database"
)

//go:embed migrations
var migrationsFS embed.FS

// DefaultTable 迁移版本表名
const DefaultTable = "cf_schema_migrations"

// Dialect 数据库方言
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectMySQL    Dialect = "mysql"
	DialectSQLite   Dialect = "sqlite"
)

// ParseDialect 解析驱动名
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(s) {
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	case "mysql", "mariadb":
		return DialectMySQL, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("unsupported database dialect: %q", s)
	}
}

// MigrationStatus 单个迁移的状态
type MigrationStatus struct {
	Version uint
	Name    string
	Applied bool
	Dirty   bool
}

// MigrationInfo 迁移摘要
type MigrationInfo struct {
	CurrentVersion    uint
	Dirty             bool
	TotalMigrations   int
	AppliedMigrations int
	PendingMigrations int
}

// Option 配置迁移器
type Option func(*options)

type options struct {
	table       string
	lockTimeout time.Duration
	logger      *zap.Logger
}

// WithTable 设置版本表名
func WithTable(name string) Option {
	return func(o *options) { o.table = name }
}

// WithLockTimeout 设置迁移锁等待时间
func WithLockTimeout(d time.Duration) Option {
	return func(o *options) { o.lockTimeout = d }
}

// WithLogger 设置日志
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Migrator 在一个 *sql.DB 上执行内嵌迁移
type Migrator struct {
	dialect Dialect
	migrate *migrate.Migrate
	logger  *zap.Logger
}

// New 在已打开的连接上创建迁移器。Close 会关闭 db。
func New(db *sql.DB, dialect Dialect, opts ...Option) (*Migrator, error) {
	if db == nil {
		return nil, errors.New("migration: db is required")
	}
	o := options{table: DefaultTable, lockTimeout: 15 * time.Second, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	driver, err := databaseDriver(db, dialect, o.table)
	if err != nil {
		return nil, fmt.Errorf("migration: database driver: %w", err)
	}
	src, err := iofs.New(migrationsFS, sourceDir(dialect))
	if err != nil {
		return nil, fmt.Errorf("migration: source: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, string(dialect), driver)
	if err != nil {
		return nil, fmt.Errorf("migration: init: %w", err)
	}
	m.LockTimeout = o.lockTimeout
	m.Log = zapLogger{o.logger}

	return &Migrator{
		dialect: dialect,
		migrate: m,
		logger:  o.logger.With(zap.String("component", "migration"), zap.String("dialect", string(dialect))),
	}, nil
}

// Open 按配置打开独立连接并创建迁移器
func Open(cfg config.DatabaseConfig, logger *zap.Logger, opts ...Option) (*Migrator, error) {
	dialect, err := ParseDialect(cfg.Driver)
	if err != nil {
		return nil, err
	}
	gdb, err := appdb.Open(cfg, logger)
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("migration: %w", err)
	}
	m, err := New(sqlDB, dialect, append([]Option{WithLogger(logger)}, opts...)...)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return m, nil
}

// sqlite3 驱动只使用传入的 *sql.DB，不依赖 cgo 驱动名
func databaseDriver(db *sql.DB, dialect Dialect, table string) (database.Driver, error) {
	switch dialect {
	case DialectPostgres:
		return postgres.WithInstance(db, &postgres.Config{MigrationsTable: table})
	case DialectMySQL:
		return mysql.WithInstance(db, &mysql.Config{MigrationsTable: table})
	case DialectSQLite:
		return sqlite3.WithInstance(db, &sqlite3.Config{MigrationsTable: table})
	default:
		return nil, fmt.Errorf("unsupported database dialect: %q", dialect)
	}
}

func sourceDir(dialect Dialect) string {
	return path.Join("migrations", string(dialect))
}

// Up 应用全部待执行迁移
func (m *Migrator) Up(_ context.Context) error {
	if err := m.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// Down 回滚最后一个迁移
func (m *Migrator) Down(_ context.Context) error {
	if err := m.migrate.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down failed: %w", err)
	}
	return nil
}

// DownAll 回滚全部迁移
func (m *Migrator) DownAll(_ context.Context) error {
	if err := m.migrate.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration down all failed: %w", err)
	}
	return nil
}

// Steps 正数前进 n 步，负数回滚 n 步
func (m *Migrator) Steps(_ context.Context, n int) error {
	if err := m.migrate.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration steps failed: %w", err)
	}
	return nil
}

// Goto 迁移到指定版本
func (m *Migrator) Goto(_ context.Context, version uint) error {
	if err := m.migrate.Migrate(version); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration goto failed: %w", err)
	}
	return nil
}

// Force 只设置版本号并清除 dirty 标记
func (m *Migrator) Force(_ context.Context, version int) error {
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("migration force failed: %w", err)
	}
	return nil
}

// Version 返回当前版本，未执行过迁移时为 0
func (m *Migrator) Version(_ context.Context) (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get version: %w", err)
	}
	return version, dirty, nil
}

// Status 返回全部内嵌迁移的状态
func (m *Migrator) Status(ctx context.Context) ([]MigrationStatus, error) {
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	files, err := available(m.dialect)
	if err != nil {
		return nil, err
	}
	out := make([]MigrationStatus, 0, len(files))
	for _, f := range files {
		out = append(out, MigrationStatus{
			Version: f.version,
			Name:    f.name,
			Applied: f.version <= current,
			Dirty:   dirty && f.version == current,
		})
	}
	return out, nil
}

// Info 返回迁移摘要
func (m *Migrator) Info(ctx context.Context) (*MigrationInfo, error) {
	statuses, err := m.Status(ctx)
	if err != nil {
		return nil, err
	}
	current, dirty, err := m.Version(ctx)
	if err != nil {
		return nil, err
	}
	info := &MigrationInfo{CurrentVersion: current, Dirty: dirty, TotalMigrations: len(statuses)}
	for _, s := range statuses {
		if s.Applied {
			info.AppliedMigrations++
		}
	}
	info.PendingMigrations = info.TotalMigrations - info.AppliedMigrations
	return info, nil
}

// Close 释放迁移源与数据库连接
func (m *Migrator) Close() error {
	srcErr, dbErr := m.migrate.Close()
	return errors.Join(srcErr, dbErr)
}

type migrationFile struct {
	version uint
	name    string
}

// available 从内嵌目录解析 {version}_{name}.up.sql
func available(dialect Dialect) ([]migrationFile, error) {
	entries, err := fs.ReadDir(migrationsFS, sourceDir(dialect))
	if err != nil {
		return nil, fmt.Errorf("read migrations: %w", err)
	}
	var files []migrationFile
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".up.sql") {
			continue
		}
		ver, rest, ok := strings.Cut(name, "_")
		if !ok {
			continue
		}
		v, err := strconv.ParseUint(ver, 10, 32)
		if err != nil {
			continue
		}
		files = append(files, migrationFile{version: uint(v), name: strings.TrimSuffix(rest, ".up.sql")})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].version < files[j].version })
	return files, nil
}

// zapLogger 适配 migrate.Logger
type zapLogger struct{ l *zap.Logger }

func (z zapLogger) Printf(format string, v ...any) {
	z.l.Debug(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (z zapLogger) Verbose() bool { return false }
