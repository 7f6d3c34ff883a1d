// Package sqlite 提供基于 SQLite 的小说快照存储
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	_ "modernc.org/sqlite"

	"z-novel-writer/internal/domain/entity"
	"z-novel-writer/internal/domain/repository"
	"z-novel-writer/internal/infrastructure/persistence/sqlite/migrations"
	apperrors "z-novel-writer/pkg/errors"
	"z-novel-writer/pkg/metrics"
)

var tracer = otel.Tracer("sqlite")

const driverLabel = "sqlite"

// Store SQLite 小说存储
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Option 存储选项
type Option func(*options)

type options struct {
	busyTimeout time.Duration
	now         func() time.Time
}

// WithBusyTimeout 设置锁等待时间
func WithBusyTimeout(d time.Duration) Option {
	return func(o *options) { o.busyTimeout = d }
}

// WithClock 替换时钟，测试用
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

var _ repository.NovelRepository = (*Store)(nil)

// Open 打开数据库并执行迁移
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	o := options{busyTimeout: 5 * time.Second, now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)",
		filepath.Clean(path), o.busyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// 单连接串行写入，避免 SQLITE_BUSY
	db.SetMaxOpenConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, db, migrations.FS); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{db: db, now: o.now}, nil
}

// Close 关闭连接
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// HealthCheck 健康检查
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Save 插入或更新快照
func (s *Store) Save(ctx context.Context, novel *entity.Novel) (*entity.NovelRecord, error) {
	ctx, span := s.start(ctx, "Save", attribute.String("novel.id", novel.ID))
	defer span.End()
	defer observe("save", time.Now())

	if strings.TrimSpace(novel.ID) == "" {
		return nil, apperrors.ErrPersistence.WithDetail("novel id is empty")
	}
	data, err := entity.EncodeSnapshot(novel)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "encode novel snapshot")
	}

	now := entity.FormatTime(s.now())
	rec := &entity.NovelRecord{}
	err = s.db.QueryRowContext(ctx, `
INSERT INTO novels (id, state_json, create_time, update_time, version)
VALUES (?, ?, ?, ?, 1)
ON CONFLICT(id) DO UPDATE SET
    state_json = excluded.state_json,
    update_time = excluded.update_time,
    version = novels.version + 1
RETURNING id, state_json, create_time, update_time, version`,
		novel.ID, string(data), now, now,
	).Scan(&rec.ID, &rec.StateJSON, &rec.CreateTime, &rec.UpdateTime, &rec.Version)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "save novel")
	}
	return rec, nil
}

// Get 按 ID 读取记录
func (s *Store) Get(ctx context.Context, id string) (*entity.NovelRecord, error) {
	ctx, span := s.start(ctx, "Get", attribute.String("novel.id", id))
	defer span.End()
	defer observe("get", time.Now())

	rec := &entity.NovelRecord{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, state_json, create_time, update_time, version FROM novels WHERE id = ?`, id,
	).Scan(&rec.ID, &rec.StateJSON, &rec.CreateTime, &rec.UpdateTime, &rec.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "get novel")
	}
	return rec, nil
}

// LoadPage 按更新时间倒序分页
func (s *Store) LoadPage(ctx context.Context, p repository.Pagination) (int64, []*entity.NovelRecord, error) {
	ctx, span := s.start(ctx, "LoadPage", attribute.Int("page", p.Page), attribute.Int("page_size", p.PageSize))
	defer span.End()
	defer observe("load_page", time.Now())

	if !p.Valid() {
		return 0, nil, apperrors.ErrInvalidParam.WithDetail("page and page_size must be positive")
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM novels`).Scan(&total); err != nil {
		span.RecordError(err)
		return 0, nil, apperrors.Wrap(err, apperrors.CodePersistence, "count novels")
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, state_json, create_time, update_time, version
FROM novels
ORDER BY update_time DESC, id DESC
LIMIT ? OFFSET ?`, p.Limit(), p.Offset())
	if err != nil {
		span.RecordError(err)
		return 0, nil, apperrors.Wrap(err, apperrors.CodePersistence, "list novels")
	}
	defer rows.Close()

	records := make([]*entity.NovelRecord, 0, p.Limit())
	for rows.Next() {
		rec := &entity.NovelRecord{}
		if err := rows.Scan(&rec.ID, &rec.StateJSON, &rec.CreateTime, &rec.UpdateTime, &rec.Version); err != nil {
			span.RecordError(err)
			return 0, nil, apperrors.Wrap(err, apperrors.CodePersistence, "scan novel")
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return 0, nil, apperrors.Wrap(err, apperrors.CodePersistence, "iterate novels")
	}
	return total, records, nil
}

// Delete 删除记录
func (s *Store) Delete(ctx context.Context, id string) error {
	ctx, span := s.start(ctx, "Delete", attribute.String("novel.id", id))
	defer span.End()
	defer observe("delete", time.Now())

	if _, err := s.db.ExecContext(ctx, `DELETE FROM novels WHERE id = ?`, id); err != nil {
		span.RecordError(err)
		return apperrors.Wrap(err, apperrors.CodePersistence, "delete novel")
	}
	return nil
}

func (s *Store) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "sqlite.NovelStore."+op, trace.WithAttributes(attrs...))
}

func observe(op string, started time.Time) {
	metrics.StoreOperationDuration.WithLabelValues(driverLabel, op).Observe(time.Since(started).Seconds())
}
