package postgres

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"z-novel-writer/internal/domain/entity"
	"z-novel-writer/internal/domain/repository"
	apperrors "z-novel-writer/pkg/errors"
	"z-novel-writer/pkg/metrics"
)

// novelRow novels 表映射
type novelRow struct {
	ID         string `gorm:"primaryKey;type:text"`
	StateJSON  string `gorm:"column:state_json;type:text;not null"`
	CreateTime string `gorm:"column:create_time;type:text;not null"`
	UpdateTime string `gorm:"column:update_time;type:text;not null;index:idx_novels_update_time,sort:desc"`
	Version    int    `gorm:"column:version;not null;default:1"`
}

func (novelRow) TableName() string { return "novels" }

func (r *novelRow) toRecord() *entity.NovelRecord {
	return &entity.NovelRecord{
		ID:         r.ID,
		StateJSON:  r.StateJSON,
		CreateTime: r.CreateTime,
		UpdateTime: r.UpdateTime,
		Version:    r.Version,
	}
}

// NovelRepository 小说仓储实现
type NovelRepository struct {
	client *Client
	now    func() time.Time
}

var _ repository.NovelRepository = (*NovelRepository)(nil)

// NewNovelRepository 创建小说仓储
func NewNovelRepository(client *Client) *NovelRepository {
	return &NovelRepository{client: client, now: time.Now}
}

// Save 单条 upsert：冲突时版本号加一，create_time 保持不变
func (r *NovelRepository) Save(ctx context.Context, novel *entity.Novel) (*entity.NovelRecord, error) {
	ctx, span := r.start(ctx, "Save", attribute.String("novel.id", novel.ID))
	defer span.End()
	defer observe("save", time.Now())

	if novel.ID == "" {
		return nil, apperrors.ErrPersistence.WithDetail("novel id is empty")
	}
	data, err := entity.EncodeSnapshot(novel)
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "encode novel snapshot")
	}

	now := entity.FormatTime(r.now())
	row := &novelRow{
		ID:         novel.ID,
		StateJSON:  string(data),
		CreateTime: now,
		UpdateTime: now,
		Version:    1,
	}
	err = upsertQuery(r.client.db.WithContext(ctx), row).Error
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "save novel")
	}
	return row.toRecord(), nil
}

// Get 根据 ID 获取记录
func (r *NovelRepository) Get(ctx context.Context, id string) (*entity.NovelRecord, error) {
	ctx, span := r.start(ctx, "Get", attribute.String("novel.id", id))
	defer span.End()
	defer observe("get", time.Now())

	var row novelRow
	err := r.client.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "get novel")
	}
	return row.toRecord(), nil
}

// LoadPage 按 update_time 倒序分页
func (r *NovelRepository) LoadPage(ctx context.Context, p repository.Pagination) (int64, []*entity.NovelRecord, error) {
	ctx, span := r.start(ctx, "LoadPage", attribute.Int("page", p.Page), attribute.Int("page_size", p.PageSize))
	defer span.End()
	defer observe("load_page", time.Now())

	if !p.Valid() {
		return 0, nil, apperrors.ErrInvalidParam.WithDetail("page and page_size must be positive")
	}

	db := r.client.db.WithContext(ctx).Model(&novelRow{})
	var total int64
	if err := db.Count(&total).Error; err != nil {
		span.RecordError(err)
		return 0, nil, apperrors.Wrap(err, apperrors.CodePersistence, "count novels")
	}

	var rows []novelRow
	err := pageQuery(r.client.db.WithContext(ctx), p, &rows).Error
	if err != nil {
		span.RecordError(err)
		return 0, nil, apperrors.Wrap(err, apperrors.CodePersistence, "list novels")
	}

	records := make([]*entity.NovelRecord, 0, len(rows))
	for i := range rows {
		records = append(records, rows[i].toRecord())
	}
	return total, records, nil
}

// Delete 删除记录
func (r *NovelRepository) Delete(ctx context.Context, id string) error {
	ctx, span := r.start(ctx, "Delete", attribute.String("novel.id", id))
	defer span.End()
	defer observe("delete", time.Now())

	if err := r.client.db.WithContext(ctx).Where("id = ?", id).Delete(&novelRow{}).Error; err != nil {
		span.RecordError(err)
		return apperrors.Wrap(err, apperrors.CodePersistence, "delete novel")
	}
	return nil
}

// HealthCheck 探测底层连接
func (r *NovelRepository) HealthCheck(ctx context.Context) error {
	return r.client.HealthCheck(ctx)
}

func (r *NovelRepository) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return tracer.Start(ctx, "postgres.NovelRepository."+op, trace.WithAttributes(attrs...))
}

func observe(op string, started time.Time) {
	metrics.StoreOperationDuration.WithLabelValues("postgres", op).Observe(time.Since(started).Seconds())
}

// upsertQuery 冲突时仅更新快照、更新时间与版本号
func upsertQuery(db *gorm.DB, row *novelRow) *gorm.DB {
	return db.Clauses(
		clause.OnConflict{
			Columns: []clause.Column{{Name: "id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"state_json":  gorm.Expr("excluded.state_json"),
				"update_time": gorm.Expr("excluded.update_time"),
				"version":     gorm.Expr("novels.version + 1"),
			}),
		},
		clause.Returning{},
	).Create(row)
}

func pageQuery(db *gorm.DB, p repository.Pagination, dest *[]novelRow) *gorm.DB {
	return db.
		Order("update_time DESC").
		Order("id DESC").
		Offset(p.Offset()).
		Limit(p.Limit()).
		Find(dest)
}
