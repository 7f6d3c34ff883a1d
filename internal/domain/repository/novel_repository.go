package repository

import (
	"context"

	"z-novel-writer/internal/domain/entity"
)

// NovelRepository 小说快照仓储
//
// 所有实现需满足：首次保存 version=1，之后每次保存 version+1 且 create_time 不变；
// 列表按 update_time 倒序。
type NovelRepository interface {
	// Save 插入或更新快照，返回落库后的记录
	Save(ctx context.Context, novel *entity.Novel) (*entity.NovelRecord, error)

	// Get 按 ID 获取记录，不存在时返回 nil, nil
	Get(ctx context.Context, id string) (*entity.NovelRecord, error)

	// LoadPage 分页读取，返回总数与当前页记录
	LoadPage(ctx context.Context, pagination Pagination) (int64, []*entity.NovelRecord, error)

	// Delete 删除记录，不存在时不报错
	Delete(ctx context.Context, id string) error
}
