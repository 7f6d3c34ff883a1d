package repository

import (
	"context"

	"z-novel-writer/internal/domain/entity"
)

// JobRepository 后台生成任务状态仓储
type JobRepository interface {
	// Save 创建或覆盖任务
	Save(ctx context.Context, job *entity.GenerationJob) error

	// GetByID 根据 ID 获取任务，不存在时返回 nil
	GetByID(ctx context.Context, id string) (*entity.GenerationJob, error)

	// ListByNovel 获取小说的任务，按创建时间倒序
	ListByNovel(ctx context.Context, novelID string, limit int) ([]*entity.GenerationJob, error)
}
