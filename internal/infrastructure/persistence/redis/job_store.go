package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/attribute"

	"z-novel-writer/internal/domain/entity"
	"z-novel-writer/internal/domain/repository"
)

const (
	jobKeyPrefix      = "job:"
	novelJobsPrefix   = "novel:jobs:"
	defaultJobTTL     = 7 * 24 * time.Hour
	defaultJobListMax = 20
)

// JobStore 任务状态存储，任务以 JSON 保存并按小说建立时间索引
type JobStore struct {
	client *Client
	ttl    time.Duration
}

var _ repository.JobRepository = (*JobStore)(nil)

// NewJobStore 创建任务状态存储
func NewJobStore(client *Client, ttl time.Duration) *JobStore {
	if ttl <= 0 {
		ttl = defaultJobTTL
	}
	return &JobStore{client: client, ttl: ttl}
}

// Save 创建或覆盖任务
func (s *JobStore) Save(ctx context.Context, job *entity.GenerationJob) error {
	ctx, span := tracer.Start(ctx, "jobstore.Save")
	span.SetAttributes(
		attribute.String("job.id", job.ID),
		attribute.String("job.status", string(job.Status)),
	)
	defer span.End()

	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("failed to marshal job: %w", err)
	}

	indexKey := novelJobsPrefix + job.NovelID
	pipe := s.client.rdb.TxPipeline()
	pipe.Set(ctx, jobKeyPrefix+job.ID, data, s.ttl)
	pipe.ZAdd(ctx, indexKey, redis.Z{Score: float64(job.CreatedAt.UnixMilli()), Member: job.ID})
	pipe.Expire(ctx, indexKey, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		span.RecordError(err)
		return fmt.Errorf("failed to save job: %w", err)
	}
	return nil
}

// GetByID 根据 ID 获取任务
func (s *JobStore) GetByID(ctx context.Context, id string) (*entity.GenerationJob, error) {
	ctx, span := tracer.Start(ctx, "jobstore.GetByID")
	span.SetAttributes(attribute.String("job.id", id))
	defer span.End()

	data, err := s.client.rdb.Get(ctx, jobKeyPrefix+id).Bytes()
	if IsNil(err) {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to get job: %w", err)
	}
	var job entity.GenerationJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("failed to unmarshal job: %w", err)
	}
	return &job, nil
}

// ListByNovel 获取小说的任务，按创建时间倒序；已过期的任务跳过
func (s *JobStore) ListByNovel(ctx context.Context, novelID string, limit int) ([]*entity.GenerationJob, error) {
	ctx, span := tracer.Start(ctx, "jobstore.ListByNovel")
	span.SetAttributes(attribute.String("novel.id", novelID))
	defer span.End()

	if limit <= 0 {
		limit = defaultJobListMax
	}
	ids, err := s.client.rdb.ZRevRange(ctx, novelJobsPrefix+novelID, 0, int64(limit-1)).Result()
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	jobs := make([]*entity.GenerationJob, 0, len(ids))
	for _, id := range ids {
		job, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if job != nil {
			jobs = append(jobs, job)
		}
	}
	return jobs, nil
}
