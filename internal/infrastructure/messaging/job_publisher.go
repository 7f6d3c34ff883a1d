package messaging

import (
	"context"

	"go.opentelemetry.io/otel/trace"

	"z-novel-writer/internal/domain/entity"
	"z-novel-writer/pkg/logger"
)

// JobPublisher 把生成任务投递到 Redis Stream
type JobPublisher struct {
	producer *Producer
}

// NewJobPublisher 创建任务投递器
func NewJobPublisher(producer *Producer) *JobPublisher {
	return &JobPublisher{producer: producer}
}

// PublishJob 投递任务，请求 ID 与 trace ID 随消息元数据传递
func (p *JobPublisher) PublishJob(ctx context.Context, job *entity.GenerationJob) error {
	msg := &NovelJobMessage{
		JobID:        job.ID,
		NovelID:      job.NovelID,
		JobType:      string(job.JobType),
		ChapterIndex: job.ChapterIndex,
		ChapterCount: job.ChapterCount,
		SectionCount: job.SectionCount,
		Provider:     job.Provider,
		Model:        job.Model,
	}
	if rid, ok := ctx.Value(logger.RequestIDKey).(string); ok {
		msg.RequestID = rid
	}
	if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
		msg.TraceID = sc.TraceID().String()
	}

	id, err := p.producer.PublishNovelJob(ctx, msg)
	if err != nil {
		return err
	}
	logger.Debug(ctx, "job published", "job_id", job.ID, "stream_id", id)
	return nil
}
