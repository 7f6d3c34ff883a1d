package messaging

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("messaging")

// Producer 消息生产者
type Producer struct {
	client *redis.Client
	maxLen int64
}

// NewProducer 创建消息生产者
func NewProducer(client *redis.Client, maxLen int64) *Producer {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &Producer{
		client: client,
		maxLen: maxLen,
	}
}

// Publish 发布消息到指定流
func (p *Producer) Publish(ctx context.Context, stream Stream, msg *Message) (string, error) {
	ctx, span := tracer.Start(ctx, "producer.Publish",
		trace.WithAttributes(
			attribute.String("stream", string(stream)),
			attribute.String("message.id", msg.ID),
			attribute.String("message.type", msg.Type),
		))
	defer span.End()

	data, err := json.Marshal(msg)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	result, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: string(stream),
		MaxLen: p.maxLen,
		Approx: true,
		Values: map[string]any{
			"data": string(data),
		},
	}).Result()
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("failed to publish message: %w", err)
	}

	span.SetAttributes(attribute.String("stream.message_id", result))
	return result, nil
}

// NovelJobMessage 小说生成任务载荷
type NovelJobMessage struct {
	JobID        string `json:"job_id"`
	NovelID      string `json:"novel_id"`
	JobType      string `json:"job_type"`
	ChapterIndex int    `json:"chapter_index,omitempty"`
	ChapterCount int    `json:"chapter_count,omitempty"`
	SectionCount int    `json:"section_count,omitempty"`
	Provider     string `json:"provider,omitempty"`
	Model        string `json:"model,omitempty"`
	RequestID    string `json:"request_id,omitempty"`
	TraceID      string `json:"trace_id,omitempty"`
}

// PublishNovelJob 发布生成任务，消息类型即任务类型
func (p *Producer) PublishNovelJob(ctx context.Context, job *NovelJobMessage) (string, error) {
	switch job.JobType {
	case MessageTypeNovelGenerate, MessageTypeChapterGenerate:
	default:
		return "", fmt.Errorf("unknown job type %q", job.JobType)
	}

	msg, err := NewMessage(job.JobID, job.JobType, job.NovelID, job)
	if err != nil {
		return "", err
	}
	if job.RequestID != "" {
		msg.SetMetadata("request_id", job.RequestID)
	}
	if job.TraceID != "" {
		msg.SetMetadata("trace_id", job.TraceID)
	}

	return p.Publish(ctx, StreamNovelGen, msg)
}
