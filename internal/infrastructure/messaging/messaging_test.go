package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-writer/internal/domain/entity"
	"z-novel-writer/pkg/logger"
)

func newTestRedis(t *testing.T) *redis.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

func newTestConsumer(t *testing.T, rdb *redis.Client, retryLimit int) *Consumer {
	t.Helper()
	c := NewConsumer(rdb, ConsumerConfig{
		Stream:       StreamNovelGen,
		Group:        ConsumerGroupGenWorker,
		ConsumerName: "worker-1",
		BlockTimeout: 50 * time.Millisecond,
		RetryLimit:   retryLimit,
	})
	require.NoError(t, c.EnsureGroup(context.Background()))
	require.NoError(t, c.EnsureGroup(context.Background()))
	return c
}

func TestBackoffConfig_CalculateBackoff(t *testing.T) {
	t.Parallel()

	cfg := BackoffConfig{Initial: time.Second, Max: 5 * time.Second, Multiplier: 2}
	cases := map[int]time.Duration{0: time.Second, 1: 2 * time.Second, 2: 4 * time.Second, 3: 5 * time.Second, 10: 5 * time.Second}
	for retry, want := range cases {
		if got := cfg.CalculateBackoff(retry); got != want {
			t.Fatalf("CalculateBackoff(%d) = %v, want %v", retry, got, want)
		}
	}
}

func TestProducer_PublishNovelJob(t *testing.T) {
	t.Parallel()
	rdb := newTestRedis(t)
	p := NewProducer(rdb, 0)
	ctx := context.Background()

	_, err := p.PublishNovelJob(ctx, &NovelJobMessage{JobID: "j1", NovelID: "n1", JobType: "summary"})
	require.Error(t, err)

	id, err := p.PublishNovelJob(ctx, &NovelJobMessage{
		JobID: "j1", NovelID: "n1", JobType: MessageTypeChapterGenerate,
		ChapterIndex: 2, SectionCount: 4, RequestID: "req-1",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	entries, err := rdb.XRange(ctx, string(StreamNovelGen), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["data"].(string)), &msg))
	assert.Equal(t, MessageTypeChapterGenerate, msg.Type)
	assert.Equal(t, "n1", msg.NovelID)
	assert.Equal(t, "req-1", msg.GetMetadata("request_id"))

	var job NovelJobMessage
	require.NoError(t, msg.UnmarshalPayload(&job))
	assert.Equal(t, 2, job.ChapterIndex)
	assert.Equal(t, 4, job.SectionCount)
}

func TestConsumer_PollDispatchesAndAcks(t *testing.T) {
	t.Parallel()
	rdb := newTestRedis(t)
	ctx := context.Background()
	c := newTestConsumer(t, rdb, 3)

	var got []string
	c.RegisterHandler(MessageTypeNovelGenerate, func(_ context.Context, msg *Message) error {
		var job NovelJobMessage
		if err := msg.UnmarshalPayload(&job); err != nil {
			return err
		}
		got = append(got, job.JobID)
		return nil
	})

	p := NewProducer(rdb, 100)
	for _, id := range []string{"j1", "j2"} {
		_, err := p.PublishNovelJob(ctx, &NovelJobMessage{JobID: id, NovelID: "n1", JobType: MessageTypeNovelGenerate})
		require.NoError(t, err)
	}
	// 无处理器的消息直接确认
	_, err := p.PublishNovelJob(ctx, &NovelJobMessage{JobID: "j3", NovelID: "n1", JobType: MessageTypeChapterGenerate})
	require.NoError(t, err)

	require.NoError(t, c.Poll(ctx))
	assert.Equal(t, []string{"j1", "j2"}, got)

	pending, err := rdb.XPending(ctx, string(StreamNovelGen), string(ConsumerGroupGenWorker)).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 0, pending.Count)
}

func TestConsumer_FailureRetriesThenDeadLetters(t *testing.T) {
	t.Parallel()
	rdb := newTestRedis(t)
	ctx := context.Background()
	c := newTestConsumer(t, rdb, 2)

	calls := 0
	c.RegisterHandler(MessageTypeNovelGenerate, func(context.Context, *Message) error {
		calls++
		return errors.New("llm unavailable")
	})

	_, err := NewProducer(rdb, 100).PublishNovelJob(ctx, &NovelJobMessage{JobID: "j1", NovelID: "n1", JobType: MessageTypeNovelGenerate})
	require.NoError(t, err)

	require.NoError(t, c.Poll(ctx))
	assert.Equal(t, 1, calls)

	pending, err := rdb.XPending(ctx, string(StreamNovelGen), string(ConsumerGroupGenWorker)).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 1, pending.Count)

	// 第二次投递仍失败，达到上限后进入死信队列
	c.backoff = BackoffConfig{Initial: 0, Max: 0, Multiplier: 1}
	c.processDuePending(ctx)
	assert.Equal(t, 2, calls)

	pending, err = rdb.XPending(ctx, string(StreamNovelGen), string(ConsumerGroupGenWorker)).Result()
	require.NoError(t, err)
	assert.EqualValues(t, 0, pending.Count)

	dlq, err := rdb.XRange(ctx, StreamNovelGen.DLQStream(), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, dlq, 1)
	assert.Contains(t, dlq[0].Values["data"], "llm unavailable")
}

func TestJobPublisher_PublishJob(t *testing.T) {
	t.Parallel()
	rdb := newTestRedis(t)
	ctx := logger.WithContext(context.Background(), logger.RequestIDKey, "req-9")

	job := entity.NewGenerationJob("n1", entity.JobTypeChapterGenerate)
	job.ChapterIndex = 1
	job.Model = "deepseek/deepseek-chat"
	require.NoError(t, NewJobPublisher(NewProducer(rdb, 100)).PublishJob(ctx, job))

	entries, err := rdb.XRange(ctx, string(StreamNovelGen), "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, entries, 1)

	var msg Message
	require.NoError(t, json.Unmarshal([]byte(entries[0].Values["data"].(string)), &msg))
	assert.Equal(t, job.ID, msg.ID)
	assert.Equal(t, "req-9", msg.GetMetadata("request_id"))

	var payload NovelJobMessage
	require.NoError(t, msg.UnmarshalPayload(&payload))
	assert.Equal(t, job.ID, payload.JobID)
	assert.Equal(t, 1, payload.ChapterIndex)
	assert.Equal(t, "deepseek/deepseek-chat", payload.Model)
}
