package translation

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	rediscache "z-novel-writer/internal/infrastructure/persistence/redis"
)

type echoChatModel struct {
	chunks []string
	msgs   []*schema.Message
}

func (m *echoChatModel) Generate(_ context.Context, msgs []*schema.Message, _ ...model.Option) (*schema.Message, error) {
	m.msgs = msgs
	return schema.AssistantMessage(strings.Join(m.chunks, ""), nil), nil
}

func (m *echoChatModel) Stream(_ context.Context, msgs []*schema.Message, _ ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.msgs = msgs
	out := make([]*schema.Message, 0, len(m.chunks)+1)
	for _, c := range m.chunks {
		out = append(out, schema.AssistantMessage(c, nil))
	}
	// 末尾只带用量的空消息
	out = append(out, &schema.Message{Role: schema.Assistant, ResponseMeta: &schema.ResponseMeta{Usage: &schema.TokenUsage{TotalTokens: 3}}})
	return schema.StreamReaderFromArray(out), nil
}

type echoFactory struct {
	model model.BaseChatModel
}

func (f *echoFactory) Get(context.Context, string) (model.BaseChatModel, error) {
	return f.model, nil
}

func TestLLMTranslator(t *testing.T) {
	t.Parallel()

	chat := &echoChatModel{chunks: []string{"Bon", "jour"}}
	tr := NewLLMTranslator(&echoFactory{model: chat})

	out, err := tr.TranslateChunk(context.Background(), ChunkRequest{Text: "Hello", TargetLanguage: "French"})
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", out)
	require.Len(t, chat.msgs, 2)
	assert.Contains(t, chat.msgs[0].Content, "French")
	assert.Equal(t, "Hello", chat.msgs[1].Content)

	var fragments []string
	out, err = tr.StreamChunk(context.Background(), ChunkRequest{Text: "Hello", TargetLanguage: "French"}, func(f string) error {
		fragments = append(fragments, f)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Bonjour", out)
	assert.Equal(t, []string{"Bon", "jour"}, fragments)

	_, err = tr.TranslateChunk(context.Background(), ChunkRequest{Text: "Hello"})
	require.Error(t, err)
}

func TestLLMTranslator_EmitErrorStops(t *testing.T) {
	t.Parallel()

	tr := NewLLMTranslator(&echoFactory{model: &echoChatModel{chunks: []string{"a", "b", "c"}}})
	stop := errors.New("client gone")
	calls := 0
	out, err := tr.StreamChunk(context.Background(), ChunkRequest{Text: "x", TargetLanguage: "English"}, func(string) error {
		calls++
		if calls == 2 {
			return stop
		}
		return nil
	})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, "ab", out)
}

func newTestCache(t *testing.T) *rediscache.TranslationCache {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return rediscache.NewTranslationCache(rediscache.Wrap(rdb), time.Hour)
}

func TestCachedTranslator(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	next := &stubTranslator{
		translateFunc: func(_ context.Context, req ChunkRequest) (string, error) {
			calls.Add(1)
			return strings.ToUpper(req.Text), nil
		},
		streamFunc: func(_ context.Context, req ChunkRequest, emit EmitFunc) (string, error) {
			calls.Add(1)
			out := strings.ToUpper(req.Text)
			return out, emit(out)
		},
	}
	tr := NewCachedTranslator(next, newTestCache(t), rediscache.TranslationKey)
	ctx := context.Background()
	req := ChunkRequest{Text: "hello", TargetLanguage: "English", Model: "m"}

	out, err := tr.TranslateChunk(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out)
	out, err = tr.TranslateChunk(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out)
	assert.Equal(t, int32(1), calls.Load())

	var fragments []string
	emit := func(f string) error {
		fragments = append(fragments, f)
		return nil
	}
	out, err = tr.StreamChunk(ctx, req, emit)
	require.NoError(t, err)
	assert.Equal(t, "HELLO", out)
	assert.Equal(t, []string{"HELLO"}, fragments)
	assert.Equal(t, int32(1), calls.Load())

	other := req
	other.TargetLanguage = "Japanese"
	_, err = tr.StreamChunk(ctx, other, emit)
	require.NoError(t, err)
	_, err = tr.TranslateChunk(ctx, other)
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
}
