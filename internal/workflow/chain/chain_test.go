package chain

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wfmodel "z-novel-writer/internal/workflow/model"
)

type recordedCall struct {
	Messages []*schema.Message
	Opts     int
}

type stubChatModel struct {
	mu    sync.Mutex
	calls []recordedCall

	generateFunc func(n int, msgs []*schema.Message) (*schema.Message, error)
	streamChunks []string
}

func (m *stubChatModel) record(msgs []*schema.Message, opts []model.Option) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, recordedCall{Messages: msgs, Opts: len(opts)})
	return len(m.calls)
}

func (m *stubChatModel) Generate(_ context.Context, msgs []*schema.Message, opts ...model.Option) (*schema.Message, error) {
	n := m.record(msgs, opts)
	if m.generateFunc != nil {
		return m.generateFunc(n, msgs)
	}
	return schema.AssistantMessage("ok", nil), nil
}

func (m *stubChatModel) Stream(_ context.Context, msgs []*schema.Message, opts ...model.Option) (*schema.StreamReader[*schema.Message], error) {
	m.record(msgs, opts)
	out := make([]*schema.Message, 0, len(m.streamChunks))
	for _, c := range m.streamChunks {
		out = append(out, schema.AssistantMessage(c, nil))
	}
	return schema.StreamReaderFromArray(out), nil
}

type stubFactory struct {
	model model.BaseChatModel
	names []string
}

func (f *stubFactory) Get(_ context.Context, name string) (model.BaseChatModel, error) {
	f.names = append(f.names, name)
	return f.model, nil
}

func TestNovelChain_FallsBackWithoutSchema(t *testing.T) {
	t.Parallel()

	stub := &stubChatModel{
		generateFunc: func(n int, _ []*schema.Message) (*schema.Message, error) {
			if n == 1 {
				return nil, errors.New("400 Bad Request: response_format json_schema is not supported")
			}
			return schema.AssistantMessage(`{"items":[]}`, nil), nil
		},
	}
	c := NewNovelChain(&stubFactory{model: stub})

	msg, err := c.PlanChapters(context.Background(), &wfmodel.ChapterPlanInput{
		Language: "English", Title: "t", Overview: "o", CharactersBlock: "- **A**: a",
	})
	require.NoError(t, err)
	assert.Equal(t, `{"items":[]}`, msg.Content)
	require.Len(t, stub.calls, 2)
	assert.Equal(t, 1, stub.calls[0].Opts)
	assert.Equal(t, 0, stub.calls[1].Opts)
}

func TestNovelChain_TransportErrorNotRetried(t *testing.T) {
	t.Parallel()

	stub := &stubChatModel{
		generateFunc: func(int, []*schema.Message) (*schema.Message, error) {
			return nil, errors.New("connection reset by peer")
		},
	}
	c := NewNovelChain(&stubFactory{model: stub})

	_, err := c.GenerateOverview(context.Background(), &wfmodel.OverviewInput{Language: "English", PlotRequirements: "p"})
	require.Error(t, err)
	assert.Len(t, stub.calls, 1)
}

func TestNovelChain_ReplayAppendsFeedbackTurns(t *testing.T) {
	t.Parallel()

	stub := &stubChatModel{}
	c := NewNovelChain(&stubFactory{model: stub})

	_, err := c.PlanSections(context.Background(), &wfmodel.SectionPlanInput{
		Language: "English", Title: "t", Overview: "o",
		ChapterTitle: "c", ChapterOverview: "co", Count: 3,
		Replay: &wfmodel.Replay{Previous: `{"items":[{"title":"x"}]}`, Feedback: "make it darker"},
	})
	require.NoError(t, err)
	require.Len(t, stub.calls, 1)

	msgs := stub.calls[0].Messages
	require.Len(t, msgs, 4)
	assert.Equal(t, schema.System, msgs[0].Role)
	assert.Contains(t, msgs[1].Content, "Design exactly 3 sections.")
	assert.Equal(t, schema.Assistant, msgs[2].Role)
	assert.Equal(t, `{"items":[{"title":"x"}]}`, msgs[2].Content)
	assert.Equal(t, schema.User, msgs[3].Role)
	assert.Equal(t, "make it darker", msgs[3].Content)
}

func TestNovelChain_SectionContextOrder(t *testing.T) {
	t.Parallel()

	stub := &stubChatModel{}
	c := NewNovelChain(&stubFactory{model: stub})

	_, err := c.WriteSection(context.Background(), &wfmodel.SectionContentInput{
		Language:           "English",
		Title:              "t",
		Overview:           "o",
		ChaptersBlock:      "CHAPTERS-MARK",
		CharactersBlock:    "ROSTER-MARK",
		SectionsBlock:      "SECTIONS-MARK",
		PreviousStateBlock: "STATE-MARK",
		PreviousContent:    "PREV-CONTENT-MARK",
		ChapterOverview:    "CH-OVERVIEW-MARK",
		SectionOverview:    "SEC-OVERVIEW-MARK",
	})
	require.NoError(t, err)

	user := stub.calls[0].Messages[1].Content
	marks := []string{"CHAPTERS-MARK", "ROSTER-MARK", "SECTIONS-MARK", "STATE-MARK", "PREV-CONTENT-MARK", "CH-OVERVIEW-MARK", "SEC-OVERVIEW-MARK"}
	last := -1
	for _, m := range marks {
		idx := strings.Index(user, m)
		if idx <= last {
			t.Fatalf("marker %q at %d, want after %d", m, idx, last)
		}
		last = idx
	}
	assert.True(t, strings.HasSuffix(user, "SEC-OVERVIEW-MARK"))
}

func TestNovelChain_PassesProvider(t *testing.T) {
	t.Parallel()

	factory := &stubFactory{model: &stubChatModel{}}
	c := NewNovelChain(factory)

	_, err := c.DetectLanguage(context.Background(), &wfmodel.LanguageDetectInput{
		CallOptions: wfmodel.CallOptions{Provider: "openrouter"},
		Text:        "雨夜的码头",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"openrouter"}, factory.names)

	_, err = c.DetectLanguage(context.Background(), &wfmodel.LanguageDetectInput{Text: " "})
	require.Error(t, err)
}

func TestTranslateChain_Stream(t *testing.T) {
	t.Parallel()

	stub := &stubChatModel{streamChunks: []string{"你", "好"}}
	c := NewTranslateChain(&stubFactory{model: stub})

	reader, err := c.Stream(context.Background(), &wfmodel.TranslateInput{TargetLanguage: "Chinese (Simp.)", Text: "hello {name}"})
	require.NoError(t, err)
	defer reader.Close()

	var sb strings.Builder
	for {
		msg, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		sb.WriteString(msg.Content)
	}
	assert.Equal(t, "你好", sb.String())

	msgs := stub.calls[0].Messages
	assert.Contains(t, msgs[0].Content, "into Chinese (Simp.)")
	assert.Equal(t, "hello {name}", msgs[1].Content)
}

func TestTranslateChain_RequiresLanguage(t *testing.T) {
	t.Parallel()

	c := NewTranslateChain(&stubFactory{model: &stubChatModel{}})
	_, err := c.Invoke(context.Background(), &wfmodel.TranslateInput{Text: "x"})
	require.Error(t, err)
}

func TestUsageOf(t *testing.T) {
	t.Parallel()

	p, c := UsageOf(nil)
	assert.Zero(t, p)
	assert.Zero(t, c)

	msg := schema.AssistantMessage("x", nil)
	msg.ResponseMeta = &schema.ResponseMeta{Usage: &schema.TokenUsage{PromptTokens: 10, CompletionTokens: 3}}
	p, c = UsageOf(msg)
	assert.Equal(t, 10, p)
	assert.Equal(t, 3, c)
}
