package router

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"z-novel-writer/internal/application/novel"
	"z-novel-writer/internal/application/translation"
	"z-novel-writer/internal/application/usage"
	"z-novel-writer/internal/config"
	"z-novel-writer/internal/infrastructure/llm"
	"z-novel-writer/internal/infrastructure/persistence/sqlite"
	"z-novel-writer/internal/infrastructure/source"
	"z-novel-writer/internal/interfaces/http/dto"
	"z-novel-writer/internal/interfaces/http/handler"
	wfmodel "z-novel-writer/internal/workflow/model"
)

type stubGenerator struct{}

func (stubGenerator) DetectLanguage(context.Context, *wfmodel.LanguageDetectInput) (*novel.Generated[string], error) {
	return &novel.Generated[string]{Value: "English"}, nil
}

func (stubGenerator) Overview(context.Context, *wfmodel.OverviewInput) (*novel.Generated[*wfmodel.OverviewOutput], error) {
	return &novel.Generated[*wfmodel.OverviewOutput]{Value: &wfmodel.OverviewOutput{
		Title:      "The Lighthouse",
		Overview:   "A keeper finds a letter, follows it across the sea, confronts the sender and returns home.",
		Characters: []wfmodel.CharacterItem{{Name: "Mara", Description: "lighthouse keeper"}},
	}}, nil
}

func plotItems(prefix string, count int) []wfmodel.PlotItem {
	if count == 0 {
		count = 2
	}
	items := make([]wfmodel.PlotItem, count)
	for i := range items {
		items[i] = wfmodel.PlotItem{Title: fmt.Sprintf("%s %d", prefix, i+1), Overview: fmt.Sprintf("%s overview %d", prefix, i+1)}
	}
	return items
}

func (stubGenerator) ChapterPlan(_ context.Context, in *wfmodel.ChapterPlanInput) (*novel.Generated[[]wfmodel.PlotItem], error) {
	return &novel.Generated[[]wfmodel.PlotItem]{Value: plotItems("Chapter", in.Count)}, nil
}

func (stubGenerator) SectionPlan(_ context.Context, in *wfmodel.SectionPlanInput) (*novel.Generated[[]wfmodel.PlotItem], error) {
	return &novel.Generated[[]wfmodel.PlotItem]{Value: plotItems("Section", in.Count)}, nil
}

func (stubGenerator) SectionContent(_ context.Context, in *wfmodel.SectionContentInput) (*novel.Generated[*wfmodel.SectionContentOutput], error) {
	return &novel.Generated[*wfmodel.SectionContentOutput]{Value: &wfmodel.SectionContentOutput{
		Content: "Mara climbed the stairs. " + in.SectionOverview,
		CurrentState: map[string]wfmodel.CharacterStateItem{
			"Mara": {Clothing: "oilskin coat", Psychological: "restless", Physiological: "tired"},
		},
	}}, nil
}

// upperTranslator 把原文转为大写；broken 时含 # 的分块失败
type upperTranslator struct {
	broken atomic.Bool
}

func (t *upperTranslator) TranslateChunk(_ context.Context, req translation.ChunkRequest) (string, error) {
	if t.broken.Load() && strings.Contains(req.Text, "#") {
		return "", errors.New("upstream timeout")
	}
	return strings.ToUpper(req.Text), nil
}

func (t *upperTranslator) StreamChunk(ctx context.Context, req translation.ChunkRequest, emit translation.EmitFunc) (string, error) {
	out, err := t.TranslateChunk(ctx, req)
	if err != nil {
		return "", err
	}
	half := len(out) / 2
	for _, part := range []string{out[:half], out[half:]} {
		if err := emit(part); err != nil {
			return "", err
		}
	}
	return out, nil
}

type denyLimiter struct{}

func (denyLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return false, nil
}

type testServer struct {
	engine     *gin.Engine
	translator *upperTranslator
}

func newTestServer(t *testing.T, cfg *config.Config) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := sqlite.Open(filepath.Join(t.TempDir(), "novels.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	svc, err := novel.NewService(store, stubGenerator{}, novel.DefaultOptions(), 8, 10)
	require.NoError(t, err)

	catalog := llm.NewEinoFactory(cfg)
	tr := &upperTranslator{}
	engine := translation.NewEngine(tr, translation.Config{ChunkSize: 13, Workers: 2, DefaultLanguage: "French"})
	ledger := usage.NewLedger()

	handlers := &Handlers{
		Health:      handler.NewHealthHandler(config.DriverSQLite, store, nil),
		Novel:       handler.NewNovelHandler(svc, catalog, ledger),
		Generation:  handler.NewGenerationHandler(svc),
		Edit:        handler.NewEditHandler(svc),
		Job:         handler.NewJobHandler(novel.NewJobService(svc, nil, nil)),
		Translation: handler.NewTranslationHandler(engine, source.NewFetcher(&cfg.Source), catalog),
		Model:       handler.NewModelHandler(catalog),
	}
	var limiter denyLimiter
	return &testServer{
		engine:     New(cfg, handlers, limiter, func(clientID, route string) string { return clientID + route }).Engine(),
		translator: tr,
	}
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Name: "z-novel-writer", Env: "test"},
		LLM: config.LLMConfig{
			DefaultProvider: "openrouter",
			Providers: map[string]config.ProviderConfig{
				"openrouter": {Model: "deepseek/deepseek-chat", Models: []string{"openai/gpt-4o-mini"}},
			},
		},
		Source: config.SourceConfig{Timeout: time.Second},
	}
}

type envelope struct {
	Code  int              `json:"code"`
	Data  json.RawMessage  `json:"data"`
	Meta  *dto.PageMeta    `json:"meta"`
	Error *dto.ErrorDetail `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		data, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)

	var env envelope
	if strings.HasPrefix(w.Header().Get("Content-Type"), "application/json") && w.Body.Len() > 0 {
		_ = json.Unmarshal(w.Body.Bytes(), &env)
	}
	return w, env
}

func decode[T any](t *testing.T, env envelope) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(env.Data, &out))
	return out
}

func TestRouter_NovelGenerationFlow(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, testConfig())

	w, env := s.do(t, http.MethodPost, "/v1/novels", map[string]string{"plot_requirements": "a keeper and a letter"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[dto.NovelResponse](t, env)
	require.NotEmpty(t, created.ID)
	assert.Equal(t, 1, created.Version)
	base := "/v1/novels/" + created.ID

	// 概要未完成时不能规划章节
	w, env = s.do(t, http.MethodPost, base+"/chapters/generate", nil)
	require.Equal(t, http.StatusPreconditionFailed, w.Code)
	assert.Equal(t, "4007", env.Error.ErrorCode)

	w, env = s.do(t, http.MethodPost, base+"/overview", map[string]string{"plot_requirements": "a keeper and a letter"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "The Lighthouse", decode[dto.NovelResponse](t, env).Novel.Title)

	w, env = s.do(t, http.MethodPost, base+"/chapters/generate", map[string]int{"count": 3})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Len(t, decode[dto.NovelResponse](t, env).Novel.Chapters, 3)

	w, _ = s.do(t, http.MethodPost, base+"/chapters/1/sections/generate", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, env = s.do(t, http.MethodPost, base+"/chapters/1/sections/0/content", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	content := decode[dto.ContentResponse](t, env)
	assert.Contains(t, content.Content, "Section overview 1")
	require.Len(t, content.AfterState, 1)
	for id, state := range content.AfterState {
		assert.Equal(t, "Mara", content.Names[id])
		assert.Equal(t, "restless", state.Psychological)
	}

	w, env = s.do(t, http.MethodGet, "/v1/novels?page=1&page_size=5", nil)
	require.Equal(t, http.StatusOK, w.Code)
	summaries := decode[[]dto.NovelSummary](t, env)
	require.Len(t, summaries, 1)
	assert.Equal(t, "The Lighthouse", summaries[0].Title)
	assert.Equal(t, 3, summaries[0].ChapterCount)
	assert.Equal(t, 1, env.Meta.Total)

	w, _ = s.do(t, http.MethodPost, base+"/export/markdown?raw=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "# The Lighthouse"))
	assert.Contains(t, w.Body.String(), "Mara climbed the stairs.")

	w, _ = s.do(t, http.MethodGet, base+"/export/json", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Disposition"), created.ID+".json")

	w, _ = s.do(t, http.MethodDelete, base, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w, env = s.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "3001", env.Error.ErrorCode)
}

func TestRouter_EditsAndIndexErrors(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, testConfig())

	_, env := s.do(t, http.MethodPost, "/v1/novels", nil)
	base := "/v1/novels/" + decode[dto.NovelResponse](t, env).ID

	w, env := s.do(t, http.MethodPost, base+"/characters", map[string]string{"name": "Mara", "description": "keeper"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var ch struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &ch))

	w, _ = s.do(t, http.MethodPost, base+"/characters", map[string]string{"name": "Mara"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = s.do(t, http.MethodPut, base+"/characters/"+ch.ID, map[string]string{"name": "Mara Vell"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = s.do(t, http.MethodPost, base+"/chapters", map[string]string{"title": "Storm"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w, _ = s.do(t, http.MethodPost, base+"/chapters", map[string]any{"at": 0, "title": "Calm"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	w, _ = s.do(t, http.MethodPost, base+"/chapters/1/sections", map[string]string{"title": "Night"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w, env = s.do(t, http.MethodGet, base, nil)
	require.Equal(t, http.StatusOK, w.Code)
	n := decode[dto.NovelResponse](t, env).Novel
	require.Len(t, n.Chapters, 2)
	assert.Equal(t, "Calm", n.Chapters[0].Title)
	assert.Equal(t, "Storm", n.Chapters[1].Title)
	require.Len(t, n.Chapters[1].Sections, 1)
	assert.Equal(t, "Mara Vell", n.Characters[0].Name)

	w, _ = s.do(t, http.MethodPatch, base, `[{"op":"replace","path":"/title","value":"Patched"}]`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w, _ = s.do(t, http.MethodPatch, base, `[{"op":"replace","path":"/id","value":"other"}]`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(t, http.MethodPost, base+"/chapters/x/sections/0/content", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "1001", env.Error.ErrorCode)

	w, env = s.do(t, http.MethodDelete, base+"/chapters/5", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "4009", env.Error.ErrorCode)

	w, _ = s.do(t, http.MethodDelete, base+"/chapters/1/sections/0", nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, _ = s.do(t, http.MethodDelete, base+"/characters/"+ch.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, env = s.do(t, http.MethodPut, base+"/model", map[string]string{"provider": "missing"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, env = s.do(t, http.MethodPut, base+"/model", map[string]string{"model": "openai/gpt-4o-mini"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[dto.NovelResponse](t, env)
	assert.Equal(t, "openrouter", resp.Provider)
	assert.Equal(t, "openai/gpt-4o-mini", resp.Model)
}

func TestRouter_ImportReplacesAndKeepsID(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, testConfig())

	snapshot := `{"schema_version":3,"id":"imported-1","title":"Old Title","language":"English",
		"characters":[{"id":"c1","name":"Mara","description":"keeper"}],"chapters":[]}`
	w, env := s.do(t, http.MethodPost, "/v1/novels/import", snapshot)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "imported-1", decode[dto.NovelResponse](t, env).ID)

	replacement := `{"schema_version":3,"id":"ignored","title":"New Title","characters":[],"chapters":[]}`
	w, env = s.do(t, http.MethodPut, "/v1/novels/imported-1", replacement)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	got := decode[dto.NovelResponse](t, env)
	assert.Equal(t, "imported-1", got.ID)
	assert.Equal(t, "New Title", got.Novel.Title)
	assert.Equal(t, 2, got.Version)

	w, _ = s.do(t, http.MethodPost, "/v1/novels/import", `{"title": 3}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_TranslationPartialFailureAndRetry(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, testConfig())
	s.translator.broken.Store(true)

	text := "Hello world. Bye now#."
	w, env := s.do(t, http.MethodPost, "/v1/translations", map[string]string{"text": text})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	first := decode[dto.TranslateResponse](t, env)
	assert.False(t, first.Complete)
	assert.Equal(t, "French", first.TargetLanguage)
	assert.Equal(t, 2, first.Chunks)
	require.Len(t, first.Failures, 1)
	assert.Equal(t, 1, first.Failures[0].ChunkIndex)
	assert.Equal(t, "HELLO WORLD. ", first.Text)

	s.translator.broken.Store(false)
	w, env = s.do(t, http.MethodPost, "/v1/translations/retry", map[string]any{
		"target_language": first.TargetLanguage,
		"sources":         first.Sources,
		"parts":           first.Parts,
		"failed":          []int{1},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	retried := decode[dto.TranslateResponse](t, env)
	assert.True(t, retried.Complete)
	assert.Equal(t, strings.ToUpper(text), retried.Text)
	assert.Empty(t, retried.Sources)

	w, _ = s.do(t, http.MethodPost, "/v1/translations/retry", map[string]any{
		"target_language": "French", "sources": []string{"a"}, "parts": []string{"A"}, "failed": []int{3},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = s.do(t, http.MethodPost, "/v1/translations", map[string]string{"target_language": "German"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Error.Details, "text or url")
}

func TestRouter_TranslationStream(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, testConfig())

	w, _ := s.do(t, http.MethodPost, "/v1/translations/stream", map[string]string{"text": "Hello world. Bye now.", "target_language": "German"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Header().Get("Content-Type"), "text/event-stream"), w.Header().Get("Content-Type"))

	body := w.Body.String()
	assert.Equal(t, 4, strings.Count(body, "event:content"))
	assert.Equal(t, 2, strings.Count(body, "event:progress"))
	require.Contains(t, body, "event:done")
	assert.Contains(t, body, "BYE NOW.")
	assert.Less(t, strings.Index(body, "event:progress"), strings.Index(body, "event:done"))
}

func TestRouter_SystemEndpoints(t *testing.T) {
	t.Parallel()
	s := newTestServer(t, testConfig())

	w, _ := s.do(t, http.MethodGet, "/ready", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var ready struct {
		Checks map[string]struct {
			Status string `json:"status"`
		} `json:"checks"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ready))
	assert.Equal(t, "ok", ready.Checks["sqlite"].Status)
	assert.Equal(t, "disabled", ready.Checks["redis"].Status)

	w, env := s.do(t, http.MethodGet, "/v1/models", nil)
	require.Equal(t, http.StatusOK, w.Code)
	models := decode[dto.ModelsResponse](t, env)
	assert.Equal(t, "openrouter", models.DefaultProvider)
	require.Len(t, models.Providers, 1)
	assert.Equal(t, []string{"deepseek/deepseek-chat", "openai/gpt-4o-mini"}, models.Providers[0].Models)

	w, env = s.do(t, http.MethodGet, "/v1/translations/languages", nil)
	require.Equal(t, http.StatusOK, w.Code)
	langs := decode[dto.LanguagesResponse](t, env)
	assert.Equal(t, "French", langs.Default)
	assert.Contains(t, langs.Languages, "Japanese")

	// 未配置队列时无法提交任务
	_, env = s.do(t, http.MethodPost, "/v1/novels", nil)
	nid := decode[dto.NovelResponse](t, env).ID
	w, env = s.do(t, http.MethodPost, "/v1/novels/"+nid+"/jobs", map[string]string{"job_type": "novel_generate"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, "1008", env.Error.ErrorCode)
	w, _ = s.do(t, http.MethodPost, "/v1/novels/"+nid+"/jobs", map[string]string{"job_type": "summary"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_RateLimitOnLLMRoutes(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Security.RateLimit = config.RateLimitConfig{Enabled: true, Limit: 1, Window: time.Minute}
	s := newTestServer(t, cfg)

	w, _ := s.do(t, http.MethodPost, "/v1/translations", map[string]string{"text": "hi"})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "60", w.Header().Get("Retry-After"))

	// 非 LLM 接口不受限
	w, _ = s.do(t, http.MethodGet, "/v1/translations/languages", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}
