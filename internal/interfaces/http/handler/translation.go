package handler

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"z-novel-writer/internal/application/translation"
	"z-novel-writer/internal/infrastructure/source"
	"z-novel-writer/internal/interfaces/http/dto"
	"z-novel-writer/pkg/errors"
	"z-novel-writer/pkg/logger"
)

// SourceFetcher 从 URL 获取待翻译文本
type SourceFetcher interface {
	Fetch(ctx context.Context, rawURL string) (*source.Document, error)
}

// TranslationHandler 翻译处理器
type TranslationHandler struct {
	engine  *translation.Engine
	fetcher SourceFetcher
	catalog ModelCatalog
}

// NewTranslationHandler 创建翻译处理器
func NewTranslationHandler(engine *translation.Engine, fetcher SourceFetcher, catalog ModelCatalog) *TranslationHandler {
	return &TranslationHandler{
		engine:  engine,
		fetcher: fetcher,
		catalog: catalog,
	}
}

// Translate 并行翻译，部分分块失败时返回 complete=false 与失败列表
// @Summary 并行翻译
// @Tags Translations
// @Accept json
// @Produce json
// @Param body body dto.TranslateRequest true "原文或 URL"
// @Success 200 {object} dto.Response[dto.TranslateResponse]
// @Router /v1/translations [post]
func (h *TranslationHandler) Translate(c *gin.Context) {
	ctx := c.Request.Context()
	req, title, err := h.prepare(c)
	if err != nil {
		dto.Fail(c, err)
		return
	}

	res, err := h.engine.TranslateParallel(ctx, req, nil)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	if !res.Complete() {
		logger.Warn(ctx, "translation finished with failed chunks", "failed", res.FailedIndices())
	}
	dto.Success(c, dto.ToTranslateResponse(res, title))
}

// RetryTranslation 只重新翻译失败的分块
// @Summary 重试失败分块
// @Tags Translations
// @Accept json
// @Produce json
// @Param body body dto.RetryTranslationRequest true "上次结果"
// @Success 200 {object} dto.Response[dto.TranslateResponse]
// @Router /v1/translations/retry [post]
func (h *TranslationHandler) RetryTranslation(c *gin.Context) {
	var req dto.RetryTranslationRequest
	if !bindJSON(c, &req) {
		return
	}
	provider, model, err := resolveProviderModel(h.catalog, req.Provider, req.Model)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	req.Provider, req.Model = provider, model

	prev, err := req.ToResult()
	if err != nil {
		dto.BadRequest(c, err.Error())
		return
	}
	res, err := h.engine.Retry(c.Request.Context(), prev, nil)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToTranslateResponse(res, ""))
}

// TranslateStream 按顺序流式翻译
// @Summary 流式翻译
// @Description content 事件逐片段推送译文，progress 事件在每个分块完成后推送，done 事件携带完整结果
// @Tags Translations
// @Accept json
// @Produce text/event-stream
// @Param body body dto.TranslateRequest true "原文或 URL"
// @Success 200 "SSE stream"
// @Router /v1/translations/stream [post]
func (h *TranslationHandler) TranslateStream(c *gin.Context) {
	ctx := c.Request.Context()
	req, title, err := h.prepare(c)
	if err != nil {
		dto.Fail(c, err)
		return
	}

	w := newSSEWriter(c)
	progress := func(done, total int, _ string) {
		w.Event("progress", gin.H{"done": done, "total": total})
	}
	res, err := h.engine.TranslateStream(ctx, req, w.Content, progress)
	if err != nil {
		if !w.started {
			dto.Fail(c, err)
			return
		}
		logger.Warn(ctx, "stream translation aborted", "error", err.Error())
		w.Error(err)
		return
	}
	w.Event("done", dto.ToTranslateResponse(res, title))
}

// Languages 可选目标语言
// @Summary 目标语言列表
// @Tags Translations
// @Produce json
// @Success 200 {object} dto.Response[dto.LanguagesResponse]
// @Router /v1/translations/languages [get]
func (h *TranslationHandler) Languages(c *gin.Context) {
	dto.Success(c, &dto.LanguagesResponse{
		Languages: h.engine.Languages(),
		Default:   h.engine.DefaultLanguage(),
	})
}

// prepare 绑定请求，按需抓取 URL，补全目标语言与模型
func (h *TranslationHandler) prepare(c *gin.Context) (translation.Request, string, error) {
	var body dto.TranslateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		return translation.Request{}, "", errors.ErrInvalidParam.WithDetail("invalid request body: " + err.Error())
	}

	text, title := body.Text, ""
	if strings.TrimSpace(text) == "" {
		if strings.TrimSpace(body.URL) == "" {
			return translation.Request{}, "", errors.ErrInvalidParam.WithDetail("text or url is required")
		}
		if h.fetcher == nil {
			return translation.Request{}, "", errors.ErrServiceUnavailable.WithDetail("source fetcher not configured")
		}
		doc, err := h.fetcher.Fetch(c.Request.Context(), body.URL)
		if err != nil {
			return translation.Request{}, "", err
		}
		text, title = doc.Text, doc.Title
	}

	provider, model, err := resolveProviderModel(h.catalog, body.Provider, body.Model)
	if err != nil {
		return translation.Request{}, "", err
	}
	lang := strings.TrimSpace(body.TargetLanguage)
	if lang == "" {
		lang = h.engine.DefaultLanguage()
	}
	return translation.Request{
		Text:           text,
		TargetLanguage: lang,
		Provider:       provider,
		Model:          model,
	}, title, nil
}
