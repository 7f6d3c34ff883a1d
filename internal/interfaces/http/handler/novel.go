package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"z-novel-writer/internal/application/novel"
	"z-novel-writer/internal/application/usage"
	"z-novel-writer/internal/interfaces/http/dto"
)

// NovelHandler 小说管理处理器
type NovelHandler struct {
	novels  *novel.Service
	catalog ModelCatalog
	usage   *usage.Ledger
}

// NewNovelHandler 创建小说处理器
func NewNovelHandler(novels *novel.Service, catalog ModelCatalog, ledger *usage.Ledger) *NovelHandler {
	return &NovelHandler{
		novels:  novels,
		catalog: catalog,
		usage:   ledger,
	}
}

// CreateNovel 创建小说
// @Summary 创建小说
// @Tags Novels
// @Accept json
// @Produce json
// @Param body body dto.CreateNovelRequest false "创作要求与模型"
// @Success 201 {object} dto.Response[dto.NovelResponse]
// @Router /v1/novels [post]
func (h *NovelHandler) CreateNovel(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateNovelRequest
	if !bindOptionalJSON(c, &req) {
		return
	}
	provider, model, err := resolveProviderModel(h.catalog, req.Provider, req.Model)
	if err != nil {
		dto.Fail(c, err)
		return
	}

	o, err := h.novels.CreateDraft(ctx, novel.Draft{
		PlotRequirements:    req.PlotRequirements,
		WritingRequirements: req.WritingRequirements,
		Provider:            provider,
		Model:               model,
	})
	if err != nil {
		dto.Fail(c, err)
		return
	}

	dto.Created(c, dto.ToNovelResponse(o))
}

// ListNovels 历史列表，按更新时间倒序
// @Summary 小说历史
// @Tags Novels
// @Produce json
// @Param page query int false "页码" default(1)
// @Param page_size query int false "每页条数"
// @Success 200 {object} dto.Response[[]dto.NovelSummary]
// @Router /v1/novels [get]
func (h *NovelHandler) ListNovels(c *gin.Context) {
	pageReq := dto.BindPage(c)

	result, err := h.novels.History(c.Request.Context(), pageReq.Page, pageReq.PageSize)
	if err != nil {
		dto.Fail(c, err)
		return
	}

	meta := dto.NewPageMeta(result.Page, result.PageSize, int(result.Total))
	dto.SuccessWithPage(c, dto.ToNovelSummaries(result.Items), meta)
}

// GetNovel 获取小说
// @Summary 获取小说
// @Tags Novels
// @Produce json
// @Param nid path string true "小说 ID"
// @Success 200 {object} dto.Response[dto.NovelResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Router /v1/novels/{nid} [get]
func (h *NovelHandler) GetNovel(c *gin.Context) {
	o, err := h.novels.Get(c.Request.Context(), dto.BindNovelID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToNovelResponse(o))
}

// ReplaceNovel 以请求体中的完整快照替换小说，ID 以路径为准
// @Summary 导入快照覆盖小说
// @Tags Novels
// @Accept json
// @Produce json
// @Param nid path string true "小说 ID"
// @Success 200 {object} dto.Response[dto.NovelResponse]
// @Router /v1/novels/{nid} [put]
func (h *NovelHandler) ReplaceNovel(c *gin.Context) {
	ctx := c.Request.Context()
	data, err := c.GetRawData()
	if err != nil {
		dto.BadRequest(c, "failed to read request body")
		return
	}

	o, err := h.novels.Get(ctx, dto.BindNovelID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	if err := o.Import(ctx, data); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToNovelResponse(o))
}

// PatchNovel 按 JSON Patch 修改小说
// @Summary 局部修改小说
// @Tags Novels
// @Accept json-patch+json
// @Produce json
// @Param nid path string true "小说 ID"
// @Success 200 {object} dto.Response[dto.NovelResponse]
// @Router /v1/novels/{nid} [patch]
func (h *NovelHandler) PatchNovel(c *gin.Context) {
	ctx := c.Request.Context()
	data, err := c.GetRawData()
	if err != nil {
		dto.BadRequest(c, "failed to read request body")
		return
	}

	o, err := h.novels.Get(ctx, dto.BindNovelID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	if err := o.ApplyPatch(ctx, data); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToNovelResponse(o))
}

// DeleteNovel 删除小说
// @Summary 删除小说
// @Tags Novels
// @Param nid path string true "小说 ID"
// @Success 204
// @Router /v1/novels/{nid} [delete]
func (h *NovelHandler) DeleteNovel(c *gin.Context) {
	novelID := dto.BindNovelID(c)
	if err := h.novels.Delete(c.Request.Context(), novelID); err != nil {
		dto.Fail(c, err)
		return
	}
	h.usage.Forget(novelID)
	dto.NoContent(c)
}

// ImportNovel 导入快照；ID 已存在时覆盖
// @Summary 导入小说
// @Tags Novels
// @Accept json
// @Produce json
// @Success 201 {object} dto.Response[dto.NovelResponse]
// @Router /v1/novels/import [post]
func (h *NovelHandler) ImportNovel(c *gin.Context) {
	data, err := c.GetRawData()
	if err != nil {
		dto.BadRequest(c, "failed to read request body")
		return
	}
	o, err := h.novels.Import(c.Request.Context(), data)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Created(c, dto.ToNovelResponse(o))
}

// SetRequirements 修改创作要求
// @Summary 修改创作要求
// @Tags Novels
// @Accept json
// @Produce json
// @Param nid path string true "小说 ID"
// @Param body body dto.RequirementsRequest true "创作要求"
// @Success 200 {object} dto.Response[dto.NovelResponse]
// @Router /v1/novels/{nid}/requirements [put]
func (h *NovelHandler) SetRequirements(c *gin.Context) {
	ctx := c.Request.Context()
	var req dto.RequirementsRequest
	if !bindJSON(c, &req) {
		return
	}

	o, err := h.novels.Get(ctx, dto.BindNovelID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	if err := o.SetRequirements(ctx, req.PlotRequirements, req.WritingRequirements); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToNovelResponse(o))
}

// SetModel 切换小说使用的模型，只影响当前进程中的会话
// @Summary 切换模型
// @Tags Novels
// @Accept json
// @Produce json
// @Param nid path string true "小说 ID"
// @Param body body dto.ModelRequest true "模型"
// @Success 200 {object} dto.Response[dto.NovelResponse]
// @Router /v1/novels/{nid}/model [put]
func (h *NovelHandler) SetModel(c *gin.Context) {
	var req dto.ModelRequest
	if !bindJSON(c, &req) {
		return
	}
	provider, model, err := resolveProviderModel(h.catalog, req.Provider, req.Model)
	if err != nil {
		dto.Fail(c, err)
		return
	}

	o, err := h.novels.Get(c.Request.Context(), dto.BindNovelID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	o.SetModel(provider, model)
	dto.Success(c, dto.ToNovelResponse(o))
}

// ExportJSON 下载当前版本快照
// @Summary 导出 JSON
// @Tags Novels
// @Produce json
// @Param nid path string true "小说 ID"
// @Success 200 {object} entity.Novel
// @Router /v1/novels/{nid}/export/json [get]
func (h *NovelHandler) ExportJSON(c *gin.Context) {
	o, err := h.novels.Get(c.Request.Context(), dto.BindNovelID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	data, err := o.ExportJSON()
	if err != nil {
		dto.Fail(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.json"`, o.ID()))
	c.Data(http.StatusOK, "application/json; charset=utf-8", data)
}

// ExportMarkdown 生成 Markdown 文档并写回小说
// @Summary 导出 Markdown
// @Tags Novels
// @Produce json
// @Param nid path string true "小说 ID"
// @Param raw query bool false "直接返回 text/markdown"
// @Success 200 {object} dto.Response[dto.MarkdownResponse]
// @Router /v1/novels/{nid}/export/markdown [post]
func (h *NovelHandler) ExportMarkdown(c *gin.Context) {
	ctx := c.Request.Context()
	o, err := h.novels.Get(ctx, dto.BindNovelID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	md, err := o.ExportMarkdown(ctx)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	if c.Query("raw") == "true" {
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(md))
		return
	}
	dto.Success(c, &dto.MarkdownResponse{Markdown: md})
}

// GetUsage 当前进程内累计的 LLM 用量
// @Summary LLM 用量
// @Tags Novels
// @Produce json
// @Param nid path string true "小说 ID"
// @Success 200 {object} dto.Response[usage.Totals]
// @Router /v1/novels/{nid}/usage [get]
func (h *NovelHandler) GetUsage(c *gin.Context) {
	o, err := h.novels.Get(c.Request.Context(), dto.BindNovelID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, h.usage.Totals(o.ID()))
}
