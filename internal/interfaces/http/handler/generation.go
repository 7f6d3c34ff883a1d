package handler

import (
	"github.com/gin-gonic/gin"

	"z-novel-writer/internal/application/novel"
	"z-novel-writer/internal/interfaces/http/dto"
)

// GenerationHandler 同步生成处理器，每个请求阻塞到 LLM 返回
type GenerationHandler struct {
	novels *novel.Service
}

// NewGenerationHandler 创建生成处理器
func NewGenerationHandler(novels *novel.Service) *GenerationHandler {
	return &GenerationHandler{novels: novels}
}

// GenerateOverview 生成标题、概要与角色
// @Summary 生成概要
// @Tags Generation
// @Accept json
// @Produce json
// @Param nid path string true "小说 ID"
// @Param body body dto.GenerateOverviewRequest true "创作要求"
// @Success 200 {object} dto.Response[dto.NovelResponse]
// @Failure 422 {object} dto.ErrorResponse "模型输出不合法"
// @Router /v1/novels/{nid}/overview [post]
func (h *GenerationHandler) GenerateOverview(c *gin.Context) {
	ctx := c.Request.Context()
	var req dto.GenerateOverviewRequest
	if !bindJSON(c, &req) {
		return
	}

	o, err := h.novels.Get(ctx, dto.BindNovelID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	if err := o.GenerateOverview(ctx, req.PlotRequirements, req.WritingRequirements); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToNovelResponse(o))
}

// GenerateChapters 规划章节
// @Summary 规划章节
// @Tags Generation
// @Accept json
// @Produce json
// @Param nid path string true "小说 ID"
// @Param body body dto.GenerateChaptersRequest false "章节数与修改意见"
// @Success 200 {object} dto.Response[dto.NovelResponse]
// @Failure 412 {object} dto.ErrorResponse "概要未完成"
// @Router /v1/novels/{nid}/chapters/generate [post]
func (h *GenerationHandler) GenerateChapters(c *gin.Context) {
	ctx := c.Request.Context()
	var req dto.GenerateChaptersRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	o, err := h.novels.Get(ctx, dto.BindNovelID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	if err := o.GenerateChapters(ctx, req.ToPlanRequest()); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToNovelResponse(o))
}

// GenerateSections 规划章节内的小节
// @Summary 规划小节
// @Tags Generation
// @Accept json
// @Produce json
// @Param nid path string true "小说 ID"
// @Param cidx path int true "章节下标"
// @Param body body dto.GenerateSectionsRequest false "小节数与修改意见"
// @Success 200 {object} dto.Response[dto.NovelResponse]
// @Router /v1/novels/{nid}/chapters/{cidx}/sections/generate [post]
func (h *GenerationHandler) GenerateSections(c *gin.Context) {
	ctx := c.Request.Context()
	ci, err := dto.BindIndex(c, "cidx")
	if err != nil {
		dto.Fail(c, err)
		return
	}
	var req dto.GenerateSectionsRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	o, err := h.novels.Get(ctx, dto.BindNovelID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	if err := o.GenerateSections(ctx, ci, req.ToPlanRequest()); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToNovelResponse(o))
}

// WriteSectionContent 生成小节正文与角色状态
// @Summary 生成正文
// @Tags Generation
// @Accept json
// @Produce json
// @Param nid path string true "小说 ID"
// @Param cidx path int true "章节下标"
// @Param sidx path int true "小节下标"
// @Param body body dto.WriteContentRequest false "修改意见"
// @Success 200 {object} dto.Response[dto.ContentResponse]
// @Router /v1/novels/{nid}/chapters/{cidx}/sections/{sidx}/content [post]
func (h *GenerationHandler) WriteSectionContent(c *gin.Context) {
	ctx := c.Request.Context()
	ci, err := dto.BindIndex(c, "cidx")
	if err != nil {
		dto.Fail(c, err)
		return
	}
	si, err := dto.BindIndex(c, "sidx")
	if err != nil {
		dto.Fail(c, err)
		return
	}
	var req dto.WriteContentRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	o, err := h.novels.Get(ctx, dto.BindNovelID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	res, err := o.WriteSectionContent(ctx, ci, si, req.Feedback)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToContentResponse(res, o.Novel()))
}
