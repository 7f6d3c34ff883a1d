package handler

import (
	"github.com/gin-gonic/gin"

	"z-novel-writer/internal/application/novel"
	"z-novel-writer/internal/interfaces/http/dto"
)

// EditHandler 手动编辑角色、章节与小节
type EditHandler struct {
	novels *novel.Service
}

// NewEditHandler 创建编辑处理器
func NewEditHandler(novels *novel.Service) *EditHandler {
	return &EditHandler{novels: novels}
}

// AddCharacter 追加角色
// @Summary 添加角色
// @Tags Characters
// @Accept json
// @Produce json
// @Param nid path string true "小说 ID"
// @Param body body dto.CharacterRequest true "角色"
// @Success 201 {object} dto.Response[entity.Character]
// @Failure 409 {object} dto.ErrorResponse "角色名重复"
// @Router /v1/novels/{nid}/characters [post]
func (h *EditHandler) AddCharacter(c *gin.Context) {
	ctx := c.Request.Context()
	var req dto.CharacterRequest
	if !bindJSON(c, &req) {
		return
	}

	o, err := h.novels.Get(ctx, dto.BindNovelID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	ch, err := o.AddCharacter(ctx, req.Name, req.Description)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Created(c, ch)
}

// UpdateCharacter 修改角色
// @Summary 修改角色
// @Tags Characters
// @Accept json
// @Produce json
// @Param nid path string true "小说 ID"
// @Param chid path string true "角色 ID"
// @Param body body dto.CharacterRequest true "角色"
// @Success 200 {object} dto.Response[dto.NovelResponse]
// @Router /v1/novels/{nid}/characters/{chid} [put]
func (h *EditHandler) UpdateCharacter(c *gin.Context) {
	ctx := c.Request.Context()
	var req dto.CharacterRequest
	if !bindJSON(c, &req) {
		return
	}

	o, err := h.novels.Get(ctx, dto.BindNovelID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	if err := o.UpdateCharacter(ctx, dto.BindCharacterID(c), req.Name, req.Description); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToNovelResponse(o))
}

// RemoveCharacter 删除角色及其状态
// @Summary 删除角色
// @Tags Characters
// @Param nid path string true "小说 ID"
// @Param chid path string true "角色 ID"
// @Success 204
// @Router /v1/novels/{nid}/characters/{chid} [delete]
func (h *EditHandler) RemoveCharacter(c *gin.Context) {
	ctx := c.Request.Context()
	o, err := h.novels.Get(ctx, dto.BindNovelID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	if err := o.RemoveCharacter(ctx, dto.BindCharacterID(c)); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.NoContent(c)
}

// InsertChapter 插入空章节
// @Summary 插入章节
// @Tags Chapters
// @Accept json
// @Produce json
// @Param nid path string true "小说 ID"
// @Param body body dto.InsertRequest true "位置与内容"
// @Success 201 {object} dto.Response[entity.Chapter]
// @Router /v1/novels/{nid}/chapters [post]
func (h *EditHandler) InsertChapter(c *gin.Context) {
	ctx := c.Request.Context()
	var req dto.InsertRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	o, err := h.novels.Get(ctx, dto.BindNovelID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	at := len(o.Novel().Chapters)
	if req.At != nil {
		at = *req.At
	}
	ch, err := o.InsertChapter(ctx, at, req.Title, req.Overview)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Created(c, ch)
}

// RemoveChapter 删除章节
// @Summary 删除章节
// @Tags Chapters
// @Param nid path string true "小说 ID"
// @Param cidx path int true "章节下标"
// @Success 204
// @Router /v1/novels/{nid}/chapters/{cidx} [delete]
func (h *EditHandler) RemoveChapter(c *gin.Context) {
	ctx := c.Request.Context()
	ci, err := dto.BindIndex(c, "cidx")
	if err != nil {
		dto.Fail(c, err)
		return
	}

	o, err := h.novels.Get(ctx, dto.BindNovelID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	if err := o.RemoveChapter(ctx, ci); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.NoContent(c)
}

// InsertSection 在章节内插入空小节
// @Summary 插入小节
// @Tags Chapters
// @Accept json
// @Produce json
// @Param nid path string true "小说 ID"
// @Param cidx path int true "章节下标"
// @Param body body dto.InsertRequest true "位置与内容"
// @Success 201 {object} dto.Response[entity.Section]
// @Router /v1/novels/{nid}/chapters/{cidx}/sections [post]
func (h *EditHandler) InsertSection(c *gin.Context) {
	ctx := c.Request.Context()
	ci, err := dto.BindIndex(c, "cidx")
	if err != nil {
		dto.Fail(c, err)
		return
	}
	var req dto.InsertRequest
	if !bindOptionalJSON(c, &req) {
		return
	}

	o, err := h.novels.Get(ctx, dto.BindNovelID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	at := 0
	if req.At != nil {
		at = *req.At
	} else if n := o.Novel(); n.HasChapter(ci) {
		at = len(n.Chapters[ci].Sections)
	}
	sec, err := o.InsertSection(ctx, ci, at, req.Title, req.Overview)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Created(c, sec)
}

// RemoveSection 删除小节
// @Summary 删除小节
// @Tags Chapters
// @Param nid path string true "小说 ID"
// @Param cidx path int true "章节下标"
// @Param sidx path int true "小节下标"
// @Success 204
// @Router /v1/novels/{nid}/chapters/{cidx}/sections/{sidx} [delete]
func (h *EditHandler) RemoveSection(c *gin.Context) {
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

	o, err := h.novels.Get(ctx, dto.BindNovelID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	if err := o.RemoveSection(ctx, ci, si); err != nil {
		dto.Fail(c, err)
		return
	}
	dto.NoContent(c)
}
