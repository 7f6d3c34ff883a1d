package dto

import (
	"github.com/tidwall/gjson"

	"z-novel-writer/internal/application/novel"
	"z-novel-writer/internal/domain/entity"
)

// CreateNovelRequest 创建小说请求，所有字段可选
type CreateNovelRequest struct {
	PlotRequirements    string `json:"plot_requirements"`
	WritingRequirements string `json:"writing_requirements"`
	Provider            string `json:"provider,omitempty"`
	Model               string `json:"model,omitempty"`
}

// RequirementsRequest 设置创作要求
type RequirementsRequest struct {
	PlotRequirements    string `json:"plot_requirements"`
	WritingRequirements string `json:"writing_requirements"`
}

// ModelRequest 切换模型
type ModelRequest struct {
	Provider string `json:"provider"`
	Model    string `json:"model"`
}

// NovelResponse 小说详情
type NovelResponse struct {
	ID         string        `json:"id"`
	Version    int           `json:"version"`
	CreateTime string        `json:"create_time,omitempty"`
	UpdateTime string        `json:"update_time,omitempty"`
	Provider   string        `json:"provider,omitempty"`
	Model      string        `json:"model,omitempty"`
	Novel      *entity.Novel `json:"novel"`
}

// ToNovelResponse 从编排器构建响应
func ToNovelResponse(o *novel.Orchestrator) *NovelResponse {
	opts := o.Options()
	resp := &NovelResponse{
		ID:       o.ID(),
		Provider: opts.Provider,
		Model:    opts.Model,
		Novel:    o.Novel(),
	}
	if rec := o.Record(); rec != nil {
		resp.Version = rec.Version
		resp.CreateTime = rec.CreateTime
		resp.UpdateTime = rec.UpdateTime
	}
	return resp
}

// NovelSummary 历史列表项
type NovelSummary struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Language     string `json:"language,omitempty"`
	ChapterCount int    `json:"chapter_count"`
	Version      int    `json:"version"`
	CreateTime   string `json:"create_time"`
	UpdateTime   string `json:"update_time"`
}

// ToNovelSummaries 从记录中读取摘要字段，不做完整解码
func ToNovelSummaries(records []*entity.NovelRecord) []*NovelSummary {
	out := make([]*NovelSummary, 0, len(records))
	for _, rec := range records {
		fields := gjson.GetMany(rec.StateJSON, "title", "language", "chapters.#")
		out = append(out, &NovelSummary{
			ID:           rec.ID,
			Title:        fields[0].String(),
			Language:     fields[1].String(),
			ChapterCount: int(fields[2].Int()),
			Version:      rec.Version,
			CreateTime:   rec.CreateTime,
			UpdateTime:   rec.UpdateTime,
		})
	}
	return out
}

// GenerateOverviewRequest 生成概要请求
type GenerateOverviewRequest struct {
	PlotRequirements    string `json:"plot_requirements" binding:"required"`
	WritingRequirements string `json:"writing_requirements"`
}

// GenerateChaptersRequest 规划章节请求
type GenerateChaptersRequest struct {
	Count         int    `json:"count"`
	Feedback      string `json:"feedback"`
	ResetSections bool   `json:"reset_sections"`
}

// ToPlanRequest 转为编排器参数
func (r *GenerateChaptersRequest) ToPlanRequest() novel.ChapterPlanRequest {
	return novel.ChapterPlanRequest{Count: r.Count, Feedback: r.Feedback, ResetSections: r.ResetSections}
}

// GenerateSectionsRequest 规划小节请求
type GenerateSectionsRequest struct {
	Count        int    `json:"count"`
	Feedback     string `json:"feedback"`
	ResetContent bool   `json:"reset_content"`
}

// ToPlanRequest 转为编排器参数
func (r *GenerateSectionsRequest) ToPlanRequest() novel.SectionPlanRequest {
	return novel.SectionPlanRequest{Count: r.Count, Feedback: r.Feedback, ResetContent: r.ResetContent}
}

// WriteContentRequest 生成正文请求
type WriteContentRequest struct {
	Feedback string `json:"feedback"`
}

// ContentResponse 正文生成结果，after_state 同时给出角色名便于展示
type ContentResponse struct {
	Content      string                           `json:"content"`
	AfterState   map[string]entity.CharacterState `json:"after_state"`
	Names        map[string]string                `json:"names"`
	DroppedNames []string                         `json:"dropped_names,omitempty"`
}

// ToContentResponse 构建正文响应
func ToContentResponse(res *novel.ContentResult, n *entity.Novel) *ContentResponse {
	names := make(map[string]string, len(res.AfterState))
	all := n.CharacterNames()
	for id := range res.AfterState {
		names[id] = all[id]
	}
	return &ContentResponse{
		Content:      res.Content,
		AfterState:   res.AfterState,
		Names:        names,
		DroppedNames: res.DroppedNames,
	}
}

// InsertRequest 插入章节或小节，At 为空时追加到末尾
type InsertRequest struct {
	At       *int   `json:"at"`
	Title    string `json:"title"`
	Overview string `json:"overview"`
}

// CharacterRequest 新增或修改角色
type CharacterRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// MarkdownResponse 导出结果
type MarkdownResponse struct {
	Markdown string `json:"markdown"`
}
