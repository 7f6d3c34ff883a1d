// Package router 提供 HTTP 路由配置
package router

import (
	"github.com/gin-gonic/gin"
)

// RegisterV1Routes 注册 v1 版本路由；llmLimit 挂在会调用 LLM 的接口上
func RegisterV1Routes(v1 *gin.RouterGroup, h *Handlers, llmLimit gin.HandlerFunc) {
	// 小说管理
	novels := v1.Group("/novels")
	{
		novels.GET("", h.Novel.ListNovels)
		novels.POST("", h.Novel.CreateNovel)
		novels.POST("/import", h.Novel.ImportNovel)
		novels.GET("/:nid", h.Novel.GetNovel)
		novels.PUT("/:nid", h.Novel.ReplaceNovel)
		novels.PATCH("/:nid", h.Novel.PatchNovel)
		novels.DELETE("/:nid", h.Novel.DeleteNovel)

		novels.PUT("/:nid/requirements", h.Novel.SetRequirements)
		novels.PUT("/:nid/model", h.Novel.SetModel)
		novels.GET("/:nid/usage", h.Novel.GetUsage)

		// 导出
		novels.GET("/:nid/export/json", h.Novel.ExportJSON)
		novels.POST("/:nid/export/markdown", h.Novel.ExportMarkdown)

		// 生成
		novels.POST("/:nid/overview", llmLimit, h.Generation.GenerateOverview)
		novels.POST("/:nid/chapters/generate", llmLimit, h.Generation.GenerateChapters)
		novels.POST("/:nid/chapters/:cidx/sections/generate", llmLimit, h.Generation.GenerateSections)
		novels.POST("/:nid/chapters/:cidx/sections/:sidx/content", llmLimit, h.Generation.WriteSectionContent)

		// 角色
		novels.POST("/:nid/characters", h.Edit.AddCharacter)
		novels.PUT("/:nid/characters/:chid", h.Edit.UpdateCharacter)
		novels.DELETE("/:nid/characters/:chid", h.Edit.RemoveCharacter)

		// 章节与小节
		novels.POST("/:nid/chapters", h.Edit.InsertChapter)
		novels.DELETE("/:nid/chapters/:cidx", h.Edit.RemoveChapter)
		novels.POST("/:nid/chapters/:cidx/sections", h.Edit.InsertSection)
		novels.DELETE("/:nid/chapters/:cidx/sections/:sidx", h.Edit.RemoveSection)

		// 后台任务
		novels.POST("/:nid/jobs", llmLimit, h.Job.CreateJob)
		novels.GET("/:nid/jobs", h.Job.ListNovelJobs)
	}

	// 任务管理
	jobs := v1.Group("/jobs")
	{
		jobs.GET("/:jid", h.Job.GetJob)
	}

	// 翻译
	translations := v1.Group("/translations")
	{
		translations.GET("/languages", h.Translation.Languages)
		translations.POST("", llmLimit, h.Translation.Translate)
		translations.POST("/retry", llmLimit, h.Translation.RetryTranslation)
		translations.POST("/stream", llmLimit, h.Translation.TranslateStream)
	}

	// 模型目录
	v1.GET("/models", h.Model.ListModels)
}
