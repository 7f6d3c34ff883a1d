package handler

import (
	"github.com/gin-gonic/gin"

	"z-novel-writer/internal/interfaces/http/dto"
)

// ModelHandler 模型目录处理器
type ModelHandler struct {
	catalog ModelCatalog
}

// NewModelHandler 创建模型目录处理器
func NewModelHandler(catalog ModelCatalog) *ModelHandler {
	return &ModelHandler{catalog: catalog}
}

// ListModels 列出已配置的提供商与模型
// @Summary 模型列表
// @Tags System
// @Produce json
// @Success 200 {object} dto.Response[dto.ModelsResponse]
// @Router /v1/models [get]
func (h *ModelHandler) ListModels(c *gin.Context) {
	resp := &dto.ModelsResponse{
		DefaultProvider: h.catalog.DefaultProvider(),
		Providers:       []*dto.ProviderModels{},
	}
	for _, p := range h.catalog.Providers() {
		models, err := h.catalog.Models(p)
		if err != nil {
			continue
		}
		resp.Providers = append(resp.Providers, &dto.ProviderModels{
			Provider:     p,
			DefaultModel: h.catalog.DefaultModel(p),
			Models:       models,
		})
	}
	dto.Success(c, resp)
}
