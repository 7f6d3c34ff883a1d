// Package handler 提供 HTTP 请求处理器
package handler

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"

	"github.com/gin-gonic/gin"

	"z-novel-writer/internal/interfaces/http/dto"
	"z-novel-writer/pkg/errors"
)

// ModelCatalog 已配置的 LLM 提供商与模型
type ModelCatalog interface {
	DefaultProvider() string
	Providers() []string
	Models(provider string) ([]string, error)
	DefaultModel(provider string) string
}

// resolveProviderModel 校验 Provider 和 Model。
// 两者都为空时返回空串，由下游使用默认配置；只给 model 时落到默认提供商。
func resolveProviderModel(catalog ModelCatalog, provider, model string) (string, string, error) {
	p := strings.TrimSpace(provider)
	m := strings.TrimSpace(model)
	if p == "" && m == "" {
		return "", "", nil
	}
	if catalog == nil {
		return "", "", errors.ErrServiceUnavailable.WithDetail("llm catalog not configured")
	}

	if p == "" {
		p = strings.TrimSpace(catalog.DefaultProvider())
	}
	if p == "" {
		return "", "", errors.ErrInvalidParam.WithDetail("llm provider not specified")
	}
	if len(p) > 32 {
		return "", "", errors.ErrInvalidParam.WithDetail("llm provider too long")
	}
	if _, err := catalog.Models(p); err != nil {
		return "", "", errors.ErrInvalidParam.WithDetail(fmt.Sprintf("llm provider not found: %s", p))
	}

	if m == "" {
		m = catalog.DefaultModel(p)
	}
	if len(m) > 64 {
		return "", "", errors.ErrInvalidParam.WithDetail("llm model too long")
	}
	return p, m, nil
}

// bindJSON 绑定请求体，失败时输出 400
func bindJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// bindOptionalJSON 允许空请求体
func bindOptionalJSON(c *gin.Context, req any) bool {
	if err := c.ShouldBindJSON(req); err != nil && !stderrors.Is(err, io.EOF) {
		dto.BadRequest(c, "invalid request body: "+err.Error())
		return false
	}
	return true
}
