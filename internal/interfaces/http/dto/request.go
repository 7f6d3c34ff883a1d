package dto

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"z-novel-writer/pkg/errors"
)

// PageRequest 分页请求参数，PageSize 为 0 时使用服务端默认值
type PageRequest struct {
	Page     int `form:"page" json:"page"`
	PageSize int `form:"page_size" json:"page_size"`
}

// BindPage 从查询参数绑定分页
func BindPage(c *gin.Context) PageRequest {
	req := PageRequest{
		Page:     parseIntWithDefault(c.Query("page"), 1),
		PageSize: parseIntWithDefault(c.Query("page_size"), 0),
	}
	if req.Page < 1 {
		req.Page = 1
	}
	if req.PageSize < 0 {
		req.PageSize = 0
	}
	return req
}

// BindLimit 绑定 limit 查询参数，限制在 [1, 100]
func BindLimit(c *gin.Context, defaultVal int) int {
	limit := parseIntWithDefault(c.Query("limit"), defaultVal)
	if limit < 1 {
		return defaultVal
	}
	return min(limit, 100)
}

// parseIntWithDefault 解析整数，失败时返回默认值
func parseIntWithDefault(s string, defaultVal int) int {
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return defaultVal
	}
	return v
}

// BindNovelID 从 URI 绑定小说 ID
func BindNovelID(c *gin.Context) string {
	return c.Param("nid")
}

// BindJobID 从 URI 绑定任务 ID
func BindJobID(c *gin.Context) string {
	return c.Param("jid")
}

// BindCharacterID 从 URI 绑定角色 ID
func BindCharacterID(c *gin.Context) string {
	return c.Param("chid")
}

// BindIndex 从 URI 绑定下标，越界由编排器判定
func BindIndex(c *gin.Context, name string) (int, error) {
	raw := c.Param(name)
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.ErrInvalidParam.WithDetail(name + " must be an integer, got " + strconv.Quote(raw))
	}
	return v, nil
}
