package dto

import (
	"fmt"

	"z-novel-writer/internal/application/translation"
)

// TranslateRequest 翻译请求，text 与 url 二选一
type TranslateRequest struct {
	Text           string `json:"text"`
	URL            string `json:"url"`
	TargetLanguage string `json:"target_language"`
	Provider       string `json:"provider,omitempty"`
	Model          string `json:"model,omitempty"`
}

// TranslateResponse 翻译结果。存在失败分块时附带原文与译文分块，
// 客户端可原样提交到重试接口。
type TranslateResponse struct {
	Text           string                     `json:"text"`
	Title          string                     `json:"title,omitempty"`
	TargetLanguage string                     `json:"target_language"`
	Chunks         int                        `json:"chunks"`
	Complete       bool                       `json:"complete"`
	Failures       []translation.ChunkFailure `json:"failures,omitempty"`
	Sources        []string                   `json:"sources,omitempty"`
	Parts          []string                   `json:"parts,omitempty"`
}

// ToTranslateResponse 从引擎结果构建响应
func ToTranslateResponse(res *translation.Result, title string) *TranslateResponse {
	resp := &TranslateResponse{
		Text:           res.Text,
		Title:          title,
		TargetLanguage: res.TargetLanguage,
		Chunks:         res.Chunks,
		Complete:       res.Complete(),
		Failures:       res.Failures,
	}
	if !resp.Complete {
		resp.Sources = res.Sources
		resp.Parts = res.Parts
	}
	return resp
}

// RetryTranslationRequest 重试失败分块
type RetryTranslationRequest struct {
	TargetLanguage string   `json:"target_language" binding:"required"`
	Provider       string   `json:"provider,omitempty"`
	Model          string   `json:"model,omitempty"`
	Sources        []string `json:"sources" binding:"required"`
	Parts          []string `json:"parts" binding:"required"`
	Failed         []int    `json:"failed" binding:"required"`
}

// ToResult 还原上次的翻译结果
func (r *RetryTranslationRequest) ToResult() (*translation.Result, error) {
	if len(r.Sources) != len(r.Parts) {
		return nil, fmt.Errorf("sources and parts length mismatch: %d != %d", len(r.Sources), len(r.Parts))
	}
	failures := make([]translation.ChunkFailure, 0, len(r.Failed))
	for _, i := range r.Failed {
		if i < 0 || i >= len(r.Sources) {
			return nil, fmt.Errorf("failed chunk index %d out of range [0, %d)", i, len(r.Sources))
		}
		failures = append(failures, translation.ChunkFailure{ChunkIndex: i})
	}
	return &translation.Result{
		Chunks:         len(r.Sources),
		Failures:       failures,
		Parts:          r.Parts,
		Sources:        r.Sources,
		TargetLanguage: r.TargetLanguage,
		Provider:       r.Provider,
		Model:          r.Model,
	}, nil
}

// LanguagesResponse 可选目标语言
type LanguagesResponse struct {
	Languages []string `json:"languages"`
	Default   string   `json:"default"`
}

// ProviderModels 单个提供商的可选模型
type ProviderModels struct {
	Provider     string   `json:"provider"`
	DefaultModel string   `json:"default_model"`
	Models       []string `json:"models"`
}

// ModelsResponse 模型目录
type ModelsResponse struct {
	DefaultProvider string            `json:"default_provider"`
	Providers       []*ProviderModels `json:"providers"`
}
