package model

import "time"

// CallOptions 单次 LLM 调用的模型选择与采样参数
type CallOptions struct {
	Provider    string   `json:"provider,omitempty"`
	Model       string   `json:"model,omitempty"`
	Temperature *float32 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
}

// LLMUsageMeta 调用元信息
type LLMUsageMeta struct {
	Provider         string
	Model            string
	PromptTokens     int
	CompletionTokens int
	Temperature      float64
	GeneratedAt      time.Time
}

// Replay 反馈修订：上一轮输出作为 assistant 消息，反馈作为新的 user 消息；
// Previous 为空时只追加反馈
type Replay struct {
	Previous string
	Feedback string
}

// Active 是否需要回放
func (r *Replay) Active() bool {
	return r != nil && r.Feedback != ""
}
