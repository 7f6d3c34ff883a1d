package usage

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"z-novel-writer/internal/domain/service"
	"z-novel-writer/pkg/logger"
)

// Totals 单本小说累计用量
type Totals struct {
	Calls            int `json:"calls"`
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	DurationMs       int `json:"duration_ms"`
}

// Ledger 进程内按小说累计 LLM 用量
type Ledger struct {
	mu     sync.RWMutex
	totals map[string]Totals
}

var _ service.LLMUsageRecorder = (*Ledger)(nil)

func NewLedger() *Ledger {
	return &Ledger{totals: make(map[string]Totals)}
}

func (l *Ledger) Record(ctx context.Context, in service.LLMUsageInput) error {
	if l == nil {
		return nil
	}
	if in.PromptTokens < 0 || in.CompletionTokens < 0 {
		return fmt.Errorf("invalid token usage")
	}

	logger.Debug(ctx, "llm usage",
		"workflow", strings.TrimSpace(in.Workflow),
		"provider", strings.TrimSpace(in.Provider),
		"model", strings.TrimSpace(in.Model),
		"prompt_tokens", in.PromptTokens,
		"completion_tokens", in.CompletionTokens,
		"duration_ms", in.DurationMs,
	)

	novelID := strings.TrimSpace(in.NovelID)
	if novelID == "" {
		return nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	t := l.totals[novelID]
	t.Calls++
	t.PromptTokens += in.PromptTokens
	t.CompletionTokens += in.CompletionTokens
	t.DurationMs += in.DurationMs
	l.totals[novelID] = t
	return nil
}

// Totals 返回累计用量，没有记录时为零值
func (l *Ledger) Totals(novelID string) Totals {
	if l == nil {
		return Totals{}
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.totals[novelID]
}

// Forget 删除小说时清理累计
func (l *Ledger) Forget(novelID string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	delete(l.totals, novelID)
	l.mu.Unlock()
}
