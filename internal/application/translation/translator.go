package translation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	workflowchain "z-novel-writer/internal/workflow/chain"
	wfmodel "z-novel-writer/internal/workflow/model"
	workflowport "z-novel-writer/internal/workflow/port"
)

// ChunkRequest 单个分块的翻译参数
type ChunkRequest struct {
	Text           string
	TargetLanguage string
	Provider       string
	Model          string
}

// ChunkTranslator 分块翻译端口
type ChunkTranslator interface {
	// TranslateChunk 一次性返回译文
	TranslateChunk(ctx context.Context, req ChunkRequest) (string, error)
	// StreamChunk 逐片段回调 emit，返回完整译文
	StreamChunk(ctx context.Context, req ChunkRequest, emit EmitFunc) (string, error)
}

// LLMTranslator 基于 TranslateChain 的实现
type LLMTranslator struct {
	chain *workflowchain.TranslateChain
}

var _ ChunkTranslator = (*LLMTranslator)(nil)

func NewLLMTranslator(factory workflowport.ChatModelFactory) *LLMTranslator {
	return &LLMTranslator{chain: workflowchain.NewTranslateChain(factory)}
}

func (t *LLMTranslator) TranslateChunk(ctx context.Context, req ChunkRequest) (string, error) {
	msg, err := t.chain.Invoke(ctx, translateInput(req))
	if err != nil {
		return "", err
	}
	if msg == nil {
		return "", fmt.Errorf("empty llm response")
	}
	return msg.Content, nil
}

func (t *LLMTranslator) StreamChunk(ctx context.Context, req ChunkRequest, emit EmitFunc) (string, error) {
	reader, err := t.chain.Stream(ctx, translateInput(req))
	if err != nil {
		return "", err
	}
	defer reader.Close()

	var sb strings.Builder
	for {
		msg, err := reader.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return sb.String(), err
		}
		if msg == nil || msg.Content == "" {
			continue
		}
		sb.WriteString(msg.Content)
		if emit != nil {
			if err := emit(msg.Content); err != nil {
				return sb.String(), err
			}
		}
	}
	return sb.String(), nil
}

func translateInput(req ChunkRequest) *wfmodel.TranslateInput {
	return &wfmodel.TranslateInput{
		CallOptions: wfmodel.CallOptions{
			Provider: req.Provider,
			Model:    req.Model,
		},
		TargetLanguage: req.TargetLanguage,
		Text:           req.Text,
	}
}
