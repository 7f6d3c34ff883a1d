package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	wfmodel "z-novel-writer/internal/workflow/model"
	workflowport "z-novel-writer/internal/workflow/port"
	workflowprompt "z-novel-writer/internal/workflow/prompt"
)

type TranslateChain struct {
	runner *llmRunner
}

func NewTranslateChain(factory workflowport.ChatModelFactory) *TranslateChain {
	return &TranslateChain{runner: newLLMRunner(factory)}
}

func (c *TranslateChain) Invoke(ctx context.Context, in *wfmodel.TranslateInput) (*schema.Message, error) {
	call, err := translateCall(in)
	if err != nil {
		return nil, err
	}
	return c.runner.invoke(ctx, call)
}

// Stream 返回 Eino StreamReader；调用方负责 Close()。
func (c *TranslateChain) Stream(ctx context.Context, in *wfmodel.TranslateInput) (*schema.StreamReader[*schema.Message], error) {
	call, err := translateCall(in)
	if err != nil {
		return nil, err
	}
	return c.runner.stream(ctx, call)
}

func translateCall(in *wfmodel.TranslateInput) (*llmCall, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.TargetLanguage) == "" {
		return nil, fmt.Errorf("target language is required")
	}
	return &llmCall{
		Workflow: "translate",
		PromptID: workflowprompt.PromptTranslateV1,
		Vars: map[string]any{
			"target_language": strings.TrimSpace(in.TargetLanguage),
			"text":            in.Text,
		},
		Options: in.CallOptions,
	}, nil
}
