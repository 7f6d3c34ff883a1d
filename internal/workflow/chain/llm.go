package chain

import (
	"context"
	"fmt"
	"strings"
	"sync"

	openaiopts "github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"
	"github.com/cloudwego/eino/schema"

	llmctx "z-novel-writer/internal/domain/service"
	wfmodel "z-novel-writer/internal/workflow/model"
	wfnode "z-novel-writer/internal/workflow/node"
	workflowport "z-novel-writer/internal/workflow/port"
	workflowprompt "z-novel-writer/internal/workflow/prompt"
	"z-novel-writer/pkg/logger"
)

// llmCall 一次模板化 LLM 调用的完整描述
type llmCall struct {
	Workflow string
	PromptID workflowprompt.PromptID
	Vars     map[string]any
	Options  wfmodel.CallOptions
	Replay   *wfmodel.Replay

	// SchemaName 为空时不附带 response_format
	SchemaName string
	Schema     map[string]any
}

type llmCallState struct {
	Call     *llmCall
	Messages []*schema.Message
	OutMsg   *schema.Message
}

// llmRunner 编排 init -> template -> llm -> finalize，所有 chain 共用
type llmRunner struct {
	factory workflowport.ChatModelFactory
	prompts *workflowprompt.Registry

	chainOnce sync.Once
	chain     compose.Runnable[*llmCall, *schema.Message]
	chainErr  error
}

var defaultPromptRegistry = workflowprompt.NewRegistry()

func newLLMRunner(factory workflowport.ChatModelFactory) *llmRunner {
	return &llmRunner{factory: factory, prompts: defaultPromptRegistry}
}

func (r *llmRunner) invoke(ctx context.Context, call *llmCall) (*schema.Message, error) {
	if r == nil || r.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if call == nil {
		return nil, fmt.Errorf("input is nil")
	}

	chain, err := r.getChain()
	if err != nil {
		return nil, err
	}
	return chain.Invoke(ctx, call)
}

// stream 返回 Eino StreamReader；调用方负责 Close()。
// 约定：流可能在最后返回一个 Content 为空但包含 Usage 的消息，用于 Token 统计。
func (r *llmRunner) stream(ctx context.Context, call *llmCall) (*schema.StreamReader[*schema.Message], error) {
	if r == nil || r.factory == nil {
		return nil, fmt.Errorf("llm factory not configured")
	}
	if call == nil {
		return nil, fmt.Errorf("input is nil")
	}

	provider := strings.TrimSpace(call.Options.Provider)
	ctx = llmctx.WithWorkflowProvider(ctx, call.Workflow+"_stream", provider)
	chatModel, err := r.factory.Get(ctx, provider)
	if err != nil {
		return nil, err
	}

	msgs, err := r.formatMessages(ctx, call)
	if err != nil {
		return nil, err
	}

	reader, err := chatModel.Stream(ctx, msgs, buildModelOptions(call, true)...)
	if err != nil && call.SchemaName != "" && wfnode.IsResponseFormatUnsupportedError(err) {
		if reader != nil {
			reader.Close()
		}
		logger.Warn(ctx, "llm json_schema not supported for stream, fallback to prompt-only",
			"workflow", call.Workflow,
			"provider", provider,
			"model", strings.TrimSpace(call.Options.Model),
			"error", err.Error(),
		)
		return chatModel.Stream(ctx, msgs, buildModelOptions(call, false)...)
	}
	return reader, err
}

func (r *llmRunner) getChain() (compose.Runnable[*llmCall, *schema.Message], error) {
	r.chainOnce.Do(func() {
		r.chain, r.chainErr = r.buildChain(context.Background())
	})
	return r.chain, r.chainErr
}

func (r *llmRunner) buildChain(ctx context.Context) (compose.Runnable[*llmCall, *schema.Message], error) {
	chain := compose.NewChain[*llmCall, *schema.Message]()

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, call *llmCall) (*llmCallState, error) {
			if call == nil {
				return nil, fmt.Errorf("input is nil")
			}
			if call.PromptID == "" {
				return nil, fmt.Errorf("prompt id is required")
			}
			return &llmCallState{Call: call}, nil
		}),
		compose.WithNodeName("llm.init"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *llmCallState) (*llmCallState, error) {
			if st == nil || st.Call == nil {
				return nil, fmt.Errorf("state is nil")
			}
			msgs, err := r.formatMessages(ctx, st.Call)
			if err != nil {
				return nil, err
			}
			st.Messages = msgs
			return st, nil
		}),
		compose.WithNodeName("llm.template"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(ctx context.Context, st *llmCallState) (*llmCallState, error) {
			if st == nil || st.Call == nil {
				return nil, fmt.Errorf("state is nil")
			}
			call := st.Call
			provider := strings.TrimSpace(call.Options.Provider)

			ctx = llmctx.WithWorkflowProvider(ctx, call.Workflow, provider)
			chatModel, err := r.factory.Get(ctx, provider)
			if err != nil {
				return nil, err
			}

			outMsg, err := chatModel.Generate(ctx, st.Messages, buildModelOptions(call, true)...)
			if err != nil && call.SchemaName != "" && wfnode.IsResponseFormatUnsupportedError(err) {
				logger.Warn(ctx, "llm json_schema not supported, fallback to prompt-only",
					"workflow", call.Workflow,
					"provider", provider,
					"model", strings.TrimSpace(call.Options.Model),
					"error", err.Error(),
				)
				outMsg, err = chatModel.Generate(ctx, st.Messages, buildModelOptions(call, false)...)
			}
			if err != nil {
				return nil, err
			}
			if outMsg == nil {
				return nil, fmt.Errorf("empty llm response")
			}
			st.OutMsg = outMsg
			return st, nil
		}),
		compose.WithNodeName("llm.generate"),
	)

	chain.AppendLambda(
		compose.InvokableLambda(func(_ context.Context, st *llmCallState) (*schema.Message, error) {
			if st == nil || st.OutMsg == nil {
				return nil, fmt.Errorf("state is nil")
			}
			return st.OutMsg, nil
		}),
		compose.WithNodeName("llm.finalize"),
	)

	return chain.Compile(ctx)
}

// formatMessages 渲染模板；反馈修订时追加上一轮输出与反馈
func (r *llmRunner) formatMessages(ctx context.Context, call *llmCall) ([]*schema.Message, error) {
	tpl, err := r.prompts.ChatTemplate(call.PromptID)
	if err != nil {
		return nil, err
	}
	msgs, err := tpl.Format(ctx, call.Vars)
	if err != nil {
		return nil, err
	}
	if call.Replay.Active() {
		if call.Replay.Previous != "" {
			msgs = append(msgs, schema.AssistantMessage(call.Replay.Previous, nil))
		}
		msgs = append(msgs, schema.UserMessage(call.Replay.Feedback))
	}
	return msgs, nil
}

func buildModelOptions(call *llmCall, enableSchema bool) []model.Option {
	opts := make([]model.Option, 0, 4)
	if call == nil {
		return opts
	}
	in := call.Options

	if in.Temperature != nil {
		opts = append(opts, model.WithTemperature(*in.Temperature))
	}
	if in.MaxTokens != nil {
		opts = append(opts, model.WithMaxTokens(*in.MaxTokens))
	}
	if m := strings.TrimSpace(in.Model); m != "" {
		opts = append(opts, model.WithModel(m))
	}

	if enableSchema && call.SchemaName != "" && call.Schema != nil {
		opts = append(opts, openaiopts.WithExtraFields(map[string]any{
			"response_format": map[string]any{
				"type": "json_schema",
				"json_schema": map[string]any{
					"name":   call.SchemaName,
					"strict": false,
					"schema": call.Schema,
				},
			},
		}))
	}

	return opts
}

// UsageOf 读取响应中的 token 用量
func UsageOf(msg *schema.Message) (promptTokens, completionTokens int) {
	if msg == nil || msg.ResponseMeta == nil || msg.ResponseMeta.Usage == nil {
		return 0, 0
	}
	return msg.ResponseMeta.Usage.PromptTokens, msg.ResponseMeta.Usage.CompletionTokens
}
