package eino

import (
	"context"
	"errors"
	"io"
	"time"

	einocb "github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	cbtemplate "github.com/cloudwego/eino/utils/callbacks"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	llmctx "z-novel-writer/internal/domain/service"
	"z-novel-writer/pkg/logger"
	"z-novel-writer/pkg/metrics"
)

// startTimeKey 在 OnStart 写入，OnEnd/OnError 计算耗时
type startTimeKey struct{}

type modelNameKey struct{}

// newChatModelCallbackHandler 记录每次模型调用的次数、耗时、Token 与追踪信息，
// recorder 为空时只上报指标。
func newChatModelCallbackHandler(recorder llmctx.LLMUsageRecorder) *cbtemplate.ModelCallbackHandler {
	return &cbtemplate.ModelCallbackHandler{
		OnStart: func(ctx context.Context, info *einocb.RunInfo, input *model.CallbackInput) context.Context {
			ctx = context.WithValue(ctx, startTimeKey{}, time.Now())

			modelName := modelNameFromInput(input)
			ctx = context.WithValue(ctx, modelNameKey{}, modelName)

			attrs := []attribute.KeyValue{
				attribute.String("eino.workflow", llmctx.WorkflowFromContext(ctx)),
				attribute.String("llm.provider", llmctx.ProviderFromContext(ctx)),
				attribute.String("llm.model", modelName),
			}
			if info != nil {
				attrs = append(attrs,
					attribute.String("eino.node_name", info.Name),
					attribute.String("eino.type", info.Type),
				)
			}

			ctx, _ = otel.Tracer("eino").Start(ctx, "llm.generate", trace.WithAttributes(attrs...))
			return ctx
		},

		OnEnd: func(ctx context.Context, _ *einocb.RunInfo, output *model.CallbackOutput) context.Context {
			var usage *model.TokenUsage
			modelName := modelNameFromContext(ctx)
			if output != nil {
				usage = output.TokenUsage
				if output.Config != nil && output.Config.Model != "" {
					modelName = output.Config.Model
				}
			}
			finishCall(ctx, recorder, modelName, usage)
			return ctx
		},

		OnEndWithStreamOutput: func(ctx context.Context, _ *einocb.RunInfo, output *schema.StreamReader[*model.CallbackOutput]) context.Context {
			go drainStream(ctx, recorder, output)
			return ctx
		},

		OnError: func(ctx context.Context, _ *einocb.RunInfo, err error) context.Context {
			workflow := llmctx.WorkflowFromContext(ctx)
			provider := llmctx.ProviderFromContext(ctx)
			modelName := modelNameFromContext(ctx)

			metrics.LLMCallTotal.WithLabelValues(workflow, provider, modelName, "error").Inc()
			if d := elapsedSeconds(ctx); d > 0 {
				metrics.LLMCallDuration.WithLabelValues(workflow, provider, modelName).Observe(d)
			}

			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			span.End()
			return ctx
		},
	}
}

// drainStream 读完回调流副本，最后一个带 Usage 的分片用于计量
func drainStream(ctx context.Context, recorder llmctx.LLMUsageRecorder, output *schema.StreamReader[*model.CallbackOutput]) {
	if output == nil {
		finishCall(ctx, recorder, modelNameFromContext(ctx), nil)
		return
	}
	defer output.Close()

	modelName := modelNameFromContext(ctx)
	var usage *model.TokenUsage
	for {
		chunk, err := output.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			span := trace.SpanFromContext(ctx)
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			break
		}
		if chunk == nil {
			continue
		}
		if chunk.TokenUsage != nil {
			usage = chunk.TokenUsage
		}
		if chunk.Config != nil && chunk.Config.Model != "" {
			modelName = chunk.Config.Model
		}
	}
	finishCall(ctx, recorder, modelName, usage)
}

func finishCall(ctx context.Context, recorder llmctx.LLMUsageRecorder, modelName string, usage *model.TokenUsage) {
	workflow := llmctx.WorkflowFromContext(ctx)
	provider := llmctx.ProviderFromContext(ctx)
	elapsed := elapsedSeconds(ctx)

	metrics.LLMCallTotal.WithLabelValues(workflow, provider, modelName, "success").Inc()
	if elapsed > 0 {
		metrics.LLMCallDuration.WithLabelValues(workflow, provider, modelName).Observe(elapsed)
	}

	span := trace.SpanFromContext(ctx)
	if usage != nil {
		metrics.LLMTokensUsed.WithLabelValues(workflow, provider, modelName, "prompt").Add(float64(usage.PromptTokens))
		metrics.LLMTokensUsed.WithLabelValues(workflow, provider, modelName, "completion").Add(float64(usage.CompletionTokens))
		span.SetAttributes(
			attribute.Int("llm.prompt_tokens", usage.PromptTokens),
			attribute.Int("llm.completion_tokens", usage.CompletionTokens),
		)

		if recorder != nil {
			novelID, _ := ctx.Value(logger.NovelIDKey).(string)
			in := llmctx.LLMUsageInput{
				NovelID:          novelID,
				Workflow:         workflow,
				Provider:         provider,
				Model:            modelName,
				PromptTokens:     usage.PromptTokens,
				CompletionTokens: usage.CompletionTokens,
				DurationMs:       int(elapsed * 1000),
			}
			if err := recorder.Record(ctx, in); err != nil {
				logger.Warn(ctx, "failed to record llm usage", "error", err.Error())
			}
		}
	}
	span.End()
}

func elapsedSeconds(ctx context.Context) float64 {
	start, ok := ctx.Value(startTimeKey{}).(time.Time)
	if !ok || start.IsZero() {
		return 0
	}
	return time.Since(start).Seconds()
}

func modelNameFromInput(in *model.CallbackInput) string {
	if in == nil || in.Config == nil {
		return ""
	}
	return in.Config.Model
}

func modelNameFromContext(ctx context.Context) string {
	s, _ := ctx.Value(modelNameKey{}).(string)
	return s
}
