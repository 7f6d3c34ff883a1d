package novel

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	workflowchain "z-novel-writer/internal/workflow/chain"
	wfmodel "z-novel-writer/internal/workflow/model"
	workflowport "z-novel-writer/internal/workflow/port"
)

// Generated 一次生成的解析结果、截取后的原文与用量
type Generated[T any] struct {
	Value T
	Raw   string
	Meta  wfmodel.LLMUsageMeta
}

// Generator 编排器对 LLM 的依赖，返回的错误已归类为 AppError
type Generator interface {
	DetectLanguage(ctx context.Context, in *wfmodel.LanguageDetectInput) (*Generated[string], error)
	Overview(ctx context.Context, in *wfmodel.OverviewInput) (*Generated[*wfmodel.OverviewOutput], error)
	ChapterPlan(ctx context.Context, in *wfmodel.ChapterPlanInput) (*Generated[[]wfmodel.PlotItem], error)
	SectionPlan(ctx context.Context, in *wfmodel.SectionPlanInput) (*Generated[[]wfmodel.PlotItem], error)
	SectionContent(ctx context.Context, in *wfmodel.SectionContentInput) (*Generated[*wfmodel.SectionContentOutput], error)
}

// LLMGenerator 基于 NovelChain 的实现
type LLMGenerator struct {
	chain *workflowchain.NovelChain
}

var _ Generator = (*LLMGenerator)(nil)

func NewLLMGenerator(factory workflowport.ChatModelFactory) *LLMGenerator {
	return &LLMGenerator{chain: workflowchain.NewNovelChain(factory)}
}

func (g *LLMGenerator) DetectLanguage(ctx context.Context, in *wfmodel.LanguageDetectInput) (*Generated[string], error) {
	const stage = "language_detect"
	outMsg, err := g.invoke(stage, func() (*schema.Message, error) { return g.chain.DetectLanguage(ctx, in) })
	if err != nil {
		return nil, err
	}
	lang := ParseLanguageLabel(outMsg.Content)
	if lang == "" {
		return nil, schemaError(stage, "empty language label")
	}
	return &Generated[string]{Value: lang, Raw: outMsg.Content, Meta: usageMeta(in.CallOptions, outMsg)}, nil
}

func (g *LLMGenerator) Overview(ctx context.Context, in *wfmodel.OverviewInput) (*Generated[*wfmodel.OverviewOutput], error) {
	const stage = "novel_overview"
	outMsg, err := g.invoke(stage, func() (*schema.Message, error) { return g.chain.GenerateOverview(ctx, in) })
	if err != nil {
		return nil, err
	}
	out, raw, err := ParseOverview(outMsg.Content)
	if err != nil {
		return nil, schemaError(stage, err.Error())
	}
	if issues := ValidateOverview(out); len(issues) > 0 {
		return nil, schemaError(stage, issues...)
	}
	return &Generated[*wfmodel.OverviewOutput]{Value: out, Raw: raw, Meta: usageMeta(in.CallOptions, outMsg)}, nil
}

func (g *LLMGenerator) ChapterPlan(ctx context.Context, in *wfmodel.ChapterPlanInput) (*Generated[[]wfmodel.PlotItem], error) {
	const stage = "chapter_plan"
	outMsg, err := g.invoke(stage, func() (*schema.Message, error) { return g.chain.PlanChapters(ctx, in) })
	if err != nil {
		return nil, err
	}
	return plotResult(stage, in.CallOptions, outMsg)
}

func (g *LLMGenerator) SectionPlan(ctx context.Context, in *wfmodel.SectionPlanInput) (*Generated[[]wfmodel.PlotItem], error) {
	const stage = "section_plan"
	outMsg, err := g.invoke(stage, func() (*schema.Message, error) { return g.chain.PlanSections(ctx, in) })
	if err != nil {
		return nil, err
	}
	return plotResult(stage, in.CallOptions, outMsg)
}

func (g *LLMGenerator) SectionContent(ctx context.Context, in *wfmodel.SectionContentInput) (*Generated[*wfmodel.SectionContentOutput], error) {
	const stage = "section_content"
	outMsg, err := g.invoke(stage, func() (*schema.Message, error) { return g.chain.WriteSection(ctx, in) })
	if err != nil {
		return nil, err
	}
	out, raw, err := ParseSectionContent(outMsg.Content)
	if err != nil {
		return nil, schemaError(stage, err.Error())
	}
	if issues := ValidateSectionContent(out); len(issues) > 0 {
		return nil, schemaError(stage, issues...)
	}
	return &Generated[*wfmodel.SectionContentOutput]{Value: out, Raw: raw, Meta: usageMeta(in.CallOptions, outMsg)}, nil
}

func (g *LLMGenerator) invoke(stage string, call func() (*schema.Message, error)) (*schema.Message, error) {
	if g == nil || g.chain == nil {
		return nil, fmt.Errorf("novel workflow not configured")
	}
	outMsg, err := call()
	if err != nil {
		return nil, llmCallError(stage, err)
	}
	if outMsg == nil {
		return nil, llmCallError(stage, fmt.Errorf("empty llm response"))
	}
	return outMsg, nil
}

func plotResult(stage string, opts wfmodel.CallOptions, outMsg *schema.Message) (*Generated[[]wfmodel.PlotItem], error) {
	items, raw, err := ParsePlotList(outMsg.Content)
	if err != nil {
		return nil, schemaError(stage, err.Error())
	}
	if issues := ValidatePlotList(items); len(issues) > 0 {
		return nil, schemaError(stage, issues...)
	}
	return &Generated[[]wfmodel.PlotItem]{Value: items, Raw: raw, Meta: usageMeta(opts, outMsg)}, nil
}

func usageMeta(opts wfmodel.CallOptions, outMsg *schema.Message) wfmodel.LLMUsageMeta {
	meta := wfmodel.LLMUsageMeta{
		Provider:    strings.TrimSpace(opts.Provider),
		Model:       strings.TrimSpace(opts.Model),
		GeneratedAt: time.Now().UTC(),
	}
	if opts.Temperature != nil {
		meta.Temperature = float64(*opts.Temperature)
	}
	meta.PromptTokens, meta.CompletionTokens = workflowchain.UsageOf(outMsg)
	return meta
}
