package chain

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	wfmodel "z-novel-writer/internal/workflow/model"
	wfnode "z-novel-writer/internal/workflow/node"
	workflowport "z-novel-writer/internal/workflow/port"
	workflowprompt "z-novel-writer/internal/workflow/prompt"
)

// 语言识别只需要开头一段文本
const languageSampleRunes = 2000

// NovelChain 小说生成的各个 LLM 步骤，返回原始消息，由调用方解析
type NovelChain struct {
	runner *llmRunner
}

func NewNovelChain(factory workflowport.ChatModelFactory) *NovelChain {
	return &NovelChain{runner: newLLMRunner(factory)}
}

// DetectLanguage 返回纯文本语言名
func (c *NovelChain) DetectLanguage(ctx context.Context, in *wfmodel.LanguageDetectInput) (*schema.Message, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, fmt.Errorf("text is required")
	}
	return c.runner.invoke(ctx, &llmCall{
		Workflow: "language_detect",
		PromptID: workflowprompt.PromptLanguageDetectV1,
		Vars: map[string]any{
			"text": wfnode.TruncateByRunes(strings.TrimSpace(in.Text), languageSampleRunes),
		},
		Options: in.CallOptions,
	})
}

func (c *NovelChain) GenerateOverview(ctx context.Context, in *wfmodel.OverviewInput) (*schema.Message, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	if strings.TrimSpace(in.PlotRequirements) == "" {
		return nil, fmt.Errorf("plot requirements are required")
	}
	return c.runner.invoke(ctx, &llmCall{
		Workflow: "novel_overview",
		PromptID: workflowprompt.PromptNovelOverviewV1,
		Vars: map[string]any{
			"language":             strings.TrimSpace(in.Language),
			"plot_requirements":    strings.TrimSpace(in.PlotRequirements),
			"writing_requirements": wfnode.TextOrEmpty(strings.TrimSpace(in.WritingRequirements)),
		},
		Options:    in.CallOptions,
		SchemaName: "novel_overview",
		Schema:     overviewJSONSchema(),
	})
}

func (c *NovelChain) PlanChapters(ctx context.Context, in *wfmodel.ChapterPlanInput) (*schema.Message, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	return c.runner.invoke(ctx, &llmCall{
		Workflow: "chapter_plan",
		PromptID: workflowprompt.PromptChapterPlanV1,
		Vars: map[string]any{
			"language":             strings.TrimSpace(in.Language),
			"title":                strings.TrimSpace(in.Title),
			"overview":             strings.TrimSpace(in.Overview),
			"characters_block":     wfnode.TextOrEmpty(in.CharactersBlock),
			"plot_requirements":    wfnode.TextOrEmpty(strings.TrimSpace(in.PlotRequirements)),
			"writing_requirements": wfnode.TextOrEmpty(strings.TrimSpace(in.WritingRequirements)),
			"count_directive":      countDirective(in.Count, "chapters"),
		},
		Options:    in.CallOptions,
		Replay:     in.Replay,
		SchemaName: "chapter_plan",
		Schema:     plotListJSONSchema(),
	})
}

func (c *NovelChain) PlanSections(ctx context.Context, in *wfmodel.SectionPlanInput) (*schema.Message, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	return c.runner.invoke(ctx, &llmCall{
		Workflow: "section_plan",
		PromptID: workflowprompt.PromptSectionPlanV1,
		Vars: map[string]any{
			"language":             strings.TrimSpace(in.Language),
			"title":                strings.TrimSpace(in.Title),
			"overview":             strings.TrimSpace(in.Overview),
			"plot_requirements":    wfnode.TextOrEmpty(strings.TrimSpace(in.PlotRequirements)),
			"writing_requirements": wfnode.TextOrEmpty(strings.TrimSpace(in.WritingRequirements)),
			"characters_block":     wfnode.TextOrEmpty(in.CharactersBlock),
			"chapter_title":        wfnode.TextOrEmpty(strings.TrimSpace(in.ChapterTitle)),
			"chapter_overview":     wfnode.TextOrEmpty(strings.TrimSpace(in.ChapterOverview)),
			"count_directive":      countDirective(in.Count, "sections"),
		},
		Options:    in.CallOptions,
		Replay:     in.Replay,
		SchemaName: "section_plan",
		Schema:     plotListJSONSchema(),
	})
}

func (c *NovelChain) WriteSection(ctx context.Context, in *wfmodel.SectionContentInput) (*schema.Message, error) {
	if in == nil {
		return nil, fmt.Errorf("input is nil")
	}
	return c.runner.invoke(ctx, &llmCall{
		Workflow: "section_content",
		PromptID: workflowprompt.PromptSectionContentV1,
		Vars: map[string]any{
			"language":             strings.TrimSpace(in.Language),
			"title":                strings.TrimSpace(in.Title),
			"overview":             strings.TrimSpace(in.Overview),
			"chapters_block":       wfnode.TextOrEmpty(in.ChaptersBlock),
			"characters_block":     wfnode.TextOrEmpty(in.CharactersBlock),
			"sections_block":       wfnode.TextOrEmpty(in.SectionsBlock),
			"previous_state_block": wfnode.TextOrEmpty(in.PreviousStateBlock),
			"previous_content":     wfnode.TextOrEmpty(in.PreviousContent),
			"writing_requirements": wfnode.TextOrEmpty(strings.TrimSpace(in.WritingRequirements)),
			"chapter_overview":     wfnode.TextOrEmpty(strings.TrimSpace(in.ChapterOverview)),
			"section_overview":     wfnode.TextOrEmpty(strings.TrimSpace(in.SectionOverview)),
		},
		Options:    in.CallOptions,
		Replay:     in.Replay,
		SchemaName: "section_content",
		Schema:     sectionContentJSONSchema(),
	})
}

func countDirective(count int, noun string) string {
	if count > 0 {
		return fmt.Sprintf("Design exactly %d %s.", count, noun)
	}
	return fmt.Sprintf("Choose a suitable number of %s.", noun)
}
