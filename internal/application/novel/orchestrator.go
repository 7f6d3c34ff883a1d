// Package novel 编排小说生成：概要、章节、小节、正文与导出
package novel

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"z-novel-writer/internal/domain/entity"
	"z-novel-writer/internal/domain/repository"
	wfmodel "z-novel-writer/internal/workflow/model"
	wfnode "z-novel-writer/internal/workflow/node"
	"z-novel-writer/pkg/logger"
	"z-novel-writer/pkg/metrics"
	"z-novel-writer/pkg/tracer"
)

// Options 编排器的模型选择与生成策略
type Options struct {
	Provider    string
	Model       string
	Temperature *float32
	MaxTokens   *int

	// MergeMissingStates 模型未返回的角色沿用上一节状态
	MergeMissingStates bool
}

// DefaultOptions 默认合并缺失状态
func DefaultOptions() Options {
	return Options{MergeMissingStates: true}
}

// ChapterPlanRequest 章节规划参数，Count 为 0 时由模型决定
type ChapterPlanRequest struct {
	Count         int    `json:"count"`
	Feedback      string `json:"feedback"`
	ResetSections bool   `json:"reset_sections"`
}

// SectionPlanRequest 小节规划参数
type SectionPlanRequest struct {
	Count        int    `json:"count"`
	Feedback     string `json:"feedback"`
	ResetContent bool   `json:"reset_content"`
}

// ContentResult 正文生成结果，AfterState 以角色 ID 为键
type ContentResult struct {
	Content      string                           `json:"content"`
	AfterState   map[string]entity.CharacterState `json:"after_state"`
	DroppedNames []string                         `json:"dropped_names,omitempty"`
}

// Orchestrator 持有一本小说的工作状态。
// 所有操作串行执行，在副本上修改，成功落库后才替换当前状态。
type Orchestrator struct {
	mu     sync.Mutex
	novel  *entity.Novel
	record *entity.NovelRecord
	gen    Generator
	repo   repository.NovelRepository
	opts   Options
}

// NewOrchestrator 以空小说创建编排器，repo 为空时只在内存中工作
func NewOrchestrator(gen Generator, repo repository.NovelRepository, opts Options) *Orchestrator {
	return LoadOrchestrator(entity.NewNovel(), nil, gen, repo, opts)
}

// LoadOrchestrator 以已有小说创建编排器
func LoadOrchestrator(n *entity.Novel, rec *entity.NovelRecord, gen Generator, repo repository.NovelRepository, opts Options) *Orchestrator {
	if n == nil {
		n = entity.NewNovel()
	}
	return &Orchestrator{
		novel:  n.Clone(),
		record: rec,
		gen:    gen,
		repo:   repo,
		opts:   opts,
	}
}

// ID 小说 ID
func (o *Orchestrator) ID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.novel.ID
}

// Novel 返回当前状态的副本
func (o *Orchestrator) Novel() *entity.Novel {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.novel.Clone()
}

// Record 最近一次落库的记录，未保存过时为 nil
func (o *Orchestrator) Record() *entity.NovelRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.record == nil {
		return nil
	}
	cp := *o.record
	return &cp
}

// SetModel 切换本编排器使用的提供商与模型
func (o *Orchestrator) SetModel(provider, model string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.opts.Provider = strings.TrimSpace(provider)
	o.opts.Model = strings.TrimSpace(model)
}

// Options 当前选项
func (o *Orchestrator) Options() Options {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.opts
}

// Save 持久化当前状态
func (o *Orchestrator) Save(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.run(ctx, "save", false, func(ctx context.Context) error {
		return o.commit(ctx, o.novel.Clone())
	})
}

// GenerateOverview 识别语言并生成标题、概要与角色，章节保持不变
func (o *Orchestrator) GenerateOverview(ctx context.Context, plotRequirements, writingRequirements string) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.run(ctx, "generate_overview", true, func(ctx context.Context) error {
		return o.generateOverview(ctx, plotRequirements, writingRequirements)
	})
}

// GenerateChapters 重新规划章节，第 i 章沿用旧第 i 章的 ID 与小节
func (o *Orchestrator) GenerateChapters(ctx context.Context, req ChapterPlanRequest) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.run(ctx, "generate_chapters", true, func(ctx context.Context) error {
		return o.generateChapters(ctx, req)
	})
}

// GenerateSections 重新规划一个章节的小节，第 i 节沿用旧第 i 节的 ID、正文与状态
func (o *Orchestrator) GenerateSections(ctx context.Context, chapterIndex int, req SectionPlanRequest) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.run(ctx, "generate_sections", true, func(ctx context.Context) error {
		return o.generateSections(ctx, chapterIndex, req)
	})
}

// WriteSectionContent 生成小节正文与结束时的角色状态
func (o *Orchestrator) WriteSectionContent(ctx context.Context, chapterIndex, sectionIndex int, feedback string) (*ContentResult, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var result *ContentResult
	err := o.run(ctx, "write_section_content", true, func(ctx context.Context) error {
		var err error
		result, err = o.writeSectionContent(ctx, chapterIndex, sectionIndex, feedback)
		return err
	})
	return result, err
}

// ExportMarkdown 渲染全文并保存到 exported_markdown
func (o *Orchestrator) ExportMarkdown(ctx context.Context) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	var md string
	err := o.run(ctx, "export_markdown", false, func(ctx context.Context) error {
		next := o.novel.Clone()
		md = RenderMarkdown(next)
		next.ExportedMarkdown = md
		return o.commit(ctx, next)
	})
	return md, err
}

func (o *Orchestrator) generateOverview(ctx context.Context, plotRequirements, writingRequirements string) error {
	plot := strings.TrimSpace(plotRequirements)
	writing := strings.TrimSpace(writingRequirements)
	if plot == "" {
		return preconditionError([]string{"plot_requirements"})
	}

	lang, err := o.gen.DetectLanguage(ctx, &wfmodel.LanguageDetectInput{
		CallOptions: o.callOptions(),
		Text:        strings.TrimSpace(plot + "\n" + writing),
	})
	if err != nil {
		return err
	}

	res, err := o.gen.Overview(ctx, &wfmodel.OverviewInput{
		CallOptions:         o.callOptions(),
		Language:            lang.Value,
		PlotRequirements:    plot,
		WritingRequirements: writing,
	})
	if err != nil {
		return err
	}
	logUsage(ctx, "generate_overview", res.Meta)

	next := o.novel.Clone()
	next.PlotRequirements = plot
	next.WritingRequirements = writing
	next.Language = lang.Value
	next.Title = strings.TrimSpace(res.Value.Title)
	next.Overview = strings.TrimSpace(res.Value.Overview)

	kept := make(map[string]struct{}, len(res.Value.Characters))
	characters := make([]entity.Character, 0, len(res.Value.Characters))
	for _, c := range res.Value.Characters {
		id := entity.NewID()
		if existing, ok := o.novel.CharacterByName(c.Name); ok {
			id = existing.ID
		}
		kept[id] = struct{}{}
		characters = append(characters, entity.Character{
			ID:          id,
			Name:        strings.TrimSpace(c.Name),
			Description: strings.TrimSpace(c.Description),
		})
	}
	for _, c := range o.novel.Characters {
		if _, ok := kept[c.ID]; !ok {
			next.RemoveCharacterStates(c.ID)
		}
	}
	next.Characters = characters

	return o.commit(ctx, next)
}

func (o *Orchestrator) generateChapters(ctx context.Context, req ChapterPlanRequest) error {
	if missing := o.novel.MissingFoundation(); len(missing) > 0 {
		return preconditionError(missing)
	}
	if req.Count < 0 {
		return invalidParam("count must not be negative")
	}

	n := o.novel
	res, err := o.gen.ChapterPlan(ctx, &wfmodel.ChapterPlanInput{
		CallOptions:         o.callOptions(),
		Language:            n.Language,
		Title:               n.Title,
		Overview:            n.Overview,
		PlotRequirements:    n.PlotRequirements,
		WritingRequirements: n.WritingRequirements,
		CharactersBlock:     wfnode.CharactersBlock(n.Characters),
		Count:               req.Count,
		Replay:              replayOf(req.Feedback, chapterPlanJSON(n.Chapters)),
	})
	if err != nil {
		return err
	}
	logUsage(ctx, "generate_chapters", res.Meta)

	next := n.Clone()
	old := next.Chapters
	chapters := make([]entity.Chapter, 0, len(res.Value))
	for i, item := range res.Value {
		ch := entity.NewChapter(strings.TrimSpace(item.Title), strings.TrimSpace(item.Overview))
		if i < len(old) {
			ch.ID = old[i].ID
			if !req.ResetSections {
				ch.Sections = old[i].Sections
			}
		}
		chapters = append(chapters, ch)
	}
	next.Chapters = chapters

	return o.commit(ctx, next)
}

func (o *Orchestrator) generateSections(ctx context.Context, chapterIndex int, req SectionPlanRequest) error {
	n := o.novel
	if !n.HasChapter(chapterIndex) {
		return indexError("chapter index %d out of range [0, %d)", chapterIndex, len(n.Chapters))
	}
	if req.Count < 0 {
		return invalidParam("count must not be negative")
	}

	chapter := n.Chapters[chapterIndex]
	res, err := o.gen.SectionPlan(ctx, &wfmodel.SectionPlanInput{
		CallOptions:         o.callOptions(),
		Language:            n.Language,
		Title:               n.Title,
		Overview:            n.Overview,
		PlotRequirements:    n.PlotRequirements,
		WritingRequirements: n.WritingRequirements,
		CharactersBlock:     wfnode.CharactersBlock(n.Characters),
		ChapterTitle:        chapter.Title,
		ChapterOverview:     chapter.Overview,
		Count:               req.Count,
		Replay:              replayOf(req.Feedback, sectionPlanJSON(chapter.Sections)),
	})
	if err != nil {
		return err
	}
	logUsage(ctx, "generate_sections", res.Meta)

	next := n.Clone()
	old := next.Chapters[chapterIndex].Sections
	sections := make([]entity.Section, 0, len(res.Value))
	for i, item := range res.Value {
		sec := entity.NewSection(strings.TrimSpace(item.Title), strings.TrimSpace(item.Overview))
		if i < len(old) {
			sec.ID = old[i].ID
			if !req.ResetContent {
				sec.Content = old[i].Content
				sec.AfterState = old[i].AfterState
			}
		}
		sections = append(sections, sec)
	}
	next.Chapters[chapterIndex].Sections = sections

	return o.commit(ctx, next)
}

func (o *Orchestrator) writeSectionContent(ctx context.Context, chapterIndex, sectionIndex int, feedback string) (*ContentResult, error) {
	n := o.novel
	if !n.HasChapter(chapterIndex) {
		return nil, indexError("chapter index %d out of range [0, %d)", chapterIndex, len(n.Chapters))
	}
	if !n.HasSection(chapterIndex, sectionIndex) {
		return nil, indexError("section index %d out of range [0, %d) in chapter %d",
			sectionIndex, len(n.Chapters[chapterIndex].Sections), chapterIndex)
	}

	chapter := &n.Chapters[chapterIndex]
	section := &chapter.Sections[sectionIndex]

	var prevState map[string]entity.CharacterState
	prevContent := ""
	if prev := n.PreviousSection(chapterIndex, sectionIndex); prev != nil {
		prevState = prev.AfterState
		prevContent = prev.ContentText()
	}

	var replay *wfmodel.Replay
	if fb := strings.TrimSpace(feedback); fb != "" {
		previous := ""
		if section.HasContent() {
			previous = sectionOutputJSON(n, section)
		}
		replay = &wfmodel.Replay{Previous: previous, Feedback: fb}
	}

	res, err := o.gen.SectionContent(ctx, &wfmodel.SectionContentInput{
		CallOptions:         o.callOptions(),
		Language:            n.Language,
		Title:               n.Title,
		Overview:            n.Overview,
		WritingRequirements: n.WritingRequirements,
		ChaptersBlock:       wfnode.ChaptersBlock(n.Chapters),
		CharactersBlock:     wfnode.CharactersBlock(n.Characters),
		SectionsBlock:       wfnode.SectionsBlock(chapter.Sections),
		PreviousStateBlock:  wfnode.StateBlock(n.Characters, prevState),
		PreviousContent:     prevContent,
		ChapterOverview:     chapter.Overview,
		SectionOverview:     section.Overview,
		Replay:              replay,
	})
	if err != nil {
		return nil, err
	}
	logUsage(ctx, "write_section_content", res.Meta)

	states, dropped := mapStatesToIDs(n, res.Value.CurrentState)
	for _, name := range dropped {
		logger.Warn(ctx, "dropping state of unknown character", "name", name)
	}
	if o.opts.MergeMissingStates {
		for id, st := range prevState {
			if _, ok := states[id]; ok {
				continue
			}
			if _, known := n.CharacterByID(id); known {
				states[id] = st
			}
		}
	}

	content := strings.TrimSpace(res.Value.Content)
	next := n.Clone()
	target := &next.Chapters[chapterIndex].Sections[sectionIndex]
	target.Content = &content
	target.AfterState = states
	if err := o.commit(ctx, next); err != nil {
		return nil, err
	}
	metrics.SectionContentRunes.Observe(float64(utf8.RuneCountInString(content)))

	out := &ContentResult{
		Content:      content,
		AfterState:   make(map[string]entity.CharacterState, len(states)),
		DroppedNames: dropped,
	}
	for k, v := range states {
		out.AfterState[k] = v
	}
	return out, nil
}

// commit 先落库后替换，落库失败时内存状态不变
func (o *Orchestrator) commit(ctx context.Context, next *entity.Novel) error {
	next.SchemaVersion = entity.CurrentSchemaVersion
	if o.repo != nil {
		rec, err := o.repo.Save(ctx, next)
		if err != nil {
			return persistenceError(err)
		}
		o.record = rec
	}
	o.novel = next
	return nil
}

// run 统一记录日志、追踪与指标，调用方需持有锁
func (o *Orchestrator) run(ctx context.Context, op string, generating bool, fn func(ctx context.Context) error) error {
	ctx = logger.WithNovelID(ctx, o.novel.ID)
	ctx, span := tracer.Start(ctx, "novel.Orchestrator."+op,
		trace.WithAttributes(attribute.String("novel.id", o.novel.ID)),
	)
	defer span.End()

	if generating {
		metrics.ActiveGenerations.Inc()
		defer metrics.ActiveGenerations.Dec()
	}

	start := time.Now()
	err := fn(ctx)
	status := "success"
	if err != nil {
		status = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		logger.Warn(ctx, "novel operation failed", "operation", op, "error", err.Error())
	} else {
		logger.Debug(ctx, "novel operation done", "operation", op, "duration_ms", time.Since(start).Milliseconds())
	}
	metrics.NovelOperationTotal.WithLabelValues(op, status).Inc()
	metrics.NovelOperationDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
	return err
}

func (o *Orchestrator) callOptions() wfmodel.CallOptions {
	return wfmodel.CallOptions{
		Provider:    o.opts.Provider,
		Model:       o.opts.Model,
		Temperature: o.opts.Temperature,
		MaxTokens:   o.opts.MaxTokens,
	}
}

// mapStatesToIDs 把以角色名为键的状态映射为以 ID 为键，名单外的名字返回给调用方
func mapStatesToIDs(n *entity.Novel, byName map[string]wfmodel.CharacterStateItem) (map[string]entity.CharacterState, []string) {
	states := make(map[string]entity.CharacterState, len(byName))
	var dropped []string
	for name, st := range byName {
		c, ok := n.CharacterByName(name)
		if !ok {
			dropped = append(dropped, name)
			continue
		}
		states[c.ID] = entity.CharacterState{
			Clothing:      strings.TrimSpace(st.Clothing),
			Psychological: strings.TrimSpace(st.Psychological),
			Physiological: strings.TrimSpace(st.Physiological),
		}
	}
	sort.Strings(dropped)
	return states, dropped
}

func replayOf(feedback, previous string) *wfmodel.Replay {
	fb := strings.TrimSpace(feedback)
	if fb == "" {
		return nil
	}
	return &wfmodel.Replay{Previous: previous, Feedback: fb}
}

func chapterPlanJSON(chapters []entity.Chapter) string {
	if len(chapters) == 0 {
		return ""
	}
	items := make([]wfmodel.PlotItem, 0, len(chapters))
	for _, ch := range chapters {
		items = append(items, wfmodel.PlotItem{Title: ch.Title, Overview: ch.Overview})
	}
	return mustJSON(wfmodel.PlotListOutput{Items: items})
}

func sectionPlanJSON(sections []entity.Section) string {
	if len(sections) == 0 {
		return ""
	}
	items := make([]wfmodel.PlotItem, 0, len(sections))
	for _, sec := range sections {
		items = append(items, wfmodel.PlotItem{Title: sec.Title, Overview: sec.Overview})
	}
	return mustJSON(wfmodel.PlotListOutput{Items: items})
}

func sectionOutputJSON(n *entity.Novel, sec *entity.Section) string {
	out := wfmodel.SectionContentOutput{
		Content:      sec.ContentText(),
		CurrentState: make(map[string]wfmodel.CharacterStateItem, len(sec.AfterState)),
	}
	for id, st := range sec.AfterState {
		c, ok := n.CharacterByID(id)
		if !ok {
			continue
		}
		out.CurrentState[c.Name] = wfmodel.CharacterStateItem{
			Clothing:      st.Clothing,
			Psychological: st.Psychological,
			Physiological: st.Physiological,
		}
	}
	return mustJSON(out)
}

func mustJSON(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}

func logUsage(ctx context.Context, op string, meta wfmodel.LLMUsageMeta) {
	logger.Debug(ctx, "llm generation",
		"operation", op,
		"provider", meta.Provider,
		"model", meta.Model,
		"prompt_tokens", meta.PromptTokens,
		"completion_tokens", meta.CompletionTokens,
	)
}
