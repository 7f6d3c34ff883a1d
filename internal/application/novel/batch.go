package novel

import (
	"context"
)

// 批量生成阶段
const (
	StageChapters = "chapters"
	StageSections = "sections"
	StageContent  = "content"
)

// Progress 批量生成进度，Done/Total 为当前章节内已完成与总小节数
type Progress struct {
	Stage         string `json:"stage"`
	ChapterIndex  int    `json:"chapter_index"`
	ChapterTotal  int    `json:"chapter_total"`
	SectionIndex  int    `json:"section_index"`
	SectionsDone  int    `json:"sections_done"`
	SectionsTotal int    `json:"sections_total"`
}

// ProgressFunc 进度回调，可为空
type ProgressFunc func(Progress)

// GenerateChapterFully 规划章节小节并依次写完全部正文。
// 每一步单独提交，中途失败时已完成的小节保留。
func (o *Orchestrator) GenerateChapterFully(ctx context.Context, chapterIndex, sectionCount int, progress ProgressFunc) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.run(ctx, "generate_chapter_fully", true, func(ctx context.Context) error {
		return o.generateChapterFully(ctx, chapterIndex, sectionCount, len(o.novel.Chapters), progress)
	})
}

// GenerateAll 规划章节后逐章生成全部内容
func (o *Orchestrator) GenerateAll(ctx context.Context, chapterCount, sectionCount int, progress ProgressFunc) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.run(ctx, "generate_all", true, func(ctx context.Context) error {
		if err := o.generateChapters(ctx, ChapterPlanRequest{Count: chapterCount, ResetSections: true}); err != nil {
			return err
		}
		total := len(o.novel.Chapters)
		emit(progress, Progress{Stage: StageChapters, ChapterTotal: total})

		for ci := 0; ci < total; ci++ {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := o.generateChapterFully(ctx, ci, sectionCount, total, progress); err != nil {
				return err
			}
		}
		return nil
	})
}

func (o *Orchestrator) generateChapterFully(ctx context.Context, chapterIndex, sectionCount, chapterTotal int, progress ProgressFunc) error {
	if err := o.generateSections(ctx, chapterIndex, SectionPlanRequest{Count: sectionCount, ResetContent: true}); err != nil {
		return err
	}
	sections := len(o.novel.Chapters[chapterIndex].Sections)
	emit(progress, Progress{
		Stage:         StageSections,
		ChapterIndex:  chapterIndex,
		ChapterTotal:  chapterTotal,
		SectionsTotal: sections,
	})

	for si := 0; si < sections; si++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := o.writeSectionContent(ctx, chapterIndex, si, ""); err != nil {
			return err
		}
		emit(progress, Progress{
			Stage:         StageContent,
			ChapterIndex:  chapterIndex,
			ChapterTotal:  chapterTotal,
			SectionIndex:  si,
			SectionsDone:  si + 1,
			SectionsTotal: sections,
		})
	}
	return nil
}

func emit(progress ProgressFunc, p Progress) {
	if progress != nil {
		progress(p)
	}
}
