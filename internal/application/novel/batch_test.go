package novel

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wfmodel "z-novel-writer/internal/workflow/model"
)

func countingGenerator() *fakeGenerator {
	calls := 0
	return &fakeGenerator{
		chapterFunc: func(*wfmodel.ChapterPlanInput) ([]wfmodel.PlotItem, error) {
			return plots("C1", "C2"), nil
		},
		sectionFunc: func(in *wfmodel.SectionPlanInput) ([]wfmodel.PlotItem, error) {
			return plots(in.ChapterTitle+"-S1", in.ChapterTitle+"-S2"), nil
		},
		contentFunc: func(in *wfmodel.SectionContentInput) (*wfmodel.SectionContentOutput, error) {
			calls++
			return &wfmodel.SectionContentOutput{Content: fmt.Sprintf("content %d for %s", calls, in.SectionOverview)}, nil
		},
	}
}

func TestGenerateAll_ReportsProgress(t *testing.T) {
	t.Parallel()

	repo := newMemRepo()
	o := LoadOrchestrator(foundationNovel(), nil, countingGenerator(), repo, DefaultOptions())

	var events []Progress
	require.NoError(t, o.GenerateAll(context.Background(), 2, 2, func(p Progress) { events = append(events, p) }))

	n := o.Novel()
	require.Len(t, n.Chapters, 2)
	for ci, ch := range n.Chapters {
		require.Len(t, ch.Sections, 2, "chapter %d", ci)
		for si, sec := range ch.Sections {
			assert.True(t, sec.HasContent(), "section %d/%d", ci, si)
		}
	}
	assert.Equal(t, "content 4 for C2-S2 overview", n.Chapters[1].Sections[1].ContentText())

	require.Len(t, events, 7)
	assert.Equal(t, Progress{Stage: StageChapters, ChapterTotal: 2}, events[0])
	assert.Equal(t, Progress{Stage: StageSections, ChapterIndex: 0, ChapterTotal: 2, SectionsTotal: 2}, events[1])
	assert.Equal(t, Progress{Stage: StageContent, ChapterIndex: 1, ChapterTotal: 2, SectionIndex: 1, SectionsDone: 2, SectionsTotal: 2}, events[6])

	// 1 次章节 + 2 次小节 + 4 次正文
	assert.Equal(t, 7, repo.saves)
}

func TestGenerateChapterFully_KeepsCompletedSectionsOnFailure(t *testing.T) {
	t.Parallel()

	gen := countingGenerator()
	gen.contentFunc = func(in *wfmodel.SectionContentInput) (*wfmodel.SectionContentOutput, error) {
		if in.SectionOverview == "Night Shift-S2 overview" {
			return nil, errors.New("upstream timeout")
		}
		return &wfmodel.SectionContentOutput{Content: "done"}, nil
	}
	o := LoadOrchestrator(foundationNovel(), nil, gen, nil, DefaultOptions())

	err := o.GenerateChapterFully(context.Background(), 0, 2, nil)
	require.Error(t, err)

	secs := o.Novel().Chapters[0].Sections
	require.Len(t, secs, 2)
	assert.Equal(t, "done", secs[0].ContentText())
	assert.Nil(t, secs[1].Content)
}

func TestGenerateAll_StopsOnCanceledContext(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	gen := countingGenerator()
	gen.chapterFunc = func(*wfmodel.ChapterPlanInput) ([]wfmodel.PlotItem, error) {
		cancel()
		return plots("C1"), nil
	}
	o := LoadOrchestrator(foundationNovel(), nil, gen, nil, DefaultOptions())

	err := o.GenerateAll(ctx, 1, 1, nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, gen.sectionInputs)
	assert.Len(t, o.Novel().Chapters, 1)
}
