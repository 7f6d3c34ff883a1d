package novel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "z-novel-writer/pkg/errors"
)

func TestEdits_Characters(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	repo := newMemRepo()
	o := LoadOrchestrator(foundationNovel(), nil, &fakeGenerator{}, repo, DefaultOptions())

	added, err := o.AddCharacter(ctx, " Kai ", "harbor master")
	require.NoError(t, err)
	assert.Equal(t, "Kai", added.Name)

	_, err = o.AddCharacter(ctx, "MARA", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
	_, err = o.AddCharacter(ctx, " ", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidParam))

	require.NoError(t, o.UpdateCharacter(ctx, "c-lin", "Lin Zhou", "night watchman"))
	n := o.Novel()
	assert.Equal(t, "Lin Zhou", n.Characters[0].Name)
	assert.Equal(t, "raincoat", n.Chapters[0].Sections[0].AfterState["c-lin"].Clothing)

	err = o.UpdateCharacter(ctx, "c-lin", "Kai", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeConflict))
	err = o.UpdateCharacter(ctx, "nobody", "X", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))

	require.NoError(t, o.RemoveCharacter(ctx, "c-mara"))
	n = o.Novel()
	require.Len(t, n.Characters, 2)
	assert.Equal(t, []string{"c-lin"}, sortedKeys(n.Chapters[0].Sections[0].AfterState))
	assert.Equal(t, 3, repo.saves)
}

func TestEdits_ChaptersAndSections(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	o := LoadOrchestrator(foundationNovel(), nil, &fakeGenerator{}, nil, DefaultOptions())

	ch, err := o.InsertChapter(ctx, 1, "Interlude", "")
	require.NoError(t, err)
	n := o.Novel()
	require.Len(t, n.Chapters, 3)
	assert.Equal(t, ch.ID, n.Chapters[1].ID)
	assert.Equal(t, "Pursuit", n.Chapters[2].Title)

	_, err = o.InsertChapter(ctx, 4, "x", "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeIndexOutOfRange))

	sec, err := o.InsertSection(ctx, 0, 2, "Dawn", "Lin goes home")
	require.NoError(t, err)
	n = o.Novel()
	require.Len(t, n.Chapters[0].Sections, 3)
	assert.Equal(t, sec.ID, n.Chapters[0].Sections[2].ID)

	require.NoError(t, o.RemoveSection(ctx, 0, 0))
	assert.Equal(t, "Crate", o.Novel().Chapters[0].Sections[0].Title)
	assert.True(t, apperrors.HasCode(o.RemoveSection(ctx, 1, 0), apperrors.CodeIndexOutOfRange))

	require.NoError(t, o.RemoveChapter(ctx, 1))
	n = o.Novel()
	require.Len(t, n.Chapters, 2)
	assert.Equal(t, "Pursuit", n.Chapters[1].Title)
	assert.True(t, apperrors.HasCode(o.RemoveChapter(ctx, 2), apperrors.CodeIndexOutOfRange))
}

func TestEdits_SetRequirements(t *testing.T) {
	t.Parallel()

	o := NewOrchestrator(&fakeGenerator{}, nil, DefaultOptions())
	require.NoError(t, o.SetRequirements(context.Background(), " plot ", " style "))
	n := o.Novel()
	assert.Equal(t, "plot", n.PlotRequirements)
	assert.Equal(t, "style", n.WritingRequirements)
}
