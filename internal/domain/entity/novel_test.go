package entity

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func sampleNovel() *Novel {
	n := NewNovel()
	n.Title = "雾港"
	n.Overview = "码头工人卷入走私案"
	n.Language = "Chinese"
	n.Characters = []Character{{ID: "c1", Name: "林舟", Description: "码头工人"}}
	ch0 := NewChapter("起", "发现货箱")
	s0 := NewSection("夜班", "林舟值夜")
	s0.Content = strPtr("雨夜。")
	s0.AfterState["c1"] = CharacterState{Clothing: "雨衣"}
	ch0.Sections = append(ch0.Sections, s0, NewSection("货箱", "打开货箱"))
	n.Chapters = append(n.Chapters, ch0, NewChapter("承", "追查"))
	return n
}

func TestNovel_CloneIsDeep(t *testing.T) {
	t.Parallel()

	orig := sampleNovel()
	cp := orig.Clone()

	*cp.Chapters[0].Sections[0].Content = "changed"
	cp.Chapters[0].Sections[0].AfterState["c1"] = CharacterState{Clothing: "none"}
	cp.Characters[0].Name = "changed"
	cp.Chapters[0].Sections = append(cp.Chapters[0].Sections, NewSection("x", "y"))

	assert.Equal(t, "雨夜。", *orig.Chapters[0].Sections[0].Content)
	assert.Equal(t, "雨衣", orig.Chapters[0].Sections[0].AfterState["c1"].Clothing)
	assert.Equal(t, "林舟", orig.Characters[0].Name)
	assert.Len(t, orig.Chapters[0].Sections, 2)
}

func TestNovel_PreviousSection(t *testing.T) {
	t.Parallel()

	n := sampleNovel()
	n.Chapters[1].Sections = []Section{NewSection("追", "追查线索")}

	assert.Nil(t, n.PreviousSection(0, 0))
	assert.Equal(t, n.Chapters[0].Sections[0].ID, n.PreviousSection(0, 1).ID)
	assert.Equal(t, n.Chapters[0].Sections[1].ID, n.PreviousSection(1, 0).ID)
	assert.Nil(t, n.PreviousSection(5, 0))

	n.Chapters[0].Sections = nil
	assert.Nil(t, n.PreviousSection(1, 0))
}

func TestNovel_MissingFoundation(t *testing.T) {
	t.Parallel()

	n := NewNovel()
	assert.Equal(t, []string{"title", "overview", "language", "characters"}, n.MissingFoundation())
	assert.Empty(t, sampleNovel().MissingFoundation())
}

func TestSnapshot_CurrentVersionRoundTrip(t *testing.T) {
	t.Parallel()

	n := sampleNovel()
	data, err := EncodeSnapshot(n)
	require.NoError(t, err)

	got, version, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)
	assert.Equal(t, n, got)
}

func TestSnapshot_MigratesV0(t *testing.T) {
	t.Parallel()

	raw := `{
		"requirements": "海港悬疑",
		"title": "雾港",
		"characters": ["林舟：码头工人", "Mara: smuggler", "无名氏"],
		"chapters": [{"title": "起", "overview": "o", "sections": [{"title": "s", "overview": "so", "content": "text"}]}]
	}`

	n, version, err := DecodeSnapshot([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 0, version)
	assert.Equal(t, "海港悬疑", n.PlotRequirements)
	require.Len(t, n.Characters, 3)
	assert.Equal(t, "林舟", n.Characters[0].Name)
	assert.Equal(t, "码头工人", n.Characters[0].Description)
	assert.Equal(t, "Mara", n.Characters[1].Name)
	assert.Equal(t, "smuggler", n.Characters[1].Description)
	assert.Equal(t, "无名氏", n.Characters[2].Name)
	assert.NotEmpty(t, n.ID)
	assert.NotEmpty(t, n.Chapters[0].ID)
	assert.NotEmpty(t, n.Chapters[0].Sections[0].ID)
	assert.NotNil(t, n.Chapters[0].Sections[0].AfterState)
}

func TestSnapshot_MigratesV2NameKeyedStates(t *testing.T) {
	t.Parallel()

	raw := `{
		"uuid": "legacy-1",
		"plot_requirements": "p",
		"characters": [{"name": "Lin", "description": "d"}],
		"chapters": [{"title": "c", "overview": "o", "sections": [{
			"title": "s", "overview": "so", "content": null,
			"after_state": {
				"lin": {"clothing": "coat", "psychological": "calm", "physiological": "tired"},
				"Ghost": {"clothing": "", "psychological": "", "physiological": ""}
			}
		}]}]
	}`

	n, version, err := DecodeSnapshot([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.Equal(t, "legacy-1", n.ID)

	charID := n.Characters[0].ID
	require.NotEmpty(t, charID)
	states := n.Chapters[0].Sections[0].AfterState
	require.Len(t, states, 1)
	assert.Equal(t, "coat", states[charID].Clothing)
}

func TestSnapshot_V1DropsCurrentState(t *testing.T) {
	t.Parallel()

	raw := `{"uuid": "u1", "characters": [], "chapters": [{"title": "c", "sections": [{"title": "s", "current_state": {"x": 1}}]}]}`

	n, version, err := DecodeSnapshot([]byte(raw))
	require.NoError(t, err)
	assert.Equal(t, 1, version)
	assert.Empty(t, n.Chapters[0].Sections[0].AfterState)
}

func TestSnapshot_RejectsInvalid(t *testing.T) {
	t.Parallel()

	_, _, err := DecodeSnapshot([]byte(`{"title": `))
	require.Error(t, err)

	dup := `{"schema_version": 3, "id": "n", "characters": [{"id": "a", "name": "X"}, {"id": "b", "name": "x"}]}`
	_, _, err = DecodeSnapshot([]byte(dup))
	require.Error(t, err)
	var snapErr *SnapshotError
	require.ErrorAs(t, err, &snapErr)
	assert.True(t, strings.Contains(snapErr.Error(), "duplicated"))

	unknown := `{"schema_version": 3, "id": "n", "characters": [], "chapters": [{"id": "c", "sections": [{"id": "s", "after_state": {"ghost": {}}}]}]}`
	_, _, err = DecodeSnapshot([]byte(unknown))
	require.Error(t, err)
}

func TestNovelRecord_Decode(t *testing.T) {
	t.Parallel()

	n := sampleNovel()
	data, err := json.Marshal(n)
	require.NoError(t, err)

	rec := &NovelRecord{ID: n.ID, StateJSON: string(data), Version: 1}
	got, err := rec.Decode()
	require.NoError(t, err)
	assert.Equal(t, n.Title, got.Title)
}

func TestFormatTime_FixedWidth(t *testing.T) {
	t.Parallel()

	a := FormatTime(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	b := FormatTime(time.Date(2024, 1, 2, 3, 4, 5, 123456000, time.FixedZone("X", 8*3600)))
	if len(a) != len(b) {
		t.Fatalf("len(%q) = %d, len(%q) = %d, want equal", a, len(a), b, len(b))
	}
	if a != "2024-01-02T03:04:05.000000Z" {
		t.Fatalf("FormatTime() = %q, want %q", a, "2024-01-02T03:04:05.000000Z")
	}
}
