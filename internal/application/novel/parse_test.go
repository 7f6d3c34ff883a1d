package novel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wfmodel "z-novel-writer/internal/workflow/model"
)

func TestParseLanguageLabel(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"English":                  "English",
		"  \n**Japanese**.\n":      "Japanese",
		"Language: French":         "French",
		"language：Chinese (Simp.)": "Chinese (Simp.)",
		"\"Korean\"\nextra line":   "Korean",
		"中文。":                      "中文",
		"   ":                      "",
	}
	for in, want := range cases {
		if got := ParseLanguageLabel(in); got != want {
			t.Fatalf("ParseLanguageLabel(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParsePlotList_Variants(t *testing.T) {
	t.Parallel()

	inputs := []string{
		`{"items":[{"title":"A","overview":"a"},{"title":"B","overview":"b"}]}`,
		"```json\n{\"chapters\":[{\"title\":\"A\",\"overview\":\"a\"},{\"title\":\"B\",\"overview\":\"b\"}]}\n```",
		`Here you go: [{"title":"A","overview":"a"},{"title":"B","overview":"b"}]`,
		`{"sections":[{"title":"A","overview":"a"},{"title":"B","overview":"b"}]}`,
	}
	want := []wfmodel.PlotItem{{Title: "A", Overview: "a"}, {Title: "B", Overview: "b"}}
	for _, in := range inputs {
		items, _, err := ParsePlotList(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, items, in)
	}

	_, _, err := ParsePlotList(`{"foo": 1}`)
	require.Error(t, err)
	_, _, err = ParsePlotList(`no json here`)
	require.Error(t, err)
}

func TestParseSectionContent(t *testing.T) {
	t.Parallel()

	out, raw, err := ParseSectionContent("text before {\"content\":\"Rain.\",\"current_state\":{\"Lin\":{\"clothing\":\"coat\",\"psychological\":\"calm\",\"physiological\":\"wet\"}}} after")
	require.NoError(t, err)
	assert.Equal(t, "Rain.", out.Content)
	assert.Equal(t, "coat", out.CurrentState["Lin"].Clothing)
	assert.True(t, raw[0] == '{')

	_, _, err = ParseSectionContent(`{"content": 5}`)
	require.Error(t, err)
}

func TestValidateOverview(t *testing.T) {
	t.Parallel()

	ok := &wfmodel.OverviewOutput{
		Title:      "Fog Harbor",
		Overview:   "o",
		Characters: []wfmodel.CharacterItem{{Name: "Lin"}, {Name: "Mara"}},
	}
	assert.Empty(t, ValidateOverview(ok))

	bad := &wfmodel.OverviewOutput{
		Characters: []wfmodel.CharacterItem{{Name: "Lin"}, {Name: " lin "}, {Name: ""}},
	}
	issues := ValidateOverview(bad)
	assert.Contains(t, issues, "title is required")
	assert.Contains(t, issues, "overview is required")
	assert.Contains(t, issues, "characters[1].name duplicated: lin")
	assert.Contains(t, issues, "characters[2].name is required")

	assert.Contains(t, ValidateOverview(&wfmodel.OverviewOutput{Title: "t", Overview: "o"}), "characters must not be empty")
}

func TestValidatePlotListAndContent(t *testing.T) {
	t.Parallel()

	assert.Equal(t, []string{"items must not be empty"}, ValidatePlotList(nil))
	assert.Equal(t, []string{"items[1] has neither title nor overview"},
		ValidatePlotList([]wfmodel.PlotItem{{Title: "A"}, {Title: " "}}))
	assert.Empty(t, ValidatePlotList([]wfmodel.PlotItem{{Overview: "only overview"}}))

	assert.Equal(t, []string{"content is required"}, ValidateSectionContent(&wfmodel.SectionContentOutput{Content: "  "}))
	assert.Empty(t, ValidateSectionContent(&wfmodel.SectionContentOutput{Content: "x"}))
}
