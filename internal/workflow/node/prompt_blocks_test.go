package node

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"z-novel-writer/internal/domain/entity"
)

func TestChaptersBlock_DefaultTitles(t *testing.T) {
	t.Parallel()

	got := ChaptersBlock([]entity.Chapter{
		{Title: "起", Overview: "开端"},
		{Overview: "无题"},
	})
	assert.Equal(t, "- **1. 起**: 开端\n- **2. Chapter 2**: 无题", got)
	assert.Equal(t, EmptyBlock, ChaptersBlock(nil))
}

func TestSectionsBlock_Indented(t *testing.T) {
	t.Parallel()

	got := SectionsBlock([]entity.Section{{Title: "", Overview: "o"}})
	assert.Equal(t, "    - **1. Section 1**: o", got)
}

func TestCharactersBlock(t *testing.T) {
	t.Parallel()

	got := CharactersBlock([]entity.Character{{Name: "Lin", Description: "dock worker"}, {Name: "Mara", Description: "smuggler"}})
	assert.Equal(t, "- **Lin**: dock worker\n- **Mara**: smuggler", got)
}

func TestStateBlock_KeyedByName(t *testing.T) {
	t.Parallel()

	chars := []entity.Character{{ID: "c1", Name: "Lin"}, {ID: "c2", Name: "Mara"}}
	got := StateBlock(chars, map[string]entity.CharacterState{"c1": {Clothing: "coat"}, "ghost": {Clothing: "x"}})
	assert.Contains(t, got, `"Lin"`)
	assert.Contains(t, got, `"coat"`)
	assert.NotContains(t, got, "ghost")
	assert.Equal(t, "{}", StateBlock(chars, nil))
}

func TestExtractJSONObject(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `{"a":1}`, ExtractJSONObject("sure:\n```json\n{\"a\":1}\n```"))
	assert.Equal(t, `[1,2]`, ExtractJSONObject("list [1,2] done"))
	assert.Equal(t, "", ExtractJSONObject("  "))
}

func TestTruncateByRunes(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "你好", TruncateByRunes("你好世界", 2))
	assert.Equal(t, "abc", TruncateByRunes("abc", 10))
	assert.Equal(t, "", TruncateByRunes("abc", 0))
}

func TestIsResponseFormatUnsupportedError(t *testing.T) {
	t.Parallel()

	assert.False(t, IsResponseFormatUnsupportedError(nil))
	assert.True(t, IsResponseFormatUnsupportedError(assertErr("400: response_format is not supported")))
	assert.False(t, IsResponseFormatUnsupportedError(assertErr("connection reset")))
}

type assertErr string

func (e assertErr) Error() string { return string(e) }
