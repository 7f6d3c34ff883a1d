package node

import (
	"encoding/json"
	"fmt"
	"strings"

	"z-novel-writer/internal/domain/entity"
)

// EmptyBlock 空上下文块的占位文本
const EmptyBlock = "(none)"

// ChaptersBlock 渲染全部章节概要
func ChaptersBlock(chapters []entity.Chapter) string {
	if len(chapters) == 0 {
		return EmptyBlock
	}
	lines := make([]string, 0, len(chapters))
	for i, ch := range chapters {
		title := strings.TrimSpace(ch.Title)
		if title == "" {
			title = fmt.Sprintf("Chapter %d", i+1)
		}
		lines = append(lines, fmt.Sprintf("- **%d. %s**: %s", i+1, title, strings.TrimSpace(ch.Overview)))
	}
	return strings.Join(lines, "\n")
}

// SectionsBlock 渲染一个章节内的小节概要
func SectionsBlock(sections []entity.Section) string {
	if len(sections) == 0 {
		return EmptyBlock
	}
	lines := make([]string, 0, len(sections))
	for i, sec := range sections {
		title := strings.TrimSpace(sec.Title)
		if title == "" {
			title = fmt.Sprintf("Section %d", i+1)
		}
		lines = append(lines, fmt.Sprintf("    - **%d. %s**: %s", i+1, title, strings.TrimSpace(sec.Overview)))
	}
	return strings.Join(lines, "\n")
}

// CharactersBlock 渲染角色列表
func CharactersBlock(characters []entity.Character) string {
	if len(characters) == 0 {
		return EmptyBlock
	}
	lines := make([]string, 0, len(characters))
	for _, c := range characters {
		lines = append(lines, fmt.Sprintf("- **%s**: %s", strings.TrimSpace(c.Name), strings.TrimSpace(c.Description)))
	}
	return strings.Join(lines, "\n")
}

// StateBlock 把按角色 ID 存储的状态渲染成以角色名为键的 JSON，角色顺序无关
func StateBlock(characters []entity.Character, states map[string]entity.CharacterState) string {
	if len(states) == 0 {
		return "{}"
	}
	byName := make(map[string]entity.CharacterState, len(states))
	for _, c := range characters {
		if st, ok := states[c.ID]; ok {
			byName[c.Name] = st
		}
	}
	if len(byName) == 0 {
		return "{}"
	}
	b, err := json.MarshalIndent(byName, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(b)
}

// TextOrEmpty 空白文本替换为占位符
func TextOrEmpty(s string) string {
	if strings.TrimSpace(s) == "" {
		return EmptyBlock
	}
	return s
}
