// Package entity 定义领域实体
package entity

import (
	"strings"

	"github.com/google/uuid"
)

// CurrentSchemaVersion 当前快照结构版本
const CurrentSchemaVersion = 3

// CharacterState 角色在某一小节结束时的状态
type CharacterState struct {
	Clothing      string `json:"clothing"`
	Psychological string `json:"psychological"`
	Physiological string `json:"physiological"`
}

// IsZero 三项状态均为空
func (s CharacterState) IsZero() bool {
	return s.Clothing == "" && s.Psychological == "" && s.Physiological == ""
}

// Character 角色
type Character struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Section 小节
type Section struct {
	ID       string  `json:"id"`
	Title    string  `json:"title"`
	Overview string  `json:"overview"`
	Content  *string `json:"content"`
	// AfterState 按角色 ID 记录小节结束时的状态
	AfterState map[string]CharacterState `json:"after_state"`
}

// HasContent 小节正文是否已生成
func (s *Section) HasContent() bool {
	return s.Content != nil && strings.TrimSpace(*s.Content) != ""
}

// ContentText 返回正文，未生成时为空串
func (s *Section) ContentText() string {
	if s.Content == nil {
		return ""
	}
	return *s.Content
}

// Chapter 章节
type Chapter struct {
	ID       string    `json:"id"`
	Title    string    `json:"title"`
	Overview string    `json:"overview"`
	Sections []Section `json:"sections"`
}

// Novel 小说工作状态，是持久化快照的根
type Novel struct {
	SchemaVersion       int         `json:"schema_version"`
	ID                  string      `json:"id"`
	PlotRequirements    string      `json:"plot_requirements"`
	WritingRequirements string      `json:"writing_requirements"`
	Title               string      `json:"title"`
	Overview            string      `json:"overview"`
	Language            string      `json:"language"`
	Characters          []Character `json:"characters"`
	Chapters            []Chapter   `json:"chapters"`
	ExportedMarkdown    string      `json:"exported_markdown"`
}

// NewID 生成稳定标识
func NewID() string {
	return uuid.NewString()
}

// NewNovel 创建空小说
func NewNovel() *Novel {
	return &Novel{
		SchemaVersion: CurrentSchemaVersion,
		ID:            NewID(),
		Characters:    []Character{},
		Chapters:      []Chapter{},
	}
}

// NewSection 创建仅含大纲的小节
func NewSection(title, overview string) Section {
	return Section{
		ID:         NewID(),
		Title:      title,
		Overview:   overview,
		AfterState: map[string]CharacterState{},
	}
}

// NewChapter 创建不含小节的章节
func NewChapter(title, overview string) Chapter {
	return Chapter{
		ID:       NewID(),
		Title:    title,
		Overview: overview,
		Sections: []Section{},
	}
}

// Clone 深拷贝
func (n *Novel) Clone() *Novel {
	if n == nil {
		return nil
	}
	cp := *n
	cp.Characters = append([]Character(nil), n.Characters...)
	if cp.Characters == nil {
		cp.Characters = []Character{}
	}
	cp.Chapters = make([]Chapter, len(n.Chapters))
	for i := range n.Chapters {
		cp.Chapters[i] = n.Chapters[i].clone()
	}
	return &cp
}

func (c Chapter) clone() Chapter {
	cp := c
	cp.Sections = make([]Section, len(c.Sections))
	for i := range c.Sections {
		cp.Sections[i] = c.Sections[i].clone()
	}
	return cp
}

func (s Section) clone() Section {
	cp := s
	if s.Content != nil {
		content := *s.Content
		cp.Content = &content
	}
	cp.AfterState = make(map[string]CharacterState, len(s.AfterState))
	for k, v := range s.AfterState {
		cp.AfterState[k] = v
	}
	return cp
}

// MissingFoundation 返回规划章节前缺失的基础信息字段
func (n *Novel) MissingFoundation() []string {
	var missing []string
	if strings.TrimSpace(n.Title) == "" {
		missing = append(missing, "title")
	}
	if strings.TrimSpace(n.Overview) == "" {
		missing = append(missing, "overview")
	}
	if strings.TrimSpace(n.Language) == "" {
		missing = append(missing, "language")
	}
	if len(n.Characters) == 0 {
		missing = append(missing, "characters")
	}
	return missing
}

// HasChapter 章节下标是否有效
func (n *Novel) HasChapter(chapterIndex int) bool {
	return chapterIndex >= 0 && chapterIndex < len(n.Chapters)
}

// HasSection 小节下标是否有效
func (n *Novel) HasSection(chapterIndex, sectionIndex int) bool {
	if !n.HasChapter(chapterIndex) {
		return false
	}
	return sectionIndex >= 0 && sectionIndex < len(n.Chapters[chapterIndex].Sections)
}

// PreviousSection 返回前一小节：同章上一节，章首则取上一章最后一节
func (n *Novel) PreviousSection(chapterIndex, sectionIndex int) *Section {
	if !n.HasSection(chapterIndex, sectionIndex) {
		return nil
	}
	if sectionIndex > 0 {
		return &n.Chapters[chapterIndex].Sections[sectionIndex-1]
	}
	if chapterIndex == 0 {
		return nil
	}
	prev := n.Chapters[chapterIndex-1].Sections
	if len(prev) == 0 {
		return nil
	}
	return &prev[len(prev)-1]
}

// CharacterByID 按 ID 查找角色
func (n *Novel) CharacterByID(id string) (*Character, bool) {
	for i := range n.Characters {
		if n.Characters[i].ID == id {
			return &n.Characters[i], true
		}
	}
	return nil, false
}

// CharacterByName 按名称查找角色，忽略大小写与首尾空白
func (n *Novel) CharacterByName(name string) (*Character, bool) {
	key := normalizeName(name)
	if key == "" {
		return nil, false
	}
	for i := range n.Characters {
		if normalizeName(n.Characters[i].Name) == key {
			return &n.Characters[i], true
		}
	}
	return nil, false
}

// CharacterNames 返回 ID 到名称的映射
func (n *Novel) CharacterNames() map[string]string {
	out := make(map[string]string, len(n.Characters))
	for _, c := range n.Characters {
		out[c.ID] = c.Name
	}
	return out
}

// RemoveCharacterStates 删除所有小节中指定角色的状态
func (n *Novel) RemoveCharacterStates(characterID string) {
	for ci := range n.Chapters {
		for si := range n.Chapters[ci].Sections {
			delete(n.Chapters[ci].Sections[si].AfterState, characterID)
		}
	}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
