package novel

import (
	"context"
	"strings"

	"z-novel-writer/internal/domain/entity"
	apperrors "z-novel-writer/pkg/errors"
)

// SetRequirements 修改情节与写作要求
func (o *Orchestrator) SetRequirements(ctx context.Context, plotRequirements, writingRequirements string) error {
	return o.edit(ctx, "set_requirements", func(next *entity.Novel) error {
		next.PlotRequirements = strings.TrimSpace(plotRequirements)
		next.WritingRequirements = strings.TrimSpace(writingRequirements)
		return nil
	})
}

// AddCharacter 追加角色，名字不可重复
func (o *Orchestrator) AddCharacter(ctx context.Context, name, description string) (*entity.Character, error) {
	var added entity.Character
	err := o.edit(ctx, "add_character", func(next *entity.Novel) error {
		name = strings.TrimSpace(name)
		if name == "" {
			return invalidParam("character name is required")
		}
		if _, dup := next.CharacterByName(name); dup {
			return apperrors.ErrConflict.WithDetail("character name already exists: " + name)
		}
		added = entity.Character{ID: entity.NewID(), Name: name, Description: strings.TrimSpace(description)}
		next.Characters = append(next.Characters, added)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &added, nil
}

// UpdateCharacter 修改角色名称与描述，状态按 ID 关联不受影响
func (o *Orchestrator) UpdateCharacter(ctx context.Context, id, name, description string) error {
	return o.edit(ctx, "update_character", func(next *entity.Novel) error {
		c, ok := next.CharacterByID(id)
		if !ok {
			return apperrors.ErrNotFound.WithDetail("character not found: " + id)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return invalidParam("character name is required")
		}
		if other, dup := next.CharacterByName(name); dup && other.ID != id {
			return apperrors.ErrConflict.WithDetail("character name already exists: " + name)
		}
		c.Name = name
		c.Description = strings.TrimSpace(description)
		return nil
	})
}

// RemoveCharacter 删除角色及其在所有小节中的状态
func (o *Orchestrator) RemoveCharacter(ctx context.Context, id string) error {
	return o.edit(ctx, "remove_character", func(next *entity.Novel) error {
		idx := -1
		for i := range next.Characters {
			if next.Characters[i].ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			return apperrors.ErrNotFound.WithDetail("character not found: " + id)
		}
		next.Characters = append(next.Characters[:idx], next.Characters[idx+1:]...)
		next.RemoveCharacterStates(id)
		return nil
	})
}

// InsertChapter 在 at 位置插入空章节，at 可等于章节数表示追加
func (o *Orchestrator) InsertChapter(ctx context.Context, at int, title, overview string) (*entity.Chapter, error) {
	var inserted entity.Chapter
	err := o.edit(ctx, "insert_chapter", func(next *entity.Novel) error {
		if at < 0 || at > len(next.Chapters) {
			return indexError("chapter insert position %d out of range [0, %d]", at, len(next.Chapters))
		}
		inserted = entity.NewChapter(strings.TrimSpace(title), strings.TrimSpace(overview))
		next.Chapters = append(next.Chapters[:at], append([]entity.Chapter{inserted}, next.Chapters[at:]...)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &inserted, nil
}

// RemoveChapter 删除章节及其小节
func (o *Orchestrator) RemoveChapter(ctx context.Context, chapterIndex int) error {
	return o.edit(ctx, "remove_chapter", func(next *entity.Novel) error {
		if !next.HasChapter(chapterIndex) {
			return indexError("chapter index %d out of range [0, %d)", chapterIndex, len(next.Chapters))
		}
		next.Chapters = append(next.Chapters[:chapterIndex], next.Chapters[chapterIndex+1:]...)
		return nil
	})
}

// InsertSection 在章节的 at 位置插入空小节
func (o *Orchestrator) InsertSection(ctx context.Context, chapterIndex, at int, title, overview string) (*entity.Section, error) {
	var inserted entity.Section
	err := o.edit(ctx, "insert_section", func(next *entity.Novel) error {
		if !next.HasChapter(chapterIndex) {
			return indexError("chapter index %d out of range [0, %d)", chapterIndex, len(next.Chapters))
		}
		ch := &next.Chapters[chapterIndex]
		if at < 0 || at > len(ch.Sections) {
			return indexError("section insert position %d out of range [0, %d]", at, len(ch.Sections))
		}
		inserted = entity.NewSection(strings.TrimSpace(title), strings.TrimSpace(overview))
		ch.Sections = append(ch.Sections[:at], append([]entity.Section{inserted}, ch.Sections[at:]...)...)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &inserted, nil
}

// RemoveSection 删除小节
func (o *Orchestrator) RemoveSection(ctx context.Context, chapterIndex, sectionIndex int) error {
	return o.edit(ctx, "remove_section", func(next *entity.Novel) error {
		if !next.HasSection(chapterIndex, sectionIndex) {
			return indexError("section %d/%d not found", chapterIndex, sectionIndex)
		}
		ch := &next.Chapters[chapterIndex]
		ch.Sections = append(ch.Sections[:sectionIndex], ch.Sections[sectionIndex+1:]...)
		return nil
	})
}

// edit 在副本上执行修改，校验通过后提交
func (o *Orchestrator) edit(ctx context.Context, op string, mutate func(next *entity.Novel) error) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.run(ctx, op, false, func(ctx context.Context) error {
		next := o.novel.Clone()
		if err := mutate(next); err != nil {
			return err
		}
		if issues := next.Validate(); len(issues) > 0 {
			return apperrors.ErrValidationFailed.WithDetail(strings.Join(issues, "; "))
		}
		return o.commit(ctx, next)
	})
}
