package novel

import (
	"fmt"
	"strings"

	"z-novel-writer/internal/domain/entity"
)

// RenderMarkdown 渲染全文：标题、概要、目录、角色列表、章节与小节
func RenderMarkdown(n *entity.Novel) string {
	if n == nil {
		return ""
	}
	var lines []string

	if n.Title != "" {
		lines = append(lines, "# "+n.Title+"\n")
	}
	if n.Overview != "" {
		lines = append(lines, "**小说概要：**\n"+n.Overview+"\n")
	}

	var toc []string
	if len(n.Characters) > 0 {
		toc = append(toc, "- [角色列表](#角色列表)")
	}
	for ci, ch := range n.Chapters {
		title := chapterTitle(ch, ci)
		toc = append(toc, fmt.Sprintf("- [%s](#%s)", title, anchorOf(title)))
		for si, sec := range ch.Sections {
			st := sectionTitle(sec, si)
			toc = append(toc, fmt.Sprintf("    - [%s](#%s)", st, anchorOf(st)))
		}
	}
	if len(toc) > 0 {
		lines = append(lines, "## 目录\n"+strings.Join(toc, "\n")+"\n")
	}

	if len(n.Characters) > 0 {
		lines = append(lines, "## 角色列表\n")
		roster := make([]string, 0, len(n.Characters))
		for _, c := range n.Characters {
			roster = append(roster, fmt.Sprintf("- **%s**: %s", c.Name, c.Description))
		}
		lines = append(lines, strings.Join(roster, "\n"), "")
	}

	for ci, ch := range n.Chapters {
		lines = append(lines, "## "+chapterTitle(ch, ci)+"\n")
		if ch.Overview != "" {
			lines = append(lines, "> "+ch.Overview+"\n")
		}
		for si, sec := range ch.Sections {
			lines = append(lines, "### "+sectionTitle(sec, si)+"\n")
			if sec.Overview != "" {
				lines = append(lines, "> "+sec.Overview+"\n")
			}
			if sec.Content != nil && *sec.Content != "" {
				lines = append(lines, strings.TrimSpace(*sec.Content)+"\n")
			}
		}
	}

	return strings.Join(lines, "\n")
}

func chapterTitle(ch entity.Chapter, idx int) string {
	if ch.Title != "" {
		return ch.Title
	}
	return fmt.Sprintf("章节%d", idx+1)
}

func sectionTitle(sec entity.Section, idx int) string {
	if sec.Title != "" {
		return sec.Title
	}
	return fmt.Sprintf("小节%d", idx+1)
}

// anchorOf 目录锚点去掉空格与 #
func anchorOf(title string) string {
	return strings.NewReplacer(" ", "", "#", "").Replace(title)
}
