package novel

import (
	"fmt"
	"strings"
	"unicode/utf8"

	wfmodel "z-novel-writer/internal/workflow/model"
)

const (
	maxTitleRunes       = 200
	maxCharacterRunes   = 100
	maxDescriptionRunes = 20000
)

// ValidateOverview 校验概要输出，返回问题列表
func ValidateOverview(out *wfmodel.OverviewOutput) []string {
	if out == nil {
		return []string{"output is nil"}
	}
	var issues []string
	if strings.TrimSpace(out.Title) == "" {
		issues = append(issues, "title is required")
	} else if utf8.RuneCountInString(out.Title) > maxTitleRunes {
		issues = append(issues, "title too long")
	}
	if strings.TrimSpace(out.Overview) == "" {
		issues = append(issues, "overview is required")
	}
	if len(out.Characters) == 0 {
		issues = append(issues, "characters must not be empty")
	}

	names := make(map[string]struct{}, len(out.Characters))
	for i, c := range out.Characters {
		path := fmt.Sprintf("characters[%d]", i)
		name := strings.TrimSpace(c.Name)
		if name == "" {
			issues = append(issues, path+".name is required")
			continue
		}
		if utf8.RuneCountInString(name) > maxCharacterRunes {
			issues = append(issues, path+".name too long")
		}
		key := strings.ToLower(name)
		if _, ok := names[key]; ok {
			issues = append(issues, path+".name duplicated: "+name)
		}
		names[key] = struct{}{}
		if utf8.RuneCountInString(c.Description) > maxDescriptionRunes {
			issues = append(issues, path+".description too long")
		}
	}
	return issues
}

// ValidatePlotList 至少一项，且每项有标题或概要
func ValidatePlotList(items []wfmodel.PlotItem) []string {
	if len(items) == 0 {
		return []string{"items must not be empty"}
	}
	var issues []string
	for i, it := range items {
		if strings.TrimSpace(it.Title) == "" && strings.TrimSpace(it.Overview) == "" {
			issues = append(issues, fmt.Sprintf("items[%d] has neither title nor overview", i))
		}
	}
	return issues
}

// ValidateSectionContent 正文不能为空
func ValidateSectionContent(out *wfmodel.SectionContentOutput) []string {
	if out == nil {
		return []string{"output is nil"}
	}
	if strings.TrimSpace(out.Content) == "" {
		return []string{"content is required"}
	}
	return nil
}
