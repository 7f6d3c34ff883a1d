package novel

import (
	"encoding/json"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"

	wfmodel "z-novel-writer/internal/workflow/model"
	wfnode "z-novel-writer/internal/workflow/node"
)

// plotListKeys 模型有时不用约定的 items 键
var plotListKeys = []string{"items", "chapters", "sections", "plots"}

// ParseLanguageLabel 从语言识别输出中取出语言名
func ParseLanguageLabel(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if i := strings.IndexAny(line, ":："); i >= 0 && strings.EqualFold(strings.TrimSpace(line[:i]), "language") {
			_, width := utf8.DecodeRuneInString(line[i:])
			line = line[i+width:]
		}
		return strings.Trim(strings.TrimSpace(line), "\"'`*.。 ")
	}
	return ""
}

// ParseOverview 从模型输出中解析概要，并返回截取后的 JSON 文本
func ParseOverview(rawText string) (*wfmodel.OverviewOutput, string, error) {
	jsonText := wfnode.ExtractJSONObject(rawText)
	if strings.TrimSpace(jsonText) == "" {
		return nil, jsonText, fmt.Errorf("empty overview output")
	}
	var out wfmodel.OverviewOutput
	if err := json.Unmarshal([]byte(jsonText), &out); err != nil {
		return nil, jsonText, fmt.Errorf("failed to parse overview json: %w", err)
	}
	return &out, jsonText, nil
}

// ParsePlotList 解析章节/小节列表，兼容裸数组与常见键名
func ParsePlotList(rawText string) ([]wfmodel.PlotItem, string, error) {
	jsonText := wfnode.ExtractJSONObject(rawText)
	if strings.TrimSpace(jsonText) == "" {
		return nil, jsonText, fmt.Errorf("empty plot list output")
	}
	if !gjson.Valid(jsonText) {
		return nil, jsonText, fmt.Errorf("failed to parse plot list json: malformed JSON")
	}

	root := gjson.Parse(jsonText)
	list := root
	if !root.IsArray() {
		list = gjson.Result{}
		for _, key := range plotListKeys {
			if r := root.Get(key); r.IsArray() {
				list = r
				break
			}
		}
		if !list.Exists() {
			return nil, jsonText, fmt.Errorf("plot list output has no items array")
		}
	}

	var items []wfmodel.PlotItem
	if err := json.Unmarshal([]byte(list.Raw), &items); err != nil {
		return nil, jsonText, fmt.Errorf("failed to parse plot list json: %w", err)
	}
	return items, jsonText, nil
}

// ParseSectionContent 解析小节正文与角色状态
func ParseSectionContent(rawText string) (*wfmodel.SectionContentOutput, string, error) {
	jsonText := wfnode.ExtractJSONObject(rawText)
	if strings.TrimSpace(jsonText) == "" {
		return nil, jsonText, fmt.Errorf("empty section content output")
	}
	var out wfmodel.SectionContentOutput
	if err := json.Unmarshal([]byte(jsonText), &out); err != nil {
		return nil, jsonText, fmt.Errorf("failed to parse section content json: %w", err)
	}
	return &out, jsonText, nil
}
