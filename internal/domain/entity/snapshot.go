package entity

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// 快照结构历史：
//
//	0: requirements 单字段，角色为 "名称：描述" 字符串，无 after_state
//	1: uuid 主键，角色对象，小节可能带旧的 current_state 或缺少 after_state
//	2: uuid 主键，after_state 以角色名为键
//	3: id 主键，章节/小节/角色均有稳定 ID，after_state 以角色 ID 为键

// SnapshotError 快照无法解析或校验失败
type SnapshotError struct {
	Version int
	Issues  []string
}

func (e *SnapshotError) Error() string {
	return fmt.Sprintf("invalid novel snapshot (schema v%d): %s", e.Version, strings.Join(e.Issues, "; "))
}

// DetectSchemaVersion 探测快照结构版本
func DetectSchemaVersion(data []byte) (int, error) {
	if !gjson.ValidBytes(data) {
		return 0, &SnapshotError{Version: -1, Issues: []string{"malformed JSON"}}
	}
	root := gjson.ParseBytes(data)
	if !root.IsObject() {
		return 0, &SnapshotError{Version: -1, Issues: []string{"snapshot must be a JSON object"}}
	}

	if v := root.Get("schema_version"); v.Exists() {
		version := int(v.Int())
		if version < 0 || version > CurrentSchemaVersion {
			return 0, &SnapshotError{Version: version, Issues: []string{"unsupported schema_version"}}
		}
		return version, nil
	}
	if root.Get("requirements").Exists() || root.Get("characters.0").Type == gjson.String {
		return 0, nil
	}
	if root.Get("uuid").Exists() {
		if hasAfterState(root) {
			return 2, nil
		}
		return 1, nil
	}
	return CurrentSchemaVersion, nil
}

func hasAfterState(root gjson.Result) bool {
	found := false
	root.Get("chapters").ForEach(func(_, ch gjson.Result) bool {
		ch.Get("sections").ForEach(func(_, sec gjson.Result) bool {
			if sec.Get("after_state").Exists() {
				found = true
			}
			return !found
		})
		return !found
	})
	return found
}

// DecodeSnapshot 解析任意版本的快照并迁移到当前版本，返回原始版本号
func DecodeSnapshot(data []byte) (*Novel, int, error) {
	version, err := DetectSchemaVersion(data)
	if err != nil {
		return nil, 0, err
	}

	var novel *Novel
	if version == CurrentSchemaVersion {
		novel = &Novel{}
		if err := json.Unmarshal(data, novel); err != nil {
			return nil, version, &SnapshotError{Version: version, Issues: []string{err.Error()}}
		}
	} else {
		novel, err = migrateLegacy(data, version)
		if err != nil {
			return nil, version, err
		}
	}

	novel.SchemaVersion = CurrentSchemaVersion
	novel.normalize()
	if issues := novel.Validate(); len(issues) > 0 {
		return nil, version, &SnapshotError{Version: version, Issues: issues}
	}
	return novel, version, nil
}

// EncodeSnapshot 序列化为当前版本快照
func EncodeSnapshot(n *Novel) ([]byte, error) {
	cp := n.Clone()
	cp.SchemaVersion = CurrentSchemaVersion
	cp.normalize()
	return json.Marshal(cp)
}

// normalize 补齐空集合与缺失 ID
func (n *Novel) normalize() {
	if n.ID == "" {
		n.ID = NewID()
	}
	if n.Characters == nil {
		n.Characters = []Character{}
	}
	if n.Chapters == nil {
		n.Chapters = []Chapter{}
	}
	for i := range n.Characters {
		if n.Characters[i].ID == "" {
			n.Characters[i].ID = NewID()
		}
	}
	for ci := range n.Chapters {
		ch := &n.Chapters[ci]
		if ch.ID == "" {
			ch.ID = NewID()
		}
		if ch.Sections == nil {
			ch.Sections = []Section{}
		}
		for si := range ch.Sections {
			sec := &ch.Sections[si]
			if sec.ID == "" {
				sec.ID = NewID()
			}
			if sec.AfterState == nil {
				sec.AfterState = map[string]CharacterState{}
			}
		}
	}
}

// Validate 校验结构一致性，返回问题列表
func (n *Novel) Validate() []string {
	var issues []string
	if strings.TrimSpace(n.ID) == "" {
		issues = append(issues, "id is empty")
	}

	names := make(map[string]struct{}, len(n.Characters))
	roster := make(map[string]struct{}, len(n.Characters))
	for i, c := range n.Characters {
		if strings.TrimSpace(c.Name) == "" {
			issues = append(issues, fmt.Sprintf("characters[%d].name is empty", i))
		} else if _, dup := names[normalizeName(c.Name)]; dup {
			issues = append(issues, fmt.Sprintf("characters[%d].name %q is duplicated", i, c.Name))
		}
		names[normalizeName(c.Name)] = struct{}{}
		if _, dup := roster[c.ID]; dup {
			issues = append(issues, fmt.Sprintf("characters[%d].id is duplicated", i))
		}
		roster[c.ID] = struct{}{}
	}

	ids := make(map[string]struct{})
	for ci, ch := range n.Chapters {
		if _, dup := ids[ch.ID]; dup {
			issues = append(issues, fmt.Sprintf("chapters[%d].id is duplicated", ci))
		}
		ids[ch.ID] = struct{}{}
		for si, sec := range ch.Sections {
			if _, dup := ids[sec.ID]; dup {
				issues = append(issues, fmt.Sprintf("chapters[%d].sections[%d].id is duplicated", ci, si))
			}
			ids[sec.ID] = struct{}{}
			for key := range sec.AfterState {
				if _, ok := roster[key]; !ok {
					issues = append(issues, fmt.Sprintf("chapters[%d].sections[%d].after_state references unknown character %q", ci, si, key))
				}
			}
		}
	}
	return issues
}

type legacySnapshot struct {
	UUID                string          `json:"uuid"`
	ID                  string          `json:"id"`
	Requirements        string          `json:"requirements"`
	PlotRequirements    string          `json:"plot_requirements"`
	WritingRequirements string          `json:"writing_requirements"`
	Title               string          `json:"title"`
	Overview            string          `json:"overview"`
	Language            string          `json:"language"`
	RawCharacters       json.RawMessage `json:"characters"`
	Chapters            []legacyChapter `json:"chapters"`
	ExportedMarkdown    string          `json:"exported_markdown"`

	characters []Character
}

type legacyChapter struct {
	ID       string          `json:"id"`
	Title    string          `json:"title"`
	Overview string          `json:"overview"`
	Sections []legacySection `json:"sections"`
}

type legacySection struct {
	ID           string                    `json:"id"`
	Title        string                    `json:"title"`
	Overview     string                    `json:"overview"`
	Content      *string                   `json:"content"`
	AfterState   map[string]CharacterState `json:"after_state"`
	CurrentState json.RawMessage           `json:"current_state"`
}

// migrations[v] 把版本 v 升级到 v+1
var migrations = []func(*legacySnapshot) error{
	upgradeFromV0,
	upgradeFromV1,
	upgradeFromV2,
}

func migrateLegacy(data []byte, version int) (*Novel, error) {
	var ls legacySnapshot
	if err := json.Unmarshal(data, &ls); err != nil {
		return nil, &SnapshotError{Version: version, Issues: []string{err.Error()}}
	}
	if version > 0 && len(ls.RawCharacters) > 0 && string(ls.RawCharacters) != "null" {
		if err := json.Unmarshal(ls.RawCharacters, &ls.characters); err != nil {
			return nil, &SnapshotError{Version: version, Issues: []string{"characters: " + err.Error()}}
		}
	}

	for v := version; v < CurrentSchemaVersion; v++ {
		if err := migrations[v](&ls); err != nil {
			return nil, &SnapshotError{Version: v, Issues: []string{err.Error()}}
		}
	}
	return ls.toNovel(), nil
}

// upgradeFromV0 拆分 requirements 与字符串角色
func upgradeFromV0(ls *legacySnapshot) error {
	if ls.PlotRequirements == "" {
		ls.PlotRequirements = ls.Requirements
	}
	ls.Requirements = ""

	if len(ls.RawCharacters) == 0 || string(ls.RawCharacters) == "null" {
		return nil
	}
	var raw []string
	if err := json.Unmarshal(ls.RawCharacters, &raw); err != nil {
		return fmt.Errorf("characters: %w", err)
	}
	ls.characters = make([]Character, 0, len(raw))
	for _, s := range raw {
		name, desc := splitCharacterLine(s)
		if name == "" {
			continue
		}
		ls.characters = append(ls.characters, Character{Name: name, Description: desc})
	}
	return nil
}

// upgradeFromV1 丢弃旧的 current_state，补齐 after_state
func upgradeFromV1(ls *legacySnapshot) error {
	for ci := range ls.Chapters {
		for si := range ls.Chapters[ci].Sections {
			sec := &ls.Chapters[ci].Sections[si]
			sec.CurrentState = nil
			if sec.AfterState == nil {
				sec.AfterState = map[string]CharacterState{}
			}
		}
	}
	return nil
}

// upgradeFromV2 分配稳定 ID，after_state 改为以角色 ID 为键，丢弃名单外的名字
func upgradeFromV2(ls *legacySnapshot) error {
	if ls.ID == "" {
		ls.ID = ls.UUID
	}
	byName := make(map[string]string, len(ls.characters))
	for i := range ls.characters {
		if ls.characters[i].ID == "" {
			ls.characters[i].ID = NewID()
		}
		byName[normalizeName(ls.characters[i].Name)] = ls.characters[i].ID
	}
	for ci := range ls.Chapters {
		ch := &ls.Chapters[ci]
		if ch.ID == "" {
			ch.ID = NewID()
		}
		for si := range ch.Sections {
			sec := &ch.Sections[si]
			if sec.ID == "" {
				sec.ID = NewID()
			}
			rekeyed := make(map[string]CharacterState, len(sec.AfterState))
			for name, st := range sec.AfterState {
				if id, ok := byName[normalizeName(name)]; ok {
					rekeyed[id] = st
				}
			}
			sec.AfterState = rekeyed
		}
	}
	return nil
}

func (ls *legacySnapshot) toNovel() *Novel {
	n := &Novel{
		SchemaVersion:       CurrentSchemaVersion,
		ID:                  ls.ID,
		PlotRequirements:    ls.PlotRequirements,
		WritingRequirements: ls.WritingRequirements,
		Title:               ls.Title,
		Overview:            ls.Overview,
		Language:            ls.Language,
		Characters:          ls.characters,
		Chapters:            make([]Chapter, 0, len(ls.Chapters)),
		ExportedMarkdown:    ls.ExportedMarkdown,
	}
	for _, lc := range ls.Chapters {
		ch := Chapter{ID: lc.ID, Title: lc.Title, Overview: lc.Overview, Sections: make([]Section, 0, len(lc.Sections))}
		for _, sec := range lc.Sections {
			ch.Sections = append(ch.Sections, Section{
				ID:         sec.ID,
				Title:      sec.Title,
				Overview:   sec.Overview,
				Content:    sec.Content,
				AfterState: sec.AfterState,
			})
		}
		n.Chapters = append(n.Chapters, ch)
	}
	return n
}

// splitCharacterLine 按第一个中文或英文冒号拆分 "名称：描述"
func splitCharacterLine(s string) (string, string) {
	s = strings.TrimSpace(s)
	idx := -1
	width := 0
	if i := strings.Index(s, "："); i >= 0 {
		idx, width = i, len("：")
	}
	if i := strings.Index(s, ":"); i >= 0 && (idx < 0 || i < idx) {
		idx, width = i, 1
	}
	if idx < 0 {
		return s, ""
	}
	return strings.TrimSpace(s[:idx]), strings.TrimSpace(s[idx+width:])
}
