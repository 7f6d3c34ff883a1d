package prompt

import (
	"embed"
	"fmt"
	"strings"
	"sync"

	einoprompt "github.com/cloudwego/eino/components/prompt"
	"github.com/cloudwego/eino/schema"
)

//go:embed templates/*.txt
var templatesFS embed.FS

type PromptID string

const (
	PromptLanguageDetectV1 PromptID = "language_detect_v1"
	PromptNovelOverviewV1  PromptID = "novel_overview_v1"
	PromptChapterPlanV1    PromptID = "chapter_plan_v1"
	PromptSectionPlanV1    PromptID = "section_plan_v1"
	PromptSectionContentV1 PromptID = "section_content_v1"
	PromptTranslateV1      PromptID = "translate_v1"
)

// AllPromptIDs 已注册的全部模板
var AllPromptIDs = []PromptID{
	PromptLanguageDetectV1,
	PromptNovelOverviewV1,
	PromptChapterPlanV1,
	PromptSectionPlanV1,
	PromptSectionContentV1,
	PromptTranslateV1,
}

type Registry struct {
	mu    sync.RWMutex
	cache map[PromptID]einoprompt.ChatTemplate
}

func NewRegistry() *Registry {
	return &Registry{
		cache: make(map[PromptID]einoprompt.ChatTemplate),
	}
}

// ChatTemplate 返回 system + user 两段 FString 模板，首次访问后缓存
func (r *Registry) ChatTemplate(id PromptID) (einoprompt.ChatTemplate, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry is nil")
	}

	r.mu.RLock()
	if tpl, ok := r.cache[id]; ok {
		r.mu.RUnlock()
		return tpl, nil
	}
	r.mu.RUnlock()

	r.mu.Lock()
	defer r.mu.Unlock()
	if tpl, ok := r.cache[id]; ok {
		return tpl, nil
	}

	system, user, err := r.texts(id)
	if err != nil {
		return nil, err
	}

	tpl := einoprompt.FromMessages(
		schema.FString,
		schema.SystemMessage(system),
		schema.UserMessage(user),
	)
	r.cache[id] = tpl
	return tpl, nil
}

func (r *Registry) texts(id PromptID) (string, string, error) {
	systemPath, userPath, err := resolvePromptFiles(id)
	if err != nil {
		return "", "", err
	}
	system, err := readEmbeddedText(systemPath)
	if err != nil {
		return "", "", err
	}
	user, err := readEmbeddedText(userPath)
	if err != nil {
		return "", "", err
	}
	return system, user, nil
}

func resolvePromptFiles(id PromptID) (systemFile string, userFile string, err error) {
	for _, known := range AllPromptIDs {
		if known == id {
			return "templates/" + string(id) + ".system.txt", "templates/" + string(id) + ".user.txt", nil
		}
	}
	return "", "", fmt.Errorf("unknown prompt id: %s", id)
}

func readEmbeddedText(path string) (string, error) {
	b, err := templatesFS.ReadFile(path)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}
