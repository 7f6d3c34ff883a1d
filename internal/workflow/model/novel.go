package model

// PlotItem 章节或小节大纲
type PlotItem struct {
	Title    string `json:"title"`
	Overview string `json:"overview"`
}

// CharacterItem 角色设定
type CharacterItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// CharacterStateItem 角色状态
type CharacterStateItem struct {
	Clothing      string `json:"clothing"`
	Psychological string `json:"psychological"`
	Physiological string `json:"physiological"`
}

// OverviewOutput 概要输出
type OverviewOutput struct {
	Title      string          `json:"title"`
	Overview   string          `json:"overview"`
	Characters []CharacterItem `json:"characters"`
}

// PlotListOutput 章节/小节列表输出
type PlotListOutput struct {
	Items []PlotItem `json:"items"`
}

// SectionContentOutput 小节正文输出，current_state 以角色名为键
type SectionContentOutput struct {
	Content      string                        `json:"content"`
	CurrentState map[string]CharacterStateItem `json:"current_state"`
}

// LanguageDetectInput 语言识别输入
type LanguageDetectInput struct {
	CallOptions
	Text string
}

// OverviewInput 概要生成输入
type OverviewInput struct {
	CallOptions
	Language            string
	PlotRequirements    string
	WritingRequirements string
}

// ChapterPlanInput 章节规划输入
type ChapterPlanInput struct {
	CallOptions
	Language            string
	Title               string
	Overview            string
	PlotRequirements    string
	WritingRequirements string
	CharactersBlock     string
	// Count 为 0 时由模型决定章节数
	Count  int
	Replay *Replay
}

// SectionPlanInput 小节规划输入
type SectionPlanInput struct {
	CallOptions
	Language            string
	Title               string
	Overview            string
	PlotRequirements    string
	WritingRequirements string
	CharactersBlock     string
	ChapterTitle        string
	ChapterOverview     string
	Count               int
	Replay              *Replay
}

// SectionContentInput 小节正文输入，各块已按上下文顺序渲染
type SectionContentInput struct {
	CallOptions
	Language            string
	Title               string
	Overview            string
	WritingRequirements string
	ChaptersBlock       string
	CharactersBlock     string
	SectionsBlock       string
	PreviousStateBlock  string
	PreviousContent     string
	ChapterOverview     string
	SectionOverview     string
	Replay              *Replay
}

// TranslateInput 分块翻译输入
type TranslateInput struct {
	CallOptions
	TargetLanguage string
	Text           string
}
