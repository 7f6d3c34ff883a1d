package novel

import (
	"context"
	"errors"
	"sort"
	"sync"

	"z-novel-writer/internal/domain/entity"
	"z-novel-writer/internal/domain/repository"
	wfmodel "z-novel-writer/internal/workflow/model"
)

type memRepo struct {
	mu      sync.Mutex
	records map[string]*entity.NovelRecord
	order   []string
	saves   int
	saveErr error
}

func newMemRepo() *memRepo {
	return &memRepo{records: make(map[string]*entity.NovelRecord)}
}

func (r *memRepo) Save(_ context.Context, n *entity.Novel) (*entity.NovelRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return nil, r.saveErr
	}
	data, err := entity.EncodeSnapshot(n)
	if err != nil {
		return nil, err
	}
	r.saves++
	rec, ok := r.records[n.ID]
	if !ok {
		rec = &entity.NovelRecord{ID: n.ID}
		r.records[n.ID] = rec
	}
	rec.StateJSON = string(data)
	rec.Version++
	r.touch(n.ID)
	cp := *rec
	return &cp, nil
}

func (r *memRepo) touch(id string) {
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.order = append([]string{id}, r.order...)
}

func (r *memRepo) Get(_ context.Context, id string) (*entity.NovelRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (r *memRepo) LoadPage(_ context.Context, p repository.Pagination) (int64, []*entity.NovelRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !p.Valid() {
		return 0, nil, errors.New("invalid pagination")
	}
	var out []*entity.NovelRecord
	for i := p.Offset(); i < len(r.order) && len(out) < p.Limit(); i++ {
		cp := *r.records[r.order[i]]
		out = append(out, &cp)
	}
	return int64(len(r.order)), out, nil
}

func (r *memRepo) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.records, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memRepo) savedNovel(id string) *entity.Novel {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.records[id]
	if !ok {
		return nil
	}
	n, err := rec.Decode()
	if err != nil {
		return nil
	}
	return n
}

type fakeGenerator struct {
	detectFunc   func(in *wfmodel.LanguageDetectInput) (string, error)
	overviewFunc func(in *wfmodel.OverviewInput) (*wfmodel.OverviewOutput, error)
	chapterFunc  func(in *wfmodel.ChapterPlanInput) ([]wfmodel.PlotItem, error)
	sectionFunc  func(in *wfmodel.SectionPlanInput) ([]wfmodel.PlotItem, error)
	contentFunc  func(in *wfmodel.SectionContentInput) (*wfmodel.SectionContentOutput, error)

	mu             sync.Mutex
	chapterInputs  []*wfmodel.ChapterPlanInput
	sectionInputs  []*wfmodel.SectionPlanInput
	contentInputs  []*wfmodel.SectionContentInput
	overviewInputs []*wfmodel.OverviewInput
}

func (g *fakeGenerator) DetectLanguage(_ context.Context, in *wfmodel.LanguageDetectInput) (*Generated[string], error) {
	if g.detectFunc == nil {
		return &Generated[string]{Value: "Chinese"}, nil
	}
	v, err := g.detectFunc(in)
	if err != nil {
		return nil, err
	}
	return &Generated[string]{Value: v}, nil
}

func (g *fakeGenerator) Overview(_ context.Context, in *wfmodel.OverviewInput) (*Generated[*wfmodel.OverviewOutput], error) {
	g.mu.Lock()
	g.overviewInputs = append(g.overviewInputs, in)
	g.mu.Unlock()
	if g.overviewFunc == nil {
		return nil, errors.New("overview not stubbed")
	}
	v, err := g.overviewFunc(in)
	if err != nil {
		return nil, err
	}
	return &Generated[*wfmodel.OverviewOutput]{Value: v}, nil
}

func (g *fakeGenerator) ChapterPlan(_ context.Context, in *wfmodel.ChapterPlanInput) (*Generated[[]wfmodel.PlotItem], error) {
	g.mu.Lock()
	g.chapterInputs = append(g.chapterInputs, in)
	g.mu.Unlock()
	if g.chapterFunc == nil {
		return nil, errors.New("chapter plan not stubbed")
	}
	v, err := g.chapterFunc(in)
	if err != nil {
		return nil, err
	}
	return &Generated[[]wfmodel.PlotItem]{Value: v}, nil
}

func (g *fakeGenerator) SectionPlan(_ context.Context, in *wfmodel.SectionPlanInput) (*Generated[[]wfmodel.PlotItem], error) {
	g.mu.Lock()
	g.sectionInputs = append(g.sectionInputs, in)
	g.mu.Unlock()
	if g.sectionFunc == nil {
		return nil, errors.New("section plan not stubbed")
	}
	v, err := g.sectionFunc(in)
	if err != nil {
		return nil, err
	}
	return &Generated[[]wfmodel.PlotItem]{Value: v}, nil
}

func (g *fakeGenerator) SectionContent(_ context.Context, in *wfmodel.SectionContentInput) (*Generated[*wfmodel.SectionContentOutput], error) {
	g.mu.Lock()
	g.contentInputs = append(g.contentInputs, in)
	g.mu.Unlock()
	if g.contentFunc == nil {
		return nil, errors.New("section content not stubbed")
	}
	v, err := g.contentFunc(in)
	if err != nil {
		return nil, err
	}
	return &Generated[*wfmodel.SectionContentOutput]{Value: v}, nil
}

func plots(titles ...string) []wfmodel.PlotItem {
	out := make([]wfmodel.PlotItem, 0, len(titles))
	for _, t := range titles {
		out = append(out, wfmodel.PlotItem{Title: t, Overview: t + " overview"})
	}
	return out
}

func strPtr(s string) *string { return &s }

// foundationNovel 已具备基础信息的小说：两章，第一章两节
func foundationNovel() *entity.Novel {
	n := entity.NewNovel()
	n.PlotRequirements = "harbor mystery"
	n.Title = "Fog Harbor"
	n.Overview = "A dock worker uncovers smuggling."
	n.Language = "English"
	n.Characters = []entity.Character{
		{ID: "c-lin", Name: "Lin", Description: "dock worker"},
		{ID: "c-mara", Name: "Mara", Description: "smuggler"},
	}
	ch0 := entity.NewChapter("Night Shift", "Lin finds a crate")
	s0 := entity.NewSection("Rain", "Lin on duty")
	s0.Content = strPtr("Rain fell on the docks.")
	s0.AfterState = map[string]entity.CharacterState{
		"c-lin":  {Clothing: "raincoat", Psychological: "uneasy", Physiological: "cold"},
		"c-mara": {Clothing: "dark coat", Psychological: "calm", Physiological: "rested"},
	}
	s1 := entity.NewSection("Crate", "Lin opens the crate")
	ch0.Sections = []entity.Section{s0, s1}
	ch1 := entity.NewChapter("Pursuit", "Lin follows Mara")
	n.Chapters = []entity.Chapter{ch0, ch1}
	return n
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
