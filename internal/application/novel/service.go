package novel

import (
	"context"
	"fmt"
	"strings"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"

	"z-novel-writer/internal/domain/entity"
	"z-novel-writer/internal/domain/repository"
	apperrors "z-novel-writer/pkg/errors"
	"z-novel-writer/pkg/logger"
)

const defaultMaxSessions = 64

// Service 按小说 ID 管理编排器，未命中时从存储加载
type Service struct {
	repo     repository.NovelRepository
	gen      Generator
	defaults Options
	pageSize int

	// mu 保证同一 ID 只加载一次
	mu       sync.Mutex
	sessions *lru.Cache[string, *Orchestrator]
}

func NewService(repo repository.NovelRepository, gen Generator, defaults Options, maxSessions, pageSize int) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("novel repository is nil")
	}
	if maxSessions <= 0 {
		maxSessions = defaultMaxSessions
	}
	if pageSize <= 0 {
		pageSize = repository.DefaultPageSize
	}
	sessions, err := lru.New[string, *Orchestrator](maxSessions)
	if err != nil {
		return nil, err
	}
	return &Service{
		repo:     repo,
		gen:      gen,
		defaults: defaults,
		pageSize: pageSize,
		sessions: sessions,
	}, nil
}

// Create 创建空小说并保存，使其出现在历史列表中
func (s *Service) Create(ctx context.Context) (*Orchestrator, error) {
	return s.CreateDraft(ctx, Draft{})
}

// Draft 新建小说时的初始要求与模型
type Draft struct {
	PlotRequirements    string
	WritingRequirements string
	Provider            string
	Model               string
}

// CreateDraft 以初始要求新建小说，只保存一次
func (s *Service) CreateDraft(ctx context.Context, d Draft) (*Orchestrator, error) {
	n := entity.NewNovel()
	n.PlotRequirements = strings.TrimSpace(d.PlotRequirements)
	n.WritingRequirements = strings.TrimSpace(d.WritingRequirements)

	opts := s.defaults
	if d.Provider != "" || d.Model != "" {
		opts.Provider = strings.TrimSpace(d.Provider)
		opts.Model = strings.TrimSpace(d.Model)
	}
	o := LoadOrchestrator(n, nil, s.gen, s.repo, opts)
	if err := o.Save(ctx); err != nil {
		return nil, err
	}
	s.sessions.Add(o.ID(), o)
	logger.Info(logger.WithNovelID(ctx, o.ID()), "novel created")
	return o, nil
}

// Get 返回小说的编排器，不存在时返回 NovelNotFound
func (s *Service) Get(ctx context.Context, id string) (*Orchestrator, error) {
	if o, ok := s.sessions.Get(id); ok {
		return o, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if o, ok := s.sessions.Get(id); ok {
		return o, nil
	}

	rec, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, persistenceError(err)
	}
	if rec == nil {
		return nil, apperrors.ErrNovelNotFound.WithDetail("novel not found: " + id)
	}
	n, err := rec.Decode()
	if err != nil {
		return nil, snapshotError(err)
	}

	o := LoadOrchestrator(n, rec, s.gen, s.repo, s.defaults)
	s.sessions.Add(id, o)
	return o, nil
}

// Evict 移出缓存，下次 Get 时从存储重新加载
func (s *Service) Evict(id string) {
	s.sessions.Remove(id)
}

// Import 导入快照；ID 已存在时覆盖该小说
func (s *Service) Import(ctx context.Context, data []byte) (*Orchestrator, error) {
	n, version, err := entity.DecodeSnapshot(data)
	if err != nil {
		return nil, snapshotError(err)
	}

	if existing, err := s.Get(ctx, n.ID); err == nil {
		if err := existing.Import(ctx, data); err != nil {
			return nil, err
		}
		return existing, nil
	} else if !apperrors.HasCode(err, apperrors.CodeNovelNotFound) {
		return nil, err
	}

	o := LoadOrchestrator(n, nil, s.gen, s.repo, s.defaults)
	if err := o.Save(ctx); err != nil {
		return nil, err
	}
	s.sessions.Add(n.ID, o)
	logger.Info(logger.WithNovelID(ctx, n.ID), "novel imported", "schema_version", version)
	return o, nil
}

// History 按更新时间倒序分页列出小说
func (s *Service) History(ctx context.Context, page, pageSize int) (*repository.PagedResult[*entity.NovelRecord], error) {
	if pageSize <= 0 {
		pageSize = s.pageSize
	}
	p := repository.NewPagination(page, pageSize)
	total, rows, err := s.repo.LoadPage(ctx, p)
	if err != nil {
		return nil, persistenceError(err)
	}
	return repository.NewPagedResult(rows, total, p), nil
}

// Delete 删除小说并移出缓存
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return persistenceError(err)
	}
	s.sessions.Remove(id)
	logger.Info(logger.WithNovelID(ctx, id), "novel deleted")
	return nil
}
