package novel

import (
	"context"
	"fmt"
	"strings"

	"z-novel-writer/internal/domain/entity"
	"z-novel-writer/internal/domain/repository"
	apperrors "z-novel-writer/pkg/errors"
	"z-novel-writer/pkg/logger"
	"z-novel-writer/pkg/metrics"
)

// JobRequest 后台生成任务参数
type JobRequest struct {
	JobType      entity.JobType `json:"job_type"`
	ChapterIndex int            `json:"chapter_index"`
	ChapterCount int            `json:"chapter_count"`
	SectionCount int            `json:"section_count"`
	Provider     string         `json:"provider"`
	Model        string         `json:"model"`
}

// JobPublisher 把任务投递到队列
type JobPublisher interface {
	PublishJob(ctx context.Context, job *entity.GenerationJob) error
}

// DefaultMaxAttempts 任务默认最多执行次数，与消费者的重试上限一致
const DefaultMaxAttempts = 3

// JobService 提交、查询与执行后台生成任务
type JobService struct {
	novels      *Service
	jobs        repository.JobRepository
	publisher   JobPublisher
	maxAttempts int
}

// NewJobService 创建任务服务；publisher 为空时只能执行不能提交
func NewJobService(novels *Service, jobs repository.JobRepository, publisher JobPublisher) *JobService {
	return &JobService{novels: novels, jobs: jobs, publisher: publisher, maxAttempts: DefaultMaxAttempts}
}

// WithMaxAttempts 设置单个任务最多执行次数
func (s *JobService) WithMaxAttempts(n int) *JobService {
	if n > 0 {
		s.maxAttempts = n
	}
	return s
}

// Submit 校验参数后保存待执行任务并投递
func (s *JobService) Submit(ctx context.Context, novelID string, req JobRequest) (*entity.GenerationJob, error) {
	if s.publisher == nil || s.jobs == nil {
		return nil, apperrors.ErrServiceUnavailable.WithDetail("job queue is not configured")
	}

	o, err := s.novels.Get(ctx, novelID)
	if err != nil {
		return nil, err
	}
	n := o.Novel()
	switch req.JobType {
	case entity.JobTypeNovelGenerate:
		if missing := n.MissingFoundation(); len(missing) > 0 {
			return nil, preconditionError(missing)
		}
	case entity.JobTypeChapterGenerate:
		if !n.HasChapter(req.ChapterIndex) {
			return nil, indexError("chapter index %d out of range [0, %d)", req.ChapterIndex, len(n.Chapters))
		}
	default:
		return nil, invalidParam("unknown job type %q", req.JobType)
	}
	if req.ChapterCount < 0 || req.SectionCount < 0 {
		return nil, invalidParam("chapter_count and section_count must not be negative")
	}

	job := entity.NewGenerationJob(novelID, req.JobType)
	job.ChapterIndex = req.ChapterIndex
	job.ChapterCount = req.ChapterCount
	job.SectionCount = req.SectionCount
	job.Provider = strings.TrimSpace(req.Provider)
	job.Model = strings.TrimSpace(req.Model)

	if err := s.jobs.Save(ctx, job); err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "failed to save job")
	}
	if err := s.publisher.PublishJob(ctx, job); err != nil {
		job.Fail(err.Error())
		_ = s.jobs.Save(ctx, job)
		return nil, apperrors.Wrap(err, apperrors.CodeServiceUnavailable, "failed to enqueue job")
	}

	logger.Info(logger.WithNovelID(ctx, novelID), "generation job submitted",
		"job_id", job.ID,
		"job_type", job.JobType,
	)
	return job, nil
}

// Get 获取任务
func (s *JobService) Get(ctx context.Context, jobID string) (*entity.GenerationJob, error) {
	if s.jobs == nil {
		return nil, apperrors.ErrServiceUnavailable.WithDetail("job queue is not configured")
	}
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "failed to load job")
	}
	if job == nil {
		return nil, apperrors.ErrNotFound.WithDetail("job not found: " + jobID)
	}
	if job.IsFinished() {
		// 任务可能由其他进程执行，缓存的编排器需要重新加载
		s.novels.Evict(job.NovelID)
	}
	return job, nil
}

// List 获取小说的任务
func (s *JobService) List(ctx context.Context, novelID string, limit int) ([]*entity.GenerationJob, error) {
	if s.jobs == nil {
		return nil, apperrors.ErrServiceUnavailable.WithDetail("job queue is not configured")
	}
	jobs, err := s.jobs.ListByNovel(ctx, novelID, limit)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodePersistence, "failed to list jobs")
	}
	return jobs, nil
}

// Run 执行任务。可重试的错误使任务进入 retrying 并返回错误，由队列重新投递；
// 参数或前置条件类错误、以及用尽执行次数的任务标记为失败。
func (s *JobService) Run(ctx context.Context, jobID string) error {
	job, err := s.jobs.GetByID(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		logger.Warn(ctx, "job not found, skipping", "job_id", jobID)
		return nil
	}
	if job.IsFinished() {
		return nil
	}

	ctx = logger.WithContext(logger.WithNovelID(ctx, job.NovelID), logger.JobIDKey, job.ID)
	job.Start()
	if err := s.jobs.Save(ctx, job); err != nil {
		return err
	}

	s.novels.Evict(job.NovelID)
	o, err := s.novels.Get(ctx, job.NovelID)
	if err == nil {
		if job.Provider != "" || job.Model != "" {
			o.SetModel(job.Provider, job.Model)
		}
		err = s.execute(ctx, o, job)
	}

	if err != nil {
		if retryable(err) && job.RetryCount+1 < s.maxAttempts {
			job.Retry(err.Error())
			metrics.NovelOperationTotal.WithLabelValues(string(job.JobType), "retrying").Inc()
			if saveErr := s.jobs.Save(ctx, job); saveErr != nil {
				logger.Error(ctx, "failed to save job status", saveErr)
			}
			logger.Warn(ctx, "job attempt failed, waiting for redelivery",
				"attempt", job.RetryCount+1,
				"error", err.Error(),
			)
			return err
		}

		job.Fail(err.Error())
		metrics.NovelOperationTotal.WithLabelValues(string(job.JobType), "failed").Inc()
		if saveErr := s.jobs.Save(ctx, job); saveErr != nil {
			logger.Error(ctx, "failed to save job status", saveErr)
		}
		logger.Warn(ctx, "job failed permanently", "attempt", job.RetryCount+1, "error", err.Error())
		if retryable(err) {
			// 交给消费者移入死信队列
			return err
		}
		return nil
	}

	job.Complete()
	metrics.NovelOperationTotal.WithLabelValues(string(job.JobType), "completed").Inc()
	if err := s.jobs.Save(ctx, job); err != nil {
		logger.Error(ctx, "failed to save job status", err)
	}
	logger.Info(ctx, "generation job completed", "retry_count", job.RetryCount)
	return nil
}

func (s *JobService) execute(ctx context.Context, o *Orchestrator, job *entity.GenerationJob) error {
	single := job.JobType == entity.JobTypeChapterGenerate
	progress := func(p Progress) {
		done, total := jobProgress(p, single)
		job.UpdateProgress(progressStep(p), done, total)
		if err := s.jobs.Save(ctx, job); err != nil {
			logger.Warn(ctx, "failed to save job progress", "error", err.Error())
		}
	}

	switch job.JobType {
	case entity.JobTypeNovelGenerate:
		return o.GenerateAll(ctx, job.ChapterCount, job.SectionCount, progress)
	case entity.JobTypeChapterGenerate:
		return o.GenerateChapterFully(ctx, job.ChapterIndex, job.SectionCount, progress)
	default:
		return invalidParam("unknown job type %q", job.JobType)
	}
}

// jobProgress 把章内进度折算为整体进度；single 表示只生成一章
func jobProgress(p Progress, single bool) (int, int) {
	if single {
		p.ChapterIndex, p.ChapterTotal = 0, 1
	}
	total := max(p.ChapterTotal, 1)
	sectionsTotal := max(p.SectionsTotal, 1)
	switch p.Stage {
	case StageChapters:
		return 0, total
	case StageSections:
		return p.ChapterIndex * sectionsTotal, total * sectionsTotal
	default:
		return p.ChapterIndex*sectionsTotal + p.SectionsDone, total * sectionsTotal
	}
}

func progressStep(p Progress) string {
	switch p.Stage {
	case StageChapters:
		return fmt.Sprintf("%d chapters planned", p.ChapterTotal)
	case StageSections:
		return fmt.Sprintf("chapter %d: %d sections planned", p.ChapterIndex+1, p.SectionsTotal)
	default:
		return fmt.Sprintf("chapter %d: section %d/%d written", p.ChapterIndex+1, p.SectionsDone, p.SectionsTotal)
	}
}

// retryable LLM 调用、存储与未归类的错误可能在重试后成功；输出校验失败不自动重试
func retryable(err error) bool {
	switch apperrors.AsAppError(err).Code {
	case apperrors.CodeUnknown, apperrors.CodeLLMCallFailed, apperrors.CodePersistence, apperrors.CodeServiceUnavailable:
		return true
	default:
		return false
	}
}
