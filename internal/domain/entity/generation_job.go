package entity

import "time"

// JobType 后台生成任务类型
type JobType string

const (
	// JobTypeNovelGenerate 从总览开始生成整部小说
	JobTypeNovelGenerate JobType = "novel_generate"
	// JobTypeChapterGenerate 为单个章节规划小节并生成全部正文
	JobTypeChapterGenerate JobType = "chapter_generate"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	// JobStatusRetrying 执行出错，等待队列重新投递
	JobStatusRetrying  JobStatus = "retrying"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// GenerationJob 后台生成任务
type GenerationJob struct {
	ID           string    `json:"id"`
	NovelID      string    `json:"novel_id"`
	JobType      JobType   `json:"job_type"`
	Status       JobStatus `json:"status"`
	ChapterIndex int       `json:"chapter_index,omitempty"`
	ChapterCount int       `json:"chapter_count,omitempty"`
	SectionCount int       `json:"section_count,omitempty"`
	Provider     string    `json:"provider,omitempty"`
	Model        string    `json:"model,omitempty"`
	// Step 最近完成的步骤描述
	Step         string     `json:"step,omitempty"`
	Progress     int        `json:"progress"`
	ErrorMessage string     `json:"error_message,omitempty"`
	RetryCount   int        `json:"retry_count"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// NewGenerationJob 创建待执行任务
func NewGenerationJob(novelID string, jobType JobType) *GenerationJob {
	now := time.Now()
	return &GenerationJob{
		ID:        NewID(),
		NovelID:   novelID,
		JobType:   jobType,
		Status:    JobStatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Start 开始执行；重新投递的任务累计重试次数
func (j *GenerationJob) Start() {
	now := time.Now()
	if j.StartedAt != nil {
		j.RetryCount++
	}
	j.Status = JobStatusRunning
	j.ErrorMessage = ""
	j.StartedAt = &now
	j.CompletedAt = nil
	j.UpdatedAt = now
}

// Complete 完成任务
func (j *GenerationJob) Complete() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.Progress = 100
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Fail 任务失败
func (j *GenerationJob) Fail(errMsg string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.CompletedAt = &now
	j.UpdatedAt = now
}

// Retry 记录本次错误，任务保持未结束等待重新投递
func (j *GenerationJob) Retry(errMsg string) {
	j.Status = JobStatusRetrying
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now()
}

// UpdateProgress 按已完成步数更新进度 (0-100)
func (j *GenerationJob) UpdateProgress(step string, done, total int) {
	progress := 0
	if total > 0 {
		progress = done * 100 / total
	}
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Step = step
	j.Progress = progress
	j.UpdatedAt = time.Now()
}

// IsFinished 任务已结束
func (j *GenerationJob) IsFinished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
