package dto

import (
	"time"

	"z-novel-writer/internal/application/novel"
	"z-novel-writer/internal/domain/entity"
)

// CreateJobRequest 提交后台生成任务
type CreateJobRequest struct {
	JobType      string `json:"job_type" binding:"required,oneof=novel_generate chapter_generate"`
	ChapterIndex int    `json:"chapter_index"`
	ChapterCount int    `json:"chapter_count"`
	SectionCount int    `json:"section_count"`
	Provider     string `json:"provider,omitempty"`
	Model        string `json:"model,omitempty"`
}

// ToJobRequest 转为应用层参数
func (r *CreateJobRequest) ToJobRequest() novel.JobRequest {
	return novel.JobRequest{
		JobType:      entity.JobType(r.JobType),
		ChapterIndex: r.ChapterIndex,
		ChapterCount: r.ChapterCount,
		SectionCount: r.SectionCount,
		Provider:     r.Provider,
		Model:        r.Model,
	}
}

// JobResponse 任务响应
type JobResponse struct {
	ID           string     `json:"id"`
	NovelID      string     `json:"novel_id"`
	JobType      string     `json:"job_type"`
	Status       string     `json:"status"`
	ChapterIndex int        `json:"chapter_index,omitempty"`
	Step         string     `json:"step,omitempty"`
	Progress     int        `json:"progress"`
	ErrorMsg     string     `json:"error_msg,omitempty"`
	RetryCount   int        `json:"retry_count"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// JobListResponse 任务列表响应
type JobListResponse struct {
	Jobs []*JobResponse `json:"jobs"`
}

// ToJobResponse 将领域实体转换为响应 DTO
func ToJobResponse(j *entity.GenerationJob) *JobResponse {
	if j == nil {
		return nil
	}
	return &JobResponse{
		ID:           j.ID,
		NovelID:      j.NovelID,
		JobType:      string(j.JobType),
		Status:       string(j.Status),
		ChapterIndex: j.ChapterIndex,
		Step:         j.Step,
		Progress:     j.Progress,
		ErrorMsg:     j.ErrorMessage,
		RetryCount:   j.RetryCount,
		StartedAt:    j.StartedAt,
		CompletedAt:  j.CompletedAt,
		CreatedAt:    j.CreatedAt,
		UpdatedAt:    j.UpdatedAt,
	}
}

// ToJobListResponse 将领域实体列表转换为响应 DTO
func ToJobListResponse(jobs []*entity.GenerationJob) *JobListResponse {
	resp := &JobListResponse{
		Jobs: make([]*JobResponse, 0, len(jobs)),
	}
	for _, j := range jobs {
		resp.Jobs = append(resp.Jobs, ToJobResponse(j))
	}
	return resp
}
