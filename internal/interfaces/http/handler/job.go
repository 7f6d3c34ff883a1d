// Package handler 提供 HTTP 请求处理器
package handler

import (
	"github.com/gin-gonic/gin"

	"z-novel-writer/internal/application/novel"
	"z-novel-writer/internal/interfaces/http/dto"
)

const defaultJobListLimit = 20

// JobHandler 后台生成任务处理器
type JobHandler struct {
	jobs *novel.JobService
}

// NewJobHandler 创建任务处理器
func NewJobHandler(jobs *novel.JobService) *JobHandler {
	return &JobHandler{
		jobs: jobs,
	}
}

// CreateJob 提交一键生成任务
// @Summary 提交生成任务
// @Description 投递到 Redis Stream，由 job-worker 执行
// @Tags Jobs
// @Accept json
// @Produce json
// @Param nid path string true "小说 ID"
// @Param body body dto.CreateJobRequest true "任务参数"
// @Success 202 {object} dto.Response[dto.JobResponse]
// @Failure 412 {object} dto.ErrorResponse "概要未完成"
// @Failure 503 {object} dto.ErrorResponse "队列不可用"
// @Router /v1/novels/{nid}/jobs [post]
func (h *JobHandler) CreateJob(c *gin.Context) {
	var req dto.CreateJobRequest
	if !bindJSON(c, &req) {
		return
	}

	job, err := h.jobs.Submit(c.Request.Context(), dto.BindNovelID(c), req.ToJobRequest())
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Accepted(c, dto.ToJobResponse(job))
}

// ListNovelJobs 小说最近的任务
// @Summary 任务列表
// @Tags Jobs
// @Produce json
// @Param nid path string true "小说 ID"
// @Param limit query int false "条数" default(20)
// @Success 200 {object} dto.Response[dto.JobListResponse]
// @Router /v1/novels/{nid}/jobs [get]
func (h *JobHandler) ListNovelJobs(c *gin.Context) {
	limit := dto.BindLimit(c, defaultJobListLimit)
	jobs, err := h.jobs.List(c.Request.Context(), dto.BindNovelID(c), limit)
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToJobListResponse(jobs))
}

// GetJob 获取任务详情
// @Summary 获取任务详情
// @Description 获取指定任务的详细信息和状态
// @Tags Jobs
// @Accept json
// @Produce json
// @Param jid path string true "任务 ID"
// @Success 200 {object} dto.Response[dto.JobResponse]
// @Failure 404 {object} dto.ErrorResponse
// @Failure 500 {object} dto.ErrorResponse
// @Router /v1/jobs/{jid} [get]
func (h *JobHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), dto.BindJobID(c))
	if err != nil {
		dto.Fail(c, err)
		return
	}
	dto.Success(c, dto.ToJobResponse(job))
}
