package entity

import (
	"time"
)

// JobStatus 任务状态
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// PresentationJob 异步演示文稿生成任务
type PresentationJob struct {
	ID           string              `json:"id"`
	Status       JobStatus           `json:"status"`
	State        PipelineState       `json:"state,omitempty"`
	Request      GenerationRequest   `json:"request"`
	Result       *PresentationResult `json:"result,omitempty"`
	ErrorCode    string              `json:"error_code,omitempty"`
	ErrorMessage string              `json:"error_message,omitempty"`
	Attempts     int                 `json:"attempts"`
	Progress     int                 `json:"progress"` // 任务进度 (0-100)
	DurationMs   int                 `json:"duration_ms,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	UpdatedAt    time.Time           `json:"updated_at"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	CompletedAt  *time.Time          `json:"completed_at,omitempty"`
}

// NewPresentationJob 创建新任务
func NewPresentationJob(id string, req GenerationRequest) *PresentationJob {
	now := time.Now()
	return &PresentationJob{
		ID:        id,
		Status:    JobStatusPending,
		Request:   req,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Start 开始执行任务（重投递时重新计时）
func (j *PresentationJob) Start() {
	now := time.Now()
	j.Status = JobStatusRunning
	j.State = StateReceived
	j.Attempts++
	j.StartedAt = &now
	j.UpdatedAt = now
	j.ErrorCode = ""
	j.ErrorMessage = ""
}

// Advance 记录流程状态推进
func (j *PresentationJob) Advance(state PipelineState) {
	j.State = state
	if state != StateFailed {
		j.UpdateProgress(state.Progress())
	}
	j.UpdatedAt = time.Now()
}

// Complete 完成任务
func (j *PresentationJob) Complete(result *PresentationResult) {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.State = StateCompleted
	j.Result = result
	j.Progress = 100
	j.finish(now)
}

// Fail 任务失败，message 必须是可对外展示的信息
func (j *PresentationJob) Fail(code, message string) {
	now := time.Now()
	j.Status = JobStatusFailed
	j.State = StateFailed
	j.ErrorCode = code
	j.ErrorMessage = message
	j.finish(now)
}

// Retry 本次投递失败但仍会重投，任务回到 pending 并保留最近一次错误
func (j *PresentationJob) Retry(code, message string) {
	j.Status = JobStatusPending
	j.State = StateReceived
	j.ErrorCode = code
	j.ErrorMessage = message
	j.UpdatedAt = time.Now()
}

func (j *PresentationJob) finish(now time.Time) {
	j.CompletedAt = &now
	j.UpdatedAt = now
	if j.StartedAt != nil {
		j.DurationMs = int(now.Sub(*j.StartedAt).Milliseconds())
	}
}

// IsFinished 是否已进入终态
func (j *PresentationJob) IsFinished() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}

// UpdateProgress 更新任务进度
func (j *PresentationJob) UpdateProgress(progress int) {
	if progress < 0 {
		progress = 0
	}
	if progress > 100 {
		progress = 100
	}
	j.Progress = progress
}
