package dto

import (
	"time"

	"deckgen-api/internal/domain/entity"
)

// JobCreatedResponse 任务已受理
type JobCreatedResponse struct {
	JobID string `json:"job_id"`
}

// JobResponse 任务状态响应
type JobResponse struct {
	ID          string                     `json:"id"`
	Status      string                     `json:"status"`
	State       string                     `json:"state,omitempty"`
	Progress    int                        `json:"progress"`
	Attempts    int                        `json:"attempts"`
	Result      *entity.PresentationResult `json:"result,omitempty"`
	Error       string                     `json:"error,omitempty"`
	ErrorCode   string                     `json:"error_code,omitempty"`
	DurationMs  int                        `json:"duration_ms,omitempty"`
	CreatedAt   time.Time                  `json:"created_at"`
	UpdatedAt   time.Time                  `json:"updated_at"`
	StartedAt   *time.Time                 `json:"started_at,omitempty"`
	CompletedAt *time.Time                 `json:"completed_at,omitempty"`
}

// ToJobResponse 将领域实体转换为响应 DTO
func ToJobResponse(j *entity.PresentationJob) *JobResponse {
	if j == nil {
		return nil
	}
	return &JobResponse{
		ID:          j.ID,
		Status:      string(j.Status),
		State:       string(j.State),
		Progress:    j.Progress,
		Attempts:    j.Attempts,
		Result:      j.Result,
		Error:       j.ErrorMessage,
		ErrorCode:   j.ErrorCode,
		DurationMs:  j.DurationMs,
		CreatedAt:   j.CreatedAt,
		UpdatedAt:   j.UpdatedAt,
		StartedAt:   j.StartedAt,
		CompletedAt: j.CompletedAt,
	}
}
