package entity

import (
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusPending    JobStatus = "PENDING"
	JobStatusProcessing JobStatus = "PROCESSING"
	JobStatusCompleted  JobStatus = "COMPLETED"
	JobStatusFailed     JobStatus = "FAILED"
)

type RenderJob struct {
	ID            uuid.UUID
	UserID        string
	Language      string
	ImageCount    int
	FrameCount    int
	VideoKey      string
	VideoDuration float64
	Status        JobStatus
	Attempt       int
	MaxAttempts   int
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CompletedAt   *time.Time
}

func NewRenderJob(userID, language string, imageCount, maxAttempts int) *RenderJob {
	now := time.Now().UTC()
	return &RenderJob{
		ID:          uuid.New(),
		UserID:      userID,
		Language:    language,
		ImageCount:  imageCount,
		Status:      JobStatusPending,
		Attempt:     0,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (j *RenderJob) MarkProcessing() {
	j.Status = JobStatusProcessing
	j.Attempt++
	j.UpdatedAt = time.Now().UTC()
}

func (j *RenderJob) MarkCompleted(videoKey string, frameCount int, duration float64) {
	now := time.Now().UTC()
	j.Status = JobStatusCompleted
	j.VideoKey = videoKey
	j.FrameCount = frameCount
	j.VideoDuration = duration
	j.UpdatedAt = now
	j.CompletedAt = &now
}

func (j *RenderJob) MarkFailed(errMsg string) {
	j.Status = JobStatusFailed
	j.ErrorMessage = errMsg
	j.UpdatedAt = time.Now().UTC()
}

func (j *RenderJob) CanRetry() bool {
	return j.Attempt < j.MaxAttempts
}
