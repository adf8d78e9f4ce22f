package entity

import (
	"time"

	"github.com/google/uuid"
)

type RunStatus string

const (
	RunStatusPending    RunStatus = "PENDING"
	RunStatusProcessing RunStatus = "PROCESSING"
	RunStatusCompleted  RunStatus = "COMPLETED"
	RunStatusFailed     RunStatus = "FAILED"
)

// Run is the persisted record of one pipeline execution over one source.
type Run struct {
	ID             uuid.UUID
	UserID         string
	SourceKey      string
	Processors     []string
	Status         RunStatus
	FrameCount     int64
	ChunkCount     int
	FramesPerChunk int64
	TargetWidth    int
	TargetHeight   int
	VideoDuration  float64
	Attempt        int
	MaxAttempts    int
	ErrorMessage   string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	CompletedAt    *time.Time
}

func NewRun(userID, sourceKey string, processors []string, maxAttempts int) *Run {
	now := time.Now().UTC()
	return &Run{
		ID:          uuid.New(),
		UserID:      userID,
		SourceKey:   sourceKey,
		Processors:  append([]string(nil), processors...),
		Status:      RunStatusPending,
		MaxAttempts: maxAttempts,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func (r *Run) MarkProcessing() {
	r.Status = RunStatusProcessing
	r.Attempt++
	r.ErrorMessage = ""
	r.UpdatedAt = time.Now().UTC()
}

// RunSummary carries the figures a finished pipeline reports back.
type RunSummary struct {
	FrameCount     int64
	ChunkCount     int
	FramesPerChunk int64
	TargetWidth    int
	TargetHeight   int
	VideoDuration  float64
}

func (r *Run) MarkCompleted(s RunSummary) {
	now := time.Now().UTC()
	r.Status = RunStatusCompleted
	r.FrameCount = s.FrameCount
	r.ChunkCount = s.ChunkCount
	r.FramesPerChunk = s.FramesPerChunk
	r.TargetWidth = s.TargetWidth
	r.TargetHeight = s.TargetHeight
	r.VideoDuration = s.VideoDuration
	r.UpdatedAt = now
	r.CompletedAt = &now
}

func (r *Run) MarkFailed(errMsg string) {
	r.Status = RunStatusFailed
	r.ErrorMessage = errMsg
	r.UpdatedAt = time.Now().UTC()
}

func (r *Run) CanRetry() bool {
	return r.Attempt < r.MaxAttempts
}
