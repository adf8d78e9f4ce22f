package entity

import "github.com/google/uuid"

// FrameJobMessage is the inbound message from the frames.processing queue.
type FrameJobMessage struct {
	RunID     uuid.UUID `json:"run_id"`
	UserID    string    `json:"user_id"`
	VideoKey  string    `json:"video_key"`
	FileSize  int64     `json:"file_size"`
	UserEmail string    `json:"user_email"`
}

// RunStatusMessage is the outbound message published to the frames.status queue.
type RunStatusMessage struct {
	RunID          uuid.UUID `json:"run_id"`
	UserID         string    `json:"user_id"`
	Status         RunStatus `json:"status"`
	VideoKey       string    `json:"video_key"`
	Processors     []string  `json:"processors"`
	ArchivePrefix  string    `json:"archive_prefix,omitempty"`
	FrameCount     int64     `json:"frame_count,omitempty"`
	ChunkCount     int       `json:"chunk_count,omitempty"`
	FramesPerChunk int64     `json:"frames_per_chunk,omitempty"`
	TargetWidth    int       `json:"target_width,omitempty"`
	TargetHeight   int       `json:"target_height,omitempty"`
	Duration       float64   `json:"duration_seconds,omitempty"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	Attempt        int       `json:"attempt"`
	MaxAttempts    int       `json:"max_attempts"`
}
