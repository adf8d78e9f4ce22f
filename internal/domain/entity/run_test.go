package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRunLifecycle(t *testing.T) {
	run := NewRun("u1", "videos/a.mp4", []string{"edge"}, 2)
	assert.Equal(t, RunStatusPending, run.Status)
	assert.True(t, run.CanRetry())

	run.MarkProcessing()
	assert.Equal(t, RunStatusProcessing, run.Status)
	assert.Equal(t, 1, run.Attempt)

	run.MarkFailed("boom")
	assert.Equal(t, RunStatusFailed, run.Status)
	assert.Equal(t, "boom", run.ErrorMessage)
	assert.True(t, run.CanRetry())

	run.MarkProcessing()
	assert.Empty(t, run.ErrorMessage)
	assert.False(t, run.CanRetry())

	run.MarkCompleted(RunSummary{FrameCount: 120, ChunkCount: 2, FramesPerChunk: 60, TargetWidth: 1280, TargetHeight: 720})
	assert.Equal(t, RunStatusCompleted, run.Status)
	assert.Equal(t, int64(120), run.FrameCount)
	assert.NotNil(t, run.CompletedAt)
}
