package memory

import (
	"context"
	"testing"

	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRunRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository()
	run := entity.NewRun("cli", "video.mp4", []string{"edge"}, 1)

	require.NoError(t, repo.Create(ctx, run))
	assert.Error(t, repo.Create(ctx, run), "duplicate ids are rejected")

	run.MarkProcessing()
	run.MarkCompleted(entity.RunSummary{FrameCount: 10, ChunkCount: 1})
	require.NoError(t, repo.Update(ctx, run))

	got, err := repo.FindByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.RunStatusCompleted, got.Status)
	assert.Equal(t, int64(10), got.FrameCount)

	got.Processors[0] = "mutated"
	again, err := repo.FindByID(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"edge"}, again.Processors)
}

func TestRunRepositoryMissing(t *testing.T) {
	repo := NewRunRepository()
	run := entity.NewRun("cli", "video.mp4", nil, 1)

	_, err := repo.FindByID(context.Background(), run.ID)
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, repo.Update(context.Background(), run), ErrRunNotFound)
}

func TestStatusLogLevels(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	s := NewStatusLog(zap.New(core))

	require.NoError(t, s.PublishStatus(context.Background(), entity.RunStatusMessage{Status: entity.RunStatusCompleted}))
	require.NoError(t, s.PublishStatus(context.Background(), entity.RunStatusMessage{Status: entity.RunStatusFailed, ErrorMessage: "boom"}))

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
}
