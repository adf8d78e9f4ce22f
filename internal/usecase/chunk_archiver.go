package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/entity"
	"github.com/fiapx/fiapx-frame-pipeline/internal/domain/port"
	"github.com/fiapx/fiapx-frame-pipeline/internal/infra/metrics"
	"go.uber.org/zap"
)

// ChunkArchiver zips every completed chunk and uploads it as
// <prefix>/chunk_<index>.zip. Local archives are built in scratchDir and
// removed after upload.
type ChunkArchiver struct {
	storage    port.ArtifactStorage
	archiver   port.Archiver
	prefix     string
	scratchDir string
	logger     *zap.Logger
	uploaded   []string
}

func NewChunkArchiver(storage port.ArtifactStorage, archiver port.Archiver, prefix, scratchDir string, logger *zap.Logger) *ChunkArchiver {
	return &ChunkArchiver{
		storage:    storage,
		archiver:   archiver,
		prefix:     prefix,
		scratchDir: scratchDir,
		logger:     logger.With(zap.String("archive_prefix", prefix)),
	}
}

func ChunkArchiveKey(prefix string, index int) string {
	return fmt.Sprintf("%s/chunk_%d.zip", prefix, index)
}

func (a *ChunkArchiver) ChunkCompleted(ctx context.Context, chunk entity.Chunk) error {
	if len(chunk.Artifacts) == 0 {
		return nil
	}

	zipPath := filepath.Join(a.scratchDir, fmt.Sprintf("chunk_%d.zip", chunk.Index))
	if err := a.archiver.CreateZip(ctx, chunk.Artifacts, zipPath); err != nil {
		return fmt.Errorf("archive chunk: %w", err)
	}
	defer os.Remove(zipPath)

	f, err := os.Open(zipPath)
	if err != nil {
		return fmt.Errorf("open chunk archive: %w", err)
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat chunk archive: %w", err)
	}

	key := ChunkArchiveKey(a.prefix, chunk.Index)
	if err := a.storage.UploadArchive(ctx, key, f, stat.Size()); err != nil {
		return err
	}

	a.uploaded = append(a.uploaded, key)
	metrics.ChunksArchivedTotal.Inc()
	a.logger.Debug("chunk archived",
		zap.Int("chunk_index", chunk.Index),
		zap.String("key", key),
		zap.Int64("bytes", stat.Size()),
	)
	return nil
}

// Uploaded lists the object keys written so far, in chunk order.
func (a *ChunkArchiver) Uploaded() []string {
	return append([]string(nil), a.uploaded...)
}
