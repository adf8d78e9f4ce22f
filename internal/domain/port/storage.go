package port

import (
	"context"
	"io"
)

type ArtifactStorage interface {
	DownloadSource(ctx context.Context, objectKey string, destPath string) error
	UploadArchive(ctx context.Context, objectKey string, reader io.Reader, size int64) error
}

type Archiver interface {
	CreateZip(ctx context.Context, filePaths []string, outputPath string) error
}
