package archive

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ZipCreator bundles frame artifacts into a flat zip archive.
type ZipCreator struct {
	method uint16
}

// NewZipCreator stores PNG artifacts as-is (they are already compressed) and
// deflates everything else.
func NewZipCreator() *ZipCreator {
	return &ZipCreator{method: zip.Deflate}
}

func (z *ZipCreator) CreateZip(ctx context.Context, filePaths []string, outputPath string) (err error) {
	out, err := os.Create(outputPath)
	if err != nil {
		return fmt.Errorf("create zip file: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("close zip file: %w", cerr)
		}
	}()

	return z.WriteZip(ctx, out, filePaths)
}

func (z *ZipCreator) WriteZip(ctx context.Context, w io.Writer, filePaths []string) error {
	zw := zip.NewWriter(w)
	for _, fp := range filePaths {
		if err := ctx.Err(); err != nil {
			zw.Close()
			return err
		}
		if err := z.add(zw, fp); err != nil {
			zw.Close()
			return fmt.Errorf("add %s to zip: %w", fp, err)
		}
	}
	return zw.Close()
}

func (z *ZipCreator) add(zw *zip.Writer, filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return err
	}
	header.Name = filepath.Base(filename)
	header.Method = z.method
	if filepath.Ext(filename) == ".png" {
		header.Method = zip.Store
	}

	w, err := zw.CreateHeader(header)
	if err != nil {
		return err
	}
	_, err = io.Copy(w, file)
	return err
}
