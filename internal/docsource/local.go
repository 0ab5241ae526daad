package docsource

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// LocalSource serves documents from a directory tree on the local
// filesystem.
type LocalSource struct {
	basePath string
}

// NewLocalSource creates a local source rooted at basePath, creating the
// directory if needed.
func NewLocalSource(basePath string) (*LocalSource, error) {
	if basePath == "" {
		basePath = "./documents"
	}
	if err := os.MkdirAll(basePath, 0o755); err != nil {
		return nil, fmt.Errorf("create documents dir: %w", err)
	}
	return &LocalSource{basePath: basePath}, nil
}

func (s *LocalSource) ReadFile(_ context.Context, path string) ([]byte, error) {
	full := filepath.Join(s.basePath, filepath.Clean("/"+path))
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("read file %s: %w", path, err)
	}
	return data, nil
}

func (s *LocalSource) ListFiles(ctx context.Context) ([]FileInfo, error) {
	return s.list(ctx, time.Time{})
}

func (s *LocalSource) ListFilesModifiedSince(ctx context.Context, t time.Time) ([]FileInfo, error) {
	return s.list(ctx, t)
}

func (s *LocalSource) list(ctx context.Context, since time.Time) ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.WalkDir(s.basePath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if !since.IsZero() && !info.ModTime().After(since) {
			return nil
		}
		rel, err := filepath.Rel(s.basePath, path)
		if err != nil {
			return err
		}
		files = append(files, FileInfo{
			Path:     rel,
			Name:     d.Name(),
			Size:     info.Size(),
			ModTime:  info.ModTime(),
			MimeType: MimeTypeForName(d.Name()),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk documents dir: %w", err)
	}
	return files, nil
}

var _ Source = (*LocalSource)(nil)
