// Package docsource provides access to stored document bytes and storage
// listings for the indexing scans.
package docsource

import (
	"context"
	"path/filepath"
	"strings"
	"time"
)

// FileInfo describes one stored document file.
type FileInfo struct {
	// Path is the storage path, relative to the source root.
	Path string

	// Name is the base filename.
	Name string

	// Size is the file size in bytes.
	Size int64

	// ModTime is the last modification time.
	ModTime time.Time

	// MimeType is derived from the file extension.
	MimeType string
}

// Source provides raw document bytes and storage listings.
type Source interface {
	// ReadFile returns the raw bytes at a storage path.
	ReadFile(ctx context.Context, path string) ([]byte, error)

	// ListFiles lists every file in storage.
	ListFiles(ctx context.Context) ([]FileInfo, error)

	// ListFilesModifiedSince lists files modified strictly after t.
	ListFilesModifiedSince(ctx context.Context, t time.Time) ([]FileInfo, error)
}

// MimeTypeForName maps a filename extension to a MIME type.
func MimeTypeForName(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return "application/pdf"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".txt":
		return "text/plain"
	default:
		return "application/octet-stream"
	}
}
