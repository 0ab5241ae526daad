package docsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalSource_ListAndRead(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "invoice.pdf"), []byte("%PDF-1.4"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "2026"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "2026", "receipt.txt"), []byte("total 10,00"), 0o644))

	src, err := NewLocalSource(dir)
	require.NoError(t, err)

	files, err := src.ListFiles(context.Background())
	require.NoError(t, err)
	require.Len(t, files, 2)

	data, err := src.ReadFile(context.Background(), filepath.Join("2026", "receipt.txt"))
	require.NoError(t, err)
	assert.Equal(t, "total 10,00", string(data))
}

func TestLocalSource_ListModifiedSince(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.txt")
	require.NoError(t, os.WriteFile(old, []byte("old"), 0o644))
	past := time.Now().Add(-2 * time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "new.txt"), []byte("new"), 0o644))

	src, err := NewLocalSource(dir)
	require.NoError(t, err)

	files, err := src.ListFilesModifiedSince(context.Background(), time.Now().Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "new.txt", files[0].Name)
}

func TestMimeTypeForName(t *testing.T) {
	assert.Equal(t, "application/pdf", MimeTypeForName("fatura.PDF"))
	assert.Equal(t, "image/jpeg", MimeTypeForName("scan.jpg"))
	assert.Equal(t, "application/octet-stream", MimeTypeForName("data.bin"))
}
