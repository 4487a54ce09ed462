package extraction

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestFileExtractor_Extract(t *testing.T) {
	dir := t.TempDir()
	ex := FileExtractor{}

	t.Run("reads text file", func(t *testing.T) {
		path := writeFile(t, dir, "report.txt", "  Praktikum 3 report body\n")
		text, err := ex.Extract(context.Background(), path)
		require.NoError(t, err)
		assert.Equal(t, "Praktikum 3 report body", text)
	})

	t.Run("reads markdown file", func(t *testing.T) {
		path := writeFile(t, dir, "report.md", "# Report\nbody")
		text, err := ex.Extract(context.Background(), path)
		require.NoError(t, err)
		assert.Contains(t, text, "# Report")
	})

	t.Run("rejects unsupported extension", func(t *testing.T) {
		path := writeFile(t, dir, "report.pdf", "%PDF-1.4")
		_, err := ex.Extract(context.Background(), path)
		var exErr *Error
		require.ErrorAs(t, err, &exErr)
		assert.Equal(t, path, exErr.Path)
	})

	t.Run("rejects empty file", func(t *testing.T) {
		path := writeFile(t, dir, "empty.txt", "   \n")
		_, err := ex.Extract(context.Background(), path)
		assert.Error(t, err)
	})

	t.Run("rejects missing file", func(t *testing.T) {
		_, err := ex.Extract(context.Background(), filepath.Join(dir, "nope.txt"))
		assert.Error(t, err)
	})

	t.Run("rejects non-UTF8 content", func(t *testing.T) {
		path := filepath.Join(dir, "binary.txt")
		require.NoError(t, os.WriteFile(path, []byte{0xff, 0xfe, 0x00, 0x01}, 0o644))
		_, err := ex.Extract(context.Background(), path)
		assert.Error(t, err)
	})
}
