// Package extraction defines the document-to-text collaborator consumed by
// the scoring engine. The engine treats extraction failure as an immediate
// per-task error without ever invoking the LLM.
package extraction

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// Extractor converts one document into LLM-ready text.
type Extractor interface {
	Extract(ctx context.Context, path string) (string, error)
}

// Error indicates a document could not be read.
type Error struct {
	Path  string
	Cause error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("failed to extract %s: %v", e.Path, e.Cause)
	}
	return fmt.Sprintf("failed to extract %s", e.Path)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// FileExtractor reads plain-text submissions from disk. Binary formats (PDF,
// DOCX) are handled by an external extraction service upstream; this
// implementation covers the text formats the CLI accepts directly.
type FileExtractor struct{}

var textExtensions = map[string]bool{
	".txt":      true,
	".md":       true,
	".markdown": true,
}

// Extract reads the file and returns its contents as text.
func (FileExtractor) Extract(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", &Error{Path: path, Cause: err}
	}

	ext := strings.ToLower(filepath.Ext(path))
	if !textExtensions[ext] {
		return "", &Error{Path: path, Cause: fmt.Errorf("unsupported file type %q", ext)}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return "", &Error{Path: path, Cause: err}
	}

	return FromBytes(path, data)
}

// Supported reports whether the filename has a readable extension.
func Supported(name string) bool {
	return textExtensions[strings.ToLower(filepath.Ext(name))]
}

// FromBytes applies the same text checks to an in-memory document, e.g. a
// multipart upload.
func FromBytes(name string, data []byte) (string, error) {
	if !Supported(name) {
		return "", &Error{Path: name, Cause: fmt.Errorf("unsupported file type %q", strings.ToLower(filepath.Ext(name)))}
	}
	if !utf8.Valid(data) {
		return "", &Error{Path: name, Cause: fmt.Errorf("file is not valid UTF-8 text")}
	}

	text := strings.TrimSpace(string(data))
	if text == "" {
		return "", &Error{Path: name, Cause: fmt.Errorf("file is empty")}
	}

	return text, nil
}
