package extract

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"

	"github.com/poiesic/indexit/core"
)

// PlainText reads text files as UTF-8, falling back to Windows-1252
// for legacy documents.
type PlainText struct{}

// NewPlainText creates the plain text extractor.
func NewPlainText() *PlainText {
	return &PlainText{}
}

// Method identifies the extraction technique.
func (p *PlainText) Method() string {
	return "plaintext"
}

// Extract decodes the file content as text.
func (p *PlainText) Extract(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}

	// NUL bytes mean binary content, not a text encoding problem
	// any decoder could fix.
	if bytes.IndexByte(data, 0) >= 0 {
		return "", fmt.Errorf("%w: file contains binary data", core.ErrEncoding)
	}

	if utf8.Valid(data) {
		return normalizeNewlines(string(data)), nil
	}

	decoded, err := charmap.Windows1252.NewDecoder().Bytes(data)
	if err != nil {
		return "", fmt.Errorf("%w: %v", core.ErrEncoding, err)
	}
	if bytes.ContainsRune(decoded, utf8.RuneError) {
		return "", fmt.Errorf("%w: content is neither UTF-8 nor Windows-1252", core.ErrEncoding)
	}

	return normalizeNewlines(string(decoded)), nil
}

func normalizeNewlines(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}
