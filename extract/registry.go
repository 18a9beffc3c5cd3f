// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package extract converts raw uploaded files into normalized plain
// text. Formats are dispatched through a capability table keyed by
// normalized file extension, so adding a format means registering one
// more Extractor implementation.
package extract

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/poiesic/indexit/core"
)

// Extractor converts one file format into normalized text.
// Implementations are pure readers and must not mutate the source file.
type Extractor interface {
	// Extract reads the file at path and returns its text content.
	Extract(ctx context.Context, path string) (string, error)

	// Method identifies the extraction technique for bookkeeping,
	// e.g. "plaintext" or "pdftotext".
	Method() string
}

// Registry maps normalized file extensions to extractor implementations.
type Registry struct {
	byExtension map[string]Extractor
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byExtension: make(map[string]Extractor)}
}

// DefaultRegistry wires up the built-in extractors. The runner executes
// external helper tools; pass nil to use the real system runner.
func DefaultRegistry(runner CommandRunner) *Registry {
	r := NewRegistry()
	plain := NewPlainText()
	r.Register(plain, ".txt", ".md", ".markdown", ".csv", ".log")
	r.Register(NewPDF(runner), ".pdf")
	r.Register(NewDocx(), ".docx")
	r.Register(NewXlsx(), ".xlsx")
	r.Register(NewPptx(), ".pptx")
	return r
}

// Register binds an extractor to one or more extensions.
// Extensions are matched case-insensitively and must include the dot.
func (r *Registry) Register(extractor Extractor, extensions ...string) {
	for _, ext := range extensions {
		r.byExtension[strings.ToLower(ext)] = extractor
	}
}

// ForFile selects the extractor for a filename.
// Returns core.ErrUnsupportedFormat when no extractor is registered.
func (r *Registry) ForFile(filename string) (Extractor, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	extractor, ok := r.byExtension[ext]
	if !ok {
		return nil, fmt.Errorf("%w: %q", core.ErrUnsupportedFormat, ext)
	}
	return extractor, nil
}

// Extensions returns the registered extensions, for diagnostics.
func (r *Registry) Extensions() []string {
	exts := make([]string, 0, len(r.byExtension))
	for ext := range r.byExtension {
		exts = append(exts, ext)
	}
	return exts
}
