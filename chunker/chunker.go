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


// Package chunker splits extracted text into overlapping windows for
// embedding. Offsets are measured in runes so multi-byte characters
// never land inside a cut.
package chunker

import (
	"fmt"
	"strings"

	"github.com/pkoukk/tiktoken-go"

	"github.com/poiesic/indexit/core"
)

// boundaryLookback caps how far a cut may move backward to land on a
// sentence or paragraph boundary, as a fraction of the chunk size.
const boundaryLookback = 0.2

// Chunker produces deterministic overlapping chunks.
// The same text and settings always yield the same chunks.
type Chunker struct {
	size     int
	overlap  int
	encoding *tiktoken.Tiktoken
}

// New creates a chunker with the given window size and overlap, both
// in runes. Overlap must be smaller than size.
func New(size, overlap int) (*Chunker, error) {
	if size <= 0 {
		return nil, fmt.Errorf("%w: chunk size must be positive, got %d", core.ErrInvalidConfig, size)
	}
	if overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: overlap %d must be in [0, %d)", core.ErrInvalidConfig, overlap, size)
	}

	encoding, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		return nil, fmt.Errorf("loading tiktoken encoding: %w", err)
	}

	return &Chunker{size: size, overlap: overlap, encoding: encoding}, nil
}

// Split divides text into chunks for one file. The chunks cover the
// full text with no gaps: each chunk starts exactly overlap runes
// before the previous chunk's end, except where a cut moved back to a
// boundary. An empty or whitespace-only text yields zero chunks.
func (c *Chunker) Split(fileID, text string) []*core.Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	runes := []rune(text)
	var chunks []*core.Chunk

	start := 0
	for start < len(runes) {
		end := start + c.size
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = c.adjustCut(runes, start, end)
		}

		chunkText := string(runes[start:end])
		chunks = append(chunks, &core.Chunk{
			FileID:     fileID,
			Index:      len(chunks),
			Text:       chunkText,
			Start:      start,
			End:        end,
			TokenCount: len(c.encoding.Encode(chunkText, nil, nil)),
		})

		if end == len(runes) {
			break
		}
		start = end - c.overlap
	}

	return chunks
}

// adjustCut moves a hard cut backward to the nearest sentence or
// paragraph boundary within the lookback window. Returns the original
// cut when no boundary is close enough. The cut never moves back past
// start+overlap, which keeps every chunk advancing.
func (c *Chunker) adjustCut(runes []rune, start, end int) int {
	limit := end - int(float64(c.size)*boundaryLookback)
	if floor := start + c.overlap + 1; limit < floor {
		limit = floor
	}

	for i := end - 1; i >= limit; i-- {
		switch runes[i] {
		case '\n':
			return i + 1
		case '.', '!', '?':
			if i+1 < end && (runes[i+1] == ' ' || runes[i+1] == '\n') {
				return i + 2
			}
		}
	}
	return end
}
