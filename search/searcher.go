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


// Package search provides semantic retrieval over vectorized files.
//
// The Searcher embeds a text query, ranks chunk vectors by similarity
// and joins the matches back onto their file records. Matches whose
// file is no longer COMPLETED are dropped, so callers never see hits
// for files that failed or were deleted after indexing.
package search

import (
	"context"
	"errors"
	"log/slog"

	"github.com/poiesic/indexit/ai"
	"github.com/poiesic/indexit/core"
	"github.com/poiesic/indexit/storage"
)

// Result is one ranked chunk match joined with its file record.
type Result struct {
	FileID     string
	Filename   string
	CategoryID string
	ChunkIndex int
	Score      float32
	File       *core.FileRecord
}

// Searcher performs similarity search over the vector index.
type Searcher struct {
	files    storage.FileRepository
	index    storage.VectorIndex
	embedder ai.Embedder
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(
	files storage.FileRepository,
	index storage.VectorIndex,
	embedder ai.Embedder,
	opts ...Option,
) (*Searcher, error) {
	if files == nil {
		return nil, ErrFileRepositoryRequired
	}
	if index == nil {
		return nil, ErrVectorIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	s := &Searcher{
		files:    files,
		index:    index,
		embedder: embedder,
		logger:   slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search returns up to topK chunk matches for the query, optionally
// filtered to one category. Results are ranked by similarity with ties
// broken by insertion order.
func (s *Searcher) Search(ctx context.Context, query string, topK int, categoryID *string) ([]*Result, error) {
	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "err", err)
		return nil, err
	}

	// A nil category filter searches all categories.
	category := ""
	if categoryID != nil {
		category = *categoryID
	}

	matches, err := s.index.Search(ctx, embedding, topK, category)
	if err != nil {
		s.logger.Error("error querying vector index", "err", err)
		return nil, err
	}

	// File records are fetched once per distinct file across matches.
	records := make(map[string]*core.FileRecord)
	results := make([]*Result, 0, len(matches))
	for _, match := range matches {
		record, ok := records[match.Record.FileID]
		if !ok {
			record, err = s.files.Get(ctx, match.Record.FileID)
			if errors.Is(err, storage.ErrNotFound) {
				s.logger.Warn("match references missing file record", "file_id", match.Record.FileID)
				continue
			}
			if err != nil {
				return nil, err
			}
			records[match.Record.FileID] = record
		}

		if record.Status != core.StatusCompleted {
			s.logger.Debug("skipping match for non-completed file",
				"file_id", record.ID, "status", record.Status)
			continue
		}

		results = append(results, &Result{
			FileID:     match.Record.FileID,
			Filename:   match.Record.Filename,
			CategoryID: match.Record.CategoryID,
			ChunkIndex: match.Record.ChunkIndex,
			Score:      match.Score,
			File:       record,
		})
	}

	return results, nil
}
