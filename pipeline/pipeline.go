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


package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/poiesic/indexit/ai"
	"github.com/poiesic/indexit/chunker"
	"github.com/poiesic/indexit/core"
	"github.com/poiesic/indexit/extract"
	"github.com/poiesic/indexit/storage"
)

// Pipeline drives files through extraction, chunking, embedding and
// indexing. It owns the per-file exclusion tokens that guarantee at
// most one in-flight vectorization run per file id.
type Pipeline struct {
	files    storage.FileRepository
	index    storage.VectorIndex
	embedder ai.Embedder
	registry *extract.Registry
	chunker  *chunker.Chunker

	pool  *ants.Pool
	locks *lockMap

	preprocessTimeout time.Duration
	vectorizeTimeout  time.Duration
	embedBatchSize    int
	embedBatchTokens  int

	logger *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline) error

// WithPoolSize sets the worker pool size for async vectorization runs.
// Default is runtime.NumCPU() / 2, with a minimum of 1.
func WithPoolSize(size int) Option {
	return func(p *Pipeline) error {
		if size < 1 {
			size = 1
		}
		if p.pool != nil {
			p.pool.Release()
		}
		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}
		p.pool = pool
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// WithStageTimeouts bounds the preprocessing and vectorization stages.
// On timeout the run fails and partial index writes are purged.
func WithStageTimeouts(preprocess, vectorize time.Duration) Option {
	return func(p *Pipeline) error {
		if preprocess <= 0 || vectorize <= 0 {
			return fmt.Errorf("%w: stage timeouts must be positive", core.ErrInvalidConfig)
		}
		p.preprocessTimeout = preprocess
		p.vectorizeTimeout = vectorize
		return nil
	}
}

// WithEmbedBatch bounds embedding request batches by chunk count and
// by total token budget per request.
func WithEmbedBatch(size, tokens int) Option {
	return func(p *Pipeline) error {
		if size < 1 || tokens < 1 {
			return fmt.Errorf("%w: embed batch bounds must be positive", core.ErrInvalidConfig)
		}
		p.embedBatchSize = size
		p.embedBatchTokens = tokens
		return nil
	}
}

// NewPipeline creates a vectorization pipeline. All collaborators are
// injected; the pipeline holds no lazily constructed shared state.
func NewPipeline(
	files storage.FileRepository,
	index storage.VectorIndex,
	embedder ai.Embedder,
	registry *extract.Registry,
	textChunker *chunker.Chunker,
	opts ...Option,
) (*Pipeline, error) {
	if files == nil {
		return nil, ErrFileRepositoryRequired
	}
	if index == nil {
		return nil, ErrVectorIndexRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}
	if registry == nil {
		return nil, ErrRegistryRequired
	}
	if textChunker == nil {
		return nil, ErrChunkerRequired
	}

	poolSize := runtime.NumCPU() / 2
	if poolSize < 1 {
		poolSize = 1
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		files:             files,
		index:             index,
		embedder:          embedder,
		registry:          registry,
		chunker:           textChunker,
		pool:              pool,
		locks:             newLockMap(),
		preprocessTimeout: 2 * time.Minute,
		vectorizeTimeout:  10 * time.Minute,
		embedBatchSize:    32,
		embedBatchTokens:  8000,
		logger:            slog.Default(),
	}

	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			p.Release()
			return nil, optErr
		}
	}

	return p, nil
}

// StartVectorization runs the full state machine for one file and
// blocks until the run reaches COMPLETED or FAILED. A second call for
// the same file while a run is in flight observes ErrInvalidState.
func (p *Pipeline) StartVectorization(ctx context.Context, fileID string) error {
	if !p.locks.acquire(fileID) {
		return fmt.Errorf("%w: vectorization already in progress for file %s", core.ErrInvalidState, fileID)
	}
	defer p.locks.release(fileID)

	return p.run(ctx, fileID)
}

// VectorizeAsync schedules a vectorization run on the worker pool.
// Run errors are logged; the file's status and error fields record the
// outcome for later inspection.
func (p *Pipeline) VectorizeAsync(fileID string) error {
	return p.pool.Submit(func() {
		if err := p.StartVectorization(context.Background(), fileID); err != nil {
			p.logger.Error("vectorization run failed", "file_id", fileID, "err", err)
		}
	})
}

// RetryVectorization re-enters the state machine for a file currently
// in FAILED or UPLOADED.
func (p *Pipeline) RetryVectorization(ctx context.Context, fileID string) error {
	if !p.locks.acquire(fileID) {
		return fmt.Errorf("%w: vectorization already in progress for file %s", core.ErrInvalidState, fileID)
	}
	defer p.locks.release(fileID)

	record, err := p.files.Get(ctx, fileID)
	if err != nil {
		return err
	}
	if record.Status != core.StatusFailed && record.Status != core.StatusUploaded {
		return fmt.Errorf("%w: retry requires FAILED or UPLOADED, file %s is %s",
			core.ErrInvalidState, fileID, record.Status)
	}

	return p.run(ctx, fileID)
}

// ForceReprocess purges any existing vectors, clears error state by
// resetting the file to UPLOADED, then runs the state machine again.
// Permitted from PREPROCESSING, FAILED and UPLOADED.
func (p *Pipeline) ForceReprocess(ctx context.Context, fileID string) error {
	if !p.locks.acquire(fileID) {
		return fmt.Errorf("%w: vectorization already in progress for file %s", core.ErrInvalidState, fileID)
	}
	defer p.locks.release(fileID)

	record, err := p.files.Get(ctx, fileID)
	if err != nil {
		return err
	}
	switch record.Status {
	case core.StatusPreprocessing, core.StatusFailed, core.StatusUploaded:
	default:
		return fmt.Errorf("%w: force reprocess not permitted from %s for file %s",
			core.ErrInvalidState, record.Status, fileID)
	}

	purged, err := p.index.DeleteByFile(ctx, fileID)
	if err != nil {
		return fmt.Errorf("purging vectors before reprocess: %w", err)
	}
	if purged > 0 {
		p.logger.Info("purged stale vectors", "file_id", fileID, "count", purged)
	}

	if record.Status != core.StatusUploaded {
		if err := p.files.UpdateStatus(ctx, fileID, core.StatusUploaded, nil); err != nil {
			return err
		}
	}

	return p.run(ctx, fileID)
}

// DeleteFile transitions the file to DELETED and purges its vectors.
// Holding the per-file token keeps the purge from interleaving with an
// in-flight run's index writes. Returns the record as it was before
// deletion so callers can release resources tied to it.
func (p *Pipeline) DeleteFile(ctx context.Context, fileID string) (*core.FileRecord, error) {
	if !p.locks.acquire(fileID) {
		return nil, fmt.Errorf("%w: vectorization already in progress for file %s", core.ErrInvalidState, fileID)
	}
	defer p.locks.release(fileID)

	record, err := p.files.Get(ctx, fileID)
	if err != nil {
		return nil, err
	}

	if err := p.transition(ctx, fileID, core.StatusDeleted); err != nil {
		return nil, err
	}

	if _, err := p.index.DeleteByFile(ctx, fileID); err != nil {
		p.logger.Error("deleting vectors for removed file failed", "file_id", fileID, "err", err)
	}

	return record, nil
}

// Release releases the worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.pool != nil {
		p.pool.Release()
	}
}

// run executes steps 2-9 of the state machine. The caller must hold
// the per-file exclusion token.
func (p *Pipeline) run(ctx context.Context, fileID string) error {
	record, err := p.files.Get(ctx, fileID)
	if err != nil {
		return err
	}

	switch record.Status {
	case core.StatusVectorizing, core.StatusCompleted, core.StatusDeleted:
		return fmt.Errorf("%w: cannot start vectorization from %s for file %s",
			core.ErrInvalidState, record.Status, fileID)
	}

	if err := p.transition(ctx, fileID, core.StatusPreprocessing); err != nil {
		return err
	}

	text, err := p.preprocess(ctx, record)
	if err != nil {
		return p.fail(ctx, fileID, err, false)
	}

	if err := p.transition(ctx, fileID, core.StatusPreprocessed); err != nil {
		return err
	}

	chunks := p.chunker.Split(fileID, text)
	if len(chunks) == 0 {
		return p.fail(ctx, fileID, core.ErrEmptyDocument, false)
	}

	if err := p.transition(ctx, fileID, core.StatusVectorizing); err != nil {
		return err
	}

	if err := p.vectorize(ctx, record, chunks); err != nil {
		return p.fail(ctx, fileID, err, true)
	}

	if err := p.transition(ctx, fileID, core.StatusCompleted); err != nil {
		return err
	}
	if err := p.files.SetVectorizationResult(ctx, fileID, true, len(chunks), ""); err != nil {
		return err
	}

	p.logger.Info("vectorization completed", "file_id", fileID, "chunks", len(chunks))
	return nil
}

// preprocess extracts normalized text under the preprocessing deadline.
func (p *Pipeline) preprocess(ctx context.Context, record *core.FileRecord) (string, error) {
	extractor, err := p.registry.ForFile(record.Filename)
	if err != nil {
		return "", err
	}

	stageCtx, cancel := context.WithTimeout(ctx, p.preprocessTimeout)
	defer cancel()

	text, err := extractor.Extract(stageCtx, record.StoragePath)
	if err != nil {
		return "", stageError("extraction", err)
	}

	if err := p.files.SetPreprocessingMethod(ctx, record.ID, extractor.Method()); err != nil {
		return "", err
	}

	return text, nil
}

// vectorize embeds all chunks and writes them to the index under the
// vectorization deadline. Existing vectors are pre-cleaned best-effort
// so a retry after partial failure starts from a blank slate.
func (p *Pipeline) vectorize(ctx context.Context, record *core.FileRecord, chunks []*core.Chunk) error {
	stageCtx, cancel := context.WithTimeout(ctx, p.vectorizeTimeout)
	defer cancel()

	if _, err := p.index.DeleteByFile(stageCtx, record.ID); err != nil {
		p.logger.Warn("pre-clean of existing vectors failed", "file_id", record.ID, "err", err)
	}

	if err := p.embedChunks(stageCtx, chunks); err != nil {
		return stageError("embedding", err)
	}

	meta := core.VectorMetadata{
		FileID:   record.ID,
		Filename: record.Filename,
	}
	if record.CategoryID != nil {
		meta.CategoryID = *record.CategoryID
	}

	if err := p.index.UpsertChunks(stageCtx, chunks, meta); err != nil {
		return stageError("index write", err)
	}

	return nil
}

// embedChunks requests embeddings in batches bounded by chunk count
// and token budget, assigning vectors back onto the chunks.
func (p *Pipeline) embedChunks(ctx context.Context, chunks []*core.Chunk) error {
	for start := 0; start < len(chunks); {
		end := start + 1
		tokens := chunks[start].TokenCount
		for end < len(chunks) && end-start < p.embedBatchSize {
			if tokens+chunks[end].TokenCount > p.embedBatchTokens {
				break
			}
			tokens += chunks[end].TokenCount
			end++
		}

		texts := make([]string, end-start)
		for i := start; i < end; i++ {
			texts[i-start] = chunks[i].Text
		}

		vectors, err := p.embedder.EmbedTexts(ctx, texts)
		if err != nil {
			return err
		}
		if len(vectors) != len(texts) {
			return fmt.Errorf("%w: got %d embeddings for %d chunks", core.ErrProvider, len(vectors), len(texts))
		}
		for i, vector := range vectors {
			chunks[start+i].Embedding = vector
		}

		start = end
	}
	return nil
}

// fail records the run failure on the FileRecord. When purge is set,
// vectors written during this attempt are removed first so the index
// never holds partial chunk coverage.
func (p *Pipeline) fail(ctx context.Context, fileID string, runErr error, purge bool) error {
	if purge {
		// The run context may already be expired; purge with a fresh
		// deadline so failure cleanup still happens.
		purgeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
		defer cancel()
		if _, err := p.index.DeleteByFile(purgeCtx, fileID); err != nil {
			p.logger.Error("purge after failed run failed", "file_id", fileID, "err", err)
		}
	}

	failure := &storage.FailureInfo{
		Message: runErr.Error(),
		Type:    core.ErrorTypeFor(runErr),
	}
	if err := p.files.UpdateStatus(ctx, fileID, core.StatusFailed, failure); err != nil {
		p.logger.Error("recording run failure failed", "file_id", fileID, "err", err)
	}

	p.logger.Warn("vectorization run failed", "file_id", fileID, "error_type", failure.Type, "err", runErr)
	return runErr
}

// transition updates the file status, mapping storage transition
// rejections onto the pipeline error taxonomy.
func (p *Pipeline) transition(ctx context.Context, fileID string, status core.FileStatus) error {
	err := p.files.UpdateStatus(ctx, fileID, status, nil)
	if errors.Is(err, storage.ErrInvalidTransition) {
		return fmt.Errorf("%w: %v", core.ErrInvalidState, err)
	}
	return err
}

// stageError classifies context expiry as a pipeline timeout.
func stageError(stage string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %s stage exceeded deadline", core.ErrTimeout, stage)
	}
	return fmt.Errorf("%s: %w", stage, err)
}
