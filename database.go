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


// Package indexit is a document ingestion and retrieval backend.
// Files are uploaded, extracted, chunked, embedded and indexed; the
// resulting vectors back semantic search and grounded chat answers.
package indexit

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"

	"github.com/poiesic/indexit/ai"
	"github.com/poiesic/indexit/ai/openai"
	"github.com/poiesic/indexit/chat"
	"github.com/poiesic/indexit/chunker"
	"github.com/poiesic/indexit/config"
	"github.com/poiesic/indexit/core"
	"github.com/poiesic/indexit/extract"
	"github.com/poiesic/indexit/pipeline"
	"github.com/poiesic/indexit/reconcile"
	"github.com/poiesic/indexit/search"
	"github.com/poiesic/indexit/storage"
	badgerstore "github.com/poiesic/indexit/storage/badger"
	"github.com/poiesic/indexit/storage/sqlite"
)

// Database wires the metadata store, vector index, AI provider and the
// services built on them. All collaborators are constructed once here
// and injected; there is no lazily initialized shared state.
type Database struct {
	cfg      *config.Config
	store    *sqlite.Store
	backend  *badgerstore.Backend
	index    storage.VectorIndex
	provider ai.AIProvider
	pipeline *pipeline.Pipeline
	searcher *search.Searcher
	chat     *chat.Chat
	logger   *slog.Logger
}

// DatabaseOption configures a Database.
type DatabaseOption func(*databaseOptions)

type databaseOptions struct {
	provider ai.AIProvider
	logger   *slog.Logger
}

// WithAIProvider substitutes the AI provider, e.g. a mock in tests.
func WithAIProvider(provider ai.AIProvider) DatabaseOption {
	return func(o *databaseOptions) {
		o.provider = provider
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) DatabaseOption {
	return func(o *databaseOptions) {
		o.logger = logger
	}
}

// NewDatabase opens all stores under cfg.DataDir and assembles the
// pipeline, searcher and chat services.
func NewDatabase(cfg *config.Config, opts ...DatabaseOption) (*Database, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &databaseOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(options)
	}

	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating upload dir: %w", err)
	}

	store, err := sqlite.NewStore(cfg.DataDir)
	if err != nil {
		return nil, err
	}

	backend, err := badgerstore.OpenBackend(filepath.Join(cfg.DataDir, "vectors"), false)
	if err != nil {
		store.Close()
		return nil, err
	}

	index, err := badgerstore.NewIndex(backend)
	if err != nil {
		backend.Close()
		store.Close()
		return nil, err
	}

	provider := options.provider
	if provider == nil {
		provider, err = openai.NewProvider(ai.NewConfig(
			ai.WithHost(cfg.Provider.BaseURL),
			ai.WithEmbeddingModel(cfg.Provider.EmbeddingModel),
			ai.WithChatModel(cfg.Provider.ChatModel),
			ai.WithAPIKey(os.Getenv(cfg.Provider.APIKeyEnv)),
		))
		if err != nil {
			backend.Close()
			store.Close()
			return nil, err
		}
	}

	registry := extract.DefaultRegistry(nil)

	textChunker, err := chunker.New(cfg.Chunker.Size, cfg.Chunker.Overlap)
	if err != nil {
		provider.Close()
		backend.Close()
		store.Close()
		return nil, err
	}

	pipe, err := pipeline.NewPipeline(
		store.FileRepository(),
		index,
		provider.Embedder(),
		registry,
		textChunker,
		pipeline.WithPoolSize(cfg.Pipeline.Workers),
		pipeline.WithStageTimeouts(cfg.PreprocessTimeout(), cfg.VectorizeTimeout()),
		pipeline.WithEmbedBatch(cfg.Pipeline.EmbedBatchSize, cfg.Pipeline.EmbedBatchTokens),
		pipeline.WithLogger(options.logger),
	)
	if err != nil {
		provider.Close()
		backend.Close()
		store.Close()
		return nil, err
	}

	searcher, err := search.NewSearcher(store.FileRepository(), index, provider.Embedder(),
		search.WithLogger(options.logger))
	if err != nil {
		pipe.Release()
		provider.Close()
		backend.Close()
		store.Close()
		return nil, err
	}

	chatService, err := chat.NewChat(searcher, provider.Completer(), registry, textChunker,
		chat.WithTopK(cfg.Search.TopK), chat.WithLogger(options.logger))
	if err != nil {
		pipe.Release()
		provider.Close()
		backend.Close()
		store.Close()
		return nil, err
	}

	return &Database{
		cfg:      cfg,
		store:    store,
		backend:  backend,
		index:    index,
		provider: provider,
		pipeline: pipe,
		searcher: searcher,
		chat:     chatService,
		logger:   options.logger,
	}, nil
}

// AddFile copies a file into managed storage and registers it as
// UPLOADED. Vectorization is a separate, explicit step.
func (db *Database) AddFile(ctx context.Context, sourcePath string, categoryID *string) (*core.FileRecord, error) {
	info, err := os.Stat(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", sourcePath, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%s is a directory", sourcePath)
	}

	if categoryID != nil {
		if _, err := db.store.CategoryRepository().Get(ctx, *categoryID); err != nil {
			return nil, err
		}
	}

	id := uuid.New().String()
	storagePath := filepath.Join(db.cfg.UploadDir, id+filepath.Ext(sourcePath))

	hash, size, err := copyAndHash(sourcePath, storagePath)
	if err != nil {
		return nil, err
	}

	record := &core.FileRecord{
		ID:          id,
		Filename:    filepath.Base(sourcePath),
		StoragePath: storagePath,
		ContentHash: hash,
		SizeBytes:   size,
		CategoryID:  categoryID,
		Status:      core.StatusUploaded,
		UploadedAt:  time.Now().UTC(),
	}

	if err := db.store.FileRepository().Create(ctx, record); err != nil {
		os.Remove(storagePath)
		return nil, err
	}

	db.logger.Info("file added", "file_id", id, "filename", record.Filename, "bytes", size)
	return record, nil
}

// Vectorize runs the pipeline synchronously for one file.
func (db *Database) Vectorize(ctx context.Context, fileID string) error {
	return db.pipeline.StartVectorization(ctx, fileID)
}

// VectorizeAsync schedules a pipeline run on the worker pool.
func (db *Database) VectorizeAsync(fileID string) error {
	return db.pipeline.VectorizeAsync(fileID)
}

// Retry re-runs vectorization for a FAILED or UPLOADED file.
func (db *Database) Retry(ctx context.Context, fileID string) error {
	return db.pipeline.RetryVectorization(ctx, fileID)
}

// ForceReprocess purges existing vectors and reruns the pipeline.
func (db *Database) ForceReprocess(ctx context.Context, fileID string) error {
	return db.pipeline.ForceReprocess(ctx, fileID)
}

// DeleteFile soft-deletes the record, removes its vectors and deletes
// the stored copy from disk. The status transition and vector purge go
// through the pipeline so they hold the same per-file token as a
// vectorization run.
func (db *Database) DeleteFile(ctx context.Context, fileID string) error {
	record, err := db.pipeline.DeleteFile(ctx, fileID)
	if err != nil {
		return err
	}

	if err := os.Remove(record.StoragePath); err != nil && !os.IsNotExist(err) {
		db.logger.Warn("removing stored file failed", "path", record.StoragePath, "err", err)
	}

	return nil
}

// GetFile returns one file record.
func (db *Database) GetFile(ctx context.Context, fileID string) (*core.FileRecord, error) {
	return db.store.FileRepository().Get(ctx, fileID)
}

// ListFiles returns file records, oldest upload first.
func (db *Database) ListFiles(ctx context.Context, opts storage.ListOptions) ([]*core.FileRecord, error) {
	return db.store.FileRepository().List(ctx, opts)
}

// CreateCategory registers a named category for filtered retrieval.
func (db *Database) CreateCategory(ctx context.Context, name string) (*core.Category, error) {
	category := &core.Category{
		ID:        uuid.New().String(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}
	if err := db.store.CategoryRepository().Create(ctx, category); err != nil {
		return nil, err
	}
	return category, nil
}

// Categories lists all categories.
func (db *Database) Categories(ctx context.Context) ([]*core.Category, error) {
	return db.store.CategoryRepository().List(ctx)
}

// Search runs similarity search over completed files.
func (db *Database) Search(ctx context.Context, query string, topK int, categoryID *string) ([]*search.Result, error) {
	if topK <= 0 {
		topK = db.cfg.Search.TopK
	}
	return db.searcher.Search(ctx, query, topK, categoryID)
}

// Ask answers a question grounded in indexed documents.
func (db *Database) Ask(ctx context.Context, question string, categoryID *string) (*chat.Answer, error) {
	return db.chat.Ask(ctx, question, categoryID)
}

// Reconcile runs the on-demand consistency check between the metadata
// store and the vector index.
func (db *Database) Reconcile(ctx context.Context) *reconcile.Report {
	return reconcile.NewReconciler(db.store.FileRepository(), db.index, db.logger).Run(ctx)
}

// IndexStatus reports vector index health.
func (db *Database) IndexStatus(ctx context.Context) (*core.IndexStatus, error) {
	return db.index.Status(ctx)
}

// Close releases the pipeline, provider and stores.
func (db *Database) Close() error {
	db.pipeline.Release()

	if err := db.provider.Close(); err != nil {
		db.logger.Error("error closing AI provider", "err", err)
	}
	if err := db.index.Close(); err != nil {
		db.logger.Error("error closing vector index", "err", err)
	}
	if err := db.backend.Close(); err != nil {
		db.logger.Error("error closing vector backend", "err", err)
		return err
	}
	if err := db.store.Close(); err != nil {
		db.logger.Error("error closing metadata store", "err", err)
		return err
	}
	return nil
}

// copyAndHash streams src to dst, returning the content hash and size.
// Hashing happens during the copy so large uploads never sit fully in
// memory.
func copyAndHash(src, dst string) (string, int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return "", 0, fmt.Errorf("reading %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return "", 0, fmt.Errorf("creating %s: %w", dst, err)
	}

	h, _ := blake2b.New(32, nil)
	size, err := io.Copy(io.MultiWriter(out, h), in)
	if err != nil {
		out.Close()
		os.Remove(dst)
		return "", 0, fmt.Errorf("writing %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return "", 0, err
	}

	return hex.EncodeToString(h.Sum(nil)), size, nil
}

var _ io.Closer = (*Database)(nil)
