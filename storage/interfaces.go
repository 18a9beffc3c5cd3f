package storage

import (
	"context"

	"github.com/poiesic/indexit/core"
)

// ListOptions filters FileRepository.List results.
type ListOptions struct {
	// CategoryID restricts results to one category when non-nil.
	CategoryID *string
	// IncludeDeleted includes soft-deleted records when true.
	IncludeDeleted bool
}

// FailureInfo carries error details recorded alongside a transition to
// the failed status. A nil FailureInfo on a non-failed transition
// clears any previous error fields.
type FailureInfo struct {
	Message string
	Type    string
}

// FileRepository provides durable operations for file metadata records.
// Implementations must be thread-safe; updates for a given file are a
// single read-modify-write transaction, and writers to different files
// must not block each other.
type FileRepository interface {
	// Create inserts a new file record.
	// Returns ErrDuplicateID if the ID already exists.
	Create(ctx context.Context, record *core.FileRecord) error

	// Get retrieves a file record by ID.
	// Returns ErrNotFound if the record doesn't exist.
	Get(ctx context.Context, id string) (*core.FileRecord, error)

	// UpdateStatus transitions a file to a new status. The transition
	// is validated against the core lifecycle table and rejected with
	// ErrInvalidTransition if not allowed. The timestamp field for the
	// phase being entered is stamped. Entering the failed status
	// records failure details; entering any other status clears them.
	UpdateStatus(ctx context.Context, id string, newStatus core.FileStatus, failure *FailureInfo) error

	// SetPreprocessingMethod records which extractor produced the text.
	SetPreprocessingMethod(ctx context.Context, id string, method string) error

	// SetVectorizationResult records the outcome of a vectorization
	// run. Idempotent: re-applying the same result is a no-op in effect.
	SetVectorizationResult(ctx context.Context, id string, vectorized bool, chunkCount int, errorMessage string) error

	// List returns records ordered by upload time, oldest first.
	List(ctx context.Context, opts ListOptions) ([]*core.FileRecord, error)

	// Close closes the store and releases resources.
	Close() error
}

// CategoryRepository provides operations for file categories.
type CategoryRepository interface {
	// Create inserts a new category.
	// Returns ErrDuplicateID if the ID or name already exists.
	Create(ctx context.Context, category *core.Category) error

	// Get retrieves a category by ID.
	// Returns ErrNotFound if the category doesn't exist.
	Get(ctx context.Context, id string) (*core.Category, error)

	// GetByName retrieves a category by its unique name.
	// Returns ErrNotFound if no category has that name.
	GetByName(ctx context.Context, name string) (*core.Category, error)

	// List returns all categories ordered by name.
	List(ctx context.Context) ([]*core.Category, error)
}

// VectorIndex stores chunk embeddings keyed by file and serves
// similarity search. Implementations must be thread-safe.
type VectorIndex interface {
	// UpsertChunks writes all chunks for a file in one transaction.
	// Every chunk must carry an embedding. From the caller's view the
	// write is atomic: on failure the caller treats the whole write as
	// failed and purges before retrying.
	UpsertChunks(ctx context.Context, chunks []*core.Chunk, meta core.VectorMetadata) error

	// DeleteByFile removes all vectors for a file and returns how many
	// were deleted. Idempotent: deleting a file with no vectors
	// returns 0, not an error.
	DeleteByFile(ctx context.Context, fileID string) (int, error)

	// Search returns up to topK matches ranked by similarity, highest
	// first. Ties are broken by insertion order (stable). An empty
	// categoryID matches all categories. topK is clamped to a sane
	// maximum.
	Search(ctx context.Context, queryVector []float32, topK int, categoryID string) ([]*core.VectorMatch, error)

	// CountByFile returns the number of vectors stored for a file.
	CountByFile(ctx context.Context, fileID string) (int, error)

	// FindOrphaned returns the vector IDs whose file ID is not in
	// knownFileIDs.
	FindOrphaned(ctx context.Context, knownFileIDs map[string]struct{}) ([]string, error)

	// Status reports backend reachability and collection counts.
	Status(ctx context.Context) (*core.IndexStatus, error)

	// Close closes the index and releases resources.
	Close() error
}
