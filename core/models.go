package core

import (
	"encoding/hex"
	"time"

	"github.com/go-crypt/x/blake2b"
)

// ContentHash computes a deterministic hex digest of raw file content
// using BLAKE2b-256. Identical content always produces identical hashes,
// which lets reprocessing detect unchanged files.
func ContentHash(data []byte) string {
	h, _ := blake2b.New(32, nil)
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// FileRecord is the durable metadata record for one uploaded document.
// It is created at the upload boundary and mutated exclusively by the
// vectorization pipeline and the reconciler.
type FileRecord struct {
	ID          string
	Filename    string
	StoragePath string
	ContentHash string
	SizeBytes   int64
	CategoryID  *string

	Status FileStatus

	// PreprocessingMethod records which extractor produced the text
	// (e.g. "plaintext", "pdftotext", "docx").
	PreprocessingMethod string
	ChunkCount          int
	Vectorized          bool

	UploadedAt             time.Time
	PreprocessingStartedAt *time.Time
	PreprocessedAt         *time.Time
	VectorizingStartedAt   *time.Time
	CompletedAt            *time.Time

	ErrorMessage string
	ErrorType    string
}

// Chunk is a bounded text segment derived from a document during one
// pipeline run. Offsets are rune positions into the extracted text.
// Once written to the vector index a chunk is addressed by
// (FileID, Index) and owned by the index.
type Chunk struct {
	FileID     string
	Index      int
	Text       string
	Start      int
	End        int
	TokenCount int
	Embedding  []float32
}

// VectorMetadata is the file-level metadata attached to every vector
// written for a file.
type VectorMetadata struct {
	FileID     string
	CategoryID string
	Filename   string
}

// VectorRecord is one stored embedding in the vector index.
type VectorRecord struct {
	VectorID   string
	FileID     string
	CategoryID string
	Filename   string
	ChunkIndex int
	Seq        uint64 // insertion order, used for stable tie-breaking
	Embedding  []float32
}

// VectorMatch is a single similarity search hit.
type VectorMatch struct {
	Record *VectorRecord
	Score  float32
}

// IndexStatus reports vector index backend health.
type IndexStatus struct {
	Connected       bool
	TotalVectors    int
	CollectionCount int
}

// Category classifies uploaded files for filtered retrieval.
// Absence of a category is not an error.
type Category struct {
	ID        string
	Name      string
	CreatedAt time.Time
}
