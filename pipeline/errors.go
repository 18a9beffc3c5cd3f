package pipeline

import "errors"

var (
	// ErrFileRepositoryRequired is returned when a file repository is not provided.
	ErrFileRepositoryRequired = errors.New("file repository required")

	// ErrVectorIndexRequired is returned when a vector index is not provided.
	ErrVectorIndexRequired = errors.New("vector index required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrRegistryRequired is returned when an extractor registry is not provided.
	ErrRegistryRequired = errors.New("extractor registry required")

	// ErrChunkerRequired is returned when a chunker is not provided.
	ErrChunkerRequired = errors.New("chunker required")
)
