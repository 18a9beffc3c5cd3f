package badger

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"log/slog"
	"slices"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/indexit/core"
	"github.com/poiesic/indexit/storage"
)

// maxTopK bounds similarity search result sizes.
const maxTopK = 100

// Index implements storage.VectorIndex on BadgerDB. Vectors are keyed
// by (file ID, chunk index) so writes for one file overwrite previous
// vectors for the same chunk rather than accumulating.
type Index struct {
	backend *Backend
	seq     *badger.Sequence
	logger  *slog.Logger
}

var _ storage.VectorIndex = (*Index)(nil)

// NewIndex creates a vector index over an open backend.
func NewIndex(backend *Backend) (storage.VectorIndex, error) {
	seq, err := backend.GetSequence(vectorSeq)
	if err != nil {
		return nil, err
	}

	return &Index{
		backend: backend,
		seq:     seq,
		logger:  slog.Default().With("component", "vector-index"),
	}, nil
}

// Close releases the insertion sequence. The backend is owned by the
// caller and stays open.
func (x *Index) Close() error {
	return x.seq.Release()
}

// UpsertChunks writes all chunks for a file in a single transaction.
func (x *Index) UpsertChunks(ctx context.Context, chunks []*core.Chunk, meta core.VectorMetadata) error {
	if meta.FileID == "" {
		return fmt.Errorf("%w: file id required", storage.ErrInvalidQuery)
	}
	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("%w: chunk %d has no embedding", storage.ErrInvalidQuery, chunk.Index)
		}
	}

	return x.backend.WithTx(func(tx *badger.Txn) error {
		for _, chunk := range chunks {
			seq, err := x.seq.Next()
			if err != nil {
				return err
			}

			record := &core.VectorRecord{
				VectorID:   core.MakeVectorID(meta.FileID, chunk.Index),
				FileID:     meta.FileID,
				CategoryID: meta.CategoryID,
				Filename:   meta.Filename,
				ChunkIndex: chunk.Index,
				Seq:        seq,
				Embedding:  chunk.Embedding,
			}

			key := makeVectorKey(meta.FileID, chunk.Index)
			if err := tx.Set(key, marshalVectorRecord(record)); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
}

// DeleteByFile removes all vectors for a file. Idempotent.
func (x *Index) DeleteByFile(ctx context.Context, fileID string) (int, error) {
	var keys [][]byte

	err := x.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeFilePrefix(fileID)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			keys = append(keys, iter.Item().KeyCopy(nil))
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}

	if len(keys) == 0 {
		return 0, nil
	}

	err = x.backend.WithTx(func(tx *badger.Txn) error {
		for _, key := range keys {
			if err := tx.Delete(key); err != nil {
				return err
			}
		}
		return tx.Commit()
	}, true)
	if err != nil {
		return 0, err
	}

	return len(keys), nil
}

// Search finds the topK most similar vectors. Similarity is the dot
// product, which equals cosine similarity for normalized vectors.
func (x *Index) Search(ctx context.Context, queryVector []float32, topK int, categoryID string) ([]*core.VectorMatch, error) {
	if len(queryVector) == 0 {
		return nil, fmt.Errorf("%w: empty query vector", storage.ErrInvalidQuery)
	}
	if topK <= 0 {
		return nil, fmt.Errorf("%w: topK must be positive", storage.ErrInvalidQuery)
	}
	if topK > maxTopK {
		topK = maxTopK
	}

	var matches []*core.VectorMatch

	err := x.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = allVectorsPrefix()
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			var record *core.VectorRecord
			err := iter.Item().Value(func(val []byte) error {
				var err error
				record, err = unmarshalVectorRecord(val)
				return err
			})
			if err != nil {
				return err
			}

			if categoryID != "" && record.CategoryID != categoryID {
				continue
			}

			matches = append(matches, &core.VectorMatch{
				Record: record,
				Score:  dotProduct(queryVector, record.Embedding),
			})
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	// Sort by score descending; equal scores keep insertion order.
	slices.SortFunc(matches, func(a, b *core.VectorMatch) int {
		if a.Score > b.Score {
			return -1
		}
		if a.Score < b.Score {
			return 1
		}
		if a.Record.Seq < b.Record.Seq {
			return -1
		}
		if a.Record.Seq > b.Record.Seq {
			return 1
		}
		return 0
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}

	return matches, nil
}

// CountByFile returns the number of vectors stored for a file.
func (x *Index) CountByFile(ctx context.Context, fileID string) (int, error) {
	count := 0
	err := x.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = makeFilePrefix(fileID)
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			count++
		}
		return nil
	}, false)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// FindOrphaned returns vector IDs whose file ID is not in knownFileIDs.
// File IDs are recovered from the keys, so values are never read.
func (x *Index) FindOrphaned(ctx context.Context, knownFileIDs map[string]struct{}) ([]string, error) {
	var orphaned []string

	err := x.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = allVectorsPrefix()
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			fileID, chunkIndex, ok := parseVectorKey(iter.Item().Key())
			if !ok {
				continue
			}
			if _, known := knownFileIDs[fileID]; known {
				continue
			}
			orphaned = append(orphaned, core.MakeVectorID(fileID, chunkIndex))
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	return orphaned, nil
}

// Status reports backend health and collection counts.
func (x *Index) Status(ctx context.Context) (*core.IndexStatus, error) {
	status := &core.IndexStatus{
		Connected: !x.backend.IsClosed(),
	}
	if !status.Connected {
		return status, nil
	}

	files := make(map[string]struct{})
	err := x.backend.WithTx(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = allVectorsPrefix()
		opts.PrefetchValues = false
		iter := tx.NewIterator(opts)
		defer iter.Close()

		for iter.Rewind(); iter.Valid(); iter.Next() {
			fileID, _, ok := parseVectorKey(iter.Item().Key())
			if !ok {
				continue
			}
			status.TotalVectors++
			files[fileID] = struct{}{}
		}
		return nil
	}, false)
	if err != nil {
		return nil, err
	}

	status.CollectionCount = len(files)
	return status, nil
}

// parseVectorKey recovers the file ID and chunk index from a vector key.
func parseVectorKey(key []byte) (fileID string, chunkIndex int, ok bool) {
	prefix := allVectorsPrefix()
	if !bytes.HasPrefix(key, prefix) || len(key) < len(prefix)+5 {
		return "", 0, false
	}
	body := key[len(prefix) : len(key)-4]
	if len(body) == 0 || body[len(body)-1] != ':' {
		return "", 0, false
	}
	fileID = string(body[:len(body)-1])
	chunkIndex = int(binary.BigEndian.Uint32(key[len(key)-4:]))
	return fileID, chunkIndex, true
}

// dotProduct calculates the dot product of two vectors.
func dotProduct(a, b []float32) float32 {
	var sum float32
	minLen := len(a)
	if len(b) < minLen {
		minLen = len(b)
	}
	for i := 0; i < minLen; i++ {
		sum += a[i] * b[i]
	}
	return sum
}
