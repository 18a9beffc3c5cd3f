package badger

import (
	"testing"

	"github.com/poiesic/indexit/core"
	"github.com/poiesic/indexit/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVectorRecordCodec_RoundTrip(t *testing.T) {
	record := &core.VectorRecord{
		VectorID:   "file-1:3",
		FileID:     "file-1",
		CategoryID: "cat-9",
		Filename:   "quarterly report.docx",
		ChunkIndex: 3,
		Seq:        42,
		Embedding:  []float32{0.25, -1.5, 3.125, 0},
	}

	decoded, err := unmarshalVectorRecord(marshalVectorRecord(record))
	require.NoError(t, err)
	assert.Equal(t, record, decoded)
}

func TestVectorRecordCodec_EmptyFields(t *testing.T) {
	record := &core.VectorRecord{
		VectorID:   "f:0",
		FileID:     "f",
		ChunkIndex: 0,
		Embedding:  []float32{},
	}

	decoded, err := unmarshalVectorRecord(marshalVectorRecord(record))
	require.NoError(t, err)
	assert.Equal(t, "f", decoded.FileID)
	assert.Empty(t, decoded.CategoryID)
	assert.Empty(t, decoded.Embedding)
}

func TestVectorRecordCodec_Truncated(t *testing.T) {
	record := &core.VectorRecord{
		FileID:    "file-1",
		Embedding: []float32{1, 2, 3},
	}
	data := marshalVectorRecord(record)

	for _, cut := range []int{0, 1, 5, len(data) - 1} {
		_, err := unmarshalVectorRecord(data[:cut])
		assert.ErrorIs(t, err, storage.ErrCodec, "cut at %d", cut)
	}
}

func TestVectorRecordCodec_UnknownVersion(t *testing.T) {
	data := marshalVectorRecord(&core.VectorRecord{FileID: "f"})
	data[0] = 99
	_, err := unmarshalVectorRecord(data)
	assert.ErrorIs(t, err, storage.ErrCodec)
}
