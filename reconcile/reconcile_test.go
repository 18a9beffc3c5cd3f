package reconcile

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/indexit/core"
	"github.com/poiesic/indexit/storage"
	"github.com/poiesic/indexit/storage/badger"
	"github.com/poiesic/indexit/storage/sqlite"
)

func newTestStores(t *testing.T) (storage.FileRepository, storage.VectorIndex) {
	t.Helper()

	store, err := sqlite.NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	index, backend, err := badger.NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	return store.FileRepository(), index
}

func createFile(t *testing.T, files storage.FileRepository, id string, status core.FileStatus, chunkCount int) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, files.Create(ctx, &core.FileRecord{
		ID:          id,
		Filename:    id + ".txt",
		StoragePath: "/data/" + id + ".txt",
		ContentHash: "cafe",
		SizeBytes:   10,
		Status:      core.StatusUploaded,
		UploadedAt:  time.Now().UTC(),
	}))

	if status == core.StatusUploaded {
		return
	}
	path := []core.FileStatus{core.StatusPreprocessing, core.StatusPreprocessed, core.StatusVectorizing, core.StatusCompleted}
	for _, step := range path {
		require.NoError(t, files.UpdateStatus(ctx, id, step, nil))
		if step == status {
			break
		}
	}
	if status == core.StatusCompleted {
		require.NoError(t, files.SetVectorizationResult(ctx, id, true, chunkCount, ""))
	}
	if status == core.StatusDeleted {
		require.NoError(t, files.UpdateStatus(ctx, id, core.StatusDeleted, nil))
	}
}

func upsertVectors(t *testing.T, index storage.VectorIndex, fileID string, count int) {
	t.Helper()

	chunks := make([]*core.Chunk, count)
	for i := range chunks {
		chunks[i] = &core.Chunk{
			FileID:    fileID,
			Index:     i,
			Text:      "chunk",
			Embedding: []float32{1, 0, 0},
		}
	}
	meta := core.VectorMetadata{FileID: fileID, Filename: fileID + ".txt"}
	require.NoError(t, index.UpsertChunks(context.Background(), chunks, meta))
}

func TestOrphanedMetadataCorrectedToFailed(t *testing.T) {
	files, index := newTestStores(t)
	ctx := context.Background()

	// Completed in metadata, but the index holds nothing for it.
	createFile(t, files, "file-lost", core.StatusCompleted, 3)

	report := NewReconciler(files, index, nil).Run(ctx)

	step := report.StepByName("orphaned_metadata")
	require.NotNil(t, step)
	require.NoError(t, step.Err)
	assert.Equal(t, 1, step.Found)
	assert.Equal(t, 1, step.Fixed)

	record, err := files.Get(ctx, "file-lost")
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, record.Status)
	assert.NotEmpty(t, record.ErrorMessage)
}

func TestOrphanedVectorsCleanedUp(t *testing.T) {
	files, index := newTestStores(t)
	ctx := context.Background()

	createFile(t, files, "file-kept", core.StatusCompleted, 2)
	upsertVectors(t, index, "file-kept", 2)

	// Vectors with no file record at all.
	upsertVectors(t, index, "file-ghost", 3)

	report := NewReconciler(files, index, nil).Run(ctx)

	found := report.StepByName("orphaned_vectors")
	require.NotNil(t, found)
	require.NoError(t, found.Err)
	assert.Equal(t, 3, found.Found)

	cleanup := report.StepByName("cleanup")
	require.NotNil(t, cleanup)
	require.NoError(t, cleanup.Err)
	assert.Equal(t, 3, cleanup.Fixed)

	ghostCount, err := index.CountByFile(ctx, "file-ghost")
	require.NoError(t, err)
	assert.Zero(t, ghostCount)

	keptCount, err := index.CountByFile(ctx, "file-kept")
	require.NoError(t, err)
	assert.Equal(t, 2, keptCount)
}

func TestDeletedFileVectorsAreOrphans(t *testing.T) {
	files, index := newTestStores(t)
	ctx := context.Background()

	createFile(t, files, "file-gone", core.StatusUploaded, 0)
	require.NoError(t, files.UpdateStatus(ctx, "file-gone", core.StatusDeleted, nil))
	upsertVectors(t, index, "file-gone", 2)

	report := NewReconciler(files, index, nil).Run(ctx)

	found := report.StepByName("orphaned_vectors")
	require.NotNil(t, found)
	assert.Equal(t, 2, found.Found)

	count, err := index.CountByFile(ctx, "file-gone")
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestStatusSyncCorrectsChunkCount(t *testing.T) {
	files, index := newTestStores(t)
	ctx := context.Background()

	createFile(t, files, "file-drift", core.StatusCompleted, 5)
	upsertVectors(t, index, "file-drift", 3)

	report := NewReconciler(files, index, nil).Run(ctx)

	step := report.StepByName("status_sync")
	require.NotNil(t, step)
	require.NoError(t, step.Err)
	assert.Equal(t, 1, step.Found)
	assert.Equal(t, 1, step.Fixed)

	record, err := files.Get(ctx, "file-drift")
	require.NoError(t, err)
	assert.Equal(t, 3, record.ChunkCount)
	assert.Equal(t, core.StatusCompleted, record.Status)
}

func TestHealthyStateReportsNothingToFix(t *testing.T) {
	files, index := newTestStores(t)
	ctx := context.Background()

	createFile(t, files, "file-ok", core.StatusCompleted, 2)
	upsertVectors(t, index, "file-ok", 2)

	report := NewReconciler(files, index, nil).Run(ctx)

	require.Len(t, report.Steps, 5)
	for _, step := range report.Steps {
		assert.NoError(t, step.Err, "step %s", step.Name)
		assert.Zero(t, step.Found, "step %s", step.Name)
	}

	require.NotNil(t, report.IndexStatus)
	assert.True(t, report.IndexStatus.Connected)
	assert.Equal(t, 2, report.IndexStatus.TotalVectors)
}
