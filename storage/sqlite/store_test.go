package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/indexit/core"
	"github.com/poiesic/indexit/storage"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(id string) *core.FileRecord {
	return &core.FileRecord{
		ID:          id,
		Filename:    id + ".txt",
		StoragePath: "/tmp/" + id + ".txt",
		ContentHash: "deadbeef",
		SizeBytes:   42,
		Status:      core.StatusUploaded,
		UploadedAt:  time.Now().UTC(),
	}
}

func TestFileRepositoryCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	files := store.FileRepository()
	ctx := context.Background()

	record := testRecord("file-1")
	require.NoError(t, files.Create(ctx, record))

	got, err := files.Get(ctx, "file-1")
	require.NoError(t, err)
	assert.Equal(t, "file-1.txt", got.Filename)
	assert.Equal(t, core.StatusUploaded, got.Status)
	assert.Nil(t, got.CategoryID)
	assert.Nil(t, got.PreprocessingStartedAt)
	assert.False(t, got.Vectorized)
}

func TestFileRepositoryCreateDuplicate(t *testing.T) {
	store := newTestStore(t)
	files := store.FileRepository()
	ctx := context.Background()

	require.NoError(t, files.Create(ctx, testRecord("file-1")))
	err := files.Create(ctx, testRecord("file-1"))
	assert.ErrorIs(t, err, storage.ErrDuplicateID)
}

func TestFileRepositoryGetMissing(t *testing.T) {
	store := newTestStore(t)
	_, err := store.FileRepository().Get(context.Background(), "nope")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFileRepositoryUpdateStatusStampsTimestamps(t *testing.T) {
	store := newTestStore(t)
	files := store.FileRepository()
	ctx := context.Background()

	require.NoError(t, files.Create(ctx, testRecord("file-1")))

	require.NoError(t, files.UpdateStatus(ctx, "file-1", core.StatusPreprocessing, nil))
	require.NoError(t, files.UpdateStatus(ctx, "file-1", core.StatusPreprocessed, nil))
	require.NoError(t, files.UpdateStatus(ctx, "file-1", core.StatusVectorizing, nil))
	require.NoError(t, files.UpdateStatus(ctx, "file-1", core.StatusCompleted, nil))

	got, err := files.Get(ctx, "file-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusCompleted, got.Status)
	assert.NotNil(t, got.PreprocessingStartedAt)
	assert.NotNil(t, got.PreprocessedAt)
	assert.NotNil(t, got.VectorizingStartedAt)
	assert.NotNil(t, got.CompletedAt)
}

func TestFileRepositoryUpdateStatusRejectsInvalidTransition(t *testing.T) {
	store := newTestStore(t)
	files := store.FileRepository()
	ctx := context.Background()

	require.NoError(t, files.Create(ctx, testRecord("file-1")))

	err := files.UpdateStatus(ctx, "file-1", core.StatusCompleted, nil)
	assert.ErrorIs(t, err, storage.ErrInvalidTransition)
}

func TestFileRepositoryUpdateStatusFailureInfo(t *testing.T) {
	store := newTestStore(t)
	files := store.FileRepository()
	ctx := context.Background()

	require.NoError(t, files.Create(ctx, testRecord("file-1")))
	require.NoError(t, files.UpdateStatus(ctx, "file-1", core.StatusPreprocessing, nil))
	require.NoError(t, files.UpdateStatus(ctx, "file-1", core.StatusFailed, &storage.FailureInfo{
		Message: "document contains no extractable text",
		Type:    core.ErrorTypeEmptyDocument,
	}))

	got, err := files.Get(ctx, "file-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusFailed, got.Status)
	assert.Equal(t, "document contains no extractable text", got.ErrorMessage)
	assert.Equal(t, core.ErrorTypeEmptyDocument, got.ErrorType)
}

func TestFileRepositoryResetToUploadedClearsState(t *testing.T) {
	store := newTestStore(t)
	files := store.FileRepository()
	ctx := context.Background()

	require.NoError(t, files.Create(ctx, testRecord("file-1")))
	require.NoError(t, files.UpdateStatus(ctx, "file-1", core.StatusPreprocessing, nil))
	require.NoError(t, files.UpdateStatus(ctx, "file-1", core.StatusFailed, &storage.FailureInfo{
		Message: "boom", Type: core.ErrorTypeProvider,
	}))
	require.NoError(t, files.UpdateStatus(ctx, "file-1", core.StatusUploaded, nil))

	got, err := files.Get(ctx, "file-1")
	require.NoError(t, err)
	assert.Equal(t, core.StatusUploaded, got.Status)
	assert.Nil(t, got.PreprocessingStartedAt)
	assert.Empty(t, got.ErrorMessage)
	assert.Empty(t, got.ErrorType)
	assert.False(t, got.Vectorized)
	assert.Zero(t, got.ChunkCount)
}

func TestFileRepositorySetVectorizationResult(t *testing.T) {
	store := newTestStore(t)
	files := store.FileRepository()
	ctx := context.Background()

	require.NoError(t, files.Create(ctx, testRecord("file-1")))
	require.NoError(t, files.SetVectorizationResult(ctx, "file-1", true, 7, ""))
	require.NoError(t, files.SetVectorizationResult(ctx, "file-1", true, 7, ""))

	got, err := files.Get(ctx, "file-1")
	require.NoError(t, err)
	assert.True(t, got.Vectorized)
	assert.Equal(t, 7, got.ChunkCount)

	err = files.SetVectorizationResult(ctx, "missing", true, 1, "")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestFileRepositoryList(t *testing.T) {
	store := newTestStore(t)
	files := store.FileRepository()
	ctx := context.Background()

	catID := "cat-1"
	require.NoError(t, store.CategoryRepository().Create(ctx, &core.Category{ID: catID, Name: "reports"}))
	base := time.Now().UTC()

	a := testRecord("file-a")
	a.UploadedAt = base
	a.CategoryID = &catID
	b := testRecord("file-b")
	b.UploadedAt = base.Add(time.Second)
	c := testRecord("file-c")
	c.UploadedAt = base.Add(2 * time.Second)

	require.NoError(t, files.Create(ctx, a))
	require.NoError(t, files.Create(ctx, b))
	require.NoError(t, files.Create(ctx, c))
	require.NoError(t, files.UpdateStatus(ctx, "file-c", core.StatusDeleted, nil))

	all, err := files.List(ctx, storage.ListOptions{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "file-a", all[0].ID)
	assert.Equal(t, "file-b", all[1].ID)

	withDeleted, err := files.List(ctx, storage.ListOptions{IncludeDeleted: true})
	require.NoError(t, err)
	assert.Len(t, withDeleted, 3)

	byCategory, err := files.List(ctx, storage.ListOptions{CategoryID: &catID})
	require.NoError(t, err)
	require.Len(t, byCategory, 1)
	assert.Equal(t, "file-a", byCategory[0].ID)
}

func TestFileCreateUnknownCategoryRejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	catID := "no-such-category"
	record := testRecord("file-1")
	record.CategoryID = &catID

	err := store.FileRepository().Create(ctx, record)
	assert.Error(t, err)
}

func TestCategoryRepository(t *testing.T) {
	store := newTestStore(t)
	categories := store.CategoryRepository()
	ctx := context.Background()

	require.NoError(t, categories.Create(ctx, &core.Category{ID: "cat-1", Name: "reports"}))
	require.NoError(t, categories.Create(ctx, &core.Category{ID: "cat-2", Name: "contracts"}))

	err := categories.Create(ctx, &core.Category{ID: "cat-3", Name: "reports"})
	assert.ErrorIs(t, err, storage.ErrDuplicateID)

	byID, err := categories.Get(ctx, "cat-1")
	require.NoError(t, err)
	assert.Equal(t, "reports", byID.Name)

	byName, err := categories.GetByName(ctx, "contracts")
	require.NoError(t, err)
	assert.Equal(t, "cat-2", byName.ID)

	_, err = categories.Get(ctx, "cat-9")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	list, err := categories.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "contracts", list[0].Name)
}

func TestStoreReopenPreservesData(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewStore(dir)
	require.NoError(t, err)
	require.NoError(t, store.FileRepository().Create(ctx, testRecord("file-1")))
	require.NoError(t, store.Close())

	reopened, err := NewStore(dir)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.FileRepository().Get(ctx, "file-1")
	require.NoError(t, err)
	assert.Equal(t, "file-1", got.ID)
}
