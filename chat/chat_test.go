package chat

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/indexit/ai/mock"
	"github.com/poiesic/indexit/chunker"
	"github.com/poiesic/indexit/core"
	"github.com/poiesic/indexit/extract"
	"github.com/poiesic/indexit/search"
	"github.com/poiesic/indexit/storage"
	"github.com/poiesic/indexit/storage/badger"
	"github.com/poiesic/indexit/storage/sqlite"
)

type chatFixture struct {
	chat      *Chat
	completer *mock.MockCompleter
	embedder  *mock.MockEmbedder
	files     storage.FileRepository
	index     storage.VectorIndex
	dir       string
}

func newChatFixture(t *testing.T) *chatFixture {
	t.Helper()

	dir := t.TempDir()
	store, err := sqlite.NewStore(dir)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	index, backend, err := badger.NewMemoryIndex()
	require.NoError(t, err)
	t.Cleanup(func() { backend.Close() })

	embedder := mock.NewMockEmbedder()
	completer := mock.NewMockCompleter()

	searcher, err := search.NewSearcher(store.FileRepository(), index, embedder)
	require.NoError(t, err)

	textChunker, err := chunker.New(1000, 100)
	require.NoError(t, err)

	c, err := NewChat(searcher, completer, extract.DefaultRegistry(nil), textChunker)
	require.NoError(t, err)

	return &chatFixture{
		chat:      c,
		completer: completer,
		embedder:  embedder,
		files:     store.FileRepository(),
		index:     index,
		dir:       dir,
	}
}

// indexDocument writes content to disk, records it COMPLETED, and
// indexes its chunks with a fixed embedding.
func (f *chatFixture) indexDocument(t *testing.T, id, filename, content string, embedding []float32) {
	t.Helper()
	ctx := context.Background()

	path := filepath.Join(f.dir, filename)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	require.NoError(t, f.files.Create(ctx, &core.FileRecord{
		ID: id, Filename: filename, StoragePath: path,
		ContentHash: core.ContentHash([]byte(content)),
		SizeBytes:   int64(len(content)),
		Status:      core.StatusUploaded,
		UploadedAt:  time.Now().UTC(),
	}))
	for _, s := range []core.FileStatus{core.StatusPreprocessing, core.StatusPreprocessed, core.StatusVectorizing, core.StatusCompleted} {
		require.NoError(t, f.files.UpdateStatus(ctx, id, s, nil))
	}

	textChunker, err := chunker.New(1000, 100)
	require.NoError(t, err)
	chunks := textChunker.Split(id, content)
	for _, chunk := range chunks {
		chunk.Embedding = embedding
	}
	require.NoError(t, f.index.UpsertChunks(ctx, chunks, core.VectorMetadata{FileID: id, Filename: filename}))
	require.NoError(t, f.files.SetVectorizationResult(ctx, id, true, len(chunks), ""))
}

func TestAskGroundsAnswerInRetrievedChunks(t *testing.T) {
	f := newChatFixture(t)
	ctx := context.Background()

	f.indexDocument(t, "file-1", "handbook.txt",
		"The onboarding checklist lives in the shared drive.", []float32{1, 0, 0})

	f.embedder.EmbedTextFunc = func(context.Context, string) ([]float32, error) {
		return []float32{1, 0, 0}, nil
	}

	var capturedPrompt string
	f.completer.CompleteFunc = func(_ context.Context, _, userPrompt string) (string, error) {
		capturedPrompt = userPrompt
		return "The checklist is in the shared drive (handbook.txt).", nil
	}

	answer, err := f.chat.Ask(ctx, "Where is the onboarding checklist?", nil)
	require.NoError(t, err)

	assert.Contains(t, answer.Text, "shared drive")
	require.Len(t, answer.Sources, 1)
	assert.Equal(t, "file-1", answer.Sources[0].FileID)

	assert.Contains(t, capturedPrompt, "handbook.txt")
	assert.Contains(t, capturedPrompt, "onboarding checklist lives in the shared drive")
	assert.Contains(t, capturedPrompt, "Question: Where is the onboarding checklist?")
}

func TestAskWithNoMatchesStillAnswers(t *testing.T) {
	f := newChatFixture(t)

	var capturedPrompt string
	f.completer.CompleteFunc = func(_ context.Context, _, userPrompt string) (string, error) {
		capturedPrompt = userPrompt
		return "I could not find anything about that.", nil
	}

	answer, err := f.chat.Ask(context.Background(), "Anything?", nil)
	require.NoError(t, err)

	assert.Empty(t, answer.Sources)
	assert.True(t, strings.Contains(capturedPrompt, "No context passages were found"))
}

func TestAskPropagatesCompleterError(t *testing.T) {
	f := newChatFixture(t)

	f.completer.CompleteFunc = func(context.Context, string, string) (string, error) {
		return "", core.ErrProvider
	}

	_, err := f.chat.Ask(context.Background(), "question", nil)
	assert.ErrorIs(t, err, core.ErrProvider)
}
