// Package chat answers questions grounded in indexed documents.
//
// Ask embeds the question, retrieves the most similar chunks, rebuilds
// their text and sends question plus context to the chat model. Chunk
// text is re-derived from the source file with the deterministic
// chunker rather than stored in the index, trading a re-extraction per
// answer for a smaller index.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/poiesic/indexit/ai"
	"github.com/poiesic/indexit/chunker"
	"github.com/poiesic/indexit/extract"
	"github.com/poiesic/indexit/search"
)

const systemPrompt = `You are a document assistant. Answer the question using only the provided context passages. Cite the source filename for every claim. If the context does not contain the answer, say so plainly.`

// Answer is a generated response with the chunks it was grounded in.
type Answer struct {
	Text    string
	Sources []*search.Result
}

// Chat generates retrieval-augmented answers.
type Chat struct {
	searcher  *search.Searcher
	completer ai.Completer
	registry  *extract.Registry
	chunker   *chunker.Chunker
	topK      int
	logger    *slog.Logger
}

// Option configures a Chat.
type Option func(*Chat) error

// WithTopK sets how many chunks are retrieved per question.
// Default is 5.
func WithTopK(topK int) Option {
	return func(c *Chat) error {
		if topK < 1 {
			topK = 1
		}
		c.topK = topK
		return nil
	}
}

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(c *Chat) error {
		if logger == nil {
			logger = slog.Default()
		}
		c.logger = logger
		return nil
	}
}

// NewChat creates a retrieval-augmented chat service.
func NewChat(
	searcher *search.Searcher,
	completer ai.Completer,
	registry *extract.Registry,
	textChunker *chunker.Chunker,
	opts ...Option,
) (*Chat, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher required")
	}
	if completer == nil {
		return nil, fmt.Errorf("completer required")
	}
	if registry == nil {
		return nil, fmt.Errorf("extractor registry required")
	}
	if textChunker == nil {
		return nil, fmt.Errorf("chunker required")
	}

	c := &Chat{
		searcher:  searcher,
		completer: completer,
		registry:  registry,
		chunker:   textChunker,
		topK:      5,
		logger:    slog.Default(),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}

	return c, nil
}

// Ask answers a question from indexed content, optionally restricted
// to one category. With no relevant chunks the model is still asked,
// instructed that no context was found.
func (c *Chat) Ask(ctx context.Context, question string, categoryID *string) (*Answer, error) {
	results, err := c.searcher.Search(ctx, question, c.topK, categoryID)
	if err != nil {
		return nil, err
	}

	prompt, sources := c.buildPrompt(ctx, question, results)

	text, err := c.completer.Complete(ctx, systemPrompt, prompt)
	if err != nil {
		return nil, err
	}

	return &Answer{Text: text, Sources: sources}, nil
}

// buildPrompt rebuilds chunk text for each match and assembles the
// context block. Matches whose text cannot be re-derived are dropped
// from the sources.
func (c *Chat) buildPrompt(ctx context.Context, question string, results []*search.Result) (string, []*search.Result) {
	var sb strings.Builder
	var sources []*search.Result

	// Chunks are re-derived once per distinct file.
	chunksByFile := make(map[string][]string)

	for _, result := range results {
		texts, ok := chunksByFile[result.FileID]
		if !ok {
			texts = c.chunkTexts(ctx, result)
			chunksByFile[result.FileID] = texts
		}
		if result.ChunkIndex >= len(texts) {
			c.logger.Warn("indexed chunk out of range of extracted text",
				"file_id", result.FileID, "chunk_index", result.ChunkIndex)
			continue
		}

		fmt.Fprintf(&sb, "--- %s (chunk %d) ---\n%s\n\n", result.Filename, result.ChunkIndex, texts[result.ChunkIndex])
		sources = append(sources, result)
	}

	var prompt strings.Builder
	if sb.Len() == 0 {
		prompt.WriteString("No context passages were found for this question.\n\n")
	} else {
		prompt.WriteString("Context passages:\n\n")
		prompt.WriteString(sb.String())
	}
	prompt.WriteString("Question: ")
	prompt.WriteString(question)

	return prompt.String(), sources
}

// chunkTexts re-extracts a file and splits it with the same settings
// used at vectorization time. Chunking is deterministic, so indices
// line up with the stored vectors.
func (c *Chat) chunkTexts(ctx context.Context, result *search.Result) []string {
	extractor, err := c.registry.ForFile(result.Filename)
	if err != nil {
		c.logger.Warn("no extractor for indexed file", "file_id", result.FileID, "err", err)
		return nil
	}

	text, err := extractor.Extract(ctx, result.File.StoragePath)
	if err != nil {
		c.logger.Warn("re-extracting indexed file failed", "file_id", result.FileID, "err", err)
		return nil
	}

	chunks := c.chunker.Split(result.FileID, text)
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	return texts
}
