package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poiesic/indexit/core"
)

func TestNewRejectsBadSettings(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
	}{
		{"zero size", 0, 0},
		{"negative size", -5, 0},
		{"negative overlap", 100, -1},
		{"overlap equals size", 100, 100},
		{"overlap exceeds size", 100, 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.size, tt.overlap)
			assert.ErrorIs(t, err, core.ErrInvalidConfig)
		})
	}
}

func TestSplitEmptyTextYieldsNoChunks(t *testing.T) {
	c, err := New(1000, 100)
	require.NoError(t, err)

	assert.Empty(t, c.Split("file-1", ""))
	assert.Empty(t, c.Split("file-1", "   \n\t  "))
}

func TestSplitShortTextSingleChunk(t *testing.T) {
	c, err := New(1000, 100)
	require.NoError(t, err)

	chunks := c.Split("file-1", "a short document")
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, 16, chunks[0].End)
	assert.Equal(t, "a short document", chunks[0].Text)
	assert.Positive(t, chunks[0].TokenCount)
}

func TestSplitThreeThousandCharsInStepsOfNineHundred(t *testing.T) {
	c, err := New(1000, 100)
	require.NoError(t, err)

	// Punctuation-free text so no cut moves back to a boundary.
	text := strings.Repeat("abcde", 600)
	require.Equal(t, 3000, len([]rune(text)))

	chunks := c.Split("file-1", text)
	require.Len(t, chunks, 4)

	wantRanges := [][2]int{{0, 1000}, {900, 1900}, {1800, 2800}, {2700, 3000}}
	for i, chunk := range chunks {
		assert.Equal(t, i, chunk.Index)
		assert.Equal(t, wantRanges[i][0], chunk.Start)
		assert.Equal(t, wantRanges[i][1], chunk.End)
		assert.Equal(t, "file-1", chunk.FileID)
	}
}

func TestSplitCoversFullTextWithNoGaps(t *testing.T) {
	c, err := New(500, 50)
	require.NoError(t, err)

	text := strings.Repeat("nogapshere ", 400)
	chunks := c.Split("file-1", text)
	require.NotEmpty(t, chunks)

	assert.Equal(t, 0, chunks[0].Start)
	assert.Equal(t, len([]rune(text)), chunks[len(chunks)-1].End)
	for i := 1; i < len(chunks); i++ {
		assert.LessOrEqual(t, chunks[i].Start, chunks[i-1].End,
			"chunk %d must start at or before the previous chunk's end", i)
	}
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	c, err := New(100, 10)
	require.NoError(t, err)

	// A sentence ends at rune 95, inside the lookback window of the
	// hard cut at 100.
	text := strings.Repeat("x", 93) + ". " + strings.Repeat("y", 120)
	chunks := c.Split("file-1", text)

	require.GreaterOrEqual(t, len(chunks), 2)
	assert.Equal(t, 95, chunks[0].End)
	assert.Equal(t, 85, chunks[1].Start)
}

func TestSplitDeterministic(t *testing.T) {
	c, err := New(300, 30)
	require.NoError(t, err)

	text := strings.Repeat("Some sentences here. And more text follows. ", 50)
	first := c.Split("file-1", text)
	second := c.Split("file-1", text)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, *first[i], *second[i])
	}
}

func TestSplitRuneOffsetsWithMultibyteText(t *testing.T) {
	c, err := New(10, 2)
	require.NoError(t, err)

	text := strings.Repeat("日本語テキスト", 5)
	chunks := c.Split("file-1", text)
	require.NotEmpty(t, chunks)

	runes := []rune(text)
	for _, chunk := range chunks {
		assert.Equal(t, string(runes[chunk.Start:chunk.End]), chunk.Text)
	}
	assert.Equal(t, len(runes), chunks[len(chunks)-1].End)
}
