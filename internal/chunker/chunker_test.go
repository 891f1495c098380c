package chunker

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitEmptyInput(t *testing.T) {
	assert.Nil(t, Split("", DefaultConfig()))
	assert.Nil(t, Split("   \n\t  ", DefaultConfig()))
}

func TestSplitSingleChunkWhenShort(t *testing.T) {
	text := "A short resume that fits in one chunk."
	chunks := Split(text, DefaultConfig())

	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0].Text)
	assert.Equal(t, 0, chunks[0].StartPosition)
	assert.Equal(t, len([]rune(text)), chunks[0].EndPosition)
	assert.Equal(t, 0, chunks[0].ChunkIndex)
}

func TestSplitHardCutAndOverlap(t *testing.T) {
	// No whitespace past the 80% floor, so the first cut is hard at 20.
	text := "abcdefghij klmnopqrs uvwxyz" // len 27, spaces at 10 and 20
	cfg := Config{MaxChunkSize: 20, OverlapSize: 5, MinChunkSize: 5}

	chunks := Split(text, cfg)
	require.Len(t, chunks, 2)

	assert.Equal(t, 0, chunks[0].StartPosition)
	assert.Equal(t, 20, chunks[0].EndPosition)
	assert.Equal(t, "abcdefghij klmnopqrs", chunks[0].Text)

	// next start = end - overlap = 15
	assert.Equal(t, 15, chunks[1].StartPosition)
	assert.Equal(t, 27, chunks[1].EndPosition)
	assert.Equal(t, "opqrs uvwxyz", chunks[1].Text)
	assert.Equal(t, 1, chunks[1].ChunkIndex)
}

func TestSplitPrefersSentenceBoundary(t *testing.T) {
	text := "First sentence here ok. Second part continues with more words after."
	cfg := Config{MaxChunkSize: 30, OverlapSize: 5, MinChunkSize: 5}

	chunks := Split(text, cfg)
	require.GreaterOrEqual(t, len(chunks), 2)

	// The ". " at offset 22-23 clears the 70% floor (21), so the first
	// chunk ends right after it instead of at the hard limit 30.
	assert.Equal(t, 0, chunks[0].StartPosition)
	assert.Equal(t, 24, chunks[0].EndPosition)
	assert.Equal(t, "First sentence here ok. ", chunks[0].Text)
}

func TestSplitMergesShortTail(t *testing.T) {
	text := strings.Repeat("a", 25)
	cfg := Config{MaxChunkSize: 20, OverlapSize: 0, MinChunkSize: 10}

	chunks := Split(text, cfg)
	require.Len(t, chunks, 1)
	// Tail of 5 < min 10 is absorbed; only the last chunk may exceed max.
	assert.Equal(t, 25, chunks[0].EndPosition-chunks[0].StartPosition)
}

func TestSplitForwardProgressWithLargeOverlap(t *testing.T) {
	text := strings.Repeat("x", 100)
	cfg := Config{MaxChunkSize: 10, OverlapSize: 9, MinChunkSize: 5}

	chunks := Split(text, cfg)
	require.NotEmpty(t, chunks)
	for i := 1; i < len(chunks); i++ {
		// next start is clamped to prevStart+minChunkSize
		assert.Equal(t, chunks[i-1].StartPosition+cfg.MinChunkSize, chunks[i].StartPosition)
	}
	assert.Equal(t, 100, chunks[len(chunks)-1].EndPosition)
}

func TestSplitReconstructsOriginalText(t *testing.T) {
	var sb strings.Builder
	for i := 0; i < 120; i++ {
		sb.WriteString("Worked on distributed systems in Go and PostgreSQL. ")
		if i%7 == 0 {
			sb.WriteString("\nLed a team of four engineers!\n")
		}
	}
	text := sb.String()
	runes := []rune(text)

	cfg := DefaultConfig()
	chunks := Split(text, cfg)
	require.NotEmpty(t, chunks)

	var rebuilt strings.Builder
	prevEnd := 0
	for i, c := range chunks {
		assert.Equal(t, i, c.ChunkIndex)
		assert.Equal(t, c.Text, string(runes[c.StartPosition:c.EndPosition]))
		if i == 0 {
			rebuilt.WriteString(c.Text)
		} else {
			require.LessOrEqual(t, c.StartPosition, prevEnd, "chunks must not leave gaps")
			rebuilt.WriteString(string([]rune(c.Text)[prevEnd-c.StartPosition:]))
		}
		prevEnd = c.EndPosition
	}
	assert.Equal(t, text, rebuilt.String())

	for i, c := range chunks {
		size := c.EndPosition - c.StartPosition
		assert.Greater(t, size, 0)
		if i < len(chunks)-1 {
			assert.GreaterOrEqual(t, size, cfg.MinChunkSize)
			assert.LessOrEqual(t, size, cfg.MaxChunkSize)
		}
	}
}

func TestSplitOffsetsAreRuneBased(t *testing.T) {
	text := strings.Repeat("résumé ", 10) // multibyte runes
	cfg := Config{MaxChunkSize: 30, OverlapSize: 5, MinChunkSize: 5}

	chunks := Split(text, cfg)
	runes := []rune(text)
	for _, c := range chunks {
		assert.Equal(t, c.Text, string(runes[c.StartPosition:c.EndPosition]))
	}
}
