package chunker

import "strings"

// Config bounds a single chunk. Sizes are in characters (runes) of the
// normalized text.
type Config struct {
	MaxChunkSize int
	OverlapSize  int
	MinChunkSize int
}

func DefaultConfig() Config {
	return Config{MaxChunkSize: 1200, OverlapSize: 100, MinChunkSize: 200}
}

// Chunk is one overlapping segment. StartPosition/EndPosition are rune
// offsets into the normalized input, EndPosition exclusive.
type Chunk struct {
	Text          string
	StartPosition int
	EndPosition   int
	ChunkIndex    int
}

const (
	// Fraction of MaxChunkSize a sentence boundary must clear to be
	// preferred over a hard cut.
	sentenceBoundaryFraction = 0.7
	// Same for a plain whitespace boundary.
	wordBoundaryFraction = 0.8
)

// Split walks text left to right producing bounded, overlapping chunks.
// Each chunk prefers to end on a sentence boundary, then on whitespace,
// then cuts hard at MaxChunkSize. A tail shorter than MinChunkSize is
// merged into the preceding chunk, so only the last chunk may exceed
// MaxChunkSize. Whitespace-only input yields no chunks.
func Split(text string, cfg Config) []Chunk {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	if cfg.MaxChunkSize <= 0 {
		cfg = DefaultConfig()
	}
	if cfg.OverlapSize < 0 {
		cfg.OverlapSize = 0
	}
	if cfg.MinChunkSize < 0 {
		cfg.MinChunkSize = 0
	}
	if cfg.MinChunkSize > cfg.MaxChunkSize {
		cfg.MinChunkSize = cfg.MaxChunkSize
	}

	runes := []rune(text)
	n := len(runes)

	var chunks []Chunk
	start := 0
	for start < n {
		end := start + cfg.MaxChunkSize
		if end >= n {
			end = n
		} else if n-end < cfg.MinChunkSize {
			// The remainder would be an undersized chunk; absorb it.
			end = n
		} else {
			end = adjustBoundary(runes, start, end, cfg.MaxChunkSize)
		}

		chunks = append(chunks, Chunk{
			Text:          string(runes[start:end]),
			StartPosition: start,
			EndPosition:   end,
			ChunkIndex:    len(chunks),
		})

		if end >= n {
			break
		}

		next := end - cfg.OverlapSize
		if floor := start + cfg.MinChunkSize; next < floor {
			// Guarantees forward progress even for tiny chunks.
			next = floor
		}
		start = next
	}
	return chunks
}

// adjustBoundary pulls the cut point back to the most natural boundary
// inside (start, hardEnd] that still keeps the chunk close to target size.
func adjustBoundary(runes []rune, start, hardEnd, target int) int {
	sentenceFloor := start + int(sentenceBoundaryFraction*float64(target))
	if b := lastSentenceEnd(runes, start, hardEnd); b > sentenceFloor {
		return b
	}
	wordFloor := start + int(wordBoundaryFraction*float64(target))
	if w := lastWhitespace(runes, start, hardEnd); w > wordFloor {
		return w
	}
	return hardEnd
}

// lastSentenceEnd returns the offset just past the final ". ", "! ", "? "
// (or the newline variants) within runes[start:end], or -1.
func lastSentenceEnd(runes []rune, start, end int) int {
	for i := end - 1; i > start; i-- {
		r := runes[i]
		if r != ' ' && r != '\n' {
			continue
		}
		prev := runes[i-1]
		if prev == '.' || prev == '!' || prev == '?' {
			return i + 1
		}
	}
	return -1
}

// lastWhitespace returns the offset just past the final whitespace rune
// within runes[start:end], or -1.
func lastWhitespace(runes []rune, start, end int) int {
	for i := end - 1; i > start; i-- {
		if runes[i] == ' ' || runes[i] == '\n' {
			return i + 1
		}
	}
	return -1
}
