package ingestion

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitShortTextIsSingleChunk(t *testing.T) {
	s := NewSplitter(1000, 200)
	chunks := s.Split("a short paragraph")
	require.Len(t, chunks, 1)
	assert.Equal(t, "a short paragraph", chunks[0])
}

func TestSplitEmptyTextYieldsNothing(t *testing.T) {
	s := NewSplitter(1000, 200)
	assert.Empty(t, s.Split(""))
	assert.Empty(t, s.Split("   \n\n  "))
}

func TestSplitPlainRunUsesSlidingWindow(t *testing.T) {
	// 2500 chars with no separators: windows of 1000 advancing by 800,
	// plus the final remainder.
	text := strings.Repeat("a", 2500)
	s := NewSplitter(1000, 200)

	chunks := s.Split(text)

	require.Len(t, chunks, 4)
	assert.Len(t, chunks[0], 1000) // 0-1000
	assert.Len(t, chunks[1], 1000) // 800-1800
	assert.Len(t, chunks[2], 900)  // 1600-2500
	assert.Len(t, chunks[3], 100)  // 2400-2500
}

func TestSplitPrefersParagraphBoundaries(t *testing.T) {
	para1 := strings.Repeat("x", 600)
	para2 := strings.Repeat("y", 600)
	text := para1 + "\n\n" + para2

	s := NewSplitter(1000, 200)
	chunks := s.Split(text)

	// The paragraphs cannot share a chunk, so the split lands exactly on
	// the paragraph boundary instead of mid-paragraph.
	require.Len(t, chunks, 2)
	assert.Equal(t, para1, chunks[0])
	assert.Equal(t, para2, chunks[1])
}

func TestSplitCarriesSentenceOverlap(t *testing.T) {
	var b strings.Builder
	for i := 0; i < 30; i++ {
		b.WriteString(strings.Repeat("w", 90))
		b.WriteString(". ")
	}
	text := b.String()

	s := NewSplitter(300, 100)
	chunks := s.Split(text)

	require.Greater(t, len(chunks), 1)
	for _, chunk := range chunks {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 300)
	}

	// Consecutive chunks share their boundary sentence.
	for i := 1; i < len(chunks); i++ {
		tail := chunks[i-1][len(chunks[i-1])-50:]
		assert.Contains(t, chunks[i], strings.TrimSuffix(strings.TrimSpace(tail), "."))
	}
}

func TestSplitEveryChunkComesFromInput(t *testing.T) {
	text := "First paragraph about storage.\n\nSecond paragraph about retry logic. " +
		"It has two sentences.\n\nThird paragraph, short."
	s := NewSplitter(60, 20)

	chunks := s.Split(text)

	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.Contains(t, text, chunk)
	}
}

func TestSplitChunksRespectSizeBound(t *testing.T) {
	text := strings.Repeat("some words in a sentence. ", 200)
	s := NewSplitter(250, 50)

	for _, chunk := range s.Split(text) {
		assert.LessOrEqual(t, utf8.RuneCountInString(chunk), 250)
	}
}

func TestNewSplitterSanitizesParameters(t *testing.T) {
	s := NewSplitter(0, 0)
	assert.Equal(t, 1000, s.ChunkSize)

	// Overlap >= size would make the window step backwards.
	s = NewSplitter(100, 150)
	assert.Equal(t, 0, s.ChunkOverlap)
}
