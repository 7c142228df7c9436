package ingestion

import (
	"strings"
	"unicode/utf8"
)

// defaultSeparators is ordered coarsest-first: paragraph, line, sentence,
// word, then raw characters as the last resort.
var defaultSeparators = []string{"\n\n", "\n", ". ", " ", ""}

// Splitter breaks text into overlapping chunks. It tries the coarsest
// separator that yields pieces under ChunkSize before falling back to
// finer ones, down to plain character windows.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int

	separators []string
}

func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}
	return &Splitter{
		ChunkSize:    chunkSize,
		ChunkOverlap: chunkOverlap,
		separators:   defaultSeparators,
	}
}

// Split returns the chunks of text, trimmed, with whitespace-only chunks
// dropped.
func (s *Splitter) Split(text string) []string {
	var out []string
	for _, chunk := range s.splitRecursive(text, s.separators) {
		chunk = strings.TrimSpace(chunk)
		if chunk != "" {
			out = append(out, chunk)
		}
	}
	return out
}

func (s *Splitter) splitRecursive(text string, separators []string) []string {
	if text == "" {
		return nil
	}
	if utf8.RuneCountInString(text) <= s.ChunkSize {
		return []string{text}
	}

	sep, rest := pickSeparator(text, separators)
	if sep == "" {
		return s.slideWindow(text)
	}

	return s.merge(splitKeepSeparator(text, sep), rest)
}

// pickSeparator returns the first separator present in text and the finer
// separators remaining after it. The empty separator always matches.
func pickSeparator(text string, separators []string) (string, []string) {
	for i, sep := range separators {
		if sep == "" {
			return "", nil
		}
		if strings.Contains(text, sep) {
			return sep, separators[i+1:]
		}
	}
	return "", nil
}

// splitKeepSeparator splits text on sep, keeping sep attached to the
// preceding piece so concatenation reconstructs the input.
func splitKeepSeparator(text, sep string) []string {
	parts := strings.SplitAfter(text, sep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// merge packs pieces into chunks up to ChunkSize, carrying an overlap tail
// of up to ChunkOverlap into the next chunk. Pieces still over ChunkSize
// recurse on the finer separators.
func (s *Splitter) merge(pieces []string, finer []string) []string {
	var chunks []string
	var current []string
	currentLen := 0
	fresh := false // current holds at least one piece not yet emitted

	emit := func() {
		chunks = append(chunks, strings.Join(current, ""))

		// Keep the longest tail of pieces within the overlap budget.
		var tail []string
		tailLen := 0
		for i := len(current) - 1; i >= 0; i-- {
			l := utf8.RuneCountInString(current[i])
			if tailLen+l > s.ChunkOverlap {
				break
			}
			tail = append([]string{current[i]}, tail...)
			tailLen += l
		}
		current = tail
		currentLen = tailLen
		fresh = false
	}

	for _, piece := range pieces {
		l := utf8.RuneCountInString(piece)

		if l > s.ChunkSize {
			if fresh {
				emit()
			}
			current = nil
			currentLen = 0
			fresh = false
			chunks = append(chunks, s.splitRecursive(piece, finer)...)
			continue
		}

		if currentLen+l > s.ChunkSize && fresh {
			emit()
			// Overlap tail alone may still not leave room for the piece.
			if currentLen+l > s.ChunkSize {
				current = nil
				currentLen = 0
			}
		}

		current = append(current, piece)
		currentLen += l
		fresh = true
	}

	if fresh {
		chunks = append(chunks, strings.Join(current, ""))
	}
	return chunks
}

// slideWindow is the character-level fallback: fixed windows of ChunkSize
// advancing by ChunkSize-ChunkOverlap, including the final remainder.
func (s *Splitter) slideWindow(text string) []string {
	runes := []rune(text)
	total := len(runes)

	step := s.ChunkSize - s.ChunkOverlap
	if step <= 0 {
		step = s.ChunkSize
	}

	var chunks []string
	for i := 0; i < total; i += step {
		end := i + s.ChunkSize
		if end > total {
			end = total
		}
		chunks = append(chunks, string(runes[i:end]))
	}
	return chunks
}
