package course

import "strings"

// Splitter defaults, in characters.
const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 100
)

// TextSplitter breaks text into chunks of at most chunkSize characters on
// sentence boundaries, repeating up to chunkOverlap trailing characters at
// the start of the next chunk so context survives the cut.
type TextSplitter struct {
	chunkSize    int
	chunkOverlap int
}

// SplitterOption configures a TextSplitter.
type SplitterOption func(*TextSplitter)

// WithChunkSize sets the maximum chunk length in characters.
func WithChunkSize(n int) SplitterOption {
	return func(s *TextSplitter) {
		if n > 0 {
			s.chunkSize = n
		}
	}
}

// WithChunkOverlap sets the overlap carried between consecutive chunks.
func WithChunkOverlap(n int) SplitterOption {
	return func(s *TextSplitter) {
		if n >= 0 {
			s.chunkOverlap = n
		}
	}
}

// NewTextSplitter builds a splitter. An overlap at or above the chunk size
// would stall the scan, so it is clamped back to the default ratio.
func NewTextSplitter(opts ...SplitterOption) *TextSplitter {
	s := &TextSplitter{
		chunkSize:    DefaultChunkSize,
		chunkOverlap: DefaultChunkOverlap,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.chunkOverlap >= s.chunkSize {
		s.chunkOverlap = s.chunkSize * DefaultChunkOverlap / DefaultChunkSize
	}
	return s
}

// Split chunks text. Whitespace runs collapse to single spaces first, so
// chunk sizes measure content rather than formatting.
func (s *TextSplitter) Split(text string) []string {
	text = strings.Join(strings.Fields(text), " ")
	if text == "" {
		return nil
	}

	sentences := splitSentences(text)

	var chunks []string
	i := 0
	for i < len(sentences) {
		// A single sentence beyond the chunk size falls back to word packing.
		if len(sentences[i]) > s.chunkSize {
			chunks = append(chunks, s.splitWords(sentences[i])...)
			i++
			continue
		}

		current := []string{sentences[i]}
		size := len(sentences[i])
		j := i + 1
		for j < len(sentences) && size+1+len(sentences[j]) <= s.chunkSize {
			size += 1 + len(sentences[j])
			current = append(current, sentences[j])
			j++
		}
		chunks = append(chunks, strings.Join(current, " "))

		if j >= len(sentences) {
			break
		}

		// Walk back over trailing sentences worth at most chunkOverlap
		// characters. Leaving the first sentence out of the walk guarantees
		// the scan always advances.
		overlap := 0
		back := 0
		for back < len(current)-1 {
			l := len(current[len(current)-1-back])
			if overlap+l > s.chunkOverlap {
				break
			}
			overlap += l + 1
			back++
		}
		i = j - back
	}
	return chunks
}

// splitWords packs words of an oversized sentence into chunkSize pieces.
// Only a word longer than the whole chunk size gets cut mid-word.
func (s *TextSplitter) splitWords(sentence string) []string {
	var chunks []string
	var current []string
	size := 0

	flush := func() {
		if len(current) > 0 {
			chunks = append(chunks, strings.Join(current, " "))
			current = current[:0]
			size = 0
		}
	}

	for _, word := range strings.Fields(sentence) {
		for len(word) > s.chunkSize {
			flush()
			chunks = append(chunks, word[:s.chunkSize])
			word = word[s.chunkSize:]
		}
		if word == "" {
			continue
		}
		add := len(word)
		if len(current) > 0 {
			add++
		}
		if len(current) > 0 && size+add > s.chunkSize {
			flush()
			add = len(word)
		}
		current = append(current, word)
		size += add
	}
	flush()
	return chunks
}

// splitSentences cuts on '.', '!' or '?' followed by a space. Runs of
// terminators stay attached to their sentence, and a terminator glued to the
// next word (as in "3.14") is not a boundary.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i := 0; i < len(text); i++ {
		if !isTerminator(text[i]) {
			continue
		}
		j := i + 1
		for j < len(text) && isTerminator(text[j]) {
			j++
		}
		if j < len(text) && text[j] != ' ' {
			i = j - 1
			continue
		}
		if sent := strings.TrimSpace(text[start:j]); sent != "" {
			sentences = append(sentences, sent)
		}
		start = j
		i = j - 1
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func isTerminator(c byte) bool {
	return c == '.' || c == '!' || c == '?'
}
