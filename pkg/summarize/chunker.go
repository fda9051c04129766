package summarize

import (
	"log/slog"
	"strings"
)

// Chunker splits raw text into bounded-size chunks on paragraph boundaries,
// falling back to sentence boundaries for oversized paragraphs. Chunks never
// exceed MaxChunkChars: anything still oversized after splitting is
// truncated, not rejected.
type Chunker struct {
	MaxChunkChars int
	Logger        *slog.Logger
}

func NewChunker(maxChunkChars int) *Chunker {
	return &Chunker{
		MaxChunkChars: maxChunkChars,
		Logger:        slog.Default(),
	}
}

// Chunk splits text into chunks of at most MaxChunkChars characters. The
// returned count is the number of chunks that had to be truncated because no
// boundary split could bring them under budget.
func (c *Chunker) Chunk(text string) ([]string, int) {
	var chunks []string
	var current []string
	currentSize := 0

	paragraphs := strings.Split(text, "\n\n")

	for _, para := range paragraphs {
		paraSize := len(para)

		switch {
		case paraSize > c.MaxChunkChars:
			// Oversized paragraph: flush and split on sentence boundaries.
			if len(current) > 0 {
				chunks = append(chunks, strings.Join(current, "\n\n"))
				current = nil
				currentSize = 0
			}
			chunks = append(chunks, c.splitSentences(para)...)

		case currentSize+paraSize > c.MaxChunkChars && len(current) > 0:
			chunks = append(chunks, strings.Join(current, "\n\n"))
			current = []string{para}
			currentSize = paraSize

		default:
			current = append(current, para)
			currentSize += paraSize
		}
	}

	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n\n"))
	}

	// Joining separators can push a chunk slightly over budget, and a single
	// sentence may simply be too long. Truncate whatever remains oversized.
	truncated := 0
	for i, chunk := range chunks {
		if len(chunk) > c.MaxChunkChars {
			c.Logger.Warn("Chunk exceeds budget after splitting, truncating",
				"chunk", i, "size", len(chunk), "max", c.MaxChunkChars)
			chunks[i] = chunk[:c.MaxChunkChars]
			truncated++
		}
	}

	return chunks, truncated
}

// splitSentences greedily packs sentences of an oversized paragraph into
// chunks.
func (c *Chunker) splitSentences(para string) []string {
	var chunks []string
	sentences := strings.Split(para, ". ")

	var current []string
	currentSize := 0
	for _, sentence := range sentences {
		if currentSize+len(sentence) > c.MaxChunkChars && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, ". ")+".")
			current = []string{sentence}
			currentSize = len(sentence)
		} else {
			current = append(current, sentence)
			currentSize += len(sentence)
		}
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, ". "))
	}

	return chunks
}
