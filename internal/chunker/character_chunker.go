package chunker

import (
	"ragchat/internal/domain"
)

const (
	DefaultChunkSize    = 1000
	DefaultChunkOverlap = 200
	DefaultSeparator    = ". "
)

// CharacterChunker splits text into windows of at most chunkSize runes,
// preferring to cut just after a separator. Consecutive chunks share
// exactly chunkOverlap runes.
type CharacterChunker struct {
	chunkSize    int
	chunkOverlap int
	separator    []rune
}

func NewCharacterChunker(chunkSize, chunkOverlap int, separator string) *CharacterChunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 {
		chunkOverlap = 0
	}
	if chunkOverlap >= chunkSize {
		chunkOverlap = chunkSize / 4
	}
	return &CharacterChunker{
		chunkSize:    chunkSize,
		chunkOverlap: chunkOverlap,
		separator:    []rune(separator),
	}
}

// ChunkSize returns the effective window size after clamping.
func (c *CharacterChunker) ChunkSize() int { return c.chunkSize }

// ChunkOverlap returns the effective overlap after clamping.
func (c *CharacterChunker) ChunkOverlap() int { return c.chunkOverlap }

func (c *CharacterChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	text := []rune(document.Content)
	n := len(text)
	if n == 0 {
		return nil, nil
	}
	if n <= c.chunkSize {
		return []domain.Chunk{{
			SourceID: document.ID,
			Index:    0,
			Text:     document.Content,
			Start:    0,
			End:      n,
		}}, nil
	}

	var chunks []domain.Chunk
	start := 0
	for {
		end := start + c.chunkSize
		final := end >= n
		if final {
			end = n
		} else {
			end = c.cutPoint(text, start, end)
		}
		overlap := 0
		if len(chunks) > 0 {
			overlap = c.chunkOverlap
		}
		chunks = append(chunks, domain.Chunk{
			SourceID: document.ID,
			Index:    len(chunks),
			Text:     string(text[start:end]),
			Start:    start,
			End:      end,
			Overlap:  overlap,
		})
		if final {
			break
		}
		start = end - c.chunkOverlap
	}
	return chunks, nil
}

// cutPoint returns the position just after the last separator that ends in
// (start+overlap, end], or end when there is none. Staying past
// start+overlap guarantees the next window advances.
func (c *CharacterChunker) cutPoint(text []rune, start, end int) int {
	sl := len(c.separator)
	if sl == 0 {
		return end
	}
	for p := end; p > start+c.chunkOverlap; p-- {
		if p-sl < start {
			break
		}
		if runesEqual(text[p-sl:p], c.separator) {
			return p
		}
	}
	return end
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Join reassembles the text the chunks were cut from by dropping each
// chunk's leading overlap.
func Join(chunks []domain.Chunk) string {
	var out []rune
	for _, ch := range chunks {
		r := []rune(ch.Text)
		if ch.Overlap > 0 && ch.Overlap <= len(r) {
			r = r[ch.Overlap:]
		}
		out = append(out, r...)
	}
	return string(out)
}
