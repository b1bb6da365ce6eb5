package domain

// SourceKind tells the orchestrator which extractor handles a source.
type SourceKind string

const (
	SourceVideo SourceKind = "video"
	SourceFile  SourceKind = "file"
)

// SourceRef is what the user supplied: a video URL, or a file name plus its bytes.
type SourceRef struct {
	Kind    SourceKind
	Locator string
	Data    []byte
}

// Document is the full text extracted from one user-supplied source.
type Document struct {
	ID       string
	Kind     SourceKind
	Title    string
	Content  string
	Language string
	Pages    int
}

// Chunk is a contiguous part of a document used for indexing.
// Start and End are rune offsets into Document.Content. Overlap is the
// number of leading runes shared with the previous chunk.
type Chunk struct {
	SourceID string
	Index    int
	Text     string
	Start    int
	End      int
	Overlap  int
}

// IndexEntry pairs a chunk with its embedding.
type IndexEntry struct {
	Chunk  Chunk
	Vector []float32
}

// SearchResult represents a matching chunk with a relevance score.
type SearchResult struct {
	Chunk Chunk
	Score float64
}

// Answer is the model's reply to one query together with the chunks it was grounded on.
type Answer struct {
	Query   string
	Text    string
	Sources []SearchResult
}
