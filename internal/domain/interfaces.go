package domain

import "context"

// Page is one page of extracted text. Number is 1-based; Text may be empty.
type Page struct {
	Number int
	Text   string
}

// SourceDocument is a PDF read from the corpus directory. ID is the file base name.
type SourceDocument struct {
	ID    string
	Path  string
	Pages []Page
}

// Chunk is a bounded segment of a document's text, the unit that gets embedded and indexed.
type Chunk struct {
	ID          string
	Source      string
	Page        *int
	Index       int
	ElementType string
	Text        string
}

// Metadata is stored next to each vector in the index.
type Metadata struct {
	Source      string `json:"source"`
	Page        *int   `json:"page,omitempty"`
	ElementType string `json:"element_type,omitempty"`
	ChunkIndex  int    `json:"chunk_index"`
	Text        string `json:"text"`
}

// IndexRecord is the persisted (id, vector, metadata) triple.
type IndexRecord struct {
	ID       string
	Vector   []float32
	Metadata Metadata
}

// Match is a single nearest-neighbour hit returned by an index query.
type Match struct {
	ID       string
	Score    float64
	Metadata Metadata
}

// RetrievedSource is the user-facing projection of a Match.
type RetrievedSource struct {
	URI     string `json:"uri"`
	Page    *int   `json:"page"`
	Snippet string `json:"snippet"`
	Title   string `json:"title,omitempty"`
}

// Record builds the index record for a chunk and its embedding.
func (c Chunk) Record(vector []float32) IndexRecord {
	return IndexRecord{
		ID:     c.ID,
		Vector: vector,
		Metadata: Metadata{
			Source:      c.Source,
			Page:        c.Page,
			ElementType: c.ElementType,
			ChunkIndex:  c.Index,
			Text:        c.Text,
		},
	}
}

// Chunker splits text into overlapping, non-empty segments.
type Chunker interface {
	Split(text string) []string
}

// Element is a structural unit of a document (title, paragraph, list item, table).
type Element struct {
	Category string
	Text     string
}

// Partitioner splits a whole document into structural elements.
type Partitioner interface {
	Partition(text string) []Element
}

// Embedder converts an ordered list of texts into vectors of the same length and order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Extractor reads the pages of a source file.
type Extractor interface {
	Extract(ctx context.Context, path string) (SourceDocument, error)
}
