package chunker

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"kalys/internal/domain"
)

// Strategy names accepted by New.
const (
	StrategyWindow    = "window"
	StrategyRecursive = "recursive"
	StrategyElements  = "elements"
)

// Builder turns extracted documents into identified chunks with metadata.
// It either splits each page by length or, in element mode, partitions the
// whole document into structural elements.
type Builder struct {
	splitter    domain.Chunker
	partitioner domain.Partitioner
	newID       func() string
}

// Option configures a Builder.
type Option func(*Builder)

// WithIDFunc replaces the UUID generator.
func WithIDFunc(fn func() string) Option {
	return func(b *Builder) {
		if fn != nil {
			b.newID = fn
		}
	}
}

// New creates a Builder for the given strategy.
func New(strategy string, maxChars, overlapChars int, opts ...Option) (*Builder, error) {
	b := &Builder{newID: uuid.NewString}
	switch strategy {
	case StrategyWindow, "":
		c, err := NewWindowChunker(maxChars, overlapChars)
		if err != nil {
			return nil, err
		}
		b.splitter = c
	case StrategyRecursive:
		c, err := NewRecursiveChunker(maxChars, overlapChars)
		if err != nil {
			return nil, err
		}
		b.splitter = c
	case StrategyElements:
		b.partitioner = NewElementPartitioner()
	default:
		return nil, fmt.Errorf("unknown chunker strategy: %s", strategy)
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// Chunks produces the document's chunks. Index is the position within the page,
// or within the document in element mode. Page is nil in element mode.
func (b *Builder) Chunks(doc domain.SourceDocument) []domain.Chunk {
	if b.partitioner != nil {
		return b.elementChunks(doc)
	}
	var out []domain.Chunk
	for _, page := range doc.Pages {
		number := page.Number
		for i, text := range b.splitter.Split(page.Text) {
			out = append(out, domain.Chunk{
				ID:     b.newID(),
				Source: doc.ID,
				Page:   &number,
				Index:  i,
				Text:   text,
			})
		}
	}
	return out
}

func (b *Builder) elementChunks(doc domain.SourceDocument) []domain.Chunk {
	texts := make([]string, 0, len(doc.Pages))
	for _, p := range doc.Pages {
		texts = append(texts, p.Text)
	}
	var out []domain.Chunk
	for _, el := range b.partitioner.Partition(strings.Join(texts, "\n\n")) {
		if strings.TrimSpace(el.Text) == "" {
			continue
		}
		out = append(out, domain.Chunk{
			ID:          b.newID(),
			Source:      doc.ID,
			Index:       len(out),
			ElementType: el.Category,
			Text:        el.Text,
		})
	}
	return out
}
