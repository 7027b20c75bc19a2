package service

import (
	"context"
	"strings"

	"kalys/internal/apperrors"
	"kalys/internal/domain"
	"kalys/internal/locale"
	"kalys/internal/logger"
	"kalys/internal/vectorstore"
)

// QueryEmbedder embeds a question with the model used at ingestion time.
type QueryEmbedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// RetrieverConfig bounds retrieval.
type RetrieverConfig struct {
	DefaultTopK  int
	MaxTopK      int
	SnippetChars int
}

// Retriever finds the chunks most relevant to a question.
type Retriever struct {
	embedder QueryEmbedder
	index    vectorstore.Index
	cfg      RetrieverConfig
	log      logger.ILogger
}

func NewRetriever(embedder QueryEmbedder, index vectorstore.Index, cfg RetrieverConfig, log logger.ILogger) *Retriever {
	if cfg.DefaultTopK <= 0 {
		cfg.DefaultTopK = 4
	}
	if cfg.MaxTopK < cfg.DefaultTopK {
		cfg.MaxTopK = max(cfg.DefaultTopK, 20)
	}
	if cfg.SnippetChars <= 0 {
		cfg.SnippetChars = 500
	}
	return &Retriever{embedder: embedder, index: index, cfg: cfg, log: log}
}

// Retrieval holds what one question retrieved: full chunk texts for the model
// and short attributions for the user, index-aligned.
type Retrieval struct {
	Contexts []string
	Sources  []domain.RetrievedSource
}

// TopK clamps a requested result count into [1, MaxTopK].
func (r *Retriever) TopK(requested int) int {
	if requested <= 0 {
		return r.cfg.DefaultTopK
	}
	return min(requested, r.cfg.MaxTopK)
}

// Retrieve embeds the question and queries the index. An empty allowed list
// searches every document. Titles are resolved in loc.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int, allowed []string, loc locale.Locale) (*Retrieval, error) {
	if strings.TrimSpace(question) == "" {
		return nil, apperrors.Validation("service.retrieve", "question is empty")
	}
	vec, err := r.embedder.EmbedQuery(ctx, question)
	if err != nil {
		if apperrors.KindOf(err) == apperrors.KindUnexpected {
			err = apperrors.Embedding("service.retrieve", err)
		}
		return nil, err
	}

	var filter *vectorstore.Filter
	if len(allowed) > 0 {
		filter = &vectorstore.Filter{Sources: allowed}
	}
	k := r.TopK(topK)
	matches, err := r.index.Query(ctx, vec, k, filter)
	if err != nil {
		return nil, apperrors.Index("service.retrieve", err)
	}

	out := &Retrieval{
		Contexts: make([]string, 0, len(matches)),
		Sources:  make([]domain.RetrievedSource, 0, len(matches)),
	}
	for _, m := range matches {
		out.Contexts = append(out.Contexts, m.Metadata.Text)
		out.Sources = append(out.Sources, domain.RetrievedSource{
			URI:     m.Metadata.Source,
			Page:    m.Metadata.Page,
			Snippet: Snippet(m.Metadata.Text, r.cfg.SnippetChars),
			Title:   locale.DisplayName(m.Metadata.Source, loc),
		})
	}
	r.log.Debug("service", "retrieved context", map[string]interface{}{
		"top_k": k, "matches": len(matches), "filtered": filter != nil,
	})
	return out, nil
}

// Snippet returns the first n code points of text.
func Snippet(text string, n int) string {
	count := 0
	for i := range text {
		if count == n {
			return text[:i]
		}
		count++
	}
	return text
}
