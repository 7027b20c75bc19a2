package hashing

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// Embedder maps text into a fixed-size vector with the hashing trick.
// Vectors are L2-normalised.
type Embedder struct {
	dimension    int
	tokenPattern *regexp.Regexp
	stopwords    map[string]struct{}
}

// NewEmbedder creates a hashing embedder producing vectors of the given size.
func NewEmbedder(dimension int) (*Embedder, error) {
	if dimension <= 0 {
		return nil, errors.New("hashing embedder dimension must be positive")
	}
	return &Embedder{
		dimension:    dimension,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`),
		stopwords:    defaultStopwords(),
	}, nil
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// EmbedBatch embeds every text independently.
func (e *Embedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embed(t)
	}
	return out, nil
}

func (e *Embedder) embed(text string) []float32 {
	tf := make(map[string]int)
	for _, tok := range e.tokenize(text) {
		tf[tok]++
	}
	acc := make([]float64, e.dimension)
	for tok, count := range tf {
		h := fnv.New64a()
		_, _ = h.Write([]byte(tok))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimension))
		// the top bit picks the sign so collisions tend to cancel
		sign := 1.0
		if sum>>63 == 1 {
			sign = -1.0
		}
		acc[idx] += sign * (1 + math.Log(float64(count)))
	}
	norm := 0.0
	for _, v := range acc {
		norm += v * v
	}
	norm = math.Sqrt(norm)
	vec := make([]float32, e.dimension)
	if norm == 0 {
		return vec
	}
	for i, v := range acc {
		vec[i] = float32(v / norm)
	}
	return vec
}

func (e *Embedder) tokenize(text string) []string {
	lower := strings.ToLower(text)
	raw := e.tokenPattern.FindAllString(lower, -1)
	if len(raw) == 0 {
		return nil
	}
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := e.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "so", "such", "into", "about", "between", "can", "will", "should",
		"и", "в", "во", "на", "с", "со", "по", "к", "о", "об", "от", "до", "из", "за", "для", "не", "или", "а", "но", "что", "как", "это",
		"жана", "менен", "же", "үчүн", "бул", "да", "дагы",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
