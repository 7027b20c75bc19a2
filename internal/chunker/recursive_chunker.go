package chunker

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultSeparators are tried in priority order: paragraph, line, sentence, word, character.
// Separators within one level are equivalent.
var DefaultSeparators = [][]string{
	{"\n\n"},
	{"\n"},
	{". ", "! ", "? ", "; "},
	{" "},
	{""},
}

// RecursiveChunker splits at the highest-priority boundary that keeps pieces
// within maxChars and only falls back to weaker boundaries for oversized pieces.
type RecursiveChunker struct {
	maxChars     int
	overlapChars int
	separators   [][]string
}

// NewRecursiveChunker validates the settings and uses DefaultSeparators.
func NewRecursiveChunker(maxChars, overlapChars int) (*RecursiveChunker, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("max chars must be positive, got %d", maxChars)
	}
	if overlapChars < 0 || overlapChars >= maxChars {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", maxChars, overlapChars)
	}
	return &RecursiveChunker{maxChars: maxChars, overlapChars: overlapChars, separators: DefaultSeparators}, nil
}

func (c *RecursiveChunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	return c.merge(c.split(text, c.separators))
}

// split breaks text into pieces no longer than maxChars. Separators stay
// attached to the end of the piece they terminate.
func (c *RecursiveChunker) split(text string, levels [][]string) []string {
	if utf8.RuneCountInString(text) <= c.maxChars {
		return []string{text}
	}
	for i, seps := range levels {
		if len(seps) == 1 && seps[0] == "" {
			return hardSplit(text, c.maxChars)
		}
		parts := splitAfterAny(text, seps)
		if len(parts) < 2 {
			continue
		}
		var out []string
		for _, p := range parts {
			if utf8.RuneCountInString(p) <= c.maxChars {
				out = append(out, p)
				continue
			}
			out = append(out, c.split(p, levels[i+1:])...)
		}
		return out
	}
	return hardSplit(text, c.maxChars)
}

// merge packs pieces greedily into chunks and seeds each new chunk with the
// tail of the previous one.
func (c *RecursiveChunker) merge(pieces []string) []string {
	var chunks []string
	var cur strings.Builder
	curLen := 0
	flush := func() {
		if s := strings.TrimSpace(cur.String()); s != "" {
			chunks = append(chunks, s)
		}
	}
	for _, p := range pieces {
		pl := utf8.RuneCountInString(p)
		if curLen > 0 && curLen+pl > c.maxChars {
			prev := cur.String()
			flush()
			cur.Reset()
			tail := overlapTail(prev, min(c.overlapChars, c.maxChars-pl))
			cur.WriteString(tail)
			curLen = utf8.RuneCountInString(tail)
		}
		cur.WriteString(p)
		curLen += pl
	}
	flush()
	return chunks
}

func splitAfterAny(text string, seps []string) []string {
	var parts []string
	for text != "" {
		idx, sepLen := -1, 0
		for _, sep := range seps {
			if i := strings.Index(text, sep); i >= 0 && (idx < 0 || i < idx) {
				idx, sepLen = i, len(sep)
			}
		}
		if idx < 0 {
			parts = append(parts, text)
			break
		}
		parts = append(parts, text[:idx+sepLen])
		text = text[idx+sepLen:]
	}
	return parts
}

func hardSplit(text string, n int) []string {
	runes := []rune(text)
	var out []string
	for start := 0; start < len(runes); start += n {
		end := min(start+n, len(runes))
		out = append(out, string(runes[start:end]))
	}
	return out
}

// overlapTail returns at most n trailing runes of s, starting at a word boundary when one exists.
func overlapTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	tail := string(runes[len(runes)-n:])
	if i := strings.IndexAny(tail, " \n"); i >= 0 && i < len(tail)-1 {
		tail = tail[i+1:]
	}
	return tail
}
