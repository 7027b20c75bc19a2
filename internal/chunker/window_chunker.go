package chunker

import (
	"fmt"
	"strings"
)

// Default window settings.
const (
	DefaultMaxChars     = 1800
	DefaultOverlapChars = 200
)

// WindowChunker cuts text into fixed windows of maxChars code points, each
// window after the first starting overlapChars before the end of the previous one.
type WindowChunker struct {
	maxChars     int
	overlapChars int
}

// NewWindowChunker validates the window settings.
func NewWindowChunker(maxChars, overlapChars int) (*WindowChunker, error) {
	if maxChars <= 0 {
		return nil, fmt.Errorf("max chars must be positive, got %d", maxChars)
	}
	if overlapChars < 0 || overlapChars >= maxChars {
		return nil, fmt.Errorf("overlap must be in [0, %d), got %d", maxChars, overlapChars)
	}
	return &WindowChunker{maxChars: maxChars, overlapChars: overlapChars}, nil
}

// Split returns the windows in order. Whitespace-only windows are dropped and
// no window is emitted once the end of the text has been reached.
func (c *WindowChunker) Split(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	runes := []rune(text)
	step := c.maxChars - c.overlapChars
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + c.maxChars
		if end > len(runes) {
			end = len(runes)
		}
		piece := string(runes[start:end])
		if strings.TrimSpace(piece) != "" {
			out = append(out, piece)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
