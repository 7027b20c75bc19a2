package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"kalys/internal/domain"
)

// Element categories produced by ElementPartitioner.
const (
	CategoryTitle     = "Title"
	CategoryListItem  = "ListItem"
	CategoryTable     = "Table"
	CategoryNarrative = "NarrativeText"
)

var (
	blockSplitRe = regexp.MustCompile(`\n[ \t]*\n+`)
	headingRe    = regexp.MustCompile(`(?i)^(article|chapter|section|part|статья|глава|раздел|часть|берене|бап|бөлүм)\s+\d+`)
	listItemRe   = regexp.MustCompile(`^\s*(\d{1,3}[.)]|[a-zа-яё][)]|[-•*–])\s+\S`)
	columnGapRe  = regexp.MustCompile(`\S(\t| {3,})\S`)
)

// ElementPartitioner splits a document into structural elements using layout
// cues from the extracted text: blank-line separated blocks, headings, list
// markers and column gaps.
type ElementPartitioner struct {
	maxTitleChars int
}

func NewElementPartitioner() *ElementPartitioner {
	return &ElementPartitioner{maxTitleChars: 120}
}

func (p *ElementPartitioner) Partition(text string) []domain.Element {
	var out []domain.Element
	for _, block := range blockSplitRe.Split(text, -1) {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		lines := nonEmptyLines(block)
		switch {
		case p.isTitle(lines):
			out = append(out, domain.Element{Category: CategoryTitle, Text: block})
		case isTable(lines):
			out = append(out, domain.Element{Category: CategoryTable, Text: block})
		case allListItems(lines):
			for _, l := range lines {
				out = append(out, domain.Element{Category: CategoryListItem, Text: l})
			}
		default:
			out = append(out, domain.Element{Category: CategoryNarrative, Text: strings.Join(lines, "\n")})
		}
	}
	return out
}

func (p *ElementPartitioner) isTitle(lines []string) bool {
	if len(lines) != 1 {
		return false
	}
	l := lines[0]
	if utf8.RuneCountInString(l) > p.maxTitleChars {
		return false
	}
	if headingRe.MatchString(l) {
		return true
	}
	if strings.HasSuffix(l, ".") || strings.HasSuffix(l, ";") || strings.HasSuffix(l, ",") {
		return false
	}
	return isUpper(l)
}

func isTable(lines []string) bool {
	if len(lines) < 2 {
		return false
	}
	cols := 0
	for _, l := range lines {
		if len(columnGapRe.FindAllString(l, -1)) >= 1 {
			cols++
		}
	}
	return cols*3 >= len(lines)*2
}

func allListItems(lines []string) bool {
	for _, l := range lines {
		if !listItemRe.MatchString(l) {
			return false
		}
	}
	return len(lines) > 0
}

func isUpper(s string) bool {
	letters := 0
	for _, r := range s {
		if unicode.IsLetter(r) {
			letters++
			if !unicode.IsUpper(r) {
				return false
			}
		}
	}
	return letters > 0
}

func nonEmptyLines(block string) []string {
	var out []string
	for _, l := range strings.Split(block, "\n") {
		if t := strings.TrimSpace(l); t != "" {
			out = append(out, t)
		}
	}
	return out
}
