package extract

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"kalys/internal/apperrors"
	"kalys/internal/domain"
)

// ErrToolNotFound is returned when the pdftotext binary is missing.
var ErrToolNotFound = errors.New("pdftotext not found: install poppler-utils")

// CommandRunner abstracts process execution for tests.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr strings.Builder
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			return nil, ErrToolNotFound
		}
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%w: %s", err, msg)
		}
		return nil, err
	}
	return out, nil
}

// Pdftotext shells out to poppler's pdftotext, which keeps reading order
// better than the native parser on multi-column layouts.
type Pdftotext struct {
	bin    string
	runner CommandRunner
}

func NewPdftotext(bin string, runner CommandRunner) *Pdftotext {
	if bin == "" {
		bin = "pdftotext"
	}
	return &Pdftotext{bin: bin, runner: runner}
}

func (p *Pdftotext) Extract(ctx context.Context, path string) (domain.SourceDocument, error) {
	if _, err := os.Stat(path); err != nil {
		return domain.SourceDocument{}, apperrors.Extraction("extract.pdftotext", err)
	}
	out, err := p.runner.Run(ctx, p.bin, "-enc", "UTF-8", "-layout", path, "-")
	if err != nil {
		return domain.SourceDocument{}, apperrors.Extraction("extract.pdftotext", fmt.Errorf("pdftotext failed for %s: %w", path, err))
	}
	return domain.SourceDocument{ID: documentID(path), Path: path, Pages: splitPages(string(out))}, nil
}

// splitPages splits pdftotext output on form feeds. The trailing form feed
// after the last page does not start a new page.
func splitPages(out string) []domain.Page {
	out = strings.TrimSuffix(out, "\f")
	if out == "" {
		return nil
	}
	parts := strings.Split(out, "\f")
	pages := make([]domain.Page, len(parts))
	for i, text := range parts {
		pages[i] = domain.Page{Number: i + 1, Text: strings.TrimSpace(text)}
	}
	return pages
}
