// Package extract reads the text layer of PDF files page by page.
package extract

import (
	"fmt"
	"path/filepath"

	"kalys/internal/domain"
	"kalys/internal/logger"
)

// Extractor kinds accepted by New.
const (
	KindNative    = "native"
	KindPdftotext = "pdftotext"
)

// New returns the extractor for kind. pdftotextPath is only used by the
// pdftotext extractor.
func New(kind, pdftotextPath string, log logger.ILogger) (domain.Extractor, error) {
	switch kind {
	case KindNative, "":
		return NewNative(log), nil
	case KindPdftotext:
		return NewPdftotext(pdftotextPath, ExecRunner{}), nil
	default:
		return nil, fmt.Errorf("unknown extractor %q", kind)
	}
}

// documentID is the identifier chunks carry as their source: the file name.
func documentID(path string) string {
	return filepath.Base(path)
}
