package extract

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"kalys/internal/apperrors"
	"kalys/internal/domain"
	"kalys/internal/logger"
)

// Native extracts text in-process. Pages whose text cannot be decoded are
// logged and kept with empty text so page numbers stay aligned with the file.
type Native struct {
	log logger.ILogger
}

func NewNative(log logger.ILogger) *Native { return &Native{log: log} }

func (n *Native) Extract(ctx context.Context, path string) (doc domain.SourceDocument, err error) {
	// the parser panics on some malformed files
	defer func() {
		if r := recover(); r != nil {
			err = apperrors.Extraction("extract.native", fmt.Errorf("%s: parser panic: %v", path, r))
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return domain.SourceDocument{}, apperrors.Extraction("extract.native", fmt.Errorf("%s: %w", path, err))
	}
	defer f.Close()

	total := reader.NumPage()
	doc = domain.SourceDocument{ID: documentID(path), Path: path, Pages: make([]domain.Page, 0, total)}
	for i := 1; i <= total; i++ {
		if err := ctx.Err(); err != nil {
			return domain.SourceDocument{}, fmt.Errorf("%s: page %d: %w", path, i, err)
		}
		p := reader.Page(i)
		if p.V.IsNull() {
			doc.Pages = append(doc.Pages, domain.Page{Number: i})
			continue
		}
		doc.Pages = append(doc.Pages, n.page(path, i, func() (string, error) { return p.GetPlainText(nil) }))
	}
	return doc, nil
}

func (n *Native) page(path string, number int, read func() (string, error)) domain.Page {
	text, err := read()
	if err != nil {
		n.log.Warn("extract", "page text unreadable, keeping it empty", map[string]interface{}{
			"source": documentID(path), "page": number, "error": err.Error(),
		})
		return domain.Page{Number: number}
	}
	return domain.Page{Number: number, Text: strings.TrimSpace(text)}
}
