package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"kalys/internal/apperrors"
	"kalys/internal/logger"
)

type mockRunner struct {
	output []byte
	err    error
	args   []string
}

func (m *mockRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	m.args = append([]string{name}, args...)
	return m.output, m.err
}

func tempFile(t *testing.T, name string, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestPdftotextSplitsPages(t *testing.T) {
	path := tempFile(t, "family_code.pdf", []byte("%PDF-1.4"))
	runner := &mockRunner{output: []byte("Article 1\nScope\f\fArticle 2  \f")}

	doc, err := NewPdftotext("", runner).Extract(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "family_code.pdf", doc.ID)
	assert.Equal(t, path, doc.Path)
	require.Len(t, doc.Pages, 3)
	assert.Equal(t, 1, doc.Pages[0].Number)
	assert.Equal(t, "Article 1\nScope", doc.Pages[0].Text)
	assert.Equal(t, "", doc.Pages[1].Text)
	assert.Equal(t, 3, doc.Pages[2].Number)
	assert.Equal(t, "Article 2", doc.Pages[2].Text)
	assert.Equal(t, []string{"pdftotext", "-enc", "UTF-8", "-layout", path, "-"}, runner.args)
}

func TestPdftotextFailures(t *testing.T) {
	path := tempFile(t, "broken.pdf", []byte("junk"))

	_, err := NewPdftotext("pdftotext", &mockRunner{err: errors.New("Syntax Error")}).Extract(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrExtraction)
	assert.Contains(t, err.Error(), "pdftotext failed")

	_, err = NewPdftotext("pdftotext", &mockRunner{}).Extract(context.Background(), filepath.Join(t.TempDir(), "missing.pdf"))
	assert.ErrorIs(t, err, apperrors.ErrExtraction)
}

func TestSplitPagesEmpty(t *testing.T) {
	assert.Empty(t, splitPages(""))
	assert.Empty(t, splitPages("\f"))
}

func TestNativeRejectsNonPDF(t *testing.T) {
	path := tempFile(t, "not_a.pdf", []byte("this is plain text, not a pdf"))
	_, err := NewNative(logger.NewNop()).Extract(context.Background(), path)
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrExtraction)
}

func TestNativeMissingFile(t *testing.T) {
	_, err := NewNative(logger.NewNop()).Extract(context.Background(), filepath.Join(t.TempDir(), "nope.pdf"))
	assert.ErrorIs(t, err, apperrors.ErrExtraction)
}

func TestNativeLogsUnreadablePage(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	n := NewNative(logger.FromZap(zap.New(core)))

	page := n.page("/corpus/landcode.pdf", 3, func() (string, error) { return "", errors.New("bad font encoding") })
	assert.Equal(t, 3, page.Number)
	assert.Empty(t, page.Text)

	entries := logs.AllUntimed()
	require.Len(t, entries, 1)
	assert.Equal(t, zap.WarnLevel, entries[0].Level)
	details := entries[0].ContextMap()["details"].(map[string]interface{})
	assert.Equal(t, "landcode.pdf", details["source"])
	assert.Equal(t, 3, details["page"])
	assert.Equal(t, "bad font encoding", details["error"])

	page = n.page("/corpus/landcode.pdf", 4, func() (string, error) { return "  Article 4  ", nil })
	assert.Equal(t, "Article 4", page.Text)
	assert.Len(t, logs.AllUntimed(), 1)
}

func TestNew(t *testing.T) {
	e, err := New("native", "", logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &Native{}, e)

	e, err = New("pdftotext", "/usr/bin/pdftotext", logger.NewNop())
	require.NoError(t, err)
	assert.IsType(t, &Pdftotext{}, e)

	_, err = New("ocr", "", logger.NewNop())
	assert.Error(t, err)
}
