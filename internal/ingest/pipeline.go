// Package ingest turns a directory of PDFs into index records.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"runtime/debug"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/panjf2000/ants/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"kalys/internal/apperrors"
	"kalys/internal/domain"
	"kalys/internal/logger"
	"kalys/internal/vectorstore"
)

const module = "ingest"

// Status is the outcome of ingesting one document.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// DocumentResult is the per-document line of a Report.
type DocumentResult struct {
	Source   string        `json:"source"`
	Status   Status        `json:"status"`
	Chunks   int           `json:"chunks"`
	Upserted int           `json:"upserted"`
	Error    string        `json:"error,omitempty"`
	Duration time.Duration `json:"duration"`
}

// Report summarises an ingestion run.
type Report struct {
	Documents []DocumentResult `json:"documents"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Skipped   int              `json:"skipped"`
	Chunks    int              `json:"chunks"`
	Upserted  int              `json:"upserted"`
	Duration  time.Duration    `json:"duration"`
}

// ChunkBuilder splits a document into identified chunks.
type ChunkBuilder interface {
	Chunks(doc domain.SourceDocument) []domain.Chunk
}

// Options selects the documents for one run.
type Options struct {
	Dir     string
	Pattern string
	Reset   bool
}

// Pipeline extracts, chunks, embeds and upserts documents on a bounded pool.
type Pipeline struct {
	extractor domain.Extractor
	builder   ChunkBuilder
	embedder  domain.Embedder
	index     vectorstore.Index
	spec      vectorstore.Spec
	workers   int
	log       logger.ILogger
	progress  ProgressReporter
}

func NewPipeline(extractor domain.Extractor, builder ChunkBuilder, embedder domain.Embedder, index vectorstore.Index, spec vectorstore.Spec, workers int, log logger.ILogger) *Pipeline {
	if workers <= 0 {
		workers = 4
	}
	return &Pipeline{
		extractor: extractor,
		builder:   builder,
		embedder:  embedder,
		index:     index,
		spec:      spec,
		workers:   workers,
		log:       log,
	}
}

// WithProgress attaches a progress reporter. A nil reporter disables progress.
func (p *Pipeline) WithProgress(r ProgressReporter) *Pipeline {
	p.progress = r
	return p
}

// Discover lists the files under dir matching pattern, sorted.
func Discover(dir, pattern string) ([]string, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("pdf directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("pdf directory: %s is not a directory", dir)
	}
	if pattern == "" {
		pattern = "*.[pP][dD][fF]"
	}
	matches, err := doublestar.Glob(os.DirFS(dir), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("glob %q: %w", pattern, err)
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = filepath.Join(dir, filepath.FromSlash(m))
	}
	sort.Strings(out)
	return out, nil
}

// Run ingests every matching document. A reset failure aborts the run before
// any document is touched; document failures are recorded in the report.
// Cancelling ctx stops scheduling; the report still covers every document.
func (p *Pipeline) Run(ctx context.Context, opts Options) (*Report, error) {
	start := time.Now()
	paths, err := Discover(opts.Dir, opts.Pattern)
	if err != nil {
		return nil, err
	}
	p.log.Info(module, "starting ingestion", map[string]interface{}{
		"dir": opts.Dir, "documents": len(paths), "workers": p.workers, "reset": opts.Reset,
	})

	if opts.Reset {
		if err := p.index.Reset(ctx, p.spec); err != nil {
			return nil, apperrors.Index("ingest.reset", err)
		}
		p.log.Info(module, "index reset", map[string]interface{}{"index": p.spec.Name, "dimension": p.spec.Dimension})
	}

	results := make([]DocumentResult, len(paths))
	if p.progress != nil {
		p.progress.Start(len(paths))
		defer p.progress.Finish()
	}

	pool, err := ants.NewPool(p.workers)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	defer pool.Release()

	var wg sync.WaitGroup
	var scheduled atomic.Int64
	for i, docPath := range paths {
		i, docPath := i, docPath
		if ctx.Err() != nil {
			results[i] = DocumentResult{Source: filepath.Base(docPath), Status: StatusFailed, Error: ctx.Err().Error()}
			continue
		}
		wg.Add(1)
		err := pool.Submit(func() {
			defer wg.Done()
			results[i] = p.IngestDocument(ctx, docPath)
			if p.progress != nil {
				p.progress.Increment()
			}
		})
		if err != nil {
			wg.Done()
			results[i] = DocumentResult{Source: filepath.Base(docPath), Status: StatusFailed, Error: err.Error()}
			continue
		}
		scheduled.Add(1)
	}
	wg.Wait()

	report := summarise(results)
	report.Duration = time.Since(start)
	p.log.Info(module, "ingestion finished", map[string]interface{}{
		"scheduled": scheduled.Load(), "succeeded": report.Succeeded, "failed": report.Failed,
		"skipped": report.Skipped, "upserted": report.Upserted, "duration": report.Duration.String(),
	})
	return report, ctx.Err()
}

func summarise(results []DocumentResult) *Report {
	r := &Report{Documents: results}
	sort.SliceStable(r.Documents, func(i, j int) bool { return r.Documents[i].Source < r.Documents[j].Source })
	for _, d := range r.Documents {
		switch d.Status {
		case StatusSucceeded:
			r.Succeeded++
		case StatusFailed:
			r.Failed++
		case StatusSkipped:
			r.Skipped++
		}
		r.Chunks += d.Chunks
		r.Upserted += d.Upserted
	}
	return r
}

// IngestDocument runs one document inside an error boundary; panics are
// recorded as failures.
func (p *Pipeline) IngestDocument(ctx context.Context, docPath string) (res DocumentResult) {
	start := time.Now()
	res.Source = path.Base(filepath.ToSlash(docPath))

	ctx, span := otel.Tracer("kalys/ingest").Start(ctx, "ingest.document")
	span.SetAttributes(attribute.String("document.source", res.Source))
	defer func() {
		if r := recover(); r != nil {
			res.Status = StatusFailed
			res.Error = fmt.Sprintf("panic: %v", r)
			p.log.Error(module, "document panicked", map[string]interface{}{
				"source": res.Source, "panic": fmt.Sprint(r), "stack": string(debug.Stack()),
			})
		}
		res.Duration = time.Since(start)
		span.SetAttributes(
			attribute.String("document.status", string(res.Status)),
			attribute.Int("document.chunks", res.Chunks),
			attribute.Int("document.upserted", res.Upserted),
		)
		if res.Status == StatusFailed {
			span.SetStatus(codes.Error, res.Error)
		}
		span.End()
	}()

	doc, err := p.extractor.Extract(ctx, docPath)
	if err != nil && ctx.Err() != nil {
		return p.fail(res, "extraction interrupted", errors.Join(ctx.Err(), err))
	}
	if err != nil {
		p.log.Warn(module, "skipping document: extraction failed", map[string]interface{}{"source": res.Source, "error": err.Error()})
		res.Status = StatusSkipped
		res.Error = err.Error()
		return res
	}
	if doc.ID == "" {
		doc.ID = res.Source
	}

	chunks := p.builder.Chunks(doc)
	res.Chunks = len(chunks)
	if len(chunks) == 0 {
		p.log.Warn(module, "skipping document: no text", map[string]interface{}{"source": res.Source, "pages": len(doc.Pages)})
		res.Status = StatusSkipped
		res.Error = "no extractable text"
		return res
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
	}
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return p.fail(res, "embedding failed", err)
	}
	if len(vectors) != len(chunks) {
		return p.fail(res, "embedding failed", apperrors.Embedding("ingest.embed",
			fmt.Errorf("got %d vectors for %d chunks", len(vectors), len(chunks))))
	}

	records := make([]domain.IndexRecord, len(chunks))
	for i, c := range chunks {
		records[i] = c.Record(vectors[i])
	}
	n, err := p.index.Upsert(ctx, records)
	res.Upserted = n
	if err != nil {
		return p.fail(res, "upsert failed", apperrors.Index("ingest.upsert", err))
	}

	res.Status = StatusSucceeded
	p.log.Info(module, "document ingested", map[string]interface{}{
		"source": res.Source, "pages": len(doc.Pages), "chunks": res.Chunks, "upserted": res.Upserted,
	})
	return res
}

func (p *Pipeline) fail(res DocumentResult, msg string, err error) DocumentResult {
	res.Status = StatusFailed
	res.Error = err.Error()
	if errors.Is(err, context.Canceled) {
		res.Error = "cancelled"
	}
	p.log.Error(module, msg, map[string]interface{}{"source": res.Source, "error": err})
	return res
}
