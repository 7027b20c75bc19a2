package milvus

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"kalys/internal/domain"
	"kalys/internal/vectorstore"
)

const (
	fieldID          = "id"
	fieldEmbedding   = "embedding"
	fieldSource      = "source"
	fieldPage        = "page"
	fieldElementType = "element_type"
	fieldChunkIndex  = "chunk_index"
	fieldText        = "text"

	maxTextLen = 65535
)

var outputFields = []string{fieldSource, fieldPage, fieldElementType, fieldChunkIndex, fieldText}

type Config struct {
	Address    string
	Username   string
	Password   string
	Database   string
	Collection string
	BatchSize  int
	Timeout    time.Duration
}

// Storage keeps chunks in a Milvus collection. Page 0 stands for "no page".
// The collection name is fixed at construction.
type Storage struct {
	client     backend
	collection string
	batchSize  int
}

// NewStorage connects to Milvus.
func NewStorage(ctx context.Context, cfg Config) (*Storage, error) {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  cfg.Address,
		Username: cfg.Username,
		Password: cfg.Password,
		DBName:   cfg.Database,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to milvus: %w", err)
	}
	return newStorage(&grpcBackend{c: c}, cfg.Collection, cfg.BatchSize), nil
}

func newStorage(b backend, collection string, batchSize int) *Storage {
	return &Storage{client: b, collection: collection, batchSize: batchSize}
}

func (s *Storage) Close(ctx context.Context) error {
	return s.client.close(ctx)
}

func metricType(metric string) entity.MetricType {
	switch strings.ToLower(metric) {
	case vectorstore.MetricDot:
		return entity.IP
	case vectorstore.MetricEuclidean:
		return entity.L2
	default:
		return entity.COSINE
	}
}

func schema(name string, dimension int) *entity.Schema {
	return entity.NewSchema().
		WithName(name).
		WithDescription("kalys legal document chunks").
		WithAutoID(false).
		WithField(entity.NewField().WithName(fieldID).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64).WithIsPrimaryKey(true)).
		WithField(entity.NewField().WithName(fieldEmbedding).WithDataType(entity.FieldTypeFloatVector).WithDim(int64(dimension))).
		WithField(entity.NewField().WithName(fieldSource).WithDataType(entity.FieldTypeVarChar).WithMaxLength(512)).
		WithField(entity.NewField().WithName(fieldPage).WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().WithName(fieldElementType).WithDataType(entity.FieldTypeVarChar).WithMaxLength(64)).
		WithField(entity.NewField().WithName(fieldChunkIndex).WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().WithName(fieldText).WithDataType(entity.FieldTypeVarChar).WithMaxLength(maxTextLen))
}

// Reset drops and recreates the collection, builds the vector index and loads it.
func (s *Storage) Reset(ctx context.Context, spec vectorstore.Spec) error {
	if err := spec.Validate(); err != nil {
		return err
	}
	if spec.Name != s.collection {
		return fmt.Errorf("index %q does not match collection %q", spec.Name, s.collection)
	}

	exists, err := s.client.hasCollection(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("failed to check collection existence: %w", err)
	}
	if exists {
		if err := s.client.dropCollection(ctx, s.collection); err != nil {
			return fmt.Errorf("failed to drop collection: %w", err)
		}
	}
	if err := s.client.createCollection(ctx, schema(s.collection, spec.Dimension)); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	if err := s.client.createIndex(ctx, s.collection, index.NewIvfFlatIndex(metricType(spec.Metric), 128)); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	if err := s.client.loadCollection(ctx, s.collection); err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}
	return nil
}

// columns converts records into the column layout of the collection.
func columns(records []domain.IndexRecord) []column.Column {
	n := len(records)
	ids := make([]string, n)
	vectors := make([][]float32, n)
	sources := make([]string, n)
	pages := make([]int64, n)
	elements := make([]string, n)
	indexes := make([]int64, n)
	texts := make([]string, n)
	for i, r := range records {
		ids[i] = r.ID
		vectors[i] = r.Vector
		sources[i] = r.Metadata.Source
		if r.Metadata.Page != nil {
			pages[i] = int64(*r.Metadata.Page)
		}
		elements[i] = r.Metadata.ElementType
		indexes[i] = int64(r.Metadata.ChunkIndex)
		texts[i] = r.Metadata.Text
	}
	dim := 0
	if n > 0 {
		dim = len(vectors[0])
	}
	return []column.Column{
		column.NewColumnVarChar(fieldID, ids),
		column.NewColumnFloatVector(fieldEmbedding, dim, vectors),
		column.NewColumnVarChar(fieldSource, sources),
		column.NewColumnInt64(fieldPage, pages),
		column.NewColumnVarChar(fieldElementType, elements),
		column.NewColumnInt64(fieldChunkIndex, indexes),
		column.NewColumnVarChar(fieldText, texts),
	}
}

func (s *Storage) Upsert(ctx context.Context, records []domain.IndexRecord) (int, error) {
	committed := 0
	for _, batch := range vectorstore.Batches(records, s.batchSize) {
		if err := s.client.upsert(ctx, s.collection, columns(batch)); err != nil {
			return committed, fmt.Errorf("failed to upsert batch at %d: %w", committed, err)
		}
		committed += len(batch)
	}
	if committed == 0 {
		return 0, nil
	}
	if err := s.client.flush(ctx, s.collection); err != nil {
		return committed, fmt.Errorf("failed to flush collection: %w", err)
	}
	return committed, nil
}

// filterExpr renders a source filter as a Milvus boolean expression.
func filterExpr(filter *vectorstore.Filter) string {
	if !filter.Active() {
		return ""
	}
	quoted := make([]string, len(filter.Sources))
	for i, src := range filter.Sources {
		quoted[i] = strconv.Quote(src)
	}
	return fmt.Sprintf("%s in [%s]", fieldSource, strings.Join(quoted, ", "))
}

func (s *Storage) Query(ctx context.Context, vector []float32, topK int, filter *vectorstore.Filter) ([]domain.Match, error) {
	if topK <= 0 {
		return nil, nil
	}
	results, err := s.client.search(ctx, s.collection, topK, vector, filterExpr(filter))
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	if len(results) == 0 {
		return []domain.Match{}, nil
	}
	rs := results[0]
	matches := make([]domain.Match, rs.ResultCount)
	for i := 0; i < rs.ResultCount && i < len(rs.Scores); i++ {
		matches[i].Score = float64(rs.Scores[i])
		if ids, ok := rs.IDs.(*column.ColumnVarChar); ok {
			matches[i].ID = ids.Data()[i]
		}
	}
	for _, field := range rs.Fields {
		switch col := field.(type) {
		case *column.ColumnVarChar:
			for i, v := range col.Data()[:rs.ResultCount] {
				setString(&matches[i].Metadata, col.Name(), v)
			}
		case *column.ColumnInt64:
			for i, v := range col.Data()[:rs.ResultCount] {
				setInt(&matches[i].Metadata, col.Name(), v)
			}
		}
	}
	return matches, nil
}

func setString(m *domain.Metadata, name, v string) {
	switch name {
	case fieldSource:
		m.Source = v
	case fieldElementType:
		m.ElementType = v
	case fieldText:
		m.Text = v
	}
}

func setInt(m *domain.Metadata, name string, v int64) {
	switch name {
	case fieldPage:
		if v > 0 {
			p := int(v)
			m.Page = &p
		}
	case fieldChunkIndex:
		m.ChunkIndex = int(v)
	}
}

func (s *Storage) Count(ctx context.Context) (int64, error) {
	stats, err := s.client.collectionStats(ctx, s.collection)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection stats: %w", err)
	}
	if val, ok := stats["row_count"]; ok {
		return strconv.ParseInt(val, 10, 64)
	}
	return 0, nil
}
