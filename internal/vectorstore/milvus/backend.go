package milvus

import (
	"context"

	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"
)

// backend is the part of the Milvus API Storage uses. Long-running calls
// return once the server has finished them.
type backend interface {
	hasCollection(ctx context.Context, name string) (bool, error)
	dropCollection(ctx context.Context, name string) error
	createCollection(ctx context.Context, sch *entity.Schema) error
	createIndex(ctx context.Context, name string, idx index.Index) error
	loadCollection(ctx context.Context, name string) error
	upsert(ctx context.Context, name string, cols []column.Column) error
	flush(ctx context.Context, name string) error
	search(ctx context.Context, name string, topK int, vector []float32, expr string) ([]milvusclient.ResultSet, error)
	collectionStats(ctx context.Context, name string) (map[string]string, error)
	close(ctx context.Context) error
}

type grpcBackend struct {
	c *milvusclient.Client
}

func (b *grpcBackend) hasCollection(ctx context.Context, name string) (bool, error) {
	return b.c.HasCollection(ctx, milvusclient.NewHasCollectionOption(name))
}

func (b *grpcBackend) dropCollection(ctx context.Context, name string) error {
	return b.c.DropCollection(ctx, milvusclient.NewDropCollectionOption(name))
}

func (b *grpcBackend) createCollection(ctx context.Context, sch *entity.Schema) error {
	return b.c.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(sch.CollectionName, sch))
}

func (b *grpcBackend) createIndex(ctx context.Context, name string, idx index.Index) error {
	task, err := b.c.CreateIndex(ctx, milvusclient.NewCreateIndexOption(name, fieldEmbedding, idx))
	if err != nil {
		return err
	}
	return task.Await(ctx)
}

func (b *grpcBackend) loadCollection(ctx context.Context, name string) error {
	task, err := b.c.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(name))
	if err != nil {
		return err
	}
	return task.Await(ctx)
}

func (b *grpcBackend) upsert(ctx context.Context, name string, cols []column.Column) error {
	_, err := b.c.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(name, cols...))
	return err
}

func (b *grpcBackend) flush(ctx context.Context, name string) error {
	task, err := b.c.Flush(ctx, milvusclient.NewFlushOption(name))
	if err != nil {
		return err
	}
	return task.Await(ctx)
}

func (b *grpcBackend) search(ctx context.Context, name string, topK int, vector []float32, expr string) ([]milvusclient.ResultSet, error) {
	opt := milvusclient.NewSearchOption(name, topK, []entity.Vector{entity.FloatVector(vector)}).
		WithANNSField(fieldEmbedding).
		WithSearchParam("nprobe", "16").
		WithOutputFields(outputFields...)
	if expr != "" {
		opt = opt.WithFilter(expr)
	}
	return b.c.Search(ctx, opt)
}

func (b *grpcBackend) collectionStats(ctx context.Context, name string) (map[string]string, error) {
	return b.c.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(name))
}

func (b *grpcBackend) close(ctx context.Context) error {
	return b.c.Close(ctx)
}
