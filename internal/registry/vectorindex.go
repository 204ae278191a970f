package registry

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
)

// VectorIndex is a pluggable nearest-neighbor lookup over block embeddings.
// The registry's default path needs no VectorIndex at all — Store already
// holds every block's embedding and Search does cosine similarity in
// process — but large registries may want an external ANN index, so the
// interface is kept separate and optional (§4.2: "an index... is an
// optimization, not a requirement").
type VectorIndex interface {
	Upsert(ctx context.Context, id string, embedding []float32) error
	Delete(ctx context.Context, id string) error
	Nearest(ctx context.Context, embedding []float32, k int) ([]VectorHit, error)
}

// VectorHit is one nearest-neighbor result: a block id and its similarity
// score (already rescaled to [0,1] the same way Search's semantic term is).
type VectorHit struct {
	ID    string
	Score float64
}

// PostgresVectorIndex is the default VectorIndex: it delegates straight to
// Store's own blocks table, loading the latest-version blocks through
// Store.List and scoring them in process with Search, so no second system
// needs to be kept in sync with the registry. No distance query runs in SQL.
type PostgresVectorIndex struct {
	store *Store
}

// NewPostgresVectorIndex wraps store; no separate storage is created since
// the embedding column already lives on BlockModel.
func NewPostgresVectorIndex(store *Store) *PostgresVectorIndex {
	return &PostgresVectorIndex{store: store}
}

// Upsert is a no-op: the embedding is already written by Store.Save as part
// of the block row itself.
func (p *PostgresVectorIndex) Upsert(ctx context.Context, id string, embedding []float32) error {
	return nil
}

// Delete is a no-op for the same reason; Store.Delete removes the row the
// embedding lives on.
func (p *PostgresVectorIndex) Delete(ctx context.Context, id string) error {
	return nil
}

// Nearest loads the latest-version candidates and scores them in process
// via normalizedCosine — adequate for registries in the hundreds-to-low-
// thousands of blocks §4.2 expects; QdrantVectorIndex exists for larger
// deployments.
func (p *PostgresVectorIndex) Nearest(ctx context.Context, embedding []float32, k int) ([]VectorHit, error) {
	all, err := p.store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	matches := Search(all, embedding, "", k)
	hits := make([]VectorHit, 0, len(matches))
	for _, m := range matches {
		hits = append(hits, VectorHit{ID: m.Block.ID, Score: m.Score})
	}
	return hits, nil
}

// qdrantPayloadIDField mirrors intelligencedev-manifold's qdrant_vector.go:
// Qdrant point IDs must be UUIDs or positive integers, so non-UUID block ids
// are mapped to a deterministic UUID and the original id is carried in the
// point payload.
const qdrantPayloadIDField = "_block_id"

// QdrantVectorIndex is the optional external-ANN-backed VectorIndex,
// grounded directly on
// _examples/intelligencedev-manifold/internal/persistence/databases/qdrant_vector.go's
// NewQdrantVector/Upsert/Delete/SimilaritySearch shape, adapted from a
// generic VectorStore to this package's narrower VectorIndex contract.
type QdrantVectorIndex struct {
	client     *qdrant.Client
	collection string
}

// NewQdrantVectorIndex connects to a Qdrant instance at host:port and
// ensures collection exists with the given embedding dimensions, cosine
// distance (the only metric §4.2's semantic search needs).
func NewQdrantVectorIndex(ctx context.Context, host string, port int, collection string, dimensions int) (*QdrantVectorIndex, error) {
	if collection == "" {
		return nil, fmt.Errorf("qdrant collection name is required")
	}
	client, err := qdrant.NewClient(&qdrant.Config{Host: host, Port: port})
	if err != nil {
		return nil, fmt.Errorf("create qdrant client: %w", err)
	}
	q := &QdrantVectorIndex{client: client, collection: collection}
	if err := q.ensureCollection(ctx, dimensions); err != nil {
		client.Close()
		return nil, err
	}
	return q, nil
}

func (q *QdrantVectorIndex) ensureCollection(ctx context.Context, dimensions int) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return fmt.Errorf("check qdrant collection exists: %w", err)
	}
	if exists {
		return nil
	}
	if dimensions <= 0 {
		return fmt.Errorf("qdrant requires dimensions > 0")
	}
	return q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     uint64(dimensions),
			Distance: qdrant.Distance_Cosine,
		}),
	})
}

func qdrantPointID(blockID string) string {
	if _, err := uuid.Parse(blockID); err == nil {
		return blockID
	}
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(blockID)).String()
}

func (q *QdrantVectorIndex) Upsert(ctx context.Context, id string, embedding []float32) error {
	pointUUID := qdrantPointID(id)
	payload := qdrant.NewValueMap(map[string]any{qdrantPayloadIDField: id})
	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: q.collection,
		Points: []*qdrant.PointStruct{{
			Id:      qdrant.NewIDUUID(pointUUID),
			Vectors: qdrant.NewVectorsDense(vec),
			Payload: payload,
		}},
	})
	return err
}

func (q *QdrantVectorIndex) Delete(ctx context.Context, id string) error {
	_, err := q.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: q.collection,
		Points:         qdrant.NewPointsSelector(qdrant.NewIDUUID(qdrantPointID(id))),
	})
	return err
}

func (q *QdrantVectorIndex) Nearest(ctx context.Context, embedding []float32, k int) ([]VectorHit, error) {
	if k <= 0 {
		k = 10
	}
	vec := make([]float32, len(embedding))
	copy(vec, embedding)
	limit := uint64(k)
	result, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: q.collection,
		Query:          qdrant.NewQueryDense(vec),
		Limit:          &limit,
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, err
	}
	hits := make([]VectorHit, 0, len(result))
	for _, hit := range result {
		id := hit.Id.GetUuid()
		if hit.Payload != nil {
			if v, ok := hit.Payload[qdrantPayloadIDField]; ok {
				id = v.GetStringValue()
			}
		}
		hits = append(hits, VectorHit{ID: id, Score: (float64(hit.Score) + 1) / 2})
	}
	return hits, nil
}

func (q *QdrantVectorIndex) Close() error {
	return q.client.Close()
}
