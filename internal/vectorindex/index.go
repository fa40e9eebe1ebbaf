package vectorindex

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tripweaver/tripweaver/internal/embedding"
	"github.com/tripweaver/tripweaver/internal/types"
)

const snippetLimit = 500

// Hit pairs a search candidate with the PoiRecord reconstructed from the
// stored payload.
type Hit struct {
	Candidate types.PoiCandidate
	Record    types.PoiRecord
}

// Index is a content-addressed POI store on a cosine-similarity qdrant
// collection. Inserts are idempotent by poi_id; reads degrade to empty
// results when the store is unavailable.
type Index struct {
	client     *qdrant.Client
	embedder   embedding.Pipeline
	collection string
	dimension  int
	logger     *slog.Logger

	initMu      sync.Mutex
	initialized bool
}

func New(client *qdrant.Client, embedder embedding.Pipeline, collection string, dimension int, logger *slog.Logger) *Index {
	return &Index{
		client:     client,
		embedder:   embedder,
		collection: collection,
		dimension:  dimension,
		logger:     logger,
	}
}

// ensureCollection lazily creates/opens the collection on first use.
func (idx *Index) ensureCollection(ctx context.Context) error {
	idx.initMu.Lock()
	defer idx.initMu.Unlock()
	if idx.initialized {
		return nil
	}

	exists, err := idx.client.CollectionExists(ctx, idx.collection)
	if err != nil {
		return fmt.Errorf("checking collection: %w", err)
	}
	if !exists {
		err = idx.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: idx.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(idx.dimension),
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("creating collection: %w", err)
		}
	}
	idx.initialized = true
	return nil
}

// pointID maps the 32-hex poi_id onto a deterministic UUID point identifier.
func pointID(poiID string) *qdrant.PointId {
	raw, err := hex.DecodeString(poiID)
	if err != nil || len(raw) != 16 {
		sum := md5.Sum([]byte(poiID))
		raw = sum[:]
	}
	id, _ := uuid.FromBytes(raw)
	return qdrant.NewIDUUID(id.String())
}

// Add inserts a single record; a no-op when the ID is already present.
func (idx *Index) Add(ctx context.Context, rec types.PoiRecord) error {
	_, err := idx.AddBatch(ctx, []types.PoiRecord{rec})
	return err
}

// AddBatch inserts records idempotently: in-batch duplicates keep the first
// occurrence, IDs already present in the collection are skipped. Returns the
// number of records actually inserted.
func (idx *Index) AddBatch(ctx context.Context, recs []types.PoiRecord) (int, error) {
	ctx, span := otel.Tracer("VectorIndex").Start(ctx, "AddBatch", trace.WithAttributes(
		attribute.Int("records.count", len(recs)),
	))
	defer span.End()

	if len(recs) == 0 {
		return 0, nil
	}
	if err := idx.ensureCollection(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "collection unavailable")
		return 0, err
	}

	// In-batch dedup, first wins.
	seen := make(map[string]struct{}, len(recs))
	unique := make([]types.PoiRecord, 0, len(recs))
	for _, rec := range recs {
		if _, dup := seen[rec.ID]; dup {
			continue
		}
		seen[rec.ID] = struct{}{}
		unique = append(unique, rec)
	}

	// Drop IDs already in the collection.
	ids := make([]*qdrant.PointId, len(unique))
	for i, rec := range unique {
		ids[i] = pointID(rec.ID)
	}
	existing, err := idx.client.Get(ctx, &qdrant.GetPoints{
		CollectionName: idx.collection,
		Ids:            ids,
		WithPayload:    qdrant.NewWithPayload(false),
	})
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("checking existing ids: %w", err)
	}
	present := make(map[string]struct{}, len(existing))
	for _, point := range existing {
		present[point.Id.GetUuid()] = struct{}{}
	}

	fresh := make([]types.PoiRecord, 0, len(unique))
	for _, rec := range unique {
		if _, ok := present[pointID(rec.ID).GetUuid()]; ok {
			continue
		}
		fresh = append(fresh, rec)
	}
	if len(fresh) == 0 {
		span.SetStatus(codes.Ok, "nothing new")
		return 0, nil
	}

	texts := make([]string, len(fresh))
	for i, rec := range fresh {
		texts[i] = rec.RawText
	}
	vectors, err := idx.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("embedding documents: %w", err)
	}

	points := make([]*qdrant.PointStruct, len(fresh))
	for i, rec := range fresh {
		points[i] = &qdrant.PointStruct{
			Id:      pointID(rec.ID),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: qdrant.NewValueMap(buildPayload(rec)),
		}
	}
	if _, err := idx.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: idx.collection,
		Points:         points,
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "upsert failed")
		return 0, fmt.Errorf("upserting points: %w", err)
	}

	span.SetAttributes(attribute.Int("records.inserted", len(fresh)))
	span.SetStatus(codes.Ok, "inserted")
	return len(fresh), nil
}

// SearchByText embeds the query and searches the collection. Unavailability
// degrades to an empty result rather than failing the pipeline.
func (idx *Index) SearchByText(ctx context.Context, query string, k int, cityFilter string) []Hit {
	if err := idx.ensureCollection(ctx); err != nil {
		idx.logger.WarnContext(ctx, "vector index unavailable, returning no hits", slog.Any("error", err))
		return nil
	}

	count, err := idx.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: idx.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		idx.logger.WarnContext(ctx, "vector count failed", slog.Any("error", err))
		return nil
	}
	if count == 0 {
		return nil
	}

	vector, err := idx.embedder.EmbedQuery(ctx, query)
	if err != nil {
		idx.logger.WarnContext(ctx, "query embedding failed", slog.Any("error", err))
		return nil
	}
	return idx.SearchByVector(ctx, vector, k, cityFilter)
}

// SearchByVector returns up to k hits in descending similarity.
func (idx *Index) SearchByVector(ctx context.Context, vector []float32, k int, cityFilter string) []Hit {
	ctx, span := otel.Tracer("VectorIndex").Start(ctx, "SearchByVector", trace.WithAttributes(
		attribute.Int("search.k", k),
		attribute.String("search.city_filter", cityFilter),
	))
	defer span.End()

	if err := idx.ensureCollection(ctx); err != nil {
		idx.logger.WarnContext(ctx, "vector index unavailable, returning no hits", slog.Any("error", err))
		return nil
	}

	query := &qdrant.QueryPoints{
		CollectionName: idx.collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	}
	if cityFilter != "" {
		query.Filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatch("city", cityFilter)},
		}
	}

	points, err := idx.client.Query(ctx, query)
	if err != nil {
		idx.logger.WarnContext(ctx, "vector search failed", slog.Any("error", err))
		span.RecordError(err)
		return nil
	}

	hits := make([]Hit, 0, len(points))
	for _, point := range points {
		rec := recordFromPayload(point.Payload)
		if rec.ID == "" {
			continue
		}
		snippet := rec.RawText
		if len(snippet) > snippetLimit {
			snippet = snippet[:snippetLimit]
		}
		hits = append(hits, Hit{
			Candidate: types.PoiCandidate{
				PoiID:     rec.ID,
				Title:     rec.Name,
				Snippet:   snippet,
				SourceURL: rec.SourceURL,
				Source:    types.SourceVector,
				Relevance: clamp01(float64(point.Score)),
			},
			Record: rec,
		})
	}
	span.SetAttributes(attribute.Int("search.hits", len(hits)))
	span.SetStatus(codes.Ok, "searched")
	return hits
}

// Size reports the number of stored records.
func (idx *Index) Size(ctx context.Context) (int, error) {
	if err := idx.ensureCollection(ctx); err != nil {
		return 0, err
	}
	count, err := idx.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: idx.collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting points: %w", err)
	}
	return int(count), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
