// Package qdrant implements retrieval.VectorStore backed by a Qdrant
// cluster, the store the travel corpus lives in.
//
// Qdrant point IDs must be UUIDs or integers, so the adapter derives a
// deterministic UUIDv5 from each logical point key "{document_id}_{index}".
// Re-upserting the same key therefore always lands on the same Qdrant point,
// preserving the last-write-wins contract.
package qdrant

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/google/uuid"
	qd "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/wayfind-ai/go-wayfind/pkg/retrieval"
)

// Store implements retrieval.VectorStore for Qdrant.
type Store struct {
	client *qd.Client
	url    string
}

// Config holds Qdrant connection configuration.
type Config struct {
	// Qdrant server URL, e.g. "http://localhost:6334" (gRPC port).
	URL string

	// Optional API key for Qdrant Cloud.
	APIKey string
}

// New creates a Qdrant-backed store.
//
// Example:
//
//	store, err := qdrant.New(&qdrant.Config{URL: "http://localhost:6334"})
func New(config *Config) (*Store, error) {
	if config.URL == "" {
		return nil, fmt.Errorf("qdrant URL is required")
	}

	parsed, err := url.Parse(config.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid qdrant URL: %w", err)
	}

	port := 6334 // default gRPC port
	if parsed.Port() != "" {
		p, err := strconv.Atoi(parsed.Port())
		if err != nil {
			return nil, fmt.Errorf("invalid qdrant port: %w", err)
		}
		port = p
	}

	client, err := qd.NewClient(&qd.Config{
		Host:   parsed.Hostname(),
		Port:   port,
		APIKey: config.APIKey,
		UseTLS: parsed.Scheme == "https",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &Store{client: client, url: config.URL}, nil
}

// EnsureCollection creates the collection with cosine distance if absent.
//
// A creation race between concurrent callers is treated as success; an
// existing collection with a different vector size is a schema conflict.
func (s *Store) EnsureCollection(ctx context.Context, coll retrieval.Collection, dims int) error {
	exists, err := s.client.CollectionExists(ctx, coll.Name())
	if err != nil {
		return classify("qdrant collection check", err)
	}
	if exists {
		return s.verifyDimensions(ctx, coll, dims)
	}

	err = s.client.CreateCollection(ctx, &qd.CreateCollection{
		CollectionName: coll.Name(),
		VectorsConfig: qd.NewVectorsConfig(&qd.VectorParams{
			Size:     uint64(dims),
			Distance: qd.Distance_Cosine,
		}),
	})
	if err != nil {
		// Lost a creation race: another request made the collection
		// first. Verify it is compatible and carry on.
		if status.Code(err) == codes.AlreadyExists {
			return s.verifyDimensions(ctx, coll, dims)
		}
		return classify("qdrant create collection", err)
	}
	return nil
}

// Upsert writes points, overwriting matching IDs in place.
func (s *Store) Upsert(ctx context.Context, coll retrieval.Collection, points []retrieval.Point) error {
	if len(points) == 0 {
		return nil
	}

	qdPoints := make([]*qd.PointStruct, len(points))
	for i, p := range points {
		qdPoints[i] = &qd.PointStruct{
			Id:      pointID(p.ID),
			Vectors: qd.NewVectors(p.Vector...),
			Payload: buildPayload(p.Payload),
		}
	}

	wait := true
	_, err := s.client.Upsert(ctx, &qd.UpsertPoints{
		CollectionName: coll.Name(),
		Points:         qdPoints,
		Wait:           &wait,
	})
	if err != nil {
		return classify("qdrant upsert", err)
	}
	return nil
}

// Search returns up to topK hits by similarity descending. A collection that
// was never created yields an empty result: a fresh tenant has nothing
// indexed yet, which is success, not an error.
func (s *Store) Search(ctx context.Context, coll retrieval.Collection, vector retrieval.EmbeddingVector, topK int) ([]retrieval.ScoredPoint, error) {
	if len(vector) == 0 {
		return nil, retrieval.NewInputError("query vector is required", nil)
	}

	limit := uint64(topK)
	hits, err := s.client.Query(ctx, &qd.QueryPoints{
		CollectionName: coll.Name(),
		Query:          qd.NewQuery(vector...),
		Limit:          &limit,
		WithPayload:    qd.NewWithPayload(true),
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, classify("qdrant search", err)
	}

	results := make([]retrieval.ScoredPoint, len(hits))
	for i, hit := range hits {
		payload := extractPayload(hit.Payload)
		results[i] = retrieval.ScoredPoint{
			ID:      logicalID(hit.Id, payload),
			Score:   float64(hit.Score),
			Payload: payload,
		}
	}
	return results, nil
}

// DeleteByFilter removes every point whose payload matches all filter fields.
// A collection that does not exist has zero matches, which is success.
func (s *Store) DeleteByFilter(ctx context.Context, coll retrieval.Collection, filter map[string]any) error {
	if len(filter) == 0 {
		return retrieval.NewInputError("delete filter is required", nil)
	}

	wait := true
	_, err := s.client.Delete(ctx, &qd.DeletePoints{
		CollectionName: coll.Name(),
		Points: &qd.PointsSelector{
			PointsSelectorOneOf: &qd.PointsSelector_Filter{
				Filter: buildFilter(filter),
			},
		},
		Wait: &wait,
	})
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil
		}
		return classify("qdrant delete", err)
	}
	return nil
}

// Health checks that the Qdrant server responds.
func (s *Store) Health(ctx context.Context) error {
	if _, err := s.client.HealthCheck(ctx); err != nil {
		return classify("qdrant health check", err)
	}
	return nil
}

// Close releases the underlying gRPC connection.
func (s *Store) Close() error {
	if err := s.client.Close(); err != nil {
		return fmt.Errorf("close qdrant client: %w", err)
	}
	return nil
}

// verifyDimensions compares the stored vector size against dims.
func (s *Store) verifyDimensions(ctx context.Context, coll retrieval.Collection, dims int) error {
	info, err := s.client.GetCollectionInfo(ctx, coll.Name())
	if err != nil {
		return classify("qdrant collection info", err)
	}

	size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if size != 0 && int(size) != dims {
		return &retrieval.SchemaConflictError{Collection: coll.Name(), Want: int(size), Got: dims}
	}
	return nil
}

// pointNamespace seeds the deterministic UUIDv5 derivation of point IDs.
var pointNamespace = uuid.NameSpaceDNS

// pointID maps a logical point key to a stable Qdrant UUID.
func pointID(id string) *qd.PointId {
	return &qd.PointId{
		PointIdOptions: &qd.PointId_Uuid{
			Uuid: uuid.NewSHA1(pointNamespace, []byte(id)).String(),
		},
	}
}

// logicalID reconstructs the logical point key from the payload, falling
// back to the raw Qdrant UUID for points written by other tools.
func logicalID(id *qd.PointId, payload map[string]any) string {
	docID, okDoc := payload[retrieval.PayloadDocumentID].(string)
	idx, okIdx := payload[retrieval.PayloadChunkIndex].(int64)
	if okDoc && okIdx {
		return fmt.Sprintf("%s_%d", docID, idx)
	}
	if id != nil {
		return id.GetUuid()
	}
	return ""
}

// buildPayload converts a point payload into Qdrant values.
func buildPayload(payload map[string]any) map[string]*qd.Value {
	out := make(map[string]*qd.Value, len(payload))
	for key, value := range payload {
		switch v := value.(type) {
		case string:
			out[key] = qd.NewValueString(v)
		case int:
			out[key] = qd.NewValueInt(int64(v))
		case int64:
			out[key] = qd.NewValueInt(v)
		case float64:
			out[key] = qd.NewValueDouble(v)
		case bool:
			out[key] = qd.NewValueBool(v)
		default:
			out[key] = qd.NewValueString(fmt.Sprintf("%v", v))
		}
	}
	return out
}

// extractPayload converts Qdrant values back to Go values. Integers come
// back as int64, matching what the retriever tolerates.
func extractPayload(payload map[string]*qd.Value) map[string]any {
	out := make(map[string]any, len(payload))
	for key, value := range payload {
		switch kind := value.GetKind().(type) {
		case *qd.Value_StringValue:
			out[key] = kind.StringValue
		case *qd.Value_IntegerValue:
			out[key] = kind.IntegerValue
		case *qd.Value_DoubleValue:
			out[key] = kind.DoubleValue
		case *qd.Value_BoolValue:
			out[key] = kind.BoolValue
		}
	}
	return out
}

// buildFilter converts an equality filter into Qdrant must-conditions.
func buildFilter(filter map[string]any) *qd.Filter {
	conditions := make([]*qd.Condition, 0, len(filter))
	for key, value := range filter {
		switch v := value.(type) {
		case int:
			conditions = append(conditions, qd.NewMatchInt(key, int64(v)))
		case int64:
			conditions = append(conditions, qd.NewMatchInt(key, v))
		case bool:
			conditions = append(conditions, qd.NewMatchBool(key, v))
		case string:
			conditions = append(conditions, qd.NewMatch(key, v))
		default:
			conditions = append(conditions, qd.NewMatch(key, fmt.Sprintf("%v", v)))
		}
	}
	return &qd.Filter{Must: conditions}
}

// classify wraps retryable gRPC failures as transient so the pipeline can
// back off and retry; everything else is returned as a hard failure.
func classify(op string, err error) error {
	switch status.Code(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted:
		return &retrieval.TransientError{Op: op, Err: err}
	}
	return fmt.Errorf("%s: %w", op, err)
}
