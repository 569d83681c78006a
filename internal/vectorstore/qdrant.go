package vectorstore

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/qdrant/go-client/qdrant"
)

// QdrantStore implements VectorStore using Qdrant
type QdrantStore struct {
	client *qdrant.Client
}

// NewQdrantStore creates a new Qdrant client.
// url should be in format "host:port" (e.g., "localhost:6334")
func NewQdrantStore(url string) (*QdrantStore, error) {
	host, portStr, err := net.SplitHostPort(url)
	if err != nil {
		host = url
		portStr = "6334"
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port in qdrant url: %w", err)
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	return &QdrantStore{client: client}, nil
}

// Close closes the Qdrant client connection
func (s *QdrantStore) Close() error {
	return s.client.Close()
}

// CollectionExists checks if a collection exists
func (s *QdrantStore) CollectionExists(ctx context.Context, collection string) (bool, error) {
	exists, err := s.client.CollectionExists(ctx, collection)
	if err != nil {
		return false, fmt.Errorf("failed to check collection existence: %w", err)
	}
	return exists, nil
}

// Query performs a dense similarity search. Qdrant returns points best-first.
func (s *QdrantStore) Query(ctx context.Context, collection string, vector []float32, limit int) ([]SearchResult, error) {
	response, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(limit)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, 0, len(response))
	for _, point := range response {
		results = append(results, SearchResult{
			ID:       pointID(point.GetId()),
			Score:    point.GetScore(),
			Metadata: PayloadToMetadata(point.GetPayload()),
		})
	}

	return results, nil
}

// FindByField scrolls for the first point whose payload key matches value exactly
func (s *QdrantStore) FindByField(ctx context.Context, collection, key, value string) (*SearchResult, error) {
	points, err := s.client.Scroll(ctx, &qdrant.ScrollPoints{
		CollectionName: collection,
		Filter: &qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch(key, value),
			},
		},
		Limit:       qdrant.PtrOf(uint32(1)),
		WithPayload: qdrant.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scroll by %s: %w", key, err)
	}
	if len(points) == 0 {
		return nil, nil
	}

	return &SearchResult{
		ID:       pointID(points[0].GetId()),
		Metadata: PayloadToMetadata(points[0].GetPayload()),
	}, nil
}

// PayloadToMetadata renders scalar payload values as strings. Lists of scalars
// are joined with ", " so fields like tags survive; null and struct values are
// dropped.
func PayloadToMetadata(payload map[string]*qdrant.Value) map[string]string {
	metadata := make(map[string]string, len(payload))
	for k, v := range payload {
		if list, ok := v.GetKind().(*qdrant.Value_ListValue); ok {
			parts := make([]string, 0, len(list.ListValue.GetValues()))
			for _, elem := range list.ListValue.GetValues() {
				if s, ok := scalarString(elem); ok {
					parts = append(parts, s)
				}
			}
			if len(parts) > 0 {
				metadata[k] = strings.Join(parts, ", ")
			}
			continue
		}
		if s, ok := scalarString(v); ok {
			metadata[k] = s
		}
	}
	return metadata
}

func scalarString(v *qdrant.Value) (string, bool) {
	switch kind := v.GetKind().(type) {
	case *qdrant.Value_StringValue:
		return kind.StringValue, true
	case *qdrant.Value_DoubleValue:
		return strconv.FormatFloat(kind.DoubleValue, 'f', -1, 64), true
	case *qdrant.Value_IntegerValue:
		return strconv.FormatInt(kind.IntegerValue, 10), true
	case *qdrant.Value_BoolValue:
		return strconv.FormatBool(kind.BoolValue), true
	}
	return "", false
}

func pointID(id *qdrant.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return strconv.FormatUint(id.GetNum(), 10)
}

// Ensure QdrantStore implements VectorStore
var _ VectorStore = (*QdrantStore)(nil)
