// Package knowledge implements knowledge base search and answer phrasing.
package knowledge

import (
	"context"
	"fmt"

	"github.com/AtRiskMedia/tractcall-go/internal/domain/gateways"
	"github.com/AtRiskMedia/tractcall-go/internal/infrastructure/retry"
	"github.com/qdrant/go-client/qdrant"
)

// Embedder turns a query into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// QdrantConfig locates the knowledge collection.
type QdrantConfig struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	TopK       int
	MinScore   float32
}

// QdrantSearcher embeds the query and searches the tenant's passages.
type QdrantSearcher struct {
	client     *qdrant.Client
	embedder   Embedder
	collection string
	topK       uint64
	minScore   float32
	policy     retry.Policy
}

var _ gateways.KnowledgeSearch = (*QdrantSearcher)(nil)

func NewQdrantSearcher(cfg QdrantConfig, embedder Embedder, policy retry.Policy) (*QdrantSearcher, error) {
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = 3
	}
	return &QdrantSearcher{
		client:     client,
		embedder:   embedder,
		collection: cfg.Collection,
		topK:       uint64(topK),
		minScore:   cfg.MinScore,
		policy:     policy,
	}, nil
}

func (s *QdrantSearcher) Search(ctx context.Context, tenantID, query string) ([]gateways.Passage, error) {
	vector, err := retry.DoValue(ctx, s.policy, func(ctx context.Context) ([]float32, error) {
		return s.embedder.Embed(ctx, query)
	})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	limit := s.topK
	points, err := retry.DoValue(ctx, s.policy, func(ctx context.Context) ([]*qdrant.ScoredPoint, error) {
		return s.client.Query(ctx, &qdrant.QueryPoints{
			CollectionName: s.collection,
			Query:          qdrant.NewQuery(vector...),
			Limit:          &limit,
			Filter:         tenantFilter(tenantID),
			WithPayload:    qdrant.NewWithPayload(true),
		})
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	out := make([]gateways.Passage, 0, len(points))
	for _, point := range points {
		if s.minScore > 0 && point.Score < s.minScore {
			continue
		}
		p := gateways.Passage{Score: point.Score}
		if point.Id != nil {
			if uuid := point.Id.GetUuid(); uuid != "" {
				p.ID = uuid
			} else {
				p.ID = fmt.Sprintf("%d", point.Id.GetNum())
			}
		}
		if v, ok := point.Payload["text"]; ok {
			p.Text = v.GetStringValue()
		} else if v, ok := point.Payload["content"]; ok {
			p.Text = v.GetStringValue()
		}
		if v, ok := point.Payload["source"]; ok {
			p.Source = v.GetStringValue()
		}
		if p.Text != "" {
			out = append(out, p)
		}
	}
	return out, nil
}

func tenantFilter(tenantID string) *qdrant.Filter {
	if tenantID == "" {
		return nil
	}
	return &qdrant.Filter{
		Must: []*qdrant.Condition{{
			ConditionOneOf: &qdrant.Condition_Field{
				Field: &qdrant.FieldCondition{
					Key:   "tenant_id",
					Match: &qdrant.Match{MatchValue: &qdrant.Match_Keyword{Keyword: tenantID}},
				},
			},
		}},
	}
}

func (s *QdrantSearcher) Close() error {
	return s.client.Close()
}
