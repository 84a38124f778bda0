// Package query runs natural language questions against an index through the
// embedding API. No local ranking, re-ranking, or caching.
package query

import (
	"context"

	"github.com/ternarybob/arbor"

	"github.com/searchops/meilivault/internal/models"
	"github.com/searchops/meilivault/internal/ragapi"
)

// maxK caps the requested source count.
const maxK = 100

// Service answers questions via the embedding API.
type Service struct {
	logger arbor.ILogger
}

// NewService creates a query service.
func NewService(logger arbor.ILogger) *Service {
	return &Service{logger: logger}
}

// Ask submits the question and returns the answer with sources. k is clamped
// to [0, 100]; k=0 legitimately returns zero sources without error.
func (s *Service) Ask(ctx context.Context, req models.QueryRequest) (*models.QueryResult, error) {
	k := req.K
	if k < 0 {
		k = 0
	}
	if k > maxK {
		k = maxK
	}

	client := ragapi.NewClient(req.Connection.EmbeddingURL, req.Connection.EmbeddingKey, ragapi.WithLogger(s.logger))
	result, err := client.Query(ctx, req.Index, req.Question, k)
	if err != nil {
		return nil, err
	}

	if result.Sources == nil {
		result.Sources = []models.QuerySource{}
	}

	s.logger.Info().
		Str("index", req.Index).
		Int("k", k).
		Int("sources", len(result.Sources)).
		Msg("Query answered")
	return result, nil
}
