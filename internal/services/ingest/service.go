// Package ingest submits documents to the embedding API. Ownership of a
// document transfers to that service on submission; nothing is persisted
// locally and no deduplication happens, so submitting the same text twice
// yields two ingestions.
package ingest

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"

	"github.com/searchops/meilivault/internal/common"
	"github.com/searchops/meilivault/internal/models"
	"github.com/searchops/meilivault/internal/ragapi"
)

// Service handles text and PDF submissions.
type Service struct {
	config    *common.Config
	logger    arbor.ILogger
	validator *Validator
}

// NewService creates an ingest service.
func NewService(config *common.Config, logger arbor.ILogger) *Service {
	return &Service{
		config:    config,
		logger:    logger,
		validator: NewValidator(config.Ingest.MaxPDFPages),
	}
}

func (s *Service) ragClient(conn models.Connection) *ragapi.Client {
	return ragapi.NewClient(conn.EmbeddingURL, conn.EmbeddingKey, ragapi.WithLogger(s.logger))
}

// IngestText submits a raw text blob.
func (s *Service) IngestText(ctx context.Context, req models.IngestTextRequest) (*models.IngestResult, error) {
	result, err := s.ragClient(req.Connection).IngestText(ctx, req.Index, req.Text, req.Title)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("index", req.Index).
		Str("document_id", result.DocumentID).
		Int("text_len", len(req.Text)).
		Msg("Text submitted for embedding")
	return result, nil
}

// IngestPDF submits an externally stored PDF by URL.
func (s *Service) IngestPDF(ctx context.Context, req models.IngestPDFRequest) (*models.IngestResult, error) {
	result, err := s.ragClient(req.Connection).IngestPDF(ctx, req.Index, req.URL)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("index", req.Index).
		Str("document_id", result.DocumentID).
		Str("url", req.URL).
		Msg("PDF URL submitted for embedding")
	return result, nil
}

// IngestUpload validates uploaded PDF bytes locally, then submits them.
func (s *Service) IngestUpload(ctx context.Context, conn models.Connection, index, filename string, data []byte) (*models.IngestResult, error) {
	if max := s.config.Ingest.MaxUploadSize; max > 0 && int64(len(data)) > max {
		return nil, fmt.Errorf("upload is %d bytes, maximum is %d", len(data), max)
	}

	pages, err := s.validator.ValidatePDF(data)
	if err != nil {
		return nil, err
	}

	result, err := s.ragClient(conn).IngestFile(ctx, index, filename, data)
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("index", index).
		Str("document_id", result.DocumentID).
		Int("pages", pages).
		Msg("PDF upload submitted for embedding")
	return result, nil
}
