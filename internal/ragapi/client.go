// Package ragapi wraps the external embedding service that owns document
// ingestion and question answering. The service's wire contract is minimal:
// JSON in, JSON out, bearer auth when a key is supplied.
package ragapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/searchops/meilivault/internal/common"
	"github.com/searchops/meilivault/internal/models"
)

const defaultTimeout = 120 * time.Second

// Client talks to the embedding API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     arbor.ILogger
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithLogger sets the logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient creates an embedding API client. apiKey may be empty.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
		logger:     common.GetLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError represents a non-2xx response from the embedding API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("embedding api error: %s returned %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

type ingestTextRequest struct {
	Index string `json:"index"`
	Text  string `json:"text"`
	Title string `json:"title,omitempty"`
}

type ingestPDFRequest struct {
	Index string `json:"index"`
	URL   string `json:"url"`
}

type queryRequest struct {
	Index    string `json:"index"`
	Question string `json:"question"`
	K        int    `json:"k"`
}

type ingestResponse struct {
	DocumentID string `json:"document_id"`
	Message    string `json:"message"`
}

type queryResponse struct {
	Answer  string `json:"answer"`
	Sources []struct {
		DocumentID string  `json:"document_id"`
		Title      string  `json:"title"`
		Snippet    string  `json:"snippet"`
		Score      float64 `json:"score"`
	} `json:"sources"`
}

// IngestText submits a raw text blob for embedding into the given index.
// Submitting the same text twice produces two independent ingestions.
func (c *Client) IngestText(ctx context.Context, index, text, title string) (*models.IngestResult, error) {
	var out ingestResponse
	body := ingestTextRequest{Index: index, Text: text, Title: title}
	if err := c.do(ctx, http.MethodPost, "/ingest/text", body, &out); err != nil {
		return nil, err
	}
	return &models.IngestResult{DocumentID: out.DocumentID, Message: out.Message}, nil
}

// IngestPDF submits an externally stored PDF by URL, typically an S3 URL.
// The service downloads and embeds it; the call returns once accepted.
func (c *Client) IngestPDF(ctx context.Context, index, pdfURL string) (*models.IngestResult, error) {
	var out ingestResponse
	body := ingestPDFRequest{Index: index, URL: pdfURL}
	if err := c.do(ctx, http.MethodPost, "/ingest/pdf", body, &out); err != nil {
		return nil, err
	}
	return &models.IngestResult{DocumentID: out.DocumentID, Message: out.Message}, nil
}

// IngestFile submits PDF bytes as a multipart upload for embedding.
func (c *Client) IngestFile(ctx context.Context, index, filename string, data []byte) (*models.IngestResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("index", index); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("build upload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ingest/upload", &buf)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request POST /ingest/upload: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from /ingest/upload: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    extractErrorMessage(raw),
			Endpoint:   "/ingest/upload",
		}
	}

	var out ingestResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode response from /ingest/upload: %w", err)
	}
	return &models.IngestResult{DocumentID: out.DocumentID, Message: out.Message}, nil
}

// Query sends a natural language question against an index and returns the
// answer with source snippets. k bounds the number of sources.
func (c *Client) Query(ctx context.Context, index, question string, k int) (*models.QueryResult, error) {
	var out queryResponse
	body := queryRequest{Index: index, Question: question, K: k}
	if err := c.do(ctx, http.MethodPost, "/query", body, &out); err != nil {
		return nil, err
	}

	result := &models.QueryResult{Answer: out.Answer}
	for _, s := range out.Sources {
		result.Sources = append(result.Sources, models.QuerySource{
			DocumentID: s.DocumentID,
			Title:      s.Title,
			Snippet:    s.Snippet,
			Score:      s.Score,
		})
	}
	return result, nil
}

// Health checks whether the embedding API is reachable.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response from %s: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := extractErrorMessage(raw)
		c.logger.Warn().
			Str("method", method).
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Msg(message)
		return &APIError{
			StatusCode: resp.StatusCode,
			Message:    message,
			Endpoint:   endpoint,
		}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", endpoint, err)
	}
	return nil
}

func extractErrorMessage(raw []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		for _, m := range []string{payload.Error, payload.Message, payload.Detail} {
			if m != "" {
				return m
			}
		}
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" {
		return "no response body"
	}
	if len(msg) > 300 {
		msg = msg[:300]
	}
	return msg
}
