package meili

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/searchops/meilivault/internal/common"
	"github.com/searchops/meilivault/internal/models"
)

const (
	defaultTimeout      = 60 * time.Second
	defaultTaskInterval = 500 * time.Millisecond
	defaultPageSize     = 1000
)

// Client talks to a single Meilisearch instance over its REST API.
type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	logger       arbor.ILogger
	limiter      *rate.Limiter
	taskInterval time.Duration
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

// WithRateLimit limits outgoing requests to n per second.
func WithRateLimit(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(n), n)
		}
	}
}

// WithTaskInterval sets the polling interval used by WaitForTask.
func WithTaskInterval(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.taskInterval = d
		}
	}
}

// NewClient creates a Meilisearch API client for the given host and key.
func NewClient(baseURL, apiKey string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		apiKey:       apiKey,
		httpClient:   &http.Client{Timeout: defaultTimeout},
		logger:       common.GetLogger(),
		taskInterval: defaultTaskInterval,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Health checks GET /health and returns an error when the instance is not
// reachable or not available.
func (c *Client) Health(ctx context.Context) error {
	var out struct {
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return err
	}
	if out.Status != "available" {
		return fmt.Errorf("meilisearch health status %q", out.Status)
	}
	return nil
}

// ListIndexes returns all indexes, walking the paginated endpoint.
func (c *Client) ListIndexes(ctx context.Context) ([]models.IndexInfo, error) {
	var all []models.IndexInfo
	offset := 0
	for {
		endpoint := fmt.Sprintf("/indexes?limit=%d&offset=%d", defaultPageSize, offset)
		var page indexListResponse
		if err := c.do(ctx, http.MethodGet, endpoint, nil, &page); err != nil {
			return nil, err
		}
		for _, e := range page.Results {
			all = append(all, models.IndexInfo{
				UID:        e.UID,
				PrimaryKey: e.PrimaryKey,
				CreatedAt:  e.CreatedAt,
				UpdatedAt:  e.UpdatedAt,
			})
		}
		offset += len(page.Results)
		if len(page.Results) == 0 || offset >= page.Total {
			break
		}
	}
	return all, nil
}

// GetIndex fetches a single index by UID.
func (c *Client) GetIndex(ctx context.Context, uid string) (*models.IndexInfo, error) {
	var e indexEntry
	if err := c.do(ctx, http.MethodGet, "/indexes/"+url.PathEscape(uid), nil, &e); err != nil {
		return nil, err
	}
	return &models.IndexInfo{
		UID:        e.UID,
		PrimaryKey: e.PrimaryKey,
		CreatedAt:  e.CreatedAt,
		UpdatedAt:  e.UpdatedAt,
	}, nil
}

// CreateIndex enqueues creation of an index. primaryKey may be empty.
func (c *Client) CreateIndex(ctx context.Context, uid, primaryKey string) (*TaskRef, error) {
	body := createIndexRequest{UID: uid, PrimaryKey: primaryKey}
	var ref TaskRef
	if err := c.do(ctx, http.MethodPost, "/indexes", body, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// UpdateIndex enqueues a primary key change on an existing index.
func (c *Client) UpdateIndex(ctx context.Context, uid, primaryKey string) (*TaskRef, error) {
	body := updateIndexRequest{PrimaryKey: primaryKey}
	var ref TaskRef
	if err := c.do(ctx, http.MethodPatch, "/indexes/"+url.PathEscape(uid), body, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// DeleteIndex enqueues deletion of an index.
func (c *Client) DeleteIndex(ctx context.Context, uid string) (*TaskRef, error) {
	var ref TaskRef
	if err := c.do(ctx, http.MethodDelete, "/indexes/"+url.PathEscape(uid), nil, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// GetSettings returns the full settings object of an index.
func (c *Client) GetSettings(ctx context.Context, uid string) (models.IndexSettings, error) {
	var settings models.IndexSettings
	endpoint := "/indexes/" + url.PathEscape(uid) + "/settings"
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &settings); err != nil {
		return nil, err
	}
	return settings, nil
}

// UpdateSettings applies a full settings object with a single PATCH.
func (c *Client) UpdateSettings(ctx context.Context, uid string, settings models.IndexSettings) (*TaskRef, error) {
	var ref TaskRef
	endpoint := "/indexes/" + url.PathEscape(uid) + "/settings"
	if err := c.do(ctx, http.MethodPatch, endpoint, settings, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// UpdateSetting applies one setting type with PUT, e.g. "ranking-rules".
// Used as a fallback when the bulk PATCH is rejected.
func (c *Client) UpdateSetting(ctx context.Context, uid, settingPath string, value interface{}) (*TaskRef, error) {
	var ref TaskRef
	endpoint := "/indexes/" + url.PathEscape(uid) + "/settings/" + settingPath
	if err := c.do(ctx, http.MethodPut, endpoint, value, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// GetStats returns document counts for an index.
func (c *Client) GetStats(ctx context.Context, uid string) (*models.IndexStats, error) {
	var stats models.IndexStats
	endpoint := "/indexes/" + url.PathEscape(uid) + "/stats"
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// GetDocuments fetches one page of documents from an index.
func (c *Client) GetDocuments(ctx context.Context, uid string, offset, limit int) ([]map[string]interface{}, int64, error) {
	endpoint := fmt.Sprintf("/indexes/%s/documents?offset=%d&limit=%d", url.PathEscape(uid), offset, limit)

	raw, err := c.doRaw(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, 0, err
	}

	// Current servers return {results, offset, limit, total}; v0.x returned
	// a bare array.
	trimmed := bytes.TrimLeft(raw, " \t\r\n")
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var docs []map[string]interface{}
		if err := json.Unmarshal(raw, &docs); err != nil {
			return nil, 0, fmt.Errorf("decode documents: %w", err)
		}
		return docs, int64(len(docs)), nil
	}

	var page documentsResponse
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, 0, fmt.Errorf("decode documents: %w", err)
	}
	return page.Results, page.Total, nil
}

// AllDocuments exports every document of an index page by page.
func (c *Client) AllDocuments(ctx context.Context, uid string, pageSize int) ([]map[string]interface{}, error) {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	var all []map[string]interface{}
	offset := 0
	for {
		docs, _, err := c.GetDocuments(ctx, uid, offset, pageSize)
		if err != nil {
			return nil, err
		}
		all = append(all, docs...)
		if len(docs) < pageSize {
			break
		}
		offset += len(docs)
	}
	return all, nil
}

// AddDocuments enqueues a batch of documents. primaryKey may be empty.
func (c *Client) AddDocuments(ctx context.Context, uid string, docs []map[string]interface{}, primaryKey string) (*TaskRef, error) {
	endpoint := "/indexes/" + url.PathEscape(uid) + "/documents"
	if primaryKey != "" {
		endpoint += "?primaryKey=" + url.QueryEscape(primaryKey)
	}
	var ref TaskRef
	if err := c.do(ctx, http.MethodPost, endpoint, docs, &ref); err != nil {
		return nil, err
	}
	return &ref, nil
}

// GetTask fetches a task by UID.
func (c *Client) GetTask(ctx context.Context, taskUID int64) (*Task, error) {
	var task Task
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/tasks/%d", taskUID), nil, &task); err != nil {
		return nil, err
	}
	return &task, nil
}

// WaitForTask polls a task until it reaches a terminal state. It returns a
// TaskFailedError when the task fails or is canceled.
func (c *Client) WaitForTask(ctx context.Context, taskUID int64) (*Task, error) {
	ticker := time.NewTicker(c.taskInterval)
	defer ticker.Stop()

	for {
		task, err := c.GetTask(ctx, taskUID)
		if err != nil {
			return nil, err
		}
		if task.Terminal() {
			if task.Status != TaskSucceeded {
				return task, &TaskFailedError{Task: task}
			}
			return task, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// EnqueueAndWait submits a write and blocks until its task completes.
func (c *Client) EnqueueAndWait(ctx context.Context, submit func(context.Context) (*TaskRef, error)) (*Task, error) {
	ref, err := submit(ctx)
	if err != nil {
		return nil, err
	}
	return c.WaitForTask(ctx, ref.TaskUID)
}

func (c *Client) do(ctx context.Context, method, endpoint string, body, out interface{}) error {
	raw, err := c.doRaw(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response from %s: %w", endpoint, err)
	}
	return nil
}

func (c *Client) doRaw(ctx context.Context, method, endpoint string, body interface{}) ([]byte, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s %s: %w", method, endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response from %s: %w", endpoint, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		message := extractErrorMessage(raw)
		c.logger.Warn().
			Str("method", method).
			Str("endpoint", endpoint).
			Int("status", resp.StatusCode).
			Msg(message)
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Message:    message,
			Endpoint:   endpoint,
		}
	}

	return raw, nil
}

func extractErrorMessage(raw []byte) string {
	var payload struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.Message != "" {
		if payload.Code != "" {
			return payload.Message + " (" + payload.Code + ")"
		}
		return payload.Message
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
