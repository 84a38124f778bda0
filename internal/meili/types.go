package meili

import (
	"fmt"
	"time"
)

// TaskStatus values reported by the Meilisearch tasks API.
const (
	TaskEnqueued   = "enqueued"
	TaskProcessing = "processing"
	TaskSucceeded  = "succeeded"
	TaskFailed     = "failed"
	TaskCanceled   = "canceled"
)

// Task is a Meilisearch asynchronous task as returned by GET /tasks/{uid}.
type Task struct {
	UID        int64      `json:"uid"`
	IndexUID   string     `json:"indexUid,omitempty"`
	Status     string     `json:"status"`
	Type       string     `json:"type,omitempty"`
	Error      *TaskError `json:"error,omitempty"`
	Duration   string     `json:"duration,omitempty"`
	EnqueuedAt time.Time  `json:"enqueuedAt,omitempty"`
}

// TaskError carries the error payload inside a failed task.
type TaskError struct {
	Message string `json:"message"`
	Code    string `json:"code"`
	Type    string `json:"type"`
	Link    string `json:"link,omitempty"`
}

// Terminal reports whether the task has reached a final state.
func (t *Task) Terminal() bool {
	switch t.Status {
	case TaskSucceeded, TaskFailed, TaskCanceled:
		return true
	}
	return false
}

// TaskRef is the acknowledgment Meilisearch returns for enqueued writes.
type TaskRef struct {
	TaskUID  int64  `json:"taskUid"`
	IndexUID string `json:"indexUid,omitempty"`
	Status   string `json:"status,omitempty"`
	Type     string `json:"type,omitempty"`
}

// indexListResponse is the paginated wrapper around GET /indexes.
type indexListResponse struct {
	Results []indexEntry `json:"results"`
	Offset  int          `json:"offset"`
	Limit   int          `json:"limit"`
	Total   int          `json:"total"`
}

type indexEntry struct {
	UID        string `json:"uid"`
	PrimaryKey string `json:"primaryKey,omitempty"`
	CreatedAt  string `json:"createdAt,omitempty"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
}

// documentsResponse wraps GET /indexes/{uid}/documents. Older servers return
// a bare array, which the client also accepts.
type documentsResponse struct {
	Results []map[string]interface{} `json:"results"`
	Offset  int                      `json:"offset"`
	Limit   int                      `json:"limit"`
	Total   int64                    `json:"total"`
}

// createIndexRequest is the body for POST /indexes.
type createIndexRequest struct {
	UID        string `json:"uid"`
	PrimaryKey string `json:"primaryKey,omitempty"`
}

// updateIndexRequest is the body for PATCH /indexes/{uid}.
type updateIndexRequest struct {
	PrimaryKey string `json:"primaryKey"`
}

// APIError represents a non-2xx response from the Meilisearch API.
type APIError struct {
	StatusCode int
	Message    string
	Endpoint   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("meilisearch api error: %s returned %d: %s", e.Endpoint, e.StatusCode, e.Message)
}

// IsNotFound reports whether err is an APIError with status 404.
func IsNotFound(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && apiErr.StatusCode == 404
}

// IsAuthError reports whether err is an APIError with status 401 or 403.
func IsAuthError(err error) bool {
	apiErr, ok := err.(*APIError)
	return ok && (apiErr.StatusCode == 401 || apiErr.StatusCode == 403)
}

// TaskFailedError is returned when a task reaches a terminal non-success state.
type TaskFailedError struct {
	Task *Task
}

func (e *TaskFailedError) Error() string {
	if e.Task.Error != nil {
		return fmt.Sprintf("task %d %s: %s (%s)", e.Task.UID, e.Task.Status, e.Task.Error.Message, e.Task.Error.Code)
	}
	return fmt.Sprintf("task %d %s", e.Task.UID, e.Task.Status)
}

// IsPrimaryKeyError reports whether a failed task complains about the
// document primary key. Restore uses this to retry the page index with a
// forced primary key.
func IsPrimaryKeyError(err error) bool {
	taskErr, ok := err.(*TaskFailedError)
	if !ok || taskErr.Task.Error == nil {
		return false
	}
	code := taskErr.Task.Error.Code
	return code == "missing_document_id" ||
		code == "invalid_document_id" ||
		code == "index_primary_key_no_candidate_found" ||
		containsPrimaryKey(taskErr.Task.Error.Message)
}

func containsPrimaryKey(msg string) bool {
	for i := 0; i+11 <= len(msg); i++ {
		if msg[i:i+11] == "primary key" || msg[i:i+11] == "primary_key" {
			return true
		}
	}
	return false
}
