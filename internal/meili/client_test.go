package meili

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListIndexesPaginates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.Equal(t, "/indexes", r.URL.Path)

		offset := r.URL.Query().Get("offset")
		w.Header().Set("Content-Type", "application/json")
		if offset == "0" {
			results := make([]map[string]interface{}, 1000)
			for i := range results {
				results[i] = map[string]interface{}{"uid": "idx", "primaryKey": "id"}
			}
			json.NewEncoder(w).Encode(map[string]interface{}{
				"results": results, "offset": 0, "limit": 1000, "total": 1001,
			})
			return
		}
		json.NewEncoder(w).Encode(map[string]interface{}{
			"results": []map[string]interface{}{{"uid": "last"}},
			"offset":  1000, "limit": 1000, "total": 1001,
		})
	}))
	defer server.Close()

	client := NewClient(server.URL, "test-key")
	indexes, err := client.ListIndexes(context.Background())

	require.NoError(t, err)
	assert.Len(t, indexes, 1001)
	assert.Equal(t, "last", indexes[1000].UID)
}

func TestGetDocumentsAcceptsBareArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"id": 1}, {"id": 2}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	docs, total, err := client.GetDocuments(context.Background(), "movies", 0, 100)

	require.NoError(t, err)
	assert.Len(t, docs, 2)
	assert.Equal(t, int64(2), total)
}

func TestGetDocumentsWrappedResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/indexes/movies/documents", r.URL.Path)
		assert.Equal(t, "50", r.URL.Query().Get("offset"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"results": [{"id": 51}], "offset": 50, "limit": 1, "total": 51}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	docs, total, err := client.GetDocuments(context.Background(), "movies", 50, 1)

	require.NoError(t, err)
	assert.Len(t, docs, 1)
	assert.Equal(t, int64(51), total)
}

func TestAPIErrorOnNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"message": "The provided API key is invalid.", "code": "invalid_api_key"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "wrong")
	_, err := client.ListIndexes(context.Background())

	require.Error(t, err)
	apiErr, ok := err.(*APIError)
	require.True(t, ok)
	assert.Equal(t, http.StatusForbidden, apiErr.StatusCode)
	assert.Contains(t, apiErr.Message, "invalid_api_key")
	assert.True(t, IsAuthError(err))
	assert.False(t, IsNotFound(err))
}

func TestWaitForTaskPollsUntilTerminal(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/tasks/42", r.URL.Path)
		n := atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		if n < 3 {
			w.Write([]byte(`{"uid": 42, "status": "processing"}`))
			return
		}
		w.Write([]byte(`{"uid": 42, "status": "succeeded"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", WithTaskInterval(5*time.Millisecond))
	task, err := client.WaitForTask(context.Background(), 42)

	require.NoError(t, err)
	assert.Equal(t, TaskSucceeded, task.Status)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
}

func TestWaitForTaskReturnsTaskFailedError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"uid": 7, "status": "failed", "error": {"message": "Document doesn't have a primary key", "code": "missing_document_id", "type": "invalid_request"}}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", WithTaskInterval(time.Millisecond))
	task, err := client.WaitForTask(context.Background(), 7)

	require.Error(t, err)
	require.NotNil(t, task)
	assert.Equal(t, TaskFailed, task.Status)
	assert.True(t, IsPrimaryKeyError(err))
}

func TestWaitForTaskHonorsContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"uid": 9, "status": "enqueued"}`))
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	client := NewClient(server.URL, "", WithTaskInterval(5*time.Millisecond))
	_, err := client.WaitForTask(ctx, 9)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestAddDocumentsSetsPrimaryKeyParam(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/indexes/page/documents", r.URL.Path)
		require.Equal(t, "id", r.URL.Query().Get("primaryKey"))

		var docs []map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&docs))
		require.Len(t, docs, 2)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"taskUid": 101, "indexUid": "page", "status": "enqueued", "type": "documentAdditionOrUpdate"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "key")
	ref, err := client.AddDocuments(context.Background(), "page", []map[string]interface{}{
		{"id": "a"}, {"id": "b"},
	}, "id")

	require.NoError(t, err)
	assert.Equal(t, int64(101), ref.TaskUID)
}

func TestUpdateSettingUsesPut(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/indexes/movies/settings/ranking-rules", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(`{"taskUid": 5, "status": "enqueued"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "key")
	ref, err := client.UpdateSetting(context.Background(), "movies", "ranking-rules", []string{"words", "typo"})

	require.NoError(t, err)
	assert.Equal(t, int64(5), ref.TaskUID)
}

func TestHealth(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/health", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status": "available"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "")
	assert.NoError(t, client.Health(context.Background()))
}
