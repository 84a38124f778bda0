package backup

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchops/meilivault/internal/common"
	"github.com/searchops/meilivault/internal/models"
)

func buildArchive(t *testing.T, exports ...*IndexExport) []byte {
	t.Helper()
	var buf bytes.Buffer
	aw := newArchiveWriter(&buf)
	for _, export := range exports {
		require.NoError(t, aw.WriteIndex(export))
	}
	require.NoError(t, aw.Close())
	return buf.Bytes()
}

func runRestore(t *testing.T, fake *fakeMeili, archive []byte) *models.OperationReport {
	t.Helper()
	server := fake.server()
	t.Cleanup(server.Close)

	svc := testService()
	conn := models.Connection{MeilisearchURL: server.URL, MeilisearchKey: fakeMasterKey}
	report := models.NewOperationReport(common.NewOperationID(), models.OperationRestore)
	require.NoError(t, svc.Restore(context.Background(), conn, bytes.NewReader(archive), int64(len(archive)), nil, report))
	return report
}

func TestRestorePageIndexForcesPrimaryKey(t *testing.T) {
	archive := buildArchive(t, &IndexExport{
		Info: models.IndexInfo{UID: "page"}, // no primary key recorded
		Documents: []map[string]interface{}{
			{"_meilisearch_id": "p1", "title": "Home"},
			{"id": "p2", "title": "About"},
		},
	})

	fake := newFakeMeili()
	// Existing page index gets deleted and recreated.
	fake.seed("page", "", map[string]interface{}{}, seedDocs(1, "stale"))

	runRestore(t, fake, archive)

	idx := fake.index("page")
	require.NotNil(t, idx)
	assert.Equal(t, "id", idx.primaryKey)
	require.Len(t, idx.documents, 2)
	assert.Equal(t, "p1", idx.documents[0]["id"])
	assert.Equal(t, "p2", idx.documents[1]["id"])
}

func TestRestorePageIndexRetriesOnPrimaryKeyFailure(t *testing.T) {
	archive := buildArchive(t, &IndexExport{
		Info:      models.IndexInfo{UID: "page", PrimaryKey: "id"},
		Documents: []map[string]interface{}{{"id": "p1"}},
	})

	fake := newFakeMeili()
	server := fake.server()
	defer server.Close()

	// First document batch fails on the primary key; the retry after a
	// primary key patch must succeed.
	svc := testService()
	conn := models.Connection{MeilisearchURL: server.URL, MeilisearchKey: fakeMasterKey}
	report := models.NewOperationReport(common.NewOperationID(), models.OperationRestore)

	fake.mu.Lock()
	fake.taskCounter = 0
	fake.mu.Unlock()

	// Index creation consumes task 1, the failing batch is task 2.
	fake.mu.Lock()
	fake.failedTasks[2] = "missing_document_id"
	fake.mu.Unlock()

	require.NoError(t, svc.Restore(context.Background(), conn, bytes.NewReader(archive), int64(len(archive)), nil, report))

	idx := fake.index("page")
	require.NotNil(t, idx)
	assert.Equal(t, "id", idx.primaryKey)
	assert.Len(t, idx.documents, 1)

	results := report.Snapshot().Results
	require.Len(t, results, 1)
	assert.True(t, results[0].Succeeded, "retry should have recovered: %s", results[0].Error)
}

func TestRestoreDocumentsIndexStripsEmbeddersAndInjectsVectors(t *testing.T) {
	archive := buildArchive(t,
		&IndexExport{
			Info:      models.IndexInfo{UID: "articles", PrimaryKey: "id"},
			Documents: seedDocs(2, "a"),
		},
		&IndexExport{
			Info: models.IndexInfo{UID: "documents", PrimaryKey: "id"},
			Settings: models.IndexSettings{
				"embedders":            map[string]interface{}{"default": map[string]interface{}{"source": "openAi"}},
				"filterableAttributes": []interface{}{"kind"},
			},
			Documents: []map[string]interface{}{
				{"id": "d1", "body": "text"},
				{"id": "d2", "body": "text", "_vectors": map[string]interface{}{"default": []interface{}{0.1}}},
			},
		},
	)

	fake := newFakeMeili()
	fake.seed("documents", "id", map[string]interface{}{}, seedDocs(5, "old"))

	report := runRestore(t, fake, archive)

	idx := fake.index("documents")
	require.NotNil(t, idx)
	assert.NotContains(t, idx.settings, "embedders")
	assert.Contains(t, idx.settings, "filterableAttributes")

	require.Len(t, idx.documents, 2)
	assert.Equal(t, map[string]interface{}{"default": nil}, idx.documents[0]["_vectors"])
	// Documents that already carry vectors keep them.
	assert.NotEqual(t, map[string]interface{}{"default": nil}, idx.documents[1]["_vectors"])

	// The documents index is restored last.
	results := report.Snapshot().Results
	require.Len(t, results, 2)
	assert.Equal(t, "articles", results[0].UID)
	assert.Equal(t, "documents", results[1].UID)
}

func TestRestoreSelectsRequestedIndexes(t *testing.T) {
	archive := buildArchive(t,
		&IndexExport{Info: models.IndexInfo{UID: "keep", PrimaryKey: "id"}, Documents: seedDocs(1, "k")},
		&IndexExport{Info: models.IndexInfo{UID: "skip", PrimaryKey: "id"}, Documents: seedDocs(1, "s")},
	)

	fake := newFakeMeili()
	server := fake.server()
	defer server.Close()

	svc := testService()
	conn := models.Connection{MeilisearchURL: server.URL, MeilisearchKey: fakeMasterKey}
	report := models.NewOperationReport(common.NewOperationID(), models.OperationRestore)
	require.NoError(t, svc.Restore(context.Background(), conn, bytes.NewReader(archive), int64(len(archive)), []string{"keep"}, report))

	assert.NotNil(t, fake.index("keep"))
	assert.Nil(t, fake.index("skip"))
}

func TestRestoreSettingsFallbackAppliesIndividually(t *testing.T) {
	// The bulk settings PATCH fails once, forcing the per-setting PUT path.
	archive := buildArchive(t, &IndexExport{
		Info: models.IndexInfo{UID: "movies", PrimaryKey: "id"},
		Settings: models.IndexSettings{
			"rankingRules":      []interface{}{"words", "typo"},
			"stopWords":         []interface{}{"the"},
			"distinctAttribute": nil, // empty values are skipped in fallback
		},
		Documents: seedDocs(1, "m"),
	})

	fake := newFakeMeili()
	server := fake.server()
	defer server.Close()

	svc := testService()
	conn := models.Connection{MeilisearchURL: server.URL, MeilisearchKey: fakeMasterKey}
	report := models.NewOperationReport(common.NewOperationID(), models.OperationRestore)

	// Index creation is task 1, the bulk settings PATCH is task 2.
	fake.mu.Lock()
	fake.failedTasks[2] = "invalid_settings"
	fake.mu.Unlock()

	require.NoError(t, svc.Restore(context.Background(), conn, bytes.NewReader(archive), int64(len(archive)), nil, report))

	idx := fake.index("movies")
	require.NotNil(t, idx)
	assert.Equal(t, []interface{}{"words", "typo"}, idx.settings["rankingRules"])
	assert.Equal(t, []interface{}{"the"}, idx.settings["stopWords"])
	assert.NotContains(t, idx.settings, "distinctAttribute")
	assert.Contains(t, report.Text(), "Trying to apply settings individually")
}
