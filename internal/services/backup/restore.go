package backup

import (
	"context"
	"fmt"
	"io"

	"golang.org/x/time/rate"

	"github.com/searchops/meilivault/internal/interfaces"
	"github.com/searchops/meilivault/internal/meili"
	"github.com/searchops/meilivault/internal/models"
)

// Two index UIDs get special treatment during restore. The page index must
// carry "id" as its primary key, and the documents index holds vector search
// settings that cannot be replayed verbatim onto a fresh instance.
const (
	pageIndexUID      = "page"
	documentsIndexUID = "documents"
)

// Restore recreates indexes from a backup archive. uids selects a subset of
// the archive's indexes; empty means all. Per-index failure is recorded in
// the report and does not abort the remaining indexes. No cross-index
// atomicity.
func (s *Service) Restore(ctx context.Context, conn models.Connection, archive io.ReaderAt, size int64, uids []string, report *models.OperationReport) error {
	exports, err := ReadArchive(archive, size)
	if err != nil {
		s.progress(ctx, report, interfaces.EventRestoreProgress, "", fmt.Sprintf("Failed to read archive: %v", err), 0, 0)
		return err
	}

	if len(uids) > 0 {
		want := make(map[string]bool, len(uids))
		for _, uid := range uids {
			want[uid] = true
		}
		for uid := range exports {
			if !want[uid] {
				delete(exports, uid)
			}
		}
	}

	order := restoreOrder(exports)
	s.progress(ctx, report, interfaces.EventRestoreProgress, "", fmt.Sprintf("Found %d indexes to restore", len(order)), 0, len(order))

	client := s.meiliClient(conn)
	limiter := rate.NewLimiter(rate.Limit(s.config.Restore.BatchesPerSec), 1)

	for i, uid := range order {
		if err := ctx.Err(); err != nil {
			return err
		}

		export := exports[uid]
		s.progress(ctx, report, interfaces.EventRestoreProgress, uid, fmt.Sprintf("Restoring index: %s", uid), i+1, len(order))

		var result models.IndexResult
		if uid == documentsIndexUID {
			result = s.restoreDocumentsIndex(ctx, client, limiter, report, export)
		} else {
			result = s.restoreRegularIndex(ctx, client, limiter, report, export)
		}
		report.AddResult(result)
	}

	s.progress(ctx, report, interfaces.EventRestoreProgress, "", "Restore process completed", len(order), len(order))
	return nil
}

func (s *Service) restoreRegularIndex(ctx context.Context, client *meili.Client, limiter *rate.Limiter, report *models.OperationReport, export *IndexExport) models.IndexResult {
	uid := export.Info.UID
	result := models.IndexResult{UID: uid}
	special := uid == pageIndexUID

	exists, err := s.indexExists(ctx, client, uid)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	if special && exists {
		report.Log(fmt.Sprintf("Special handling for index %s: deleting existing index", uid))
		if err := s.deleteAndWait(ctx, client, uid); err != nil {
			report.Log(fmt.Sprintf("Failed to delete index %s: %v", uid, err))
			result.Error = err.Error()
			return result
		}
		report.Log(fmt.Sprintf("Deleted index %s", uid))
		exists = false
	}

	if !exists {
		primaryKey := export.Info.PrimaryKey
		if special && primaryKey == "" {
			primaryKey = "id"
		}
		if err := s.createAndWait(ctx, client, uid, primaryKey); err != nil {
			report.Log(fmt.Sprintf("Failed to create index %s: %v", uid, err))
			result.Error = err.Error()
			return result
		}
		report.Log(fmt.Sprintf("Created index %s", uid))
	} else {
		report.Log(fmt.Sprintf("Index %s already exists", uid))
	}

	s.applySettings(ctx, client, report, uid, export.Settings)

	docs := export.Documents
	if special {
		report.Log("Special handling for page index documents - ensuring primary key field")
		ensurePageIDs(docs)
	}

	imported, err := s.importDocuments(ctx, client, limiter, report, uid, docs, special)
	result.Documents = imported
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Succeeded = true
	return result
}

// restoreDocumentsIndex rebuilds the documents index from scratch. The stored
// settings reference embedders that do not exist on the target instance, so
// vector search is disabled and documents get null vectors instead.
func (s *Service) restoreDocumentsIndex(ctx context.Context, client *meili.Client, limiter *rate.Limiter, report *models.OperationReport, export *IndexExport) models.IndexResult {
	uid := export.Info.UID
	result := models.IndexResult{UID: uid}

	exists, err := s.indexExists(ctx, client, uid)
	if err != nil {
		result.Error = err.Error()
		return result
	}
	if exists {
		report.Log(fmt.Sprintf("Deleting existing index %s", uid))
		if err := s.deleteAndWait(ctx, client, uid); err != nil {
			report.Log(fmt.Sprintf("Failed to delete index %s: %v", uid, err))
			result.Error = err.Error()
			return result
		}
		report.Log(fmt.Sprintf("Deleted index %s", uid))
	}

	report.Log(fmt.Sprintf("Creating new index %s with primary key %s", uid, export.Info.PrimaryKey))
	if err := s.createAndWait(ctx, client, uid, export.Info.PrimaryKey); err != nil {
		report.Log(fmt.Sprintf("Failed to create index %s: %v", uid, err))
		result.Error = err.Error()
		return result
	}
	report.Log(fmt.Sprintf("Created index %s", uid))

	if export.Settings != nil {
		if _, ok := export.Settings["embedders"]; ok {
			report.Log("Removing embedders configuration")
			delete(export.Settings, "embedders")
		}
	}
	s.applySettings(ctx, client, report, uid, export.Settings)

	if len(export.Documents) > 0 {
		report.Log("Adding null vector embeddings to documents")
		for _, doc := range export.Documents {
			if _, ok := doc["_vectors"]; !ok {
				doc["_vectors"] = map[string]interface{}{"default": nil}
			}
		}
	}

	imported, err := s.importDocuments(ctx, client, limiter, report, uid, export.Documents, false)
	result.Documents = imported
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Succeeded = true
	return result
}

func (s *Service) indexExists(ctx context.Context, client *meili.Client, uid string) (bool, error) {
	_, err := client.GetIndex(ctx, uid)
	if err == nil {
		return true, nil
	}
	if meili.IsNotFound(err) {
		return false, nil
	}
	return false, err
}

func (s *Service) deleteAndWait(ctx context.Context, client *meili.Client, uid string) error {
	_, err := client.EnqueueAndWait(ctx, func(ctx context.Context) (*meili.TaskRef, error) {
		return client.DeleteIndex(ctx, uid)
	})
	return err
}

func (s *Service) createAndWait(ctx context.Context, client *meili.Client, uid, primaryKey string) error {
	_, err := client.EnqueueAndWait(ctx, func(ctx context.Context) (*meili.TaskRef, error) {
		return client.CreateIndex(ctx, uid, primaryKey)
	})
	return err
}

// applySettings replays index settings with a full PATCH, falling back to
// per-setting PUTs when the bulk update is rejected. Settings failures are
// logged but never abort the index restore.
func (s *Service) applySettings(ctx context.Context, client *meili.Client, report *models.OperationReport, uid string, settings models.IndexSettings) {
	if len(settings) == 0 {
		return
	}

	_, err := client.EnqueueAndWait(ctx, func(ctx context.Context) (*meili.TaskRef, error) {
		return client.UpdateSettings(ctx, uid, settings)
	})
	if err == nil {
		report.Log(fmt.Sprintf("Applied all settings to index %s", uid))
		return
	}

	report.Log(fmt.Sprintf("Failed to apply all settings at once: %v", err))
	report.Log("Trying to apply settings individually...")

	for _, settingType := range models.SettingTypes {
		value, ok := settings[settingType]
		if !ok || !settingHasValue(value) {
			continue
		}
		st := settingType
		_, err := client.EnqueueAndWait(ctx, func(ctx context.Context) (*meili.TaskRef, error) {
			return client.UpdateSetting(ctx, uid, st, value)
		})
		if err != nil {
			report.Log(fmt.Sprintf("Failed to apply setting %s to index %s: %v", settingType, uid, err))
			continue
		}
		report.Log(fmt.Sprintf("Applied setting %s to index %s", settingType, uid))
	}
}

// importDocuments adds documents in batches, pacing batches with the rate
// limiter. When retryPrimaryKey is set and a batch fails on a primary key
// error, the index is patched to use "id" and the batch retried once.
func (s *Service) importDocuments(ctx context.Context, client *meili.Client, limiter *rate.Limiter, report *models.OperationReport, uid string, docs []map[string]interface{}, retryPrimaryKey bool) (int64, error) {
	if len(docs) == 0 {
		report.Log(fmt.Sprintf("No documents found for index %s", uid))
		return 0, nil
	}

	batchSize := s.config.Restore.BatchSize
	if batchSize <= 0 {
		batchSize = 1000
	}

	var imported int64
	var firstErr error

	for start := 0; start < len(docs); start += batchSize {
		end := start + batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		if err := limiter.Wait(ctx); err != nil {
			return imported, err
		}

		report.Log(fmt.Sprintf("Adding batch of %d documents to index %s (%d-%d of %d)", len(batch), uid, start+1, end, len(docs)))

		_, err := client.EnqueueAndWait(ctx, func(ctx context.Context) (*meili.TaskRef, error) {
			return client.AddDocuments(ctx, uid, batch, "")
		})
		if err != nil && retryPrimaryKey && meili.IsPrimaryKeyError(err) {
			report.Log("Attempting to update page index with forced primary key...")
			_, updateErr := client.EnqueueAndWait(ctx, func(ctx context.Context) (*meili.TaskRef, error) {
				return client.UpdateIndex(ctx, uid, "id")
			})
			if updateErr != nil {
				report.Log(fmt.Sprintf("Failed to update index %s: %v", uid, updateErr))
			} else {
				report.Log(fmt.Sprintf("Updated index %s with primary key 'id'", uid))
				report.Log("Trying to add documents again...")
				_, err = client.EnqueueAndWait(ctx, func(ctx context.Context) (*meili.TaskRef, error) {
					return client.AddDocuments(ctx, uid, batch, "")
				})
			}
		}

		if err != nil {
			report.Log(fmt.Sprintf("Failed to add documents to index %s: %v", uid, err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		imported += int64(len(batch))
		report.Log(fmt.Sprintf("Successfully added batch to index %s", uid))
	}

	return imported, firstErr
}

// ensurePageIDs copies the legacy _meilisearch_id field into id where id is
// missing so the forced primary key resolves.
func ensurePageIDs(docs []map[string]interface{}) {
	for _, doc := range docs {
		if _, ok := doc["id"]; ok {
			continue
		}
		if legacy, ok := doc["_meilisearch_id"]; ok {
			doc["id"] = legacy
		}
	}
}

func settingHasValue(value interface{}) bool {
	switch v := value.(type) {
	case nil:
		return false
	case string:
		return v != ""
	case []interface{}:
		return len(v) > 0
	case map[string]interface{}:
		return len(v) > 0
	default:
		return true
	}
}
