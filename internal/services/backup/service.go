package backup

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/searchops/meilivault/internal/common"
	"github.com/searchops/meilivault/internal/interfaces"
	"github.com/searchops/meilivault/internal/meili"
	"github.com/searchops/meilivault/internal/models"
)

// Service orchestrates index export and archive restore against a
// Meilisearch instance supplied per request.
type Service struct {
	config     *common.Config
	events     interfaces.EventService
	logger     arbor.ILogger
	operations *OperationRegistry
}

// NewService creates a backup service.
func NewService(config *common.Config, events interfaces.EventService, logger arbor.ILogger) *Service {
	return &Service{
		config:     config,
		events:     events,
		logger:     logger,
		operations: NewOperationRegistry(),
	}
}

// Operations exposes the operation registry for handlers.
func (s *Service) Operations() *OperationRegistry {
	return s.operations
}

func (s *Service) meiliClient(conn models.Connection) *meili.Client {
	return meili.NewClient(conn.MeilisearchURL, conn.MeilisearchKey,
		meili.WithLogger(s.logger),
		meili.WithTaskInterval(s.taskPoll()),
	)
}

func (s *Service) taskPoll() time.Duration {
	d, err := time.ParseDuration(s.config.Restore.TaskPoll)
	if err != nil || d <= 0 {
		return 500 * time.Millisecond
	}
	return d
}

// ListIndexes returns every index with its primary key and document count.
func (s *Service) ListIndexes(ctx context.Context, conn models.Connection) ([]models.IndexSummary, error) {
	client := s.meiliClient(conn)

	indexes, err := client.ListIndexes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list indexes: %w", err)
	}

	summaries := make([]models.IndexSummary, 0, len(indexes))
	for _, idx := range indexes {
		summary := models.IndexSummary{UID: idx.UID, PrimaryKey: idx.PrimaryKey}
		if stats, err := client.GetStats(ctx, idx.UID); err == nil {
			summary.DocumentCount = stats.NumberOfDocuments
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Backup exports the selected indexes (all when uids is empty) into a zip
// archive written to w. Per-index failure is recorded and does not abort the
// remaining indexes.
func (s *Service) Backup(ctx context.Context, conn models.Connection, uids []string, w io.Writer, report *models.OperationReport) error {
	client := s.meiliClient(conn)

	indexes, err := client.ListIndexes(ctx)
	if err != nil {
		s.progress(ctx, report, interfaces.EventBackupProgress, "", fmt.Sprintf("Failed to list indexes: %v", err), 0, 0)
		return fmt.Errorf("list indexes: %w", err)
	}

	selected := filterIndexes(indexes, uids)
	s.progress(ctx, report, interfaces.EventBackupProgress, "", fmt.Sprintf("Found %d indexes", len(selected)), 0, len(selected))

	aw := newArchiveWriter(w)

	for i, idx := range selected {
		s.progress(ctx, report, interfaces.EventBackupProgress, idx.UID, fmt.Sprintf("Processing index: %s", idx.UID), i+1, len(selected))

		export, err := s.exportIndex(ctx, client, report, idx)
		if err != nil {
			s.progress(ctx, report, interfaces.EventBackupProgress, idx.UID, fmt.Sprintf("Failed to export index %s: %v", idx.UID, err), i+1, len(selected))
			report.AddResult(models.IndexResult{UID: idx.UID, Succeeded: false, Error: err.Error()})
			continue
		}

		if err := aw.WriteIndex(export); err != nil {
			report.AddResult(models.IndexResult{UID: idx.UID, Succeeded: false, Error: err.Error()})
			return fmt.Errorf("write archive: %w", err)
		}

		report.AddResult(models.IndexResult{
			UID:       idx.UID,
			Documents: int64(len(export.Documents)),
			Succeeded: true,
		})
	}

	if err := aw.Close(); err != nil {
		return fmt.Errorf("finalize archive: %w", err)
	}

	s.progress(ctx, report, interfaces.EventBackupProgress, "", "Backup completed", len(selected), len(selected))
	return nil
}

func (s *Service) exportIndex(ctx context.Context, client *meili.Client, report *models.OperationReport, idx models.IndexInfo) (*IndexExport, error) {
	export := &IndexExport{Info: idx}

	settings, err := client.GetSettings(ctx, idx.UID)
	if err != nil {
		return nil, fmt.Errorf("get settings: %w", err)
	}
	export.Settings = settings

	if stats, err := client.GetStats(ctx, idx.UID); err == nil {
		report.Log(fmt.Sprintf("Index %s has %d documents total", idx.UID, stats.NumberOfDocuments))
	}

	docs, err := client.AllDocuments(ctx, idx.UID, s.config.Backup.PageSize)
	if err != nil {
		return nil, fmt.Errorf("export documents: %w", err)
	}
	export.Documents = docs

	report.Log(fmt.Sprintf("Saving %d documents for index %s", len(docs), idx.UID))
	return export, nil
}

// progress appends a report line and forwards it to the event bus.
func (s *Service) progress(ctx context.Context, report *models.OperationReport, eventType interfaces.EventType, index, message string, current, total int) {
	report.Log(message)
	if s.events == nil {
		return
	}
	_ = s.events.Publish(ctx, interfaces.Event{
		Type: eventType,
		Payload: interfaces.ProgressPayload{
			OperationID: report.ID,
			Index:       index,
			Message:     message,
			Current:     current,
			Total:       total,
		},
	})
}

func filterIndexes(indexes []models.IndexInfo, uids []string) []models.IndexInfo {
	if len(uids) == 0 {
		return indexes
	}
	want := make(map[string]bool, len(uids))
	for _, uid := range uids {
		want[uid] = true
	}
	var selected []models.IndexInfo
	for _, idx := range indexes {
		if want[idx.UID] {
			selected = append(selected, idx)
		}
	}
	return selected
}
