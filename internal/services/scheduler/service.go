// Package scheduler runs unattended periodic backups to a local directory.
// Disabled unless a connection is configured in meilivault.toml, since
// scheduled runs have no UI sidebar to take credentials from.
package scheduler

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/searchops/meilivault/internal/common"
	"github.com/searchops/meilivault/internal/models"
	"github.com/searchops/meilivault/internal/services/backup"
)

const archivePrefix = "meilivault_backup_"

// Service schedules recurring backup runs.
type Service struct {
	config  *common.Config
	backup  *backup.Service
	cron    *cron.Cron
	logger  arbor.ILogger
	mu      sync.Mutex
	running bool
}

// NewService creates a scheduler service.
func NewService(config *common.Config, backupService *backup.Service, logger arbor.ILogger) *Service {
	return &Service{
		config: config,
		backup: backupService,
		cron:   cron.New(),
		logger: logger,
	}
}

// Start registers the backup job and starts the cron loop. It is a no-op
// when the scheduler is disabled.
func (s *Service) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.config.Scheduler.Enabled {
		s.logger.Debug().Msg("Scheduler disabled")
		return nil
	}
	if s.running {
		return fmt.Errorf("scheduler already running")
	}

	sched := s.config.Scheduler
	if sched.MeilisearchURL == "" {
		return fmt.Errorf("scheduler enabled but scheduler.meilisearch_url is not set")
	}
	if err := common.ValidateSchedule(sched.Schedule); err != nil {
		return fmt.Errorf("scheduler schedule: %w", err)
	}
	if err := os.MkdirAll(sched.OutputDir, 0755); err != nil {
		return fmt.Errorf("create backup output dir: %w", err)
	}

	if _, err := s.cron.AddFunc(sched.Schedule, s.runBackup); err != nil {
		return fmt.Errorf("register backup job: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info().
		Str("schedule", sched.Schedule).
		Str("output_dir", sched.OutputDir).
		Int("keep", sched.Keep).
		Msg("Scheduled backups enabled")
	return nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running = false
	s.logger.Info().Msg("Scheduler stopped")
}

// runBackup executes one scheduled backup into a timestamped archive.
func (s *Service) runBackup() {
	sched := s.config.Scheduler
	conn := models.Connection{
		MeilisearchURL: sched.MeilisearchURL,
		MeilisearchKey: sched.MeilisearchKey,
	}
	conn.Normalize()

	name := archivePrefix + time.Now().UTC().Format("20060102T150405Z") + ".zip"
	path := filepath.Join(sched.OutputDir, name)

	file, err := os.Create(path)
	if err != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("Scheduled backup failed to create archive")
		return
	}

	report := models.NewOperationReport(common.NewOperationID(), models.OperationBackup)
	s.backup.Operations().Register(report)

	err = s.backup.Backup(context.Background(), conn, nil, file, report)
	closeErr := file.Close()
	report.Finish(err)

	if err != nil || closeErr != nil {
		s.logger.Error().Err(err).Str("path", path).Msg("Scheduled backup failed")
		os.Remove(path)
		return
	}

	s.logger.Info().
		Str("path", path).
		Str("operation_id", report.ID).
		Msg("Scheduled backup completed")

	if err := s.prune(); err != nil {
		s.logger.Warn().Err(err).Msg("Failed to prune old backups")
	}
}

// prune removes the oldest archives beyond the retention count.
func (s *Service) prune() error {
	keep := s.config.Scheduler.Keep
	if keep <= 0 {
		return nil
	}

	entries, err := os.ReadDir(s.config.Scheduler.OutputDir)
	if err != nil {
		return err
	}

	var archives []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasPrefix(name, archivePrefix) && strings.HasSuffix(name, ".zip") {
			archives = append(archives, name)
		}
	}
	if len(archives) <= keep {
		return nil
	}

	// Timestamped names sort chronologically.
	sort.Strings(archives)
	for _, name := range archives[:len(archives)-keep] {
		path := filepath.Join(s.config.Scheduler.OutputDir, name)
		if err := os.Remove(path); err != nil {
			return err
		}
		s.logger.Debug().Str("path", path).Msg("Pruned old backup archive")
	}
	return nil
}
