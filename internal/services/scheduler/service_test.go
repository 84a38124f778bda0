package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/searchops/meilivault/internal/common"
	"github.com/searchops/meilivault/internal/services/backup"
)

func schedulerForDir(t *testing.T, dir string, keep int) *Service {
	t.Helper()
	config := common.NewDefaultConfig()
	config.Scheduler.OutputDir = dir
	config.Scheduler.Keep = keep
	logger := common.GetLogger()
	return NewService(config, backup.NewService(config, nil, logger), logger)
}

func TestStartIsNoopWhenDisabled(t *testing.T) {
	svc := schedulerForDir(t, t.TempDir(), 7)
	require.NoError(t, svc.Start())
	assert.False(t, svc.running)
}

func TestStartRequiresConnection(t *testing.T) {
	svc := schedulerForDir(t, t.TempDir(), 7)
	svc.config.Scheduler.Enabled = true

	err := svc.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "meilisearch_url")
}

func TestStartRejectsInvalidSchedule(t *testing.T) {
	svc := schedulerForDir(t, t.TempDir(), 7)
	svc.config.Scheduler.Enabled = true
	svc.config.Scheduler.MeilisearchURL = "http://localhost:7700"
	svc.config.Scheduler.Schedule = "* * * * *"

	err := svc.Start()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "5-minute")
}

func TestStartAndStop(t *testing.T) {
	svc := schedulerForDir(t, t.TempDir(), 7)
	svc.config.Scheduler.Enabled = true
	svc.config.Scheduler.MeilisearchURL = "http://localhost:7700"
	svc.config.Scheduler.MeilisearchKey = "key"

	require.NoError(t, svc.Start())
	assert.True(t, svc.running)
	assert.Error(t, svc.Start()) // double start

	svc.Stop()
	assert.False(t, svc.running)
}

func TestPruneKeepsNewestArchives(t *testing.T) {
	dir := t.TempDir()
	svc := schedulerForDir(t, dir, 2)

	names := []string{
		archivePrefix + "20260101T000000Z.zip",
		archivePrefix + "20260102T000000Z.zip",
		archivePrefix + "20260103T000000Z.zip",
		"unrelated.zip",
	}
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("zip"), 0644))
	}

	require.NoError(t, svc.prune())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)

	var remaining []string
	for _, entry := range entries {
		remaining = append(remaining, entry.Name())
	}
	assert.NotContains(t, remaining, names[0])
	assert.Contains(t, remaining, names[1])
	assert.Contains(t, remaining, names[2])
	assert.Contains(t, remaining, "unrelated.zip")
}

func TestPruneWithZeroKeepRetainsAll(t *testing.T) {
	dir := t.TempDir()
	svc := schedulerForDir(t, dir, 0)

	for i := 0; i < 3; i++ {
		name := fmt.Sprintf("%s2026010%dT000000Z.zip", archivePrefix, i+1)
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("zip"), 0644))
	}

	require.NoError(t, svc.prune())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}
