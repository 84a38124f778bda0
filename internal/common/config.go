package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/robfig/cron/v3"
)

// Config represents the application configuration.
// Connection details for Meilisearch and the embedding API are entered in the
// UI per request and are deliberately absent here, except for the optional
// scheduled-backup connection which has no UI to enter them through.
type Config struct {
	Environment string          `toml:"environment"` // "development" or "production"
	Server      ServerConfig    `toml:"server"`
	Logging     LoggingConfig   `toml:"logging"`
	Backup      BackupConfig    `toml:"backup"`
	Restore     RestoreConfig   `toml:"restore"`
	Ingest      IngestConfig    `toml:"ingest"`
	Scheduler   SchedulerConfig `toml:"scheduler"`
	Profiles    ProfilesConfig  `toml:"profiles"`
	WebSocket   WebSocketConfig `toml:"websocket"`
}

type ServerConfig struct {
	Port int    `toml:"port"`
	Host string `toml:"host"`
}

type LoggingConfig struct {
	Level       string   `toml:"level"`        // "debug", "info", "warn", "error"
	Output      []string `toml:"output"`       // "stdout", "file"
	ClientDebug bool     `toml:"client_debug"` // Enable client-side debug logging
}

// BackupConfig controls index export behavior.
type BackupConfig struct {
	PageSize int `toml:"page_size"` // Documents fetched per request during export
}

// RestoreConfig controls archive import behavior.
type RestoreConfig struct {
	BatchSize      int    `toml:"batch_size"`       // Documents per import batch
	TaskPoll       string `toml:"task_poll"`        // e.g. "500ms" - Meilisearch task poll interval
	BatchesPerSec  int    `toml:"batches_per_sec"`  // Rate limit on document import batches
	MaxArchiveSize int64  `toml:"max_archive_size"` // Upload size cap in bytes
}

// IngestConfig controls document submission behavior.
type IngestConfig struct {
	MaxUploadSize int64 `toml:"max_upload_size"` // PDF upload size cap in bytes
	MaxPDFPages   int   `toml:"max_pdf_pages"`   // Reject uploads above this page count (0 = no cap)
}

// SchedulerConfig enables unattended periodic backups to a local directory.
// Disabled by default; the connection must be configured here because there
// is no interactive sidebar for scheduled runs.
type SchedulerConfig struct {
	Enabled        bool   `toml:"enabled"`
	Schedule       string `toml:"schedule"` // Cron schedule format
	OutputDir      string `toml:"output_dir"`
	Keep           int    `toml:"keep"` // Archives to retain (0 = keep all)
	MeilisearchURL string `toml:"meilisearch_url"`
	MeilisearchKey string `toml:"meilisearch_key"`
}

// ProfilesConfig points at the optional connection presets file.
type ProfilesConfig struct {
	Path string `toml:"path"` // profiles.yaml location
}

// WebSocketConfig controls progress streaming to the UI.
type WebSocketConfig struct {
	ProgressPerSec int `toml:"progress_per_sec"` // Max progress events per second per client
}

// NewDefaultConfig creates a configuration with default values.
// Technical parameters are hardcoded here; only user-facing settings should
// be exposed in meilivault.toml.
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Port: 7860, // Same port the predecessor tool served its UI on
			Host: "localhost",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Output: []string{"stdout", "file"},
		},
		Backup: BackupConfig{
			PageSize: 1000,
		},
		Restore: RestoreConfig{
			BatchSize:      1000,
			TaskPoll:       "500ms",
			BatchesPerSec:  1, // One import batch per second keeps small instances responsive
			MaxArchiveSize: 512 * 1024 * 1024,
		},
		Ingest: IngestConfig{
			MaxUploadSize: 50 * 1024 * 1024,
			MaxPDFPages:   2000,
		},
		Scheduler: SchedulerConfig{
			Enabled:   false,
			Schedule:  "0 3 * * *", // Daily at 03:00
			OutputDir: "./backups",
			Keep:      7,
		},
		Profiles: ProfilesConfig{
			Path: "./profiles.yaml",
		},
		WebSocket: WebSocketConfig{
			ProgressPerSec: 10,
		},
	}
}

// LoadFromFiles loads configuration from multiple files with priority:
// default -> file1 -> file2 -> ... -> env. Later files override earlier ones.
func LoadFromFiles(paths ...string) (*Config, error) {
	config := NewDefaultConfig()

	for i, path := range paths {
		if path == "" {
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s (file %d of %d): %w", path, i+1, len(paths), err)
		}
	}

	applyEnvOverrides(config)

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("MEILIVAULT_ENV"); env != "" {
		config.Environment = env
	} else if env := os.Getenv("GO_ENV"); env != "" {
		config.Environment = env
	}

	// Server configuration
	if port := os.Getenv("MEILIVAULT_SERVER_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}
	if host := os.Getenv("MEILIVAULT_SERVER_HOST"); host != "" {
		config.Server.Host = host
	}

	// Logging configuration
	if level := os.Getenv("MEILIVAULT_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}
	if output := os.Getenv("MEILIVAULT_LOG_OUTPUT"); output != "" {
		outputs := []string{}
		for _, o := range strings.Split(output, ",") {
			if trimmed := strings.TrimSpace(o); trimmed != "" {
				outputs = append(outputs, trimmed)
			}
		}
		if len(outputs) > 0 {
			config.Logging.Output = outputs
		}
	}

	// Backup / restore tuning
	if pageSize := os.Getenv("MEILIVAULT_BACKUP_PAGE_SIZE"); pageSize != "" {
		if ps, err := strconv.Atoi(pageSize); err == nil && ps > 0 {
			config.Backup.PageSize = ps
		}
	}
	if batchSize := os.Getenv("MEILIVAULT_RESTORE_BATCH_SIZE"); batchSize != "" {
		if bs, err := strconv.Atoi(batchSize); err == nil && bs > 0 {
			config.Restore.BatchSize = bs
		}
	}
	if taskPoll := os.Getenv("MEILIVAULT_RESTORE_TASK_POLL"); taskPoll != "" {
		config.Restore.TaskPoll = taskPoll
	}

	// Scheduler configuration
	if enabled := os.Getenv("MEILIVAULT_SCHEDULER_ENABLED"); enabled != "" {
		if e, err := strconv.ParseBool(enabled); err == nil {
			config.Scheduler.Enabled = e
		}
	}
	if schedule := os.Getenv("MEILIVAULT_SCHEDULER_SCHEDULE"); schedule != "" {
		config.Scheduler.Schedule = schedule
	}
	if outputDir := os.Getenv("MEILIVAULT_SCHEDULER_OUTPUT_DIR"); outputDir != "" {
		config.Scheduler.OutputDir = outputDir
	}
	if meiliURL := os.Getenv("MEILIVAULT_SCHEDULER_MEILISEARCH_URL"); meiliURL != "" {
		config.Scheduler.MeilisearchURL = meiliURL
	}
	if meiliKey := os.Getenv("MEILIVAULT_SCHEDULER_MEILISEARCH_KEY"); meiliKey != "" {
		config.Scheduler.MeilisearchKey = meiliKey
	}

	// Profiles configuration
	if profilesPath := os.Getenv("MEILIVAULT_PROFILES_PATH"); profilesPath != "" {
		config.Profiles.Path = profilesPath
	}
}

// ApplyFlagOverrides applies command-line flag overrides to config
func ApplyFlagOverrides(config *Config, port int, host string) {
	// Command-line flags have highest priority
	if port > 0 {
		config.Server.Port = port
	}
	if host != "" {
		config.Server.Host = host
	}
}

// ValidateSchedule validates a cron schedule expression for scheduled backups
// and enforces a minimum 5-minute interval.
func ValidateSchedule(schedule string) error {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid cron expression: %w", err)
	}

	parts := strings.Fields(schedule)
	if len(parts) < 5 {
		return fmt.Errorf("invalid cron format: expected 5 fields")
	}

	minuteField := parts[0]
	if minuteField == "*" {
		return fmt.Errorf("schedule must have minimum 5-minute interval (every minute is not allowed)")
	}
	if strings.HasPrefix(minuteField, "*/") {
		interval, err := strconv.Atoi(strings.TrimPrefix(minuteField, "*/"))
		if err == nil && interval < 5 {
			return fmt.Errorf("schedule interval must be at least 5 minutes, got %d", interval)
		}
	}

	return nil
}

// IsProduction returns true if the environment is set to production
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
