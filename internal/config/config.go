// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
)

// Price provider names
const (
	PriceProviderYahoo = "yahoo"
	PriceProviderNone  = "none"
)

// Config holds application configuration
type Config struct {
	DataDir         string // Base directory for all databases (always absolute)
	LogLevel        string
	Port            int
	DevMode         bool
	DefaultAccount  string // Account debited/credited when a trade names none
	DefaultCurrency string // ISO 4217 code used for new accounts and positions
	PriceProvider   string
	Schedules       Schedules
	Backup          BackupConfig
}

// Schedules holds cron specs (with seconds field) for the background jobs
type Schedules struct {
	PriceSync   string
	Snapshot    string
	Reconcile   string
	Backup      string
	Maintenance string
	Cleanup     string
}

// BackupConfig holds S3-compatible backup storage settings.
// Backups stay local when Bucket is empty.
type BackupConfig struct {
	Bucket          string
	Endpoint        string
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	RetentionDays   int
}

// Enabled reports whether remote backups are configured
func (b BackupConfig) Enabled() bool {
	return b.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("HOLDINGS_DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:         absDataDir,
		Port:            getEnvAsInt("HOLDINGS_PORT", 8001),
		DevMode:         getEnvAsBool("DEV_MODE", false),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		DefaultAccount:  getEnv("DEFAULT_ACCOUNT", "main"),
		DefaultCurrency: strings.ToUpper(getEnv("DEFAULT_CURRENCY", "BRL")),
		PriceProvider:   strings.ToLower(getEnv("PRICE_PROVIDER", PriceProviderYahoo)),
		Schedules: Schedules{
			PriceSync: getEnv("PRICE_SYNC_SCHEDULE", "0 */15 * * * *"),
			Snapshot:  getEnv("SNAPSHOT_SCHEDULE", "0 0 22 * * *"),
			Reconcile: getEnv("RECONCILE_SCHEDULE", "0 30 3 * * *"),
			Backup:    getEnv("BACKUP_SCHEDULE", "0 0 4 * * *"),
			// after the backup so a bad database is caught before the next one
			Maintenance: getEnv("MAINTENANCE_SCHEDULE", "0 0 5 * * *"),
			Cleanup:     getEnv("CLEANUP_SCHEDULE", "0 30 5 * * SUN"),
		},
		Backup: BackupConfig{
			Bucket:          getEnv("BACKUP_S3_BUCKET", ""),
			Endpoint:        getEnv("BACKUP_S3_ENDPOINT", ""),
			Region:          getEnv("BACKUP_S3_REGION", "auto"),
			AccessKeyID:     getEnv("BACKUP_S3_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("BACKUP_S3_SECRET_ACCESS_KEY", ""),
			RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if strings.TrimSpace(c.DefaultAccount) == "" {
		return fmt.Errorf("default account must not be empty")
	}
	if money.GetCurrency(c.DefaultCurrency) == nil {
		return fmt.Errorf("unknown default currency: %q", c.DefaultCurrency)
	}

	switch c.PriceProvider {
	case PriceProviderYahoo, PriceProviderNone:
	default:
		return fmt.Errorf("unknown price provider: %q", c.PriceProvider)
	}

	parser := cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	for name, spec := range map[string]string{
		"PRICE_SYNC_SCHEDULE":  c.Schedules.PriceSync,
		"SNAPSHOT_SCHEDULE":    c.Schedules.Snapshot,
		"RECONCILE_SCHEDULE":   c.Schedules.Reconcile,
		"BACKUP_SCHEDULE":      c.Schedules.Backup,
		"MAINTENANCE_SCHEDULE": c.Schedules.Maintenance,
		"CLEANUP_SCHEDULE":     c.Schedules.Cleanup,
	} {
		if _, err := parser.Parse(spec); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, spec, err)
		}
	}

	if c.Backup.Enabled() {
		if c.Backup.AccessKeyID == "" || c.Backup.SecretAccessKey == "" {
			return fmt.Errorf("backup bucket configured without credentials")
		}
		if c.Backup.RetentionDays < 1 {
			return fmt.Errorf("backup retention must be at least one day, got %d", c.Backup.RetentionDays)
		}
	}

	return nil
}

// LedgerPath returns the path of the ledger database
func (c *Config) LedgerPath() string {
	return filepath.Join(c.DataDir, "ledger.db")
}

// CachePath returns the path of the cache database
func (c *Config) CachePath() string {
	return filepath.Join(c.DataDir, "cache.db")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
