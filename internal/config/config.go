// Package config provides configuration management for the assignment
// engine.
//
// Configuration Loading Order:
// 1. Load from .env file (if present)
// 2. Load from environment variables
//
// Data Directory Priority (highest to lowest):
// 1. dataDirOverride argument to Load (if provided)
// 2. ASSIGN_DATA_DIR environment variable
// 3. ./data (default)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration for cmd/server.
type Config struct {
	DataDir  string // Base directory for the sqlite database file (always absolute)
	LogLevel string // Log level (debug, info, warn, error)
	LogPretty bool  // Pretty-console log writer instead of JSON
	Port     int    // HTTP server port (default: 8080)
	DevMode  bool   // Development mode flag (disables HTTP response compression)

	Solver  SolverConfig
	Backup  BackupConfig
}

// SolverConfig mirrors solver.Config's tunables so they can be sourced
// from the environment instead of hardcoded zero-value defaults.
type SolverConfig struct {
	RemoteURL                   string        // REMOTE_SOLVER_URL; empty leaves the solver with no remote client, so Layers 0 and 4 report StatusError
	UseRemoteForLarge           bool          // USE_REMOTE_FOR_LARGE
	AlwaysUseRemote             bool          // ALWAYS_USE_REMOTE; only checked by Validate, not passed to the solver
	RouteToRemoteAccountCeiling int           // ROUTE_TO_REMOTE_ACCOUNT_CEILING
	InProcessVarCeiling         int           // IN_PROCESS_VAR_CEILING
	RemoteTimeout               time.Duration // REMOTE_SOLVER_TIMEOUT_SECONDS
	DefaultCREVariance          float64       // DEFAULT_CRE_VARIANCE_PERCENT
	DefaultATRVariance          float64       // DEFAULT_ATR_VARIANCE_PERCENT
}

// BackupConfig configures the optional S3-compatible report backup. A
// run never fails because backup is unconfigured or unreachable — see
// internal/reliability.
type BackupConfig struct {
	Bucket   string // S3_BACKUP_BUCKET; empty disables backup entirely
	Region   string // S3_BACKUP_REGION
	Endpoint string // S3_BACKUP_ENDPOINT; set for R2/MinIO-style endpoints, empty for AWS
}

// Load reads configuration from environment variables.
//
// dataDirOverride - Optional override for the data directory (takes highest priority)
func Load(dataDirOverride ...string) (*Config, error) {
	_ = godotenv.Load()

	var dataDir string
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else {
		dataDir = getEnv("ASSIGN_DATA_DIR", "")
		if dataDir == "" {
			dataDir = "./data"
		}
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:   absDataDir,
		Port:      getEnvAsInt("PORT", 8080),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", false),
		DevMode:   getEnvAsBool("DEV_MODE", false),
		Solver: SolverConfig{
			RemoteURL:                   getEnv("REMOTE_SOLVER_URL", ""),
			UseRemoteForLarge:           getEnvAsBool("USE_REMOTE_FOR_LARGE", false),
			AlwaysUseRemote:             getEnvAsBool("ALWAYS_USE_REMOTE", false),
			RouteToRemoteAccountCeiling: getEnvAsInt("ROUTE_TO_REMOTE_ACCOUNT_CEILING", 3000),
			InProcessVarCeiling:         getEnvAsInt("IN_PROCESS_VAR_CEILING", 30000),
			RemoteTimeout:               time.Duration(getEnvAsInt("REMOTE_SOLVER_TIMEOUT_SECONDS", 300)) * time.Second,
			DefaultCREVariance:          getEnvAsFloat("DEFAULT_CRE_VARIANCE_PERCENT", 10.0),
			DefaultATRVariance:          getEnvAsFloat("DEFAULT_ATR_VARIANCE_PERCENT", 15.0),
		},
		Backup: BackupConfig{
			Bucket:   getEnv("S3_BACKUP_BUCKET", ""),
			Region:   getEnv("S3_BACKUP_REGION", "auto"),
			Endpoint: getEnv("S3_BACKUP_ENDPOINT", ""),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks configuration for internally inconsistent settings.
// Missing optional integrations (remote solver, backup bucket) are never
// validation failures — every component that uses them degrades instead.
func (c *Config) Validate() error {
	if c.Solver.AlwaysUseRemote && c.Solver.RemoteURL == "" {
		return fmt.Errorf("ALWAYS_USE_REMOTE is set but REMOTE_SOLVER_URL is empty")
	}
	return nil
}

// ==========================================
// Helper Functions
// ==========================================

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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
		}
	}
	return defaultValue
}
