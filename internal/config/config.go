package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"skincheck/internal/errors"
)

// Environment names selectable through APP_ENV
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
	EnvTesting     = "testing"
)

// Config represents the complete application configuration
type Config struct {
	Env      string
	Debug    bool
	Testing  bool
	Server   ServerConfig
	Paths    PathConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Explain  ExplainConfig
}

// ServerConfig holds web server settings
type ServerConfig struct {
	Host    string
	Port    string
	GinMode string
}

// Addr returns the listen address
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// PathConfig holds file system paths
type PathConfig struct {
	DataDir       string
	ModelsDir     string
	ModelRegistry string
	DatasetPath   string
}

// DatabaseConfig holds the optional prediction log database
type DatabaseConfig struct {
	URL string
}

// Enabled reports whether a database was configured
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level      string
	Dir        string
	MaxSizeMB  int
	MaxBackups int
}

// ExplainConfig tunes the attribution estimators used by the report
type ExplainConfig struct {
	Samples        int
	BackgroundSize int
	Seed           int64
}

// Load reads configuration from environment variables and validates it
func Load() (*Config, error) {
	env := strings.ToLower(getEnvOrDefault("APP_ENV", EnvDevelopment))
	switch env {
	case EnvDevelopment, EnvProduction, EnvTesting:
	default:
		env = EnvDevelopment
	}

	config := &Config{
		Env:     env,
		Debug:   env == EnvDevelopment,
		Testing: env == EnvTesting,
	}

	config.Server = *loadServerConfig(config.Debug)
	config.Paths = *loadPathConfig()
	config.Database = DatabaseConfig{URL: getEnvOrDefault("DATABASE_URL", "")}
	config.Logging = *loadLoggingConfig()
	config.Explain = *loadExplainConfig()

	if err := validateConfig(config); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	return config, nil
}

func loadServerConfig(debug bool) *ServerConfig {
	ginMode := "release"
	if debug {
		ginMode = "debug"
	}
	return &ServerConfig{
		Host:    getEnvOrDefault("HOST", "0.0.0.0"),
		Port:    getEnvOrDefault("PORT", "5000"),
		GinMode: getEnvOrDefault("GIN_MODE", ginMode),
	}
}

func loadPathConfig() *PathConfig {
	dataDir := getEnvOrDefault("DATA_DIR", "data")
	modelsDir := getEnvOrDefault("MODELS_DIR", filepath.Join(dataDir, "models"))
	return &PathConfig{
		DataDir:       dataDir,
		ModelsDir:     modelsDir,
		ModelRegistry: getEnvOrDefault("MODEL_REGISTRY", filepath.Join(modelsDir, "registry.yaml")),
		DatasetPath:   getEnvOrDefault("DATASET_PATH", filepath.Join(dataDir, "dataset.csv")),
	}
}

func loadLoggingConfig() *LoggingConfig {
	return &LoggingConfig{
		Level:      strings.ToUpper(getEnvOrDefault("LOG_LEVEL", "INFO")),
		Dir:        getEnvOrDefault("LOG_DIR", "logs"),
		MaxSizeMB:  getEnvIntOrDefault("LOG_MAX_SIZE_MB", 10),
		MaxBackups: getEnvIntOrDefault("LOG_MAX_BACKUPS", 10),
	}
}

func loadExplainConfig() *ExplainConfig {
	return &ExplainConfig{
		Samples:        getEnvIntOrDefault("EXPLAIN_SAMPLES", 200),
		BackgroundSize: getEnvIntOrDefault("EXPLAIN_BACKGROUND", 50),
		Seed:           int64(getEnvIntOrDefault("EXPLAIN_SEED", 42)),
	}
}

func validateConfig(config *Config) error {
	if _, err := strconv.Atoi(config.Server.Port); err != nil {
		return errors.ConfigInvalid("PORT must be numeric")
	}
	if config.Paths.ModelsDir == "" {
		return errors.ConfigInvalid("models directory is required")
	}
	if config.Explain.Samples <= 0 {
		return errors.ConfigInvalid("EXPLAIN_SAMPLES must be positive")
	}
	if config.Explain.BackgroundSize <= 0 {
		return errors.ConfigInvalid("EXPLAIN_BACKGROUND must be positive")
	}
	return nil
}

// Helper functions for environment variable parsing
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
