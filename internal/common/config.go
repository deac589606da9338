// Package common provides shared configuration, logging and run
// statistics for the NL metric tools.
package common

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/KI7MT/ki7mt-nlmetric/internal/nlmetric"
)

// Config holds common configuration for all applications.
type Config struct {
	ClickHouseHost     string
	ClickHousePort     int
	ClickHouseDatabase string
	ClickHouseUser     string
	ClickHousePassword string
	DataDir            string
	SaveDir            string // empty disables file output
	LogLevel           string
	AppEnv             string

	InnerAltitude float64 // solar radii
	NominalSpeed  float64 // km/s, constant-speed projection
	FallbackSpeed float64 // km/s, outside measured velocity span
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	dataDir := getEnv("NLMETRIC_DATA_DIR", "/var/lib/ki7mt-nlmetric")
	return &Config{
		ClickHouseHost:     getEnv("CLICKHOUSE_HOST", "localhost"),
		ClickHousePort:     getEnvInt("CLICKHOUSE_PORT", 9000),
		ClickHouseDatabase: getEnv("CLICKHOUSE_DATABASE", "nlmetric"),
		ClickHouseUser:     getEnv("CLICKHOUSE_USER", "default"),
		ClickHousePassword: getEnv("CLICKHOUSE_PASSWORD", ""),
		DataDir:            dataDir,
		SaveDir:            getEnv("NLMETRIC_SAVE_DIR", filepath.Join(dataDir, "series")),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		AppEnv:             getEnv("APP_ENV", "dev"),
		InnerAltitude:      getEnvFloat("NLMETRIC_INNER_ALTITUDE", nlmetric.DefaultInnerAltitude),
		NominalSpeed:       getEnvFloat("NLMETRIC_NOMINAL_VR", nlmetric.DefaultSpeed),
		FallbackSpeed:      getEnvFloat("NLMETRIC_FALLBACK_VR", nlmetric.DefaultSpeed),
	}
}

// ClickHouseAddr returns host:port for the native protocol.
func (c *Config) ClickHouseAddr() string {
	if strings.Contains(c.ClickHouseHost, ":") {
		return c.ClickHouseHost
	}
	return fmt.Sprintf("%s:%d", c.ClickHouseHost, c.ClickHousePort)
}

// TelemetryDir returns the local telemetry directory path.
func (c *Config) TelemetryDir() string {
	return filepath.Join(c.DataDir, "telemetry")
}

// MapDir returns the neutral line map directory path.
func (c *Config) MapDir() string {
	return filepath.Join(c.DataDir, "maps")
}

// Level parses LogLevel, defaulting to info.
func (c *Config) Level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// PredictOptions returns the projection settings as builder options.
func (c *Config) PredictOptions(constantSpeed bool) nlmetric.PredictOptions {
	return nlmetric.PredictOptions{
		ConstantSpeed: constantSpeed,
		InnerAltitude: c.InnerAltitude,
		NominalSpeed:  c.NominalSpeed,
		FallbackSpeed: c.FallbackSpeed,
	}
}

// Validate rejects settings the projection cannot use.
func (c *Config) Validate() error {
	if c.InnerAltitude <= 0 {
		return fmt.Errorf("inner altitude must be positive, got %v", c.InnerAltitude)
	}
	if c.NominalSpeed <= 0 || c.FallbackSpeed <= 0 {
		return fmt.Errorf("speeds must be positive, got nominal=%v fallback=%v", c.NominalSpeed, c.FallbackSpeed)
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if v, err := strconv.Atoi(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if v, err := strconv.ParseFloat(os.Getenv(key), 64); err == nil {
		return v
	}
	return defaultValue
}
