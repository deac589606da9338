package common

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Env(t *testing.T) {
	t.Setenv("NLMETRIC_DATA_DIR", "/tmp/nl")
	t.Setenv("NLMETRIC_SAVE_DIR", "")
	t.Setenv("CLICKHOUSE_PORT", "9440")
	t.Setenv("NLMETRIC_NOMINAL_VR", "450")
	t.Setenv("NLMETRIC_INNER_ALTITUDE", "not-a-number")

	cfg := DefaultConfig()
	assert.Equal(t, "/tmp/nl", cfg.DataDir)
	assert.Equal(t, filepath.Join("/tmp/nl", "series"), cfg.SaveDir)
	assert.Equal(t, filepath.Join("/tmp/nl", "telemetry"), cfg.TelemetryDir())
	assert.Equal(t, 9440, cfg.ClickHousePort)
	assert.Equal(t, 450.0, cfg.NominalSpeed)
	assert.Equal(t, 2.5, cfg.InnerAltitude)
	require.NoError(t, cfg.Validate())
}

func TestConfig_ClickHouseAddr(t *testing.T) {
	cfg := &Config{ClickHouseHost: "db", ClickHousePort: 9000}
	assert.Equal(t, "db:9000", cfg.ClickHouseAddr())

	cfg.ClickHouseHost = "10.0.0.5:19000"
	assert.Equal(t, "10.0.0.5:19000", cfg.ClickHouseAddr())
}

func TestConfig_Level(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, (&Config{LogLevel: "debug"}).Level())
	assert.Equal(t, slog.LevelWarn, (&Config{LogLevel: "WARN"}).Level())
	assert.Equal(t, slog.LevelInfo, (&Config{LogLevel: "chatty"}).Level())
}

func TestConfig_Validate(t *testing.T) {
	cfg := &Config{InnerAltitude: 2.5, NominalSpeed: 360, FallbackSpeed: 0}
	assert.Error(t, cfg.Validate())

	cfg.FallbackSpeed = 360
	cfg.InnerAltitude = -1
	assert.Error(t, cfg.Validate())
}

func TestConfig_PredictOptions(t *testing.T) {
	cfg := &Config{InnerAltitude: 2.0, NominalSpeed: 400, FallbackSpeed: 350}
	opts := cfg.PredictOptions(true)
	assert.True(t, opts.ConstantSpeed)
	assert.Equal(t, 2.0, opts.InnerAltitude)
	assert.Equal(t, 400.0, opts.NominalSpeed)
	assert.Equal(t, 350.0, opts.FallbackSpeed)
}

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{AppEnv: "prod", LogLevel: "info"}, "1.2.3", "nl-score")
	logger.Debug("hidden")
	logger.Info("hello", "body", "earth")

	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "nl-score", rec["app"])
	assert.Equal(t, "1.2.3", rec["version"])
	assert.Equal(t, "earth", rec["body"])
}

func TestNewLogger_Dev(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{AppEnv: "dev", LogLevel: "debug"}, "dev", "nl-score")
	logger.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
}

func TestStats(t *testing.T) {
	var buf bytes.Buffer
	s := NewStats(slog.New(slog.NewJSONHandler(&buf, nil)))
	s.AddScored(600)
	s.AddScored(640)
	s.AddFailed()

	assert.Equal(t, uint64(3), s.Total())
	assert.Equal(t, uint64(1240), s.PointsCompared.Load())

	s.StartReporter(3)
	s.StopReporter()
	s.StopReporter()

	s.Log("done", 3)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rec))
	assert.Equal(t, float64(2), rec["scored"])
	assert.Equal(t, float64(1), rec["failed"])
}
