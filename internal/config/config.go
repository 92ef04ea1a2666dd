package config

import (
	_ "embed"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed defaults.yaml
var defaultsYAML []byte

type Config struct {
	Encoder     EncoderConfig
	Database    DatabaseConfig
	Recognition RecognitionConfig
	Sync        SyncConfig
	Snapshot    SnapshotConfig
	Attendance  AttendanceConfig
}

type EncoderConfig struct {
	URL   string // face model server, defaults to http://localhost:8000
	Model string // model name for reference only
	Dim   int    // embedding dimension, defaults to 512
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type RecognitionConfig struct {
	Threshold       float64 `yaml:"threshold"`        // minimum cosine similarity for a match
	QualityFloor    float64 `yaml:"quality_floor"`    // 0 disables the low-quality gate
	CooldownSeconds int     `yaml:"cooldown_seconds"` // per-identity recognition cooldown
	UseHNSW         bool    `yaml:"-"`                // opt-in approximate matcher
}

type SyncConfig struct {
	IntervalSeconds       int `yaml:"interval_seconds"`         // background reconcile period
	Concurrency           int `yaml:"concurrency"`              // parallel encoder calls per pass
	PerCallTimeoutSeconds int `yaml:"per_call_timeout_seconds"` // budget per identity
}

type SnapshotConfig struct {
	Path string // face index snapshot file; empty disables persistence
}

type AttendanceConfig struct {
	// Timezone is the IANA zone attendance days are computed in. It is
	// fixed per deployment, never the ambient process zone, so a restart
	// on a differently-configured host cannot split one day in two.
	Timezone string
}

// defaultsFile mirrors the embedded defaults.yaml layout.
type defaultsFile struct {
	Recognition RecognitionConfig `yaml:"recognition"`
	Sync        SyncConfig        `yaml:"sync"`
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envFloat reads an environment variable as a float, falling back to the
// default when unset or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return defaultVal
}

// envUnitFloat reads an environment variable as a float in [0, 1], falling
// back to the default when unset, invalid or out of range.
func envUnitFloat(key string, defaultVal float64) float64 {
	f := envFloat(key, defaultVal)
	if f < 0 || f > 1 {
		return defaultVal
	}
	return f
}

func envBool(key string) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "yes":
		return true
	}
	return false
}

func envString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

// Load builds the configuration from the embedded defaults overlaid with
// environment variables.
func Load() *Config {
	var defaults defaultsFile
	if err := yaml.Unmarshal(defaultsYAML, &defaults); err != nil {
		// Embedded file, should never happen in practice.
		panic("failed to unmarshal embedded defaults.yaml: " + err.Error())
	}

	return &Config{
		Encoder: EncoderConfig{
			URL:   envString("ENCODER_URL", "http://localhost:8000"),
			Model: envString("ENCODER_MODEL", "arcface"),
			Dim:   envInt("ENCODER_DIM", 512),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
		},
		Recognition: RecognitionConfig{
			Threshold:       envUnitFloat("RECOGNITION_THRESHOLD", defaults.Recognition.Threshold),
			QualityFloor:    envUnitFloat("RECOGNITION_QUALITY_FLOOR", defaults.Recognition.QualityFloor),
			CooldownSeconds: envInt("RECOGNITION_COOLDOWN_SECONDS", defaults.Recognition.CooldownSeconds),
			UseHNSW:         envBool("RECOGNITION_USE_HNSW"),
		},
		Sync: SyncConfig{
			IntervalSeconds:       envInt("SYNC_INTERVAL_SECONDS", defaults.Sync.IntervalSeconds),
			Concurrency:           envInt("SYNC_CONCURRENCY", defaults.Sync.Concurrency),
			PerCallTimeoutSeconds: envInt("SYNC_PER_CALL_TIMEOUT_SECONDS", defaults.Sync.PerCallTimeoutSeconds),
		},
		Snapshot: SnapshotConfig{
			Path: envString("SNAPSHOT_PATH", "face_index.snapshot"),
		},
		Attendance: AttendanceConfig{
			Timezone: envString("ATTENDANCE_TIMEZONE", "Asia/Manila"),
		},
	}
}
