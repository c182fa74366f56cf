// Package config loads the InfraProof configuration from defaults,
// a .env file, INFRAPROOF_-prefixed environment variables, and
// runtime overrides, in increasing order of precedence. The loaded
// Config is an explicit record passed down to consumers; nothing else
// reads viper directly.
package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/anxbt/InfraProof/pkg/bench"
	"github.com/anxbt/InfraProof/pkg/storage"
)

// Config is the full service configuration.
type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Registry    RegistryConfig    `mapstructure:"registry"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Bench       BenchConfig       `mapstructure:"bench"`
	Coordinator CoordinatorConfig `mapstructure:"coordinator"`
	Uploader    UploaderConfig    `mapstructure:"uploader"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`
}

// ServerConfig holds the status server settings.
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig selects the operator log level and encoding.
type LoggingConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// RegistryConfig locates the embedded registry database.
type RegistryConfig struct {
	// Path is the registry database file, or ":memory:".
	Path string `mapstructure:"path"`

	// Identity is recorded as requester on created tasks and as
	// operator on submitted receipts.
	Identity string `mapstructure:"identity"`
}

// StorageConfig selects and parameterizes the artifact store. A
// non-empty Bucket selects the S3 store; otherwise artifacts land in
// LocalDir on the local filesystem.
type StorageConfig struct {
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	Endpoint        string `mapstructure:"endpoint"`
	Profile         string `mapstructure:"profile"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	ForcePathStyle  bool   `mapstructure:"force_path_style"`
	KeyPrefix       string `mapstructure:"key_prefix"`
	LocalDir        string `mapstructure:"local_dir"`
}

// BenchConfig holds the default benchmark workload parameters.
type BenchConfig struct {
	CPUDurationMs int    `mapstructure:"cpu_duration_ms"`
	MemorySizeMB  int    `mapstructure:"memory_size_mb"`
	DiskSizeMB    int    `mapstructure:"disk_size_mb"`
	ScratchDir    string `mapstructure:"scratch_dir"`
}

// CoordinatorConfig parameterizes the proof cycle.
type CoordinatorConfig struct {
	// WorkDir is the parent directory for per-run artifact sets.
	// Empty means the OS temp dir.
	WorkDir string `mapstructure:"work_dir"`

	// Operator is the identity written into receipt documents.
	Operator string `mapstructure:"operator"`
}

// UploaderConfig tunes the artifact uploader.
type UploaderConfig struct {
	Concurrency       int     `mapstructure:"concurrency"`
	MaxAttempts       int     `mapstructure:"max_attempts"`
	RequestsPerSecond float64 `mapstructure:"requests_per_second"`
}

// TelemetryConfig enables OpenTelemetry trace export.
type TelemetryConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

var (
	configMu  sync.RWMutex
	appConfig *Config
)

// envBindings maps flat INFRAPROOF_ environment variables onto
// configuration paths. Every bound path also has a default so the
// binding surfaces at decode time.
var envBindings = []struct {
	Name string
	Path string
}{
	{"INFRAPROOF_HOST", "server.host"},
	{"INFRAPROOF_PORT", "server.port"},
	{"INFRAPROOF_READ_TIMEOUT", "server.read_timeout"},
	{"INFRAPROOF_WRITE_TIMEOUT", "server.write_timeout"},
	{"INFRAPROOF_IDLE_TIMEOUT", "server.idle_timeout"},
	{"INFRAPROOF_SHUTDOWN_TIMEOUT", "server.shutdown_timeout"},
	{"INFRAPROOF_LOG_LEVEL", "logging.level"},
	{"INFRAPROOF_LOG_ENCODING", "logging.encoding"},
	{"INFRAPROOF_REGISTRY_PATH", "registry.path"},
	{"INFRAPROOF_IDENTITY", "registry.identity"},
	{"INFRAPROOF_S3_BUCKET", "storage.bucket"},
	{"INFRAPROOF_S3_REGION", "storage.region"},
	{"INFRAPROOF_S3_ENDPOINT", "storage.endpoint"},
	{"INFRAPROOF_S3_PROFILE", "storage.profile"},
	{"INFRAPROOF_S3_ACCESS_KEY_ID", "storage.access_key_id"},
	{"INFRAPROOF_S3_SECRET_ACCESS_KEY", "storage.secret_access_key"},
	{"INFRAPROOF_S3_FORCE_PATH_STYLE", "storage.force_path_style"},
	{"INFRAPROOF_S3_KEY_PREFIX", "storage.key_prefix"},
	{"INFRAPROOF_LOCAL_DIR", "storage.local_dir"},
	{"INFRAPROOF_CPU_DURATION_MS", "bench.cpu_duration_ms"},
	{"INFRAPROOF_MEMORY_SIZE_MB", "bench.memory_size_mb"},
	{"INFRAPROOF_DISK_SIZE_MB", "bench.disk_size_mb"},
	{"INFRAPROOF_SCRATCH_DIR", "bench.scratch_dir"},
	{"INFRAPROOF_WORK_DIR", "coordinator.work_dir"},
	{"INFRAPROOF_OPERATOR", "coordinator.operator"},
	{"INFRAPROOF_UPLOAD_CONCURRENCY", "uploader.concurrency"},
	{"INFRAPROOF_UPLOAD_MAX_ATTEMPTS", "uploader.max_attempts"},
	{"INFRAPROOF_UPLOAD_RPS", "uploader.requests_per_second"},
	{"INFRAPROOF_OTEL_ENABLED", "telemetry.enabled"},
	{"INFRAPROOF_OTEL_ENDPOINT", "telemetry.endpoint"},
	{"INFRAPROOF_OTEL_INSECURE", "telemetry.insecure"},
}

// Load builds the configuration. Runtime overrides are nested maps
// keyed like the Config sections and take precedence over environment
// variables, which take precedence over defaults. The loaded Config
// replaces the one GetConfig returns.
func Load(ctx context.Context, overrides ...map[string]any) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)

	if err := loadDotEnv(); err != nil {
		return nil, err
	}
	for _, b := range envBindings {
		if err := v.BindEnv(b.Path, b.Name); err != nil {
			return nil, fmt.Errorf("bind %s: %w", b.Name, err)
		}
	}
	for _, override := range overrides {
		applyOverrides(v, "", override)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg,
		viper.DecodeHook(mapstructure.StringToTimeDurationHookFunc()),
		func(dc *mapstructure.DecoderConfig) { dc.WeaklyTypedInput = true },
	); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	configMu.Lock()
	appConfig = &cfg
	configMu.Unlock()
	return &cfg, nil
}

// GetConfig returns the most recently loaded configuration, or nil if
// Load has not run.
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.encoding", "console")

	v.SetDefault("registry.path", "infraproof.db")
	v.SetDefault("registry.identity", "local")

	v.SetDefault("storage.bucket", "")
	v.SetDefault("storage.region", "")
	v.SetDefault("storage.endpoint", "")
	v.SetDefault("storage.profile", "")
	v.SetDefault("storage.access_key_id", "")
	v.SetDefault("storage.secret_access_key", "")
	v.SetDefault("storage.force_path_style", false)
	v.SetDefault("storage.key_prefix", "")
	v.SetDefault("storage.local_dir", "artifacts")

	v.SetDefault("bench.cpu_duration_ms", bench.DefaultCPUDurationMs)
	v.SetDefault("bench.memory_size_mb", bench.DefaultMemorySizeMB)
	v.SetDefault("bench.disk_size_mb", bench.DefaultDiskSizeMB)
	v.SetDefault("bench.scratch_dir", "")

	v.SetDefault("coordinator.work_dir", "")
	v.SetDefault("coordinator.operator", "local")

	v.SetDefault("uploader.concurrency", storage.DefaultConcurrency)
	v.SetDefault("uploader.max_attempts", storage.DefaultMaxAttempts)
	v.SetDefault("uploader.requests_per_second", 0.0)

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.endpoint", "")
	v.SetDefault("telemetry.insecure", false)
}

// loadDotEnv populates the process environment from a .env file in
// the working directory. Variables already present win; a missing
// file is not an error.
func loadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load .env: %w", err)
	}
	return nil
}

// applyOverrides flattens nested override maps into dotted keys and
// sets them, which places them above env bindings in precedence.
func applyOverrides(v *viper.Viper, prefix string, values map[string]any) {
	for key, value := range values {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok {
			applyOverrides(v, path, nested)
			continue
		}
		v.Set(path, value)
	}
}
