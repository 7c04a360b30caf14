package common

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	Database DatabaseConfig
	Server   ServerConfig
	Extract  ExtractConfig
	LLM      LLMConfig
	Storage  StorageConfig
	Events   EventsConfig
	Log      LogConfig
}

// DatabaseConfig holds database-related configuration
type DatabaseConfig struct {
	DSN              string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	HTTPAddr       string
	GRPCAddr       string
	MaxUploadBytes int64
	UploadDir      string
	CORSOrigins    []string
}

// ExtractConfig holds text extraction configuration
type ExtractConfig struct {
	Pdftoppm          string
	DPI               int
	VisionConcurrency int
	VisionTimeout     time.Duration
}

// LLMConfig holds LLM-related configuration
type LLMConfig struct {
	APIKey      string
	BaseURL     string
	Model       string
	VisionModel string
	Temperature float32
	Timeout     time.Duration
	MaxRetries  int
}

// StorageConfig holds side-channel artifact storage configuration
type StorageConfig struct {
	Backend    string // "fs" | "s3"
	Dir        string
	S3Bucket   string
	S3Prefix   string
	S3Endpoint string
}

// EventsConfig holds event publishing configuration. Empty Brokers disables publishing.
type EventsConfig struct {
	Brokers []string
	Topic   string
}

// LogConfig holds logger configuration
type LogConfig struct {
	Level  string
	Format string // "text" | "json"
}

var defaults = map[string]any{
	"DB_URL":                "",
	"DB_MAX_CONNS":          20,
	"DB_MIN_CONNS":          5,
	"DB_MAX_CONN_LIFETIME":  30 * time.Minute,
	"DB_MAX_CONN_IDLE_TIME": 5 * time.Minute,
	"DB_DIAL_TIMEOUT":       3 * time.Second,
	"DB_STATEMENT_TIMEOUT":  time.Duration(0),

	"HTTP_ADDR":     ":8000",
	"GRPC_ADDR":     ":9090",
	"MAX_UPLOAD_MB": 20,
	"UPLOAD_DIR":    "./uploads",
	"CORS_ORIGINS":  "http://localhost:3000",

	"PDFTOPPM":           "pdftoppm",
	"RASTER_DPI":         300,
	"VISION_CONCURRENCY": 4,
	"VISION_TIMEOUT":     90 * time.Second,

	"OPENAI_API_KEY":      "",
	"OPENAI_BASE_URL":     "https://api.openai.com/v1",
	"OPENAI_MODEL":        "gpt-4o",
	"OPENAI_VISION_MODEL": "gpt-4o",
	"OPENAI_TEMPERATURE":  0.0,
	"OPENAI_TIMEOUT":      60 * time.Second,
	"OPENAI_MAX_RETRIES":  3,

	"ARTIFACT_BACKEND":     "fs",
	"ARTIFACT_DIR":         "./responses",
	"ARTIFACT_S3_BUCKET":   "",
	"ARTIFACT_S3_PREFIX":   "responses",
	"ARTIFACT_S3_ENDPOINT": "",

	"KAFKA_BROKERS": "",
	"KAFKA_TOPIC":   "blood-tests",

	"LOG_LEVEL":  "info",
	"LOG_FORMAT": "text",
}

// NewViper returns a viper instance seeded with defaults and bound to the environment.
// If CONFIG_FILE is set, that file is read as well; environment values still win.
func NewViper() *viper.Viper {
	v := viper.New()
	for k, def := range defaults {
		v.SetDefault(k, def)
	}
	v.AutomaticEnv()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			slog.Warn("config.file.read_failed", "path", path, "error", err)
		}
	}
	return v
}

// LoadConfig loads configuration from environment variables (and CONFIG_FILE if set)
func LoadConfig() *Config {
	return LoadConfigFrom(NewViper())
}

// LoadConfigFrom builds a Config from an already prepared viper instance,
// which lets binaries bind their own flags first.
func LoadConfigFrom(v *viper.Viper) *Config {
	return &Config{
		Database: DatabaseConfig{
			DSN:              v.GetString("DB_URL"),
			MaxConns:         v.GetInt32("DB_MAX_CONNS"),
			MinConns:         v.GetInt32("DB_MIN_CONNS"),
			MaxConnLifetime:  v.GetDuration("DB_MAX_CONN_LIFETIME"),
			MaxConnIdleTime:  v.GetDuration("DB_MAX_CONN_IDLE_TIME"),
			DialTimeout:      v.GetDuration("DB_DIAL_TIMEOUT"),
			StatementTimeout: v.GetDuration("DB_STATEMENT_TIMEOUT"),
		},
		Server: ServerConfig{
			HTTPAddr:       v.GetString("HTTP_ADDR"),
			GRPCAddr:       v.GetString("GRPC_ADDR"),
			MaxUploadBytes: v.GetInt64("MAX_UPLOAD_MB") << 20,
			UploadDir:      v.GetString("UPLOAD_DIR"),
			CORSOrigins:    splitCSV(v.GetString("CORS_ORIGINS")),
		},
		Extract: ExtractConfig{
			Pdftoppm:          v.GetString("PDFTOPPM"),
			DPI:               v.GetInt("RASTER_DPI"),
			VisionConcurrency: v.GetInt("VISION_CONCURRENCY"),
			VisionTimeout:     v.GetDuration("VISION_TIMEOUT"),
		},
		LLM: LLMConfig{
			APIKey:      v.GetString("OPENAI_API_KEY"),
			BaseURL:     v.GetString("OPENAI_BASE_URL"),
			Model:       v.GetString("OPENAI_MODEL"),
			VisionModel: v.GetString("OPENAI_VISION_MODEL"),
			Temperature: float32(v.GetFloat64("OPENAI_TEMPERATURE")),
			Timeout:     v.GetDuration("OPENAI_TIMEOUT"),
			MaxRetries:  v.GetInt("OPENAI_MAX_RETRIES"),
		},
		Storage: StorageConfig{
			Backend:    strings.ToLower(strings.TrimSpace(v.GetString("ARTIFACT_BACKEND"))),
			Dir:        v.GetString("ARTIFACT_DIR"),
			S3Bucket:   v.GetString("ARTIFACT_S3_BUCKET"),
			S3Prefix:   v.GetString("ARTIFACT_S3_PREFIX"),
			S3Endpoint: v.GetString("ARTIFACT_S3_ENDPOINT"),
		},
		Events: EventsConfig{
			Brokers: splitCSV(v.GetString("KAFKA_BROKERS")),
			Topic:   v.GetString("KAFKA_TOPIC"),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}
}

func splitCSV(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Validate validates the loaded configuration. A missing model credential is fatal.
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return NewAppError(CodeConfig, "DB_URL is required", ErrInvalidInput)
	}
	if c.LLM.APIKey == "" {
		return NewAppError(CodeConfig, "OPENAI_API_KEY is required", ErrInvalidInput)
	}
	if c.Server.HTTPAddr == "" {
		return NewAppError(CodeConfig, "HTTP_ADDR is required", ErrInvalidInput)
	}
	if c.Extract.DPI <= 0 {
		return NewAppError(CodeConfig, "RASTER_DPI must be positive", ErrInvalidInput)
	}
	switch c.Storage.Backend {
	case "", "fs":
	case "s3":
		if c.Storage.S3Bucket == "" {
			return NewAppError(CodeConfig, "ARTIFACT_S3_BUCKET is required for the s3 artifact backend", ErrInvalidInput)
		}
	default:
		return NewAppError(CodeConfig, "ARTIFACT_BACKEND must be fs or s3", ErrInvalidInput)
	}
	return nil
}
