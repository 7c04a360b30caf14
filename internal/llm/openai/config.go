package openai

import (
	"log/slog"
	"net/http"
	"time"
)

// Config for the OpenAI client.
type Config struct {
	APIKey      string        // required
	BaseURL     string        // default https://api.openai.com/v1
	Model       string        // structuring model, e.g. "gpt-4o"
	VisionModel string        // page transcription model; defaults to Model
	Temperature float32       // 0..2
	Timeout     time.Duration // per attempt
	MaxRetries  int           // extra attempts for transient failures

	// RetryInitialInterval is the first backoff delay; zero means 500ms.
	RetryInitialInterval time.Duration
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	if cfg.VisionModel == "" {
		cfg.VisionModel = cfg.Model
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = 500 * time.Millisecond
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg: cfg,
		// the per-attempt context carries the deadline; this is a backstop
		http:   &http.Client{Timeout: cfg.Timeout + 5*time.Second},
		logger: logger,
	}
}
