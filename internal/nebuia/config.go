package nebuia

import (
	"log/slog"
	"net/http"
	"strings"
	"time"
)

// Config for the Nebuia client.
type Config struct {
	BaseURL       string // default https://clients-copilot.nebuia.com
	EmbeddingsURL string // default https://embeddings-distributor.nebuia.com
	ClientID      string
	APIKey        string
	APISecret     string
	Timeout       time.Duration // per-call deadline for ordinary calls
	UploadTimeout time.Duration
	VerifyTimeout time.Duration
	StrictPDF     bool // run full structural PDF validation before uploads
}

// Client talks to the extraction service. It holds no per-run state and is
// safe for concurrent use.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient swaps the transport, mostly for tests.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

func NewClient(cfg Config, logger *slog.Logger, opts ...Option) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://clients-copilot.nebuia.com"
	}
	if cfg.EmbeddingsURL == "" {
		cfg.EmbeddingsURL = "https://embeddings-distributor.nebuia.com"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	cfg.EmbeddingsURL = strings.TrimRight(cfg.EmbeddingsURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 300 * time.Second
	}
	if cfg.UploadTimeout <= 0 {
		cfg.UploadTimeout = 900 * time.Second
	}
	if cfg.VerifyTimeout <= 0 {
		cfg.VerifyTimeout = 900 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		cfg:    cfg,
		http:   &http.Client{}, // deadlines are per call via context
		logger: logger,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}
