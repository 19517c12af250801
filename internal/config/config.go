package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

const (
	SourceGmail = "gmail"
	SourceEML   = "eml"
)

type Config struct {
	// Pipeline
	WorkerCount         int     `env:"WORKER_COUNT" envDefault:"4"`
	PollIntervalSeconds float64 `env:"POLL_INTERVAL" envDefault:"1.0"`
	MaxThreads          int     `env:"MAX_THREADS" envDefault:"10"`
	MaxPolls            int     `env:"MAX_POLLS" envDefault:"0"`
	OperatorEmail       string  `env:"OPERATOR_EMAIL"`

	// Persistence
	DatabaseURL string `env:"DATABASE_URL"`

	// Mail source
	MailSource           string `env:"MAIL_SOURCE" envDefault:"gmail"`
	GmailTokenFile       string `env:"GMAIL_TOKEN_FILE" envDefault:"token.json"`
	GmailCredentialsFile string `env:"GMAIL_CREDENTIALS_FILE" envDefault:"credentials.json"`
	EMLDir               string `env:"EML_DIR" envDefault:"./mail"`

	// AI
	AIProvider string `env:"AI_PROVIDER" envDefault:"openai"`
	AIKey      string `env:"AI_API_KEY"`
	AIModel    string `env:"AI_MODEL"`

	// Enrichment
	SummaryChunkChars int           `env:"SUMMARY_CHUNK_CHARS" envDefault:"8000"`
	SignatureMaxChars int           `env:"SIGNATURE_MAX_CHARS" envDefault:"2000"`
	RetryAttempts     int           `env:"RETRY_ATTEMPTS" envDefault:"3"`
	RetryBaseDelay    time.Duration `env:"RETRY_BASE_DELAY" envDefault:"500ms"`

	// Status API
	HTTPAddr  string `env:"HTTP_ADDR"`
	HTTPToken string `env:"HTTP_TOKEN"`

	// Logging
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	Env       string `env:"ENV" envDefault:"development"`
}

func LoadConfig() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	cfg.OperatorEmail = strings.ToLower(strings.TrimSpace(cfg.OperatorEmail))
	return cfg, nil
}

// PollInterval converts the fractional seconds setting into a duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds * float64(time.Second))
}

// Validate checks the settings needed by the pipeline. Settings only used by
// a specific mail source are checked when that source is selected.
func (c *Config) Validate() error {
	if c.WorkerCount <= 0 {
		return fmt.Errorf("WORKER_COUNT must be positive, got %d", c.WorkerCount)
	}
	if c.PollIntervalSeconds <= 0 {
		return fmt.Errorf("POLL_INTERVAL must be positive, got %v", c.PollIntervalSeconds)
	}
	if c.MaxThreads <= 0 {
		return fmt.Errorf("MAX_THREADS must be positive, got %d", c.MaxThreads)
	}
	if c.MaxPolls < 0 {
		return fmt.Errorf("MAX_POLLS must not be negative, got %d", c.MaxPolls)
	}
	if c.OperatorEmail == "" {
		return fmt.Errorf("OPERATOR_EMAIL is required")
	}
	if c.AIKey == "" {
		return fmt.Errorf("AI_API_KEY is required")
	}
	if c.SummaryChunkChars <= 0 {
		return fmt.Errorf("SUMMARY_CHUNK_CHARS must be positive, got %d", c.SummaryChunkChars)
	}
	if c.RetryAttempts <= 0 {
		return fmt.Errorf("RETRY_ATTEMPTS must be positive, got %d", c.RetryAttempts)
	}
	switch c.MailSource {
	case SourceGmail:
		if c.GmailTokenFile == "" {
			return fmt.Errorf("GMAIL_TOKEN_FILE is required for the gmail source")
		}
	case SourceEML:
		if c.EMLDir == "" {
			return fmt.Errorf("EML_DIR is required for the eml source")
		}
	default:
		return fmt.Errorf("unsupported MAIL_SOURCE %q", c.MailSource)
	}
	return nil
}
