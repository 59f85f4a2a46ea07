package config

import "time"

type Duration struct {
	Duration time.Duration
}

type HTTPConfig struct {
	Addr              string   `yaml:"addr"`
	ReadHeaderTimeout Duration `yaml:"read_header_timeout"`
	IdleTimeout       Duration `yaml:"idle_timeout"`
	ShutdownTimeout   Duration `yaml:"shutdown_timeout"`
	AllowedOrigins    []string `yaml:"allowed_origins"`
}

type IntakeConfig struct {
	// MaxUploadBytes caps the size of a single uploaded document.
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`
	// MaxPreviewWidth bounds the width of generated image thumbnails.
	MaxPreviewWidth int `yaml:"max_preview_width"`
	// PDFToTextFallback runs the local pdftotext binary on page 1 when the
	// in-process parser finds no text.
	PDFToTextFallback bool `yaml:"pdftotext_fallback"`
}

type SummarizerConfig struct {
	// Backend is one of "http", "gemini", "openai" or "mock".
	Backend  string `yaml:"backend"`
	Endpoint string `yaml:"endpoint"`

	// APIKey is sent as a bearer credential (http) or SDK key (gemini, openai).
	// It is never logged.
	APIKey string `yaml:"api_key"`

	// Timeout bounds each attempt.
	Timeout Duration `yaml:"timeout"`
	// MaxRetries is the number of additional attempts on retryable failures.
	// Zero means exactly one call per document.
	MaxRetries   int      `yaml:"max_retries"`
	RetryBackoff Duration `yaml:"retry_backoff"`

	GeminiModel   string `yaml:"gemini_model"`
	OpenAIModel   string `yaml:"openai_model"`
	OpenAIBaseURL string `yaml:"openai_base_url"`

	MockSummary string `yaml:"mock_summary"`
}

type AdviceConfig struct {
	// Mode is "keyword" or "static".
	Mode string `yaml:"mode"`
	// RulesPath overrides the embedded rule table.
	RulesPath string `yaml:"rules_path"`
	// DedupeRuleMatches emits a rule's fragment once even when several of its
	// trigger phrases match.
	DedupeRuleMatches bool `yaml:"dedupe_rule_matches"`
}

type SessionConfig struct {
	// InteractionStyle is "buttons", "freeText" or "both".
	InteractionStyle string   `yaml:"interaction_style"`
	Store            string   `yaml:"store"`
	TTL              Duration `yaml:"ttl"`
	RedisAddr        string   `yaml:"redis_addr"`
	RedisPassword    string   `yaml:"redis_password"`
	RedisDB          int      `yaml:"redis_db"`
}

type TelegramConfig struct {
	Token string `yaml:"token"`
	Debug bool   `yaml:"debug"`
}

type Config struct {
	Env        string           `yaml:"env"`
	HTTP       HTTPConfig       `yaml:"http"`
	Intake     IntakeConfig     `yaml:"intake"`
	Summarizer SummarizerConfig `yaml:"summarizer"`
	Advice     AdviceConfig     `yaml:"advice"`
	Session    SessionConfig    `yaml:"session"`
	Telegram   TelegramConfig   `yaml:"telegram"`
}
