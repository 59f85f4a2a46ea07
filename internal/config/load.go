package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/yungbote/medreport-backend/internal/platform/envutil"
)

const (
	BackendHTTP   = "http"
	BackendGemini = "gemini"
	BackendOpenAI = "openai"
	BackendMock   = "mock"

	StoreMemory = "memory"
	StoreRedis  = "redis"
)

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	s := strings.TrimSpace(value.Value)
	if s == "" || s == "null" || s == "~" {
		d.Duration = 0
		return nil
	}
	if dd, err := time.ParseDuration(s); err == nil {
		d.Duration = dd
		return nil
	}
	secs, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return fmt.Errorf("duration must be a string like \"5s\" or integer seconds: %q", s)
	}
	d.Duration = time.Duration(secs) * time.Second
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

func defaultConfig() *Config {
	return &Config{
		Env: "development",
		HTTP: HTTPConfig{
			Addr:              ":8080",
			ReadHeaderTimeout: Duration{Duration: 5 * time.Second},
			IdleTimeout:       Duration{Duration: 2 * time.Minute},
			ShutdownTimeout:   Duration{Duration: 15 * time.Second},
			AllowedOrigins: []string{
				"http://localhost:3000",
				"http://localhost:5173",
				"http://127.0.0.1:3000",
				"http://127.0.0.1:5173",
			},
		},
		Intake: IntakeConfig{
			MaxUploadBytes:    10 << 20,
			MaxPreviewWidth:   1024,
			PDFToTextFallback: true,
		},
		Summarizer: SummarizerConfig{
			Backend:      BackendHTTP,
			Endpoint:     "https://ai.googleapis.com/v1beta1/",
			Timeout:      Duration{Duration: 60 * time.Second},
			MaxRetries:   0,
			RetryBackoff: Duration{Duration: 500 * time.Millisecond},
			GeminiModel:  "gemini-1.5-flash",
			OpenAIModel:  "gpt-4o-mini",
			MockSummary:  "No summary provided.",
		},
		Advice: AdviceConfig{
			Mode: "keyword",
		},
		Session: SessionConfig{
			InteractionStyle: "both",
			Store:            StoreMemory,
			TTL:              Duration{Duration: 30 * time.Minute},
			RedisAddr:        "localhost:6379",
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file
// (MEDREPORT_CONFIG_PATH or ./config/config.yaml) and environment overrides.
func Load() (*Config, error) {
	cfg := defaultConfig()

	cfgPath := strings.TrimSpace(os.Getenv("MEDREPORT_CONFIG_PATH"))
	if cfgPath == "" {
		if wd, err := os.Getwd(); err == nil {
			p := filepath.Join(wd, "config", "config.yaml")
			if _, err := os.Stat(p); err == nil {
				cfgPath = p
			}
		}
	}
	if cfgPath != "" {
		b, err := os.ReadFile(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgPath, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", cfgPath, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	cfg.Env = envutil.String("LOG_MODE", cfg.Env)

	if v := envutil.String("PORT", ""); v != "" {
		cfg.HTTP.Addr = ":" + strings.TrimPrefix(v, ":")
	}
	cfg.HTTP.Addr = envutil.String("HTTP_ADDR", cfg.HTTP.Addr)
	if v := envutil.String("CORS_ALLOWED_ORIGINS", ""); v != "" {
		cfg.HTTP.AllowedOrigins = splitList(v)
	}

	if mb := envutil.Int("MAX_UPLOAD_MB", 0); mb > 0 {
		cfg.Intake.MaxUploadBytes = int64(mb) << 20
	}
	cfg.Intake.PDFToTextFallback = envutil.Bool("PDFTOTEXT_FALLBACK", cfg.Intake.PDFToTextFallback)

	s := &cfg.Summarizer
	s.Backend = envutil.String("SUMMARIZER_BACKEND", s.Backend)
	s.Endpoint = envutil.String("SUMMARIZER_URL", s.Endpoint)
	s.APIKey = envutil.String("SUMMARIZER_API_KEY", s.APIKey)
	s.Timeout.Duration = envutil.Duration("SUMMARIZER_TIMEOUT", s.Timeout.Duration)
	s.MaxRetries = envutil.Int("SUMMARIZER_MAX_RETRIES", s.MaxRetries)
	s.RetryBackoff.Duration = envutil.Duration("SUMMARIZER_RETRY_BACKOFF", s.RetryBackoff.Duration)
	s.GeminiModel = envutil.String("GEMINI_MODEL", s.GeminiModel)
	s.OpenAIModel = envutil.String("OPENAI_MODEL", s.OpenAIModel)
	s.OpenAIBaseURL = envutil.String("OPENAI_BASE_URL", s.OpenAIBaseURL)
	s.MockSummary = envutil.String("SUMMARIZER_MOCK_SUMMARY", s.MockSummary)

	cfg.Advice.Mode = envutil.String("ADVICE_MODE", cfg.Advice.Mode)
	cfg.Advice.RulesPath = envutil.String("ADVICE_RULES_PATH", cfg.Advice.RulesPath)
	cfg.Advice.DedupeRuleMatches = envutil.Bool("ADVICE_DEDUPE_RULE_MATCHES", cfg.Advice.DedupeRuleMatches)

	cfg.Session.InteractionStyle = envutil.String("INTERACTION_STYLE", cfg.Session.InteractionStyle)
	cfg.Session.Store = envutil.String("SESSION_STORE", cfg.Session.Store)
	cfg.Session.TTL.Duration = envutil.Duration("SESSION_TTL", cfg.Session.TTL.Duration)
	cfg.Session.RedisAddr = envutil.String("REDIS_ADDR", cfg.Session.RedisAddr)
	cfg.Session.RedisPassword = envutil.String("REDIS_PASSWORD", cfg.Session.RedisPassword)
	cfg.Session.RedisDB = envutil.Int("REDIS_DB", cfg.Session.RedisDB)

	cfg.Telegram.Token = envutil.String("TELEGRAM_BOT_TOKEN", cfg.Telegram.Token)
	cfg.Telegram.Debug = envutil.Bool("TELEGRAM_DEBUG", cfg.Telegram.Debug)
}

func (c *Config) normalize() error {
	if strings.TrimSpace(c.Env) == "" {
		c.Env = "development"
	}
	if strings.TrimSpace(c.HTTP.Addr) == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.HTTP.ShutdownTimeout.Duration <= 0 {
		c.HTTP.ShutdownTimeout.Duration = 15 * time.Second
	}
	if c.Intake.MaxUploadBytes <= 0 {
		return errors.New("intake.max_upload_bytes must be positive")
	}
	if c.Intake.MaxPreviewWidth <= 0 {
		c.Intake.MaxPreviewWidth = 1024
	}

	s := &c.Summarizer
	s.Backend = strings.ToLower(strings.TrimSpace(s.Backend))
	s.Endpoint = strings.TrimSpace(s.Endpoint)
	s.APIKey = strings.TrimSpace(s.APIKey)
	switch s.Backend {
	case "", BackendHTTP:
		s.Backend = BackendHTTP
		if s.Endpoint == "" {
			return errors.New("summarizer.endpoint is required for the http backend")
		}
	case BackendGemini, BackendOpenAI:
		if s.APIKey == "" {
			return fmt.Errorf("summarizer.api_key is required for the %s backend", s.Backend)
		}
	case BackendMock:
	default:
		return fmt.Errorf("invalid summarizer.backend=%q", s.Backend)
	}
	if s.Timeout.Duration <= 0 {
		return errors.New("summarizer.timeout must be positive")
	}
	if s.MaxRetries < 0 {
		return errors.New("summarizer.max_retries must not be negative")
	}
	if s.RetryBackoff.Duration <= 0 {
		s.RetryBackoff.Duration = 500 * time.Millisecond
	}

	c.Advice.Mode = strings.ToLower(strings.TrimSpace(c.Advice.Mode))
	switch c.Advice.Mode {
	case "":
		c.Advice.Mode = "keyword"
	case "keyword", "static":
	default:
		return fmt.Errorf("invalid advice.mode=%q", c.Advice.Mode)
	}

	switch strings.ToLower(strings.TrimSpace(c.Session.InteractionStyle)) {
	case "", "both":
		c.Session.InteractionStyle = "both"
	case "buttons", "button":
		c.Session.InteractionStyle = "buttons"
	case "freetext", "free_text", "text":
		c.Session.InteractionStyle = "freeText"
	default:
		return fmt.Errorf("invalid session.interaction_style=%q", c.Session.InteractionStyle)
	}

	c.Session.Store = strings.ToLower(strings.TrimSpace(c.Session.Store))
	switch c.Session.Store {
	case "":
		c.Session.Store = StoreMemory
	case StoreMemory:
	case StoreRedis:
		if strings.TrimSpace(c.Session.RedisAddr) == "" {
			return errors.New("session.redis_addr is required for the redis store")
		}
	default:
		return fmt.Errorf("invalid session.store=%q", c.Session.Store)
	}
	if c.Session.TTL.Duration <= 0 {
		c.Session.TTL.Duration = 30 * time.Minute
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
