package summarizer

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/yungbote/medreport-backend/internal/config"
	"github.com/yungbote/medreport-backend/internal/platform/logger"
)

const (
	// FallbackError is the summary used when the remote call fails.
	FallbackError = "Error calling API"
	// FallbackMissing is the summary used when a successful response has no summary.
	FallbackMissing = "No summary provided."
)

// Payload is the document submitted for summarization. Text carries the
// extracted preview text for backends that cannot read the raw file.
type Payload struct {
	Filename    string
	ContentType string
	Bytes       []byte
	Text        string
}

// Result never carries an error. Warning is a user-facing message and is
// empty unless the call failed.
type Result struct {
	Summary  string
	Warning  string
	Attempts int
	Backend  string
}

func (r Result) Failed() bool { return r.Warning != "" }

type Summarizer interface {
	Summarize(ctx context.Context, p Payload) Result
}

// backend performs one attempt and returns either a summary or an error.
type backend interface {
	name() string
	summarizeOnce(ctx context.Context, p Payload) (summary string, present bool, err error)
}

// New selects the backend named by cfg.Backend.
func New(ctx context.Context, cfg config.SummarizerConfig, log *logger.Logger) (Summarizer, error) {
	if log == nil {
		log = logger.Nop()
	}
	logger.RegisterSecret(cfg.APIKey)

	var (
		b   backend
		err error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case config.BackendHTTP, "":
		b, err = newHTTPBackend(cfg, nil)
	case config.BackendGemini:
		b, err = newGeminiBackend(ctx, cfg)
	case config.BackendOpenAI:
		b, err = newOpenAIBackend(cfg)
	case config.BackendMock:
		b = Mock{Summary: cfg.MockSummary}
	default:
		return nil, fmt.Errorf("unknown summarizer backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, err
	}
	return newClient(b, cfg, log), nil
}

// Client wraps a backend with the failure-to-fallback contract, the optional
// retry policy and tracing.
type Client struct {
	b      backend
	log    *logger.Logger
	policy retryPolicy
	secret string
}

func newClient(b backend, cfg config.SummarizerConfig, log *logger.Logger) *Client {
	if log == nil {
		log = logger.Nop()
	}
	return &Client{
		b:      b,
		log:    log.With("service", "Summarizer", "backend", b.name()),
		policy: retryPolicy{maxRetries: cfg.MaxRetries, backoff: cfg.RetryBackoff.Duration, timeout: cfg.Timeout.Duration},
		secret: strings.TrimSpace(cfg.APIKey),
	}
}

func (c *Client) Summarize(ctx context.Context, p Payload) Result {
	ctx, span := otel.Tracer("medreport/summarizer").Start(ctx, "summarizer.Summarize")
	defer span.End()
	span.SetAttributes(
		attribute.String("summarizer.backend", c.b.name()),
		attribute.String("document.content_type", p.ContentType),
		attribute.Int("document.bytes", len(p.Bytes)),
	)

	summary, present, attempts, err := c.policy.run(ctx, c.log, func(actx context.Context) (string, bool, error) {
		return c.b.summarizeOnce(actx, p)
	})
	span.SetAttributes(attribute.Int("summarizer.attempts", attempts))

	if err != nil {
		reason := c.sanitize(describe(err))
		c.log.Warn("summarization failed", "attempts", attempts, "error", reason)
		span.RecordError(fmt.Errorf("%s", reason))
		span.SetStatus(codes.Error, "summarization failed")
		return Result{Summary: FallbackError, Warning: "API call failed: " + reason, Attempts: attempts, Backend: c.b.name()}
	}
	if !present {
		span.SetAttributes(attribute.Bool("summarizer.summary_missing", true))
		return Result{Summary: FallbackMissing, Attempts: attempts, Backend: c.b.name()}
	}
	return Result{Summary: summary, Attempts: attempts, Backend: c.b.name()}
}

// sanitize strips the credential from a message that may echo request details.
func (c *Client) sanitize(msg string) string {
	if c.secret != "" {
		msg = strings.ReplaceAll(msg, c.secret, "[REDACTED]")
	}
	return logger.Scrub(msg)
}
