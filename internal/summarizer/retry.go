package summarizer

import (
	"context"
	"errors"
	"time"

	"github.com/yungbote/medreport-backend/internal/platform/httpx"
	"github.com/yungbote/medreport-backend/internal/platform/logger"
)

type retryPolicy struct {
	maxRetries int
	backoff    time.Duration
	timeout    time.Duration
}

type attemptFunc func(ctx context.Context) (string, bool, error)

// run makes one attempt, plus up to maxRetries more for retryable failures.
// Each attempt gets its own timeout.
func (p retryPolicy) run(ctx context.Context, log *logger.Logger, fn attemptFunc) (string, bool, int, error) {
	backoff := p.backoff
	if backoff <= 0 {
		backoff = 500 * time.Millisecond
	}
	maxRetries := p.maxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", false, attempt, err
		}

		actx, cancel := ctx, context.CancelFunc(func() {})
		if p.timeout > 0 {
			actx, cancel = context.WithTimeout(ctx, p.timeout)
		}
		summary, present, err := fn(actx)
		cancel()
		if err == nil {
			return summary, present, attempt + 1, nil
		}
		lastErr = err

		if attempt == maxRetries || !httpx.IsRetryableError(err) {
			return "", false, attempt + 1, err
		}

		sleepFor := httpx.JitterSleep(backoff)
		var he *HTTPError
		if errors.As(err, &he) && he.StatusCode == 429 {
			sleepFor = httpx.JitterSleep(2 * backoff)
		}
		log.Warn("summarization retrying",
			"attempt", attempt+1,
			"max_retries", maxRetries,
			"sleep", sleepFor.String(),
			"error", describe(err),
		)
		if err := httpx.Sleep(ctx, sleepFor); err != nil {
			return "", false, attempt + 1, err
		}
		backoff *= 2
	}
	return "", false, maxRetries + 1, lastErr
}
