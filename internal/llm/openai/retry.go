package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/joseph-ayodele/bloodwork-tracker/internal/common"
	"github.com/joseph-ayodele/bloodwork-tracker/internal/llm"
)

// chatCompletion posts body to /chat/completions, retrying transient failures with
// exponential backoff. Each attempt gets its own timeout.
func (c *Client) chatCompletion(ctx context.Context, op string, body map[string]any) ([]byte, error) {
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions"
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.cfg.RetryInitialInterval
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(c.cfg.MaxRetries)), ctx)

	attempt := 0
	var raw []byte
	err := backoff.RetryNotify(func() error {
		attempt++
		actx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()

		out, _, err := llm.SendJSON(actx, c.http, endpoint, body, headers, c.logger)
		if err == nil {
			raw = out
			return nil
		}
		if ctx.Err() != nil || !isTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		c.logger.Warn("llm."+op+".retry",
			"attempt", attempt,
			"wait_ms", wait.Milliseconds(),
			"error", err,
		)
	})
	if err != nil {
		return nil, fmt.Errorf("openai %s after %d attempt(s): %w: %w", op, attempt, err, common.ErrUpstream)
	}
	return raw, nil
}

// isTransient separates network trouble, timeouts, 429 and 5xx from everything else.
func isTransient(err error) bool {
	var se *llm.StatusError
	if errors.As(err, &se) {
		return se.Transient()
	}
	if errors.Is(err, llm.ErrRequest) {
		return false
	}
	// an attempt that hit its own deadline, or a connection that dropped mid-body
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne)
}
