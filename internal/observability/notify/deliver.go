package notify

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// SafeHTTPClient returns a client that refuses private, loopback and
// link-local destinations after DNS resolution, on ports 80 and 443 only.
// Webhook URLs come from configuration and must not reach internal services.
func SafeHTTPClient(timeout time.Duration) *http.Client {
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes("http", "https").
		SetAllowedPorts(80, 443).
		Build()
	return safeurl.Client(cfg).Client
}

// Retry calls send up to retries+1 times with linear backoff, stopping early on ctx cancellation.
func Retry(ctx context.Context, retries int, send func(context.Context) error) error {
	attempts := max(retries, 0) + 1
	var lastErr error
	for attempt := range attempts {
		err := send(ctx)
		if err == nil {
			return nil
		}
		lastErr = err
		if attempt == attempts-1 {
			break
		}
		timer := time.NewTimer(time.Duration(attempt+1) * 200 * time.Millisecond)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}

// ConsumeResponse drains and closes resp, returning an error for non-2xx statuses.
// label names the remote service in error messages.
func ConsumeResponse(resp *http.Response, label string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, drainErr := io.Copy(io.Discard, resp.Body)
		closeErr := resp.Body.Close()
		if drainErr != nil {
			drainErr = fmt.Errorf("drain %s response body: %w", label, drainErr)
		}
		if closeErr != nil {
			closeErr = fmt.Errorf("close response body: %w", closeErr)
		}
		return errors.Join(drainErr, closeErr)
	}

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4096))
	closeErr := resp.Body.Close()
	if readErr != nil {
		return errors.Join(fmt.Errorf("read %s error response: %w", label, readErr), closeErr)
	}
	if closeErr != nil {
		return fmt.Errorf("close response body: %w", closeErr)
	}
	return fmt.Errorf("%s %s: %s", label, resp.Status, strings.TrimSpace(string(body)))
}

// FallbackString returns fallback when value is blank.
func FallbackString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
