package notify

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetry_StopsOnSuccess(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, func(context.Context) error {
		calls++
		if calls < 2 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

func TestRetry_ReturnsLastError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 1, func(context.Context) error {
		calls++
		return errors.New("boom")
	})
	require.EqualError(t, err, "boom")
	assert.Equal(t, 2, calls)
}

func TestRetry_HonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := Retry(ctx, 5, func(context.Context) error { return errors.New("boom") })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestConsumeResponse(t *testing.T) {
	ok := &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("ok"))}
	require.NoError(t, ConsumeResponse(ok, "slack"))

	bad := &http.Response{
		StatusCode: http.StatusBadRequest,
		Status:     "400 Bad Request",
		Body:       io.NopCloser(strings.NewReader(" invalid_payload \n")),
	}
	err := ConsumeResponse(bad, "slack")
	require.Error(t, err)
	assert.Equal(t, "slack 400 Bad Request: invalid_payload", err.Error())
}

func TestSafeHTTPClient_RefusesLoopback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	resp, err := SafeHTTPClient(time.Second).Get(srv.URL)
	if resp != nil {
		_ = resp.Body.Close()
	}
	assert.Error(t, err)
}

func TestFallbackString(t *testing.T) {
	assert.Equal(t, "gatekeeper", FallbackString("  ", "gatekeeper"))
	assert.Equal(t, "ops", FallbackString("ops", "gatekeeper"))
}
