package httpx

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/assert"
)

func TestHealthHandler(t *testing.T) {
	h := &HealthHandlers{}

	t.Run("GET", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Health(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	})

	t.Run("HEAD", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.Health(rec, httptest.NewRequest(http.MethodHead, "/healthz", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, rec.Body.String())
	})
}

func TestHealthHandler_DegradedDependency(t *testing.T) {
	g := newGateway(t, func(s *RouterServices) {
		s.HealthChecks["redis"] = func(context.Context) error { return errors.New("connection refused") }
	})

	apitest.New().
		Handler(g.handler).
		Get("/healthz").
		Expect(t).
		Status(http.StatusServiceUnavailable).
		Assert(jsonpath.Equal("$.status", "degraded")).
		Assert(jsonpath.Equal("$.checks.postgres", "ok")).
		Assert(jsonpath.Equal("$.checks.redis", "unavailable")).
		End()
}
