package httpx

import (
	"context"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/require"
	"github.com/target/gatekeeper/internal/adapters/ratelimit"
	"github.com/target/gatekeeper/internal/adapters/sessiontoken"
	"github.com/target/gatekeeper/internal/clock"
	domainauth "github.com/target/gatekeeper/internal/domain/auth"
	mockauth "github.com/target/gatekeeper/internal/mocks/auth"
	"github.com/target/gatekeeper/internal/service"
)

var gatewayNow = time.Date(2026, 3, 9, 14, 0, 0, 0, time.UTC)

// gateway wires the router to real services over in-memory stores.
type gateway struct {
	handler     http.Handler
	users       *mockauth.MemoryUserStore
	hasher      *mockauth.StubHasher
	revocations *mockauth.MemoryRevocations
	clock       *clock.Fixed
	codec       *sessiontoken.Codec
}

func newGateway(t *testing.T, customize ...func(*RouterServices)) *gateway {
	t.Helper()
	c := clock.NewFixed(gatewayNow)
	key, err := sessiontoken.NewSigningKey([]byte("gateway-test-signing-key-0123456789"))
	require.NoError(t, err)
	codec, err := sessiontoken.New(sessiontoken.Options{Key: key, Clock: c})
	require.NoError(t, err)

	g := &gateway{
		users:       mockauth.NewMemoryUserStore(),
		hasher:      &mockauth.StubHasher{},
		revocations: mockauth.NewMemoryRevocations(),
		clock:       c,
		codec:       codec,
	}
	identity := service.NewIdentityResolver(service.IdentityResolverOptions{
		Users:       g.users,
		Hasher:      g.hasher,
		Tokens:      codec,
		Revocations: g.revocations,
		Clock:       c,
		TokenTTL:    time.Hour,
	})
	accounts := service.NewAccountService(service.AccountServiceOptions{Users: g.users, Hasher: g.hasher})
	admission := service.NewAdmissionController(service.AdmissionControllerOptions{
		Store: ratelimit.NewMemoryStore(ratelimit.Config{Capacity: 5, RefillInterval: time.Second}, c),
	})

	services := RouterServices{
		Identity:          identity,
		Accounts:          accounts,
		Admission:         admission,
		RateLimitedRoutes: []string{"POST /login", "POST /register"},
		AllowRegistration: true,
		LoginPath:         "/login",
		App: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "app:"+PrincipalFromContext(r.Context()).String())
		}),
		AdminApp: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, "admin area")
		}),
		HealthChecks: map[string]HealthCheck{
			"postgres": func(context.Context) error { return nil },
		},
	}
	for _, fn := range customize {
		fn(&services)
	}
	g.handler = NewRouter(services)
	return g
}

// login signs in over the JSON API and returns the session token from the cookie.
func (g *gateway) login(t *testing.T, username, password string) string {
	t.Helper()
	res := apitest.New().
		Handler(g.handler).
		Post("/login").
		JSON(`{"username":"` + username + `","password":"` + password + `"}`).
		Expect(t).
		Status(http.StatusOK).
		CookiePresent(DefaultCookieName).
		End()
	for _, c := range res.Response.Cookies() {
		if c.Name == DefaultCookieName {
			return c.Value
		}
	}
	t.Fatal("session cookie missing")
	return ""
}

func (g *gateway) seed(username, password string, role domainauth.Role) int64 {
	return g.users.Seed(username, "stub$"+password, role)
}

func bearer(token string) string { return "Bearer " + strings.TrimSpace(token) }
