package httpx

import (
	"log/slog"
	"net/http"

	"github.com/target/gatekeeper/internal/observability/statsd"
	"github.com/target/gatekeeper/internal/service"
)

// RouterServices holds all the services needed by the HTTP router.
type RouterServices struct {
	Identity  *service.IdentityResolver
	Accounts  *service.AccountService
	Admission *service.AdmissionController

	// RateLimitedRoutes lists route patterns ("POST /login") that pass the
	// admission controller. Each pattern is its own bucket namespace.
	RateLimitedRoutes []string
	TrustProxyHeaders bool
	AllowRegistration bool

	CookieName   string
	CookieDomain string
	LoginPath    string

	// App receives signed-in requests that match no gatekeeper route (optional).
	App http.Handler
	// AdminApp receives /admin/ requests from admins (optional).
	AdminApp http.Handler

	HealthChecks   map[string]HealthCheck
	MetricsHandler http.Handler
	Metrics        statsd.Sink
	Logger         *slog.Logger
}

type router struct {
	mux       *http.ServeMux
	services  RouterServices
	limited   map[string]bool
	logger    *slog.Logger
	admission AdmissionChecker
}

// NewRouter creates the gatekeeper routes wrapped in panic recovery, access
// logging and security headers. Principal resolution runs per route, behind
// the admission controller on rate limited patterns.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}
	rt := &router{
		mux:      http.NewServeMux(),
		services: services,
		limited:  make(map[string]bool, len(services.RateLimitedRoutes)),
		logger:   logger,
	}
	if services.Admission != nil {
		rt.admission = services.Admission
	}
	for _, p := range services.RateLimitedRoutes {
		rt.limited[p] = true
	}

	rt.registerAuthRoutes()
	rt.registerUserRoutes()
	rt.registerOpsRoutes()
	rt.registerAppRoutes()

	for p := range rt.limited {
		logger.Warn("rate limited route is not served by gatekeeper", "pattern", p)
	}

	var h http.Handler = rt.mux
	h = SecurityHeaders()(h)
	h = Logging(logger)(h)
	return Recover(logger)(h)
}

// handle registers h under pattern behind principal resolution. Rate limited
// patterns pass the admission controller first, so a throttled request never
// reaches token verification.
func (rt *router) handle(pattern string, h http.Handler) {
	h = Identify(rt.services.Identity, rt.services.CookieName)(h)
	if rt.limited[pattern] {
		delete(rt.limited, pattern)
		h = Admit(AdmissionConfig{
			Checker:           rt.admission,
			Namespace:         pattern,
			TrustProxyHeaders: rt.services.TrustProxyHeaders,
			Metrics:           rt.services.Metrics,
		})(h)
	}
	rt.mux.Handle(pattern, h)
}

func (rt *router) requireAdmin(h http.HandlerFunc) http.Handler {
	return RequireAdmin(rt.services.LoginPath, rt.services.Metrics)(h)
}

func (rt *router) registerAuthRoutes() {
	auth := &AuthHandlers{
		Svc:          rt.services.Identity,
		Accounts:     rt.services.Accounts,
		CookieName:   rt.services.CookieName,
		CookieDomain: rt.services.CookieDomain,
		Logger:       rt.logger,
	}
	rt.handle("POST /login", http.HandlerFunc(auth.Login))
	rt.handle("POST /logout", http.HandlerFunc(auth.Logout))
	rt.handle("GET /auth/status", http.HandlerFunc(auth.Status))
	if rt.services.AllowRegistration && rt.services.Accounts != nil {
		rt.handle("POST /register", http.HandlerFunc(auth.Register))
	}
}

func (rt *router) registerUserRoutes() {
	if rt.services.Accounts == nil {
		return
	}
	users := &UserHandlers{Svc: rt.services.Accounts, Logger: rt.logger}
	rt.handle("GET /api/admin/users", rt.requireAdmin(users.List))
	rt.handle("GET /api/admin/users/{id}", rt.requireAdmin(users.Get))
	rt.handle("PUT /api/admin/users/{id}/role", rt.requireAdmin(users.SetRole))
	rt.handle("DELETE /api/admin/users/{id}", rt.requireAdmin(users.Delete))
}

func (rt *router) registerOpsRoutes() {
	health := &HealthHandlers{Checks: rt.services.HealthChecks, Logger: rt.logger}
	// GET patterns also match HEAD.
	rt.handle("GET /healthz", http.HandlerFunc(health.Health))
	if rt.services.MetricsHandler != nil {
		rt.handle("GET /metrics", rt.services.MetricsHandler)
	}
}

func (rt *router) registerAppRoutes() {
	if rt.services.AdminApp != nil {
		rt.handle("/admin/", RequireAdmin(rt.services.LoginPath, rt.services.Metrics)(rt.services.AdminApp))
	}
	if rt.services.App != nil {
		rt.handle("/", RequireAuthenticated(rt.services.LoginPath, rt.services.Metrics)(rt.services.App))
	}
}
