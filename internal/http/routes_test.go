package httpx

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	domainauth "github.com/target/gatekeeper/internal/domain/auth"
)

func TestRouter_UserIsForbiddenOnAdminRoutes_AdminProceeds(t *testing.T) {
	g := newGateway(t)
	g.seed("user@example.com", "user-password", domainauth.RoleUser)
	g.seed("admin@example.com", "admin-password", domainauth.RoleAdmin)

	userToken := g.login(t, "user@example.com", "user-password")
	adminToken := g.login(t, "admin@example.com", "admin-password")

	apitest.New().
		Handler(g.handler).
		Get("/auth/status").
		Cookie(DefaultCookieName, userToken).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.authenticated", true)).
		Assert(jsonpath.Equal("$.role", "user")).
		End()

	apitest.New().
		Handler(g.handler).
		Get("/api/admin/users").
		Cookie(DefaultCookieName, userToken).
		Expect(t).
		Status(http.StatusForbidden).
		Assert(jsonpath.Equal("$.error", "insufficient_permissions")).
		End()

	apitest.New().
		Handler(g.handler).
		Get("/admin/reports").
		Header("Accept", "text/html").
		Cookie(DefaultCookieName, userToken).
		Expect(t).
		Status(http.StatusForbidden).
		End()

	apitest.New().
		Handler(g.handler).
		Get("/api/admin/users").
		Cookie(DefaultCookieName, adminToken).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len("$.users", 2)).
		End()

	apitest.New().
		Handler(g.handler).
		Get("/admin/reports").
		Header("Authorization", bearer(adminToken)).
		Expect(t).
		Status(http.StatusOK).
		Body("admin area").
		End()
}

func TestRouter_AnonymousRequests(t *testing.T) {
	g := newGateway(t)

	t.Run("browser is redirected to login with the original path", func(t *testing.T) {
		apitest.New().
			Handler(g.handler).
			Get("/reports").
			Query("month", "3").
			Header("Accept", "text/html").
			Expect(t).
			Status(http.StatusSeeOther).
			Header("Location", "/login?redirect_uri=%2Freports%3Fmonth%3D3").
			End()
	})

	t.Run("api caller gets 401", func(t *testing.T) {
		apitest.New().
			Handler(g.handler).
			Get("/api/admin/users").
			Expect(t).
			Status(http.StatusUnauthorized).
			Assert(jsonpath.Equal("$.error", "authentication_required")).
			Assert(jsonpath.Equal("$.location", "/login?redirect_uri=%2Fapi%2Fadmin%2Fusers")).
			End()
	})

	t.Run("anonymous is never forbidden on admin pages", func(t *testing.T) {
		apitest.New().
			Handler(g.handler).
			Get("/admin/").
			Header("Accept", "text/html").
			Expect(t).
			Status(http.StatusSeeOther).
			End()
	})

	t.Run("tampered token is anonymous", func(t *testing.T) {
		apitest.New().
			Handler(g.handler).
			Get("/auth/status").
			Header("Authorization", bearer("eyJhbGciOiJIUzI1NiJ9.e30.AAAA")).
			Expect(t).
			Status(http.StatusOK).
			Assert(jsonpath.Equal("$.authenticated", false)).
			End()
	})
}

func TestRouter_ExpiredSessionIsAnonymous(t *testing.T) {
	g := newGateway(t)
	g.seed("user@example.com", "user-password", domainauth.RoleUser)
	token := g.login(t, "user@example.com", "user-password")

	g.clock.Advance(time.Hour)

	apitest.New().
		Handler(g.handler).
		Get("/dashboard").
		Header("Accept", "text/html").
		Cookie(DefaultCookieName, token).
		Expect(t).
		Status(http.StatusSeeOther).
		End()
}

func TestLogin_CookieAttributes(t *testing.T) {
	g := newGateway(t)
	g.seed("user@example.com", "user-password", domainauth.RoleUser)

	res := apitest.New().
		Handler(g.handler).
		Post("/login").
		Header("X-Forwarded-Proto", "https").
		JSON(`{"username":"user@example.com","password":"user-password"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Present("$.token")).
		Assert(jsonpath.Equal("$.role", "user")).
		End()

	cookies := res.Response.Cookies()
	if assert.Len(t, cookies, 1) {
		c := cookies[0]
		assert.Equal(t, DefaultCookieName, c.Name)
		assert.True(t, c.HttpOnly)
		assert.True(t, c.Secure)
		assert.Equal(t, http.SameSiteStrictMode, c.SameSite)
		assert.Equal(t, "/", c.Path)
		assert.Equal(t, int(time.Hour.Seconds()), c.MaxAge)
	}
}

func TestLogin_FailuresLookIdentical(t *testing.T) {
	g := newGateway(t)
	g.seed("user@example.com", "user-password", domainauth.RoleUser)
	g.seed("locked@example.com", "locked-password", domainauth.RoleNone)

	const want = `{"error":"invalid_credentials","message":"invalid credentials"}`
	for name, body := range map[string]string{
		"wrong password": `{"username":"user@example.com","password":"nope-nope"}`,
		"unknown user":   `{"username":"ghost@example.com","password":"nope-nope"}`,
		"role none":      `{"username":"locked@example.com","password":"locked-password"}`,
	} {
		t.Run(name, func(t *testing.T) {
			apitest.New().
				Handler(g.handler).
				Post("/login").
				JSON(body).
				Expect(t).
				Status(http.StatusUnauthorized).
				Body(want).
				CookieNotPresent(DefaultCookieName).
				End()
		})
	}
}

func TestLogin_FormRedirectsToSafePath(t *testing.T) {
	g := newGateway(t)
	g.seed("user@example.com", "user-password", domainauth.RoleUser)

	cases := map[string]string{
		"/reports?month=3":      "/reports?month=3",
		"//evil.example.com/x":  "/",
		"https://evil.example/": "/",
		"":                      "/",
	}
	for redirect, want := range cases {
		t.Run(redirect, func(t *testing.T) {
			apitest.New().
				Handler(g.handler).
				Post("/login").
				FormData("username", "user@example.com").
				FormData("password", "user-password").
				FormData("redirect_uri", redirect).
				Expect(t).
				Status(http.StatusSeeOther).
				Header("Location", want).
				CookiePresent(DefaultCookieName).
				End()
		})
	}
}

func TestLogin_ThrottledBeforeHashing(t *testing.T) {
	g := newGateway(t)
	g.seed("user@example.com", "user-password", domainauth.RoleUser)

	for range 5 {
		apitest.New().
			Handler(g.handler).
			Post("/login").
			JSON(`{"username":"user@example.com","password":"wrong-password"}`).
			Expect(t).
			Status(http.StatusUnauthorized).
			End()
	}

	apitest.New().
		Handler(g.handler).
		Post("/login").
		JSON(`{"username":"user@example.com","password":"user-password"}`).
		Expect(t).
		Status(http.StatusTooManyRequests).
		Header("Retry-After", "1").
		Assert(jsonpath.Equal("$.error", "too_many_requests")).
		End()
	assert.Equal(t, int64(5), g.hasher.VerifyCalls())

	// Registration has its own bucket.
	apitest.New().
		Handler(g.handler).
		Post("/register").
		JSON(`{"username":"new@example.com","password":"new-password","confirm_password":"new-password"}`).
		Expect(t).
		Status(http.StatusCreated).
		End()

	g.clock.Advance(time.Second)
	g.login(t, "user@example.com", "user-password")
}

func TestLogin_ThrottledBeforeTokenResolution(t *testing.T) {
	g := newGateway(t)
	id := g.seed("user@example.com", "user-password", domainauth.RoleUser)
	tok, err := g.codec.Issue(id, domainauth.RoleUser, time.Hour)
	require.NoError(t, err)

	statuses := make([]int, 0, 7)
	for range 7 {
		res := apitest.New().
			Handler(g.handler).
			Post("/login").
			Header("Authorization", bearer(tok.Value)).
			JSON(`{"username":"user@example.com","password":"wrong-password"}`).
			Expect(t).
			End()
		statuses = append(statuses, res.Response.StatusCode)
	}

	assert.Equal(t, []int{401, 401, 401, 401, 401, 429, 429}, statuses)
	assert.Equal(t, int64(5), g.revocations.Lookups())
}

func TestLogin_StoreFailures(t *testing.T) {
	g := newGateway(t)
	g.users.Seed("broken@example.com", "garbage", domainauth.RoleUser)

	apitest.New().
		Handler(g.handler).
		Post("/login").
		JSON(`{"username":"broken@example.com","password":"whatever1"}`).
		Expect(t).
		Status(http.StatusInternalServerError).
		Assert(jsonpath.Equal("$.error", "internal_error")).
		End()

	g.users.FindFunc = func(context.Context, string) (*domainauth.UserRecord, error) {
		return nil, assert.AnError
	}
	apitest.New().
		Handler(g.handler).
		Post("/login").
		JSON(`{"username":"user@example.com","password":"whatever1"}`).
		Expect(t).
		Status(http.StatusServiceUnavailable).
		Header("Retry-After", "1").
		End()
}

func TestLogout_RevokesSession(t *testing.T) {
	g := newGateway(t)
	g.seed("user@example.com", "user-password", domainauth.RoleUser)
	token := g.login(t, "user@example.com", "user-password")

	res := apitest.New().
		Handler(g.handler).
		Post("/logout").
		Header("Accept", "application/json").
		Cookie(DefaultCookieName, token).
		Expect(t).
		Status(http.StatusOK).
		End()
	if cookies := res.Response.Cookies(); assert.Len(t, cookies, 1) {
		assert.Equal(t, -1, cookies[0].MaxAge)
	}

	apitest.New().
		Handler(g.handler).
		Get("/auth/status").
		Header("Authorization", bearer(token)).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.authenticated", false)).
		End()
}

func TestLogout_BrowserRedirects(t *testing.T) {
	g := newGateway(t)

	apitest.New().
		Handler(g.handler).
		Post("/logout").
		FormData("redirect_uri", "/goodbye").
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/goodbye").
		End()
}

func TestRegister(t *testing.T) {
	g := newGateway(t)

	apitest.New().
		Handler(g.handler).
		Post("/register").
		JSON(`{"username":" New@Example.com ","password":"password1","confirm_password":"password1"}`).
		Expect(t).
		Status(http.StatusCreated).
		Assert(jsonpath.Equal("$.username", "new@example.com")).
		Assert(jsonpath.Equal("$.role", "user")).
		Assert(jsonpath.NotPresent("$.password_hash")).
		End()

	apitest.New().
		Handler(g.handler).
		Post("/register").
		FormData("username", "new@example.com").
		FormData("password", "password1").
		FormData("confirm_password", "password1").
		Expect(t).
		Status(http.StatusConflict).
		End()

	apitest.New().
		Handler(g.handler).
		Post("/register").
		JSON(`{"username":"other@example.com","password":"password1","confirm_password":"password2"}`).
		Expect(t).
		Status(http.StatusBadRequest).
		Assert(jsonpath.Equal("$.field", "confirm_password")).
		End()

	apitest.New().
		Handler(g.handler).
		Post("/register").
		JSON(`{"username":"other@example.com","password":"short","confirm_password":"short"}`).
		Expect(t).
		Status(http.StatusBadRequest).
		Assert(jsonpath.Equal("$.field", "password")).
		End()

	apitest.New().
		Handler(g.handler).
		Post("/register").
		JSON(`{"username":"x@example.com","password":"password1","confirm_password":"password1","role":"admin"}`).
		Expect(t).
		Status(http.StatusBadRequest).
		Assert(jsonpath.Equal("$.error", "invalid_json")).
		End()
}

func TestRegister_Disabled(t *testing.T) {
	g := newGateway(t, func(s *RouterServices) {
		s.AllowRegistration = false
		s.App = nil
	})

	apitest.New().
		Handler(g.handler).
		Post("/register").
		JSON(`{"username":"new@example.com","password":"password1","confirm_password":"password1"}`).
		Expect(t).
		Status(http.StatusNotFound).
		End()
}

func TestRouter_SecurityHeaders(t *testing.T) {
	g := newGateway(t)

	apitest.New().
		Handler(g.handler).
		Get("/healthz").
		Expect(t).
		Status(http.StatusOK).
		Header("X-Content-Type-Options", "nosniff").
		Header("X-Frame-Options", "DENY").
		Header("Referrer-Policy", "strict-origin-when-cross-origin").
		HeaderPresent("Content-Security-Policy").
		HeaderNotPresent("Strict-Transport-Security").
		End()
}

func TestRouter_Metrics(t *testing.T) {
	g := newGateway(t, func(s *RouterServices) {
		s.MetricsHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte("# metrics"))
		})
	})

	apitest.New().
		Handler(g.handler).
		Get("/metrics").
		Expect(t).
		Status(http.StatusOK).
		Body("# metrics").
		End()
}
