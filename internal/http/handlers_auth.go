package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	domainauth "github.com/target/gatekeeper/internal/domain/auth"
	"github.com/target/gatekeeper/internal/service"
)

// DefaultCookieName is the session cookie used when none is configured.
const DefaultCookieName = "token"

// AuthServiceInterface is the identity surface the auth handlers need.
type AuthServiceInterface interface {
	ResolveFromLogin(ctx context.Context, cred domainauth.Credential) (*service.LoginResult, error)
	Logout(ctx context.Context, token string) error
}

// RegistrationService creates self-service accounts.
type RegistrationService interface {
	Register(ctx context.Context, in service.RegisterInput) (*domainauth.UserRecord, error)
}

// AuthHandlers provides HTTP handlers for authentication operations.
type AuthHandlers struct {
	Svc          AuthServiceInterface
	Accounts     RegistrationService
	CookieName   string
	CookieDomain string
	Logger       *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

func (h *AuthHandlers) cookieName() string {
	if h.CookieName != "" {
		return h.CookieName
	}
	return DefaultCookieName
}

type loginRequest struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	RedirectURI string `json:"redirect_uri,omitempty"`
}

// Login checks credentials and sets the session cookie.
// POST /login with a form or JSON body.
//
// Browsers are redirected to redirect_uri (same-origin paths only); JSON
// clients receive the session details.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if !h.readLogin(w, r, &in) {
		return
	}

	res, err := h.Svc.ResolveFromLogin(r.Context(), domainauth.Credential{
		Identifier: in.Username,
		Password:   in.Password,
	})
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}

	h.setSessionCookie(w, r, res.Token)

	if wantsJSON(r) {
		WriteJSON(w, http.StatusOK, map[string]any{
			"authenticated": true,
			"user_id":       res.Principal.UserID,
			"role":          res.Principal.Role(),
			"token":         res.Token.Value,
			"expires_at":    res.Token.ExpiresAt,
		})
		return
	}
	http.Redirect(w, r, safeRedirectPath(in.RedirectURI), http.StatusSeeOther)
}

func (h *AuthHandlers) readLogin(w http.ResponseWriter, r *http.Request, in *loginRequest) bool {
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		return DecodeJSON(w, r, in)
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := r.ParseForm(); err != nil {
		WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_form", Err: err})
		return false
	}
	in.Username = r.PostForm.Get("username")
	in.Password = r.PostForm.Get("password")
	in.RedirectURI = r.FormValue("redirect_uri")
	return true
}

// Logout revokes the current session and clears the cookie.
// POST /logout.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	if token := sessionToken(r, h.cookieName()); token != "" {
		if err := h.Svc.Logout(r.Context(), token); err != nil {
			h.logger().WarnContext(r.Context(), "logout failed", "error", err)
		}
	}

	h.clearCookie(w, r)

	if wantsJSON(r) {
		WriteJSON(w, http.StatusOK, map[string]string{"status": "success"})
		return
	}
	http.Redirect(w, r, safeRedirectPath(r.FormValue("redirect_uri")), http.StatusSeeOther)
}

type registerRequest struct {
	Username        string `json:"username"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// Register creates a standard user account.
// POST /register with a form or JSON body.
func (h *AuthHandlers) Register(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if strings.HasPrefix(r.Header.Get("Content-Type"), "application/json") {
		if !DecodeJSON(w, r, &in) {
			return
		}
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		if err := r.ParseForm(); err != nil {
			WriteError(w, ErrorParams{Code: http.StatusBadRequest, ErrCode: "invalid_form", Err: err})
			return
		}
		in = registerRequest{
			Username:        r.PostForm.Get("username"),
			Password:        r.PostForm.Get("password"),
			ConfirmPassword: r.PostForm.Get("confirm_password"),
		}
	}

	rec, err := h.Accounts.Register(r.Context(), service.RegisterInput{
		Identifier:      in.Username,
		Password:        in.Password,
		ConfirmPassword: in.ConfirmPassword,
	})
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusCreated, rec)
}

// Status returns the current authentication status.
// GET /auth/status.
func (h *AuthHandlers) Status(w http.ResponseWriter, r *http.Request) {
	p := PrincipalFromContext(r.Context())
	if !p.IsAuthenticated() {
		WriteJSON(w, http.StatusOK, map[string]any{"authenticated": false})
		return
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"authenticated": true,
		"user_id":       p.UserID,
		"role":          p.Role(),
	})
}

// setSessionCookie writes the session cookie for the token's lifetime.
func (h *AuthHandlers) setSessionCookie(w http.ResponseWriter, r *http.Request, tok domainauth.IssuedToken) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName(),
		Value:    tok.Value,
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		SameSite: http.SameSiteStrictMode,
		MaxAge:   int(tok.ExpiresAt.Sub(tok.IssuedAt).Seconds()),
	})
}

// clearCookie clears the session cookie by setting it to expire immediately.
// It mirrors the attributes used when setting it.
func (h *AuthHandlers) clearCookie(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     h.cookieName(),
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		HttpOnly: true,
		Secure:   isSecureRequest(r),
		MaxAge:   -1,
		Expires:  time.Unix(0, 0).UTC(),
		SameSite: http.SameSiteStrictMode,
	})
}

// safeRedirectPath ensures the provided redirect is a same-origin relative path.
// Returns "/" when invalid.
func safeRedirectPath(candidate string) string {
	if p := domainauth.SafeRedirectPath(candidate); p != "" {
		return p
	}
	return "/"
}
