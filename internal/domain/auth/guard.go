package auth

import (
	"net/url"
	"sort"
	"strings"
)

// OutcomeKind is the transport-facing result of an authorization decision.
type OutcomeKind int

const (
	Proceed OutcomeKind = iota
	Redirect
	Forbidden
	Throttled
)

func (k OutcomeKind) String() string {
	switch k {
	case Proceed:
		return "proceed"
	case Redirect:
		return "redirect"
	case Forbidden:
		return "forbidden"
	case Throttled:
		return "throttled"
	default:
		return "unknown"
	}
}

// Outcome tells the transport how to answer a request.
// Location is set only for Redirect; Principal only for Proceed.
type Outcome struct {
	Kind      OutcomeKind
	Principal Principal
	Location  string
}

// ProceedWith allows the handler to run with p.
func ProceedWith(p Principal) Outcome { return Outcome{Kind: Proceed, Principal: p} }

// RedirectTo sends the caller to location.
func RedirectTo(location string) Outcome { return Outcome{Kind: Redirect, Location: location} }

// Deny refuses an authenticated caller.
func Deny() Outcome { return Outcome{Kind: Forbidden} }

// Throttle rejects a caller for exceeding the admission budget.
func Throttle() Outcome { return Outcome{Kind: Throttled} }

// Guard inspects a principal before a handler runs.
type Guard interface {
	// Check returns Proceed or a terminal outcome. path is the original request path.
	Check(p Principal, path string) Outcome
	rank() int
}

// DefaultLoginPath is used when AuthenticatedGuard has no LoginPath.
const DefaultLoginPath = "/login"

// AuthenticatedGuard requires any signed-in principal; anonymous callers are redirected to login.
type AuthenticatedGuard struct {
	LoginPath string
}

func (g AuthenticatedGuard) Check(p Principal, path string) Outcome {
	if p.IsAuthenticated() {
		return ProceedWith(p)
	}
	return RedirectTo(LoginLocation(g.LoginPath, path))
}

func (AuthenticatedGuard) rank() int { return 0 }

// AdminGuard requires an Admin principal. A signed-in non-admin is Forbidden.
// An anonymous caller is always sent to login, never Forbidden.
type AdminGuard struct {
	LoginPath string
}

func (g AdminGuard) Check(p Principal, path string) Outcome {
	switch {
	case p.IsAdmin():
		return ProceedWith(p)
	case p.IsAuthenticated():
		return Deny()
	default:
		return RedirectTo(LoginLocation(g.LoginPath, path))
	}
}

func (AdminGuard) rank() int { return 1 }

// Evaluate runs guards in their fixed order (authentication before privilege),
// independent of the order they are passed in. The first non-Proceed outcome wins.
func Evaluate(p Principal, path string, guards ...Guard) Outcome {
	ordered := make([]Guard, len(guards))
	copy(ordered, guards)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].rank() < ordered[j].rank() })

	for _, g := range ordered {
		if out := g.Check(p, path); out.Kind != Proceed {
			return out
		}
	}
	return ProceedWith(p)
}

// LoginLocation builds the login redirect, carrying the original path when it is a safe local path.
func LoginLocation(loginPath, original string) string {
	if loginPath == "" {
		loginPath = DefaultLoginPath
	}
	dest := SafeRedirectPath(original)
	if dest == "" || dest == loginPath {
		return loginPath
	}
	return loginPath + "?redirect_uri=" + url.QueryEscape(dest)
}

// SafeRedirectPath returns p if it is a same-origin absolute path, otherwise "".
func SafeRedirectPath(p string) string {
	if p == "" || !strings.HasPrefix(p, "/") || strings.HasPrefix(p, "//") || strings.Contains(p, "\\") {
		return ""
	}
	u, err := url.Parse(p)
	if err != nil || u.IsAbs() || u.Host != "" {
		return ""
	}
	return p
}
