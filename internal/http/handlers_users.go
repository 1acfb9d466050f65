package httpx

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	domainauth "github.com/target/gatekeeper/internal/domain/auth"
)

// UserAdminService is the account management surface behind the admin API.
// *service.AccountService implements it.
type UserAdminService interface {
	ListUsers(ctx context.Context, limit, offset int) ([]*domainauth.UserRecord, error)
	GetUser(ctx context.Context, id int64) (*domainauth.UserRecord, error)
	SetRole(ctx context.Context, actor domainauth.Principal, id int64, role domainauth.Role) (*domainauth.UserRecord, error)
	DeleteUser(ctx context.Context, actor domainauth.Principal, id int64) error
}

// UserHandlers serves /api/admin/users. Every route is admin-guarded by the router.
type UserHandlers struct {
	Svc    UserAdminService
	Logger *slog.Logger
}

func (h *UserHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

const (
	defaultUserPageSize = 50
	maxUserPageSize     = 200
)

// List handles GET /api/admin/users?limit=&offset=.
func (h *UserHandlers) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := ParseLimitOffset(r, defaultUserPageSize, maxUserPageSize)
	users, err := h.Svc.ListUsers(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	if users == nil {
		users = []*domainauth.UserRecord{}
	}
	WriteJSON(w, http.StatusOK, map[string]any{
		"users":  users,
		"limit":  limit,
		"offset": offset,
	})
}

// Get handles GET /api/admin/users/{id}.
func (h *UserHandlers) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	rec, err := h.Svc.GetUser(r.Context(), id)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

type setRoleRequest struct {
	Role string `json:"role"`
}

// SetRole handles PUT /api/admin/users/{id}/role.
func (h *UserHandlers) SetRole(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var in setRoleRequest
	if !DecodeJSON(w, r, &in) {
		return
	}
	role, valid := domainauth.ParseRole(in.Role)
	if !valid {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: "validation",
			Err:     errors.New("unknown role"),
			Field:   "role",
		})
		return
	}

	rec, err := h.Svc.SetRole(r.Context(), PrincipalFromContext(r.Context()), id, role)
	if err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	WriteJSON(w, http.StatusOK, rec)
}

// Delete handles DELETE /api/admin/users/{id}.
func (h *UserHandlers) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.Svc.DeleteUser(r.Context(), PrincipalFromContext(r.Context()), id); err != nil {
		writeServiceError(w, r, h.logger(), err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
