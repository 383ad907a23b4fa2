package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mind-engage/skillway/internal/apierr"
	"github.com/mind-engage/skillway/internal/content"
	"github.com/mind-engage/skillway/internal/logger"
)

const recentAttempts = 20

// GET /api/me
func MeHandler(store content.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(w, r)
		if !ok {
			return
		}
		u, err := store.GetUser(r.Context(), c.UID)
		if err != nil {
			fail(w, r, log, err)
			return
		}
		attempts, err := store.ListAttempts(r.Context(), c.UID, recentAttempts)
		if err != nil {
			fail(w, r, log, err)
			return
		}
		if attempts == nil {
			attempts = []content.Attempt{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"user": u, "attempts": attempts})
	}
}

// GET /api/admin/users?role=
func ListUsersHandler(store content.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := content.Role(r.URL.Query().Get("role"))
		if role != "" && !role.Valid() {
			fail(w, r, log, apierr.Validationf("unknown role %q", role))
			return
		}
		users, err := store.ListUsers(r.Context(), role)
		if err != nil {
			fail(w, r, log, err)
			return
		}
		if users == nil {
			users = []content.User{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"users": users})
	}
}

type updateUserReq struct {
	Role  *string `json:"role,omitempty" validate:"omitempty,oneof=student teacher admin"`
	Grade *int    `json:"grade,omitempty" validate:"omitempty,min=1,max=11"`
}

// PATCH /api/admin/users/{uid} {role?,grade?}
// The last admin cannot be demoted.
func UpdateUserHandler(store content.Store, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := caller(w, r)
		if !ok {
			return
		}
		uid := chi.URLParam(r, "uid")
		var req updateUserReq
		if err := bind(w, r, &req, 0); err != nil {
			fail(w, r, log, err)
			return
		}
		if req.Role == nil && req.Grade == nil {
			fail(w, r, log, apierr.Validationf("nothing to update, send role or grade"))
			return
		}

		target, err := store.GetUser(r.Context(), uid)
		if errors.Is(err, content.ErrNotFound) {
			fail(w, r, log, apierr.NotFound(fmt.Errorf("user %s not found", uid)))
			return
		}
		if err != nil {
			fail(w, r, log, err)
			return
		}

		var patch content.UserPatch
		if req.Role != nil {
			role := content.Role(*req.Role)
			if target.Role == content.RoleAdmin && role != content.RoleAdmin {
				admins, err := store.ListUsers(r.Context(), content.RoleAdmin)
				if err != nil {
					fail(w, r, log, err)
					return
				}
				if len(admins) <= 1 {
					fail(w, r, log, apierr.Validationf("cannot demote the last admin"))
					return
				}
			}
			patch.Role = &role
		}
		patch.Grade = req.Grade

		u, err := store.UpdateUser(r.Context(), uid, patch)
		if err != nil {
			fail(w, r, log, err)
			return
		}
		log.Info("user updated", "by", c.UID, "uid", uid, "role", u.Role, "grade", u.Grade)
		writeJSON(w, http.StatusOK, u)
	}
}
