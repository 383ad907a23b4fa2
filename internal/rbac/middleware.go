package rbac

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/mind-engage/skillway/internal/apierr"
	"github.com/mind-engage/skillway/internal/content"
)

var defaultChecker = NewChecker(nil)

func forbid(w http.ResponseWriter, r *http.Request, role content.Role) {
	if role == "" {
		apierr.Write(w, r, apierr.Unauthorized(errors.New("no role in context")))
		return
	}
	apierr.Write(w, r, apierr.Forbidden(fmt.Errorf("role %s lacks permission", role)))
}

// Require enforces a single permission.
func Require(perm string) func(http.Handler) http.Handler {
	return defaultChecker.Require(perm)
}

// RequireAny enforces that the role has at least one of the permissions.
func RequireAny(perms ...string) func(http.Handler) http.Handler {
	return defaultChecker.RequireAny(perms...)
}

func (c *Checker) Require(perm string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" || !c.Has(role, perm) {
				forbid(w, r, role)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (c *Checker) RequireAny(perms ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := RoleFromContext(r.Context())
			if role == "" || !c.Any(role, perms...) {
				forbid(w, r, role)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
