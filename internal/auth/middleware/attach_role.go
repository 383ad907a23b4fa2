package auth

import (
	"context"
	"errors"
	"net/http"

	"github.com/mind-engage/skillway/internal/apierr"
	"github.com/mind-engage/skillway/internal/content"
	"github.com/mind-engage/skillway/internal/rbac"
)

type UserGetter interface {
	GetUser(ctx context.Context, uid string) (content.User, error)
}

// AttachCaller loads the token subject from the store and puts the caller
// and its role in the request context. The store role is authoritative.
// Runs after JWTMiddleware.
func AttachCaller(users UserGetter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sub := SubjectFromContext(ctx)
			if sub == "" {
				apierr.Write(w, r, apierr.Unauthorized(errors.New("no subject")))
				return
			}
			u, err := users.GetUser(ctx, sub)
			switch {
			case errors.Is(err, content.ErrNotFound):
				apierr.Write(w, r, apierr.Unauthorized(errors.New("account no longer exists")))
				return
			case err != nil:
				apierr.Write(w, r, err)
				return
			}
			c := content.Caller{UID: u.UID, Email: u.Email, Role: u.Role, Grade: u.Grade}
			ctx = rbac.WithRole(WithCaller(ctx, c), u.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
