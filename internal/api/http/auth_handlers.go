package http

import (
	"net/http"

	auth "github.com/mind-engage/skillway/internal/auth/middleware"
	"github.com/mind-engage/skillway/internal/logger"
)

// POST /auth/register {email,password,displayName,grade}
func RegisterHandler(acc *auth.Accounts, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.RegisterInput
		if err := bind(w, r, &req, 0); err != nil {
			fail(w, r, log, err)
			return
		}
		s, err := acc.Register(r.Context(), req)
		if err != nil {
			fail(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// POST /auth/login {email,password}
func LoginHandler(acc *auth.Accounts, log *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req auth.LoginInput
		if err := bind(w, r, &req, 0); err != nil {
			fail(w, r, log, err)
			return
		}
		s, err := acc.Login(r.Context(), req)
		if err != nil {
			fail(w, r, log, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}
