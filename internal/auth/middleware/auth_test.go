package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/skillway/internal/apierr"
	"github.com/mind-engage/skillway/internal/content"
	"github.com/mind-engage/skillway/internal/db"
	"github.com/mind-engage/skillway/internal/logger"
	"github.com/mind-engage/skillway/internal/rbac"
)

func TestTokenRoundTrip(t *testing.T) {
	a := NewAuthService("s3cret", time.Hour)
	tok, err := a.IssueJWT("u1", "a@b.uz")
	require.NoError(t, err)

	c, err := a.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, "u1", c.Subject)
	assert.Equal(t, "a@b.uz", c.Email)

	_, err = NewAuthService("other", time.Hour).Parse(tok)
	assert.Error(t, err)
}

func TestTokenExpires(t *testing.T) {
	a := NewAuthService("s3cret", time.Hour)
	start := time.Now()
	a.now = func() time.Time { return start }
	tok, err := a.IssueJWT("u1", "a@b.uz")
	require.NoError(t, err)

	a.now = func() time.Time { return start.Add(2 * time.Hour) }
	_, err = a.Parse(tok)
	assert.Error(t, err)
}

func newStore(t *testing.T) *content.SQLStore {
	t.Helper()
	h, err := db.OpenMemory(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return content.NewSQLStore(h)
}

func TestMiddlewareChain(t *testing.T) {
	store := newStore(t)
	require.NoError(t, store.CreateUser(context.Background(), content.User{
		UID: "t1", Email: "t@x.uz", Role: content.RoleTeacher, Grade: 0,
	}))
	a := NewAuthService("s3cret", time.Hour)

	var got content.Caller
	var role content.Role
	h := JWTMiddleware(a)(AttachCaller(store)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = CallerFromContext(r.Context())
		role = rbac.RoleFromContext(r.Context())
	})))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"unauthorized"`)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer not-a-token")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid token for a deleted or unknown account.
	tok, _ := a.IssueJWT("ghost", "g@x.uz")
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tok, _ = a.IssueJWT("t1", "t@x.uz")
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, content.Caller{UID: "t1", Email: "t@x.uz", Role: content.RoleTeacher}, got)
	assert.Equal(t, content.RoleTeacher, role)
}

func newAccounts(t *testing.T, opts ...AccountsOption) (*Accounts, *content.SQLStore, *AuthService) {
	t.Helper()
	store := newStore(t)
	tokens := NewAuthService("s3cret", time.Hour)
	opts = append([]AccountsOption{WithBcryptCost(bcrypt.MinCost)}, opts...)
	return NewAccounts(store, tokens, logger.Nop(), opts...), store, tokens
}

func TestRegisterAndLogin(t *testing.T) {
	acc, store, tokens := newAccounts(t)
	ctx := context.Background()

	s, err := acc.Register(ctx, RegisterInput{Email: " Ali@Maktab.uz ", Password: "parol123", DisplayName: "Ali", Grade: 6})
	require.NoError(t, err)
	assert.Equal(t, content.RoleStudent, s.Role)
	c, err := tokens.Parse(s.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, s.UID, c.Subject)

	u, err := store.GetUser(ctx, s.UID)
	require.NoError(t, err)
	assert.Equal(t, "ali@maktab.uz", u.Email)
	assert.Equal(t, 6, u.Grade)
	assert.NotEqual(t, "parol123", u.PasswordHash)

	_, err = acc.Register(ctx, RegisterInput{Email: "ali@maktab.uz", Password: "x12345", DisplayName: "A2", Grade: 5})
	assert.True(t, apierr.HasCode(err, apierr.CodeValidation))

	l, err := acc.Login(ctx, LoginInput{Email: "ALI@maktab.uz", Password: "parol123"})
	require.NoError(t, err)
	assert.Equal(t, s.UID, l.UID)

	_, err = acc.Login(ctx, LoginInput{Email: "ali@maktab.uz", Password: "wrong"})
	assert.True(t, apierr.HasCode(err, apierr.CodeUnauthorized))
	_, err = acc.Login(ctx, LoginInput{Email: "nobody@maktab.uz", Password: "parol123"})
	assert.True(t, apierr.HasCode(err, apierr.CodeUnauthorized))
}

func TestLoginPromotesAdminEmail(t *testing.T) {
	acc, store, _ := newAccounts(t, WithAdminEmail("Boss@Maktab.uz"))
	ctx := context.Background()

	s, err := acc.Register(ctx, RegisterInput{Email: "boss@maktab.uz", Password: "parol123", DisplayName: "Boss", Grade: 11})
	require.NoError(t, err)
	assert.Equal(t, content.RoleStudent, s.Role)

	l, err := acc.Login(ctx, LoginInput{Email: "boss@maktab.uz", Password: "parol123"})
	require.NoError(t, err)
	assert.Equal(t, content.RoleAdmin, l.Role)

	u, err := store.GetUser(ctx, s.UID)
	require.NoError(t, err)
	assert.Equal(t, content.RoleAdmin, u.Role)
}
