package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/skillway/internal/apierr"
	"github.com/mind-engage/skillway/internal/content"
	"github.com/mind-engage/skillway/internal/logger"
)

const DefaultBcryptCost = 12

var errBadCredentials = errors.New("invalid email or password")

type RegisterInput struct {
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=6,max=72"`
	DisplayName string `json:"displayName" validate:"required,max=80"`
	Grade       int    `json:"grade" validate:"required,min=1,max=11"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Session struct {
	AccessToken string       `json:"access_token"`
	UID         string       `json:"uid"`
	Role        content.Role `json:"role"`
}

type AccountStore interface {
	CreateUser(ctx context.Context, u content.User) error
	GetUserByEmail(ctx context.Context, email string) (content.User, error)
	UpdateUser(ctx context.Context, uid string, p content.UserPatch) (content.User, error)
}

// Accounts registers users and signs them in with email and password.
type Accounts struct {
	store      AccountStore
	tokens     *AuthService
	adminEmail string
	cost       int
	log        *logger.Logger
	now        func() time.Time
}

type AccountsOption func(*Accounts)

// WithAdminEmail promotes the account with this email to admin at login.
func WithAdminEmail(email string) AccountsOption {
	return func(a *Accounts) { a.adminEmail = strings.ToLower(strings.TrimSpace(email)) }
}

func WithBcryptCost(cost int) AccountsOption { return func(a *Accounts) { a.cost = cost } }

func NewAccounts(store AccountStore, tokens *AuthService, log *logger.Logger, opts ...AccountsOption) *Accounts {
	a := &Accounts{
		store:  store,
		tokens: tokens,
		cost:   DefaultBcryptCost,
		log:    log.With("service", "accounts"),
		now:    time.Now,
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Register creates a student account and signs it in.
func (a *Accounts) Register(ctx context.Context, in RegisterInput) (Session, error) {
	email := strings.ToLower(strings.TrimSpace(in.Email))
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), a.cost)
	if err != nil {
		return Session{}, err
	}
	u := content.User{
		UID:          uuid.NewString(),
		Email:        email,
		DisplayName:  strings.TrimSpace(in.DisplayName),
		PasswordHash: string(hash),
		Role:         content.RoleStudent,
		Grade:        in.Grade,
		CreatedAt:    a.now().UTC(),
	}
	if err := a.store.CreateUser(ctx, u); err != nil {
		if errors.Is(err, content.ErrEmailTaken) {
			return Session{}, apierr.Validation(err)
		}
		return Session{}, err
	}
	tok, err := a.tokens.IssueJWT(u.UID, u.Email)
	if err != nil {
		return Session{}, err
	}
	a.log.Info("account registered", "uid", u.UID, "email", u.Email, "grade", u.Grade)
	return Session{AccessToken: tok, UID: u.UID, Role: u.Role}, nil
}

// Login checks the password and issues a token. The configured admin email
// is promoted on its first successful login.
func (a *Accounts) Login(ctx context.Context, in LoginInput) (Session, error) {
	u, err := a.store.GetUserByEmail(ctx, in.Email)
	if errors.Is(err, content.ErrNotFound) {
		return Session{}, apierr.Unauthorized(errBadCredentials)
	}
	if err != nil {
		return Session{}, err
	}
	if u.PasswordHash == "" || bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(in.Password)) != nil {
		return Session{}, apierr.Unauthorized(errBadCredentials)
	}
	if a.adminEmail != "" && u.Email == a.adminEmail && u.Role != content.RoleAdmin {
		admin := content.RoleAdmin
		if u, err = a.store.UpdateUser(ctx, u.UID, content.UserPatch{Role: &admin}); err != nil {
			return Session{}, err
		}
		a.log.Info("account promoted to admin", "uid", u.UID, "email", u.Email)
	}
	tok, err := a.tokens.IssueJWT(u.UID, u.Email)
	if err != nil {
		return Session{}, err
	}
	return Session{AccessToken: tok, UID: u.UID, Role: u.Role}, nil
}

// HashPassword is used by tooling that creates accounts directly.
func HashPassword(pw string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pw), DefaultBcryptCost)
	return string(h), err
}
