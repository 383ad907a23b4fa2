package rbac

import (
	"context"
	"strings"

	"github.com/mind-engage/skillway/internal/content"
)

// Policy maps a role to the permissions it holds. A permission is either
// exact ("test:take"), a scope wildcard ("test:*") or "*" for everything.
type Policy map[content.Role][]string

type Checker struct {
	policy Policy
}

// NewChecker returns a checker for p, or for DefaultPolicy when p is nil.
func NewChecker(p Policy) *Checker {
	if p == nil {
		p = DefaultPolicy
	}
	return &Checker{policy: p}
}

func (c *Checker) Has(role content.Role, perm string) bool {
	for _, granted := range c.policy[role] {
		if covers(granted, perm) {
			return true
		}
	}
	return false
}

func (c *Checker) Any(role content.Role, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

func covers(granted, perm string) bool {
	if granted == "*" || granted == perm {
		return true
	}
	scope, ok := strings.CutSuffix(granted, ":*")
	return ok && strings.HasPrefix(perm, scope+":")
}

type roleKey struct{}

func WithRole(ctx context.Context, role content.Role) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

// RoleFromContext returns the role AttachCaller resolved, or "" when the
// request is anonymous.
func RoleFromContext(ctx context.Context) content.Role {
	role, _ := ctx.Value(roleKey{}).(content.Role)
	return role
}
