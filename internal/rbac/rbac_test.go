package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mind-engage/skillway/internal/content"
)

func TestDefaultPolicy(t *testing.T) {
	c := NewChecker(nil)

	assert.True(t, c.Has(content.RoleStudent, PermTestTake))
	assert.False(t, c.Has(content.RoleStudent, PermTestGenerate))
	assert.False(t, c.Has(content.RoleStudent, PermCatalogUpload))

	assert.True(t, c.Has(content.RoleTeacher, PermTestGenerate))
	assert.True(t, c.Has(content.RoleTeacher, PermTestTake))
	assert.True(t, c.Has(content.RoleTeacher, PermCatalogUpload))
	assert.False(t, c.Has(content.RoleTeacher, PermUserManage))

	assert.True(t, c.Has(content.RoleAdmin, PermUserManage))
	assert.False(t, c.Has(content.Role("guest"), PermSubjectView))

	assert.True(t, c.Any(content.RoleStudent, PermUserManage, PermProfileView))
	assert.False(t, c.Has(content.RoleTeacher, "testing:run"), "scope wildcard stops at the colon")
	assert.False(t, c.Any(content.RoleStudent, PermUserManage, PermCatalogUpload))
}

func TestRequire(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Require(PermCatalogUpload)(ok)

	for role, want := range map[content.Role]int{
		"":                  http.StatusUnauthorized,
		content.RoleStudent: http.StatusForbidden,
		content.RoleTeacher: http.StatusNoContent,
		content.RoleAdmin:   http.StatusNoContent,
	} {
		r := httptest.NewRequest(http.MethodPost, "/", nil)
		if role != "" {
			r = r.WithContext(WithRole(r.Context(), role))
		}
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		assert.Equal(t, want, w.Code, string(role))
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/", nil)
	RequireAny(PermUserManage, PermProfileView)(ok).ServeHTTP(w, r.WithContext(WithRole(r.Context(), content.RoleStudent)))
	assert.Equal(t, http.StatusNoContent, w.Code)
}
