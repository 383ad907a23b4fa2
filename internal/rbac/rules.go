package rbac

import "github.com/mind-engage/skillway/internal/content"

const (
	PermSubjectView    = "subject:view"
	PermTestTake       = "test:take"
	PermTestGenerate   = "test:generate"
	PermAdaptiveTake   = "adaptive:take"
	PermAssessmentTake = "assessment:take"
	PermCatalogUpload  = "catalog:upload"
	PermProfileView    = "profile:view"
	PermUserManage     = "user:manage"
)

// DefaultPolicy lets teachers take tests too, so they can try what they
// generated.
var DefaultPolicy = Policy{
	content.RoleStudent: {
		PermSubjectView,
		PermTestTake,
		PermAdaptiveTake,
		PermAssessmentTake,
		PermProfileView,
	},
	content.RoleTeacher: {
		PermSubjectView,
		"test:*",
		PermCatalogUpload,
		PermProfileView,
	},
	content.RoleAdmin: {
		"*",
	},
}
