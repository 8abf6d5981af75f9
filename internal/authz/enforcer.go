// Package authz answers role-based permission questions with a casbin
// RBAC model. Subjects are role names; objects and actions are the
// resource/action pairs listed in policy.csv.
package authz

import (
	_ "embed"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Resources and actions referenced by the router and services.
const (
	ObjReviews        = "reviews"
	ObjComments       = "comments"
	ObjLikes          = "likes"
	ObjFollows        = "follows"
	ObjReports        = "reports"
	ObjClaims         = "claims"
	ObjApplications   = "applications"
	ObjUploads        = "uploads"
	ObjRestaurants    = "restaurants"
	ObjOwnerDashboard = "owner_dashboard"
	ObjFlags          = "flags"
	ObjModeration     = "moderation"
	ObjContent        = "content"
	ObjHiddenContent  = "hidden_content"
	ObjUsers          = "users"
	ObjAnnouncements  = "announcements"
	ObjStats          = "stats"
	ObjRoles          = "roles"

	ActRead       = "read"
	ActWrite      = "write"
	ActCreate     = "create"
	ActDelete     = "delete"
	ActManage     = "manage"
	ActAct        = "act"
	ActReinstate  = "reinstate"
	ActSend       = "send"
	ActGrantStaff = "grant_staff"
)

type Enforcer struct {
	enforcer *casbin.SyncedEnforcer
}

func NewEnforcer() (*Enforcer, error) {
	m, err := model.NewModelFromString(embeddedModel)
	if err != nil {
		return nil, fmt.Errorf("load casbin model: %w", err)
	}
	e, err := casbin.NewSyncedEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("create casbin enforcer: %w", err)
	}
	if err := loadPolicy(e, embeddedPolicy); err != nil {
		return nil, err
	}
	return &Enforcer{enforcer: e}, nil
}

func loadPolicy(e *casbin.SyncedEnforcer, policy string) error {
	for _, line := range strings.Split(policy, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}

		switch {
		case parts[0] == "p" && len(parts) == 4:
			if _, err := e.AddPolicy(parts[1], parts[2], parts[3]); err != nil {
				return fmt.Errorf("add policy %v: %w", parts[1:], err)
			}
		case parts[0] == "g" && len(parts) == 3:
			if _, err := e.AddGroupingPolicy(parts[1], parts[2]); err != nil {
				return fmt.Errorf("add grouping policy %v: %w", parts[1:], err)
			}
		default:
			return fmt.Errorf("malformed policy line %q", line)
		}
	}
	return nil
}

// Can reports whether role may perform act on obj. Errors deny.
func (e *Enforcer) Can(role, obj, act string) bool {
	if role == "" {
		return false
	}
	ok, err := e.enforcer.Enforce(role, obj, act)
	return err == nil && ok
}
