package access

import (
	"context"
	"strings"

	"github.com/casbin/casbin/v2"
)

// permissionAction is the action column every node grant uses; nodes are
// modeled as objects, so a grant row reads `p, <subject>, <node>, access`.
const permissionAction = "access"

// CasbinProvider enforces permission nodes through a casbin model/policy
// pair. Subjects may be granted nodes directly or through roles (`g` rows).
type CasbinProvider struct {
	enforcer *casbin.Enforcer
}

// NewCasbinProvider loads the enforcer from the given model and policy files.
func NewCasbinProvider(modelPath, policyPath string) (*CasbinProvider, error) {
	enforcer, err := casbin.NewEnforcer(modelPath, policyPath)
	if err != nil {
		return nil, err
	}
	return &CasbinProvider{enforcer: enforcer}, nil
}

// HasPermission reports whether the identity holds the node. Identities are
// lowercased before enforcement so grants are case-insensitive, matching how
// actor names compare everywhere else.
func (p *CasbinProvider) HasPermission(ctx context.Context, identity, node string) (bool, error) {
	return p.enforcer.Enforce(strings.ToLower(identity), node, permissionAction)
}
