// Package access maps roles to capabilities.
package access

import (
	_ "embed"
	"fmt"
	"sort"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	stringadapter "github.com/casbin/casbin/v2/persist/string-adapter"
	"github.com/yasmineadnan/dev-mobile-react-native/internal/domain"
)

//go:embed model.conf
var modelText string

//go:embed policy.csv
var policyText string

// Policy answers capability checks for roles. It is read-only after construction.
type Policy struct {
	enforcer *casbin.Enforcer
}

// NewPolicy builds the role policy from the embedded model and grants.
func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(modelText)
	if err != nil {
		return nil, fmt.Errorf("parse access model: %w", err)
	}

	enforcer, err := casbin.NewEnforcer(m, stringadapter.NewAdapter(policyText))
	if err != nil {
		return nil, fmt.Errorf("create enforcer: %w", err)
	}

	return &Policy{enforcer: enforcer}, nil
}

// MustNewPolicy is NewPolicy for wiring and tests where the embedded policy is known good.
func MustNewPolicy() *Policy {
	p, err := NewPolicy()
	if err != nil {
		panic(err)
	}
	return p
}

// Can reports whether role holds capability.
func (p *Policy) Can(role domain.Role, capability domain.Capability) bool {
	if !role.IsValid() {
		return false
	}
	ok, err := p.enforcer.Enforce(string(role), string(capability))
	if err != nil {
		return false
	}
	return ok
}

// Authorize returns ErrPermissionDenied if the session's role lacks capability.
func (p *Policy) Authorize(session domain.Session, capability domain.Capability) error {
	if !p.Can(session.Role, capability) {
		role := session.Role
		if role == "" {
			role = "unregistered user"
		}
		return fmt.Errorf("%w: %s cannot %s", ErrPermissionDenied, role, capability)
	}
	return nil
}

// Capabilities lists everything role may do, sorted.
func (p *Policy) Capabilities(role domain.Role) []domain.Capability {
	if !role.IsValid() {
		return []domain.Capability{}
	}

	perms, err := p.enforcer.GetImplicitPermissionsForUser(string(role))
	if err != nil {
		return []domain.Capability{}
	}

	seen := make(map[domain.Capability]bool, len(perms))
	caps := make([]domain.Capability, 0, len(perms))
	for _, perm := range perms {
		if len(perm) < 2 {
			continue
		}
		c := domain.Capability(perm[1])
		if !seen[c] {
			seen[c] = true
			caps = append(caps, c)
		}
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}
