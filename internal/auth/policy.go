package auth

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Well-known protected actions.
const (
	ActionChangeOwnSettings = "change_own_settings"
	ActionViewDashboard     = "view_dashboard"
	ActionViewReports       = "view_reports"
	ActionViewAdminPanel    = "view_admin_panel"
	ActionManageUsers       = "manage_users"
	ActionViewAuditLog      = "view_audit_log"
)

// Policy maps protected actions to the minimum role allowed to perform
// them. Actions absent from the table are denied outright.
type Policy struct {
	minRole map[string]Role
}

// DefaultPolicy returns the built-in action table.
func DefaultPolicy() Policy {
	return Policy{minRole: map[string]Role{
		ActionChangeOwnSettings: RoleUser,
		ActionViewDashboard:     RoleUser,
		ActionViewReports:       RoleEmployee,
		ActionViewAdminPanel:    RoleAdmin,
		ActionManageUsers:       RoleAdmin,
		ActionViewAuditLog:      RoleAdmin,
	}}
}

// LoadPolicy reads an action→minimum-role table from a YAML file. Entries
// replace the defaults wholesale so operators see exactly what they wrote.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Policy{}, fmt.Errorf("read policy: %w", err)
	}
	var raw map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return Policy{}, fmt.Errorf("parse policy: %w", err)
	}
	table := make(map[string]Role, len(raw))
	for action, role := range raw {
		r := Role(role)
		if action == "" || !ValidRole(r) {
			return Policy{}, fmt.Errorf("%w: policy entry %q: %q", ErrInvalidInput, action, role)
		}
		table[action] = r
	}
	return Policy{minRole: table}, nil
}

// MinRole returns the minimum role for an action, with ok=false for
// actions not in the table.
func (p Policy) MinRole(action string) (Role, bool) {
	r, ok := p.minRole[action]
	return r, ok
}

// Permits reports whether role meets the minimum for action.
func (p Policy) Permits(role Role, action string) bool {
	min, ok := p.minRole[action]
	if !ok {
		return false
	}
	return roleRank(role) >= roleRank(min)
}
