package entitlement

import (
	"agentdesk/internal/types"
)

// defaultCapabilityPermissions maps capability keys to the staff permission
// that gates them. The map is intentionally sparse: capabilities without an
// entry are permission-free for staff (viewing the dashboard, running AI
// tools). Capabilities with an entry are denied to staff unless their grant
// explicitly allows the mapped key.
var defaultCapabilityPermissions = map[types.CapabilityKey]types.StaffPermissionKey{
	"properties":  types.PermListingManage,
	"customers":   types.PermCustomerView,
	"contracts":   types.PermContractView,
	"rental-mgmt": types.PermRentalManage,
	"settings":    types.PermSettingsManage,
}

// DefaultCapabilityPermissions returns a copy of the built-in
// capability-to-permission table.
func DefaultCapabilityPermissions() map[types.CapabilityKey]types.StaffPermissionKey {
	m := make(map[types.CapabilityKey]types.StaffPermissionKey, len(defaultCapabilityPermissions))
	for k, v := range defaultCapabilityPermissions {
		m[k] = v
	}
	return m
}

// StaffPermissionResolver evaluates the staff-permission axis of an access
// decision. Only the staff role is restricted by this axis; owners always
// pass, and customers are rejected before this axis is consulted.
type StaffPermissionResolver struct {
	permissions map[types.CapabilityKey]types.StaffPermissionKey
}

// NewStaffPermissionResolver creates a resolver over the given
// capability-to-permission table. Passing nil uses the built-in table.
func NewStaffPermissionResolver(permissions map[types.CapabilityKey]types.StaffPermissionKey) *StaffPermissionResolver {
	if permissions == nil {
		permissions = DefaultCapabilityPermissions()
	}
	return &StaffPermissionResolver{permissions: permissions}
}

// PermissionKeyFor returns the staff permission gating the capability and
// whether a mapping exists.
func (r *StaffPermissionResolver) PermissionKeyFor(capability types.CapabilityKey) (types.StaffPermissionKey, bool) {
	key, ok := r.permissions[capability]
	return key, ok
}

// IsPermitted evaluates the staff axis for a subject:
//
//   - Non-staff roles always pass; only staff is narrowed by grants.
//   - A capability with no permission mapping passes for staff.
//   - A mapped capability requires grant[key] == true. A missing grant set or
//     a missing key denies (fail-closed).
func (r *StaffPermissionResolver) IsPermitted(subject types.Subject, capability types.CapabilityKey) bool {
	if !subject.IsStaff() {
		return true
	}
	key, ok := r.PermissionKeyFor(capability)
	if !ok {
		return true
	}
	return subject.Grant.Allows(key)
}
