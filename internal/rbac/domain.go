package rbac

import "fmt"

// Capability is a closed enumeration of grantable action classes. Keeping
// the set closed makes an invalid capability a parse error instead of a
// silent no-op at authorization checks.
type Capability string

const (
	CapViewDashboard     Capability = "view_dashboard"
	CapViewTickets       Capability = "view_tickets"
	CapManageTickets     Capability = "manage_tickets"
	CapViewInfractions   Capability = "view_infractions"
	CapManageInfractions Capability = "manage_infractions"
	CapManageLOA         Capability = "manage_loa"
	CapManageStaff       Capability = "manage_staff"
	CapManagePermissions Capability = "manage_permissions"
	CapTriggerSync       Capability = "trigger_sync"
)

// AllCapabilities lists every member of the closed set.
var AllCapabilities = []Capability{
	CapViewDashboard,
	CapViewTickets,
	CapManageTickets,
	CapViewInfractions,
	CapManageInfractions,
	CapManageLOA,
	CapManageStaff,
	CapManagePermissions,
	CapTriggerSync,
}

// ParseCapability validates a capability name from the wire.
func ParseCapability(name string) (Capability, error) {
	for _, c := range AllCapabilities {
		if string(c) == name {
			return c, nil
		}
	}
	return "", fmt.Errorf("rbac: unknown capability %q", name)
}

// Set is an unordered capability collection.
type Set map[Capability]struct{}

// Has reports membership.
func (s Set) Has(c Capability) bool {
	_, ok := s[c]
	return ok
}

// Add inserts a capability.
func (s Set) Add(c Capability) { s[c] = struct{}{} }

// Remove deletes a capability.
func (s Set) Remove(c Capability) { delete(s, c) }

// staffDefaults is the default grant set for the regular staff tier.
var staffDefaults = []Capability{
	CapViewDashboard,
	CapViewTickets,
	CapManageTickets,
	CapViewInfractions,
	CapManageLOA,
}

// adminDefaults extends the staff tier; the higher tier is a strict
// superset of the lower one.
var adminDefaults = append(append([]Capability{}, staffDefaults...),
	CapManageInfractions,
	CapManageStaff,
	CapManagePermissions,
	CapTriggerSync,
)

// DefaultsForRank returns the tier default set for a rank.
func DefaultsForRank(rank, adminRankMin int) []Capability {
	if rank >= adminRankMin {
		return adminDefaults
	}
	return staffDefaults
}

// Override is a stored per-user capability decision. Overridden marks an
// explicit admin edit as opposed to a system-seeded default row.
type Override struct {
	UserID     int64
	Capability Capability
	Granted    bool
	Overridden bool
}
