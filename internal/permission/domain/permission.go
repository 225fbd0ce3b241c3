package domain

// SystemAdminRole grants unconditional access to every resource.
const SystemAdminRole = "system-admin"

// Organization membership roles. Owner and admin bypass explicit permission
// checks for resources scoped to their organization.
const (
	OrgRoleOwner  = "owner"
	OrgRoleAdmin  = "admin"
	OrgRoleMember = "member"
)

// Permission names a single capability on a resource type.
type Permission struct {
	ID       string
	Resource string
	Action   string
}

// Grant is a permission held by an identity, optionally narrowed to a scope.
// An empty ScopeID means the grant applies everywhere.
type Grant struct {
	Resource string
	Action   string
	ScopeID  string
}

// String renders the grant as resource:action, with the scope appended as
// resource:action@scope when present. This is the form carried in token
// claims.
func (g Grant) String() string {
	s := g.Resource + ":" + g.Action
	if g.ScopeID != "" {
		s += "@" + g.ScopeID
	}
	return s
}

// Covers reports whether the grant authorizes the given resource, action and
// scope.
func (g Grant) Covers(resource, action, scopeID string) bool {
	if g.Resource != resource || g.Action != action {
		return false
	}
	return g.ScopeID == "" || g.ScopeID == scopeID
}

// PermissionSet is the resolved authority of one identity: its active roles
// and the union of role-derived and directly granted permissions.
type PermissionSet struct {
	IdentityID string
	Roles      []string
	Grants     []Grant
}

// HasRole reports whether the set includes the role.
func (s *PermissionSet) HasRole(role string) bool {
	for _, r := range s.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Allows reports whether any grant in the set covers the request.
func (s *PermissionSet) Allows(resource, action, scopeID string) bool {
	for _, g := range s.Grants {
		if g.Covers(resource, action, scopeID) {
			return true
		}
	}
	return false
}

// AccessContext describes one authorization question.
type AccessContext struct {
	SubjectID string
	Resource  string
	Action    string
	ScopeID   string
}
