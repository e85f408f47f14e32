package domain

// Role is the closed set of actor roles. There is no ad hoc elevation; every
// permission decision flows through the capability table below.
type Role string

// Supported roles.
const (
	// RoleRequester can submit requests and follow their own.
	RoleRequester Role = "requester"
	// RoleFacilities works the queue: triage, assignment, transitions.
	RoleFacilities Role = "facilities"
	// RoleAdmin additionally manages the asset/location catalog and users.
	RoleAdmin Role = "admin"
)

// Actor is the authenticated caller as supplied by the identity provider.
// The core trusts these fields.
type Actor struct {
	ID    string `json:"id"`
	Role  Role   `json:"role"`
	Email string `json:"email,omitempty"`
	Name  string `json:"name,omitempty"`
}

// Capability names a guarded action.
type Capability string

// Capabilities gated by the role table.
const (
	CapViewOwnRequests Capability = "view_own_requests"
	CapViewAllRequests Capability = "view_all_requests"
	CapCreateRequest   Capability = "create_request"
	CapWorkRequests    Capability = "work_requests" // triage, assign, transition, log time
	CapViewAssets      Capability = "view_assets"
	CapManageCatalog   Capability = "manage_catalog" // assets, locations, users
)

var roleCapabilities = map[Role]map[Capability]bool{
	RoleRequester: {
		CapViewOwnRequests: true,
		CapCreateRequest:   true,
	},
	RoleFacilities: {
		CapViewOwnRequests: true,
		CapViewAllRequests: true,
		CapCreateRequest:   true,
		CapWorkRequests:    true,
		CapViewAssets:      true,
	},
	RoleAdmin: {
		CapViewOwnRequests: true,
		CapViewAllRequests: true,
		CapCreateRequest:   true,
		CapWorkRequests:    true,
		CapViewAssets:      true,
		CapManageCatalog:   true,
	},
}

// CanPerform reports whether the actor's role grants the capability. Pure and
// side-effect free; this is the single permission check consulted by every
// mutation and query path.
func CanPerform(actor Actor, capability Capability) bool {
	return roleCapabilities[actor.Role][capability]
}

// OwnsRequest reports whether the actor submitted the request, either as the
// authenticated submitter or by matching a non-empty requester email.
func OwnsRequest(actor Actor, req RepairRequest) bool {
	if req.RequesterActorID != nil && *req.RequesterActorID == actor.ID {
		return true
	}
	return req.RequesterEmail != "" && actor.Email != "" && req.RequesterEmail == actor.Email
}

// CanViewRequest applies the view rules: staff see everything, requesters see
// only their own submissions.
func CanViewRequest(actor Actor, req RepairRequest) bool {
	if CanPerform(actor, CapViewAllRequests) {
		return true
	}
	return CanPerform(actor, CapViewOwnRequests) && OwnsRequest(actor, req)
}
