package api

import (
	"net/http"

	"facilitycore/pkg/domain"
)

// Trusted headers set by the fronting identity provider.
const (
	headerActorID    = "X-Actor-ID"
	headerActorRole  = "X-Actor-Role"
	headerActorEmail = "X-Actor-Email"
)

// actorFrom reads the identity headers. Requests without an actor ID are
// anonymous (ok=false); an unknown role falls back to requester so a
// misconfigured proxy can never grant elevated access.
func actorFrom(r *http.Request) (domain.Actor, bool) {
	id := r.Header.Get(headerActorID)
	if id == "" {
		return domain.Actor{}, false
	}
	role := domain.Role(r.Header.Get(headerActorRole))
	switch role {
	case domain.RoleRequester, domain.RoleFacilities, domain.RoleAdmin:
	default:
		role = domain.RoleRequester
	}
	return domain.Actor{
		ID:    id,
		Role:  role,
		Email: r.Header.Get(headerActorEmail),
	}, true
}

// requireActor writes a 403 for anonymous calls to authenticated endpoints.
func requireActor(w http.ResponseWriter, r *http.Request) (domain.Actor, bool) {
	actor, ok := actorFrom(r)
	if !ok {
		writeError(w, http.StatusForbidden, "forbidden", "authentication required")
		return domain.Actor{}, false
	}
	return actor, true
}
