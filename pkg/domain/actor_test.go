package domain_test

import (
	"testing"

	"facilitycore/pkg/domain"
)

func TestCapabilityTable(t *testing.T) {
	cases := []struct {
		role       domain.Role
		capability domain.Capability
		want       bool
	}{
		{domain.RoleRequester, domain.CapCreateRequest, true},
		{domain.RoleRequester, domain.CapViewOwnRequests, true},
		{domain.RoleRequester, domain.CapViewAllRequests, false},
		{domain.RoleRequester, domain.CapWorkRequests, false},
		{domain.RoleRequester, domain.CapViewAssets, false},
		{domain.RoleRequester, domain.CapManageCatalog, false},
		{domain.RoleFacilities, domain.CapWorkRequests, true},
		{domain.RoleFacilities, domain.CapViewAllRequests, true},
		{domain.RoleFacilities, domain.CapViewAssets, true},
		{domain.RoleFacilities, domain.CapManageCatalog, false},
		{domain.RoleAdmin, domain.CapWorkRequests, true},
		{domain.RoleAdmin, domain.CapManageCatalog, true},
		{domain.Role("intern"), domain.CapViewOwnRequests, false},
	}
	for _, tc := range cases {
		actor := domain.Actor{ID: "a-1", Role: tc.role}
		if got := domain.CanPerform(actor, tc.capability); got != tc.want {
			t.Fatalf("CanPerform(%s, %s) = %v, want %v", tc.role, tc.capability, got, tc.want)
		}
	}
}

func TestOwnsRequest(t *testing.T) {
	actorID := "u-7"
	req := domain.RepairRequest{RequesterActorID: &actorID}
	if !domain.OwnsRequest(domain.Actor{ID: "u-7"}, req) {
		t.Fatalf("expected ownership by actor id")
	}
	if domain.OwnsRequest(domain.Actor{ID: "u-8"}, req) {
		t.Fatalf("unexpected ownership for different actor")
	}

	byEmail := domain.RepairRequest{RequesterEmail: "koster@example.org"}
	if !domain.OwnsRequest(domain.Actor{ID: "u-9", Email: "koster@example.org"}, byEmail) {
		t.Fatalf("expected ownership via matching email")
	}
	if domain.OwnsRequest(domain.Actor{ID: "u-9"}, byEmail) {
		t.Fatalf("empty actor email must not match")
	}
	if domain.OwnsRequest(domain.Actor{ID: "u-9", Email: "other@example.org"}, domain.RepairRequest{}) {
		t.Fatalf("empty requester email must not match")
	}
}

func TestCanViewRequest(t *testing.T) {
	owner := "u-1"
	req := domain.RepairRequest{RequesterActorID: &owner}

	if !domain.CanViewRequest(domain.Actor{ID: "staff", Role: domain.RoleFacilities}, req) {
		t.Fatalf("facilities must see every request")
	}
	if !domain.CanViewRequest(domain.Actor{ID: "u-1", Role: domain.RoleRequester}, req) {
		t.Fatalf("requester must see own request")
	}
	if domain.CanViewRequest(domain.Actor{ID: "u-2", Role: domain.RoleRequester}, req) {
		t.Fatalf("requester must not see another requester's request")
	}
}
