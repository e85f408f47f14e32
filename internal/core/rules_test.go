package core_test

import (
	"context"
	"errors"
	"testing"

	"facilitycore/internal/core"
	"facilitycore/pkg/domain"
)

func TestLocationCycleRuleBlocksCycles(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, _, err := f.svc.CreateLocation(ctx, admin, domain.Location{Name: "Wing A"})
	if err != nil {
		t.Fatalf("create a: %v", err)
	}
	b, _, err := f.svc.CreateLocation(ctx, admin, domain.Location{Name: "Room A1", ParentID: &a.ID})
	if err != nil {
		t.Fatalf("create b: %v", err)
	}

	// Re-parenting the root under its own descendant closes a cycle.
	_, _, err = f.svc.UpdateLocation(ctx, admin, a.ID, func(l *domain.Location) error {
		l.ParentID = &b.ID
		return nil
	})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected RuleViolationError, got %v", err)
	}
	if !violation.Result.HasBlocking() {
		t.Fatalf("expected blocking violation")
	}

	// The rejected commit must not be visible.
	got, err := f.svc.GetLocation(ctx, admin, a.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ParentID != nil {
		t.Fatalf("cycle write leaked: %+v", got)
	}
}

func TestLocationUnknownParentBlocked(t *testing.T) {
	f := newFixture(t)
	ghost := "no-such-location"
	_, _, err := f.svc.CreateLocation(context.Background(), admin, domain.Location{Name: "Annex", ParentID: &ghost})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected RuleViolationError, got %v", err)
	}
}

func TestAssetTagUniqueRule(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	first, _, err := f.svc.CreateAsset(ctx, admin, domain.Asset{Name: "amp", Category: domain.CategoryAV, LocationID: f.location.ID, AssetTag: "AV-001"})
	if err != nil {
		t.Fatalf("create first: %v", err)
	}

	_, _, err = f.svc.CreateAsset(ctx, admin, domain.Asset{Name: "mixer", Category: domain.CategoryAV, LocationID: f.location.ID, AssetTag: "AV-001"})
	var violation domain.RuleViolationError
	if !errors.As(err, &violation) {
		t.Fatalf("expected RuleViolationError for duplicate tag, got %v", err)
	}

	// Decommissioned assets keep their tags reserved.
	_, _, err = f.svc.UpdateAsset(ctx, admin, first.ID, func(a *domain.Asset) error {
		a.Status = domain.AssetDecommissioned
		return nil
	})
	if err != nil {
		t.Fatalf("decommission: %v", err)
	}
	_, _, err = f.svc.CreateAsset(ctx, admin, domain.Asset{Name: "mixer", Category: domain.CategoryAV, LocationID: f.location.ID, AssetTag: "AV-001"})
	if !errors.As(err, &violation) {
		t.Fatalf("expected retired tag to stay reserved, got %v", err)
	}
}

func TestCatalogRequiresAdmin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var forbidden domain.ForbiddenError
	if _, _, err := f.svc.CreateLocation(ctx, facilities, domain.Location{Name: "Shed"}); !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError for facilities creating location, got %v", err)
	}
	if _, _, err := f.svc.CreateAsset(ctx, facilities, domain.Asset{Name: "x", LocationID: f.location.ID}); !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError for facilities creating asset, got %v", err)
	}
	if _, err := f.svc.ListAssets(ctx, requester); !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError for requester listing assets, got %v", err)
	}
}

func TestDeleteLocationRejectedWhileReferenced(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	createWith(t, f, "anything", domain.PriorityLow, nil)

	_, err := f.svc.DeleteLocation(ctx, admin, f.location.ID)
	var referenced domain.ReferencedError
	if !errors.As(err, &referenced) {
		t.Fatalf("expected ReferencedError, got %v", err)
	}
}

func TestDefaultEngineRegistersAllRules(t *testing.T) {
	engine := core.NewDefaultRulesEngine()
	res, err := engine.Evaluate(context.Background(), nil, nil)
	if err != nil {
		t.Fatalf("evaluate empty change set: %v", err)
	}
	if res.HasBlocking() {
		t.Fatalf("empty change set must not block")
	}
}
