package core

import (
	"context"
	"strconv"

	"facilitycore/pkg/domain"
)

// Catalog operations manage the location tree and the asset registry. All
// writes require the manage-catalog capability (admin); reads require the
// view-assets capability (facilities or admin).

// CreateLocation adds a location node. The parent, when set, must exist and
// the resulting tree must stay acyclic; both are enforced by the rules
// engine at commit.
func (s *Service) CreateLocation(ctx context.Context, actor domain.Actor, loc domain.Location) (domain.Location, domain.Result, error) {
	ctx, done := s.observe(ctx, "create_location")
	var created domain.Location
	res, err := func() (domain.Result, error) {
		if err := requireCapability(actor, domain.CapManageCatalog); err != nil {
			return domain.Result{}, err
		}
		if loc.Name == "" {
			return domain.Result{}, domain.ValidationError{Fields: []domain.FieldError{{Field: "name", Message: "required"}}}
		}
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			created, err = tx.CreateLocation(loc)
			return err
		})
	}()
	done(err)
	if err != nil {
		return domain.Location{}, res, err
	}
	return created, res, nil
}

// UpdateLocation applies a mutator to an existing location.
func (s *Service) UpdateLocation(ctx context.Context, actor domain.Actor, id string, mutator func(*domain.Location) error) (domain.Location, domain.Result, error) {
	ctx, done := s.observe(ctx, "update_location")
	var updated domain.Location
	res, err := func() (domain.Result, error) {
		if err := requireCapability(actor, domain.CapManageCatalog); err != nil {
			return domain.Result{}, err
		}
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			updated, err = tx.UpdateLocation(id, mutator)
			return err
		})
	}()
	done(err)
	if err != nil {
		return domain.Location{}, res, err
	}
	return updated, res, nil
}

// DeleteLocation removes a location. The store rejects the delete while any
// child location, asset, or request still references it.
func (s *Service) DeleteLocation(ctx context.Context, actor domain.Actor, id string) (domain.Result, error) {
	ctx, done := s.observe(ctx, "delete_location")
	res, err := func() (domain.Result, error) {
		if err := requireCapability(actor, domain.CapManageCatalog); err != nil {
			return domain.Result{}, err
		}
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			return tx.DeleteLocation(id)
		})
	}()
	done(err)
	return res, err
}

// CreateAsset registers an asset. An empty tag gets the next free tag for
// the asset's category; explicit tags must be unique (rule-enforced).
func (s *Service) CreateAsset(ctx context.Context, actor domain.Actor, asset domain.Asset) (domain.Asset, domain.Result, error) {
	ctx, done := s.observe(ctx, "create_asset")
	var created domain.Asset
	res, err := func() (domain.Result, error) {
		if err := requireCapability(actor, domain.CapManageCatalog); err != nil {
			return domain.Result{}, err
		}
		var fields []domain.FieldError
		if asset.Name == "" {
			fields = append(fields, domain.FieldError{Field: "name", Message: "required"})
		}
		if asset.LocationID == "" {
			fields = append(fields, domain.FieldError{Field: "location_id", Message: "required"})
		}
		if len(fields) > 0 {
			return domain.Result{}, domain.ValidationError{Fields: fields}
		}
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if _, ok := tx.FindLocation(asset.LocationID); !ok {
				return domain.ValidationError{Fields: []domain.FieldError{{Field: "location_id", Message: "unknown location"}}}
			}
			var err error
			created, err = tx.CreateAsset(asset)
			return err
		})
	}()
	done(err)
	if err != nil {
		return domain.Asset{}, res, err
	}
	return created, res, nil
}

// UpdateAsset applies a mutator to an existing asset.
func (s *Service) UpdateAsset(ctx context.Context, actor domain.Actor, id string, mutator func(*domain.Asset) error) (domain.Asset, domain.Result, error) {
	ctx, done := s.observe(ctx, "update_asset")
	var updated domain.Asset
	res, err := func() (domain.Result, error) {
		if err := requireCapability(actor, domain.CapManageCatalog); err != nil {
			return domain.Result{}, err
		}
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			updated, err = tx.UpdateAsset(id, mutator)
			return err
		})
	}()
	done(err)
	if err != nil {
		return domain.Asset{}, res, err
	}
	return updated, res, nil
}

// DeleteAsset removes an asset unless a request references it. Retiring an
// asset that has history is done by decommissioning it instead.
func (s *Service) DeleteAsset(ctx context.Context, actor domain.Actor, id string) (domain.Result, error) {
	ctx, done := s.observe(ctx, "delete_asset")
	res, err := func() (domain.Result, error) {
		if err := requireCapability(actor, domain.CapManageCatalog); err != nil {
			return domain.Result{}, err
		}
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			return tx.DeleteAsset(id)
		})
	}()
	done(err)
	return res, err
}

// GetLocation fetches one location. Facilities or admin.
func (s *Service) GetLocation(_ context.Context, actor domain.Actor, id string) (domain.Location, error) {
	if err := requireCapability(actor, domain.CapViewAssets); err != nil {
		return domain.Location{}, err
	}
	loc, ok := s.store.GetLocation(id)
	if !ok {
		return domain.Location{}, domain.NotFoundError{Entity: domain.EntityLocation, ID: id}
	}
	return loc, nil
}

// ListLocations returns all locations sorted by name.
func (s *Service) ListLocations(_ context.Context, actor domain.Actor) ([]domain.Location, error) {
	if err := requireCapability(actor, domain.CapViewAssets); err != nil {
		return nil, err
	}
	return s.store.ListLocations(), nil
}

// GetAsset fetches one asset. Facilities or admin.
func (s *Service) GetAsset(_ context.Context, actor domain.Actor, id string) (domain.Asset, error) {
	if err := requireCapability(actor, domain.CapViewAssets); err != nil {
		return domain.Asset{}, err
	}
	asset, ok := s.store.GetAsset(id)
	if !ok {
		return domain.Asset{}, domain.NotFoundError{Entity: domain.EntityAsset, ID: id}
	}
	return asset, nil
}

// ListAssets returns all assets sorted by tag.
func (s *Service) ListAssets(_ context.Context, actor domain.Actor) ([]domain.Asset, error) {
	if err := requireCapability(actor, domain.CapViewAssets); err != nil {
		return nil, err
	}
	return s.store.ListAssets(), nil
}

// GetRequest fetches one request, enforcing visibility: staff see every
// request, a requester only their own.
func (s *Service) GetRequest(_ context.Context, actor domain.Actor, id int64) (domain.RepairRequest, error) {
	req, ok := s.store.GetRequest(id)
	if !ok {
		return domain.RepairRequest{}, domain.NotFoundError{Entity: domain.EntityRequest, ID: strconv.FormatInt(id, 10)}
	}
	if !domain.CanViewRequest(actor, req) {
		return domain.RepairRequest{}, domain.ForbiddenError{ActorID: actor.ID, Capability: domain.CapViewAllRequests}
	}
	return req, nil
}

// Timeline returns a request's work log in chronological order, subject to
// the same visibility check as GetRequest.
func (s *Service) Timeline(ctx context.Context, actor domain.Actor, id int64) ([]domain.WorkLogEntry, error) {
	if _, err := s.GetRequest(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.store.TimelineFor(id), nil
}
