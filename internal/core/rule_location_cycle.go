package core

import (
	"context"
	"fmt"

	"facilitycore/pkg/domain"
)

// NewLocationCycleRule blocks location writes whose parent chain does not
// terminate. The walk is bounded by the total node count, so a broken or
// cyclic chain is always detected.
func NewLocationCycleRule() domain.Rule {
	return locationCycleRule{}
}

type locationCycleRule struct{}

func (locationCycleRule) Name() string { return "location_cycle" }

func (locationCycleRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityLocation || change.Action == domain.ActionDelete {
			continue
		}
		loc, ok := change.After.(domain.Location)
		if !ok {
			continue
		}
		if violation, bad := walkToRoot(view, loc); bad {
			res.Violations = append(res.Violations, violation)
		}
	}
	return res, nil
}

func walkToRoot(view domain.RuleView, loc domain.Location) (domain.Violation, bool) {
	limit := len(view.ListLocations())
	current := loc
	for steps := 0; current.ParentID != nil; steps++ {
		if *current.ParentID == loc.ID || steps > limit {
			return domain.Violation{
				Rule:     "location_cycle",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("location %s parent chain forms a cycle", loc.ID),
				Entity:   domain.EntityLocation,
				EntityID: loc.ID,
			}, true
		}
		parent, ok := view.FindLocation(*current.ParentID)
		if !ok {
			return domain.Violation{
				Rule:     "location_cycle",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("location %s references unknown parent %s", loc.ID, *current.ParentID),
				Entity:   domain.EntityLocation,
				EntityID: loc.ID,
			}, true
		}
		current = parent
	}
	return domain.Violation{}, false
}
