package core

import (
	"context"
	"fmt"

	"facilitycore/pkg/domain"
)

// NewAssetTagUniqueRule blocks commits that would leave two assets sharing a
// tag. Decommissioned assets keep their tags reserved, so a retired tag is
// never reissued.
func NewAssetTagUniqueRule() domain.Rule {
	return assetTagUniqueRule{}
}

type assetTagUniqueRule struct{}

func (assetTagUniqueRule) Name() string { return "asset_tag_unique" }

func (assetTagUniqueRule) Evaluate(_ context.Context, view domain.RuleView, changes []domain.Change) (domain.Result, error) {
	touched := false
	for _, change := range changes {
		if change.Entity == domain.EntityAsset && change.Action != domain.ActionDelete {
			touched = true
			break
		}
	}
	res := domain.Result{}
	if !touched {
		return res, nil
	}

	seen := make(map[string]string)
	for _, a := range view.ListAssets() {
		if other, dup := seen[a.AssetTag]; dup {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "asset_tag_unique",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("asset tag %s used by both %s and %s", a.AssetTag, other, a.ID),
				Entity:   domain.EntityAsset,
				EntityID: a.ID,
			})
			continue
		}
		seen[a.AssetTag] = a.ID
	}
	return res, nil
}
