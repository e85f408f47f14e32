package core

import (
	"context"
	"fmt"
	"strconv"

	"facilitycore/pkg/domain"
)

// NewClosedStateRule blocks request writes that break the closure invariants:
// ClosedAt is set exactly when the status is closed, and a closed request
// carries a resolution summary.
func NewClosedStateRule() domain.Rule {
	return closedStateRule{}
}

type closedStateRule struct{}

func (closedStateRule) Name() string { return "closed_state" }

func (closedStateRule) Evaluate(_ context.Context, _ domain.RuleView, changes []domain.Change) (domain.Result, error) {
	res := domain.Result{}
	for _, change := range changes {
		if change.Entity != domain.EntityRequest || change.Action == domain.ActionDelete {
			continue
		}
		req, ok := change.After.(domain.RepairRequest)
		if !ok {
			continue
		}
		id := strconv.FormatInt(req.ID, 10)
		closed := req.Status == domain.StatusClosed
		if closed != (req.ClosedAt != nil) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "closed_state",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("request #%d: closed_at must be set exactly when status is closed", req.ID),
				Entity:   domain.EntityRequest,
				EntityID: id,
			})
		}
		if closed && req.ResolutionSummary == "" {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "closed_state",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("request #%d closed without resolution summary", req.ID),
				Entity:   domain.EntityRequest,
				EntityID: id,
			})
		}
		if !domain.ValidStatus(req.Status) {
			res.Violations = append(res.Violations, domain.Violation{
				Rule:     "closed_state",
				Severity: domain.SeverityBlock,
				Message:  fmt.Sprintf("request #%d has unknown status %s", req.ID, req.Status),
				Entity:   domain.EntityRequest,
				EntityID: id,
			})
		}
	}
	return res, nil
}
