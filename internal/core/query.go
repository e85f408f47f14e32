package core

import (
	"context"
	"sort"
	"strings"
	"time"

	"facilitycore/pkg/domain"
)

// Inbox is the triage dashboard: every open request ordered by urgency, plus
// headline counts.
type Inbox struct {
	Requests     []domain.RepairRequest `json:"requests"`
	StatusCounts map[domain.RequestStatus]int `json:"status_counts"`
	OverdueCount int `json:"overdue_count"`
}

// DashboardInbox returns the open workload for facilities staff, most urgent
// first (priority rank descending, oldest first within a priority).
func (s *Service) DashboardInbox(_ context.Context, actor domain.Actor) (Inbox, error) {
	if err := requireCapability(actor, domain.CapViewAllRequests); err != nil {
		return Inbox{}, err
	}
	now := time.Now().UTC()
	inbox := Inbox{StatusCounts: make(map[domain.RequestStatus]int)}
	for _, req := range s.store.ListRequests() {
		inbox.StatusCounts[req.Status]++
		if !req.Open() {
			continue
		}
		if req.Overdue(now) {
			inbox.OverdueCount++
		}
		inbox.Requests = append(inbox.Requests, req)
	}
	sort.SliceStable(inbox.Requests, func(i, j int) bool {
		a, b := inbox.Requests[i], inbox.Requests[j]
		if a.Priority.Rank() != b.Priority.Rank() {
			return a.Priority.Rank() > b.Priority.Rank()
		}
		return a.CreatedAt.Before(b.CreatedAt)
	})
	return inbox, nil
}

// AssigneeUnassigned filters for requests with no assignee; AssigneeMe
// resolves to the calling actor.
const (
	AssigneeUnassigned = "unassigned"
	AssigneeMe         = "me"
)

// RequestFilter narrows a request listing. Zero values match everything.
type RequestFilter struct {
	Status     domain.RequestStatus
	Priority   domain.Priority
	LocationID string
	AssetID    string
	// Assignee is an actor ID, AssigneeMe, or AssigneeUnassigned.
	Assignee string
	// Search matches case-insensitively against title, description, and
	// requester name.
	Search string
}

func (f RequestFilter) matches(actor domain.Actor, req domain.RepairRequest) bool {
	if f.Status != "" && req.Status != f.Status {
		return false
	}
	if f.Priority != "" && req.Priority != f.Priority {
		return false
	}
	if f.LocationID != "" && req.LocationID != f.LocationID {
		return false
	}
	if f.AssetID != "" && (req.AssetID == nil || *req.AssetID != f.AssetID) {
		return false
	}
	switch f.Assignee {
	case "":
	case AssigneeUnassigned:
		if req.AssignedTo != nil {
			return false
		}
	case AssigneeMe:
		if req.AssignedTo == nil || *req.AssignedTo != actor.ID {
			return false
		}
	default:
		if req.AssignedTo == nil || *req.AssignedTo != f.Assignee {
			return false
		}
	}
	if f.Search != "" {
		needle := strings.ToLower(f.Search)
		haystack := strings.ToLower(req.Title + " " + req.Description + " " + req.RequesterName)
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

// ListRequests returns requests matching the filter, newest first. A
// requester only ever sees their own submissions regardless of filter.
func (s *Service) ListRequests(_ context.Context, actor domain.Actor, filter RequestFilter) ([]domain.RepairRequest, error) {
	all := domain.CanPerform(actor, domain.CapViewAllRequests)
	out := []domain.RepairRequest{}
	for _, req := range s.store.ListRequests() {
		if !all && !domain.OwnsRequest(actor, req) {
			continue
		}
		if filter.matches(actor, req) {
			out = append(out, req)
		}
	}
	return out, nil
}

// AssetDetail bundles an asset with its service history.
type AssetDetail struct {
	Asset        domain.Asset           `json:"asset"`
	OpenRequests []domain.RepairRequest `json:"open_requests"`
	TotalMinutes int                    `json:"total_minutes"`
}

// GetAssetDetail returns the asset, its open requests newest first, and the
// total minutes logged across all of its requests.
func (s *Service) GetAssetDetail(ctx context.Context, actor domain.Actor, id string) (AssetDetail, error) {
	asset, err := s.GetAsset(ctx, actor, id)
	if err != nil {
		return AssetDetail{}, err
	}
	detail := AssetDetail{Asset: asset, OpenRequests: []domain.RepairRequest{}}
	for _, req := range s.store.ListRequests() {
		if req.AssetID == nil || *req.AssetID != id {
			continue
		}
		if req.Open() {
			detail.OpenRequests = append(detail.OpenRequests, req)
		}
		for _, entry := range s.store.TimelineFor(req.ID) {
			if entry.MinutesSpent != nil {
				detail.TotalMinutes += *entry.MinutesSpent
			}
		}
	}
	return detail, nil
}

// PlannerDay groups the requests due on one calendar day.
type PlannerDay struct {
	Date     time.Time              `json:"date"`
	Requests []domain.RepairRequest `json:"requests"`
}

// PlannerMonth lists open requests with due dates inside a month, grouped by
// day, plus the open requests already overdue at the start of the month.
type PlannerMonth struct {
	Year    int          `json:"year"`
	Month   time.Month   `json:"month"`
	Days    []PlannerDay `json:"days"`
	Overdue []domain.RepairRequest `json:"overdue"`
}

// Planner builds the month view for facilities scheduling.
func (s *Service) Planner(_ context.Context, actor domain.Actor, year int, month time.Month) (PlannerMonth, error) {
	if err := requireCapability(actor, domain.CapViewAllRequests); err != nil {
		return PlannerMonth{}, err
	}
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)

	view := PlannerMonth{Year: year, Month: month}
	byDay := make(map[time.Time][]domain.RepairRequest)
	for _, req := range s.store.ListRequests() {
		if !req.Open() || req.DueDate == nil {
			continue
		}
		due := req.DueDate.UTC()
		if due.Before(start) {
			view.Overdue = append(view.Overdue, req)
			continue
		}
		if !due.Before(end) {
			continue
		}
		day := time.Date(due.Year(), due.Month(), due.Day(), 0, 0, 0, 0, time.UTC)
		byDay[day] = append(byDay[day], req)
	}
	days := make([]time.Time, 0, len(byDay))
	for day := range byDay {
		days = append(days, day)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })
	for _, day := range days {
		requests := byDay[day]
		sort.SliceStable(requests, func(i, j int) bool {
			return requests[i].Priority.Rank() > requests[j].Priority.Rank()
		})
		view.Days = append(view.Days, PlannerDay{Date: day, Requests: requests})
	}
	sort.SliceStable(view.Overdue, func(i, j int) bool {
		return view.Overdue[i].DueDate.Before(*view.Overdue[j].DueDate)
	})
	return view, nil
}
