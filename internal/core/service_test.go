package core_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"facilitycore/internal/core"
	"facilitycore/pkg/domain"
)

var (
	requester  = domain.Actor{ID: "u-requester", Role: domain.RoleRequester, Email: "lid@example.org"}
	facilities = domain.Actor{ID: "u-facilities", Role: domain.RoleFacilities}
	admin      = domain.Actor{ID: "u-admin", Role: domain.RoleAdmin}
)

type captureNotifier struct {
	mu     sync.Mutex
	events []core.Event
}

func (n *captureNotifier) Notify(_ context.Context, event core.Event) {
	n.mu.Lock()
	n.events = append(n.events, event)
	n.mu.Unlock()
}

func (n *captureNotifier) all() []core.Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]core.Event, len(n.events))
	copy(out, n.events)
	return out
}

type fixture struct {
	svc      *core.Service
	notifier *captureNotifier
	location domain.Location
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	notifier := &captureNotifier{}
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine(), core.WithNotifier(notifier))
	loc, _, err := svc.CreateLocation(context.Background(), admin, domain.Location{Name: "Main hall"})
	if err != nil {
		t.Fatalf("fixture location: %v", err)
	}
	return fixture{svc: svc, notifier: notifier, location: loc}
}

func (f fixture) createRequest(t *testing.T) domain.RepairRequest {
	t.Helper()
	req, _, err := f.svc.CreateRequest(context.Background(), core.CreateRequestInput{
		Title:         "heating down",
		Description:   "no heat in the main hall",
		LocationID:    f.location.ID,
		Priority:      domain.PriorityHigh,
		RequesterName: "A. Koster",
		Actor:         &requester,
	})
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	return req
}

func TestCreateRequestStartsNewWithOneTimelineEntry(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)

	if req.Status != domain.StatusNew {
		t.Fatalf("status = %s, want new", req.Status)
	}
	if req.Version != 1 {
		t.Fatalf("version = %d, want 1", req.Version)
	}
	timeline, err := f.svc.Timeline(context.Background(), facilities, req.ID)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	if len(timeline) != 1 {
		t.Fatalf("timeline length = %d, want 1", len(timeline))
	}
	if timeline[0].EntryType != domain.EntryStatusChange {
		t.Fatalf("entry type = %s, want status_change", timeline[0].EntryType)
	}

	events := f.notifier.all()
	if len(events) != 1 || events[0].Kind != core.EventCreated {
		t.Fatalf("expected one created event, got %+v", events)
	}
}

func TestCreateRequestValidation(t *testing.T) {
	f := newFixture(t)
	_, _, err := f.svc.CreateRequest(context.Background(), core.CreateRequestInput{
		Priority: domain.Priority("critical"),
	})
	var validation domain.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	fields := make(map[string]bool)
	for _, fe := range validation.Fields {
		fields[fe.Field] = true
	}
	for _, want := range []string{"title", "description", "location_id", "requester_name", "priority"} {
		if !fields[want] {
			t.Fatalf("missing field error for %s: %+v", want, validation.Fields)
		}
	}

	_, _, err = f.svc.CreateRequest(context.Background(), core.CreateRequestInput{
		Title:         "x",
		Description:   "y",
		LocationID:    "nope",
		Priority:      domain.PriorityLow,
		RequesterName: "z",
	})
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError for unknown location, got %v", err)
	}
}

func TestTriageRecordsActorAndEntry(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)

	updated, _, err := f.svc.Triage(context.Background(), facilities, req.ID, "", req.Version)
	if err != nil {
		t.Fatalf("triage: %v", err)
	}
	if updated.Status != domain.StatusTriaged {
		t.Fatalf("status = %s, want triaged", updated.Status)
	}
	if updated.TriagedBy == nil || *updated.TriagedBy != facilities.ID {
		t.Fatalf("triaged_by = %v, want %s", updated.TriagedBy, facilities.ID)
	}
	timeline, _ := f.svc.Timeline(context.Background(), facilities, req.ID)
	if len(timeline) != 2 {
		t.Fatalf("timeline length = %d, want 2", len(timeline))
	}

	// Triage is only valid from new.
	_, _, err = f.svc.Triage(context.Background(), facilities, req.ID, "", 0)
	var invalid domain.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
}

func TestTriageRequiresStaff(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)

	_, _, err := f.svc.Triage(context.Background(), requester, req.ID, "", 0)
	var forbidden domain.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
}

func TestCloseRequiresResolutionSummary(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)
	if _, _, err := f.svc.Triage(context.Background(), facilities, req.ID, "", 0); err != nil {
		t.Fatalf("triage: %v", err)
	}
	if _, _, err := f.svc.Transition(context.Background(), facilities, req.ID, domain.StatusInProgress, core.TransitionInput{}); err != nil {
		t.Fatalf("start: %v", err)
	}

	_, _, err := f.svc.Transition(context.Background(), facilities, req.ID, domain.StatusClosed, core.TransitionInput{})
	var validation domain.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	closed, _, err := f.svc.Transition(context.Background(), facilities, req.ID, domain.StatusClosed, core.TransitionInput{Resolution: "replaced the pump"})
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed.ClosedAt == nil {
		t.Fatalf("closed_at not set")
	}
	if !closed.ClosedAt.Equal(closed.UpdatedAt) {
		t.Fatalf("closed_at %v != updated_at %v", closed.ClosedAt, closed.UpdatedAt)
	}
	if closed.ResolutionSummary != "replaced the pump" {
		t.Fatalf("resolution = %q", closed.ResolutionSummary)
	}
}

func TestIllegalTransitionLeavesStateAndTimelineUntouched(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)
	before, _ := f.svc.GetRequest(context.Background(), facilities, req.ID)
	timelineBefore, _ := f.svc.Timeline(context.Background(), facilities, req.ID)

	_, _, err := f.svc.Transition(context.Background(), facilities, req.ID, domain.StatusDone, core.TransitionInput{})
	var invalid domain.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}
	if invalid.From != domain.StatusNew || invalid.To != domain.StatusDone {
		t.Fatalf("unexpected transition payload: %+v", invalid)
	}

	after, _ := f.svc.GetRequest(context.Background(), facilities, req.ID)
	if after.Status != before.Status || after.Version != before.Version {
		t.Fatalf("state changed after rejected transition: %+v", after)
	}
	timelineAfter, _ := f.svc.Timeline(context.Background(), facilities, req.ID)
	if len(timelineAfter) != len(timelineBefore) {
		t.Fatalf("timeline grew after rejected transition")
	}
}

func TestLeavingClosedRequiresReopen(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)
	assignee := facilities.ID
	if _, _, err := f.svc.Triage(context.Background(), facilities, req.ID, "", 0); err != nil {
		t.Fatalf("triage: %v", err)
	}
	if _, _, err := f.svc.Assign(context.Background(), facilities, req.ID, &assignee, 0); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, _, err := f.svc.Transition(context.Background(), facilities, req.ID, domain.StatusClosed, core.TransitionInput{Resolution: "done"}); err != nil {
		t.Fatalf("close: %v", err)
	}

	// The transition table allows closed -> triaged only through Reopen.
	_, _, err := f.svc.Transition(context.Background(), facilities, req.ID, domain.StatusTriaged, core.TransitionInput{})
	var invalid domain.InvalidTransitionError
	if !errors.As(err, &invalid) {
		t.Fatalf("expected InvalidTransitionError, got %v", err)
	}

	reopened, _, err := f.svc.Reopen(context.Background(), facilities, req.ID, "came back", 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if reopened.Status != domain.StatusTriaged {
		t.Fatalf("status after reopen = %s", reopened.Status)
	}
	if reopened.ClosedAt != nil {
		t.Fatalf("closed_at not cleared on reopen")
	}
	if reopened.AssignedTo == nil || *reopened.AssignedTo != assignee {
		t.Fatalf("assignment lost on reopen: %v", reopened.AssignedTo)
	}
	if reopened.ResolutionSummary == "" {
		t.Fatalf("resolution summary should survive reopen for history")
	}
}

func TestConcurrentTransitionsYieldOneConflict(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)
	triaged, _, err := f.svc.Triage(context.Background(), facilities, req.ID, "", 0)
	if err != nil {
		t.Fatalf("triage: %v", err)
	}

	// Two staff members act on the same read snapshot.
	_, _, first := f.svc.Transition(context.Background(), facilities, req.ID, domain.StatusInProgress, core.TransitionInput{ExpectedVersion: triaged.Version})
	_, _, second := f.svc.Transition(context.Background(), admin, req.ID, domain.StatusWaiting, core.TransitionInput{ExpectedVersion: triaged.Version})

	if first != nil {
		t.Fatalf("first transition failed: %v", first)
	}
	var conflict domain.ConflictError
	if !errors.As(second, &conflict) {
		t.Fatalf("expected ConflictError for stale write, got %v", second)
	}
	got, _ := f.svc.GetRequest(context.Background(), facilities, req.ID)
	if got.Status != domain.StatusInProgress {
		t.Fatalf("status = %s, want in_progress", got.Status)
	}
}

func TestAssignRequiresStaffAndLogsEntry(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)

	assignee := "u-worker"
	_, _, err := f.svc.Assign(context.Background(), requester, req.ID, &assignee, 0)
	var forbidden domain.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}

	updated, _, err := f.svc.Assign(context.Background(), facilities, req.ID, &assignee, 0)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if updated.Status != domain.StatusNew {
		t.Fatalf("assignment must not change status, got %s", updated.Status)
	}
	timeline, _ := f.svc.Timeline(context.Background(), facilities, req.ID)
	last := timeline[len(timeline)-1]
	if last.EntryType != domain.EntryAssignment {
		t.Fatalf("last entry type = %s, want assignment", last.EntryType)
	}

	// Clearing the assignment is also logged.
	if _, _, err := f.svc.Assign(context.Background(), facilities, req.ID, nil, 0); err != nil {
		t.Fatalf("unassign: %v", err)
	}
	got, _ := f.svc.GetRequest(context.Background(), facilities, req.ID)
	if got.AssignedTo != nil {
		t.Fatalf("assignment not cleared")
	}
}

func TestAddNoteOwnershipAndMentions(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)

	if _, _, err := f.svc.AddNote(context.Background(), requester, req.ID, "any update? @u-facilities", 0); err != nil {
		t.Fatalf("owner note: %v", err)
	}

	stranger := domain.Actor{ID: "u-other", Role: domain.RoleRequester}
	_, _, err := f.svc.AddNote(context.Background(), stranger, req.ID, "nosy", 0)
	var forbidden domain.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError for non-owner requester, got %v", err)
	}

	var mention *core.Event
	for _, ev := range f.notifier.all() {
		if ev.Kind == core.EventMention {
			mention = &ev
			break
		}
	}
	if mention == nil {
		t.Fatalf("expected mention event")
	}
	if len(mention.Mentions) != 1 || mention.Mentions[0] != "u-facilities" {
		t.Fatalf("mentions = %v", mention.Mentions)
	}
}

func TestLogTimeValidatesMinutes(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)

	_, _, err := f.svc.LogTime(context.Background(), facilities, req.ID, 0, "nothing", 0)
	var validation domain.ValidationError
	if !errors.As(err, &validation) {
		t.Fatalf("expected ValidationError for zero minutes, got %v", err)
	}

	entry, _, err := f.svc.LogTime(context.Background(), facilities, req.ID, 45, "swapped valve", 0)
	if err != nil {
		t.Fatalf("log time: %v", err)
	}
	if entry.EntryType != domain.EntryTimeSpent || entry.MinutesSpent == nil || *entry.MinutesSpent != 45 {
		t.Fatalf("unexpected entry: %+v", entry)
	}
}

func TestSetDueDateDoesNotTouchTimeline(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)
	before, _ := f.svc.Timeline(context.Background(), facilities, req.ID)

	due := time.Date(2026, 9, 15, 0, 0, 0, 0, time.UTC)
	updated, _, err := f.svc.SetDueDate(context.Background(), facilities, req.ID, &due, 0)
	if err != nil {
		t.Fatalf("set due date: %v", err)
	}
	if updated.DueDate == nil || !updated.DueDate.Equal(due) {
		t.Fatalf("due date = %v", updated.DueDate)
	}
	after, _ := f.svc.Timeline(context.Background(), facilities, req.ID)
	if len(after) != len(before) {
		t.Fatalf("due date change must not log a timeline entry")
	}
}

func TestUpdateProcurementLogsNote(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)

	vendor := "Installatiebedrijf Jansen"
	quote := domain.QuoteRequested
	amount := int64(125000)
	updated, _, err := f.svc.UpdateProcurement(context.Background(), facilities, req.ID, core.ProcurementInput{
		Vendor:           &vendor,
		QuoteStatus:      &quote,
		QuoteAmountCents: &amount,
	})
	if err != nil {
		t.Fatalf("procurement: %v", err)
	}
	if updated.Vendor != vendor || updated.QuoteStatus != quote {
		t.Fatalf("procurement fields not applied: %+v", updated)
	}
	timeline, _ := f.svc.Timeline(context.Background(), facilities, req.ID)
	last := timeline[len(timeline)-1]
	if last.EntryType != domain.EntryNote {
		t.Fatalf("expected note entry, got %s", last.EntryType)
	}
}

func TestSoftDeleteHidesRequest(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)

	_, err := f.svc.SoftDelete(context.Background(), facilities, req.ID, 0)
	var forbidden domain.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError for facilities, got %v", err)
	}

	if _, err := f.svc.SoftDelete(context.Background(), admin, req.ID, 0); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	_, err = f.svc.GetRequest(context.Background(), admin, req.ID)
	var notFound domain.NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError after soft delete, got %v", err)
	}
}

func TestAddAttachmentAppendsInOrder(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)

	for i, key := range []string{"requests/1/a", "requests/1/b"} {
		ref := domain.AttachmentRef{Key: key, ContentType: "image/png", SizeBytes: int64(100 + i)}
		if _, _, err := f.svc.AddAttachment(context.Background(), requester, req.ID, ref, 0); err != nil {
			t.Fatalf("attach %s: %v", key, err)
		}
	}
	got, _ := f.svc.GetRequest(context.Background(), facilities, req.ID)
	if len(got.Attachments) != 2 || got.Attachments[0].Key != "requests/1/a" || got.Attachments[1].Key != "requests/1/b" {
		t.Fatalf("attachments out of order: %+v", got.Attachments)
	}

	stranger := domain.Actor{ID: "u-other", Role: domain.RoleRequester}
	_, _, err := f.svc.AddAttachment(context.Background(), stranger, req.ID, domain.AttachmentRef{Key: "x"}, 0)
	var forbidden domain.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
}

func TestGetRequestVisibility(t *testing.T) {
	f := newFixture(t)
	req := f.createRequest(t)

	if _, err := f.svc.GetRequest(context.Background(), requester, req.ID); err != nil {
		t.Fatalf("owner view: %v", err)
	}
	stranger := domain.Actor{ID: "u-other", Role: domain.RoleRequester}
	_, err := f.svc.GetRequest(context.Background(), stranger, req.ID)
	var forbidden domain.ForbiddenError
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ForbiddenError, got %v", err)
	}
}
