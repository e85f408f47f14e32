package core

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"facilitycore/internal/infra/persistence/memory"
	"facilitycore/pkg/domain"
)

// Event is handed to the notification dispatcher after a transaction commits.
type Event struct {
	Kind      EventKind
	RequestID int64
	Summary   string
	ActorID   string
	Mentions  []string
}

// EventKind classifies dispatcher events.
type EventKind string

// Dispatcher event kinds.
const (
	EventCreated      EventKind = "created"
	EventTransitioned EventKind = "transitioned"
	EventAssigned     EventKind = "assigned"
	EventMention      EventKind = "mention"
)

// Notifier receives events after commit. Implementations are best-effort:
// the service never consults a return value and never blocks a mutation on
// dispatch.
type Notifier interface {
	Notify(ctx context.Context, event Event)
}

// Service exposes the work-order lifecycle operations. Every mutation runs as
// one transaction: read, validate, write, append the paired work log entry.
type Service struct {
	store    domain.PersistentStore
	logger   Logger
	metrics  MetricsRecorder
	tracer   Tracer
	notifier Notifier
}

// Option configures a Service.
type Option func(*Service)

// WithLogger installs a logger.
func WithLogger(l Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithMetrics installs a metrics recorder.
func WithMetrics(m MetricsRecorder) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracer installs a tracer.
func WithTracer(t Tracer) Option {
	return func(s *Service) { s.tracer = t }
}

// WithNotifier installs the post-commit notification dispatcher.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// NewService constructs a service backed by the supplied store.
func NewService(store domain.PersistentStore, opts ...Option) *Service {
	s := &Service{store: store, logger: noopLogger{}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NewInMemoryService creates a service over a fresh in-memory store with the
// given rules engine.
func NewInMemoryService(engine *domain.RulesEngine, opts ...Option) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() domain.PersistentStore { return s.store }

func (s *Service) notify(ctx context.Context, event Event) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(ctx, event)
}

func requireCapability(actor domain.Actor, capability domain.Capability) error {
	if !domain.CanPerform(actor, capability) {
		return domain.ForbiddenError{ActorID: actor.ID, Capability: capability}
	}
	return nil
}

// CreateRequestInput carries the submission form fields. Actor is the
// authenticated submitter when present; anonymous submissions are allowed.
type CreateRequestInput struct {
	Title            string
	Description      string
	LocationID       string
	AssetID          *string
	Priority         domain.Priority
	RequesterName    string
	RequesterEmail   string
	RequesterPhone   string
	PreferredContact domain.ContactMethod
	Actor            *domain.Actor
}

func (in CreateRequestInput) validate() error {
	var fields []domain.FieldError
	if in.Title == "" {
		fields = append(fields, domain.FieldError{Field: "title", Message: "required"})
	}
	if in.Description == "" {
		fields = append(fields, domain.FieldError{Field: "description", Message: "required"})
	}
	if in.LocationID == "" {
		fields = append(fields, domain.FieldError{Field: "location_id", Message: "required"})
	}
	if in.RequesterName == "" {
		fields = append(fields, domain.FieldError{Field: "requester_name", Message: "required"})
	}
	switch in.Priority {
	case domain.PriorityLow, domain.PriorityNormal, domain.PriorityHigh, domain.PriorityUrgent:
	case "":
		fields = append(fields, domain.FieldError{Field: "priority", Message: "required"})
	default:
		fields = append(fields, domain.FieldError{Field: "priority", Message: "unknown priority"})
	}
	if len(fields) > 0 {
		return domain.ValidationError{Fields: fields}
	}
	return nil
}

// CreateRequest validates and persists a new work order in status new,
// appends the creation timeline entry in the same transaction, and schedules
// a creation notification after commit.
func (s *Service) CreateRequest(ctx context.Context, in CreateRequestInput) (domain.RepairRequest, domain.Result, error) {
	ctx, done := s.observe(ctx, "create_request")
	var created domain.RepairRequest
	res, err := func() (domain.Result, error) {
		if err := in.validate(); err != nil {
			return domain.Result{}, err
		}
		req := domain.RepairRequest{
			Title:            in.Title,
			Description:      in.Description,
			LocationID:       in.LocationID,
			AssetID:          in.AssetID,
			Priority:         in.Priority,
			Status:           domain.StatusNew,
			RequesterName:    in.RequesterName,
			RequesterEmail:   in.RequesterEmail,
			RequesterPhone:   in.RequesterPhone,
			PreferredContact: in.PreferredContact,
			QuoteStatus:      domain.QuoteNone,
		}
		if req.PreferredContact == "" {
			req.PreferredContact = domain.ContactEmail
		}
		var author *string
		if in.Actor != nil {
			req.RequesterActorID = &in.Actor.ID
			author = &in.Actor.ID
		}
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if _, ok := tx.FindLocation(in.LocationID); !ok {
				return domain.ValidationError{Fields: []domain.FieldError{{Field: "location_id", Message: "unknown location"}}}
			}
			if in.AssetID != nil {
				if _, ok := tx.FindAsset(*in.AssetID); !ok {
					return domain.ValidationError{Fields: []domain.FieldError{{Field: "asset_id", Message: "unknown asset"}}}
				}
			}
			var err error
			created, err = tx.CreateRequest(req)
			if err != nil {
				return err
			}
			_, err = tx.AppendWorkLog(domain.WorkLogEntry{
				RequestID: created.ID,
				Author:    author,
				EntryType: domain.EntryStatusChange,
				Note:      "created",
			})
			return err
		})
	}()
	done(err)
	if err != nil {
		return domain.RepairRequest{}, res, err
	}
	s.notify(ctx, Event{
		Kind:      EventCreated,
		RequestID: created.ID,
		Summary:   fmt.Sprintf("#%d %s (%s)", created.ID, created.Title, created.Priority),
	})
	return created, res, nil
}

// Triage moves a new request to triaged and records the triaging actor.
func (s *Service) Triage(ctx context.Context, actor domain.Actor, id int64, note string, expectedVersion uint64) (domain.RepairRequest, domain.Result, error) {
	ctx, done := s.observe(ctx, "triage")
	var updated domain.RepairRequest
	res, err := func() (domain.Result, error) {
		if err := requireCapability(actor, domain.CapWorkRequests); err != nil {
			return domain.Result{}, err
		}
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			updated, err = tx.UpdateRequest(id, expectedVersion, func(r *domain.RepairRequest) error {
				if r.Status != domain.StatusNew {
					return domain.InvalidTransitionError{From: r.Status, To: domain.StatusTriaged}
				}
				r.Status = domain.StatusTriaged
				r.TriagedBy = &actor.ID
				return nil
			})
			if err != nil {
				return err
			}
			entryNote := note
			if entryNote == "" {
				entryNote = "status changed from new to triaged"
			}
			_, err = tx.AppendWorkLog(domain.WorkLogEntry{
				RequestID: id,
				Author:    &actor.ID,
				EntryType: domain.EntryStatusChange,
				Note:      entryNote,
			})
			return err
		})
	}()
	done(err)
	if err != nil {
		return domain.RepairRequest{}, res, err
	}
	s.notify(ctx, Event{
		Kind:      EventTransitioned,
		RequestID: id,
		ActorID:   actor.ID,
		Summary:   fmt.Sprintf("#%d triaged", id),
	})
	return updated, res, nil
}

// TransitionInput carries the optional fields of a status transition.
type TransitionInput struct {
	Note string
	// Resolution fills the resolution summary when entering closed and the
	// request does not already carry one.
	Resolution      string
	ExpectedVersion uint64
}

// Transition applies a lifecycle state change. Illegal targets fail with
// InvalidTransitionError; entering closed requires a resolution summary and
// stamps ClosedAt with the transaction clock, so it equals UpdatedAt.
func (s *Service) Transition(ctx context.Context, actor domain.Actor, id int64, target domain.RequestStatus, in TransitionInput) (domain.RepairRequest, domain.Result, error) {
	ctx, done := s.observe(ctx, "transition")
	var updated domain.RepairRequest
	var from domain.RequestStatus
	res, err := func() (domain.Result, error) {
		if err := requireCapability(actor, domain.CapWorkRequests); err != nil {
			return domain.Result{}, err
		}
		if !domain.ValidStatus(target) {
			return domain.Result{}, domain.ValidationError{Fields: []domain.FieldError{{Field: "status", Message: "unknown status"}}}
		}
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			memTx, _ := tx.(*memory.Tx)
			var err error
			updated, err = tx.UpdateRequest(id, in.ExpectedVersion, func(r *domain.RepairRequest) error {
				from = r.Status
				// Leaving closed requires the explicit reopen operation.
				if r.Status == domain.StatusClosed {
					return domain.InvalidTransitionError{From: r.Status, To: target}
				}
				if !domain.CanTransition(r.Status, target) {
					return domain.InvalidTransitionError{From: r.Status, To: target}
				}
				if target == domain.StatusClosed {
					if in.Resolution != "" {
						r.ResolutionSummary = in.Resolution
					}
					if r.ResolutionSummary == "" {
						return domain.ValidationError{Fields: []domain.FieldError{{Field: "resolution_summary", Message: "required to close"}}}
					}
					now := time.Now().UTC()
					if memTx != nil {
						now = memTx.Now()
					}
					r.ClosedAt = &now
				}
				r.Status = target
				return nil
			})
			if err != nil {
				return err
			}
			entryNote := in.Note
			if entryNote == "" {
				entryNote = fmt.Sprintf("status changed from %s to %s", from, target)
			}
			_, err = tx.AppendWorkLog(domain.WorkLogEntry{
				RequestID: id,
				Author:    &actor.ID,
				EntryType: domain.EntryStatusChange,
				Note:      entryNote,
			})
			return err
		})
	}()
	done(err)
	if err != nil {
		return domain.RepairRequest{}, res, err
	}
	s.notify(ctx, Event{
		Kind:      EventTransitioned,
		RequestID: id,
		ActorID:   actor.ID,
		Summary:   fmt.Sprintf("#%d %s -> %s", id, from, target),
	})
	return updated, res, nil
}

// Reopen moves a closed request back to triaged, clearing ClosedAt. The
// assignment is preserved. Facilities or admin only.
func (s *Service) Reopen(ctx context.Context, actor domain.Actor, id int64, note string, expectedVersion uint64) (domain.RepairRequest, domain.Result, error) {
	ctx, done := s.observe(ctx, "reopen")
	var updated domain.RepairRequest
	res, err := func() (domain.Result, error) {
		if err := requireCapability(actor, domain.CapWorkRequests); err != nil {
			return domain.Result{}, err
		}
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			updated, err = tx.UpdateRequest(id, expectedVersion, func(r *domain.RepairRequest) error {
				if r.Status != domain.StatusClosed {
					return domain.InvalidTransitionError{From: r.Status, To: domain.StatusTriaged}
				}
				r.Status = domain.StatusTriaged
				r.ClosedAt = nil
				return nil
			})
			if err != nil {
				return err
			}
			entryNote := note
			if entryNote == "" {
				entryNote = "reopened"
			}
			_, err = tx.AppendWorkLog(domain.WorkLogEntry{
				RequestID: id,
				Author:    &actor.ID,
				EntryType: domain.EntryStatusChange,
				Note:      entryNote,
			})
			return err
		})
	}()
	done(err)
	if err != nil {
		return domain.RepairRequest{}, res, err
	}
	s.notify(ctx, Event{
		Kind:      EventTransitioned,
		RequestID: id,
		ActorID:   actor.ID,
		Summary:   fmt.Sprintf("#%d reopened", id),
	})
	return updated, res, nil
}

// Assign sets or clears the assignee. Assignment is orthogonal to lifecycle
// state: the status never changes here.
func (s *Service) Assign(ctx context.Context, actor domain.Actor, id int64, assignee *string, expectedVersion uint64) (domain.RepairRequest, domain.Result, error) {
	ctx, done := s.observe(ctx, "assign")
	var updated domain.RepairRequest
	res, err := func() (domain.Result, error) {
		if err := requireCapability(actor, domain.CapWorkRequests); err != nil {
			return domain.Result{}, err
		}
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			updated, err = tx.UpdateRequest(id, expectedVersion, func(r *domain.RepairRequest) error {
				r.AssignedTo = assignee
				return nil
			})
			if err != nil {
				return err
			}
			note := "assignment removed"
			if assignee != nil {
				note = "assigned to " + *assignee
			}
			_, err = tx.AppendWorkLog(domain.WorkLogEntry{
				RequestID: id,
				Author:    &actor.ID,
				EntryType: domain.EntryAssignment,
				Note:      note,
			})
			return err
		})
	}()
	done(err)
	if err != nil {
		return domain.RepairRequest{}, res, err
	}
	if assignee != nil {
		s.notify(ctx, Event{
			Kind:      EventAssigned,
			RequestID: id,
			ActorID:   actor.ID,
			Summary:   fmt.Sprintf("#%d assigned to %s", id, *assignee),
			Mentions:  []string{*assignee},
		})
	}
	return updated, res, nil
}

// AddNote appends a note entry. Staff may note any request; a requester only
// their own.
func (s *Service) AddNote(ctx context.Context, actor domain.Actor, id int64, text string, expectedVersion uint64) (domain.WorkLogEntry, domain.Result, error) {
	ctx, done := s.observe(ctx, "add_note")
	var entry domain.WorkLogEntry
	res, err := func() (domain.Result, error) {
		if text == "" {
			return domain.Result{}, domain.ValidationError{Fields: []domain.FieldError{{Field: "note", Message: "required"}}}
		}
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			current, ok := tx.FindRequest(id)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityRequest, ID: strconv.FormatInt(id, 10)}
			}
			if !domain.CanPerform(actor, domain.CapWorkRequests) && !domain.OwnsRequest(actor, current) {
				return domain.ForbiddenError{ActorID: actor.ID, Capability: domain.CapWorkRequests}
			}
			if _, err := tx.UpdateRequest(id, expectedVersion, func(*domain.RepairRequest) error { return nil }); err != nil {
				return err
			}
			var err error
			entry, err = tx.AppendWorkLog(domain.WorkLogEntry{
				RequestID: id,
				Author:    &actor.ID,
				EntryType: domain.EntryNote,
				Note:      text,
			})
			return err
		})
	}()
	done(err)
	if err != nil {
		return domain.WorkLogEntry{}, res, err
	}
	if mentions := extractMentions(text); len(mentions) > 0 {
		s.notify(ctx, Event{
			Kind:      EventMention,
			RequestID: id,
			ActorID:   actor.ID,
			Summary:   text,
			Mentions:  mentions,
		})
	}
	return entry, res, nil
}

// LogTime appends a time-spent entry. Facilities or admin only.
func (s *Service) LogTime(ctx context.Context, actor domain.Actor, id int64, minutes int, text string, expectedVersion uint64) (domain.WorkLogEntry, domain.Result, error) {
	ctx, done := s.observe(ctx, "log_time")
	var entry domain.WorkLogEntry
	res, err := func() (domain.Result, error) {
		if err := requireCapability(actor, domain.CapWorkRequests); err != nil {
			return domain.Result{}, err
		}
		if minutes <= 0 {
			return domain.Result{}, domain.ValidationError{Fields: []domain.FieldError{{Field: "minutes_spent", Message: "must be positive"}}}
		}
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			if _, err := tx.UpdateRequest(id, expectedVersion, func(*domain.RepairRequest) error { return nil }); err != nil {
				return err
			}
			var err error
			entry, err = tx.AppendWorkLog(domain.WorkLogEntry{
				RequestID:    id,
				Author:       &actor.ID,
				EntryType:    domain.EntryTimeSpent,
				Note:         text,
				MinutesSpent: &minutes,
			})
			return err
		})
	}()
	done(err)
	if err != nil {
		return domain.WorkLogEntry{}, res, err
	}
	return entry, res, nil
}

// SetDueDate updates the due date. Deliberately not logged to the timeline:
// due-date tuning is frequent triage noise, and the change remains visible
// via UpdatedAt.
func (s *Service) SetDueDate(ctx context.Context, actor domain.Actor, id int64, due *time.Time, expectedVersion uint64) (domain.RepairRequest, domain.Result, error) {
	ctx, done := s.observe(ctx, "set_due_date")
	var updated domain.RepairRequest
	res, err := func() (domain.Result, error) {
		if err := requireCapability(actor, domain.CapWorkRequests); err != nil {
			return domain.Result{}, err
		}
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			updated, err = tx.UpdateRequest(id, expectedVersion, func(r *domain.RepairRequest) error {
				r.DueDate = due
				return nil
			})
			return err
		})
	}()
	done(err)
	if err != nil {
		return domain.RepairRequest{}, res, err
	}
	return updated, res, nil
}

// ProcurementInput carries vendor and cost fields.
type ProcurementInput struct {
	Vendor             *string
	QuoteStatus        *domain.QuoteStatus
	QuoteAmountCents   *int64
	PONumber           *string
	EstimatedCostCents *int64
	ActualCostCents    *int64
	ExpectedVersion    uint64
}

// UpdateProcurement updates the request-local procurement fields and records
// a note entry. Facilities or admin only.
func (s *Service) UpdateProcurement(ctx context.Context, actor domain.Actor, id int64, in ProcurementInput) (domain.RepairRequest, domain.Result, error) {
	ctx, done := s.observe(ctx, "update_procurement")
	var updated domain.RepairRequest
	res, err := func() (domain.Result, error) {
		if err := requireCapability(actor, domain.CapWorkRequests); err != nil {
			return domain.Result{}, err
		}
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			var err error
			updated, err = tx.UpdateRequest(id, in.ExpectedVersion, func(r *domain.RepairRequest) error {
				if in.Vendor != nil {
					r.Vendor = *in.Vendor
				}
				if in.QuoteStatus != nil {
					r.QuoteStatus = *in.QuoteStatus
				}
				if in.QuoteAmountCents != nil {
					r.QuoteAmountCents = in.QuoteAmountCents
				}
				if in.PONumber != nil {
					r.PONumber = *in.PONumber
				}
				if in.EstimatedCostCents != nil {
					r.EstimatedCostCents = in.EstimatedCostCents
				}
				if in.ActualCostCents != nil {
					r.ActualCostCents = in.ActualCostCents
				}
				return nil
			})
			if err != nil {
				return err
			}
			_, err = tx.AppendWorkLog(domain.WorkLogEntry{
				RequestID: id,
				Author:    &actor.ID,
				EntryType: domain.EntryNote,
				Note:      "procurement details updated",
			})
			return err
		})
	}()
	done(err)
	if err != nil {
		return domain.RepairRequest{}, res, err
	}
	return updated, res, nil
}

// AddAttachment appends a validated attachment reference to the request.
// Content validation happens in the blob layer; the core stores the
// reference and upload order only.
func (s *Service) AddAttachment(ctx context.Context, actor domain.Actor, id int64, ref domain.AttachmentRef, expectedVersion uint64) (domain.RepairRequest, domain.Result, error) {
	ctx, done := s.observe(ctx, "add_attachment")
	var updated domain.RepairRequest
	res, err := func() (domain.Result, error) {
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			current, ok := tx.FindRequest(id)
			if !ok {
				return domain.NotFoundError{Entity: domain.EntityRequest, ID: strconv.FormatInt(id, 10)}
			}
			if !domain.CanPerform(actor, domain.CapWorkRequests) && !domain.OwnsRequest(actor, current) {
				return domain.ForbiddenError{ActorID: actor.ID, Capability: domain.CapWorkRequests}
			}
			var err error
			updated, err = tx.UpdateRequest(id, expectedVersion, func(r *domain.RepairRequest) error {
				r.Attachments = append(r.Attachments, ref)
				return nil
			})
			return err
		})
	}()
	done(err)
	if err != nil {
		return domain.RepairRequest{}, res, err
	}
	return updated, res, nil
}

// SoftDelete hides a request from every query while keeping its history for
// audit. Admin only.
func (s *Service) SoftDelete(ctx context.Context, actor domain.Actor, id int64, expectedVersion uint64) (domain.Result, error) {
	ctx, done := s.observe(ctx, "soft_delete")
	res, err := func() (domain.Result, error) {
		if err := requireCapability(actor, domain.CapManageCatalog); err != nil {
			return domain.Result{}, err
		}
		return s.store.RunInTransaction(ctx, func(tx domain.Transaction) error {
			memTx, _ := tx.(*memory.Tx)
			_, err := tx.UpdateRequest(id, expectedVersion, func(r *domain.RepairRequest) error {
				now := time.Now().UTC()
				if memTx != nil {
					now = memTx.Now()
				}
				r.Deleted = true
				r.DeletedAt = &now
				r.DeletedBy = &actor.ID
				return nil
			})
			return err
		})
	}()
	done(err)
	return res, err
}
