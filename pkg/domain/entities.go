// Package domain defines the persistent entities, value types, typed errors,
// and rule evaluation primitives of the facility work-order core.
package domain

import "time"

// EntityType identifies the type of record stored in the core domain.
type EntityType string

// Supported entity type identifiers used in Change records and persistence buckets.
const (
	// EntityLocation identifies a physical location record.
	EntityLocation EntityType = "location"
	// EntityAsset identifies an equipment or installation record.
	EntityAsset EntityType = "asset"
	// EntityRequest identifies a repair request (work order) record.
	EntityRequest EntityType = "repair_request"
	// EntityWorkLog identifies an append-only work log entry.
	EntityWorkLog EntityType = "work_log_entry"
)

// RequestStatus enumerates the work-order lifecycle states.
type RequestStatus string

// Canonical request statuses. New is the sole initial state; Closed is
// terminal except for an explicit reopen back to Triaged.
const (
	StatusNew        RequestStatus = "new"
	StatusTriaged    RequestStatus = "triaged"
	StatusInProgress RequestStatus = "in_progress"
	StatusWaiting    RequestStatus = "waiting"
	StatusDone       RequestStatus = "done"
	StatusClosed     RequestStatus = "closed"
)

// Priority ranks how urgently a request needs attention.
type Priority string

// Request priorities from least to most urgent.
const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Rank returns the sort weight of a priority, higher meaning more urgent.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 3
	case PriorityHigh:
		return 2
	case PriorityNormal:
		return 1
	default:
		return 0
	}
}

// ContactMethod is the requester's preferred way to be reached.
type ContactMethod string

// Supported contact methods.
const (
	ContactEmail ContactMethod = "email"
	ContactPhone ContactMethod = "phone"
)

// AssetStatus enumerates asset serviceability states.
type AssetStatus string

// Canonical asset statuses.
const (
	AssetOperational    AssetStatus = "operational"
	AssetNeedsAttention AssetStatus = "needs_attention"
	AssetOutOfService   AssetStatus = "out_of_service"
	AssetDecommissioned AssetStatus = "decommissioned"
)

// AssetCategory groups assets by trade.
type AssetCategory string

// Canonical asset categories.
const (
	CategoryHVAC       AssetCategory = "hvac"
	CategoryElectrical AssetCategory = "electrical"
	CategoryPlumbing   AssetCategory = "plumbing"
	CategorySafety     AssetCategory = "safety"
	CategoryAV         AssetCategory = "av"
	CategoryFurniture  AssetCategory = "furniture"
	CategoryBuilding   AssetCategory = "building"
	CategoryOther      AssetCategory = "other"
)

// Criticality rates how important an asset is to operations, independent of
// any single request's priority.
type Criticality string

// Asset criticality ratings.
const (
	CriticalityLow    Criticality = "low"
	CriticalityMedium Criticality = "medium"
	CriticalityHigh   Criticality = "high"
)

// QuoteStatus tracks procurement progress on a request.
type QuoteStatus string

// Quote workflow states.
const (
	QuoteNone      QuoteStatus = "none"
	QuoteRequested QuoteStatus = "requested"
	QuoteReceived  QuoteStatus = "received"
	QuoteApproved  QuoteStatus = "approved"
)

// EntryType classifies a work log entry.
type EntryType string

// Work log entry types.
const (
	EntryNote         EntryType = "note"
	EntryStatusChange EntryType = "status_change"
	EntryAssignment   EntryType = "assignment"
	EntryTimeSpent    EntryType = "time_spent"
)

// Severity captures rule outcomes.
type Severity string

// Rule evaluation severities determine commit behavior and logging.
const (
	// SeverityBlock blocks transaction commit.
	SeverityBlock Severity = "block"
	// SeverityWarn logs a warning but allows commit.
	SeverityWarn Severity = "warn"
	SeverityLog  Severity = "log"
)

// Base contains common fields for catalog records.
type Base struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Location is a physical place in the facility. Locations form a tree via
// ParentID; the parent chain must terminate (no cycles).
type Location struct {
	Base
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
	Notes    string  `json:"notes,omitempty"`
}

// Asset is a piece of equipment or an installation tracked for maintenance.
// Assets have a lifecycle independent from requests; a request references
// zero or one asset.
type Asset struct {
	Base
	AssetTag        string        `json:"asset_tag"`
	Name            string        `json:"name"`
	Category        AssetCategory `json:"category"`
	LocationID      string        `json:"location_id"`
	Manufacturer    string        `json:"manufacturer,omitempty"`
	Model           string        `json:"model,omitempty"`
	SerialNumber    string        `json:"serial_number,omitempty"`
	InstallDate     *time.Time    `json:"install_date"`
	Status          AssetStatus   `json:"status"`
	Criticality     Criticality   `json:"criticality"`
	WarrantyEndDate *time.Time    `json:"warranty_end_date"`
	PhotoKey        *string       `json:"photo_key,omitempty"`
	Description     string        `json:"description,omitempty"`
}

// AttachmentRef points at a stored attachment blob. The core keeps only the
// reference and upload order; content validation lives in the blob layer.
type AttachmentRef struct {
	Key         string    `json:"key"`
	Title       string    `json:"title,omitempty"`
	ContentType string    `json:"content_type,omitempty"`
	SizeBytes   int64     `json:"size_bytes"`
	UploadedAt  time.Time `json:"uploaded_at"`
	UploadedBy  *string   `json:"uploaded_by"`
}

// RepairRequest is a tracked repair task (work order) from submission to
// closure. The ID is the human-facing sequential work order number. Version
// increments on every committed mutation and backs the optimistic
// concurrency check.
type RepairRequest struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Version   uint64    `json:"version"`

	Title       string        `json:"title"`
	Description string        `json:"description"`
	LocationID  string        `json:"location_id"`
	AssetID     *string       `json:"asset_id"`
	Priority    Priority      `json:"priority"`
	Status      RequestStatus `json:"status"`

	RequesterName    string        `json:"requester_name"`
	RequesterEmail   string        `json:"requester_email,omitempty"`
	RequesterPhone   string        `json:"requester_phone,omitempty"`
	PreferredContact ContactMethod `json:"preferred_contact"`
	RequesterActorID *string       `json:"requester_actor_id"`

	AssignedTo *string    `json:"assigned_to"`
	TriagedBy  *string    `json:"triaged_by"`
	DueDate    *time.Time `json:"due_date"`

	ResolutionSummary string     `json:"resolution_summary,omitempty"`
	ClosedAt          *time.Time `json:"closed_at"`

	EstimatedCostCents *int64      `json:"estimated_cost_cents"`
	ActualCostCents    *int64      `json:"actual_cost_cents"`
	Vendor             string      `json:"vendor,omitempty"`
	QuoteStatus        QuoteStatus `json:"quote_status"`
	QuoteAmountCents   *int64      `json:"quote_amount_cents"`
	PONumber           string      `json:"po_number,omitempty"`

	Attachments []AttachmentRef `json:"attachments"`

	Deleted   bool       `json:"deleted"`
	DeletedAt *time.Time `json:"deleted_at"`
	DeletedBy *string    `json:"deleted_by"`
}

// Open reports whether the request still needs work.
func (r RepairRequest) Open() bool {
	return r.Status != StatusDone && r.Status != StatusClosed
}

// Overdue reports whether the due date has passed while the request is still
// open. Derived at read time; never stored.
func (r RepairRequest) Overdue(now time.Time) bool {
	return r.DueDate != nil && r.DueDate.Before(now) && r.Open()
}

// WorkLogEntry is one line of a request's append-only timeline. Entries are
// never mutated or deleted after creation. Ordering contract: CreatedAt
// ascending, ties broken by Seq (insertion order).
type WorkLogEntry struct {
	ID           string    `json:"id"`
	RequestID    int64     `json:"request_id"`
	Author       *string   `json:"author"`
	EntryType    EntryType `json:"entry_type"`
	Note         string    `json:"note"`
	MinutesSpent *int      `json:"minutes_spent"`
	CreatedAt    time.Time `json:"created_at"`
	Seq          uint64    `json:"seq"`
}

// Change describes a mutation applied to an entity during a transaction.
type Change struct {
	Entity EntityType
	Action Action
	Before any
	After  any
}

// Action indicates the type of modification performed.
type Action string

// Change actions enumerate supported operations captured for rule evaluation.
const (
	// ActionCreate indicates an entity was created.
	ActionCreate Action = "create"
	// ActionUpdate indicates an entity was updated.
	ActionUpdate Action = "update"
	ActionDelete Action = "delete"
)

// Violation reports a failed rule evaluation.
type Violation struct {
	Rule     string
	Severity Severity
	Message  string
	Entity   EntityType
	EntityID string
}

// Result aggregates violations from the rules engine.
type Result struct {
	Violations []Violation
}

// Merge appends violations from another result.
func (r *Result) Merge(other Result) {
	if len(other.Violations) == 0 {
		return
	}
	r.Violations = append(r.Violations, other.Violations...)
}

// HasBlocking returns true if the result contains blocking violations.
func (r Result) HasBlocking() bool {
	for _, v := range r.Violations {
		if v.Severity == SeverityBlock {
			return true
		}
	}
	return false
}

// RuleViolationError is returned when blocking violations are present.
type RuleViolationError struct {
	Result Result
}

func (e RuleViolationError) Error() string {
	return "transaction blocked by rules"
}
