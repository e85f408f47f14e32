package domain

import "context"

// Transaction exposes the domain operations that a persistence implementation
// must support within an atomic scope. Request mutations take the caller's
// last-seen version; a non-zero stale value fails with ConflictError before
// any state change.
type Transaction interface {
	Snapshot() RuleView

	CreateLocation(Location) (Location, error)
	UpdateLocation(id string, mutator func(*Location) error) (Location, error)
	DeleteLocation(id string) error

	CreateAsset(Asset) (Asset, error)
	UpdateAsset(id string, mutator func(*Asset) error) (Asset, error)
	DeleteAsset(id string) error

	CreateRequest(RepairRequest) (RepairRequest, error)
	UpdateRequest(id int64, expectedVersion uint64, mutator func(*RepairRequest) error) (RepairRequest, error)

	AppendWorkLog(WorkLogEntry) (WorkLogEntry, error)

	FindLocation(id string) (Location, bool)
	FindAsset(id string) (Asset, bool)
	FindRequest(id int64) (RepairRequest, bool)
}

// PersistentStore is a minimal abstraction over durable backends. It mirrors
// the subset of store capabilities used directly by higher layers.
type PersistentStore interface {
	RunInTransaction(ctx context.Context, fn func(Transaction) error) (Result, error)
	View(ctx context.Context, fn func(RuleView) error) error

	GetLocation(id string) (Location, bool)
	ListLocations() []Location
	GetAsset(id string) (Asset, bool)
	ListAssets() []Asset
	GetRequest(id int64) (RepairRequest, bool)
	ListRequests() []RepairRequest
	TimelineFor(requestID int64) []WorkLogEntry
}
