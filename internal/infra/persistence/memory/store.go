// Package memory provides the in-memory transactional store that backs every
// durable driver. Transactions run against a cloned state; committed state is
// replaced wholesale, so readers never observe partial mutations.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"facilitycore/pkg/domain"

	"github.com/google/uuid"
)

// Compile-time contract assertion.
var _ domain.PersistentStore = (*Store)(nil)

type state struct {
	locations map[string]domain.Location
	assets    map[string]domain.Asset
	requests  map[int64]domain.RepairRequest
	worklogs  map[int64][]domain.WorkLogEntry

	nextRequestID int64
	nextSeq       uint64
}

func newState() state {
	return state{
		locations:     make(map[string]domain.Location),
		assets:        make(map[string]domain.Asset),
		requests:      make(map[int64]domain.RepairRequest),
		worklogs:      make(map[int64][]domain.WorkLogEntry),
		nextRequestID: 1,
		nextSeq:       1,
	}
}

func (s state) clone() state {
	cloned := newState()
	cloned.nextRequestID = s.nextRequestID
	cloned.nextSeq = s.nextSeq
	for k, v := range s.locations {
		cloned.locations[k] = cloneLocation(v)
	}
	for k, v := range s.assets {
		cloned.assets[k] = cloneAsset(v)
	}
	for k, v := range s.requests {
		cloned.requests[k] = cloneRequest(v)
	}
	for k, v := range s.worklogs {
		cloned.worklogs[k] = append([]domain.WorkLogEntry(nil), v...)
	}
	return cloned
}

func cloneLocation(l domain.Location) domain.Location { return l }
func cloneAsset(a domain.Asset) domain.Asset          { return a }
func cloneRequest(r domain.RepairRequest) domain.RepairRequest {
	cp := r
	cp.Attachments = append([]domain.AttachmentRef(nil), r.Attachments...)
	return cp
}

// Store is an in-memory transactional store for the work-order domain.
type Store struct {
	mu     sync.RWMutex
	state  state
	engine *domain.RulesEngine
	nowFn  func() time.Time
}

// NewStore constructs an in-memory store backed by the provided rules engine.
func NewStore(engine *domain.RulesEngine) *Store {
	if engine == nil {
		engine = domain.NewRulesEngine()
	}
	return &Store{
		state:  newState(),
		engine: engine,
		nowFn:  func() time.Time { return time.Now().UTC() },
	}
}

// SetNow overrides the transaction clock. Intended for tests.
func (s *Store) SetNow(fn func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if fn != nil {
		s.nowFn = fn
	}
}

func newID() string { return uuid.NewString() }

// Tx is a mutation set applied to a cloned store state.
type Tx struct {
	store   *Store
	state   state
	changes []domain.Change
	now     time.Time
}

var _ domain.Transaction = (*Tx)(nil)

// view exposes a read-only snapshot of transactional state to rules and queries.
type view struct {
	state *state
}

var _ domain.RuleView = view{}

// ListLocations returns all locations in the snapshot, name ascending.
func (v view) ListLocations() []domain.Location {
	out := make([]domain.Location, 0, len(v.state.locations))
	for _, l := range v.state.locations {
		out = append(out, cloneLocation(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ListAssets returns all assets in the snapshot, tag ascending.
func (v view) ListAssets() []domain.Asset {
	out := make([]domain.Asset, 0, len(v.state.assets))
	for _, a := range v.state.assets {
		out = append(out, cloneAsset(a))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AssetTag < out[j].AssetTag })
	return out
}

// ListRequests returns all non-deleted requests in the snapshot, newest first.
func (v view) ListRequests() []domain.RepairRequest {
	out := make([]domain.RepairRequest, 0, len(v.state.requests))
	for _, r := range v.state.requests {
		if r.Deleted {
			continue
		}
		out = append(out, cloneRequest(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out
}

// FindLocation retrieves a location by ID from the snapshot.
func (v view) FindLocation(id string) (domain.Location, bool) {
	l, ok := v.state.locations[id]
	if !ok {
		return domain.Location{}, false
	}
	return cloneLocation(l), true
}

// FindAsset retrieves an asset by ID from the snapshot.
func (v view) FindAsset(id string) (domain.Asset, bool) {
	a, ok := v.state.assets[id]
	if !ok {
		return domain.Asset{}, false
	}
	return cloneAsset(a), true
}

// FindRequest retrieves a request by work order number from the snapshot.
// Soft-deleted requests are not returned.
func (v view) FindRequest(id int64) (domain.RepairRequest, bool) {
	r, ok := v.state.requests[id]
	if !ok || r.Deleted {
		return domain.RepairRequest{}, false
	}
	return cloneRequest(r), true
}

// TimelineFor returns the request's work log ordered by CreatedAt then Seq.
func (v view) TimelineFor(requestID int64) []domain.WorkLogEntry {
	entries := append([]domain.WorkLogEntry(nil), v.state.worklogs[requestID]...)
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].CreatedAt.Equal(entries[j].CreatedAt) {
			return entries[i].Seq < entries[j].Seq
		}
		return entries[i].CreatedAt.Before(entries[j].CreatedAt)
	})
	return entries
}

// RunInTransaction executes fn within a transactional copy of the store state.
// Rules evaluate against the mutated snapshot; blocking violations abort the
// commit, so a mutation and its paired work log entry land together or not
// at all.
func (s *Store) RunInTransaction(ctx context.Context, fn func(domain.Transaction) error) (domain.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Tx{
		store: s,
		state: s.state.clone(),
		now:   s.nowFn(),
	}

	if err := fn(tx); err != nil {
		return domain.Result{}, err
	}

	var result domain.Result
	if s.engine != nil {
		res, err := s.engine.Evaluate(ctx, view{state: &tx.state}, tx.changes)
		if err != nil {
			return domain.Result{}, err
		}
		result = res
		if res.HasBlocking() {
			return res, domain.RuleViolationError{Result: res}
		}
	}

	s.state = tx.state
	return result, nil
}

// View executes fn against a read-only snapshot of committed state.
func (s *Store) View(ctx context.Context, fn func(domain.RuleView) error) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.state.clone()
	return fn(view{state: &snapshot})
}

// Now returns the timestamp transactions in this Tx observe.
func (tx *Tx) Now() time.Time { return tx.now }

// Snapshot returns a read-only view of the transactional state.
func (tx *Tx) Snapshot() domain.RuleView { return view{state: &tx.state} }

func (tx *Tx) recordChange(change domain.Change) {
	tx.changes = append(tx.changes, change)
}

// CreateLocation stores a new location within the transaction.
func (tx *Tx) CreateLocation(l domain.Location) (domain.Location, error) {
	if l.ID == "" {
		l.ID = newID()
	}
	if _, exists := tx.state.locations[l.ID]; exists {
		return domain.Location{}, fmt.Errorf("location %q already exists", l.ID)
	}
	l.CreatedAt = tx.now
	l.UpdatedAt = tx.now
	tx.state.locations[l.ID] = cloneLocation(l)
	tx.recordChange(domain.Change{Entity: domain.EntityLocation, Action: domain.ActionCreate, After: cloneLocation(l)})
	return cloneLocation(l), nil
}

// UpdateLocation mutates a location using the provided mutator.
func (tx *Tx) UpdateLocation(id string, mutator func(*domain.Location) error) (domain.Location, error) {
	current, ok := tx.state.locations[id]
	if !ok {
		return domain.Location{}, domain.NotFoundError{Entity: domain.EntityLocation, ID: id}
	}
	before := cloneLocation(current)
	if err := mutator(&current); err != nil {
		return domain.Location{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.locations[id] = cloneLocation(current)
	tx.recordChange(domain.Change{Entity: domain.EntityLocation, Action: domain.ActionUpdate, Before: before, After: cloneLocation(current)})
	return cloneLocation(current), nil
}

// DeleteLocation removes a location. Deletion is rejected while child
// locations, assets, or requests still reference it.
func (tx *Tx) DeleteLocation(id string) error {
	current, ok := tx.state.locations[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityLocation, ID: id}
	}
	for _, l := range tx.state.locations {
		if l.ParentID != nil && *l.ParentID == id {
			return domain.ReferencedError{Entity: domain.EntityLocation, ID: id, By: "child location " + l.ID}
		}
	}
	for _, a := range tx.state.assets {
		if a.LocationID == id {
			return domain.ReferencedError{Entity: domain.EntityLocation, ID: id, By: "asset " + a.ID}
		}
	}
	for _, r := range tx.state.requests {
		if r.LocationID == id {
			return domain.ReferencedError{Entity: domain.EntityLocation, ID: id, By: fmt.Sprintf("request #%d", r.ID)}
		}
	}
	delete(tx.state.locations, id)
	tx.recordChange(domain.Change{Entity: domain.EntityLocation, Action: domain.ActionDelete, Before: cloneLocation(current)})
	return nil
}

// assetTagPrefixes maps categories to the tag prefixes used for generated
// asset tags, e.g. HVAC-003.
var assetTagPrefixes = map[domain.AssetCategory]string{
	domain.CategoryHVAC:       "HVAC",
	domain.CategoryElectrical: "ELEK",
	domain.CategoryPlumbing:   "SAN",
	domain.CategorySafety:     "VEIL",
	domain.CategoryAV:         "AV",
	domain.CategoryFurniture:  "MEUB",
	domain.CategoryBuilding:   "GEB",
	domain.CategoryOther:      "OBJ",
}

func (tx *Tx) nextAssetTag(category domain.AssetCategory) string {
	prefix, ok := assetTagPrefixes[category]
	if !ok {
		prefix = "OBJ"
	}
	max := 0
	for _, a := range tx.state.assets {
		var n int
		if _, err := fmt.Sscanf(a.AssetTag, prefix+"-%d", &n); err == nil && n > max {
			max = n
		}
	}
	return fmt.Sprintf("%s-%03d", prefix, max+1)
}

// CreateAsset stores a new asset. A blank tag is generated from the category
// prefix; tag uniqueness is enforced by the catalog integrity rule at commit.
func (tx *Tx) CreateAsset(a domain.Asset) (domain.Asset, error) {
	if a.ID == "" {
		a.ID = newID()
	}
	if _, exists := tx.state.assets[a.ID]; exists {
		return domain.Asset{}, fmt.Errorf("asset %q already exists", a.ID)
	}
	if a.AssetTag == "" {
		a.AssetTag = tx.nextAssetTag(a.Category)
	}
	if a.Status == "" {
		a.Status = domain.AssetOperational
	}
	if a.Criticality == "" {
		a.Criticality = domain.CriticalityMedium
	}
	a.CreatedAt = tx.now
	a.UpdatedAt = tx.now
	tx.state.assets[a.ID] = cloneAsset(a)
	tx.recordChange(domain.Change{Entity: domain.EntityAsset, Action: domain.ActionCreate, After: cloneAsset(a)})
	return cloneAsset(a), nil
}

// UpdateAsset mutates an asset using the provided mutator.
func (tx *Tx) UpdateAsset(id string, mutator func(*domain.Asset) error) (domain.Asset, error) {
	current, ok := tx.state.assets[id]
	if !ok {
		return domain.Asset{}, domain.NotFoundError{Entity: domain.EntityAsset, ID: id}
	}
	before := cloneAsset(current)
	if err := mutator(&current); err != nil {
		return domain.Asset{}, err
	}
	current.ID = id
	current.UpdatedAt = tx.now
	tx.state.assets[id] = cloneAsset(current)
	tx.recordChange(domain.Change{Entity: domain.EntityAsset, Action: domain.ActionUpdate, Before: before, After: cloneAsset(current)})
	return cloneAsset(current), nil
}

// DeleteAsset removes an asset unless requests still reference it.
func (tx *Tx) DeleteAsset(id string) error {
	current, ok := tx.state.assets[id]
	if !ok {
		return domain.NotFoundError{Entity: domain.EntityAsset, ID: id}
	}
	for _, r := range tx.state.requests {
		if r.AssetID != nil && *r.AssetID == id {
			return domain.ReferencedError{Entity: domain.EntityAsset, ID: id, By: fmt.Sprintf("request #%d", r.ID)}
		}
	}
	delete(tx.state.assets, id)
	tx.recordChange(domain.Change{Entity: domain.EntityAsset, Action: domain.ActionDelete, Before: cloneAsset(current)})
	return nil
}

// CreateRequest stores a new repair request and assigns the next sequential
// work order number.
func (tx *Tx) CreateRequest(r domain.RepairRequest) (domain.RepairRequest, error) {
	if r.ID == 0 {
		r.ID = tx.state.nextRequestID
	} else if _, exists := tx.state.requests[r.ID]; exists {
		return domain.RepairRequest{}, fmt.Errorf("request #%d already exists", r.ID)
	}
	if r.ID >= tx.state.nextRequestID {
		tx.state.nextRequestID = r.ID + 1
	}
	r.CreatedAt = tx.now
	r.UpdatedAt = tx.now
	r.Version = 1
	tx.state.requests[r.ID] = cloneRequest(r)
	tx.recordChange(domain.Change{Entity: domain.EntityRequest, Action: domain.ActionCreate, After: cloneRequest(r)})
	return cloneRequest(r), nil
}

// UpdateRequest mutates a request after checking the caller's last-seen
// version. expectedVersion 0 skips the check (callers that have not read the
// record, e.g. bulk import).
func (tx *Tx) UpdateRequest(id int64, expectedVersion uint64, mutator func(*domain.RepairRequest) error) (domain.RepairRequest, error) {
	current, ok := tx.state.requests[id]
	if !ok || current.Deleted {
		return domain.RepairRequest{}, domain.NotFoundError{Entity: domain.EntityRequest, ID: strconv.FormatInt(id, 10)}
	}
	if expectedVersion != 0 && expectedVersion != current.Version {
		return domain.RepairRequest{}, domain.ConflictError{RequestID: id, Expected: expectedVersion, Actual: current.Version}
	}
	before := cloneRequest(current)
	if err := mutator(&current); err != nil {
		return domain.RepairRequest{}, err
	}
	current.ID = id
	current.CreatedAt = before.CreatedAt
	current.UpdatedAt = tx.now
	current.Version = before.Version + 1
	tx.state.requests[id] = cloneRequest(current)
	tx.recordChange(domain.Change{Entity: domain.EntityRequest, Action: domain.ActionUpdate, Before: before, After: cloneRequest(current)})
	return cloneRequest(current), nil
}

// AppendWorkLog appends an immutable entry to a request's timeline. The entry
// is stamped with the transaction clock and the next insertion sequence, so
// ordering is stable even for same-timestamp entries.
func (tx *Tx) AppendWorkLog(entry domain.WorkLogEntry) (domain.WorkLogEntry, error) {
	if _, ok := tx.state.requests[entry.RequestID]; !ok {
		return domain.WorkLogEntry{}, domain.NotFoundError{Entity: domain.EntityRequest, ID: strconv.FormatInt(entry.RequestID, 10)}
	}
	if entry.ID == "" {
		entry.ID = newID()
	}
	entry.CreatedAt = tx.now
	entry.Seq = tx.state.nextSeq
	tx.state.nextSeq++
	tx.state.worklogs[entry.RequestID] = append(tx.state.worklogs[entry.RequestID], entry)
	tx.recordChange(domain.Change{Entity: domain.EntityWorkLog, Action: domain.ActionCreate, After: entry})
	return entry, nil
}

// FindLocation retrieves a location from the transaction state.
func (tx *Tx) FindLocation(id string) (domain.Location, bool) {
	l, ok := tx.state.locations[id]
	if !ok {
		return domain.Location{}, false
	}
	return cloneLocation(l), true
}

// FindAsset retrieves an asset from the transaction state.
func (tx *Tx) FindAsset(id string) (domain.Asset, bool) {
	a, ok := tx.state.assets[id]
	if !ok {
		return domain.Asset{}, false
	}
	return cloneAsset(a), true
}

// FindRequest retrieves a request from the transaction state.
func (tx *Tx) FindRequest(id int64) (domain.RepairRequest, bool) {
	r, ok := tx.state.requests[id]
	if !ok || r.Deleted {
		return domain.RepairRequest{}, false
	}
	return cloneRequest(r), true
}

// Read helpers ---------------------------------------------------------------

// GetLocation retrieves a location by ID from committed state.
func (s *Store) GetLocation(id string) (domain.Location, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	l, ok := s.state.locations[id]
	if !ok {
		return domain.Location{}, false
	}
	return cloneLocation(l), true
}

// ListLocations returns all locations from committed state, name ascending.
func (s *Store) ListLocations() []domain.Location {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListLocations()
}

// GetAsset retrieves an asset by ID from committed state.
func (s *Store) GetAsset(id string) (domain.Asset, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.state.assets[id]
	if !ok {
		return domain.Asset{}, false
	}
	return cloneAsset(a), true
}

// ListAssets returns all assets from committed state, tag ascending.
func (s *Store) ListAssets() []domain.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListAssets()
}

// GetRequest retrieves a request by work order number from committed state.
func (s *Store) GetRequest(id int64) (domain.RepairRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.state.requests[id]
	if !ok || r.Deleted {
		return domain.RepairRequest{}, false
	}
	return cloneRequest(r), true
}

// ListRequests returns all non-deleted requests, newest first.
func (s *Store) ListRequests() []domain.RepairRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.ListRequests()
}

// TimelineFor returns a request's work log entries ordered by CreatedAt then
// insertion order.
func (s *Store) TimelineFor(requestID int64) []domain.WorkLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return view{state: &s.state}.TimelineFor(requestID)
}
