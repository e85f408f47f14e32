package memory

import (
	"sort"

	"facilitycore/pkg/domain"
)

// Snapshot is a portable copy of committed state, used by the durable drivers
// to persist and rehydrate the store.
type Snapshot struct {
	Locations     []domain.Location     `json:"locations"`
	Assets        []domain.Asset        `json:"assets"`
	Requests      []domain.RepairRequest `json:"requests"`
	WorkLogs      []domain.WorkLogEntry `json:"work_logs"`
	NextRequestID int64                 `json:"next_request_id"`
	NextSeq       uint64                `json:"next_seq"`
}

// ExportState returns a deep copy of committed state. Soft-deleted requests
// are included so the snapshot is lossless.
func (s *Store) ExportState() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		NextRequestID: s.state.nextRequestID,
		NextSeq:       s.state.nextSeq,
	}
	for _, l := range s.state.locations {
		snap.Locations = append(snap.Locations, cloneLocation(l))
	}
	for _, a := range s.state.assets {
		snap.Assets = append(snap.Assets, cloneAsset(a))
	}
	for _, r := range s.state.requests {
		snap.Requests = append(snap.Requests, cloneRequest(r))
	}
	for _, entries := range s.state.worklogs {
		snap.WorkLogs = append(snap.WorkLogs, entries...)
	}
	sort.Slice(snap.Locations, func(i, j int) bool { return snap.Locations[i].ID < snap.Locations[j].ID })
	sort.Slice(snap.Assets, func(i, j int) bool { return snap.Assets[i].ID < snap.Assets[j].ID })
	sort.Slice(snap.Requests, func(i, j int) bool { return snap.Requests[i].ID < snap.Requests[j].ID })
	sort.Slice(snap.WorkLogs, func(i, j int) bool { return snap.WorkLogs[i].Seq < snap.WorkLogs[j].Seq })
	return snap
}

// ImportState replaces committed state with the snapshot contents.
func (s *Store) ImportState(snap Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := newState()
	for _, l := range snap.Locations {
		st.locations[l.ID] = cloneLocation(l)
	}
	for _, a := range snap.Assets {
		st.assets[a.ID] = cloneAsset(a)
	}
	for _, r := range snap.Requests {
		st.requests[r.ID] = cloneRequest(r)
		if r.ID >= st.nextRequestID {
			st.nextRequestID = r.ID + 1
		}
	}
	for _, e := range snap.WorkLogs {
		st.worklogs[e.RequestID] = append(st.worklogs[e.RequestID], e)
		if e.Seq >= st.nextSeq {
			st.nextSeq = e.Seq + 1
		}
	}
	if snap.NextRequestID > st.nextRequestID {
		st.nextRequestID = snap.NextRequestID
	}
	if snap.NextSeq > st.nextSeq {
		st.nextSeq = snap.NextSeq
	}
	s.state = st
}
