package domain

// allowedTransitions is the work-order state machine. Reopening a closed
// request (closed -> triaged) is listed here but additionally requires the
// explicit reopen operation; plain transitions reject it.
var allowedTransitions = map[RequestStatus]map[RequestStatus]struct{}{
	StatusNew:        toSet(StatusTriaged, StatusClosed),
	StatusTriaged:    toSet(StatusInProgress, StatusWaiting, StatusClosed),
	StatusInProgress: toSet(StatusWaiting, StatusDone, StatusClosed),
	StatusWaiting:    toSet(StatusInProgress, StatusClosed),
	StatusDone:       toSet(StatusClosed, StatusInProgress),
	StatusClosed:     toSet(StatusTriaged),
}

// ValidStatus reports whether s is a known request status.
func ValidStatus(s RequestStatus) bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransition reports whether the state machine permits from -> to.
func CanTransition(from, to RequestStatus) bool {
	_, ok := allowedTransitions[from][to]
	return ok
}

// AllowedTargets returns the stable-ordered set of statuses reachable from
// the given status.
func AllowedTargets(from RequestStatus) []RequestStatus {
	order := []RequestStatus{StatusNew, StatusTriaged, StatusInProgress, StatusWaiting, StatusDone, StatusClosed}
	targets := allowedTransitions[from]
	out := make([]RequestStatus, 0, len(targets))
	for _, s := range order {
		if _, ok := targets[s]; ok {
			out = append(out, s)
		}
	}
	return out
}

func toSet(values ...RequestStatus) map[RequestStatus]struct{} {
	set := make(map[RequestStatus]struct{}, len(values))
	for _, v := range values {
		set[v] = struct{}{}
	}
	return set
}
