package api

import (
	"net/http"
	"strconv"
	"time"

	"facilitycore/internal/blob"
	"facilitycore/internal/core"
	"facilitycore/pkg/domain"
)

type createRequestPayload struct {
	Title            string  `json:"title"`
	Description      string  `json:"description"`
	LocationID       string  `json:"location_id"`
	AssetID          *string `json:"asset_id"`
	Priority         string  `json:"priority"`
	RequesterName    string  `json:"requester_name"`
	RequesterEmail   string  `json:"requester_email"`
	RequesterPhone   string  `json:"requester_phone"`
	PreferredContact string  `json:"preferred_contact"`
}

// handleCreateRequest accepts submissions from authenticated and anonymous
// callers alike; the walk-up submission form posts here without headers.
func (h *Handler) handleCreateRequest(w http.ResponseWriter, r *http.Request) {
	var payload createRequestPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request payload")
		return
	}
	in := core.CreateRequestInput{
		Title:            payload.Title,
		Description:      payload.Description,
		LocationID:       payload.LocationID,
		AssetID:          payload.AssetID,
		Priority:         domain.Priority(payload.Priority),
		RequesterName:    payload.RequesterName,
		RequesterEmail:   payload.RequesterEmail,
		RequesterPhone:   payload.RequesterPhone,
		PreferredContact: domain.ContactMethod(payload.PreferredContact),
	}
	if actor, ok := actorFrom(r); ok {
		in.Actor = &actor
	}
	created, _, err := h.Service.CreateRequest(r.Context(), in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"request": created})
}

func (h *Handler) handleListRequests(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	filter := core.RequestFilter{
		Status:     domain.RequestStatus(q.Get("status")),
		Priority:   domain.Priority(q.Get("priority")),
		LocationID: q.Get("location_id"),
		AssetID:    q.Get("asset_id"),
		Assignee:   q.Get("assignee"),
		Search:     q.Get("q"),
	}
	requests, err := h.Service.ListRequests(r.Context(), actor, filter)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"requests": requests})
}

func (h *Handler) handleGetRequest(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	req, err := h.Service.GetRequest(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	timeline, err := h.Service.Timeline(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": req, "timeline": timeline})
}

type transitionPayload struct {
	Target          string `json:"target"`
	Note            string `json:"note"`
	Resolution      string `json:"resolution"`
	ExpectedVersion uint64 `json:"expected_version"`
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var payload transitionPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request payload")
		return
	}
	var (
		updated domain.RepairRequest
		err     error
	)
	// Moving into triaged records the triaging actor as well.
	if domain.RequestStatus(payload.Target) == domain.StatusTriaged {
		updated, _, err = h.Service.Triage(r.Context(), actor, id, payload.Note, payload.ExpectedVersion)
	} else {
		updated, _, err = h.Service.Transition(r.Context(), actor, id, domain.RequestStatus(payload.Target), core.TransitionInput{
			Note:            payload.Note,
			Resolution:      payload.Resolution,
			ExpectedVersion: payload.ExpectedVersion,
		})
	}
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": updated})
}

type assignPayload struct {
	Assignee        *string `json:"assignee"`
	ExpectedVersion uint64  `json:"expected_version"`
}

func (h *Handler) handleAssign(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var payload assignPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request payload")
		return
	}
	updated, _, err := h.Service.Assign(r.Context(), actor, id, payload.Assignee, payload.ExpectedVersion)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": updated})
}

type notePayload struct {
	Note            string `json:"note"`
	ExpectedVersion uint64 `json:"expected_version"`
}

func (h *Handler) handleAddNote(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var payload notePayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request payload")
		return
	}
	entry, _, err := h.Service.AddNote(r.Context(), actor, id, payload.Note, payload.ExpectedVersion)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entry": entry})
}

type timePayload struct {
	Minutes         int    `json:"minutes"`
	Note            string `json:"note"`
	ExpectedVersion uint64 `json:"expected_version"`
}

func (h *Handler) handleLogTime(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var payload timePayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request payload")
		return
	}
	entry, _, err := h.Service.LogTime(r.Context(), actor, id, payload.Minutes, payload.Note, payload.ExpectedVersion)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"entry": entry})
}

type dueDatePayload struct {
	DueDate         *string `json:"due_date"` // RFC 3339, null clears
	ExpectedVersion uint64  `json:"expected_version"`
}

func (h *Handler) handleSetDueDate(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var payload dueDatePayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request payload")
		return
	}
	var due *time.Time
	if payload.DueDate != nil {
		parsed, err := time.Parse(time.RFC3339, *payload.DueDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "due_date must be RFC 3339")
			return
		}
		due = &parsed
	}
	updated, _, err := h.Service.SetDueDate(r.Context(), actor, id, due, payload.ExpectedVersion)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": updated})
}

func (h *Handler) handleReopen(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var payload notePayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request payload")
		return
	}
	updated, _, err := h.Service.Reopen(r.Context(), actor, id, payload.Note, payload.ExpectedVersion)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": updated})
}

type procurementPayload struct {
	Vendor             *string `json:"vendor"`
	QuoteStatus        *string `json:"quote_status"`
	QuoteAmountCents   *int64  `json:"quote_amount_cents"`
	PONumber           *string `json:"po_number"`
	EstimatedCostCents *int64  `json:"estimated_cost_cents"`
	ActualCostCents    *int64  `json:"actual_cost_cents"`
	ExpectedVersion    uint64  `json:"expected_version"`
}

func (h *Handler) handleProcurement(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var payload procurementPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request payload")
		return
	}
	in := core.ProcurementInput{
		Vendor:             payload.Vendor,
		QuoteAmountCents:   payload.QuoteAmountCents,
		PONumber:           payload.PONumber,
		EstimatedCostCents: payload.EstimatedCostCents,
		ActualCostCents:    payload.ActualCostCents,
		ExpectedVersion:    payload.ExpectedVersion,
	}
	if payload.QuoteStatus != nil {
		qs := domain.QuoteStatus(*payload.QuoteStatus)
		in.QuoteStatus = &qs
	}
	updated, _, err := h.Service.UpdateProcurement(r.Context(), actor, id, in)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"request": updated})
}

// handleAddAttachment streams the raw body into the blob store after policy
// validation, then records the reference on the request.
func (h *Handler) handleAddAttachment(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if h.Blobs == nil {
		writeError(w, http.StatusInternalServerError, "internal", "attachment store not configured")
		return
	}
	contentType := r.Header.Get("Content-Type")
	if err := blob.ValidateAttachment(contentType, r.ContentLength); err != nil {
		writeServiceError(w, err)
		return
	}
	key := blob.AttachmentKey(id)
	body := http.MaxBytesReader(w, r.Body, blob.MaxAttachmentBytes)
	info, err := h.Blobs.Put(r.Context(), key, body, blob.PutOptions{
		ContentType: contentType,
		Metadata:    map[string]string{"uploaded_by": actor.ID},
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", "attachment upload failed")
		return
	}
	expectedVersion, _ := strconv.ParseUint(r.URL.Query().Get("expected_version"), 10, 64)
	ref := domain.AttachmentRef{
		Key:         info.Key,
		Title:       r.Header.Get("X-Attachment-Title"),
		ContentType: contentType,
		SizeBytes:   info.Size,
		UploadedAt:  time.Now().UTC(),
		UploadedBy:  &actor.ID,
	}
	updated, _, err := h.Service.AddAttachment(r.Context(), actor, id, ref, expectedVersion)
	if err != nil {
		// Keep the store consistent with the request record.
		_, _ = h.Blobs.Delete(r.Context(), key)
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"request": updated, "attachment": ref})
}

func (h *Handler) handleSoftDelete(w http.ResponseWriter, r *http.Request, id int64) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	expectedVersion, _ := strconv.ParseUint(r.URL.Query().Get("expected_version"), 10, 64)
	if _, err := h.Service.SoftDelete(r.Context(), actor, id, expectedVersion); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleDashboard(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	inbox, err := h.Service.DashboardInbox(r.Context(), actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, inbox)
}

func (h *Handler) handlePlanner(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	now := time.Now().UTC()
	year := now.Year()
	month := now.Month()
	if raw := r.URL.Query().Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid year")
			return
		}
		year = parsed
	}
	if raw := r.URL.Query().Get("month"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > 12 {
			writeError(w, http.StatusBadRequest, "bad_request", "invalid month")
			return
		}
		month = time.Month(parsed)
	}
	view, err := h.Service.Planner(r.Context(), actor, year, month)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}
