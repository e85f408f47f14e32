package api_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"facilitycore/internal/adapters/api"
	"facilitycore/internal/blob"
	"facilitycore/internal/core"
	"facilitycore/pkg/domain"
)

type testEnv struct {
	handler *api.Handler
	svc     *core.Service
}

func newEnv(t *testing.T) testEnv {
	t.Helper()
	svc := core.NewInMemoryService(core.NewDefaultRulesEngine())
	return testEnv{handler: api.NewHandler(svc, blob.NewMemory()), svc: svc}
}

func (e testEnv) do(t *testing.T, method, path string, body string, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

var (
	facilitiesHeaders = map[string]string{"X-Actor-ID": "u-facilities", "X-Actor-Role": "facilities"}
	adminHeaders      = map[string]string{"X-Actor-ID": "u-admin", "X-Actor-Role": "admin"}
	requesterHeaders  = map[string]string{"X-Actor-ID": "u-member", "X-Actor-Role": "requester", "X-Actor-Email": "member@example.org"}
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var out map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rec.Body.String(), err)
	}
	return out
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var payload struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return payload.Error.Code
}

func (e testEnv) seedLocation(t *testing.T) domain.Location {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/v1/locations", `{"name":"Main hall"}`, adminHeaders)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create location: %d %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Location domain.Location `json:"location"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode location: %v", err)
	}
	return payload.Location
}

func (e testEnv) createRequest(t *testing.T, headers map[string]string) domain.RepairRequest {
	t.Helper()
	loc := e.seedLocation(t)
	body := fmt.Sprintf(`{"title":"heating down","description":"no heat in the hall since monday","location_id":%q,"priority":"high","requester_name":"A. Koster"}`, loc.ID)
	rec := e.do(t, http.MethodPost, "/api/v1/requests", body, headers)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create request: %d %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Request domain.RepairRequest `json:"request"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode request: %v", err)
	}
	return payload.Request
}

func TestCreateRequestAnonymous(t *testing.T) {
	env := newEnv(t)
	req := env.createRequest(t, nil)
	if req.Status != domain.StatusNew || req.ID == 0 {
		t.Fatalf("created request: %+v", req)
	}
}

func TestCreateRequestValidation(t *testing.T) {
	env := newEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/requests", `{"title":""}`, nil)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if errorCode(t, rec) != "validation" {
		t.Fatalf("code = %s", errorCode(t, rec))
	}
	var payload struct {
		Error struct {
			Fields []domain.FieldError `json:"fields"`
		} `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Error.Fields) == 0 {
		t.Fatalf("expected field errors, got %s", rec.Body.String())
	}
}

func TestCreateRequestRejectsUnknownFields(t *testing.T) {
	env := newEnv(t)
	rec := env.do(t, http.MethodPost, "/api/v1/requests", `{"title":"x","bogus":true}`, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestListRequestsRequiresActor(t *testing.T) {
	env := newEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/requests", "", nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestGetRequestIncludesTimeline(t *testing.T) {
	env := newEnv(t)
	req := env.createRequest(t, requesterHeaders)

	rec := env.do(t, http.MethodGet, fmt.Sprintf("/api/v1/requests/%d", req.ID), "", requesterHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decode(t, rec)
	var timeline []domain.WorkLogEntry
	if err := json.Unmarshal(body["timeline"], &timeline); err != nil {
		t.Fatalf("decode timeline: %v", err)
	}
	if len(timeline) != 1 || timeline[0].EntryType != domain.EntryStatusChange {
		t.Fatalf("timeline: %+v", timeline)
	}
}

func TestTransitionConflictMapsTo409(t *testing.T) {
	env := newEnv(t)
	req := env.createRequest(t, nil)

	body := `{"target":"triaged","expected_version":1}`
	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/requests/%d/transition", req.ID), body, facilitiesHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("first transition: %d %s", rec.Code, rec.Body.String())
	}

	// Same expected version again: stale.
	body = `{"target":"in_progress","expected_version":1}`
	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/requests/%d/transition", req.ID), body, facilitiesHeaders)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "conflict" {
		t.Fatalf("stale transition: %d code=%s", rec.Code, errorCode(t, rec))
	}
}

func TestTransitionIllegalMapsToInvalidTransition(t *testing.T) {
	env := newEnv(t)
	req := env.createRequest(t, nil)

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/requests/%d/transition", req.ID), `{"target":"done"}`, facilitiesHeaders)
	if rec.Code != http.StatusConflict || errorCode(t, rec) != "invalid_transition" {
		t.Fatalf("illegal transition: %d code=%s", rec.Code, errorCode(t, rec))
	}
}

func TestTransitionForbiddenForRequester(t *testing.T) {
	env := newEnv(t)
	req := env.createRequest(t, requesterHeaders)

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/requests/%d/transition", req.ID), `{"target":"triaged"}`, requesterHeaders)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rec.Code)
	}
}

func TestUnknownRoleFallsBackToRequester(t *testing.T) {
	env := newEnv(t)
	req := env.createRequest(t, nil)

	headers := map[string]string{"X-Actor-ID": "u-x", "X-Actor-Role": "superuser"}
	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/requests/%d/transition", req.ID), `{"target":"triaged"}`, headers)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("unknown role must not gain staff powers: %d", rec.Code)
	}
}

func TestAssignAndNoteFlow(t *testing.T) {
	env := newEnv(t)
	req := env.createRequest(t, nil)

	rec := env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/requests/%d/assign", req.ID), `{"assignee":"u-jan"}`, facilitiesHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("assign: %d %s", rec.Code, rec.Body.String())
	}

	rec = env.do(t, http.MethodPost, fmt.Sprintf("/api/v1/requests/%d/notes", req.ID), `{"note":"ordered a new valve"}`, facilitiesHeaders)
	if rec.Code != http.StatusCreated {
		t.Fatalf("note: %d %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Entry domain.WorkLogEntry `json:"entry"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode entry: %v", err)
	}
	if payload.Entry.EntryType != domain.EntryNote || payload.Entry.Note != "ordered a new valve" {
		t.Fatalf("entry: %+v", payload.Entry)
	}
}

func TestAttachmentUploadAndPolicy(t *testing.T) {
	env := newEnv(t)
	req := env.createRequest(t, nil)
	path := fmt.Sprintf("/api/v1/requests/%d/attachments", req.ID)

	upload := httptest.NewRequest(http.MethodPost, path, strings.NewReader("fake image bytes"))
	upload.Header.Set("Content-Type", "image/jpeg")
	upload.Header.Set("X-Attachment-Title", "boiler photo")
	for k, v := range facilitiesHeaders {
		upload.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, upload)
	if rec.Code != http.StatusCreated {
		t.Fatalf("upload: %d %s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Attachment domain.AttachmentRef `json:"attachment"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if payload.Attachment.Title != "boiler photo" || !strings.HasPrefix(payload.Attachment.Key, fmt.Sprintf("requests/%d/", req.ID)) {
		t.Fatalf("attachment ref: %+v", payload.Attachment)
	}

	// Disallowed content type never reaches the store.
	upload = httptest.NewRequest(http.MethodPost, path, strings.NewReader("#!/bin/sh"))
	upload.Header.Set("Content-Type", "application/x-sh")
	for k, v := range facilitiesHeaders {
		upload.Header.Set(k, v)
	}
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, upload)
	if rec.Code != http.StatusUnprocessableEntity || errorCode(t, rec) != "attachment_rejected" {
		t.Fatalf("rejected upload: %d code=%s", rec.Code, errorCode(t, rec))
	}
}

func TestSoftDeleteRequiresAdmin(t *testing.T) {
	env := newEnv(t)
	req := env.createRequest(t, nil)
	path := fmt.Sprintf("/api/v1/requests/%d", req.ID)

	rec := env.do(t, http.MethodDelete, path, "", facilitiesHeaders)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("facilities delete: %d", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, path, "", adminHeaders)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("admin delete: %d %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodGet, path, "", adminHeaders)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("deleted request still served: %d", rec.Code)
	}
}

func TestDashboardEndpoint(t *testing.T) {
	env := newEnv(t)
	env.createRequest(t, nil)

	rec := env.do(t, http.MethodGet, "/api/v1/dashboard", "", facilitiesHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("dashboard: %d %s", rec.Code, rec.Body.String())
	}
	var inbox core.Inbox
	if err := json.Unmarshal(rec.Body.Bytes(), &inbox); err != nil {
		t.Fatalf("decode inbox: %v", err)
	}
	if len(inbox.Requests) != 1 || inbox.StatusCounts[domain.StatusNew] != 1 {
		t.Fatalf("inbox: %+v", inbox)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/dashboard", "", requesterHeaders)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("requester dashboard: %d", rec.Code)
	}
}

func TestPlannerValidatesMonth(t *testing.T) {
	env := newEnv(t)
	rec := env.do(t, http.MethodGet, "/api/v1/planner?year=2026&month=13", "", facilitiesHeaders)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	rec = env.do(t, http.MethodGet, "/api/v1/planner?year=2026&month=9", "", facilitiesHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestLocationLifecycleOverHTTP(t *testing.T) {
	env := newEnv(t)
	loc := env.seedLocation(t)

	rec := env.do(t, http.MethodGet, "/api/v1/locations", "", facilitiesHeaders)
	if rec.Code != http.StatusOK {
		t.Fatalf("list: %d", rec.Code)
	}

	rec = env.do(t, http.MethodDelete, "/api/v1/locations/"+loc.ID, "", adminHeaders)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete: %d %s", rec.Code, rec.Body.String())
	}
}

func TestMethodNotAllowed(t *testing.T) {
	env := newEnv(t)
	rec := env.do(t, http.MethodPut, "/api/v1/requests", `{}`, facilitiesHeaders)
	if rec.Code != http.StatusMethodNotAllowed {
		t.Fatalf("status = %d, want 405", rec.Code)
	}
}
