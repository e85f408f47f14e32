// Package api exposes the work-order service over a JSON HTTP surface.
// Authentication is delegated to a fronting identity provider; the trusted
// actor headers (X-Actor-ID, X-Actor-Role, X-Actor-Email) carry its verdict.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"facilitycore/internal/blob"
	"facilitycore/internal/core"
	"facilitycore/pkg/domain"
)

// Handler routes the /api/v1 endpoints.
type Handler struct {
	Service *core.Service
	Blobs   blob.Store
}

// NewHandler constructs the API handler.
func NewHandler(svc *core.Service, blobs blob.Store) *Handler {
	return &Handler{Service: svc, Blobs: blobs}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	switch {
	case path == "/api/v1/requests":
		switch r.Method {
		case http.MethodPost:
			h.handleCreateRequest(w, r)
		case http.MethodGet:
			h.handleListRequests(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		}
	case strings.HasPrefix(path, "/api/v1/requests/"):
		h.handleRequestSubtree(w, r, strings.TrimPrefix(path, "/api/v1/requests/"))
	case path == "/api/v1/dashboard":
		h.withMethod(w, r, http.MethodGet, h.handleDashboard)
	case path == "/api/v1/planner":
		h.withMethod(w, r, http.MethodGet, h.handlePlanner)
	case path == "/api/v1/assets":
		switch r.Method {
		case http.MethodGet:
			h.handleListAssets(w, r)
		case http.MethodPost:
			h.handleCreateAsset(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		}
	case strings.HasPrefix(path, "/api/v1/assets/"):
		h.withMethod(w, r, http.MethodGet, func(w http.ResponseWriter, r *http.Request) {
			h.handleAssetDetail(w, r, strings.TrimPrefix(path, "/api/v1/assets/"))
		})
	case path == "/api/v1/locations":
		switch r.Method {
		case http.MethodGet:
			h.handleListLocations(w, r)
		case http.MethodPost:
			h.handleCreateLocation(w, r)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		}
	case strings.HasPrefix(path, "/api/v1/locations/"):
		h.withMethod(w, r, http.MethodDelete, func(w http.ResponseWriter, r *http.Request) {
			h.handleDeleteLocation(w, r, strings.TrimPrefix(path, "/api/v1/locations/"))
		})
	default:
		http.NotFound(w, r)
	}
}

func (h *Handler) withMethod(w http.ResponseWriter, r *http.Request, method string, fn http.HandlerFunc) {
	if r.Method != method {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		return
	}
	fn(w, r)
}

// handleRequestSubtree dispatches /api/v1/requests/{id}[/action].
func (h *Handler) handleRequestSubtree(w http.ResponseWriter, r *http.Request, remainder string) {
	segments := strings.Split(remainder, "/")
	id, err := strconv.ParseInt(segments[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", "request not found")
		return
	}
	if len(segments) == 1 {
		switch r.Method {
		case http.MethodGet:
			h.handleGetRequest(w, r, id)
		case http.MethodDelete:
			h.handleSoftDelete(w, r, id)
		default:
			writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
		}
		return
	}
	if len(segments) != 2 || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "not_found", "unknown request endpoint")
		return
	}
	switch segments[1] {
	case "transition":
		h.handleTransition(w, r, id)
	case "assign":
		h.handleAssign(w, r, id)
	case "notes":
		h.handleAddNote(w, r, id)
	case "time":
		h.handleLogTime(w, r, id)
	case "due-date":
		h.handleSetDueDate(w, r, id)
	case "reopen":
		h.handleReopen(w, r, id)
	case "procurement":
		h.handleProcurement(w, r, id)
	case "attachments":
		h.handleAddAttachment(w, r, id)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown request endpoint")
	}
}

func decodeBody(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]any{"code": code, "message": message}})
}

// writeServiceError maps the domain error taxonomy onto HTTP statuses.
func writeServiceError(w http.ResponseWriter, err error) {
	var (
		validation domain.ValidationError
		forbidden  domain.ForbiddenError
		notFound   domain.NotFoundError
		transition domain.InvalidTransitionError
		conflict   domain.ConflictError
		referenced domain.ReferencedError
		attachment domain.AttachmentRejectedError
		rules      domain.RuleViolationError
	)
	switch {
	case errors.As(err, &validation):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": map[string]any{"code": "validation", "message": validation.Error(), "fields": validation.Fields},
		})
	case errors.As(err, &attachment):
		writeError(w, http.StatusUnprocessableEntity, "attachment_rejected", attachment.Error())
	case errors.As(err, &forbidden):
		writeError(w, http.StatusForbidden, "forbidden", forbidden.Error())
	case errors.As(err, &notFound):
		writeError(w, http.StatusNotFound, "not_found", notFound.Error())
	case errors.As(err, &transition):
		writeError(w, http.StatusConflict, "invalid_transition", transition.Error())
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, "conflict", conflict.Error())
	case errors.As(err, &referenced):
		writeError(w, http.StatusConflict, "referenced", referenced.Error())
	case errors.As(err, &rules):
		writeJSON(w, http.StatusConflict, map[string]any{
			"error": map[string]any{"code": "rule_violation", "message": rules.Error(), "violations": rules.Result.Violations},
		})
	default:
		writeError(w, http.StatusInternalServerError, "internal", "internal error")
	}
}
