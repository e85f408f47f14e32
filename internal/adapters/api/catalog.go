package api

import (
	"net/http"

	"facilitycore/pkg/domain"
)

func (h *Handler) handleListAssets(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	assets, err := h.Service.ListAssets(r.Context(), actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"assets": assets})
}

func (h *Handler) handleAssetDetail(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	detail, err := h.Service.GetAssetDetail(r.Context(), actor, id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type createAssetPayload struct {
	Tag          string `json:"tag"`
	Name         string `json:"name"`
	Category     string `json:"category"`
	LocationID   string `json:"location_id"`
	Manufacturer string `json:"manufacturer"`
	Model        string `json:"model"`
	SerialNumber string `json:"serial_number"`
	Status       string `json:"status"`
	Criticality  string `json:"criticality"`
	Description  string `json:"description"`
}

func (h *Handler) handleCreateAsset(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var payload createAssetPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request payload")
		return
	}
	created, _, err := h.Service.CreateAsset(r.Context(), actor, domain.Asset{
		AssetTag:     payload.Tag,
		Name:         payload.Name,
		Category:     domain.AssetCategory(payload.Category),
		LocationID:   payload.LocationID,
		Manufacturer: payload.Manufacturer,
		Model:        payload.Model,
		SerialNumber: payload.SerialNumber,
		Status:       domain.AssetStatus(payload.Status),
		Criticality:  domain.Criticality(payload.Criticality),
		Description:  payload.Description,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"asset": created})
}

func (h *Handler) handleListLocations(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	locations, err := h.Service.ListLocations(r.Context(), actor)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"locations": locations})
}

type createLocationPayload struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
	Notes    string  `json:"notes"`
}

func (h *Handler) handleCreateLocation(w http.ResponseWriter, r *http.Request) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	var payload createLocationPayload
	if err := decodeBody(r, &payload); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request payload")
		return
	}
	created, _, err := h.Service.CreateLocation(r.Context(), actor, domain.Location{
		Name:     payload.Name,
		ParentID: payload.ParentID,
		Notes:    payload.Notes,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"location": created})
}

func (h *Handler) handleDeleteLocation(w http.ResponseWriter, r *http.Request, id string) {
	actor, ok := requireActor(w, r)
	if !ok {
		return
	}
	if _, err := h.Service.DeleteLocation(r.Context(), actor, id); err != nil {
		writeServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
