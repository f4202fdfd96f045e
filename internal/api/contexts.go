package api

import (
	"encoding/json"
	"net/http"

	"github.com/karta-graph/karta/internal/models"
	"github.com/karta-graph/karta/internal/settings"
)

// OpenContext handles GET /ctx/*.
//
//	@Summary		Open the context for the node at a path or UUID
//	@Tags			contexts
//	@Produce		json
//	@Param			handle	path		string	true	"Vault path or node UUID"
//	@Success		200		{object}	service.ContextView
//	@Failure		404		{object}	errResponse
//	@Router			/ctx/{handle} [get]
func (h *Handler) OpenContext(w http.ResponseWriter, r *http.Request) {
	cv, err := h.svc.OpenContext(r.Context(), wildPath(r))
	if err != nil {
		respondError(w, "open context", err)
		return
	}
	writeJSON(w, http.StatusOK, cv)
}

// SaveContext handles PUT /api/ctx/{id}.
//
//	@Summary		Save the view document for a focal node
//	@Tags			contexts
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string			true	"Focal node UUID"
//	@Param			body	body		models.Context	true	"View document"
//	@Success		200		{object}	models.Context
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/ctx/{id} [put]
func (h *Handler) SaveContext(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid context uuid"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var doc models.Context
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	saved, err := h.svc.SaveContext(r.Context(), id, doc)
	if err != nil {
		respondError(w, "save context", err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// GetSettings handles GET /settings.
//
//	@Summary		Get the server settings
//	@Tags			settings
//	@Produce		json
//	@Success		200	{object}	settings.Settings
//	@Router			/settings [get]
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Settings(r.Context()))
}

// UpdateSettings handles PUT /settings.
//
//	@Summary		Replace the server settings
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		settings.Settings	true	"New settings"
//	@Success		200		{object}	settings.Settings
//	@Failure		400		{object}	errResponse
//	@Router			/settings [put]
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var v settings.Settings
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	saved, err := h.svc.UpdateSettings(r.Context(), v)
	if err != nil {
		respondError(w, "update settings", err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}
