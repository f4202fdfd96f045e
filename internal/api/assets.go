package api

import (
	"io"
	"net/http"
)

const defaultMaxUploadBytes = 50 << 20 // 50 MB

// ServeAsset handles GET /asset/*. The raw file is served with the MIME
// type guessed from its extension.
//
//	@Summary		Serve raw file bytes from the vault
//	@Tags			assets
//	@Param			path	path	string	true	"Vault path"
//	@Success		200		"File bytes"
//	@Failure		404		{object}	errResponse
//	@Router			/asset/{path} [get]
func (h *Handler) ServeAsset(w http.ResponseWriter, r *http.Request) {
	abs, _, err := h.svc.AssetPath(r.Context(), wildPath(r))
	if err != nil {
		respondError(w, "serve asset", err)
		return
	}
	http.ServeFile(w, r, abs)
}

// UploadAsset handles POST /api/assets (multipart/form-data, fields
// "file" and "parent_path"). The file lands in the vault and is indexed
// as a node.
//
//	@Summary		Upload a file into the vault
//	@Tags			assets
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file		formData	file	true	"File to upload"
//	@Param			parent_path	formData	string	false	"Directory to upload into (default vault root)"
//	@Success		201			{object}	models.DataNode
//	@Failure		400			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/assets [post]
func (h *Handler) UploadAsset(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)

	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read upload"))
		return
	}

	parent := r.FormValue("parent_path")
	if parent == "" {
		parent = "/"
	}

	n, err := h.svc.SaveAsset(r.Context(), parent, header.Filename, data)
	if err != nil {
		respondError(w, "upload asset", err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}
