package api

import (
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/karta-graph/karta/internal/graph"
	"github.com/karta-graph/karta/internal/models"
	"github.com/karta-graph/karta/internal/service"
)

const maxBodyBytes = 10 << 20 // 10 MB

// Handler holds API route handlers.
type Handler struct {
	svc       *service.Service
	maxUpload int64
}

// NewHandler creates a new Handler. maxUpload bounds asset uploads;
// zero selects the default.
func NewHandler(svc *service.Service, maxUpload int64) *Handler {
	if maxUpload <= 0 {
		maxUpload = defaultMaxUploadBytes
	}
	return &Handler{svc: svc, maxUpload: maxUpload}
}

// wildPath extracts the vault path from a wildcard route (everything
// after the route prefix). Supports encoded slashes from OpenAPI clients
// (e.g. topics%2Fnote.md). An empty wildcard means the vault root.
func wildPath(r *http.Request) string {
	raw := strings.TrimPrefix(chi.URLParam(r, "*"), "/")
	if raw == "" {
		return "/"
	}
	decoded, err := url.PathUnescape(raw)
	if err != nil {
		return raw
	}
	return decoded
}

// nodeID parses the {id} route parameter as a UUID.
func nodeID(r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	return id, err == nil
}

// HealthLive handles GET /health/live.
func (h *Handler) HealthLive(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// HealthReady handles GET /health/ready.
func (h *Handler) HealthReady(w http.ResponseWriter, r *http.Request) {
	if _, err := h.svc.OpenNode(r.Context(), "/"); err != nil {
		respondError(w, "readiness", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// GetNode handles GET /api/nodes/{id}.
//
//	@Summary		Get a node by UUID
//	@Tags			nodes
//	@Produce		json
//	@Param			id	path		string	true	"Node UUID"
//	@Success		200	{object}	models.DataNode
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id} [get]
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid node uuid"))
		return
	}
	n, err := h.svc.OpenNodeByID(r.Context(), id)
	if err != nil {
		respondError(w, "get node", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

// CreateNode handles POST /api/nodes.
//
//	@Summary		Create a node under an existing parent
//	@Tags			nodes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		service.CreateNodeRequest	true	"Node to create"
//	@Success		201		{object}	createNodeResponse
//	@Failure		400		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes [post]
func (h *Handler) CreateNode(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req service.CreateNodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("name is required"))
		return
	}
	results, err := h.svc.CreateNodes(r.Context(), []service.CreateNodeRequest{req})
	if err != nil {
		respondError(w, "create node", err)
		return
	}
	res := results[0]
	ancestors := make([]models.DataNode, 0, len(res.Ancestors))
	for _, a := range res.Ancestors {
		ancestors = append(ancestors, a.Node)
	}
	status := http.StatusCreated
	if !res.Created {
		// Equivalent node already there; the call was a silent no-op.
		status = http.StatusOK
	}
	writeJSON(w, status, createNodeResponse{
		Node:      *res.Node,
		Created:   res.Created,
		Ancestors: ancestors,
	})
}

type createNodeResponse struct {
	Node      models.DataNode   `json:"node"`
	Created   bool              `json:"created"`
	Ancestors []models.DataNode `json:"ancestors"`
}

// UpsertAttributes handles PUT /api/nodes/{id}.
//
//	@Summary		Merge attribute values into a node
//	@Tags			nodes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Node UUID"
//	@Param			body	body		upsertAttributesRequest	true	"Attributes to set"
//	@Success		200		{object}	models.DataNode
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id} [put]
func (h *Handler) UpsertAttributes(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid node uuid"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req upsertAttributesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	n, err := h.svc.UpsertAttributes(r.Context(), id, req.Attributes)
	if err != nil {
		respondError(w, "upsert attributes", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

type upsertAttributesRequest struct {
	Attributes []models.Attribute `json:"attributes"`
}

// DeleteAttributes handles DELETE /api/nodes/{id}/attributes.
//
//	@Summary		Remove named attributes from a node
//	@Tags			nodes
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string					true	"Node UUID"
//	@Param			body	body		deleteAttributesRequest	true	"Attribute names"
//	@Success		200		{object}	models.DataNode
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/{id}/attributes [delete]
func (h *Handler) DeleteAttributes(w http.ResponseWriter, r *http.Request) {
	id, ok := nodeID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid node uuid"))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req deleteAttributesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	n, err := h.svc.DeleteAttributes(r.Context(), id, req.Names)
	if err != nil {
		respondError(w, "delete attributes", err)
		return
	}
	writeJSON(w, http.StatusOK, n)
}

type deleteAttributesRequest struct {
	Names []string `json:"names"`
}

// RenameNode handles POST /api/nodes/rename.
//
//	@Summary		Rename a node, propagating the path change to descendants
//	@Tags			nodes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		renameRequest	true	"Rename"
//	@Success		200		{object}	renameResponse
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/rename [post]
func (h *Handler) RenameNode(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req renameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	res, err := h.svc.RenameNode(r.Context(), req.UUID, req.NewName)
	if err != nil {
		respondError(w, "rename node", err)
		return
	}
	writeJSON(w, http.StatusOK, renameResponse{
		UUID:    res.ID,
		OldPath: res.OldPath,
		NewPath: res.NewPath,
		Node:    *res.Node,
	})
}

type renameRequest struct {
	UUID    uuid.UUID `json:"uuid"`
	NewName string    `json:"new_name"`
}

type renameResponse struct {
	UUID    uuid.UUID       `json:"uuid"`
	OldPath models.NodePath `json:"old_path"`
	NewPath models.NodePath `json:"new_path"`
	Node    models.DataNode `json:"node"`
}

// MoveNodes handles POST /api/nodes/move.
//
//	@Summary		Re-parent a batch of nodes
//	@Tags			nodes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		moveRequest	true	"Move operations"
//	@Success		200		{object}	moveResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes/move [post]
func (h *Handler) MoveNodes(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req moveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	results, err := h.svc.MoveNodes(r.Context(), req.Operations)
	if results == nil {
		respondError(w, "move nodes", err)
		return
	}
	status := http.StatusOK
	items := make([]moveItem, 0, len(results))
	for _, res := range results {
		item := moveItem{
			UUID:    res.Op.ID,
			OK:      res.Err == nil,
			Moved:   res.Moved,
			OldPath: res.OldPath,
			NewPath: res.NewPath,
		}
		if res.Err != nil {
			item.Error = res.Err.Error()
		}
		status = worstStatus(status, res.Err)
		items = append(items, item)
	}
	writeJSON(w, status, moveResponse{Results: items})
}

type moveRequest struct {
	Operations []graph.MoveOp `json:"operations"`
}

type moveItem struct {
	UUID    uuid.UUID       `json:"uuid"`
	OK      bool            `json:"ok"`
	Moved   bool            `json:"moved"`
	OldPath models.NodePath `json:"old_path,omitempty"`
	NewPath models.NodePath `json:"new_path,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type moveResponse struct {
	Results []moveItem `json:"results"`
}

// DeleteNodes handles DELETE /api/nodes.
//
//	@Summary		Delete a batch of nodes
//	@Tags			nodes
//	@Accept			json
//	@Produce		json
//	@Param			body	body		deleteNodesRequest	true	"Nodes to delete"
//	@Success		200		{object}	deleteNodesResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/nodes [delete]
func (h *Handler) DeleteNodes(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req deleteNodesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	results, err := h.svc.DeleteNodes(r.Context(), req.UUIDs, req.Cascade, req.DeleteFromFS)
	if results == nil {
		respondError(w, "delete nodes", err)
		return
	}
	status := http.StatusOK
	items := make([]deleteNodeItem, 0, len(results))
	for _, res := range results {
		item := deleteNodeItem{UUID: res.ID, OK: res.Err == nil, Removed: len(res.Removed)}
		if res.Err != nil {
			item.Error = res.Err.Error()
		}
		status = worstStatus(status, res.Err)
		items = append(items, item)
	}
	writeJSON(w, status, deleteNodesResponse{Results: items})
}

type deleteNodesRequest struct {
	UUIDs        []uuid.UUID `json:"uuids"`
	Cascade      bool        `json:"cascade"`
	DeleteFromFS bool        `json:"delete_from_fs"`
}

type deleteNodeItem struct {
	UUID    uuid.UUID `json:"uuid"`
	OK      bool      `json:"ok"`
	Removed int       `json:"removed"`
	Error   string    `json:"error,omitempty"`
}

type deleteNodesResponse struct {
	Results []deleteNodeItem `json:"results"`
}

// CreateEdges handles POST /api/edges.
//
//	@Summary		Create a batch of user edges
//	@Tags			edges
//	@Accept			json
//	@Produce		json
//	@Param			body	body		createEdgesRequest	true	"Edges to create"
//	@Success		200		{object}	edgesResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/edges [post]
func (h *Handler) CreateEdges(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req createEdgesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	results, err := h.svc.CreateEdges(r.Context(), req.Edges)
	if results == nil {
		respondError(w, "create edges", err)
		return
	}
	status := http.StatusOK
	items := make([]edgeItem, 0, len(results))
	for i, res := range results {
		item := edgeItem{
			Source:  req.Edges[i].Source,
			Target:  req.Edges[i].Target,
			OK:      res.Err == nil,
			Created: res.Created,
			Edge:    res.Edge,
		}
		if res.Err != nil {
			item.Error = res.Err.Error()
		}
		status = worstStatus(status, res.Err)
		items = append(items, item)
	}
	writeJSON(w, status, edgesResponse{Results: items})
}

type createEdgesRequest struct {
	Edges []service.EdgeRequest `json:"edges"`
}

type edgeItem struct {
	Source  uuid.UUID    `json:"source"`
	Target  uuid.UUID    `json:"target"`
	OK      bool         `json:"ok"`
	Created bool         `json:"created,omitempty"`
	Removed bool         `json:"removed,omitempty"`
	Edge    *models.Edge `json:"edge,omitempty"`
	Error   string       `json:"error,omitempty"`
}

type edgesResponse struct {
	Results []edgeItem `json:"results"`
}

// DeleteEdges handles DELETE /api/edges.
//
//	@Summary		Delete a batch of user edges
//	@Tags			edges
//	@Accept			json
//	@Produce		json
//	@Param			body	body		deleteEdgesRequest	true	"Edges to delete"
//	@Success		200		{object}	edgesResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/edges [delete]
func (h *Handler) DeleteEdges(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req deleteEdgesRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	results, err := h.svc.DeleteEdges(r.Context(), req.Pairs)
	if results == nil {
		respondError(w, "delete edges", err)
		return
	}
	status := http.StatusOK
	items := make([]edgeItem, 0, len(results))
	for _, res := range results {
		item := edgeItem{
			Source:  res.Pair.Source,
			Target:  res.Pair.Target,
			OK:      res.Err == nil,
			Removed: res.Removed != nil,
		}
		if res.Err != nil {
			item.Error = res.Err.Error()
		}
		status = worstStatus(status, res.Err)
		items = append(items, item)
	}
	writeJSON(w, status, edgesResponse{Results: items})
}

type deleteEdgesRequest struct {
	Pairs []models.EdgePair `json:"pairs"`
}

// ReconnectEdge handles PUT /api/edges/reconnect.
//
//	@Summary		Move an edge onto new endpoints
//	@Tags			edges
//	@Accept			json
//	@Produce		json
//	@Param			body	body		reconnectRequest	true	"Old and new endpoints"
//	@Success		200		{object}	models.Edge
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Failure		409		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/edges/reconnect [put]
func (h *Handler) ReconnectEdge(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	var req reconnectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid JSON body"))
		return
	}
	edge, err := h.svc.ReconnectEdge(r.Context(), req.Old, req.New)
	if err != nil {
		respondError(w, "reconnect edge", err)
		return
	}
	writeJSON(w, http.StatusOK, edge)
}

type reconnectRequest struct {
	Old models.EdgePair `json:"old"`
	New models.EdgePair `json:"new"`
}

// Search handles GET /search.
//
//	@Summary		Fuzzy search over indexed nodes and vault files
//	@Tags			search
//	@Produce		json
//	@Param			q			query		string	true	"Search query"
//	@Param			limit		query		int		false	"Max results (default 50)"
//	@Param			min_score	query		number	false	"Score floor in [0,1]"
//	@Success		200			{object}	searchResponse
//	@Failure		400			{object}	errResponse
//	@Router			/search [get]
func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	if q == "" {
		writeJSON(w, http.StatusBadRequest, errorBody("query parameter 'q' is required"))
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 {
		limit = 50
	}
	minScore, _ := strconv.ParseFloat(r.URL.Query().Get("min_score"), 64)

	hits, err := h.svc.Search(r.Context(), q, limit, minScore)
	if err != nil {
		respondError(w, "search", err)
		return
	}
	if hits == nil {
		hits = []graph.SearchHit{}
	}
	writeJSON(w, http.StatusOK, searchResponse{Results: hits})
}

type searchResponse struct {
	Results []graph.SearchHit `json:"results"`
}

// Undo handles POST /api/undo.
//
//	@Summary		Reverse the most recent command
//	@Tags			history
//	@Produce		json
//	@Success		200	{object}	historyStepResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/undo [post]
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	kind, err := h.svc.Undo(r.Context())
	if err != nil {
		respondError(w, "undo", err)
		return
	}
	writeJSON(w, http.StatusOK, historyStepResponse{Kind: kind})
}

// Redo handles POST /api/redo.
//
//	@Summary		Re-apply the most recently undone command
//	@Tags			history
//	@Produce		json
//	@Success		200	{object}	historyStepResponse
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/redo [post]
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	kind, err := h.svc.Redo(r.Context())
	if err != nil {
		respondError(w, "redo", err)
		return
	}
	writeJSON(w, http.StatusOK, historyStepResponse{Kind: kind})
}

type historyStepResponse struct {
	Kind string `json:"kind"`
}

// History handles GET /api/history.
//
//	@Summary		Report the undo and redo stacks
//	@Tags			history
//	@Produce		json
//	@Success		200	{object}	historyResponse
//	@Security		BearerAuth
//	@Router			/history [get]
func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	undo, redo := h.svc.History(r.Context())
	writeJSON(w, http.StatusOK, historyResponse{Undo: undo, Redo: redo})
}

type historyResponse struct {
	Undo []string `json:"undo"`
	Redo []string `json:"redo"`
}
