package api

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tiledash/internal/dashboard"
	"github.com/starford/tiledash/internal/sqlstore"
)

// Handler holds API route handlers.
type Handler struct {
	svc *dashboard.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *dashboard.Service) *Handler {
	return &Handler{svc: svc}
}

// ListTiles handles GET /api/tiles.
//
//	@Summary		List tiles in display order
//	@Tags			tiles
//	@Produce		json
//	@Param			q	query		string	false	"Case-insensitive match on title or content"
//	@Success		200	{object}	TileListResponse
//	@Security		BearerAuth
//	@Router			/tiles [get]
func (h *Handler) ListTiles(w http.ResponseWriter, r *http.Request) {
	tiles := h.svc.ListTiles(r.Context(), r.URL.Query().Get("q"))
	writeJSON(w, http.StatusOK, TileListResponse{Tiles: tiles, Total: len(tiles)})
}

// GetTile handles GET /api/tiles/{id}.
//
//	@Summary		Get a tile
//	@Tags			tiles
//	@Produce		json
//	@Param			id	path		string	true	"Tile id"
//	@Success		200	{object}	TileDetail
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tiles/{id} [get]
func (h *Handler) GetTile(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetTile(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("ETag", `"`+t.Checksum+`"`)
	writeJSON(w, http.StatusOK, t)
}

// GetTileBySlug handles GET /api/tiles/slug/{slug}.
func (h *Handler) GetTileBySlug(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.GetTileBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("ETag", `"`+t.Checksum+`"`)
	writeJSON(w, http.StatusOK, t)
}

// CreateTile handles POST /api/tiles.
//
//	@Summary		Create a tile
//	@Tags			tiles
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateTileRequest	true	"Tile to create"
//	@Success		201		{object}	TileDetail
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tiles [post]
func (h *Handler) CreateTile(w http.ResponseWriter, r *http.Request) {
	var req CreateTileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.svc.CreateTile(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// UpdateTile handles PATCH /api/tiles/{id}.
//
//	@Summary		Update a tile with optimistic concurrency
//	@Tags			tiles
//	@Accept			json
//	@Produce		json
//	@Param			id			path		string				true	"Tile id"
//	@Param			If-Match	header		string				false	"Checksum from a previous read"
//	@Param			body		body		UpdateTileRequest	true	"Fields to change"
//	@Success		200			{object}	TileDetail
//	@Failure		400			{object}	errResponse
//	@Failure		404			{object}	errResponse
//	@Failure		409			{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tiles/{id} [patch]
func (h *Handler) UpdateTile(w http.ResponseWriter, r *http.Request) {
	var req UpdateTileRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	ifMatch := strings.Trim(r.Header.Get("If-Match"), `"`)
	t, err := h.svc.UpdateTile(r.Context(), chi.URLParam(r, "id"), req, ifMatch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("ETag", `"`+t.Checksum+`"`)
	writeJSON(w, http.StatusOK, t)
}

// DeleteTile handles DELETE /api/tiles/{id}.
//
//	@Summary		Delete a tile with its photos, versions and share links
//	@Tags			tiles
//	@Param			id	path	string	true	"Tile id"
//	@Success		204	"Tile deleted"
//	@Failure		404	{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tiles/{id} [delete]
func (h *Handler) DeleteTile(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteTile(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReorderTiles handles POST /api/tiles/reorder.
//
//	@Summary		Apply a drag-and-drop reorder of visible tiles
//	@Tags			tiles
//	@Accept			json
//	@Produce		json
//	@Param			body	body		ReorderRequest	true	"New relative order"
//	@Success		200		{object}	ReorderResponse
//	@Security		BearerAuth
//	@Router			/tiles/reorder [post]
func (h *Handler) ReorderTiles(w http.ResponseWriter, r *http.Request) {
	var req ReorderRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, ReorderResponse{TileOrder: h.svc.Reorder(r.Context(), req.TileIDs)})
}

// AppendNote handles POST /api/tiles/{id}/notes.
func (h *Handler) AppendNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.svc.AppendNote(r.Context(), chi.URLParam(r, "id"), req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ListVersions handles GET /api/tiles/{id}/versions.
func (h *Handler) ListVersions(w http.ResponseWriter, r *http.Request) {
	versions, err := h.svc.ListVersions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"versions": versions})
}

// RestoreVersion handles POST /api/tiles/{id}/versions/{vid}/restore.
func (h *Handler) RestoreVersion(w http.ResponseWriter, r *http.Request) {
	vid, err := strconv.ParseInt(chi.URLParam(r, "vid"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid version id"))
		return
	}
	t, err := h.svc.RestoreVersion(r.Context(), chi.URLParam(r, "id"), vid)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// BlockedBy handles GET /api/tiles/{id}/blocked-by.
func (h *Handler) BlockedBy(w http.ResponseWriter, r *http.Request) {
	tiles, err := h.svc.BlockedBy(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TileListResponse{Tiles: tiles, Total: len(tiles)})
}

// Blocking handles GET /api/tiles/{id}/blocking.
func (h *Handler) Blocking(w http.ResponseWriter, r *http.Request) {
	tiles, err := h.svc.Blocking(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TileListResponse{Tiles: tiles, Total: len(tiles)})
}

// Overdue handles GET /api/status/overdue.
func (h *Handler) Overdue(w http.ResponseWriter, r *http.Request) {
	tiles := h.svc.Overdue(r.Context())
	writeJSON(w, http.StatusOK, TileListResponse{Tiles: tiles, Total: len(tiles)})
}

// DueSoon handles GET /api/status/due-soon.
func (h *Handler) DueSoon(w http.ResponseWriter, r *http.Request) {
	tiles := h.svc.DueSoon(r.Context())
	writeJSON(w, http.StatusOK, TileListResponse{Tiles: tiles, Total: len(tiles)})
}

// Timeline handles GET /api/timeline.
func (h *Handler) Timeline(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	tiles := h.svc.Timeline(r.Context(), limit)
	writeJSON(w, http.StatusOK, TileListResponse{Tiles: tiles, Total: len(tiles)})
}

// ListShares handles GET /api/tiles/{id}/shares.
func (h *Handler) ListShares(w http.ResponseWriter, r *http.Request) {
	links, err := h.svc.ListShares(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"shares": links})
}

// CreateShare handles POST /api/tiles/{id}/shares.
//
//	@Summary		Issue a read-only share link
//	@Tags			shares
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Tile id"
//	@Param			body	body		CreateShareRequest	false	"Optional expiry"
//	@Success		201		{object}	models.SharedLink
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tiles/{id}/shares [post]
func (h *Handler) CreateShare(w http.ResponseWriter, r *http.Request) {
	var req CreateShareRequest
	if r.ContentLength != 0 && !decodeJSON(w, r, &req) {
		return
	}
	link, err := h.svc.CreateShare(r.Context(), chi.URLParam(r, "id"), req.ExpiresAt)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, link)
}

// UpdateShare handles PATCH /api/shares/{id}.
func (h *Handler) UpdateShare(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid share id"))
		return
	}
	var req UpdateShareRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	link, err := h.svc.UpdateShare(r.Context(), id, sqlstore.SharePatch{
		IsActive:    req.IsActive,
		ExpiresAt:   req.ExpiresAt,
		ClearExpiry: req.ClearExpiry,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, link)
}

// DeleteShare handles DELETE /api/shares/{id}.
func (h *Handler) DeleteShare(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("invalid share id"))
		return
	}
	if err := h.svc.DeleteShare(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Shared handles GET /api/shared/{token}. It needs no authentication.
//
//	@Summary		Read a shared tile
//	@Tags			shares
//	@Produce		json
//	@Param			token	path		string	true	"Share token"
//	@Success		200		{object}	dashboard.SharedTile
//	@Failure		404		{object}	errResponse
//	@Failure		410		{object}	errResponse
//	@Router			/shared/{token} [get]
func (h *Handler) Shared(w http.ResponseWriter, r *http.Request) {
	shared, err := h.svc.Shared(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeJSON(w, http.StatusOK, shared)
}
