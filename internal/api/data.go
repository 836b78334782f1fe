package api

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tiledash/internal/apperr"
	"github.com/starford/tiledash/internal/backup"
)

const maxUploadBytes = 10 << 20 // 10 MB per photo

// ListPhotos handles GET /api/photos.
func (h *Handler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	photos := h.svc.ListPhotos(r.Context(), r.URL.Query().Get("tileId"))
	writeJSON(w, http.StatusOK, map[string]any{"photos": photos})
}

// GetPhoto handles GET /api/photos/{id}.
func (h *Handler) GetPhoto(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetPhoto(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// PhotoRaw handles GET /api/photos/{id}/raw and serves the decoded bytes.
func (h *Handler) PhotoRaw(w http.ResponseWriter, r *http.Request) {
	d, err := h.svc.PhotoContent(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", d.MimeType)
	w.Header().Set("Content-Length", strconv.Itoa(len(d.Data)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(d.Data)
}

// CreatePhoto handles POST /api/photos with a JSON data URL payload.
//
//	@Summary		Attach a photo to a tile
//	@Tags			photos
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreatePhotoRequest	true	"Photo as a base64 data URL"
//	@Success		201		{object}	models.Photo
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/photos [post]
func (h *Handler) CreatePhoto(w http.ResponseWriter, r *http.Request) {
	var req CreatePhotoRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	p, err := h.svc.AddPhoto(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// UploadPhoto handles POST /api/tiles/{id}/photos (multipart/form-data,
// field "file", optional field "caption").
//
//	@Summary		Upload a photo file to a tile
//	@Tags			photos
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			id		path		string	true	"Tile id"
//	@Param			file	formData	file	true	"Image file"
//	@Success		201		{object}	PhotoUploadResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tiles/{id}/photos [post]
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("file too large or invalid multipart"))
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("missing 'file' field in multipart form"))
		return
	}
	defer file.Close()

	name, err := safeName(header.Filename)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(err.Error()))
		return
	}

	var buf bytes.Buffer
	size, err := io.Copy(&buf, file)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("failed to read file"))
		return
	}
	mime := header.Header.Get("Content-Type")
	if mime == "" || mime == "application/octet-stream" {
		mime = http.DetectContentType(buf.Bytes())
	}

	p, err := h.svc.AddPhoto(r.Context(), CreatePhotoRequest{
		TileID:     chi.URLParam(r, "id"),
		Base64Data: "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		Caption:    r.FormValue("caption"),
		Filename:   name,
		MimeType:   mime,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, PhotoUploadResponse{
		ID:       p.ID,
		Filename: name,
		Size:     size,
		URL:      "/api/photos/" + p.ID + "/raw",
	})
}

// safeName reduces an uploaded filename to a plain base name.
func safeName(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("filename is required")
	}
	cleaned := filepath.Base(filepath.Clean(strings.ReplaceAll(name, `\`, "/")))
	if cleaned == "." || cleaned == "/" || strings.Contains(cleaned, "..") {
		return "", fmt.Errorf("invalid filename: %s", name)
	}
	return cleaned, nil
}

// DeletePhoto handles DELETE /api/photos/{id}.
func (h *Handler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeletePhoto(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetSettings handles GET /api/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.svc.Settings(r.Context()))
}

// UpdateSettings handles PATCH /api/settings.
//
//	@Summary		Change dashboard settings
//	@Tags			settings
//	@Accept			json
//	@Produce		json
//	@Param			body	body		UpdateSettingsRequest	true	"Settings to change"
//	@Success		200		{object}	models.Settings
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/settings [patch]
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req UpdateSettingsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	st, err := h.svc.UpdateSettings(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// Reset handles POST /api/reset.
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	h.svc.Reset(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

// Export handles GET /api/export.
//
//	@Summary		Download a full snapshot
//	@Tags			backup
//	@Produce		json
//	@Success		200	{object}	backup.Snapshot
//	@Security		BearerAuth
//	@Router			/export [get]
func (h *Handler) Export(w http.ResponseWriter, r *http.Request) {
	snap := h.svc.Export(r.Context())
	data, err := backup.Marshal(snap)
	if err != nil {
		writeError(w, r, err)
		return
	}
	date := snap.Time().Format("2006-01-02")
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="dashboard-backup-`+date+`.json"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}

// ExportCSV handles GET /api/export.csv.
func (h *Handler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	var buf bytes.Buffer
	if err := h.svc.ExportCSV(r.Context(), &buf); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="tiles.csv"`)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// Import handles POST /api/import.
//
//	@Summary		Replace dashboard data from a snapshot
//	@Tags			backup
//	@Accept			json
//	@Param			body	body	backup.Snapshot	true	"Snapshot; only tiles is required"
//	@Success		204		"Imported"
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/import [post]
func (h *Handler) Import(w http.ResponseWriter, r *http.Request) {
	data, ok := readBody(w, r)
	if !ok {
		return
	}
	if err := h.svc.Import(r.Context(), data); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListBackups handles GET /api/backups.
func (h *Handler) ListBackups(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.ListBackups(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	type item struct {
		ID        string `json:"id"`
		Timestamp string `json:"timestamp"`
		Tiles     int    `json:"tiles"`
		Photos    int    `json:"photos"`
	}
	out := make([]item, len(list))
	for i, s := range list {
		out[i] = item{ID: s.ID, Timestamp: s.Timestamp, Tiles: len(s.Tiles), Photos: len(s.Photos)}
	}
	writeJSON(w, http.StatusOK, map[string]any{"backups": out})
}

// CreateBackup handles POST /api/backups.
func (h *Handler) CreateBackup(w http.ResponseWriter, r *http.Request) {
	snap, err := h.svc.CreateBackup(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": snap.ID, "timestamp": snap.Timestamp})
}

// DeleteBackup handles DELETE /api/backups/{id}.
func (h *Handler) DeleteBackup(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteBackup(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RestoreBackup handles POST /api/backups/{id}/restore.
func (h *Handler) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.RestoreBackup(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListNotifications handles GET /api/notifications.
func (h *Handler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"notifications": h.svc.Notifications(r.Context()),
		"unread":        h.svc.UnreadNotifications(r.Context()),
	})
}

// MarkNotificationRead handles POST /api/notifications/{id}/read.
func (h *Handler) MarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	err := h.svc.MarkNotificationRead(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, apperr.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, errorBody("notification not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ClearNotifications handles DELETE /api/notifications.
func (h *Handler) ClearNotifications(w http.ResponseWriter, r *http.Request) {
	h.svc.ClearNotifications(r.Context())
	w.WriteHeader(http.StatusNoContent)
}
