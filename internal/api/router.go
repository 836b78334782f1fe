package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/tiledash/internal/dashboard"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether the token is enforced. Shared tiles are
// always public. sseHandler, if non-nil, is mounted at GET /events inside
// the auth group.
func NewRouter(svc *dashboard.Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	// Read-only share links.
	r.Get("/shared/{token}", h.Shared)

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(authEnabled, token))

		// Tiles.
		r.Get("/tiles", h.ListTiles)
		r.Post("/tiles", h.CreateTile)
		r.Post("/tiles/reorder", h.ReorderTiles)
		r.Get("/tiles/slug/{slug}", h.GetTileBySlug)
		r.Route("/tiles/{id}", func(r chi.Router) {
			r.Get("/", h.GetTile)
			r.Patch("/", h.UpdateTile)
			r.Delete("/", h.DeleteTile)
			r.Post("/notes", h.AppendNote)
			r.Post("/photos", h.UploadPhoto)
			r.Get("/versions", h.ListVersions)
			r.Post("/versions/{vid}/restore", h.RestoreVersion)
			r.Get("/blocked-by", h.BlockedBy)
			r.Get("/blocking", h.Blocking)
			r.Get("/shares", h.ListShares)
			r.Post("/shares", h.CreateShare)
		})

		// Share link management.
		r.Patch("/shares/{id}", h.UpdateShare)
		r.Delete("/shares/{id}", h.DeleteShare)

		// Photos.
		r.Get("/photos", h.ListPhotos)
		r.Post("/photos", h.CreatePhoto)
		r.Get("/photos/{id}", h.GetPhoto)
		r.Get("/photos/{id}/raw", h.PhotoRaw)
		r.Delete("/photos/{id}", h.DeletePhoto)

		// Settings.
		r.Get("/settings", h.GetSettings)
		r.Patch("/settings", h.UpdateSettings)
		r.Post("/reset", h.Reset)

		// Export, import and backups.
		r.Get("/export", h.Export)
		r.Get("/export.csv", h.ExportCSV)
		r.Post("/import", h.Import)
		r.Get("/backups", h.ListBackups)
		r.Post("/backups", h.CreateBackup)
		r.Delete("/backups/{id}", h.DeleteBackup)
		r.Post("/backups/{id}/restore", h.RestoreBackup)

		// Status views.
		r.Get("/status/overdue", h.Overdue)
		r.Get("/status/due-soon", h.DueSoon)
		r.Get("/timeline", h.Timeline)

		// Notifications.
		r.Get("/notifications", h.ListNotifications)
		r.Delete("/notifications", h.ClearNotifications)
		r.Post("/notifications/{id}/read", h.MarkNotificationRead)

		if sseHandler != nil {
			r.Get("/events", sseHandler.ServeHTTP)
		}
	})

	return r
}
