package setlist

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"setlist-service/internal/auth"
)

type Server struct {
	svc *Service
	log *slog.Logger
}

func NewServer(svc *Service, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		svc: svc,
		log: log,
	}
}

func (s *Server) Router(middlewares ...func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	for _, mw := range middlewares {
		r.Use(mw)
	}

	r.Get("/health", s.handleHealth)

	r.Group(func(r chi.Router) {
		r.Post("/setlists", s.handleCreateSetlist)
		r.Get("/setlists/{id}", s.handleGetSetlist)
		r.Post("/setlists/{id}/duplicate", s.handleDuplicateSetlist)

		r.Post("/setlists/{id}/items", s.handleAddItem)
		r.Put("/setlists/{id}/items/order", s.handleReorderItems)
		r.Patch("/setlists/{id}/items/{itemId}", s.handleUpdateItem)
		r.Delete("/setlists/{id}/items/{itemId}", s.handleRemoveItem)

		r.Post("/setlists/{id}/sections", s.handleAddSection)
		r.Put("/setlists/{id}/sections/order", s.handleReorderSections)
		r.Patch("/setlists/{id}/sections/{sectionId}", s.handleUpdateSection)
		r.Delete("/setlists/{id}/sections/{sectionId}", s.handleDeleteSection)

		r.Get("/setlists/{id}/shares", s.handleListShares)
		r.Post("/setlists/{id}/shares", s.handleCreateShare)
		r.Delete("/setlists/{id}/shares/{shareId}", s.handleRevokeShare)
	})

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "setlist-service",
	})
}

// CredentialsFromRequest reads the bearer token and the share token, which may come
// from the X-Share-Token header or the shareToken query parameter.
func CredentialsFromRequest(r *http.Request) Credentials {
	share := r.Header.Get("X-Share-Token")
	if share == "" {
		share = r.URL.Query().Get("shareToken")
	}
	return Credentials{
		AccessToken: auth.BearerToken(r),
		ShareToken:  share,
		DisplayName: r.Header.Get("X-User-Name"),
	}
}
