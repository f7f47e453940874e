package targets

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"firegate/pkg/platform/httputil"
)

// Register mounts the target catalog listing.
func (r *Registry) Register(router chi.Router) {
	router.Get("/targets", func(w http.ResponseWriter, req *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]any{"targets": r.List()})
	})
}
