package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router. adminKeyHash
// gates the validation endpoints; see RequireAPIKey.
func MountRoutes(r chi.Router, h *Handlers, adminKeyHash string) {
	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Promises
		r.Get("/promises", h.ListPromises)
		r.Post("/promises", h.CreatePromise)
		r.Get("/promises/{id}", h.GetPromise)
		r.Put("/promises/{id}", h.UpdatePromise)
		r.Delete("/promises/{id}", h.DeletePromise)
		r.Get("/promises/{id}/runs", h.ListValidationRuns)

		// Validation pipeline (admin-gated: each run spends LLM quota)
		r.With(RequireAPIKey(adminKeyHash)).
			Post("/promises/{id}/validate", h.ValidatePromise)
		r.With(RequireAPIKey(adminKeyHash)).
			Post("/quickcheck", h.QuickCheck)
	})
}
