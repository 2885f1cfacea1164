// Package api exposes the registry over HTTP, mapping each registry error
// kind to a distinct response code.
package api

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/dmphub/dmphub/pkg/cache"
	"github.com/dmphub/dmphub/pkg/matching"
	"github.com/dmphub/dmphub/pkg/registry"
	"github.com/dmphub/dmphub/pkg/store"
)

// Handlers bundles the collaborators the API needs.
type Handlers struct {
	Service     *registry.Service
	Provenances *store.ProvenanceStore
	Events      *registry.EventStore
	Augmenter   *matching.Augmenter
	Comparator  *matching.Comparator
	Cache       *cache.Manager
	Logger      *slog.Logger
}

// NewRouter creates the chi router for the registry API.
func NewRouter(h *Handlers) chi.Router {
	if h.Logger == nil {
		h.Logger = slog.Default()
	}
	if h.Comparator == nil {
		h.Comparator = matching.NewComparator()
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", provenanceHeader},
	}))

	r.Get("/healthz", healthHandler())

	r.Route("/dmps", func(r chi.Router) {
		r.Post("/", createHandler(h))
		r.Post("/score", scoreHandler(h))
		r.With(h.Cache.Middleware()).Get("/versions/*", listVersionsHandler(h))
		r.Post("/augment/*", augmentHandler(h))
		r.With(h.Cache.Middleware()).Get("/*", getHandler(h))
		r.Put("/*", updateHandler(h))
		r.Delete("/*", tombstoneHandler(h))
	})

	r.Route("/provenances/{key}", func(r chi.Router) {
		r.Get("/", getProvenanceHandler(h))
		r.Put("/", putProvenanceHandler(h))
	})

	r.Get("/events/*", eventsHandler(h))

	return r
}
