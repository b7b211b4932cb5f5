// Package hostapi implements the daemon's REST surface for host
// applications: logging events, registering user identity, inspecting the
// campaign repository and closing in-flight messages. It handles HTTP
// routing, request decoding, validation, and response formatting.
package hostapi

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"github.com/rafaeljc/muninn/internal/config"
	"github.com/rafaeljc/muninn/internal/engine"
	"github.com/rafaeljc/muninn/internal/identity"
	"github.com/rafaeljc/muninn/internal/validation"
)

// API holds the router and the engine facade it drives. It follows the
// dependency injection pattern to facilitate testing.
type API struct {
	// Router is the Chi multiplexer that handles HTTP requests.
	Router *chi.Mux

	engine      *engine.Engine
	credentials *identity.MutableProvider
}

// NewAPI creates the host API. Panics if either dependency is nil: the
// API is useless without an engine to drive and credentials to mutate.
func NewAPI(eng *engine.Engine, credentials *identity.MutableProvider) *API {
	validation.AssertNotNil(eng, "engine")
	validation.AssertNotNil(credentials, "credential provider")

	api := &API{
		Router:      chi.NewRouter(),
		engine:      eng,
		credentials: credentials,
	}

	api.configureRoutes()
	return api
}

// configureRoutes registers the global middleware stack and API endpoints.
func (a *API) configureRoutes() {
	a.Router.Use(middleware.RequestID)
	a.Router.Use(middleware.RealIP)
	a.Router.Use(RequestLogger)
	a.Router.Use(RequestMetrics)
	a.Router.Use(middleware.Recoverer)
	a.Router.Use(render.SetContentType(render.ContentTypeJSON))

	a.Router.Route("/api/v1", func(r chi.Router) {
		r.Post("/events", a.handleLogEvent)

		r.Put("/identity", a.handleSetIdentity)
		r.Delete("/identity", a.handleClearIdentity)

		r.Get("/campaigns", a.handleListCampaigns)
		r.Post("/campaigns/{id}/opt-out", a.handleOptOut)

		r.Post("/close", a.handleCloseMessage)
	})
}

// Serve blocks serving the API until the context is cancelled, then shuts
// down gracefully.
func (a *API) Serve(ctx context.Context, cfg *config.HostAPIConfig) error {
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      a.Router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
