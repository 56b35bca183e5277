// Package gateway is the HTTP and websocket surface of the pool daemon.
// REST handles the request/response operations; the websocket stream
// carries live schedule updates to connected members.
package gateway

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"paluwagan/auth"
	"paluwagan/services"
)

type Server struct {
	log     *slog.Logger
	router  *chi.Mux
	pools   *services.PoolService
	auth    *services.AuthService
	tokens  *auth.TokenSource
	metrics *prometheus.Registry
	srv     *http.Server
}

func NewServer(
	addr string,
	pools *services.PoolService,
	authSvc *services.AuthService,
	tokens *auth.TokenSource,
	metrics *prometheus.Registry,
	log *slog.Logger,
) *Server {
	s := &Server{
		log:     log,
		router:  chi.NewRouter(),
		pools:   pools,
		auth:    authSvc,
		tokens:  tokens,
		metrics: metrics,
	}

	s.setupRoutes()

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		// Streaming connections manage their own deadlines.
		WriteTimeout: 0,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.Recoverer)

	s.router.Get("/healthz", s.handleHealth)
	s.router.Method(http.MethodGet, "/metrics",
		promhttp.HandlerFor(s.metrics, promhttp.HandlerOpts{}))

	s.router.Post("/auth/register", s.handleRegister)
	s.router.Post("/auth/login", s.handleLogin)

	s.router.Group(func(r chi.Router) {
		r.Use(auth.Middleware(s.tokens))

		r.Get("/product/available", s.handleAvailableSlots)
		r.Post("/schedule/draw", s.handleDraw)
		r.Get("/schedule/snapshot", s.handleSnapshot)
		r.Post("/ledger/contributions", s.handleContribution)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireAdmin)
			r.Get("/slots", s.handleListSlots)
			r.Post("/slots", s.handleCreateSlot)
			r.Patch("/slots/{id}", s.handleUpdateSlot)
			r.Delete("/slots/{id}", s.handleArchiveSlot)
			r.Patch("/members/{id}/active", s.handleSetMemberActive)
		})
	})

	// Token arrives as a query parameter; browsers cannot set headers on
	// websocket upgrades.
	s.router.Get("/ws", s.handleWebsocket)
}

// ListenAndServe blocks until the server stops.
func (s *Server) ListenAndServe() error {
	s.log.Info("Gateway listening", "addr", s.srv.Addr)
	return s.srv.ListenAndServe()
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// Handler exposes the router for httptest.
func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.HasRole(r.Context(), "admin") {
			writeJSON(w, http.StatusForbidden, errorResponse{Error: "admin role required", Code: "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}
