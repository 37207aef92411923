// Package server wires the application together: router, middleware, route
// definitions, and lifecycle.
//
// This is the composition root. main.go picks the identity provider and
// hands everything in; New assembles the dependency chain in one place:
//
//	sqlite.DB → ReferralService / AccountService → handlers → routes
//
// Handlers never touch the database, services never touch HTTP.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/refr-io/refr/internal/auth"
	"github.com/refr-io/refr/internal/config"
	"github.com/refr-io/refr/internal/handler"
	"github.com/refr-io/refr/internal/identity"
	"github.com/refr-io/refr/internal/middleware"
	sqliteRepo "github.com/refr-io/refr/internal/repository/sqlite"
	"github.com/refr-io/refr/internal/service"
)

// Server owns the router and the database connection; the connection is
// closed during graceful shutdown.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New opens the database and wires all routes.
func New(cfg *config.Config, logger *slog.Logger, gateway identity.Gateway, verifier identity.TokenVerifier) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	s.setupRoutes(gateway, verifier)
	return s, nil
}

// setupRoutes configures middleware and the route table.
//
//	POST   /api/signup          public   register with the identity provider
//	POST   /api/confirm-signup  public   submit emailed confirmation code
//	POST   /api/login           public   credentials → token triple
//	GET    /api/user            bearer   provider profile pass-through
//	GET    /api/referrals       bearer   all referrals, newest first
//	GET    /api/my-referrals    bearer   caller's referrals
//	POST   /api/referrals       bearer   create, owner = caller
//	DELETE /api/referrals/{id}  bearer   delete own referral
//	GET    /*                   public   static client + SPA fallback
func (s *Server) setupRoutes(gateway identity.Gateway, verifier identity.TokenVerifier) {
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	referralService := service.NewReferralService(s.db, s.logger)
	accountService := service.NewAccountService(gateway, s.db, s.logger)

	referralHandler := handler.NewReferralHandler(referralService, s.logger)
	accountHandler := handler.NewAccountHandler(accountService, s.logger)

	s.router.Route("/api", func(r chi.Router) {
		// Token inspection runs on the whole subtree: invalid tokens are
		// rejected here; absent tokens continue without an identity.
		r.Use(auth.Authenticate(verifier, s.logger))

		// No token exists yet for these three.
		r.Post("/signup", accountHandler.HandleSignup)
		r.Post("/confirm-signup", accountHandler.HandleConfirmSignup)
		r.Post("/login", accountHandler.HandleLogin)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireIdentity)

			r.Get("/user", accountHandler.HandleGetUser)
			r.Get("/referrals", referralHandler.HandleList)
			r.Get("/my-referrals", referralHandler.HandleListMine)
			r.Post("/referrals", referralHandler.HandleCreate)
			r.Delete("/referrals/{id}", referralHandler.HandleDelete)
		})
	})

	if s.config.StaticDir != "" {
		s.router.Handle("/*", spaHandler(s.config.StaticDir))
	}
}

// spaHandler serves files from dir and falls back to index.html for paths
// that don't match a file, so client-side routes survive a page reload.
func spaHandler(dir string) http.Handler {
	fileServer := http.FileServer(http.Dir(dir))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := filepath.Join(dir, filepath.Clean("/"+r.URL.Path))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}
		http.ServeFile(w, r, filepath.Join(dir, "index.html"))
	})
}

// Start runs the HTTP server until SIGINT/SIGTERM, then drains in-flight
// requests (30s budget) and closes the database, flushing the WAL.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Handler exposes the assembled router. Tests mount it on httptest.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Close releases the database without going through Start's shutdown path.
func (s *Server) Close() error {
	return s.db.Close()
}
