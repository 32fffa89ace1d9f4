package web

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/middleware"
)

// ReferenceStore is what the server needs from the reference photo store.
type ReferenceStore interface {
	handlers.KnownProvider
	handlers.IdentityLister
}

// Deps are the components the HTTP handlers drive.
type Deps struct {
	Store      ReferenceStore
	Ledger     *ledger.Ledger
	Registrar  handlers.Registerer
	Processor  handlers.FrameProcessor
	OpenCamera handlers.SourceOpener
}

// Server represents the web server
type Server struct {
	config     *config.Config
	deps       Deps
	router     *chi.Mux
	httpServer *http.Server
	camera     *handlers.CameraHandler
}

// NewServer creates a new web server
func NewServer(cfg *config.Config, deps Deps, port int, host string) *Server {
	r := chi.NewRouter()

	s := &Server{
		config: cfg,
		deps:   deps,
		router: r,
		camera: handlers.NewCameraHandler(deps.OpenCamera, deps.Store, deps.Processor, cfg.Recognition.JPEGQuality),
	}

	// Set up middleware stack
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.CORS(cfg.Web.AllowedOrigins))
	r.Use(middleware.SecurityHeaders())

	// Set up routes
	s.setupRoutes()

	// Create HTTP server
	s.httpServer = &http.Server{
		Addr:        fmt.Sprintf("%s:%d", host, port),
		Handler:     r,
		ReadTimeout: 30 * time.Second,
		IdleTimeout: 60 * time.Second,
		// No WriteTimeout: the camera event stream stays open for the whole session
	}

	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	log.Printf("Starting web server on %s", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops the camera and gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	log.Println("Shutting down web server...")

	s.camera.Shutdown(ctx)

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down server: %w", err)
	}
	return nil
}

// Router returns the chi router for testing
func (s *Server) Router() *chi.Mux {
	return s.router
}
