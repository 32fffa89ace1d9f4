package web

import (
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kozaktomas/face-attendance/internal/web/handlers"
	"github.com/kozaktomas/face-attendance/internal/web/static"
)

func (s *Server) setupRoutes() {
	attendanceHandler := handlers.NewAttendanceHandler(s.deps.Ledger)
	peopleHandler := handlers.NewPeopleHandler(s.deps.Store, s.deps.Registrar)
	configHandler := handlers.NewConfigHandler(s.config)

	s.router.Get("/api/v1/health", handlers.HealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		// Live attendance
		r.Post("/camera", s.camera.Start)
		r.Get("/camera", s.camera.Status)
		r.Delete("/camera", s.camera.Stop)
		r.Get("/camera/frame", s.camera.Frame)
		r.Get("/camera/events", s.camera.Events)

		// Records table
		r.Get("/attendance", attendanceHandler.List)

		// Registration
		r.Get("/people", peopleHandler.List)
		r.Post("/people", peopleHandler.Register)

		r.Get("/config", configHandler.Get)
	})

	// Serve static files for frontend (SPA)
	s.router.Get("/*", s.serveSPA)
}

var contentTypes = map[string]string{
	".html": "text/html; charset=utf-8",
	".css":  "text/css; charset=utf-8",
	".js":   "application/javascript; charset=utf-8",
	".json": "application/json",
	".svg":  "image/svg+xml",
	".png":  "image/png",
	".ico":  "image/x-icon",
}

// serveSPA serves the embedded single-page application
func (s *Server) serveSPA(w http.ResponseWriter, r *http.Request) {
	fs := static.GetFileSystem()
	p := r.URL.Path
	if p == "/" {
		p = "/index.html"
	}

	f, err := fs.Open(p)
	if err == nil {
		defer f.Close()
		if stat, err := f.Stat(); err == nil && !stat.IsDir() {
			contentType, ok := contentTypes[path.Ext(p)]
			if !ok {
				contentType = "application/octet-stream"
			}
			w.Header().Set("Content-Type", contentType)
			w.WriteHeader(http.StatusOK)
			io.Copy(w, f)
			return
		}
	}

	// Unknown non-asset paths fall back to the app shell
	if strings.Contains(path.Base(p), ".") {
		http.NotFound(w, r)
		return
	}
	index, err := fs.Open("/index.html")
	if err != nil {
		http.NotFound(w, r)
		return
	}
	defer index.Close()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.Copy(w, index)
}
