package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(middleware.Compress(5))
	r.Use(httprate.Limit(500, time.Minute))
	r.Use(middleware.Heartbeat("/health"))
	r.Use(s.cacheControl)

	r.Mount("/static", http.FileServer(s.assets))

	r.Handle("/robots.txt", s.serveFile("static/robots.txt"))
	r.Handle("/favicon.svg", s.serveFile("static/favicon.svg"))
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/version", s.HandleVersion)

	r.Get("/", s.HandleIndex)
	r.Post("/retry", s.HandleRetry)
	r.Get("/api/state", s.HandleState)
	r.Get("/api/bio", s.HandleBio)

	r.Get("/admin/login", s.HandleLoginPage)
	r.With(httprate.LimitByIP(10, time.Minute)).Post("/admin/login", s.HandleLogin)
	r.Get("/admin/logout", s.HandleLogout)

	r.Group(func(r chi.Router) {
		r.Use(s.RequireAuth)
		r.Get("/admin", s.HandleAdmin)
		r.Post("/admin/reload", s.HandleReload)
		r.Post("/admin/publish", s.HandlePublish)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusMovedPermanently)
	})

	return r
}
