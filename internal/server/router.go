// Package server wires the HTTP routes of the blog list API.
package server

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/aleks8/blog-list/internal/auth"
	"github.com/aleks8/blog-list/internal/config"
	"github.com/aleks8/blog-list/internal/db"
	"github.com/aleks8/blog-list/internal/handlers"
	appmiddleware "github.com/aleks8/blog-list/internal/middleware"
)

// Server is the API's http.Handler. Close stops background limiter cleanup.
type Server struct {
	http.Handler
	loginLimiter *appmiddleware.RateLimiter
}

func (s *Server) Close() {
	s.loginLimiter.Stop()
}

func New(cfg config.Config, store db.Store, log *zap.Logger) *Server {
	tokens := auth.NewTokens(cfg.JWTSecret, cfg.TokenTTL)
	loginLimiter := appmiddleware.NewRateLimiter(cfg.LoginRateLimit, time.Minute)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appmiddleware.RequestLogger(log))
	r.Use(middleware.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   cfg.CorsAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300,
	}).Handler)

	r.NotFound(handlers.UnknownEndpoint)
	r.MethodNotAllowed(handlers.MethodNotAllowed)

	r.Get("/health", handlers.Health(store, log))

	blogs := handlers.NewBlogsHandler(store, log)
	users := handlers.NewUsersHandler(store, log, cfg.BcryptCost)
	login := handlers.NewLoginHandler(store, tokens, log)

	r.Route("/api", func(r chi.Router) {
		r.With(loginLimiter.Limit).Post("/login", login.Login)

		r.Route("/blogs", func(r chi.Router) {
			r.Get("/", blogs.List)
			r.With(appmiddleware.RequireUser(tokens, store, log)).Post("/", blogs.Create)
			r.Get("/{id}", blogs.Get)
			r.Put("/{id}", blogs.Update)
			r.Delete("/{id}", blogs.Delete)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/", users.List)
			r.Post("/", users.Create)
		})

		if cfg.TestMode() {
			r.Route("/testing", func(r chi.Router) {
				if cfg.AuthToken != "" {
					r.Use(appmiddleware.Auth(cfg.AuthToken))
				}
				r.Post("/reset", handlers.Reset(store, log))
			})
		}
	})

	return &Server{Handler: r, loginLimiter: loginLimiter}
}
