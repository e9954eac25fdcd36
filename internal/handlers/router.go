package handlers

import (
	"net/http"
	"time"

	"readthis-backend/internal/middleware"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Routes collects the handlers mounted by NewRouter. Nil handlers are not mounted.
type Routes struct {
	Auth     *AuthHandler
	Posts    *PostHandler
	Comments *CommentHandler
	Books    *BookHandler
	WS       *WebSocketHandler
	Health   *HealthHandler

	Authenticator middleware.Authenticator
	CORSOrigins   []string
	// AuthRateLimit is requests per minute per IP on /auth; zero disables it.
	AuthRateLimit int
}

// NewRouter builds the HTTP router
func NewRouter(rt Routes) http.Handler {
	r := chi.NewRouter()

	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RequestLogger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.CORSOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	requireAuth := middleware.AuthMiddleware(rt.Authenticator)

	if rt.Auth != nil {
		r.Route("/auth", func(r chi.Router) {
			if rt.AuthRateLimit > 0 {
				r.Use(httprate.LimitByIP(rt.AuthRateLimit, time.Minute))
			}
			r.Post("/register", rt.Auth.Register)
			r.Post("/login", rt.Auth.Login)
			r.Post("/refresh", rt.Auth.Refresh)
			r.Post("/logout", rt.Auth.Logout)
			r.Post("/google-auth", rt.Auth.GoogleAuth)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/me", rt.Auth.Me)
				r.Put("/profile", rt.Auth.UpdateProfile)
				r.Put("/push-token", rt.Auth.UpdatePushToken)
			})
		})
	}

	if rt.Posts != nil {
		r.Route("/posts", func(r chi.Router) {
			r.Get("/", rt.Posts.GetAll)
			r.Get("/paged", rt.Posts.GetPaged)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/my-posts", rt.Posts.GetMine)
				r.Post("/", rt.Posts.Create)
				r.Put("/{id}", rt.Posts.Update)
				r.Delete("/{id}", rt.Posts.Delete)
				r.Post("/like/{id}", rt.Posts.Like)
				r.Post("/unlike/{id}", rt.Posts.Unlike)
				r.Post("/comment/{id}", rt.Posts.AddComment)
			})

			r.Get("/{id}", rt.Posts.GetByID)
		})
	}

	if rt.Comments != nil {
		r.Route("/comments", func(r chi.Router) {
			r.Get("/", rt.Comments.List)
			r.Get("/{id}", rt.Comments.GetByID)

			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Post("/", rt.Comments.Create)
				r.Delete("/{id}", rt.Comments.Delete)
			})
		})
	}

	if rt.Books != nil {
		r.Post("/books/recommend", rt.Books.Recommend)
	}

	if rt.WS != nil {
		r.Get("/ws", rt.WS.HandleWebSocket)
	}

	if rt.Health != nil {
		r.Get("/health", rt.Health.Health)
	}
	r.Handle("/metrics", promhttp.Handler())

	return r
}
