package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/cors"

	"github.com/starford/facdocs/internal/auth"
	"github.com/starford/facdocs/internal/doctree"
	"github.com/starford/facdocs/internal/ratelimit"
	"github.com/starford/facdocs/internal/storage"
)

// Deps are the collaborators of the HTTP API. Events, Blobs and
// LoginLimiter are optional.
type Deps struct {
	Service      *doctree.Service
	Auth         *auth.Authenticator
	Events       http.Handler
	Blobs        *storage.FS
	LoginLimiter *ratelimit.Limiter
	CORSOrigins  []string
	AccessLog    bool
	Logger       *slog.Logger
}

// NewRouter builds the full HTTP handler: health checks, the public login
// and blob routes, and the authenticated /api routes.
func NewRouter(d Deps) http.Handler {
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Auth == nil {
		d.Auth = auth.New(auth.Config{})
	}
	h := NewHandler(d.Service, d.Auth, d.Blobs, d.Logger)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	if d.AccessLog {
		r.Use(middleware.Logger)
	}
	r.Use(middleware.Recoverer)

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", health)
	r.Get("/health/ready", health)

	r.Route("/api", func(r chi.Router) {
		login := r.With()
		if d.LoginLimiter != nil {
			login = r.With(ratelimit.Middleware(d.LoginLimiter, func(w http.ResponseWriter, _ *http.Request) {
				writeJSON(w, http.StatusTooManyRequests, errorBody("too many login attempts"))
			}))
		}
		login.Post("/auth/login", h.Login)

		// Signed blob downloads carry their own token.
		if d.Blobs != nil {
			r.Get("/blobs/*", h.ServeBlob)
		}

		r.Group(func(r chi.Router) {
			r.Use(AuthMiddleware(d.Auth))

			r.Get("/doc_items", h.ListItems)
			r.Post("/doc_items", h.CreateItem)
			r.Get("/doc_items/{id}", h.GetItem)
			r.Put("/doc_items/{id}", h.UpdateItem)
			r.Delete("/doc_items/{id}", h.DeleteItem)
			r.Patch("/doc_items/{id}/move", h.MoveItem)
			r.Get("/doc_items/{id}/download-url", h.DownloadURL)

			r.Get("/facilities", h.ListFacilities)
			r.Post("/facilities", h.CreateFacility)
			r.Get("/facilities/{id}", h.GetFacility)
			r.Post("/facilities/{id}/files", h.UploadFile)

			if d.Events != nil {
				r.Get("/events", d.Events.ServeHTTP)
			}
		})
	})

	if len(d.CORSOrigins) == 0 {
		return r
	}
	return cors.New(cors.Options{
		AllowedOrigins:   d.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization", "Last-Event-ID"},
		AllowCredentials: true,
	}).Handler(r)
}

func health(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}
