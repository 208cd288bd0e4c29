package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// SetupRoutes builds the admin router with the API injected.
func SetupRoutes(a *API) http.Handler {
	r := chi.NewRouter()

	r.Use(requestLogger(a.log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
	}))

	// Public routes
	r.Post("/login", a.login)
	r.Get("/enums", a.enums)
	r.Get("/healthz", a.healthz)

	// Session-guarded routes
	r.Group(func(g chi.Router) {
		g.Use(a.auth.Middleware)

		g.Get("/session", a.session)

		g.Route("/rooms", func(rr chi.Router) {
			rr.Get("/", a.listRooms)
			rr.Post("/", a.createRoom)
			rr.Get("/{id}", func(w http.ResponseWriter, req *http.Request) {
				a.getRoom(w, req, chi.URLParam(req, "id"))
			})
			rr.Put("/{id}", func(w http.ResponseWriter, req *http.Request) {
				a.updateRoom(w, req, chi.URLParam(req, "id"))
			})
			rr.Delete("/{id}", func(w http.ResponseWriter, req *http.Request) {
				a.deleteRoom(w, req, chi.URLParam(req, "id"))
			})
		})

		g.Post("/irc/start", a.startIRC)
		g.Post("/irc/stop", a.stopIRC)
	})

	return r
}

func requestLogger(log *zap.SugaredLogger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			start := time.Now()
			next.ServeHTTP(w, req)
			log.Debugw("http", "method", req.Method, "path", req.URL.Path, "elapsed", time.Since(start))
		})
	}
}
