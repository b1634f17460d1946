package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/docspp/cluster/internal/controlplane/api/auth"
	"github.com/docspp/cluster/internal/controlplane/api/handlers"
	apiMiddleware "github.com/docspp/cluster/internal/controlplane/api/middleware"
	"github.com/docspp/cluster/internal/logger"
	"github.com/docspp/cluster/internal/namenode"
)

// NewRouter builds the Name Node admin API's chi router.
//
// Routes:
//   - GET /health - liveness probe
//   - GET /health/ready - readiness probe
//   - POST /api/v1/auth/login - operator authentication
//   - POST /api/v1/auth/refresh - token refresh
//   - GET /api/v1/auth/me - current operator identity
//   - GET /api/v1/storage-nodes - Storage Node registry snapshot
//   - GET /api/v1/clients - connected client sessions
//   - GET /api/v1/files - file table snapshot
//   - GET /api/v1/files/* - one file's metadata by logical path
//
// Unlike the client and SN wire protocols, every route below /api/v1
// other than /auth/login and /auth/refresh requires a bearer token, since
// this surface exposes cluster-wide state no client session can see.
func NewRouter(coordinator *namenode.Coordinator, jwtService *auth.JWTService, credential handlers.AdminCredential) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(30 * time.Second))

	healthHandler := handlers.NewHealthHandler(coordinator)
	r.Route("/health", func(r chi.Router) {
		r.Get("/", healthHandler.Liveness)
		r.Get("/ready", healthHandler.Readiness)
	})

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/health", http.StatusFound)
	})

	authHandler := handlers.NewAuthHandler(credential, jwtService)
	adminHandler := handlers.NewAdminHandler(coordinator)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", authHandler.Login)
			r.Post("/refresh", authHandler.Refresh)

			r.Group(func(r chi.Router) {
				r.Use(apiMiddleware.JWTAuth(jwtService))
				r.Get("/me", authHandler.Me)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(apiMiddleware.JWTAuth(jwtService))

			r.Get("/storage-nodes", adminHandler.ListStorageNodes)
			r.Get("/clients", adminHandler.ListClients)
			r.Route("/files", func(r chi.Router) {
				r.Get("/", adminHandler.ListFiles)
				r.Get("/*", adminHandler.GetFile)
			})
		})
	})

	return r
}

// requestLogger logs one line per completed request via internal/logger,
// demoting health-check traffic to DEBUG so it doesn't drown out real
// admin API activity.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		requestID := middleware.GetReqID(r.Context())

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		logArgs := []any{
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start).String(),
		}

		if r.URL.Path == "/health" || r.URL.Path == "/health/ready" {
			logger.Debug("admin API request completed", logArgs...)
		} else {
			logger.Info("admin API request completed", logArgs...)
		}
	})
}
