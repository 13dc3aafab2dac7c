/*
Package handler provides the HTTP handlers and routing setup for the LAN share server.

This file defines the main Router, applying necessary middleware like logging, CORS,
and IP-based rate limiting before delegating requests to the file, user and WebSocket handlers.
*/
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"golang.org/x/time/rate"

	"lanshare/internal/pkg/limiter"
	"lanshare/internal/pkg/logx"
	"lanshare/internal/pkg/resp"
)

const (
	ConnectRate  = 1
	ConnectBurst = 10
	UploadRate   = 2
	UploadBurst  = 20
)

// Router sets up the main HTTP routing table (chi.Router) for the application.
// The rate limiters' janitors stop when ctx is cancelled.
func Router(ctx context.Context, deps *AppDeps) http.Handler {
	connectLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(ConnectRate), ConnectBurst)
	uploadLimiter := limiter.NewIPRateLimiter(ctx, rate.Limit(UploadRate), UploadBurst)

	r := chi.NewRouter()

	allowedOrigins := make(map[string]struct{})
	for _, origin := range deps.Config.AllowedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	wsUpgrader := websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			// Devices reach the server by LAN IP, so with no configured
			// origins any page served from this host is accepted.
			if deps.Config.IsDevelopment() || len(allowedOrigins) == 0 {
				return true
			}

			origin := r.Header.Get("Origin")
			if _, ok := allowedOrigins[origin]; ok {
				return true
			}

			logx.Warn("WebSocket connection rejected: Origin not allowed.", "origin", origin)
			return false
		},
	}

	corsAllowedOrigins := []string{"*"}
	if !deps.Config.IsDevelopment() && len(deps.Config.AllowedOrigins) > 0 {
		corsAllowedOrigins = deps.Config.AllowedOrigins
	}

	c := cors.New(cors.Options{
		AllowedOrigins: corsAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})
	r.Use(c.Handler)

	// No RealIP: devices connect directly and the socket address is their identity.
	r.Use(middleware.RequestID)
	r.Use(logx.RequestLogger())
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		data := map[string]any{
			"status":  "ok",
			"service": "LAN Share",
			"clients": deps.Hub.Len(),
		}
		resp.RespondSuccess(w, r, data)
	})

	r.Route("/api", func(api chi.Router) {
		api.Get("/files", HandleListFiles(deps))
		api.Get("/users", HandleListUsers(deps))
		api.Put("/user/{id}", HandleRenameUser(deps))
	})

	r.With(uploadLimiter.Middleware).Post("/upload", HandleUpload(deps))
	r.Get("/download/{filename}", HandleDownload(deps))
	r.Delete("/delete/{filename}", HandleDelete(deps))
	r.Post("/batch-delete", HandleBatchDelete(deps))

	r.With(connectLimiter.Middleware).Get("/ws", HandleWebSocket(deps, wsUpgrader))

	return r
}
