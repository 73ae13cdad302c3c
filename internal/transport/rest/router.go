package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"quizrally/internal/catalog"
	"quizrally/internal/game"
	"quizrally/internal/metrics"
	"quizrally/internal/transport/ws"
)

// Container holds all dependencies for the router
type Container struct {
	Registry *game.Registry
	Decks    catalog.Catalog
	Tracker  *metrics.Tracker
	WSHub    *ws.Hub
	WSServer *ws.Server
	Log      zerolog.Logger
}

// Router wires the HTTP surface: health and readiness probes, the metrics
// snapshot, the deck listing, and the websocket endpoint.
type Router struct {
	c         *Container
	startedAt time.Time
	draining  atomic.Bool
}

func NewRouter(c *Container) *Router {
	return &Router{c: c, startedAt: time.Now()}
}

// SetDraining flips the readiness probe; called when shutdown begins so load
// balancers stop routing new connections here.
func (rt *Router) SetDraining() {
	rt.draining.Store(true)
}

// Handler builds the mux with all endpoints.
func (rt *Router) Handler() http.Handler {
	r := mux.NewRouter()
	r.Use(corsMiddleware)

	r.HandleFunc("/healthz", rt.healthz).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", rt.readyz).Methods("GET")
	r.HandleFunc("/metrics", rt.metrics).Methods("GET")
	r.HandleFunc("/v1/decks", rt.listDecks).Methods("GET", "OPTIONS")
	r.HandleFunc("/ws", rt.c.WSServer.ServeWS).Methods("GET")

	return r
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"ok":        true,
		"rooms":     rt.c.Registry.Len(),
		"wsClients": rt.c.WSHub.Count(),
		"uptimeSec": int64(time.Since(rt.startedAt).Seconds()),
	})
}

func (rt *Router) readyz(w http.ResponseWriter, r *http.Request) {
	if rt.draining.Load() {
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "shuttingDown": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "shuttingDown": false})
}

func (rt *Router) metrics(w http.ResponseWriter, r *http.Request) {
	snap := rt.c.Tracker.Snapshot()
	snap.Rooms = rt.c.Registry.Len()
	snap.WSClients = rt.c.WSHub.Count()
	snap.UptimeSec = int64(time.Since(rt.startedAt).Seconds())
	writeJSON(w, http.StatusOK, snap)
}

func (rt *Router) listDecks(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	summaries, err := rt.c.Decks.List(ctx)
	if err != nil {
		rt.c.Log.Error().Err(err).Msg("deck listing failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "deck listing failed"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"decks": summaries})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
		if allowedOrigins == "" {
			allowedOrigins = "*"
		}

		w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
