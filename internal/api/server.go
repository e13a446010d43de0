// Package api provides the HTTP API for observing and steering the world.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token (admin control plane).
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/automon-world/internal/engine"
	"github.com/talgya/automon-world/internal/world"
)

const (
	maxStreamConns   = 8
	streamPing       = 30 * time.Second
	streamWriteWait  = 10 * time.Second
	defaultEventPage = 50
	maxEventPage     = 500
)

// EventArchive serves events that have rotated out of the in-state log.
type EventArchive interface {
	RecentEvents(ctx context.Context, worldID string, limit int) ([]world.Event, error)
}

// Server serves the world over HTTP.
type Server struct {
	Sim      *engine.Simulation
	Sched    *engine.Scheduler
	Archive  EventArchive // optional
	Metrics  http.Handler // optional, mounted at /metrics
	Addr     string
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	streamConns atomic.Int32
	upgrader    websocket.Upgrader
}

// Handler builds the routing table.
func (s *Server) Handler() http.Handler {
	controlLimiter := NewRateLimiter(30, time.Minute)
	streamLimiter := NewRateLimiter(20, time.Minute)
	origins := allowedOrigins()
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 16 * 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || origins[origin]
		},
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("GET /api/v1/status", s.handleStatus)
	mux.HandleFunc("GET /api/v1/state", s.handleState)
	mux.HandleFunc("GET /api/v1/trainers", s.handleTrainers)
	mux.HandleFunc("GET /api/v1/trainers/{id}", s.handleTrainer)
	mux.HandleFunc("GET /api/v1/events", s.handleEvents)
	mux.HandleFunc("GET /api/v1/events/archive", s.handleArchive)
	mux.HandleFunc("GET /api/v1/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("GET /api/v1/market", s.handleMarket)
	mux.HandleFunc("GET /api/v1/catalog", s.handleCatalog)
	mux.HandleFunc("GET /api/v1/stream", RateLimitMiddleware(streamLimiter, s.handleStream))

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("POST /api/v1/control", RateLimitMiddleware(controlLimiter, s.adminOnly(s.handleControl)))

	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics)
	}
	return corsMiddleware(origins, mux)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	slog.Info("HTTP API starting", "addr", s.Addr, "admin_auth", s.AdminKey != "")

	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	}
}

// allowedOrigins reads CORS_ORIGINS (comma-separated). Localhost dev servers
// are always allowed.
func allowedOrigins() map[string]bool {
	allowed := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:4173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			if origin = strings.TrimSpace(origin); origin != "" {
				allowed[origin] = true
			}
		}
	}
	return allowed
}

// corsMiddleware adds CORS headers for allowed frontend origins.
func corsMiddleware(allowed map[string]bool, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowed[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth.
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.AdminKey == "" {
			http.Error(w, "admin endpoints disabled (no WORLDSIM_ADMIN_KEY set)", http.StatusForbidden)
			return
		}
		if !s.checkBearerToken(r) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// state returns the current world or writes 503 before Init.
func (s *Server) state(w http.ResponseWriter) *world.GameState {
	st := s.Sim.State()
	if st == nil {
		http.Error(w, "world not initialized", http.StatusServiceUnavailable)
	}
	return st
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	st := s.state(w)
	if st == nil {
		return
	}
	status := s.Sched.Status()
	writeJSON(w, map[string]any{
		"name":        "AutoMon World",
		"world_id":    st.WorldID,
		"seed":        st.Seed,
		"tick":        st.Tick,
		"day":         st.Day,
		"time_of_day": st.TimeOfDay,
		"weather":     st.Weather,
		"trainers":    len(st.Trainers),
		"running":     status.Running,
		"speed":       status.Speed,
		"interval":    status.Interval.String(),
		"speeds":      s.Sched.Speeds(),
	})
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	snap := s.Sim.Snapshot()
	if snap.State == nil {
		http.Error(w, "world not initialized", http.StatusServiceUnavailable)
		return
	}
	if r.URL.Query().Get("catalog") != "true" {
		snap.Catalog = nil
	}
	writeJSON(w, snap)
}

func (s *Server) handleTrainers(w http.ResponseWriter, r *http.Request) {
	st := s.state(w)
	if st == nil {
		return
	}
	type trainerEntry struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		LocationID string `json:"location_id"`
		Health     int    `json:"health"`
		Energy     int    `json:"energy"`
		Hunger     int    `json:"hunger"`
		Gold       int    `json:"gold"`
		Elo        int    `json:"elo"`
		AutoMons   int    `json:"automons"`
		Busy       string `json:"busy,omitempty"`
	}
	out := make([]trainerEntry, 0, len(st.Trainers))
	for _, t := range st.Trainers {
		e := trainerEntry{
			ID: t.ID, Name: t.Name, LocationID: t.LocationID,
			Health: t.Health, Energy: t.Energy, Hunger: t.Hunger,
			Gold: t.Gold, Elo: t.Elo, AutoMons: len(t.AutoMons),
		}
		if t.IsBusy(st.Tick) {
			e.Busy = t.BusyAction
		}
		out = append(out, e)
	}
	writeJSON(w, out)
}

func (s *Server) handleTrainer(w http.ResponseWriter, r *http.Request) {
	st := s.state(w)
	if st == nil {
		return
	}
	t := st.Trainer(r.PathValue("id"))
	if t == nil {
		http.Error(w, "trainer not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]any{
		"trainer":       t,
		"recent_events": st.RecentEvents(t.ID, 20),
	})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	st := s.state(w)
	if st == nil {
		return
	}
	q := r.URL.Query()
	limit := queryInt(q.Get("limit"), defaultEventPage, maxEventPage)
	since := uint64(0)
	if v := q.Get("since"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			http.Error(w, "since must be an event sequence number", http.StatusBadRequest)
			return
		}
		since = n
	}
	trainer := q.Get("trainer")
	category := q.Get("category")

	var out []world.Event
	for _, e := range st.EventsSince(since) {
		if trainer != "" && e.TrainerID != trainer {
			continue
		}
		if category != "" && e.Category != category {
			continue
		}
		out = append(out, e)
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	if out == nil {
		out = []world.Event{}
	}
	writeJSON(w, out)
}

func (s *Server) handleArchive(w http.ResponseWriter, r *http.Request) {
	if s.Archive == nil {
		http.Error(w, "event archive not available", http.StatusNotFound)
		return
	}
	st := s.state(w)
	if st == nil {
		return
	}
	limit := queryInt(r.URL.Query().Get("limit"), defaultEventPage, maxEventPage)
	events, err := s.Archive.RecentEvents(r.Context(), st.WorldID, limit)
	if err != nil {
		slog.Error("event archive query failed", "error", err)
		http.Error(w, "event archive query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, events)
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if st := s.state(w); st != nil {
		writeJSON(w, st.Leaderboard)
	}
}

func (s *Server) handleMarket(w http.ResponseWriter, r *http.Request) {
	if st := s.state(w); st != nil {
		writeJSON(w, st.Market)
	}
}

func (s *Server) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, s.Sim.Catalog())
}

// controlRequest accepts either a structured command or a text one such as
// "speed 5".
type controlRequest struct {
	Command    string `json:"command"`
	Multiplier int    `json:"multiplier,omitempty"`
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var req controlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	text := req.Command
	if req.Multiplier != 0 {
		text += " " + strconv.Itoa(req.Multiplier)
	}
	cmd, err := engine.ParseCommand(text)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	// A client hanging up must not abort a reset halfway.
	if err := s.Sched.Apply(context.WithoutCancel(r.Context()), cmd); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, engine.ErrUnknownSpeed) || errors.Is(err, engine.ErrUnknownCommand) {
			status = http.StatusBadRequest
		}
		http.Error(w, err.Error(), status)
		return
	}
	slog.Info("control command applied", "command", cmd.Kind, "multiplier", cmd.Multiplier)

	st := s.Sched.Status()
	writeJSON(w, map[string]any{
		"ok":       true,
		"running":  st.Running,
		"speed":    st.Speed,
		"interval": st.Interval.String(),
	})
}

// handleStream upgrades to a websocket and pushes the newest snapshot after
// every tick. Slow clients skip intermediate snapshots.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if n := s.streamConns.Add(1); n > maxStreamConns {
		s.streamConns.Add(-1)
		http.Error(w, "too many stream connections", http.StatusServiceUnavailable)
		return
	}
	defer s.streamConns.Add(-1)

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Debug("stream upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ch, cancel := s.Sim.Hub().Subscribe()
	defer cancel()

	// The read side only watches for the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	slog.Info("stream client connected", "remote", r.RemoteAddr)
	ping := time.NewTicker(streamPing)
	defer ping.Stop()

	for {
		select {
		case snap, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
			if err := conn.WriteJSON(snap); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				return
			}
		case <-gone:
			slog.Info("stream client disconnected", "remote", r.RemoteAddr)
			return
		case <-r.Context().Done():
			return
		}
	}
}

func queryInt(v string, def, ceiling int) int {
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return min(n, ceiling)
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
