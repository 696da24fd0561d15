// Package dashboard serves simulation jobs and stored results over HTTP and
// streams job progress over WebSocket.
package dashboard

import (
	"cmp"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/crypto/bcrypt"

	"github.com/deskwarrior/simulator/internal/batch"
	"github.com/deskwarrior/simulator/internal/config"
	"github.com/deskwarrior/simulator/internal/logger"
	"github.com/deskwarrior/simulator/internal/player"
	"github.com/deskwarrior/simulator/internal/progression"
	"github.com/deskwarrior/simulator/internal/rng"
	"github.com/deskwarrior/simulator/internal/session"
	"github.com/deskwarrior/simulator/internal/store"
)

const (
	maxBodyBytes     = 1 << 20
	maxMessageSize   = 4096
	maxBatchRuns     = 100000
	defaultListLimit = 50
	shutdownTimeout  = 10 * time.Second
)

// Server is the dashboard HTTP server.
type Server struct {
	cfg         config.DashboardConfig
	batchCfg    config.BatchConfig
	progCfg     config.ProgressionConfig
	profile     session.InputProfile
	sim         *session.Simulator
	store       *store.Store
	batches     *batch.Runner
	progression *progression.Runner
	hub         *Hub
	conns       *ConnLimiter
	auth        *AuthRateLimiter
	throttle    *SubmitThrottle
	jobs        *jobManager
}

// New creates a server running jobs on sim and saving results to st.
func New(cfg *config.SimulatorConfig, sim *session.Simulator, st *store.Store) *Server {
	hub := NewHub()
	return &Server{
		cfg:         cfg.Dashboard,
		batchCfg:    cfg.Batch,
		progCfg:     cfg.Progression,
		profile:     cfg.Profile,
		sim:         sim,
		store:       st,
		batches:     batch.NewRunner(sim, cfg.Batch.Workers),
		progression: progression.NewRunner(sim),
		hub:         hub,
		conns:       NewConnLimiter(cfg.Dashboard.MaxPerIP, cfg.Dashboard.MaxTotal),
		auth:        NewAuthRateLimiter(cfg.Dashboard.MaxAttempts, cfg.Dashboard.LockoutDuration, cfg.Dashboard.MaxLockoutDuration),
		throttle:    NewSubmitThrottle(cfg.Dashboard.SubmitLimit, cfg.Dashboard.SubmitWindow, cfg.Dashboard.RepeatCooldown),
		jobs:        newJobManager(hub, cfg.Dashboard.MaxConcurrentJobs),
	}
}

// Hub returns the progress hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("POST /api/batch", s.requireAuth(s.handleStartBatch))
	mux.HandleFunc("POST /api/progression", s.requireAuth(s.handleStartProgression))
	mux.HandleFunc("GET /api/batch/{id}", s.handleGetBatch)
	mux.HandleFunc("GET /api/batches", s.handleListBatches)
	mux.HandleFunc("GET /api/progression/{id}", s.handleGetProgression)
	mux.HandleFunc("GET /api/progressions", s.handleListProgressions)
	mux.HandleFunc("GET /api/jobs/{id}", s.handleGetJob)
	mux.HandleFunc("GET /ws", s.handleWebSocketUpgrade)
	return mux
}

// ListenAndServe serves on the configured address until ctx is cancelled,
// then shuts down: running jobs are cancelled and subscribers disconnected.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("Dashboard listening", "address", s.cfg.Addr)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		s.Close()
		return fmt.Errorf("dashboard server failed: %w", err)
	case <-ctx.Done():
	}

	logger.Info("Dashboard shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil {
		return fmt.Errorf("failed to shut down dashboard: %w", err)
	}
	return nil
}

// Close cancels running jobs, waits for them and disconnects subscribers.
func (s *Server) Close() {
	s.jobs.stop()
	s.hub.Close()
	s.auth.Stop()
}

// requireAuth checks the API password when one is configured. The password
// is taken from HTTP basic auth or the X-API-Password header.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.cfg.PasswordHash == "" {
			next(w, r)
			return
		}

		ip := clientIP(r)
		if locked, remaining := s.auth.IsLocked(ip); locked {
			w.Header().Set("Retry-After", strconv.Itoa(int(remaining.Seconds())+1))
			writeError(w, http.StatusTooManyRequests, "too many failed attempts")
			return
		}

		password := r.Header.Get("X-API-Password")
		if _, p, ok := r.BasicAuth(); ok {
			password = p
		}
		if bcrypt.CompareHashAndPassword([]byte(s.cfg.PasswordHash), []byte(password)) != nil {
			if locked, d := s.auth.RecordFailure(ip); locked {
				logger.Warning("Dashboard client locked out", "client_ip", ip, "duration", d)
				w.Header().Set("Retry-After", strconv.Itoa(int(d.Seconds())))
				writeError(w, http.StatusTooManyRequests, "too many failed attempts")
				return
			}
			writeError(w, http.StatusUnauthorized, "invalid password")
			return
		}
		s.auth.RecordSuccess(ip)
		next(w, r)
	}
}

// runRequest is the body shared by the job endpoints.
type runRequest struct {
	Runs        int                   `json:"runs"`
	TargetLevel int                   `json:"target_level"`
	Seed        uint64                `json:"seed"`
	Stats       map[string]int        `json:"stats"`
	Profile     *session.InputProfile `json:"profile"`

	Strategy    string `json:"strategy"`
	MaxSessions int    `json:"max_sessions"`
}

type startResponse struct {
	Job  string `json:"job"`
	Kind string `json:"kind"`
	Seed uint64 `json:"seed"`
}

func (s *Server) decodeRun(w http.ResponseWriter, r *http.Request) (*runRequest, *player.PermanentStats, bool) {
	var req runRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return nil, nil, false
	}

	stats := s.sim.NewStats()
	for id, level := range req.Stats {
		if _, ok := s.sim.PermanentTable().Lookup(id); !ok {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown stat %q", id))
			return nil, nil, false
		}
		if level < 0 {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("stat %q: level must not be negative", id))
			return nil, nil, false
		}
		stats.SetLevel(id, level)
	}

	if req.TargetLevel == 0 {
		req.TargetLevel = s.batchCfg.TargetLevel
	}
	if req.TargetLevel <= 0 {
		writeError(w, http.StatusBadRequest, "target_level must be positive")
		return nil, nil, false
	}
	if req.Seed == 0 {
		req.Seed = s.batchCfg.MasterSeed
	}
	if req.Seed == 0 {
		seed, err := rng.NewSeed()
		if err != nil {
			writeError(w, http.StatusInternalServerError, "failed to draw seed")
			return nil, nil, false
		}
		req.Seed = seed
	}
	return &req, stats, true
}

func (s *Server) profileFor(req *runRequest) session.InputProfile {
	if req.Profile != nil {
		return *req.Profile
	}
	return s.profile
}

func (s *Server) handleStartBatch(w http.ResponseWriter, r *http.Request) {
	req, stats, ok := s.decodeRun(w, r)
	if !ok {
		return
	}
	if req.Runs == 0 {
		req.Runs = s.batchCfg.Runs
	}
	if req.Runs <= 0 || req.Runs > maxBatchRuns {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("runs must be within 1..%d", maxBatchRuns))
		return
	}

	if !s.admit(w, r, KindBatch, req) {
		return
	}

	breq := batch.Request{
		Stats:       stats,
		Profile:     s.profileFor(req),
		Iterations:  req.Runs,
		TargetLevel: req.TargetLevel,
		MasterSeed:  req.Seed,
	}
	id, err := s.jobs.start(KindBatch, req.Runs, func(ctx context.Context, id string, progress func(int, int)) error {
		breq.OnProgress = progress
		res, err := s.batches.Run(ctx, breq)
		if err != nil {
			return err
		}
		res.ID = id
		res.Sessions = nil
		if err := s.store.SaveBatch(context.WithoutCancel(ctx), res); err != nil {
			return err
		}
		if res.Cancelled {
			return cmp.Or(ctx.Err(), context.Canceled)
		}
		return nil
	})
	s.started(w, id, KindBatch, req.Seed, err)
}

func (s *Server) handleStartProgression(w http.ResponseWriter, r *http.Request) {
	req, stats, ok := s.decodeRun(w, r)
	if !ok {
		return
	}
	name := req.Strategy
	if name == "" {
		name = s.progCfg.Strategy
	}
	strategy, err := progression.ParseStrategy(name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.MaxSessions == 0 {
		req.MaxSessions = s.progCfg.MaxSessions
	}
	if req.MaxSessions < 0 {
		writeError(w, http.StatusBadRequest, "max_sessions must not be negative")
		return
	}

	if !s.admit(w, r, KindProgression, req) {
		return
	}

	preq := progression.Request{
		Initial:     stats,
		Profile:     s.profileFor(req),
		TargetLevel: req.TargetLevel,
		MaxSessions: req.MaxSessions,
		Strategy:    strategy,
		Seed:        req.Seed,
	}
	id, err := s.jobs.start(KindProgression, req.MaxSessions, func(ctx context.Context, id string, progress func(int, int)) error {
		preq.OnSession = func(rec progression.SessionRecord, limit int) {
			progress(rec.Number, limit)
		}
		res, err := s.progression.Run(ctx, preq)
		if err != nil {
			return err
		}
		res.ID = id
		if err := s.store.SaveProgression(context.WithoutCancel(ctx), res); err != nil {
			return err
		}
		if res.Cancelled {
			return cmp.Or(ctx.Err(), context.Canceled)
		}
		return nil
	})
	s.started(w, id, KindProgression, req.Seed, err)
}

// admit applies the per-client submit throttle. The key is the resolved
// request, so jobs with a drawn seed never count as repeats.
func (s *Server) admit(w http.ResponseWriter, r *http.Request, kind string, req *runRequest) bool {
	key, err := json.Marshal(req)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return false
	}
	ip := clientIP(r)
	res := s.throttle.Check(ip, kind+":"+string(key))
	if !res.Allowed {
		logger.Warning("Job submission throttled", "client_ip", ip, "kind", kind, "reason", res.Reason)
		w.Header().Set("Retry-After", strconv.Itoa(res.WaitSeconds))
		writeError(w, http.StatusTooManyRequests, res.Reason)
		return false
	}
	return true
}

func (s *Server) started(w http.ResponseWriter, id, kind string, seed uint64, err error) {
	if err != nil {
		if errors.Is(err, ErrBusy) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.Header().Set("Location", "/api/jobs/"+id)
	writeJSON(w, http.StatusAccepted, startResponse{Job: id, Kind: kind, Seed: seed})
}

// Health is the body of GET /healthz.
type Health struct {
	Status        string `json:"status"`
	Subscribers   int    `json:"subscribers"`
	SubscriberIPs int    `json:"subscriber_ips"`
	RunningJobs   int    `json:"running_jobs"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	subs, ips := s.conns.Stats()
	writeJSON(w, http.StatusOK, Health{
		Status:        "ok",
		Subscribers:   subs,
		SubscriberIPs: ips,
		RunningJobs:   s.jobs.running(),
	})
}

func (s *Server) handleGetBatch(w http.ResponseWriter, r *http.Request) {
	res, err := s.store.GetBatch(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListBatches(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListBatches(r.Context(), listLimit(r))
	if err != nil {
		s.storeError(w, err)
		return
	}
	if list == nil {
		list = []store.BatchSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetProgression(w http.ResponseWriter, r *http.Request) {
	res, err := s.store.GetProgression(r.Context(), r.PathValue("id"))
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleListProgressions(w http.ResponseWriter, r *http.Request) {
	list, err := s.store.ListProgressions(r.Context(), listLimit(r))
	if err != nil {
		s.storeError(w, err)
		return
	}
	if list == nil {
		list = []store.ProgressionSummary{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	st, ok := s.jobs.status(r.PathValue("id"))
	if !ok {
		writeError(w, http.StatusNotFound, "job not found")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// handleWebSocketUpgrade subscribes the client to the progress stream.
func (s *Server) handleWebSocketUpgrade(w http.ResponseWriter, r *http.Request) {
	ip := clientIP(r)
	if !s.conns.TryAcquire(ip) {
		logger.Warning("WebSocket connection rejected - limit exceeded",
			"remote_addr", r.RemoteAddr,
			"client_ip", ip)
		http.Error(w, "Too many connections. Please try again later.", http.StatusTooManyRequests)
		return
	}

	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			allowed := s.cfg.IsOriginAllowed(origin, r.Host)
			if !allowed {
				logger.Warning("WebSocket connection rejected - origin not allowed",
					"origin", origin,
					"host", r.Host,
					"remote_addr", r.RemoteAddr)
			}
			return allowed
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("WebSocket upgrade failed", "error", err)
		s.conns.Release(ip)
		return
	}

	sub := &subscriber{conn: conn, send: make(chan []byte, subscriberSend), ip: ip}
	s.hub.add(sub)
	go sub.writeLoop()
	go func() {
		defer s.conns.Release(ip)
		sub.readLoop(maxMessageSize)
		s.hub.remove(sub)
	}()
}

func (s *Server) storeError(w http.ResponseWriter, err error) {
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	logger.Error("Store request failed", "error", err)
	writeError(w, http.StatusInternalServerError, "storage error")
}

func listLimit(r *http.Request) int {
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return defaultListLimit
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Debug("Failed to write response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
